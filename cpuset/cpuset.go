package cpuset

import (
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const (
	PresetDefault = "default"
	PresetFair4C  = "fair4c"
)

// Layout assigns cpu ids to the roles of one comparison run. Roles are
// kept disjoint when the pool is large enough; otherwise they overlap,
// which is reported but never an error.
type Layout struct {
	Server4    []int `json:"server4"`
	Server8    []int `json:"server8"`
	RBVPrimary []int `json:"rbv_primary"`
	RBVReplica []int `json:"rbv_replica"`
	Client     []int `json:"client"`
}

// Available returns the cpu ids this process may run on. The scheduler
// affinity mask is authoritative; if it cannot be read the logical cpu
// count stands in, and a single-cpu pool is the last resort.
func Available() []int {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err == nil {
		var cpus []int
		for i := 0; i < len(mask)*64; i++ {
			if mask.IsSet(i) {
				cpus = append(cpus, i)
			}
		}
		if len(cpus) > 0 {
			return cpus
		}
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		log.Debug("affinity mask unavailable, using logical cpu count ", n)
		cpus := make([]int, n)
		for i := range cpus {
			cpus[i] = i
		}
		return cpus
	}
	log.Warn("could not determine usable cpus, assuming cpu 0 only")
	return []int{0}
}

// Choose computes the cpu layout for a preset. The pool must be the
// ordered id list from Available (or an operator override).
func Choose(preset string, cpus []int) (Layout, error) {
	if len(cpus) == 0 {
		cpus = []int{0}
	}
	n := len(cpus)

	switch preset {
	case PresetFair4C:
		server4 := cpus[:min(4, n)]

		// Replica validation splits the same four cores so the total
		// unique server core count stays fixed across variants.
		half := max(1, len(server4)/2)
		primary := server4[:half]
		replica := fallback("rbv_replica", server4[half:], primary)

		client := fallback("client", without(cpus, server4), cpus)

		return Layout{
			Server4:    server4,
			Server8:    server4,
			RBVPrimary: primary,
			RBVReplica: replica,
			Client:     client,
		}, nil

	case PresetDefault:
		server4n := min(4, max(1, n/4))
		server8n := min(8, max(server4n, n/2))

		server4 := cpus[:server4n]
		server8 := cpus[:max(1, min(server8n, n))]

		primary := cpus[:server4n]
		replica := fallback("rbv_replica", cpus[server4n:min(server4n*2, n)], primary)

		client := fallback("client", cpus[min(server8n, n):],
			fallback("client", cpus[server4n:], cpus))

		return Layout{
			Server4:    server4,
			Server8:    server8,
			RBVPrimary: primary,
			RBVReplica: replica,
			Client:     client,
		}, nil
	}
	return Layout{}, errors.Errorf("unknown cpu preset %q", preset)
}

// WorkValidationSplit reserves the last server8 cpu for validation and
// leaves the rest for worker groups. A single-cpu layout shares it.
func (l Layout) WorkValidationSplit() (work, validation []int) {
	if len(l.Server8) > 1 {
		return l.Server8[:len(l.Server8)-1], l.Server8[len(l.Server8)-1:]
	}
	return l.Server8, l.Server8
}

// fallback returns ids when non-empty, otherwise the alternative, and
// logs which choice was made so the heuristic is auditable.
func fallback(role string, ids, alt []int) []int {
	if len(ids) > 0 {
		return ids
	}
	log.Debugf("cpu layout: role %s falls back to %s", role, Format(alt))
	return alt
}

func without(cpus, excluded []int) []int {
	drop := make(map[int]bool, len(excluded))
	for _, c := range excluded {
		drop[c] = true
	}
	var out []int
	for _, c := range cpus {
		if !drop[c] {
			out = append(out, c)
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
