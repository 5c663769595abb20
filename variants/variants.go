// Package variants enumerates the server implementations under
// comparison. The set is closed: every runnable configuration maps to
// one descriptor here, so orchestration code never improvises binary
// names or launch conventions.
package variants

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SEI execution-redundancy flavors. "default" is accepted as an alias.
var (
	SEIChoices = []string{"er2", "er5", "er10", "dynamicNway", "core", "dynamicCore"}

	seiAliases = map[string]string{"default": "er2"}

	seiBinary = map[string]string{
		"er2":         "memcached_sei_er2",
		"er5":         "memcached_sei_er5",
		"er10":        "memcached_sei_er10",
		"dynamicNway": "memcached_sei_dynamic_nway",
		"core":        "memcached_sei_core",
		"dynamicCore": "memcached_sei_dynamic_core",
	}

	// Series names frozen for sweep outputs; changing them would break
	// comparisons against previously recorded sweeps.
	seiSeries = map[string]string{
		"er2":         "sei_er2",
		"er5":         "sei_er5",
		"er10":        "sei_er10",
		"dynamicNway": "sei_dynamicNway_rb_er5",
		"core":        "sei_core",
		"dynamicCore": "sei_dynamicCore_rb",
	}
)

// Descriptor names the binaries and launch convention of one variant.
type Descriptor struct {
	Name       string // case name, e.g. "vanilla", "sei_er5", "rbv"
	Binary     string // server binary file name
	MemBinary  string // shadow binary emitting VmRSS samples
	Series     string // series name in aggregated outputs
	Replicated bool   // launches a replica first, primary second
	CPUSetHint bool   // honors SCEE_WORK_CPUSET / SCEE_VALIDATION_CPUSET
	SyncMode   bool   // synchronous validation flavor
}

// ReplicaBinary returns the replica-role binary for replicated
// variants; primary-role naming is the Binary field.
func (d Descriptor) ReplicaBinary(mem bool) string {
	if !d.Replicated {
		return ""
	}
	if mem {
		return "memcached_rbv_replica_mem"
	}
	return "memcached_rbv_replica"
}

// BinaryPath resolves a binary file name under the build tree.
func BinaryPath(buildDir, name string) string {
	return filepath.Join(buildDir, "ae", "memcached", name)
}

// ClientBinary is the load generator shared by all variants.
const ClientBinary = "memcached_client"

// NormalizeSEI resolves aliases and validates one flavor name.
func NormalizeSEI(v string) (string, error) {
	v = strings.TrimSpace(v)
	if canon, ok := seiAliases[v]; ok {
		v = canon
	}
	if _, ok := seiBinary[v]; !ok {
		return "", errors.Errorf("unknown sei variant %q", v)
	}
	return v, nil
}

// ParseSEIList validates a comma-separated flavor list, dropping
// duplicates while preserving order.
func ParseSEIList(s string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := NormalizeSEI(part)
		if err != nil {
			return nil, err
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, errors.New("sei variant list must be non-empty")
	}
	return out, nil
}

func Vanilla() Descriptor {
	return Descriptor{
		Name:      "vanilla",
		Binary:    "memcached_vanilla",
		MemBinary: "memcached_vanilla_mem",
		Series:    "vanilla",
	}
}

// SEI returns the descriptor for one flavor. When the invocation runs a
// single flavor its case name degrades to plain "sei" for artifact
// compatibility; multi-flavor runs qualify each name.
func SEI(flavor string, qualified bool) (Descriptor, error) {
	v, err := NormalizeSEI(flavor)
	if err != nil {
		return Descriptor{}, err
	}
	name := "sei"
	if qualified {
		name = "sei_" + v
	}
	return Descriptor{
		Name:      name,
		Binary:    seiBinary[v],
		MemBinary: seiBinary[v] + "_mem",
		Series:    seiSeries[v],
	}, nil
}

func SEISeries(flavor string) string {
	if canon, ok := seiAliases[flavor]; ok {
		flavor = canon
	}
	return seiSeries[flavor]
}

func Orthrus(sync bool) Descriptor {
	d := Descriptor{
		Name:       "orthrus",
		Binary:     "memcached_orthrus",
		MemBinary:  "memcached_orthrus_mem",
		Series:     "orthrus",
		CPUSetHint: true,
	}
	if sync {
		d.Name = "orthrus_sync"
		d.Binary = "memcached_orthrus_sync"
		d.MemBinary = "memcached_orthrus_sync_mem"
		d.Series = "orthrus_sync"
		d.SyncMode = true
	}
	return d
}

func RBV(sync bool) Descriptor {
	d := Descriptor{
		Name:       "rbv",
		Binary:     "memcached_rbv_primary",
		MemBinary:  "memcached_rbv_primary_mem",
		Series:     "rbv",
		Replicated: true,
	}
	if sync {
		d.Name = "rbv_sync"
		d.Series = "rbv_sync"
		d.SyncMode = true
	}
	return d
}

// NGroups resolves the worker-group count for a variant family under a
// preset: fair4c fixes per-family counts, default uses the flag value.
// An explicit override always wins.
func NGroups(preset, family string, flag int, override *int) int {
	if override != nil {
		return *override
	}
	if preset == "fair4c" {
		switch family {
		case "vanilla", "sei":
			return 8
		case "orthrus":
			return 6
		case "rbv":
			return 4
		}
	}
	return flag
}

// DeriveRPS converts a per-thread target into the client's rps
// argument. The client computes rps_per_thread = floor(rps * ngroups /
// nclients), so the argument is rounded up to not undershoot.
func DeriveRPS(override *int, perThread *float64, flat, nclients, ngroups int) (int, error) {
	if override != nil {
		if *override < 0 {
			return 0, errors.New("rps override must be >= 0")
		}
		return *override, nil
	}
	if perThread == nil {
		return flat, nil
	}
	if *perThread <= 0 {
		return 0, nil
	}
	v := int(math.Ceil(*perThread * float64(nclients) / float64(ngroups)))
	if v < 1 {
		v = 1
	}
	return v, nil
}
