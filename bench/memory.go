package bench

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/aoikida/Orthrus/clientlog"
	"github.com/aoikida/Orthrus/harness"
	"github.com/aoikida/Orthrus/ports"
	"github.com/aoikida/Orthrus/variants"
)

// Memory-tracking server builds write VmRSS samples to a fixed file
// name in the working directory; the name cannot be configured. The
// harness deletes any leftover before a case and renames the fresh
// file into the temp dir afterwards. Running two memory cases of the
// same variant concurrently would clobber each other.
func rawMemStatusPath(name string) string {
	return "memcached-memory_status-" + name + ".log"
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func moveIfExists(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := removeIfExists(dst); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

// RunMemory runs each variant's memory-tracking build under the same
// load and writes a report of RSS ratios against vanilla. RBV counts
// both processes; its ratio is the summed footprint.
func (e *Engine) RunMemory() error {
	logs := memoryLogs(e.opts)

	// A collect entry maps the fixed raw file a server writes to the
	// label it is reported under. The sync orthrus build reuses the
	// async build's raw name, so label and raw can differ.
	type collect struct {
		raw   string
		label string
	}
	type memCase struct {
		name     string // client log and report name
		caseName string // run log name
		collects []collect
		family   string
		launch   func(srv, replica ports.Range, ngroups int) []harness.Launch
		stagger  time.Duration
		twoPorts bool
	}

	seiDesc, err := variants.SEI(e.opts.SEIVariants[0], true)
	if err != nil {
		return err
	}

	cases := []memCase{
		{
			name: "vanilla", caseName: "vanilla_mem",
			collects: []collect{{"vanilla", "vanilla"}}, family: "vanilla", stagger: e.opts.Stagger,
			launch: func(srv, _ ports.Range, ngroups int) []harness.Launch {
				return []harness.Launch{
					e.serverLaunch(variants.Vanilla().MemBinary, srv.Base, ngroups, e.layout.Server4)}
			},
		},
		{
			name: "sei", caseName: "sei_mem",
			collects: []collect{{"sei", "sei"}}, family: "sei", stagger: e.opts.Stagger,
			launch: func(srv, _ ports.Range, ngroups int) []harness.Launch {
				return []harness.Launch{
					e.serverLaunch(seiDesc.MemBinary, srv.Base, ngroups, e.layout.Server4)}
			},
		},
		{
			name: "orthrus", caseName: "orthrus_mem",
			collects: []collect{{"orthrus", "orthrus"}}, family: "orthrus", stagger: e.opts.Stagger,
			launch: func(srv, _ ports.Range, ngroups int) []harness.Launch {
				return []harness.Launch{
					e.orthrusLaunch(variants.Orthrus(false).MemBinary, srv.Base, ngroups)}
			},
		},
	}
	if e.opts.OrthrusSync {
		cases = append(cases, memCase{
			name: "orthrus_sync", caseName: "orthrus_sync_mem",
			collects: []collect{{"orthrus", "orthrus_sync"}}, family: "orthrus", stagger: e.opts.Stagger,
			launch: func(srv, _ ports.Range, ngroups int) []harness.Launch {
				return []harness.Launch{
					e.orthrusLaunch(variants.Orthrus(true).MemBinary, srv.Base, ngroups)}
			},
		})
	}
	cases = append(cases, memCase{
		name: "rbv", caseName: "rbv_mem",
		collects: []collect{{"rbv-primary", "rbv-primary"}, {"rbv-replica", "rbv-replica"}},
		family:   "rbv",
		stagger:  rbvStagger, twoPorts: true,
		launch: func(srv, replica ports.Range, ngroups int) []harness.Launch {
			return e.rbvLaunches(variants.RBV(false), true, srv, replica, ngroups)
		},
	})

	// report label -> collected status file
	statusFiles := map[string]string{}

	for _, mc := range cases {
		ngroups := e.opts.NGroupsFor(mc.family)
		rps, err := e.opts.RPSFor(mc.family)
		if err != nil {
			return err
		}

		var srv, replica ports.Range
		if mc.twoPorts {
			srv, replica, err = e.picker.PickDisjointRanges(ngroups, e.opts.PortStart, e.opts.PortEnd)
		} else {
			srv, err = e.pickPorts(ngroups)
		}
		if err != nil {
			return err
		}

		for _, c := range mc.collects {
			if err := removeIfExists(rawMemStatusPath(c.raw)); err != nil {
				return errors.Wrap(err, "clear stale memory status")
			}
		}

		client := e.clientLaunch(srv.Base, logs.clientLogArg(mc.name), ngroups, rps)
		if err := e.runCase(logs, mc.caseName, mc.name, mc.launch(srv, replica, ngroups), client, mc.stagger); err != nil {
			return err
		}

		for _, c := range mc.collects {
			dst := e.opts.memStatusPath(c.label)
			if err := moveIfExists(rawMemStatusPath(c.raw), dst); err != nil {
				return errors.Wrapf(err, "collect memory status for %s", c.label)
			}
			statusFiles[c.label] = dst
		}
	}

	return e.writeMemReport(statusFiles)
}

func (e *Engine) writeMemReport(statusFiles map[string]string) error {
	usage := map[string]clientlog.MemUsage{}
	for label, path := range statusFiles {
		u, err := clientlog.ParseMemoryFile(path)
		if err != nil {
			return errors.Wrapf(err, "memory samples for %s", label)
		}
		usage[label] = u
	}

	vanilla, ok := usage["vanilla"]
	if !ok {
		return errors.New("no vanilla memory samples to compare against")
	}
	rbv := usage["rbv-primary"].Add(usage["rbv-replica"])

	var b strings.Builder
	section := func(title string, pick func(clientlog.MemUsage) float64) {
		b.WriteString("---------- results(" + title + ") ----------\n")
		b.WriteString(fmtRatio("Orthrus(async)", pick(usage["orthrus"]), pick(vanilla)))
		if u, ok := usage["orthrus_sync"]; ok {
			b.WriteString(fmtRatio("Orthrus(sync)", pick(u), pick(vanilla)))
		}
		if u, ok := usage["sei"]; ok {
			b.WriteString(fmtRatio("SEI", pick(u), pick(vanilla)))
		}
		b.WriteString(fmtRatio("RBV", pick(rbv), pick(vanilla)))
	}
	section("peak", func(u clientlog.MemUsage) float64 { return float64(u.PeakKB) })
	section("avg", func(u clientlog.MemUsage) float64 { return float64(u.AvgKB) })

	out := e.store.MemReportPath(e.opts.Tag)
	if err := os.WriteFile(out, []byte(b.String()), 0644); err != nil {
		return errors.Wrap(err, "write memory report")
	}
	log.WithField("report", out).Info("wrote memory report")
	return nil
}
