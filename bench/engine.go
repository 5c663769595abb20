package bench

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/aoikida/Orthrus/clientlog"
	"github.com/aoikida/Orthrus/cpuset"
	"github.com/aoikida/Orthrus/harness"
	"github.com/aoikida/Orthrus/ports"
	"github.com/aoikida/Orthrus/results"
	"github.com/aoikida/Orthrus/variants"
)

// The replica must be listening before the primary connects to it, so
// replicated cases stagger launches further apart.
const rbvStagger = 2 * time.Second

// caseRunner executes one assembled case. Satisfied by
// harness.Runner; tests substitute a recorder.
type caseRunner interface {
	Run(harness.Case) error
}

type Engine struct {
	opts   Options
	layout cpuset.Layout
	picker *ports.Picker
	runner caseRunner
	client harness.Executor
	store  results.Store
}

// New validates the options, resolves the CPU layout, verifies every
// binary the mode needs, and prepares the remote load host if one is
// configured.
func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	layout, err := cpuset.Choose(opts.Preset, cpuset.Available())
	if err != nil {
		return nil, err
	}

	var client harness.Executor = harness.LocalExec{}
	if opts.Remote() {
		ssh := harness.SSHExec{Host: opts.ClientSSH, Workdir: opts.ClientWorkdir}
		if err := ssh.Mkdir(opts.ClientTempDir); err != nil {
			return nil, errors.Wrapf(err, "prepare %s on %s", opts.ClientTempDir, opts.ClientSSH)
		}
		if err := ssh.CheckExecutable(opts.RemoteClientBin); err != nil {
			return nil, err
		}
		client = ssh
	}

	store, err := results.NewStore(opts.ResultsDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.TempDir, 0755); err != nil {
		return nil, errors.Wrap(err, "create temp dir")
	}

	e := &Engine{
		opts:   opts,
		layout: layout,
		picker: ports.NewPicker(),
		runner: harness.NewRunner(client),
		client: client,
		store:  store,
	}
	if err := e.checkBinaries(); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"preset":      opts.Preset,
		"server4":     cpuset.Format(layout.Server4),
		"server8":     cpuset.Format(layout.Server8),
		"rbv_primary": cpuset.Format(layout.RBVPrimary),
		"rbv_replica": cpuset.Format(layout.RBVReplica),
		"client":      cpuset.Format(layout.Client),
	}).Info("cpu layout")
	if opts.Preset == cpuset.PresetFair4C {
		work, val := layout.WorkValidationSplit()
		log.WithFields(log.Fields{
			"work":       cpuset.Format(work),
			"validation": cpuset.Format(val),
		}).Info("orthrus cpusets")
	}
	return e, nil
}

// Run executes the configured mode end to end.
func (e *Engine) Run() error {
	if e.opts.Tag != "" {
		if _, err := results.SanitizeTag(e.opts.Tag); err != nil {
			return err
		}
		if err := e.writeConfigLog(); err != nil {
			return err
		}
	}
	if e.opts.Mode == "throughput" || e.opts.Mode == "all" {
		if _, err := e.RunThroughput(); err != nil {
			return err
		}
	}
	if e.opts.Mode == "memory" || e.opts.Mode == "all" {
		if err := e.RunMemory(); err != nil {
			return err
		}
	}
	return nil
}

// checkBinaries stats every local binary the mode will execute so a
// missing build artifact fails before any server is launched.
func (e *Engine) checkBinaries() error {
	var names []string
	if !e.opts.Remote() {
		names = append(names, variants.ClientBinary)
	}
	mem := func(d variants.Descriptor) {
		names = append(names, d.MemBinary)
		if d.Replicated {
			names = append(names, d.ReplicaBinary(true))
		}
	}
	thr := func(d variants.Descriptor) {
		names = append(names, d.Binary)
		if d.Replicated {
			names = append(names, d.ReplicaBinary(false))
		}
	}
	if e.opts.Mode == "throughput" || e.opts.Mode == "all" {
		thr(variants.Vanilla())
		for _, v := range e.opts.SEIVariants {
			d, err := variants.SEI(v, true)
			if err != nil {
				return err
			}
			thr(d)
		}
		thr(variants.Orthrus(false))
		if e.opts.OrthrusSync {
			thr(variants.Orthrus(true))
		}
		thr(variants.RBV(false))
	}
	if e.opts.Mode == "memory" || e.opts.Mode == "all" {
		mem(variants.Vanilla())
		d, err := variants.SEI(e.opts.SEIVariants[0], true)
		if err != nil {
			return err
		}
		mem(d)
		mem(variants.Orthrus(false))
		if e.opts.OrthrusSync {
			mem(variants.Orthrus(true))
		}
		mem(variants.RBV(false))
	}
	for _, name := range names {
		path := e.opts.binPath(name)
		if _, err := os.Stat(path); err != nil {
			return errors.Errorf("required binary missing: %s", path)
		}
	}
	return nil
}

func (e *Engine) pickPorts(ngroups int) (ports.Range, error) {
	return e.picker.PickRange(ngroups, e.opts.PortStart, e.opts.PortEnd)
}

// clientLaunch builds the load generator invocation. The client's
// positional argument order is fixed by the binary.
func (e *Engine) clientLaunch(port int, logArg string, ngroups, rps int) harness.Launch {
	args := []string{
		e.opts.ServerIP,
		strconv.Itoa(port),
		logArg,
		strconv.Itoa(ngroups),
		strconv.Itoa(e.opts.NClients),
		strconv.Itoa(e.opts.NSetsExp),
		strconv.Itoa(e.opts.NGetsExp),
		strconv.Itoa(rps),
	}
	if e.opts.ReadPct != nil {
		args = append(args, strconv.FormatFloat(*e.opts.ReadPct, 'g', -1, 64))
	}
	l := harness.Launch{Path: e.opts.ClientBin(), Args: args}
	if e.opts.Remote() {
		if e.opts.ClientPinCPUs != "" {
			cpus, err := cpuset.Parse(e.opts.ClientPinCPUs)
			if err == nil {
				l.CPUs = cpus
			} else {
				log.WithError(err).Warn("ignoring unparsable client cpu list")
			}
		}
	} else if e.opts.Pin {
		l.CPUs = e.layout.Client
	}
	return l
}

func (e *Engine) pin(cpus []int) []int {
	if !e.opts.Pin {
		return nil
	}
	return cpus
}

func (e *Engine) serverLaunch(binary string, port, ngroups int, cpus []int) harness.Launch {
	return harness.Launch{
		Path: e.opts.binPath(binary),
		Args: []string{strconv.Itoa(port), strconv.Itoa(ngroups)},
		CPUs: e.pin(cpus),
	}
}

// orthrusLaunch adds the work/validation cpuset hints that split the
// server's pool between execution and validation under fair4c.
func (e *Engine) orthrusLaunch(binary string, port, ngroups int) harness.Launch {
	l := e.serverLaunch(binary, port, ngroups, e.layout.Server8)
	if e.opts.Preset == cpuset.PresetFair4C {
		work, val := e.layout.WorkValidationSplit()
		l.Env = []string{
			"SCEE_WORK_CPUSET=" + cpuset.Format(work),
			"SCEE_VALIDATION_CPUSET=" + cpuset.Format(val),
		}
	}
	return l
}

// rbvLaunches yields the replica and primary launches in start order.
// The primary is told where its replica listens; replica traffic stays
// on loopback regardless of the client-facing address.
func (e *Engine) rbvLaunches(d variants.Descriptor, mem bool, srv, replica ports.Range, ngroups int) []harness.Launch {
	mode := "--async"
	if d.SyncMode || (mem && e.opts.RBVSync) {
		mode = "--sync"
	}
	primaryBin := d.Binary
	if mem {
		primaryBin = d.MemBinary
	}
	return []harness.Launch{
		{
			Path: e.opts.binPath(d.ReplicaBinary(mem)),
			Args: []string{strconv.Itoa(replica.Base), strconv.Itoa(ngroups)},
			CPUs: e.pin(e.layout.RBVReplica),
		},
		{
			Path: e.opts.binPath(primaryBin),
			Args: []string{
				strconv.Itoa(srv.Base),
				strconv.Itoa(ngroups),
				strconv.Itoa(replica.Base),
				"127.0.0.1",
				mode,
			},
			CPUs: e.pin(e.layout.RBVPrimary),
		},
	}
}

// prepareClientLog removes stale client output. The client appends to
// its log, so a leftover file from a previous run would be parsed as
// extra blocks.
func (e *Engine) prepareClientLog(logs logFiles, name string) error {
	if err := os.Remove(logs.localClientLog(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove stale client log")
	}
	if logs.remote {
		if err := e.client.RemoveFile(logs.clientLogArg(name)); err != nil {
			return errors.Wrap(err, "remove stale remote client log")
		}
	}
	return nil
}

func (e *Engine) fetchClientLog(logs logFiles, name string) error {
	if !logs.remote {
		return nil
	}
	return e.client.FetchFile(logs.clientLogArg(name), logs.localClientLog(name))
}

// runCase executes one case. caseName names the run log; clientName
// names the client log, which memory cases key by variant rather than
// by case so the prepare and fetch paths match what the client writes.
func (e *Engine) runCase(logs logFiles, caseName, clientName string, servers []harness.Launch, client harness.Launch, stagger time.Duration) error {
	if err := e.prepareClientLog(logs, clientName); err != nil {
		return err
	}
	log.WithField("case", caseName).Info("running case")
	err := e.runner.Run(harness.Case{
		Name:    caseName,
		Servers: servers,
		Client:  client,
		LogPath: logs.runLog(caseName),
		Timeout: e.opts.Timeout,
		Stagger: stagger,
	})
	if err != nil {
		return err
	}
	return e.fetchClientLog(logs, clientName)
}

// RunThroughput executes every configured variant once and writes the
// point artifacts. The parsed document is keyed by case name; a single
// sei flavor keeps the bare "sei" key so older artifacts stay
// comparable.
func (e *Engine) RunThroughput() (results.PointDoc, error) {
	logs := throughputLogs(e.opts)
	qualified := len(e.opts.SEIVariants) > 1
	doc := results.PointDoc{}

	run := func(name string, servers []harness.Launch, port ports.Range, family string, stagger time.Duration) error {
		rps, err := e.opts.RPSFor(family)
		if err != nil {
			return err
		}
		client := e.clientLaunch(port.Base, logs.clientLogArg(name), e.opts.NGroupsFor(family), rps)
		if err := e.runCase(logs, name, name, servers, client, stagger); err != nil {
			return err
		}
		rec, err := clientlog.ParseOne(logs.localClientLog(name))
		if err != nil {
			return err
		}
		doc[name] = rec
		log.WithFields(log.Fields{"case": name, "throughput": rec.Throughput}).Info("case complete")
		return nil
	}

	single := func(d variants.Descriptor, family string, cpus []int) error {
		port, err := e.pickPorts(e.opts.NGroupsFor(family))
		if err != nil {
			return err
		}
		var srv harness.Launch
		if d.CPUSetHint {
			srv = e.orthrusLaunch(d.Binary, port.Base, e.opts.NGroupsFor(family))
		} else {
			srv = e.serverLaunch(d.Binary, port.Base, e.opts.NGroupsFor(family), cpus)
		}
		return run(d.Name, []harness.Launch{srv}, port, family, e.opts.Stagger)
	}

	if err := single(variants.Vanilla(), "vanilla", e.layout.Server4); err != nil {
		return nil, err
	}
	for _, v := range e.opts.SEIVariants {
		d, err := variants.SEI(v, qualified)
		if err != nil {
			return nil, err
		}
		if err := single(d, "sei", e.layout.Server4); err != nil {
			return nil, err
		}
	}
	if err := single(variants.Orthrus(false), "orthrus", nil); err != nil {
		return nil, err
	}
	if e.opts.OrthrusSync {
		if err := single(variants.Orthrus(true), "orthrus", nil); err != nil {
			return nil, err
		}
	}

	replicated := func(d variants.Descriptor) error {
		ngroups := e.opts.NGroupsFor("rbv")
		srv, replica, err := e.picker.PickDisjointRanges(ngroups, e.opts.PortStart, e.opts.PortEnd)
		if err != nil {
			return err
		}
		return run(d.Name, e.rbvLaunches(d, false, srv, replica, ngroups), srv, "rbv", rbvStagger)
	}
	if err := replicated(variants.RBV(false)); err != nil {
		return nil, err
	}
	if e.opts.RBVSync {
		if err := replicated(variants.RBV(true)); err != nil {
			return nil, err
		}
	}

	if err := e.store.SavePoint(e.opts.Tag, doc); err != nil {
		return nil, err
	}
	log.WithField("report", e.store.ReportPath(e.opts.Tag)).Info("wrote throughput report")
	return doc, nil
}

func fmtRatio(label string, num, den float64) string {
	return fmt.Sprintf("ratio (%s vs Vanilla): %.6g\n", label, num/den)
}
