package bench

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoikida/Orthrus/clientlog"
	"github.com/aoikida/Orthrus/harness"
	"github.com/aoikida/Orthrus/ports"
	"github.com/aoikida/Orthrus/results"
	"github.com/aoikida/Orthrus/variants"
)

// touchBinaries fakes a build tree so engine construction can verify
// binary presence without a real build.
func touchBinaries(t *testing.T, buildDir string, names ...string) {
	t.Helper()
	dir := filepath.Join(buildDir, "ae", "memcached")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0755))
	}
}

func throughputBinaries() []string {
	return []string{
		"memcached_client",
		"memcached_vanilla",
		"memcached_sei_er2",
		"memcached_orthrus",
		"memcached_rbv_primary",
		"memcached_rbv_replica",
	}
}

func memoryBinaries() []string {
	return []string{
		"memcached_vanilla_mem",
		"memcached_sei_er2_mem",
		"memcached_orthrus_mem",
		"memcached_rbv_primary_mem",
		"memcached_rbv_replica_mem",
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	root := t.TempDir()
	o := DefaultOptions()
	o.BuildDir = filepath.Join(root, "build")
	o.ResultsDir = filepath.Join(root, "results")
	o.TempDir = filepath.Join(root, "temp")
	touchBinaries(t, o.BuildDir, throughputBinaries()...)
	return o
}

func TestValidateRejectsBadInput(t *testing.T) {
	for name, mutate := range map[string]func(*Options){
		"bad ip":            func(o *Options) { o.ServerIP = "loadhost" },
		"ipv6 ip":           func(o *Options) { o.ServerIP = "::1" },
		"inverted ports":    func(o *Options) { o.PortStart = 40000; o.PortEnd = 20000 },
		"zero clients":      func(o *Options) { o.NClients = 0 },
		"unknown mode":      func(o *Options) { o.Mode = "latency" },
		"unknown variant":   func(o *Options) { o.SEIVariants = []string{"er3"} },
		"no variants":       func(o *Options) { o.SEIVariants = nil },
		"read pct too big":  func(o *Options) { pct := 150.0; o.ReadPct = &pct },
		"multi variant mem": func(o *Options) { o.SEIVariants = []string{"er2", "er5"}; o.Mode = "memory" },
	} {
		t.Run(name, func(t *testing.T) {
			o := DefaultOptions()
			mutate(&o)
			assert.Error(t, o.Validate())
		})
	}
}

func TestValidateReturnsConfigError(t *testing.T) {
	o := DefaultOptions()
	o.Mode = "latency"
	var ce *ConfigError
	require.ErrorAs(t, o.Validate(), &ce)
	assert.Equal(t, "mode", ce.Option)

	so := DefaultSweepOptions()
	so.Repeats = 0
	require.ErrorAs(t, so.validate(), &ce)
	assert.Equal(t, "repeats", ce.Option)
}

func TestValidateNormalizes(t *testing.T) {
	o := DefaultOptions()
	ratio := 0.95
	o.ReadPct = &ratio
	o.SEIVariants = []string{"default"}
	require.NoError(t, o.Validate())
	assert.Equal(t, 95.0, *o.ReadPct)
	assert.Equal(t, []string{"er2"}, o.SEIVariants)

	pct := 95.0
	o.ReadPct = &pct
	require.NoError(t, o.Validate())
	assert.Equal(t, 95.0, *o.ReadPct)
}

func TestValidateDefaultsRemoteClientBin(t *testing.T) {
	o := DefaultOptions()
	o.ClientSSH = "user@loadhost"
	require.NoError(t, o.Validate())
	assert.Equal(t, filepath.Join("build", "ae", "memcached", "memcached_client"), o.RemoteClientBin)
}

func TestNGroupsForFair4C(t *testing.T) {
	o := DefaultOptions()
	o.Preset = "fair4c"
	assert.Equal(t, 8, o.NGroupsFor("vanilla"))
	assert.Equal(t, 8, o.NGroupsFor("sei"))
	assert.Equal(t, 6, o.NGroupsFor("orthrus"))
	assert.Equal(t, 4, o.NGroupsFor("rbv"))

	two := 2
	o.RBVNGroups = &two
	assert.Equal(t, 2, o.NGroupsFor("rbv"))
}

func TestRPSForPerThreadDerivation(t *testing.T) {
	o := DefaultOptions()
	o.Preset = "fair4c"
	o.NClients = 16
	pt := 100.0
	o.RPSPerThread = &pt
	// ceil(100*16/8) for vanilla's 8 groups
	rps, err := o.RPSFor("vanilla")
	require.NoError(t, err)
	assert.Equal(t, 200, rps)
	// rbv has 4 groups under fair4c
	rps, err = o.RPSFor("rbv")
	require.NoError(t, err)
	assert.Equal(t, 400, rps)

	override := 1234
	o.VanillaRPS = &override
	rps, err = o.RPSFor("vanilla")
	require.NoError(t, err)
	assert.Equal(t, 1234, rps)
}

func TestLogFilePaths(t *testing.T) {
	o := DefaultOptions()
	o.TempDir = "/work/temp"
	o.Tag = "c16.r1"
	logs := throughputLogs(o)
	assert.Equal(t, "/work/temp/memcached-throughput-client-vanilla.c16.r1.log", logs.localClientLog("vanilla"))
	assert.Equal(t, logs.localClientLog("vanilla"), logs.clientLogArg("vanilla"))
	assert.Equal(t, "/work/temp/run-memcached-throughput-vanilla.c16.r1.log", logs.runLog("vanilla"))

	o.ClientSSH = "user@loadhost"
	remote := memoryLogs(o)
	assert.Equal(t, "/tmp/orthrus-memcached/memcached-mem-client-rbv.c16.r1.log", remote.clientLogArg("rbv"))
	assert.Equal(t, "/work/temp/memcached-mem-client-rbv.c16.r1.log", remote.localClientLog("rbv"))
}

func TestEngineClientLaunch(t *testing.T) {
	o := testOptions(t)
	e, err := New(o)
	require.NoError(t, err)

	l := e.clientLaunch(20100, "/work/temp/c.log", 8, 200)
	assert.Equal(t, variants.BinaryPath(o.BuildDir, "memcached_client"), l.Path)
	assert.Equal(t, []string{"127.0.0.1", "20100", "/work/temp/c.log", "8", "16", "18", "16", "200"}, l.Args)
	assert.Equal(t, e.layout.Client, l.CPUs)

	pct := 95.0
	e.opts.ReadPct = &pct
	l = e.clientLaunch(20100, "/work/temp/c.log", 8, 0)
	assert.Equal(t, "95", l.Args[len(l.Args)-1])

	e.opts.Pin = false
	l = e.clientLaunch(20100, "/work/temp/c.log", 8, 0)
	assert.Empty(t, l.CPUs)
}

func TestEngineOrthrusLaunchFair4C(t *testing.T) {
	o := testOptions(t)
	o.Preset = "fair4c"
	e, err := New(o)
	require.NoError(t, err)

	l := e.orthrusLaunch("memcached_orthrus", 21000, 6)
	assert.Equal(t, []string{"21000", "6"}, l.Args)
	require.Len(t, l.Env, 2)
	assert.True(t, strings.HasPrefix(l.Env[0], "SCEE_WORK_CPUSET="))
	assert.True(t, strings.HasPrefix(l.Env[1], "SCEE_VALIDATION_CPUSET="))

	o2 := testOptions(t)
	e2, err := New(o2)
	require.NoError(t, err)
	assert.Empty(t, e2.orthrusLaunch("memcached_orthrus", 21000, 3).Env)
}

func TestEngineRBVLaunches(t *testing.T) {
	o := testOptions(t)
	e, err := New(o)
	require.NoError(t, err)

	srv := ports.Range{Base: 22000, Width: 4}
	rep := ports.Range{Base: 23000, Width: 4}

	ls := e.rbvLaunches(variants.RBV(false), false, srv, rep, 4)
	require.Len(t, ls, 2)
	// replica starts first
	assert.Equal(t, variants.BinaryPath(o.BuildDir, "memcached_rbv_replica"), ls[0].Path)
	assert.Equal(t, []string{"23000", "4"}, ls[0].Args)
	assert.Equal(t, []string{"22000", "4", "23000", "127.0.0.1", "--async"}, ls[1].Args)

	ls = e.rbvLaunches(variants.RBV(true), false, srv, rep, 4)
	assert.Equal(t, "--sync", ls[1].Args[len(ls[1].Args)-1])

	ls = e.rbvLaunches(variants.RBV(false), true, srv, rep, 4)
	assert.Equal(t, variants.BinaryPath(o.BuildDir, "memcached_rbv_replica_mem"), ls[0].Path)
	assert.Equal(t, "--sync", ls[1].Args[len(ls[1].Args)-1])
}

func TestEngineMissingBinary(t *testing.T) {
	o := testOptions(t)
	require.NoError(t, os.Remove(filepath.Join(o.BuildDir, "ae", "memcached", "memcached_orthrus")))
	_, err := New(o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "memcached_orthrus")
}

func TestWriteConfigLog(t *testing.T) {
	o := testOptions(t)
	o.Preset = "fair4c"
	o.Tag = "cfgtest"
	e, err := New(o)
	require.NoError(t, err)
	require.NoError(t, e.writeConfigLog())

	data, err := os.ReadFile(e.store.ConfigPath("cfgtest"))
	require.NoError(t, err)
	cfg := string(data)
	assert.Contains(t, cfg, "preset=fair4c")
	assert.Contains(t, cfg, "port_range=20000-40000")
	assert.Contains(t, cfg, "client_ssh=(local)")
	assert.Contains(t, cfg, "ngroups: vanilla=8 sei=8 orthrus=6 rbv=4")
	assert.Contains(t, cfg, "sei_variants=er2")
	assert.Contains(t, cfg, "orthrus_env: SCEE_WORK_CPUSET=")
	assert.Contains(t, cfg, "orthrus_sync_server_binary=(disabled)")
	assert.Contains(t, cfg, "sha: Orthrus=")
}

func TestPointTag(t *testing.T) {
	assert.Equal(t, "sweep.rps1000.seier2.r1", pointTag("sweep", 1000, "er2", 1))
}

func TestResumable(t *testing.T) {
	doc := results.PointDoc{
		"vanilla": {}, "sei": {}, "orthrus": {}, "rbv": {},
	}
	assert.True(t, resumable(doc, false))
	assert.False(t, resumable(doc, true))
	doc["orthrus_sync"] = clientlog.Record{}
	assert.True(t, resumable(doc, true))
	delete(doc, "rbv")
	assert.False(t, resumable(doc, false))
}

func TestRunFromPoint(t *testing.T) {
	doc := results.PointDoc{
		"vanilla": {Throughput: 300000},
		"sei":     {Throughput: 250000},
		"orthrus": {Throughput: 200000},
		"rbv":     {Throughput: 150000},
	}
	run := runFromPoint(doc, 1000, "er2", 1, "t", "results/p.json", true)
	assert.Equal(t, 300000.0, run.Vanilla)
	assert.Equal(t, 250000.0, run.SEI)
	assert.Nil(t, run.OrthrusSync)
	assert.True(t, run.Resumed)

	doc["orthrus_sync"] = clientlog.Record{Throughput: 180000}
	run = runFromPoint(doc, 1000, "er2", 1, "t", "results/p.json", false)
	require.NotNil(t, run.OrthrusSync)
	assert.Equal(t, 180000.0, *run.OrthrusSync)
}

func TestAggregateRunsPoolsBaseSeries(t *testing.T) {
	o := DefaultSweepOptions()
	o.RPSList = []int{100}
	o.SEIVariants = []string{"er2", "er5"}
	o.Repeats = 1

	runs := []results.Run{
		{RPS: 100, SEIVariant: "er2", Vanilla: 300, SEI: 250, Orthrus: 200, RBV: 150},
		{RPS: 100, SEIVariant: "er5", Vanilla: 310, SEI: 240, Orthrus: 210, RBV: 160},
	}
	series, err := aggregateRuns(o, runs)
	require.NoError(t, err)
	// base series pool both flavors' runs
	assert.Equal(t, 305.0, *series["vanilla"][0])
	assert.Equal(t, 205.0, *series["orthrus"][0])
	// flavor series stay separate
	assert.Equal(t, 250.0, *series["sei_er2"][0])
	assert.Equal(t, 240.0, *series["sei_er5"][0])
	assert.NotContains(t, series, "orthrus_sync")
}

func TestBuildSweepDocCarriesPerThreadSeries(t *testing.T) {
	o := DefaultSweepOptions()
	o.RPSList = []int{100}
	o.SEIVariants = []string{"er2"}
	o.Base.NClients = 10

	runs := []results.Run{
		{RPS: 100, SEIVariant: "er2", Vanilla: 300, SEI: 250, Orthrus: 200, RBV: 150},
	}
	series, err := aggregateRuns(o, runs)
	require.NoError(t, err)

	doc := buildSweepDoc(o, runs, series)
	require.Contains(t, doc.SeriesPerThread, "vanilla")
	assert.Equal(t, 30.0, *doc.SeriesPerThread["vanilla"][0])
	assert.Equal(t, 25.0, *doc.SeriesPerThread["sei_er2"][0])
	assert.Equal(t, o.Base.Timeout, doc.Timeout.Std())
	assert.Equal(t, o.Base.Stagger, doc.Stagger.Std())
}

// memCaseRecorder stands in for the process runner and emits the
// VmRSS status files the servers would have written.
type memCaseRecorder struct {
	cases []harness.Case
}

func (r *memCaseRecorder) Run(c harness.Case) error {
	r.cases = append(r.cases, c)
	for _, role := range []string{"vanilla", "sei", "orthrus", "rbv-primary", "rbv-replica"} {
		if err := os.WriteFile(rawMemStatusPath(role), []byte("VmRSS:\t  102400 kB\n"), 0644); err != nil {
			return err
		}
	}
	return nil
}

func TestRunMemoryClientLogPerVariant(t *testing.T) {
	o := testOptions(t)
	touchBinaries(t, o.BuildDir, memoryBinaries()...)
	o.Mode = "memory"
	e, err := New(o)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	// A leftover client log keyed by variant must be cleared before the
	// run, since the client appends to it.
	logs := memoryLogs(e.opts)
	stale := logs.localClientLog("vanilla")
	require.NoError(t, os.WriteFile(stale, []byte("leftover\n"), 0644))

	rec := &memCaseRecorder{}
	e.runner = rec
	require.NoError(t, e.RunMemory())

	require.Len(t, rec.cases, 4)
	assert.Equal(t, "vanilla_mem", rec.cases[0].Name)
	assert.Equal(t, logs.clientLogArg("vanilla"), rec.cases[0].Client.Args[2])
	assert.Equal(t, "rbv_mem", rec.cases[3].Name)
	assert.Equal(t, logs.clientLogArg("rbv"), rec.cases[3].Client.Args[2])

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))

	report, err := os.ReadFile(e.store.MemReportPath(""))
	require.NoError(t, err)
	assert.Contains(t, string(report), "ratio (RBV vs Vanilla): 2")
}

func TestMoveIfExists(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.log")
	dst := filepath.Join(dir, "sub", "dst.log")

	// missing source is not an error
	require.NoError(t, moveIfExists(src, dst))

	require.NoError(t, os.WriteFile(src, []byte("a"), 0644))
	require.NoError(t, moveIfExists(src, dst))
	_, err := os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	// destination is replaced, not appended
	require.NoError(t, os.WriteFile(src, []byte("b"), 0644))
	require.NoError(t, moveIfExists(src, dst))
	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}
