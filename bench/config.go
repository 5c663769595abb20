package bench

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/aoikida/Orthrus/cpuset"
	"github.com/aoikida/Orthrus/results"
	"github.com/aoikida/Orthrus/variants"
)

// libseiBuild records how each SEI flavor's instrumentation library is
// configured, for the config artifact only.
var libseiBuild = map[string]struct{ dir, flags string }{
	"er2":         {"build_er2_nomig", "EXECUTION_REDUNDANCY=2 (no ROLLBACK, no EXECUTION_CORE_REDUNDANCY)"},
	"er5":         {"build_er5_nomig", "EXECUTION_REDUNDANCY=5 (no ROLLBACK, no EXECUTION_CORE_REDUNDANCY)"},
	"er10":        {"build_er10_nomig", "EXECUTION_REDUNDANCY=10 (no ROLLBACK, no EXECUTION_CORE_REDUNDANCY)"},
	"dynamicNway": {"build_dyn_nway_er5_rb", "ROLLBACK=1 EXECUTION_REDUNDANCY=5 (dynamic redundancy via __begin_n)"},
	"core":        {"build_core1_only", "ROLLBACK=1 EXECUTION_CORE_REDUNDANCY=1 (core redundancy)"},
	"dynamicCore": {"build_dyn_core_rb", "ROLLBACK=1 EXECUTION_REDUNDANCY=2 (dynamic core migration via __begin_core_redundancy)"},
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// writeConfigLog captures every knob that shapes a tagged run so a
// result file can be reproduced later.
func (e *Engine) writeConfigLog() error {
	o := e.opts
	prov := results.Collect(map[string]string{
		"Orthrus":    ".",
		"libsei-gcc": "../libsei-gcc",
	})

	var rpsBy []string
	for _, family := range []string{"vanilla", "sei", "orthrus", "rbv"} {
		rps, err := o.RPSFor(family)
		if err != nil {
			return err
		}
		rpsBy = append(rpsBy, fmt.Sprintf("%s=%d", family, rps))
	}

	readPct := "(disabled)"
	if o.ReadPct != nil {
		readPct = fmt.Sprintf("%g", *o.ReadPct)
	}
	rpsPerThread := "(none)"
	if o.RPSPerThread != nil {
		rpsPerThread = fmt.Sprintf("%g", *o.RPSPerThread)
	}

	orthrusEnv := "orthrus_env: (none)"
	if o.Preset == cpuset.PresetFair4C {
		work, val := e.layout.WorkValidationSplit()
		orthrusEnv = fmt.Sprintf("orthrus_env: SCEE_WORK_CPUSET=%s SCEE_VALIDATION_CPUSET=%s",
			cpuset.Format(work), cpuset.Format(val))
	}

	var seiBins, seiDirs, seiFlags []string
	for _, v := range o.SEIVariants {
		d, err := variants.SEI(v, true)
		if err != nil {
			return err
		}
		seiBins = append(seiBins, fmt.Sprintf("%s=%s", v, o.binPath(d.Binary)))
		seiDirs = append(seiDirs, fmt.Sprintf("%s=%s", v, libseiBuild[v].dir))
		seiFlags = append(seiFlags, fmt.Sprintf("%s=%s", v, libseiBuild[v].flags))
	}

	orthrusSyncBin := "orthrus_sync_server_binary=(disabled)"
	if o.OrthrusSync {
		orthrusSyncBin = "orthrus_sync_server_binary=" + o.binPath(variants.Orthrus(true).Binary)
	}

	clientTempDir := "(local)"
	if o.Remote() {
		clientTempDir = o.ClientTempDir
	}

	lines := []string{
		"preset=" + o.Preset,
		"server_ip=" + o.ServerIP,
		fmt.Sprintf("port_range=%d-%d", o.PortStart, o.PortEnd),
		"client_ssh=" + orDefault(o.ClientSSH, "(local)"),
		"client_workdir=" + orDefault(o.ClientWorkdir, "(none)"),
		"remote_client_bin=" + orDefault(o.RemoteClientBin, "(local)"),
		"client_temp_dir=" + clientTempDir,
		"client_pin_cpus=" + orDefault(o.ClientPinCPUs, "(none)"),
		fmt.Sprintf("cpu_layout: server4=%s server8=%s rbv_primary=%s rbv_replica=%s client=%s",
			cpuset.Format(e.layout.Server4), cpuset.Format(e.layout.Server8),
			cpuset.Format(e.layout.RBVPrimary), cpuset.Format(e.layout.RBVReplica),
			cpuset.Format(e.layout.Client)),
		fmt.Sprintf("ngroups: vanilla=%d sei=%d orthrus=%d rbv=%d",
			o.NGroupsFor("vanilla"), o.NGroupsFor("sei"),
			o.NGroupsFor("orthrus"), o.NGroupsFor("rbv")),
		fmt.Sprintf("rps_default=%d", o.RPS),
		"rps_per_thread=" + rpsPerThread,
		"rps_by_variant: " + strings.Join(rpsBy, " "),
		"read_pct=" + readPct,
		fmt.Sprintf("orthrus_sync=%t", o.OrthrusSync),
		fmt.Sprintf("rbv_sync=%t", o.RBVSync),
		orthrusEnv,
		"sei_variants=" + strings.Join(o.SEIVariants, ","),
		"sei_server_binaries: " + strings.Join(seiBins, " "),
		"orthrus_server_binary=" + o.binPath(variants.Orthrus(false).Binary),
		orthrusSyncBin,
		"libsei_build_dirs: " + strings.Join(seiDirs, " "),
		"libsei_make_flags: " + strings.Join(seiFlags, " | "),
		"sha: Orthrus=" + prov.SHA["Orthrus"],
		"sha: libsei-gcc=" + prov.SHA["libsei-gcc"],
	}

	path := e.store.ConfigPath(o.Tag)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		return errors.Wrap(err, "write config log")
	}
	log.WithField("config", path).Debug("wrote config log")
	return nil
}
