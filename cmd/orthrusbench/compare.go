package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aoikida/Orthrus/bench"
	"github.com/aoikida/Orthrus/env"
	"github.com/aoikida/Orthrus/variants"
)

// compareFlags binds every comparison knob onto a flag set so the
// compare and sweep commands share one surface.
type compareFlags struct {
	opts bench.Options

	vanillaNGroups, seiNGroups, orthrusNGroups, rbvNGroups int
	vanillaRPS, seiRPS, orthrusRPS, rbvRPS                 int
	rpsPerThread, readPct                                  float64
	seiVariants                                            string
	timeoutSec                                             int
}

func (f *compareFlags) register(fs *pflag.FlagSet) {
	o := &f.opts
	*o = bench.DefaultOptions()
	o.BuildDir = env.BuildDir
	o.ResultsDir = env.ResultsDir
	o.TempDir = env.TempDir

	fs.StringVar(&o.BuildDir, "build-dir", o.BuildDir, "CMake build directory")
	fs.StringVar(&o.ServerIP, "server-ip", o.ServerIP, "IPv4 address passed to memcached_client (hostnames are not supported)")
	fs.IntVar(&o.PortStart, "port-start", o.PortStart, "start of the server port probe window")
	fs.IntVar(&o.PortEnd, "port-end", o.PortEnd, "end of the server port probe window")
	fs.StringVar(&o.ClientSSH, "client-ssh", "", "run the load generator on a remote host over SSH (example: user@loadhost)")
	fs.StringVar(&o.ClientWorkdir, "client-workdir", "", "remote working directory with --client-ssh")
	fs.StringVar(&o.RemoteClientBin, "remote-client-bin", "", "path to memcached_client on the load host")
	fs.StringVar(&o.ClientTempDir, "client-temp-dir", o.ClientTempDir, "remote directory for client logs with --client-ssh")
	fs.StringVar(&o.ClientPinCPUs, "client-pin-cpus", "", "cpu list for the remote client (example: 0-7)")
	fs.StringVar(&o.Preset, "preset", o.Preset, "cpu/thread preset (default or fair4c)")
	fs.IntVar(&o.NGroups, "ngroups", o.NGroups, "default worker group count")
	fs.IntVar(&f.vanillaNGroups, "vanilla-ngroups", 0, "override vanilla group count")
	fs.IntVar(&f.seiNGroups, "sei-ngroups", 0, "override sei group count")
	fs.IntVar(&f.orthrusNGroups, "orthrus-ngroups", 0, "override orthrus group count")
	fs.IntVar(&f.rbvNGroups, "rbv-ngroups", 0, "override rbv group count")
	fs.BoolVar(&o.OrthrusSync, "orthrus-sync", o.OrthrusSync, "also run Orthrus with synchronous validation")
	fs.BoolVar(&o.RBVSync, "rbv-sync", o.RBVSync, "also run RBV with synchronous validation")
	fs.IntVar(&o.NClients, "nclients", o.NClients, "client thread count")
	fs.IntVar(&o.NSetsExp, "nsets-exp", o.NSetsExp, "log2 of the SET fill count")
	fs.IntVar(&o.NGetsExp, "ngets-exp", o.NGetsExp, "log2 of the per-client GET count")
	fs.IntVar(&o.RPS, "rps", o.RPS, "client rps argument, 0 means unlimited")
	fs.Float64Var(&f.rpsPerThread, "rps-per-thread", 0, "derive per-variant rps from a per-thread target")
	fs.Float64Var(&f.readPct, "read-pct", 0, "percentage of GETs among UPDATE+GET after the fill phase")
	fs.IntVar(&f.vanillaRPS, "vanilla-rps", 0, "override vanilla rps")
	fs.IntVar(&f.seiRPS, "sei-rps", 0, "override sei rps")
	fs.IntVar(&f.orthrusRPS, "orthrus-rps", 0, "override orthrus rps")
	fs.IntVar(&f.rbvRPS, "rbv-rps", 0, "override rbv rps")
	fs.StringVar(&f.seiVariants, "sei-variants", "er2", "comma-separated SEI flavors to run")
	fs.StringVar(&o.Tag, "tag", "", "tag results and config artifacts")
	fs.BoolVar(&o.Pin, "pin", o.Pin, "pin processes with taskset")
	fs.StringVar(&o.Mode, "mode", o.Mode, "throughput, memory or all")
	fs.IntVar(&f.timeoutSec, "timeout-sec", int(o.Timeout/time.Second), "per-case timeout in seconds")
}

// resolve copies optional flag values into the options, keeping unset
// overrides as nil.
func (f *compareFlags) resolve(fs *pflag.FlagSet) (bench.Options, error) {
	o := f.opts
	if fs.Changed("vanilla-ngroups") {
		o.VanillaNGroups = &f.vanillaNGroups
	}
	if fs.Changed("sei-ngroups") {
		o.SEINGroups = &f.seiNGroups
	}
	if fs.Changed("orthrus-ngroups") {
		o.OrthrusNGroups = &f.orthrusNGroups
	}
	if fs.Changed("rbv-ngroups") {
		o.RBVNGroups = &f.rbvNGroups
	}
	if fs.Changed("vanilla-rps") {
		o.VanillaRPS = &f.vanillaRPS
	}
	if fs.Changed("sei-rps") {
		o.SEIRPS = &f.seiRPS
	}
	if fs.Changed("orthrus-rps") {
		o.OrthrusRPS = &f.orthrusRPS
	}
	if fs.Changed("rbv-rps") {
		o.RBVRPS = &f.rbvRPS
	}
	if fs.Changed("rps-per-thread") {
		o.RPSPerThread = &f.rpsPerThread
	}
	if fs.Changed("read-pct") {
		o.ReadPct = &f.readPct
	}
	if fs.Changed("timeout-sec") {
		o.Timeout = time.Duration(f.timeoutSec) * time.Second
	}
	variantsList, err := variants.ParseSEIList(f.seiVariants)
	if err != nil {
		return o, err
	}
	o.SEIVariants = variantsList
	return o, nil
}

func compareCmd() *cobra.Command {
	var flags compareFlags
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run one comparison of every variant under identical load",
		Long: "Runs each configured server variant against the load generator " +
			"once and writes throughput (and optionally memory) reports. " +
			"Servers always run locally; the client can run on a remote load " +
			"host with --client-ssh.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.resolve(cmd.Flags())
			if err != nil {
				return err
			}
			engine, err := bench.New(opts)
			if err != nil {
				return err
			}
			return engine.Run()
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
