// Package bench drives one comparison run end to end: resolve the CPU
// layout, pick ports, launch each server variant against the load
// generator, parse the client logs, and persist the point artifacts.
package bench

import (
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/aoikida/Orthrus/variants"
)

// ConfigError reports one option that failed validation, named by its
// flag spelling.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid --" + e.Option + ": " + e.Reason
}

// Options is everything one comparison invocation needs. Validate
// normalizes it; the engine treats it as immutable afterwards.
type Options struct {
	BuildDir   string
	ResultsDir string
	TempDir    string

	ServerIP  string
	PortStart int
	PortEnd   int

	// Remote load generation. Servers always run locally.
	ClientSSH       string
	ClientWorkdir   string
	RemoteClientBin string
	ClientTempDir   string
	ClientPinCPUs   string

	Preset  string
	NGroups int

	VanillaNGroups *int
	SEINGroups     *int
	OrthrusNGroups *int
	RBVNGroups     *int

	OrthrusSync bool
	RBVSync     bool

	NClients int
	NSetsExp int
	NGetsExp int

	RPS          int
	RPSPerThread *float64
	ReadPct      *float64

	VanillaRPS *int
	SEIRPS     *int
	OrthrusRPS *int
	RBVRPS     *int

	SEIVariants []string

	Tag     string
	Pin     bool
	Mode    string
	Timeout time.Duration
	Stagger time.Duration
}

func DefaultOptions() Options {
	return Options{
		BuildDir:      "build",
		ResultsDir:    "results",
		TempDir:       "temp",
		ServerIP:      "127.0.0.1",
		PortStart:     20000,
		PortEnd:       40000,
		ClientTempDir: "/tmp/orthrus-memcached",
		Preset:        "default",
		NGroups:       3,
		RBVSync:       true,
		NClients:      16,
		NSetsExp:      18,
		NGetsExp:      16,
		SEIVariants:   []string{"er2"},
		Pin:           true,
		Mode:          "throughput",
		Timeout:       30 * time.Minute,
		Stagger:       time.Second,
	}
}

func (o *Options) Validate() error {
	if o.PortStart <= 0 || o.PortEnd <= 0 {
		return &ConfigError{Option: "port-range", Reason: "bounds must be > 0"}
	}
	if o.PortEnd <= o.PortStart {
		return &ConfigError{Option: "port-range", Reason: "end must be > start"}
	}
	// The load generator resolves nothing; it wants a dotted quad.
	ip := net.ParseIP(o.ServerIP)
	if ip == nil || ip.To4() == nil {
		return &ConfigError{Option: "server-ip", Reason: fmt.Sprintf("must be an IPv4 address, got %q", o.ServerIP)}
	}
	if o.NClients <= 0 {
		return &ConfigError{Option: "nclients", Reason: "must be >= 1"}
	}
	if o.RPSPerThread != nil && *o.RPSPerThread < 0 {
		return &ConfigError{Option: "rps-per-thread", Reason: "must be >= 0"}
	}
	if o.ReadPct != nil {
		pct := *o.ReadPct
		if pct <= 1.0 {
			pct *= 100.0
		}
		if pct <= 0 || pct > 100 {
			return &ConfigError{Option: "read-pct", Reason: "must be in (0,100], or a ratio in (0,1]"}
		}
		o.ReadPct = &pct
	}
	switch o.Mode {
	case "throughput", "memory", "all":
	default:
		return &ConfigError{Option: "mode", Reason: fmt.Sprintf("unknown mode %q", o.Mode)}
	}
	if len(o.SEIVariants) == 0 {
		return &ConfigError{Option: "sei-variants", Reason: "at least one variant is required"}
	}
	for i, v := range o.SEIVariants {
		canon, err := variants.NormalizeSEI(v)
		if err != nil {
			return err
		}
		o.SEIVariants[i] = canon
	}
	if len(o.SEIVariants) > 1 && o.Mode != "throughput" {
		return &ConfigError{Option: "sei-variants", Reason: "multiple variants are only supported in throughput mode"}
	}
	if o.Remote() && o.RemoteClientBin == "" {
		o.RemoteClientBin = variants.BinaryPath(o.BuildDir, variants.ClientBinary)
	}
	return nil
}

func (o Options) Remote() bool { return o.ClientSSH != "" }

// NGroupsFor resolves the worker-group count for one variant family.
func (o Options) NGroupsFor(family string) int {
	var override *int
	switch family {
	case "vanilla":
		override = o.VanillaNGroups
	case "sei":
		override = o.SEINGroups
	case "orthrus":
		override = o.OrthrusNGroups
	case "rbv":
		override = o.RBVNGroups
	}
	return variants.NGroups(o.Preset, family, o.NGroups, override)
}

// RPSFor resolves the client rps argument for one variant family.
func (o Options) RPSFor(family string) (int, error) {
	var override *int
	switch family {
	case "vanilla":
		override = o.VanillaRPS
	case "sei":
		override = o.SEIRPS
	case "orthrus":
		override = o.OrthrusRPS
	case "rbv":
		override = o.RBVRPS
	}
	return variants.DeriveRPS(override, o.RPSPerThread, o.RPS, o.NClients, o.NGroupsFor(family))
}

// ClientBin is the load generator path as executed, which differs
// between local and remote invocations.
func (o Options) ClientBin() string {
	if o.Remote() {
		return o.RemoteClientBin
	}
	return variants.BinaryPath(o.BuildDir, variants.ClientBinary)
}

func (o Options) suffix() string {
	if o.Tag == "" {
		return ""
	}
	return "." + o.Tag
}

func (o Options) binPath(name string) string {
	return variants.BinaryPath(o.BuildDir, name)
}

func (o Options) memStatusPath(name string) string {
	return filepath.Join(o.TempDir, "memcached-memory_status-"+name+o.suffix()+".log")
}
