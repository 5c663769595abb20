package results

import (
	"os/exec"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"
)

// Provenance records where and when a sweep ran so a report can be
// matched to the binaries and machine that produced it.
type Provenance struct {
	Timestamp string            `json:"timestamp"`
	Host      string            `json:"host"`
	Uname     string            `json:"uname"`
	SHA       map[string]string `json:"sha"`
}

// Collect gathers provenance best-effort; fields degrade to "unknown"
// rather than failing the run.
func Collect(repoDirs map[string]string) Provenance {
	p := Provenance{
		Timestamp: time.Now().Format(time.RFC3339),
		Host:      "unknown",
		Uname:     "unknown",
		SHA:       map[string]string{},
	}
	if info, err := host.Info(); err == nil {
		p.Host = info.Hostname
		p.Uname = info.OS + " " + info.KernelVersion + " " + info.KernelArch
	}
	for name, dir := range repoDirs {
		p.SHA[name] = gitHead(dir)
	}
	return p
}

func gitHead(dir string) string {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}
