package clientlog

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var vmRSSPattern = regexp.MustCompile(`^VmRSS:\s+(\d+) kB`)

// MemUsage summarizes resident-memory samples from one server's status
// log, in kB.
type MemUsage struct {
	PeakKB int `json:"peak_kb"`
	AvgKB  int `json:"avg_kb"`
}

// Add combines usage of cooperating processes (a primary and its
// replica count as one deployment).
func (m MemUsage) Add(o MemUsage) MemUsage {
	return MemUsage{PeakKB: m.PeakKB + o.PeakKB, AvgKB: m.AvgKB + o.AvgKB}
}

// Ratio compares this deployment's usage against a baseline.
func (m MemUsage) Ratio(base MemUsage) (peak, avg float64) {
	return float64(m.PeakKB) / float64(base.PeakKB), float64(m.AvgKB) / float64(base.AvgKB)
}

func ParseMemoryFile(path string) (MemUsage, error) {
	f, err := os.Open(path)
	if err != nil {
		return MemUsage{}, errors.Wrap(err, "open memory log")
	}
	defer f.Close()
	u, err := ParseMemory(f)
	if err != nil {
		return MemUsage{}, errors.Wrapf(err, "parse %s", path)
	}
	return u, nil
}

// ParseMemory extracts VmRSS samples. At least one sample is required;
// the average uses integer division, matching historical reports.
func ParseMemory(r io.Reader) (MemUsage, error) {
	var samples []int
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		m := vmRSSPattern.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return MemUsage{}, &ParseError{Line: sc.Text(), Msg: "bad VmRSS sample"}
		}
		samples = append(samples, n)
	}
	if err := sc.Err(); err != nil {
		return MemUsage{}, errors.Wrap(err, "read memory log")
	}
	if len(samples) == 0 {
		return MemUsage{}, &ParseError{Msg: "no VmRSS samples found"}
	}

	peak, sum := samples[0], 0
	for _, s := range samples {
		if s > peak {
			peak = s
		}
		sum += s
	}
	return MemUsage{PeakKB: peak, AvgKB: sum / len(samples)}, nil
}
