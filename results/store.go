// Package results owns the durable artifacts of benchmark runs: tagged
// per-case reports, aggregated sweep series, provenance, and a small
// run-history database. Artifacts are written once and treated as
// immutable; resumption only reads them.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/aoikida/Orthrus/clientlog"
)

// Store locates artifacts under one results directory. A single driver
// per directory is assumed; there is no locking.
type Store struct {
	Dir string
}

func NewStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Store{}, errors.Wrap(err, "create results dir")
	}
	return Store{Dir: dir}, nil
}

// PointDoc is one configuration point's parsed output, keyed by case
// name ("vanilla", "sei", "orthrus", "orthrus_sync", "rbv", ...).
type PointDoc map[string]clientlog.Record

func (s Store) ReportPath(tag string) string {
	if tag == "" {
		return filepath.Join(s.Dir, "memcached-throughput-report.txt")
	}
	return filepath.Join(s.Dir, fmt.Sprintf("memcached-throughput-report.%s.txt", tag))
}

func (s Store) PointPath(tag string) string {
	return s.ReportPath(tag) + ".json"
}

func (s Store) ConfigPath(tag string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("memcached-config.%s.txt", tag))
}

func (s Store) MemReportPath(tag string) string {
	if tag == "" {
		return filepath.Join(s.Dir, "memcached-mem-report.txt")
	}
	return filepath.Join(s.Dir, fmt.Sprintf("memcached-mem-report.%s.txt", tag))
}

func (s Store) SweepPath(tag, ext string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("memcached-throughput-vs-rps.%s.%s", tag, ext))
}

// SavePoint persists one point: a human-readable .txt summary and the
// .json document used for aggregation and resumption.
func (s Store) SavePoint(tag string, doc PointDoc) error {
	var lines []string
	for _, name := range orderedCases(doc) {
		lines = append(lines,
			name+" running\n",
			fmt.Sprintf("throughput: %v\n", doc[name].Throughput))
	}
	txt := ""
	for _, l := range lines {
		txt += l
	}
	if err := os.WriteFile(s.ReportPath(tag), []byte(txt), 0644); err != nil {
		return errors.Wrap(err, "write report")
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode point")
	}
	if err := os.WriteFile(s.PointPath(tag), append(data, '\n'), 0644); err != nil {
		return errors.Wrap(err, "write point")
	}
	return nil
}

// LoadPoint reads a persisted point back; a missing artifact is
// reported distinctly so callers can decide to re-execute.
func (s Store) LoadPoint(tag string) (PointDoc, error) {
	data, err := os.ReadFile(s.PointPath(tag))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrMissingArtifact, "%s", s.PointPath(tag))
		}
		return nil, errors.Wrap(err, "read point")
	}
	var doc PointDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decode %s", s.PointPath(tag))
	}
	return doc, nil
}

var ErrMissingArtifact = errors.New("artifact missing")

// Complete reports whether a persisted point satisfies the current
// invocation: every required case must be present.
func (doc PointDoc) Complete(required []string) bool {
	for _, name := range required {
		if _, ok := doc[name]; !ok {
			return false
		}
	}
	return true
}

// orderedCases keeps the baseline first and the rest stable so report
// text diffs cleanly between runs.
func orderedCases(doc PointDoc) []string {
	rank := map[string]int{
		"vanilla": 0, "sei": 1, "orthrus": 3,
		"orthrus_sync": 4, "rbv": 5, "rbv_sync": 6,
	}
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, iKnown := rank[names[i]]
		rj, jKnown := rank[names[j]]
		if !iKnown {
			ri = 2 // sei_<flavor> family slots after plain sei
		}
		if !jKnown {
			rj = 2
		}
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}
