// Package clientlog converts the load generator's textual output into
// structured per-run metrics. Parsing is strict: a malformed operation
// line is an error, never skipped, because a silently misread number
// would corrupt every comparison built on top of it.
package clientlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseError is a malformed line or block in a client or memory log.
// These logs are regenerated per run, so a parse failure always means
// a broken run rather than salvageable input.
type ParseError struct {
	Line string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return "invalid client log: " + e.Msg
	}
	return fmt.Sprintf("invalid client log: %s: %q", e.Msg, e.Line)
}

// OpStats is one operation line as logged: operations per second plus
// latency figures in the client's native unit (microseconds).
type OpStats struct {
	Throughput int `json:"throughput"`
	Avg        int `json:"avg"`
	P90        int `json:"p90"`
	P95        int `json:"p95"`
	P99        int `json:"p99"`
}

// Latency is the per-request summary rescaled to milliseconds.
type Latency struct {
	Avg float64 `json:"avg"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Record is one run's parsed result. Throughput combines the UPDATE and
// GET phases; the initial SET fill is reported separately and excluded
// from the combination.
type Record struct {
	Throughput       float64  `json:"throughput"`
	Duration         *float64 `json:"duration"`
	Latency          Latency  `json:"latency_req"`
	ThroughputSet    int      `json:"throughput_set"`
	ThroughputUpdate int      `json:"throughput_update"`
	ThroughputGet    int      `json:"throughput_get"`
	ReadPct          *float64 `json:"read_pct,omitempty"`
	NUpdates         *int     `json:"nupdates,omitempty"`
}

var opPattern = map[string]*regexp.Regexp{
	"SET":    regexp.MustCompile(`^SET put (\d+) avg (\d+) p90 (\d+) p95 (\d+) p99 (\d+)`),
	"UPDATE": regexp.MustCompile(`^UPDATE put (\d+) avg (\d+) p90 (\d+) p95 (\d+) p99 (\d+)`),
	"GET":    regexp.MustCompile(`^GET put (\d+) avg (\d+) p90 (\d+) p95 (\d+) p99 (\d+)`),
}

// isHeader recognizes the block header. The misspelled "settting" form
// appears in logs from older clients and is accepted.
func isHeader(line string) bool {
	return strings.HasPrefix(line, "client setting") ||
		strings.HasPrefix(line, "client settting")
}

func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open client log")
	}
	defer f.Close()
	recs, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return recs, nil
}

// Parse reads every block in a client log. Each block is a header line
// followed by operation lines; a new header starts the next block.
func Parse(r io.Reader) ([]Record, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read client log")
	}

	type block struct {
		cfg   map[string]string
		lines []string
	}
	var blocks []block
	var cur *block
	for _, line := range lines {
		if isHeader(line) {
			blocks = append(blocks, block{cfg: parseConfigLine(line)})
			cur = &blocks[len(blocks)-1]
			continue
		}
		if cur == nil {
			continue
		}
		cur.lines = append(cur.lines, line)
	}

	var records []Record
	for _, b := range blocks {
		rec, err := parseBlock(b.cfg, b.lines)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// ParseOne is for callers that expect a single-run log.
func ParseOne(path string) (Record, error) {
	recs, err := ParseFile(path)
	if err != nil {
		return Record{}, err
	}
	if len(recs) != 1 {
		return Record{}, &ParseError{Msg: fmt.Sprintf("expected one block in %s, got %d", path, len(recs))}
	}
	return recs[0], nil
}

// parseConfigLine splits `client setting k1=v1, k2=v2, ...` into a map.
func parseConfigLine(line string) map[string]string {
	cfg := map[string]string{}
	for _, tok := range strings.Fields(strings.ReplaceAll(line, ",", "")) {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		cfg[k] = v
	}
	return cfg
}

func parseOpLine(kind, line string) (OpStats, error) {
	m := opPattern[kind].FindStringSubmatch(line)
	if m == nil {
		return OpStats{}, &ParseError{Line: line, Msg: "malformed " + kind + " record"}
	}
	nums := make([]int, 5)
	for i := range nums {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return OpStats{}, &ParseError{Line: line, Msg: "malformed " + kind + " record"}
		}
		nums[i] = n
	}
	return OpStats{Throughput: nums[0], Avg: nums[1], P90: nums[2], P95: nums[3], P99: nums[4]}, nil
}

func parseBlock(cfg map[string]string, lines []string) (Record, error) {
	// Prefer locating each operation by prefix; older logs without the
	// prefixes fall back to the first three lines in fixed order.
	byKind := map[string]string{}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "SET put "):
			byKind["SET"] = line
		case strings.HasPrefix(line, "UPDATE put "):
			byKind["UPDATE"] = line
		case strings.HasPrefix(line, "GET put "):
			byKind["GET"] = line
		}
	}
	ordered := []string{byKind["SET"], byKind["UPDATE"], byKind["GET"]}
	if ordered[0] == "" || ordered[1] == "" || ordered[2] == "" {
		if len(lines) < 3 {
			return Record{}, &ParseError{Msg: "missing SET/UPDATE/GET lines"}
		}
		ordered = lines[:3]
	}

	set, err := parseOpLine("SET", ordered[0])
	if err != nil {
		return Record{}, err
	}
	update, err := parseOpLine("UPDATE", ordered[1])
	if err != nil {
		return Record{}, err
	}
	get, err := parseOpLine("GET", ordered[2])
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		// Backward-compatible default: unweighted average of the two
		// measured phases.
		Throughput: float64(update.Throughput+get.Throughput) / 2,
		Latency: Latency{
			Avg: float64(update.Avg+get.Avg) / 2 / 1000,
			P90: float64(update.P90+get.P90) / 2 / 1000,
			P95: float64(update.P95+get.P95) / 2 / 1000,
			P99: float64(update.P99+get.P99) / 2 / 1000,
		},
		ThroughputSet:    set.Throughput,
		ThroughputUpdate: update.Throughput,
		ThroughputGet:    get.Throughput,
	}

	applyReadPct(cfg, update, get, &rec)
	return rec, nil
}

// applyReadPct switches to a counts-weighted combined throughput when
// the client ran read-heavy (read_pct > 0) and both operation totals
// can be derived from the header.
func applyReadPct(cfg map[string]string, update, get OpStats, rec *Record) {
	if len(cfg) == 0 {
		return
	}
	readPct, err := strconv.ParseFloat(cfg["read_pct"], 64)
	if err != nil {
		readPct = -1
	}
	if readPct <= 0 {
		return
	}

	ngetsTotal, nupdatesTotal := 0, 0
	if nclients, err := strconv.Atoi(cfg["nclients"]); err == nil {
		if ngets, err := strconv.Atoi(cfg["ngets"]); err == nil {
			ngetsTotal = nclients * ngets
		}
	}
	if v, ok := cfg["nupdates"]; ok {
		nupdatesTotal, _ = strconv.Atoi(v)
	} else if v, ok := cfg["nsets"]; ok {
		nupdatesTotal, _ = strconv.Atoi(v)
	}

	if ngetsTotal > 0 && nupdatesTotal > 0 && update.Throughput > 0 && get.Throughput > 0 {
		tUpdate := float64(nupdatesTotal) / float64(update.Throughput)
		tGet := float64(ngetsTotal) / float64(get.Throughput)
		rec.Throughput = float64(nupdatesTotal+ngetsTotal) / (tUpdate + tGet)
	}

	rec.ReadPct = &readPct
	if v, ok := cfg["nupdates"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			rec.NUpdates = &n
		}
	}
}
