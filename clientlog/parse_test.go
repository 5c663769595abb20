package clientlog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBlock = `client setting ngroups=3, nclients=32, nsets=262144, nupdates=262144, ngets=262144, rps=0
SET put 387807 avg 77712 p90 86722 p95 89712 p99 231960
UPDATE put 365130 avg 84194 p90 91366 p95 94937 p99 243115
GET put 373528 avg 85134 p90 90945 p95 94510 p99 255360
`

func TestParseUnweighted(t *testing.T) {
	recs, err := Parse(strings.NewReader(sampleBlock))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, 369329.0, rec.Throughput)
	assert.Equal(t, 84.664, rec.Latency.Avg)
	assert.Equal(t, 387807, rec.ThroughputSet)
	assert.Equal(t, 365130, rec.ThroughputUpdate)
	assert.Equal(t, 373528, rec.ThroughputGet)
	assert.Nil(t, rec.ReadPct)
	assert.Nil(t, rec.Duration)
}

func TestParseReadHeavyWeighting(t *testing.T) {
	log := `client setting ngroups=3, nclients=32, nsets=262144, nupdates=8192, ngets=8192, read_pct=95.000, rps=0
SET put 387807 avg 77712 p90 86722 p95 89712 p99 231960
UPDATE put 365130 avg 84194 p90 91366 p95 94937 p99 243115
GET put 373528 avg 85134 p90 90945 p95 94510 p99 255360
`
	recs, err := Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	nupdates, ngets := 8192.0, 32*8192.0
	want := (nupdates + ngets) / (nupdates/365130.0 + ngets/373528.0)
	assert.InDelta(t, want, rec.Throughput, 1e-9)
	// The weighted figure differs from the plain mean.
	assert.NotEqual(t, 369329.0, rec.Throughput)

	require.NotNil(t, rec.ReadPct)
	assert.Equal(t, 95.0, *rec.ReadPct)
	require.NotNil(t, rec.NUpdates)
	assert.Equal(t, 8192, *rec.NUpdates)
	// Latency stays the unweighted mean of the two phases.
	assert.Equal(t, 84.664, rec.Latency.Avg)
}

func TestParseMultipleBlocks(t *testing.T) {
	recs, err := Parse(strings.NewReader(sampleBlock + sampleBlock))
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestParseOutOfOrderRecords(t *testing.T) {
	log := `client setting ngroups=3, nclients=32, nsets=262144, ngets=262144, rps=0
GET put 373528 avg 85134 p90 90945 p95 94510 p99 255360
SET put 387807 avg 77712 p90 86722 p95 89712 p99 231960
UPDATE put 365130 avg 84194 p90 91366 p95 94937 p99 243115
`
	recs, err := Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 369329.0, recs[0].Throughput)
}

func TestParseCorruptRecordIsFatal(t *testing.T) {
	log := `client setting ngroups=3, nclients=32, rps=0
SET put 387807 avg 77712 p90 86722 p95 89712 p99 231960
UPDATE put liar avg 1 p90 1 p95 1 p99 1
GET put 373528 avg 85134 p90 90945 p95 94510 p99 255360
`
	_, err := Parse(strings.NewReader(log))
	assert.Error(t, err)
}

func TestParseShortBlockIsFatal(t *testing.T) {
	log := `client setting ngroups=3, nclients=32, rps=0
SET put 387807 avg 77712 p90 86722 p95 89712 p99 231960
`
	_, err := Parse(strings.NewReader(log))
	assert.Error(t, err)
}

func TestParseFailuresAreTyped(t *testing.T) {
	log := `client setting ngroups=3, nclients=32, rps=0
SET put 387807 avg 77712 p90 86722 p95 89712 p99 231960
UPDATE put liar avg 1 p90 1 p95 1 p99 1
GET put 373528 avg 85134 p90 90945 p95 94510 p99 255360
`
	_, err := Parse(strings.NewReader(log))
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Line, "UPDATE put liar")

	_, err = ParseMemory(strings.NewReader("nothing here\n"))
	require.ErrorAs(t, err, &pe)
	assert.Empty(t, pe.Line)
}

func TestParseLegacyHeaderSpelling(t *testing.T) {
	log := strings.Replace(sampleBlock, "client setting", "client settting", 1)
	recs, err := Parse(strings.NewReader(log))
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestParseMemory(t *testing.T) {
	log := `VmRSS:	  102400 kB
noise line
VmRSS:	  204800 kB
VmRSS:	  102400 kB
`
	u, err := ParseMemory(strings.NewReader(log))
	require.NoError(t, err)
	assert.Equal(t, 204800, u.PeakKB)
	assert.Equal(t, 136533, u.AvgKB)

	_, err = ParseMemory(strings.NewReader("nothing here\n"))
	assert.Error(t, err)
}

func TestMemUsageCombine(t *testing.T) {
	primary := MemUsage{PeakKB: 100, AvgKB: 80}
	replica := MemUsage{PeakKB: 60, AvgKB: 40}
	both := primary.Add(replica)
	peak, avg := both.Ratio(MemUsage{PeakKB: 80, AvgKB: 60})
	assert.Equal(t, 2.0, peak)
	assert.Equal(t, 2.0, avg)
}
