package results

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoikida/Orthrus/clientlog"
)

func TestSanitizeTag(t *testing.T) {
	tag, err := SanitizeTag("c16.rps200.er2.rep0")
	require.NoError(t, err)
	assert.Equal(t, "c16.rps200.er2.rep0", tag)

	_, err = SanitizeTag("")
	assert.Error(t, err)
	_, err = SanitizeTag("a/b")
	assert.Error(t, err)
	_, err = SanitizeTag(" pad ")
	assert.Error(t, err)
}

func TestStoreRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)

	doc := PointDoc{
		"vanilla": {Throughput: 369329},
		"orthrus": {Throughput: 210000},
	}
	require.NoError(t, s.SavePoint("c16.rps200.rep0", doc))

	got, err := s.LoadPoint("c16.rps200.rep0")
	require.NoError(t, err)
	assert.Equal(t, doc["vanilla"].Throughput, got["vanilla"].Throughput)
	assert.Equal(t, doc["orthrus"].Throughput, got["orthrus"].Throughput)

	_, err = s.LoadPoint("no-such-tag")
	assert.ErrorIs(t, err, ErrMissingArtifact)
}

func TestPointCompletion(t *testing.T) {
	doc := PointDoc{
		"vanilla": {Throughput: 1},
		"orthrus": {Throughput: 2},
	}
	assert.True(t, doc.Complete([]string{"vanilla", "orthrus"}))
	assert.False(t, doc.Complete([]string{"vanilla", "orthrus", "orthrus_sync"}))
	assert.True(t, doc.Complete(nil))
}

func TestAggregateMedianAcrossRepeats(t *testing.T) {
	samples := map[string]map[int][]float64{
		"vanilla": {100: {100, 110, 90}, 200: {200, 220}},
		"orthrus": {100: {50, 60, 70}, 200: {80, 90}},
	}
	sample := func(name string, rps, rep int) (float64, bool) {
		vals := samples[name][rps]
		if rep >= len(vals) {
			return 0, false
		}
		return vals[rep], true
	}

	series, err := Aggregate([]int{100, 200}, []string{"vanilla", "orthrus"}, nil, sample, 3)
	require.NoError(t, err)
	require.Len(t, series["vanilla"], 2)
	assert.Equal(t, 100.0, *series["vanilla"][0])
	assert.Equal(t, 210.0, *series["vanilla"][1])
	assert.Equal(t, 60.0, *series["orthrus"][0])
	assert.Equal(t, 85.0, *series["orthrus"][1])
}

func TestAggregateRequiredVsOptional(t *testing.T) {
	sample := func(name string, rps, rep int) (float64, bool) {
		if name == "orthrus_sync" {
			return 0, false
		}
		return 10, true
	}

	_, err := Aggregate([]int{100}, []string{"orthrus_sync"}, nil, sample, 2)
	assert.Error(t, err)

	series, err := Aggregate([]int{100}, []string{"vanilla"}, []string{"orthrus_sync"}, sample, 2)
	require.NoError(t, err)
	assert.Nil(t, series["orthrus_sync"][0])
	assert.Equal(t, 10.0, *series["vanilla"][0])
}

func TestPerThread(t *testing.T) {
	v := 320000.0
	s := Series{"vanilla": {&v, nil}}
	pt := s.PerThread(16)
	assert.Equal(t, 20000.0, *pt["vanilla"][0])
	assert.Nil(t, pt["vanilla"][1])
}

func TestHistoryRecordAndList(t *testing.T) {
	h, err := OpenHistory(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer h.Close()

	require.NoError(t, h.Record("sweep-a", "fair4c", 16, "deadbeef", []string{"vanilla", "sei_er2"}))
	require.NoError(t, h.Record("sweep-b", "default", 32, "unknown", []string{"vanilla"}))

	entries, err := h.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "sweep-b", entries[0].Tag)
	assert.Equal(t, "sweep-a", entries[1].Tag)
	assert.Equal(t, []string{"vanilla", "sei_er2"}, entries[1].Series)
	assert.Equal(t, 16, entries[1].NClients)
}

func TestSavePointReportContainsThroughputLines(t *testing.T) {
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.SavePoint("x", PointDoc{"sei_er2": clientlog.Record{Throughput: 42}}))

	data, err := os.ReadFile(s.ReportPath("x"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "sei_er2 running")
	assert.Contains(t, string(data), "throughput: 42")
}
