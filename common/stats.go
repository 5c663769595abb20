package common

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

type (
	Stats []float64

	StatsSummary struct {
		Mean   float64
		Median float64
		Min    float64
		P25    float64
		P75    float64
		Max    float64
	}
)

func (s *Stats) Update(v float64) {
	*s = append(*s, v)
}

func (s Stats) Count() int {
	return len(s)
}

func (s Stats) Mean() float64 {
	return stat.Mean(s, nil)
}

// Median averages the two middle values for even counts, matching the
// convention used by the result aggregation (robust to one outlier run).
func (s Stats) Median() float64 {
	xs := append(Stats(nil), s...)
	sort.Float64s(xs)
	n := len(xs)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

func (s Stats) Summary() StatsSummary {
	xs := append(Stats(nil), s...)
	sort.Float64s(xs)

	return StatsSummary{
		Mean:   stat.Mean(xs, nil),
		Median: xs.Median(),
		Min:    xs[0],
		Max:    xs[len(xs)-1],
		P25:    stat.Quantile(0.25, stat.Empirical, xs, nil),
		P75:    stat.Quantile(0.75, stat.Empirical, xs, nil),
	}
}
