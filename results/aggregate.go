package results

import (
	"github.com/pkg/errors"

	"github.com/aoikida/Orthrus/common"
)

// Run identifies one executed configuration point inside a sweep and
// carries its headline throughputs so the sweep document is
// self-contained.
type Run struct {
	RPS         int      `json:"rps"`
	SEIVariant  string   `json:"sei_variant"`
	Repeat      int      `json:"repeat"`
	Tag         string   `json:"tag"`
	PointJSON   string   `json:"throughput_json"`
	Resumed     bool     `json:"resumed,omitempty"`
	Vanilla     float64  `json:"vanilla"`
	SEI         float64  `json:"sei"`
	Orthrus     float64  `json:"orthrus"`
	OrthrusSync *float64 `json:"orthrus_sync"`
	RBV         float64  `json:"rbv"`
}

// Series maps a series name ("vanilla", "sei_er2", "orthrus", ...) to
// one aggregated value per swept rps, in rps order. A nil entry means
// the series produced no samples at that rps.
type Series map[string][]*float64

// Aggregate reduces repeats to a median per (series, rps). Required
// series with zero samples at any rps are an error; optional ones
// (orthrus_sync when sync mode is off) yield nil cells.
func Aggregate(rpsList []int, required, optional []string, sample func(series string, rps, repeat int) (float64, bool), repeats int) (Series, error) {
	out := make(Series, len(required)+len(optional))
	agg := func(name string, must bool) error {
		col := make([]*float64, len(rpsList))
		for i, rps := range rpsList {
			var vals common.Stats
			for rep := 0; rep < repeats; rep++ {
				if v, ok := sample(name, rps, rep); ok {
					vals.Update(v)
				}
			}
			if vals.Count() == 0 {
				if must {
					return errors.Errorf("series %q has no samples at rps=%d", name, rps)
				}
				continue
			}
			m := vals.Median()
			col[i] = &m
		}
		out[name] = col
		return nil
	}
	for _, name := range required {
		if err := agg(name, true); err != nil {
			return nil, err
		}
	}
	for _, name := range optional {
		if err := agg(name, false); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// PerThread rescales every cell by the client thread count, yielding
// per-thread throughput. nclients must be positive.
func (s Series) PerThread(nclients int) Series {
	out := make(Series, len(s))
	for name, col := range s {
		scaled := make([]*float64, len(col))
		for i, v := range col {
			if v == nil {
				continue
			}
			pt := *v / float64(nclients)
			scaled[i] = &pt
		}
		out[name] = scaled
	}
	return out
}
