package common

import "testing"

func TestMedianOddCount(t *testing.T) {
	s := Stats{100.0, 110.0, 90.0}
	if m := s.Median(); m != 100.0 {
		t.Error("Incorrect median: ", m)
	}
	// Order must not matter.
	s = Stats{110.0, 90.0, 100.0}
	if m := s.Median(); m != 100.0 {
		t.Error("Incorrect median: ", m)
	}
}

func TestMedianEvenCount(t *testing.T) {
	s := Stats{4, 1, 3, 2}
	if m := s.Median(); m != 2.5 {
		t.Error("Incorrect median: ", m)
	}
}

func TestSummary(t *testing.T) {
	var s Stats
	for _, v := range []float64{5, 1, 4, 2, 3} {
		s.Update(v)
	}
	sum := s.Summary()
	if sum.Min != 1 || sum.Max != 5 {
		t.Error("Incorrect extrema: ", sum)
	}
	if sum.Mean != 3 || sum.Median != 3 {
		t.Error("Incorrect center: ", sum)
	}
}
