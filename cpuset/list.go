package cpuset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Format renders a cpu id set in the compressed run form understood by
// taskset -c, e.g. {0,1,2,3,5,7,8} -> "0-3,5,7-8". Ids are deduplicated
// and sorted first.
func Format(cpus []int) string {
	if len(cpus) == 0 {
		return ""
	}
	xs := append([]int(nil), cpus...)
	sort.Ints(xs)
	uniq := xs[:1]
	for _, x := range xs[1:] {
		if x != uniq[len(uniq)-1] {
			uniq = append(uniq, x)
		}
	}

	var parts []string
	start, prev := uniq[0], uniq[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, x := range uniq[1:] {
		if x == prev+1 {
			prev = x
			continue
		}
		flush()
		start, prev = x, x
	}
	flush()
	return strings.Join(parts, ",")
}

// Parse is the inverse of Format. Empty input yields an empty set.
func Parse(s string) ([]int, error) {
	var cpus []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			a, err := strconv.Atoi(lo)
			if err != nil {
				return nil, errors.Wrapf(err, "bad cpu range %q", part)
			}
			b, err := strconv.Atoi(hi)
			if err != nil {
				return nil, errors.Wrapf(err, "bad cpu range %q", part)
			}
			if b < a {
				return nil, errors.Errorf("bad cpu range %q", part)
			}
			for x := a; x <= b; x++ {
				cpus = append(cpus, x)
			}
		} else {
			x, err := strconv.Atoi(part)
			if err != nil {
				return nil, errors.Wrapf(err, "bad cpu id %q", part)
			}
			cpus = append(cpus, x)
		}
	}
	sort.Ints(cpus)
	return cpus, nil
}
