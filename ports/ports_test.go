package ports

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBinder struct {
	busy map[int]bool
}

func (b fakeBinder) CanBind(port int) bool {
	return !b.busy[port]
}

func newTestPicker(busy map[int]bool) *Picker {
	return NewPickerWith(fakeBinder{busy: busy}, rand.New(rand.NewSource(1)))
}

func TestPickRangeBounds(t *testing.T) {
	p := newTestPicker(nil)
	for i := 0; i < 100; i++ {
		r, err := p.PickRange(3, 20000, 20100)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, r.Base, 20000)
		assert.Less(t, r.Base+r.Width-1, 20100)
	}
}

func TestPickRangeAvoidsBusyPorts(t *testing.T) {
	// Every third port is taken; only runs clear of them are valid.
	busy := map[int]bool{}
	for port := 20000; port < 20100; port += 3 {
		busy[port] = true
	}
	p := newTestPicker(busy)
	r, err := p.PickRange(2, 20000, 20100)
	require.NoError(t, err)
	for port := r.Base; port < r.End(); port++ {
		assert.False(t, busy[port], "picked busy port %d", port)
	}
}

func TestPickRangeWindowTooSmall(t *testing.T) {
	p := newTestPicker(nil)
	_, err := p.PickRange(8, 20000, 20008)
	assert.Error(t, err)
}

func TestPickRangeExhaustion(t *testing.T) {
	busy := map[int]bool{}
	for port := 20000; port < 20100; port++ {
		busy[port] = true
	}
	p := newTestPicker(busy)
	_, err := p.PickRange(2, 20000, 20100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoFreePorts)
}

func TestPickDisjointRanges(t *testing.T) {
	p := newTestPicker(nil)
	for i := 0; i < 50; i++ {
		a, b, err := p.PickDisjointRanges(4, 20000, 20020)
		require.NoError(t, err)
		assert.False(t, a.Overlaps(b), "ranges %v and %v overlap", a, b)
	}
}

func TestRangeOverlaps(t *testing.T) {
	assert.True(t, Range{100, 4}.Overlaps(Range{103, 4}))
	assert.True(t, Range{103, 4}.Overlaps(Range{100, 4}))
	assert.False(t, Range{100, 4}.Overlaps(Range{104, 4}))
	assert.False(t, Range{104, 4}.Overlaps(Range{100, 4}))
}
