// Package ports finds free contiguous port ranges for server groups.
//
// Bindability is probed and immediately released, never reserved, so a
// pick can race with another process grabbing the same ports. A single
// driver per host is assumed; the race is accepted.
package ports

import (
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
)

const pickAttempts = 2000

var ErrNoFreePorts = errors.New("failed to find a free port range")

// Range is Width consecutive ports starting at Base.
type Range struct {
	Base  int `json:"base"`
	Width int `json:"width"`
}

func (r Range) End() int {
	return r.Base + r.Width
}

func (r Range) Overlaps(o Range) bool {
	return r.Base < o.End() && o.Base < r.End()
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Base, r.End()-1)
}

// Binder probes whether a single port can be bound right now.
type Binder interface {
	CanBind(port int) bool
}

// TCPBinder probes on the wildcard address. Servers bind INADDR_ANY, so
// probing loopback would miss ports held on other interfaces.
type TCPBinder struct{}

func (TCPBinder) CanBind(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

type Picker struct {
	binder Binder
	rng    *rand.Rand
}

func NewPicker() *Picker {
	return NewPickerWith(TCPBinder{}, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func NewPickerWith(b Binder, rng *rand.Rand) *Picker {
	return &Picker{binder: b, rng: rng}
}

// PickRange samples base ports uniformly in [start, end-width-1] until
// all width consecutive ports bind, bounded by a fixed attempt budget.
func (p *Picker) PickRange(width, start, end int) (Range, error) {
	if width <= 0 {
		return Range{}, errors.Errorf("port range width must be positive, got %d", width)
	}
	if end-start < width+1 {
		return Range{}, errors.Errorf("port range %d-%d too small for width %d", start, end, width)
	}

	var picked Range
	err := retry.Do(
		func() error {
			base := start + p.rng.Intn(end-width-start)
			for i := 0; i < width; i++ {
				if !p.binder.CanBind(base + i) {
					return ErrNoFreePorts
				}
			}
			picked = Range{Base: base, Width: width}
			return nil
		},
		retry.Attempts(pickAttempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return Range{}, errors.Wrapf(ErrNoFreePorts, "width %d in %d-%d", width, start, end)
	}
	return picked, nil
}

// PickDisjointRanges picks two ranges that do not overlap, for cases
// where two roles listen independently on the same host.
func (p *Picker) PickDisjointRanges(width, start, end int) (Range, Range, error) {
	second, err := p.PickRange(width, start, end)
	if err != nil {
		return Range{}, Range{}, err
	}
	for {
		first, err := p.PickRange(width, start, end)
		if err != nil {
			return Range{}, Range{}, err
		}
		if !first.Overlaps(second) {
			return first, second, nil
		}
	}
}
