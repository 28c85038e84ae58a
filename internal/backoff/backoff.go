package backoff

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/keyspandb/keyspan-go-sdk/internal/xrand"
)

// Backoff is the interface that contains logic of delaying operation retry.
type Backoff interface {
	// Delay returns mapping of i to Delay.
	Delay(i int) time.Duration

	// Wait returns a channel which fires after Delay(i) elapses.
	Wait(i int) <-chan time.Time
}

var _ Backoff = logBackoff{}

// logBackoff contains logarithmic Backoff policy.
type logBackoff struct {
	// slotDuration is a size of a single time slot used in Backoff Delay
	// calculation.
	// If slotDuration is less or equal to zero, then the time.Second value is
	// used.
	slotDuration time.Duration

	// ceiling is a maximum degree of Backoff Delay growth.
	// If ceiling is less or equal to zero, then the default ceiling of 1 is
	// used.
	ceiling uint

	// jitterLimit controls fixed and random portions of Backoff Delay.
	// Its value can be in range [0, 1].
	// If jitterLimit is non zero, then the Backoff Delay will be equal to (F + R),
	// where F is a result of multiplication of this value and calculated Delay
	// duration D; and R is a random sized part from [0,(D - F)].
	jitterLimit float64

	// generator of jitter
	r xrand.Rand

	clock clockwork.Clock
}

type option func(b *logBackoff)

func WithSlotDuration(slotDuration time.Duration) option {
	return func(b *logBackoff) {
		b.slotDuration = slotDuration
	}
}

func WithCeiling(ceiling uint) option {
	return func(b *logBackoff) {
		b.ceiling = ceiling
	}
}

func WithJitterLimit(jitterLimit float64) option {
	return func(b *logBackoff) {
		b.jitterLimit = jitterLimit
	}
}

func WithSeed(seed int64) option {
	return func(b *logBackoff) {
		b.r = xrand.New(xrand.WithLock(), xrand.WithSeed(seed))
	}
}

func WithClock(clock clockwork.Clock) option {
	return func(b *logBackoff) {
		b.clock = clock
	}
}

func New(opts ...option) logBackoff {
	b := logBackoff{
		r:     xrand.New(xrand.WithLock()),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}

	return b
}

// Delay returns mapping of i to Delay.
func (b logBackoff) Delay(i int) time.Duration {
	s := b.slotDuration
	if s <= 0 {
		s = time.Second
	}
	n := 1 << min(uint(i), max(1, b.ceiling))
	d := s * time.Duration(n)
	f := time.Duration(math.Min(1, math.Abs(b.jitterLimit)) * float64(d))
	if f == d {
		return f
	}

	return f + time.Duration(b.r.Int64(int64(d-f)+1))
}

func (b logBackoff) Wait(i int) <-chan time.Time {
	return b.clock.After(b.Delay(i))
}

// Wait waits for Delay(i) of the given backoff or for the context end,
// whichever comes first.
func Wait(ctx context.Context, b Backoff, i int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.Wait(i):
		return nil
	}
}

func min(a, b uint) uint {
	if a < b {
		return a
	}

	return b
}

func max(a, b uint) uint {
	if a > b {
		return a
	}

	return b
}
