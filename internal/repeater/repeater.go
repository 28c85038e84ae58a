// Package repeater contains logic of repeating some task periodically.
package repeater

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/keyspandb/keyspan-go-sdk/internal/backoff"
)

type Repeater interface {
	Stop()
	Force()
}

type repeater struct {
	// interval contains an interval between task execution.
	// interval must be greater than zero; if not, Repeater will panic.
	interval time.Duration

	name string

	// task is a function that must be executed periodically.
	task func(context.Context) error

	cancel  context.CancelFunc
	stopped chan struct{}

	force chan struct{}
	clock clockwork.Clock
}

type option func(r *repeater)

func WithName(name string) option {
	return func(r *repeater) {
		r.name = name
	}
}

func WithClock(clock clockwork.Clock) option {
	return func(r *repeater) {
		r.clock = clock
	}
}

// New creates and begins to execute task periodically.
func New(
	interval time.Duration,
	task func(ctx context.Context) (err error),
	opts ...option,
) *repeater {
	ctx, cancel := context.WithCancel(context.Background())

	r := &repeater{
		interval: interval,
		task:     task,
		cancel:   cancel,
		stopped:  make(chan struct{}),
		force:    make(chan struct{}, 1),
		clock:    clockwork.NewRealClock(),
	}

	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}

	go r.worker(ctx, r.clock.NewTicker(interval))

	return r
}

// Stop stops to execute its task.
func (r *repeater) Stop() {
	r.cancel()
	<-r.stopped
}

func (r *repeater) Force() {
	select {
	case r.force <- struct{}{}:
	default:
	}
}

func (r *repeater) wakeUp(ctx context.Context) (err error) {
	if err = ctx.Err(); err != nil {
		return err
	}

	defer func() {
		if err != nil {
			r.Force()
		} else {
			select {
			case <-r.force:
			default:
			}
		}
	}()

	return r.task(ctx)
}

func (r *repeater) worker(ctx context.Context, tick clockwork.Ticker) {
	defer close(r.stopped)
	defer tick.Stop()

	// force retries failed wake-ups with delays [500ms...32s]
	force := backoff.New(
		backoff.WithSlotDuration(500*time.Millisecond),
		backoff.WithCeiling(6),
		backoff.WithJitterLimit(1),
		backoff.WithClock(r.clock),
	)

	// forceIndex defines delay index for force backoff
	forceIndex := 0

	waitForceEvent := func() bool {
		if forceIndex == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-tick.Chan():
			return true
		case <-force.Wait(forceIndex):
			return true
		}
	}

	process := func() {
		if err := r.wakeUp(ctx); err != nil {
			forceIndex++
		} else {
			forceIndex = 0
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-tick.Chan():
			process()

		case <-r.force:
			if waitForceEvent() {
				process()
			}
		}
	}
}
