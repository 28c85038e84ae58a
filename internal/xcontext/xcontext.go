package xcontext

import (
	"context"
	"time"
)

type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }

func (valueOnlyContext) Done() <-chan struct{} { return nil }

func (valueOnlyContext) Err() error { return nil }

// ValueOnly helps to clear parent context from deadlines/cancels
// while keeping its values.
func ValueOnly(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}

// WithDone returns a context that is canceled when done is closed.
func WithDone(parent context.Context, done <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	select {
	case <-done:
		cancel()

		return ctx, cancel
	default:
	}

	go func() {
		select {
		case <-done:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
