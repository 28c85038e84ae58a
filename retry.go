package keyspan

import (
	"context"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
	"github.com/keyspandb/keyspan-go-sdk/internal/backoff"
	"github.com/keyspandb/keyspan-go-sdk/internal/session"
	"github.com/keyspandb/keyspan-go-sdk/internal/tx"
	"github.com/keyspandb/keyspan-go-sdk/internal/xcontext"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
	"github.com/keyspandb/keyspan-go-sdk/trace"
)

// TxOption configures one read-write transaction.
type TxOption func(s *txSettings)

type txSettings struct {
	returnStats bool
}

// WithCommitStats requests mutation counts in the commit result.
func WithCommitStats() TxOption {
	return func(s *txSettings) {
		s.returnStats = true
	}
}

// ApplyOption configures Apply.
type ApplyOption func(s *applySettings)

type applySettings struct {
	atLeastOnce bool
}

// AtLeastOnce makes Apply commit through a single transport attempt
// per retry, without exactly-once protection: an ambiguous outcome is
// retried and may apply the mutations twice. Cheaper for blind writes
// that are idempotent anyway.
func AtLeastOnce() ApplyOption {
	return func(s *applySettings) {
		s.atLeastOnce = true
	}
}

type txMarkerKey struct{}

// ReadWriteTransaction runs f inside a locking transaction and commits
// what it did. On a lock conflict the whole closure is re-run, after a
// backoff pause, on the same session: the retry keeps the lock
// priority the aborted attempt accumulated. A session the server has
// forgotten is replaced once; the elapsed-time retry budget bounds the
// loop. f may be called multiple times and must not keep state outside
// the transaction.
func (c *Client) ReadWriteTransaction(
	ctx context.Context,
	f func(ctx context.Context, txc *ReadWriteTransaction) error,
	opts ...TxOption,
) (res CommitResult, finalErr error) {
	if ctx.Value(txMarkerKey{}) != nil {
		return CommitResult{}, xerrors.WithStackTrace(errNestedTransaction)
	}

	var settings txSettings
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	attempts := 0
	if onDone := c.config.retryTrace.OnRetry; onDone != nil {
		done := onDone(trace.RetryLoopStartInfo{Context: &ctx, Label: "ReadWriteTransaction"})
		if done != nil {
			defer func() {
				done(trace.RetryLoopDoneInfo{Attempts: attempts, Error: finalErr})
			}()
		}
	}

	start := c.config.clock.Now()
	fctx := context.WithValue(ctx, txMarkerKey{}, struct{}{})

	s, err := c.pool.Get(ctx)
	if err != nil {
		return CommitResult{}, err
	}
	released := false
	defer func() {
		if !released {
			_ = c.pool.Put(xcontext.ValueOnly(ctx), s)
		}
	}()

	notFoundRetried := false
	for attempt := 0; ; attempt++ {
		attempts++

		t := tx.NewReadWrite(s, c.config.trace)
		handle := &ReadWriteTransaction{tx: t, managed: true}

		err := func() error {
			defer func() {
				if r := recover(); r != nil {
					// release the server transaction before the panic
					// unwinds past the deferred pool release
					handle.done = true
					if t.ID() != nil {
						_ = t.Rollback(xcontext.ValueOnly(ctx))
					}
					panic(r)
				}
			}()

			return f(fctx, handle)
		}()
		commitPhase := false
		var commitRes *api.CommitResponse
		if err == nil {
			commitPhase = true
			commitRes, err = t.Commit(ctx, settings.returnStats)
		}
		handle.done = true
		if err == nil {
			return commitResult(commitRes), nil
		}

		switch {
		case xerrors.IsSessionNotFound(err):
			released = true
			_ = c.pool.Discard(ctx, s)
			if notFoundRetried {
				return CommitResult{}, err
			}
			notFoundRetried = true
			s, err = c.pool.Get(ctx)
			if err != nil {
				return CommitResult{}, err
			}
			released = false

		case xerrors.IsAborted(err), !commitPhase && xerrors.MustRetry(err):
			if !xerrors.IsAborted(err) {
				// the server transaction may still hold locks
				_ = t.Rollback(xcontext.ValueOnly(ctx))
			}
			if c.config.clock.Since(start) >= c.config.retryBudget {
				return CommitResult{}, budgetExceeded(err)
			}
			if werr := backoff.Wait(ctx, c.backoffFor(err), attempt); werr != nil {
				return CommitResult{}, xerrors.WithStackTrace(werr)
			}

		default:
			// a closure error or a fatal server error; release the
			// server transaction if one was begun
			if t.ID() != nil {
				_ = t.Rollback(xcontext.ValueOnly(ctx))
			}

			return CommitResult{}, err
		}
	}
}

type retrySettings struct {
	// idempotent widens the retryable set with transport errors whose
	// outcome is ambiguous.
	idempotent bool

	// keepSession leaves the session with the caller on success
	// instead of returning it to the pool.
	keepSession bool
}

// retryOperation runs op with a pooled session, replacing the session
// and backing off between attempts the same way the transaction loop
// does.
func (c *Client) retryOperation(
	ctx context.Context,
	label string,
	settings retrySettings,
	op func(ctx context.Context, s *session.Session) error,
) (finalErr error) {
	attempts := 0
	if onDone := c.config.retryTrace.OnRetry; onDone != nil {
		done := onDone(trace.RetryLoopStartInfo{Context: &ctx, Label: label})
		if done != nil {
			defer func() {
				done(trace.RetryLoopDoneInfo{Attempts: attempts, Error: finalErr})
			}()
		}
	}

	start := c.config.clock.Now()
	notFoundRetried := false

	for attempt := 0; ; attempt++ {
		attempts++

		s, err := c.pool.Get(ctx)
		if err != nil {
			return err
		}

		err = op(ctx, s)
		if err == nil {
			if !settings.keepSession {
				_ = c.pool.Put(xcontext.ValueOnly(ctx), s)
			}

			return nil
		}

		if xerrors.IsSessionNotFound(err) {
			_ = c.pool.Discard(ctx, s)
			if notFoundRetried {
				return err
			}
			notFoundRetried = true

			continue
		}

		_ = c.pool.Put(xcontext.ValueOnly(ctx), s)

		retriable := xerrors.MustRetry(err) ||
			(settings.idempotent && xerrors.BackoffTypeFromError(err) != backoff.TypeNoBackoff)
		if !retriable {
			return err
		}
		if c.config.clock.Since(start) >= c.config.retryBudget {
			return budgetExceeded(err)
		}
		if werr := backoff.Wait(ctx, c.backoffFor(err), attempt); werr != nil {
			return xerrors.WithStackTrace(werr)
		}
	}
}

// budgetExceeded converts the last attempt error into a deadline-class
// error once the elapsed-time budget is spent. The attempt error stays
// inspectable through the chain.
func budgetExceeded(err error) error {
	return xerrors.WithStackTrace(xerrors.Join(errRetryBudgetExceeded, context.DeadlineExceeded, err))
}

func (c *Client) backoffFor(err error) backoff.Backoff {
	if xerrors.BackoffTypeFromError(err) == backoff.TypeSlowBackoff {
		return c.slowBackoff
	}

	return c.fastBackoff
}
