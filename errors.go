package keyspan

import (
	"github.com/keyspandb/keyspan-go-sdk/internal/pool"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
)

var (
	// errManagedTransaction is returned when Commit or Rollback is
	// called on a transaction owned by a retry loop.
	errManagedTransaction = xerrors.New("transaction lifetime is managed by the client")

	// errNestedTransaction is returned when a retryable closure starts
	// another read-write transaction on the same client.
	errNestedTransaction = xerrors.New("nested read-write transactions are not supported")

	// errRetryBudgetExceeded is joined with context.DeadlineExceeded and
	// the last attempt error when a retry loop runs out of elapsed time.
	errRetryBudgetExceeded = xerrors.New("retry budget exceeded")
)

// IsAborted reports whether err is, or wraps, the server's
// write-conflict signal. The client retries aborted transactions
// automatically until the retry budget runs out.
func IsAborted(err error) bool {
	return xerrors.IsAborted(err)
}

// IsSessionNotFound reports whether the server dropped the session the
// operation was bound to.
func IsSessionNotFound(err error) bool {
	return xerrors.IsSessionNotFound(err)
}

// IsPoolExhausted reports whether the session pool was at its limit
// and no session freed up within the wait window.
func IsPoolExhausted(err error) bool {
	return xerrors.Is(err, pool.ErrPoolExhausted)
}

// IsDeadlineExceeded reports whether the operation ran out of time,
// either by context deadline or by server report.
func IsDeadlineExceeded(err error) bool {
	return xerrors.IsDeadlineExceeded(err)
}
