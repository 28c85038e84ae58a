package keyspan

import (
	"context"
	"time"

	"github.com/keyspandb/keyspan-go-sdk/internal/session"
	"github.com/keyspandb/keyspan-go-sdk/internal/tx"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
)

// ReadWriteTransaction is the handle a transaction body works with.
// Handles passed to a retryable closure are managed: the client
// commits and rolls back for the caller, and a handle must not be used
// after the closure returns. Handles from BeginReadWriteTransaction
// are committed and rolled back explicitly.
//
// A handle is not safe for concurrent use.
type ReadWriteTransaction struct {
	c  *Client
	s  *session.Session
	tx *tx.ReadWrite

	managed bool
	done    bool
}

// BufferWrite queues mutations for the commit. Buffered mutations are
// invisible to the transaction's own reads.
func (t *ReadWriteTransaction) BufferWrite(mutations ...Mutation) error {
	if t.done {
		return xerrors.WithStackTrace(tx.ErrFinished)
	}

	return t.tx.BufferWrite(mutations...)
}

// Query executes a SQL statement inside the transaction.
func (t *ReadWriteTransaction) Query(ctx context.Context, sql string, params map[string]any) (*ResultSet, error) {
	if t.done {
		return nil, xerrors.WithStackTrace(tx.ErrFinished)
	}

	return t.tx.Query(ctx, sql, params)
}

// Update executes a DML statement and returns the affected row count.
func (t *ReadWriteTransaction) Update(ctx context.Context, sql string, params map[string]any) (int64, error) {
	if t.done {
		return 0, xerrors.WithStackTrace(tx.ErrFinished)
	}

	return t.tx.Update(ctx, sql, params)
}

// QueryStatement executes a prepared statement inside the transaction.
func (t *ReadWriteTransaction) QueryStatement(ctx context.Context, stmt Statement) (*ResultSet, error) {
	return t.Query(ctx, stmt.SQL, stmt.Params)
}

// UpdateStatement executes a prepared DML statement and returns the
// affected row count.
func (t *ReadWriteTransaction) UpdateStatement(ctx context.Context, stmt Statement) (int64, error) {
	return t.Update(ctx, stmt.SQL, stmt.Params)
}

// Read fetches rows by key inside the transaction.
func (t *ReadWriteTransaction) Read(ctx context.Context, table string, keySet KeySet, columns []string) (*ResultSet, error) {
	if t.done {
		return nil, xerrors.WithStackTrace(tx.ErrFinished)
	}

	return t.tx.Read(ctx, table, keySet, columns)
}

// Commit finalizes an unmanaged transaction and returns its session to
// the pool. An aborted commit is not retried here; the caller begins a
// fresh transaction.
func (t *ReadWriteTransaction) Commit(ctx context.Context, opts ...TxOption) (CommitResult, error) {
	if t.managed {
		return CommitResult{}, xerrors.WithStackTrace(errManagedTransaction)
	}
	if t.done {
		return CommitResult{}, xerrors.WithStackTrace(tx.ErrFinished)
	}

	var settings txSettings
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	res, err := t.tx.Commit(ctx, settings.returnStats)
	t.done = true
	t.c.putSession(ctx, t.s, err)
	if err != nil {
		return CommitResult{}, err
	}

	return commitResult(res), nil
}

// Rollback aborts an unmanaged transaction and returns its session to
// the pool.
func (t *ReadWriteTransaction) Rollback(ctx context.Context) error {
	if t.managed {
		return xerrors.WithStackTrace(errManagedTransaction)
	}
	if t.done {
		return xerrors.WithStackTrace(tx.ErrFinished)
	}

	err := t.tx.Rollback(ctx)
	t.done = true
	t.c.putSession(ctx, t.s, err)

	return err
}

// ReadOnlyTransaction reads at the snapshot its TimestampBound picked.
// Single-use handles run every read in a fresh temporary transaction;
// multi-use handles share one read timestamp and must be closed.
type ReadOnlyTransaction struct {
	c      *Client
	bound  TimestampBound
	single bool

	s      *session.Session
	tx     *tx.ReadOnly
	closed bool
}

// WithTimestampBound changes the snapshot of a single-use handle. It
// must be called before the first read.
func (t *ReadOnlyTransaction) WithTimestampBound(bound TimestampBound) *ReadOnlyTransaction {
	if t.single {
		t.bound = bound
	}

	return t
}

// ReadTimestamp returns the shared snapshot timestamp of a multi-use
// transaction, zero for single-use handles.
func (t *ReadOnlyTransaction) ReadTimestamp() time.Time {
	if t.tx == nil {
		return time.Time{}
	}

	return t.tx.ReadTimestamp()
}

// Query executes a SQL statement at the transaction's snapshot.
func (t *ReadOnlyTransaction) Query(ctx context.Context, sql string, params map[string]any) (*ResultSet, error) {
	if t.single {
		var res *ResultSet
		err := t.c.retryOperation(ctx, "Single.Query", retrySettings{
			idempotent: true,
		}, func(ctx context.Context, s *session.Session) error {
			r, err := tx.NewSingleUse(s, t.bound.readOnly()).Query(ctx, sql, params)
			if err != nil {
				return err
			}
			res = r

			return nil
		})

		return res, err
	}

	if t.closed {
		return nil, xerrors.WithStackTrace(tx.ErrFinished)
	}

	return t.tx.Query(ctx, sql, params)
}

// QueryStatement executes a prepared statement at the transaction's
// snapshot.
func (t *ReadOnlyTransaction) QueryStatement(ctx context.Context, stmt Statement) (*ResultSet, error) {
	return t.Query(ctx, stmt.SQL, stmt.Params)
}

// Read fetches rows by key at the transaction's snapshot.
func (t *ReadOnlyTransaction) Read(ctx context.Context, table string, keySet KeySet, columns []string) (*ResultSet, error) {
	if t.single {
		var res *ResultSet
		err := t.c.retryOperation(ctx, "Single.Read", retrySettings{
			idempotent: true,
		}, func(ctx context.Context, s *session.Session) error {
			r, err := tx.NewSingleUse(s, t.bound.readOnly()).Read(ctx, table, keySet, columns)
			if err != nil {
				return err
			}
			res = r

			return nil
		})

		return res, err
	}

	if t.closed {
		return nil, xerrors.WithStackTrace(tx.ErrFinished)
	}

	return t.tx.Read(ctx, table, keySet, columns)
}

// Close returns the session of a multi-use transaction to the pool.
// Snapshot transactions hold no locks, so there is nothing to roll
// back server-side. Close is a no-op for single-use handles.
func (t *ReadOnlyTransaction) Close(ctx context.Context) error {
	if t.single || t.closed {
		return nil
	}
	t.closed = true
	t.c.putSession(ctx, t.s, nil)

	return nil
}
