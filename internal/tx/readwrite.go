package tx

import (
	"context"
	"sync/atomic"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
	"github.com/keyspandb/keyspan-go-sdk/internal/session"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
	"github.com/keyspandb/keyspan-go-sdk/trace"
)

// ReadWrite is a locking transaction context. The server transaction is
// begun lazily: the first read or query carries a Begin selector and
// the returned transaction id is reused afterwards. A transaction that
// only buffered mutations commits through the single-use path and
// never begins at all.
type ReadWrite struct {
	s     *session.Session
	trace *trace.Client

	state     state
	id        []byte
	mutations []api.Mutation
	seqno     atomic.Int64
}

func NewReadWrite(s *session.Session, t *trace.Client) *ReadWrite {
	if t == nil {
		t = &trace.Client{}
	}

	return &ReadWrite{
		s:     s,
		trace: t,
	}
}

// ID returns the server transaction id, or nil before the first read
// or query.
func (tx *ReadWrite) ID() []byte {
	return tx.id
}

// SessionID returns the id of the session the transaction is bound to.
func (tx *ReadWrite) SessionID() string {
	return tx.s.ID()
}

// selector chooses between continuing the begun transaction and
// beginning one as a side effect of the next call.
func (tx *ReadWrite) selector() *api.TransactionSelector {
	if tx.id != nil {
		return &api.TransactionSelector{ID: tx.id}
	}

	return &api.TransactionSelector{
		Begin: &api.TransactionOptions{ReadWrite: &api.ReadWrite{}},
	}
}

// capture records the transaction id returned with the first result.
func (tx *ReadWrite) capture(md *api.ResultSetMetadata) {
	if tx.id != nil || md == nil || md.Transaction == nil {
		return
	}
	tx.id = md.Transaction.ID

	if onDone := tx.trace.OnTxBegin; onDone != nil {
		ctx := context.Background()
		done := onDone(trace.TxBeginStartInfo{Context: &ctx, SessionID: tx.s.ID()})
		if done != nil {
			done(trace.TxBeginDoneInfo{TxID: string(tx.id)})
		}
	}
}

func (tx *ReadWrite) checkActive() error {
	if tx.state != stateActive {
		return xerrors.WithStackTrace(ErrFinished)
	}

	return nil
}

// BufferWrite appends mutations to the transaction buffer. Buffered
// mutations are applied atomically, in order, at commit.
func (tx *ReadWrite) BufferWrite(mutations ...api.Mutation) error {
	if err := tx.checkActive(); err != nil {
		return err
	}
	tx.mutations = append(tx.mutations, mutations...)

	return nil
}

// Query executes a SQL statement inside the transaction.
func (tx *ReadWrite) Query(ctx context.Context, sql string, params map[string]any) (*api.ResultSet, error) {
	if err := tx.checkActive(); err != nil {
		return nil, err
	}

	res, err := tx.s.Conn().ExecuteSql(ctx, &api.ExecuteSqlRequest{
		Session:     tx.s.ID(),
		Transaction: tx.selector(),
		SQL:         sql,
		Params:      params,
		Seqno:       tx.seqno.Add(1),
	})
	if err != nil {
		return nil, xerrors.WithStackTrace(tx.s.CheckError(err))
	}
	tx.s.Touch()
	if res != nil {
		tx.capture(res.Metadata)
	}

	return res, nil
}

// Update executes a DML statement and returns the affected row count.
// The sequence number makes replays of the same statement idempotent.
func (tx *ReadWrite) Update(ctx context.Context, sql string, params map[string]any) (int64, error) {
	res, err := tx.Query(ctx, sql, params)
	if err != nil {
		return 0, err
	}

	return res.RowCount(), nil
}

// Read fetches rows by key inside the transaction.
func (tx *ReadWrite) Read(ctx context.Context, table string, keySet api.KeySet, columns []string) (*api.ResultSet, error) {
	if err := tx.checkActive(); err != nil {
		return nil, err
	}

	res, err := tx.s.Conn().Read(ctx, &api.ReadRequest{
		Session:     tx.s.ID(),
		Transaction: tx.selector(),
		Table:       table,
		Columns:     columns,
		KeySet:      keySet,
	})
	if err != nil {
		return nil, xerrors.WithStackTrace(tx.s.CheckError(err))
	}
	tx.s.Touch()
	if res != nil {
		tx.capture(res.Metadata)
	}

	return res, nil
}

// Commit finalizes the transaction with the buffered mutations. When
// no server transaction was begun the mutations are committed through
// a single-use transaction, saving the begin round trip.
func (tx *ReadWrite) Commit(ctx context.Context, returnStats bool) (res *api.CommitResponse, finalErr error) {
	if err := tx.checkActive(); err != nil {
		return nil, err
	}

	if onDone := tx.trace.OnTxCommit; onDone != nil {
		done := onDone(trace.TxCommitStartInfo{
			Context:   &ctx,
			SessionID: tx.s.ID(),
			TxID:      string(tx.id),
		})
		if done != nil {
			defer func() {
				info := trace.TxCommitDoneInfo{Error: finalErr}
				if res != nil {
					info.CommitTimestamp = res.CommitTimestamp
				}
				done(info)
			}()
		}
	}

	req := &api.CommitRequest{
		Session:           tx.s.ID(),
		Mutations:         tx.mutations,
		ReturnCommitStats: returnStats,
	}
	if tx.id != nil {
		req.TransactionID = tx.id
	} else {
		req.SingleUseTransaction = &api.TransactionOptions{ReadWrite: &api.ReadWrite{}}
	}

	res, err := tx.s.Conn().Commit(ctx, req)
	if err != nil {
		tx.state = stateFailed

		return nil, xerrors.WithStackTrace(tx.s.CheckError(err))
	}
	tx.s.Touch()
	tx.state = stateCommitted

	return res, nil
}

// Rollback aborts the server transaction if one was begun. It is a
// no-op for a transaction that never reached the server.
func (tx *ReadWrite) Rollback(ctx context.Context) (finalErr error) {
	if tx.state != stateActive && tx.state != stateFailed {
		return xerrors.WithStackTrace(ErrFinished)
	}
	tx.state = stateRolledBack

	if tx.id == nil {
		return nil
	}

	if onDone := tx.trace.OnTxRollback; onDone != nil {
		done := onDone(trace.TxRollbackStartInfo{
			Context:   &ctx,
			SessionID: tx.s.ID(),
			TxID:      string(tx.id),
		})
		if done != nil {
			defer func() {
				done(trace.TxRollbackDoneInfo{Error: finalErr})
			}()
		}
	}

	err := tx.s.Conn().Rollback(ctx, &api.RollbackRequest{
		Session:       tx.s.ID(),
		TransactionID: tx.id,
	})
	if err != nil {
		return xerrors.WithStackTrace(tx.s.CheckError(err))
	}
	tx.s.Touch()

	return nil
}
