package tx

import (
	"context"
	"time"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
	"github.com/keyspandb/keyspan-go-sdk/internal/session"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
	"github.com/keyspandb/keyspan-go-sdk/trace"
)

// ReadOnly is a snapshot transaction context. It takes no locks and is
// never committed or rolled back. A single-use context executes each
// call in its own temporary transaction; a multi-use one is begun
// explicitly and pins one read timestamp for all its reads.
type ReadOnly struct {
	s     *session.Session
	bound api.ReadOnly

	singleUse     bool
	id            []byte
	readTimestamp time.Time
}

// NewSingleUse returns a context whose reads each see their own
// snapshot chosen by bound.
func NewSingleUse(s *session.Session, bound api.ReadOnly) *ReadOnly {
	return &ReadOnly{
		s:         s,
		bound:     bound,
		singleUse: true,
	}
}

// Begin starts a multi-use read-only transaction on s. The server
// picks the read timestamp once, per bound.
func Begin(ctx context.Context, s *session.Session, bound api.ReadOnly, t *trace.Client) (ro *ReadOnly, finalErr error) {
	if t != nil {
		if onDone := t.OnTxBegin; onDone != nil {
			done := onDone(trace.TxBeginStartInfo{Context: &ctx, SessionID: s.ID()})
			if done != nil {
				defer func() {
					info := trace.TxBeginDoneInfo{Error: finalErr}
					if ro != nil {
						info.TxID = string(ro.id)
					}
					done(info)
				}()
			}
		}
	}

	bound.ReturnReadTimestamp = true
	started, err := s.Conn().BeginTransaction(ctx, &api.BeginTransactionRequest{
		Session: s.ID(),
		Options: api.TransactionOptions{ReadOnly: &bound},
	})
	if err != nil {
		return nil, xerrors.WithStackTrace(s.CheckError(err))
	}
	s.Touch()

	return &ReadOnly{
		s:             s,
		bound:         bound,
		id:            started.ID,
		readTimestamp: started.ReadTimestamp,
	}, nil
}

func (tx *ReadOnly) SessionID() string {
	return tx.s.ID()
}

// ReadTimestamp returns the snapshot timestamp of a multi-use
// transaction. It is zero for single-use contexts.
func (tx *ReadOnly) ReadTimestamp() time.Time {
	return tx.readTimestamp
}

func (tx *ReadOnly) selector() *api.TransactionSelector {
	if tx.singleUse {
		bound := tx.bound

		return &api.TransactionSelector{
			SingleUse: &api.TransactionOptions{ReadOnly: &bound},
		}
	}

	return &api.TransactionSelector{ID: tx.id}
}

// Query executes a SQL statement at the transaction's snapshot.
func (tx *ReadOnly) Query(ctx context.Context, sql string, params map[string]any) (*api.ResultSet, error) {
	res, err := tx.s.Conn().ExecuteSql(ctx, &api.ExecuteSqlRequest{
		Session:     tx.s.ID(),
		Transaction: tx.selector(),
		SQL:         sql,
		Params:      params,
	})
	if err != nil {
		return nil, xerrors.WithStackTrace(tx.s.CheckError(err))
	}
	tx.s.Touch()

	return res, nil
}

// Read fetches rows by key at the transaction's snapshot.
func (tx *ReadOnly) Read(ctx context.Context, table string, keySet api.KeySet, columns []string) (*api.ResultSet, error) {
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

	return res, nil
}
