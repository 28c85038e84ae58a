package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
	"github.com/keyspandb/keyspan-go-sdk/internal/session"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
	"github.com/keyspandb/keyspan-go-sdk/testutil"
)

func newTestSession(t *testing.T, srv *testutil.Server) *session.Session {
	t.Helper()
	s, err := session.New(context.Background(), srv, session.Config{Database: "db"})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})

	return s
}

func TestLazyBegin(t *testing.T) {
	srv := testutil.NewServer(nil)
	s := newTestSession(t, srv)
	rw := NewReadWrite(s, nil)

	require.Nil(t, rw.ID())

	_, err := rw.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)

	// the transaction piggybacked on the first call
	require.NotNil(t, rw.ID())
	require.Equal(t, 0, srv.Calls("BeginTransaction"))

	id := rw.ID()
	_, err = rw.Query(context.Background(), "SELECT 2", nil)
	require.NoError(t, err)
	require.Equal(t, id, rw.ID())
	require.Equal(t, 2, srv.Calls("ExecuteSql"))
}

func TestMutationsOnlyCommitSkipsBegin(t *testing.T) {
	srv := testutil.NewServer(nil)
	s := newTestSession(t, srv)
	rw := NewReadWrite(s, nil)

	var committed *api.CommitRequest
	srv.OnCommit = func(req *api.CommitRequest) error {
		committed = req

		return nil
	}

	require.NoError(t, rw.BufferWrite(api.Mutation{
		Insert: &api.Write{
			Table:   "users",
			Columns: []string{"id", "name"},
			Values:  [][]any{{int64(1), "ann"}},
		},
	}))

	res, err := rw.Commit(context.Background(), false)
	require.NoError(t, err)
	require.False(t, res.CommitTimestamp.IsZero())

	require.NotNil(t, committed)
	require.NotNil(t, committed.SingleUseTransaction)
	require.Nil(t, committed.TransactionID)
	require.Equal(t, 0, srv.Calls("BeginTransaction"))
	require.Equal(t, 0, srv.Calls("ExecuteSql"))

	require.Equal(t, "ann", srv.Row("users", int64(1))["name"])
}

func TestCommitContinuesBegunTransaction(t *testing.T) {
	srv := testutil.NewServer(nil)
	s := newTestSession(t, srv)
	rw := NewReadWrite(s, nil)

	var committed *api.CommitRequest
	srv.OnCommit = func(req *api.CommitRequest) error {
		committed = req

		return nil
	}

	_, err := rw.Update(context.Background(), "UPDATE t SET v = 1", nil)
	require.NoError(t, err)

	_, err = rw.Commit(context.Background(), false)
	require.NoError(t, err)

	require.NotNil(t, committed)
	require.Equal(t, rw.ID(), committed.TransactionID)
	require.Nil(t, committed.SingleUseTransaction)
}

func TestBufferWriteKeepsOrder(t *testing.T) {
	srv := testutil.NewServer(nil)
	s := newTestSession(t, srv)
	rw := NewReadWrite(s, nil)

	var committed *api.CommitRequest
	srv.OnCommit = func(req *api.CommitRequest) error {
		committed = req

		return nil
	}

	tables := []string{"a", "b", "c"}
	for _, table := range tables {
		require.NoError(t, rw.BufferWrite(api.Mutation{
			Insert: &api.Write{
				Table:   table,
				Columns: []string{"id"},
				Values:  [][]any{{int64(1)}},
			},
		}))
	}

	_, err := rw.Commit(context.Background(), false)
	require.NoError(t, err)

	require.Len(t, committed.Mutations, 3)
	for i, table := range tables {
		require.Equal(t, table, committed.Mutations[i].Insert.Table)
	}
}

func TestUpdateSequencesStatements(t *testing.T) {
	srv := testutil.NewServer(nil)
	s := newTestSession(t, srv)
	rw := NewReadWrite(s, nil)

	_, err := rw.Update(context.Background(), "UPDATE t SET v = 1", nil)
	require.NoError(t, err)
	_, err = rw.Update(context.Background(), "UPDATE t SET v = 2", nil)
	require.NoError(t, err)

	require.Equal(t, int64(2), rw.seqno.Load())
}

func TestUpdateReportsRowCount(t *testing.T) {
	srv := testutil.NewServer(nil)
	srv.RowCount = 7
	s := newTestSession(t, srv)
	rw := NewReadWrite(s, nil)

	n, err := rw.Update(context.Background(), "DELETE FROM t", nil)
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
}

func TestFinishedTransactionRejectsOperations(t *testing.T) {
	srv := testutil.NewServer(nil)
	s := newTestSession(t, srv)
	rw := NewReadWrite(s, nil)

	_, err := rw.Commit(context.Background(), false)
	require.NoError(t, err)

	require.ErrorIs(t, rw.BufferWrite(api.Mutation{}), ErrFinished)
	_, err = rw.Query(context.Background(), "SELECT 1", nil)
	require.ErrorIs(t, err, ErrFinished)
	_, err = rw.Commit(context.Background(), false)
	require.ErrorIs(t, err, ErrFinished)
	require.ErrorIs(t, rw.Rollback(context.Background()), ErrFinished)
}

func TestRollbackWithoutBeginIsLocal(t *testing.T) {
	srv := testutil.NewServer(nil)
	s := newTestSession(t, srv)
	rw := NewReadWrite(s, nil)

	require.NoError(t, rw.Rollback(context.Background()))
	require.Equal(t, 0, srv.Calls("Rollback"))
}

func TestRollbackAfterBegin(t *testing.T) {
	srv := testutil.NewServer(nil)
	s := newTestSession(t, srv)
	rw := NewReadWrite(s, nil)

	_, err := rw.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)

	require.NoError(t, rw.Rollback(context.Background()))
	require.Equal(t, 1, srv.Calls("Rollback"))
}

func TestCommitSessionNotFoundInvalidatesSession(t *testing.T) {
	srv := testutil.NewServer(nil)
	s := newTestSession(t, srv)
	rw := NewReadWrite(s, nil)

	srv.FailNext("Commit", testutil.SessionNotFound(s.ID()))

	_, err := rw.Commit(context.Background(), false)
	require.Error(t, err)
	require.True(t, xerrors.IsSessionNotFound(err))
	require.False(t, s.IsAlive())
}

func TestSingleUseReadOnly(t *testing.T) {
	srv := testutil.NewServer(nil)
	s := newTestSession(t, srv)

	ro := NewSingleUse(s, api.ReadOnly{Strong: true})
	_, err := ro.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)
	_, err = ro.Query(context.Background(), "SELECT 2", nil)
	require.NoError(t, err)

	require.Equal(t, 0, srv.Calls("BeginTransaction"))
	require.Equal(t, 0, srv.Calls("Commit"))
	require.Equal(t, 0, srv.Calls("Rollback"))
}

func TestMultiUseReadOnly(t *testing.T) {
	srv := testutil.NewServer(nil)
	writer := newTestSession(t, srv)

	rw := NewReadWrite(writer, nil)
	require.NoError(t, rw.BufferWrite(api.Mutation{
		Insert: &api.Write{
			Table:   "users",
			Columns: []string{"id", "name"},
			Values:  [][]any{{int64(1), "bob"}},
		},
	}))
	_, err := rw.Commit(context.Background(), false)
	require.NoError(t, err)

	s := newTestSession(t, srv)
	ro, err := Begin(context.Background(), s, api.ReadOnly{Strong: true}, nil)
	require.NoError(t, err)
	require.False(t, ro.ReadTimestamp().IsZero())
	require.Equal(t, 1, srv.Calls("BeginTransaction"))

	res, err := ro.Read(context.Background(), "users", api.KeySet{Keys: [][]any{{int64(1)}}}, []string{"id", "name"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "bob", res.Rows[0][1])

	_, err = ro.Query(context.Background(), "SELECT 1", nil)
	require.NoError(t, err)

	// only the writer committed, the snapshot transaction never does
	require.Equal(t, 1, srv.Calls("Commit"))
	require.Equal(t, 0, srv.Calls("Rollback"))
}
