// Package testutil provides an in-memory implementation of the data
// service stub for tests. The fake keeps sessions, transactions and
// table rows in maps and lets tests inject failures per method.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	grpcCodes "google.golang.org/grpc/codes"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
	"github.com/keyspandb/keyspan-go-sdk/internal/conn"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
)

var _ conn.Stub = (*Server)(nil)

type serverTx struct {
	id      string
	session string
	seqnos  map[int64]*api.ResultSet
}

// Server is the fake data service. The zero value is not usable; call
// NewServer.
type Server struct {
	clock clockwork.Clock

	mu       sync.Mutex
	sessions map[string]bool
	txs      map[string]*serverTx
	tables   map[string]map[string]map[string]any
	calls    map[string]int
	failures map[string][]error
	lastTS   time.Time

	// BatchLimit caps how many sessions one BatchCreateSessions call
	// returns. Zero means no cap.
	BatchLimit int

	// RowCount is the affected row count reported for DML statements.
	RowCount int64

	// OnCommit, if set, runs before a commit is applied. Returning an
	// error fails the commit.
	OnCommit func(req *api.CommitRequest) error
}

func NewServer(clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Server{
		clock:    clock,
		sessions: make(map[string]bool),
		txs:      make(map[string]*serverTx),
		tables:   make(map[string]map[string]map[string]any),
		calls:    make(map[string]int),
		failures: make(map[string][]error),
		RowCount: 1,
	}
}

// Aborted builds the server's write-conflict error.
func Aborted() error {
	return xerrors.Transport(
		xerrors.WithCode(grpcCodes.Aborted),
		xerrors.WithMessage("transaction aborted"),
	)
}

// SessionNotFound builds the error the server reports for a dropped
// session handle.
func SessionNotFound(id string) error {
	return xerrors.Transport(
		xerrors.WithCode(grpcCodes.NotFound),
		xerrors.WithMessage("Session not found: "+id),
	)
}

// Unavailable builds a transient transport error.
func Unavailable() error {
	return xerrors.Transport(
		xerrors.WithCode(grpcCodes.Unavailable),
		xerrors.WithMessage("try again later"),
	)
}

// FailNext queues err to be returned by the next call of method
// ("ExecuteSql", "Commit", ...). Queued errors are consumed in order.
func (f *Server) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], err)
}

// Calls reports how many times method was invoked.
func (f *Server) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[method]
}

// SessionCount reports how many sessions are alive server-side.
func (f *Server) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, alive := range f.sessions {
		if alive {
			n++
		}
	}

	return n
}

// DropSession makes the server forget a session without the client
// knowing, as a lost session lease would.
func (f *Server) DropSession(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
}

// Row returns a stored row as a column map, nil if absent.
func (f *Server) Row(table string, key any) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	rows := f.tables[table]
	if rows == nil {
		return nil
	}

	return rows[keyString([]any{key})]
}

func keyString(key []any) string {
	return fmt.Sprint(key...)
}

func (f *Server) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++

	if queue := f.failures[method]; len(queue) > 0 {
		err := queue[0]
		f.failures[method] = queue[1:]

		return err
	}

	return nil
}

func (f *Server) checkSession(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.sessions[id] {
		return SessionNotFound(id)
	}

	return nil
}

func (f *Server) newSession() api.Session {
	id := "sessions/" + uuid.NewString()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = true

	return api.Session{Name: id, CreateTime: f.clock.Now()}
}

func (f *Server) CreateSession(_ context.Context, _ *api.CreateSessionRequest) (*api.Session, error) {
	if err := f.enter("CreateSession"); err != nil {
		return nil, err
	}
	s := f.newSession()

	return &s, nil
}

func (f *Server) BatchCreateSessions(
	_ context.Context,
	req *api.BatchCreateSessionsRequest,
) (*api.BatchCreateSessionsResponse, error) {
	if err := f.enter("BatchCreateSessions"); err != nil {
		return nil, err
	}

	count := int(req.SessionCount)
	if f.BatchLimit > 0 && count > f.BatchLimit {
		count = f.BatchLimit
	}
	res := &api.BatchCreateSessionsResponse{}
	for i := 0; i < count; i++ {
		res.Sessions = append(res.Sessions, f.newSession())
	}

	return res, nil
}

func (f *Server) DeleteSession(_ context.Context, req *api.DeleteSessionRequest) error {
	if err := f.enter("DeleteSession"); err != nil {
		return err
	}
	if err := f.checkSession(req.Name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, req.Name)

	return nil
}

func (f *Server) beginTx(sessionID string) *api.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()

	tx := &serverTx{
		id:      uuid.NewString(),
		session: sessionID,
		seqnos:  make(map[int64]*api.ResultSet),
	}
	f.txs[tx.id] = tx

	return &api.Transaction{ID: []byte(tx.id), ReadTimestamp: f.clock.Now()}
}

func (f *Server) BeginTransaction(_ context.Context, req *api.BeginTransactionRequest) (*api.Transaction, error) {
	if err := f.enter("BeginTransaction"); err != nil {
		return nil, err
	}
	if err := f.checkSession(req.Session); err != nil {
		return nil, err
	}

	return f.beginTx(req.Session), nil
}

// resolve handles the transaction selector of a read or query: a Begin
// selector creates a transaction and reports it back via metadata.
func (f *Server) resolve(sessionID string, sel *api.TransactionSelector) (*serverTx, *api.ResultSetMetadata, error) {
	if sel == nil || sel.SingleUse != nil {
		return nil, nil, nil
	}
	if sel.Begin != nil {
		started := f.beginTx(sessionID)

		f.mu.Lock()
		defer f.mu.Unlock()

		return f.txs[string(started.ID)], &api.ResultSetMetadata{Transaction: started}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	tx := f.txs[string(sel.ID)]
	if tx == nil || tx.session != sessionID {
		return nil, nil, xerrors.Transport(
			xerrors.WithCode(grpcCodes.InvalidArgument),
			xerrors.WithMessage("unknown transaction"),
		)
	}

	return tx, nil, nil
}

func (f *Server) ExecuteSql(_ context.Context, req *api.ExecuteSqlRequest) (*api.ResultSet, error) {
	if err := f.enter("ExecuteSql"); err != nil {
		return nil, err
	}
	if err := f.checkSession(req.Session); err != nil {
		return nil, err
	}

	tx, md, err := f.resolve(req.Session, req.Transaction)
	if err != nil {
		return nil, err
	}

	if tx != nil && req.Seqno > 0 {
		f.mu.Lock()
		if cached, ok := tx.seqnos[req.Seqno]; ok {
			f.mu.Unlock()

			return cached, nil
		}
		f.mu.Unlock()
	}

	res := &api.ResultSet{
		Metadata: md,
		Stats:    &api.ResultSetStats{RowCountExact: f.RowCount},
	}
	if tx != nil && req.Seqno > 0 {
		f.mu.Lock()
		tx.seqnos[req.Seqno] = res
		f.mu.Unlock()
	}

	return res, nil
}

func (f *Server) Read(_ context.Context, req *api.ReadRequest) (*api.ResultSet, error) {
	if err := f.enter("Read"); err != nil {
		return nil, err
	}
	if err := f.checkSession(req.Session); err != nil {
		return nil, err
	}

	_, md, err := f.resolve(req.Session, req.Transaction)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	res := &api.ResultSet{Metadata: md}
	rows := f.tables[req.Table]
	appendRow := func(stored map[string]any) {
		row := make(api.Row, 0, len(req.Columns))
		for _, col := range req.Columns {
			row = append(row, stored[col])
		}
		res.Rows = append(res.Rows, row)
	}
	switch {
	case req.KeySet.All:
		for _, stored := range rows {
			appendRow(stored)
		}
	default:
		for _, key := range req.KeySet.Keys {
			if stored, ok := rows[keyString(key)]; ok {
				appendRow(stored)
			}
		}
	}

	return res, nil
}

func (f *Server) Commit(_ context.Context, req *api.CommitRequest) (*api.CommitResponse, error) {
	if err := f.enter("Commit"); err != nil {
		return nil, err
	}
	if err := f.checkSession(req.Session); err != nil {
		return nil, err
	}
	if hook := f.OnCommit; hook != nil {
		if err := hook(req); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if req.SingleUseTransaction == nil {
		tx := f.txs[string(req.TransactionID)]
		if tx == nil || tx.session != req.Session {
			return nil, xerrors.Transport(
				xerrors.WithCode(grpcCodes.InvalidArgument),
				xerrors.WithMessage("unknown transaction"),
			)
		}
		delete(f.txs, tx.id)
	}

	for _, m := range req.Mutations {
		if err := f.applyLocked(m); err != nil {
			return nil, err
		}
	}

	ts := f.clock.Now()
	if !ts.After(f.lastTS) {
		ts = f.lastTS.Add(time.Nanosecond)
	}
	f.lastTS = ts

	res := &api.CommitResponse{CommitTimestamp: ts}
	if req.ReturnCommitStats {
		res.CommitStats = &api.CommitStats{MutationCount: int64(len(req.Mutations))}
	}

	return res, nil
}

func (f *Server) Rollback(_ context.Context, req *api.RollbackRequest) error {
	if err := f.enter("Rollback"); err != nil {
		return err
	}
	if err := f.checkSession(req.Session); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.txs, string(req.TransactionID))

	return nil
}

// applyLocked applies one mutation to the row store. The first column
// of a write is treated as the primary key.
func (f *Server) applyLocked(m api.Mutation) error {
	writeRows := func(w *api.Write, mustExist, mustNotExist bool) error {
		rows := f.tables[w.Table]
		if rows == nil {
			rows = make(map[string]map[string]any)
			f.tables[w.Table] = rows
		}
		for _, values := range w.Values {
			key := keyString(values[:1])
			_, exists := rows[key]
			if mustNotExist && exists {
				return xerrors.Transport(
					xerrors.WithCode(grpcCodes.AlreadyExists),
					xerrors.WithMessage("row already exists"),
				)
			}
			if mustExist && !exists {
				return xerrors.Transport(
					xerrors.WithCode(grpcCodes.NotFound),
					xerrors.WithMessage("row not found"),
				)
			}
			stored := rows[key]
			if stored == nil {
				stored = make(map[string]any)
				rows[key] = stored
			}
			for i, col := range w.Columns {
				stored[col] = values[i]
			}
		}

		return nil
	}

	switch {
	case m.Insert != nil:
		return writeRows(m.Insert, false, true)
	case m.Update != nil:
		return writeRows(m.Update, true, false)
	case m.InsertOrUpdate != nil:
		return writeRows(m.InsertOrUpdate, false, false)
	case m.Replace != nil:
		w := m.Replace
		rows := f.tables[w.Table]
		if rows != nil {
			for _, values := range w.Values {
				delete(rows, keyString(values[:1]))
			}
		}

		return writeRows(w, false, false)
	case m.Delete != nil:
		rows := f.tables[m.Delete.Table]
		if rows == nil {
			return nil
		}
		if m.Delete.KeySet.All {
			f.tables[m.Delete.Table] = make(map[string]map[string]any)

			return nil
		}
		for _, key := range m.Delete.KeySet.Keys {
			delete(rows, keyString(key))
		}

		return nil
	}

	return nil
}
