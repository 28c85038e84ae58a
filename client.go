package keyspan

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/keyspandb/keyspan-go-sdk/internal/backoff"
	"github.com/keyspandb/keyspan-go-sdk/internal/conn"
	"github.com/keyspandb/keyspan-go-sdk/internal/pool"
	"github.com/keyspandb/keyspan-go-sdk/internal/session"
	"github.com/keyspandb/keyspan-go-sdk/internal/tx"
	"github.com/keyspandb/keyspan-go-sdk/internal/xcontext"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
)

// PoolStats is a snapshot of the session pool state.
type PoolStats = pool.Stats

// Client is a database handle. It is safe for concurrent use; all
// calls share one session pool.
type Client struct {
	config config
	cc     conn.Stub
	pool   *pool.Pool

	fastBackoff backoff.Backoff
	slowBackoff backoff.Backoff
}

// New creates a client for database over an established gRPC
// connection.
func New(cc grpc.ClientConnInterface, database string, opts ...Option) *Client {
	cfg := defaultConfig(database)
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return newClient(conn.New(cc, database, cfg.credentials), cfg)
}

func newClient(stub conn.Stub, cfg config) *Client {
	poolConfig := cfg.pool
	poolConfig.Database = cfg.database
	poolConfig.Clock = cfg.clock
	poolConfig.Trace = cfg.trace

	return &Client{
		config: cfg,
		cc:     stub,
		pool:   pool.New(stub, poolConfig),
		fastBackoff: backoff.New(
			backoff.WithSlotDuration(5*time.Millisecond),
			backoff.WithCeiling(6),
			backoff.WithClock(cfg.clock),
		),
		slowBackoff: backoff.New(
			backoff.WithSlotDuration(time.Second),
			backoff.WithCeiling(6),
			backoff.WithClock(cfg.clock),
		),
	}
}

// Stats reports the current session pool state.
func (c *Client) Stats() PoolStats {
	return c.pool.Stats()
}

// Close releases all sessions. In-flight operations fail with a closed
// pool error.
func (c *Client) Close(ctx context.Context) error {
	return c.pool.Close(ctx)
}

// Apply buffers mutations into a transaction of their own and commits
// it. By default commits are retried on aborts and applied exactly
// once; see AtLeastOnce.
func (c *Client) Apply(ctx context.Context, mutations []Mutation, opts ...ApplyOption) (CommitResult, error) {
	var settings applySettings
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	if !settings.atLeastOnce {
		return c.ReadWriteTransaction(ctx, func(_ context.Context, txc *ReadWriteTransaction) error {
			return txc.BufferWrite(mutations...)
		})
	}

	var res CommitResult
	err := c.retryOperation(ctx, "Apply", retrySettings{
		idempotent: true,
	}, func(ctx context.Context, s *session.Session) error {
		t := tx.NewReadWrite(s, c.config.trace)
		if err := t.BufferWrite(mutations...); err != nil {
			return err
		}
		r, err := t.Commit(ctx, false)
		if err != nil {
			return err
		}
		res = commitResult(r)

		return nil
	})

	return res, err
}

// Single returns a read-only context whose every read runs in its own
// single-use transaction at the latest committed state. Reads are
// retried transparently.
func (c *Client) Single() *ReadOnlyTransaction {
	return &ReadOnlyTransaction{
		c:      c,
		bound:  StrongRead(),
		single: true,
	}
}

// ReadOnlyTransaction begins a multi-use snapshot transaction. All its
// reads see the same read timestamp. Close must be called to return
// the session to the pool.
func (c *Client) ReadOnlyTransaction(ctx context.Context, bound TimestampBound) (*ReadOnlyTransaction, error) {
	var ro *ReadOnlyTransaction
	err := c.retryOperation(ctx, "ReadOnlyTransaction", retrySettings{
		idempotent:  true,
		keepSession: true,
	}, func(ctx context.Context, s *session.Session) error {
		inner, err := tx.Begin(ctx, s, bound.readOnly(), c.config.trace)
		if err != nil {
			return err
		}
		ro = &ReadOnlyTransaction{c: c, bound: bound, s: s, tx: inner}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return ro, nil
}

// BeginReadWriteTransaction returns a transaction whose lifetime the
// caller controls. There is no automatic retry: on an aborted commit
// the caller starts over with a fresh transaction.
func (c *Client) BeginReadWriteTransaction(ctx context.Context) (*ReadWriteTransaction, error) {
	s, err := c.pool.Get(ctx)
	if err != nil {
		return nil, err
	}

	return &ReadWriteTransaction{
		c:  c,
		s:  s,
		tx: tx.NewReadWrite(s, c.config.trace),
	}, nil
}

func (c *Client) putSession(ctx context.Context, s *session.Session, err error) {
	if xerrors.MustDiscardSession(err) {
		_ = c.pool.Discard(ctx, s)

		return
	}
	_ = c.pool.Put(xcontext.ValueOnly(ctx), s)
}
