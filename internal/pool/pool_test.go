package pool

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/keyspandb/keyspan-go-sdk/internal/session"
	"github.com/keyspandb/keyspan-go-sdk/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestPool(t *testing.T, srv *testutil.Server, config Config) *Pool {
	t.Helper()
	config.Database = "db"
	p := New(srv, config)
	t.Cleanup(func() {
		_ = p.Close(context.Background())
	})

	return p
}

func TestGetReusesReleasedSession(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := newTestPool(t, srv, Config{
		MinOpened:  1,
		MaxOpened:  1,
		IncStep:    1,
		GetTimeout: time.Second,
	})
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, session.StatusInUse, s1.Status())

	require.NoError(t, p.Put(ctx, s1))

	s2, err := p.Get(ctx)
	require.NoError(t, err)
	require.Same(t, s1, s2)

	require.NoError(t, p.Put(ctx, s2))
	require.Equal(t, 1, srv.SessionCount())
}

func TestGetExhausted(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := newTestPool(t, srv, Config{
		MinOpened:  1,
		MaxOpened:  1,
		IncStep:    1,
		GetTimeout: 100 * time.Millisecond,
	})
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, p.Put(ctx, s1))
	}()

	_, err = p.Get(ctx)
	require.ErrorIs(t, err, ErrPoolExhausted)
}

func TestPutUnblocksExactlyOneWaiter(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := newTestPool(t, srv, Config{
		MinOpened:  1,
		MaxOpened:  1,
		IncStep:    1,
		GetTimeout: 500 * time.Millisecond,
	})
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)

	type result struct {
		s   *session.Session
		err error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			s, err := p.Get(ctx)
			results <- result{s: s, err: err}
		}()
	}

	require.Eventually(t, func() bool {
		return p.Stats().Waiters == 2
	}, time.Second, time.Millisecond)

	require.NoError(t, p.Put(ctx, s1))

	// hold the handed-off session until both waiters resolved, so the
	// release can not serve the second waiter
	var served *session.Session
	var got, failed int
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			require.ErrorIs(t, r.err, ErrPoolExhausted)
			failed++

			continue
		}
		require.Same(t, s1, r.s)
		served = r.s
		got++
	}
	require.Equal(t, 1, got)
	require.Equal(t, 1, failed)
	require.NoError(t, p.Put(ctx, served))
}

func TestGetDoesNotOverCreateDuringPrewarm(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := newTestPool(t, srv, Config{
		MinOpened:  1,
		MaxOpened:  3,
		IncStep:    1,
		GetTimeout: time.Second,
	})
	ctx := context.Background()

	// the pre-warm creation is in flight; Get must ride it instead of
	// booking a second session
	s, err := p.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Put(ctx, s))

	require.Equal(t, 1, srv.SessionCount())
	require.Equal(t, 1, p.Stats().Idle)
}

func TestGetContextCanceled(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := newTestPool(t, srv, Config{
		MinOpened:  1,
		MaxOpened:  1,
		IncStep:    1,
		GetTimeout: time.Second,
	})

	s1, err := p.Get(context.Background())
	require.NoError(t, err)
	defer func() {
		require.NoError(t, p.Put(context.Background(), s1))
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = p.Get(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiscardReplenishes(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := newTestPool(t, srv, Config{
		MinOpened:  1,
		MaxOpened:  2,
		IncStep:    1,
		GetTimeout: time.Second,
	})
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Discard(ctx, s1))

	require.Eventually(t, func() bool {
		stats := p.Stats()

		return stats.Idle == 1 && stats.InUse == 0
	}, time.Second, time.Millisecond)
}

func TestPutDeadSessionIsDiscarded(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := newTestPool(t, srv, Config{
		MinOpened:  1,
		MaxOpened:  2,
		IncStep:    1,
		GetTimeout: time.Second,
	})
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)

	s1.SetStatus(session.StatusError)
	require.NoError(t, p.Put(ctx, s1))

	require.Eventually(t, func() bool {
		stats := p.Stats()

		return stats.InUse == 0 && stats.Idle == 1
	}, time.Second, time.Millisecond)
}

func TestPutUnknownSession(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := newTestPool(t, srv, Config{
		MinOpened:  1,
		MaxOpened:  1,
		IncStep:    1,
		GetTimeout: time.Second,
	})

	stray, err := session.New(context.Background(), srv, session.Config{Database: "db"})
	require.NoError(t, err)
	defer func() {
		_ = stray.Close(context.Background())
	}()

	err = p.Put(context.Background(), stray)
	require.ErrorIs(t, err, errUnknownSession)
}

func TestCloseWakesWaiters(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := New(srv, Config{
		Database:   "db",
		MinOpened:  1,
		MaxOpened:  1,
		IncStep:    1,
		GetTimeout: time.Minute,
	})
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := p.Get(ctx)
		errs <- err
	}()

	require.Eventually(t, func() bool {
		return p.Stats().Waiters == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, p.Close(ctx))
	require.ErrorIs(t, <-errs, ErrClosedPool)

	_, err = p.Get(ctx)
	require.ErrorIs(t, err, ErrClosedPool)

	err = p.Put(ctx, s1)
	require.ErrorIs(t, err, ErrClosedPool)

	require.Eventually(t, func() bool {
		return srv.SessionCount() == 0
	}, time.Second, time.Millisecond)
}

func TestKeepAliveEvictsIdle(t *testing.T) {
	clock := clockwork.NewFakeClock()
	srv := testutil.NewServer(clock)
	p := newTestPool(t, srv, Config{
		MinOpened: 1,
		MaxOpened: 5,
		IncStep:   1,
		// keep the background keeper quiet, the test drives keepAlive
		KeepAliveInterval: 24 * time.Hour,
		IdleThreshold:     10 * time.Minute,
		Clock:             clock,
	})
	ctx := context.Background()

	var sessions []*session.Session
	for i := 0; i < 3; i++ {
		s, err := p.Get(ctx)
		require.NoError(t, err)
		sessions = append(sessions, s)
	}
	for _, s := range sessions {
		require.NoError(t, p.Put(ctx, s))
	}
	require.Equal(t, 3, p.Stats().Idle)

	clock.Advance(11 * time.Minute)
	require.NoError(t, p.keepAlive(ctx))

	require.Equal(t, 1, p.Stats().Idle)
	require.Eventually(t, func() bool {
		return srv.SessionCount() == 1
	}, time.Second, time.Millisecond)
}

func TestKeepAlivePingsStaleSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	srv := testutil.NewServer(clock)
	p := newTestPool(t, srv, Config{
		MinOpened:               1,
		MaxOpened:               1,
		IncStep:                 1,
		KeepAliveInterval:       24 * time.Hour,
		IdleThreshold:           30 * time.Minute,
		SessionAliveTrustPeriod: 55 * time.Minute,
		Clock:                   clock,
	})
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Put(ctx, s1))

	// at the MinOpened floor the session is pinged instead of evicted
	clock.Advance(56 * time.Minute)
	require.NoError(t, p.keepAlive(ctx))

	require.Equal(t, 1, srv.Calls("ExecuteSql"))
	require.Equal(t, 1, p.Stats().Idle)
}

func TestKeepAliveReplacesDeadSession(t *testing.T) {
	clock := clockwork.NewFakeClock()
	srv := testutil.NewServer(clock)
	p := newTestPool(t, srv, Config{
		MinOpened:               1,
		MaxOpened:               1,
		IncStep:                 1,
		KeepAliveInterval:       24 * time.Hour,
		SessionAliveTrustPeriod: 55 * time.Minute,
		Clock:                   clock,
	})
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Put(ctx, s1))

	srv.DropSession(s1.ID())
	clock.Advance(time.Hour)
	require.NoError(t, p.keepAlive(ctx))

	require.False(t, s1.IsAlive())
	require.Eventually(t, func() bool {
		stats := p.Stats()

		return stats.Idle == 1 && srv.SessionCount() == 1
	}, time.Second, time.Millisecond)

	s2, err := p.Get(ctx)
	require.NoError(t, err)
	require.NotEqual(t, s1.ID(), s2.ID())
	require.NoError(t, p.Put(ctx, s2))
}

func TestGetWaitsForPrewarm(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := newTestPool(t, srv, Config{
		MinOpened:  2,
		MaxOpened:  2,
		IncStep:    2,
		GetTimeout: time.Second,
	})
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)
	s2, err := p.Get(ctx)
	require.NoError(t, err)
	require.NotEqual(t, s1.ID(), s2.ID())

	require.NoError(t, p.Put(ctx, s1))
	require.NoError(t, p.Put(ctx, s2))
	require.LessOrEqual(t, srv.SessionCount(), 2)
}

func TestStats(t *testing.T) {
	srv := testutil.NewServer(nil)
	p := newTestPool(t, srv, Config{
		MinOpened:  1,
		MaxOpened:  3,
		IncStep:    1,
		GetTimeout: time.Second,
	})
	ctx := context.Background()

	s1, err := p.Get(ctx)
	require.NoError(t, err)

	stats := p.Stats()
	require.Equal(t, 3, stats.Limit)
	require.Equal(t, 1, stats.InUse)

	require.NoError(t, p.Put(ctx, s1))
	stats = p.Stats()
	require.Equal(t, 0, stats.InUse)
	require.Equal(t, 1, stats.Idle)
}
