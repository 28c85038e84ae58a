// Package pool implements the session pool. It keeps idle sessions
// between the MinOpened and MaxOpened watermarks, hands released
// sessions directly to waiters and replaces sessions the server has
// forgotten.
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
	"github.com/keyspandb/keyspan-go-sdk/internal/conn"
	"github.com/keyspandb/keyspan-go-sdk/internal/repeater"
	"github.com/keyspandb/keyspan-go-sdk/internal/session"
	"github.com/keyspandb/keyspan-go-sdk/internal/xcontext"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
	"github.com/keyspandb/keyspan-go-sdk/internal/xsync"
	"github.com/keyspandb/keyspan-go-sdk/trace"
)

// Stats is a point-in-time snapshot of the pool state.
type Stats struct {
	Limit    int
	Idle     int
	InUse    int
	Creating int
	Waiters  int
}

type waiter struct {
	ch chan *session.Session
}

type Pool struct {
	config        Config
	cc            conn.Stub
	sessionConfig session.Config

	mu       xsync.Mutex
	idle     []*session.Session
	inUse    map[string]*session.Session
	creating int
	// pending counts sessions temporarily held by the keeper while it
	// pings them. They are open but neither idle nor in use.
	pending int
	waiters []*waiter

	keeper    repeater.Repeater
	done      chan struct{}
	closeOnce sync.Once
}

// New creates the pool and asynchronously pre-warms it up to MinOpened
// sessions.
func New(cc conn.Stub, config Config) *Pool {
	config = config.withDefaults()

	p := &Pool{
		config: config,
		cc:     cc,
		sessionConfig: session.Config{
			Database: config.Database,
			Clock:    config.Clock,
			Trace:    config.Trace,
		},
		inUse: make(map[string]*session.Session),
		done:  make(chan struct{}),
	}

	if warm := p.reserve(config.MinOpened); warm > 0 {
		go p.createSessions(warm)
	}

	p.keeper = repeater.New(
		config.KeepAliveInterval,
		p.keepAlive,
		repeater.WithName("keeper"),
		repeater.WithClock(config.Clock),
	)

	return p
}

func (p *Pool) isClosed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Get leases a session for exclusive use. Idle sessions are served
// first; otherwise a batch create is started if the pool is below
// MaxOpened, and the caller waits for a released or created session up
// to GetTimeout.
func (p *Pool) Get(ctx context.Context) (s *session.Session, finalErr error) {
	if onDone := p.config.Trace.OnPoolGet; onDone != nil {
		done := onDone(trace.PoolGetStartInfo{Context: &ctx})
		if done != nil {
			defer func() {
				info := trace.PoolGetDoneInfo{Error: finalErr}
				if s != nil {
					info.SessionID = s.ID()
				}
				done(info)
			}()
		}
	}

	if p.isClosed() {
		return nil, xerrors.WithStackTrace(ErrClosedPool)
	}
	if err := ctx.Err(); err != nil {
		return nil, xerrors.WithStackTrace(err)
	}

	var (
		w    *waiter
		need int
	)
	p.mu.WithLock(func() {
		// waiters queued earlier keep priority over this caller
		if len(p.waiters) == 0 {
			if s = p.takeIdleLocked(); s != nil {
				p.inUse[s.ID()] = s

				return
			}
		}
		w = &waiter{ch: make(chan *session.Session, 1)}
		p.waiters = append(p.waiters, w)
		// creations already in flight serve queued waiters first; book
		// capacity only for the waiters they cannot cover
		if len(p.waiters) > p.creating {
			need = p.reserveLocked(1)
		}
	})
	if s != nil {
		s.SetStatus(session.StatusInUse)
		s.Touch()
		p.traceStateChange()

		return s, nil
	}
	p.traceStateChange()
	if need > 0 {
		go p.createSessions(need)
	}

	s, err := p.wait(ctx, w)
	if err != nil {
		return nil, err
	}
	s.Touch()

	return s, nil
}

func (p *Pool) wait(ctx context.Context, w *waiter) (*session.Session, error) {
	timer := p.config.Clock.NewTimer(p.config.GetTimeout)
	defer timer.Stop()

	select {
	case s, ok := <-w.ch:
		if !ok {
			return nil, xerrors.WithStackTrace(ErrClosedPool)
		}

		return s, nil

	case <-ctx.Done():
		if s := p.abandon(w); s != nil {
			_ = p.Put(xcontext.ValueOnly(ctx), s)
		}

		return nil, xerrors.WithStackTrace(ctx.Err())

	case <-p.done:
		if s := p.abandon(w); s != nil {
			go s.Close(xcontext.ValueOnly(ctx))
		}

		return nil, xerrors.WithStackTrace(ErrClosedPool)

	case <-timer.Chan():
		if s := p.abandon(w); s != nil {
			// a session arrived in the same instant, take it
			return s, nil
		}

		return nil, xerrors.WithStackTrace(ErrPoolExhausted)
	}
}

// abandon removes w from the queue. If a session was already handed to
// w, it is returned to the caller for disposal.
func (p *Pool) abandon(w *waiter) *session.Session {
	removed := false
	p.mu.WithLock(func() {
		for i, q := range p.waiters {
			if q == w {
				p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
				removed = true

				break
			}
		}
	})
	if removed {
		p.traceStateChange()

		return nil
	}

	// the handing side delivers before releasing the lock, so the
	// session is already buffered here
	select {
	case s, ok := <-w.ch:
		if ok {
			return s
		}
	default:
	}

	return nil
}

// Put releases a leased session back to the pool. Dead sessions are
// discarded; live ones go to the first waiter or to the idle list,
// subject to the MaxIdle and IdleThreshold limits.
func (p *Pool) Put(ctx context.Context, s *session.Session) (finalErr error) {
	if onDone := p.config.Trace.OnPoolPut; onDone != nil {
		done := onDone(trace.PoolPutStartInfo{Context: &ctx, SessionID: s.ID()})
		if done != nil {
			defer func() {
				done(trace.PoolPutDoneInfo{Error: finalErr})
			}()
		}
	}

	if !s.IsAlive() {
		return p.Discard(ctx, s)
	}
	if p.isClosed() {
		p.forget(s)
		go s.Close(xcontext.ValueOnly(ctx))

		return xerrors.WithStackTrace(ErrClosedPool)
	}

	var (
		known = true
		evict = false
	)
	p.mu.WithLock(func() {
		if _, ok := p.inUse[s.ID()]; !ok {
			known = false

			return
		}
		if w := p.takeWaiterLocked(); w != nil {
			// direct handoff, the session stays in use
			w.ch <- s

			return
		}
		delete(p.inUse, s.ID())
		if len(p.idle) >= p.config.MaxIdle ||
			(p.openedLocked() > p.config.MinOpened &&
				p.config.Clock.Since(s.LastUsage()) >= p.config.IdleThreshold) {
			evict = true

			return
		}
		s.SetStatus(session.StatusIdle)
		p.idle = append(p.idle, s)
	})
	p.traceStateChange()

	if !known {
		return xerrors.WithStackTrace(errUnknownSession)
	}
	if evict {
		go s.Close(xcontext.ValueOnly(ctx))
	}

	return nil
}

// Discard drops a session the caller no longer trusts, e.g. after the
// server reported its handle unknown. The pool replenishes
// asynchronously when it falls below MinOpened.
func (p *Pool) Discard(ctx context.Context, s *session.Session) error {
	p.forget(s)
	go s.Close(xcontext.ValueOnly(ctx))

	need := p.reserve(0)
	if need > 0 && !p.isClosed() {
		go p.createSessions(need)
	}
	p.traceStateChange()

	return nil
}

func (p *Pool) forget(s *session.Session) {
	p.mu.WithLock(func() {
		delete(p.inUse, s.ID())
		for i, idle := range p.idle {
			if idle == s {
				p.idle = append(p.idle[:i], p.idle[i+1:]...)

				break
			}
		}
	})
}

// Stats reports the current pool state.
func (p *Pool) Stats() Stats {
	return xsync.WithLock(&p.mu, func() Stats {
		return Stats{
			Limit:    p.config.MaxOpened,
			Idle:     len(p.idle),
			InUse:    len(p.inUse),
			Creating: p.creating,
			Waiters:  len(p.waiters),
		}
	})
}

// Close stops the keeper, wakes every waiter with ErrClosedPool and
// deletes all idle sessions.
func (p *Pool) Close(ctx context.Context) error {
	var idle []*session.Session
	p.closeOnce.Do(func() {
		close(p.done)
		p.keeper.Stop()

		p.mu.WithLock(func() {
			idle = p.idle
			p.idle = nil
			for _, w := range p.waiters {
				close(w.ch)
			}
			p.waiters = nil
		})
	})

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range idle {
		s := s
		g.Go(func() error {
			return s.Close(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		return xerrors.WithStackTrace(err)
	}

	return nil
}

func (p *Pool) openedLocked() int {
	return len(p.idle) + len(p.inUse) + p.creating + p.pending
}

func (p *Pool) takeIdleLocked() *session.Session {
	for len(p.idle) > 0 {
		s := p.idle[0]
		p.idle = p.idle[1:]
		if s.IsAlive() {
			return s
		}
		go s.Close(context.Background())
	}

	return nil
}

func (p *Pool) takeWaiterLocked() *waiter {
	if len(p.waiters) == 0 {
		return nil
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]

	return w
}

// reserve books capacity for new sessions. With want > 0 it books up to
// IncStep sessions below MaxOpened; with want == 0 it books only what
// is needed to restore MinOpened.
func (p *Pool) reserve(want int) int {
	return xsync.WithLock(&p.mu, func() int {
		if want > 0 {
			return p.reserveLocked(want)
		}
		need := p.config.MinOpened - p.openedLocked()
		if need <= 0 {
			return 0
		}
		p.creating += need

		return need
	})
}

func (p *Pool) reserveLocked(want int) int {
	free := p.config.MaxOpened - p.openedLocked()
	if free <= 0 {
		return 0
	}
	need := p.config.IncStep
	if need < want {
		need = want
	}
	if need > free {
		need = free
	}
	p.creating += need

	return need
}

// createSessions creates n reserved sessions in IncStep-sized batches
// and delivers each one to a waiter or to the idle list. Failed
// reservations are simply released; waiters run into GetTimeout.
func (p *Pool) createSessions(n int) {
	ctx, cancel := xcontext.WithDone(context.Background(), p.done)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for n > 0 {
		batch := p.config.IncStep
		if batch > n {
			batch = n
		}
		n -= batch

		g.Go(func() error {
			return p.createBatch(ctx, batch)
		})
	}
	_ = g.Wait()
	p.traceStateChange()
}

func (p *Pool) createBatch(ctx context.Context, want int) error {
	for want > 0 {
		res, err := p.cc.BatchCreateSessions(ctx, &api.BatchCreateSessionsRequest{
			Database:     p.config.Database,
			SessionCount: int32(want),
		})
		if err != nil {
			p.mu.WithLock(func() {
				p.creating -= want
			})

			return xerrors.WithStackTrace(err)
		}
		if len(res.Sessions) == 0 {
			p.mu.WithLock(func() {
				p.creating -= want
			})

			return nil
		}
		for _, created := range res.Sessions {
			s := session.FromAPI(created, p.cc, p.sessionConfig)
			want--
			p.deliver(s)
		}
	}

	return nil
}

// deliver hands a fresh or health-checked session to the first waiter,
// or parks it idle. The session must be counted in creating or pending.
func (p *Pool) deliver(s *session.Session) {
	closed := false
	p.mu.WithLock(func() {
		if p.creating > 0 {
			p.creating--
		} else if p.pending > 0 {
			p.pending--
		}
		if p.isClosed() {
			closed = true

			return
		}
		if w := p.takeWaiterLocked(); w != nil {
			p.inUse[s.ID()] = s
			s.SetStatus(session.StatusInUse)
			w.ch <- s

			return
		}
		s.SetStatus(session.StatusIdle)
		p.idle = append(p.idle, s)
	})
	if closed {
		go s.Close(context.Background())
	}
}

// keepAlive is the keeper task. It evicts idle sessions past
// IdleThreshold while the pool stays above MinOpened and pings sessions
// whose last activity is older than SessionAliveTrustPeriod.
func (p *Pool) keepAlive(ctx context.Context) error {
	now := p.config.Clock.Now()

	var evict, ping []*session.Session
	p.mu.WithLock(func() {
		opened := p.openedLocked()
		keep := p.idle[:0]
		for _, s := range p.idle {
			idleFor := now.Sub(s.LastUsage())
			switch {
			case !s.IsAlive():
				evict = append(evict, s)
				opened--
			case idleFor >= p.config.IdleThreshold && opened > p.config.MinOpened:
				evict = append(evict, s)
				opened--
			case idleFor >= p.config.SessionAliveTrustPeriod:
				p.pending++
				ping = append(ping, s)
			default:
				keep = append(keep, s)
			}
		}
		p.idle = keep
	})

	for _, s := range evict {
		go s.Close(xcontext.ValueOnly(ctx))
	}
	for _, s := range ping {
		if err := s.KeepAlive(ctx); err != nil {
			p.mu.WithLock(func() {
				p.pending--
			})
			go s.Close(xcontext.ValueOnly(ctx))

			continue
		}
		p.deliver(s)
	}

	if need := p.reserve(0); need > 0 && !p.isClosed() {
		go p.createSessions(need)
	}
	p.traceStateChange()

	return nil
}

func (p *Pool) traceStateChange() {
	if onChange := p.config.Trace.OnPoolStateChange; onChange != nil {
		stats := p.Stats()
		onChange(trace.PoolStateChangeInfo{
			Limit:   stats.Limit,
			Idle:    stats.Idle,
			InUse:   stats.InUse,
			Waiters: stats.Waiters,
		})
	}
}
