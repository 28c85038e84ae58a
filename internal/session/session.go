// Package session implements the client-side view of a server-allocated
// session handle. A session is exclusively owned by the pool; at most
// one transaction uses it at a time.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
	"github.com/keyspandb/keyspan-go-sdk/internal/conn"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
	"github.com/keyspandb/keyspan-go-sdk/internal/xsync"
	"github.com/keyspandb/keyspan-go-sdk/trace"
)

const pingQuery = "SELECT 1"

type Config struct {
	Database string
	Clock    clockwork.Clock
	Trace    *trace.Client
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Trace == nil {
		c.Trace = &trace.Client{}
	}

	return c
}

type Session struct {
	id     string
	config Config
	cc     conn.Stub

	closeOnce sync.Once

	mu        xsync.RWMutex
	status    Status
	createdAt time.Time
	lastUsage time.Time
}

// New creates a session with a dedicated CreateSession call.
func New(ctx context.Context, cc conn.Stub, config Config) (s *Session, finalErr error) {
	config = config.withDefaults()

	if onDone := config.Trace.OnSessionNew; onDone != nil {
		done := onDone(trace.SessionNewStartInfo{Context: &ctx})
		if done != nil {
			defer func() {
				info := trace.SessionNewDoneInfo{Error: finalErr}
				if s != nil {
					info.SessionID = s.ID()
				}
				done(info)
			}()
		}
	}

	created, err := cc.CreateSession(ctx, &api.CreateSessionRequest{
		Database: config.Database,
	})
	if err != nil {
		return nil, xerrors.WithStackTrace(err)
	}

	return FromAPI(*created, cc, config), nil
}

// FromAPI wraps an already created server session, e.g. one returned by
// BatchCreateSessions.
func FromAPI(created api.Session, cc conn.Stub, config Config) *Session {
	config = config.withDefaults()
	now := config.Clock.Now()

	return &Session{
		id:        created.Name,
		config:    config,
		cc:        cc,
		status:    StatusIdle,
		createdAt: now,
		lastUsage: now,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Status() Status {
	return xsync.WithRLock(&s.mu, func() Status {
		return s.status
	})
}

func (s *Session) SetStatus(status Status) {
	s.mu.WithLock(func() {
		if s.status != StatusClosed {
			s.status = status
		}
	})
}

func (s *Session) IsAlive() bool {
	switch s.Status() {
	case StatusClosing, StatusClosed, StatusError:
		return false
	default:
		return true
	}
}

func (s *Session) CreatedAt() time.Time {
	return xsync.WithRLock(&s.mu, func() time.Time {
		return s.createdAt
	})
}

func (s *Session) LastUsage() time.Time {
	return xsync.WithRLock(&s.mu, func() time.Time {
		return s.lastUsage
	})
}

// Touch records session activity. Called on lease and on every
// successful call bound to the session.
func (s *Session) Touch() {
	now := s.config.Clock.Now()
	s.mu.WithLock(func() {
		s.lastUsage = now
	})
}

// CheckError invalidates the session when the server reports that its
// handle no longer exists. Returns err unchanged.
func (s *Session) CheckError(err error) error {
	if xerrors.IsSessionNotFound(err) {
		s.SetStatus(StatusError)
	}

	return err
}

// KeepAlive pings the session with a trivial query, refreshing its
// server-side lifetime. A failed ping invalidates the session.
func (s *Session) KeepAlive(ctx context.Context) (finalErr error) {
	if onDone := s.config.Trace.OnSessionKeepAlive; onDone != nil {
		done := onDone(trace.SessionKeepAliveStartInfo{Context: &ctx, SessionID: s.id})
		if done != nil {
			defer func() {
				done(trace.SessionKeepAliveDoneInfo{Error: finalErr})
			}()
		}
	}

	_, err := s.cc.ExecuteSql(ctx, &api.ExecuteSqlRequest{
		Session: s.id,
		SQL:     pingQuery,
	})
	if err != nil {
		s.SetStatus(StatusError)

		return xerrors.WithStackTrace(s.CheckError(err))
	}
	s.Touch()

	return nil
}

// Close deletes the session server-side. Safe to call multiple times.
func (s *Session) Close(ctx context.Context) (finalErr error) {
	s.closeOnce.Do(func() {
		s.SetStatus(StatusClosing)

		if onDone := s.config.Trace.OnSessionDelete; onDone != nil {
			done := onDone(trace.SessionDeleteStartInfo{Context: &ctx, SessionID: s.id})
			if done != nil {
				defer func() {
					done(trace.SessionDeleteDoneInfo{Error: finalErr})
				}()
			}
		}

		err := s.cc.DeleteSession(ctx, &api.DeleteSessionRequest{Name: s.id})

		s.mu.WithLock(func() {
			s.status = StatusClosed
		})

		if err != nil && !xerrors.IsSessionNotFound(err) {
			finalErr = xerrors.WithStackTrace(err)
		}
	})

	return finalErr
}

// Conn exposes the stub the session was created on. Transactions bound
// to the session issue their calls through it.
func (s *Session) Conn() conn.Stub {
	return s.cc
}
