package pool

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/keyspandb/keyspan-go-sdk/trace"
)

const (
	DefaultMinOpened               = 10
	DefaultMaxOpened               = 400
	DefaultMaxIdle                 = 300
	DefaultIncStep                 = 25
	DefaultIdleThreshold           = 30 * time.Minute
	DefaultKeepAliveInterval       = 5 * time.Minute
	DefaultSessionAliveTrustPeriod = 55 * time.Minute
	DefaultGetTimeout              = 5 * time.Second
)

type Config struct {
	// Database is the database all pooled sessions are bound to.
	Database string

	// MinOpened is the number of sessions the pool tries to keep open.
	// The pool pre-warms up to MinOpened sessions and replenishes after
	// discards while the count is below it.
	MinOpened int

	// MaxOpened bounds the total number of sessions. When reached, Get
	// waits up to GetTimeout for a release before failing with
	// ErrPoolExhausted.
	MaxOpened int

	// MaxIdle is the maximum number of idle sessions kept for reuse.
	MaxIdle int

	// IncStep is the number of sessions created in one batch when at
	// least one more session is needed.
	IncStep int

	// IdleThreshold is the wait time before discarding an idle session,
	// as long as the pool stays at or above MinOpened.
	IdleThreshold time.Duration

	// KeepAliveInterval is the period of the background health check.
	KeepAliveInterval time.Duration

	// SessionAliveTrustPeriod is how long a session is trusted to be
	// alive since its last activity without pinging it.
	SessionAliveTrustPeriod time.Duration

	// GetTimeout bounds the waiting inside Get when no session is idle
	// and the pool is at MaxOpened.
	GetTimeout time.Duration

	Clock clockwork.Clock
	Trace *trace.Client
}

func (c Config) withDefaults() Config {
	if c.MinOpened <= 0 {
		c.MinOpened = DefaultMinOpened
	}
	if c.MaxOpened <= 0 {
		c.MaxOpened = DefaultMaxOpened
	}
	if c.MinOpened > c.MaxOpened {
		c.MinOpened = c.MaxOpened
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = DefaultMaxIdle
	}
	if c.MaxIdle > c.MaxOpened {
		c.MaxIdle = c.MaxOpened
	}
	if c.IncStep <= 0 {
		c.IncStep = DefaultIncStep
	}
	if c.IdleThreshold <= 0 {
		c.IdleThreshold = DefaultIdleThreshold
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.SessionAliveTrustPeriod <= 0 {
		c.SessionAliveTrustPeriod = DefaultSessionAliveTrustPeriod
	}
	if c.GetTimeout <= 0 {
		c.GetTimeout = DefaultGetTimeout
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Trace == nil {
		c.Trace = &trace.Client{}
	}

	return c
}
