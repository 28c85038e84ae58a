package keyspan

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/keyspandb/keyspan-go-sdk/internal/credentials"
	"github.com/keyspandb/keyspan-go-sdk/internal/pool"
	"github.com/keyspandb/keyspan-go-sdk/log"
	"github.com/keyspandb/keyspan-go-sdk/trace"
)

// Credentials supplies the per-call auth token.
type Credentials = credentials.Credentials

// DefaultRetryBudget bounds the total elapsed time a retry loop may
// spend across attempts.
const DefaultRetryBudget = 30 * time.Second

type config struct {
	database    string
	credentials Credentials
	trace       *trace.Client
	retryTrace  *trace.Retry
	clock       clockwork.Clock
	retryBudget time.Duration
	pool        pool.Config
}

func defaultConfig(database string) config {
	return config{
		database:    database,
		credentials: credentials.NewAnonymousCredentials(),
		trace:       &trace.Client{},
		retryTrace:  &trace.Retry{},
		clock:       clockwork.NewRealClock(),
		retryBudget: DefaultRetryBudget,
	}
}

// Option configures the client.
type Option func(c *config)

// WithAccessTokenCredentials authenticates every call with a fixed
// token.
func WithAccessTokenCredentials(token string) Option {
	return func(c *config) {
		c.credentials = credentials.NewAccessTokenCredentials(token)
	}
}

// WithServiceAccountCredentials mints short-lived tokens signed with
// the account key.
func WithServiceAccountCredentials(accountID string, key []byte) Option {
	return func(c *config) {
		c.credentials = credentials.NewServiceAccountCredentials(accountID, key)
	}
}

// WithCredentials sets a custom token source.
func WithCredentials(creds Credentials) Option {
	return func(c *config) {
		c.credentials = creds
	}
}

// WithTrace composes t over the already installed client trace.
func WithTrace(t trace.Client) Option {
	return func(c *config) {
		c.trace = c.trace.Compose(&t)
	}
}

// WithRetryTrace composes t over the already installed retry trace.
func WithRetryTrace(t trace.Retry) Option {
	return func(c *config) {
		c.retryTrace = c.retryTrace.Compose(&t)
	}
}

// WithLogger installs traces that log pool, transaction and retry
// events through l.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		WithTrace(log.Client(l))(c)
		WithRetryTrace(log.Retry(l))(c)
	}
}

// WithClock substitutes the time source, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithRetryBudget bounds the elapsed time of one retry loop.
func WithRetryBudget(d time.Duration) Option {
	return func(c *config) {
		c.retryBudget = d
	}
}

// WithSessionPoolMinSize sets the number of sessions the pool keeps
// open and pre-warms.
func WithSessionPoolMinSize(n int) Option {
	return func(c *config) {
		c.pool.MinOpened = n
	}
}

// WithSessionPoolMaxSize caps the total number of sessions.
func WithSessionPoolMaxSize(n int) Option {
	return func(c *config) {
		c.pool.MaxOpened = n
	}
}

// WithSessionPoolMaxIdle caps the number of idle sessions kept for
// reuse.
func WithSessionPoolMaxIdle(n int) Option {
	return func(c *config) {
		c.pool.MaxIdle = n
	}
}

// WithSessionPoolIncStep sets the batch size of session creation.
func WithSessionPoolIncStep(n int) Option {
	return func(c *config) {
		c.pool.IncStep = n
	}
}

// WithSessionPoolIdleThreshold sets how long an idle session is kept
// before eviction.
func WithSessionPoolIdleThreshold(d time.Duration) Option {
	return func(c *config) {
		c.pool.IdleThreshold = d
	}
}

// WithSessionPoolKeepAliveInterval sets the period of the background
// session health check.
func WithSessionPoolKeepAliveInterval(d time.Duration) Option {
	return func(c *config) {
		c.pool.KeepAliveInterval = d
	}
}

// WithSessionPoolGetTimeout bounds the wait for a free session.
func WithSessionPoolGetTimeout(d time.Duration) Option {
	return func(c *config) {
		c.pool.GetTimeout = d
	}
}
