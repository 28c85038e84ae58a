package credentials

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
	"github.com/keyspandb/keyspan-go-sdk/internal/xsync"
)

const defaultTokenTTL = time.Hour

// NewServiceAccountCredentials makes credentials that mint short-lived
// bearer tokens signed with the account key. A token is cached and
// reissued once half of its lifetime has passed.
func NewServiceAccountCredentials(accountID string, key []byte, opts ...ServiceAccountOption) Credentials {
	c := &serviceAccount{
		accountID: accountID,
		key:       key,
		ttl:       defaultTokenTTL,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

type ServiceAccountOption func(c *serviceAccount)

func WithTokenTTL(ttl time.Duration) ServiceAccountOption {
	return func(c *serviceAccount) {
		c.ttl = ttl
	}
}

func WithClock(clock clockwork.Clock) ServiceAccountOption {
	return func(c *serviceAccount) {
		c.clock = clock
	}
}

type serviceAccount struct {
	accountID string
	key       []byte
	ttl       time.Duration
	clock     clockwork.Clock

	mu        xsync.Mutex
	token     string
	requestAt time.Time
}

func (c *serviceAccount) Token(ctx context.Context) (token string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.clock.Now().Before(c.requestAt) {
		return c.token, nil
	}

	now := c.clock.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.accountID,
		Subject:   c.accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", xerrors.WithStackTrace(err)
	}

	c.token = token
	c.requestAt = now.Add(c.ttl / 2)

	return token, nil
}

// ParseExpiresAt extracts the expiry claim of a bearer token without
// verifying the signature. Used by token caches to pick a refresh time.
func ParseExpiresAt(raw string) (expiresAt time.Time, err error) {
	var claims jwt.RegisteredClaims
	if _, _, err = jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return expiresAt, xerrors.WithStackTrace(err)
	}
	if claims.ExpiresAt == nil {
		return expiresAt, xerrors.WithStackTrace(errNoExpirationClaim)
	}

	return claims.ExpiresAt.Time, nil
}

var errNoExpirationClaim = xerrors.New("token has no expiration claim")
