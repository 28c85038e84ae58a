package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestAnonymousCredentials(t *testing.T) {
	token, err := NewAnonymousCredentials().Token(context.Background())
	require.NoError(t, err)
	require.Empty(t, token)
}

func TestAccessTokenCredentials(t *testing.T) {
	creds := NewAccessTokenCredentials("secret-token")

	token, err := creds.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "secret-token", token)
}

func TestServiceAccountCredentials(t *testing.T) {
	clock := clockwork.NewFakeClock()
	key := []byte("signing-key")
	creds := NewServiceAccountCredentials("robot@db", key,
		WithTokenTTL(time.Hour),
		WithClock(clock),
	)

	token, err := creds.Token(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithTimeFunc(clock.Now))
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.Equal(t, "robot@db", claims.Issuer)
	require.Equal(t, "robot@db", claims.Subject)

	expiresAt, err := ParseExpiresAt(token)
	require.NoError(t, err)
	require.Equal(t, clock.Now().Add(time.Hour).Unix(), expiresAt.Unix())
}

func TestServiceAccountTokenCaching(t *testing.T) {
	clock := clockwork.NewFakeClock()
	creds := NewServiceAccountCredentials("robot@db", []byte("key"),
		WithTokenTTL(time.Hour),
		WithClock(clock),
	)

	first, err := creds.Token(context.Background())
	require.NoError(t, err)

	// inside the first half of the lifetime the token is reused
	clock.Advance(29 * time.Minute)
	cached, err := creds.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, cached)

	// past the half-life a fresh token is minted
	clock.Advance(2 * time.Minute)
	fresh, err := creds.Token(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first, fresh)
}

func TestParseExpiresAtRejectsGarbage(t *testing.T) {
	_, err := ParseExpiresAt("not-a-token")
	require.Error(t, err)
}
