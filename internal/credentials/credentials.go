// Package credentials provides token sources for the per-call bearer
// authentication of the Keyspan data service.
package credentials

import (
	"context"
)

// Credentials is an interface of the credentials provider.
type Credentials interface {
	// Token must return a bearer token valid at the moment of the call,
	// or an error describing why it could not be obtained.
	Token(ctx context.Context) (string, error)
}

// NewAnonymousCredentials makes credentials for the anonymous access.
func NewAnonymousCredentials() Credentials {
	return anonymous{}
}

type anonymous struct{}

func (anonymous) Token(context.Context) (string, error) {
	return "", nil
}
