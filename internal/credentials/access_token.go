package credentials

import (
	"context"
)

// NewAccessTokenCredentials makes credentials with a fixed token.
func NewAccessTokenCredentials(token string) Credentials {
	return &accessToken{token: token}
}

type accessToken struct {
	token string
}

func (c *accessToken) Token(context.Context) (string, error) {
	return c.token, nil
}
