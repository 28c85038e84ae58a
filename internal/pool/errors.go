package pool

import (
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
)

var (
	// ErrClosedPool is returned on operations against a closed pool.
	ErrClosedPool = xerrors.New("closed pool")

	// ErrPoolExhausted is returned when the pool is at MaxOpened and no
	// session was released within GetTimeout.
	ErrPoolExhausted = xerrors.New("session pool exhausted")

	errUnknownSession = xerrors.New("unknown session")
)
