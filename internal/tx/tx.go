// Package tx implements transaction contexts bound to a pooled
// session. A transaction context is not safe for concurrent use; the
// retry loop above hands it to exactly one goroutine.
package tx

import (
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
)

type state int

const (
	stateActive state = iota
	stateCommitted
	stateRolledBack
	stateFailed
)

var (
	// ErrFinished is returned on operations against a transaction that
	// was already committed or rolled back.
	ErrFinished = xerrors.New("transaction already finished")
)
