// Package trace declares the callback hooks the SDK fires around
// session pool, transaction and retry events. All fields are optional;
// nil hooks cost nothing on the hot path.
package trace

import (
	"context"
	"time"
)

type (
	// Client contains hooks of the session pool and transaction events.
	Client struct {
		OnSessionNew       func(SessionNewStartInfo) func(SessionNewDoneInfo)
		OnSessionDelete    func(SessionDeleteStartInfo) func(SessionDeleteDoneInfo)
		OnSessionKeepAlive func(SessionKeepAliveStartInfo) func(SessionKeepAliveDoneInfo)

		OnPoolGet         func(PoolGetStartInfo) func(PoolGetDoneInfo)
		OnPoolPut         func(PoolPutStartInfo) func(PoolPutDoneInfo)
		OnPoolStateChange func(PoolStateChangeInfo)

		OnTxBegin    func(TxBeginStartInfo) func(TxBeginDoneInfo)
		OnTxCommit   func(TxCommitStartInfo) func(TxCommitDoneInfo)
		OnTxRollback func(TxRollbackStartInfo) func(TxRollbackDoneInfo)
	}

	// Retry contains hooks of the read-write retry loop.
	Retry struct {
		OnRetry func(RetryLoopStartInfo) func(RetryLoopDoneInfo)
	}

	SessionNewStartInfo struct {
		Context *context.Context
	}
	SessionNewDoneInfo struct {
		SessionID string
		Error     error
	}
	SessionDeleteStartInfo struct {
		Context   *context.Context
		SessionID string
	}
	SessionDeleteDoneInfo struct {
		Error error
	}
	SessionKeepAliveStartInfo struct {
		Context   *context.Context
		SessionID string
	}
	SessionKeepAliveDoneInfo struct {
		Error error
	}

	PoolGetStartInfo struct {
		Context *context.Context
	}
	PoolGetDoneInfo struct {
		SessionID string
		Error     error
	}
	PoolPutStartInfo struct {
		Context   *context.Context
		SessionID string
	}
	PoolPutDoneInfo struct {
		Error error
	}
	PoolStateChangeInfo struct {
		Limit   int
		Idle    int
		InUse   int
		Waiters int
	}

	TxBeginStartInfo struct {
		Context   *context.Context
		SessionID string
	}
	TxBeginDoneInfo struct {
		TxID  string
		Error error
	}
	TxCommitStartInfo struct {
		Context   *context.Context
		SessionID string
		TxID      string
	}
	TxCommitDoneInfo struct {
		CommitTimestamp time.Time
		Error           error
	}
	TxRollbackStartInfo struct {
		Context   *context.Context
		SessionID string
		TxID      string
	}
	TxRollbackDoneInfo struct {
		Error error
	}

	RetryLoopStartInfo struct {
		Context *context.Context
		Label   string
	}
	RetryLoopDoneInfo struct {
		Attempts int
		Error    error
	}
)
