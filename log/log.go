// Package log adapts the SDK trace hooks to a zap logger.
package log

import (
	"time"

	"go.uber.org/zap"

	"github.com/keyspandb/keyspan-go-sdk/trace"
)

// Client returns a trace that logs session pool and transaction
// events through l.
func Client(l *zap.Logger) trace.Client {
	l = l.Named("keyspan")

	return trace.Client{
		OnSessionNew: func(trace.SessionNewStartInfo) func(trace.SessionNewDoneInfo) {
			start := time.Now()

			return func(info trace.SessionNewDoneInfo) {
				if info.Error != nil {
					l.Warn("session create failed",
						zap.Duration("latency", time.Since(start)),
						zap.Error(info.Error),
					)

					return
				}
				l.Debug("session created",
					zap.String("id", info.SessionID),
					zap.Duration("latency", time.Since(start)),
				)
			}
		},
		OnSessionDelete: func(info trace.SessionDeleteStartInfo) func(trace.SessionDeleteDoneInfo) {
			start := time.Now()
			id := info.SessionID

			return func(info trace.SessionDeleteDoneInfo) {
				l.Debug("session deleted",
					zap.String("id", id),
					zap.Duration("latency", time.Since(start)),
					zap.Error(info.Error),
				)
			}
		},
		OnSessionKeepAlive: func(info trace.SessionKeepAliveStartInfo) func(trace.SessionKeepAliveDoneInfo) {
			id := info.SessionID

			return func(info trace.SessionKeepAliveDoneInfo) {
				if info.Error != nil {
					l.Warn("session ping failed",
						zap.String("id", id),
						zap.Error(info.Error),
					)
				}
			}
		},
		OnPoolGet: func(trace.PoolGetStartInfo) func(trace.PoolGetDoneInfo) {
			start := time.Now()

			return func(info trace.PoolGetDoneInfo) {
				if info.Error != nil {
					l.Warn("session get failed",
						zap.Duration("latency", time.Since(start)),
						zap.Error(info.Error),
					)

					return
				}
				l.Debug("session get",
					zap.String("id", info.SessionID),
					zap.Duration("latency", time.Since(start)),
				)
			}
		},
		OnPoolPut: func(info trace.PoolPutStartInfo) func(trace.PoolPutDoneInfo) {
			id := info.SessionID

			return func(info trace.PoolPutDoneInfo) {
				l.Debug("session put",
					zap.String("id", id),
					zap.Error(info.Error),
				)
			}
		},
		OnPoolStateChange: func(info trace.PoolStateChangeInfo) {
			l.Debug("pool state",
				zap.Int("limit", info.Limit),
				zap.Int("idle", info.Idle),
				zap.Int("inUse", info.InUse),
				zap.Int("waiters", info.Waiters),
			)
		},
		OnTxBegin: func(info trace.TxBeginStartInfo) func(trace.TxBeginDoneInfo) {
			id := info.SessionID

			return func(info trace.TxBeginDoneInfo) {
				l.Debug("transaction begin",
					zap.String("session", id),
					zap.String("tx", info.TxID),
					zap.Error(info.Error),
				)
			}
		},
		OnTxCommit: func(info trace.TxCommitStartInfo) func(trace.TxCommitDoneInfo) {
			start := time.Now()
			id := info.SessionID

			return func(info trace.TxCommitDoneInfo) {
				if info.Error != nil {
					l.Debug("transaction commit failed",
						zap.String("session", id),
						zap.Duration("latency", time.Since(start)),
						zap.Error(info.Error),
					)

					return
				}
				l.Debug("transaction committed",
					zap.String("session", id),
					zap.Time("commitTimestamp", info.CommitTimestamp),
					zap.Duration("latency", time.Since(start)),
				)
			}
		},
		OnTxRollback: func(info trace.TxRollbackStartInfo) func(trace.TxRollbackDoneInfo) {
			id := info.SessionID

			return func(info trace.TxRollbackDoneInfo) {
				l.Debug("transaction rollback",
					zap.String("session", id),
					zap.Error(info.Error),
				)
			}
		},
	}
}

// Retry returns a trace that logs retry loop outcomes through l.
func Retry(l *zap.Logger) trace.Retry {
	l = l.Named("keyspan")

	return trace.Retry{
		OnRetry: func(info trace.RetryLoopStartInfo) func(trace.RetryLoopDoneInfo) {
			start := time.Now()
			label := info.Label

			return func(info trace.RetryLoopDoneInfo) {
				if info.Error != nil {
					l.Warn("retry loop failed",
						zap.String("label", label),
						zap.Int("attempts", info.Attempts),
						zap.Duration("latency", time.Since(start)),
						zap.Error(info.Error),
					)

					return
				}
				if info.Attempts > 1 {
					l.Info("retry loop succeeded after retries",
						zap.String("label", label),
						zap.Int("attempts", info.Attempts),
						zap.Duration("latency", time.Since(start)),
					)
				}
			}
		},
	}
}
