// Package api contains the wire-level request and response types of the
// Keyspan data service. The types mirror the service wire schema
// one to one and carry no behavior; all protocol logic lives above them.
package api

import (
	"time"
)

// Session is a server-allocated conversational handle bound to one database.
type Session struct {
	Name       string    `json:"name"`
	CreateTime time.Time `json:"createTime,omitempty"`
}

// ReadWrite is the locking transaction mode. It has no options.
type ReadWrite struct{}

// ReadOnly selects the snapshot timestamp of a read-only transaction.
// Exactly one of the bound fields is set.
type ReadOnly struct {
	Strong              bool          `json:"strong,omitempty"`
	ReadTimestamp       time.Time     `json:"readTimestamp,omitempty"`
	ExactStaleness      time.Duration `json:"exactStaleness,omitempty"`
	MaxStaleness        time.Duration `json:"maxStaleness,omitempty"`
	ReturnReadTimestamp bool          `json:"returnReadTimestamp,omitempty"`
}

// TransactionOptions is a tagged union: exactly one mode is non-nil.
type TransactionOptions struct {
	ReadWrite *ReadWrite `json:"readWrite,omitempty"`
	ReadOnly  *ReadOnly  `json:"readOnly,omitempty"`
}

// TransactionSelector is a tagged union: exactly one of SingleUse,
// Begin or ID is set.
type TransactionSelector struct {
	// SingleUse executes the operation in a temporary transaction that
	// exists only for the duration of the call.
	SingleUse *TransactionOptions `json:"singleUse,omitempty"`

	// Begin starts a new transaction as a side effect of the operation;
	// the created transaction is returned in ResultSetMetadata.
	Begin *TransactionOptions `json:"begin,omitempty"`

	// ID continues a previously started transaction.
	ID []byte `json:"id,omitempty"`
}

// Transaction is the server's description of a started transaction.
type Transaction struct {
	ID            []byte    `json:"id,omitempty"`
	ReadTimestamp time.Time `json:"readTimestamp,omitempty"`
}

// Write describes row values for insert-like mutation operations.
// Values holds one list per row, in Columns order.
type Write struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Values  [][]any  `json:"values"`
}

// Delete removes the rows matched by KeySet.
type Delete struct {
	Table  string `json:"table"`
	KeySet KeySet `json:"keySet"`
}

// Mutation is a tagged union: exactly one operation is non-nil.
type Mutation struct {
	Insert         *Write  `json:"insert,omitempty"`
	Update         *Write  `json:"update,omitempty"`
	InsertOrUpdate *Write  `json:"insertOrUpdate,omitempty"`
	Replace        *Write  `json:"replace,omitempty"`
	Delete         *Delete `json:"delete,omitempty"`
}

// KeyRange selects a contiguous span of primary keys.
type KeyRange struct {
	Start       []any `json:"start,omitempty"`
	End         []any `json:"end,omitempty"`
	StartClosed bool  `json:"startClosed,omitempty"`
	EndClosed   bool  `json:"endClosed,omitempty"`
}

// KeySet names the rows an operation applies to.
type KeySet struct {
	Keys   [][]any    `json:"keys,omitempty"`
	Ranges []KeyRange `json:"ranges,omitempty"`
	All    bool       `json:"all,omitempty"`
}

type CreateSessionRequest struct {
	Database string `json:"database"`
}

type BatchCreateSessionsRequest struct {
	Database     string `json:"database"`
	SessionCount int32  `json:"sessionCount"`
}

// BatchCreateSessionsResponse may carry fewer sessions than requested;
// callers issue follow-up requests for the remainder.
type BatchCreateSessionsResponse struct {
	Sessions []Session `json:"session,omitempty"`
}

type DeleteSessionRequest struct {
	Name string `json:"name"`
}

type BeginTransactionRequest struct {
	Session string             `json:"session"`
	Options TransactionOptions `json:"options"`
}

// CommitRequest finalizes a transaction. Exactly one of TransactionID
// and SingleUseTransaction is set. Mutations are applied atomically in
// the given order.
type CommitRequest struct {
	Session              string              `json:"session"`
	TransactionID        []byte              `json:"transactionId,omitempty"`
	SingleUseTransaction *TransactionOptions `json:"singleUseTransaction,omitempty"`
	Mutations            []Mutation          `json:"mutations,omitempty"`
	ReturnCommitStats    bool                `json:"returnCommitStats,omitempty"`
}

type CommitStats struct {
	MutationCount int64 `json:"mutationCount,omitempty"`
}

type CommitResponse struct {
	CommitTimestamp time.Time    `json:"commitTimestamp"`
	CommitStats     *CommitStats `json:"commitStats,omitempty"`
}

type RollbackRequest struct {
	Session       string `json:"session"`
	TransactionID []byte `json:"transactionId"`
}

type ExecuteSqlRequest struct {
	Session     string               `json:"session"`
	Transaction *TransactionSelector `json:"transaction,omitempty"`
	SQL         string               `json:"sql"`
	Params      map[string]any       `json:"params,omitempty"`

	// Seqno orders DML within a read-write transaction. Replays of a
	// previously handled seqno yield the same result and no new effects.
	Seqno int64 `json:"seqno,omitempty"`
}

type ReadRequest struct {
	Session     string               `json:"session"`
	Transaction *TransactionSelector `json:"transaction,omitempty"`
	Table       string               `json:"table"`
	Index       string               `json:"index,omitempty"`
	Columns     []string             `json:"columns"`
	KeySet      KeySet               `json:"keySet"`
	Limit       int64                `json:"limit,omitempty"`
}

type ResultSetMetadata struct {
	// Transaction is set when the request carried a Begin selector.
	Transaction *Transaction `json:"transaction,omitempty"`
}

type ResultSetStats struct {
	RowCountExact      int64 `json:"rowCountExact,omitempty"`
	RowCountLowerBound int64 `json:"rowCountLowerBound,omitempty"`
}

// Row is a list of column values in the order the request named them.
type Row []any

type ResultSet struct {
	Metadata *ResultSetMetadata `json:"metadata,omitempty"`
	Rows     []Row              `json:"rows,omitempty"`
	Stats    *ResultSetStats    `json:"stats,omitempty"`
}

// RowCount extracts the DML row count from the stats.
func (rs *ResultSet) RowCount() int64 {
	if rs == nil || rs.Stats == nil {
		return 0
	}
	if rs.Stats.RowCountExact > 0 {
		return rs.Stats.RowCountExact
	}

	return rs.Stats.RowCountLowerBound
}
