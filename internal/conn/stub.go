// Package conn implements the gRPC-backed stub of the Keyspan data
// service. The Stub interface is the narrow seam the rest of the SDK
// talks through; tests substitute it with an in-memory fake.
package conn

import (
	"context"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
)

// Stub is the data-service surface the session and transaction layers
// consume. Every call either returns a typed response or an error
// classified by internal/xerrors.
type Stub interface {
	CreateSession(ctx context.Context, request *api.CreateSessionRequest) (*api.Session, error)
	BatchCreateSessions(ctx context.Context, request *api.BatchCreateSessionsRequest) (*api.BatchCreateSessionsResponse, error)
	DeleteSession(ctx context.Context, request *api.DeleteSessionRequest) error
	BeginTransaction(ctx context.Context, request *api.BeginTransactionRequest) (*api.Transaction, error)
	Commit(ctx context.Context, request *api.CommitRequest) (*api.CommitResponse, error)
	Rollback(ctx context.Context, request *api.RollbackRequest) error
	ExecuteSql(ctx context.Context, request *api.ExecuteSqlRequest) (*api.ResultSet, error)
	Read(ctx context.Context, request *api.ReadRequest) (*api.ResultSet, error)
}
