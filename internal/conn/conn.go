package conn

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
	"github.com/keyspandb/keyspan-go-sdk/internal/credentials"
	"github.com/keyspandb/keyspan-go-sdk/internal/xerrors"
)

const (
	metaAuthTicket     = "x-keyspan-auth-ticket"
	metaResourcePrefix = "x-keyspan-resource-prefix"
)

const (
	methodCreateSession       = "/keyspan.v1.DataService/CreateSession"
	methodBatchCreateSessions = "/keyspan.v1.DataService/BatchCreateSessions"
	methodDeleteSession       = "/keyspan.v1.DataService/DeleteSession"
	methodBeginTransaction    = "/keyspan.v1.DataService/BeginTransaction"
	methodCommit              = "/keyspan.v1.DataService/Commit"
	methodRollback            = "/keyspan.v1.DataService/Rollback"
	methodExecuteSql          = "/keyspan.v1.DataService/ExecuteSql"
	methodRead                = "/keyspan.v1.DataService/Read"
)

var _ Stub = (*Conn)(nil)

// Conn is the gRPC implementation of Stub. It owns nothing but the
// client connection: sessions, retries and transaction state all live
// in the layers above.
type Conn struct {
	cc          grpc.ClientConnInterface
	database    string
	credentials credentials.Credentials
}

func New(cc grpc.ClientConnInterface, database string, creds credentials.Credentials) *Conn {
	if creds == nil {
		creds = credentials.NewAnonymousCredentials()
	}

	return &Conn{
		cc:          cc,
		database:    database,
		credentials: creds,
	}
}

func (c *Conn) invoke(ctx context.Context, method string, request, response interface{}) error {
	token, err := c.credentials.Token(ctx)
	if err != nil {
		return xerrors.WithStackTrace(err)
	}

	md := metadata.New(map[string]string{
		metaResourcePrefix: c.database,
	})
	if token != "" {
		md.Set(metaAuthTicket, token)
	}
	ctx = metadata.NewOutgoingContext(ctx, md)

	err = c.cc.Invoke(ctx, method, request, response, grpc.ForceCodec(codec{}))
	if err != nil {
		return xerrors.WithStackTrace(xerrors.FromGRPCError(err))
	}

	return nil
}

func (c *Conn) CreateSession(ctx context.Context, request *api.CreateSessionRequest) (*api.Session, error) {
	response := new(api.Session)
	if err := c.invoke(ctx, methodCreateSession, request, response); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Conn) BatchCreateSessions(
	ctx context.Context,
	request *api.BatchCreateSessionsRequest,
) (*api.BatchCreateSessionsResponse, error) {
	response := new(api.BatchCreateSessionsResponse)
	if err := c.invoke(ctx, methodBatchCreateSessions, request, response); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Conn) DeleteSession(ctx context.Context, request *api.DeleteSessionRequest) error {
	return c.invoke(ctx, methodDeleteSession, request, &struct{}{})
}

func (c *Conn) BeginTransaction(ctx context.Context, request *api.BeginTransactionRequest) (*api.Transaction, error) {
	response := new(api.Transaction)
	if err := c.invoke(ctx, methodBeginTransaction, request, response); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Conn) Commit(ctx context.Context, request *api.CommitRequest) (*api.CommitResponse, error) {
	response := new(api.CommitResponse)
	if err := c.invoke(ctx, methodCommit, request, response); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Conn) Rollback(ctx context.Context, request *api.RollbackRequest) error {
	return c.invoke(ctx, methodRollback, request, &struct{}{})
}

func (c *Conn) ExecuteSql(ctx context.Context, request *api.ExecuteSqlRequest) (*api.ResultSet, error) {
	response := new(api.ResultSet)
	if err := c.invoke(ctx, methodExecuteSql, request, response); err != nil {
		return nil, err
	}

	return response, nil
}

func (c *Conn) Read(ctx context.Context, request *api.ReadRequest) (*api.ResultSet, error) {
	response := new(api.ResultSet)
	if err := c.invoke(ctx, methodRead, request, response); err != nil {
		return nil, err
	}

	return response, nil
}
