package keyspan

import (
	"time"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
)

type (
	// Mutation describes a buffered write applied atomically at commit.
	Mutation = api.Mutation

	// KeySet names the rows an operation applies to.
	KeySet = api.KeySet

	// KeyRange selects a contiguous span of primary keys.
	KeyRange = api.KeyRange

	// Row is a list of column values in request column order.
	Row = api.Row

	// ResultSet holds the rows and stats of a read or query.
	ResultSet = api.ResultSet
)

// CommitResult reports the outcome of a committed transaction.
type CommitResult struct {
	// CommitTimestamp is the time the transaction's writes became
	// visible.
	CommitTimestamp time.Time

	// MutationCount is set when commit stats were requested.
	MutationCount int64
}

func commitResult(res *api.CommitResponse) CommitResult {
	out := CommitResult{CommitTimestamp: res.CommitTimestamp}
	if res.CommitStats != nil {
		out.MutationCount = res.CommitStats.MutationCount
	}

	return out
}
