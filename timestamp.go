package keyspan

import (
	"time"

	"github.com/keyspandb/keyspan-go-sdk/internal/api"
)

// TimestampBound selects the snapshot a read-only transaction reads
// at. The zero value is a strong read.
type TimestampBound struct {
	ro api.ReadOnly
}

// StrongRead reads the latest committed state.
func StrongRead() TimestampBound {
	return TimestampBound{ro: api.ReadOnly{Strong: true}}
}

// ReadTimestamp reads the state as of t.
func ReadTimestamp(t time.Time) TimestampBound {
	return TimestampBound{ro: api.ReadOnly{ReadTimestamp: t}}
}

// ExactStaleness reads the state exactly d old.
func ExactStaleness(d time.Duration) TimestampBound {
	return TimestampBound{ro: api.ReadOnly{ExactStaleness: d}}
}

// MaxStaleness lets the server pick the freshest snapshot it can serve
// locally that is at most d old.
func MaxStaleness(d time.Duration) TimestampBound {
	return TimestampBound{ro: api.ReadOnly{MaxStaleness: d}}
}

func (b TimestampBound) readOnly() api.ReadOnly {
	if b == (TimestampBound{}) {
		return api.ReadOnly{Strong: true}
	}

	return b.ro
}
