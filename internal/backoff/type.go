package backoff

// Type selects the delay class a retry uses between attempts.
type Type uint8

const (
	TypeNoBackoff Type = iota
	TypeFastBackoff
	TypeSlowBackoff
)
