// Package keyspan is a client SDK for the Keyspan distributed
// database.
//
// The client multiplexes all work over a pool of server sessions.
// Read-write transactions are expressed as retryable closures: the
// client re-runs the closure on lock conflicts with exponential
// backoff, reusing the same session so the retry keeps its acquired
// lock priority. Read-only transactions execute lock-free against a
// snapshot chosen by a TimestampBound.
package keyspan
