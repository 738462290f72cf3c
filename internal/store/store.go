// Package store persists sync progress across runs: an opaque continuation
// token written after every attempt and a last-successful-sync timestamp
// advanced only when an attempt actually synced something. Values live in
// a namespaced key-value table so unrelated preferences can share the same
// database later without schema churn.
package store

import (
	"context"
	"time"
)

// Key-value layout. lastSynced is integer epoch-millis as a string, 0 or
// absent meaning "never". persistedState is the engine's opaque token.
const (
	Namespace         = "syncPrefs"
	keyLastSynced     = "lastSynced"
	keyPersistedState = "persistedState"
)

// Store is the persistence contract the scheduler core depends on. Reads
// return ok=false before the first write. No transactional guarantee is
// required across the two keys: the engine is resumable from a stale token,
// so occasional token/timestamp skew is tolerated.
type Store interface {
	// PersistedState returns the continuation token from the previous
	// attempt, or ok=false when none has been written.
	PersistedState(ctx context.Context) (state string, ok bool, err error)

	// SetPersistedState overwrites the continuation token.
	SetPersistedState(ctx context.Context, state string) error

	// LastSynced returns the last fully-successful sync time, or ok=false
	// when no sync has ever succeeded.
	LastSynced(ctx context.Context) (t time.Time, ok bool, err error)

	// SetLastSynced records a fully-successful sync time.
	SetLastSynced(ctx context.Context, t time.Time) error

	Close() error
}
