// Package engine defines the boundary to the external record-level sync
// engine. The scheduler core builds a Request, hands it to an Engine
// implementation, and classifies the Result; it never looks inside the
// reconciliation protocol itself.
package engine

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ID identifies a recognized sync engine (a category of synced data).
type ID string

// Recognized engine identifiers.
const (
	History     ID = "history"
	Bookmarks   ID = "bookmarks"
	Logins      ID = "logins"
	Tabs        ID = "tabs"
	Addresses   ID = "addresses"
	CreditCards ID = "creditcards"
)

// knownIDs maps normalized store-name strings to engine IDs. Aliases cover
// the store names the engine reports, which do not always match the engine
// identifier exactly.
var knownIDs = map[string]ID{
	"history":     History,
	"bookmarks":   Bookmarks,
	"logins":      Logins,
	"passwords":   Logins,
	"tabs":        Tabs,
	"addresses":   Addresses,
	"creditcards": CreditCards,
	"cards":       CreditCards,
}

// FromStoreName translates a store-name string reported by the engine into
// a recognized engine ID. Names are NFC-normalized and lowercased before
// lookup. Unrecognized names return ("", false); callers drop them rather
// than failing the attempt.
func FromStoreName(name string) (ID, bool) {
	id, ok := knownIDs[strings.ToLower(norm.NFC.String(name))]
	return id, ok
}

// Reason records why an attempt was started. It is passed through to the
// engine, which may use it for server-side telemetry or prioritization.
type Reason string

const (
	// ReasonUser marks attempts triggered by an explicit user action.
	ReasonUser Reason = "user"
	// ReasonScheduled marks attempts triggered by the periodic schedule.
	ReasonScheduled Reason = "scheduled"
)

// Status is the engine's classification of one sync attempt.
type Status int

const (
	// StatusOK means the attempt completed successfully.
	StatusOK Status = iota
	// StatusNetworkError means the attempt failed on a transient network
	// condition and may be retried.
	StatusNetworkError
	// StatusBackedOff means the server asked the client to back off; the
	// engine enforces its own earliest-retry time server-side.
	StatusBackedOff
	// StatusAuthError means credentials were rejected; retrying without
	// re-authentication is pointless.
	StatusAuthError
	// StatusServiceError means the service reported a non-auth failure.
	StatusServiceError
	// StatusOtherError covers everything else.
	StatusOtherError
)

// String returns the status name for logging.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNetworkError:
		return "network_error"
	case StatusBackedOff:
		return "backed_off"
	case StatusAuthError:
		return "auth_error"
	case StatusServiceError:
		return "service_error"
	case StatusOtherError:
		return "other_error"
	default:
		return "unknown"
	}
}

// AuthInfo carries the cached credentials for one attempt. The scheduler
// treats it as opaque; only the engine interprets it.
type AuthInfo struct {
	AccessToken string
	KeyID       string
	SyncKey     string
	TokenServer string
}

// StoreHandle is a live handle to a local data store, resolved immediately
// before each attempt. Handles must not be cached across attempts.
type StoreHandle struct {
	Name   string
	Handle any
}

// Request is the input to one engine invocation.
type Request struct {
	// Reason records what triggered the attempt.
	Reason Reason
	// Stores are the resolved local store handles for this attempt.
	Stores []StoreHandle
	// Engines restricts which engines sync; nil means "all configured with
	// a handle", intersected server-side with the enabled set.
	Engines []string
	// AuthInfo carries cached credentials.
	AuthInfo AuthInfo
	// EnabledChanges maps engine name to its current enablement, so the
	// server learns about local toggles.
	EnabledChanges map[string]bool
	// PersistedState is the continuation token from the previous attempt,
	// empty when none exists.
	PersistedState string
}

// Result is the outcome of one engine invocation.
type Result struct {
	// Status classifies the attempt.
	Status Status
	// Failures maps store name to its failure reason for partial failures.
	Failures map[string]string
	// Successful lists the stores that synced.
	Successful []string
	// Declined lists store names the user declined on another device, or
	// nil when the engine reported no declined information.
	Declined []string
	// PersistedState is the new continuation token. It may encode partial
	// progress and must be persisted even after a failed attempt.
	PersistedState string
}

// Engine performs one record-level sync attempt. Implementations live
// outside this module; the scheduler only depends on this interface.
type Engine interface {
	Sync(ctx context.Context, req Request) (Result, error)
}

// HandleProvider resolves configured store names to live handles. Stores
// that are not ready resolve to nothing and are simply absent from the
// returned slice.
type HandleProvider interface {
	Handles(ctx context.Context, names []string) ([]StoreHandle, error)
}

// EnablementSource reports per-engine enablement changes since the last
// attempt. Implementations typically track UI toggles.
type EnablementSource interface {
	EnabledChanges() map[string]bool
}
