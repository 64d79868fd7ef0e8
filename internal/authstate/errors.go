// Package authstate implements the persistent, mutex-guarded auth-state
// store: credentials, pre-keys, sessions, sender keys, identities, and
// app-state sync keys/versions, backed by Postgres with a write-behind
// in-memory cache (spec §4.3).
package authstate

import "fmt"

// StoreErrorKind discriminates store failures (spec §7).
type StoreErrorKind int

const (
	NotFound StoreErrorKind = iota
	Conflict
	IOFailure
)

func (k StoreErrorKind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case IOFailure:
		return "IOFailure"
	default:
		return "Unknown"
	}
}

// StoreError is the error type authstate operations fail with. The cache
// reads (Get, LoadPreKey, LoadSession, LoadIdentity) report a missing
// entry as a nil/absent result rather than an error; LoadCreds and
// MarkPreKeyAsUsed return a NotFound StoreError for a missing row.
type StoreError struct {
	Kind StoreErrorKind
	Msg  string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("authstate: %s: %s", e.Kind, e.Msg)
}

func newStoreErr(kind StoreErrorKind, format string, args ...any) *StoreError {
	return &StoreError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
