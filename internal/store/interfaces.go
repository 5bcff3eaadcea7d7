// Package store persists the user's handle and credential between sessions.
//
// Two modes exist: a plain in-memory store scoped to one coordinator, and a
// durable SQLite-backed store that mirrors every mutation synchronously under
// a single fixed key and hydrates from it at construction.
package store

import "github.com/MKhiriev/go-immers-client/models"

//go:generate mockgen -source=interfaces.go -destination=../mock/session_store_mock.go -package=mock

// SessionStore is the credential repository invoked deliberately at session
// lifecycle points: hydrated at construction, written after login, cleared on
// logout.
//
// A durable store is not guaranteed consistent across concurrent consumers of
// the same backing file (e.g. two client processes).
type SessionStore interface {
	// Handle returns the stored handle string and whether one is present.
	// It may be available even when logged out, captured from a link or a
	// past login.
	Handle() (string, bool)

	// SetHandle stores the handle, mirroring to durable storage when
	// enabled.
	SetHandle(handle string) error

	// Credential returns the stored credential and whether one is present.
	Credential() (models.Credential, bool)

	// SetCredential stores the credential, mirroring to durable storage
	// when enabled.
	SetCredential(cred models.Credential) error

	// Clear removes all stored identity state.
	Clear() error
}
