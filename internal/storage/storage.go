// Package storage persists conversation artifacts. The capability is
// best-effort by contract: Save never returns an error, because the caller
// must keep serving the user even when durable storage is down.
package storage

import "context"

// Reference is an opaque pointer to a stored artifact, recorded for
// observability only.
type Reference string

// RefUnavailable marks a save that failed everywhere, including the local
// fallback.
const RefUnavailable Reference = "storage:unavailable"

// Failed reports whether the reference is the failure sentinel.
func (r Reference) Failed() bool {
	return r == RefUnavailable
}

// Store saves content under a per-user, per-category key scheme.
type Store interface {
	// Save persists content and returns a reference. It never fails past
	// its boundary: on any internal error it returns RefUnavailable or a
	// local fallback reference instead.
	Save(ctx context.Context, content []byte, userID, category, format string) Reference
}
