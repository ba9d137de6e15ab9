// Package sentinel holds infrastructure facts that stores and sources return
// so services can translate them into domain errors.
package sentinel

import "errors"

var (
	// ErrNotFound means the requested entity is not held anywhere, including
	// an entry that existed but has expired.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means a backing source could not be reached.
	ErrUnavailable = errors.New("unavailable")
)
