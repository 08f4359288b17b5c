// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested CV or event does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (expected version mismatch).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates a missing or invalid principal.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a CV_CREATED for a CV that already has events.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidSequence indicates an event stream that does not start with CV_CREATED.
	ErrInvalidSequence = errors.New("invalid event sequence")

	// ErrInvalidVersion indicates a requested version outside 1..len(events).
	ErrInvalidVersion = errors.New("invalid version")

	// ErrSyncFailure wraps failures to push an event to the projection side.
	// It is logged, never returned to command callers.
	ErrSyncFailure = errors.New("projection sync failed")

	// ErrBadSignature indicates a stored event whose signature does not verify.
	ErrBadSignature = errors.New("bad event signature")

	// ErrMalformedEvent indicates a stored event whose type or payload cannot be decoded.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrValidation marks malformed command input.
	ErrValidation = errors.New("validation")
)
