package catalog

import "errors"

// Typed errors for the mutation surface. Callers match with errors.Is; the
// HTTP layer maps them to status codes.
var (
	// ErrNameConflict means the requested label is already used by a
	// different active cluster.
	ErrNameConflict = errors.New("label already in use")

	// ErrUnknownCluster means the operation referenced a nonexistent
	// cluster id.
	ErrUnknownCluster = errors.New("unknown cluster")

	// ErrUnknownObservation means the operation referenced a nonexistent
	// observation id.
	ErrUnknownObservation = errors.New("unknown observation")

	// ErrNotConfirmed means a destructive operation was requested without
	// the explicit confirmation flag.
	ErrNotConfirmed = errors.New("deletion not confirmed")

	// ErrInvalidLabel means the label is empty, reserved, or not usable as
	// a directory name.
	ErrInvalidLabel = errors.New("invalid label")
)
