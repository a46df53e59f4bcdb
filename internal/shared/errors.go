package shared

import "errors"

var (
	// ErrNotFound indicates a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrActorMissing indicates no acting employee could be resolved.
	ErrActorMissing = errors.New("acting employee not resolved")
)
