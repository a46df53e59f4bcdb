package shared

import "errors"

var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrInvalidID  = errors.New("invalid ID")
	ErrValidation = errors.New("validation failed")
)
