package types

import "errors"

// Domain specific errors shared by repositories, services and handlers.
var (
	ErrNotFound      = errors.New("requested item not found")
	ErrConflict      = errors.New("item already exists or conflict")
	ErrBadRequest    = errors.New("bad request")
	ErrInvalidRegion = errors.New("invalid region")
	ErrCorruptState  = errors.New("stored state is corrupt")
	ErrClosed        = errors.New("component closed")
)
