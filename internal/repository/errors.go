package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a uniqueness constraint was violated.
	ErrConflict = errors.New("repository: conflict")
	// ErrInvalidArgument indicates the database rejected a value.
	ErrInvalidArgument = errors.New("repository: invalid argument")
	// ErrStale indicates a conditional update matched no row in the expected state.
	ErrStale = errors.New("repository: stale state")
)
