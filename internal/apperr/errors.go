// Package apperr holds the error taxonomy shared by the store and its callers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrConsistency marks corrupted persisted state. Not retried.
	ErrConsistency = errors.New("consistency error")
	// ErrDecode marks malformed compressed or container bytes for a single record.
	ErrDecode = errors.New("decode error")
	// ErrValidation marks a user-correctable rejection raised before any write.
	ErrValidation = errors.New("validation error")
	// ErrStoreIO marks a failure of the underlying relational engine.
	ErrStoreIO = errors.New("store i/o error")

	ErrInvalidStore = errors.New("invalid store file")
	ErrLocked       = errors.New("store is locked by another process")
)

// ConsistencyError reports tag rows that could not be attached to the forest.
type ConsistencyError struct {
	Unattached int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error: %d dangling tag node(s)", e.Unattached)
}

// Is lets errors.Is(err, ErrConsistency) match.
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrConsistency
}

// Validation wraps ErrValidation with a message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// IsUserError reports whether err is user-correctable rather than an environment failure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict)
}
