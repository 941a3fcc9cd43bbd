// Package apperr holds the error taxonomy shared by the ingest, lifecycle,
// chat and media packages. Callers wrap these with fmt.Errorf("...: %w") and
// the HTTP layer maps them to status codes with errors.Is / errors.As.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown channels, videos and stored objects.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is an authorization failure: bad stream key or a viewer
	// without access to a channel's media.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthenticated means no valid identity accompanied the request.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrStateConflict rejects an invalid lifecycle transition.
	ErrStateConflict = errors.New("state conflict")

	// ErrConflict reports a uniqueness violation (slug, email).
	ErrConflict = errors.New("already exists")

	// ErrTransient marks a datastore or object store that is temporarily
	// unavailable.
	ErrTransient = errors.New("storage temporarily unavailable")
)

// ValidationError names the field and the constraint it violated.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Constraint)
}

// Validation builds a *ValidationError.
func Validation(field, constraint string) error {
	return &ValidationError{Field: field, Constraint: constraint}
}

// AsValidation unwraps err into a *ValidationError when it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
