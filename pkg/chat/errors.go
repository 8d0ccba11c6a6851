package chat

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError covers bad or missing input: unknown model, empty
// utterance. Rejected before any persistence or inference call.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AuthorizationError covers a missing or unverifiable caller identity.
// Rejected before any conversation or turn mutation.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

// StorageError wraps a failure of the conversation store. Partially
// completed steps are not rolled back; the log stays the source of truth.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// InferenceError wraps a failed model-service call. Unlike validation and
// auth failures it is also recorded as an error turn, because the user is
// owed a visible attempt.
type InferenceError struct {
	Err error
	// Canceled marks caller-initiated disconnects; those are not recorded
	// as error turns.
	Canceled bool
}

func (e *InferenceError) Error() string { return fmt.Sprintf("inference: %v", e.Err) }
func (e *InferenceError) Unwrap() error { return e.Err }

// StatusFor maps protocol errors to HTTP status codes.
func StatusFor(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	var ae *AuthorizationError
	if errors.As(err, &ae) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}
