package auth

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for authentication operations.
var (
	// ErrNoCredentials indicates that no bearer token was presented.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates that the authentication service
	// refused the presented credentials.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthError is a credential rejection by the authentication service. It
// carries the origin status and detail so they can be surfaced verbatim.
type AuthError struct {
	StatusCode int
	Detail     json.RawMessage
	Cause      error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error (status %d): %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("auth error (status %d)", e.StatusCode)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrInvalidCredentials.
func (e *AuthError) Is(target error) bool {
	return target == ErrInvalidCredentials
}
