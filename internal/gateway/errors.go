package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/txgw/internal/auth"
	"github.com/vyrodovalexey/txgw/internal/upstream"
)

// Sentinel errors for gateway lifecycle operations.
var (
	// ErrGatewayNotStopped indicates that Start was called on a gateway
	// that is not stopped.
	ErrGatewayNotStopped = errors.New("gateway is not in stopped state")

	// ErrGatewayNotRunning indicates that Stop was called on a gateway
	// that is not running.
	ErrGatewayNotRunning = errors.New("gateway is not running")

	// ErrNilConfig indicates that a nil configuration was provided.
	ErrNilConfig = errors.New("configuration is required")

	// ErrNilHandler indicates that no handler was provided.
	ErrNilHandler = errors.New("handler is required")
)

// Client-facing details.
const (
	DetailNotFound            = "Not Found"
	DetailNotAuthenticated    = "Not authenticated"
	DetailInvalidToken        = "Invalid or expired token"
	DetailUpstreamUnavailable = "upstream service unavailable"
	DetailUnexpectedUpstream  = "unexpected upstream response"
	DetailInternal            = "internal server error"
)

// HTTPError is a client-facing error: a status code and the value of the
// "detail" member of the JSON body.
type HTTPError struct {
	Status int
	Detail json.RawMessage
}

// NewHTTPError creates an HTTPError with a string detail.
func NewHTTPError(status int, detail string) *HTTPError {
	b, _ := json.Marshal(detail)
	return &HTTPError{Status: status, Detail: b}
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway error (status %d): %s", e.Status, e.Detail)
}

// Body returns the JSON body written to the client.
func (e *HTTPError) Body() []byte {
	b, _ := json.Marshal(struct {
		Detail json.RawMessage `json:"detail"`
	}{Detail: e.Detail})
	return b
}

// Translate maps any error produced while serving a request to the status
// and detail the client sees. Origin details pass through verbatim; transport
// failures never leak their cause.
func Translate(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	if errors.Is(err, auth.ErrNoCredentials) {
		return NewHTTPError(http.StatusUnauthorized, DetailNotAuthenticated)
	}

	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		if len(authErr.Detail) == 0 {
			return NewHTTPError(http.StatusUnauthorized, DetailInvalidToken)
		}
		return &HTTPError{Status: http.StatusUnauthorized, Detail: authErr.Detail}
	}

	var rejected *upstream.RejectedError
	if errors.As(err, &rejected) {
		if rejected.StatusCode < http.StatusBadRequest || rejected.StatusCode > 599 {
			return NewHTTPError(http.StatusBadGateway, DetailUnexpectedUpstream)
		}
		return &HTTPError{Status: rejected.StatusCode, Detail: rejected.Detail()}
	}

	if errors.Is(err, upstream.ErrUnreachable) {
		return NewHTTPError(http.StatusBadGateway, DetailUpstreamUnavailable)
	}

	return NewHTTPError(http.StatusInternalServerError, DetailInternal)
}
