package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/txgw/internal/util"
)

// Sentinel errors for upstream outcomes.
var (
	// ErrRejected matches any *RejectedError.
	ErrRejected = errors.New("upstream rejected request")

	// ErrUnreachable matches any *UnreachableError.
	ErrUnreachable = errors.New("upstream unreachable")
)

// RejectedError is returned when the service answered with a non-2xx status.
type RejectedError struct {
	Service     string
	StatusCode  int
	Body        []byte
	ContentType string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("upstream %s rejected request: status %d", e.Service, e.StatusCode)
}

// Is checks if the error matches the target.
func (e *RejectedError) Is(target error) bool {
	if target == ErrRejected {
		return true
	}
	_, ok := target.(*RejectedError)
	return ok
}

// Detail returns the origin's error detail as a JSON value. A JSON object
// with a "detail" member yields that member verbatim; other JSON is
// returned whole; a non-JSON body becomes a JSON string; an empty body
// falls back to the status text.
func (e *RejectedError) Detail() json.RawMessage {
	body := bytes.TrimSpace(e.Body)
	if len(body) == 0 {
		return quote(http.StatusText(e.StatusCode))
	}

	if json.Valid(body) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err == nil {
			if detail, ok := obj["detail"]; ok {
				return detail
			}
		}
		return json.RawMessage(body)
	}

	return quote(string(body))
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// UnreachableError is returned when no answer was obtained from the service.
type UnreachableError struct {
	Service string
	Op      string
	Cause   error
}

// Error implements the error interface.
func (e *UnreachableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("upstream %s unreachable during %s: %v", e.Service, e.Op, e.Cause)
	}
	return fmt.Sprintf("upstream %s unreachable during %s", e.Service, e.Op)
}

// Unwrap returns the underlying error.
func (e *UnreachableError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *UnreachableError) Is(target error) bool {
	if target == ErrUnreachable || target == util.ErrUpstreamUnavailable {
		return true
	}
	_, ok := target.(*UnreachableError)
	return ok || errors.Is(e.Cause, target)
}

// Timeout reports whether the failure was a deadline expiry.
func (e *UnreachableError) Timeout() bool {
	return util.IsTimeout(e.Cause)
}

// outcome labels a call result for metrics and spans.
func outcome(err error) string {
	var rejected *RejectedError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.Is(err, util.ErrCircuitOpen):
		return "circuit_open"
	case util.IsTimeout(err):
		return "timeout"
	default:
		return "unreachable"
	}
}
