package middleware

import "net/http"

// HTTP header names used by the middleware.
const (
	HeaderContentType   = "Content-Type"
	HeaderRetryAfter    = "Retry-After"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXForwardedFor = "X-Forwarded-For"
)

// ContentTypeJSON is the content type of every error body written here.
const ContentTypeJSON = "application/json"

// Error bodies. All gateway errors share the {"detail": ...} shape.
const (
	ErrRateLimitExceeded     = `{"detail":"rate limit exceeded"}`
	ErrInternalServerError   = `{"detail":"internal server error"}`
	ErrRequestEntityTooLarge = `{"detail":"request entity too large"}`
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws to h so that the first middleware is the outermost.
// Nil entries are skipped.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

func writeJSONError(w http.ResponseWriter, status int, body string) {
	w.Header().Set(HeaderContentType, ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
