package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/txgw/internal/util"
)

// RequestIDHeader is the header carrying the request ID.
const RequestIDHeader = HeaderXRequestID

// maxRequestIDLength bounds client-supplied IDs; longer ones are replaced.
const maxRequestIDLength = 128

// RequestID returns a middleware that adds a request ID to each request.
func RequestID() Middleware {
	return RequestIDWithGenerator(func() string { return uuid.New().String() })
}

// RequestIDWithGenerator returns a middleware that uses a custom ID generator
// when the client did not send a usable ID.
func RequestIDWithGenerator(generator func() string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > maxRequestIDLength {
				requestID = generator()
			}

			r = r.WithContext(util.ContextWithRequestID(r.Context(), requestID))
			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r)
		})
	}
}
