package middleware

import (
	"errors"
	"io"
	"net/http"

	"github.com/vyrodovalexey/txgw/internal/observability"
)

// ErrBodyTooLarge is returned by the request body once the limit is passed.
var ErrBodyTooLarge = errors.New("request body size exceeded")

// BodyLimit rejects requests whose declared Content-Length exceeds maxSize
// with 413 and caps the readable body of all others. A non-positive maxSize
// disables the limit.
func BodyLimit(maxSize int64, logger observability.Logger) Middleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		if maxSize <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxSize {
				logger.WithContext(r.Context()).Warn("request body too large",
					observability.Int64("content_length", r.ContentLength),
					observability.Int64("max_size", maxSize),
					observability.String("path", r.URL.Path),
				)
				GetMiddlewareMetrics().bodyLimitRejected.Inc()
				writeJSONError(w, http.StatusRequestEntityTooLarge, ErrRequestEntityTooLarge)
				return
			}

			if r.Body != nil && r.Body != http.NoBody {
				r.Body = &limitedReadCloser{ReadCloser: r.Body, remaining: maxSize}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// limitedReadCloser fails reads past the limit instead of truncating
// silently, so a chunked body that is too large does not parse as valid.
type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		// Distinguish a body of exactly maxSize bytes from an oversized one.
		var probe [1]byte
		n, err := l.ReadCloser.Read(probe[:])
		if n > 0 {
			return 0, ErrBodyTooLarge
		}
		return 0, err
	}

	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.ReadCloser.Read(p)
	l.remaining -= int64(n)
	return n, err
}
