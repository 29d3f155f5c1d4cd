package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/txgw/internal/observability"
)

// Recovery returns a middleware that recovers from panics and answers
// 500 {"detail":"internal server error"}.
func Recovery(logger observability.Logger) Middleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				err := recover()
				if err == nil {
					return
				}
				// Let net/http handle its own abort sentinel.
				if err == http.ErrAbortHandler {
					panic(err)
				}

				logger.WithContext(r.Context()).Error("panic recovered",
					observability.String("path", r.URL.Path),
					observability.String("method", r.Method),
					observability.Any("error", err),
					observability.String("stack", string(debug.Stack())),
				)
				GetMiddlewareMetrics().panicsRecovered.Inc()

				writeJSONError(w, http.StatusInternalServerError, ErrInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
