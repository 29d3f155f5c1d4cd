package middleware

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/txgw/internal/observability"
	"github.com/vyrodovalexey/txgw/internal/util"
)

// Logging returns a middleware that writes one access log line per request.
// The route field is whatever name the handler recorded; it is empty for
// requests that never matched a route.
func Logging(logger observability.Logger) Middleware {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := util.ContextWithStartTime(r.Context(), time.Now())
			ctx, route := util.ContextWithRouteInfo(ctx)
			r = r.WithContext(ctx)

			rw := util.NewStatusCapturingResponseWriter(w)
			next.ServeHTTP(rw, r)

			//nolint:contextcheck // request context carries the request ID
			logger.WithContext(r.Context()).Info("http request",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("query", r.URL.RawQuery),
				observability.String("route", route.Name()),
				observability.Int("status", rw.StatusCode),
				observability.Int("size", rw.BytesWritten),
				observability.Duration("duration", util.ElapsedTime(ctx)),
				observability.String("client_ip", getClientIP(r)),
				observability.String("user_agent", r.UserAgent()),
			)
		})
	}
}

// getClientIP resolves the client address with the package extractor.
func getClientIP(r *http.Request) string {
	return globalExtractor.Load().Extract(r)
}
