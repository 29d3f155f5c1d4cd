// Package middleware provides the inbound HTTP middleware of the gateway.
//
// Every component is a plain func(http.Handler) http.Handler so the chain
// can wrap the gin engine without knowing about it:
//
//   - RequestID: propagates or generates X-Request-ID
//   - Recovery: turns handler panics into 500 {"detail":...}
//   - Logging: one structured access log line per request
//   - BodyLimit: rejects oversized request bodies with 413
//   - RateLimit: token bucket limiting, globally or per client address
//
// Chain composes them outermost first:
//
//	handler := middleware.Chain(engine,
//	    middleware.Recovery(logger),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)
package middleware
