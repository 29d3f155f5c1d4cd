// Package util provides small helpers shared across the gateway.
//
// # Context Helpers
//
//	ctx = util.ContextWithRequestID(ctx, "req-123")
//	requestID := util.RequestIDFromContext(ctx)
//
// A RouteInfo placed in the context by outer middleware is filled in by
// the route handler, so metrics and access logs can label requests by
// route name rather than raw path.
//
// # Error Conventions
//
//   - Sentinel errors (errors.New) for stable conditions checked with errors.Is.
//   - Structured error types carrying extra fields, each implementing
//     Error, Unwrap (when wrapping) and Is.
//   - fmt.Errorf with %w for ad-hoc context.
package util
