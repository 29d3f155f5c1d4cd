package util

import (
	"context"
	"sync"
	"time"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyTraceID   ctxKey = "trace_id"
	ctxKeySpanID    ctxKey = "span_id"
	ctxKeyStartTime ctxKey = "start_time"
	ctxKeyRouteInfo ctxKey = "route_info"
)

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// ContextWithTraceID adds a trace ID to the context.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKeyTraceID, traceID)
}

// TraceIDFromContext extracts the trace ID from context.
func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyTraceID).(string); ok {
		return v
	}
	return ""
}

// ContextWithSpanID adds a span ID to the context.
func ContextWithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, ctxKeySpanID, spanID)
}

// SpanIDFromContext extracts the span ID from context.
func SpanIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeySpanID).(string); ok {
		return v
	}
	return ""
}

// ContextWithStartTime adds a start time to the context.
func ContextWithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyStartTime, t)
}

// StartTimeFromContext extracts the start time from context.
func StartTimeFromContext(ctx context.Context) time.Time {
	if v, ok := ctx.Value(ctxKeyStartTime).(time.Time); ok {
		return v
	}
	return time.Time{}
}

// ElapsedTime returns the elapsed time since the start time in context.
func ElapsedTime(ctx context.Context) time.Duration {
	startTime := StartTimeFromContext(ctx)
	if startTime.IsZero() {
		return 0
	}
	return time.Since(startTime)
}

// RouteInfo is a mutable holder for the matched route name. Middleware
// running before routing installs it; the route handler sets the name.
type RouteInfo struct {
	mu   sync.RWMutex
	name string
}

// Set records the route name.
func (r *RouteInfo) Set(name string) {
	r.mu.Lock()
	r.name = name
	r.mu.Unlock()
}

// Name returns the recorded route name, or "" when unset.
func (r *RouteInfo) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

// ContextWithRouteInfo installs a route holder, reusing an existing one.
func ContextWithRouteInfo(ctx context.Context) (context.Context, *RouteInfo) {
	if info := RouteInfoFromContext(ctx); info != nil {
		return ctx, info
	}
	info := &RouteInfo{}
	return context.WithValue(ctx, ctxKeyRouteInfo, info), info
}

// RouteInfoFromContext returns the route holder, or nil.
func RouteInfoFromContext(ctx context.Context) *RouteInfo {
	if v, ok := ctx.Value(ctxKeyRouteInfo).(*RouteInfo); ok {
		return v
	}
	return nil
}

// SetRouteName records the route name on the holder in ctx, if any.
func SetRouteName(ctx context.Context, name string) {
	if info := RouteInfoFromContext(ctx); info != nil {
		info.Set(name)
	}
}

// RouteNameFromContext returns the recorded route name, or "".
func RouteNameFromContext(ctx context.Context) string {
	if info := RouteInfoFromContext(ctx); info != nil {
		return info.Name()
	}
	return ""
}
