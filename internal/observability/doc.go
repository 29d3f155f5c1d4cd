// Package observability provides logging, metrics, and tracing for the
// transaction gateway.
//
// # Logging
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	logger.Info("request processed",
//	    observability.String("route", "transactions"),
//	    observability.Int("status", 200),
//	)
//
// Bearer tokens and passwords are never passed to the logger.
//
// # Metrics
//
// Gateway request, upstream call and build metrics live on a private
// registry served by Metrics.Handler. Package-level singletons in cache,
// health and upstream bridge onto it through their MustRegister methods.
//
// # Tracing
//
// OpenTelemetry tracing with OTLP gRPC export. The otel SDK's own
// diagnostics are routed to the gateway logger through a logr bridge.
package observability
