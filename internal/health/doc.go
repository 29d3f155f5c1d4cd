// Package health aggregates backend health for the readiness endpoint.
//
// An Aggregator holds one Probe per backend. Check starts every probe at
// once, each under its own timeout, and waits for all of them; the
// composite is healthy only when every probe is. A probe that errors,
// panics, answers non-2xx or runs past its timeout marks its service
// unhealthy and is never surfaced as an error.
//
// Handler exposes GET /healthz/ready (200 {"status":"healthy"} or 503 with
// a detail) and GET /healthz/live, which touches no dependency.
//
//	agg := health.NewAggregator([]health.Probe{
//	    health.HTTPHealthCheck("auth", authURL+"/healthz/ready", 3*time.Second, client),
//	    health.HTTPHealthCheck("transactions", txURL+"/healthz/ready", 3*time.Second, client),
//	}, health.WithLogger(logger))
//	health.NewHandler(agg).RegisterRoutes(engine)
package health
