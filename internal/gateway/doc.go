// Package gateway provides the inbound HTTP surface of the gateway.
//
// Router maps each public endpoint to a Route descriptor and runs the
// request lifecycle: bearer verification for protected routes, payload
// binding and transformation, response cache lookup, a single forwarding
// attempt to the owning service, and translation of the outcome into the
// client-facing status and {"detail": ...} body.
//
// Gateway owns the HTTP server: it listens on the configured address,
// serves the handler chain and shuts down gracefully.
//
//	router := gateway.NewRouter(delegate, txClient,
//	    gateway.WithCache(responseCache),
//	    gateway.WithHealth(aggregator),
//	)
//	gw, err := gateway.New(cfg, handler, gateway.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := gw.Start(ctx); err != nil {
//	    return err
//	}
//	defer gw.Stop(ctx)
package gateway
