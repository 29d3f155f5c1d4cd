// Package upstream provides the pooled HTTP client the gateway uses to call
// its backend services.
//
// Every call yields exactly one of three outcomes:
//
//   - *Response for a 2xx answer
//   - *RejectedError when the service answered with any other status
//   - *UnreachableError for transport failures, timeouts and open circuits
//
// Callers switch on the variant rather than inspecting transport errors:
//
//	resp, err := client.PostJSON(ctx, "/verify", body, nil)
//	var rejected *upstream.RejectedError
//	switch {
//	case err == nil:
//	    // use resp.Body
//	case errors.As(err, &rejected):
//	    // rejected.StatusCode, rejected.Detail()
//	default:
//	    // unreachable
//	}
//
// A call is attempted once. Per-call timeouts come from the client's
// configuration; an optional circuit breaker fails fast after repeated
// transport failures or 5xx answers.
package upstream
