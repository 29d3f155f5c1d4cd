// Package auth delegates authentication to the authentication service.
//
// The gateway never validates credentials itself. Delegate.Verify posts the
// bearer token to the service's verify endpoint and turns the answer into an
// Identity; Login and Register forward the caller's fields unchanged and
// hand back the service's answer.
//
// A token the service rejects with a 4xx status yields an *AuthError that
// matches ErrInvalidCredentials. Outages (5xx answers, transport failures,
// timeouts) are returned as the upstream error so the router reports them
// like any other backend failure.
package auth
