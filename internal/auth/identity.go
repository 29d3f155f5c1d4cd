package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// Identity is the caller as confirmed by the authentication service. It
// lives for one request and is never stored.
type Identity struct {
	// Subject identifies the user. It keys cached responses, so it must
	// stay stable across token refreshes.
	Subject string

	// Token is the raw bearer token, forwarded to backends.
	Token string
}

// subjectClaims are checked in order when reading a verify answer.
var subjectClaims = []string{"user_id", "sub", "user", "username", "id"}

// identityFromVerifyBody extracts the subject from the verify endpoint's
// answer. When the answer names no user the subject is derived from the
// token, which keeps distinct callers apart at the cost of per-token keys.
func identityFromVerifyBody(token string, body []byte) *Identity {
	id := &Identity{Token: token}

	var claims map[string]json.RawMessage
	if err := json.Unmarshal(body, &claims); err == nil {
		for _, name := range subjectClaims {
			if s := claimString(claims[name]); s != "" {
				id.Subject = s
				return id
			}
		}
	}

	sum := sha256.Sum256([]byte(token))
	id.Subject = "token:" + hex.EncodeToString(sum[:16])
	return id
}

func claimString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		// {"user": true} style answers confirm the token but name nobody.
		return ""
	}
	var nested map[string]json.RawMessage
	if err := json.Unmarshal(raw, &nested); err == nil {
		for _, name := range []string{"id", "username"} {
			if s := claimString(nested[name]); s != "" {
				return s
			}
		}
	}
	return ""
}

// UserID returns the subject as a number when it is numeric.
func (i *Identity) UserID() (int64, bool) {
	n, err := strconv.ParseInt(i.Subject, 10, 64)
	return n, err == nil
}

type identityContextKey struct{}

// ContextWithIdentity adds an identity to the context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity from the context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}
