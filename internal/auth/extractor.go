package auth

import (
	"net/http"
	"strings"
)

const bearerScheme = "bearer"

// BearerToken returns the token from the Authorization header. The scheme
// is matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	return ParseBearer(r.Header.Get("Authorization"))
}

// ParseBearer parses an Authorization header value.
func ParseBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return "", ErrNoCredentials
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoCredentials
	}
	return token, nil
}
