package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint derives a cache key from the route, the verified subject and
// the request payload. The payload is normalized to canonical JSON first,
// so field order and whitespace do not split the key space.
func Fingerprint(routeID, subject string, payload any) (string, error) {
	normalized, err := canonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("normalize payload: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(routeID))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write(normalized)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// canonicalJSON re-encodes v with object keys sorted. Numbers keep their
// original text.
func canonicalJSON(v any) ([]byte, error) {
	var raw []byte
	switch b := v.(type) {
	case nil:
		return []byte("null"), nil
	case []byte:
		raw = b
	case json.RawMessage:
		raw = b
	default:
		var err error
		if raw, err = json.Marshal(v); err != nil {
			return nil, err
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	// encoding/json sorts map keys.
	return json.Marshal(generic)
}
