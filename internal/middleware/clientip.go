package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"
)

// ClientIPExtractor resolves the client address of a request. Without
// trusted proxies only RemoteAddr is used, so X-Forwarded-For cannot be
// spoofed by clients.
type ClientIPExtractor struct {
	trusted []netip.Prefix
}

// NewClientIPExtractor creates an extractor trusting the given CIDRs or
// single addresses. Unparseable entries are skipped; the config validator
// reports them before this point.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	prefixes := make([]netip.Prefix, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		if p, err := netip.ParsePrefix(proxy); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(proxy); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return &ClientIPExtractor{trusted: prefixes}
}

// Extract returns the client address. When the peer is a trusted proxy,
// X-Forwarded-For is walked right to left and the first untrusted hop wins.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	remote := stripPort(r.RemoteAddr)
	if len(e.trusted) == 0 || !e.isTrusted(remote) {
		return remote
	}

	hops := strings.Split(r.Header.Get(HeaderXForwardedFor), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !e.isTrusted(hop) {
			return hop
		}
	}
	return remote
}

func (e *ClientIPExtractor) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range e.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// stripPort handles both "1.2.3.4:80" and "[::1]:80".
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

//nolint:gochecknoglobals // set once at startup
var globalExtractor atomic.Pointer[ClientIPExtractor]

func init() {
	globalExtractor.Store(NewClientIPExtractor(nil))
}

// SetGlobalIPExtractor replaces the extractor used by Logging and RateLimit.
// Call it once during startup, before serving.
func SetGlobalIPExtractor(e *ClientIPExtractor) {
	if e != nil {
		globalExtractor.Store(e)
	}
}
