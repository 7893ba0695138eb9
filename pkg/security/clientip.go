package security

import (
	"net"
	"net/http"
	"strings"
)

// ClientKey derives the identifier used to bucket rate-limit and abuse
// counters for a request. Forwarded headers are preferred so the gate
// sees the original client behind a proxy or load balancer:
// first X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, ok := strings.Cut(xff, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		return xrip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
