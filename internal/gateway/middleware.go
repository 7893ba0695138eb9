package gateway

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/khayyamnoor/simplechatbotapi/pkg/security"
)

// maxBodyBytes bounds how much of a request body the gate will scan.
const maxBodyBytes = 1 << 20

// RequestLogger logs one line per request with method, path, status,
// and duration, and feeds the HTTP metrics.
func (g *Gateway) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		g.logger.Info("request",
			"method", r.Method,
			"path", path,
			"status", ww.Status(),
			"duration_ms", duration.Milliseconds(),
			"client", security.ClientKey(r),
		)
		if g.metrics != nil {
			g.metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(ww.Status()), duration)
		}
	})
}

// SecurityHeaders sets standard security response headers on every
// response. It should be placed early in the middleware chain.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")

		next.ServeHTTP(w, r)
	})
}

// Admission runs the security gate on every request it wraps. The
// global limiter sheds load before any per-client accounting happens;
// after it, the gate checks the blocked set, the per-client windows,
// and the abuse patterns against path, query, and body.
//
// Per-minute standing is reported on X-RateLimit-Limit and
// X-RateLimit-Remaining whether the request is admitted or not.
func (g *Gateway) Admission(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.global != nil && !g.global.Allow() {
			if g.metrics != nil {
				g.metrics.RecordDenial("global")
			}
			writeError(w, http.StatusTooManyRequests, "server is busy, try again shortly")
			return
		}

		clientKey := security.ClientKey(r)

		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		decision := g.gate.Admit(clientKey, r.URL.Path, r.URL.Query(), body)

		if stats, ok := g.limiter.Stats(clientKey, time.Now())["per_minute"]; ok {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(stats.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(stats.Remaining))
		}

		if !decision.Allowed {
			if g.metrics != nil {
				g.metrics.RecordDenial(decision.Reason)
				g.metrics.SetBannedClients(g.gate.GetStats().BlockedClients)
			}
			switch decision.Reason {
			case security.ReasonBlocked:
				writeError(w, http.StatusForbidden, "access denied")
			case security.ReasonMalicious:
				writeError(w, http.StatusForbidden, "request rejected")
			default:
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded: "+decision.Reason)
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}
