// Package security composes client blocking, rate limiting, and
// abuse-pattern scanning into a single request-admission gate.
package security

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/khayyamnoor/simplechatbotapi/pkg/ratelimit"
)

// Denial reasons reported by the gate.
const (
	ReasonBlocked   = "blocked"
	ReasonMalicious = "malicious_content"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	// Reason is the denial reason: "blocked", "malicious_content", or the
	// name of the violated rate-limit rule.
	Reason string
}

var allowed = Decision{Allowed: true}

func denied(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// maliciousPatterns are case-insensitive substrings associated with
// injection, XSS, and path-traversal probes. A match anywhere in the
// path, query, or body denies the request.
var maliciousPatterns = []string{
	"union select",
	"drop table",
	"insert into",
	"delete from",
	"update set",
	"<script",
	"javascript:",
	"eval(",
	"exec(",
	"../",
	"..\\",
	"file://",
	"data:",
	"vbscript:",
}

// Config controls the gate's ban policy.
type Config struct {
	// ViolationThreshold is the number of denials after which a client
	// is banned. Default 10.
	ViolationThreshold int
	// BanDuration bounds how long a ban lasts. Zero means the ban is
	// permanent for the lifetime of the process.
	BanDuration time.Duration
}

// DefaultConfig matches the historical behaviour: permanent bans after
// more than ten violations.
func DefaultConfig() Config {
	return Config{ViolationThreshold: 10}
}

// Gate admits or denies requests. It owns the blocked set and per-client
// violation counters and delegates window accounting to a Limiter.
// Gate is safe for concurrent use.
type Gate struct {
	limiter *ratelimit.Limiter
	cfg     Config
	logger  *slog.Logger

	mu         sync.Mutex
	blocked    map[string]time.Time // key -> ban expiry (zero time = permanent)
	violations map[string]int
}

// NewGate creates a gate backed by the given limiter. A nil logger
// falls back to slog.Default.
func NewGate(limiter *ratelimit.Limiter, cfg Config, logger *slog.Logger) *Gate {
	if cfg.ViolationThreshold <= 0 {
		cfg.ViolationThreshold = DefaultConfig().ViolationThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		limiter:    limiter,
		cfg:        cfg,
		logger:     logger,
		blocked:    make(map[string]time.Time),
		violations: make(map[string]int),
	}
}

// Admit runs the admission pipeline for a request, short-circuiting on
// the first denial: blocked set, rate limiter, then pattern scan. Rate
// and pattern denials both feed the same violation counter; crossing the
// threshold bans the client.
//
// The pattern scan fails open: if scanning itself panics, the request is
// admitted and the failure logged. Availability is deliberately chosen
// over strictness for this one step.
func (g *Gate) Admit(clientKey, path string, query url.Values, body []byte) Decision {
	if g.isBlocked(clientKey, time.Now()) {
		return denied(ReasonBlocked)
	}

	if d := g.limiter.Check(clientKey, time.Now()); !d.Allowed {
		g.recordViolation(clientKey)
		return denied(d.Rule)
	}

	if g.scanRequest(clientKey, path, query, body) {
		g.recordViolation(clientKey)
		return denied(ReasonMalicious)
	}

	return allowed
}

// isBlocked reports whether the client is currently banned, clearing
// bans whose duration has elapsed.
func (g *Gate) isBlocked(clientKey string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	expiry, ok := g.blocked[clientKey]
	if !ok {
		return false
	}
	if !expiry.IsZero() && now.After(expiry) {
		delete(g.blocked, clientKey)
		g.violations[clientKey] = 0
		g.logger.Info("ban expired", "client", clientKey)
		return false
	}
	return true
}

// recordViolation increments the client's counter and bans the client
// once the threshold is exceeded. The check-and-set is atomic so two
// concurrent violations cannot both observe a sub-threshold count and
// skip the ban.
func (g *Gate) recordViolation(clientKey string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.violations[clientKey]++
	if g.violations[clientKey] > g.cfg.ViolationThreshold {
		if _, already := g.blocked[clientKey]; already {
			return
		}
		var expiry time.Time
		if g.cfg.BanDuration > 0 {
			expiry = time.Now().Add(g.cfg.BanDuration)
		}
		g.blocked[clientKey] = expiry
		g.logger.Warn("client banned after repeated violations",
			"client", clientKey,
			"violations", g.violations[clientKey],
			"permanent", expiry.IsZero())
	}
}

// scanRequest reports whether any malicious pattern appears in the path,
// a query value, or the body. Recovers from internal failures and
// admits (returns false) rather than rejecting legitimate traffic.
func (g *Gate) scanRequest(clientKey, path string, query url.Values, body []byte) (match bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("pattern scan failed, admitting request",
				"client", clientKey, "panic", r)
			match = false
		}
	}()

	if pattern := scan(strings.ToLower(path)); pattern != "" {
		g.logger.Warn("malicious pattern in path",
			"client", clientKey, "pattern", pattern, "path", path)
		return true
	}

	for key, values := range query {
		for _, v := range values {
			combined := strings.ToLower(key + "=" + v)
			if pattern := scan(combined); pattern != "" {
				g.logger.Warn("malicious pattern in query",
					"client", clientKey, "pattern", pattern, "param", key)
				return true
			}
		}
	}

	if len(body) > 0 {
		if pattern := scan(strings.ToLower(string(body))); pattern != "" {
			g.logger.Warn("malicious pattern in body",
				"client", clientKey, "pattern", pattern)
			return true
		}
	}

	return false
}

func scan(s string) string {
	for _, p := range maliciousPatterns {
		if strings.Contains(s, p) {
			return p
		}
	}
	return ""
}

// Stats summarises the gate's abuse-tracking state.
type Stats struct {
	BlockedClients    int            `json:"blocked_clients"`
	SuspiciousClients int            `json:"suspicious_clients"`
	Violations        map[string]int `json:"violations"`
}

// GetStats returns a snapshot of blocked and suspicious clients for the
// admin endpoint.
func (g *Gate) GetStats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	violations := make(map[string]int, len(g.violations))
	for k, v := range g.violations {
		violations[k] = v
	}
	return Stats{
		BlockedClients:    len(g.blocked),
		SuspiciousClients: len(g.violations),
		Violations:        violations,
	}
}
