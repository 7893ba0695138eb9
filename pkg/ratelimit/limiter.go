// Package ratelimit provides per-client sliding-window rate limiting.
// Three windows of increasing size are evaluated against a single
// timestamp sequence per client, so one burst counts against every rule.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rule bounds the number of requests allowed within a trailing window.
type Rule struct {
	// Name identifies the rule in denials and stats (e.g. "per_minute").
	Name string
	// Window is the length of the trailing interval.
	Window time.Duration
	// Limit is the maximum number of admitted requests within Window.
	Limit int
}

// DefaultRules returns the standard three-window rule set, ordered
// shortest window first. Evaluation order matters: the first violated
// rule names the denial.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "per_minute", Window: time.Minute, Limit: 30},
		{Name: "per_hour", Window: time.Hour, Limit: 500},
		{Name: "per_day", Window: 24 * time.Hour, Limit: 2000},
	}
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed bool
	// Rule is the name of the violated rule when Allowed is false.
	Rule string
	// Limit is the violated rule's limit when Allowed is false.
	Limit int
}

// RuleStats reports a client's standing against one rule.
type RuleStats struct {
	Count     int `json:"count"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// Limiter tracks admitted request timestamps per client key.
// Limiter is safe for concurrent use; the prune-compare-append sequence
// is atomic per client, so two concurrent requests from the same client
// can never both slip into an already-full window.
type Limiter struct {
	rules     []Rule
	maxWindow time.Duration

	mu      sync.Mutex
	clients map[string][]time.Time
}

// New creates a limiter with the given rules. Rules must be ordered
// shortest window first; passing nil installs DefaultRules.
func New(rules []Rule) *Limiter {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	var maxWindow time.Duration
	for _, r := range rules {
		if r.Window > maxWindow {
			maxWindow = r.Window
		}
	}
	return &Limiter{
		rules:     rules,
		maxWindow: maxWindow,
		clients:   make(map[string][]time.Time),
	}
}

// Check evaluates every rule for the client at the given instant. If all
// rules pass, now is recorded and the request is allowed. On denial the
// timestamp is not recorded: only admitted requests count, so a denied
// client retrying inside the window stays denied until the window slides.
func (l *Limiter) Check(clientKey string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	times := l.prune(clientKey, now)

	for _, r := range l.rules {
		cutoff := now.Add(-r.Window)
		count := 0
		for i := len(times) - 1; i >= 0; i-- {
			if !times[i].After(cutoff) {
				break
			}
			count++
		}
		if count >= r.Limit {
			return Decision{Allowed: false, Rule: r.Name, Limit: r.Limit}
		}
	}

	l.clients[clientKey] = append(times, now)
	return Decision{Allowed: true}
}

// Stats returns per-rule counts for the client without mutating state.
// Used for X-RateLimit response headers and the admin endpoint.
func (l *Limiter) Stats(clientKey string, now time.Time) map[string]RuleStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	times := l.clients[clientKey]
	stats := make(map[string]RuleStats, len(l.rules))
	for _, r := range l.rules {
		cutoff := now.Add(-r.Window)
		count := 0
		for _, t := range times {
			if t.After(cutoff) {
				count++
			}
		}
		remaining := r.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		stats[r.Name] = RuleStats{Count: count, Limit: r.Limit, Remaining: remaining}
	}
	return stats
}

// Rules returns the configured rules in evaluation order.
func (l *Limiter) Rules() []Rule {
	return l.rules
}

// prune drops timestamps older than the largest window. The sequence is
// oldest-first, so a single scan from the front suffices. Must be called
// with l.mu held.
func (l *Limiter) prune(clientKey string, now time.Time) []time.Time {
	times := l.clients[clientKey]
	cutoff := now.Add(-l.maxWindow)
	start := 0
	for start < len(times) && !times[start].After(cutoff) {
		start++
	}
	if start > 0 {
		times = times[start:]
		if len(times) == 0 {
			delete(l.clients, clientKey)
			return nil
		}
		l.clients[clientKey] = times
	}
	return times
}

// GlobalLimiter is a process-wide token bucket applied before any
// per-client accounting. It shields the service from aggregate load
// that no single client is responsible for.
type GlobalLimiter struct {
	limiter *rate.Limiter
}

// NewGlobal creates a global limiter admitting requestsPerSecond with
// the given burst.
func NewGlobal(requestsPerSecond float64, burst int) *GlobalLimiter {
	return &GlobalLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Allow reports whether a request may proceed right now.
func (g *GlobalLimiter) Allow() bool {
	return g.limiter.Allow()
}
