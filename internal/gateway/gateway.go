// Package gateway exposes the symptom-checker over HTTP: chat session
// lifecycle, direct prediction, health, metrics, and admin stats. Every
// conversational route passes the security gate before reaching a
// handler.
package gateway

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/khayyamnoor/simplechatbotapi/internal/observability"
	obs "github.com/khayyamnoor/simplechatbotapi/pkg/observability"
	"github.com/khayyamnoor/simplechatbotapi/pkg/predict"
	"github.com/khayyamnoor/simplechatbotapi/pkg/ratelimit"
	"github.com/khayyamnoor/simplechatbotapi/pkg/security"
	"github.com/khayyamnoor/simplechatbotapi/pkg/session"
)

// Gateway holds the dependencies needed by the REST handlers.
type Gateway struct {
	store     *session.Store
	gate      *security.Gate
	limiter   *ratelimit.Limiter
	global    *ratelimit.GlobalLimiter
	predictor predict.Predictor
	metrics   *obs.Metrics
	health    *obs.HealthChecker
	tracing   *observability.Tracing
	logger    *slog.Logger
}

// Option configures the Gateway instance.
type Option func(*Gateway)

// WithLogger sets the structured logger. If not set, a default JSON
// logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithMetrics attaches Prometheus instruments and mounts /metrics.
func WithMetrics(m *obs.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithGlobalLimiter adds an all-clients request budget ahead of the
// per-client gate.
func WithGlobalLimiter(global *ratelimit.GlobalLimiter) Option {
	return func(g *Gateway) { g.global = global }
}

// WithTracing attaches an OpenTelemetry tracer for message processing
// spans.
func WithTracing(t *observability.Tracing) Option {
	return func(g *Gateway) { g.tracing = t }
}

// WithHealthChecker sets the health checker backing /health.
func WithHealthChecker(hc *obs.HealthChecker) Option {
	return func(g *Gateway) { g.health = hc }
}

// New creates a gateway over the given store, gate, and predictor.
// The limiter must be the same one the gate consults, so the rate
// headers reflect what the gate decided on.
func New(store *session.Store, gate *security.Gate, limiter *ratelimit.Limiter, predictor predict.Predictor, opts ...Option) *Gateway {
	g := &Gateway{
		store:     store,
		gate:      gate,
		limiter:   limiter,
		predictor: predictor,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if g.health == nil {
		g.health = obs.NewHealthChecker("dev")
		g.health.RegisterCheck(obs.PingCheck())
	}
	if g.metrics != nil {
		store.SetEvictHook(func(sessionID string) {
			g.metrics.RecordSessionEvicted()
			g.metrics.SetActiveSessions(store.Count())
		})
	}
	return g
}

// Router returns a chi.Router with all routes mounted.
func (g *Gateway) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(g.RequestLogger)
	r.Use(SecurityHeaders)

	r.Get("/health", g.health.Handler())
	r.Get("/health/live", obs.LivenessHandler())
	r.Get("/health/ready", g.health.ReadinessHandler())
	if g.metrics != nil {
		r.Handle("/metrics", g.metrics.Handler())
	}
	r.Get("/admin/stats", g.AdminStats)

	r.Group(func(r chi.Router) {
		r.Use(g.Admission)
		r.Post("/chat/start", g.StartChat)
		r.Post("/chat/message", g.SendMessage)
		r.Get("/chat/history/{sessionID}", g.GetHistory)
		r.Post("/chat/end/{sessionID}", g.EndChat)
		r.Post("/predict", g.Predict)
	})

	return r
}
