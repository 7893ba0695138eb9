package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the service. Construct
// one with NewMetrics and share it; instruments register against the
// given registry, not a process-wide default.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Security metrics
	requestsDeniedTotal *prometheus.CounterVec
	bannedClients       prometheus.Gauge

	// Session metrics
	activeSessions        prometheus.Gauge
	sessionEvictionsTotal prometheus.Counter
	sessionsCreatedTotal  prometheus.Counter

	// Predictor metrics
	predictionsTotal   *prometheus.CounterVec
	predictionDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the service instruments.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptomd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symptomd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		requestsDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptomd_requests_denied_total",
				Help: "Total number of requests denied by the security gate",
			},
			[]string{"reason"},
		),
		bannedClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "symptomd_banned_clients",
				Help: "Number of currently banned clients",
			},
		),

		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "symptomd_active_sessions",
				Help: "Number of active chat sessions",
			},
		),
		sessionEvictionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "symptomd_session_evictions_total",
				Help: "Total number of sessions evicted for inactivity",
			},
		),
		sessionsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "symptomd_sessions_created_total",
				Help: "Total number of chat sessions created",
			},
		),

		predictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "symptomd_predictions_total",
				Help: "Total number of disease predictions",
			},
			[]string{"source", "status"},
		),
		predictionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "symptomd_prediction_duration_seconds",
				Help:    "Disease prediction duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
	}

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.requestsDeniedTotal,
		m.bannedClients,
		m.activeSessions,
		m.sessionEvictionsTotal,
		m.sessionsCreatedTotal,
		m.predictionsTotal,
		m.predictionDuration,
	)
	return m
}

// Handler returns an HTTP handler for Prometheus metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDenial records a security gate denial by reason
func (m *Metrics) RecordDenial(reason string) {
	m.requestsDeniedTotal.WithLabelValues(reason).Inc()
}

// SetBannedClients sets the banned clients gauge
func (m *Metrics) SetBannedClients(count int) {
	m.bannedClients.Set(float64(count))
}

// SetActiveSessions sets the active sessions gauge
func (m *Metrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// RecordSessionCreated records a new chat session
func (m *Metrics) RecordSessionCreated() {
	m.sessionsCreatedTotal.Inc()
}

// RecordSessionEvicted records a session evicted for inactivity
func (m *Metrics) RecordSessionEvicted() {
	m.sessionEvictionsTotal.Inc()
}

// RecordPrediction records prediction metrics
func (m *Metrics) RecordPrediction(source, status string, duration time.Duration) {
	m.predictionsTotal.WithLabelValues(source, status).Inc()
	m.predictionDuration.WithLabelValues(source).Observe(duration.Seconds())
}
