package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/khayyamnoor/simplechatbotapi/pkg/predict"
	"github.com/khayyamnoor/simplechatbotapi/pkg/ratelimit"
	"github.com/khayyamnoor/simplechatbotapi/pkg/security"
	"github.com/khayyamnoor/simplechatbotapi/pkg/session"
	"github.com/khayyamnoor/simplechatbotapi/pkg/validate"
)

func testGateway(t *testing.T, rules []ratelimit.Rule) (*Gateway, *session.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if rules == nil {
		rules = ratelimit.DefaultRules()
	}
	limiter := ratelimit.New(rules)
	gate := security.NewGate(limiter, security.DefaultConfig(), logger)
	store := session.NewStore(session.DefaultConfig(), logger)
	predictor := predict.NewDatasetPredictor([]predict.Record{
		{Disease: "flu", Symptoms: []string{"fever", "cough"}},
	}, logger)

	return New(store, gate, limiter, predictor, WithLogger(logger)), store
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestChatRoundTrip(t *testing.T) {
	g, _ := testGateway(t, nil)
	router := g.Router()

	rec := postJSON(t, router, "/chat/start", nil)
	if rec.Code != 200 {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}
	start := decode[StartChatResponse](t, rec)
	if ok, reason := validate.SessionID(start.SessionID); !ok {
		t.Fatalf("session ID %q invalid: %s", start.SessionID, reason)
	}
	if start.Message == "" {
		t.Error("expected a greeting")
	}

	rec = postJSON(t, router, "/chat/message", MessageRequest{
		SessionID: start.SessionID,
		Message:   "fever, cough",
	})
	if rec.Code != 200 {
		t.Fatalf("message status = %d, body %s", rec.Code, rec.Body)
	}
	reply := decode[MessageResponse](t, rec)
	if len(reply.Predictions) != 1 || reply.Predictions[0].Disease != "flu" {
		t.Errorf("predictions = %v, want flu", reply.Predictions)
	}
	if reply.Symptoms != "fever, cough" {
		t.Errorf("symptoms = %q", reply.Symptoms)
	}

	// Symptoms accumulate across messages.
	rec = postJSON(t, router, "/chat/message", MessageRequest{
		SessionID: start.SessionID,
		Message:   "headache",
	})
	reply = decode[MessageResponse](t, rec)
	if reply.Symptoms != "fever, cough, headache" {
		t.Errorf("cumulative symptoms = %q", reply.Symptoms)
	}

	req := httptest.NewRequest("GET", "/chat/history/"+start.SessionID, nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != 200 {
		t.Fatalf("history status = %d", rec2.Code)
	}
	history := decode[HistoryResponse](t, rec2)
	if len(history.History) != 4 {
		t.Errorf("history length = %d, want 4 turns", len(history.History))
	}

	rec = postJSON(t, router, "/chat/end/"+start.SessionID, nil)
	if rec.Code != 200 {
		t.Fatalf("end status = %d", rec.Code)
	}
	rec = postJSON(t, router, "/chat/end/"+start.SessionID, nil)
	if rec.Code != 404 {
		t.Errorf("second end status = %d, want 404", rec.Code)
	}
}

func TestSendMessageValidation(t *testing.T) {
	g, _ := testGateway(t, nil)
	router := g.Router()

	tests := []struct {
		name string
		req  MessageRequest
		want int
	}{
		{name: "bad session id", req: MessageRequest{SessionID: "x", Message: "fever"}, want: 400},
		{name: "unknown session", req: MessageRequest{SessionID: strings.Repeat("a", 20), Message: "fever"}, want: 404},
		{name: "empty message", req: MessageRequest{SessionID: strings.Repeat("a", 20), Message: ""}, want: 400},
		{name: "oversized message", req: MessageRequest{SessionID: strings.Repeat("a", 20), Message: strings.Repeat("m", 3000)}, want: 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/chat/message", tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestMaliciousBodyRejected(t *testing.T) {
	g, _ := testGateway(t, nil)
	router := g.Router()

	req := httptest.NewRequest("POST", "/chat/message",
		strings.NewReader(`{"session_id":"aaaaaaaaaaaa","message":"<script>alert(1)</script>"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != 403 {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRateLimitDenial(t *testing.T) {
	g, _ := testGateway(t, []ratelimit.Rule{
		{Name: "per_minute", Window: time.Minute, Limit: 2},
	})
	router := g.Router()

	var rec *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		rec = postJSON(t, router, "/chat/start", nil)
		if rec.Code != 200 {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if rec.Header().Get("X-RateLimit-Limit") != "2" {
		t.Errorf("X-RateLimit-Limit = %q, want 2", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec = postJSON(t, router, "/chat/start", nil)
	if rec.Code != 429 {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	errResp := decode[ErrorResponse](t, rec)
	if !strings.Contains(errResp.Error, "per_minute") {
		t.Errorf("error = %q, want violated rule name", errResp.Error)
	}
}

func TestHealthAndStatsOutsideGate(t *testing.T) {
	// Exhausted rate limit must not take down health or admin routes.
	g, store := testGateway(t, []ratelimit.Rule{
		{Name: "per_minute", Window: time.Minute, Limit: 1},
	})
	router := g.Router()

	postJSON(t, router, "/chat/start", nil)
	rec := postJSON(t, router, "/chat/start", nil)
	if rec.Code != 429 {
		t.Fatalf("expected limiter exhausted, got %d", rec.Code)
	}

	req := httptest.NewRequest("GET", "/health", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != 200 {
		t.Errorf("health status = %d, want 200", rec2.Code)
	}

	req = httptest.NewRequest("GET", "/admin/stats", nil)
	rec2 = httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != 200 {
		t.Fatalf("admin stats status = %d", rec2.Code)
	}
	stats := decode[AdminStatsResponse](t, rec2)
	if stats.ActiveSessions != store.Count() {
		t.Errorf("active_sessions = %d, want %d", stats.ActiveSessions, store.Count())
	}
	if len(stats.RateRules) != 1 || stats.RateRules[0].Name != "per_minute" {
		t.Errorf("rate rules = %v", stats.RateRules)
	}
}

func TestSecurityHeadersSet(t *testing.T) {
	g, _ := testGateway(t, nil)
	router := g.Router()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
}

func TestPredictEndpoint(t *testing.T) {
	g, _ := testGateway(t, nil)
	router := g.Router()

	rec := postJSON(t, router, "/predict", PredictRequest{Symptoms: "fever, cough"})
	if rec.Code != 200 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	resp := decode[PredictResponse](t, rec)
	if len(resp.Predictions) != 1 || resp.Predictions[0].Disease != "flu" {
		t.Errorf("predictions = %v", resp.Predictions)
	}
	if resp.Recommendation == "" {
		t.Error("expected a recommendation")
	}

	rec = postJSON(t, router, "/predict", PredictRequest{Symptoms: "severe chest pain"})
	resp = decode[PredictResponse](t, rec)
	if !resp.IsEmergency {
		t.Error("expected emergency flag")
	}

	rec = postJSON(t, router, "/predict", PredictRequest{Symptoms: ";;;"})
	if rec.Code != 400 {
		t.Errorf("status = %d, want 400 for empty symptoms", rec.Code)
	}
}

func TestGlobalLimiterShedsLoad(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := ratelimit.New(ratelimit.DefaultRules())
	gate := security.NewGate(limiter, security.DefaultConfig(), logger)
	store := session.NewStore(session.DefaultConfig(), logger)
	predictor := predict.NewDatasetPredictor(nil, logger)

	g := New(store, gate, limiter, predictor,
		WithLogger(logger),
		WithGlobalLimiter(ratelimit.NewGlobal(1, 1)))
	router := g.Router()

	rec := postJSON(t, router, "/chat/start", nil)
	if rec.Code != 200 {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec = postJSON(t, router, "/chat/start", nil)
	if rec.Code != 429 {
		t.Errorf("second request status = %d, want 429 from global budget", rec.Code)
	}
}
