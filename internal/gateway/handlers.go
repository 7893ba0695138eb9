package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/khayyamnoor/simplechatbotapi/pkg/chat"
	"github.com/khayyamnoor/simplechatbotapi/pkg/validate"
)

const greeting = "Hello! I'm your symptom checker assistant. " +
	"Describe your symptoms, separated by commas, and I'll suggest possible conditions. " +
	"This is not a medical diagnosis."

// StartChat creates a new chat session and returns its ID.
func (g *Gateway) StartChat(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.NewString()
	sess := chat.NewSession(sessionID, g.predictor, g.logger)

	if !g.store.Create(sessionID, sess) {
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	if g.metrics != nil {
		g.metrics.RecordSessionCreated()
		g.metrics.SetActiveSessions(g.store.Count())
	}
	g.logger.Info("session started", "session_id", sessionID)

	writeJSON(w, http.StatusOK, StartChatResponse{
		SessionID: sessionID,
		Message:   greeting,
	})
}

// SendMessage processes one user message within an existing session.
// A predictor failure still answers 200: the reply carries the apology
// and no predictions.
func (g *Gateway) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if ok, reason := validate.SessionID(req.SessionID); !ok {
		writeError(w, http.StatusBadRequest, reason)
		return
	}
	ok, cleaned, reason := validate.Message(req.Message)
	if !ok {
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	sess, found := g.store.Get(req.SessionID)
	if !found {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	ctx, span := g.tracing.StartSpan(r.Context(), "chat.process",
		attribute.String("session_id", req.SessionID))
	start := time.Now()
	reply := sess.ProcessMessage(ctx, cleaned)
	span.End()

	if g.metrics != nil {
		source := "none"
		status := "ok"
		if len(reply.Predictions) > 0 {
			source = reply.Predictions[0].Source
		}
		if reply.Err != nil {
			status = "error"
		}
		g.metrics.RecordPrediction(source, status, time.Since(start))
	}
	if reply.Err != nil {
		g.logger.Error("prediction failed", "session_id", req.SessionID, "error", reply.Err)
	}

	writeJSON(w, http.StatusOK, MessageResponse{
		SessionID:   req.SessionID,
		Response:    validate.SanitizeOutput(reply.Response),
		Predictions: reply.Predictions,
		Symptoms:    reply.Symptoms,
		IsEmergency: reply.IsEmergency,
	})
}

// GetHistory returns the conversation transcript for a session.
func (g *Gateway) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if ok, reason := validate.SessionID(sessionID); !ok {
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	sess, found := g.store.Get(sessionID)
	if !found {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	info, _ := g.store.GetInfo(sessionID)

	writeJSON(w, http.StatusOK, HistoryResponse{
		SessionID: sessionID,
		History:   sess.History(),
		Symptoms:  sess.Symptoms(),
		Info:      info,
	})
}

// EndChat deletes a session.
func (g *Gateway) EndChat(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if ok, reason := validate.SessionID(sessionID); !ok {
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	if !g.store.Delete(sessionID) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if g.metrics != nil {
		g.metrics.SetActiveSessions(g.store.Count())
	}
	g.logger.Info("session ended", "session_id", sessionID)

	writeJSON(w, http.StatusOK, EndChatResponse{
		SessionID: sessionID,
		Status:    "ended",
	})
}

// Predict runs a one-shot prediction outside any session. Predictor
// failure degrades the same way chat does: empty predictions and
// guidance asking for more detail.
func (g *Gateway) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ok, cleaned, reason := validate.Symptoms(req.Symptoms)
	if !ok {
		writeError(w, http.StatusBadRequest, reason)
		return
	}

	ctx, span := g.tracing.StartSpan(r.Context(), "predict",
		attribute.String("symptoms", cleaned))
	start := time.Now()
	predictions, err := g.predictor.Predict(ctx, cleaned)
	span.End()

	if g.metrics != nil {
		source := "none"
		status := "ok"
		if len(predictions) > 0 {
			source = predictions[0].Source
		}
		if err != nil {
			status = "error"
		}
		g.metrics.RecordPrediction(source, status, time.Since(start))
	}
	if err != nil {
		g.logger.Error("prediction failed", "error", err)
		predictions = nil
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		Predictions:    predictions,
		Recommendation: validate.SanitizeOutput(g.predictor.Recommend(predictions, cleaned)),
		IsEmergency:    g.predictor.IsEmergency(cleaned),
	})
}

// AdminStats reports session and security gate counters.
func (g *Gateway) AdminStats(w http.ResponseWriter, r *http.Request) {
	rules := g.limiter.Rules()
	ruleResponses := make([]RateRuleResponse, 0, len(rules))
	for _, rule := range rules {
		ruleResponses = append(ruleResponses, RateRuleResponse{
			Name:          rule.Name,
			WindowSeconds: int(rule.Window.Seconds()),
			Limit:         rule.Limit,
		})
	}

	writeJSON(w, http.StatusOK, AdminStatsResponse{
		ActiveSessions: g.store.Count(),
		Security:       g.gate.GetStats(),
		RateRules:      ruleResponses,
	})
}
