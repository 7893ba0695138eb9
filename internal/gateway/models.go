package gateway

import (
	"github.com/khayyamnoor/simplechatbotapi/pkg/chat"
	"github.com/khayyamnoor/simplechatbotapi/pkg/predict"
	"github.com/khayyamnoor/simplechatbotapi/pkg/security"
	"github.com/khayyamnoor/simplechatbotapi/pkg/session"
)

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StartChatResponse is returned by POST /chat/start.
type StartChatResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// MessageRequest is the body of POST /chat/message.
type MessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// MessageResponse is returned by POST /chat/message.
type MessageResponse struct {
	SessionID   string               `json:"session_id"`
	Response    string               `json:"response"`
	Predictions []predict.Prediction `json:"predictions"`
	Symptoms    string               `json:"symptoms"`
	IsEmergency bool                 `json:"is_emergency"`
}

// HistoryResponse is returned by GET /chat/history/{sessionID}.
type HistoryResponse struct {
	SessionID string       `json:"session_id"`
	History   []chat.Turn  `json:"history"`
	Symptoms  string       `json:"symptoms"`
	Info      session.Info `json:"info"`
}

// EndChatResponse is returned by POST /chat/end/{sessionID}.
type EndChatResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Symptoms string `json:"symptoms"`
}

// PredictResponse is returned by POST /predict.
type PredictResponse struct {
	Predictions    []predict.Prediction `json:"predictions"`
	Recommendation string               `json:"recommendation"`
	IsEmergency    bool                 `json:"is_emergency"`
}

// AdminStatsResponse is returned by GET /admin/stats.
type AdminStatsResponse struct {
	ActiveSessions int                `json:"active_sessions"`
	Security       security.Stats     `json:"security"`
	RateRules      []RateRuleResponse `json:"rate_rules"`
}

// RateRuleResponse describes one configured rate-limit rule.
type RateRuleResponse struct {
	Name          string `json:"name"`
	WindowSeconds int    `json:"window_seconds"`
	Limit         int    `json:"limit"`
}
