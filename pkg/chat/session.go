// Package chat implements the per-conversation state machine: a turn
// history plus the running transcript of symptoms the user has reported
// so far. Predictions are recomputed from the full cumulative symptom
// set on every turn rather than incrementally.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/khayyamnoor/simplechatbotapi/pkg/predict"
)

// Turn roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// ErrorReply is the bot turn appended when the predictor fails. History
// stays well-formed so the conversation can continue.
const ErrorReply = "I'm sorry, I encountered an error processing your message. " +
	"Please try again or consult a healthcare provider."

// Turn is one entry in the conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the result of processing one user message.
type Reply struct {
	Response    string               `json:"response"`
	Predictions []predict.Prediction `json:"predictions"`
	// Symptoms is the full cumulative comma-joined symptom transcript.
	Symptoms    string `json:"symptoms"`
	IsEmergency bool   `json:"is_emergency"`
	// Err carries the predictor failure, if any. The reply is still
	// usable: Response holds the apology and Predictions is empty.
	Err error `json:"-"`
}

// Session holds one conversation's history and accumulated symptoms.
// Session is safe for concurrent use, though the gateway serialises
// requests per session in practice.
type Session struct {
	id        string
	predictor predict.Predictor
	logger    *slog.Logger

	mu       sync.Mutex
	history  []Turn
	symptoms []string
}

// NewSession creates an empty session bound to a predictor.
func NewSession(id string, predictor predict.Predictor, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:        id,
		predictor: predictor,
		logger:    logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// ProcessMessage appends the user turn, folds any comma-separated
// symptom tokens in the message into the running transcript, and asks
// the predictor about the full cumulative symptom set.
//
// A predictor failure does not corrupt the session: a fixed apology is
// appended as the bot turn and the reply carries empty predictions with
// the error attached.
func (s *Session) ProcessMessage(ctx context.Context, message string) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, Turn{Role: RoleUser, Content: message})

	for _, tok := range strings.Split(message, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			s.symptoms = append(s.symptoms, tok)
		}
	}
	allSymptoms := strings.Join(s.symptoms, ", ")

	predictions, err := s.predictor.Predict(ctx, allSymptoms)
	if err != nil {
		s.logger.Error("prediction failed", "session_id", s.id, "error", err)
		s.history = append(s.history, Turn{Role: RoleBot, Content: ErrorReply})
		return Reply{
			Response:    ErrorReply,
			Predictions: []predict.Prediction{},
			Symptoms:    allSymptoms,
			Err:         err,
		}
	}

	recommendation := s.predictor.Recommend(predictions, allSymptoms)
	s.history = append(s.history, Turn{Role: RoleBot, Content: recommendation})

	return Reply{
		Response:    recommendation,
		Predictions: predictions,
		Symptoms:    allSymptoms,
		IsEmergency: s.predictor.IsEmergency(allSymptoms),
	}
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Symptoms returns the cumulative comma-joined symptom transcript.
func (s *Session) Symptoms() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.Join(s.symptoms, ", ")
}

// Clear resets the session to its initial empty state: no history, no
// accumulated symptoms.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
	s.symptoms = nil
}
