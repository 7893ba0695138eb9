package predict

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// chatCompleter is the slice of the OpenAI client the predictor needs;
// narrowed for testability.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ModelPredictor asks a chat-completion model to rank candidate
// diseases. It backs up the dataset predictor for symptom sets the
// dataset does not cover.
type ModelPredictor struct {
	client chatCompleter
	model  string
	topN   int
	logger *slog.Logger
}

const modelSystemPrompt = "You are a medical triage assistant. Given a comma-separated " +
	"list of symptoms, reply with up to %d likely conditions, one per line, most likely " +
	"first, in the exact format: Disease: <name>. No other text."

// NewModelPredictor creates a predictor over an OpenAI-compatible API.
// An empty model defaults to gpt-4o-mini; topN <= 0 defaults to 3.
func NewModelPredictor(client *openai.Client, model string, topN int, logger *slog.Logger) *ModelPredictor {
	return newModelPredictor(client, model, topN, logger)
}

func newModelPredictor(client chatCompleter, model string, topN int, logger *slog.Logger) *ModelPredictor {
	if model == "" {
		model = openai.GPT4oMini
	}
	if topN <= 0 {
		topN = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelPredictor{client: client, model: model, topN: topN, logger: logger}
}

// Predict asks the model for candidates and assigns positional
// confidence: the first suggestion scores 1.0, each following one a
// tenth less, floored at 0.1.
func (p *ModelPredictor) Predict(ctx context.Context, symptoms string) ([]Prediction, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.7,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(modelSystemPrompt, p.topN)},
			{Role: openai.ChatMessageRoleUser, Content: "Symptoms: " + symptoms},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("model prediction: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model prediction: empty response")
	}

	predictions := parseModelOutput(resp.Choices[0].Message.Content, p.topN)
	if len(predictions) == 0 {
		p.logger.Warn("model returned no parseable predictions",
			"model", p.model, "symptoms", symptoms)
	}
	return predictions, nil
}

// parseModelOutput extracts "Disease: <name>" lines, deduplicating
// case-insensitively and keeping first-seen order.
func parseModelOutput(content string, topN int) []Prediction {
	var predictions []Prediction
	seen := make(map[string]bool)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "Disease:"); ok {
			line = after
		}
		line = strings.TrimSpace(strings.Trim(line, "-*0123456789. "))
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true

		confidence := 1.0 - float64(len(predictions))*0.1
		if confidence < 0.1 {
			confidence = 0.1
		}
		predictions = append(predictions, Prediction{
			Disease:    line,
			Confidence: confidence,
			Source:     SourceModel,
		})
		if len(predictions) == topN {
			break
		}
	}
	return predictions
}

// Recommend mirrors the dataset predictor's tiered guidance.
func (p *ModelPredictor) Recommend(predictions []Prediction, symptoms string) string {
	return recommend(predictions, symptoms)
}

// IsEmergency checks the fixed urgent-care indicator list.
func (p *ModelPredictor) IsEmergency(symptoms string) bool {
	return isEmergency(symptoms)
}
