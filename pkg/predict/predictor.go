// Package predict ranks candidate diseases for a set of reported
// symptoms. The primary implementation matches directly against a
// curated dataset; an LLM-backed fallback handles symptoms the dataset
// does not cover.
package predict

import "context"

// Prediction sources.
const (
	SourceDataset = "dataset"
	SourceModel   = "model"
	SourceError   = "error"
)

// Prediction is one ranked disease candidate.
type Prediction struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Predictor produces ranked disease predictions. Implementations must
// be safe for concurrent use. Predict returns candidates best-first.
type Predictor interface {
	Predict(ctx context.Context, symptoms string) ([]Prediction, error)
	Recommend(predictions []Prediction, symptoms string) string
	IsEmergency(symptoms string) bool
}
