package predict

import (
	"context"
	"log/slog"
)

// ChainPredictor tries the dataset first and falls back to the model
// only when the dataset has no direct match. A fallback failure is not
// fatal when the intent is graceful degradation, so the chain returns
// whatever the dataset produced (possibly nothing) if the fallback
// errors and the primary did not.
type ChainPredictor struct {
	primary  Predictor
	fallback Predictor
	logger   *slog.Logger
}

// NewChainPredictor composes primary and fallback. fallback may be nil,
// in which case the chain is just the primary.
func NewChainPredictor(primary, fallback Predictor, logger *slog.Logger) *ChainPredictor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainPredictor{primary: primary, fallback: fallback, logger: logger}
}

// Predict returns the primary's candidates, consulting the fallback
// only on an empty result.
func (p *ChainPredictor) Predict(ctx context.Context, symptoms string) ([]Prediction, error) {
	predictions, err := p.primary.Predict(ctx, symptoms)
	if err != nil {
		return nil, err
	}
	if len(predictions) > 0 || p.fallback == nil {
		return predictions, nil
	}

	fbPredictions, err := p.fallback.Predict(ctx, symptoms)
	if err != nil {
		p.logger.Warn("fallback predictor failed", "error", err)
		return predictions, nil
	}
	return fbPredictions, nil
}

// Recommend delegates to the shared tiered guidance.
func (p *ChainPredictor) Recommend(predictions []Prediction, symptoms string) string {
	return recommend(predictions, symptoms)
}

// IsEmergency checks the fixed urgent-care indicator list.
func (p *ChainPredictor) IsEmergency(symptoms string) bool {
	return isEmergency(symptoms)
}
