package predict

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func testDataset() *DatasetPredictor {
	return NewDatasetPredictor([]Record{
		{Disease: "flu", Symptoms: []string{"fever", "cough", "body ache"}},
		{Disease: "common cold", Symptoms: []string{"runny nose", "sneezing", "cough"}},
		{Disease: "migraine", Symptoms: []string{"severe headache", "nausea"}},
	}, nil)
}

func TestDatasetPredictExactMatch(t *testing.T) {
	p := testDataset()

	predictions, err := p.Predict(context.Background(), "fever, cough")
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(predictions) != 1 {
		t.Fatalf("got %d predictions, want 1: %v", len(predictions), predictions)
	}
	if predictions[0].Disease != "flu" {
		t.Errorf("Disease = %q, want flu", predictions[0].Disease)
	}
	if predictions[0].Source != SourceDataset {
		t.Errorf("Source = %q, want %q", predictions[0].Source, SourceDataset)
	}
	// 2 of flu's 3 symptoms matched.
	if got := predictions[0].Confidence; got < 0.66 || got > 0.67 {
		t.Errorf("Confidence = %v, want 2/3", got)
	}
}

func TestDatasetPredictRequiresAllInputSymptoms(t *testing.T) {
	p := testDataset()

	// "cough" appears in flu and cold, but "fever" only in flu: cold
	// must not match a set containing both.
	predictions, _ := p.Predict(context.Background(), "cough, fever")
	for _, pred := range predictions {
		if pred.Disease == "common cold" {
			t.Error("common cold should not match, it lacks fever")
		}
	}

	// No disease has all of these.
	predictions, _ = p.Predict(context.Background(), "fever, sneezing")
	if len(predictions) != 0 {
		t.Errorf("got %v, want none", predictions)
	}
}

func TestDatasetPredictSubstringMatch(t *testing.T) {
	p := testDataset()

	// "headache" is a substring of "severe headache".
	predictions, _ := p.Predict(context.Background(), "headache")
	if len(predictions) != 1 || predictions[0].Disease != "migraine" {
		t.Errorf("got %v, want migraine", predictions)
	}
}

func TestDatasetPredictRankedBestFirst(t *testing.T) {
	p := testDataset()

	predictions, _ := p.Predict(context.Background(), "cough")
	if len(predictions) != 2 {
		t.Fatalf("got %d predictions, want 2", len(predictions))
	}
	if predictions[0].Confidence < predictions[1].Confidence {
		t.Errorf("predictions not sorted best-first: %v", predictions)
	}
}

func TestDatasetPredictEmptyInput(t *testing.T) {
	p := testDataset()
	predictions, err := p.Predict(context.Background(), "  ,, ")
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(predictions) != 0 {
		t.Errorf("got %v, want none", predictions)
	}
}

func TestFallbackDatasetInstalledWhenEmpty(t *testing.T) {
	p := NewDatasetPredictor(nil, nil)
	if p.Records() == 0 {
		t.Fatal("fallback dataset should be installed")
	}
	predictions, _ := p.Predict(context.Background(), "fever, cough")
	if len(predictions) != 1 || predictions[0].Disease != "flu" {
		t.Errorf("got %v, want flu from fallback dataset", predictions)
	}
}

func TestParseDatasetCSV(t *testing.T) {
	csvData := "disease,symptoms\n" +
		"flu,\"fever, cough, body ache\"\n" +
		"cold,\"runny nose, sneezing\"\n" +
		",\"orphan symptoms\"\n"

	records, err := parseDataset(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("parseDataset() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Disease != "flu" {
		t.Errorf("Disease = %q, want flu", records[0].Disease)
	}
	if len(records[0].Symptoms) != 3 || records[0].Symptoms[2] != "body ache" {
		t.Errorf("Symptoms = %v", records[0].Symptoms)
	}
}

func TestIsEmergency(t *testing.T) {
	p := testDataset()

	tests := []struct {
		symptoms string
		want     bool
	}{
		{symptoms: "fever, severe chest pain", want: true},
		{symptoms: "Difficulty Breathing", want: true},
		{symptoms: "mild cough", want: false},
		{symptoms: "", want: false},
	}
	for _, tt := range tests {
		if got := p.IsEmergency(tt.symptoms); got != tt.want {
			t.Errorf("IsEmergency(%q) = %v, want %v", tt.symptoms, got, tt.want)
		}
	}
}

func TestRecommendTiers(t *testing.T) {
	p := testDataset()

	tests := []struct {
		name        string
		predictions []Prediction
		symptoms    string
		contains    string
	}{
		{name: "emergency overrides", predictions: []Prediction{{Disease: "flu", Confidence: 0.9}},
			symptoms: "severe bleeding", contains: "EMERGENCY"},
		{name: "no predictions", predictions: nil, symptoms: "tired", contains: "more specific symptoms"},
		{name: "low confidence", predictions: []Prediction{{Disease: "flu", Confidence: 0.2}},
			symptoms: "tired", contains: "more specific symptoms"},
		{name: "high confidence", predictions: []Prediction{{Disease: "flu", Confidence: 0.9}},
			symptoms: "fever", contains: "could be flu"},
		{name: "medium confidence", predictions: []Prediction{{Disease: "flu", Confidence: 0.6}},
			symptoms: "fever", contains: "might suggest flu"},
		{name: "weak match", predictions: []Prediction{{Disease: "flu", Confidence: 0.4}},
			symptoms: "fever", contains: "not very confident"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Recommend(tt.predictions, tt.symptoms)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("Recommend() = %q, want substring %q", got, tt.contains)
			}
		})
	}
}

func TestParseModelOutput(t *testing.T) {
	content := "Disease: Influenza\nDisease: Pneumonia\ninfluenza\nDisease: Bronchitis\nDisease: Asthma"
	predictions := parseModelOutput(content, 3)

	if len(predictions) != 3 {
		t.Fatalf("got %d predictions, want 3 (topN cap)", len(predictions))
	}
	if predictions[0].Disease != "Influenza" || predictions[0].Confidence != 1.0 {
		t.Errorf("first = %+v", predictions[0])
	}
	if predictions[1].Confidence != 0.9 {
		t.Errorf("second confidence = %v, want 0.9", predictions[1].Confidence)
	}
	for _, p := range predictions {
		if p.Source != SourceModel {
			t.Errorf("Source = %q, want %q", p.Source, SourceModel)
		}
	}
}

// stub predictors for the chain.
type fixedPredictor struct {
	predictions []Prediction
	err         error
	calls       int
}

func (f *fixedPredictor) Predict(context.Context, string) ([]Prediction, error) {
	f.calls++
	return f.predictions, f.err
}
func (f *fixedPredictor) Recommend([]Prediction, string) string { return "" }
func (f *fixedPredictor) IsEmergency(string) bool               { return false }

func TestChainPrefersPrimary(t *testing.T) {
	primary := &fixedPredictor{predictions: []Prediction{{Disease: "flu", Source: SourceDataset}}}
	fallback := &fixedPredictor{predictions: []Prediction{{Disease: "other", Source: SourceModel}}}
	chain := NewChainPredictor(primary, fallback, nil)

	predictions, err := chain.Predict(context.Background(), "fever")
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if predictions[0].Disease != "flu" {
		t.Errorf("got %v, want primary result", predictions)
	}
	if fallback.calls != 0 {
		t.Error("fallback should not be consulted when primary matches")
	}
}

func TestChainFallsBackOnEmptyPrimary(t *testing.T) {
	primary := &fixedPredictor{}
	fallback := &fixedPredictor{predictions: []Prediction{{Disease: "rare", Source: SourceModel}}}
	chain := NewChainPredictor(primary, fallback, nil)

	predictions, err := chain.Predict(context.Background(), "odd symptom")
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(predictions) != 1 || predictions[0].Disease != "rare" {
		t.Errorf("got %v, want fallback result", predictions)
	}
}

func TestChainSwallowsFallbackError(t *testing.T) {
	primary := &fixedPredictor{}
	fallback := &fixedPredictor{err: errors.New("api down")}
	chain := NewChainPredictor(primary, fallback, nil)

	predictions, err := chain.Predict(context.Background(), "odd symptom")
	if err != nil {
		t.Fatalf("fallback failure should degrade, got error %v", err)
	}
	if len(predictions) != 0 {
		t.Errorf("got %v, want none", predictions)
	}
}

func TestChainPropagatesPrimaryError(t *testing.T) {
	primary := &fixedPredictor{err: errors.New("broken")}
	chain := NewChainPredictor(primary, nil, nil)

	if _, err := chain.Predict(context.Background(), "fever"); err == nil {
		t.Fatal("primary failure should propagate")
	}
}
