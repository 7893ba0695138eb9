package predict

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// emergencySymptoms are substrings that flag a symptom set as an
// urgent-care case regardless of any prediction.
var emergencySymptoms = []string{
	"severe chest pain",
	"difficulty breathing",
	"unconscious",
	"severe bleeding",
	"stroke symptoms",
	"heart attack symptoms",
	"severe headache",
	"loss of consciousness",
	"severe abdominal pain",
}

// Record pairs a disease with its known symptom list.
type Record struct {
	Disease  string
	Symptoms []string
}

// DatasetPredictor matches reported symptoms directly against a
// disease/symptom dataset. Read-only after construction, so safe for
// concurrent use.
type DatasetPredictor struct {
	records []Record
	logger  *slog.Logger
}

// fallbackRecords keep the service answering when no dataset file is
// available.
var fallbackRecords = []Record{
	{Disease: "flu", Symptoms: []string{"fever", "cough"}},
	{Disease: "cold", Symptoms: []string{"runny nose", "sneezing"}},
	{Disease: "headache", Symptoms: []string{"head pain", "nausea"}},
}

// NewDatasetPredictor builds a predictor over the given records.
// Empty input installs the minimal fallback dataset.
func NewDatasetPredictor(records []Record, logger *slog.Logger) *DatasetPredictor {
	if logger == nil {
		logger = slog.Default()
	}
	if len(records) == 0 {
		logger.Warn("no dataset records provided, using fallback dataset")
		records = fallbackRecords
	}
	return &DatasetPredictor{records: records, logger: logger}
}

// LoadDatasetCSV reads disease records from a CSV file with a
// "disease,symptoms" header, symptoms being a comma-joined list inside
// one quoted field.
func LoadDatasetCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return parseDataset(f)
}

func parseDataset(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}

	var records []Record
	for i, row := range rows {
		if i == 0 && strings.EqualFold(row[0], "disease") {
			continue // header
		}
		var symptoms []string
		for _, s := range strings.Split(row[1], ",") {
			if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
				symptoms = append(symptoms, s)
			}
		}
		if row[0] == "" || len(symptoms) == 0 {
			continue
		}
		records = append(records, Record{
			Disease:  strings.TrimSpace(row[0]),
			Symptoms: symptoms,
		})
	}
	return records, nil
}

// Predict returns diseases whose symptom lists cover every reported
// symptom, best-first. A disease matches only if each input symptom is
// a substring of at least one of its known symptoms; confidence is the
// matched fraction of the disease's symptom list.
func (p *DatasetPredictor) Predict(_ context.Context, symptoms string) ([]Prediction, error) {
	inputs := splitSymptoms(symptoms)
	if len(inputs) == 0 {
		return nil, nil
	}

	best := make(map[string]Prediction)
	for _, rec := range p.records {
		matched := 0
		all := true
		for _, input := range inputs {
			found := false
			for _, known := range rec.Symptoms {
				if strings.Contains(known, input) {
					found = true
					break
				}
			}
			if found {
				matched++
			} else {
				all = false
			}
		}
		if !all {
			continue
		}

		confidence := 0.0
		if len(rec.Symptoms) > 0 {
			confidence = float64(matched) / float64(len(rec.Symptoms))
		}
		key := strings.ToLower(rec.Disease)
		if prev, ok := best[key]; !ok || confidence > prev.Confidence {
			best[key] = Prediction{
				Disease:    rec.Disease,
				Confidence: confidence,
				Source:     SourceDataset,
			}
		}
	}

	out := make([]Prediction, 0, len(best))
	for _, pred := range best {
		out = append(out, pred)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out, nil
}

// Recommend turns predictions into guidance text, tiered on the top
// prediction's confidence. Emergencies override everything.
func (p *DatasetPredictor) Recommend(predictions []Prediction, symptoms string) string {
	return recommend(predictions, symptoms)
}

// IsEmergency reports whether the symptoms match any urgent-care
// indicator.
func (p *DatasetPredictor) IsEmergency(symptoms string) bool {
	return isEmergency(symptoms)
}

// Records returns the number of loaded dataset records.
func (p *DatasetPredictor) Records() int {
	return len(p.records)
}

func splitSymptoms(symptoms string) []string {
	var out []string
	for _, s := range strings.Split(symptoms, ",") {
		if s = strings.TrimSpace(strings.ToLower(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isEmergency(symptoms string) bool {
	lower := strings.ToLower(symptoms)
	for _, e := range emergencySymptoms {
		if strings.Contains(lower, e) {
			return true
		}
	}
	return false
}

func recommend(predictions []Prediction, symptoms string) string {
	if isEmergency(symptoms) {
		return "EMERGENCY: Your symptoms may indicate a serious condition. " +
			"Please seek immediate medical attention or call emergency services!"
	}
	if len(predictions) == 0 || predictions[0].Confidence < 0.3 {
		return "I need more specific symptoms to provide a better assessment. " +
			"Please describe your symptoms in more detail, or consult a healthcare provider."
	}

	top := predictions[0]
	switch {
	case top.Confidence >= 0.8:
		return fmt.Sprintf("Based on your symptoms, this could be %s. "+
			"Please consult a healthcare provider for proper diagnosis and treatment.", top.Disease)
	case top.Confidence >= 0.5:
		return fmt.Sprintf("Your symptoms might suggest %s, but I recommend getting "+
			"a professional medical opinion for accurate diagnosis.", top.Disease)
	default:
		return fmt.Sprintf("Possible condition: %s. However, I'm not very confident "+
			"about this assessment. Please consult a healthcare provider.", top.Disease)
	}
}
