package ml

import "context"

// Record is one applicant row keyed by feature column name.
type Record map[string]any

// Prediction is the scored outcome for one record.
type Prediction struct {
	Label       int     `json:"prediction"`
	Probability float64 `json:"probability"`
}

// Classifier scores a preprocessed matrix.
type Classifier interface {
	PositiveProba(X [][]float64) ([]float64, error)
	Fitted() bool
}

// ModelProvider is what the HTTP layer needs from the inference pipeline.
type ModelProvider interface {
	Predict(ctx context.Context, records []Record) ([]Prediction, error)
	Bundle() *Bundle
}
