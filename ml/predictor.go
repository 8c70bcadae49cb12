package ml

import (
	"context"
	"fmt"
)

// Predictor runs the full inference pipeline against one immutable bundle.
type Predictor struct {
	bundle       *Bundle
	preprocessor *Preprocessor
	model        Classifier
}

func NewPredictor(bundle *Bundle) *Predictor {
	return &Predictor{
		bundle:       bundle,
		preprocessor: NewPreprocessor(bundle),
		model:        bundle.Model,
	}
}

func (p *Predictor) Bundle() *Bundle {
	return p.bundle
}

// Predict returns one prediction per record, in input order.
func (p *Predictor) Predict(ctx context.Context, records []Record) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.predictRecords(records)
}

func (p *Predictor) predictRecords(records []Record) ([]Prediction, error) {
	X, err := p.preprocessor.Transform(records)
	if err != nil {
		return nil, err
	}
	probs, err := p.model.PositiveProba(X)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	out := make([]Prediction, len(probs))
	for i, prob := range probs {
		out[i] = Prediction{
			Label:       Label(prob, p.bundle.Threshold),
			Probability: prob,
		}
	}
	return out, nil
}

// Label maps a positive-class probability to 0 or 1.
func Label(prob, threshold float64) int {
	if prob >= threshold {
		return 1
	}
	return 0
}
