package ml

import (
	"errors"
	"fmt"
	"math"
)

// StandardScaler centers each column on its training mean and divides by
// the population standard deviation. Constant columns get a scale of 1.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return errors.New("scaler: empty matrix")
	}
	rows, cols := len(X), len(X[0])
	mean := make([]float64, cols)
	scale := make([]float64, cols)
	for i := range X {
		if len(X[i]) != cols {
			return fmt.Errorf("scaler: row %d has %d columns, want %d", i, len(X[i]), cols)
		}
		for j, v := range X[i] {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(rows)
	}
	for i := range X {
		for j, v := range X[i] {
			d := v - mean[j]
			scale[j] += d * d
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j] / float64(rows))
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
	s.Mean = mean
	s.Scale = scale
	return nil
}

// Transform returns a scaled copy of X; the input is left untouched.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if !s.Fitted() {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("scaler: row %d has %d columns, want %d", i, len(row), len(s.Mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}

func (s *StandardScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *StandardScaler) Fitted() bool {
	return len(s.Mean) > 0 && len(s.Mean) == len(s.Scale)
}

// Width is the number of columns the scaler was fitted on.
func (s *StandardScaler) Width() int {
	return len(s.Mean)
}
