package ml

import (
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cast"
)

// Preprocessor turns raw records into the matrix the model was trained on:
// select columns in training order, label-encode categorical columns, then
// standard-scale. It holds no state beyond the bundle and is safe for
// concurrent use.
type Preprocessor struct {
	bundle *Bundle
}

func NewPreprocessor(bundle *Bundle) *Preprocessor {
	return &Preprocessor{bundle: bundle}
}

// MissingColumns returns the feature columns absent from at least one
// record, in training order.
func (p *Preprocessor) MissingColumns(records []Record) []string {
	var missing []string
	for _, col := range p.bundle.FeatureColumns {
		for _, rec := range records {
			if _, ok := rec[col]; !ok {
				missing = append(missing, col)
				break
			}
		}
	}
	return missing
}

// Encode performs column selection and categorical encoding without scaling.
func (p *Preprocessor) Encode(records []Record) ([][]float64, error) {
	if len(records) == 0 {
		return nil, ErrEmptyInput
	}
	if missing := p.MissingColumns(records); len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	out := make([][]float64, len(records))
	for i, rec := range records {
		row := make([]float64, len(p.bundle.FeatureColumns))
		for j, col := range p.bundle.FeatureColumns {
			v, err := p.encodeValue(col, rec[col], i)
			if err != nil {
				return nil, err
			}
			row[j] = v
		}
		out[i] = row
	}
	return out, nil
}

// Transform is the only path from raw records to model input.
func (p *Preprocessor) Transform(records []Record) ([][]float64, error) {
	encoded, err := p.Encode(records)
	if err != nil {
		return nil, err
	}
	if p.bundle.Scaler == nil {
		return nil, fmt.Errorf("scaler: %w", ErrNotFitted)
	}
	return p.bundle.Scaler.Transform(encoded)
}

func (p *Preprocessor) encodeValue(col string, raw any, row int) (float64, error) {
	if enc, ok := p.bundle.Encoders[col]; ok {
		s, isString := raw.(string)
		if !isString {
			return 0, &InvalidValueError{Column: col, Value: raw, Row: row, Err: errors.New("expected a string category")}
		}
		code, ok := enc.Encode(s)
		if !ok {
			return 0, &UnseenCategoryError{Column: col, Value: s, Row: row}
		}
		return float64(code), nil
	}
	return toNumber(col, raw, row)
}

func toNumber(col string, raw any, row int) (float64, error) {
	switch raw.(type) {
	case nil, bool:
		return 0, &InvalidValueError{Column: col, Value: raw, Row: row, Err: errors.New("expected a number")}
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, &InvalidValueError{Column: col, Value: raw, Row: row, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &InvalidValueError{Column: col, Value: raw, Row: row, Err: errors.New("value is not finite")}
	}
	return v, nil
}
