package ml

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFitted      = errors.New("model not fitted")
	ErrBundleNotFound = errors.New("bundle not found")
	ErrEmptyInput     = errors.New("no records in input")
)

// MissingColumnsError lists required feature columns absent from the input,
// in training-time column order.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns in input: %s", strings.Join(e.Columns, ", "))
}

// UnseenCategoryError is returned when a categorical value was not part of
// the encoder's training vocabulary and the bundle rejects unknown values.
type UnseenCategoryError struct {
	Column string
	Value  string
	Row    int
}

func (e *UnseenCategoryError) Error() string {
	return fmt.Sprintf("row %d: unseen category %q for column %s", e.Row, e.Value, e.Column)
}

// InvalidValueError is returned when a field cannot be interpreted as the
// type its column expects.
type InvalidValueError struct {
	Column string
	Value  any
	Row    int
	Err    error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("row %d: invalid value %v for column %s: %v", e.Row, e.Value, e.Column, e.Err)
}

func (e *InvalidValueError) Unwrap() error {
	return e.Err
}
