package ml

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessor_ShapeAndOrder(t *testing.T) {
	bundle := trainSmallBundle(t, UnseenReject)
	pre := NewPreprocessor(bundle)

	rec := exampleRecord()
	rec["Applicant_ID"] = "extra keys are ignored"
	X, err := pre.Transform([]Record{rec, highRiskRecord(), exampleRecord()})
	require.NoError(t, err)
	require.Len(t, X, 3)
	for _, row := range X {
		assert.Len(t, row, len(bundle.FeatureColumns))
	}
	assert.Equal(t, X[0], X[2])

	encoded, err := pre.Encode([]Record{exampleRecord()})
	require.NoError(t, err)
	edu, _ := bundle.Encoders["Education"].Encode("Graduate")
	assert.Equal(t, float64(edu), encoded[0][6])
	assert.Equal(t, 750.0, encoded[0][2])
}

func TestPreprocessor_Deterministic(t *testing.T) {
	bundle := trainSmallBundle(t, UnseenReject)
	pre := NewPreprocessor(bundle)

	a, err := pre.Transform([]Record{exampleRecord()})
	require.NoError(t, err)
	b, err := pre.Transform([]Record{exampleRecord()})
	require.NoError(t, err)
	for j := range a[0] {
		assert.Equal(t, math.Float64bits(a[0][j]), math.Float64bits(b[0][j]))
	}
}

func TestPreprocessor_NumericStringsMatchNumbers(t *testing.T) {
	bundle := trainSmallBundle(t, UnseenReject)
	pre := NewPreprocessor(bundle)

	asStrings := exampleRecord()
	asStrings["Age"] = "35"
	asStrings["Debt_to_Income"] = "0.15"

	a, err := pre.Transform([]Record{exampleRecord()})
	require.NoError(t, err)
	b, err := pre.Transform([]Record{asStrings})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPreprocessor_MissingColumns(t *testing.T) {
	bundle := trainSmallBundle(t, UnseenReject)
	pre := NewPreprocessor(bundle)

	for _, col := range bundle.FeatureColumns {
		rec := exampleRecord()
		delete(rec, col)
		_, err := pre.Transform([]Record{rec})
		var missing *MissingColumnsError
		require.True(t, errors.As(err, &missing), col)
		assert.Equal(t, []string{col}, missing.Columns)
	}

	first := exampleRecord()
	delete(first, "Loan_Amount")
	second := exampleRecord()
	delete(second, "Age")
	_, err := pre.Transform([]Record{first, second})
	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"Age", "Loan_Amount"}, missing.Columns, "union in training order")
}

func TestPreprocessor_UnseenCategory(t *testing.T) {
	rejecting := NewPreprocessor(trainSmallBundle(t, UnseenReject))
	rec := exampleRecord()
	rec["Education"] = "PhD"

	_, err := rejecting.Transform([]Record{exampleRecord(), rec})
	var unseen *UnseenCategoryError
	require.True(t, errors.As(err, &unseen))
	assert.Equal(t, "Education", unseen.Column)
	assert.Equal(t, "PhD", unseen.Value)
	assert.Equal(t, 1, unseen.Row)

	bundle := trainSmallBundle(t, UnseenUnknown)
	X, err := NewPreprocessor(bundle).Encode([]Record{rec})
	require.NoError(t, err)
	sentinel, _ := bundle.Encoders["Education"].Encode(UnknownCategory)
	assert.Equal(t, float64(sentinel), X[0][6])
	assert.Equal(t, len(bundle.Encoders["Education"].Classes)-1, sentinel)
}

func TestPreprocessor_InvalidValues(t *testing.T) {
	pre := NewPreprocessor(trainSmallBundle(t, UnseenReject))

	cases := []struct {
		name   string
		column string
		value  any
	}{
		{"non-numeric string", "Income", "lots"},
		{"boolean", "Age", true},
		{"null", "Credit_Score", nil},
		{"non-finite", "Loan_Amount", math.Inf(1)},
		{"number for category", "Education", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := exampleRecord()
			rec[tc.column] = tc.value
			_, err := pre.Transform([]Record{rec})
			var invalid *InvalidValueError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Equal(t, tc.column, invalid.Column)
		})
	}
}

func TestPreprocessor_EmptyInput(t *testing.T) {
	pre := NewPreprocessor(trainSmallBundle(t, UnseenReject))
	_, err := pre.Transform(nil)
	assert.True(t, errors.Is(err, ErrEmptyInput))
}
