package ml

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditrisk/pipeline"
)

func TestTrainer_SyntheticBundle(t *testing.T) {
	ds := pipeline.GenerateSynthetic(2000, 42)
	cfg := smallTrainerConfig(UnseenReject)
	cfg.Forest.NEstimators = 30
	cfg.Forest.MaxDepth = 10
	bundle, err := NewTrainer(cfg, nil).Train(ds)
	require.NoError(t, err)

	assert.Equal(t, pipeline.FeatureColumns, bundle.FeatureColumns)
	assert.Len(t, bundle.Encoders, 3)
	assert.Equal(t, len(pipeline.FeatureColumns), bundle.Scaler.Width())
	require.NotNil(t, bundle.Report)
	assert.Equal(t, 400, bundle.Report.TestSize)
	assert.Equal(t, 1600, bundle.Report.TrainSize)
	assert.Greater(t, bundle.Report.Accuracy, 0.85)
	assert.NotEmpty(t, bundle.Fingerprint)
	assert.False(t, bundle.TrainedAt.IsZero())

	preds, err := NewPredictor(bundle).Predict(context.Background(), []Record{exampleRecord(), highRiskRecord()})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, 0, preds[0].Label, "example applicant is low risk")
	assert.Less(t, preds[0].Probability, 0.3)
	assert.Equal(t, 1, preds[1].Label)
}

func TestTrainer_Deterministic(t *testing.T) {
	ds := pipeline.GenerateSynthetic(500, 3)
	a, err := NewTrainer(smallTrainerConfig(UnseenReject), nil).Train(ds)
	require.NoError(t, err)
	b, err := NewTrainer(smallTrainerConfig(UnseenReject), nil).Train(ds)
	require.NoError(t, err)

	records := make([]Record, 0, 50)
	for _, m := range ds.Head(50).Maps() {
		records = append(records, Record(m))
	}
	pa, err := NewPredictor(a).Predict(context.Background(), records)
	require.NoError(t, err)
	pb, err := NewPredictor(b).Predict(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestPredictor_LabelFollowsThreshold(t *testing.T) {
	ds := pipeline.GenerateSynthetic(400, 9)
	bundle, err := NewTrainer(smallTrainerConfig(UnseenReject), nil).Train(ds)
	require.NoError(t, err)

	records := make([]Record, 0, ds.Len())
	for _, m := range ds.Maps() {
		records = append(records, Record(m))
	}
	for _, threshold := range []float64{0.2, 0.5, 0.8} {
		bundle.Threshold = threshold
		preds, err := NewPredictor(bundle).Predict(context.Background(), records)
		require.NoError(t, err)
		require.Len(t, preds, len(records))
		for _, p := range preds {
			assert.GreaterOrEqual(t, p.Probability, 0.0)
			assert.LessOrEqual(t, p.Probability, 1.0)
			assert.Equal(t, p.Probability >= threshold, p.Label == 1)
		}
	}
}

func TestPredictor_CanceledContext(t *testing.T) {
	bundle := trainSmallBundle(t, UnseenReject)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPredictor(bundle).Predict(ctx, []Record{exampleRecord()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainer_RejectsBadInput(t *testing.T) {
	tr := NewTrainer(DefaultTrainerConfig(), nil)
	_, err := tr.Train(&pipeline.Dataset{})
	assert.Error(t, err)

	ds := pipeline.GenerateSynthetic(20, 1)
	ds.Labels = ds.Labels[:10]
	_, err = tr.Train(ds)
	assert.Error(t, err)
}

func TestTrainer_DetectsCategoricalColumns(t *testing.T) {
	ds := pipeline.GenerateSynthetic(300, 5)
	cfg := DefaultTrainerConfig()
	cfg.Forest.NEstimators = 5
	bundle, err := NewTrainer(cfg, nil).Train(ds)
	require.NoError(t, err)
	assert.Equal(t, pipeline.CategoricalColumns, bundle.CategoricalColumns())
}

func TestStratifiedSplit(t *testing.T) {
	y := make([]int, 100)
	for i := 0; i < 20; i++ {
		y[i*5] = 1
	}
	train, test := StratifiedSplit(y, 0.2, 42)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	positives := 0
	seen := make(map[int]bool)
	for _, i := range test {
		positives += y[i]
		seen[i] = true
	}
	assert.Equal(t, 4, positives)
	for _, i := range train {
		assert.False(t, seen[i], "train and test overlap at %d", i)
	}

	train2, test2 := StratifiedSplit(y, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestEvaluate(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 1}
	yPred := []int{0, 1, 1, 1, 0}
	r := Evaluate(yTrue, yPred, []int{0, 1})

	assert.InDelta(t, 0.6, r.Accuracy, 1e-12)
	require.Len(t, r.PerClass, 2)
	pos := r.PerClass[1]
	assert.Equal(t, 1, pos.Label)
	assert.InDelta(t, 2.0/3.0, pos.Precision, 1e-12)
	assert.InDelta(t, 2.0/3.0, pos.Recall, 1e-12)
	assert.Equal(t, 3, pos.Support)
	assert.Contains(t, r.String(), "accuracy")
}

func TestTrainer_CleanedNonFiniteRowsDoNotAbort(t *testing.T) {
	ds := pipeline.GenerateSynthetic(300, 3)
	for j, col := range ds.Columns {
		switch col {
		case "Income":
			ds.Rows[3][j] = "NaN"
		case "Loan_Amount":
			ds.Rows[7][j] = "Inf"
		}
	}

	cleaned, issues := pipeline.NewCreditDataCleaner(nil).Clean(ds)
	require.Len(t, issues, 2)
	assert.Equal(t, 298, cleaned.Len())

	_, err := NewTrainer(smallTrainerConfig(UnseenReject), nil).Train(cleaned)
	require.NoError(t, err)
}
