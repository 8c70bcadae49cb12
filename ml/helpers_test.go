package ml

import (
	"testing"

	"github.com/stretchr/testify/require"

	"creditrisk/pipeline"
)

func smallTrainerConfig(policy UnseenPolicy) TrainerConfig {
	cfg := DefaultTrainerConfig()
	cfg.FeatureColumns = pipeline.FeatureColumns
	cfg.CategoricalColumns = pipeline.CategoricalColumns
	cfg.UnseenPolicy = policy
	cfg.Forest.NEstimators = 15
	cfg.Forest.MaxDepth = 8
	return cfg
}

func trainSmallBundle(t *testing.T, policy UnseenPolicy) *Bundle {
	t.Helper()
	ds := pipeline.GenerateSynthetic(600, 11)
	bundle, err := NewTrainer(smallTrainerConfig(policy), nil).Train(ds)
	require.NoError(t, err)
	return bundle
}

func exampleRecord() Record {
	return Record(pipeline.ExampleApplicant())
}

func highRiskRecord() Record {
	return Record{
		"Age":              29,
		"Income":           18000,
		"Credit_Score":     480,
		"Employment_Years": 1,
		"Debt_to_Income":   1.4,
		"Loan_Amount":      25000,
		"Education":        "High School",
		"Marital_Status":   "Single",
		"Previous_Default": "Yes",
	}
}

func copyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
