package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditrisk/db"
	"creditrisk/ml"
	"creditrisk/pipeline"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestTrainThenPredict(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "models", "bundle.json")
	dataPath := filepath.Join(dir, "data", "credit.csv")
	dbPath := filepath.Join(dir, "creditrisk.db")

	out, err := run(t, "train",
		"--samples", "800",
		"--trees", "15",
		"--model", modelPath,
		"--out-data", dataPath,
		"--db", dbPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Test Accuracy:")
	assert.Contains(t, out, "precision")

	bundle, err := ml.LoadBundle(modelPath)
	require.NoError(t, err)
	assert.Equal(t, pipeline.FeatureColumns, bundle.FeatureColumns)
	assert.Len(t, bundle.Model.Trees, 15)

	ds, err := pipeline.ReadCSV(dataPath, pipeline.DefaultLabelColumn)
	require.NoError(t, err)
	assert.Equal(t, 800, ds.Len())

	require.NoError(t, db.InitDB(dbPath))
	logs, err := db.LoadTrainingLog()
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.Len(t, logs, 1)
	assert.Equal(t, bundle.Fingerprint, logs[0].Fingerprint)

	out, err = run(t, "predict", "--model", modelPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Applicant 1:")
	assert.Contains(t, out, "LOW Risk (Good Candidate)")
	assert.Contains(t, out, "Default Probability: 0.")

	out, err = run(t, "predict", "--model", modelPath, "--data", dataPath, "--rows", "3")
	require.NoError(t, err, out)
	assert.Equal(t, 3, strings.Count(out, "Applicant "))
}

func TestTrainFromCSV(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "input.csv")
	require.NoError(t, pipeline.WriteCSV(dataPath, pipeline.GenerateSynthetic(400, 5)))
	modelPath := filepath.Join(dir, "bundle.json")

	out, err := run(t, "train", "--data", dataPath, "--trees", "5", "--model", modelPath, "--unseen-policy", "unknown")
	require.NoError(t, err, out)

	bundle, err := ml.LoadBundle(modelPath)
	require.NoError(t, err)
	assert.Equal(t, ml.UnseenUnknown, bundle.UnseenPolicy)
	assert.Equal(t, pipeline.CategoricalColumns, bundle.CategoricalColumns())
}

func TestServeWithoutBundleFails(t *testing.T) {
	_, err := run(t, "serve", "--model", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ml.ErrBundleNotFound))
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, "HIGH Risk (Default Likely)", riskLevel(1))
	assert.Equal(t, "LOW Risk (Good Candidate)", riskLevel(0))

	var buf bytes.Buffer
	printPredictions(&buf, []ml.Prediction{{Label: 1, Probability: 0.87654}})
	assert.Contains(t, buf.String(), "Default Probability: 0.8765")
}

func TestMain(m *testing.M) {
	os.Unsetenv("CREDITRISK_MODEL_PATH")
	os.Exit(m.Run())
}
