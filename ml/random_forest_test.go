package ml

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableData labels a point 1 when x0 + x1 > 0, with a noise column.
func separableData(n int, seed int64) ([][]float64, []int) {
	rnd := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		a, b := rnd.NormFloat64(), rnd.NormFloat64()
		X[i] = []float64{a, b, rnd.NormFloat64()}
		if a+b > 0 {
			y[i] = 1
		}
	}
	return X, y
}

func TestDecisionTree_FitsTrainingData(t *testing.T) {
	X, y := separableData(200, 1)
	tree := NewDecisionTree(TreeConfig{})
	require.NoError(t, tree.Fit(X, y, nil))

	correct := 0
	for i := range X {
		label, prob, err := tree.Predict(X[i])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, prob, 0.5)
		if label == y[i] {
			correct++
		}
	}
	assert.Equal(t, len(X), correct, "an unlimited tree memorises its training set")
	assert.Equal(t, []int{0, 1}, tree.Classes)
}

func TestDecisionTree_MaxDepth(t *testing.T) {
	X, y := separableData(200, 2)
	tree := NewDecisionTree(TreeConfig{MaxDepth: 3})
	require.NoError(t, tree.Fit(X, y, nil))
	assert.LessOrEqual(t, tree.Depth(), 3)
}

func TestDecisionTree_Errors(t *testing.T) {
	tree := NewDecisionTree(TreeConfig{})
	_, err := tree.PredictProba([]float64{1})
	assert.True(t, errors.Is(err, ErrNotFitted))

	assert.Error(t, tree.Fit(nil, nil, nil))
	assert.Error(t, tree.Fit([][]float64{{1}, {2}}, []int{0}, nil))
	assert.Error(t, tree.Fit([][]float64{{1}, {2, 3}}, []int{0, 1}, nil))

	require.NoError(t, tree.Fit([][]float64{{1, 2}, {3, 4}}, []int{0, 1}, nil))
	_, err = tree.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestRandomForest_ProbabilitiesAndAccuracy(t *testing.T) {
	X, y := separableData(400, 3)
	testX, testY := separableData(200, 4)

	cfg := DefaultForestConfig()
	cfg.NEstimators = 25
	rf := NewRandomForest(cfg)
	require.NoError(t, rf.Fit(X, y))
	assert.Len(t, rf.Trees, 25)
	assert.Equal(t, 3, rf.NFeatures)

	dist, err := rf.PredictProba(testX)
	require.NoError(t, err)
	for _, row := range dist {
		require.Len(t, row, 2)
		assert.InDelta(t, 1.0, row[0]+row[1], 1e-9)
	}

	pos, err := rf.PositiveProba(testX)
	require.NoError(t, err)
	correct := 0
	for i, p := range pos {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		if Label(p, 0.5) == testY[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(testY)), 0.8)
}

func TestRandomForest_DeterministicForSeed(t *testing.T) {
	X, y := separableData(300, 5)
	cfg := DefaultForestConfig()
	cfg.NEstimators = 10

	cfg.Workers = 1
	a := NewRandomForest(cfg)
	require.NoError(t, a.Fit(X, y))
	cfg.Workers = 4
	b := NewRandomForest(cfg)
	require.NoError(t, b.Fit(X, y))

	pa, err := a.PositiveProba(X)
	require.NoError(t, err)
	pb, err := b.PositiveProba(X)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestRandomForest_NotFitted(t *testing.T) {
	rf := NewRandomForest(DefaultForestConfig())
	_, err := rf.PositiveProba([][]float64{{1, 2, 3}})
	assert.True(t, errors.Is(err, ErrNotFitted))
	assert.Error(t, rf.Fit(nil, nil))
}
