package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestConfig configures a RandomForest. MaxFeatures 0 means sqrt of the
// feature count, as tree ensembles usually default to.
type ForestConfig struct {
	NEstimators     int   `json:"n_estimators"`
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	MaxFeatures     int   `json:"max_features"`
	Bootstrap       bool  `json:"bootstrap"`
	Seed            int64 `json:"seed"`
	Workers         int   `json:"-"`
}

func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NEstimators:     100,
		MaxDepth:        12,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		Seed:            42,
	}
}

// RandomForest averages the leaf class distributions of bagged CART trees.
type RandomForest struct {
	Config    ForestConfig    `json:"config"`
	Classes   []int           `json:"classes"`
	NFeatures int             `json:"n_features"`
	Trees     []*DecisionTree `json:"trees"`
}

func NewRandomForest(cfg ForestConfig) *RandomForest {
	if cfg.NEstimators <= 0 {
		cfg.NEstimators = 100
	}
	return &RandomForest{Config: cfg}
}

// Fit trains every tree on its own bootstrap sample. Tree i is seeded with
// Seed+i, so the result does not depend on scheduling.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("randomforest: empty X")
	}
	if len(y) != len(X) {
		return errors.New("randomforest: X and y length mismatch")
	}
	n, p := len(X), len(X[0])

	maxFeatures := rf.Config.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(p))))
	}
	workers := rf.Config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]*DecisionTree, rf.Config.NEstimators)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		seed := rf.Config.Seed + int64(i)
		g.Go(func() error {
			var sample []int
			if rf.Config.Bootstrap {
				rnd := rand.New(rand.NewSource(seed))
				sample = make([]int, n)
				for j := range sample {
					sample[j] = rnd.Intn(n)
				}
			}
			tree := NewDecisionTree(TreeConfig{
				MaxDepth:        rf.Config.MaxDepth,
				MinSamplesSplit: rf.Config.MinSamplesSplit,
				MinSamplesLeaf:  rf.Config.MinSamplesLeaf,
				MaxFeatures:     maxFeatures,
				Seed:            seed,
			})
			if err := tree.Fit(X, y, sample); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	rf.Trees = trees
	rf.Classes = trees[0].Classes
	rf.NFeatures = p
	return nil
}

// PredictProba returns one class distribution per row, aligned with rf.Classes.
func (rf *RandomForest) PredictProba(X [][]float64) ([][]float64, error) {
	if !rf.Fitted() {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(X))
	for i, row := range X {
		avg := make([]float64, len(rf.Classes))
		for _, tree := range rf.Trees {
			probs, err := tree.PredictProba(row)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			for k, p := range probs {
				avg[k] += p
			}
		}
		for k := range avg {
			avg[k] /= float64(len(rf.Trees))
		}
		out[i] = avg
	}
	return out, nil
}

// PositiveProba returns the probability of class 1 for every row.
func (rf *RandomForest) PositiveProba(X [][]float64) ([]float64, error) {
	probs, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	pos := -1
	for i, c := range rf.Classes {
		if c == 1 {
			pos = i
		}
	}
	out := make([]float64, len(probs))
	if pos < 0 {
		return out, nil
	}
	for i, row := range probs {
		out[i] = clamp01(row[pos])
	}
	return out, nil
}

func (rf *RandomForest) Fitted() bool {
	return len(rf.Trees) > 0 && len(rf.Classes) > 0
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
