package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// TreeConfig holds CART hyperparameters. Zero values mean: no depth limit,
// split nodes with at least 2 samples, leaves of at least 1 sample, and
// consider every feature at each split.
type TreeConfig struct {
	MaxDepth        int   `json:"max_depth"`
	MinSamplesSplit int   `json:"min_samples_split"`
	MinSamplesLeaf  int   `json:"min_samples_leaf"`
	MaxFeatures     int   `json:"max_features"`
	Seed            int64 `json:"seed"`
}

// DecisionTree is a gini CART classifier stored as a flat node slice so it
// serializes directly to JSON. Node 0 is the root.
type DecisionTree struct {
	Config    TreeConfig `json:"config"`
	Classes   []int      `json:"classes"`
	NFeatures int        `json:"n_features"`
	Nodes     []TreeNode `json:"nodes"`
}

type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	Probs      []float64 `json:"probs,omitempty"`
	IsLeaf     bool      `json:"is_leaf"`
}

func NewDecisionTree(cfg TreeConfig) *DecisionTree {
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	return &DecisionTree{Config: cfg}
}

// Fit grows the tree on the rows of X selected by sample. A nil sample uses
// every row; repeated indices (bootstrap draws) are counted repeatedly.
// Class order is taken from y as a whole so that trees fitted on different
// samples of the same data agree on it.
func (dt *DecisionTree) Fit(X [][]float64, y []int, sample []int) error {
	if len(X) == 0 || len(y) == 0 {
		return errors.New("features or labels empty")
	}
	if len(X) != len(y) {
		return errors.New("features and labels size mismatch")
	}
	nFeatures := len(X[0])
	for i := range X {
		if len(X[i]) != nFeatures {
			return fmt.Errorf("row %d has %d features, want %d", i, len(X[i]), nFeatures)
		}
	}
	if sample == nil {
		sample = make([]int, len(X))
		for i := range sample {
			sample[i] = i
		}
	}
	if len(sample) == 0 {
		return errors.New("empty sample")
	}

	classes := uniqueSorted(y)
	classIdx := make(map[int]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}
	encoded := make([]int, len(y))
	for i, label := range y {
		encoded[i] = classIdx[label]
	}

	b := &treeBuilder{
		cfg:      dt.Config,
		X:        X,
		y:        encoded,
		nClasses: len(classes),
		nFeat:    nFeatures,
		rnd:      rand.New(rand.NewSource(dt.Config.Seed)),
	}
	b.grow(append([]int(nil), sample...), 0)

	dt.Classes = classes
	dt.NFeatures = nFeatures
	dt.Nodes = b.nodes
	return nil
}

// PredictProba returns the class distribution of the leaf x falls into,
// aligned with dt.Classes.
func (dt *DecisionTree) PredictProba(x []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, ErrNotFitted
	}
	if len(x) != dt.NFeatures {
		return nil, fmt.Errorf("got %d features, want %d", len(x), dt.NFeatures)
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Probs, nil
		}
		if x[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx <= 0 || idx >= len(dt.Nodes) {
			return nil, errors.New("invalid tree state")
		}
	}
}

// Predict returns the most probable class for x and its probability.
func (dt *DecisionTree) Predict(x []float64) (int, float64, error) {
	probs, err := dt.PredictProba(x)
	if err != nil {
		return 0, 0, err
	}
	best := argmax(probs)
	return dt.Classes[best], probs[best], nil
}

// Depth is the length of the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	if len(dt.Nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return 0
		}
		return 1 + max(walk(node.LeftChild), walk(node.RightChild))
	}
	return walk(0)
}

type treeBuilder struct {
	cfg      TreeConfig
	X        [][]float64
	y        []int
	nClasses int
	nFeat    int
	rnd      *rand.Rand
	nodes    []TreeNode
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	counts := b.classCounts(idx)
	id := len(b.nodes)
	b.nodes = append(b.nodes, b.leaf(counts, len(idx)))

	if isPure(counts) || len(idx) < b.cfg.MinSamplesSplit || (b.cfg.MaxDepth > 0 && depth >= b.cfg.MaxDepth) {
		return id
	}
	best, ok := b.bestSplit(idx, counts)
	if !ok {
		return id
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.X[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[id] = TreeNode{
		FeatureIdx: best.feature,
		Threshold:  best.threshold,
		LeftChild:  l,
		RightChild: r,
	}
	return id
}

func (b *treeBuilder) bestSplit(idx []int, counts []int) (split, bool) {
	n := len(idx)
	parent := gini(counts, n)
	best := split{feature: -1, impurity: parent}

	order := make([]int, n)
	left := make([]int, b.nClasses)
	right := make([]int, b.nClasses)
	for _, f := range b.candidateFeatures() {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })
		for k := range left {
			left[k] = 0
		}
		copy(right, counts)

		for s := 1; s < n; s++ {
			c := b.y[order[s-1]]
			left[c]++
			right[c]--
			lo, hi := b.X[order[s-1]][f], b.X[order[s]][f]
			if lo == hi {
				continue
			}
			if s < b.cfg.MinSamplesLeaf || n-s < b.cfg.MinSamplesLeaf {
				continue
			}
			impurity := (float64(s)*gini(left, s) + float64(n-s)*gini(right, n-s)) / float64(n)
			if impurity < best.impurity {
				best = split{feature: f, threshold: lo + (hi-lo)/2, impurity: impurity}
			}
		}
	}
	if best.feature < 0 || parent-best.impurity <= 1e-12 {
		return split{}, false
	}
	return best, true
}

func (b *treeBuilder) candidateFeatures() []int {
	k := b.cfg.MaxFeatures
	if k <= 0 || k >= b.nFeat {
		all := make([]int, b.nFeat)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.rnd.Perm(b.nFeat)[:k]
}

func (b *treeBuilder) classCounts(idx []int) []int {
	counts := make([]int, b.nClasses)
	for _, i := range idx {
		counts[b.y[i]]++
	}
	return counts
}

func (b *treeBuilder) leaf(counts []int, n int) TreeNode {
	probs := make([]float64, len(counts))
	for i, c := range counts {
		if n > 0 {
			probs[i] = float64(c) / float64(n)
		}
	}
	return TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Probs:      probs,
		IsLeaf:     true,
	}
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		impurity -= p * p
	}
	return impurity
}

func isPure(counts []int) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func uniqueSorted(labels []int) []int {
	seen := make(map[int]struct{})
	out := make([]int, 0)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}
