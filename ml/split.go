package ml

import (
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit returns train and test row indices with each label's
// share preserved in the test set. Output is sorted and depends only on
// the seed.
func StratifiedSplit(y []int, testRatio float64, seed int64) (train, test []int) {
	if testRatio <= 0 || testRatio >= 1 {
		testRatio = 0.2
	}
	byLabel := make(map[int][]int)
	for i, label := range y {
		byLabel[label] = append(byLabel[label], i)
	}
	labels := make([]int, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	rnd := rand.New(rand.NewSource(seed))
	for _, label := range labels {
		idx := byLabel[label]
		rnd.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		nTest := int(math.Round(float64(len(idx)) * testRatio))
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

func selectRows[T any](rows []T, idx []int) []T {
	out := make([]T, len(idx))
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}
