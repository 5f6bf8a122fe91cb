package training

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Fold is one train/validation partition of a cross-validation run
type Fold struct {
	Train []int
	Test  []int
}

// classIndices groups row indices by label, in label order
func classIndices(y []int) [][]int {
	nClasses := 0
	for _, c := range y {
		nClasses = max(nClasses, c+1)
	}
	groups := make([][]int, nClasses)
	for i, c := range y {
		groups[c] = append(groups[c], i)
	}
	return groups
}

// TrainTestSplit partitions row indices into train and test sets. With
// stratify set, each class contributes to the test set in proportion to its
// frequency.
func TrainTestSplit(y []int, testSize float64, seed int64, stratify bool) ([]int, []int, error) {
	n := len(y)
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}
	nTest := int(math.Ceil(testSize*float64(n) - 1e-9))
	if nTest < 1 || nTest >= n {
		return nil, nil, fmt.Errorf("cannot split %d rows with test size %v", n, testSize)
	}
	rng := rand.New(rand.NewSource(seed))

	if !stratify {
		perm := rng.Perm(n)
		return perm[nTest:], perm[:nTest], nil
	}

	groups := classIndices(y)
	if len(groups) > nTest {
		return nil, nil, fmt.Errorf("test size %d is smaller than the number of classes %d", nTest, len(groups))
	}

	// floor allocation, remainder to the largest fractional parts
	alloc := make([]int, len(groups))
	type frac struct {
		class int
		rest  float64
	}
	fracs := make([]frac, 0, len(groups))
	assigned := 0
	for c, g := range groups {
		exact := testSize * float64(len(g))
		alloc[c] = int(math.Floor(exact + 1e-9))
		assigned += alloc[c]
		fracs = append(fracs, frac{class: c, rest: exact - float64(alloc[c])})
	}
	sort.SliceStable(fracs, func(a, b int) bool { return fracs[a].rest > fracs[b].rest })
	for i := 0; assigned < nTest && i < len(fracs)*2; i++ {
		c := fracs[i%len(fracs)].class
		if alloc[c] < len(groups[c])-1 {
			alloc[c]++
			assigned++
		}
	}

	var train, test []int
	for c, g := range groups {
		shuffled := append([]int(nil), g...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		test = append(test, shuffled[:alloc[c]]...)
		train = append(train, shuffled[alloc[c]:]...)
	}
	rng.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })
	rng.Shuffle(len(test), func(a, b int) { test[a], test[b] = test[b], test[a] })
	return train, test, nil
}

// StratifiedKFold deals shuffled rows of each class round-robin over k
// folds so every fold keeps the class proportions.
func StratifiedKFold(y []int, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("number of folds must be at least 2, got %d", k)
	}
	if k > len(y) {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, len(y))
	}
	rng := rand.New(rand.NewSource(seed))

	assignment := make([]int, len(y))
	pos := 0
	for _, g := range classIndices(y) {
		shuffled := append([]int(nil), g...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		for _, i := range shuffled {
			assignment[i] = pos % k
			pos++
		}
	}

	folds := make([]Fold, k)
	for i, f := range assignment {
		for j := range folds {
			if j == f {
				folds[j].Test = append(folds[j].Test, i)
			} else {
				folds[j].Train = append(folds[j].Train, i)
			}
		}
	}
	return folds, nil
}

// Take selects rows of X and y by index
func Take(X [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = X[j]
		ys[i] = y[j]
	}
	return xs, ys
}
