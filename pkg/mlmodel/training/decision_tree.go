package training

import (
	"fmt"
	"math/rand"
	"sort"
)

// TreeParams controls the growth of a single classification tree
type TreeParams struct {
	MaxDepth        int `json:"max_depth"`         // 0 means unlimited
	MinSamplesSplit int `json:"min_samples_split"` // minimum samples to split an internal node
	MaxFeatures     int `json:"max_features"`      // features tried per split, 0 means all
}

// Node is a decision tree node. Leaves carry the class distribution of the
// training samples that reached them.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      *Node     `json:"l,omitempty"`
	Right     *Node     `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

// IsLeaf reports whether the node has no children
func (n *Node) IsLeaf() bool {
	return n.Left == nil || n.Right == nil
}

// DecisionTree is a CART classifier using weighted gini impurity
type DecisionTree struct {
	Params     TreeParams `json:"params"`
	NClasses   int        `json:"n_classes"`
	NFeatures  int        `json:"n_features"`
	Root       *Node      `json:"root"`
	Importance []float64  `json:"importance"`
}

// NewDecisionTree creates an unfitted tree
func NewDecisionTree(params TreeParams) *DecisionTree {
	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}
	return &DecisionTree{Params: params}
}

// treeBuilder holds the state of one fit
type treeBuilder struct {
	tree   *DecisionTree
	X      [][]float64
	y      []int
	w      []float64
	rng    *rand.Rand
	gains  []float64
	counts []float64
}

// Fit grows the tree on the rows of X. w holds per-sample weights (class
// weight times bootstrap multiplicity); rows with zero weight are ignored.
func (t *DecisionTree) Fit(X [][]float64, y []int, w []float64, nClasses int, rng *rand.Rand) error {
	if len(X) == 0 {
		return fmt.Errorf("no training data provided")
	}
	if len(X) != len(y) || len(y) != len(w) {
		return fmt.Errorf("features, labels and weights differ in length: %d, %d, %d", len(X), len(y), len(w))
	}
	if nClasses < 1 {
		return fmt.Errorf("at least one class is required")
	}

	t.NClasses = nClasses
	t.NFeatures = len(X[0])
	b := &treeBuilder{
		tree:   t,
		X:      X,
		y:      y,
		w:      w,
		rng:    rng,
		gains:  make([]float64, t.NFeatures),
		counts: make([]float64, nClasses),
	}

	idx := make([]int, 0, len(X))
	for i := range X {
		if len(X[i]) != t.NFeatures {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(X[i]), t.NFeatures)
		}
		if y[i] < 0 || y[i] >= nClasses {
			return fmt.Errorf("row %d has label %d outside [0, %d)", i, y[i], nClasses)
		}
		if w[i] > 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return fmt.Errorf("all sample weights are zero")
	}

	t.Root = b.build(idx, 0)

	var total float64
	for _, g := range b.gains {
		total += g
	}
	t.Importance = make([]float64, t.NFeatures)
	if total > 0 {
		for f, g := range b.gains {
			t.Importance[f] = g / total
		}
	}
	return nil
}

// distribution returns weighted class totals over idx and their sum
func (b *treeBuilder) distribution(idx []int) ([]float64, float64) {
	dist := make([]float64, b.tree.NClasses)
	var total float64
	for _, i := range idx {
		dist[b.y[i]] += b.w[i]
		total += b.w[i]
	}
	return dist, total
}

func (b *treeBuilder) build(idx []int, depth int) *Node {
	dist, total := b.distribution(idx)
	impurity := gini(dist, total)

	p := b.tree.Params
	if impurity == 0 || len(idx) < p.MinSamplesSplit || (p.MaxDepth > 0 && depth >= p.MaxDepth) {
		return leaf(dist, total)
	}

	feature, threshold, childImpurity, ok := b.bestSplit(idx, total)
	if !ok || impurity*total-childImpurity <= 1e-12 {
		return leaf(dist, total)
	}
	b.gains[feature] += impurity*total - childImpurity

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}

// bestSplit sweeps sorted values of a random feature subset and returns the
// split minimising total weighted child impurity.
func (b *treeBuilder) bestSplit(idx []int, total float64) (int, float64, float64, bool) {
	nf := b.tree.NFeatures
	k := b.tree.Params.MaxFeatures
	if k <= 0 || k > nf {
		k = nf
	}
	features := b.rng.Perm(nf)[:k]

	sorted := make([]int, len(idx))
	left := b.counts
	bestFeature, bestThreshold, bestScore, found := 0, 0.0, 0.0, false

	for _, f := range features {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool { return b.X[sorted[a]][f] < b.X[sorted[c]][f] })

		for c := range left {
			left[c] = 0
		}
		right, _ := b.distribution(sorted)
		var leftTotal float64

		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			left[b.y[i]] += b.w[i]
			right[b.y[i]] -= b.w[i]
			leftTotal += b.w[i]

			cur, next := b.X[i][f], b.X[sorted[pos+1]][f]
			if cur == next {
				continue
			}
			rightTotal := total - leftTotal
			score := gini(left, leftTotal)*leftTotal + gini(right, rightTotal)*rightTotal
			if !found || score < bestScore {
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				bestScore = score
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, bestScore, found
}

func leaf(dist []float64, total float64) *Node {
	value := make([]float64, len(dist))
	if total > 0 {
		for c, v := range dist {
			value[c] = v / total
		}
	}
	return &Node{Value: value}
}

func gini(dist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	impurity := 1.0
	for _, v := range dist {
		p := v / total
		impurity -= p * p
	}
	return impurity
}

// PredictProba returns the class distribution of the leaf x falls into
func (t *DecisionTree) PredictProba(x []float64) []float64 {
	n := t.Root
	for n != nil && !n.IsLeaf() {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	if n == nil {
		return make([]float64, t.NClasses)
	}
	return n.Value
}

// Predict returns the most probable class
func (t *DecisionTree) Predict(x []float64) int {
	return argmax(t.PredictProba(x))
}

// Depth returns the depth of the fitted tree
func (t *DecisionTree) Depth() int {
	var depth func(n *Node) int
	depth = func(n *Node) int {
		if n == nil || n.IsLeaf() {
			return 0
		}
		return 1 + max(depth(n.Left), depth(n.Right))
	}
	return depth(t.Root)
}

// argmax returns the first index of the largest value
func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
