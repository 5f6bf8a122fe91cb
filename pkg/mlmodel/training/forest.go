package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ClassWeightBalanced weights classes inversely to their frequency
const ClassWeightBalanced = "balanced"

// ForestParams configures a random forest
type ForestParams struct {
	NEstimators     int    `json:"n_estimators"`
	MaxDepth        int    `json:"max_depth"` // 0 means unlimited
	MinSamplesSplit int    `json:"min_samples_split"`
	MaxFeatures     int    `json:"max_features"` // 0 selects sqrt(n_features)
	Bootstrap       bool   `json:"bootstrap"`
	ClassWeight     string `json:"class_weight,omitempty"`
	Seed            int64  `json:"seed"`
	Workers         int    `json:"-"` // concurrent tree fits, 0 means GOMAXPROCS
}

// DefaultForestParams returns the forest used when grid search is disabled
func DefaultForestParams() ForestParams {
	return ForestParams{
		NEstimators:     100,
		MinSamplesSplit: 2,
		Bootstrap:       true,
		ClassWeight:     ClassWeightBalanced,
		Seed:            42,
	}
}

// RandomForest is a bagged ensemble of decision trees whose probabilities
// are averaged.
type RandomForest struct {
	Params     ForestParams    `json:"params"`
	NClasses   int             `json:"n_classes"`
	NFeatures  int             `json:"n_features"`
	Trees      []*DecisionTree `json:"trees"`
	Importance []float64       `json:"importance"`
}

// NewRandomForest creates an unfitted forest
func NewRandomForest(params ForestParams) *RandomForest {
	return &RandomForest{Params: params}
}

// ClassWeights returns per-sample weights for the given labels
func ClassWeights(y []int, nClasses int, mode string) []float64 {
	w := make([]float64, len(y))
	if mode != ClassWeightBalanced {
		for i := range w {
			w[i] = 1
		}
		return w
	}

	counts := make([]int, nClasses)
	for _, c := range y {
		counts[c]++
	}
	present := 0
	for _, n := range counts {
		if n > 0 {
			present++
		}
	}
	for i, c := range y {
		w[i] = float64(len(y)) / (float64(present) * float64(counts[c]))
	}
	return w
}

// Fit trains the trees concurrently. Tree i draws from its own generator
// seeded with Seed+i so results do not depend on scheduling.
func (f *RandomForest) Fit(ctx context.Context, X [][]float64, y []int, nClasses int) error {
	p := f.Params
	if p.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", p.NEstimators)
	}
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("invalid training data: %d rows, %d labels", len(X), len(y))
	}
	for i, c := range y {
		if c < 0 || c >= nClasses {
			return fmt.Errorf("row %d has label %d outside [0, %d)", i, c, nClasses)
		}
	}

	nFeatures := len(X[0])
	maxFeatures := p.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(nFeatures))))
	}
	classWeights := ClassWeights(y, nClasses, p.ClassWeight)

	trees := make([]*DecisionTree, p.NEstimators)
	g, ctx := errgroup.WithContext(ctx)
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)

	for i := range trees {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(p.Seed + int64(i)))

			w := make([]float64, len(y))
			if p.Bootstrap {
				for range y {
					j := rng.Intn(len(y))
					w[j] += classWeights[j]
				}
			} else {
				copy(w, classWeights)
			}

			tree := NewDecisionTree(TreeParams{
				MaxDepth:        p.MaxDepth,
				MinSamplesSplit: p.MinSamplesSplit,
				MaxFeatures:     maxFeatures,
			})
			if err := tree.Fit(X, y, w, nClasses, rng); err != nil {
				return fmt.Errorf("tree %d: %w", i, err)
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.NClasses = nClasses
	f.NFeatures = nFeatures
	f.Trees = trees
	f.Importance = make([]float64, nFeatures)
	var total float64
	for _, t := range trees {
		for j, v := range t.Importance {
			f.Importance[j] += v
			total += v
		}
	}
	if total > 0 {
		for j := range f.Importance {
			f.Importance[j] /= total
		}
	}
	return nil
}

// PredictProba averages the leaf distributions of all trees
func (f *RandomForest) PredictProba(x []float64) []float64 {
	proba := make([]float64, f.NClasses)
	if len(f.Trees) == 0 {
		return proba
	}
	for _, t := range f.Trees {
		for c, v := range t.PredictProba(x) {
			proba[c] += v
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.Trees))
	}
	return proba
}

// Predict returns the class with the highest averaged probability
func (f *RandomForest) Predict(x []float64) int {
	return argmax(f.PredictProba(x))
}

// PredictAll predicts every row of X
func (f *RandomForest) PredictAll(X [][]float64) []int {
	out := make([]int, len(X))
	for i, x := range X {
		out[i] = f.Predict(x)
	}
	return out
}

// Fitted reports whether the forest holds trained trees
func (f *RandomForest) Fitted() bool {
	return len(f.Trees) > 0 && f.NClasses > 0
}
