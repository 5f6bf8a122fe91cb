package training

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ParamGrid lists candidate values per forest hyperparameter
type ParamGrid struct {
	NEstimators     []int `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        []int `json:"max_depth" yaml:"max_depth"` // 0 means unlimited
	MinSamplesSplit []int `json:"min_samples_split" yaml:"min_samples_split"`
}

// DefaultParamGrid is the 12-candidate grid searched during training
func DefaultParamGrid() ParamGrid {
	return ParamGrid{
		NEstimators:     []int{100, 200},
		MaxDepth:        []int{0, 10, 20},
		MinSamplesSplit: []int{2, 5},
	}
}

// Candidates expands the grid over base. max_depth varies slowest and
// n_estimators fastest.
func (g ParamGrid) Candidates(base ForestParams) []ForestParams {
	depths := orDefault(g.MaxDepth, base.MaxDepth)
	splits := orDefault(g.MinSamplesSplit, base.MinSamplesSplit)
	trees := orDefault(g.NEstimators, base.NEstimators)

	out := make([]ForestParams, 0, len(depths)*len(splits)*len(trees))
	for _, d := range depths {
		for _, s := range splits {
			for _, n := range trees {
				p := base
				p.MaxDepth = d
				p.MinSamplesSplit = s
				p.NEstimators = n
				out = append(out, p)
			}
		}
	}
	return out
}

func orDefault(values []int, def int) []int {
	if len(values) == 0 {
		return []int{def}
	}
	return values
}

// CandidateScore is the cross-validated accuracy of one candidate
type CandidateScore struct {
	Params    ForestParams `json:"params"`
	Scores    []float64    `json:"scores"`
	MeanScore float64      `json:"mean_score"`
}

// GridSearchResult holds the search outcome and the refitted best model
type GridSearchResult struct {
	Best       ForestParams     `json:"best"`
	BestScore  float64          `json:"best_score"`
	Candidates []CandidateScore `json:"candidates"`
	Model      *RandomForest    `json:"-"`
}

// BestParamsMap reports the chosen hyperparameters by name
func (r *GridSearchResult) BestParamsMap() map[string]int {
	return map[string]int{
		"n_estimators":      r.Best.NEstimators,
		"max_depth":         r.Best.MaxDepth,
		"min_samples_split": r.Best.MinSamplesSplit,
	}
}

// GridSearch runs an exhaustive stratified k-fold search scored by accuracy
type GridSearch struct {
	Grid    ParamGrid
	Folds   int
	Seed    int64
	Workers int // concurrent fold fits, 0 means GOMAXPROCS
	Logger  *logrus.Logger
}

// Run evaluates every candidate on every fold, picks the highest mean
// accuracy (earliest candidate on ties) and refits it on all of X.
func (s *GridSearch) Run(ctx context.Context, X [][]float64, y []int, nClasses int, base ForestParams) (*GridSearchResult, error) {
	folds, err := StratifiedKFold(y, s.Folds, s.Seed)
	if err != nil {
		return nil, err
	}
	candidates := s.Grid.Candidates(base)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("parameter grid is empty")
	}

	logger := s.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"folds":      len(folds),
	}).Info("Starting grid search")
	start := time.Now()

	scores := make([][]float64, len(candidates))
	for i := range scores {
		scores[i] = make([]float64, len(folds))
	}

	g, gctx := errgroup.WithContext(ctx)
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)

	for ci, cand := range candidates {
		for fi, fold := range folds {
			g.Go(func() error {
				p := cand
				p.Workers = 1
				trainX, trainY := Take(X, y, fold.Train)
				testX, testY := Take(X, y, fold.Test)

				forest := NewRandomForest(p)
				if err := forest.Fit(gctx, trainX, trainY, nClasses); err != nil {
					return fmt.Errorf("candidate %d fold %d: %w", ci, fi, err)
				}
				scores[ci][fi] = Accuracy(testY, forest.PredictAll(testX))
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &GridSearchResult{Candidates: make([]CandidateScore, len(candidates))}
	bestIdx := -1
	for i, cand := range candidates {
		var sum float64
		for _, v := range scores[i] {
			sum += v
		}
		mean := sum / float64(len(scores[i]))
		result.Candidates[i] = CandidateScore{Params: cand, Scores: scores[i], MeanScore: mean}
		if bestIdx < 0 || mean > result.BestScore {
			bestIdx = i
			result.BestScore = mean
		}
	}
	result.Best = candidates[bestIdx]

	logger.WithFields(logrus.Fields{
		"n_estimators":      result.Best.NEstimators,
		"max_depth":         result.Best.MaxDepth,
		"min_samples_split": result.Best.MinSamplesSplit,
		"cv_accuracy":       result.BestScore,
		"duration":          time.Since(start).Round(time.Millisecond),
	}).Info("Grid search complete")

	model := NewRandomForest(result.Best)
	if err := model.Fit(ctx, X, y, nClasses); err != nil {
		return nil, fmt.Errorf("failed to refit best candidate: %w", err)
	}
	result.Model = model
	return result, nil
}
