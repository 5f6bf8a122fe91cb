package training

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// blobs generates two noisy, imbalanced clusters; class 0 has n0 rows.
func blobs(n0, n1 int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	var X [][]float64
	var y []int
	for i := 0; i < n0+n1; i++ {
		c := 0
		center := 0.0
		if i >= n0 {
			c = 1
			center = 3.0
		}
		X = append(X, []float64{
			center + rng.NormFloat64(),
			center + rng.NormFloat64(),
			rng.NormFloat64(), // noise
			rng.NormFloat64(), // noise
		})
		y = append(y, c)
	}
	return X, y
}

func TestDecisionTreeSeparable(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {10}, {11}, {12}}
	y := []int{0, 0, 0, 1, 1, 1}
	w := []float64{1, 1, 1, 1, 1, 1}

	tree := NewDecisionTree(TreeParams{})
	require.NoError(t, tree.Fit(X, y, w, 2, rand.New(rand.NewSource(1))))

	assert.Equal(t, 1, tree.Depth())
	assert.InDelta(t, 6.5, tree.Root.Threshold, 1e-9)
	assert.Equal(t, 0, tree.Predict([]float64{0}))
	assert.Equal(t, 1, tree.Predict([]float64{20}))
	assert.Equal(t, []float64{1}, tree.Importance)
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	X, y := blobs(50, 50, 3)
	w := make([]float64, len(y))
	for i := range w {
		w[i] = 1
	}

	tree := NewDecisionTree(TreeParams{MaxDepth: 2})
	require.NoError(t, tree.Fit(X, y, w, 2, rand.New(rand.NewSource(1))))
	assert.LessOrEqual(t, tree.Depth(), 2)

	proba := tree.PredictProba(X[0])
	assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-9)
}

func TestDecisionTreeRejectsBadInput(t *testing.T) {
	tree := NewDecisionTree(TreeParams{})
	rng := rand.New(rand.NewSource(1))

	assert.Error(t, tree.Fit(nil, nil, nil, 2, rng))
	assert.Error(t, tree.Fit([][]float64{{1}}, []int{2}, []float64{1}, 2, rng))
	assert.Error(t, tree.Fit([][]float64{{1}}, []int{0}, []float64{0}, 2, rng))
}

func TestClassWeightsBalanced(t *testing.T) {
	w := ClassWeights([]int{0, 0, 0, 1}, 2, ClassWeightBalanced)
	assert.InDelta(t, 4.0/6.0, w[0], 1e-9)
	assert.InDelta(t, 2.0, w[3], 1e-9)

	uniform := ClassWeights([]int{0, 1}, 2, "")
	assert.Equal(t, []float64{1, 1}, uniform)
}

func TestRandomForestAccuracyBaseline(t *testing.T) {
	X, y := blobs(150, 90, 7)
	train, test, err := TrainTestSplit(y, 0.25, 42, true)
	require.NoError(t, err)
	trainX, trainY := Take(X, y, train)
	testX, testY := Take(X, y, test)

	forest := NewRandomForest(DefaultForestParams())
	require.NoError(t, forest.Fit(context.Background(), trainX, trainY, 2))

	acc := Accuracy(testY, forest.PredictAll(testX))
	assert.GreaterOrEqual(t, acc, 0.85)

	// informative features dominate the noise
	assert.Greater(t, forest.Importance[0]+forest.Importance[1], forest.Importance[2]+forest.Importance[3])
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := blobs(40, 20, 11)
	params := DefaultForestParams()
	params.NEstimators = 20

	a := NewRandomForest(params)
	require.NoError(t, a.Fit(context.Background(), X, y, 2))
	params.Workers = 1
	b := NewRandomForest(params)
	require.NoError(t, b.Fit(context.Background(), X, y, 2))

	for _, x := range X {
		assert.Equal(t, a.PredictProba(x), b.PredictProba(x))
	}
}

func TestRandomForestCancelled(t *testing.T) {
	X, y := blobs(20, 20, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewRandomForest(DefaultForestParams()).Fit(ctx, X, y, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainTestSplitStratified(t *testing.T) {
	y := make([]int, 100)
	for i := 75; i < 100; i++ {
		y[i] = 1
	}

	train, test, err := TrainTestSplit(y, 0.2, 42, true)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	positives := 0
	for _, i := range test {
		positives += y[i]
	}
	assert.Equal(t, 5, positives)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v)
	}

	train2, test2, err := TrainTestSplit(y, 0.2, 42, true)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)
}

func TestTrainTestSplitInvalid(t *testing.T) {
	_, _, err := TrainTestSplit([]int{0, 1}, 1.5, 1, false)
	assert.Error(t, err)
	_, _, err = TrainTestSplit([]int{0}, 0.5, 1, false)
	assert.Error(t, err)
}

func TestStratifiedKFold(t *testing.T) {
	y := make([]int, 50)
	for i := 40; i < 50; i++ {
		y[i] = 1
	}

	folds, err := StratifiedKFold(y, 5, 42)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.Len(t, f.Test, 10)
		assert.Len(t, f.Train, 40)
		positives := 0
		for _, i := range f.Test {
			seen[i]++
			positives += y[i]
		}
		assert.Equal(t, 2, positives)
	}
	assert.Len(t, seen, 50)

	_, err = StratifiedKFold(y, 1, 42)
	assert.Error(t, err)
}

func TestSMOTEBalancesClasses(t *testing.T) {
	X := [][]float64{{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 4}, {10, 10}, {11, 11}}
	y := []int{0, 0, 0, 0, 0, 1, 1}

	outX, outY, err := SMOTE(X, y, 5, 42)
	require.NoError(t, err)
	assert.Len(t, outY, 10)

	counts := map[int]int{}
	for _, c := range outY {
		counts[c]++
	}
	assert.Equal(t, 5, counts[0])
	assert.Equal(t, 5, counts[1])

	// synthetic rows lie on the segment between the two minority samples
	for i := len(X); i < len(outX); i++ {
		assert.Equal(t, 1, outY[i])
		assert.GreaterOrEqual(t, outX[i][0], 10.0)
		assert.LessOrEqual(t, outX[i][0], 11.0)
		assert.InDelta(t, outX[i][0], outX[i][1], 1e-9)
	}
}

func TestSMOTESingleSampleDuplicates(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {9}}
	y := []int{0, 0, 0, 1}

	outX, outY, err := SMOTE(X, y, 5, 1)
	require.NoError(t, err)
	assert.Len(t, outY, 6)
	assert.Equal(t, []float64{9}, outX[4])
	assert.Equal(t, []float64{9}, outX[5])
}

func TestParamGridCandidates(t *testing.T) {
	cands := DefaultParamGrid().Candidates(DefaultForestParams())
	require.Len(t, cands, 12)
	assert.Equal(t, 0, cands[0].MaxDepth)
	assert.Equal(t, 100, cands[0].NEstimators)
	assert.Equal(t, 200, cands[1].NEstimators)
	assert.Equal(t, 20, cands[11].MaxDepth)
	assert.Equal(t, 5, cands[11].MinSamplesSplit)
	for _, c := range cands {
		assert.True(t, c.Bootstrap)
		assert.Equal(t, ClassWeightBalanced, c.ClassWeight)
	}
}

func TestGridSearchRun(t *testing.T) {
	X, y := blobs(40, 40, 5)
	search := &GridSearch{
		Grid:  ParamGrid{NEstimators: []int{5, 10}, MaxDepth: []int{0, 2}},
		Folds: 3,
		Seed:  42,
	}

	result, err := search.Run(context.Background(), X, y, 2, DefaultForestParams())
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 4)
	assert.True(t, result.Model.Fitted())
	assert.GreaterOrEqual(t, result.BestScore, 0.8)

	for _, c := range result.Candidates {
		assert.LessOrEqual(t, c.MeanScore, result.BestScore)
		assert.Len(t, c.Scores, 3)
	}
	assert.Contains(t, result.BestParamsMap(), "n_estimators")
}

func TestEvaluate(t *testing.T) {
	truth := []int{0, 0, 0, 1, 1}
	pred := []int{0, 0, 1, 1, 1}

	m, err := Evaluate(truth, pred, []string{"ckd", "notckd"})
	require.NoError(t, err)

	assert.InDelta(t, 0.8, m.Accuracy, 1e-9)
	assert.Equal(t, [][]int{{2, 1}, {0, 2}}, m.ConfusionMatrix)
	require.Len(t, m.PerClass, 2)
	assert.InDelta(t, 1.0, m.PerClass[0].Precision, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.PerClass[0].Recall, 1e-9)
	assert.Equal(t, 3, m.PerClass[0].Support)
	assert.InDelta(t, (1.0+2.0/3.0)/2, m.Precision, 1e-9)

	report := ClassificationReport(m)
	assert.Contains(t, report, "macro avg")
	assert.Contains(t, report, "notckd")

	grid := RenderConfusionMatrix(m)
	assert.Equal(t, 3, strings.Count(grid, "\n"))
}

func TestEvaluateEmptyClass(t *testing.T) {
	m, err := Evaluate([]int{0, 0}, []int{0, 0}, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.PerClass[1].Precision)
	assert.Equal(t, 0.0, m.PerClass[1].F1Score)

	_, err = Evaluate([]int{0}, []int{}, []string{"a"})
	assert.Error(t, err)
}

func TestRandomForestTrainer(t *testing.T) {
	X, y := blobs(120, 60, 9)
	train, test, err := TrainTestSplit(y, 0.2, 42, true)
	require.NoError(t, err)
	trainX, trainY := Take(X, y, train)
	testX, testY := Take(X, y, test)

	data := &TrainingData{
		TrainFeatures: trainX,
		TrainLabels:   trainY,
		TestFeatures:  testX,
		TestLabels:    testY,
		FeatureNames:  []string{"a", "b", "n1", "n2"},
		Classes:       []string{"notckd", "ckd"},
	}
	config := models.DefaultTrainingConfig()
	config.GridSearch = false
	config.NEstimators = 30

	trainer := NewRandomForestTrainer(nil)
	result, err := trainer.Train(context.Background(), data, config)
	require.NoError(t, err)

	assert.Equal(t, 192, result.TrainingMetrics.ResampledSamples)
	assert.GreaterOrEqual(t, result.PerformanceMetrics.Accuracy, 0.85)
	assert.Len(t, result.PerformanceMetrics.FeatureImportance, 4)
	assert.Nil(t, result.GridSearch)
}

func TestTrainerFactory(t *testing.T) {
	f := NewTrainerFactory(nil)

	tr, err := f.GetTrainer(models.ModelTypeRandomForest)
	require.NoError(t, err)
	assert.Equal(t, models.ModelTypeRandomForest, tr.GetType())

	tr, err = f.GetTrainer(models.ModelTypeDecisionTree)
	require.NoError(t, err)
	assert.Equal(t, models.ModelTypeDecisionTree, tr.GetType())

	_, err = f.GetTrainer("neural_network")
	assert.Error(t, err)
}

func TestPlots(t *testing.T) {
	assert.True(t, IsImagePath("out/cm.PNG"))
	assert.True(t, IsImagePath("cm.svg"))
	assert.False(t, IsImagePath("cm.txt"))
	assert.False(t, IsImagePath("cm"))

	dir := t.TempDir()
	m := &models.PerformanceMetrics{
		Classes:           []string{"ckd", "notckd"},
		ConfusionMatrix:   [][]int{{48, 2}, {1, 29}},
		FeatureImportance: map[string]float64{"sc": 0.4, "hemo": 0.35, "al": 0.25},
	}
	require.NoError(t, SaveConfusionMatrixPlot(m, filepath.Join(dir, "cm.png")))
	require.NoError(t, SaveImportancePlot(m.FeatureImportance, 2, filepath.Join(dir, "fi.png")))

	_, err := os.Stat(filepath.Join(dir, "cm.png"))
	assert.NoError(t, err)

	single := &models.PerformanceMetrics{Classes: []string{"ckd"}, ConfusionMatrix: [][]int{{3}}}
	assert.Error(t, SaveConfusionMatrixPlot(single, filepath.Join(dir, "bad.png")))
	assert.Error(t, SaveImportancePlot(nil, 5, filepath.Join(dir, "empty.png")))
}
