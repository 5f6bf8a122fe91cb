package training

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// Trainer interface defines the contract for ML model training
type Trainer interface {
	// Train fits a model on the training rows and scores it on the test rows
	Train(ctx context.Context, data *TrainingData, config *models.TrainingConfig) (*TrainingResult, error)

	// GetType returns the model type this trainer handles
	GetType() models.ModelType
}

// TrainingData holds preprocessed, encoded data for training and validation
type TrainingData struct {
	TrainFeatures [][]float64 // Training features (rows x features)
	TrainLabels   []int       // Training class codes
	TestFeatures  [][]float64 // Test features
	TestLabels    []int       // Test class codes
	FeatureNames  []string    // Names of features
	Classes       []string    // Class label per code
}

// Validate checks shapes and label ranges
func (d *TrainingData) Validate() error {
	if len(d.TrainFeatures) == 0 {
		return fmt.Errorf("no training data provided")
	}
	if len(d.TrainFeatures) != len(d.TrainLabels) {
		return fmt.Errorf("training features and labels differ in length: %d vs %d", len(d.TrainFeatures), len(d.TrainLabels))
	}
	if len(d.TestFeatures) != len(d.TestLabels) {
		return fmt.Errorf("test features and labels differ in length: %d vs %d", len(d.TestFeatures), len(d.TestLabels))
	}
	if len(d.Classes) < 2 {
		return fmt.Errorf("at least two classes are required, got %d", len(d.Classes))
	}
	if len(d.FeatureNames) != len(d.TrainFeatures[0]) {
		return fmt.Errorf("%d feature names for %d columns", len(d.FeatureNames), len(d.TrainFeatures[0]))
	}
	return nil
}

// TrainingResult holds the results of model training
type TrainingResult struct {
	Model              *RandomForest              // Trained model
	TrainingMetrics    *models.TrainingMetrics    // Metrics during training
	PerformanceMetrics *models.PerformanceMetrics // Final performance on test set
	GridSearch         *GridSearchResult          // Set when hyperparameters were searched
}

// RandomForestTrainer balances the training rows with SMOTE, optionally
// searches the hyperparameter grid and fits a class-weighted forest.
type RandomForestTrainer struct {
	Grid   ParamGrid
	Logger *logrus.Logger
}

// NewRandomForestTrainer creates a new random forest trainer
func NewRandomForestTrainer(logger *logrus.Logger) *RandomForestTrainer {
	return &RandomForestTrainer{Grid: DefaultParamGrid(), Logger: logger}
}

// Train trains a random forest model
func (t *RandomForestTrainer) Train(ctx context.Context, data *TrainingData, config *models.TrainingConfig) (*TrainingResult, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if config == nil {
		config = models.DefaultTrainingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training config: %w", err)
	}
	logger := t.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	start := time.Now()

	X, y := data.TrainFeatures, data.TrainLabels
	if config.UseSMOTE {
		k := config.SMOTENeighbors
		if k <= 0 {
			k = 5
		}
		var err error
		X, y, err = SMOTE(X, y, k, config.RandomSeed)
		if err != nil {
			return nil, fmt.Errorf("failed to resample training data: %w", err)
		}
		logger.WithFields(logrus.Fields{
			"before": len(data.TrainLabels),
			"after":  len(y),
		}).Info("Balanced training data with SMOTE")
	}

	base := ForestParams{
		NEstimators:     config.NEstimators,
		MaxDepth:        config.MaxDepth,
		MinSamplesSplit: config.MinSamplesSplit,
		Bootstrap:       true,
		ClassWeight:     config.ClassWeight,
		Seed:            config.RandomSeed,
	}
	if base.NEstimators <= 0 {
		base.NEstimators = 100
	}

	result := &TrainingResult{}
	metrics := &models.TrainingMetrics{
		TrainingSamples: len(data.TrainLabels),
		TestSamples:     len(data.TestLabels),
	}
	if config.UseSMOTE {
		metrics.ResampledSamples = len(y)
	}

	if config.GridSearch {
		search := &GridSearch{Grid: t.Grid, Folds: config.CVFolds, Seed: config.RandomSeed, Logger: logger}
		gs, err := search.Run(ctx, X, y, len(data.Classes), base)
		if err != nil {
			return nil, fmt.Errorf("grid search failed: %w", err)
		}
		result.Model = gs.Model
		result.GridSearch = gs
		metrics.CVScore = gs.BestScore
		metrics.BestParams = gs.BestParamsMap()
	} else {
		forest := NewRandomForest(base)
		if err := forest.Fit(ctx, X, y, len(data.Classes)); err != nil {
			return nil, fmt.Errorf("failed to fit forest: %w", err)
		}
		result.Model = forest
	}

	metrics.TrainingAccuracy = Accuracy(y, result.Model.PredictAll(X))
	metrics.Duration = time.Since(start).Round(time.Millisecond).String()
	result.TrainingMetrics = metrics

	if len(data.TestLabels) > 0 {
		perf, err := Evaluate(data.TestLabels, result.Model.PredictAll(data.TestFeatures), data.Classes)
		if err != nil {
			return nil, err
		}
		perf.FeatureImportance = ImportanceMap(result.Model, data.FeatureNames)
		result.PerformanceMetrics = perf
	}
	return result, nil
}

// GetType returns the model type
func (t *RandomForestTrainer) GetType() models.ModelType {
	return models.ModelTypeRandomForest
}

// DecisionTreeTrainer fits a single tree on all features without bootstrapping
type DecisionTreeTrainer struct {
	Logger *logrus.Logger
}

// NewDecisionTreeTrainer creates a new decision tree trainer
func NewDecisionTreeTrainer(logger *logrus.Logger) *DecisionTreeTrainer {
	return &DecisionTreeTrainer{Logger: logger}
}

// Train trains a decision tree model
func (t *DecisionTreeTrainer) Train(ctx context.Context, data *TrainingData, config *models.TrainingConfig) (*TrainingResult, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if config == nil {
		config = models.DefaultTrainingConfig()
	}
	start := time.Now()

	forest := NewRandomForest(ForestParams{
		NEstimators:     1,
		MaxDepth:        config.MaxDepth,
		MinSamplesSplit: config.MinSamplesSplit,
		MaxFeatures:     len(data.FeatureNames),
		ClassWeight:     config.ClassWeight,
		Seed:            config.RandomSeed,
	})
	if err := forest.Fit(ctx, data.TrainFeatures, data.TrainLabels, len(data.Classes)); err != nil {
		return nil, fmt.Errorf("failed to fit tree: %w", err)
	}

	result := &TrainingResult{
		Model: forest,
		TrainingMetrics: &models.TrainingMetrics{
			TrainingSamples:  len(data.TrainLabels),
			TestSamples:      len(data.TestLabels),
			TrainingAccuracy: Accuracy(data.TrainLabels, forest.PredictAll(data.TrainFeatures)),
			Duration:         time.Since(start).Round(time.Millisecond).String(),
		},
	}
	if len(data.TestLabels) > 0 {
		perf, err := Evaluate(data.TestLabels, forest.PredictAll(data.TestFeatures), data.Classes)
		if err != nil {
			return nil, err
		}
		perf.FeatureImportance = ImportanceMap(forest, data.FeatureNames)
		result.PerformanceMetrics = perf
	}
	return result, nil
}

// GetType returns the model type
func (t *DecisionTreeTrainer) GetType() models.ModelType {
	return models.ModelTypeDecisionTree
}

// ImportanceMap names the forest's impurity-based importances
func ImportanceMap(f *RandomForest, names []string) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, n := range names {
		if i < len(f.Importance) {
			out[n] = f.Importance[i]
		}
	}
	return out
}

// TrainerFactory creates trainers for different model types
type TrainerFactory struct {
	trainers map[models.ModelType]Trainer
}

// NewTrainerFactory creates a new trainer factory
func NewTrainerFactory(logger *logrus.Logger) *TrainerFactory {
	factory := &TrainerFactory{
		trainers: make(map[models.ModelType]Trainer),
	}

	// Register trainers for each model type
	factory.trainers[models.ModelTypeRandomForest] = NewRandomForestTrainer(logger)
	factory.trainers[models.ModelTypeDecisionTree] = NewDecisionTreeTrainer(logger)

	return factory
}

// GetTrainer returns the appropriate trainer for a model type
func (f *TrainerFactory) GetTrainer(modelType models.ModelType) (Trainer, error) {
	trainer, ok := f.trainers[modelType]
	if !ok {
		return nil, fmt.Errorf("no trainer available for model type: %s", modelType)
	}
	return trainer, nil
}
