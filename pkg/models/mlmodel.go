package models

import (
	"fmt"
	"time"
)

// ModelType represents the type of ML model
type ModelType string

const (
	ModelTypeRandomForest ModelType = "random_forest"
	ModelTypeDecisionTree ModelType = "decision_tree"
)

// ModelStatus represents the current status of an ML model
type ModelStatus string

const (
	ModelStatusTraining   ModelStatus = "training"   // Model is currently training
	ModelStatusTrained    ModelStatus = "trained"    // Model training completed successfully
	ModelStatusFailed     ModelStatus = "failed"     // Model training failed
	ModelStatusDeprecated ModelStatus = "deprecated" // Superseded by a newer artifact
)

// MLModel is the registry entry for one trained model artifact
type MLModel struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Type               ModelType              `json:"type"`
	Status             ModelStatus            `json:"status"`
	Version            string                 `json:"version"`
	ArtifactPath       string                 `json:"artifact_path,omitempty"`
	DataPath           string                 `json:"data_path,omitempty"`
	TrainingConfig     *TrainingConfig        `json:"training_config,omitempty"`
	TrainingMetrics    *TrainingMetrics       `json:"training_metrics,omitempty"`
	PerformanceMetrics *PerformanceMetrics    `json:"performance_metrics,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
	TrainedAt          *time.Time             `json:"trained_at,omitempty"`
}

// TrainingConfig holds configuration for model training
type TrainingConfig struct {
	TestSize        float64 `json:"test_size" yaml:"test_size"` // e.g., 0.2 for 80% training, 20% testing
	RandomSeed      int64   `json:"random_seed" yaml:"random_seed"`
	Stratify        bool    `json:"stratify" yaml:"stratify"`
	UseSMOTE        bool    `json:"use_smote" yaml:"use_smote"`
	SMOTENeighbors  int     `json:"smote_neighbors,omitempty" yaml:"smote_neighbors"`
	GridSearch      bool    `json:"grid_search" yaml:"grid_search"`
	CVFolds         int     `json:"cv_folds,omitempty" yaml:"cv_folds"`
	NEstimators     int     `json:"n_estimators,omitempty" yaml:"n_estimators"`
	MaxDepth        int     `json:"max_depth,omitempty" yaml:"max_depth"` // 0 means unlimited
	MinSamplesSplit int     `json:"min_samples_split,omitempty" yaml:"min_samples_split"`
	ClassWeight     string  `json:"class_weight,omitempty" yaml:"class_weight"`
	Scale           bool    `json:"scale" yaml:"scale"`
	LabelColumn     string  `json:"label_column" yaml:"label_column"`
}

// DefaultTrainingConfig mirrors the settings used for the published CKD model.
func DefaultTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		TestSize:        0.2,
		RandomSeed:      42,
		Stratify:        true,
		UseSMOTE:        true,
		SMOTENeighbors:  5,
		GridSearch:      true,
		CVFolds:         5,
		NEstimators:     100,
		MinSamplesSplit: 2,
		ClassWeight:     "balanced",
		Scale:           true,
		LabelColumn:     "class",
	}
}

// Validate checks if the TrainingConfig is usable
func (c *TrainingConfig) Validate() error {
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return fmt.Errorf("test_size must be in (0, 1), got %v", c.TestSize)
	}
	if c.GridSearch && c.CVFolds < 2 {
		return fmt.Errorf("cv_folds must be at least 2 for grid search, got %d", c.CVFolds)
	}
	if !c.GridSearch && c.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", c.NEstimators)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.ClassWeight != "" && c.ClassWeight != "balanced" {
		return fmt.Errorf("invalid class_weight: %s", c.ClassWeight)
	}
	if c.LabelColumn == "" {
		return fmt.Errorf("label_column is required")
	}
	return nil
}

// TrainingMetrics holds metrics collected during training
type TrainingMetrics struct {
	TrainingSamples   int                    `json:"training_samples"`
	ResampledSamples  int                    `json:"resampled_samples,omitempty"`
	TestSamples       int                    `json:"test_samples"`
	TrainingAccuracy  float64                `json:"training_accuracy,omitempty"`
	CVScore           float64                `json:"cv_score,omitempty"`
	BestParams        map[string]int         `json:"best_params,omitempty"`
	Duration          string                 `json:"duration,omitempty"`
	AdditionalMetrics map[string]interface{} `json:"additional_metrics,omitempty"`
}

// ClassMetrics holds per-class classification scores
type ClassMetrics struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1Score   float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

// PerformanceMetrics holds model performance metrics on held-out data
type PerformanceMetrics struct {
	Accuracy          float64            `json:"accuracy"`
	Precision         float64            `json:"precision"` // macro average
	Recall            float64            `json:"recall"`    // macro average
	F1Score           float64            `json:"f1_score"`  // macro average
	Classes           []string           `json:"classes,omitempty"`
	PerClass          []ClassMetrics     `json:"per_class,omitempty"`
	ConfusionMatrix   [][]int            `json:"confusion_matrix,omitempty"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
}
