package mlmodel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ckd-aip/ckd-aip-go/pkg/mlmodel/training"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
	"github.com/ckd-aip/ckd-aip-go/pkg/preprocess"
)

// ArtifactFormatVersion is bumped whenever the artifact layout changes
const ArtifactFormatVersion = 1

// Artifact is everything needed to serve a trained model: the fitted
// preprocessing pipeline, the forest and the class names.
type Artifact struct {
	FormatVersion      int                        `json:"format_version"`
	ID                 string                     `json:"id"`
	Name               string                     `json:"name"`
	Type               models.ModelType           `json:"type"`
	LabelColumn        string                     `json:"label_column"`
	Classes            []string                   `json:"classes"`
	Pipeline           *preprocess.Pipeline       `json:"pipeline"`
	Forest             *training.RandomForest     `json:"forest"`
	TrainingConfig     *models.TrainingConfig     `json:"training_config,omitempty"`
	TrainingMetrics    *models.TrainingMetrics    `json:"training_metrics,omitempty"`
	PerformanceMetrics *models.PerformanceMetrics `json:"performance_metrics,omitempty"`
	CreatedAt          time.Time                  `json:"created_at"`
}

// Validate checks that the artifact can make predictions
func (a *Artifact) Validate() error {
	if a.FormatVersion != ArtifactFormatVersion {
		return fmt.Errorf("unsupported artifact format version %d", a.FormatVersion)
	}
	if a.Pipeline == nil || len(a.Pipeline.Features) == 0 {
		return fmt.Errorf("artifact has no preprocessing pipeline")
	}
	if a.Forest == nil || !a.Forest.Fitted() {
		return fmt.Errorf("artifact has no trained model")
	}
	if len(a.Classes) != a.Forest.NClasses {
		return fmt.Errorf("artifact lists %d classes but the model predicts %d", len(a.Classes), a.Forest.NClasses)
	}
	if a.Forest.NFeatures != len(a.Pipeline.Features) {
		return fmt.Errorf("model expects %d features but the pipeline produces %d", a.Forest.NFeatures, len(a.Pipeline.Features))
	}
	return nil
}

// Save writes the artifact as JSON, creating parent directories
func (a *Artifact) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	// write then rename so a serving process never reads a partial file
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return nil
}

// LoadArtifact reads and validates an artifact written by Save
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid artifact %s: %w", path, err)
	}
	return &a, nil
}

// PredictRecord returns class probabilities for one record keyed by dataset
// column name. Missing features are imputed by the pipeline.
func (a *Artifact) PredictRecord(rec map[string]string) ([]float64, error) {
	x, err := a.Pipeline.TransformRecord(rec)
	if err != nil {
		return nil, err
	}
	return a.Forest.PredictProba(x), nil
}

// ClassNames returns the label of each class code
func (a *Artifact) ClassNames() []string {
	return a.Classes
}

// ModelID identifies the artifact in the model registry
func (a *Artifact) ModelID() string {
	return a.ID
}
