package mlmodel

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ckd-aip/ckd-aip-go/pkg/dataset"
	"github.com/ckd-aip/ckd-aip-go/pkg/metadatastore"
	"github.com/ckd-aip/ckd-aip-go/pkg/mlmodel/training"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
	"github.com/ckd-aip/ckd-aip-go/pkg/preprocess"
)

// Service manages ML model training, evaluation and the model registry
type Service struct {
	store   metadatastore.MetadataStore
	factory *training.TrainerFactory
	logger  *logrus.Logger
}

// NewService creates a new ML model service. store may be nil, in which
// case trained models are not registered.
func NewService(store metadatastore.MetadataStore, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		store:   store,
		factory: training.NewTrainerFactory(logger),
		logger:  logger,
	}
}

// TrainRequest describes one training run
type TrainRequest struct {
	Name       string
	Type       models.ModelType
	DataPath   string // recorded in the registry
	OutputPath string
	Config     *models.TrainingConfig
}

// Train fits a model on t, writes the artifact to req.OutputPath and records
// the run in the model registry.
func (s *Service) Train(ctx context.Context, t *dataset.Table, req *TrainRequest) (*Artifact, *models.MLModel, error) {
	config := req.Config
	if config == nil {
		config = models.DefaultTrainingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid training config: %w", err)
	}
	if req.OutputPath == "" {
		return nil, nil, fmt.Errorf("output path is required")
	}
	modelType := req.Type
	if modelType == "" {
		modelType = models.ModelTypeRandomForest
	}
	trainer, err := s.factory.GetTrainer(modelType)
	if err != nil {
		return nil, nil, err
	}

	model := s.startTraining(req, modelType, config)

	artifact, err := s.train(ctx, t, trainer, config)
	if err != nil {
		s.failTraining(model, err)
		return nil, nil, err
	}
	artifact.ID = model.ID
	artifact.Name = model.Name
	artifact.Type = modelType

	if err := artifact.Save(req.OutputPath); err != nil {
		s.failTraining(model, err)
		return nil, nil, err
	}
	s.completeTraining(model, artifact, req.OutputPath)

	s.logger.WithFields(logrus.Fields{
		"model_id": model.ID,
		"accuracy": artifact.PerformanceMetrics.Accuracy,
		"path":     req.OutputPath,
	}).Info("Model trained")
	return artifact, model, nil
}

func (s *Service) train(ctx context.Context, t *dataset.Table, trainer training.Trainer, config *models.TrainingConfig) (*Artifact, error) {
	labelValues, err := t.Column(config.LabelColumn)
	if err != nil {
		return nil, fmt.Errorf("label column: %w", err)
	}
	labelValues = preprocess.ForwardFill(labelValues)

	labels := &preprocess.LabelEncoder{}
	y, err := labels.FitTransform(labelValues)
	if err != nil {
		return nil, fmt.Errorf("failed to encode labels: %w", err)
	}
	if len(labels.Classes) < 2 {
		return nil, fmt.Errorf("label column %s has a single class %v", config.LabelColumn, labels.Classes)
	}

	trainIdx, testIdx, err := training.TrainTestSplit(y, config.TestSize, config.RandomSeed, config.Stratify)
	if err != nil {
		return nil, fmt.Errorf("failed to split data: %w", err)
	}
	trainTable, err := t.Subset(trainIdx)
	if err != nil {
		return nil, err
	}
	testTable, err := t.Subset(testIdx)
	if err != nil {
		return nil, err
	}

	// the pipeline only sees training rows
	pipe := preprocess.NewPipeline(FeatureColumns(t, config.LabelColumn), config.Scale)
	trainX, err := pipe.FitTransform(trainTable)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess training data: %w", err)
	}
	testX, err := pipe.Transform(testTable)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess test data: %w", err)
	}

	trainY := make([]int, len(trainIdx))
	for i, j := range trainIdx {
		trainY[i] = y[j]
	}
	testY := make([]int, len(testIdx))
	for i, j := range testIdx {
		testY[i] = y[j]
	}

	s.logger.WithFields(logrus.Fields{
		"rows":     t.Len(),
		"train":    len(trainY),
		"test":     len(testY),
		"features": len(pipe.Features),
		"classes":  labels.Classes,
	}).Info("Prepared training data")

	result, err := trainer.Train(ctx, &training.TrainingData{
		TrainFeatures: trainX,
		TrainLabels:   trainY,
		TestFeatures:  testX,
		TestLabels:    testY,
		FeatureNames:  pipe.Features,
		Classes:       labels.Classes,
	}, config)
	if err != nil {
		return nil, fmt.Errorf("training failed: %w", err)
	}

	return &Artifact{
		FormatVersion:      ArtifactFormatVersion,
		LabelColumn:        config.LabelColumn,
		Classes:            labels.Classes,
		Pipeline:           pipe,
		Forest:             result.Model,
		TrainingConfig:     config,
		TrainingMetrics:    result.TrainingMetrics,
		PerformanceMetrics: result.PerformanceMetrics,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

// FeatureColumns returns every column of t except the label and its encoded
// copy, in table order.
func FeatureColumns(t *dataset.Table, label string) []string {
	var features []string
	for _, name := range t.Names() {
		if name == label || name == models.EncodedLabelColumn {
			continue
		}
		features = append(features, name)
	}
	return features
}

// Evaluate scores a loaded artifact against a labelled table
func (s *Service) Evaluate(a *Artifact, t *dataset.Table) (*models.PerformanceMetrics, error) {
	label := a.LabelColumn
	if label == "" {
		label = models.LabelColumn
	}
	values, err := t.Column(label)
	if err != nil {
		return nil, fmt.Errorf("label column: %w", err)
	}
	values = preprocess.ForwardFill(values)

	labels := &preprocess.LabelEncoder{Classes: a.Classes}
	truth := make([]int, len(values))
	for i, v := range values {
		code, err := labels.Lookup(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		truth[i] = code
	}

	X, err := a.Pipeline.Transform(t)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess evaluation data: %w", err)
	}
	metrics, err := training.Evaluate(truth, a.Forest.PredictAll(X), a.Classes)
	if err != nil {
		return nil, err
	}
	metrics.FeatureImportance = training.ImportanceMap(a.Forest, a.Pipeline.Features)
	return metrics, nil
}

// GetModel retrieves a registry entry by ID
func (s *Service) GetModel(id string) (*models.MLModel, error) {
	if s.store == nil {
		return nil, fmt.Errorf("model %s: %w", id, metadatastore.ErrNotFound)
	}
	model, err := s.store.GetMLModel(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return model, nil
}

// ListModels lists registered models, newest first
func (s *Service) ListModels() ([]*models.MLModel, error) {
	if s.store == nil {
		return []*models.MLModel{}, nil
	}
	list, err := s.store.ListMLModels()
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return list, nil
}

// startTraining creates the registry entry in the training state
func (s *Service) startTraining(req *TrainRequest, modelType models.ModelType, config *models.TrainingConfig) *models.MLModel {
	now := time.Now().UTC()
	name := req.Name
	if name == "" {
		name = "ckd-" + string(modelType)
	}
	model := &models.MLModel{
		ID:             uuid.New().String(),
		Name:           name,
		Type:           modelType,
		Status:         models.ModelStatusTraining,
		Version:        "1",
		DataPath:       req.DataPath,
		TrainingConfig: config,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if s.store == nil {
		return model
	}

	if existing, err := s.store.ListMLModels(); err == nil {
		model.Version = strconv.Itoa(len(existing) + 1)
	}
	if err := s.store.SaveMLModel(model); err != nil {
		s.logger.WithError(err).Warn("Failed to register model")
	}
	return model
}

// completeTraining marks the entry trained and deprecates older versions
func (s *Service) completeTraining(model *models.MLModel, artifact *Artifact, path string) {
	now := time.Now().UTC()
	model.Status = models.ModelStatusTrained
	model.ArtifactPath = path
	model.TrainingMetrics = artifact.TrainingMetrics
	model.PerformanceMetrics = artifact.PerformanceMetrics
	model.TrainedAt = &now
	model.UpdatedAt = now
	if s.store == nil {
		return
	}

	if previous, err := s.store.ListMLModels(); err == nil {
		for _, p := range previous {
			if p.ID != model.ID && p.Status == models.ModelStatusTrained && p.ArtifactPath == path {
				p.Status = models.ModelStatusDeprecated
				p.UpdatedAt = now
				if err := s.store.SaveMLModel(p); err != nil {
					s.logger.WithError(err).WithField("model_id", p.ID).Warn("Failed to deprecate model")
				}
			}
		}
	}
	if err := s.store.SaveMLModel(model); err != nil {
		s.logger.WithError(err).Warn("Failed to update model")
	}
}

// failTraining marks the entry failed
func (s *Service) failTraining(model *models.MLModel, cause error) {
	model.Status = models.ModelStatusFailed
	model.UpdatedAt = time.Now().UTC()
	if model.Metadata == nil {
		model.Metadata = make(map[string]interface{})
	}
	model.Metadata["failure_reason"] = cause.Error()
	if s.store == nil {
		return
	}
	if err := s.store.SaveMLModel(model); err != nil {
		s.logger.WithError(err).Warn("Failed to update model")
	}
}
