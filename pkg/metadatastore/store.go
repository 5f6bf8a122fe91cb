package metadatastore

import (
	"errors"
	"time"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// MetadataStore is the interface for screening service persistence.
// This stores the prediction history and the registry of trained models.
// Model artifacts themselves live on disk, not in the store.
type MetadataStore interface {
	// Prediction history operations
	SavePrediction(record *models.PredictionRecord) error
	GetPrediction(id string) (*models.PredictionRecord, error)
	ListPredictions(limit int) ([]*models.PredictionRecord, error)
	DeletePredictionsBefore(cutoff time.Time) (int64, error)

	// ML Model operations
	SaveMLModel(model *models.MLModel) error
	GetMLModel(id string) (*models.MLModel, error)
	GetLatestMLModel() (*models.MLModel, error)
	ListMLModels() ([]*models.MLModel, error)
	DeleteMLModel(id string) error

	Close() error
}
