package predictor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ckd-aip/ckd-aip-go/pkg/metadatastore"
	"github.com/ckd-aip/ckd-aip-go/pkg/mlmodel"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

// Model is a trained classifier that accepts a record keyed by dataset
// column name
type Model interface {
	PredictRecord(rec map[string]string) ([]float64, error)
	ClassNames() []string
	ModelID() string
}

// Confidence labels
const (
	ConfidenceHigh      = "High"
	ConfidenceMedium    = "Medium"
	ConfidenceLow       = "Low"
	ConfidenceRuleBased = "Rule-based"
)

// Prediction kinds recorded in the history
const (
	KindClinical = "clinical"
	KindFull     = "full"
)

// Service produces CKD predictions. The model is loaded once; when it is
// missing every request is answered by the rule-based assessment.
type Service struct {
	model   Model
	loadErr error
	store   metadatastore.MetadataStore
	logger  *logrus.Logger
	now     func() time.Time
}

// NewService wraps an already loaded model. model may be nil and store may
// be nil.
func NewService(model Model, store metadatastore.MetadataStore, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		model:  model,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// LoadService loads the artifact at path. A load failure is logged and the
// service stays on the rule-based fallback for its whole lifetime.
func LoadService(path string, store metadatastore.MetadataStore, logger *logrus.Logger) *Service {
	artifact, err := mlmodel.LoadArtifact(path)
	if err != nil {
		s := NewService(nil, store, logger)
		s.loadErr = err
		s.logger.WithError(err).WithField("path", path).Warn("Model not loaded, using rule-based predictions")
		return s
	}
	s := NewService(artifact, store, logger)
	s.logger.WithFields(logrus.Fields{
		"path":     path,
		"model_id": artifact.ID,
		"classes":  artifact.Classes,
	}).Info("Model loaded")
	return s
}

// UsingFallback reports whether predictions come from the rules only
func (s *Service) UsingFallback() bool {
	return s.model == nil
}

// Status describes the serving model
type Status struct {
	Loaded    bool     `json:"loaded"`
	Source    string   `json:"source"`
	ModelID   string   `json:"model_id,omitempty"`
	Classes   []string `json:"classes,omitempty"`
	LoadError string   `json:"load_error,omitempty"`
}

// Status reports which predictor is active
func (s *Service) Status() Status {
	if s.model == nil {
		st := Status{Source: string(models.SourceFallback)}
		if s.loadErr != nil {
			st.LoadError = s.loadErr.Error()
		}
		return st
	}
	return Status{
		Loaded:  true,
		Source:  string(models.SourceModel),
		ModelID: s.model.ModelID(),
		Classes: s.model.ClassNames(),
	}
}

// Predict screens the eight-field panel. A model error falls back to the
// rules for this request only.
func (s *Service) Predict(ctx context.Context, in *models.ClinicalInput) *models.PredictionResult {
	assessment := Assess(in)
	result := &models.PredictionResult{
		ID:          uuid.New().String(),
		RiskFactors: assessment.RiskFactors,
		Success:     true,
		CreatedAt:   s.now(),
	}

	proba, err := s.predictModel(in.Record())
	if err == nil {
		p := RiskProbability(s.model.ClassNames(), proba)
		result.Probability = round2(p * 100)
		result.Prediction = models.RiskLow
		if p >= 0.5 {
			result.Prediction = models.RiskHigh
		}
		result.Confidence = ConfidenceLabel(proba)
		result.Source = models.SourceModel
	} else {
		if s.model != nil {
			s.logger.WithError(err).Warn("Model prediction failed, using rule-based assessment")
		}
		result.Probability = assessment.Score
		result.Prediction = assessment.Level
		result.Confidence = ConfidenceRuleBased
		result.Source = models.SourceFallback
	}

	s.record(ctx, &models.PredictionRecord{
		ID:          result.ID,
		Kind:        KindClinical,
		Prediction:  result.Prediction,
		Probability: result.Probability,
		Confidence:  result.Confidence,
		Source:      result.Source,
		RiskFactors: result.RiskFactors,
		Input:       in.Record(),
		CreatedAt:   result.CreatedAt,
	})
	return result
}

// PredictFull classifies a validated 24-feature record
func (s *Service) PredictFull(ctx context.Context, rec map[string]string) *models.FullPrediction {
	out := &models.FullPrediction{ID: uuid.New().String(), Success: true}

	proba, err := s.predictModel(rec)
	if err == nil {
		classes := s.model.ClassNames()
		best := argmax(proba)
		detected := RiskProbability(classes, proba) >= 0.5
		out.Class = classes[best]
		out.Label = DashboardLabel(classes, best, detected)
		out.Source = models.SourceModel
		for i, c := range classes {
			out.Probabilities = append(out.Probabilities, models.ClassProbability{
				Class:       c,
				Label:       DashboardLabel(classes, i, isDiseaseClass(classes, i)),
				Probability: round4(proba[i]),
			})
		}
		out.Result = models.ResultNoCKD
		if detected {
			out.Result = models.ResultCKDDetected
		}
	} else {
		if s.model != nil {
			s.logger.WithError(err).Warn("Model prediction failed, using rule-based assessment")
		}
		panel := ClinicalFromRecord(rec)
		a := Assess(&panel)
		detected := a.Level != models.RiskLow
		out.Source = models.SourceFallback
		out.Class = "notckd"
		out.Result = models.ResultNoCKD
		if detected {
			out.Class = "ckd"
			out.Result = models.ResultCKDDetected
		}
		out.Label = DashboardLabel(nil, 0, detected)
		out.Probabilities = []models.ClassProbability{
			{Class: "ckd", Label: DashboardLabel(nil, 0, true), Probability: round4(a.Score / 100)},
			{Class: "notckd", Label: DashboardLabel(nil, 0, false), Probability: round4(1 - a.Score/100)},
		}
	}

	var probability float64
	for _, p := range out.Probabilities {
		if p.Class == out.Class {
			probability = round2(p.Probability * 100)
		}
	}
	s.record(ctx, &models.PredictionRecord{
		ID:          out.ID,
		Kind:        KindFull,
		Prediction:  out.Result,
		Probability: probability,
		Source:      out.Source,
		Input:       rec,
		CreatedAt:   s.now(),
	})
	return out
}

func (s *Service) predictModel(rec map[string]string) (proba []float64, err error) {
	if s.model == nil {
		return nil, fmt.Errorf("no model loaded")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	proba, err = s.model.PredictRecord(rec)
	if err != nil {
		return nil, err
	}
	if len(proba) != len(s.model.ClassNames()) || len(proba) == 0 {
		return nil, fmt.Errorf("model returned %d probabilities for %d classes", len(proba), len(s.model.ClassNames()))
	}
	return proba, nil
}

// record saves to the history; failures never fail the request
func (s *Service) record(ctx context.Context, rec *models.PredictionRecord) {
	if s.store == nil {
		return
	}
	if s.model != nil && rec.Source == models.SourceModel {
		rec.ModelID = s.model.ModelID()
	}
	if err := ctx.Err(); err != nil {
		return
	}
	if err := s.store.SavePrediction(rec); err != nil {
		s.logger.WithError(err).WithField("prediction_id", rec.ID).Warn("Failed to save prediction")
	}
}

// History returns the most recent predictions
func (s *Service) History(limit int) ([]*models.PredictionRecord, error) {
	if s.store == nil {
		return []*models.PredictionRecord{}, nil
	}
	return s.store.ListPredictions(limit)
}

// Prediction looks up one stored prediction
func (s *Service) Prediction(id string) (*models.PredictionRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("prediction %s: %w", id, metadatastore.ErrNotFound)
	}
	return s.store.GetPrediction(id)
}

// RiskProbability is the probability of disease implied by the class
// distribution. With ckd/notckd labels it is P(ckd); for the three-class
// severity model it is one minus P(no disease).
func RiskProbability(classes []string, proba []float64) float64 {
	for i, c := range classes {
		if strings.EqualFold(c, "notckd") {
			return 1 - proba[i]
		}
	}
	for i, c := range classes {
		if strings.EqualFold(c, "ckd") {
			return proba[i]
		}
	}
	if len(proba) == 3 {
		return 1 - proba[0]
	}
	return proba[0]
}

// isDiseaseClass reports whether class i denotes kidney disease
func isDiseaseClass(classes []string, i int) bool {
	switch strings.ToLower(classes[i]) {
	case "ckd":
		return true
	case "notckd":
		return false
	}
	if len(classes) == 3 {
		return i != 0
	}
	return i == 0
}

// DashboardLabel names a class for display. Three-class models map codes
// 0, 1 and 2 to no, mild and severe disease.
func DashboardLabel(classes []string, i int, disease bool) string {
	if len(classes) == 3 {
		switch i {
		case 0:
			return "No Chronic Kidney Disease"
		case 1:
			return "Mild Chronic Kidney Disease"
		default:
			return "Severe Chronic Kidney Disease"
		}
	}
	if disease {
		return "Chronic Kidney Disease"
	}
	return "No Chronic Kidney Disease"
}

// ConfidenceLabel grades the largest class probability
func ConfidenceLabel(proba []float64) string {
	top := proba[argmax(proba)]
	switch {
	case top >= 0.8:
		return ConfidenceHigh
	case top >= 0.6:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
