package models

import (
	"strconv"
	"time"
)

// Risk levels produced by the screening endpoint
const (
	RiskHigh     = "High Risk"
	RiskModerate = "Moderate Risk"
	RiskLow      = "Low Risk"
)

// PredictionSource records which predictor produced a result
type PredictionSource string

const (
	SourceModel    PredictionSource = "model"
	SourceFallback PredictionSource = "rule_based"
)

// PredictionResult is the JSON body returned by POST /predict and accepted
// back by POST /download_report.
type PredictionResult struct {
	ID          string            `json:"id,omitempty"`
	Prediction  string            `json:"prediction"`
	Probability float64           `json:"probability"` // percent, 0-100
	RiskFactors []string          `json:"riskFactors"`
	Confidence  string            `json:"confidence"`
	Success     bool              `json:"success"`
	Source      PredictionSource  `json:"source,omitempty"`
	FormData    map[string]string `json:"formData,omitempty"`
	CreatedAt   time.Time         `json:"createdAt,omitempty"`
}

// ClassProbability pairs a class label with its predicted probability
type ClassProbability struct {
	Class       string  `json:"class"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// FullPrediction is the outcome of a 24-feature prediction
type FullPrediction struct {
	ID            string             `json:"id,omitempty"`
	Result        string             `json:"result"` // "CKD Detected" or "No CKD"
	Class         string             `json:"class"`
	Label         string             `json:"label"` // dashboard wording
	Probabilities []ClassProbability `json:"probabilities"`
	Source        PredictionSource   `json:"source"`
	Success       bool               `json:"success"`
}

// Full-record outcomes
const (
	ResultCKDDetected = "CKD Detected"
	ResultNoCKD       = "No CKD"
)

// PredictionRecord is a persisted prediction
type PredictionRecord struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"` // "clinical" or "full"
	Prediction  string            `json:"prediction"`
	Probability float64           `json:"probability"`
	Confidence  string            `json:"confidence,omitempty"`
	Source      PredictionSource  `json:"source"`
	RiskFactors []string          `json:"risk_factors,omitempty"`
	Input       map[string]string `json:"input"`
	ModelID     string            `json:"model_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
