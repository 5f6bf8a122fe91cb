package predictor

import "github.com/ckd-aip/ckd-aip-go/pkg/models"

// Risk factor descriptions reported by the rule-based assessment
const (
	FactorCreatinine      = "Elevated serum creatinine"
	FactorHemoglobin      = "Low hemoglobin"
	FactorAlbumin         = "Albumin in urine"
	FactorSpecificGravity = "Low specific gravity"
	FactorPackedCells     = "Low packed cell volume"
	FactorRedCells        = "Low red blood cell count"
	FactorDiabetes        = "Diabetes mellitus"
	FactorHypertension    = "Hypertension"
)

const (
	minScore          = 5
	maxScore          = 95
	severeCreatinine  = 4.0
	severeFloor       = 85
	highRiskThreshold = 70
	moderateThreshold = 40
)

// Assessment is the outcome of the rule-based score
type Assessment struct {
	Score       float64  // 5-95, read as a percentage
	Level       string   // High, Moderate or Low Risk
	RiskFactors []string // in rule order
}

// Assess scores the eight clinical fields. Each rule adds points as its
// marker worsens; severe creatinine alone lifts the score to at least 85.
func Assess(in *models.ClinicalInput) Assessment {
	var score float64
	factors := make([]string, 0, 8)
	add := func(points float64, factor string) {
		if points > 0 {
			score += points
			factors = append(factors, factor)
		}
	}

	add(step(in.SerumCreatinine, above, []float64{4.0, 2.0, 1.2}, []float64{40, 30, 20}), FactorCreatinine)
	add(step(in.Hemoglobin, below, []float64{10, 12}, []float64{15, 10}), FactorHemoglobin)
	add(step(in.Albumin, atLeast, []float64{3, 1}, []float64{15, 10}), FactorAlbumin)
	add(step(in.SpecificGravity, below, []float64{1.010, 1.015}, []float64{10, 5}), FactorSpecificGravity)
	add(step(in.PackedCellVolume, below, []float64{30, 36}, []float64{10, 5}), FactorPackedCells)
	add(step(in.RedBloodCells, below, []float64{3.5, 4.0}, []float64{10, 5}), FactorRedCells)
	if in.Diabetes {
		add(10, FactorDiabetes)
	}
	if in.Hypertension {
		add(10, FactorHypertension)
	}

	if in.SerumCreatinine > severeCreatinine && score < severeFloor {
		score = severeFloor
	}
	score = min(max(score, minScore), maxScore)

	return Assessment{Score: score, Level: RiskLevel(score), RiskFactors: factors}
}

// RiskLevel buckets a 0-100 score
func RiskLevel(score float64) string {
	switch {
	case score >= highRiskThreshold:
		return models.RiskHigh
	case score >= moderateThreshold:
		return models.RiskModerate
	default:
		return models.RiskLow
	}
}

type comparison func(v, threshold float64) bool

func above(v, t float64) bool { return v > t }
func below(v, t float64) bool { return v < t }
func atLeast(v, t float64) bool { return v >= t }

// step returns the points of the first threshold v satisfies; thresholds are
// ordered from most to least severe.
func step(v float64, cmp comparison, thresholds, points []float64) float64 {
	for i, t := range thresholds {
		if cmp(v, t) {
			return points[i]
		}
	}
	return 0
}

// NeutralInput is a panel that scores no points, used to fill markers absent
// from a full record.
func NeutralInput() models.ClinicalInput {
	return models.ClinicalInput{
		SerumCreatinine:  1.0,
		Hemoglobin:       15,
		Albumin:          0,
		SpecificGravity:  1.020,
		PackedCellVolume: 45,
		RedBloodCells:    5,
	}
}
