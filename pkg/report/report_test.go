package report

import (
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

var generated = time.Date(2024, 3, 9, 14, 5, 30, 0, time.UTC)

func sampleResult() *models.PredictionResult {
	return &models.PredictionResult{
		Prediction:  models.RiskHigh,
		Probability: 87.456,
		RiskFactors: []string{"Elevated serum creatinine", "Hypertension"},
		Confidence:  "High",
		Success:     true,
		FormData: map[string]string{
			"sc": "3.2", "hemo": "9.8", "al": "3", "sg": "1.010",
			"pcv": "29", "rbcc": "3.4", "dm": "0", "htn": "1",
		},
	}
}

func TestText(t *testing.T) {
	text := New(sampleResult(), generated).Text()

	assert.True(t, strings.HasPrefix(text, "CKD DETECTION REPORT\n====================\n"))
	assert.Contains(t, text, "Date: 2024-03-09\nTime: 14:05:30\n")
	assert.Contains(t, text, "Serum Creatinine: 3.2 mg/dL\n")
	assert.Contains(t, text, "Packed Cell Volume: 29%\n")
	assert.Contains(t, text, "Red Blood Cell Count: 3.4 millions/µL\n")
	assert.Contains(t, text, "Diabetes Mellitus: No\n")
	assert.Contains(t, text, "Hypertension: Yes\n")
	assert.Contains(t, text, "Risk Assessment: High Risk\n")
	assert.Contains(t, text, "Probability: 87.5%\n")
	assert.Contains(t, text, "Risk Factors: Elevated serum creatinine, Hypertension\n")
	assert.Contains(t, text, "DISCLAIMER:\n-----------\n"+Disclaimer)
	assert.True(t, strings.HasSuffix(text, Footer+"\n"))
}

func TestTextDefaults(t *testing.T) {
	text := New(&models.PredictionResult{Prediction: models.RiskLow, Probability: 5}, generated).Text()
	assert.Contains(t, text, "Risk Factors: None identified\n")
	assert.Contains(t, text, "Confidence: N/A\n")
	assert.Contains(t, text, "Probability: 5.0%\n")
}

func TestPDF(t *testing.T) {
	data, err := New(sampleResult(), generated).PDF()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
	assert.Greater(t, len(data), 500)
}

func TestPDFWrapsLongValues(t *testing.T) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 10)
	assert.Equal(t, lineHeight, rowHeight(pdf, "High Risk"))
	assert.Equal(t, lineHeight, rowHeight(pdf, ""))

	factors := []string{
		"Elevated serum creatinine", "Low hemoglobin", "Proteinuria",
		"Low specific gravity", "Low packed cell volume", "Low red blood cell count",
		"Diabetes", "Hypertension",
	}
	long := strings.Join(factors, ", ")
	assert.GreaterOrEqual(t, rowHeight(pdf, long), 2*lineHeight)

	r := sampleResult()
	r.RiskFactors = factors
	data, err := New(r, generated).PDF()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))

	r.RiskFactors = append(factors, factors...)
	r.RiskFactors = append(r.RiskFactors, r.RiskFactors...)
	data, err = New(r, generated).PDF()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "CKD_Report_1709993130000.pdf", Filename(generated, "pdf"))
}
