// Package report renders a screening result as a downloadable document.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

const (
	Title      = "CKD DETECTION REPORT"
	Disclaimer = "This report is generated by an AI prediction model and should not be used as a substitute for professional medical advice. Please consult with a qualified healthcare provider for proper diagnosis and treatment."
	Footer     = "Generated by CKD Detection System"
)

// Line is one labelled value of the report
type Line struct {
	Label string
	Value string
}

// Report is the content shared by the text and PDF renderings
type Report struct {
	GeneratedAt time.Time
	Patient     []Line
	Results     []Line
}

// New builds the report for a screening result
func New(r *models.PredictionResult, now time.Time) *Report {
	form := r.FormData
	if form == nil {
		form = map[string]string{}
	}
	factors := "None identified"
	if len(r.RiskFactors) > 0 {
		factors = strings.Join(r.RiskFactors, ", ")
	}
	confidence := r.Confidence
	if confidence == "" {
		confidence = "N/A"
	}

	return &Report{
		GeneratedAt: now,
		Patient: []Line{
			{"Serum Creatinine", form["sc"] + " mg/dL"},
			{"Hemoglobin", form["hemo"] + " g/dL"},
			{"Albumin Level", form["al"]},
			{"Specific Gravity", form["sg"]},
			{"Packed Cell Volume", form["pcv"] + "%"},
			{"Red Blood Cell Count", form["rbcc"] + " millions/µL"},
			{"Diabetes Mellitus", yesNo(form["dm"])},
			{"Hypertension", yesNo(form["htn"])},
		},
		Results: []Line{
			{"Risk Assessment", r.Prediction},
			{"Probability", fmt.Sprintf("%.1f%%", r.Probability)},
			{"Risk Factors", factors},
			{"Confidence", confidence},
		},
	}
}

// Text renders the plain-text report
func (r *Report) Text() string {
	var b strings.Builder
	section := func(title, rule string, lines []Line) {
		fmt.Fprintf(&b, "%s\n%s\n", title, rule)
		for _, l := range lines {
			fmt.Fprintf(&b, "%s: %s\n", l.Label, l.Value)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s\n%s\n", Title, strings.Repeat("=", len(Title)))
	fmt.Fprintf(&b, "Date: %s\n", r.GeneratedAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Time: %s\n\n", r.GeneratedAt.Format("15:04:05"))
	section("PATIENT DATA:", "-------------", r.Patient)
	section("PREDICTION RESULTS:", "------------------", r.Results)
	fmt.Fprintf(&b, "DISCLAIMER:\n-----------\n%s\n\n%s\n", Disclaimer, Footer)
	return b.String()
}

// WritePDF renders the report as a single-page A4 PDF
func (r *Report) WritePDF(w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetTitle(Title, true)
	pdf.SetCreator(Footer, true)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, Title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 8, "Generated: "+r.GeneratedAt.Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	table := func(heading string, lines []Line) {
		pdf.SetFont("Arial", "B", 12)
		pdf.SetFillColor(255, 200, 100)
		pdf.CellFormat(labelWidth+valueWidth, 8, heading, "1", 1, "L", true, 0, "")
		pdf.SetFont("Arial", "", 10)
		for i, l := range lines {
			if i%2 == 1 {
				pdf.SetFillColor(240, 240, 240)
			} else {
				pdf.SetFillColor(255, 255, 255)
			}
			value := tr(l.Value)
			h := rowHeight(pdf, value)
			if pdf.GetY()+h > pageBottom(pdf) {
				pdf.AddPage()
			}
			pdf.CellFormat(labelWidth, h, tr(l.Label), "1", 0, "L", true, 0, "")
			pdf.MultiCell(valueWidth, lineHeight, value, "1", "L", true)
		}
		pdf.Ln(6)
	}
	table("Patient Data", r.Patient)
	table("Prediction Results", r.Results)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Disclaimer", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "I", 9)
	pdf.MultiCell(0, 5, Disclaimer, "", "L", false)
	pdf.Ln(4)
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, Footer, "", 1, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render PDF: %w", err)
	}
	return pdf.Output(w)
}

const (
	labelWidth = 60.0
	valueWidth = 110.0
	lineHeight = 7.0
)

// rowHeight is the height of a table row whose value wraps within the value
// column at the current font
func rowHeight(pdf *gofpdf.Fpdf, value string) float64 {
	lines := len(pdf.SplitLines([]byte(value), valueWidth))
	return lineHeight * float64(max(lines, 1))
}

func pageBottom(pdf *gofpdf.Fpdf) float64 {
	_, h := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	return h - bottom
}

// PDF renders the report into memory
func (r *Report) PDF() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.WritePDF(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename is the download name for the given extension
func Filename(now time.Time, ext string) string {
	return fmt.Sprintf("CKD_Report_%d.%s", now.UnixMilli(), ext)
}

func yesNo(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "yes", "true", "y":
		return "Yes"
	}
	return "No"
}
