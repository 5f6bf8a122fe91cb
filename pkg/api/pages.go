package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
	"github.com/ckd-aip/ckd-aip-go/pkg/predictor"
)

//go:embed templates/*.html
var templateFS embed.FS

type formPage struct {
	Columns []models.Column
	Values  map[string]string
	Error   string
}

type recordRow struct {
	Title string
	Value string
	Unit  string
}

type resultPage struct {
	Prediction *models.FullPrediction
	Record     []recordRow
}

type dashboardPage struct {
	Columns    []models.Column
	Values     map[string]string
	Error      string
	Status     predictor.Status
	Prediction *models.FullPrediction
	Record     []recordRow
}

func parsePages() (*template.Template, error) {
	funcs := template.FuncMap{
		"pct": func(p float64) string { return fmt.Sprintf("%.1f%%", p*100) },
		"detected": func(result string) bool {
			return result == models.ResultCKDDetected
		},
		"categorical": func(c models.Column) bool { return c.Kind == models.ColumnCategorical },
	}
	return template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// render buffers the page before writing the status line
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.WithError(err).WithField("template", name).Error("Failed to render page")
		writeInternalServerErrorResponse(w, "")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func featureColumns() []models.Column {
	cols := make([]models.Column, 0, len(models.Columns)-1)
	for _, c := range models.Columns {
		if c.Kind != models.ColumnLabel {
			cols = append(cols, c)
		}
	}
	return cols
}

func recordRows(rec map[string]string) []recordRow {
	rows := make([]recordRow, 0, len(rec))
	for _, c := range featureColumns() {
		if v, ok := rec[c.Name]; ok {
			rows = append(rows, recordRow{Title: c.Title, Value: v, Unit: c.Unit})
		}
	}
	return rows
}

// handleIndex serves the eight-field screening form
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index", nil)
}

// handleFullForm serves the 24-feature form
func (s *Server) handleFullForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "full", formPage{Columns: featureColumns(), Values: map[string]string{}})
}
