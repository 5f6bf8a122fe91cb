package api

import (
	"encoding/json"
	"net/http"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
	"github.com/ckd-aip/ckd-aip-go/pkg/report"
)

// handleDownloadReport renders a prior screening result as a PDF, or as
// plain text with ?format=txt
func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var result models.PredictionResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeBadRequestResponse(w, "Invalid request body: "+err.Error())
		return
	}
	if result.Prediction == "" {
		writeBadRequestResponse(w, "prediction is required")
		return
	}

	now := s.now()
	rep := report.New(&result, now)

	switch format := r.URL.Query().Get("format"); format {
	case "txt", "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(now, "txt")+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(rep.Text()))
	case "", "pdf":
		data, err := rep.PDF()
		if err != nil {
			s.logger.WithError(err).Error("Failed to render report")
			writeInternalServerErrorResponse(w, "Failed to render report")
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(now, "pdf")+`"`)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		writeBadRequestResponse(w, "unknown report format: "+format)
	}
}
