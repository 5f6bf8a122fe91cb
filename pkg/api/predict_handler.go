package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/ckd-aip/ckd-aip-go/pkg/models"
	"github.com/ckd-aip/ckd-aip-go/pkg/predictor"
)

const maxBodyBytes = 1 << 20

// readFields reads a JSON object or a form body into string fields. JSON
// numbers keep their literal text and booleans become 1 or 0.
func readFields(w http.ResponseWriter, r *http.Request) (map[string]string, bool, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if isJSON(r) {
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return nil, true, fmt.Errorf("invalid JSON body: %w", err)
		}
		fields := make(map[string]string, len(body))
		for k, v := range body {
			switch val := v.(type) {
			case nil:
				fields[k] = ""
			case string:
				fields[k] = val
			case json.Number:
				fields[k] = val.String()
			case bool:
				fields[k] = "0"
				if val {
					fields[k] = "1"
				}
			default:
				fields[k] = fmt.Sprint(val)
			}
		}
		return fields, true, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, false, fmt.Errorf("invalid form body: %w", err)
	}
	fields := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		fields[k] = r.PostForm.Get(k)
	}
	return fields, false, nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// handlePredict serves both the eight-field screening panel and the full
// 24-feature record
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	fields, jsonBody, err := readFields(w, r)
	if err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}

	if predictor.IsFullRecord(fields) {
		s.predictFull(w, r, fields, jsonBody)
		return
	}

	in, err := predictor.ParseClinical(fields)
	if err != nil {
		s.writePredictError(w, err)
		return
	}

	result := s.predictor.Predict(r.Context(), in)
	result.FormData = make(map[string]string, len(models.ClinicalFields))
	for _, name := range models.ClinicalFields {
		result.FormData[name] = strings.TrimSpace(fields[name])
	}
	writeJSONResponse(w, http.StatusOK, result)
}

func (s *Server) predictFull(w http.ResponseWriter, r *http.Request, fields map[string]string, jsonBody bool) {
	rec, err := predictor.ParseFull(fields)
	if err != nil {
		if jsonBody {
			s.writePredictError(w, err)
			return
		}
		s.render(w, http.StatusBadRequest, "full", formPage{Columns: featureColumns(), Values: fields, Error: err.Error()})
		return
	}

	out := s.predictor.PredictFull(r.Context(), rec)
	if jsonBody {
		writeJSONResponse(w, http.StatusOK, out)
		return
	}
	s.render(w, http.StatusOK, "result", resultPage{Prediction: out, Record: recordRows(rec)})
}

func (s *Server) writePredictError(w http.ResponseWriter, err error) {
	if errors.Is(err, predictor.ErrValidation) {
		writeBadRequestResponse(w, err.Error())
		return
	}
	s.logger.WithError(err).Error("Prediction failed")
	writeInternalServerErrorResponse(w, "")
}

// handleDashboard renders the full-record dashboard and, on POST, the
// prediction for the submitted record
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	page := dashboardPage{Columns: featureColumns(), Values: map[string]string{}, Status: s.predictor.Status()}
	if r.Method == http.MethodGet {
		s.render(w, http.StatusOK, "dashboard", page)
		return
	}

	fields, _, err := readFields(w, r)
	if err != nil {
		page.Error = err.Error()
		s.render(w, http.StatusBadRequest, "dashboard", page)
		return
	}
	page.Values = fields

	rec, err := predictor.ParseFull(fields)
	if err != nil {
		page.Error = err.Error()
		s.render(w, http.StatusBadRequest, "dashboard", page)
		return
	}
	page.Prediction = s.predictor.PredictFull(r.Context(), rec)
	page.Record = recordRows(rec)
	s.render(w, http.StatusOK, "dashboard", page)
}
