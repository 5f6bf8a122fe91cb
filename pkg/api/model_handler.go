package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ckd-aip/ckd-aip-go/pkg/metadatastore"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

const defaultHistoryLimit = 50

// handleGetModel reports the serving model and the newest registry entry
func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"success": true,
		"model":   s.predictor.Status(),
	}
	if s.models != nil {
		list, err := s.models.ListModels()
		if err != nil {
			s.logger.WithError(err).Warn("Failed to list models")
		}
		for _, m := range list {
			if m.Status == models.ModelStatusTrained {
				resp["registry"] = m
				break
			}
		}
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// handleListModels lists the model registry
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if s.models == nil {
		writeJSONResponse(w, http.StatusOK, map[string]any{"success": true, "models": []*models.MLModel{}})
		return
	}
	list, err := s.models.ListModels()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list models")
		writeInternalServerErrorResponse(w, "")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"success": true, "models": list})
}

// handleListPredictions lists recent predictions, newest first
func (s *Server) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	records, err := s.predictor.History(parseLimit(r, defaultHistoryLimit))
	if err != nil {
		s.logger.WithError(err).Error("Failed to list predictions")
		writeInternalServerErrorResponse(w, "")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"success":     true,
		"predictions": records,
		"count":       len(records),
	})
}

// handleGetPrediction returns one stored prediction
func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, err := s.predictor.Prediction(id)
	if errors.Is(err, metadatastore.ErrNotFound) {
		writeErrorResponse(w, http.StatusNotFound, "Prediction not found: "+id)
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to load prediction")
		writeInternalServerErrorResponse(w, "")
		return
	}
	writeJSONResponse(w, http.StatusOK, record)
}

// handlePruneStatus reports the history pruning job
func (s *Server) handlePruneStatus(w http.ResponseWriter, r *http.Request) {
	if s.pruner == nil {
		writeErrorResponse(w, http.StatusNotFound, "History pruning is disabled")
		return
	}
	writeJSONResponse(w, http.StatusOK, s.pruner.Status())
}

// handlePrune prunes the history immediately
func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	if s.pruner == nil {
		writeErrorResponse(w, http.StatusNotFound, "History pruning is disabled")
		return
	}
	deleted, err := s.pruner.PruneNow()
	if err != nil {
		s.logger.WithError(err).Error("Failed to prune prediction history")
		writeInternalServerErrorResponse(w, "")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"success": true, "deleted": deleted})
}
