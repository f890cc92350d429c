package handler

import (
	"net/http"

	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/service"
)

type HealthHandler struct {
	healthService *service.HealthService
}

func NewHealthHandler(healthService *service.HealthService) *HealthHandler {
	return &HealthHandler{healthService: healthService}
}

type dailyHealthRequest struct {
	Records []model.HealthMetricInput `json:"records"`
}

// Ingest stores a batch of daily summaries and re-scores health-tracked goals
func (h *HealthHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dailyHealthRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.healthService.Ingest(r.Context(), userID(r), req.Records)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Daily returns the last N days of summaries, N from ?days (default 7, at most 30)
func (h *HealthHandler) Daily(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", service.DefaultHealthDays)
	if err != nil {
		respondError(w, r, err)
		return
	}

	records, err := h.healthService.Daily(r.Context(), userID(r), days)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"records": records})
}
