package handler

import (
	"net/http"

	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/service"
)

type JournalHandler struct {
	journalService *service.JournalService
}

func NewJournalHandler(journalService *service.JournalService) *JournalHandler {
	return &JournalHandler{journalService: journalService}
}

// List filters by goal_id, from and to (YYYY-MM-DD) and returns newest days first
func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", service.DefaultJournalLimit)
	if err != nil {
		respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	entries, err := h.journalService.Entries(r.Context(), userID(r), model.JournalFilter{
		GoalID: q.Get("goal_id"),
		From:   q.Get("from"),
		To:     q.Get("to"),
		Limit:  limit,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// Submit records the day's entry for a goal: 201 when the day is new, 200 when it was rescored
func (h *JournalHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var sub model.JournalSubmission
	err := decodeJSON(w, r, &sub)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.journalService.Submit(r.Context(), userID(r), sub)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	respondJSON(w, status, map[string]any{
		"entry": result.Entry,
		"goal":  result.Goal,
	})
}

func (h *JournalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	goal, err := h.journalService.Delete(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"goal": goal})
}
