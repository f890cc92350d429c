package handler

import (
	"net/http"

	"github.com/magicjournal/server/internal/service"
)

type HabitHandler struct {
	habitService *service.HabitService
}

func NewHabitHandler(habitService *service.HabitService) *HabitHandler {
	return &HabitHandler{habitService: habitService}
}

// List returns the quantitative catalog; include_healthkit=false hides health-tracker habits
func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	includeHealth, err := queryBool(r, "include_healthkit", true)
	if err != nil {
		respondError(w, r, err)
		return
	}

	habits, err := h.habitService.Habits(r.Context(), includeHealth)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, habits)
}
