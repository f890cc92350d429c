package handler

import (
	"net/http"

	"github.com/magicjournal/server/internal/service"
)

type AssistantHandler struct {
	assistantService *service.AssistantService
}

func NewAssistantHandler(assistantService *service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistantService: assistantService}
}

func (h *AssistantHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req service.AssistantRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.assistantService.Respond(r.Context(), userID(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
