package handler

import (
	"net/http"

	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/service"
)

type FriendHandler struct {
	friendService *service.FriendService
}

func NewFriendHandler(friendService *service.FriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	friends, err := h.friendService.Friends(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, friends)
}

func (h *FriendHandler) Requests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.friendService.Requests(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, requests)
}

// Send answers 201 for a new pending request and 200 when it accepted the
// target's own pending request instead
func (h *FriendHandler) Send(w http.ResponseWriter, r *http.Request) {
	var target service.FriendTarget
	err := decodeJSON(w, r, &target)
	if err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.friendService.Send(r.Context(), userID(r), target)
	if err != nil {
		respondError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.Accepted {
		status = http.StatusOK
	}
	respondJSON(w, status, result)
}

func (h *FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	friendship, err := h.friendService.Accept(r.Context(), userID(r), requestID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID,
		"status":     model.FriendRequestAccepted,
		"friendship": friendship,
	})
}

func (h *FriendHandler) Decline(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	err := h.friendService.Decline(r.Context(), userID(r), requestID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"request_id": requestID, "status": model.FriendRequestDeclined})
}

func (h *FriendHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	err := h.friendService.Cancel(r.Context(), userID(r), requestID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"request_id": requestID, "status": model.FriendRequestCancelled})
}

func (h *FriendHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	err := h.friendService.Unfriend(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Goals shows a confirmed friend's goals
func (h *FriendHandler) Goals(w http.ResponseWriter, r *http.Request) {
	view, err := h.friendService.FriendGoals(r.Context(), userID(r), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}
