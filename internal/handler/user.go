package handler

import (
	"log/slog"
	"net/http"

	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/service"
)

// maxUploadBytes bounds the multipart form; the image limit itself is enforced by validation
const maxUploadBytes = 10 << 20

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.ByID(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var upd model.UserUpdate
	err := decodeJSON(w, r, &upd)
	if err != nil {
		respondError(w, r, err)
		return
	}

	user, err := h.userService.Update(r.Context(), userID(r), upd)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	err := r.ParseMultipartForm(maxUploadBytes)
	if err != nil {
		respondError(w, r, apperr.BadRequest("failed to parse form"))
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		respondError(w, r, apperr.BadRequest("no file uploaded"))
		return
	}
	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			slog.Error("failed to close uploaded file", "error", closeErr)
		}
	}()

	user, err := h.userService.UploadAvatar(r.Context(), userID(r), file, header)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.DeleteAvatar(r.Context(), userID(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}
