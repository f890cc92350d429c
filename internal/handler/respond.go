package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/ctxkeys"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err = w.Write(response)
	if err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

// respondError writes {"error": msg} with the status of the error's kind.
// Internal and upstream failures are logged; internal causes never reach the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)

	switch kind {
	case apperr.KindInternal:
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	case apperr.KindUpstream:
		slog.Warn("upstream failure", "error", err, "method", r.Method, "path", r.URL.Path)
	}

	respondJSON(w, kind.Status(), map[string]string{"error": apperr.PublicMessage(err)})
}

// decodeJSON reads a JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return apperr.BadRequest("request body is required")
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperr.BadRequest("request body too large")
	}
	if err != nil {
		return apperr.BadRequest("invalid JSON body")
	}
	return nil
}

// userID returns the authenticated user id. Routes using it sit behind RequireAuth.
func userID(r *http.Request) string {
	identity := ctxkeys.Identity(r.Context())
	if identity == nil {
		return ""
	}
	return identity.UserID
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.BadRequest("%s must be an integer", key)
	}
	return v, nil
}

// queryBool parses an optional boolean query parameter
func queryBool(r *http.Request, key string, def bool) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.BadRequest("%s must be true or false", key)
	}
	return v, nil
}
