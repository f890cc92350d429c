package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/magicjournal/server/internal/ctxkeys"
	"github.com/magicjournal/server/internal/metrics"
	"github.com/magicjournal/server/internal/model"
)

// SessionVerifier decodes a session token into the identity it was issued for
type SessionVerifier interface {
	VerifySession(token string) (*model.Identity, error)
	ClearSessionCookie(w http.ResponseWriter)
}

// Auth reads the session cookie and adds the identity to the context if valid.
// Requests without a valid session continue anonymously.
func Auth(verifier SessionVerifier, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := verifier.VerifySession(cookie.Value)
			if err != nil {
				slog.Debug("session rejected", "error", err, "path", r.URL.Path)
				metrics.AuthRejections.WithLabelValues("invalid_session").Inc()
				verifier.ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			ctx := ctxkeys.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests with a JSON 401
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.Identity(r.Context()) == nil {
			metrics.AuthRejections.WithLabelValues("missing_session").Inc()
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(map[string]string{"error": msg})
	if err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}
