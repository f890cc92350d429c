package middleware

import (
	"log/slog"
	"net/http"
	"strings"
)

// OriginCheck rejects state-changing browser requests whose Origin header is
// not one of the allowed frontend origins. Requests without an Origin header
// (native clients, curl) pass through; the session cookie is SameSite=Lax.
func OriginCheck(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin != "" && !allowed[origin] {
				slog.Warn("cross-origin request rejected",
					"path", r.URL.Path,
					"method", r.Method,
					"origin", origin,
					"ip", clientIP(r),
				)
				writeError(w, http.StatusForbidden, "origin not allowed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
