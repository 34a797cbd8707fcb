package middleware

import (
	"net/http"

	"github.com/dmitrijs2005/bookclub/internal/logging"
	"github.com/dmitrijs2005/bookclub/internal/server/respond"
)

const CORSFailedMessage = "Failed CORS validation!"

// CORS admits requests whose Origin is in allowedOrigins ("*" admits any).
// Requests without an Origin header are same-origin or non-browser and pass
// untouched. Preflight requests are answered directly.
func CORS(allowedOrigins []string, logger logging.Logger) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}
	_, wildcard := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := allowed[origin]; !ok && !wildcard {
				logger.Warn(r.Context(), "CORS origin not allowed", "origin", origin, "path", r.URL.Path)
				respond.Write(w, http.StatusUnauthorized, respond.Fail(CORSFailedMessage))
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With, "+RequestIDHeader)
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
