package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/cjg131/backtester-v1/internal/api/response"
)

// NewAPIKey returns a middleware that requires a matching X-API-Key
// header. An empty configured key disables the guard, so local setups
// work without one.
func NewAPIKey(configuredKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if configuredKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if provided == "" {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(configuredKey)) != 1 {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
