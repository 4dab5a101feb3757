package middleware

import (
	"github.com/go-chi/cors"
)

// NewCORS builds the CORS policy for the backtest API. X-API-Key must be
// allowed so browser clients can reach the key-protected delete and
// credential endpoints; nothing is cookie-based, so credentials stay off.
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type",
			"X-API-Key",
		},
		ExposedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})
}
