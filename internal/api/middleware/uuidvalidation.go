// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cjg131/backtester-v1/internal/api/response"
	"github.com/cjg131/backtester-v1/internal/validation"
)

// ValidateUUIDMiddleware validates that the id URL parameter is present
// and is a valid UUID. Returns 400 Bad Request if the ID is missing or
// invalid.
//
// Example usage in router:
//
//	r.Route("/{id}", func(r chi.Router) {
//	    r.Use(middleware.ValidateUUIDMiddleware)
//	    r.Get("/", handler.GetRun)
//	    r.Delete("/", handler.DeleteRun)
//	})
func ValidateUUIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if id == "" {
			response.RespondError(w, http.StatusBadRequest, "valid UUID is required", "")
			return
		}

		if err := validation.ValidateUUID(id); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid UUID format", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
