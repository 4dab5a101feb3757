// Package response holds the JSON helpers shared by the API handlers
// and middleware, keeping error bodies in a single envelope shape.
package response

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the envelope every non-2xx endpoint returns. Details
// is optional and carries field errors or other context when present.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// RespondJSON writes data as JSON with the given status. A nil data
// writes the status line only, which is how 204 deletes respond. Encode
// failures can only be logged; the status line has already gone out.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("encode response: %v", err)
		}
	}
}

// RespondError wraps message and details in an ErrorResponse. Pass nil
// details when there is nothing beyond the message.
func RespondError(w http.ResponseWriter, status int, message string, details interface{}) {
	RespondJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
