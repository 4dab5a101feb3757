package handlers

import (
	"net/http"

	"github.com/cjg131/backtester-v1/internal/api/response"
)

// respondJSON writes data as a JSON body with the given status. Every
// handler in this package routes through it so responses share one
// encoding path.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	response.RespondJSON(w, status, data)
}
