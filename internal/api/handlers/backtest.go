package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cjg131/backtester-v1/internal/api/request"
	"github.com/cjg131/backtester-v1/internal/apperrors"
	"github.com/cjg131/backtester-v1/internal/service"
	"github.com/cjg131/backtester-v1/internal/validation"
)

// BacktestHandler handles backtest execution and stored-run HTTP requests
type BacktestHandler struct {
	simulationService *service.SimulationService
}

// NewBacktestHandler creates a new BacktestHandler
func NewBacktestHandler(simulationService *service.SimulationService) *BacktestHandler {
	return &BacktestHandler{
		simulationService: simulationService,
	}
}

// RunResponse wraps a completed backtest with its stored run ID.
type RunResponse struct {
	RunID  string `json:"run_id"`
	Result any    `json:"result"`
}

// ValidateResponse reports whether a config passed validation.
type ValidateResponse struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Run executes a backtest and persists the result.
//
// Endpoint: POST /api/backtest/run
// Response: 200 OK with RunResponse
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req request.RunBacktest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid request body",
			"detail": err.Error(),
		})
		return
	}

	result, run, err := h.simulationService.Run(r.Context(), req.Name, req.Config)
	if err != nil {
		respondRunError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, RunResponse{RunID: run.ID, Result: result})
}

// Validate checks a strategy config without executing it.
//
// Endpoint: POST /api/backtest/validate
// Response: 200 OK with ValidateResponse (Valid false carries field errors)
func (h *BacktestHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req request.RunBacktest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid request body",
			"detail": err.Error(),
		})
		return
	}

	if err := h.simulationService.Validate(req.Config); err != nil {
		var vErr *validation.Error
		if errors.As(err, &vErr) {
			respondJSON(w, http.StatusOK, ValidateResponse{Valid: false, Errors: vErr.Fields})
			return
		}
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, ValidateResponse{Valid: true})
}

// ListRuns returns stored run headers, newest first.
//
// Endpoint: GET /api/backtest/runs?limit=N
func (h *BacktestHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}

	runs, err := h.simulationService.ListRuns(limit)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, runs)
}

// GetRun returns one stored run with trades, equity curve, and tax
// summaries.
//
// Endpoint: GET /api/backtest/runs/{id}
func (h *BacktestHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	detail, err := h.simulationService.GetRun(runID)
	if errors.Is(err, apperrors.ErrRunNotFound) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, detail)
}

// DeleteRun removes a stored run.
//
// Endpoint: DELETE /api/backtest/runs/{id}
// Response: 204 No Content
func (h *BacktestHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	err := h.simulationService.DeleteRun(runID)
	if errors.Is(err, apperrors.ErrRunNotFound) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// respondRunError maps run failures to status codes: config problems are
// the caller's fault, everything else is a server error.
func respondRunError(w http.ResponseWriter, err error) {
	var vErr *validation.Error
	if errors.As(err, &vErr) {
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid strategy config",
			"fields": vErr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrEmptyUniverse),
		errors.Is(err, apperrors.ErrInvalidDateRange),
		errors.Is(err, apperrors.ErrNonPositiveCash):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNoMarketData):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
