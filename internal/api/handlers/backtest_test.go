package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cjg131/backtester-v1/internal/api/handlers"
	"github.com/cjg131/backtester-v1/internal/api/request"
	"github.com/cjg131/backtester-v1/internal/model"
	"github.com/cjg131/backtester-v1/internal/service"
	"github.com/cjg131/backtester-v1/internal/testutil"
)

func runBody(t *testing.T, name string, config model.StrategyConfig) *bytes.Buffer {
	t.Helper()

	body, err := json.Marshal(request.RunBacktest{Name: name, Config: config})
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	return bytes.NewBuffer(body)
}

// TestBacktestHandler_Run tests the POST /api/backtest/run endpoint.
//
// WHY: This is the core endpoint of the service. It must execute a
// strategy against the provider, persist the run, and hand back the run
// ID the frontend uses to fetch details later.
func TestBacktestHandler_Run(t *testing.T) {
	t.Run("executes and persists a backtest", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewBacktestHandler(testutil.NewTestSimulationService(t, db))

		req := httptest.NewRequest(http.MethodPost, "/api/backtest/run",
			runBody(t, "Handler run", testutil.NewStrategyConfig().Build()))
		w := httptest.NewRecorder()

		handler.Run(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var response handlers.RunResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.RunID == "" {
			t.Error("Expected a run ID in the response")
		}

		testutil.AssertRowCount(t, db, "simulation_run", 1)
	})

	t.Run("returns 400 for malformed JSON", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewBacktestHandler(testutil.NewTestSimulationService(t, db))

		req := httptest.NewRequest(http.MethodPost, "/api/backtest/run", strings.NewReader("{not json"))
		w := httptest.NewRecorder()

		handler.Run(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("returns 400 with field errors for a bad config", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewBacktestHandler(testutil.NewTestSimulationService(t, db))

		config := testutil.NewStrategyConfig().WithInitialCash(-100).Build()
		req := httptest.NewRequest(http.MethodPost, "/api/backtest/run", runBody(t, "", config))
		w := httptest.NewRecorder()

		handler.Run(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d", w.Code)
		}

		var response struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if _, ok := response.Fields["initial_cash"]; !ok {
			t.Errorf("Expected initial_cash field error, got %v", response.Fields)
		}

		testutil.AssertRowCount(t, db, "simulation_run", 0)
	})

	t.Run("returns 422 when no symbol has data", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		handler := handlers.NewBacktestHandler(testutil.NewTestSimulationService(t, db))

		config := testutil.NewStrategyConfig().WithSymbols("UNKNOWN").Build()
		req := httptest.NewRequest(http.MethodPost, "/api/backtest/run", runBody(t, "", config))
		w := httptest.NewRecorder()

		handler.Run(w, req)

		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected status 422, got %d: %s", w.Code, w.Body.String())
		}
	})
}

// TestBacktestHandler_Validate tests the POST /api/backtest/validate endpoint.
func TestBacktestHandler_Validate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := handlers.NewBacktestHandler(testutil.NewTestSimulationService(t, db))

	t.Run("valid config", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/backtest/validate",
			runBody(t, "", testutil.NewStrategyConfig().Build()))
		w := httptest.NewRecorder()

		handler.Validate(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var response handlers.ValidateResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if !response.Valid {
			t.Errorf("Expected valid config, got errors %v", response.Errors)
		}
	})

	t.Run("invalid config reports field errors", func(t *testing.T) {
		config := testutil.NewStrategyConfig().WithSymbols().Build()
		req := httptest.NewRequest(http.MethodPost, "/api/backtest/validate", runBody(t, "", config))
		w := httptest.NewRecorder()

		handler.Validate(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var response handlers.ValidateResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Valid {
			t.Error("Expected invalid config")
		}
		if _, ok := response.Errors["universe.symbols"]; !ok {
			t.Errorf("Expected universe.symbols error, got %v", response.Errors)
		}
	})
}

// TestBacktestHandler_Runs tests the stored-run listing and detail endpoints.
func TestBacktestHandler_Runs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := handlers.NewBacktestHandler(testutil.NewTestSimulationService(t, db))

	runs := testutil.CreateRuns(t, db, 3)

	t.Run("GET /api/backtest/runs lists newest first", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/backtest/runs", nil)
		w := httptest.NewRecorder()

		handler.ListRuns(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var response []model.SimulationRun
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(response) != 3 {
			t.Fatalf("Expected 3 runs, got %d", len(response))
		}
		if response[0].ID != runs[2].ID {
			t.Errorf("Expected newest run first, got %s", response[0].Name)
		}
	})

	t.Run("limit query parameter", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/backtest/runs",
			map[string]string{"limit": "1"})
		w := httptest.NewRecorder()

		handler.ListRuns(w, req)

		var response []model.SimulationRun
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if len(response) != 1 {
			t.Errorf("Expected 1 run, got %d", len(response))
		}
	})

	t.Run("rejects a negative limit", func(t *testing.T) {
		req := testutil.NewRequestWithQueryParams(http.MethodGet, "/api/backtest/runs",
			map[string]string{"limit": "-2"})
		w := httptest.NewRecorder()

		handler.ListRuns(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("GET /api/backtest/runs/{id} returns run detail", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodGet,
			"/api/backtest/runs/"+runs[0].ID, map[string]string{"id": runs[0].ID})
		w := httptest.NewRecorder()

		handler.GetRun(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var response service.RunDetail
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Run.ID != runs[0].ID {
			t.Errorf("Expected run %s, got %s", runs[0].ID, response.Run.ID)
		}
		if len(response.EquityCurve) == 0 {
			t.Error("Expected equity curve in run detail")
		}
	})

	t.Run("unknown run returns 404", func(t *testing.T) {
		id := testutil.MakeID()
		req := testutil.NewRequestWithURLParams(http.MethodGet,
			"/api/backtest/runs/"+id, map[string]string{"id": id})
		w := httptest.NewRecorder()

		handler.GetRun(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	t.Run("DELETE /api/backtest/runs/{id} removes the run", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodDelete,
			"/api/backtest/runs/"+runs[1].ID, map[string]string{"id": runs[1].ID})
		w := httptest.NewRecorder()

		handler.DeleteRun(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("Expected status 204, got %d", w.Code)
		}
		testutil.AssertRowCount(t, db, "simulation_run", 2)

		// Deleting again hits the not-found path.
		w = httptest.NewRecorder()
		handler.DeleteRun(w, testutil.NewRequestWithURLParams(http.MethodDelete,
			"/api/backtest/runs/"+runs[1].ID, map[string]string{"id": runs[1].ID}))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})
}
