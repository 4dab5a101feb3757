package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cjg131/backtester-v1/internal/api/middleware"
	"github.com/cjg131/backtester-v1/internal/testutil"
)

func TestValidateUUIDMiddleware(t *testing.T) {
	guarded := middleware.ValidateUUIDMiddleware(okHandler())

	t.Run("valid UUID passes through", func(t *testing.T) {
		id := testutil.MakeID()
		req := testutil.NewRequestWithURLParams(http.MethodGet,
			"/api/backtest/runs/"+id, map[string]string{"id": id})
		w := httptest.NewRecorder()

		guarded.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
	})

	t.Run("malformed UUID returns 400", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodGet,
			"/api/backtest/runs/not-a-uuid", map[string]string{"id": "not-a-uuid"})
		w := httptest.NewRecorder()

		guarded.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("missing id returns 400", func(t *testing.T) {
		req := testutil.NewRequestWithURLParams(http.MethodGet, "/api/backtest/runs/", nil)
		w := httptest.NewRecorder()

		guarded.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})
}
