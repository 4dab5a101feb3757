package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cjg131/backtester-v1/internal/api/request"
	"github.com/cjg131/backtester-v1/internal/apperrors"
	"github.com/cjg131/backtester-v1/internal/marketdata"
	"github.com/cjg131/backtester-v1/internal/service"
)

// ProvidersHandler handles market-data provider HTTP requests
type ProvidersHandler struct {
	provider          marketdata.DataProvider
	credentialService *service.CredentialService
}

// NewProvidersHandler creates a new ProvidersHandler. The credential
// service may be nil when no fernet key is configured.
func NewProvidersHandler(provider marketdata.DataProvider, credentialService *service.CredentialService) *ProvidersHandler {
	return &ProvidersHandler{
		provider:          provider,
		credentialService: credentialService,
	}
}

// Symbols lists the symbols the configured provider can serve.
//
// Endpoint: GET /api/providers/symbols
func (h *ProvidersHandler) Symbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.provider.Symbols(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if symbols == nil {
		symbols = []string{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"symbols": symbols})
}

// SymbolCoverage describes what data the provider holds for one symbol.
type SymbolCoverage struct {
	Symbol    string `json:"symbol"`
	Bars      int    `json:"bars"`
	FirstDate string `json:"first_date,omitempty"`
	LastDate  string `json:"last_date,omitempty"`
	Dividends int    `json:"dividends"`
	Error     string `json:"error,omitempty"`
}

// DataCheck reports per-symbol data coverage over a date range, so a
// strategy's universe can be verified before running.
//
// Endpoint: GET /api/data/check?symbols=SPY,AGG&start=2020-01-01&end=2020-12-31
func (h *ProvidersHandler) DataCheck(w http.ResponseWriter, r *http.Request) {
	rawSymbols := r.URL.Query().Get("symbols")
	if rawSymbols == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "symbols query parameter is required",
		})
		return
	}

	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "start must be a YYYY-MM-DD date",
		})
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "end must be a YYYY-MM-DD date",
		})
		return
	}

	coverage := []SymbolCoverage{}
	for _, symbol := range strings.Split(rawSymbols, ",") {
		symbol = strings.TrimSpace(symbol)
		if symbol == "" {
			continue
		}

		entry := SymbolCoverage{Symbol: symbol}

		bars, err := h.provider.Bars(r.Context(), symbol, start, end)
		if err != nil {
			entry.Error = err.Error()
			coverage = append(coverage, entry)
			continue
		}
		entry.Bars = len(bars)
		if len(bars) > 0 {
			entry.FirstDate = bars[0].Date.Format("2006-01-02")
			entry.LastDate = bars[len(bars)-1].Date.Format("2006-01-02")
		}

		dividends, err := h.provider.Dividends(r.Context(), symbol, start, end)
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Dividends = len(dividends)
		}

		coverage = append(coverage, entry)
	}

	respondJSON(w, http.StatusOK, map[string]any{"coverage": coverage})
}

// SetCredential stores an encrypted provider API key.
//
// Endpoint: PUT /api/providers/credentials
func (h *ProvidersHandler) SetCredential(w http.ResponseWriter, r *http.Request) {
	if h.credentialService == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "credential store is not configured",
		})
		return
	}

	var req request.SetCredential
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "invalid request body",
			"detail": err.Error(),
		})
		return
	}
	if req.Provider == "" || req.APIKey == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": "provider and api_key are required",
		})
		return
	}

	if err := h.credentialService.Set(req.Provider, req.APIKey); err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// GetCredential returns a stored provider API key, decrypted. The route
// sits behind the API-key middleware.
//
// Endpoint: GET /api/providers/credentials/{provider}
func (h *ProvidersHandler) GetCredential(w http.ResponseWriter, r *http.Request) {
	if h.credentialService == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "credential store is not configured",
		})
		return
	}

	provider := chi.URLParam(r, "provider")

	cred, err := h.credentialService.Get(provider)
	if errors.Is(err, apperrors.ErrCredentialNotFound) {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"provider":   cred.Provider,
		"api_key":    cred.APIKey,
		"updated_at": cred.UpdatedAt,
	})
}
