package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/cjg131/backtester-v1/internal/api/handlers"
	custommiddleware "github.com/cjg131/backtester-v1/internal/api/middleware"
	"github.com/cjg131/backtester-v1/internal/config"
	"github.com/cjg131/backtester-v1/internal/marketdata"
	"github.com/cjg131/backtester-v1/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	systemService *service.SystemService,
	simulationService *service.SimulationService,
	credentialService *service.CredentialService,
	provider marketdata.DataProvider,
	cfg *config.Config,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.NewLogger(logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	apiKey := custommiddleware.NewAPIKey(cfg.API.Key)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		backtestHandler := handlers.NewBacktestHandler(simulationService)
		r.Route("/backtest", func(r chi.Router) {
			r.Post("/run", backtestHandler.Run)
			r.Post("/validate", backtestHandler.Validate)

			r.Route("/runs", func(r chi.Router) {
				r.Get("/", backtestHandler.ListRuns)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(custommiddleware.ValidateUUIDMiddleware)
					r.Get("/", backtestHandler.GetRun)
					r.With(apiKey).Delete("/", backtestHandler.DeleteRun)
				})
			})
		})

		providersHandler := handlers.NewProvidersHandler(provider, credentialService)
		r.Route("/providers", func(r chi.Router) {
			r.Get("/symbols", providersHandler.Symbols)

			r.Route("/credentials", func(r chi.Router) {
				r.Use(apiKey)
				r.Put("/", providersHandler.SetCredential)
				r.Get("/{provider}", providersHandler.GetCredential)
			})
		})

		r.Get("/data/check", providersHandler.DataCheck)
	})

	return r
}
