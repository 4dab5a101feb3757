package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cjg131/backtester-v1/internal/api"
	"github.com/cjg131/backtester-v1/internal/config"
	"github.com/cjg131/backtester-v1/internal/database"
	"github.com/cjg131/backtester-v1/internal/logger"
	"github.com/cjg131/backtester-v1/internal/marketdata"
	"github.com/cjg131/backtester-v1/internal/repository"
	"github.com/cjg131/backtester-v1/internal/service"
	"github.com/cjg131/backtester-v1/internal/yahoo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	// Open database connection and bring the schema up to date
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	log.Info().Str("path", cfg.Database.Path).Msg("Connected to database")

	// Select the market-data provider
	var provider marketdata.DataProvider
	switch cfg.Data.Provider {
	case "csv":
		provider, err = marketdata.NewCSVProvider(cfg.Data.Dir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.Data.Dir).Msg("Failed to open CSV data directory")
		}
	case "yahoo":
		provider = marketdata.NewYahooProvider(yahoo.NewFinanceClient())
	case "synthetic":
		provider = marketdata.NewDemoProvider()
	default:
		log.Fatal().Str("provider", cfg.Data.Provider).Msg("Unknown DATA_PROVIDER")
	}

	// Create repositories
	runRepo := repository.NewRunRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)

	// Create services
	systemService := service.NewSystemService(db)
	simulationService := service.NewSimulationService(provider, runRepo, log)

	var credentialService *service.CredentialService
	if cfg.API.FernetKey != "" {
		credentialService, err = service.NewCredentialService(credentialRepo, cfg.API.FernetKey)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create credential service")
		}
	}

	// Schedule the stored-run retention purge
	scheduler := cron.New()
	if cfg.Retention.Days > 0 {
		_, err := scheduler.AddFunc(cfg.Retention.Schedule, func() {
			if _, err := simulationService.PurgeExpired(cfg.Retention.Days); err != nil {
				log.Error().Err(err).Msg("Retention purge failed")
			}
		})
		if err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Retention.Schedule).Msg("Invalid retention schedule")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Create router
	router := api.NewRouter(systemService, simulationService, credentialService, provider, cfg, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
