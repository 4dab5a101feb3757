package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cjg131/backtester-v1/internal/engine"
	"github.com/cjg131/backtester-v1/internal/marketdata"
	"github.com/cjg131/backtester-v1/internal/model"
	"github.com/cjg131/backtester-v1/internal/repository"
	"github.com/cjg131/backtester-v1/internal/validation"
)

// RunDetail is a stored run with its persisted children loaded.
type RunDetail struct {
	Run          model.SimulationRun `json:"run"`
	Trades       []model.Trade       `json:"trades"`
	EquityCurve  []model.EquityPoint `json:"equityCurve"`
	TaxSummaries []model.TaxSummary  `json:"taxSummaries"`
}

// SimulationService runs backtests and persists their results.
type SimulationService struct {
	runner  *engine.Runner
	runRepo *repository.RunRepository
	logger  zerolog.Logger
}

// NewSimulationService creates a new SimulationService over the given
// market-data provider.
func NewSimulationService(provider marketdata.DataProvider, runRepo *repository.RunRepository, logger zerolog.Logger) *SimulationService {
	return &SimulationService{
		runner:  engine.NewRunner(provider, logger),
		runRepo: runRepo,
		logger:  logger.With().Str("component", "simulation").Logger(),
	}
}

// Validate checks a strategy config without running it.
func (s *SimulationService) Validate(config model.StrategyConfig) error {
	config.ApplyDefaults()
	return validation.ValidateStrategyConfig(&config)
}

// Run validates, executes, and persists a backtest. The stored run
// header is returned alongside the full result.
func (s *SimulationService) Run(ctx context.Context, name string, config model.StrategyConfig) (*model.Result, model.SimulationRun, error) {
	config.ApplyDefaults()
	if err := validation.ValidateStrategyConfig(&config); err != nil {
		return nil, model.SimulationRun{}, err
	}

	started := time.Now()
	result, err := s.runner.Run(ctx, config)
	if err != nil {
		return nil, model.SimulationRun{}, err
	}

	if name == "" {
		name = "Backtest"
	}

	run := model.SimulationRun{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    "completed",
		Warnings:  result.Warnings,
		CreatedAt: time.Now().UTC(),
	}
	if len(result.EquityCurve) > 0 {
		run.StartDate = result.EquityCurve[0].Date
		run.EndDate = result.EquityCurve[len(result.EquityCurve)-1].Date
		run.FinalValue = result.EquityCurve[len(result.EquityCurve)-1].PortfolioValue
	}

	if err := s.runRepo.CreateRun(run, result); err != nil {
		return nil, model.SimulationRun{}, fmt.Errorf("failed to persist run: %w", err)
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Float64("final_value", run.FinalValue).
		Dur("elapsed", time.Since(started)).
		Msg("backtest completed")

	return result, run, nil
}

// ListRuns returns stored run headers, newest first.
func (s *SimulationService) ListRuns(limit int) ([]model.SimulationRun, error) {
	return s.runRepo.GetRuns(limit)
}

// GetRun loads a stored run and its trades, equity curve, and tax
// summaries.
func (s *SimulationService) GetRun(runID string) (RunDetail, error) {
	run, err := s.runRepo.GetRunOnID(runID)
	if err != nil {
		return RunDetail{}, err
	}

	trades, err := s.runRepo.GetTradesOnRunID(runID)
	if err != nil {
		return RunDetail{}, err
	}
	equity, err := s.runRepo.GetEquityOnRunID(runID)
	if err != nil {
		return RunDetail{}, err
	}
	summaries, err := s.runRepo.GetTaxSummariesOnRunID(runID)
	if err != nil {
		return RunDetail{}, err
	}

	return RunDetail{
		Run:          run,
		Trades:       trades,
		EquityCurve:  equity,
		TaxSummaries: summaries,
	}, nil
}

// DeleteRun removes a stored run.
func (s *SimulationService) DeleteRun(runID string) error {
	return s.runRepo.DeleteRun(runID)
}

// PurgeExpired deletes runs older than the retention window. A
// non-positive retention disables purging.
func (s *SimulationService) PurgeExpired(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.runRepo.DeleteRunsOlderThan(cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("purged expired runs")
	}
	return deleted, nil
}
