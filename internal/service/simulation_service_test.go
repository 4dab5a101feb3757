package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cjg131/backtester-v1/internal/apperrors"
	"github.com/cjg131/backtester-v1/internal/testutil"
	"github.com/cjg131/backtester-v1/internal/validation"
)

func TestSimulationService_Run(t *testing.T) {
	db := testutil.SetupTestDB(t)
	simulationService := testutil.NewTestSimulationService(t, db)

	config := testutil.NewStrategyConfig().Build()

	result, run, err := simulationService.Run(context.Background(), "First run", config)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.EquityCurve) == 0 {
		t.Fatal("Expected a non-empty equity curve")
	}
	if run.Name != "First run" {
		t.Errorf("Expected run name 'First run', got %q", run.Name)
	}
	if run.Status != "completed" {
		t.Errorf("Expected status completed, got %q", run.Status)
	}

	last := result.EquityCurve[len(result.EquityCurve)-1]
	if run.FinalValue != last.PortfolioValue {
		t.Errorf("Expected final value %v, got %v", last.PortfolioValue, run.FinalValue)
	}
	if !run.StartDate.Equal(result.EquityCurve[0].Date) {
		t.Errorf("Expected start date %v, got %v", result.EquityCurve[0].Date, run.StartDate)
	}

	t.Run("persists the run", func(t *testing.T) {
		detail, err := simulationService.GetRun(run.ID)
		if err != nil {
			t.Fatalf("GetRun failed: %v", err)
		}
		if detail.Run.ID != run.ID {
			t.Errorf("Expected run %s, got %s", run.ID, detail.Run.ID)
		}
		if len(detail.EquityCurve) != len(result.EquityCurve) {
			t.Errorf("Expected %d stored equity points, got %d",
				len(result.EquityCurve), len(detail.EquityCurve))
		}
		if len(detail.Trades) == 0 {
			t.Error("Expected stored trades")
		}
	})

	t.Run("defaults an empty name", func(t *testing.T) {
		_, run, err := simulationService.Run(context.Background(), "", config)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if run.Name != "Backtest" {
			t.Errorf("Expected default name Backtest, got %q", run.Name)
		}
	})
}

func TestSimulationService_Validate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	simulationService := testutil.NewTestSimulationService(t, db)

	t.Run("accepts a complete config", func(t *testing.T) {
		if err := simulationService.Validate(testutil.NewStrategyConfig().Build()); err != nil {
			t.Errorf("Expected valid config, got %v", err)
		}
	})

	t.Run("rejects an empty universe", func(t *testing.T) {
		config := testutil.NewStrategyConfig().WithSymbols().Build()

		err := simulationService.Validate(config)
		var verr *validation.Error
		if !errors.As(err, &verr) {
			t.Fatalf("Expected validation error, got %v", err)
		}
		if _, ok := verr.Fields["universe.symbols"]; !ok {
			t.Errorf("Expected universe.symbols field error, got %v", verr.Fields)
		}
	})

	t.Run("rejects inverted date order", func(t *testing.T) {
		config := testutil.NewStrategyConfig().WithPeriod("2021-12-31", "2021-01-04").Build()

		var verr *validation.Error
		if !errors.As(simulationService.Validate(config), &verr) {
			t.Error("Expected validation error for inverted period")
		}
	})
}

func TestSimulationService_DeleteAndPurge(t *testing.T) {
	db := testutil.SetupTestDB(t)
	simulationService := testutil.NewTestSimulationService(t, db)

	run := testutil.CreateRun(t, db, "Short lived")

	if err := simulationService.DeleteRun(run.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}
	if err := simulationService.DeleteRun(run.ID); !errors.Is(err, apperrors.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}

	t.Run("purge disabled without retention", func(t *testing.T) {
		testutil.CreateRun(t, db, "Kept")

		deleted, err := simulationService.PurgeExpired(0)
		if err != nil {
			t.Fatalf("PurgeExpired failed: %v", err)
		}
		if deleted != 0 {
			t.Errorf("Expected no deletions with retention disabled, got %d", deleted)
		}
		testutil.AssertRowCount(t, db, "simulation_run", 1)
	})

	t.Run("purge removes only expired runs", func(t *testing.T) {
		deleted, err := simulationService.PurgeExpired(30)
		if err != nil {
			t.Fatalf("PurgeExpired failed: %v", err)
		}
		if deleted != 0 {
			t.Errorf("Expected fresh runs to survive a 30 day window, got %d deleted", deleted)
		}
	})
}
