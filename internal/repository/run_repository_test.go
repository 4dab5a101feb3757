package repository_test

import (
	"errors"
	"testing"
	"time"

	"github.com/cjg131/backtester-v1/internal/apperrors"
	"github.com/cjg131/backtester-v1/internal/repository"
	"github.com/cjg131/backtester-v1/internal/testutil"
)

func TestRunRepository_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewRunRepository(db)

	created := testutil.NewSimulationRun().
		WithName("Quarterly rebalance").
		WithWarnings("SPY: 2 bars missing").
		Build(t, db)

	testutil.AssertRowCount(t, db, "simulation_run", 1)
	testutil.AssertRowCount(t, db, "simulation_trade", 1)
	testutil.AssertRowCount(t, db, "simulation_equity", 2)
	testutil.AssertRowCount(t, db, "simulation_tax_summary", 1)

	run, err := repo.GetRunOnID(created.ID)
	if err != nil {
		t.Fatalf("GetRunOnID failed: %v", err)
	}

	if run.Name != "Quarterly rebalance" {
		t.Errorf("Expected name 'Quarterly rebalance', got %q", run.Name)
	}
	if run.Status != "completed" {
		t.Errorf("Expected status completed, got %q", run.Status)
	}
	if run.FinalValue != 11000 {
		t.Errorf("Expected final value 11000, got %v", run.FinalValue)
	}
	if len(run.Warnings) != 1 || run.Warnings[0] != "SPY: 2 bars missing" {
		t.Errorf("Expected stored warnings, got %v", run.Warnings)
	}
	if run.ConfigJSON == "" {
		t.Error("Expected stored config JSON, got empty string")
	}
	if !run.StartDate.Equal(time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected start date 2021-01-04, got %v", run.StartDate)
	}
}

func TestRunRepository_GetRuns(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewRunRepository(db)

	testutil.CreateRuns(t, db, 3)

	t.Run("returns all runs newest first", func(t *testing.T) {
		runs, err := repo.GetRuns(0)
		if err != nil {
			t.Fatalf("GetRuns failed: %v", err)
		}

		if len(runs) != 3 {
			t.Fatalf("Expected 3 runs, got %d", len(runs))
		}
		if runs[0].Name != "Test Run C" {
			t.Errorf("Expected newest run first, got %q", runs[0].Name)
		}
		if runs[2].Name != "Test Run A" {
			t.Errorf("Expected oldest run last, got %q", runs[2].Name)
		}
	})

	t.Run("honors limit", func(t *testing.T) {
		runs, err := repo.GetRuns(2)
		if err != nil {
			t.Fatalf("GetRuns failed: %v", err)
		}

		if len(runs) != 2 {
			t.Errorf("Expected 2 runs, got %d", len(runs))
		}
	})

	t.Run("unknown id returns not found", func(t *testing.T) {
		_, err := repo.GetRunOnID(testutil.MakeID())
		if !errors.Is(err, apperrors.ErrRunNotFound) {
			t.Errorf("Expected ErrRunNotFound, got %v", err)
		}
	})
}

func TestRunRepository_ChildRows(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewRunRepository(db)

	created := testutil.CreateRun(t, db, "With children")

	trades, err := repo.GetTradesOnRunID(created.ID)
	if err != nil {
		t.Fatalf("GetTradesOnRunID failed: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(trades))
	}
	if trades[0].Symbol != "SPY" || trades[0].Quantity != 13 {
		t.Errorf("Expected 13 SPY, got %v %s", trades[0].Quantity, trades[0].Symbol)
	}

	equity, err := repo.GetEquityOnRunID(created.ID)
	if err != nil {
		t.Fatalf("GetEquityOnRunID failed: %v", err)
	}
	if len(equity) != 2 {
		t.Fatalf("Expected 2 equity points, got %d", len(equity))
	}
	if equity[0].PortfolioValue != 10000 || equity[1].PortfolioValue != 11000 {
		t.Errorf("Expected equity 10000 then 11000, got %v then %v",
			equity[0].PortfolioValue, equity[1].PortfolioValue)
	}

	summaries, err := repo.GetTaxSummariesOnRunID(created.ID)
	if err != nil {
		t.Fatalf("GetTaxSummariesOnRunID failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("Expected 1 tax summary, got %d", len(summaries))
	}
	if summaries[0].Year != 2021 || summaries[0].TotalTax != 21.6 {
		t.Errorf("Expected 2021 tax 21.6, got year %d tax %v",
			summaries[0].Year, summaries[0].TotalTax)
	}
}

func TestRunRepository_DeleteRun(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewRunRepository(db)

	created := testutil.CreateRun(t, db, "Doomed")

	if err := repo.DeleteRun(created.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	// Child rows cascade with the run.
	testutil.AssertRowCount(t, db, "simulation_run", 0)
	testutil.AssertRowCount(t, db, "simulation_trade", 0)
	testutil.AssertRowCount(t, db, "simulation_equity", 0)
	testutil.AssertRowCount(t, db, "simulation_tax_summary", 0)

	if err := repo.DeleteRun(created.ID); !errors.Is(err, apperrors.ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound on second delete, got %v", err)
	}
}

func TestRunRepository_DeleteRunsOlderThan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewRunRepository(db)

	now := time.Now().UTC()
	testutil.NewSimulationRun().WithName("Old").WithCreatedAt(now.AddDate(0, 0, -45)).Build(t, db)
	kept := testutil.NewSimulationRun().WithName("Fresh").WithCreatedAt(now.Add(-time.Hour)).Build(t, db)

	deleted, err := repo.DeleteRunsOlderThan(now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteRunsOlderThan failed: %v", err)
	}

	if deleted != 1 {
		t.Errorf("Expected 1 deleted run, got %d", deleted)
	}

	runs, err := repo.GetRuns(0)
	if err != nil {
		t.Fatalf("GetRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != kept.ID {
		t.Errorf("Expected only the fresh run to survive, got %d runs", len(runs))
	}
}
