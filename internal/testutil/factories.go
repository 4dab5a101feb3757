package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cjg131/backtester-v1/internal/model"
	"github.com/cjg131/backtester-v1/internal/repository"
)

// StrategyConfigBuilder builds strategy configs for tests using a fluent pattern.
//
// Example usage:
//
//	config := testutil.NewStrategyConfig().
//	    WithSymbols("SPY", "AGG").
//	    WithPeriod("2021-01-04", "2021-12-31").
//	    Build()
type StrategyConfigBuilder struct {
	config model.StrategyConfig
}

// NewStrategyConfig creates a builder preloaded with a small two-symbol
// taxable strategy that survives validation as-is.
func NewStrategyConfig() *StrategyConfigBuilder {
	return &StrategyConfigBuilder{
		config: model.StrategyConfig{
			Universe: model.UniverseConfig{
				Type:    "CUSTOM",
				Symbols: []string{"SPY", "AGG"},
			},
			Period: model.PeriodConfig{
				Start:    "2021-01-04",
				End:      "2021-12-31",
				Calendar: "NYSE",
			},
			InitialCash: 10000,
			Account: model.AccountConfig{
				Type: model.AccountTaxable,
			},
			Rebalancing: model.RebalancingConfig{
				Type:     model.RebalanceCalendar,
				Calendar: &model.CalendarRebalanceConfig{Period: model.PeriodQuarterly},
			},
		},
	}
}

func (b *StrategyConfigBuilder) WithSymbols(symbols ...string) *StrategyConfigBuilder {
	b.config.Universe.Symbols = symbols
	return b
}

func (b *StrategyConfigBuilder) WithPeriod(start, end string) *StrategyConfigBuilder {
	b.config.Period.Start = start
	b.config.Period.End = end
	return b
}

func (b *StrategyConfigBuilder) WithInitialCash(cash float64) *StrategyConfigBuilder {
	b.config.InitialCash = cash
	return b
}

func (b *StrategyConfigBuilder) WithAccountType(accountType model.AccountType) *StrategyConfigBuilder {
	b.config.Account.Type = accountType
	return b
}

func (b *StrategyConfigBuilder) WithLotMethod(method model.LotMethod) *StrategyConfigBuilder {
	b.config.Lots.Method = method
	return b
}

func (b *StrategyConfigBuilder) WithRebalancing(rebalancing model.RebalancingConfig) *StrategyConfigBuilder {
	b.config.Rebalancing = rebalancing
	return b
}

func (b *StrategyConfigBuilder) WithDeposits(cadence model.DepositCadence, amount float64) *StrategyConfigBuilder {
	b.config.Deposits = &model.DepositConfig{Cadence: cadence, Amount: amount}
	return b
}

func (b *StrategyConfigBuilder) WithDividendMode(mode model.DividendMode) *StrategyConfigBuilder {
	b.config.Dividends.Mode = mode
	return b
}

func (b *StrategyConfigBuilder) WithBenchmark(symbols ...string) *StrategyConfigBuilder {
	b.config.Benchmark = symbols
	return b
}

// Build returns the config with engine defaults applied.
func (b *StrategyConfigBuilder) Build() model.StrategyConfig {
	config := b.config
	config.ApplyDefaults()
	return config
}

// SimulationRunBuilder builds and persists simulation runs for tests.
type SimulationRunBuilder struct {
	run    model.SimulationRun
	result model.Result
}

// NewSimulationRun creates a builder for a completed run with a two-point
// equity curve, one trade and one tax summary.
func NewSimulationRun() *SimulationRunBuilder {
	start := time.Date(2021, time.January, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, time.December, 31, 0, 0, 0, 0, time.UTC)

	return &SimulationRunBuilder{
		run: model.SimulationRun{
			ID:         uuid.NewString(),
			Name:       "Test Run",
			Status:     "completed",
			StartDate:  start,
			EndDate:    end,
			FinalValue: 11000,
			Warnings:   nil,
			CreatedAt:  time.Now().UTC(),
		},
		result: model.Result{
			Config: NewStrategyConfig().Build(),
			EquityCurve: []model.EquityPoint{
				{Date: start, PortfolioValue: 10000, Cash: 10000},
				{Date: end, PortfolioValue: 11000, Cash: 120, PositionsValue: 10880},
			},
			Trades: []model.Trade{
				{
					ID:        uuid.NewString(),
					Date:      start,
					Symbol:    "SPY",
					Action:    model.ActionBuy,
					Quantity:  13,
					Price:     370.0,
					TotalCost: 4810.0,
				},
			},
			TaxSummaries: []model.TaxSummary{
				{Year: 2021, QualifiedDividends: 96.0, OrdinaryDividends: 24.0, TotalTax: 21.6},
			},
		},
	}
}

func (b *SimulationRunBuilder) WithID(id string) *SimulationRunBuilder {
	b.run.ID = id
	return b
}

func (b *SimulationRunBuilder) WithName(name string) *SimulationRunBuilder {
	b.run.Name = name
	return b
}

func (b *SimulationRunBuilder) WithCreatedAt(createdAt time.Time) *SimulationRunBuilder {
	b.run.CreatedAt = createdAt
	return b
}

func (b *SimulationRunBuilder) WithWarnings(warnings ...string) *SimulationRunBuilder {
	b.run.Warnings = warnings
	return b
}

// Build persists the run with its trades, equity curve and tax summaries.
func (b *SimulationRunBuilder) Build(t *testing.T, db *sql.DB) model.SimulationRun {
	t.Helper()

	repo := repository.NewRunRepository(db)
	if err := repo.CreateRun(b.run, &b.result); err != nil {
		t.Fatalf("Failed to create test run: %v", err)
	}

	return b.run
}

// CreateRun persists a run with default content under the given name.
func CreateRun(t *testing.T, db *sql.DB, name string) model.SimulationRun {
	t.Helper()
	return NewSimulationRun().WithName(name).Build(t, db)
}

// CreateRuns persists count runs with distinct names and ascending
// creation times so list ordering is deterministic.
func CreateRuns(t *testing.T, db *sql.DB, count int) []model.SimulationRun {
	t.Helper()

	base := time.Now().UTC().Add(-time.Duration(count) * time.Hour)
	runs := make([]model.SimulationRun, 0, count)
	for i := 0; i < count; i++ {
		run := NewSimulationRun().
			WithName("Test Run " + string(rune('A'+i))).
			WithCreatedAt(base.Add(time.Duration(i) * time.Hour)).
			Build(t, db)
		runs = append(runs, run)
	}

	return runs
}
