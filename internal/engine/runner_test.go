package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cjg131/backtester-v1/internal/apperrors"
	"github.com/cjg131/backtester-v1/internal/calendar"
	"github.com/cjg131/backtester-v1/internal/engine"
	"github.com/cjg131/backtester-v1/internal/marketdata"
	"github.com/cjg131/backtester-v1/internal/model"
)

// testProvider returns a synthetic provider with a growing fund, a flat
// fund, and a dividend payer.
func testProvider() *marketdata.SyntheticProvider {
	cal := calendar.NewMarket("NYSE")
	return marketdata.NewSyntheticProvider(cal, map[string]marketdata.SyntheticSpec{
		"GROW": {StartPrice: 100, DailyReturn: 0.0005},
		"FLAT": {StartPrice: 50},
		"DIVD": {StartPrice: 80, DividendPerShare: 0.50, QualifiedPct: 0.8},
	})
}

func baseConfig(symbols ...string) model.StrategyConfig {
	return model.StrategyConfig{
		Universe:    model.UniverseConfig{Type: "CUSTOM", Symbols: symbols},
		Period:      model.PeriodConfig{Start: "2023-01-01", End: "2023-06-30"},
		InitialCash: 10000,
		Account:     model.AccountConfig{Type: model.AccountTaxable},
		Rebalancing: model.RebalancingConfig{
			Type:     model.RebalanceCalendar,
			Calendar: &model.CalendarRebalanceConfig{Period: model.PeriodMonthly},
		},
	}
}

// TestRunner_Run tests the end-to-end daily loop.
//
// WHY: The runner is where the pieces meet. These runs exercise the
// full pipeline order on deterministic data so regressions in any step
// show up as concrete value changes.
func TestRunner_Run(t *testing.T) {
	r := engine.NewRunner(testProvider(), zerolog.Nop())

	t.Run("basic run invests on first day and snapshots daily", func(t *testing.T) {
		result, err := r.Run(context.Background(), baseConfig("GROW", "FLAT"))
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}

		cal := calendar.NewMarket("NYSE")
		wantDays := len(cal.TradingDays(day(2023, time.January, 1), day(2023, time.June, 30)))
		if len(result.EquityCurve) != wantDays {
			t.Errorf("Expected %d equity points, got %d", wantDays, len(result.EquityCurve))
		}

		// First day always trades: cash should be nearly fully invested.
		first := result.EquityCurve[0]
		if first.Cash > first.PortfolioValue*0.02 {
			t.Errorf("Expected first day fully invested, cash %f of %f", first.Cash, first.PortfolioValue)
		}

		if len(result.Trades) == 0 {
			t.Error("Expected trades recorded")
		}
		if len(result.PositionsHistory) != len(result.EquityCurve) {
			t.Errorf("Positions history length %d != equity curve length %d",
				len(result.PositionsHistory), len(result.EquityCurve))
		}

		// GROW compounds daily; the portfolio must end above start.
		last := result.EquityCurve[len(result.EquityCurve)-1]
		if last.PortfolioValue <= 10000*0.99 {
			t.Errorf("Expected growth, final value %f", last.PortfolioValue)
		}
	})

	t.Run("taxable run produces a tax summary per year", func(t *testing.T) {
		config := baseConfig("GROW", "FLAT")
		config.Period.End = "2024-06-28"

		result, err := r.Run(context.Background(), config)
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}

		if len(result.TaxSummaries) != 2 {
			t.Fatalf("Expected 2 tax summaries (2023, 2024), got %d", len(result.TaxSummaries))
		}
		if result.TaxSummaries[0].Year != 2023 || result.TaxSummaries[1].Year != 2024 {
			t.Errorf("Expected years 2023 and 2024, got %d and %d",
				result.TaxSummaries[0].Year, result.TaxSummaries[1].Year)
		}
	})

	t.Run("roth run has no tax summaries", func(t *testing.T) {
		config := baseConfig("GROW", "FLAT")
		config.Account.Type = model.AccountRothIRA

		result, err := r.Run(context.Background(), config)
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}

		if len(result.TaxSummaries) != 0 {
			t.Errorf("Expected no tax summaries for Roth, got %d", len(result.TaxSummaries))
		}
	})

	t.Run("drip reinvests dividends into new lots", func(t *testing.T) {
		config := baseConfig("DIVD")
		config.Dividends.Mode = model.DividendDRIP

		result, err := r.Run(context.Background(), config)
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}

		var dividendSeen, dripSeen bool
		for _, trade := range result.Trades {
			switch trade.Action {
			case model.ActionDividend:
				dividendSeen = true
			case model.ActionDRIP:
				dripSeen = true
			}
		}
		if !dividendSeen {
			t.Error("Expected a dividend trade record")
		}
		if !dripSeen {
			t.Error("Expected a DRIP reinvestment trade")
		}
	})

	t.Run("cash dividend mode accrues to cash", func(t *testing.T) {
		config := baseConfig("DIVD")
		config.Dividends.Mode = model.DividendCash
		config.Rebalancing = model.RebalancingConfig{Type: model.RebalanceCashflowOnly}

		result, err := r.Run(context.Background(), config)
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}

		for _, trade := range result.Trades {
			if trade.Action == model.ActionDRIP {
				t.Fatal("Expected no DRIP trades in cash mode")
			}
		}

		// The March and June dividends should leave cash in the account.
		last := result.EquityCurve[len(result.EquityCurve)-1]
		if last.Cash <= 0 {
			t.Errorf("Expected positive cash from dividends, got %f", last.Cash)
		}
	})

	t.Run("monthly deposits are invested without full rebalance", func(t *testing.T) {
		config := baseConfig("GROW", "FLAT")
		config.Deposits = &model.DepositConfig{Cadence: model.DepositMonthly, Amount: 500}

		result, err := r.Run(context.Background(), config)
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}

		// Six months, one deposit each: final value reflects the extra
		// principal.
		last := result.EquityCurve[len(result.EquityCurve)-1]
		if last.PortfolioValue < 12500 {
			t.Errorf("Expected deposits reflected in value, got %f", last.PortfolioValue)
		}
	})

	t.Run("roth contribution cap skips oversized deposit with warning", func(t *testing.T) {
		config := baseConfig("GROW")
		config.Account.Type = model.AccountRothIRA
		config.Deposits = &model.DepositConfig{Cadence: model.DepositYearly, Amount: 8000}

		result, err := r.Run(context.Background(), config)
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}

		found := false
		for _, w := range result.Warnings {
			if strings.Contains(w, "Contribution cap reached") {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected contribution cap warning, got %v", result.Warnings)
		}
	})

	t.Run("benchmark simulation produces metrics and curve", func(t *testing.T) {
		config := baseConfig("GROW", "FLAT")
		config.Benchmark = []string{"GROW"}

		result, err := r.Run(context.Background(), config)
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}

		if _, ok := result.BenchmarkMetrics["GROW"]; !ok {
			t.Error("Expected benchmark metrics for GROW")
		}
		curve := result.BenchmarkEquity["GROW"]
		if len(curve) == 0 {
			t.Fatal("Expected benchmark equity curve")
		}
		if curve[len(curve)-1].Value <= 10000 {
			t.Errorf("Expected benchmark growth above initial cash, got %f", curve[len(curve)-1].Value)
		}
	})

	t.Run("unknown symbols become warnings, missing data aborts", func(t *testing.T) {
		config := baseConfig("NOPE")

		_, err := r.Run(context.Background(), config)
		if !errors.Is(err, apperrors.ErrNoMarketData) {
			t.Errorf("Expected ErrNoMarketData, got %v", err)
		}
	})
}

// TestRunner_Run_StableTradeOrder tests that repeated runs of the same
// config produce the same trade sequence. Two payers share every
// synthetic ex-date, so unordered per-symbol iteration would flip their
// dividend rows between runs.
func TestRunner_Run_StableTradeOrder(t *testing.T) {
	cal := calendar.NewMarket("NYSE")
	provider := marketdata.NewSyntheticProvider(cal, map[string]marketdata.SyntheticSpec{
		"DIVA": {StartPrice: 60, DividendPerShare: 0.30},
		"DIVB": {StartPrice: 90, DividendPerShare: 0.40},
	})
	r := engine.NewRunner(provider, zerolog.Nop())

	config := baseConfig("DIVA", "DIVB")
	config.Dividends.Mode = model.DividendDRIP

	tradeSequence := func(t *testing.T) []string {
		t.Helper()
		result, err := r.Run(context.Background(), config)
		if err != nil {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
		seq := make([]string, 0, len(result.Trades))
		for _, trade := range result.Trades {
			seq = append(seq, trade.Date.Format("2006-01-02")+" "+string(trade.Action)+" "+trade.Symbol)
		}
		return seq
	}

	first := tradeSequence(t)

	payers := map[string]bool{}
	for _, trade := range first {
		parts := strings.Fields(trade)
		if parts[1] == string(model.ActionDividend) {
			payers[parts[2]] = true
		}
	}
	if !payers["DIVA"] || !payers["DIVB"] {
		t.Fatalf("Expected dividend trades for both symbols, got %v", first)
	}

	for i := 0; i < 20; i++ {
		got := tradeSequence(t)
		if strings.Join(got, ",") != strings.Join(first, ",") {
			t.Fatalf("Trade order changed on run %d:\n got %v\nwant %v", i+2, got, first)
		}
	}
}

// TestRunner_Run_ConfigErrors tests fatal validation before the loop.
func TestRunner_Run_ConfigErrors(t *testing.T) {
	r := engine.NewRunner(testProvider(), zerolog.Nop())

	tests := []struct {
		name    string
		mutate  func(*model.StrategyConfig)
		wantErr error
	}{
		{
			name:    "empty universe",
			mutate:  func(c *model.StrategyConfig) { c.Universe.Symbols = nil },
			wantErr: apperrors.ErrEmptyUniverse,
		},
		{
			name:    "zero initial cash",
			mutate:  func(c *model.StrategyConfig) { c.InitialCash = 0 },
			wantErr: apperrors.ErrNonPositiveCash,
		},
		{
			name:    "end before start",
			mutate:  func(c *model.StrategyConfig) { c.Period.End = "2022-01-01" },
			wantErr: apperrors.ErrInvalidDateRange,
		},
		{
			name:    "malformed start date",
			mutate:  func(c *model.StrategyConfig) { c.Period.Start = "January 1st" },
			wantErr: apperrors.ErrInvalidDateRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := baseConfig("GROW")
			tt.mutate(&config)

			_, err := r.Run(context.Background(), config)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
