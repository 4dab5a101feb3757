package engine_test

import (
	"testing"
	"time"

	"github.com/cjg131/backtester-v1/internal/engine"
	"github.com/cjg131/backtester-v1/internal/model"
)

// TestTaxCalculator_CalculateAnnualTax tests the year-end tax math.
//
// WHY: The rate application rules differ per income type: short-term
// gains and ordinary dividends at ordinary rates, long-term gains and
// qualified dividends at LTCG rates, and losses never generate refunds.
func TestTaxCalculator_CalculateAnnualTax(t *testing.T) {
	config := model.DefaultTaxConfig() // fed 0.32, ltcg 0.15, state 0.06
	calc := engine.NewTaxCalculator(config)

	t.Run("taxes each income type at its rate", func(t *testing.T) {
		l := engine.NewLedger(100000, model.AccountTaxable, model.LotFIFO, true)
		// 1000 short-term gain: buy at 100, sell at 110 within a year.
		mustBuy(t, l, "SPY", 100, 100, day(2023, time.January, 3))
		if _, err := l.Sell("SPY", 100, 110, day(2023, time.June, 1), 0, 0); err != nil {
			t.Fatalf("Sell() failed: %v", err)
		}
		// 80 qualified / 20 ordinary dividend income.
		l.RecordDividend("AGG", 100, day(2023, time.March, 15), 0.8)

		summary := calc.CalculateAnnualTax(2023, l)

		if !almostEqual(summary.ShortTermGains, 1000) {
			t.Errorf("Expected short-term gains 1000, got %f", summary.ShortTermGains)
		}
		// ST 1000*0.38 + qualified 80*0.21 + ordinary 20*0.38
		want := 1000*0.38 + 80*0.21 + 20*0.38
		if !almostEqual(summary.TotalTax, want) {
			t.Errorf("Expected total tax %f, got %f", want, summary.TotalTax)
		}
	})

	t.Run("net losses produce zero tax but appear in summary", func(t *testing.T) {
		l := engine.NewLedger(100000, model.AccountTaxable, model.LotFIFO, true)
		mustBuy(t, l, "SPY", 100, 100, day(2023, time.January, 3))
		if _, err := l.Sell("SPY", 100, 90, day(2023, time.June, 1), 0, 0); err != nil {
			t.Fatalf("Sell() failed: %v", err)
		}

		summary := calc.CalculateAnnualTax(2023, l)

		if summary.TotalTax != 0 {
			t.Errorf("Expected zero tax on net loss, got %f", summary.TotalTax)
		}
		if !almostEqual(summary.ShortTermGains, -1000) {
			t.Errorf("Expected short-term gains -1000 in summary, got %f", summary.ShortTermGains)
		}
	})

	t.Run("empty year yields empty summary", func(t *testing.T) {
		l := engine.NewLedger(1000, model.AccountTaxable, model.LotFIFO, true)

		summary := calc.CalculateAnnualTax(2023, l)

		if summary.TotalTax != 0 || summary.ShortTermGains != 0 || summary.QualifiedDividends != 0 {
			t.Errorf("Expected empty summary, got %+v", summary)
		}
	})
}

// TestTaxCalculator_ApplyYearEndTax tests cash deduction behavior.
func TestTaxCalculator_ApplyYearEndTax(t *testing.T) {
	calc := engine.NewTaxCalculator(model.DefaultTaxConfig())

	setup := func(t *testing.T) *engine.Ledger {
		l := engine.NewLedger(100000, model.AccountTaxable, model.LotFIFO, true)
		mustBuy(t, l, "SPY", 100, 100, day(2023, time.January, 3))
		if _, err := l.Sell("SPY", 100, 110, day(2023, time.June, 1), 0, 0); err != nil {
			t.Fatalf("Sell() failed: %v", err)
		}
		return l
	}

	t.Run("deducts from cash by default", func(t *testing.T) {
		l := setup(t)
		before := l.Cash

		tax := calc.ApplyYearEndTax(2023, l, false)

		if !almostEqual(tax, 380) {
			t.Errorf("Expected tax 380, got %f", tax)
		}
		if !almostEqual(l.Cash, before-380) {
			t.Errorf("Expected cash reduced by tax, got %f (was %f)", l.Cash, before)
		}
	})

	t.Run("external payment leaves cash alone", func(t *testing.T) {
		l := setup(t)
		before := l.Cash

		tax := calc.ApplyYearEndTax(2023, l, true)

		if !almostEqual(tax, 380) {
			t.Errorf("Expected tax 380, got %f", tax)
		}
		if !almostEqual(l.Cash, before) {
			t.Errorf("Expected cash unchanged, got %f (was %f)", l.Cash, before)
		}
	})
}

// TestTaxCalculator_CalculateAfterTaxValue tests liquidation valuation
// per account type.
func TestTaxCalculator_CalculateAfterTaxValue(t *testing.T) {
	calc := engine.NewTaxCalculator(model.DefaultTaxConfig())
	prices := map[string]float64{"SPY": 150}

	buildLedger := func(t *testing.T, accountType model.AccountType) *engine.Ledger {
		l := engine.NewLedger(10000, accountType, model.LotFIFO, true)
		mustBuy(t, l, "SPY", 100, 100, day(2023, time.January, 3))
		return l
	}

	t.Run("roth is tax free", func(t *testing.T) {
		l := buildLedger(t, model.AccountRothIRA)
		// Total value = 0 cash + 15000 shares.
		if got := calc.CalculateAfterTaxValue(l, prices, 0.25); !almostEqual(got, 15000) {
			t.Errorf("Expected 15000, got %f", got)
		}
	})

	t.Run("529 qualified withdrawal is tax free", func(t *testing.T) {
		l := buildLedger(t, model.AccountPlan529)
		if got := calc.CalculateAfterTaxValue(l, prices, 0.25); !almostEqual(got, 15000) {
			t.Errorf("Expected 15000, got %f", got)
		}
	})

	t.Run("traditional ira taxed on full withdrawal", func(t *testing.T) {
		l := buildLedger(t, model.AccountTraditionalIRA)
		if got := calc.CalculateAfterTaxValue(l, prices, 0.25); !almostEqual(got, 11250) {
			t.Errorf("Expected 11250, got %f", got)
		}
	})

	t.Run("taxable owes ltcg on unrealized gains", func(t *testing.T) {
		l := buildLedger(t, model.AccountTaxable)
		// Unrealized gain 5000 at 21% = 1050.
		if got := calc.CalculateAfterTaxValue(l, prices, 0.25); !almostEqual(got, 13950) {
			t.Errorf("Expected 13950, got %f", got)
		}
	})
}
