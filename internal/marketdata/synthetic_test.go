package marketdata_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/cjg131/backtester-v1/internal/calendar"
	"github.com/cjg131/backtester-v1/internal/marketdata"
)

// TestSyntheticProvider_Determinism tests that the generated series is a
// pure function of the date.
//
// WHY: Overlapping runs must see identical prices for the same day, or
// comparisons between backtests become meaningless.
func TestSyntheticProvider_Determinism(t *testing.T) {
	cal := calendar.NewMarket("NYSE")
	provider := marketdata.NewSyntheticProvider(cal, map[string]marketdata.SyntheticSpec{
		"GROW": {StartPrice: 100, DailyReturn: 0.0005},
	})
	ctx := context.Background()

	wide, err := provider.Bars(ctx, "GROW", day(2023, time.January, 1), day(2023, time.June, 30))
	if err != nil {
		t.Fatalf("Failed to generate bars: %v", err)
	}
	narrow, err := provider.Bars(ctx, "GROW", day(2023, time.March, 1), day(2023, time.March, 31))
	if err != nil {
		t.Fatalf("Failed to generate bars: %v", err)
	}

	wideByDate := make(map[time.Time]float64)
	for _, b := range wide {
		wideByDate[b.Date] = b.Close
	}
	for _, b := range narrow {
		if wideByDate[b.Date] != b.Close {
			t.Errorf("Price for %v differs between ranges: %f vs %f", b.Date, wideByDate[b.Date], b.Close)
		}
	}
}

// TestSyntheticProvider_Bars tests the bar shape and growth rate.
func TestSyntheticProvider_Bars(t *testing.T) {
	cal := calendar.NewMarket("NYSE")
	provider := marketdata.NewSyntheticProvider(cal, map[string]marketdata.SyntheticSpec{
		"GROW": {StartPrice: 100, DailyReturn: 0.0005},
		"FLAT": {StartPrice: 50, DailyReturn: 0},
	})
	ctx := context.Background()

	t.Run("bars only on trading days", func(t *testing.T) {
		bars, err := provider.Bars(ctx, "GROW", day(2023, time.July, 1), day(2023, time.July, 7))
		if err != nil {
			t.Fatalf("Failed to generate bars: %v", err)
		}
		// July 4 is a holiday; July 1-2 is a weekend.
		if len(bars) != 3 {
			t.Fatalf("Expected 3 bars, got %d", len(bars))
		}
		for _, b := range bars {
			if b.Low > b.Close || b.High < b.Close {
				t.Errorf("Bar on %v does not bracket its close: %v", b.Date, b)
			}
		}
	})

	t.Run("flat spec never moves", func(t *testing.T) {
		bars, err := provider.Bars(ctx, "FLAT", day(2023, time.January, 1), day(2023, time.March, 31))
		if err != nil {
			t.Fatalf("Failed to generate bars: %v", err)
		}
		for _, b := range bars {
			if b.Close != 50 {
				t.Errorf("Expected constant price 50, got %f on %v", b.Close, b.Date)
			}
		}
	})

	t.Run("growth compounds per calendar day", func(t *testing.T) {
		bars, err := provider.Bars(ctx, "GROW", day(2023, time.January, 3), day(2023, time.January, 3))
		if err != nil || len(bars) != 1 {
			t.Fatalf("Failed to generate single bar: %v", err)
		}
		// 8401 calendar days since 2000-01-03.
		days := day(2023, time.January, 3).Sub(day(2000, time.January, 3)).Hours() / 24
		want := 100 * math.Pow(1.0005, days)
		if math.Abs(bars[0].Close-want) > 1e-6 {
			t.Errorf("Expected price %f, got %f", want, bars[0].Close)
		}
	})

	t.Run("unknown symbol yields no bars", func(t *testing.T) {
		bars, err := provider.Bars(ctx, "NOPE", day(2023, time.January, 1), day(2023, time.January, 31))
		if err != nil || bars != nil {
			t.Errorf("Expected (nil, nil), got (%v, %v)", bars, err)
		}
	})
}

// TestSyntheticProvider_Dividends tests the quarterly schedule.
func TestSyntheticProvider_Dividends(t *testing.T) {
	cal := calendar.NewMarket("NYSE")
	provider := marketdata.NewSyntheticProvider(cal, map[string]marketdata.SyntheticSpec{
		"DIVD": {StartPrice: 80, DailyReturn: 0.0002, DividendPerShare: 0.50, QualifiedPct: 0.8},
		"GROW": {StartPrice: 100, DailyReturn: 0.0005},
	})
	ctx := context.Background()

	t.Run("four payments per year on aligned dates", func(t *testing.T) {
		divs, err := provider.Dividends(ctx, "DIVD", day(2023, time.January, 1), day(2023, time.December, 31))
		if err != nil {
			t.Fatalf("Failed to generate dividends: %v", err)
		}
		if len(divs) != 4 {
			t.Fatalf("Expected 4 dividends, got %d", len(divs))
		}
		for _, d := range divs {
			if !cal.IsTradingDay(d.ExDate) {
				t.Errorf("Ex-date %v is not a trading day", d.ExDate)
			}
			if d.Amount != 0.50 || d.QualifiedPct != 0.8 {
				t.Errorf("Expected (0.50, 0.8), got (%f, %f)", d.Amount, d.QualifiedPct)
			}
		}
		// June 15 2023 is a Thursday, so no alignment shift.
		if !divs[1].ExDate.Equal(day(2023, time.June, 15)) {
			t.Errorf("Expected ex-date 2023-06-15, got %v", divs[1].ExDate)
		}
	})

	t.Run("non-paying symbol has no dividends", func(t *testing.T) {
		divs, err := provider.Dividends(ctx, "GROW", day(2023, time.January, 1), day(2023, time.December, 31))
		if err != nil || divs != nil {
			t.Errorf("Expected (nil, nil), got (%v, %v)", divs, err)
		}
	})
}
