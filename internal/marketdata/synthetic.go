package marketdata

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/cjg131/backtester-v1/internal/calendar"
	"github.com/cjg131/backtester-v1/internal/model"
)

// syntheticEpoch anchors the price series so the same date always maps
// to the same price regardless of the queried range.
var syntheticEpoch = time.Date(2000, time.January, 3, 0, 0, 0, 0, time.UTC)

// SyntheticSpec parameterizes one synthetic symbol.
type SyntheticSpec struct {
	// StartPrice is the price at the epoch.
	StartPrice float64

	// DailyReturn compounds once per calendar day.
	DailyReturn float64

	// DividendPerShare, when positive, pays on the 15th of March, June,
	// September, and December, aligned forward to a trading day.
	DividendPerShare float64

	// QualifiedPct of each dividend, defaulting to fully qualified.
	QualifiedPct float64

	ExpenseRatio float64
}

// SyntheticProvider generates deterministic market data from closed-form
// price paths. It backs tests and demo runs without any data files.
type SyntheticProvider struct {
	calendar *calendar.Market
	specs    map[string]SyntheticSpec
}

// NewSyntheticProvider creates a provider serving the given symbols.
func NewSyntheticProvider(cal *calendar.Market, specs map[string]SyntheticSpec) *SyntheticProvider {
	return &SyntheticProvider{calendar: cal, specs: specs}
}

// NewDemoProvider returns a synthetic provider on the NYSE calendar with
// a small stock/bond universe, for running the server without data files.
func NewDemoProvider() *SyntheticProvider {
	return NewSyntheticProvider(calendar.NewMarket("NYSE"), map[string]SyntheticSpec{
		"GROWTH": {StartPrice: 100, DailyReturn: 0.0005, DividendPerShare: 0.30, QualifiedPct: 0.95, ExpenseRatio: 0.0009},
		"VALUE":  {StartPrice: 80, DailyReturn: 0.0003, DividendPerShare: 0.55, QualifiedPct: 1.0, ExpenseRatio: 0.0006},
		"BOND":   {StartPrice: 105, DailyReturn: 0.0001, DividendPerShare: 0.25, QualifiedPct: 0, ExpenseRatio: 0.0003},
		"FLAT":   {StartPrice: 50},
	})
}

// Symbols lists the configured synthetic symbols.
func (p *SyntheticProvider) Symbols(ctx context.Context) ([]string, error) {
	symbols := make([]string, 0, len(p.specs))
	for s := range p.specs {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Bars generates a bar for every trading day in range. Open carries the
// previous day's close; high and low bracket the close by a fixed half
// percent so the OHLC fields stay internally consistent.
func (p *SyntheticProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	spec, ok := p.specs[symbol]
	if !ok {
		return nil, nil
	}

	var bars []model.Bar
	for _, day := range p.calendar.TradingDays(start, end) {
		price := p.priceOn(spec, day)
		bars = append(bars, model.Bar{
			Date:     day,
			Open:     price / (1 + spec.DailyReturn),
			High:     price * 1.005,
			Low:      price * 0.995,
			Close:    price,
			AdjClose: price,
			Volume:   1_000_000,
		})
	}
	return bars, nil
}

// Dividends generates the quarterly schedule for symbols configured
// with a per-share amount.
func (p *SyntheticProvider) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]model.DividendEvent, error) {
	spec, ok := p.specs[symbol]
	if !ok || spec.DividendPerShare <= 0 {
		return nil, nil
	}

	qualifiedPct := spec.QualifiedPct
	if qualifiedPct == 0 {
		qualifiedPct = 1.0
	}

	var dividends []model.DividendEvent
	for year := start.Year(); year <= end.Year(); year++ {
		for _, month := range []time.Month{time.March, time.June, time.September, time.December} {
			exDate := p.calendar.AlignToTradingDay(
				time.Date(year, month, 15, 0, 0, 0, 0, time.UTC),
				"FIRST_BUSINESS_DAY",
			)
			if exDate.Before(start) || exDate.After(end) {
				continue
			}
			dividends = append(dividends, model.DividendEvent{
				ExDate:       exDate,
				Amount:       spec.DividendPerShare,
				QualifiedPct: qualifiedPct,
			})
		}
	}
	return dividends, nil
}

// Splits returns nothing; synthetic price paths never split.
func (p *SyntheticProvider) Splits(ctx context.Context, symbol string, start, end time.Time) ([]model.Split, error) {
	return nil, nil
}

// ExpenseRatio returns the configured ratio.
func (p *SyntheticProvider) ExpenseRatio(ctx context.Context, symbol string) (float64, error) {
	return p.specs[symbol].ExpenseRatio, nil
}

func (p *SyntheticProvider) priceOn(spec SyntheticSpec, day time.Time) float64 {
	days := day.Sub(syntheticEpoch).Hours() / 24
	return spec.StartPrice * math.Pow(1+spec.DailyReturn, days)
}
