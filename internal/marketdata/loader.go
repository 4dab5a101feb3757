package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cjg131/backtester-v1/internal/model"
)

// loadConcurrency bounds the number of symbols fetched in parallel,
// keeping remote providers under their rate limits.
const loadConcurrency = 8

// LoadResult is the materialized dataset for a run plus any per-symbol
// problems that were downgraded to warnings.
type LoadResult struct {
	Data     map[string]*model.SymbolData
	Warnings []string
}

// Loader fetches the complete dataset for a symbol universe up front,
// one provider call set per symbol, concurrently.
type Loader struct {
	provider DataProvider
	logger   zerolog.Logger
}

// NewLoader creates a loader over the given provider.
func NewLoader(provider DataProvider, logger zerolog.Logger) *Loader {
	return &Loader{
		provider: provider,
		logger:   logger.With().Str("component", "marketdata").Logger(),
	}
}

// Load fetches bars, dividends, splits, and optionally expense ratios
// for every symbol. Symbols that fail or return no bars are dropped with
// a warning; the run proceeds on whatever loaded.
func (l *Loader) Load(ctx context.Context, symbols []string, start, end time.Time, withExpenseRatios bool) (*LoadResult, error) {
	result := &LoadResult{Data: make(map[string]*model.SymbolData, len(symbols))}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)

	for _, symbol := range symbols {
		symbol := symbol
		g.Go(func() error {
			data, warning := l.loadSymbol(ctx, symbol, start, end, withExpenseRatios)

			mu.Lock()
			defer mu.Unlock()
			if warning != "" {
				result.Warnings = append(result.Warnings, warning)
			}
			if data != nil {
				result.Data[symbol] = data
			}
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Info().
		Int("requested", len(symbols)).
		Int("loaded", len(result.Data)).
		Msg("market data loaded")

	return result, nil
}

func (l *Loader) loadSymbol(ctx context.Context, symbol string, start, end time.Time, withExpenseRatios bool) (*model.SymbolData, string) {
	bars, err := l.provider.Bars(ctx, symbol, start, end)
	if err != nil {
		l.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to load bars")
		return nil, fmt.Sprintf("Error loading data for %s: %v", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Sprintf("No price data for %s", symbol)
	}

	dividends, err := l.provider.Dividends(ctx, symbol, start, end)
	if err != nil {
		l.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to load dividends")
		return nil, fmt.Sprintf("Error loading data for %s: %v", symbol, err)
	}

	splits, err := l.provider.Splits(ctx, symbol, start, end)
	if err != nil {
		l.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to load splits")
		return nil, fmt.Sprintf("Error loading data for %s: %v", symbol, err)
	}

	var expenseRatio float64
	if withExpenseRatios {
		expenseRatio, err = l.provider.ExpenseRatio(ctx, symbol)
		if err != nil {
			// Expense ratio is an enhancement, not a requirement.
			l.logger.Warn().Err(err).Str("symbol", symbol).Msg("failed to load expense ratio")
			expenseRatio = 0
		}
	}

	return &model.SymbolData{
		Symbol:       symbol,
		Bars:         bars,
		Dividends:    dividends,
		Splits:       splits,
		ExpenseRatio: expenseRatio,
	}, ""
}
