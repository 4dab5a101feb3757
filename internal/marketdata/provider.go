// Package marketdata defines the data provider abstraction and the
// concrete providers that feed the simulation engine: local CSV files,
// Yahoo Finance, and a deterministic synthetic source.
package marketdata

import (
	"context"
	"time"

	"github.com/cjg131/backtester-v1/internal/model"
)

// DataProvider supplies historical market data for one symbol at a
// time. Implementations return empty slices, not errors, for symbols
// that simply have no data in the range.
type DataProvider interface {
	// Symbols lists every symbol the provider can serve.
	Symbols(ctx context.Context) ([]string, error)

	// Bars returns daily OHLCV bars between start and end, inclusive,
	// sorted ascending by date.
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error)

	// Dividends returns per-share dividend events by ex-date in range.
	Dividends(ctx context.Context, symbol string, start, end time.Time) ([]model.DividendEvent, error)

	// Splits returns split events by ex-date in range.
	Splits(ctx context.Context, symbol string, start, end time.Time) ([]model.Split, error)

	// ExpenseRatio returns the fund's annual expense ratio as a decimal,
	// or zero when unknown.
	ExpenseRatio(ctx context.Context, symbol string) (float64, error)
}
