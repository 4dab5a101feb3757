package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/cjg131/backtester-v1/internal/model"
	"github.com/cjg131/backtester-v1/internal/yahoo"
)

// YahooProvider serves market data from the Yahoo Finance chart API.
// Each requested symbol's full history is fetched once per range and
// cached, since the loader asks for bars, dividends, and splits of the
// same symbol in sequence.
type YahooProvider struct {
	client *yahoo.FinanceClient

	mu    sync.Mutex
	cache map[string]yahoo.PriceChart
}

// NewYahooProvider creates a provider over a Yahoo Finance client.
func NewYahooProvider(client *yahoo.FinanceClient) *YahooProvider {
	return &YahooProvider{
		client: client,
		cache:  make(map[string]yahoo.PriceChart),
	}
}

// Symbols returns nothing: Yahoo has no enumerable universe. Callers
// must name their symbols explicitly.
func (p *YahooProvider) Symbols(ctx context.Context) ([]string, error) {
	return nil, nil
}

// Bars fetches the symbol's adjusted daily bars in range.
func (p *YahooProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	chart, err := p.chart(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	var bars []model.Bar
	for _, ind := range chart.Indicators {
		day := ind.Date.Truncate(24 * time.Hour)
		if day.Before(start) || day.After(end) {
			continue
		}
		bars = append(bars, model.Bar{
			Date:     day,
			Open:     ind.PriceOpen,
			High:     ind.PriceHigh,
			Low:      ind.PriceLow,
			Close:    ind.PriceClose,
			AdjClose: ind.PriceAdjClose,
			Volume:   float64(ind.Volume),
		})
	}
	return bars, nil
}

// Dividends fetches the symbol's dividend events in range. Yahoo does
// not classify dividends, so every payment is treated as fully qualified.
func (p *YahooProvider) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]model.DividendEvent, error) {
	chart, err := p.chart(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	var dividends []model.DividendEvent
	for _, div := range chart.Dividends {
		day := div.ExDate.Truncate(24 * time.Hour)
		if day.Before(start) || day.After(end) {
			continue
		}
		dividends = append(dividends, model.DividendEvent{
			ExDate:       day,
			Amount:       div.Amount,
			QualifiedPct: 1.0,
		})
	}
	return dividends, nil
}

// Splits fetches the symbol's split events in range.
func (p *YahooProvider) Splits(ctx context.Context, symbol string, start, end time.Time) ([]model.Split, error) {
	chart, err := p.chart(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	var splits []model.Split
	for _, sp := range chart.Splits {
		day := sp.ExDate.Truncate(24 * time.Hour)
		if day.Before(start) || day.After(end) {
			continue
		}
		splits = append(splits, model.Split{ExDate: day, Ratio: sp.Ratio})
	}
	return splits, nil
}

// ExpenseRatio returns zero: the chart API carries no fund metadata.
func (p *YahooProvider) ExpenseRatio(ctx context.Context, symbol string) (float64, error) {
	return 0, nil
}

func (p *YahooProvider) chart(ctx context.Context, symbol string, start, end time.Time) (yahoo.PriceChart, error) {
	key := symbol + start.Format("20060102") + end.Format("20060102")

	p.mu.Lock()
	chart, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return chart, nil
	}

	resp, err := p.client.QueryHistory(ctx, symbol, start, end)
	if err != nil {
		return yahoo.PriceChart{}, err
	}
	chart, err = p.client.ParseChart(resp)
	if err != nil {
		return yahoo.PriceChart{}, err
	}

	p.mu.Lock()
	p.cache[key] = chart
	p.mu.Unlock()

	return chart, nil
}
