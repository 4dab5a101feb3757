package marketdata_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cjg131/backtester-v1/internal/marketdata"
	"github.com/cjg131/backtester-v1/internal/model"
)

// faultyProvider serves one good symbol and fails or returns nothing
// for the others.
type faultyProvider struct{}

func (p *faultyProvider) Symbols(ctx context.Context) ([]string, error) {
	return []string{"GOOD", "EMPTY", "BROKEN"}, nil
}

func (p *faultyProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	switch symbol {
	case "GOOD":
		return []model.Bar{{Date: start, Close: 100, AdjClose: 100}}, nil
	case "EMPTY":
		return nil, nil
	default:
		return nil, errors.New("feed unavailable")
	}
}

func (p *faultyProvider) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]model.DividendEvent, error) {
	return nil, nil
}

func (p *faultyProvider) Splits(ctx context.Context, symbol string, start, end time.Time) ([]model.Split, error) {
	return nil, nil
}

func (p *faultyProvider) ExpenseRatio(ctx context.Context, symbol string) (float64, error) {
	return 0.001, nil
}

// TestLoader_Load tests that per-symbol failures degrade to warnings
// while healthy symbols still load.
//
// WHY: A single bad ticker in a large universe should not abort the
// whole run.
func TestLoader_Load(t *testing.T) {
	loader := marketdata.NewLoader(&faultyProvider{}, zerolog.Nop())

	start := time.Date(2023, time.January, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC)

	result, err := loader.Load(context.Background(), []string{"GOOD", "EMPTY", "BROKEN"}, start, end, true)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	if len(result.Data) != 1 {
		t.Fatalf("Expected 1 loaded symbol, got %d", len(result.Data))
	}
	good, ok := result.Data["GOOD"]
	if !ok {
		t.Fatal("Expected GOOD to load")
	}
	if good.ExpenseRatio != 0.001 {
		t.Errorf("Expected expense ratio 0.001, got %f", good.ExpenseRatio)
	}

	if len(result.Warnings) != 2 {
		t.Fatalf("Expected 2 warnings, got %d: %v", len(result.Warnings), result.Warnings)
	}
	var sawEmpty, sawBroken bool
	for _, w := range result.Warnings {
		if strings.Contains(w, "No price data for EMPTY") {
			sawEmpty = true
		}
		if strings.Contains(w, "Error loading data for BROKEN") {
			sawBroken = true
		}
	}
	if !sawEmpty || !sawBroken {
		t.Errorf("Expected warnings for EMPTY and BROKEN, got %v", result.Warnings)
	}
}

// TestLoader_ContextCancellation tests that a cancelled context stops
// the load with an error.
func TestLoader_ContextCancellation(t *testing.T) {
	loader := marketdata.NewLoader(&faultyProvider{}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Date(2023, time.January, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC)

	if _, err := loader.Load(ctx, []string{"GOOD"}, start, end, false); err == nil {
		t.Error("Expected an error from a cancelled context")
	}
}
