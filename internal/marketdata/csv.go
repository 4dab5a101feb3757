package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cjg131/backtester-v1/internal/model"
)

// CSVProvider reads market data from a local directory tree:
//
//	data/
//	    bars/SPY.csv        date,open,high,low,close,adj_close,volume
//	    dividends/SPY.csv   ex_date,pay_date,amount,qualified_pct
//	    splits/SPY.csv      ex_date,ratio
//	    metadata.csv        symbol,expense_ratio
//
// Missing files mean no data for that symbol, not an error.
type CSVProvider struct {
	dataDir      string
	expenseRatio map[string]float64
}

// NewCSVProvider creates a provider rooted at dataDir and loads the
// optional metadata file.
func NewCSVProvider(dataDir string) (*CSVProvider, error) {
	p := &CSVProvider{
		dataDir:      dataDir,
		expenseRatio: make(map[string]float64),
	}

	metaPath := filepath.Join(dataDir, "metadata.csv")
	if _, err := os.Stat(metaPath); err == nil {
		if err := p.loadMetadata(metaPath); err != nil {
			return nil, fmt.Errorf("loading metadata: %w", err)
		}
	}

	return p, nil
}

func (p *CSVProvider) loadMetadata(path string) error {
	rows, header, err := readCSV(path)
	if err != nil {
		return err
	}

	symbolCol := header["symbol"]
	erCol, hasER := header["expense_ratio"]

	for _, row := range rows {
		if !hasER || row[erCol] == "" {
			continue
		}
		er, err := strconv.ParseFloat(row[erCol], 64)
		if err != nil {
			return fmt.Errorf("invalid expense_ratio for %s: %w", row[symbolCol], err)
		}
		p.expenseRatio[row[symbolCol]] = er
	}
	return nil
}

// Symbols lists the symbols that have a bars file.
func (p *CSVProvider) Symbols(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.dataDir, "bars"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading bars directory: %w", err)
	}

	var symbols []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".csv") {
			symbols = append(symbols, strings.TrimSuffix(name, ".csv"))
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Bars loads the symbol's daily bars within the date range.
func (p *CSVProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	path := filepath.Join(p.dataDir, "bars", symbol+".csv")
	rows, header, err := readCSV(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading bars for %s: %w", symbol, err)
	}

	var bars []model.Bar
	for _, row := range rows {
		date, err := parseDay(row[header["date"]])
		if err != nil {
			return nil, fmt.Errorf("bars for %s: %w", symbol, err)
		}
		if date.Before(start) || date.After(end) {
			continue
		}

		bar := model.Bar{Date: date}
		if bar.Open, err = parseFloat(row, header, "open"); err != nil {
			return nil, fmt.Errorf("bars for %s: %w", symbol, err)
		}
		if bar.High, err = parseFloat(row, header, "high"); err != nil {
			return nil, fmt.Errorf("bars for %s: %w", symbol, err)
		}
		if bar.Low, err = parseFloat(row, header, "low"); err != nil {
			return nil, fmt.Errorf("bars for %s: %w", symbol, err)
		}
		if bar.Close, err = parseFloat(row, header, "close"); err != nil {
			return nil, fmt.Errorf("bars for %s: %w", symbol, err)
		}
		if bar.Volume, err = parseFloat(row, header, "volume"); err != nil {
			return nil, fmt.Errorf("bars for %s: %w", symbol, err)
		}

		// Fall back to close when the file carries no adjusted series.
		if _, ok := header["adj_close"]; ok && row[header["adj_close"]] != "" {
			if bar.AdjClose, err = parseFloat(row, header, "adj_close"); err != nil {
				return nil, fmt.Errorf("bars for %s: %w", symbol, err)
			}
		} else {
			bar.AdjClose = bar.Close
		}

		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// Dividends loads the symbol's dividend events within the date range.
func (p *CSVProvider) Dividends(ctx context.Context, symbol string, start, end time.Time) ([]model.DividendEvent, error) {
	path := filepath.Join(p.dataDir, "dividends", symbol+".csv")
	rows, header, err := readCSV(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading dividends for %s: %w", symbol, err)
	}

	var dividends []model.DividendEvent
	for _, row := range rows {
		exDate, err := parseDay(row[header["ex_date"]])
		if err != nil {
			return nil, fmt.Errorf("dividends for %s: %w", symbol, err)
		}
		if exDate.Before(start) || exDate.After(end) {
			continue
		}

		div := model.DividendEvent{ExDate: exDate, QualifiedPct: 1.0}
		if div.Amount, err = parseFloat(row, header, "amount"); err != nil {
			return nil, fmt.Errorf("dividends for %s: %w", symbol, err)
		}
		if col, ok := header["qualified_pct"]; ok && row[col] != "" {
			if div.QualifiedPct, err = parseFloat(row, header, "qualified_pct"); err != nil {
				return nil, fmt.Errorf("dividends for %s: %w", symbol, err)
			}
		}
		if col, ok := header["pay_date"]; ok && row[col] != "" {
			if div.PayDate, err = parseDay(row[col]); err != nil {
				return nil, fmt.Errorf("dividends for %s: %w", symbol, err)
			}
		}

		dividends = append(dividends, div)
	}

	sort.Slice(dividends, func(i, j int) bool { return dividends[i].ExDate.Before(dividends[j].ExDate) })
	return dividends, nil
}

// Splits loads the symbol's split events within the date range.
func (p *CSVProvider) Splits(ctx context.Context, symbol string, start, end time.Time) ([]model.Split, error) {
	path := filepath.Join(p.dataDir, "splits", symbol+".csv")
	rows, header, err := readCSV(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading splits for %s: %w", symbol, err)
	}

	var splits []model.Split
	for _, row := range rows {
		exDate, err := parseDay(row[header["ex_date"]])
		if err != nil {
			return nil, fmt.Errorf("splits for %s: %w", symbol, err)
		}
		if exDate.Before(start) || exDate.After(end) {
			continue
		}

		split := model.Split{ExDate: exDate}
		if split.Ratio, err = parseFloat(row, header, "ratio"); err != nil {
			return nil, fmt.Errorf("splits for %s: %w", symbol, err)
		}
		splits = append(splits, split)
	}

	sort.Slice(splits, func(i, j int) bool { return splits[i].ExDate.Before(splits[j].ExDate) })
	return splits, nil
}

// ExpenseRatio returns the expense ratio from metadata.csv, or zero.
func (p *CSVProvider) ExpenseRatio(ctx context.Context, symbol string) (float64, error) {
	return p.expenseRatio[symbol], nil
}

// readCSV reads a CSV file and returns its data rows plus a map from
// lower-cased header name to column index.
func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty CSV file %s", path)
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}

	return records[1:], header, nil
}

func parseDay(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

func parseFloat(row []string, header map[string]int, col string) (float64, error) {
	idx, ok := header[col]
	if !ok {
		return 0, fmt.Errorf("missing column %q", col)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", col, row[idx], err)
	}
	return v, nil
}
