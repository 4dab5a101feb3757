package model

import "time"

// Bar is one daily OHLCV record for a symbol. AdjClose reflects splits
// and is the price series the simulation trades on.
type Bar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjClose"`
	Volume   float64   `json:"volume"`
}

// DividendEvent is a per-share dividend payment keyed by ex-date.
type DividendEvent struct {
	ExDate       time.Time `json:"exDate"`
	PayDate      time.Time `json:"payDate,omitempty"`
	Amount       float64   `json:"amount"`
	QualifiedPct float64   `json:"qualifiedPct"` // 0.0 to 1.0
}

// Split is a share split event. Splits are informational only: the
// adjusted close series already reflects them.
type Split struct {
	ExDate time.Time `json:"exDate"`
	Ratio  float64   `json:"ratio"` // 2.0 = 2-for-1
}

// SymbolData is the complete pre-loaded market dataset for one symbol.
// The simulation loop consumes only materialized SymbolData; it never
// fetches lazily mid-run.
type SymbolData struct {
	Symbol       string          `json:"symbol"`
	Bars         []Bar           `json:"bars"`
	Dividends    []DividendEvent `json:"dividends"`
	Splits       []Split         `json:"splits"`
	ExpenseRatio float64         `json:"expenseRatio"`
}

// PriceOn returns the adjusted close for the given day, or false if the
// symbol has no bar on that day. Bars are sorted ascending by date.
func (d *SymbolData) PriceOn(day time.Time) (float64, bool) {
	for i := range d.Bars {
		if d.Bars[i].Date.Equal(day) {
			return d.Bars[i].AdjClose, true
		}
		if d.Bars[i].Date.After(day) {
			break
		}
	}
	return 0, false
}
