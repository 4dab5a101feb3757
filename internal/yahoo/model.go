package yahoo

import "time"

// Response represents the raw JSON response structure from the Yahoo
// Finance chart API. It contains nested structures for metadata,
// timestamps, price indicators, and corporate action events.
//
// The structure includes:
//   - Chart.Result: Array of result objects (typically one element)
//   - Chart.Result[].Meta: Symbol metadata (name, currency, exchange)
//   - Chart.Result[].Timestamp: Unix timestamps for each data point
//   - Chart.Result[].Indicators: Price arrays (open, close, high, low,
//     volume) plus the split- and dividend-adjusted close series
//   - Chart.Result[].Events: Dividend and split events keyed by timestamp
//   - Chart.Error: Optional error message from the Yahoo API
type Response struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency         string `json:"currency"`
				Symbol           string `json:"symbol"`
				ExchangeName     string `json:"exchangeName"`
				FullExchangeName string `json:"fullExchangeName"`
				LongName         string `json:"longName"`
				Shortname        string `json:"shortName"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
			Events struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
				Splits map[string]struct {
					Numerator   float64 `json:"numerator"`
					Denominator float64 `json:"denominator"`
					Date        int64   `json:"date"`
				} `json:"splits"`
			} `json:"events"`
		} `json:"result"`
		Error *string `json:"error"`
	} `json:"chart"`
}

// PriceChart represents a parsed and structured price history from Yahoo
// Finance. This is the application's internal representation after
// parsing the raw Response.
//
// The chart contains:
//   - Symbol metadata: ticker, name, exchange, and currency information
//   - Indicators: a time-series array of daily price data points
//   - Dividends and Splits: corporate actions within the queried range
type PriceChart struct {
	Currency         string       `json:"currency"`
	Symbol           string       `json:"symbol"`
	ExchangeName     string       `json:"exchangeName"`
	FullExchangeName string       `json:"fullExchangeName"`
	LongName         string       `json:"longName"`
	Shortname        string       `json:"shortName"`
	Indicators       []Indicators `json:"indicators"`
	Dividends        []Dividend   `json:"dividends"`
	Splits           []SplitEvent `json:"splits"`
}

// Indicators represents a single day's price data for a financial
// instrument. Each Indicators instance corresponds to one trading day
// and carries the standard OHLCV data plus the adjusted close.
//
// Fields:
//   - Date: Trading date (time component set to midnight UTC)
//   - PriceOpen: Opening price for the day
//   - PriceClose: Closing price for the day
//   - PriceAdjClose: Split- and dividend-adjusted closing price
//   - PriceHigh: Highest price during the day
//   - PriceLow: Lowest price during the day
//   - Volume: Number of shares traded during the day
type Indicators struct {
	Date          time.Time
	PriceOpen     float64
	PriceClose    float64
	PriceAdjClose float64
	Volume        int64
	PriceHigh     float64
	PriceLow      float64
}

// Dividend is a single per-share cash dividend by ex-date.
type Dividend struct {
	ExDate time.Time
	Amount float64
}

// SplitEvent is a single share split by ex-date. Ratio is the number of
// new shares per old share, e.g. 2.0 for a 2-for-1 split.
type SplitEvent struct {
	ExDate time.Time
	Ratio  float64
}
