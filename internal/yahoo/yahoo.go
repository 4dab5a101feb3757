package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// FinanceClient provides methods for fetching financial data from the
// Yahoo Finance API. It wraps an HTTP client and provides convenient
// methods for querying historical prices, dividends, and splits.
type FinanceClient struct {
	httpClient *http.Client
}

// NewFinanceClient creates a new Yahoo Finance client with default HTTP
// settings. The client uses a standard http.Client for making requests
// to Yahoo Finance endpoints.
//
// Returns:
//   - *FinanceClient: A new client instance ready for use
func NewFinanceClient() *FinanceClient {
	return &FinanceClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewFinanceClientWithHTTP creates a Yahoo Finance client backed by the
// given HTTP client. Tests use this to route requests to a stub transport.
func NewFinanceClientWithHTTP(httpClient *http.Client) *FinanceClient {
	return &FinanceClient{httpClient: httpClient}
}

// QueryHistory fetches daily price data plus dividend and split events
// for a symbol within a specific date range. This method is used to
// materialize the full dataset a simulation needs before its daily loop
// starts.
//
// The method uses Yahoo Finance's period-based query format with Unix
// timestamps and requests the div|split event streams alongside the
// price series.
//
// Parameters:
//   - ctx: Context for cancellation and deadlines
//   - symbol: Stock ticker symbol (e.g., "SPY", "AGG")
//   - startDate: Beginning of date range (inclusive)
//   - endDate: End of date range (inclusive)
//
// Returns:
//   - Response: Raw API response containing prices and events
//   - error: If the HTTP request fails, the API returns an error, or no
//     results were found
func (c *FinanceClient) QueryHistory(ctx context.Context, symbol string, startDate, endDate time.Time) (Response, error) {
	url := fmt.Sprintf(
		"https://query1.finance.yahoo.com/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d&events=div%%7Csplit",
		symbol,
		startDate.Unix(),
		endDate.AddDate(0, 0, 1).Unix(),
	)
	result, err := c.queryYahoo(ctx, url)
	if err != nil {
		return Response{}, err
	}
	if len(result.Chart.Result) == 0 {
		return Response{}, fmt.Errorf("no results returned for symbol %s", symbol)
	}

	return result, nil
}

// ParseChart converts a raw Yahoo Finance API response into a structured
// price chart. This method extracts price data (open, close, adjusted
// close, high, low, volume), corporate actions, and metadata (symbol,
// currency, exchange) from the Yahoo response format.
//
// The method performs validation to ensure:
//   - Timestamp data is present
//   - Close price data is present
//   - Data arrays have matching lengths
//
// When the response carries no adjusted close series, the close series
// is used in its place.
//
// Parameters:
//   - yahooResult: Raw response from Yahoo Finance API
//
// Returns:
//   - PriceChart: Structured chart with indicators and events
//   - error: If data is missing, malformed, or arrays have mismatched lengths
func (c *FinanceClient) ParseChart(yahooResult Response) (PriceChart, error) {

	result := yahooResult.Chart.Result[0]

	if len(result.Timestamp) == 0 {
		return PriceChart{}, fmt.Errorf("no price data returned")
	}
	if len(result.Indicators.Quote) == 0 || len(result.Indicators.Quote[0].Close) == 0 {
		return PriceChart{}, fmt.Errorf("no close prices returned")
	}

	if len(result.Indicators.Quote[0].Close) != len(result.Timestamp) {
		return PriceChart{}, fmt.Errorf("mismatched data lengths")
	}

	var adjClose []float64
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	indicators := make([]Indicators, len(result.Timestamp))
	for i, v := range result.Timestamp {
		indicators[i].Date = time.Unix(v, 0).UTC()
		indicators[i].PriceOpen = result.Indicators.Quote[0].Open[i]
		indicators[i].PriceClose = result.Indicators.Quote[0].Close[i]
		indicators[i].Volume = result.Indicators.Quote[0].Volume[i]
		indicators[i].PriceHigh = result.Indicators.Quote[0].High[i]
		indicators[i].PriceLow = result.Indicators.Quote[0].Low[i]
		if len(adjClose) == len(result.Timestamp) {
			indicators[i].PriceAdjClose = adjClose[i]
		} else {
			indicators[i].PriceAdjClose = indicators[i].PriceClose
		}
	}

	dividends := make([]Dividend, 0, len(result.Events.Dividends))
	for _, div := range result.Events.Dividends {
		dividends = append(dividends, Dividend{
			ExDate: time.Unix(div.Date, 0).UTC(),
			Amount: div.Amount,
		})
	}
	sort.Slice(dividends, func(i, j int) bool {
		return dividends[i].ExDate.Before(dividends[j].ExDate)
	})

	splits := make([]SplitEvent, 0, len(result.Events.Splits))
	for _, sp := range result.Events.Splits {
		if sp.Denominator == 0 {
			continue
		}
		splits = append(splits, SplitEvent{
			ExDate: time.Unix(sp.Date, 0).UTC(),
			Ratio:  sp.Numerator / sp.Denominator,
		})
	}
	sort.Slice(splits, func(i, j int) bool {
		return splits[i].ExDate.Before(splits[j].ExDate)
	})

	return PriceChart{
		Symbol:           result.Meta.Symbol,
		Currency:         result.Meta.Currency,
		ExchangeName:     result.Meta.ExchangeName,
		FullExchangeName: result.Meta.FullExchangeName,
		LongName:         result.Meta.LongName,
		Shortname:        result.Meta.Shortname,
		Indicators:       indicators,
		Dividends:        dividends,
		Splits:           splits,
	}, nil
}

// GetIndicatorForDate searches for price data matching a specific date.
// The method performs date-only comparison by truncating both the target
// and indicator dates to midnight UTC, ignoring time components.
//
// Parameters:
//   - target: The date to search for (time component is ignored)
//
// Returns:
//   - Indicators: The price data for the matching date
//   - bool: true if a match was found, false otherwise
func (c PriceChart) GetIndicatorForDate(target time.Time) (Indicators, bool) {
	targetDay := target.UTC().Truncate(24 * time.Hour)
	for _, ind := range c.Indicators {
		if ind.Date.UTC().Truncate(24 * time.Hour).Equal(targetDay) {
			return ind, true
		}
	}
	return Indicators{}, false
}

// queryYahoo is an internal helper that executes HTTP requests to the
// Yahoo Finance API. This method handles the common logic for making
// requests, reading responses, parsing JSON, and checking for API errors.
//
// The method sets required headers:
//   - User-Agent: Mimics a browser to avoid API blocking
//   - Accept: Requests JSON response format
//
// Parameters:
//   - ctx: Context for cancellation and deadlines
//   - url: Fully-formed Yahoo Finance API URL
//
// Returns:
//   - Response: Parsed API response
//   - error: If the HTTP request fails, response parsing fails, or the
//     Yahoo API returns an error
func (c *FinanceClient) queryYahoo(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return Response{}, err
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}

	var response Response
	if err := json.Unmarshal(data, &response); err != nil {
		return Response{}, err
	}

	if response.Chart.Error != nil {
		return Response{}, fmt.Errorf("yahoo error: %s", *response.Chart.Error)
	}

	return response, nil
}
