package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cjg131/backtester-v1/internal/yahoo"
)

// ChartPoint is one trading day of mock Yahoo price data.
type ChartPoint struct {
	Date     time.Time
	Open     float64
	Close    float64
	AdjClose float64
	High     float64
	Low      float64
	Volume   int64
}

// ChartDividend is one mock dividend event by ex-date.
type ChartDividend struct {
	Date   time.Time
	Amount float64
}

// ChartSplit is one mock split event by ex-date.
type ChartSplit struct {
	Date        time.Time
	Numerator   float64
	Denominator float64
}

// MockChartJSON renders points and events in the Yahoo Finance v8 chart
// response format. The output unmarshals into yahoo.Response, so it can
// feed ParseChart directly or be served by NewMockYahooClient.
func MockChartJSON(symbol string, points []ChartPoint, dividends []ChartDividend, splits []ChartSplit) string {
	timestamps := make([]int64, len(points))
	open := make([]float64, len(points))
	closes := make([]float64, len(points))
	adjClose := make([]float64, len(points))
	high := make([]float64, len(points))
	low := make([]float64, len(points))
	volume := make([]int64, len(points))

	for i, p := range points {
		timestamps[i] = p.Date.Unix()
		open[i] = p.Open
		closes[i] = p.Close
		adjClose[i] = p.AdjClose
		high[i] = p.High
		low[i] = p.Low
		volume[i] = p.Volume
	}

	events := map[string]any{}
	if len(dividends) > 0 {
		divs := map[string]any{}
		for _, d := range dividends {
			divs[fmt.Sprintf("%d", d.Date.Unix())] = map[string]any{
				"amount": d.Amount,
				"date":   d.Date.Unix(),
			}
		}
		events["dividends"] = divs
	}
	if len(splits) > 0 {
		sps := map[string]any{}
		for _, s := range splits {
			sps[fmt.Sprintf("%d", s.Date.Unix())] = map[string]any{
				"numerator":   s.Numerator,
				"denominator": s.Denominator,
				"date":        s.Date.Unix(),
			}
		}
		events["splits"] = sps
	}

	payload := map[string]any{
		"chart": map[string]any{
			"result": []any{
				map[string]any{
					"meta": map[string]any{
						"currency":     "USD",
						"symbol":       symbol,
						"exchangeName": "PCX",
					},
					"timestamp": timestamps,
					"indicators": map[string]any{
						"quote": []any{
							map[string]any{
								"open":   open,
								"close":  closes,
								"high":   high,
								"low":    low,
								"volume": volume,
							},
						},
						"adjclose": []any{
							map[string]any{"adjclose": adjClose},
						},
					},
					"events": events,
				},
			},
			"error": nil,
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// Marshaling maps of primitives cannot fail.
		panic(err)
	}

	return string(data)
}

// MockChartErrorJSON renders a Yahoo chart response carrying an API error.
func MockChartErrorJSON(message string) string {
	return fmt.Sprintf(`{"chart":{"result":null,"error":%q}}`, message)
}

// MockDailyChartPoints generates count consecutive weekday points starting
// at start, with close prices stepping up by one from base each day.
func MockDailyChartPoints(start time.Time, base float64, count int) []ChartPoint {
	points := make([]ChartPoint, 0, count)
	day := start
	for len(points) < count {
		if day.Weekday() != time.Saturday && day.Weekday() != time.Sunday {
			price := base + float64(len(points))
			points = append(points, ChartPoint{
				Date:     day,
				Open:     price - 0.5,
				Close:    price,
				AdjClose: price,
				High:     price + 0.5,
				Low:      price - 1,
				Volume:   1000000,
			})
		}
		day = day.AddDate(0, 0, 1)
	}
	return points
}

// chartTransport serves canned chart payloads keyed by symbol, matching
// the /v8/finance/chart/{symbol} path QueryHistory requests.
type chartTransport struct {
	payloads map[string]string
}

func (t chartTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	payload, ok := t.payloads[path.Base(req.URL.Path)]
	if !ok {
		payload = MockChartErrorJSON("No data found, symbol may be delisted")
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(payload)),
		Request:    req,
	}, nil
}

// NewMockYahooClient returns a FinanceClient whose transport answers with
// the given payloads by symbol. Unknown symbols get a Yahoo-style error
// response. No network traffic leaves the process.
func NewMockYahooClient(payloads map[string]string) *yahoo.FinanceClient {
	return yahoo.NewFinanceClientWithHTTP(&http.Client{
		Transport: chartTransport{payloads: payloads},
	})
}
