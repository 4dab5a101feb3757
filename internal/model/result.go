package model

import "time"

// EquityPoint is one daily snapshot of the portfolio's value.
type EquityPoint struct {
	Date           time.Time `json:"date"`
	PortfolioValue float64   `json:"portfolioValue"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positionsValue"`
}

// PositionSnapshot is the set of open positions on one day.
type PositionSnapshot struct {
	Date      time.Time  `json:"date"`
	Positions []Position `json:"positions"`
}

// TaxSummary is the tax breakdown for one calendar year. It is derived
// from the ledger's accumulators and can be recomputed at any time.
type TaxSummary struct {
	Year               int     `json:"year"`
	ShortTermGains     float64 `json:"shortTermGains"`
	LongTermGains      float64 `json:"longTermGains"`
	QualifiedDividends float64 `json:"qualifiedDividends"`
	OrdinaryDividends  float64 `json:"ordinaryDividends"`
	InterestIncome     float64 `json:"interestIncome"`
	TotalTax           float64 `json:"totalTax"`
	WashSaleCount      int     `json:"washSaleCount"`
}

// PerformanceMetrics summarizes the equity curve. Benchmark-relative
// fields are nil when no benchmark returns were supplied.
type PerformanceMetrics struct {
	TWR                     float64  `json:"twr"`
	IRR                     float64  `json:"irr"`
	CAGR                    float64  `json:"cagr"`
	AnnualVol               float64  `json:"annualVol"`
	Sharpe                  float64  `json:"sharpe"`
	Sortino                 float64  `json:"sortino"`
	Calmar                  float64  `json:"calmar"`
	MaxDrawdown             float64  `json:"maxDrawdown"`
	MaxDrawdownDurationDays int      `json:"maxDrawdownDurationDays"`
	BestMonth               float64  `json:"bestMonth"`
	WorstMonth              float64  `json:"worstMonth"`
	BestQuarter             float64  `json:"bestQuarter"`
	WorstQuarter            float64  `json:"worstQuarter"`
	HitRatio                float64  `json:"hitRatio"`
	Alpha                   *float64 `json:"alpha,omitempty"`
	Beta                    *float64 `json:"beta,omitempty"`
	TrackingError           *float64 `json:"trackingError,omitempty"`
	InformationRatio        *float64 `json:"informationRatio,omitempty"`
}

// BenchmarkEquityPoint is one daily value of a simulated benchmark.
type BenchmarkEquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Result is the complete output of one simulation run.
type Result struct {
	Config           StrategyConfig                    `json:"config"`
	EquityCurve      []EquityPoint                     `json:"equityCurve"`
	Metrics          PerformanceMetrics                `json:"metrics"`
	BenchmarkMetrics map[string]PerformanceMetrics     `json:"benchmarkMetrics"`
	BenchmarkEquity  map[string][]BenchmarkEquityPoint `json:"benchmarkEquity"`
	Trades           []Trade                           `json:"trades"`
	PositionsHistory []PositionSnapshot                `json:"positionsHistory"`
	TaxSummaries     []TaxSummary                      `json:"taxSummaries"`
	Lots             []Lot                             `json:"lots"`
	Warnings         []string                          `json:"warnings"`
	Diagnostics      map[string]any                    `json:"diagnostics"`
}

// SimulationRun is the persisted header of a completed run.
type SimulationRun struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ConfigJSON string    `json:"-"`
	Status     string    `json:"status"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	FinalValue float64   `json:"finalValue"`
	Warnings   []string  `json:"warnings"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ProviderCredential is an API key for a market-data provider, stored
// encrypted at rest.
type ProviderCredential struct {
	Provider  string    `json:"provider"`
	APIKey    string    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}
