// Package metrics computes performance statistics from equity curves:
// returns, risk-adjusted ratios, drawdowns, and benchmark-relative
// measures.
package metrics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/cjg131/backtester-v1/internal/model"
)

// DefaultRiskFreeRate is the annual risk-free rate assumed by Sharpe
// and Sortino when the caller does not override it.
const DefaultRiskFreeRate = 0.02

const tradingDaysPerYear = 252

// Cashflow is one external deposit into (positive) or withdrawal from
// (negative) the portfolio.
type Cashflow struct {
	Date   time.Time
	Amount float64
}

// Series is a dated value curve, the common input shape for portfolio
// and benchmark equity.
type Series struct {
	Dates  []time.Time
	Values []float64
}

// SeriesFromEquityCurve converts the runner's equity snapshots.
func SeriesFromEquityCurve(curve []model.EquityPoint) Series {
	s := Series{
		Dates:  make([]time.Time, len(curve)),
		Values: make([]float64, len(curve)),
	}
	for i, p := range curve {
		s.Dates[i] = p.Date
		s.Values[i] = p.PortfolioValue
	}
	return s
}

// SeriesFromBenchmark converts a simulated benchmark curve.
func SeriesFromBenchmark(curve []model.BenchmarkEquityPoint) Series {
	s := Series{
		Dates:  make([]time.Time, len(curve)),
		Values: make([]float64, len(curve)),
	}
	for i, p := range curve {
		s.Dates[i] = p.Date
		s.Values[i] = p.Value
	}
	return s
}

// DailyReturns returns the day-over-day percentage changes. The result
// is one element shorter than the series; Dates holds the date each
// return realized on.
func (s Series) DailyReturns() Series {
	if len(s.Values) < 2 {
		return Series{}
	}
	r := Series{
		Dates:  make([]time.Time, 0, len(s.Values)-1),
		Values: make([]float64, 0, len(s.Values)-1),
	}
	for i := 1; i < len(s.Values); i++ {
		if s.Values[i-1] == 0 {
			continue
		}
		r.Dates = append(r.Dates, s.Dates[i])
		r.Values = append(r.Values, s.Values[i]/s.Values[i-1]-1)
	}
	return r
}

// Calculator computes performance metrics.
type Calculator struct {
	riskFreeRate float64
}

// NewCalculator creates a calculator with the given annual risk-free rate.
func NewCalculator(riskFreeRate float64) *Calculator {
	return &Calculator{riskFreeRate: riskFreeRate}
}

// CalculateAll computes the full metrics set for an equity curve.
// Cashflows, when present, feed the money-weighted calculations (IRR,
// deposit-adjusted TWR and CAGR). Benchmark, when non-empty, adds the
// relative metrics.
func (c *Calculator) CalculateAll(equity Series, cashflows []Cashflow, benchmark Series) model.PerformanceMetrics {
	returns := equity.DailyReturns()

	years := 0.0
	if len(equity.Dates) >= 2 {
		days := equity.Dates[len(equity.Dates)-1].Sub(equity.Dates[0]).Hours() / 24
		years = days / 365.25
	}

	twr := c.TWR(equity, cashflows)

	irr := twr
	if len(cashflows) > 0 {
		irr = c.IRR(equity, cashflows)
	}

	cagr := c.CAGR(equity, years, cashflows)
	maxDD, ddDuration := c.MaxDrawdown(equity)

	monthly := resampleReturns(equity, monthKey)
	quarterly := resampleReturns(equity, quarterKey)

	m := model.PerformanceMetrics{
		TWR:                     twr,
		IRR:                     irr,
		CAGR:                    cagr,
		AnnualVol:               c.Volatility(returns.Values),
		Sharpe:                  c.Sharpe(returns.Values),
		Sortino:                 c.Sortino(returns.Values),
		Calmar:                  c.Calmar(cagr, maxDD),
		MaxDrawdown:             maxDD,
		MaxDrawdownDurationDays: ddDuration,
		BestMonth:               maxOrZero(monthly),
		WorstMonth:              minOrZero(monthly),
		BestQuarter:             maxOrZero(quarterly),
		WorstQuarter:            minOrZero(quarterly),
		HitRatio:                c.HitRatio(returns.Values),
	}

	if len(benchmark.Values) > 0 {
		benchReturns := benchmark.DailyReturns()
		port, bench := alignByDate(returns, benchReturns)
		if len(port) >= 2 {
			alpha, beta := c.AlphaBeta(port, bench)
			te := c.TrackingError(port, bench)
			ir := c.InformationRatio(port, bench)
			m.Alpha = &alpha
			m.Beta = &beta
			m.TrackingError = &te
			m.InformationRatio = &ir
		}
	}

	return m
}

// TWR returns the total time-weighted return. With cashflows it becomes
// a deposit-adjusted approximation: total gain over total invested.
func (c *Calculator) TWR(equity Series, cashflows []Cashflow) float64 {
	if len(equity.Values) < 2 {
		return 0
	}
	if len(cashflows) == 0 {
		return equity.Values[len(equity.Values)-1]/equity.Values[0] - 1
	}

	var totalDeposits float64
	for _, cf := range cashflows {
		totalDeposits += cf.Amount
	}

	initial := equity.Values[0]
	final := equity.Values[len(equity.Values)-1]
	totalInvested := initial + totalDeposits
	if totalInvested <= 0 {
		return 0
	}
	return (final - initial - totalDeposits) / totalInvested
}

// IRR returns the annualized money-weighted return, found by Newton's
// method on the XIRR net present value. Falls back to TWR when the
// iteration fails to converge.
func (c *Calculator) IRR(equity Series, cashflows []Cashflow) float64 {
	if len(equity.Values) < 2 {
		return 0
	}

	start := equity.Dates[0]
	end := equity.Dates[len(equity.Dates)-1]

	type flow struct {
		amount float64
		years  float64
	}
	flows := []flow{{amount: -equity.Values[0], years: 0}}
	for _, cf := range cashflows {
		if cf.Amount == 0 || cf.Date.Before(start) || cf.Date.After(end) {
			continue
		}
		flows = append(flows, flow{
			amount: -cf.Amount,
			years:  cf.Date.Sub(start).Hours() / 24 / 365.0,
		})
	}
	flows = append(flows, flow{
		amount: equity.Values[len(equity.Values)-1],
		years:  end.Sub(start).Hours() / 24 / 365.0,
	})

	npv := func(rate float64) (float64, float64) {
		var v, dv float64
		for _, f := range flows {
			disc := math.Pow(1+rate, f.years)
			v += f.amount / disc
			dv -= f.amount * f.years / (disc * (1 + rate))
		}
		return v, dv
	}

	rate := 0.1
	for i := 0; i < 100; i++ {
		v, dv := npv(rate)
		if math.Abs(v) < 1e-7 {
			return rate
		}
		if dv == 0 || math.IsNaN(dv) {
			break
		}
		next := rate - v/dv
		if next <= -1 || math.IsNaN(next) || math.IsInf(next, 0) {
			break
		}
		if math.Abs(next-rate) < 1e-9 {
			return next
		}
		rate = next
	}

	return c.TWR(equity, nil)
}

// CAGR returns the compound annual growth rate, deposit-adjusted when
// cashflows are provided.
func (c *Calculator) CAGR(equity Series, years float64, cashflows []Cashflow) float64 {
	if len(equity.Values) < 2 || years <= 0 {
		return 0
	}

	if len(cashflows) > 0 {
		var totalDeposits float64
		for _, cf := range cashflows {
			totalDeposits += cf.Amount
		}
		initial := equity.Values[0]
		final := equity.Values[len(equity.Values)-1]
		totalInvested := initial + totalDeposits
		if totalInvested <= 0 {
			return 0
		}
		ratio := (totalInvested + (final - initial - totalDeposits)) / totalInvested
		return math.Pow(ratio, 1/years) - 1
	}

	return math.Pow(equity.Values[len(equity.Values)-1]/equity.Values[0], 1/years) - 1
}

// Volatility returns the annualized standard deviation of daily returns.
func (c *Calculator) Volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear)
}

// Sharpe returns the annualized Sharpe ratio over the risk-free rate.
func (c *Calculator) Sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	dailyRF := math.Pow(1+c.riskFreeRate, 1.0/tradingDaysPerYear) - 1
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - dailyRF
	}

	sd := stat.StdDev(excess, nil)
	if sd == 0 {
		return 0
	}
	return stat.Mean(excess, nil) / sd * math.Sqrt(tradingDaysPerYear)
}

// Sortino returns the annualized Sortino ratio, penalizing only
// downside deviation.
func (c *Calculator) Sortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	dailyRF := math.Pow(1+c.riskFreeRate, 1.0/tradingDaysPerYear) - 1
	excess := make([]float64, len(returns))
	var downside []float64
	for i, r := range returns {
		excess[i] = r - dailyRF
		if r < 0 {
			downside = append(downside, r)
		}
	}

	if len(downside) < 2 {
		return 0
	}
	downsideSD := stat.StdDev(downside, nil)
	if downsideSD == 0 {
		return 0
	}
	return stat.Mean(excess, nil) / downsideSD * math.Sqrt(tradingDaysPerYear)
}

// MaxDrawdown returns the deepest peak-to-trough decline (negative) and
// the longest run of consecutive days spent below a prior peak.
func (c *Calculator) MaxDrawdown(equity Series) (float64, int) {
	if len(equity.Values) < 2 {
		return 0, 0
	}

	var maxDD float64
	runningMax := equity.Values[0]
	maxDuration, currentDuration := 0, 0

	for _, v := range equity.Values {
		if v > runningMax {
			runningMax = v
		}
		dd := (v - runningMax) / runningMax
		if dd < maxDD {
			maxDD = dd
		}
		if dd < 0 {
			currentDuration++
			if currentDuration > maxDuration {
				maxDuration = currentDuration
			}
		} else {
			currentDuration = 0
		}
	}

	return maxDD, maxDuration
}

// Calmar returns CAGR over the magnitude of max drawdown, or zero when
// there was no drawdown.
func (c *Calculator) Calmar(cagr, maxDrawdown float64) float64 {
	if maxDrawdown >= 0 {
		return 0
	}
	return cagr / math.Abs(maxDrawdown)
}

// HitRatio returns the fraction of periods with a positive return.
func (c *Calculator) HitRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	var positive int
	for _, r := range returns {
		if r > 0 {
			positive++
		}
	}
	return float64(positive) / float64(len(returns))
}

// AlphaBeta regresses portfolio returns on benchmark returns, returning
// the annualized alpha and the beta.
func (c *Calculator) AlphaBeta(portfolio, benchmark []float64) (float64, float64) {
	if len(portfolio) < 2 || len(benchmark) < 2 {
		return 0, 1
	}

	benchVar := stat.Variance(benchmark, nil)
	beta := 1.0
	if benchVar != 0 {
		beta = stat.Covariance(portfolio, benchmark, nil) / benchVar
	}

	portMean := stat.Mean(portfolio, nil) * tradingDaysPerYear
	benchMean := stat.Mean(benchmark, nil) * tradingDaysPerYear
	alpha := portMean - beta*benchMean

	return alpha, beta
}

// TrackingError returns the annualized standard deviation of the excess
// return over the benchmark.
func (c *Calculator) TrackingError(portfolio, benchmark []float64) float64 {
	if len(portfolio) < 2 {
		return 0
	}
	excess := make([]float64, len(portfolio))
	for i := range portfolio {
		excess[i] = portfolio[i] - benchmark[i]
	}
	return stat.StdDev(excess, nil) * math.Sqrt(tradingDaysPerYear)
}

// InformationRatio returns the annualized mean excess return over its
// standard deviation.
func (c *Calculator) InformationRatio(portfolio, benchmark []float64) float64 {
	if len(portfolio) < 2 {
		return 0
	}
	excess := make([]float64, len(portfolio))
	for i := range portfolio {
		excess[i] = portfolio[i] - benchmark[i]
	}
	sd := stat.StdDev(excess, nil)
	if sd == 0 {
		return 0
	}
	return stat.Mean(excess, nil) / sd * math.Sqrt(tradingDaysPerYear)
}

// alignByDate intersects two return series on their dates, preserving
// order, so benchmark gaps do not skew the relative metrics.
func alignByDate(a, b Series) ([]float64, []float64) {
	bByDate := make(map[time.Time]float64, len(b.Dates))
	for i, d := range b.Dates {
		bByDate[d] = b.Values[i]
	}

	var av, bv []float64
	for i, d := range a.Dates {
		if v, ok := bByDate[d]; ok {
			av = append(av, a.Values[i])
			bv = append(bv, v)
		}
	}
	return av, bv
}

func monthKey(t time.Time) int   { return t.Year()*100 + int(t.Month()) }
func quarterKey(t time.Time) int { return t.Year()*10 + (int(t.Month())-1)/3 }

// resampleReturns takes the last value per period and returns the
// period-over-period changes.
func resampleReturns(equity Series, key func(time.Time) int) []float64 {
	if len(equity.Values) == 0 {
		return nil
	}

	var lasts []float64
	currentKey := key(equity.Dates[0])
	last := equity.Values[0]
	for i := 1; i < len(equity.Values); i++ {
		if k := key(equity.Dates[i]); k != currentKey {
			lasts = append(lasts, last)
			currentKey = k
		}
		last = equity.Values[i]
	}
	lasts = append(lasts, last)

	var rets []float64
	for i := 1; i < len(lasts); i++ {
		if lasts[i-1] != 0 {
			rets = append(rets, lasts[i]/lasts[i-1]-1)
		}
	}
	return rets
}

func maxOrZero(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOrZero(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
