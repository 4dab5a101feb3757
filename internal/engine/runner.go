package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/cjg131/backtester-v1/internal/apperrors"
	"github.com/cjg131/backtester-v1/internal/calendar"
	"github.com/cjg131/backtester-v1/internal/marketdata"
	"github.com/cjg131/backtester-v1/internal/metrics"
	"github.com/cjg131/backtester-v1/internal/model"
)

// minTradeQuantity is the smallest order the runner will place; planned
// quantities at or below it are skipped.
const minTradeQuantity = 0.0001

// Runner executes a strategy simulation end to end: it loads market
// data, walks the trading calendar day by day, and assembles the result
// with metrics, benchmarks, and tax summaries.
type Runner struct {
	provider marketdata.DataProvider
	logger   zerolog.Logger
}

// NewRunner creates a runner over a data provider.
func NewRunner(provider marketdata.DataProvider, logger zerolog.Logger) *Runner {
	return &Runner{
		provider: provider,
		logger:   logger.With().Str("component", "runner").Logger(),
	}
}

// runState carries the per-run mutable pieces so a single Runner can
// serve concurrent runs.
type runState struct {
	config     model.StrategyConfig
	start, end time.Time
	calendar   *calendar.Market
	ledger     *Ledger
	rebalancer *Rebalancer
	taxCalc    *TaxCalculator // nil when not taxable
	data       map[string]*model.SymbolData
	warnings   []string
}

// Run executes the strategy and returns the complete result. Per-trade
// and per-symbol problems accumulate as warnings; only configuration
// errors and a fully empty dataset abort the run.
func (r *Runner) Run(ctx context.Context, config model.StrategyConfig) (*model.Result, error) {
	config.ApplyDefaults()

	start, end, err := validateConfig(config)
	if err != nil {
		return nil, err
	}

	cal := calendar.NewMarket(config.Period.Calendar)

	st := &runState{
		config:   config,
		start:    start,
		end:      end,
		calendar: cal,
		ledger: NewLedger(
			config.InitialCash,
			config.Account.Type,
			config.Lots.Method,
			config.Account.Tax.ApplyWashSale,
		),
		rebalancer: NewRebalancer(config.Rebalancing, cal, config.Account.Type),
	}
	if config.Account.Type == model.AccountTaxable {
		st.taxCalc = NewTaxCalculator(config.Account.Tax)
	}

	r.logger.Info().
		Int("symbols", len(config.Universe.Symbols)).
		Str("start", config.Period.Start).
		Str("end", config.Period.End).
		Msg("loading market data")

	loader := marketdata.NewLoader(r.provider, r.logger)
	loaded, err := loader.Load(ctx, config.Universe.Symbols, start, end, config.Frictions.UseActualETFER)
	if err != nil {
		return nil, err
	}
	st.data = loaded.Data
	st.warnings = append(st.warnings, loaded.Warnings...)

	if len(st.data) == 0 {
		return nil, apperrors.ErrNoMarketData
	}

	tradingDays := cal.TradingDays(start, end)
	r.logger.Info().Int("days", len(tradingDays)).Msg("starting daily loop")

	targetWeights := calculateTargetWeights(config.Universe.Symbols, config.PositionSizing)

	var equityCurve []model.EquityPoint
	var positionsHistory []model.PositionSnapshot

	for i, day := range tradingDays {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prices := pricesForDate(st.data, day)
		if len(prices) == 0 {
			continue
		}

		isDepositDay := false
		if config.Deposits != nil {
			isDepositDay = isDepositDayFor(day, config.Deposits.Cadence, cal)
		}

		r.processDividends(st, day, prices)

		depositMade, depositAmount := r.processDeposit(st, day, isDepositDay)

		applyExpenseRatios(st, day)

		if depositMade {
			// Deposit days invest only the new cash; the standing
			// positions are left to their drift.
			trades := st.rebalancer.GenerateDepositTrades(targetWeights, depositAmount, prices)
			r.executeTrades(st, trades, prices, day)
		} else {
			currentWeights := calculateCurrentWeights(st.ledger, prices)
			should, reason := st.rebalancer.ShouldRebalance(day, currentWeights, targetWeights, false)
			if should || i == 0 {
				if i == 0 {
					reason = "initial"
				}
				trades := st.rebalancer.GenerateRebalanceTrades(st.ledger, targetWeights, prices)
				r.logger.Debug().
					Time("date", day).
					Str("reason", reason).
					Int("trades", len(trades)).
					Msg("rebalancing")
				r.executeTrades(st, trades, prices, day)
			}
		}

		value := st.ledger.TotalValue(prices)
		equityCurve = append(equityCurve, model.EquityPoint{
			Date:           day,
			PortfolioValue: value,
			Cash:           st.ledger.Cash,
			PositionsValue: value - st.ledger.Cash,
		})
		positionsHistory = append(positionsHistory, model.PositionSnapshot{
			Date:      day,
			Positions: st.ledger.AllPositions(prices),
		})

		if st.taxCalc != nil && isYearEnd(tradingDays, i) {
			year := day.Year()
			taxAmount := st.taxCalc.ApplyYearEndTax(year, st.ledger, config.Account.Tax.PayTaxesFromExternal)
			if taxAmount > 0 {
				r.logger.Info().Int("year", year).Float64("tax", taxAmount).Msg("year-end tax accrued")
				if st.ledger.Cash < 0 {
					st.warnings = append(st.warnings,
						fmt.Sprintf("Year %d tax payment drove cash negative: $%.2f", year, st.ledger.Cash))
				}
			}
		}
	}

	if len(equityCurve) == 0 {
		return nil, apperrors.ErrNoMarketData
	}

	calc := metrics.NewCalculator(metrics.DefaultRiskFreeRate)
	cashflows := contributionCashflows(st.ledger)
	perfMetrics := calc.CalculateAll(metrics.SeriesFromEquityCurve(equityCurve), cashflows, metrics.Series{})

	benchmarkMetrics, benchmarkEquity := r.simulateBenchmarks(ctx, st, tradingDays, calc)

	var taxSummaries []model.TaxSummary
	if st.taxCalc != nil {
		for year := equityCurve[0].Date.Year(); year <= equityCurve[len(equityCurve)-1].Date.Year(); year++ {
			taxSummaries = append(taxSummaries, st.taxCalc.CalculateAnnualTax(year, st.ledger))
		}
	}

	final := equityCurve[len(equityCurve)-1].PortfolioValue
	r.logger.Info().Float64("final_value", final).Int("trades", len(st.ledger.Trades())).Msg("run complete")

	return &model.Result{
		Config:           config,
		EquityCurve:      equityCurve,
		Metrics:          perfMetrics,
		BenchmarkMetrics: benchmarkMetrics,
		BenchmarkEquity:  benchmarkEquity,
		Trades:           st.ledger.Trades(),
		PositionsHistory: positionsHistory,
		TaxSummaries:     taxSummaries,
		Lots:             st.ledger.AllLots(),
		Warnings:         st.warnings,
		Diagnostics: map[string]any{
			"total_trades":  len(st.ledger.Trades()),
			"total_symbols": len(config.Universe.Symbols),
			"trading_days":  len(tradingDays),
		},
	}, nil
}

func validateConfig(config model.StrategyConfig) (time.Time, time.Time, error) {
	if len(config.Universe.Symbols) == 0 {
		return time.Time{}, time.Time{}, apperrors.ErrEmptyUniverse
	}
	if config.InitialCash <= 0 {
		return time.Time{}, time.Time{}, apperrors.ErrNonPositiveCash
	}

	start, err := time.Parse("2006-01-02", config.Period.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start %q", apperrors.ErrInvalidDateRange, config.Period.Start)
	}
	end, err := time.Parse("2006-01-02", config.Period.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end %q", apperrors.ErrInvalidDateRange, config.Period.End)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s to %s", apperrors.ErrInvalidDateRange, config.Period.Start, config.Period.End)
	}

	return start, end, nil
}

// calculateTargetWeights resolves position sizing to a weight per
// symbol. Custom weights are normalized to sum to one; anything else
// falls back to equal weight.
func calculateTargetWeights(symbols []string, sizing model.PositionSizingConfig) map[string]float64 {
	weights := make(map[string]float64, len(symbols))

	if sizing.Method == "CUSTOM_WEIGHTS" && len(sizing.CustomWeights) > 0 {
		var total float64
		for _, symbol := range symbols {
			w := sizing.CustomWeights[symbol]
			weights[symbol] = w
			total += w
		}
		if total > 0 {
			for symbol := range weights {
				weights[symbol] /= total
			}
			return weights
		}
	}

	equal := 1.0 / float64(len(symbols))
	for _, symbol := range symbols {
		weights[symbol] = equal
	}
	return weights
}

func calculateCurrentWeights(ledger *Ledger, prices map[string]float64) map[string]float64 {
	total := ledger.TotalValue(prices)
	weights := make(map[string]float64)
	if total <= 0 {
		return weights
	}
	for _, pos := range ledger.AllPositions(prices) {
		weights[pos.Symbol] = pos.MarketValue / total
	}
	return weights
}

func pricesForDate(data map[string]*model.SymbolData, day time.Time) map[string]float64 {
	prices := make(map[string]float64, len(data))
	for symbol, sd := range data {
		if price, ok := sd.PriceOn(day); ok {
			prices[symbol] = price
		}
	}
	return prices
}

// isDepositDayFor reports whether the cadence schedules a deposit today.
func isDepositDayFor(day time.Time, cadence model.DepositCadence, cal *calendar.Market) bool {
	switch cadence {
	case model.DepositDaily, model.DepositEveryMarketDay:
		return true
	case model.DepositWeekly:
		return day.Weekday() == time.Monday
	case model.DepositMonthly:
		return day.Equal(cal.FirstTradingDayOfMonth(day.Year(), day.Month()))
	case model.DepositQuarterly:
		quarter := (int(day.Month())-1)/3 + 1
		return day.Equal(cal.FirstTradingDayOfQuarter(day.Year(), quarter))
	case model.DepositYearly:
		return day.Equal(cal.FirstTradingDayOfYear(day.Year()))
	}
	return false
}

// processDeposit applies a scheduled deposit when the contribution cap
// allows it. Returns whether a deposit landed and its amount.
func (r *Runner) processDeposit(st *runState, day time.Time, isDepositDay bool) (bool, float64) {
	deposits := st.config.Deposits
	if deposits == nil || !isDepositDay || deposits.Amount <= 0 {
		return false, 0
	}

	if !contributionAllowed(st.ledger, st.config.Account, day, deposits.Amount) {
		st.warnings = append(st.warnings,
			fmt.Sprintf("Contribution cap reached on %s, skipping deposit", day.Format("2006-01-02")))
		return false, 0
	}

	st.ledger.AddDeposit(deposits.Amount, day)
	return true, deposits.Amount
}

// contributionAllowed checks the annual IRA/Roth limits. Taxable and
// 529 accounts are uncapped here.
func contributionAllowed(ledger *Ledger, account model.AccountConfig, day time.Time, amount float64) bool {
	if !account.ContributionCaps.Enforce {
		return true
	}

	var cap float64
	switch account.Type {
	case model.AccountTraditionalIRA:
		cap = account.ContributionCaps.IRA
	case model.AccountRothIRA:
		cap = account.ContributionCaps.Roth
	default:
		return true
	}

	return ledger.Contributions(day.Year())+amount <= cap
}

// processDividends pays any dividend whose ex-date is today. DRIP mode
// reinvests at today's price and falls back to cash when the buy cannot
// settle.
func (r *Runner) processDividends(st *runState, day time.Time, prices map[string]float64) {
	for _, symbol := range sortedDataSymbols(st.data) {
		sd := st.data[symbol]
		for _, div := range sd.Dividends {
			if !div.ExDate.Equal(day) {
				continue
			}

			quantity := st.ledger.SharesHeld(symbol)
			if quantity <= 0 {
				continue
			}
			totalDividend := quantity * div.Amount

			st.ledger.AppendTrade(model.Trade{
				ID:        fmt.Sprintf("DIV-%s-%s", day.Format("2006-01-02"), symbol),
				Date:      day,
				Symbol:    symbol,
				Action:    model.ActionDividend,
				Quantity:  quantity,
				Price:     div.Amount,
				TotalCost: totalDividend,
				Notes:     fmt.Sprintf("Dividend: $%.4f/share x %.2f shares", div.Amount, quantity),
			})

			qualifiedPct := div.QualifiedPct
			if qualifiedPct == 0 {
				qualifiedPct = 1.0
			}

			if st.config.Dividends.Mode == model.DividendDRIP {
				price, ok := prices[symbol]
				if ok && price > 0 {
					shares := totalDividend / price
					// Credit the cash first so the reinvestment buy can
					// settle against it.
					st.ledger.Cash += totalDividend
					if _, err := st.ledger.Buy(symbol, shares, price, day, 0, 0, model.ActionDRIP); err != nil {
						st.ledger.Cash -= totalDividend
						st.ledger.RecordDividend(symbol, totalDividend, day, qualifiedPct)
					} else if st.ledger.AccountType() == model.AccountTaxable {
						// Reinvested dividends are still taxable income.
						st.ledger.RecordDividendTaxOnly(totalDividend, day, qualifiedPct)
					}
					continue
				}
			}

			st.ledger.RecordDividend(symbol, totalDividend, day, qualifiedPct)
		}
	}
}

// applyExpenseRatios charges each fund's daily expense drag against its
// lots' cost basis.
func applyExpenseRatios(st *runState, day time.Time) {
	for _, symbol := range sortedDataSymbols(st.data) {
		sd := st.data[symbol]
		if sd.ExpenseRatio <= 0 {
			continue
		}
		dailyDrag := dailyExpenseDrag(sd.ExpenseRatio)
		for _, lot := range st.ledger.LotsFor(symbol) {
			lot.CostBasis -= lot.CostBasis * dailyDrag
		}
	}
}

// dailyExpenseDrag converts an annual expense ratio to its
// per-trading-day equivalent.
func dailyExpenseDrag(annualER float64) float64 {
	return math.Pow(1+annualER, 1.0/model.TradingDaysPerYear) - 1
}

// sortedDataSymbols keeps per-symbol processing in a stable order so
// the trade log is reproducible across runs.
func sortedDataSymbols(data map[string]*model.SymbolData) []string {
	symbols := make([]string, 0, len(data))
	for s := range data {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// executeTrades runs the planned trades against the ledger. Buys that
// would overdraw cash are shrunk to the affordable quantity; any other
// per-trade failure becomes a warning and the loop continues.
func (r *Runner) executeTrades(st *runState, trades []model.TradeIntent, prices map[string]float64, day time.Time) {
	slippagePct := st.config.Frictions.SlippageBps / 10000.0
	commission := st.config.Frictions.CommissionPerTrade

	for _, intent := range trades {
		quantity := intent.Quantity
		if quantity <= minTradeQuantity {
			continue
		}
		price, ok := prices[intent.Symbol]
		if !ok {
			st.warnings = append(st.warnings,
				fmt.Sprintf("No price for %s on %s, trade skipped", intent.Symbol, day.Format("2006-01-02")))
			continue
		}

		var err error
		switch intent.Action {
		case model.ActionBuy:
			totalCost := quantity*price + commission + quantity*price*slippagePct
			if totalCost >= st.ledger.Cash*0.9999 {
				// Shrink to what the cash balance can cover, with a
				// small buffer against rounding.
				available := st.ledger.Cash * 0.9999
				quantity = (available - commission) / (price * (1 + slippagePct))
			}
			if quantity > minTradeQuantity {
				slippageCost := quantity * price * slippagePct
				_, err = st.ledger.Buy(intent.Symbol, quantity, price, day, commission, slippageCost, model.ActionBuy)
			}
		case model.ActionSell:
			slippageCost := quantity * price * slippagePct
			_, err = st.ledger.Sell(intent.Symbol, quantity, price, day, commission, slippageCost)
		}

		if err != nil {
			st.warnings = append(st.warnings,
				fmt.Sprintf("Trade failed on %s: %s %.4f %s - %v",
					day.Format("2006-01-02"), intent.Action, quantity, intent.Symbol, err))
		}
	}
}

// isYearEnd reports whether index i is the last trading day of its year
// within the run, counting the run's final day.
func isYearEnd(tradingDays []time.Time, i int) bool {
	if i >= len(tradingDays)-1 {
		return true
	}
	return tradingDays[i+1].Year() > tradingDays[i].Year()
}

// contributionCashflows converts the ledger's annual contribution
// totals into dated cashflows for the money-weighted metrics.
func contributionCashflows(ledger *Ledger) []metrics.Cashflow {
	var flows []metrics.Cashflow
	for _, year := range ledger.ContributionYears() {
		flows = append(flows, metrics.Cashflow{
			Date:   time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			Amount: ledger.Contributions(year),
		})
	}
	return flows
}

// simulateBenchmarks runs a buy-and-hold-with-deposits simulation per
// benchmark symbol and computes its metrics. Benchmark failures never
// fail the run.
func (r *Runner) simulateBenchmarks(ctx context.Context, st *runState, tradingDays []time.Time, calc *metrics.Calculator) (map[string]model.PerformanceMetrics, map[string][]model.BenchmarkEquityPoint) {
	benchmarkMetrics := make(map[string]model.PerformanceMetrics)
	benchmarkEquity := make(map[string][]model.BenchmarkEquityPoint)

	for _, symbol := range st.config.Benchmark {
		bars, err := r.provider.Bars(ctx, symbol, st.start, st.end)
		if err != nil || len(bars) == 0 {
			if err != nil {
				st.warnings = append(st.warnings, fmt.Sprintf("Error calculating benchmark %s: %v", symbol, err))
			}
			continue
		}

		prices := make(map[time.Time]float64, len(bars))
		for _, bar := range bars {
			prices[bar.Date] = bar.AdjClose
		}

		shares := 0.0
		cash := st.config.InitialCash
		yearDeposits := make(map[int]float64)
		var curve []model.BenchmarkEquityPoint

		for _, day := range tradingDays {
			price, ok := prices[day]
			if !ok {
				continue
			}

			if st.config.Deposits != nil && isDepositDayFor(day, st.config.Deposits.Cadence, st.calendar) {
				cash += st.config.Deposits.Amount
				yearDeposits[day.Year()] += st.config.Deposits.Amount
			}

			if cash > 0 && price > 0 {
				shares += cash / price
				cash = 0
			}

			curve = append(curve, model.BenchmarkEquityPoint{Date: day, Value: shares*price + cash})
		}

		if len(curve) < 2 {
			continue
		}

		var flows []metrics.Cashflow
		for year, amount := range yearDeposits {
			flows = append(flows, metrics.Cashflow{
				Date:   time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
				Amount: amount,
			})
		}

		benchmarkMetrics[symbol] = calc.CalculateAll(metrics.SeriesFromBenchmark(curve), flows, metrics.Series{})
		benchmarkEquity[symbol] = curve
	}

	return benchmarkMetrics, benchmarkEquity
}
