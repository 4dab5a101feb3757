package engine

import (
	"math"
	"sort"
	"time"

	"github.com/cjg131/backtester-v1/internal/calendar"
	"github.com/cjg131/backtester-v1/internal/model"
)

// Rebalancer decides when the portfolio should rebalance and plans the
// trades that bring it back to target weights. Taxable accounts get a
// tax-aware trade ordering: loss sales first, then buys, then gain
// sales.
type Rebalancer struct {
	config      model.RebalancingConfig
	calendar    *calendar.Market
	accountType model.AccountType

	nextCalendarRebalance *time.Time
}

// NewRebalancer creates a rebalancer for the given trigger configuration.
func NewRebalancer(config model.RebalancingConfig, cal *calendar.Market, accountType model.AccountType) *Rebalancer {
	return &Rebalancer{
		config:      config,
		calendar:    cal,
		accountType: accountType,
	}
}

// ShouldRebalance evaluates the configured trigger channels for the
// current day and returns the firing reason. Deposit days fire for every
// type; CASHFLOW_ONLY fires for nothing else.
func (r *Rebalancer) ShouldRebalance(currentDate time.Time, currentWeights, targetWeights map[string]float64, isDepositDay bool) (bool, string) {
	if r.config.Type == model.RebalanceCashflowOnly {
		if isDepositDay {
			return true, "deposit"
		}
		return false, ""
	}

	calendarTrigger := false
	if r.config.Type == model.RebalanceCalendar || r.config.Type == model.RebalanceBoth {
		if r.config.Calendar != nil {
			calendarTrigger = r.checkCalendarTrigger(currentDate)
		}
	}

	driftTrigger := false
	if r.config.Type == model.RebalanceDrift || r.config.Type == model.RebalanceBoth {
		if r.config.Drift != nil {
			driftTrigger = r.checkDriftTrigger(currentWeights, targetWeights)
		}
	}

	switch r.config.Type {
	case model.RebalanceCalendar:
		if calendarTrigger {
			return true, "calendar"
		}
	case model.RebalanceDrift:
		if driftTrigger {
			return true, "drift"
		}
	case model.RebalanceBoth:
		if calendarTrigger {
			return true, "calendar"
		}
		if driftTrigger {
			return true, "drift"
		}
	}

	if isDepositDay {
		return true, "deposit"
	}

	return false, ""
}

// checkCalendarTrigger arms the schedule on first call without firing,
// then fires whenever the current date reaches the armed date and
// re-arms for the following period.
func (r *Rebalancer) checkCalendarTrigger(currentDate time.Time) bool {
	if r.nextCalendarRebalance == nil {
		next := r.nextCalendarDate(currentDate)
		r.nextCalendarRebalance = &next
		return false
	}

	if !currentDate.Before(*r.nextCalendarRebalance) {
		next := r.nextCalendarDate(currentDate)
		r.nextCalendarRebalance = &next
		return true
	}

	return false
}

func (r *Rebalancer) nextCalendarDate(currentDate time.Time) time.Time {
	switch r.config.Calendar.Period {
	case model.PeriodWeekly:
		return r.calendar.AlignToTradingDay(currentDate.AddDate(0, 0, 7), "FIRST_BUSINESS_DAY")
	case model.PeriodMonthly:
		next := time.Date(currentDate.Year(), currentDate.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
		return r.calendar.FirstTradingDayOfMonth(next.Year(), next.Month())
	case model.PeriodQuarterly:
		quarter := (int(currentDate.Month())-1)/3 + 1
		year := currentDate.Year()
		quarter++
		if quarter > 4 {
			quarter = 1
			year++
		}
		return r.calendar.FirstTradingDayOfQuarter(year, quarter)
	case model.PeriodYearly:
		return r.calendar.FirstTradingDayOfYear(currentDate.Year() + 1)
	default: // daily
		next, _ := r.calendar.NextTradingDay(currentDate)
		return next
	}
}

// checkDriftTrigger fires when any target symbol's weight has drifted
// past the absolute or relative threshold. Symbols absent from the
// portfolio count as weight zero.
func (r *Rebalancer) checkDriftTrigger(currentWeights, targetWeights map[string]float64) bool {
	drift := r.config.Drift

	if drift.AbsPct != nil {
		for symbol, target := range targetWeights {
			if math.Abs(currentWeights[symbol]-target) > *drift.AbsPct {
				return true
			}
		}
	}

	if drift.RelPct != nil {
		for symbol, target := range targetWeights {
			if target <= 0 {
				continue
			}
			if math.Abs(currentWeights[symbol]-target)/target > *drift.RelPct {
				return true
			}
		}
	}

	return false
}

// GenerateDepositTrades splits a fresh deposit across the target weights
// as buy orders. Existing positions are left alone.
func (r *Rebalancer) GenerateDepositTrades(targetWeights map[string]float64, depositAmount float64, prices map[string]float64) []model.TradeIntent {
	var trades []model.TradeIntent
	if depositAmount <= 0 {
		return trades
	}

	for _, symbol := range sortedSymbols(targetWeights) {
		weight := targetWeights[symbol]
		price, ok := prices[symbol]
		if weight <= 0 || !ok || price <= 0 {
			continue
		}
		trades = append(trades, model.TradeIntent{
			Symbol:   symbol,
			Action:   model.ActionBuy,
			Quantity: depositAmount * weight / price,
		})
	}
	return trades
}

// GenerateRebalanceTrades plans the trades that move the portfolio to
// its target weights at current prices.
func (r *Rebalancer) GenerateRebalanceTrades(ledger *Ledger, targetWeights map[string]float64, prices map[string]float64) []model.TradeIntent {
	totalValue := ledger.TotalValue(prices)
	if totalValue <= 0 {
		return nil
	}

	positions := ledger.AllPositions(prices)
	currentWeights := make(map[string]float64, len(positions))
	for _, pos := range positions {
		currentWeights[pos.Symbol] = pos.MarketValue / totalValue
	}

	targetValues := make(map[string]float64, len(targetWeights))
	currentValues := make(map[string]float64, len(targetWeights))
	for symbol, weight := range targetWeights {
		targetValues[symbol] = weight * totalValue
		currentValues[symbol] = currentWeights[symbol] * totalValue
	}

	if r.accountType == model.AccountTaxable {
		return r.generateTaxAwareTrades(ledger, currentValues, targetValues, prices)
	}
	return r.generateSimpleTrades(currentValues, targetValues, prices)
}

// generateTaxAwareTrades orders trades to harvest losses before
// realizing gains: overweight loss positions sell first, underweight
// positions buy next, overweight gain positions sell last.
func (r *Rebalancer) generateTaxAwareTrades(ledger *Ledger, currentValues, targetValues, prices map[string]float64) []model.TradeIntent {
	var trades []model.TradeIntent

	type overweight struct {
		symbol         string
		unrealizedGain float64
	}
	var losses, gains []overweight

	for _, pos := range ledger.AllPositions(prices) {
		target, tracked := targetValues[pos.Symbol]
		if !tracked || currentValues[pos.Symbol] <= target {
			continue
		}
		if pos.UnrealizedGain < 0 {
			losses = append(losses, overweight{pos.Symbol, pos.UnrealizedGain})
		} else {
			gains = append(gains, overweight{pos.Symbol, pos.UnrealizedGain})
		}
	}

	// Largest losses first for maximum harvest.
	sort.SliceStable(losses, func(i, j int) bool {
		return losses[i].unrealizedGain < losses[j].unrealizedGain
	})

	for _, p := range losses {
		sellValue := currentValues[p.symbol] - targetValues[p.symbol]
		trades = append(trades, model.TradeIntent{
			Symbol:   p.symbol,
			Action:   model.ActionSell,
			Quantity: sellValue / prices[p.symbol],
		})
	}

	for _, symbol := range sortedSymbols(targetValues) {
		if currentValues[symbol] < targetValues[symbol] {
			buyValue := targetValues[symbol] - currentValues[symbol]
			trades = append(trades, model.TradeIntent{
				Symbol:   symbol,
				Action:   model.ActionBuy,
				Quantity: buyValue / prices[symbol],
			})
		}
	}

	for _, p := range gains {
		sellValue := currentValues[p.symbol] - targetValues[p.symbol]
		trades = append(trades, model.TradeIntent{
			Symbol:   p.symbol,
			Action:   model.ActionSell,
			Quantity: sellValue / prices[p.symbol],
		})
	}

	return trades
}

// generateSimpleTrades rebalances directly toward targets, skipping
// deltas under a dollar. Buys shave 0.1% off the target delta so the
// cash freed by sells covers slippage.
func (r *Rebalancer) generateSimpleTrades(currentValues, targetValues, prices map[string]float64) []model.TradeIntent {
	var trades []model.TradeIntent

	for _, symbol := range sortedSymbols(targetValues) {
		diff := targetValues[symbol] - currentValues[symbol]
		if math.Abs(diff) < 1.0 {
			continue
		}

		if diff > 0 {
			trades = append(trades, model.TradeIntent{
				Symbol:   symbol,
				Action:   model.ActionBuy,
				Quantity: diff * 0.999 / prices[symbol],
			})
		} else {
			trades = append(trades, model.TradeIntent{
				Symbol:   symbol,
				Action:   model.ActionSell,
				Quantity: -diff / prices[symbol],
			})
		}
	}
	return trades
}

func sortedSymbols(m map[string]float64) []string {
	symbols := make([]string, 0, len(m))
	for s := range m {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
