// Package engine implements the simulation core: the tax-lot ledger,
// the rebalancer, year-end tax accrual, and the daily runner loop.
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cjg131/backtester-v1/internal/apperrors"
	"github.com/cjg131/backtester-v1/internal/model"
)

// depletionTolerance is the residual quantity below which a lot is
// considered fully sold and removed.
const depletionTolerance = 0.0001

// WashSaleEvent records one disallowed loss.
type WashSaleEvent struct {
	Date       time.Time
	Disallowed float64
}

// Ledger tracks cash, tax lots, trade history, and the per-year tax
// accumulators for a single simulated account. It is not safe for
// concurrent use; each run owns exactly one Ledger.
type Ledger struct {
	Cash float64

	accountType   model.AccountType
	lotMethod     model.LotMethod
	applyWashSale bool

	lots    map[string][]*model.Lot
	symbols []string // first-seen order, keeps iteration deterministic
	trades  []model.Trade

	annualContributions map[int]float64
	annualRealizedST    map[int]float64
	annualRealizedLT    map[int]float64
	annualQualifiedDivs map[int]float64
	annualOrdinaryDivs  map[int]float64
	annualInterest      map[int]float64

	washSales map[string][]WashSaleEvent
}

// NewLedger creates a ledger seeded with initial cash.
func NewLedger(initialCash float64, accountType model.AccountType, lotMethod model.LotMethod, applyWashSale bool) *Ledger {
	return &Ledger{
		Cash:                initialCash,
		accountType:         accountType,
		lotMethod:           lotMethod,
		applyWashSale:       applyWashSale,
		lots:                make(map[string][]*model.Lot),
		annualContributions: make(map[int]float64),
		annualRealizedST:    make(map[int]float64),
		annualRealizedLT:    make(map[int]float64),
		annualQualifiedDivs: make(map[int]float64),
		annualOrdinaryDivs:  make(map[int]float64),
		annualInterest:      make(map[int]float64),
		washSales:           make(map[string][]WashSaleEvent),
	}
}

// AccountType returns the account's tax treatment.
func (l *Ledger) AccountType() model.AccountType { return l.accountType }

// SharesHeld returns the total quantity held across all lots of a symbol.
func (l *Ledger) SharesHeld(symbol string) float64 {
	var total float64
	for _, lot := range l.lots[symbol] {
		total += lot.Quantity
	}
	return total
}

// Buy executes a buy order, creating a new lot. The action distinguishes
// regular buys from dividend reinvestment. Commission and slippage are
// absolute dollar amounts and are capitalized into the lot's basis.
func (l *Ledger) Buy(symbol string, quantity, price float64, tradeDate time.Time, commission, slippage float64, action model.TradeAction) (model.Trade, error) {
	grossCost := quantity * price
	totalCost := grossCost + commission + slippage

	if l.Cash < totalCost {
		return model.Trade{}, fmt.Errorf("%w: need $%.2f, have $%.2f", apperrors.ErrInsufficientCash, totalCost, l.Cash)
	}

	l.Cash -= totalCost

	lot := &model.Lot{
		ID:              uuid.New().String(),
		Symbol:          symbol,
		Quantity:        quantity,
		CostBasis:       totalCost,
		AcquisitionDate: tradeDate,
	}
	if _, seen := l.lots[symbol]; !seen {
		l.symbols = append(l.symbols, symbol)
	}
	l.lots[symbol] = append(l.lots[symbol], lot)

	trade := model.Trade{
		ID:         uuid.New().String(),
		Date:       tradeDate,
		Symbol:     symbol,
		Action:     action,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Slippage:   slippage,
		TotalCost:  totalCost,
		LotIDs:     []string{lot.ID},
	}
	l.trades = append(l.trades, trade)

	return trade, nil
}

// Sell executes a sell order against the lots selected by the configured
// lot method. Realized gains are classified short or long term per lot
// and accumulated by calendar year for taxable accounts. Losses that
// trip the wash-sale check are disallowed and excluded from the realized
// totals.
func (l *Ledger) Sell(symbol string, quantity, price float64, tradeDate time.Time, commission, slippage float64) (model.Trade, error) {
	held := l.SharesHeld(symbol)
	if held < quantity {
		return model.Trade{}, fmt.Errorf("%w: need %.4f, have %.4f", apperrors.ErrInsufficientShares, quantity, held)
	}

	selected := l.selectLotsForSale(symbol, quantity)

	grossProceeds := quantity * price
	netProceeds := grossProceeds - commission - slippage
	l.Cash += netProceeds

	lotIDs := make([]string, 0, len(selected))
	for _, sel := range selected {
		lot, qtyFromLot := sel.lot, sel.quantity
		lotIDs = append(lotIDs, lot.ID)

		costBasis := lot.CostPerShare() * qtyFromLot
		proceedsFromLot := (qtyFromLot / quantity) * netProceeds
		gainLoss := proceedsFromLot - costBasis

		holdingDays := int(tradeDate.Sub(lot.AcquisitionDate).Hours() / 24)
		isShortTerm := holdingDays <= model.ShortTermDays

		if l.accountType == model.AccountTaxable && l.applyWashSale && gainLoss < 0 {
			if l.hasWashSalePurchase(symbol, tradeDate) {
				lot.IsWashSale = true
				lot.WashSaleDisallowed = -gainLoss
				l.washSales[symbol] = append(l.washSales[symbol], WashSaleEvent{
					Date:       tradeDate,
					Disallowed: -gainLoss,
				})
				gainLoss = 0
			}
		}

		if l.accountType == model.AccountTaxable {
			year := tradeDate.Year()
			if isShortTerm {
				l.annualRealizedST[year] += gainLoss
			} else {
				l.annualRealizedLT[year] += gainLoss
			}
		}

		lot.Quantity -= qtyFromLot
		lot.CostBasis -= costBasis
		if lot.Quantity <= depletionTolerance {
			l.removeLot(symbol, lot)
		}
	}

	trade := model.Trade{
		ID:         uuid.New().String(),
		Date:       tradeDate,
		Symbol:     symbol,
		Action:     model.ActionSell,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Slippage:   slippage,
		TotalCost:  -netProceeds, // negative, cash flows in
		LotIDs:     lotIDs,
	}
	l.trades = append(l.trades, trade)

	return trade, nil
}

type lotSelection struct {
	lot      *model.Lot
	quantity float64
}

// selectLotsForSale orders the symbol's lots per the lot method and
// takes from them front to back until the requested quantity is covered.
// HIFO falls back to FIFO for tax-deferred accounts, where basis
// ordering has no tax effect.
func (l *Ledger) selectLotsForSale(symbol string, quantity float64) []lotSelection {
	available := make([]*model.Lot, len(l.lots[symbol]))
	copy(available, l.lots[symbol])

	switch l.lotMethod {
	case model.LotFIFO:
		sort.SliceStable(available, func(i, j int) bool {
			return available[i].AcquisitionDate.Before(available[j].AcquisitionDate)
		})
	case model.LotLIFO:
		sort.SliceStable(available, func(i, j int) bool {
			return available[i].AcquisitionDate.After(available[j].AcquisitionDate)
		})
	case model.LotHIFO:
		if l.accountType == model.AccountTaxable {
			sort.SliceStable(available, func(i, j int) bool {
				return available[i].CostPerShare() > available[j].CostPerShare()
			})
		} else {
			sort.SliceStable(available, func(i, j int) bool {
				return available[i].AcquisitionDate.Before(available[j].AcquisitionDate)
			})
		}
	}

	var selected []lotSelection
	remaining := quantity
	for _, lot := range available {
		if remaining <= 0 {
			break
		}
		qty := lot.Quantity
		if remaining < qty {
			qty = remaining
		}
		selected = append(selected, lotSelection{lot: lot, quantity: qty})
		remaining -= qty
	}
	return selected
}

// hasWashSalePurchase reports whether any currently held lot of the
// symbol was acquired within the wash-sale window around the sale date.
// Same-day lots do not count; the check runs only at sale time, so
// repurchases after the sale are picked up only if they happen before a
// later loss sale.
func (l *Ledger) hasWashSalePurchase(symbol string, saleDate time.Time) bool {
	windowStart := saleDate.AddDate(0, 0, -model.WashSaleDays)
	windowEnd := saleDate.AddDate(0, 0, model.WashSaleDays)

	for _, lot := range l.lots[symbol] {
		acq := lot.AcquisitionDate
		if acq.Equal(saleDate) {
			continue
		}
		if !acq.Before(windowStart) && !acq.After(windowEnd) {
			return true
		}
	}
	return false
}

func (l *Ledger) removeLot(symbol string, target *model.Lot) {
	lots := l.lots[symbol]
	for i, lot := range lots {
		if lot == target {
			l.lots[symbol] = append(lots[:i], lots[i+1:]...)
			return
		}
	}
}

// RecordDividend adds a cash dividend and, for taxable accounts, splits
// it between the qualified and ordinary accumulators for the ex-date's
// year.
func (l *Ledger) RecordDividend(symbol string, amount float64, exDate time.Time, qualifiedPct float64) {
	l.Cash += amount

	if l.accountType == model.AccountTaxable {
		year := exDate.Year()
		l.annualQualifiedDivs[year] += amount * qualifiedPct
		l.annualOrdinaryDivs[year] += amount * (1 - qualifiedPct)
	}
}

// RecordDividendTaxOnly accrues dividend income into the taxable
// accumulators without touching cash, for dividends that were already
// reinvested into shares.
func (l *Ledger) RecordDividendTaxOnly(amount float64, exDate time.Time, qualifiedPct float64) {
	if l.accountType == model.AccountTaxable {
		year := exDate.Year()
		l.annualQualifiedDivs[year] += amount * qualifiedPct
		l.annualOrdinaryDivs[year] += amount * (1 - qualifiedPct)
	}
}

// AddDeposit adds an external contribution to cash and the year's
// contribution total.
func (l *Ledger) AddDeposit(amount float64, depositDate time.Time) {
	l.Cash += amount
	l.annualContributions[depositDate.Year()] += amount
}

// DeductTax removes a tax payment from cash. Cash may go negative; the
// runner surfaces that as a warning rather than failing the run.
func (l *Ledger) DeductTax(amount float64) {
	l.Cash -= amount
}

// TotalValue returns cash plus the market value of all positions with a
// known price.
func (l *Ledger) TotalValue(prices map[string]float64) float64 {
	value := l.Cash
	for _, symbol := range l.symbols {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		value += l.SharesHeld(symbol) * price
	}
	return value
}

// Position returns the aggregated position for a symbol, or nil if none
// is held. Market value fields are left zero; AllPositions fills them.
func (l *Ledger) Position(symbol string) *model.Position {
	lots := l.lots[symbol]
	if len(lots) == 0 {
		return nil
	}
	pos := l.buildPosition(symbol, 0)
	return &pos
}

// AllPositions returns every open position valued at the given prices,
// in the order the symbols were first acquired.
func (l *Ledger) AllPositions(prices map[string]float64) []model.Position {
	var positions []model.Position
	for _, symbol := range l.symbols {
		if len(l.lots[symbol]) == 0 {
			continue
		}
		positions = append(positions, l.buildPosition(symbol, prices[symbol]))
	}
	return positions
}

func (l *Ledger) buildPosition(symbol string, price float64) model.Position {
	var totalQty, totalCost float64
	lots := make([]model.Lot, 0, len(l.lots[symbol]))
	for _, lot := range l.lots[symbol] {
		totalQty += lot.Quantity
		totalCost += lot.CostBasis
		lots = append(lots, *lot)
	}
	marketValue := totalQty * price
	return model.Position{
		Symbol:         symbol,
		Quantity:       totalQty,
		MarketValue:    marketValue,
		CostBasis:      totalCost,
		UnrealizedGain: marketValue - totalCost,
		Lots:           lots,
	}
}

// LotsFor returns the live lots for a symbol. Callers mutating lot
// fields (expense drag) operate directly on ledger state.
func (l *Ledger) LotsFor(symbol string) []*model.Lot {
	return l.lots[symbol]
}

// AllLots returns a copy of every open lot across all symbols.
func (l *Ledger) AllLots() []model.Lot {
	var all []model.Lot
	for _, symbol := range l.symbols {
		for _, lot := range l.lots[symbol] {
			all = append(all, *lot)
		}
	}
	return all
}

// Trades returns the trade history in execution order.
func (l *Ledger) Trades() []model.Trade { return l.trades }

// AppendTrade records an informational trade entry, used for dividend
// receipts that do not move lots.
func (l *Ledger) AppendTrade(t model.Trade) {
	l.trades = append(l.trades, t)
}

// Per-year accumulator accessors used by the tax calculator.

// RealizedShortTerm returns the year's net short-term realized gain.
func (l *Ledger) RealizedShortTerm(year int) float64 { return l.annualRealizedST[year] }

// RealizedLongTerm returns the year's net long-term realized gain.
func (l *Ledger) RealizedLongTerm(year int) float64 { return l.annualRealizedLT[year] }

// QualifiedDividends returns the year's qualified dividend income.
func (l *Ledger) QualifiedDividends(year int) float64 { return l.annualQualifiedDivs[year] }

// OrdinaryDividends returns the year's ordinary dividend income.
func (l *Ledger) OrdinaryDividends(year int) float64 { return l.annualOrdinaryDivs[year] }

// InterestIncome returns the year's interest income.
func (l *Ledger) InterestIncome(year int) float64 { return l.annualInterest[year] }

// Contributions returns the year's external deposits.
func (l *Ledger) Contributions(year int) float64 { return l.annualContributions[year] }

// ContributionYears returns every year with a recorded deposit.
func (l *Ledger) ContributionYears() []int {
	years := make([]int, 0, len(l.annualContributions))
	for y := range l.annualContributions {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// WashSaleCount returns the total number of disallowed losses across
// all symbols and years.
func (l *Ledger) WashSaleCount() int {
	var n int
	for _, events := range l.washSales {
		n += len(events)
	}
	return n
}
