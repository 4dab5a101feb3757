package model

import "time"

// TradeAction identifies what kind of event a Trade records.
type TradeAction string

// Supported trade actions.
const (
	ActionBuy      TradeAction = "BUY"
	ActionSell     TradeAction = "SELL"
	ActionDRIP     TradeAction = "DRIP"
	ActionDividend TradeAction = "DIVIDEND"
)

// Lot is a single acquisition batch of a symbol, tracked separately for
// cost basis and holding period. Quantity and CostBasis shrink together
// on partial sales; the ledger removes a lot once its quantity rounds
// to zero.
type Lot struct {
	ID                 string    `json:"lotId"`
	Symbol             string    `json:"symbol"`
	Quantity           float64   `json:"quantity"`
	CostBasis          float64   `json:"costBasis"` // total, not per-share
	AcquisitionDate    time.Time `json:"acquisitionDate"`
	IsWashSale         bool      `json:"isWashSale"`
	WashSaleDisallowed float64   `json:"washSaleDisallowed"`
}

// CostPerShare returns the lot's per-share cost basis.
func (l *Lot) CostPerShare() float64 {
	if l.Quantity == 0 {
		return 0
	}
	return l.CostBasis / l.Quantity
}

// Trade is an immutable record of an executed buy, sell, dividend, or
// DRIP event. TotalCost is the signed cash impact: positive for buys
// (cash out), negative for sells (cash in).
type Trade struct {
	ID         string      `json:"tradeId"`
	Date       time.Time   `json:"date"`
	Symbol     string      `json:"symbol"`
	Action     TradeAction `json:"action"`
	Quantity   float64     `json:"quantity"`
	Price      float64     `json:"price"`
	Commission float64     `json:"commission"`
	Slippage   float64     `json:"slippage"`
	TotalCost  float64     `json:"totalCost"`
	LotIDs     []string    `json:"lotIds,omitempty"`
	Notes      string      `json:"notes,omitempty"`
}

// Position aggregates the lots held in one symbol.
type Position struct {
	Symbol         string  `json:"symbol"`
	Quantity       float64 `json:"quantity"`
	MarketValue    float64 `json:"marketValue"`
	CostBasis      float64 `json:"costBasis"`
	UnrealizedGain float64 `json:"unrealizedGain"`
	Lots           []Lot   `json:"lots"`
}

// TradeIntent is a planned order emitted by the rebalancer, not yet
// executed against the ledger.
type TradeIntent struct {
	Symbol   string
	Action   TradeAction
	Quantity float64
}
