// Package request defines the JSON request bodies accepted by the API.
package request

import "github.com/cjg131/backtester-v1/internal/model"

// RunBacktest is the body of POST /api/backtest/run and
// POST /api/backtest/validate.
type RunBacktest struct {
	Name   string               `json:"name"`
	Config model.StrategyConfig `json:"config"`
}

// SetCredential is the body of PUT /api/providers/credentials.
type SetCredential struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}
