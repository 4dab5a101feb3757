package validation

import (
	"fmt"
	"time"

	"github.com/cjg131/backtester-v1/internal/model"
)

// ValidateStrategyConfig checks a strategy definition before a run. It
// returns a *Error carrying every failing field, so an API caller can
// fix a config in one round trip.
func ValidateStrategyConfig(config *model.StrategyConfig) error {
	fields := make(map[string]string)

	if len(config.Universe.Symbols) == 0 {
		fields["universe.symbols"] = "must contain at least one symbol"
	}

	if config.InitialCash <= 0 {
		fields["initial_cash"] = "must be positive"
	}

	start, startErr := time.Parse("2006-01-02", config.Period.Start)
	if startErr != nil {
		fields["period.start"] = fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", config.Period.Start)
	}
	end, endErr := time.Parse("2006-01-02", config.Period.End)
	if endErr != nil {
		fields["period.end"] = fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", config.Period.End)
	}
	if startErr == nil && endErr == nil && !end.After(start) {
		fields["period"] = "end must be after start"
	}

	switch config.Account.Type {
	case model.AccountTaxable, model.AccountTraditionalIRA, model.AccountRothIRA, model.AccountPlan529:
	default:
		fields["account.type"] = fmt.Sprintf("unknown account type %q", config.Account.Type)
	}

	for name, rate := range map[string]float64{
		"account.tax.federal_ordinary": config.Account.Tax.FederalOrdinary,
		"account.tax.federal_ltcg":     config.Account.Tax.FederalLTCG,
		"account.tax.state":            config.Account.Tax.State,
	} {
		if rate < 0 || rate > 1 {
			fields[name] = "must be between 0 and 1"
		}
	}

	switch config.Lots.Method {
	case model.LotFIFO, model.LotLIFO, model.LotHIFO:
	default:
		fields["lots.method"] = fmt.Sprintf("unknown lot method %q", config.Lots.Method)
	}

	switch config.Rebalancing.Type {
	case model.RebalanceCalendar, model.RebalanceDrift, model.RebalanceBoth, model.RebalanceCashflowOnly:
	default:
		fields["rebalancing.type"] = fmt.Sprintf("unknown rebalance type %q", config.Rebalancing.Type)
	}
	if config.Rebalancing.Type == model.RebalanceCalendar || config.Rebalancing.Type == model.RebalanceBoth {
		if config.Rebalancing.Calendar == nil {
			fields["rebalancing.calendar"] = "required for calendar rebalancing"
		}
	}
	if config.Rebalancing.Type == model.RebalanceDrift || config.Rebalancing.Type == model.RebalanceBoth {
		if config.Rebalancing.Drift == nil ||
			(config.Rebalancing.Drift.AbsPct == nil && config.Rebalancing.Drift.RelPct == nil) {
			fields["rebalancing.drift"] = "requires abs_pct or rel_pct"
		}
	}

	if config.Deposits != nil && config.Deposits.Amount < 0 {
		fields["deposits.amount"] = "must not be negative"
	}

	if config.PositionSizing.Method == "CUSTOM_WEIGHTS" {
		var total float64
		for _, symbol := range config.Universe.Symbols {
			weight, ok := config.PositionSizing.CustomWeights[symbol]
			if !ok {
				fields["position_sizing.custom_weights"] = fmt.Sprintf("missing weight for %s", symbol)
				break
			}
			if weight < 0 {
				fields["position_sizing.custom_weights"] = fmt.Sprintf("negative weight for %s", symbol)
				break
			}
			total += weight
		}
		if _, bad := fields["position_sizing.custom_weights"]; !bad && total <= 0 {
			fields["position_sizing.custom_weights"] = "weights must sum to a positive value"
		}
	}

	if config.Frictions.CommissionPerTrade < 0 {
		fields["frictions.commission_per_trade"] = "must not be negative"
	}
	if config.Frictions.SlippageBps < 0 {
		fields["frictions.slippage_bps"] = "must not be negative"
	}

	if len(fields) > 0 {
		return &Error{Fields: fields}
	}
	return nil
}
