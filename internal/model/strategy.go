package model

// AccountType identifies the tax treatment of the simulated account.
type AccountType string

// Supported account types.
const (
	AccountTaxable        AccountType = "Taxable"
	AccountTraditionalIRA AccountType = "Traditional IRA"
	AccountRothIRA        AccountType = "Roth IRA"
	AccountPlan529        AccountType = "529"
)

// IsTaxDeferred reports whether the account type realizes no taxable
// gains or dividends during the simulation (IRA, Roth, 529).
func (a AccountType) IsTaxDeferred() bool {
	return a != AccountTaxable
}

// LotMethod selects which tax lots are consumed first on a sale.
type LotMethod string

// Supported lot selection methods.
const (
	LotFIFO LotMethod = "FIFO"
	LotLIFO LotMethod = "LIFO"
	LotHIFO LotMethod = "HIFO"
)

// DividendMode controls what happens with dividend proceeds.
type DividendMode string

// Supported dividend handling modes.
const (
	DividendDRIP DividendMode = "DRIP"
	DividendCash DividendMode = "CASH"
)

// RebalanceType selects which trigger channels the rebalancer evaluates.
type RebalanceType string

// Supported rebalance trigger types.
const (
	RebalanceCalendar     RebalanceType = "calendar"
	RebalanceDrift        RebalanceType = "drift"
	RebalanceBoth         RebalanceType = "both"
	RebalanceCashflowOnly RebalanceType = "cashflow_only"
)

// DepositCadence controls how often scheduled deposits occur.
type DepositCadence string

// Supported deposit cadences.
const (
	DepositDaily          DepositCadence = "daily"
	DepositWeekly         DepositCadence = "weekly"
	DepositMonthly        DepositCadence = "monthly"
	DepositQuarterly      DepositCadence = "quarterly"
	DepositYearly         DepositCadence = "yearly"
	DepositEveryMarketDay DepositCadence = "every_market_day"
)

// CalendarPeriod is the cadence of calendar-based rebalancing.
type CalendarPeriod string

// Supported calendar rebalance periods.
const (
	PeriodDaily     CalendarPeriod = "D"
	PeriodWeekly    CalendarPeriod = "W"
	PeriodMonthly   CalendarPeriod = "M"
	PeriodQuarterly CalendarPeriod = "Q"
	PeriodYearly    CalendarPeriod = "A"
)

// IRS limits and tax constants. Update the contribution limits annually.
const (
	IRAContributionLimit  = 7000.0
	IRACatchUpLimit       = 1000.0
	RothContributionLimit = 7000.0
	RothCatchUpLimit      = 1000.0

	// ShortTermDays is the holding period boundary: a holding period of
	// ShortTermDays or fewer is short-term.
	ShortTermDays = 365

	// WashSaleDays is the number of calendar days before and after a loss
	// sale in which a repurchase disallows the loss.
	WashSaleDays = 30

	TradingDaysPerYear = 252

	DefaultSlippageBps = 5.0
	DefaultCommission  = 0.0
)

// TaxConfig holds the marginal rates applied at year end.
type TaxConfig struct {
	FederalOrdinary         float64 `json:"federal_ordinary"`
	FederalLTCG             float64 `json:"federal_ltcg"`
	State                   float64 `json:"state"`
	QualifiedDividendPct    float64 `json:"qualified_dividend_pct"`
	ApplyWashSale           bool    `json:"apply_wash_sale"`
	PayTaxesFromExternal    bool    `json:"pay_taxes_from_external"`
	WithdrawalTaxRateForIRA float64 `json:"withdrawal_tax_rate_for_ira"`
}

// DefaultTaxConfig returns the rates used when a strategy omits them.
func DefaultTaxConfig() TaxConfig {
	return TaxConfig{
		FederalOrdinary:         0.32,
		FederalLTCG:             0.15,
		State:                   0.06,
		QualifiedDividendPct:    0.8,
		ApplyWashSale:           true,
		PayTaxesFromExternal:    false,
		WithdrawalTaxRateForIRA: 0.25,
	}
}

// ContributionCaps holds the annual IRA/Roth contribution limits.
type ContributionCaps struct {
	Enforce     bool    `json:"enforce"`
	IRA         float64 `json:"ira"`
	IRACatchUp  float64 `json:"ira_catch_up"`
	Roth        float64 `json:"roth"`
	RothCatchUp float64 `json:"roth_catch_up"`
}

// DefaultContributionCaps returns the current IRS limits with enforcement on.
func DefaultContributionCaps() ContributionCaps {
	return ContributionCaps{
		Enforce:     true,
		IRA:         IRAContributionLimit,
		IRACatchUp:  IRACatchUpLimit,
		Roth:        RothContributionLimit,
		RothCatchUp: RothCatchUpLimit,
	}
}

// AccountConfig describes the simulated account.
type AccountConfig struct {
	Type             AccountType      `json:"type"`
	Tax              TaxConfig        `json:"tax"`
	ContributionCaps ContributionCaps `json:"contribution_caps"`
}

// UniverseConfig lists the symbols the strategy trades.
type UniverseConfig struct {
	Type    string   `json:"type"` // CUSTOM, US_STOCKS, ETF, BOND_ETF
	Symbols []string `json:"symbols"`
}

// PeriodConfig bounds the simulated date range.
type PeriodConfig struct {
	Start    string `json:"start"` // YYYY-MM-DD
	End      string `json:"end"`   // YYYY-MM-DD
	Calendar string `json:"calendar"`
}

// DepositConfig describes scheduled contributions.
type DepositConfig struct {
	Cadence          DepositCadence `json:"cadence"`
	Amount           float64        `json:"amount"`
	DayRule          string         `json:"day_rule"`
	MarketDayEveryDay bool          `json:"market_day_everyday"`
}

// DividendConfig describes dividend handling.
type DividendConfig struct {
	Mode                 DividendMode `json:"mode"`
	ReinvestThresholdPct float64      `json:"reinvest_threshold_pct"`
}

// CalendarRebalanceConfig configures the calendar trigger channel.
type CalendarRebalanceConfig struct {
	Period CalendarPeriod `json:"period"`
}

// DriftRebalanceConfig configures the drift trigger channel. A nil
// threshold disables that check.
type DriftRebalanceConfig struct {
	AbsPct *float64 `json:"abs_pct,omitempty"`
	RelPct *float64 `json:"rel_pct,omitempty"`
}

// RebalancingConfig selects and parameterizes the rebalance triggers.
type RebalancingConfig struct {
	Type     RebalanceType            `json:"type"`
	Calendar *CalendarRebalanceConfig `json:"calendar,omitempty"`
	Drift    *DriftRebalanceConfig    `json:"drift,omitempty"`
}

// LotConfig selects the lot accounting method.
type LotConfig struct {
	Method LotMethod `json:"method"`
}

// FrictionsConfig models trading costs.
type FrictionsConfig struct {
	CommissionPerTrade float64 `json:"commission_per_trade"`
	SlippageBps        float64 `json:"slippage_bps"`
	UseActualETFER     bool    `json:"use_actual_etf_er"`
	EquityBorrowBps    float64 `json:"equity_borrow_bps"`
}

// PositionSizingConfig controls target weight computation.
type PositionSizingConfig struct {
	Method        string             `json:"method"` // EQUAL_WEIGHT or CUSTOM_WEIGHTS
	CustomWeights map[string]float64 `json:"custom_weights,omitempty"`
}

// StrategyConfig is the complete declarative strategy definition.
type StrategyConfig struct {
	Meta           map[string]string    `json:"meta"`
	Universe       UniverseConfig       `json:"universe"`
	Period         PeriodConfig         `json:"period"`
	InitialCash    float64              `json:"initial_cash"`
	Account        AccountConfig        `json:"account"`
	Deposits       *DepositConfig       `json:"deposits,omitempty"`
	Dividends      DividendConfig       `json:"dividends"`
	Rebalancing    RebalancingConfig    `json:"rebalancing"`
	Lots           LotConfig            `json:"lots"`
	Frictions      FrictionsConfig      `json:"frictions"`
	PositionSizing PositionSizingConfig `json:"position_sizing"`
	Benchmark      []string             `json:"benchmark"`
}

// ApplyDefaults fills zero-valued optional sections with the engine
// defaults so a minimal JSON config behaves like the documented examples.
func (c *StrategyConfig) ApplyDefaults() {
	if c.Period.Calendar == "" {
		c.Period.Calendar = "NYSE"
	}
	if c.Account.Tax == (TaxConfig{}) {
		c.Account.Tax = DefaultTaxConfig()
	}
	if c.Account.ContributionCaps == (ContributionCaps{}) {
		c.Account.ContributionCaps = DefaultContributionCaps()
	}
	if c.Dividends.Mode == "" {
		c.Dividends.Mode = DividendDRIP
	}
	if c.Lots.Method == "" {
		c.Lots.Method = LotHIFO
	}
	if c.Frictions == (FrictionsConfig{}) {
		c.Frictions = FrictionsConfig{
			CommissionPerTrade: DefaultCommission,
			SlippageBps:        DefaultSlippageBps,
			UseActualETFER:     true,
		}
	}
	if c.PositionSizing.Method == "" {
		c.PositionSizing.Method = "EQUAL_WEIGHT"
	}
	if c.Deposits != nil && c.Deposits.DayRule == "" {
		c.Deposits.DayRule = "FIRST_BUSINESS_DAY"
	}
}
