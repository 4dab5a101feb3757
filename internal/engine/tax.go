package engine

import (
	"github.com/cjg131/backtester-v1/internal/model"
)

// TaxCalculator computes annual tax liability for taxable accounts and
// after-tax valuations for every account type.
type TaxCalculator struct {
	config model.TaxConfig
}

// NewTaxCalculator creates a calculator with the given marginal rates.
func NewTaxCalculator(config model.TaxConfig) *TaxCalculator {
	return &TaxCalculator{config: config}
}

// CalculateAnnualTax derives a year's tax breakdown from the ledger's
// accumulators. Net realized losses produce zero tax, not a refund, but
// the negative totals still appear in the summary.
func (t *TaxCalculator) CalculateAnnualTax(year int, ledger *Ledger) model.TaxSummary {
	stGains := ledger.RealizedShortTerm(year)
	ltGains := ledger.RealizedLongTerm(year)
	qualifiedDivs := ledger.QualifiedDividends(year)
	ordinaryDivs := ledger.OrdinaryDividends(year)
	interest := ledger.InterestIncome(year)

	ordinaryRate := t.config.FederalOrdinary + t.config.State
	ltcgRate := t.config.FederalLTCG + t.config.State

	stTax := positive(stGains) * ordinaryRate
	ltTax := positive(ltGains) * ltcgRate
	qualifiedDivTax := qualifiedDivs * ltcgRate
	ordinaryDivTax := ordinaryDivs * ordinaryRate
	interestTax := interest * ordinaryRate

	return model.TaxSummary{
		Year:               year,
		ShortTermGains:     stGains,
		LongTermGains:      ltGains,
		QualifiedDividends: qualifiedDivs,
		OrdinaryDividends:  ordinaryDivs,
		InterestIncome:     interest,
		TotalTax:           stTax + ltTax + qualifiedDivTax + ordinaryDivTax + interestTax,
		WashSaleCount:      ledger.WashSaleCount(),
	}
}

// ApplyYearEndTax computes the year's tax and deducts it from the
// ledger's cash unless taxes are paid from external funds. Returns the
// tax amount.
func (t *TaxCalculator) ApplyYearEndTax(year int, ledger *Ledger, payFromExternal bool) float64 {
	summary := t.CalculateAnnualTax(year, ledger)
	if !payFromExternal && summary.TotalTax > 0 {
		ledger.DeductTax(summary.TotalTax)
	}
	return summary.TotalTax
}

// CalculateAfterTaxValue returns the portfolio's value net of the taxes
// an immediate liquidation or withdrawal would owe. Roth and 529
// qualified withdrawals are tax-free, Traditional IRA withdrawal is
// taxed in full, and taxable accounts owe long-term rates on unrealized
// gains.
func (t *TaxCalculator) CalculateAfterTaxValue(ledger *Ledger, prices map[string]float64, withdrawalTaxRate float64) float64 {
	totalValue := ledger.TotalValue(prices)

	switch ledger.AccountType() {
	case model.AccountRothIRA, model.AccountPlan529:
		return totalValue
	case model.AccountTraditionalIRA:
		return totalValue * (1 - withdrawalTaxRate)
	}

	ltcgRate := t.config.FederalLTCG + t.config.State
	var unrealizedTax float64
	for _, pos := range ledger.AllPositions(prices) {
		if pos.UnrealizedGain > 0 {
			unrealizedTax += pos.UnrealizedGain * ltcgRate
		}
	}
	return totalValue - unrealizedTax
}

func positive(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}
