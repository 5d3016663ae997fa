// Package filing implements the quarterly submission wizard: totals
// aggregation, the per-business-type payload shapes, and the step state
// machine that drives a filing session through to submission.
package filing

import (
	"github.com/shopspring/decimal"
	"gitlab.com/taxquarter/backend/internal/models"
)

// Amount marshals a decimal as a bare JSON number with two decimal places,
// which is what the submission APIs expect.
type Amount struct {
	decimal.Decimal
}

// MarshalJSON renders the amount unquoted.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

// amt wraps a decimal for inclusion in a payload. Zero amounts return nil so
// the field is omitted; the API rejects unexpected zero-valued fields for
// some categories.
func amt(d decimal.Decimal) *Amount {
	if d.IsZero() {
		return nil
	}
	return &Amount{d}
}

// PeriodDates are always copied from the obligation, never recomputed from
// user input, to avoid off-by-one period drift.
type PeriodDates struct {
	PeriodStartDate string `json:"periodStartDate"`
	PeriodEndDate   string `json:"periodEndDate"`
}

// SelfEmploymentIncome is the income shape for sole-trade submissions.
type SelfEmploymentIncome struct {
	Turnover *Amount `json:"turnover,omitempty"`
	Other    *Amount `json:"other,omitempty"`
}

// SelfEmploymentExpenses is the expense shape for sole-trade submissions.
// When the consolidated flag is set only ConsolidatedExpenses is populated.
type SelfEmploymentExpenses struct {
	CostOfGoods                *Amount `json:"costOfGoods,omitempty"`
	PaymentsToSubcontractors   *Amount `json:"paymentsToSubcontractors,omitempty"`
	WagesAndStaffCosts         *Amount `json:"wagesAndStaffCosts,omitempty"`
	CarVanTravelExpenses       *Amount `json:"carVanTravelExpenses,omitempty"`
	PremisesRunningCosts       *Amount `json:"premisesRunningCosts,omitempty"`
	MaintenanceCosts           *Amount `json:"maintenanceCosts,omitempty"`
	AdminCosts                 *Amount `json:"adminCosts,omitempty"`
	AdvertisingCosts           *Amount `json:"advertisingCosts,omitempty"`
	BusinessEntertainmentCosts *Amount `json:"businessEntertainmentCosts,omitempty"`
	InterestOnBankOtherLoans   *Amount `json:"interestOnBankOtherLoans,omitempty"`
	FinanceCharges             *Amount `json:"financeCharges,omitempty"`
	IrrecoverableDebts         *Amount `json:"irrecoverableDebts,omitempty"`
	ProfessionalFees           *Amount `json:"professionalFees,omitempty"`
	Depreciation               *Amount `json:"depreciation,omitempty"`
	OtherExpenses              *Amount `json:"otherExpenses,omitempty"`
	ConsolidatedExpenses       *Amount `json:"consolidatedExpenses,omitempty"`
}

// PropertyIncome is the income shape for UK property submissions.
type PropertyIncome struct {
	PeriodAmount         *Amount `json:"periodAmount,omitempty"`
	PremiumsOfLeaseGrant *Amount `json:"premiumsOfLeaseGrant,omitempty"`
	ReversePremiums      *Amount `json:"reversePremiums,omitempty"`
	OtherPropertyIncome  *Amount `json:"otherPropertyIncome,omitempty"`
}

// PropertyExpenses is the expense shape for UK property submissions.
type PropertyExpenses struct {
	PremisesRunningCosts     *Amount `json:"premisesRunningCosts,omitempty"`
	RepairsAndMaintenance    *Amount `json:"repairsAndMaintenance,omitempty"`
	FinancialCosts           *Amount `json:"financialCosts,omitempty"`
	ProfessionalFees         *Amount `json:"professionalFees,omitempty"`
	CostOfServices           *Amount `json:"costOfServices,omitempty"`
	ResidentialFinancialCost *Amount `json:"residentialFinancialCost,omitempty"`
	TravelCosts              *Amount `json:"travelCosts,omitempty"`
	Other                    *Amount `json:"other,omitempty"`
	ConsolidatedExpenses     *Amount `json:"consolidatedExpenses,omitempty"`
}

// cumulativeBody is the year-to-date submission shape used from the cut-over
// tax year onwards. PUT semantics: it replaces prior submissions for the
// same period set.
type cumulativeBody struct {
	PeriodDates    PeriodDates `json:"periodDates"`
	PeriodIncome   any         `json:"periodIncome"`
	PeriodExpenses any         `json:"periodExpenses"`
}

// periodBody is the incremental per-period shape used before the cut-over.
type periodBody struct {
	PeriodStartDate string `json:"periodStartDate"`
	PeriodEndDate   string `json:"periodEndDate"`
	PeriodIncome    any    `json:"periodIncome"`
	PeriodExpenses  any    `json:"periodExpenses"`
}

// SelfEmploymentIncomeFromTotals maps aggregated category totals onto the
// sole-trade income boxes.
func SelfEmploymentIncomeFromTotals(totals models.CategoryTotals, cats map[string]models.Category) SelfEmploymentIncome {
	var income SelfEmploymentIncome
	for code, total := range totals.Income {
		cat, ok := cats[code]
		if !ok {
			continue
		}
		switch cat.Box {
		case "turnover":
			income.Turnover = addAmount(income.Turnover, total)
		default:
			income.Other = addAmount(income.Other, total)
		}
	}
	return income
}

// SelfEmploymentExpensesFromTotals maps aggregated category totals onto the
// sole-trade expense boxes.
func SelfEmploymentExpensesFromTotals(totals models.CategoryTotals, cats map[string]models.Category) SelfEmploymentExpenses {
	var expenses SelfEmploymentExpenses
	for code, total := range totals.Expenses {
		cat, ok := cats[code]
		if !ok {
			continue
		}
		field := expenses.fieldForBox(cat.Box)
		*field = addAmount(*field, total)
	}
	return expenses
}

func (e *SelfEmploymentExpenses) fieldForBox(box string) **Amount {
	switch box {
	case "costOfGoods":
		return &e.CostOfGoods
	case "paymentsToSubcontractors":
		return &e.PaymentsToSubcontractors
	case "wagesAndStaffCosts":
		return &e.WagesAndStaffCosts
	case "carVanTravelExpenses":
		return &e.CarVanTravelExpenses
	case "premisesRunningCosts":
		return &e.PremisesRunningCosts
	case "maintenanceCosts":
		return &e.MaintenanceCosts
	case "adminCosts":
		return &e.AdminCosts
	case "advertisingCosts":
		return &e.AdvertisingCosts
	case "businessEntertainmentCosts":
		return &e.BusinessEntertainmentCosts
	case "interestOnBankOtherLoans":
		return &e.InterestOnBankOtherLoans
	case "financeCharges":
		return &e.FinanceCharges
	case "irrecoverableDebts":
		return &e.IrrecoverableDebts
	case "professionalFees":
		return &e.ProfessionalFees
	case "depreciation":
		return &e.Depreciation
	default:
		return &e.OtherExpenses
	}
}

// Consolidate collapses the itemised expense boxes into the single
// consolidated figure and clears the itemised fields.
func (e *SelfEmploymentExpenses) Consolidate() {
	total := decimal.Zero
	for _, field := range []*Amount{
		e.CostOfGoods, e.PaymentsToSubcontractors, e.WagesAndStaffCosts,
		e.CarVanTravelExpenses, e.PremisesRunningCosts, e.MaintenanceCosts,
		e.AdminCosts, e.AdvertisingCosts, e.BusinessEntertainmentCosts,
		e.InterestOnBankOtherLoans, e.FinanceCharges, e.IrrecoverableDebts,
		e.ProfessionalFees, e.Depreciation, e.OtherExpenses,
	} {
		if field != nil {
			total = total.Add(field.Decimal)
		}
	}
	*e = SelfEmploymentExpenses{ConsolidatedExpenses: amt(total)}
}

// Total sums every populated expense box.
func (e SelfEmploymentExpenses) Total() decimal.Decimal {
	total := decimal.Zero
	for _, field := range []*Amount{
		e.CostOfGoods, e.PaymentsToSubcontractors, e.WagesAndStaffCosts,
		e.CarVanTravelExpenses, e.PremisesRunningCosts, e.MaintenanceCosts,
		e.AdminCosts, e.AdvertisingCosts, e.BusinessEntertainmentCosts,
		e.InterestOnBankOtherLoans, e.FinanceCharges, e.IrrecoverableDebts,
		e.ProfessionalFees, e.Depreciation, e.OtherExpenses, e.ConsolidatedExpenses,
	} {
		if field != nil {
			total = total.Add(field.Decimal)
		}
	}
	return total
}

// Total sums every populated income box.
func (i SelfEmploymentIncome) Total() decimal.Decimal {
	total := decimal.Zero
	for _, field := range []*Amount{i.Turnover, i.Other} {
		if field != nil {
			total = total.Add(field.Decimal)
		}
	}
	return total
}

// PropertyIncomeFromTotals maps aggregated category totals onto the property
// income boxes.
func PropertyIncomeFromTotals(totals models.CategoryTotals, cats map[string]models.Category) PropertyIncome {
	var income PropertyIncome
	for code, total := range totals.Income {
		cat, ok := cats[code]
		if !ok {
			continue
		}
		switch cat.Box {
		case "periodAmount":
			income.PeriodAmount = addAmount(income.PeriodAmount, total)
		case "premiumsOfLeaseGrant":
			income.PremiumsOfLeaseGrant = addAmount(income.PremiumsOfLeaseGrant, total)
		case "reversePremiums":
			income.ReversePremiums = addAmount(income.ReversePremiums, total)
		default:
			income.OtherPropertyIncome = addAmount(income.OtherPropertyIncome, total)
		}
	}
	return income
}

// PropertyExpensesFromTotals maps aggregated category totals onto the
// property expense boxes.
func PropertyExpensesFromTotals(totals models.CategoryTotals, cats map[string]models.Category) PropertyExpenses {
	var expenses PropertyExpenses
	for code, total := range totals.Expenses {
		cat, ok := cats[code]
		if !ok {
			continue
		}
		field := expenses.fieldForBox(cat.Box)
		*field = addAmount(*field, total)
	}
	return expenses
}

func (e *PropertyExpenses) fieldForBox(box string) **Amount {
	switch box {
	case "premisesRunningCosts":
		return &e.PremisesRunningCosts
	case "repairsAndMaintenance":
		return &e.RepairsAndMaintenance
	case "financialCosts":
		return &e.FinancialCosts
	case "professionalFees":
		return &e.ProfessionalFees
	case "costOfServices":
		return &e.CostOfServices
	case "residentialFinancialCost":
		return &e.ResidentialFinancialCost
	case "travelCosts":
		return &e.TravelCosts
	default:
		return &e.Other
	}
}

// Consolidate collapses the itemised expense boxes into the single
// consolidated figure. The residential finance cost box survives
// consolidation because its relief is claimed separately.
func (e *PropertyExpenses) Consolidate() {
	total := decimal.Zero
	for _, field := range []*Amount{
		e.PremisesRunningCosts, e.RepairsAndMaintenance, e.FinancialCosts,
		e.ProfessionalFees, e.CostOfServices, e.TravelCosts, e.Other,
	} {
		if field != nil {
			total = total.Add(field.Decimal)
		}
	}
	residential := e.ResidentialFinancialCost
	*e = PropertyExpenses{
		ConsolidatedExpenses:     amt(total),
		ResidentialFinancialCost: residential,
	}
}

// Total sums every populated expense box.
func (e PropertyExpenses) Total() decimal.Decimal {
	total := decimal.Zero
	for _, field := range []*Amount{
		e.PremisesRunningCosts, e.RepairsAndMaintenance, e.FinancialCosts,
		e.ProfessionalFees, e.CostOfServices, e.ResidentialFinancialCost,
		e.TravelCosts, e.Other, e.ConsolidatedExpenses,
	} {
		if field != nil {
			total = total.Add(field.Decimal)
		}
	}
	return total
}

// Total sums every populated income box.
func (i PropertyIncome) Total() decimal.Decimal {
	total := decimal.Zero
	for _, field := range []*Amount{
		i.PeriodAmount, i.PremiumsOfLeaseGrant, i.ReversePremiums, i.OtherPropertyIncome,
	} {
		if field != nil {
			total = total.Add(field.Decimal)
		}
	}
	return total
}

func addAmount(existing *Amount, add decimal.Decimal) *Amount {
	if add.IsZero() {
		return existing
	}
	if existing == nil {
		return &Amount{add}
	}
	return &Amount{existing.Decimal.Add(add)}
}
