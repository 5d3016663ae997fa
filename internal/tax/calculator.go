package tax

import (
	"github.com/shopspring/decimal"
)

var (
	two        = decimal.NewFromInt(2)
	weeksInYr  = decimal.NewFromInt(52)
	oneHundred = decimal.NewFromInt(100)
)

// Computation is the output of Compute. Pure value object, no identity.
type Computation struct {
	TaxableProfit     decimal.Decimal
	PersonalAllowance decimal.Decimal

	BasicRateAmount      decimal.Decimal
	HigherRateAmount     decimal.Decimal
	AdditionalRateAmount decimal.Decimal

	IncomeTax     decimal.Decimal
	Class2NI      decimal.Decimal
	Class4NI      decimal.Decimal
	TotalTaxDue   decimal.Decimal
	EffectiveRate decimal.Decimal
}

// PersonalAllowance returns the tapered personal allowance for the given
// income. Above the taper threshold the allowance drops by one pound for
// every two pounds of income, floored at zero.
func PersonalAllowance(rates YearRates, income decimal.Decimal) decimal.Decimal {
	if income.LessThanOrEqual(rates.TaperThreshold) {
		return rates.PersonalAllowance
	}
	reduction := income.Sub(rates.TaperThreshold).Div(two).Floor()
	allowance := rates.PersonalAllowance.Sub(reduction)
	if allowance.IsNegative() {
		return decimal.Zero
	}
	return allowance
}

// Compute calculates income tax and National Insurance on trading profit.
// Identical inputs always yield identical outputs; each band amount is
// rounded to two places before the next step.
func Compute(totalIncome, totalExpenses decimal.Decimal, rates YearRates) Computation {
	profit := totalIncome.Sub(totalExpenses)
	if profit.LessThanOrEqual(decimal.Zero) {
		return Computation{
			TaxableProfit:     profit.Round(2),
			PersonalAllowance: rates.PersonalAllowance,
		}
	}
	profit = profit.Round(2)

	allowance := PersonalAllowance(rates, profit)
	taxable := profit.Sub(allowance)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	// Bands are applied to the post-allowance amount in ascending order;
	// each consumes only the slice that falls within it.
	basicAmount := decimal.Min(taxable, rates.BasicBandTop)
	higherAmount := decimal.Min(
		decimal.Max(taxable.Sub(rates.BasicBandTop), decimal.Zero),
		rates.HigherBandTop.Sub(rates.BasicBandTop),
	)
	additionalAmount := decimal.Max(taxable.Sub(rates.HigherBandTop), decimal.Zero)

	basicTax := basicAmount.Mul(rates.BasicRate).Round(2)
	higherTax := higherAmount.Mul(rates.HigherRate).Round(2)
	additionalTax := additionalAmount.Mul(rates.AdditionalRate).Round(2)
	incomeTax := basicTax.Add(higherTax).Add(additionalTax)

	class2 := decimal.Zero
	if profit.GreaterThan(rates.Class4LowerLimit) {
		class2 = rates.Class2WeeklyRate.Mul(weeksInYr).Round(2)
	}

	class4 := decimal.Zero
	if profit.GreaterThan(rates.Class4LowerLimit) {
		mainBand := decimal.Min(profit, rates.Class4UpperLimit).Sub(rates.Class4LowerLimit)
		class4 = mainBand.Mul(rates.Class4MainRate).Round(2)
		if profit.GreaterThan(rates.Class4UpperLimit) {
			upperBand := profit.Sub(rates.Class4UpperLimit)
			class4 = class4.Add(upperBand.Mul(rates.Class4UpperRate).Round(2))
		}
	}

	total := incomeTax.Add(class2).Add(class4)

	effective := decimal.Zero
	if profit.IsPositive() {
		effective = total.Div(profit).Mul(oneHundred).Round(2)
	}

	return Computation{
		TaxableProfit:        profit,
		PersonalAllowance:    allowance,
		BasicRateAmount:      basicAmount,
		HigherRateAmount:     higherAmount,
		AdditionalRateAmount: additionalAmount,
		IncomeTax:            incomeTax,
		Class2NI:             class2,
		Class4NI:             class4,
		TotalTaxDue:          total,
		EffectiveRate:        effective,
	}
}

// ApplyFinanceCostRelief subtracts the residential finance-cost credit from
// income tax. The credit can reduce income tax to zero but never below.
func ApplyFinanceCostRelief(incomeTax, financeCosts decimal.Decimal, rates YearRates) decimal.Decimal {
	if financeCosts.LessThanOrEqual(decimal.Zero) {
		return incomeTax
	}
	credit := financeCosts.Mul(rates.PropertyFinanceReliefRate).Round(2)
	reduced := incomeTax.Sub(credit)
	if reduced.IsNegative() {
		return decimal.Zero
	}
	return reduced
}

// MileageAllowance computes the flat-rate vehicle deduction. The first
// 10,000 business miles attract the higher rate, the remainder the lower
// rate. Return journeys double the recorded one-way mileage before the split.
func MileageAllowance(miles decimal.Decimal, returnJourney bool, rates YearRates) decimal.Decimal {
	if miles.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if returnJourney {
		miles = miles.Mul(two)
	}
	highMiles := decimal.Min(miles, rates.MileageHighRateMiles)
	lowMiles := decimal.Max(miles.Sub(rates.MileageHighRateMiles), decimal.Zero)
	return highMiles.Mul(rates.MileageHighRate).Round(2).
		Add(lowMiles.Mul(rates.MileageLowRate).Round(2))
}
