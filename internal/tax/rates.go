// Package tax computes UK income tax and National Insurance for the
// self-employed. All functions are pure; amounts are decimal and rounded to
// two places after every banding step so results match statutory worked
// examples exactly.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// YearRates parameterizes the calculator for one tax year.
type YearRates struct {
	TaxYear string

	PersonalAllowance decimal.Decimal
	TaperThreshold    decimal.Decimal

	// Band limits are on taxable income after the personal allowance.
	BasicRate      decimal.Decimal
	HigherRate     decimal.Decimal
	AdditionalRate decimal.Decimal
	BasicBandTop   decimal.Decimal
	HigherBandTop  decimal.Decimal

	Class2WeeklyRate decimal.Decimal
	Class4LowerLimit decimal.Decimal
	Class4UpperLimit decimal.Decimal
	Class4MainRate   decimal.Decimal
	Class4UpperRate  decimal.Decimal

	MileageHighRate      decimal.Decimal
	MileageLowRate       decimal.Decimal
	MileageHighRateMiles decimal.Decimal

	PropertyFinanceReliefRate decimal.Decimal
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func standardRates(taxYear, class2Weekly, class4Main string) YearRates {
	return YearRates{
		TaxYear:                   taxYear,
		PersonalAllowance:         dec("12570"),
		TaperThreshold:            dec("100000"),
		BasicRate:                 dec("0.20"),
		HigherRate:                dec("0.40"),
		AdditionalRate:            dec("0.45"),
		BasicBandTop:              dec("37700"),
		HigherBandTop:             dec("125140"),
		Class2WeeklyRate:          dec(class2Weekly),
		Class4LowerLimit:          dec("12570"),
		Class4UpperLimit:          dec("50270"),
		Class4MainRate:            dec(class4Main),
		Class4UpperRate:           dec("0.02"),
		MileageHighRate:           dec("0.45"),
		MileageLowRate:            dec("0.25"),
		MileageHighRateMiles:      dec("10000"),
		PropertyFinanceReliefRate: dec("0.20"),
	}
}

// yearRates holds the shipped rate tables. Thresholds have been frozen since
// 2021-22, so the years differ only in NI rates.
var yearRates = map[string]YearRates{
	"2024-25": standardRates("2024-25", "3.45", "0.06"),
	"2025-26": standardRates("2025-26", "3.50", "0.06"),
	"2026-27": standardRates("2026-27", "3.50", "0.06"),
}

// RatesFor returns the rate table for a tax year such as "2024-25".
func RatesFor(taxYear string) (YearRates, error) {
	rates, ok := yearRates[taxYear]
	if !ok {
		return YearRates{}, fmt.Errorf("no rate table for tax year %q", taxYear)
	}
	return rates, nil
}
