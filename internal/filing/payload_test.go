package filing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/taxquarter/backend/internal/models"
)

func TestAmountMarshalsAsBareNumber(t *testing.T) {
	payload, err := json.Marshal(SelfEmploymentIncome{
		Turnover: amt(decimal.RequireFromString("1234.5")),
	})
	require.NoError(t, err)
	require.Equal(t, `{"turnover":1234.50}`, string(payload))
}

func TestAmountUnmarshalsFromNumber(t *testing.T) {
	var income SelfEmploymentIncome
	require.NoError(t, json.Unmarshal([]byte(`{"turnover":1234.5,"other":"10.25"}`), &income))
	require.True(t, income.Turnover.Equal(decimal.RequireFromString("1234.5")))
	require.True(t, income.Other.Equal(decimal.RequireFromString("10.25")))
}

func TestZeroAmountsAreOmitted(t *testing.T) {
	payload, err := json.Marshal(SelfEmploymentExpenses{
		AdminCosts: amt(decimal.Zero),
	})
	require.NoError(t, err)
	require.Equal(t, `{}`, string(payload))
}

func seCategories() map[string]models.Category {
	return map[string]models.Category{
		"se_sales":   {Code: "se_sales", Kind: models.CategoryIncome, Box: "turnover"},
		"se_other":   {Code: "se_other", Kind: models.CategoryIncome, Box: "other"},
		"se_goods":   {Code: "se_goods", Kind: models.CategoryExpense, Box: "costOfGoods"},
		"se_admin":   {Code: "se_admin", Kind: models.CategoryExpense, Box: "adminCosts"},
		"se_misc":    {Code: "se_misc", Kind: models.CategoryExpense, Box: "otherExpenses"},
		"se_mystery": {Code: "se_mystery", Kind: models.CategoryExpense, Box: "unmapped-box"},
	}
}

func TestSelfEmploymentFromTotals(t *testing.T) {
	totals := models.CategoryTotals{
		Income: map[string]decimal.Decimal{
			"se_sales": decimal.NewFromInt(10000),
			"se_other": decimal.NewFromInt(500),
		},
		Expenses: map[string]decimal.Decimal{
			"se_goods":   decimal.NewFromInt(2000),
			"se_admin":   decimal.NewFromInt(300),
			"se_mystery": decimal.NewFromInt(40),
		},
	}

	income := SelfEmploymentIncomeFromTotals(totals, seCategories())
	require.True(t, income.Turnover.Equal(decimal.NewFromInt(10000)))
	require.True(t, income.Other.Equal(decimal.NewFromInt(500)))

	expenses := SelfEmploymentExpensesFromTotals(totals, seCategories())
	require.True(t, expenses.CostOfGoods.Equal(decimal.NewFromInt(2000)))
	require.True(t, expenses.AdminCosts.Equal(decimal.NewFromInt(300)))
	// Unmapped boxes land in the catch-all.
	require.True(t, expenses.OtherExpenses.Equal(decimal.NewFromInt(40)))
}

func TestSelfEmploymentConsolidate(t *testing.T) {
	expenses := SelfEmploymentExpenses{
		CostOfGoods:      amt(decimal.NewFromInt(2000)),
		AdminCosts:       amt(decimal.NewFromInt(300)),
		ProfessionalFees: amt(decimal.NewFromInt(150)),
	}
	expenses.Consolidate()

	require.Nil(t, expenses.CostOfGoods)
	require.Nil(t, expenses.AdminCosts)
	require.Nil(t, expenses.ProfessionalFees)
	require.True(t, expenses.ConsolidatedExpenses.Equal(decimal.NewFromInt(2450)))
	require.True(t, expenses.Total().Equal(decimal.NewFromInt(2450)),
		"consolidation must not change the total")
}

func TestPropertyConsolidateKeepsResidentialFinanceCost(t *testing.T) {
	expenses := PropertyExpenses{
		PremisesRunningCosts:     amt(decimal.NewFromInt(800)),
		FinancialCosts:           amt(decimal.NewFromInt(120)),
		ResidentialFinancialCost: amt(decimal.NewFromInt(2400)),
	}
	expenses.Consolidate()

	require.True(t, expenses.ConsolidatedExpenses.Equal(decimal.NewFromInt(920)))
	require.NotNil(t, expenses.ResidentialFinancialCost,
		"the relief-bearing box survives consolidation")
	require.True(t, expenses.ResidentialFinancialCost.Equal(decimal.NewFromInt(2400)))
}

func TestPropertyFromTotals(t *testing.T) {
	cats := map[string]models.Category{
		"prop_rent":    {Code: "prop_rent", Kind: models.CategoryIncome, Box: "periodAmount"},
		"prop_repairs": {Code: "prop_repairs", Kind: models.CategoryExpense, Box: "repairsAndMaintenance"},
		"prop_mortgage": {
			Code: "prop_mortgage", Kind: models.CategoryExpense, Box: "residentialFinancialCost",
		},
	}
	totals := models.CategoryTotals{
		Income: map[string]decimal.Decimal{
			"prop_rent": decimal.NewFromInt(5400),
		},
		Expenses: map[string]decimal.Decimal{
			"prop_repairs":  decimal.NewFromInt(350),
			"prop_mortgage": decimal.NewFromInt(1800),
		},
	}

	income := PropertyIncomeFromTotals(totals, cats)
	require.True(t, income.PeriodAmount.Equal(decimal.NewFromInt(5400)))

	expenses := PropertyExpensesFromTotals(totals, cats)
	require.True(t, expenses.RepairsAndMaintenance.Equal(decimal.NewFromInt(350)))
	require.True(t, expenses.ResidentialFinancialCost.Equal(decimal.NewFromInt(1800)))
}

func TestUncategorisedTotalsAreSkipped(t *testing.T) {
	totals := models.CategoryTotals{
		Income: map[string]decimal.Decimal{
			"unknown_code": decimal.NewFromInt(999),
		},
	}
	income := SelfEmploymentIncomeFromTotals(totals, seCategories())
	require.Nil(t, income.Turnover)
	require.Nil(t, income.Other)
}
