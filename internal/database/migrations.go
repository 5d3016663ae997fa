package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS token_records (
			user_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			token_type TEXT NOT NULL DEFAULT 'Bearer',
			expires_at TIMESTAMPTZ NOT NULL,
			scope TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, provider)
		)`,

		`CREATE TABLE IF NOT EXISTS businesses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			trading_start_date DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_businesses_user_id ON businesses(user_id)`,

		`CREATE TABLE IF NOT EXISTS categories (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			business_type TEXT NOT NULL,
			box TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			business_id TEXT NOT NULL REFERENCES businesses(id),
			date DATE NOT NULL,
			amount DECIMAL(12, 2) NOT NULL,
			description TEXT,
			category_code TEXT REFERENCES categories(code),
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_business_id ON transactions(business_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status)`,

		`CREATE TABLE IF NOT EXISTS submissions (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			business_id TEXT NOT NULL,
			period_key TEXT NOT NULL,
			tax_year TEXT NOT NULL,
			reference TEXT NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_submissions_business_period ON submissions(business_id, period_key)`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

type seedCategory struct {
	code         string
	name         string
	kind         string
	businessType string
	box          string
}

// SeedCategories inserts the category codes that map transactions onto the
// HMRC submission boxes. Existing rows are left untouched.
func SeedCategories(ctx context.Context, pool *pgxpool.Pool) error {
	categories := []seedCategory{
		// Self-employment income.
		{"se_turnover", "Sales and takings", "income", "self-employment", "turnover"},
		{"se_other_income", "Other business income", "income", "self-employment", "other"},

		// Self-employment expenses.
		{"se_cost_of_goods", "Cost of goods", "expense", "self-employment", "costOfGoods"},
		{"se_subcontractors", "Payments to subcontractors", "expense", "self-employment", "paymentsToSubcontractors"},
		{"se_wages", "Wages and staff costs", "expense", "self-employment", "wagesAndStaffCosts"},
		{"se_travel", "Car, van and travel", "expense", "self-employment", "carVanTravelExpenses"},
		{"se_premises", "Rent, rates, power and insurance", "expense", "self-employment", "premisesRunningCosts"},
		{"se_maintenance", "Repairs and maintenance", "expense", "self-employment", "maintenanceCosts"},
		{"se_admin", "Phone, stationery and office costs", "expense", "self-employment", "adminCosts"},
		{"se_advertising", "Advertising and marketing", "expense", "self-employment", "advertisingCosts"},
		{"se_entertainment", "Business entertainment", "expense", "self-employment", "businessEntertainmentCosts"},
		{"se_interest", "Interest on bank and other loans", "expense", "self-employment", "interestOnBankOtherLoans"},
		{"se_finance_charges", "Bank and finance charges", "expense", "self-employment", "financeCharges"},
		{"se_bad_debts", "Irrecoverable debts", "expense", "self-employment", "irrecoverableDebts"},
		{"se_professional_fees", "Accountancy and professional fees", "expense", "self-employment", "professionalFees"},
		{"se_depreciation", "Depreciation", "expense", "self-employment", "depreciation"},
		{"se_other_expenses", "Other allowable expenses", "expense", "self-employment", "otherExpenses"},

		// UK property income.
		{"prop_rent", "Rent income", "income", "uk-property", "periodAmount"},
		{"prop_premiums", "Premiums of lease grant", "income", "uk-property", "premiumsOfLeaseGrant"},
		{"prop_reverse_premiums", "Reverse premiums", "income", "uk-property", "reversePremiums"},
		{"prop_other_income", "Other property income", "income", "uk-property", "otherPropertyIncome"},

		// UK property expenses.
		{"prop_premises", "Premises running costs", "expense", "uk-property", "premisesRunningCosts"},
		{"prop_repairs", "Repairs and maintenance", "expense", "uk-property", "repairsAndMaintenance"},
		{"prop_finance", "Loan interest and financial costs", "expense", "uk-property", "financialCosts"},
		{"prop_professional_fees", "Legal, management and professional fees", "expense", "uk-property", "professionalFees"},
		{"prop_services", "Cost of services provided", "expense", "uk-property", "costOfServices"},
		{"prop_residential_finance", "Residential financial costs", "expense", "uk-property", "residentialFinancialCost"},
		{"prop_travel", "Property travel costs", "expense", "uk-property", "travelCosts"},
		{"prop_other_expenses", "Other property expenses", "expense", "uk-property", "other"},

		// Foreign property income.
		{"fprop_rent", "Foreign rent income", "income", "foreign-property", "periodAmount"},
		{"fprop_premiums", "Premiums of lease grant", "income", "foreign-property", "premiumsOfLeaseGrant"},
		{"fprop_other_income", "Other foreign property income", "income", "foreign-property", "otherPropertyIncome"},

		// Foreign property expenses.
		{"fprop_premises", "Premises running costs", "expense", "foreign-property", "premisesRunningCosts"},
		{"fprop_repairs", "Repairs and maintenance", "expense", "foreign-property", "repairsAndMaintenance"},
		{"fprop_finance", "Loan interest and financial costs", "expense", "foreign-property", "financialCosts"},
		{"fprop_professional_fees", "Legal, management and professional fees", "expense", "foreign-property", "professionalFees"},
		{"fprop_services", "Cost of services provided", "expense", "foreign-property", "costOfServices"},
		{"fprop_residential_finance", "Residential financial costs", "expense", "foreign-property", "residentialFinancialCost"},
		{"fprop_travel", "Property travel costs", "expense", "foreign-property", "travelCosts"},
		{"fprop_other_expenses", "Other foreign property expenses", "expense", "foreign-property", "other"},
	}

	for _, cat := range categories {
		_, err := pool.Exec(ctx, `
			INSERT INTO categories (code, name, kind, business_type, box)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (code) DO NOTHING
		`, cat.code, cat.name, cat.kind, cat.businessType, cat.box)
		if err != nil {
			return fmt.Errorf("failed to seed category %s: %w", cat.code, err)
		}
	}

	return nil
}
