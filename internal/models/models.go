// Package models defines the domain entities for the MTD quarterly filing core.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderHMRC is the provider key for HMRC token records.
const ProviderHMRC = "hmrc"

// BusinessType identifies which MTD income source a business reports under.
type BusinessType string

// Business types recognised by the quarterly update APIs.
const (
	BusinessTypeSelfEmployment  BusinessType = "self-employment"
	BusinessTypeUKProperty      BusinessType = "uk-property"
	BusinessTypeForeignProperty BusinessType = "foreign-property"
)

// Valid reports whether the business type is one we can submit for.
func (bt BusinessType) Valid() bool {
	switch bt {
	case BusinessTypeSelfEmployment, BusinessTypeUKProperty, BusinessTypeForeignProperty:
		return true
	}
	return false
}

// TokenRecord holds one user's OAuth token pair for an external authority.
// At most one active record exists per (user, provider); refreshes overwrite
// the row in place.
type TokenRecord struct {
	UserID       string
	Provider     string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	Scope        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Business is a registered income source (sole trade or property business).
type Business struct {
	ID               string
	UserID           string
	Type             BusinessType
	Name             string
	TradingStartDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ObligationStatus is the authority-side status of a filing period.
type ObligationStatus string

// Obligation statuses as returned by the obligations API.
const (
	ObligationOpen      ObligationStatus = "Open"
	ObligationFulfilled ObligationStatus = "Fulfilled"
)

// Obligation is one required filing period for one business. Read-only from
// our side; only an accepted submission flips Status on the authority's side.
type Obligation struct {
	PeriodKey    string
	BusinessID   string
	BusinessType BusinessType
	PeriodStart  time.Time
	PeriodEnd    time.Time
	DueDate      time.Time
	Status       ObligationStatus
	ReceivedDate *time.Time
}

// DisplayStatus is the derived, never persisted, UI-facing quarter state.
type DisplayStatus string

// Display statuses in precedence order.
const (
	DisplayOverdue    DisplayStatus = "overdue"
	DisplayReady      DisplayStatus = "ready"
	DisplayInProgress DisplayStatus = "in_progress"
	DisplayUpcoming   DisplayStatus = "upcoming"
)

// TransactionStatus tracks a bank transaction through review.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusConfirmed = "confirmed"
	TransactionStatusExcluded  = "excluded"
)

// Transaction is a categorised bank transaction. Income amounts are positive,
// expense amounts negative, matching the bank feed convention.
type Transaction struct {
	ID           int64
	UserID       string
	BusinessID   string
	Date         time.Time
	Amount       decimal.Decimal
	Description  string
	CategoryCode *string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CategoryKind partitions categories into income and expense.
type CategoryKind string

// Category kinds.
const (
	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
)

// Category maps a category code to the HMRC box it feeds.
type Category struct {
	Code         string
	Name         string
	Kind         CategoryKind
	BusinessType BusinessType
	Box          string
	CreatedAt    time.Time
}

// CategoryTotals aggregates confirmed transactions for one business and
// period, keyed by category code. Never mutated once computed; callers rerun
// the aggregation instead.
type CategoryTotals struct {
	Income   map[string]decimal.Decimal
	Expenses map[string]decimal.Decimal
}

// TotalIncome sums all income categories.
func (ct CategoryTotals) TotalIncome() decimal.Decimal {
	total := decimal.Zero
	for _, v := range ct.Income {
		total = total.Add(v)
	}
	return total
}

// TotalExpenses sums all expense categories.
func (ct CategoryTotals) TotalExpenses() decimal.Decimal {
	total := decimal.Zero
	for _, v := range ct.Expenses {
		total = total.Add(v)
	}
	return total
}

// SubmissionRecord is the audit row kept for every accepted submission. It
// backs the client-side duplicate-submit guard on (business, period key).
type SubmissionRecord struct {
	ID          string
	UserID      string
	BusinessID  string
	PeriodKey   string
	TaxYear     string
	Reference   string
	SubmittedAt time.Time
}
