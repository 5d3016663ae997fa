package filing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/taxquarter/backend/internal/logger"
	"gitlab.com/taxquarter/backend/internal/models"
	"gitlab.com/taxquarter/backend/internal/repository"
)

// Aggregator computes category totals from confirmed transactions. Totals
// are recomputed from source rows on every call, never cached.
type Aggregator struct {
	txRepo  *repository.TransactionRepository
	catRepo *repository.CategoryRepository
}

// NewAggregator creates an Aggregator.
func NewAggregator(txRepo *repository.TransactionRepository, catRepo *repository.CategoryRepository) *Aggregator {
	return &Aggregator{txRepo: txRepo, catRepo: catRepo}
}

// Aggregate sums confirmed transactions for a business over a period into
// per-category totals, partitioned into income and expenses. Transactions in
// the excluded set are dropped before aggregation. Expense amounts come back
// positive regardless of the bank feed's sign convention.
func (a *Aggregator) Aggregate(
	ctx context.Context,
	businessID string,
	businessType models.BusinessType,
	from, to time.Time,
	excludedIDs []int64,
) (models.CategoryTotals, error) {
	txs, err := a.txRepo.ConfirmedForPeriod(ctx, businessID, from, to)
	if err != nil {
		return models.CategoryTotals{}, err
	}

	cats, err := a.catRepo.GetByBusinessType(ctx, businessType)
	if err != nil {
		return models.CategoryTotals{}, err
	}

	excluded := make(map[int64]struct{}, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = struct{}{}
	}

	totals := models.CategoryTotals{
		Income:   make(map[string]decimal.Decimal),
		Expenses: make(map[string]decimal.Decimal),
	}

	for _, tx := range txs {
		if _, skip := excluded[tx.ID]; skip {
			continue
		}
		if tx.CategoryCode == nil {
			logger.Log.Debug().
				Int64("transaction_id", tx.ID).
				Str("description", logger.SanitizeDescription(tx.Description)).
				Msg("Skipping confirmed transaction without category")
			continue
		}
		cat, ok := cats[*tx.CategoryCode]
		if !ok {
			// Category belongs to a different business type; not an error,
			// the transaction simply does not feed this submission.
			continue
		}
		switch cat.Kind {
		case models.CategoryIncome:
			totals.Income[cat.Code] = totals.Income[cat.Code].Add(tx.Amount.Abs())
		case models.CategoryExpense:
			totals.Expenses[cat.Code] = totals.Expenses[cat.Code].Add(tx.Amount.Abs())
		}
	}

	return totals, nil
}
