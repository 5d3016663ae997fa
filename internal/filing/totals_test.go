package filing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/taxquarter/backend/internal/database"
	"gitlab.com/taxquarter/backend/internal/models"
	"gitlab.com/taxquarter/backend/internal/repository"
)

func TestAggregatorIntegration(t *testing.T) {
	pool := database.TestDB(t)
	ctx := context.Background()
	require.NoError(t, database.RunMigrations(ctx, pool))
	database.CleanupTables(t, pool)
	require.NoError(t, database.SeedCategories(ctx, pool))

	bizRepo := repository.NewBusinessRepository(pool)
	txRepo := repository.NewTransactionRepository(pool)
	catRepo := repository.NewCategoryRepository(pool)

	business := models.Business{
		ID:     "XBIS12345678901",
		UserID: "user-1",
		Type:   models.BusinessTypeSelfEmployment,
		Name:   "Test trade",
	}
	require.NoError(t, bizRepo.Create(ctx, &business))

	periodStart := time.Date(2025, time.April, 6, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC)

	add := func(amount, categoryCode, status string) *models.Transaction {
		tx := &models.Transaction{
			UserID:       "user-1",
			BusinessID:   business.ID,
			Date:         periodStart.AddDate(0, 0, 10),
			Amount:       decimal.RequireFromString(amount),
			Description:  "test",
			CategoryCode: &categoryCode,
			Status:       status,
		}
		require.NoError(t, txRepo.Create(ctx, tx))
		return tx
	}

	add("1500.00", "se_turnover", models.TransactionStatusConfirmed)
	add("2500.00", "se_turnover", models.TransactionStatusConfirmed)
	add("-120.00", "se_admin", models.TransactionStatusConfirmed)
	add("9999.00", "se_turnover", models.TransactionStatusPending)   // not confirmed
	add("-50.00", "prop_repairs", models.TransactionStatusConfirmed) // wrong business type
	excludable := add("400.00", "se_turnover", models.TransactionStatusConfirmed)

	agg := NewAggregator(txRepo, catRepo)

	t.Run("sums confirmed transactions by category", func(t *testing.T) {
		totals, err := agg.Aggregate(ctx, business.ID, business.Type, periodStart, periodEnd, nil)
		require.NoError(t, err)
		require.True(t, totals.Income["se_turnover"].Equal(decimal.NewFromInt(4400)))
		require.True(t, totals.Expenses["se_admin"].Equal(decimal.NewFromInt(120)),
			"expense totals are positive regardless of the feed's sign")
	})

	t.Run("excluded transactions are dropped", func(t *testing.T) {
		totals, err := agg.Aggregate(ctx, business.ID, business.Type, periodStart, periodEnd,
			[]int64{excludable.ID})
		require.NoError(t, err)
		require.True(t, totals.Income["se_turnover"].Equal(decimal.NewFromInt(4000)))
	})
}
