package repository

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/taxquarter/backend/internal/database"
	"gitlab.com/taxquarter/backend/internal/models"
)

// TransactionRepository reads the host application's bank transaction rows.
// The filing core consumes transactions read-only apart from review-status
// changes driven by the host UI.
type TransactionRepository struct {
	db database.PGXDB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db database.PGXDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create adds a transaction. Exercised by the host importer and by tests.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.Status == "" {
		tx.Status = models.TransactionStatusPending
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO transactions (user_id, business_id, date, amount, description, category_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, tx.UserID, tx.BusinessID, tx.Date, tx.Amount, tx.Description, tx.CategoryCode, tx.Status,
	).Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// UpdateStatus moves a transaction through review (pending/confirmed/excluded).
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE transactions SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d not found", id)
	}
	return nil
}

// ConfirmedForPeriod retrieves confirmed, categorised transactions for a
// business within a date range. Both bounds are inclusive.
func (r *TransactionRepository) ConfirmedForPeriod(
	ctx context.Context,
	businessID string,
	from, to time.Time,
) ([]models.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, business_id, date, amount, description, category_code, status, created_at, updated_at
		FROM transactions
		WHERE business_id = $1 AND status = 'confirmed' AND date >= $2 AND date <= $3
		ORDER BY date, id
	`, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.BusinessID, &tx.Date, &tx.Amount,
			&tx.Description, &tx.CategoryCode, &tx.Status, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// PeriodCounts holds review-state counts for one filing period. Display
// status is always derived from these live counts, never persisted.
type PeriodCounts struct {
	Pending   int
	Confirmed int
}

// CountsForPeriod counts pending and confirmed transactions for a business
// within a date range.
func (r *TransactionRepository) CountsForPeriod(
	ctx context.Context,
	businessID string,
	from, to time.Time,
) (PeriodCounts, error) {
	var counts PeriodCounts
	err := r.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'confirmed')
		FROM transactions
		WHERE business_id = $1 AND date >= $2 AND date <= $3
	`, businessID, from, to).Scan(&counts.Pending, &counts.Confirmed)
	if err != nil {
		return PeriodCounts{}, fmt.Errorf("failed to count transactions: %w", err)
	}
	return counts, nil
}
