package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gitlab.com/taxquarter/backend/internal/database"
	"gitlab.com/taxquarter/backend/internal/models"
)

// SubmissionRepository persists the audit trail of accepted submissions.
type SubmissionRepository struct {
	db database.PGXDB
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(db database.PGXDB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create records an accepted submission. Assigns the record ID when unset.
func (r *SubmissionRepository) Create(ctx context.Context, rec *models.SubmissionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO submissions (id, user_id, business_id, period_key, tax_year, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING submitted_at
	`, rec.ID, rec.UserID, rec.BusinessID, rec.PeriodKey, rec.TaxYear, rec.Reference).Scan(&rec.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to create submission record: %w", err)
	}
	return nil
}

// ExistsForPeriod reports whether a submission was already accepted for the
// (business, period key) pair. Drives the duplicate-submit warning.
func (r *SubmissionRepository) ExistsForPeriod(ctx context.Context, businessID, periodKey string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM submissions WHERE business_id = $1 AND period_key = $2
		)
	`, businessID, periodKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check submission existence: %w", err)
	}
	return exists, nil
}

// GetByBusiness retrieves submission history for a business, newest first.
func (r *SubmissionRepository) GetByBusiness(ctx context.Context, businessID string) ([]models.SubmissionRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, business_id, period_key, tax_year, reference, submitted_at
		FROM submissions WHERE business_id = $1
		ORDER BY submitted_at DESC
	`, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var records []models.SubmissionRecord
	for rows.Next() {
		var rec models.SubmissionRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.BusinessID, &rec.PeriodKey,
			&rec.TaxYear, &rec.Reference, &rec.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return records, nil
}
