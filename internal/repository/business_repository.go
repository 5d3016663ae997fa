package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/taxquarter/backend/internal/database"
	"gitlab.com/taxquarter/backend/internal/models"
)

// ErrBusinessNotFound is returned when a business ID does not exist.
var ErrBusinessNotFound = errors.New("business not found")

// BusinessRepository handles business database operations.
type BusinessRepository struct {
	db database.PGXDB
}

// NewBusinessRepository creates a new BusinessRepository.
func NewBusinessRepository(db database.PGXDB) *BusinessRepository {
	return &BusinessRepository{db: db}
}

// Create adds a new business.
func (r *BusinessRepository) Create(ctx context.Context, b *models.Business) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO businesses (id, user_id, type, name, trading_start_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, b.ID, b.UserID, b.Type, b.Name, b.TradingStartDate).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create business: %w", err)
	}
	return nil
}

// GetByID retrieves a business by ID.
func (r *BusinessRepository) GetByID(ctx context.Context, id string) (*models.Business, error) {
	var b models.Business
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, type, name, trading_start_date, created_at, updated_at
		FROM businesses WHERE id = $1
	`, id).Scan(&b.ID, &b.UserID, &b.Type, &b.Name, &b.TradingStartDate, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	return &b, nil
}

// GetByUserID retrieves all businesses registered by a user.
func (r *BusinessRepository) GetByUserID(ctx context.Context, userID string) ([]models.Business, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, name, trading_start_date, created_at, updated_at
		FROM businesses WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query businesses: %w", err)
	}
	defer rows.Close()

	var businesses []models.Business
	for rows.Next() {
		var b models.Business
		if err := rows.Scan(&b.ID, &b.UserID, &b.Type, &b.Name, &b.TradingStartDate, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan business: %w", err)
		}
		businesses = append(businesses, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate businesses: %w", err)
	}
	return businesses, nil
}
