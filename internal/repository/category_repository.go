package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/taxquarter/backend/internal/database"
	"gitlab.com/taxquarter/backend/internal/models"
)

// ErrCategoryNotFound is returned when a category code does not exist.
var ErrCategoryNotFound = errors.New("category not found")

// CategoryRepository handles category database operations.
type CategoryRepository struct {
	db database.PGXDB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db database.PGXDB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetByCode retrieves a single category.
func (r *CategoryRepository) GetByCode(ctx context.Context, code string) (*models.Category, error) {
	var cat models.Category
	err := r.db.QueryRow(ctx, `
		SELECT code, name, kind, business_type, box, created_at
		FROM categories WHERE code = $1
	`, code).Scan(&cat.Code, &cat.Name, &cat.Kind, &cat.BusinessType, &cat.Box, &cat.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &cat, nil
}

// GetByBusinessType retrieves all categories for one business type, keyed by
// code. This is the lookup the aggregation step joins transactions against.
func (r *CategoryRepository) GetByBusinessType(ctx context.Context, bt models.BusinessType) (map[string]models.Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT code, name, kind, business_type, box, created_at
		FROM categories WHERE business_type = $1
	`, bt)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make(map[string]models.Category)
	for rows.Next() {
		var cat models.Category
		if err := rows.Scan(&cat.Code, &cat.Name, &cat.Kind, &cat.BusinessType, &cat.Box, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories[cat.Code] = cat
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}
