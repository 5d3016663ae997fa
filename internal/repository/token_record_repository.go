// Package repository contains the PostgreSQL data access layer.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"gitlab.com/taxquarter/backend/internal/database"
	"gitlab.com/taxquarter/backend/internal/models"
)

// ErrTokenNotFound is returned when no token record exists for a user.
var ErrTokenNotFound = errors.New("token record not found")

// TokenRecordRepository handles OAuth token persistence.
type TokenRecordRepository struct {
	db database.PGXDB
}

// NewTokenRecordRepository creates a new TokenRecordRepository.
func NewTokenRecordRepository(db database.PGXDB) *TokenRecordRepository {
	return &TokenRecordRepository{db: db}
}

// Upsert writes a token record, overwriting any existing row for the same
// (user, provider). Used both on OAuth callback and on every refresh.
func (r *TokenRecordRepository) Upsert(ctx context.Context, rec *models.TokenRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO token_records (user_id, provider, access_token, refresh_token, token_type, expires_at, scope, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			updated_at = NOW()
	`, rec.UserID, rec.Provider, rec.AccessToken, rec.RefreshToken, rec.TokenType, rec.ExpiresAt, rec.Scope)
	if err != nil {
		return fmt.Errorf("failed to upsert token record: %w", err)
	}
	return nil
}

// Get retrieves the token record for a user and provider.
func (r *TokenRecordRepository) Get(ctx context.Context, userID, provider string) (*models.TokenRecord, error) {
	var rec models.TokenRecord
	err := r.db.QueryRow(ctx, `
		SELECT user_id, provider, access_token, refresh_token, token_type, expires_at, scope, created_at, updated_at
		FROM token_records WHERE user_id = $1 AND provider = $2
	`, userID, provider).Scan(
		&rec.UserID, &rec.Provider, &rec.AccessToken, &rec.RefreshToken,
		&rec.TokenType, &rec.ExpiresAt, &rec.Scope, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token record: %w", err)
	}
	return &rec, nil
}

// Delete removes the token record on explicit disconnect.
func (r *TokenRecordRepository) Delete(ctx context.Context, userID, provider string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM token_records WHERE user_id = $1 AND provider = $2
	`, userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete token record: %w", err)
	}
	return nil
}
