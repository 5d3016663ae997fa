package hmrc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gitlab.com/taxquarter/backend/internal/logger"
	"gitlab.com/taxquarter/backend/internal/models"
	"gitlab.com/taxquarter/backend/internal/repository"
	"gitlab.com/taxquarter/backend/internal/telemetry"
)

// refreshLeeway is how close to expiry a token may get before we refresh it
// ahead of use. Refresh-ahead avoids mid-request failures during long
// submission flows; we never wait for a 401.
const refreshLeeway = 5 * time.Minute

// TokenStore persists token records. Satisfied by
// repository.TokenRecordRepository; narrowed here so tests can inject fakes.
type TokenStore interface {
	Get(ctx context.Context, userID, provider string) (*models.TokenRecord, error)
	Upsert(ctx context.Context, rec *models.TokenRecord) error
}

// TokenRefresher exchanges a refresh token for a new pair. Satisfied by
// OAuthClient.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenResponse, error)
}

type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// TokenSource guarantees callers a non-expired access token, refreshing
// transparently when the stored one is near expiry. Refreshes for the same
// user are serialized through an in-flight map so near-simultaneous callers
// share one token-endpoint call instead of racing each other.
type TokenSource struct {
	store   TokenStore
	oauth   TokenRefresher
	nowFunc func() time.Time

	mu       sync.Mutex
	inFlight map[string]*refreshCall
}

// NewTokenSource creates a TokenSource over the given store and refresher.
func NewTokenSource(store TokenStore, oauth TokenRefresher) *TokenSource {
	return &TokenSource{
		store:    store,
		oauth:    oauth,
		nowFunc:  time.Now,
		inFlight: make(map[string]*refreshCall),
	}
}

// AccessToken returns a valid access token for the user. Fails with
// ErrNotConnected when no record exists and ErrConnectionExpired when the
// refresh attempt fails; neither is retried here.
func (ts *TokenSource) AccessToken(ctx context.Context, userID string) (string, error) {
	rec, err := ts.store.Get(ctx, userID, models.ProviderHMRC)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return "", ErrNotConnected
		}
		return "", fmt.Errorf("failed to load token record: %w", err)
	}

	if rec.ExpiresAt.Sub(ts.nowFunc()) >= refreshLeeway {
		return rec.AccessToken, nil
	}

	ts.mu.Lock()
	if call, waiting := ts.inFlight[userID]; waiting {
		ts.mu.Unlock()
		return waitForRefresh(ctx, call)
	}
	call := &refreshCall{done: make(chan struct{})}
	ts.inFlight[userID] = call
	ts.mu.Unlock()

	// Detach the refresh from any single caller's deadline so one
	// short-lived caller cannot fail every concurrent waiter.
	go ts.refreshAndBroadcast(context.WithoutCancel(ctx), userID, rec, call)
	return waitForRefresh(ctx, call)
}

func (ts *TokenSource) refreshAndBroadcast(ctx context.Context, userID string, rec *models.TokenRecord, call *refreshCall) {
	token, err := ts.refresh(ctx, rec)

	ts.mu.Lock()
	call.token = token
	call.err = err
	delete(ts.inFlight, userID)
	close(call.done)
	ts.mu.Unlock()
}

func (ts *TokenSource) refresh(ctx context.Context, rec *models.TokenRecord) (string, error) {
	resp, err := ts.oauth.Refresh(ctx, rec.RefreshToken)
	telemetry.CountTokenRefresh(ctx, err == nil)
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Str("user_hash", logger.HashUserID(rec.UserID)).
			Msg("Token refresh failed, reconnection required")
		return "", fmt.Errorf("%w: %w", ErrConnectionExpired, err)
	}

	rec.AccessToken = resp.AccessToken
	// The authority may not issue a new refresh token; keep the old one then.
	if resp.RefreshToken != "" {
		rec.RefreshToken = resp.RefreshToken
	}
	if resp.TokenType != "" {
		rec.TokenType = resp.TokenType
	}
	if resp.Scope != "" {
		rec.Scope = resp.Scope
	}
	rec.ExpiresAt = resp.ExpiresAt(ts.nowFunc())

	if err := ts.store.Upsert(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	logger.Log.Debug().
		Str("user_hash", logger.HashUserID(rec.UserID)).
		Time("expires_at", rec.ExpiresAt).
		Msg("Access token refreshed")

	return rec.AccessToken, nil
}

func waitForRefresh(ctx context.Context, call *refreshCall) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-call.done:
		return call.token, call.err
	}
}
