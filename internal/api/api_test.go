package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/taxquarter/backend/internal/filing"
	"gitlab.com/taxquarter/backend/internal/hmrc"
	"gitlab.com/taxquarter/backend/internal/models"
)

func testSessionWizard(t *testing.T, userID string) *filing.Wizard {
	t.Helper()
	business := models.Business{ID: "XBIS12345678901", UserID: userID, Type: models.BusinessTypeSelfEmployment}
	ob := models.Obligation{
		PeriodKey:   "25A1",
		BusinessID:  business.ID,
		PeriodStart: time.Date(2025, time.April, 6, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2025, time.August, 7, 0, 0, 0, 0, time.UTC),
		Status:      models.ObligationOpen,
	}
	return filing.NewWizard(userID, "AB123456C", "2025-26", business, ob)
}

func TestSessionStoreOwnership(t *testing.T) {
	store := newSessionStore()
	w := testSessionWizard(t, "user-1")
	store.put(w)

	got, ok := store.get(w.ID(), "user-1")
	require.True(t, ok)
	require.Equal(t, w.ID(), got.ID())

	_, ok = store.get(w.ID(), "user-2")
	require.False(t, ok, "another user's session must look missing")

	_, ok = store.get("nope", "user-1")
	require.False(t, ok)
}

func TestSessionStoreExpiry(t *testing.T) {
	store := newSessionStore()
	now := time.Now()
	store.nowFunc = func() time.Time { return now }

	w := testSessionWizard(t, "user-1")
	store.put(w)

	now = now.Add(sessionTTL + time.Minute)
	_, ok := store.get(w.ID(), "user-1")
	require.False(t, ok, "expired sessions are gone")
}

func TestSessionStoreDelete(t *testing.T) {
	store := newSessionStore()
	w := testSessionWizard(t, "user-1")
	store.put(w)

	// A foreign user cannot delete the session.
	store.delete(w.ID(), "user-2")
	_, ok := store.get(w.ID(), "user-1")
	require.True(t, ok)

	store.delete(w.ID(), "user-1")
	_, ok = store.get(w.ID(), "user-1")
	require.False(t, ok)
}

func TestStateStoreSingleUse(t *testing.T) {
	store := newStateStore()
	state := store.issue("user-1")
	require.NotEmpty(t, state)

	userID, ok := store.redeem(state)
	require.True(t, ok)
	require.Equal(t, "user-1", userID)

	_, ok = store.redeem(state)
	require.False(t, ok, "state values are single-use")

	_, ok = store.redeem("unknown")
	require.False(t, ok)
}

func TestStateStoreExpiry(t *testing.T) {
	store := newStateStore()
	now := time.Now()
	store.nowFunc = func() time.Time { return now }

	state := store.issue("user-1")
	now = now.Add(stateTTL + time.Minute)

	_, ok := store.redeem(state)
	require.False(t, ok)
}

func TestAuthenticatedMiddleware(t *testing.T) {
	s := &Server{}
	handler := s.authenticated(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "user-1", userFrom(r))
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing identity is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/businesses", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("identity header is propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/businesses", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestFactsFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/businesses", nil)
	req.RemoteAddr = "192.0.2.10:54321"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("X-Client-Device-ID", "dev-1")
	req.Header.Set("X-Client-Timezone", "UTC+01:00")
	req.Header.Set("X-Client-Screen-Width", "2560")
	req.Header.Set("X-Client-Screen-Height", "1440")
	req.Header.Set("X-Client-Do-Not-Track", "true")
	req.Header.Set("X-Client-Local-IPs", "10.0.0.2,10.0.0.3")

	facts := factsFromRequest(req)
	require.Equal(t, "dev-1", facts.DeviceID)
	require.Equal(t, "UTC+01:00", facts.Timezone)
	require.Equal(t, 2560, facts.ScreenWidth)
	require.Equal(t, 1440, facts.ScreenHeight)
	require.True(t, facts.DoNotTrack)
	require.Equal(t, []string{"10.0.0.2", "10.0.0.3"}, facts.LocalIPs)
	require.Equal(t, "192.0.2.10", facts.PublicIP)
	require.Equal(t, "54321", facts.PublicPort)
}

func TestFactsFromRequestForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/businesses", nil)
	req.RemoteAddr = "10.1.1.1:80"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.1.1")

	facts := factsFromRequest(req)
	require.Equal(t, "203.0.113.9", facts.PublicIP)
	require.Empty(t, facts.PublicPort, "the original client port is unknown behind a proxy")
}

func TestRespondErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not connected", hmrc.ErrNotConnected, http.StatusUnauthorized},
		{"connection expired", hmrc.ErrConnectionExpired, http.StatusUnauthorized},
		{"authority error keeps upstream status", &hmrc.AuthorityError{Status: 403, Code: "X", Message: "m"}, http.StatusForbidden},
		{"invalid transition", filing.ErrInvalidTransition, http.StatusConflict},
		{"already submitted", filing.ErrAlreadySubmitted, http.StatusConflict},
		{"submission in progress", filing.ErrSubmissionInProgress, http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondError(rec, tc.err)
			require.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestHealthz(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
