// Package api exposes the filing backend over HTTP: the HMRC connect flow,
// obligation listings, tax estimates, and the filing session endpoints that
// drive the submission wizard.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/taxquarter/backend/internal/config"
	"gitlab.com/taxquarter/backend/internal/filing"
	"gitlab.com/taxquarter/backend/internal/hmrc"
	"gitlab.com/taxquarter/backend/internal/logger"
	"gitlab.com/taxquarter/backend/internal/repository"
)

// Server wires the HTTP surface over the domain services.
type Server struct {
	cfg       *config.Config
	oauth     *hmrc.OAuthClient
	tokenRepo *repository.TokenRecordRepository
	bizRepo   *repository.BusinessRepository
	resolver  *hmrc.ObligationResolver
	filing    *filing.Service

	sessions *sessionStore
	states   *stateStore
	httpSrv  *http.Server
}

// NewServer creates the API server.
func NewServer(
	cfg *config.Config,
	oauth *hmrc.OAuthClient,
	tokenRepo *repository.TokenRecordRepository,
	bizRepo *repository.BusinessRepository,
	resolver *hmrc.ObligationResolver,
	filingSvc *filing.Service,
) *Server {
	return &Server{
		cfg:       cfg,
		oauth:     oauth,
		tokenRepo: tokenRepo,
		bizRepo:   bizRepo,
		resolver:  resolver,
		filing:    filingSvc,
		sessions:  newSessionStore(),
		states:    newStateStore(),
	}
}

// Handler builds the full route table. Every /api route requires the
// authenticated user header; /healthz does not.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.Handle("GET /api/hmrc/connect", s.authenticated(s.handleConnect))
	mux.Handle("GET /api/hmrc/callback", s.authenticated(s.handleCallback))
	mux.Handle("DELETE /api/hmrc/connection", s.authenticated(s.handleDisconnect))

	mux.Handle("GET /api/businesses", s.authenticated(s.handleListBusinesses))
	mux.Handle("POST /api/businesses", s.authenticated(s.handleCreateBusiness))
	mux.Handle("GET /api/businesses/{id}/obligations", s.authenticated(s.handleObligations))
	mux.Handle("GET /api/businesses/{id}/estimate", s.authenticated(s.handleEstimate))

	mux.Handle("POST /api/filing/sessions", s.authenticated(s.handleStartSession))
	mux.Handle("GET /api/filing/sessions/{id}", s.authenticated(s.handleGetSession))
	mux.Handle("DELETE /api/filing/sessions/{id}", s.authenticated(s.handleDeleteSession))
	mux.Handle("POST /api/filing/sessions/{id}/next", s.authenticated(s.handleNext))
	mux.Handle("POST /api/filing/sessions/{id}/back", s.authenticated(s.handleBack))
	mux.Handle("POST /api/filing/sessions/{id}/edit", s.authenticated(s.handleEdit))
	mux.Handle("PUT /api/filing/sessions/{id}/figures", s.authenticated(s.handleSetFigures))
	mux.Handle("POST /api/filing/sessions/{id}/submit", s.authenticated(s.handleSubmit))

	return otelhttp.NewHandler(s.requestLogger(mux), "api")
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("addr", s.cfg.ListenAddr).Msg("HTTP server listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type userKey struct{}

// authenticated resolves the user identity forwarded by the authenticating
// front proxy. The backend never sees credentials; a missing header means the
// proxy is misconfigured or the request bypassed it.
func (s *Server) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing user identity")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func userFrom(r *http.Request) string {
	userID, _ := r.Context().Value(userKey{}).(string)
	return userID
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
