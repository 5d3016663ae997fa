package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gitlab.com/taxquarter/backend/internal/filing"
	"gitlab.com/taxquarter/backend/internal/hmrc"
	"gitlab.com/taxquarter/backend/internal/logger"
	"gitlab.com/taxquarter/backend/internal/models"
	"gitlab.com/taxquarter/backend/internal/repository"
	"gitlab.com/taxquarter/backend/internal/tax"
)

// hmrcScopes is the OAuth scope set required for the quarterly update APIs.
const hmrcScopes = "read:self-assessment write:self-assessment"

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to encode response")
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// respondError maps domain errors onto HTTP statuses. Authority errors keep
// their upstream status and code so the UI can show HMRC's own message.
func respondError(w http.ResponseWriter, err error) {
	var authErr *hmrc.AuthorityError
	switch {
	case errors.Is(err, hmrc.ErrNotConnected):
		writeError(w, http.StatusUnauthorized, "NOT_CONNECTED", "HMRC account is not connected")
	case errors.Is(err, hmrc.ErrConnectionExpired):
		writeError(w, http.StatusUnauthorized, "CONNECTION_EXPIRED", "HMRC connection expired, please reconnect")
	case errors.As(err, &authErr):
		writeError(w, authErr.Status, authErr.Code, authErr.Message)
	case errors.Is(err, repository.ErrBusinessNotFound):
		writeError(w, http.StatusNotFound, "BUSINESS_NOT_FOUND", "business not found")
	case errors.Is(err, filing.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, filing.ErrAlreadySubmitted):
		writeError(w, http.StatusConflict, "ALREADY_SUBMITTED", err.Error())
	case errors.Is(err, filing.ErrSubmissionInProgress):
		writeError(w, http.StatusConflict, "SUBMISSION_IN_PROGRESS", "a submission is already in progress")
	default:
		logger.Log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	state := s.states.issue(userID)
	writeJSON(w, http.StatusOK, map[string]string{
		"url": s.oauth.AuthorizeURL(hmrcScopes, state),
	})
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "INVALID_CALLBACK", "code and state are required")
		return
	}

	stateUser, ok := s.states.redeem(state)
	if !ok || stateUser != userID {
		writeError(w, http.StatusBadRequest, "INVALID_STATE", "unknown or expired state")
		return
	}

	tokens, err := s.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		respondError(w, err)
		return
	}

	rec := &models.TokenRecord{
		UserID:       userID,
		Provider:     models.ProviderHMRC,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		ExpiresAt:    tokens.ExpiresAt(time.Now()),
		Scope:        tokens.Scope,
	}
	if err := s.tokenRepo.Upsert(r.Context(), rec); err != nil {
		respondError(w, err)
		return
	}

	logger.Log.Info().
		Str("user_hash", logger.HashUserID(userID)).
		Msg("HMRC account connected")
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	if err := s.tokenRepo.Delete(r.Context(), userID, models.ProviderHMRC); err != nil {
		respondError(w, err)
		return
	}
	logger.Log.Info().
		Str("user_hash", logger.HashUserID(userID)).
		Msg("HMRC account disconnected")
	w.WriteHeader(http.StatusNoContent)
}

type businessResponse struct {
	ID               string              `json:"id"`
	Type             models.BusinessType `json:"type"`
	Name             string              `json:"name"`
	TradingStartDate *string             `json:"tradingStartDate,omitempty"`
}

func toBusinessResponse(b models.Business) businessResponse {
	resp := businessResponse{ID: b.ID, Type: b.Type, Name: b.Name}
	if b.TradingStartDate != nil {
		formatted := b.TradingStartDate.Format("2006-01-02")
		resp.TradingStartDate = &formatted
	}
	return resp
}

func (s *Server) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	businesses, err := s.bizRepo.GetByUserID(r.Context(), userFrom(r))
	if err != nil {
		respondError(w, err)
		return
	}
	resp := make([]businessResponse, 0, len(businesses))
	for _, b := range businesses {
		resp = append(resp, toBusinessResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createBusinessRequest struct {
	ID               string              `json:"id"`
	Type             models.BusinessType `json:"type"`
	Name             string              `json:"name"`
	TradingStartDate string              `json:"tradingStartDate"`
}

func (s *Server) handleCreateBusiness(w http.ResponseWriter, r *http.Request) {
	var req createBusinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if req.ID == "" || !req.Type.Valid() {
		writeError(w, http.StatusBadRequest, "INVALID_BUSINESS", "id and a valid type are required")
		return
	}

	b := models.Business{
		ID:     req.ID,
		UserID: userFrom(r),
		Type:   req.Type,
		Name:   req.Name,
	}
	if req.TradingStartDate != "" {
		started, err := time.Parse("2006-01-02", req.TradingStartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BUSINESS", "tradingStartDate must be YYYY-MM-DD")
			return
		}
		b.TradingStartDate = &started
	}

	if err := s.bizRepo.Create(r.Context(), &b); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBusinessResponse(b))
}

// ownedBusiness loads the business and enforces ownership; a foreign business
// is indistinguishable from a missing one.
func (s *Server) ownedBusiness(r *http.Request) (*models.Business, error) {
	b, err := s.bizRepo.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if b.UserID != userFrom(r) {
		return nil, repository.ErrBusinessNotFound
	}
	return b, nil
}

type obligationResponse struct {
	PeriodKey     string                  `json:"periodKey"`
	PeriodStart   string                  `json:"periodStart"`
	PeriodEnd     string                  `json:"periodEnd"`
	DueDate       string                  `json:"dueDate"`
	Status        models.ObligationStatus `json:"status"`
	ReceivedDate  *string                 `json:"receivedDate,omitempty"`
	DisplayStatus models.DisplayStatus    `json:"displayStatus"`
}

func (s *Server) handleObligations(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)
	business, err := s.ownedBusiness(r)
	if err != nil {
		respondError(w, err)
		return
	}

	nino := r.URL.Query().Get("nino")
	if nino == "" {
		writeError(w, http.StatusBadRequest, "MISSING_NINO", "nino query parameter is required")
		return
	}

	filter := hmrc.ObligationFilter{
		Status: models.ObligationStatus(r.URL.Query().Get("status")),
	}
	if taxYear := r.URL.Query().Get("taxYear"); taxYear != "" {
		if filter.From, filter.To, err = hmrc.TaxYearBounds(taxYear); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_TAX_YEAR", err.Error())
			return
		}
	}
	if from := r.URL.Query().Get("from"); from != "" {
		if filter.From, err = time.Parse("2006-01-02", from); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATE", "from must be YYYY-MM-DD")
			return
		}
	}
	if to := r.URL.Query().Get("to"); to != "" {
		if filter.To, err = time.Parse("2006-01-02", to); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_DATE", "to must be YYYY-MM-DD")
			return
		}
	}

	obligations, err := s.resolver.ListObligations(r.Context(), userID, nino, factsFromRequest(r), filter)
	if err != nil {
		respondError(w, err)
		return
	}

	now := time.Now()
	resp := make([]obligationResponse, 0, len(obligations))
	for _, ob := range obligations {
		if ob.BusinessID != business.ID {
			continue
		}
		display, err := s.resolver.StatusForObligation(r.Context(), ob, business.ID, now)
		if err != nil {
			respondError(w, err)
			return
		}
		item := obligationResponse{
			PeriodKey:     ob.PeriodKey,
			PeriodStart:   ob.PeriodStart.Format("2006-01-02"),
			PeriodEnd:     ob.PeriodEnd.Format("2006-01-02"),
			DueDate:       ob.DueDate.Format("2006-01-02"),
			Status:        ob.Status,
			DisplayStatus: display,
		}
		if ob.ReceivedDate != nil {
			received := ob.ReceivedDate.Format("2006-01-02")
			item.ReceivedDate = &received
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

type estimateResponse struct {
	TaxYear              string `json:"taxYear"`
	TaxableProfit        string `json:"taxableProfit"`
	PersonalAllowance    string `json:"personalAllowance"`
	IncomeTax            string `json:"incomeTax"`
	Class2NI             string `json:"class2NI"`
	Class4NI             string `json:"class4NI"`
	TotalTaxDue          string `json:"totalTaxDue"`
	EffectiveRatePercent string `json:"effectiveRatePercent"`
}

func toEstimateResponse(taxYear string, comp tax.Computation) estimateResponse {
	return estimateResponse{
		TaxYear:              taxYear,
		TaxableProfit:        comp.TaxableProfit.StringFixed(2),
		PersonalAllowance:    comp.PersonalAllowance.StringFixed(2),
		IncomeTax:            comp.IncomeTax.StringFixed(2),
		Class2NI:             comp.Class2NI.StringFixed(2),
		Class4NI:             comp.Class4NI.StringFixed(2),
		TotalTaxDue:          comp.TotalTaxDue.StringFixed(2),
		EffectiveRatePercent: comp.EffectiveRate.StringFixed(2),
	}
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	business, err := s.ownedBusiness(r)
	if err != nil {
		respondError(w, err)
		return
	}
	taxYear := r.URL.Query().Get("taxYear")
	if _, err := hmrc.ParseTaxYear(taxYear); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TAX_YEAR", err.Error())
		return
	}

	comp, err := s.filing.Estimate(r.Context(), *business, taxYear)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEstimateResponse(taxYear, comp))
}

type startSessionRequest struct {
	BusinessID              string  `json:"businessId"`
	NINO                    string  `json:"nino"`
	TaxYear                 string  `json:"taxYear"`
	PeriodKey               string  `json:"periodKey"`
	ExcludedTransactionIDs  []int64 `json:"excludedTransactionIds"`
	UseConsolidatedExpenses bool    `json:"useConsolidatedExpenses"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if req.BusinessID == "" || req.NINO == "" || req.PeriodKey == "" {
		writeError(w, http.StatusBadRequest, "MISSING_FIELDS", "businessId, nino and periodKey are required")
		return
	}
	if _, err := hmrc.ParseTaxYear(req.TaxYear); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TAX_YEAR", err.Error())
		return
	}

	business, err := s.bizRepo.GetByID(r.Context(), req.BusinessID)
	if err != nil {
		respondError(w, err)
		return
	}
	if business.UserID != userID {
		respondError(w, repository.ErrBusinessNotFound)
		return
	}

	from, to, err := hmrc.TaxYearBounds(req.TaxYear)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TAX_YEAR", err.Error())
		return
	}
	obligations, err := s.resolver.ListObligations(r.Context(), userID, req.NINO, factsFromRequest(r),
		hmrc.ObligationFilter{From: from, To: to})
	if err != nil {
		respondError(w, err)
		return
	}

	var obligation *models.Obligation
	for i, ob := range obligations {
		if ob.BusinessID == business.ID && ob.PeriodKey == req.PeriodKey {
			obligation = &obligations[i]
			break
		}
	}
	if obligation == nil {
		writeError(w, http.StatusNotFound, "OBLIGATION_NOT_FOUND",
			fmt.Sprintf("no obligation with period key %s for this business", req.PeriodKey))
		return
	}

	wizard, err := s.filing.StartSession(r.Context(), userID, req.NINO, req.TaxYear, *business, *obligation,
		filing.SessionOptions{
			ExcludedTransactionIDs:  req.ExcludedTransactionIDs,
			UseConsolidatedExpenses: req.UseConsolidatedExpenses,
		})
	if err != nil {
		respondError(w, err)
		return
	}

	s.sessions.put(wizard)
	writeJSON(w, http.StatusCreated, wizard.Snapshot())
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*filing.Wizard, bool) {
	wizard, ok := s.sessions.get(r.PathValue("id"), userFrom(r))
	if !ok {
		writeError(w, http.StatusNotFound, "SESSION_NOT_FOUND", "filing session not found")
		return nil, false
	}
	return wizard, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	wizard, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wizard.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.delete(r.PathValue("id"), userFrom(r))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	wizard, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := wizard.Next(); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wizard.Snapshot())
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	wizard, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := wizard.Back(); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wizard.Snapshot())
}

type editRequest struct {
	Step filing.Step `json:"step"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	wizard, ok := s.session(w, r)
	if !ok {
		return
	}
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if err := wizard.Edit(req.Step); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wizard.Snapshot())
}

type figuresRequest struct {
	SEIncome     *filing.SelfEmploymentIncome   `json:"selfEmploymentIncome"`
	SEExpenses   *filing.SelfEmploymentExpenses `json:"selfEmploymentExpenses"`
	PropIncome   *filing.PropertyIncome         `json:"propertyIncome"`
	PropExpenses *filing.PropertyExpenses       `json:"propertyExpenses"`
}

func (s *Server) handleSetFigures(w http.ResponseWriter, r *http.Request) {
	wizard, ok := s.session(w, r)
	if !ok {
		return
	}
	var req figuresRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	var err error
	switch {
	case req.SEIncome != nil && req.SEExpenses != nil:
		err = wizard.SetSelfEmploymentFigures(*req.SEIncome, *req.SEExpenses)
	case req.PropIncome != nil && req.PropExpenses != nil:
		err = wizard.SetPropertyFigures(*req.PropIncome, *req.PropExpenses)
	default:
		writeError(w, http.StatusBadRequest, "INVALID_FIGURES",
			"provide a matching income and expenses pair for the business type")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FIGURES", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, wizard.Snapshot())
}

type submitRequest struct {
	AllowResubmit bool `json:"allowResubmit"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	wizard, ok := s.session(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
			return
		}
	}

	result, err := s.filing.Submit(r.Context(), wizard, factsFromRequest(r), req.AllowResubmit)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// factsFromRequest assembles the fraud-prevention facts from the X-Client-*
// headers the frontend forwards, plus what the connection itself reveals.
// Every fact is optional; the header generator supplies defaults.
func factsFromRequest(r *http.Request) hmrc.ClientFacts {
	facts := hmrc.ClientFacts{
		DeviceID:   r.Header.Get("X-Client-Device-ID"),
		UserAgent:  r.Header.Get("User-Agent"),
		Timezone:   r.Header.Get("X-Client-Timezone"),
		DoNotTrack: r.Header.Get("X-Client-Do-Not-Track") == "true",
	}

	facts.ScreenWidth = headerInt(r, "X-Client-Screen-Width")
	facts.ScreenHeight = headerInt(r, "X-Client-Screen-Height")
	facts.ScreenColourDepth = headerInt(r, "X-Client-Screen-Colour-Depth")
	facts.WindowWidth = headerInt(r, "X-Client-Window-Width")
	facts.WindowHeight = headerInt(r, "X-Client-Window-Height")

	if plugins := r.Header.Get("X-Client-Browser-Plugins"); plugins != "" {
		facts.BrowserPlugins = strings.Split(plugins, ",")
	}
	if ips := r.Header.Get("X-Client-Local-IPs"); ips != "" {
		facts.LocalIPs = strings.Split(ips, ",")
	}

	// The front proxy forwards the original client address; fall back to the
	// direct peer.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		facts.PublicIP = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if host, port, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		facts.PublicIP = host
		facts.PublicPort = port
	}

	return facts
}

func headerInt(r *http.Request, name string) int {
	if v := r.Header.Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
