package hmrc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"gitlab.com/taxquarter/backend/internal/logger"
	"gitlab.com/taxquarter/backend/internal/models"
	"gitlab.com/taxquarter/backend/internal/repository"
)

// ObligationFilter narrows an obligations query. Zero-value fields are
// omitted from the request.
type ObligationFilter struct {
	From   time.Time
	To     time.Time
	Status models.ObligationStatus
}

// ObligationResolver lists filing obligations and derives their display
// status from live transaction counts.
type ObligationResolver struct {
	client *Client
	txRepo *repository.TransactionRepository
}

// NewObligationResolver creates a resolver over the API client.
func NewObligationResolver(client *Client, txRepo *repository.TransactionRepository) *ObligationResolver {
	return &ObligationResolver{client: client, txRepo: txRepo}
}

type obligationsResponse struct {
	Obligations []struct {
		Identification struct {
			IncomeSourceType string `json:"incomeSourceType"`
			ReferenceNumber  string `json:"referenceNumber"`
		} `json:"identification"`
		ObligationDetails []struct {
			Status                            string `json:"status"`
			InboundCorrespondenceFromDate     string `json:"inboundCorrespondenceFromDate"`
			InboundCorrespondenceToDate       string `json:"inboundCorrespondenceToDate"`
			InboundCorrespondenceDueDate      string `json:"inboundCorrespondenceDueDate"`
			InboundCorrespondenceDateReceived string `json:"inboundCorrespondenceDateReceived"`
			PeriodKey                         string `json:"periodKey"`
		} `json:"obligationDetails"`
	} `json:"obligations"`
}

// incomeSourceTypes maps the API's income source types onto business types.
var incomeSourceTypes = map[string]models.BusinessType{
	"self-employment":  models.BusinessTypeSelfEmployment,
	"uk-property":      models.BusinessTypeUKProperty,
	"foreign-property": models.BusinessTypeForeignProperty,
}

const dateLayout = "2006-01-02"

// ListObligations fetches the user's filing obligations from the authority.
// Obligations are read-only; only an accepted submission changes their
// status, and that happens authority-side.
func (r *ObligationResolver) ListObligations(
	ctx context.Context,
	userID, nino string,
	facts ClientFacts,
	filter ObligationFilter,
) ([]models.Obligation, error) {
	q := url.Values{}
	if !filter.From.IsZero() {
		q.Set("fromDate", filter.From.Format(dateLayout))
	}
	if !filter.To.IsZero() {
		q.Set("toDate", filter.To.Format(dateLayout))
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}

	path := "/obligations/details/" + url.PathEscape(nino) + "/income-and-expenditure"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	logger.Log.Debug().
		Str("user_hash", logger.HashUserID(userID)).
		Str("nino", logger.RedactNINO(nino)).
		Msg("Listing obligations")

	payload, err := r.client.Get(ctx, userID, facts, path)
	if err != nil {
		return nil, err
	}

	var resp obligationsResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode obligations response: %w", err)
	}

	var obligations []models.Obligation
	for _, source := range resp.Obligations {
		businessType, ok := incomeSourceTypes[source.Identification.IncomeSourceType]
		if !ok {
			continue
		}
		for _, detail := range source.ObligationDetails {
			ob := models.Obligation{
				PeriodKey:    detail.PeriodKey,
				BusinessID:   source.Identification.ReferenceNumber,
				BusinessType: businessType,
				Status:       models.ObligationStatus(detail.Status),
			}
			if ob.PeriodStart, err = time.Parse(dateLayout, detail.InboundCorrespondenceFromDate); err != nil {
				return nil, fmt.Errorf("failed to parse obligation start date: %w", err)
			}
			if ob.PeriodEnd, err = time.Parse(dateLayout, detail.InboundCorrespondenceToDate); err != nil {
				return nil, fmt.Errorf("failed to parse obligation end date: %w", err)
			}
			if ob.DueDate, err = time.Parse(dateLayout, detail.InboundCorrespondenceDueDate); err != nil {
				return nil, fmt.Errorf("failed to parse obligation due date: %w", err)
			}
			if detail.InboundCorrespondenceDateReceived != "" {
				received, err := time.Parse(dateLayout, detail.InboundCorrespondenceDateReceived)
				if err != nil {
					return nil, fmt.Errorf("failed to parse obligation received date: %w", err)
				}
				ob.ReceivedDate = &received
			}
			obligations = append(obligations, ob)
		}
	}
	return obligations, nil
}

// StatusForObligation derives the display status for an obligation from live
// transaction counts within its period.
func (r *ObligationResolver) StatusForObligation(
	ctx context.Context,
	ob models.Obligation,
	businessID string,
	now time.Time,
) (models.DisplayStatus, error) {
	counts, err := r.txRepo.CountsForPeriod(ctx, businessID, ob.PeriodStart, ob.PeriodEnd)
	if err != nil {
		return "", err
	}
	return DeriveDisplayStatus(ob, now, counts), nil
}

// DeriveDisplayStatus is the pure derivation of the UI-facing quarter state.
// Never persisted: a transaction's review state retroactively changes quarter
// readiness without any sync step.
func DeriveDisplayStatus(ob models.Obligation, now time.Time, counts repository.PeriodCounts) models.DisplayStatus {
	if ob.Status == models.ObligationOpen && now.After(ob.DueDate) {
		return models.DisplayOverdue
	}
	if now.Before(ob.PeriodStart) {
		return models.DisplayUpcoming
	}
	if counts.Pending > 0 {
		return models.DisplayInProgress
	}
	if counts.Confirmed > 0 {
		return models.DisplayReady
	}
	return models.DisplayUpcoming
}
