package filing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"gitlab.com/taxquarter/backend/internal/hmrc"
	"gitlab.com/taxquarter/backend/internal/logger"
	"gitlab.com/taxquarter/backend/internal/models"
	"gitlab.com/taxquarter/backend/internal/repository"
	"gitlab.com/taxquarter/backend/internal/tax"
	"gitlab.com/taxquarter/backend/internal/telemetry"
)

// Service orchestrates filing sessions: it aggregates totals into wizard
// state, builds the submission body, and drives the authority call.
type Service struct {
	client  *hmrc.Client
	agg     *Aggregator
	catRepo *repository.CategoryRepository
	subRepo *repository.SubmissionRepository
}

// NewService creates a filing Service.
func NewService(
	client *hmrc.Client,
	agg *Aggregator,
	catRepo *repository.CategoryRepository,
	subRepo *repository.SubmissionRepository,
) *Service {
	return &Service{client: client, agg: agg, catRepo: catRepo, subRepo: subRepo}
}

// SessionOptions configures a new filing session.
type SessionOptions struct {
	ExcludedTransactionIDs  []int64
	UseConsolidatedExpenses bool
}

// StartSession aggregates the obligation period's confirmed transactions and
// opens a wizard at the income review step, prefilled with the totals.
func (s *Service) StartSession(
	ctx context.Context,
	userID, nino, taxYear string,
	business models.Business,
	ob models.Obligation,
	opts SessionOptions,
) (*Wizard, error) {
	if !business.Type.Valid() {
		return nil, fmt.Errorf("unsupported business type %q", business.Type)
	}
	if _, err := hmrc.ParseTaxYear(taxYear); err != nil {
		return nil, err
	}

	totals, err := s.agg.Aggregate(ctx, business.ID, business.Type, ob.PeriodStart, ob.PeriodEnd, opts.ExcludedTransactionIDs)
	if err != nil {
		return nil, err
	}
	cats, err := s.catRepo.GetByBusinessType(ctx, business.Type)
	if err != nil {
		return nil, err
	}

	w := NewWizard(userID, nino, taxYear, business, ob)
	w.excludedTransactionIDs = opts.ExcludedTransactionIDs
	w.useConsolidatedExpenses = opts.UseConsolidatedExpenses

	switch business.Type {
	case models.BusinessTypeSelfEmployment:
		income := SelfEmploymentIncomeFromTotals(totals, cats)
		expenses := SelfEmploymentExpensesFromTotals(totals, cats)
		if opts.UseConsolidatedExpenses {
			expenses.Consolidate()
		}
		w.seIncome = &income
		w.seExpenses = &expenses
	default:
		income := PropertyIncomeFromTotals(totals, cats)
		expenses := PropertyExpensesFromTotals(totals, cats)
		if opts.UseConsolidatedExpenses {
			expenses.Consolidate()
		}
		w.propIncome = &income
		w.propExpenses = &expenses
	}

	logger.Log.Info().
		Str("user_hash", logger.HashUserID(userID)).
		Str("business_id", business.ID).
		Str("tax_year", taxYear).
		Str("period_key", ob.PeriodKey).
		Msg("Filing session started")

	return w, nil
}

// Submit performs the final authority call for a session sitting at the
// confirm step. On failure the wizard stays at confirm-submit with
// isSubmitting cleared so the user may retry; nothing retries automatically.
// A period that was already accepted in an earlier session is refused unless
// allowResubmit is set, which the caller passes only after warning the user.
func (s *Service) Submit(ctx context.Context, w *Wizard, facts hmrc.ClientFacts, allowResubmit bool) (*SubmissionResult, error) {
	w.mu.Lock()
	if w.step != StepConfirmSubmit {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: submit is only available from %s", ErrInvalidTransition, StepConfirmSubmit)
	}
	if w.isSubmitting {
		w.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	if w.result != nil {
		w.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	w.isSubmitting = true
	// Capture the figures under the guard lock: a figure update racing the
	// submit call must not change a payload already in flight.
	income, expenses := w.figuresLocked()
	w.mu.Unlock()

	result, err := s.submit(ctx, w, facts, income, expenses, allowResubmit)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.isSubmitting = false
	if err != nil {
		// Remain in confirm-submit; the caller surfaces the error and may retry.
		return nil, err
	}
	w.result = result
	w.step = StepSubmissionSuccess
	return result, nil
}

func (s *Service) submit(
	ctx context.Context,
	w *Wizard,
	facts hmrc.ClientFacts,
	income, expenses any,
	allowResubmit bool,
) (*SubmissionResult, error) {
	exists, err := s.subRepo.ExistsForPeriod(ctx, w.business.ID, w.obligation.PeriodKey)
	if err != nil {
		return nil, err
	}
	if exists && !allowResubmit {
		return nil, fmt.Errorf("%w: period %s for business %s", ErrAlreadySubmitted, w.obligation.PeriodKey, w.business.ID)
	}

	cumulative, err := hmrc.UsesCumulativeFormat(w.taxYear)
	if err != nil {
		return nil, err
	}

	method, path := submissionRoute(w.business.Type, w.nino, w.business.ID, w.taxYear, cumulative)
	body := s.buildBody(w, income, expenses, cumulative)

	payload, err := s.client.Do(ctx, w.userID, facts, method, path, body)
	if err != nil {
		return nil, err
	}

	reference := referenceFromResponse(payload)
	if reference == "" {
		reference = w.obligation.PeriodKey
	}

	rec := &models.SubmissionRecord{
		UserID:     w.userID,
		BusinessID: w.business.ID,
		PeriodKey:  w.obligation.PeriodKey,
		TaxYear:    w.taxYear,
		Reference:  reference,
	}
	if err := s.subRepo.Create(ctx, rec); err != nil {
		// The authority accepted the submission; losing the audit row must
		// not roll the user back into a resubmission.
		logger.Log.Error().
			Err(err).
			Str("business_id", w.business.ID).
			Str("period_key", w.obligation.PeriodKey).
			Msg("Failed to record accepted submission")
	}

	telemetry.CountSubmission(ctx, string(w.business.Type), cumulative)
	logger.Log.Info().
		Str("user_hash", logger.HashUserID(w.userID)).
		Str("business_id", w.business.ID).
		Str("reference", reference).
		Bool("cumulative", cumulative).
		Msg("Submission accepted")

	return &SubmissionResult{Reference: reference, SubmittedAt: rec.SubmittedAt}, nil
}

// buildBody assembles the wire payload from figures the caller captured under
// the wizard lock. Period bounds always come from the obligation, and only
// populated fields are serialized.
func (s *Service) buildBody(w *Wizard, income, expenses any, cumulative bool) any {
	start := w.obligation.PeriodStart.Format("2006-01-02")
	end := w.obligation.PeriodEnd.Format("2006-01-02")

	if cumulative {
		return cumulativeBody{
			PeriodDates:    PeriodDates{PeriodStartDate: start, PeriodEndDate: end},
			PeriodIncome:   income,
			PeriodExpenses: expenses,
		}
	}
	return periodBody{
		PeriodStartDate: start,
		PeriodEndDate:   end,
		PeriodIncome:    income,
		PeriodExpenses:  expenses,
	}
}

// submissionRoute picks the endpoint and verb: PUT for cumulative
// replace-semantics, POST for period create-semantics.
func submissionRoute(bt models.BusinessType, nino, businessID, taxYear string, cumulative bool) (method, path string) {
	var prefix string
	switch bt {
	case models.BusinessTypeSelfEmployment:
		prefix = "/individuals/business/self-employment/" + nino + "/" + businessID
	case models.BusinessTypeUKProperty:
		prefix = "/individuals/business/property/uk/" + nino + "/" + businessID
	case models.BusinessTypeForeignProperty:
		prefix = "/individuals/business/property/foreign/" + nino + "/" + businessID
	}

	if cumulative {
		return http.MethodPut, prefix + "/cumulative-period-summaries/" + taxYear
	}
	return http.MethodPost, prefix + "/period-summaries"
}

type submissionResponse struct {
	PeriodID     string `json:"periodId"`
	SubmissionID string `json:"submissionId"`
}

func referenceFromResponse(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var resp submissionResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return ""
	}
	if resp.PeriodID != "" {
		return resp.PeriodID
	}
	return resp.SubmissionID
}

// Estimate aggregates a full tax year of confirmed transactions and computes
// the estimated liability. Property businesses additionally get the
// residential finance-cost credit applied to income tax.
func (s *Service) Estimate(ctx context.Context, business models.Business, taxYear string) (tax.Computation, error) {
	from, to, err := hmrc.TaxYearBounds(taxYear)
	if err != nil {
		return tax.Computation{}, err
	}
	rates, err := tax.RatesFor(taxYear)
	if err != nil {
		return tax.Computation{}, err
	}

	totals, err := s.agg.Aggregate(ctx, business.ID, business.Type, from, to, nil)
	if err != nil {
		return tax.Computation{}, err
	}

	// Residential finance costs are relieved as a credit, not an expense.
	financeCosts := decimal.Zero
	expenses := totals.TotalExpenses()
	if business.Type != models.BusinessTypeSelfEmployment {
		cats, err := s.catRepo.GetByBusinessType(ctx, business.Type)
		if err != nil {
			return tax.Computation{}, err
		}
		for code, total := range totals.Expenses {
			if cat, ok := cats[code]; ok && cat.Box == "residentialFinancialCost" {
				financeCosts = financeCosts.Add(total)
			}
		}
		expenses = expenses.Sub(financeCosts)
	}

	comp := tax.Compute(totals.TotalIncome(), expenses, rates)
	if financeCosts.IsPositive() {
		comp.IncomeTax = tax.ApplyFinanceCostRelief(comp.IncomeTax, financeCosts, rates)
		comp.TotalTaxDue = comp.IncomeTax.Add(comp.Class2NI).Add(comp.Class4NI)
		if comp.TaxableProfit.IsPositive() {
			comp.EffectiveRate = comp.TotalTaxDue.Div(comp.TaxableProfit).
				Mul(decimal.NewFromInt(100)).Round(2)
		}
	}
	return comp, nil
}
