package filing

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/taxquarter/backend/internal/models"
)

// Step is one position in the filing wizard's fixed sequence.
type Step string

// The per-business-type step sequences are structurally identical; only the
// income/expense shapes differ.
const (
	StepIncomeReview      Step = "income-review"
	StepExpenseReview     Step = "expense-review"
	StepSummary           Step = "summary"
	StepConfirmSubmit     Step = "confirm-submit"
	StepSubmissionSuccess Step = "submission-success"
)

var stepSequence = []Step{
	StepIncomeReview,
	StepExpenseReview,
	StepSummary,
	StepConfirmSubmit,
	StepSubmissionSuccess,
}

// Wizard state machine errors.
var (
	ErrInvalidTransition    = errors.New("invalid wizard transition")
	ErrAlreadySubmitted     = errors.New("period already submitted")
	ErrSubmissionInProgress = errors.New("submission already in progress")
)

// SubmissionResult is the authority-issued reference captured on success.
type SubmissionResult struct {
	Reference   string    `json:"reference"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Wizard holds one filing session's state. It lives only for the duration of
// the session and is never shared across users; closing the wizard simply
// discards it, which is safe any time before the final submit call resolves.
type Wizard struct {
	mu sync.Mutex

	id         string
	userID     string
	nino       string
	business   models.Business
	taxYear    string
	obligation models.Obligation

	step Step

	// Exactly one income/expense pair is populated, keyed by business type.
	seIncome     *SelfEmploymentIncome
	seExpenses   *SelfEmploymentExpenses
	propIncome   *PropertyIncome
	propExpenses *PropertyExpenses

	excludedTransactionIDs  []int64
	useConsolidatedExpenses bool

	isSubmitting bool
	result       *SubmissionResult
}

// NewWizard opens a session at the income review step. Callers normally go
// through Service.StartSession, which also prefills the figures.
func NewWizard(userID, nino, taxYear string, business models.Business, ob models.Obligation) *Wizard {
	return &Wizard{
		id:         uuid.NewString(),
		userID:     userID,
		nino:       nino,
		business:   business,
		taxYear:    taxYear,
		obligation: ob,
		step:       StepIncomeReview,
	}
}

// ID returns the session identifier.
func (w *Wizard) ID() string { return w.id }

// UserID returns the owning user.
func (w *Wizard) UserID() string { return w.userID }

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Result returns the submission result, or nil before success.
func (w *Wizard) Result() *SubmissionResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Next advances one step forward. The terminal confirm step only advances
// through Submit, never through Next.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.step {
	case StepIncomeReview, StepExpenseReview, StepSummary:
		w.step = stepAfter(w.step)
		return nil
	default:
		return fmt.Errorf("%w: cannot advance from %s", ErrInvalidTransition, w.step)
	}
}

// Back steps one step backward. Disabled on the first step and, permanently,
// once the terminal success step is reached.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.step {
	case StepExpenseReview, StepSummary, StepConfirmSubmit:
		w.step = stepBefore(w.step)
		return nil
	default:
		return fmt.Errorf("%w: cannot go back from %s", ErrInvalidTransition, w.step)
	}
}

// Edit jumps from the summary directly to one of the review steps without
// touching the other step's accumulated data.
func (w *Wizard) Edit(target Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepSummary {
		return fmt.Errorf("%w: edit is only available from %s", ErrInvalidTransition, StepSummary)
	}
	if target != StepIncomeReview && target != StepExpenseReview {
		return fmt.Errorf("%w: cannot edit step %s", ErrInvalidTransition, target)
	}
	w.step = target
	return nil
}

func stepAfter(s Step) Step {
	for i, step := range stepSequence[:len(stepSequence)-1] {
		if step == s {
			return stepSequence[i+1]
		}
	}
	return s
}

func stepBefore(s Step) Step {
	for i, step := range stepSequence[1:] {
		if step == s {
			return stepSequence[i]
		}
	}
	return s
}

// SetSelfEmploymentFigures replaces the editable sole-trade figures.
func (w *Wizard) SetSelfEmploymentFigures(income SelfEmploymentIncome, expenses SelfEmploymentExpenses) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.business.Type != models.BusinessTypeSelfEmployment {
		return fmt.Errorf("wizard is for %s, not self-employment", w.business.Type)
	}
	w.seIncome = &income
	w.seExpenses = &expenses
	return nil
}

// SetPropertyFigures replaces the editable property figures.
func (w *Wizard) SetPropertyFigures(income PropertyIncome, expenses PropertyExpenses) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.business.Type == models.BusinessTypeSelfEmployment {
		return fmt.Errorf("wizard is for self-employment, not property")
	}
	w.propIncome = &income
	w.propExpenses = &expenses
	return nil
}

// figuresLocked returns the populated income/expense pair for the business
// type. Callers must hold w.mu; the setters replace these pointers, so a
// submission captures them under the same lock as its step guard.
func (w *Wizard) figuresLocked() (income, expenses any) {
	if w.business.Type == models.BusinessTypeSelfEmployment {
		return w.seIncome, w.seExpenses
	}
	return w.propIncome, w.propExpenses
}

// SelfEmploymentFigures returns the current sole-trade figures.
func (w *Wizard) SelfEmploymentFigures() (SelfEmploymentIncome, SelfEmploymentExpenses) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var income SelfEmploymentIncome
	var expenses SelfEmploymentExpenses
	if w.seIncome != nil {
		income = *w.seIncome
	}
	if w.seExpenses != nil {
		expenses = *w.seExpenses
	}
	return income, expenses
}

// PropertyFigures returns the current property figures.
func (w *Wizard) PropertyFigures() (PropertyIncome, PropertyExpenses) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var income PropertyIncome
	var expenses PropertyExpenses
	if w.propIncome != nil {
		income = *w.propIncome
	}
	if w.propExpenses != nil {
		expenses = *w.propExpenses
	}
	return income, expenses
}

// Warnings reports non-blocking validation findings. Zero income across an
// entire period can be legitimate, so it warns instead of refusing.
func (w *Wizard) Warnings() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var warnings []string
	var incomeTotal = func() bool {
		switch {
		case w.seIncome != nil:
			return w.seIncome.Total().IsZero()
		case w.propIncome != nil:
			return w.propIncome.Total().IsZero()
		}
		return true
	}
	if incomeTotal() {
		warnings = append(warnings, "No income recorded for this period. You can still submit if that is correct.")
	}
	return warnings
}

// Snapshot is a lock-consistent copy of the session for API serialization.
type Snapshot struct {
	ID           string                  `json:"id"`
	Step         Step                    `json:"step"`
	BusinessID   string                  `json:"businessId"`
	BusinessType models.BusinessType     `json:"businessType"`
	TaxYear      string                  `json:"taxYear"`
	PeriodKey    string                  `json:"periodKey"`
	PeriodStart  time.Time               `json:"periodStart"`
	PeriodEnd    time.Time               `json:"periodEnd"`
	SEIncome     *SelfEmploymentIncome   `json:"selfEmploymentIncome,omitempty"`
	SEExpenses   *SelfEmploymentExpenses `json:"selfEmploymentExpenses,omitempty"`
	PropIncome   *PropertyIncome         `json:"propertyIncome,omitempty"`
	PropExpenses *PropertyExpenses       `json:"propertyExpenses,omitempty"`
	Warnings     []string                `json:"warnings,omitempty"`
	IsSubmitting bool                    `json:"isSubmitting"`
	Result       *SubmissionResult       `json:"result,omitempty"`
}

// Snapshot returns the current session state.
func (w *Wizard) Snapshot() Snapshot {
	warnings := w.Warnings()

	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		ID:           w.id,
		Step:         w.step,
		BusinessID:   w.business.ID,
		BusinessType: w.business.Type,
		TaxYear:      w.taxYear,
		PeriodKey:    w.obligation.PeriodKey,
		PeriodStart:  w.obligation.PeriodStart,
		PeriodEnd:    w.obligation.PeriodEnd,
		SEIncome:     w.seIncome,
		SEExpenses:   w.seExpenses,
		PropIncome:   w.propIncome,
		PropExpenses: w.propExpenses,
		Warnings:     warnings,
		IsSubmitting: w.isSubmitting,
		Result:       w.result,
	}
}
