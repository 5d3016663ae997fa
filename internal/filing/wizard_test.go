package filing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/taxquarter/backend/internal/models"
)

func testWizard(t *testing.T, businessType models.BusinessType) *Wizard {
	t.Helper()
	business := models.Business{ID: "XBIS12345678901", UserID: "user-1", Type: businessType}
	ob := models.Obligation{
		PeriodKey:   "25A1",
		BusinessID:  business.ID,
		PeriodStart: time.Date(2025, time.April, 6, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2025, time.August, 7, 0, 0, 0, 0, time.UTC),
		Status:      models.ObligationOpen,
	}
	return NewWizard("user-1", "AB123456C", "2025-26", business, ob)
}

func TestWizardStepSequence(t *testing.T) {
	w := testWizard(t, models.BusinessTypeSelfEmployment)
	require.Equal(t, StepIncomeReview, w.Step())

	require.NoError(t, w.Next())
	require.Equal(t, StepExpenseReview, w.Step())
	require.NoError(t, w.Next())
	require.Equal(t, StepSummary, w.Step())
	require.NoError(t, w.Next())
	require.Equal(t, StepConfirmSubmit, w.Step())

	// The terminal step is only reachable through a successful submission.
	err := w.Next()
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, StepConfirmSubmit, w.Step())
}

func TestWizardBack(t *testing.T) {
	w := testWizard(t, models.BusinessTypeSelfEmployment)

	err := w.Back()
	require.ErrorIs(t, err, ErrInvalidTransition, "back is disabled on the first step")

	require.NoError(t, w.Next())
	require.NoError(t, w.Back())
	require.Equal(t, StepIncomeReview, w.Step())
}

func TestWizardBackDisabledAfterSuccess(t *testing.T) {
	w := testWizard(t, models.BusinessTypeSelfEmployment)
	w.step = StepSubmissionSuccess

	require.ErrorIs(t, w.Back(), ErrInvalidTransition)
	require.ErrorIs(t, w.Next(), ErrInvalidTransition)
	require.Equal(t, StepSubmissionSuccess, w.Step())
}

func TestWizardEdit(t *testing.T) {
	w := testWizard(t, models.BusinessTypeSelfEmployment)

	err := w.Edit(StepIncomeReview)
	require.ErrorIs(t, err, ErrInvalidTransition, "edit is only available from the summary")

	require.NoError(t, w.Next())
	require.NoError(t, w.Next())
	require.Equal(t, StepSummary, w.Step())

	require.ErrorIs(t, w.Edit(StepConfirmSubmit), ErrInvalidTransition)

	require.NoError(t, w.Edit(StepExpenseReview))
	require.Equal(t, StepExpenseReview, w.Step())
}

func TestWizardEditPreservesOtherStepData(t *testing.T) {
	w := testWizard(t, models.BusinessTypeSelfEmployment)
	require.NoError(t, w.SetSelfEmploymentFigures(
		SelfEmploymentIncome{Turnover: amt(decimal.NewFromInt(9000))},
		SelfEmploymentExpenses{AdminCosts: amt(decimal.NewFromInt(250))},
	))

	require.NoError(t, w.Next())
	require.NoError(t, w.Next())
	require.NoError(t, w.Edit(StepIncomeReview))

	income, expenses := w.SelfEmploymentFigures()
	require.NoError(t, w.SetSelfEmploymentFigures(
		SelfEmploymentIncome{Turnover: amt(decimal.NewFromInt(9500))},
		expenses,
	))

	income, expenses = w.SelfEmploymentFigures()
	require.True(t, income.Turnover.Equal(decimal.NewFromInt(9500)))
	require.True(t, expenses.AdminCosts.Equal(decimal.NewFromInt(250)),
		"editing income must not touch expense figures")
}

func TestWizardRejectsWrongBusinessTypeFigures(t *testing.T) {
	w := testWizard(t, models.BusinessTypeUKProperty)

	err := w.SetSelfEmploymentFigures(SelfEmploymentIncome{}, SelfEmploymentExpenses{})
	require.Error(t, err)

	require.NoError(t, w.SetPropertyFigures(
		PropertyIncome{PeriodAmount: amt(decimal.NewFromInt(1200))},
		PropertyExpenses{},
	))
}

func TestWizardWarnsOnZeroIncome(t *testing.T) {
	w := testWizard(t, models.BusinessTypeSelfEmployment)
	require.NoError(t, w.SetSelfEmploymentFigures(SelfEmploymentIncome{}, SelfEmploymentExpenses{}))
	require.Len(t, w.Warnings(), 1)

	require.NoError(t, w.SetSelfEmploymentFigures(
		SelfEmploymentIncome{Turnover: amt(decimal.NewFromInt(100))},
		SelfEmploymentExpenses{},
	))
	require.Empty(t, w.Warnings())
}

func TestWizardSnapshot(t *testing.T) {
	w := testWizard(t, models.BusinessTypeSelfEmployment)
	require.NoError(t, w.SetSelfEmploymentFigures(
		SelfEmploymentIncome{Turnover: amt(decimal.NewFromInt(9000))},
		SelfEmploymentExpenses{},
	))

	snap := w.Snapshot()
	require.Equal(t, w.ID(), snap.ID)
	require.Equal(t, StepIncomeReview, snap.Step)
	require.Equal(t, "25A1", snap.PeriodKey)
	require.Equal(t, models.BusinessTypeSelfEmployment, snap.BusinessType)
	require.NotNil(t, snap.SEIncome)
	require.Nil(t, snap.PropIncome)
	require.Nil(t, snap.Result)
	require.False(t, snap.IsSubmitting)
}
