package filing

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gitlab.com/taxquarter/backend/internal/models"
)

func TestSubmissionRoute(t *testing.T) {
	tests := []struct {
		name       string
		bt         models.BusinessType
		cumulative bool
		wantMethod string
		wantPath   string
	}{
		{
			name:       "self-employment cumulative",
			bt:         models.BusinessTypeSelfEmployment,
			cumulative: true,
			wantMethod: http.MethodPut,
			wantPath:   "/individuals/business/self-employment/AB123456C/XBIS1/cumulative-period-summaries/2025-26",
		},
		{
			name:       "self-employment period",
			bt:         models.BusinessTypeSelfEmployment,
			cumulative: false,
			wantMethod: http.MethodPost,
			wantPath:   "/individuals/business/self-employment/AB123456C/XBIS1/period-summaries",
		},
		{
			name:       "uk property cumulative",
			bt:         models.BusinessTypeUKProperty,
			cumulative: true,
			wantMethod: http.MethodPut,
			wantPath:   "/individuals/business/property/uk/AB123456C/XBIS1/cumulative-period-summaries/2025-26",
		},
		{
			name:       "foreign property period",
			bt:         models.BusinessTypeForeignProperty,
			cumulative: false,
			wantMethod: http.MethodPost,
			wantPath:   "/individuals/business/property/foreign/AB123456C/XBIS1/period-summaries",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			method, path := submissionRoute(tc.bt, "AB123456C", "XBIS1", "2025-26", tc.cumulative)
			require.Equal(t, tc.wantMethod, method)
			require.Equal(t, tc.wantPath, path)
		})
	}
}

func TestBuildBodyUsesObligationDates(t *testing.T) {
	w := testWizard(t, models.BusinessTypeSelfEmployment)
	require.NoError(t, w.SetSelfEmploymentFigures(
		SelfEmploymentIncome{Turnover: amt(decimal.NewFromInt(10000))},
		SelfEmploymentExpenses{AdminCosts: amt(decimal.NewFromInt(300))},
	))

	svc := &Service{}
	income, expenses := capturedFigures(w)

	t.Run("cumulative shape", func(t *testing.T) {
		payload, err := json.Marshal(svc.buildBody(w, income, expenses, true))
		require.NoError(t, err)
		require.JSONEq(t, `{
			"periodDates": {"periodStartDate": "2025-04-06", "periodEndDate": "2025-07-05"},
			"periodIncome": {"turnover": 10000.00},
			"periodExpenses": {"adminCosts": 300.00}
		}`, string(payload))
	})

	t.Run("period shape", func(t *testing.T) {
		payload, err := json.Marshal(svc.buildBody(w, income, expenses, false))
		require.NoError(t, err)
		require.JSONEq(t, `{
			"periodStartDate": "2025-04-06",
			"periodEndDate": "2025-07-05",
			"periodIncome": {"turnover": 10000.00},
			"periodExpenses": {"adminCosts": 300.00}
		}`, string(payload))
	})
}

func capturedFigures(w *Wizard) (income, expenses any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.figuresLocked()
}

func TestBuildBodyConcurrentWithFigureUpdates(t *testing.T) {
	w := testWizard(t, models.BusinessTypeSelfEmployment)
	require.NoError(t, w.SetSelfEmploymentFigures(
		SelfEmploymentIncome{Turnover: amt(decimal.NewFromInt(10000))},
		SelfEmploymentExpenses{},
	))

	income, expenses := capturedFigures(w)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			_ = w.SetSelfEmploymentFigures(
				SelfEmploymentIncome{Turnover: amt(decimal.NewFromInt(int64(i)))},
				SelfEmploymentExpenses{},
			)
		}
	}()

	svc := &Service{}
	for i := 0; i < 500; i++ {
		payload, err := json.Marshal(svc.buildBody(w, income, expenses, true))
		require.NoError(t, err)
		require.Contains(t, string(payload), `"turnover":10000`,
			"figures captured at submit time must win over later edits")
	}
	<-done
}

func TestReferenceFromResponse(t *testing.T) {
	require.Equal(t, "25A1-ref", referenceFromResponse(json.RawMessage(`{"periodId":"25A1-ref"}`)))
	require.Equal(t, "sub-9", referenceFromResponse(json.RawMessage(`{"submissionId":"sub-9"}`)))
	require.Equal(t, "p1", referenceFromResponse(json.RawMessage(`{"periodId":"p1","submissionId":"s1"}`)))
	require.Empty(t, referenceFromResponse(nil))
	require.Empty(t, referenceFromResponse(json.RawMessage(`{}`)))
	require.Empty(t, referenceFromResponse(json.RawMessage(`not json`)))
}
