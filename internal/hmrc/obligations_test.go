package hmrc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gitlab.com/taxquarter/backend/internal/models"
	"gitlab.com/taxquarter/backend/internal/repository"
)

func TestDeriveDisplayStatus(t *testing.T) {
	periodStart := time.Date(2025, time.April, 6, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC)
	dueDate := time.Date(2025, time.August, 7, 0, 0, 0, 0, time.UTC)

	ob := func(status models.ObligationStatus) models.Obligation {
		return models.Obligation{
			PeriodKey:   "25A1",
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			DueDate:     dueDate,
			Status:      status,
		}
	}

	tests := []struct {
		name   string
		ob     models.Obligation
		now    time.Time
		counts repository.PeriodCounts
		want   models.DisplayStatus
	}{
		{
			name: "open and past due is overdue",
			ob:   ob(models.ObligationOpen),
			now:  dueDate.Add(24 * time.Hour),
			want: models.DisplayOverdue,
		},
		{
			name: "overdue wins over pending transactions",
			ob:   ob(models.ObligationOpen),
			now:  dueDate.Add(24 * time.Hour),
			counts: repository.PeriodCounts{
				Pending:   3,
				Confirmed: 5,
			},
			want: models.DisplayOverdue,
		},
		{
			name: "fulfilled and past due is not overdue",
			ob:   ob(models.ObligationFulfilled),
			now:  dueDate.Add(24 * time.Hour),
			counts: repository.PeriodCounts{
				Confirmed: 5,
			},
			want: models.DisplayReady,
		},
		{
			name: "before the period starts is upcoming",
			ob:   ob(models.ObligationOpen),
			now:  periodStart.Add(-24 * time.Hour),
			want: models.DisplayUpcoming,
		},
		{
			name: "pending transactions mean in progress",
			ob:   ob(models.ObligationOpen),
			now:  periodEnd,
			counts: repository.PeriodCounts{
				Pending:   1,
				Confirmed: 9,
			},
			want: models.DisplayInProgress,
		},
		{
			name: "all confirmed means ready",
			ob:   ob(models.ObligationOpen),
			now:  periodEnd,
			counts: repository.PeriodCounts{
				Confirmed: 9,
			},
			want: models.DisplayReady,
		},
		{
			name: "no transactions inside the period is upcoming",
			ob:   ob(models.ObligationOpen),
			now:  periodEnd,
			want: models.DisplayUpcoming,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveDisplayStatus(tc.ob, tc.now, tc.counts))
		})
	}
}

func TestDeriveDisplayStatusRetroactive(t *testing.T) {
	// Unconfirming a transaction flips the quarter straight back to
	// in-progress with no intermediate state to sync.
	ob := models.Obligation{
		PeriodStart: time.Date(2025, time.April, 6, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2025, time.August, 7, 0, 0, 0, 0, time.UTC),
		Status:      models.ObligationOpen,
	}
	now := ob.PeriodEnd

	before := DeriveDisplayStatus(ob, now, repository.PeriodCounts{Confirmed: 4})
	require.Equal(t, models.DisplayReady, before)

	after := DeriveDisplayStatus(ob, now, repository.PeriodCounts{Pending: 1, Confirmed: 3})
	require.Equal(t, models.DisplayInProgress, after)
}
