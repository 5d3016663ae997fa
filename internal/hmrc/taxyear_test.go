package hmrc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTaxYear(t *testing.T) {
	t.Run("valid years", func(t *testing.T) {
		for taxYear, want := range map[string]int{
			"2023-24": 2023,
			"2024-25": 2024,
			"2025-26": 2025,
			"2099-00": 2099,
		} {
			start, err := ParseTaxYear(taxYear)
			require.NoError(t, err, taxYear)
			require.Equal(t, want, start)
		}
	})

	t.Run("invalid years", func(t *testing.T) {
		for _, taxYear := range []string{
			"",
			"2024",
			"2024-2025",
			"2024-26", // end year does not follow start
			"24-25",
			"abcd-ef",
			"2024/25",
		} {
			_, err := ParseTaxYear(taxYear)
			require.Error(t, err, taxYear)
		}
	})
}

func TestUsesCumulativeFormat(t *testing.T) {
	for taxYear, want := range map[string]bool{
		"2023-24": false,
		"2024-25": false,
		"2025-26": true,
		"2026-27": true,
	} {
		got, err := UsesCumulativeFormat(taxYear)
		require.NoError(t, err, taxYear)
		require.Equal(t, want, got, taxYear)
	}

	_, err := UsesCumulativeFormat("not-a-year")
	require.Error(t, err)
}

func TestTaxYearBounds(t *testing.T) {
	from, to, err := TaxYearBounds("2024-25")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.April, 6, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, time.Date(2025, time.April, 5, 0, 0, 0, 0, time.UTC), to)
}

func TestFormatTaxYear(t *testing.T) {
	for _, tc := range []struct {
		date time.Time
		want string
	}{
		{time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC), "2023-24"},
		{time.Date(2024, time.April, 6, 0, 0, 0, 0, time.UTC), "2024-25"},
		{time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), "2024-25"},
		{time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC), "2025-26"},
	} {
		require.Equal(t, tc.want, FormatTaxYear(tc.date), tc.date)
	}
}

func TestFormatTaxYearRoundTrips(t *testing.T) {
	// Every formatted tax year must parse back to the same start year.
	for year := 2020; year <= 2030; year++ {
		date := time.Date(year, time.June, 1, 0, 0, 0, 0, time.UTC)
		start, err := ParseTaxYear(FormatTaxYear(date))
		require.NoError(t, err)
		require.Equal(t, year, start)
	}
}

func FuzzParseTaxYear(f *testing.F) {
	f.Add("2024-25")
	f.Add("2025-26")
	f.Add("")
	f.Add("9999-00")
	f.Add("2024-2025")

	f.Fuzz(func(t *testing.T, taxYear string) {
		start, err := ParseTaxYear(taxYear)
		if err != nil || start < 1000 {
			return
		}
		// A valid four-digit parse must reformat to the identical string.
		if got := FormatTaxYear(time.Date(start, time.June, 1, 0, 0, 0, 0, time.UTC)); got != taxYear {
			t.Errorf("round trip mismatch: %q parsed to %d, reformatted as %q", taxYear, start, got)
		}
	})
}
