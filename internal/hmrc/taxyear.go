package hmrc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cumulativeFromYear is the first tax year whose quarterly updates use the
// cumulative (year-to-date) submission format. Earlier years submit
// incremental per-period summaries.
const cumulativeFromYear = 2025

// ParseTaxYear validates a UK tax year string such as "2024-25" and returns
// its start year.
func ParseTaxYear(taxYear string) (int, error) {
	parts := strings.Split(taxYear, "-")
	if len(parts) != 2 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid tax year %q, want YYYY-YY", taxYear)
	}
	for _, r := range parts[0] + parts[1] {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid tax year %q, want YYYY-YY", taxYear)
		}
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid tax year %q: %w", taxYear, err)
	}
	end, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid tax year %q: %w", taxYear, err)
	}
	if (start+1)%100 != end {
		return 0, fmt.Errorf("invalid tax year %q: end year must follow start year", taxYear)
	}
	return start, nil
}

// UsesCumulativeFormat reports whether quarterly updates for the tax year
// replace prior submissions with year-to-date totals. Derived from the tax
// year alone so the wizard can pick the request shape and HTTP verb without
// a network call.
func UsesCumulativeFormat(taxYear string) (bool, error) {
	start, err := ParseTaxYear(taxYear)
	if err != nil {
		return false, err
	}
	return start >= cumulativeFromYear, nil
}

// TaxYearBounds returns the inclusive 6 April to 5 April bounds of a tax
// year, used to scope transaction aggregation and obligation queries.
func TaxYearBounds(taxYear string) (from, to time.Time, err error) {
	start, err := ParseTaxYear(taxYear)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from = time.Date(start, time.April, 6, 0, 0, 0, 0, time.UTC)
	to = time.Date(start+1, time.April, 5, 0, 0, 0, 0, time.UTC)
	return from, to, nil
}

// FormatTaxYear returns the tax year string containing the given date.
func FormatTaxYear(date time.Time) string {
	start := date.Year()
	boundary := time.Date(start, time.April, 6, 0, 0, 0, 0, time.UTC)
	if date.Before(boundary) {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}
