package utils

import (
	"time"

	"github.com/shopspring/decimal"
)

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// AddMonths moves t forward by n calendar months, keeping t's day of month and
// clamping to the last day when the target month is shorter (Jan 31 + 1 = Feb 28).
func AddMonths(t time.Time, n int) time.Time {
	return MonthlyDueDate(t, t.Day(), n)
}

// MonthlyDueDate moves from by n calendar months and places the result on anchorDay,
// clamped to the month's length. Anchoring on the loan start day keeps a sequence of
// due dates from drifting after a short month (Jan 31 → Feb 28 → Mar 31).
func MonthlyDueDate(from time.Time, anchorDay int, n int) time.Time {
	first := time.Date(from.Year(), from.Month(), 1, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
	target := first.AddDate(0, n, 0)

	day := anchorDay
	if last := DaysIn(target.Year(), target.Month(), target.Location()); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}

	return target.AddDate(0, 0, day-1)
}

// MonthsPastDue counts how many whole calendar months now is past dueDate.
// A date that is not yet past returns 0.
func MonthsPastDue(dueDate, now time.Time) int {
	if !now.After(dueDate) {
		return 0
	}

	months := (now.Year()-dueDate.Year())*12 + int(now.Month()-dueDate.Month())
	if AddMonths(dueDate, months).After(now) {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// IsDateOverdue checks if a due date is before the start of now's day
func IsDateOverdue(dueDate, now time.Time) bool {
	return StartOfDay(now).After(StartOfDay(dueDate))
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsCents reports whether d has no more than two decimal places.
func IsCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}
