package util

import (
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
)

// PeriodWindow returns the budget period containing at, evaluated in loc.
// MONTHLY is the calendar month; WEEKLY is the ISO week starting Monday.
func PeriodWindow(period domain.BudgetPeriod, at time.Time, loc *time.Location) domain.PeriodWindow {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)

	if period == domain.BudgetPeriodWeekly {
		// Monday = 0 ... Sunday = 6
		offset := (int(local.Weekday()) + 6) % 7
		start := time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
		return domain.PeriodWindow{Start: start, End: start.AddDate(0, 0, 7)}
	}

	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return domain.PeriodWindow{Start: start, End: start.AddDate(0, 1, 0)}
}
