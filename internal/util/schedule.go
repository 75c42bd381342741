package util

import (
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
)

// LastDayOfMonth returns the number of days in the given month
func LastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay returns targetDay, or the last day of the month when the month is shorter
// (e.g., day 31 in February returns 28 or 29)
func ClampDay(year int, month time.Month, targetDay int) int {
	if targetDay < 1 {
		return 1
	}
	if lastDay := LastDayOfMonth(year, month); targetDay > lastDay {
		return lastDay
	}
	return targetDay
}

// NextOccurrence returns the first occurrence of the schedule strictly after from.
// Calendar arithmetic happens in loc; the result is an absolute instant carrying the
// anchor's time of day. from does not have to lie on the schedule: an unaligned from
// yields the next aligned occurrence, which may be later in the same period.
//
//	DAILY   every day
//	WEEKLY  every anchor weekday
//	MONTHLY the anchor's day each month (clamped to month end)
//	YEARLY  the anchor's month/day each year (Feb 29 -> Feb 28)
func NextOccurrence(freq domain.Frequency, anchor, from time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	a := anchor.In(loc)
	f := from.In(loc)

	at := func(year int, month time.Month, day int) time.Time {
		return time.Date(year, month, day, a.Hour(), a.Minute(), a.Second(), a.Nanosecond(), loc)
	}
	onMonthDay := func(year int, month time.Month) time.Time {
		// Normalise month overflow through the first of the month so that day
		// clamping applies to the real target month
		first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
		return at(first.Year(), first.Month(), ClampDay(first.Year(), first.Month(), a.Day()))
	}

	switch freq {
	case domain.FrequencyDaily:
		if next := at(f.Year(), f.Month(), f.Day()); next.After(from) {
			return next
		}
		return at(f.Year(), f.Month(), f.Day()+1)

	case domain.FrequencyWeekly:
		ahead := (int(a.Weekday()) - int(f.Weekday()) + 7) % 7
		if next := at(f.Year(), f.Month(), f.Day()+ahead); next.After(from) {
			return next
		}
		return at(f.Year(), f.Month(), f.Day()+ahead+7)

	case domain.FrequencyYearly:
		if next := at(f.Year(), a.Month(), ClampDay(f.Year(), a.Month(), a.Day())); next.After(from) {
			return next
		}
		year := f.Year() + 1
		return at(year, a.Month(), ClampDay(year, a.Month(), a.Day()))

	default:
		// MONTHLY
		if next := onMonthDay(f.Year(), f.Month()); next.After(from) {
			return next
		}
		return onMonthDay(f.Year(), f.Month()+1)
	}
}

// AdvancePast applies NextOccurrence starting at from until the occurrence is after
// now. Occurrences skipped on the way are never materialized.
func AdvancePast(freq domain.Frequency, anchor, from, now time.Time, loc *time.Location) time.Time {
	next := NextOccurrence(freq, anchor, from, loc)
	for !next.After(now) {
		next = NextOccurrence(freq, anchor, next, loc)
	}
	return next
}
