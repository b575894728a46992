// Package schedule computes the next occurrence of a campaign's recurrence
// rule. All arithmetic is calendar-aware and done in a single absolute time
// representation (UTC), so month-length and leap-year boundaries behave
// correctly and daily/weekly steps keep the intended time of day.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/ignite/campaign-mailer/internal/domain"
)

// Sentinel errors for schedule window validation.
var (
	ErrInvalidInterval = errors.New("invalid interval")
	ErrEndBeforeStart  = errors.New("end time must be after the scheduled start time")
	ErrEndWithOnce     = errors.New("end time is only valid for recurring intervals")
)

// Next returns the occurrence that follows current for the given interval.
// The second return value is false when no further occurrence exists
// (interval "once"). Next is a pure function: it never consults the clock.
func Next(current time.Time, interval domain.Interval) (time.Time, bool) {
	current = current.UTC()
	switch interval {
	case domain.IntervalOnce:
		return time.Time{}, false
	case domain.IntervalHourly:
		return current.Add(time.Hour), true
	case domain.IntervalDaily:
		return current.AddDate(0, 0, 1), true
	case domain.IntervalWeekly:
		return current.AddDate(0, 0, 7), true
	case domain.IntervalMonthly:
		return nextMonth(current), true
	}
	return time.Time{}, false
}

// NextWithin applies the optional end-time cutoff: if the computed occurrence
// would fall after end, the campaign has no further occurrence regardless of
// interval.
func NextWithin(current time.Time, interval domain.Interval, end *time.Time) (time.Time, bool) {
	next, ok := Next(current, interval)
	if !ok {
		return time.Time{}, false
	}
	if end != nil && next.After(*end) {
		return time.Time{}, false
	}
	return next, true
}

// nextMonth advances to the same day-of-month in the following month,
// clamping to the last valid day when the target month is shorter
// (Jan 31 -> Feb 28, or Feb 29 in a leap year).
func nextMonth(t time.Time) time.Time {
	year, month := t.Year(), t.Month()+1
	if month > time.December {
		year++
		month = time.January
	}
	day := t.Day()
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// daysIn returns the number of days in the given month. Day zero of the
// following month normalizes to the last day of this one.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidateWindow rejects invalid interval/end-time combinations at campaign
// creation time, before they can ever reach the dispatcher.
func ValidateWindow(scheduledAt time.Time, endAt *time.Time, interval domain.Interval) error {
	if !interval.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidInterval, interval)
	}
	if endAt == nil {
		return nil
	}
	if interval == domain.IntervalOnce {
		return ErrEndWithOnce
	}
	if !endAt.After(scheduledAt) {
		return ErrEndBeforeStart
	}
	return nil
}
