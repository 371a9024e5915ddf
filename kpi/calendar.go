/*
calendar.go - Calendar bucketing: ISO weeks and month windows

PURPOSE:
  Pure calendar arithmetic with no I/O. Given a reference date, computes the
  boundaries of "this week", "the previous full week", and the set of
  distinct ISO week buckets overlapping a month. These buckets drive both
  repeat-policy deduplication and aggregation windows.

ISO WEEK NUMBERING:
  Weeks start Monday regardless of locale. The week number uses the
  Thursday-anchored algorithm: shift the date to the Thursday of its week,
  then count weeks since January 1 of the Thursday's year. The formula is
  pinned down here rather than delegated to platform behavior, because two
  independent date libraries will disagree otherwise.

YEAR BOUNDARIES:
  A month can spill into an adjacent ISO year at its edges (e.g. Jan 1 2027
  belongs to ISO week 2026-W53). Bucket identity uses the ISO week's own
  year, not the calendar month's year, so buckets never collide across
  year boundaries.

FAILURE SEMANTICS:
  Pure functions. The only failure mode is invalid calendar input
  (a non-existent date), rejected with ErrInvalidDate - never silently
  corrected.

SEE ALSO:
  - policy.go: Maps repeat policies onto these buckets
  - engine.go: Aggregates over the resulting ranges
*/
package kpi

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granularity calendar date
// =============================================================================

// Date is a calendar date at day granularity. Internally anchored to UTC
// midnight so comparisons are locale-independent.
type Date struct {
	t time.Time
}

// NewDate constructs a date, rejecting non-existent calendar input
// (e.g. February 30) with ErrInvalidDate.
func NewDate(year int, month time.Month, day int) (Date, error) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, int(month), day)
	}
	return Date{t: t}, nil
}

// MustDate is NewDate for statically known dates; panics on invalid input.
func MustDate(year int, month time.Month, day int) Date {
	d, err := NewDate(year, month, day)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return Date{t: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)}
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.t.Year() }
func (d Date) Month() time.Month     { return d.t.Month() }
func (d Date) Day() int              { return d.t.Day() }
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }
func (d Date) YearDay() int          { return d.t.YearDay() }
func (d Date) IsZero() bool          { return d.t.IsZero() }
func (d Date) Time() time.Time       { return d.t }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// =============================================================================
// DATE RANGE - Inclusive both ends
// =============================================================================

// DateRange is an inclusive date interval: Start <= d <= End.
type DateRange struct {
	Start Date
	End   Date
}

// Contains reports whether d falls within the range [Start, End].
func (r DateRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.Start) && d.BeforeOrEqual(r.End)
}

// Days returns every day in the range in order.
func (r DateRange) Days() []Date {
	var days []Date
	for cur := r.Start; cur.BeforeOrEqual(r.End); cur = cur.AddDays(1) {
		days = append(days, cur)
	}
	return days
}

func (r DateRange) String() string {
	return "[" + r.Start.String() + ", " + r.End.String() + "]"
}

// =============================================================================
// WEEK BOUNDS
// =============================================================================

// WeekBounds returns Monday through Sunday of the ISO week containing d.
// For a date that falls on Sunday the correction resolves to the Monday
// preceding that Sunday, not the following one.
func WeekBounds(d Date) DateRange {
	diff := int(time.Monday - d.Weekday())
	if d.Weekday() == time.Sunday {
		diff = -6
	}
	monday := d.AddDays(diff)
	return DateRange{Start: monday, End: monday.AddDays(6)}
}

// PreviousFullWeekBounds returns the 7-day window ending the day before the
// current week's Monday - strictly the prior calendar week, never partial.
func PreviousFullWeekBounds(d Date) DateRange {
	end := WeekBounds(d).Start.AddDays(-1)
	return DateRange{Start: end.AddDays(-6), End: end}
}

// =============================================================================
// ISO WEEK BUCKETS
// =============================================================================

// WeekBucket identifies one ISO week. Year is the ISO week-numbering year,
// which differs from the calendar year at year boundaries.
type WeekBucket struct {
	Year int
	Week int
}

// Key returns a stable identifier, e.g. "2024-W10".
func (b WeekBucket) Key() string {
	return fmt.Sprintf("%04d-W%02d", b.Year, b.Week)
}

// ISOWeekOf returns the ISO week bucket containing d.
//
// Thursday-anchored: every ISO week contains exactly one Thursday, and that
// Thursday's calendar year is the week's ISO year. Week number is then
// ceil(daysSinceJan1 / 7) of the Thursday.
func ISOWeekOf(d Date) WeekBucket {
	// Monday=1 .. Sunday=7
	isoWeekday := int(d.Weekday())
	if isoWeekday == 0 {
		isoWeekday = 7
	}
	thursday := d.AddDays(4 - isoWeekday)
	return WeekBucket{
		Year: thursday.Year(),
		Week: (thursday.YearDay()-1)/7 + 1,
	}
}

// MonthBounds returns the first and last day of the month.
func MonthBounds(year int, month time.Month) (DateRange, error) {
	start, err := NewDate(year, month, 1)
	if err != nil {
		return DateRange{}, err
	}
	end := Date{t: start.t.AddDate(0, 1, -1)}
	return DateRange{Start: start, End: end}, nil
}

// DistinctWeekBucketsInMonth counts the distinct ISO week buckets touched by
// the days of the given month. Bucket identity is (isoYear, isoWeek), so a
// week spilling across a calendar year boundary is still counted once.
func DistinctWeekBucketsInMonth(year int, month time.Month) (int, error) {
	bounds, err := MonthBounds(year, month)
	if err != nil {
		return 0, err
	}
	seen := make(map[WeekBucket]struct{})
	for cur := bounds.Start; cur.BeforeOrEqual(bounds.End); cur = cur.AddDays(1) {
		seen[ISOWeekOf(cur)] = struct{}{}
	}
	return len(seen), nil
}
