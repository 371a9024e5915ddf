/*
policy.go - Repeat policies: how often the same completion may be credited

PURPOSE:
  A repeat policy controls how often the same user may be credited for the
  same KPI: unrestricted, once per calendar day, or once per ISO week. The
  policy is a process-wide setting read before every recording attempt and
  passed explicitly into the engine - never a hidden global - which keeps
  the policy-dependent branches directly testable with injected values.

WRITE-TIME ONLY:
  Policy compliance is checked only at write time. Changing the setting
  does not retroactively validate existing entries.

BUCKET KEYS:
  Each policy maps a date onto a storage bucket key. The storage layer
  enforces uniqueness of (user, kpi, bucket key), so two racing writers for
  the same bucket collapse into one accepted write:

    per_day   -> "2024-03-06"
    per_week  -> "2024-W10"       (ISO year + week)
    unlimited -> the entry ID      (never collides)

SEE ALSO:
  - calendar.go: Week bucket calculation
  - engine.go: CheckAndReserve uses Bucket/BucketKey
*/
package kpi

import "fmt"

// =============================================================================
// REPEAT POLICY
// =============================================================================

type RepeatPolicy string

const (
	RepeatUnlimited RepeatPolicy = "unlimited"
	RepeatPerDay    RepeatPolicy = "per_day"
	RepeatPerWeek   RepeatPolicy = "per_week"
)

// SettingRepeatPolicy is the settings-store key holding the active policy.
const SettingRepeatPolicy = "repeat_policy"

// ParseRepeatPolicy validates a policy value read from the settings store.
func ParseRepeatPolicy(s string) (RepeatPolicy, error) {
	switch RepeatPolicy(s) {
	case RepeatUnlimited, RepeatPerDay, RepeatPerWeek:
		return RepeatPolicy(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Valid reports whether p is one of the known policy values.
func (p RepeatPolicy) Valid() bool {
	_, err := ParseRepeatPolicy(string(p))
	return err == nil
}

// Bucket returns the deduplication window for a date under this policy.
// The second return is false for unlimited, which has no window.
func (p RepeatPolicy) Bucket(d Date) (DateRange, bool) {
	switch p {
	case RepeatPerDay:
		return DateRange{Start: d, End: d}, true
	case RepeatPerWeek:
		return WeekBounds(d), true
	default:
		return DateRange{}, false
	}
}

// BucketKey returns the storage uniqueness key for an entry recorded on d.
// For unlimited the entry's own ID is used so the unique index never trips.
func (p RepeatPolicy) BucketKey(d Date, entryID EntryID) string {
	switch p {
	case RepeatPerDay:
		return d.String()
	case RepeatPerWeek:
		return ISOWeekOf(d).Key()
	default:
		return string(entryID)
	}
}
