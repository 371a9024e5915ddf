/*
errors.go - Centralized error types for the progress engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The engine performs no retries and no logging; every failure is returned
  to the caller as a typed error. The routing layer maps these onto HTTP
  status codes and must preserve the distinction between a repeat-policy
  conflict (409-class) and a storage failure (500-class).

ERROR CATEGORIES:
  1. Calendar errors - Invalid date input
  2. Conflict errors - Repeat-policy violations, recoverable by the caller
  3. Storage errors  - Propagated from the store, never swallowed

USAGE:
  if errors.Is(err, kpi.ErrConflict) {
      // already recorded for this period
  }

SEE ALSO:
  - engine.go: Produces ConflictError
  - store/sqlite: Maps unique-index violations to ErrDuplicateEntry
*/
package kpi

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned for malformed or non-existent calendar input.
	ErrInvalidDate = errors.New("invalid date")

	// ErrConflict is returned when recording a completion would violate the
	// repeat policy: the same (user, kpi) already has an entry in the bucket.
	// Recoverable by the caller (pick a different date, or treat as no-op).
	ErrConflict = errors.New("already recorded for this period")

	// ErrDuplicateEntry is returned by the storage layer when the bucket
	// uniqueness index rejects an insert. This is the backstop that turns
	// the check-then-insert race into a single rejected write.
	ErrDuplicateEntry = errors.New("duplicate progress entry")

	// ErrUnknownPolicy is returned when a repeat-policy value cannot be parsed.
	ErrUnknownPolicy = errors.New("unknown repeat policy")

	// ErrUserNotFound is returned when a referenced user doesn't exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrKpiNotFound is returned when a referenced KPI doesn't exist.
	ErrKpiNotFound = errors.New("kpi not found")

	// ErrEntryNotFound is returned when a referenced progress entry doesn't exist.
	ErrEntryNotFound = errors.New("progress entry not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError reports which bucket already holds an entry for the
// (user, kpi) pair.
type ConflictError struct {
	UserID     UserID
	KpiID      KpiID
	Date       Date
	Bucket     DateRange
	Policy     RepeatPolicy
	ExistingID EntryID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("user %s already recorded kpi %s in %s (%s policy)",
		e.UserID, e.KpiID, e.Bucket, e.Policy)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true if the error is a repeat-policy violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrDuplicateEntry)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrUnknownPolicy)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrKpiNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
