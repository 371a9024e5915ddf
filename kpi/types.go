/*
Package kpi provides the core progress-tracking engine.

PURPOSE:
  This package contains the domain types and algorithms for KPI progress
  tracking: calendar bucketing (ISO weeks, month windows), the repeat-policy
  duplicate check, and period aggregation (sums, per-user rollups, and
  percent-of-target figures).

KEY CONCEPTS IN THIS FILE (types.go):
  - ProgressEntry: An immutable record of one KPI completion
  - Kpi: A trackable indicator with a score weight
  - User: An account with role and active flag (soft delete)
  - ID types: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Progress entries are never updated, only administratively deleted
  2. Precision: Uses decimal.Decimal for scores to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing user/KPI identifiers
  4. Soft Deletes: Users and KPIs carry an Active flag; aggregation filters
     on it explicitly rather than relying on absence from a table

USAGE:
  entry := kpi.ProgressEntry{
      UserID:    "user-7",
      KpiID:     "kpi-3",
      Date:      kpi.MustDate(2024, time.March, 4),
      Score:     decimal.NewFromInt(5),
      Completed: true,
  }

SEE ALSO:
  - calendar.go: Week/month bucket calculation
  - policy.go: Repeat-policy definitions
  - engine.go: Conflict checks and aggregation
*/
package kpi

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type KpiID string
type EntryID string

// =============================================================================
// USER - Account with role and soft-delete flag
// =============================================================================

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
)

// User is an account that records KPI completions.
// Deactivation is a soft delete: historical progress entries keep referencing
// the user, and aggregation filters on Active explicitly.
type User struct {
	ID     UserID
	Name   string
	Email  string // unique, compared case-insensitively
	Role   Role
	Active bool

	// ManagerID is a weak back-reference: resolved by lookup when needed,
	// never traversed as an ownership link.
	ManagerID *UserID
}

// =============================================================================
// KPI - Trackable indicator with a score weight
// =============================================================================

// Kpi defines one trackable indicator. Weight is the score awarded per
// completion. KPIs are soft-deleted via Active=false, never hard-deleted,
// to preserve referential integrity with historical progress entries.
type Kpi struct {
	ID       KpiID
	Name     string
	Weight   decimal.Decimal
	Active   bool
	Category string
}

// =============================================================================
// PROGRESS ENTRY - One recorded KPI completion
// =============================================================================

// ProgressEntry records that a user completed a KPI on a date.
// Immutable once written except for administrative deletion.
type ProgressEntry struct {
	ID        EntryID
	UserID    UserID
	KpiID     KpiID
	Date      Date
	Score     decimal.Decimal
	Completed bool
}

// MustParseDecimal parses a decimal string, returning zero on failure.
// Intended for values already validated by the storage layer.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
