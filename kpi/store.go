/*
store.go - Persistence interface for progress entries and reference data

PURPOSE:
  Defines the interface between the engine and the database. Progress
  entries are immutable once written: the Store exposes Insert and an
  administrative Delete, but no Update - corrections are delete-and-rerecord.

UNIQUENESS CONTRACT:
  InsertEntry takes the policy bucket key alongside the entry. The store
  MUST enforce uniqueness of (user, kpi, bucket key) and reject a colliding
  insert with ErrDuplicateEntry. This is what makes the engine's
  check-then-insert sequence safe under concurrency: two racing recordings
  for the same bucket both pass the conflict check, but only one insert
  lands.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite with a unique index
  - kpi/store:    In-memory for testing

SEE ALSO:
  - engine.go: The only writer through this interface
  - store/sqlite/sqlite.go: Concrete implementation
*/
package kpi

import "context"

// =============================================================================
// ENTRY FILTER
// =============================================================================

// EntryFilter narrows a progress query. Nil fields match everything.
type EntryFilter struct {
	UserID *UserID
	KpiID  *KpiID
	Range  *DateRange
}

// =============================================================================
// STORE - Persistence interface
// =============================================================================

// Store handles persistence of progress entries, reference data, and the
// process-wide settings the engine reads per request.
type Store interface {
	// QueryEntries returns entries matching the filter, ordered by date.
	QueryEntries(ctx context.Context, filter EntryFilter) ([]ProgressEntry, error)

	// InsertEntry persists an entry under the given policy bucket key.
	// Returns ErrDuplicateEntry if (user, kpi, bucket key) already exists.
	InsertEntry(ctx context.Context, entry ProgressEntry, bucketKey string) error

	// DeleteEntry removes an entry. Administrative use only; returns
	// ErrEntryNotFound if the entry doesn't exist.
	DeleteEntry(ctx context.Context, id EntryID) error

	// ListActiveUsers returns users with Active=true.
	ListActiveUsers(ctx context.Context) ([]User, error)

	// ListActiveKpis returns KPIs with Active=true.
	ListActiveKpis(ctx context.Context) ([]Kpi, error)

	// GetSetting reads a setting value. The second return is false when the
	// key has never been written.
	GetSetting(ctx context.Context, key string) (string, bool, error)

	// SetSetting upserts a setting value.
	SetSetting(ctx context.Context, key, value string) error
}
