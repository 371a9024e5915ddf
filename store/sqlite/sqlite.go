/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements kpi.Store plus the reference-data persistence the API layer
  needs (users, KPIs, settings). In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  users:    Accounts with role, active flag, and optional manager reference
  kpis:     Trackable indicators with a decimal score weight
  progress: Immutable completion records (insert + administrative delete only)
  settings: Process-wide key/value configuration (repeat policy)

UNIQUENESS:
  idx_unique_progress_bucket on (user_id, kpi_id, bucket_key) is the
  mechanism that closes the check-then-insert race: two concurrent
  recordings for the same policy bucket both pass the engine's conflict
  check, but only one insert lands. The loser's unique-constraint failure
  maps to kpi.ErrDuplicateEntry.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/kpitrack.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := kpi.NewEngine(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - kpi/store.go: Interface definition and uniqueness contract
  - kpi/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tally/kpitrack/kpi"
)

// Store implements kpi.Store and the reference-data persistence.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single pooled connection: SQLite allows one writer anyway, and
	// ":memory:" databases are per-connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users (soft-deleted via active flag)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		role TEXT NOT NULL DEFAULT 'employee',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		manager_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_active ON users(active);

	-- KPIs (soft-deleted via active flag, weight stored as decimal string)
	CREATE TABLE IF NOT EXISTS kpis (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		weight TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		category TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_kpis_active ON kpis(active);

	-- Progress entries (insert + administrative delete only, no updates)
	CREATE TABLE IF NOT EXISTS progress (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		kpi_id TEXT NOT NULL,
		date TEXT NOT NULL,
		score TEXT NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT TRUE,
		bucket_key TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id),
		FOREIGN KEY (kpi_id) REFERENCES kpis(id)
	);

	-- CRITICAL: One entry per (user, kpi, policy bucket). This turns the
	-- engine's check-then-insert race into a single rejected write.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_progress_bucket
		ON progress(user_id, kpi_id, bucket_key);

	-- For range scans (aggregation hot path)
	CREATE INDEX IF NOT EXISTS idx_progress_date
		ON progress(date);
	CREATE INDEX IF NOT EXISTS idx_progress_user_date
		ON progress(user_id, date);
	CREATE INDEX IF NOT EXISTS idx_progress_user_kpi_date
		ON progress(user_id, kpi_id, date);

	-- Settings (repeat policy lives here)
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PROGRESS ENTRIES (kpi.Store interface)
// =============================================================================

// InsertEntry persists a progress entry under its policy bucket key.
func (s *Store) InsertEntry(ctx context.Context, entry kpi.ProgressEntry, bucketKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO progress (id, user_id, kpi_id, date, score, completed, bucket_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.KpiID,
		entry.Date.String(),
		entry.Score.String(),
		entry.Completed,
		bucketKey,
		time.Now().UTC().Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return kpi.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to insert progress entry: %w", err)
	}

	return nil
}

// DeleteEntry removes a progress entry. Administrative use only.
func (s *Store) DeleteEntry(ctx context.Context, id kpi.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM progress WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete progress entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return kpi.ErrEntryNotFound
	}
	return nil
}

// QueryEntries returns entries matching the filter, ordered by date.
func (s *Store) QueryEntries(ctx context.Context, filter kpi.EntryFilter) ([]kpi.ProgressEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, kpi_id, date, score, completed
		FROM progress
		WHERE 1=1
	`
	var args []any

	if filter.UserID != nil {
		query += " AND user_id = ?"
		args = append(args, *filter.UserID)
	}
	if filter.KpiID != nil {
		query += " AND kpi_id = ?"
		args = append(args, *filter.KpiID)
	}
	if filter.Range != nil {
		query += " AND date >= ? AND date <= ?"
		args = append(args, filter.Range.Start.String(), filter.Range.End.String())
	}
	query += " ORDER BY date ASC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress entries: %w", err)
	}
	defer rows.Close()

	var entries []kpi.ProgressEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (kpi.ProgressEntry, error) {
	var (
		entry kpi.ProgressEntry
		date  string
		score string
	)

	err := rows.Scan(&entry.ID, &entry.UserID, &entry.KpiID, &date, &score, &entry.Completed)
	if err != nil {
		return entry, fmt.Errorf("failed to scan progress entry: %w", err)
	}

	entry.Date, err = kpi.ParseDate(date)
	if err != nil {
		return entry, fmt.Errorf("corrupt date in progress row %s: %w", entry.ID, err)
	}
	entry.Score = kpi.MustParseDecimal(score)
	return entry, nil
}

// =============================================================================
// USER STORE
// =============================================================================

// SaveUser upserts a user.
func (s *Store) SaveUser(ctx context.Context, u kpi.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, name, email, role, active, manager_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			active = excluded.active,
			manager_id = excluded.manager_id
	`

	var managerID sql.NullString
	if u.ManagerID != nil {
		managerID = sql.NullString{String: string(*u.ManagerID), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email, u.Role, u.Active, managerID,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetUser retrieves a user by ID. Returns nil when not found.
func (s *Store) GetUser(ctx context.Context, id kpi.UserID) (*kpi.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryUser(ctx, "SELECT id, name, email, role, active, manager_id FROM users WHERE id = ?", id)
}

// GetUserByEmail retrieves a user by email, case-insensitively.
// Returns nil when not found.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*kpi.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryUser(ctx, "SELECT id, name, email, role, active, manager_id FROM users WHERE email = ? COLLATE NOCASE", email)
}

func (s *Store) queryUser(ctx context.Context, query string, arg any) (*kpi.User, error) {
	var (
		u         kpi.User
		managerID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active, &managerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if managerID.Valid {
		mid := kpi.UserID(managerID.String)
		u.ManagerID = &mid
	}
	return &u, nil
}

// ListActiveUsers returns users with active=true, ordered by name.
func (s *Store) ListActiveUsers(ctx context.Context) ([]kpi.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, role, active, manager_id FROM users WHERE active = TRUE ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []kpi.User
	for rows.Next() {
		var (
			u         kpi.User
			managerID sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Active, &managerID); err != nil {
			return nil, err
		}
		if managerID.Valid {
			mid := kpi.UserID(managerID.String)
			u.ManagerID = &mid
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// KPI STORE
// =============================================================================

// SaveKpi upserts a KPI definition.
func (s *Store) SaveKpi(ctx context.Context, k kpi.Kpi) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO kpis (id, name, weight, active, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			weight = excluded.weight,
			active = excluded.active,
			category = excluded.category
	`

	_, err := s.db.ExecContext(ctx, query,
		k.ID, k.Name, k.Weight.String(), k.Active, k.Category,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetKpi retrieves a KPI by ID. Returns nil when not found.
func (s *Store) GetKpi(ctx context.Context, id kpi.KpiID) (*kpi.Kpi, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		k      kpi.Kpi
		weight string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, weight, active, category FROM kpis WHERE id = ?", id,
	).Scan(&k.ID, &k.Name, &weight, &k.Active, &k.Category)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	k.Weight = kpi.MustParseDecimal(weight)
	return &k, nil
}

// ListActiveKpis returns KPIs with active=true, ordered by name.
func (s *Store) ListActiveKpis(ctx context.Context) ([]kpi.Kpi, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, weight, active, category FROM kpis WHERE active = TRUE ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kpis []kpi.Kpi
	for rows.Next() {
		var (
			k      kpi.Kpi
			weight string
		)
		if err := rows.Scan(&k.ID, &k.Name, &weight, &k.Active, &k.Category); err != nil {
			return nil, err
		}
		k.Weight = kpi.MustParseDecimal(weight)
		kpis = append(kpis, k)
	}
	return kpis, rows.Err()
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

// GetSetting reads a setting value. Second return is false when unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// SetSetting upserts a setting value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
