// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tally/kpitrack/kpi"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	entries  map[kpi.EntryID]kpi.ProgressEntry
	buckets  map[bucketKey]kpi.EntryID
	users    map[kpi.UserID]kpi.User
	kpis     map[kpi.KpiID]kpi.Kpi
	settings map[string]string
}

type bucketKey struct {
	UserID kpi.UserID
	KpiID  kpi.KpiID
	Key    string
}

func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[kpi.EntryID]kpi.ProgressEntry),
		buckets:  make(map[bucketKey]kpi.EntryID),
		users:    make(map[kpi.UserID]kpi.User),
		kpis:     make(map[kpi.KpiID]kpi.Kpi),
		settings: make(map[string]string),
	}
}

// InsertEntry adds an entry, enforcing bucket-key uniqueness the same way
// the SQLite unique index does.
func (m *Memory) InsertEntry(_ context.Context, entry kpi.ProgressEntry, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bk := bucketKey{UserID: entry.UserID, KpiID: entry.KpiID, Key: key}
	if _, taken := m.buckets[bk]; taken {
		return kpi.ErrDuplicateEntry
	}
	m.buckets[bk] = entry.ID
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, id kpi.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return kpi.ErrEntryNotFound
	}
	delete(m.entries, id)
	for bk, eid := range m.buckets {
		if eid == id {
			delete(m.buckets, bk)
			break
		}
	}
	return nil
}

func (m *Memory) QueryEntries(_ context.Context, filter kpi.EntryFilter) ([]kpi.ProgressEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []kpi.ProgressEntry
	for _, entry := range m.entries {
		if filter.UserID != nil && entry.UserID != *filter.UserID {
			continue
		}
		if filter.KpiID != nil && entry.KpiID != *filter.KpiID {
			continue
		}
		if filter.Range != nil && !filter.Range.Contains(entry.Date) {
			continue
		}
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) ListActiveUsers(_ context.Context) ([]kpi.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []kpi.User
	for _, u := range m.users {
		if u.Active {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *Memory) ListActiveKpis(_ context.Context) ([]kpi.Kpi, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var kpis []kpi.Kpi
	for _, k := range m.kpis {
		if k.Active {
			kpis = append(kpis, k)
		}
	}
	sort.Slice(kpis, func(i, j int) bool { return kpis[i].ID < kpis[j].ID })
	return kpis, nil
}

func (m *Memory) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.settings[key]
	return value, ok, nil
}

func (m *Memory) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings[key] = value
	return nil
}

// =============================================================================
// FIXTURE HELPERS - Not part of kpi.Store; used by tests and dev setup
// =============================================================================

func (m *Memory) SaveUser(u kpi.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) SaveKpi(k kpi.Kpi) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kpis[k.ID] = k
}

// GetUserByEmail looks up a user case-insensitively by email.
func (m *Memory) GetUserByEmail(_ context.Context, email string) (*kpi.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			user := u
			return &user, nil
		}
	}
	return nil, nil
}
