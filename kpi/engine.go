/*
engine.go - Progress aggregation and repeat-policy engine

PURPOSE:
  The central decision and reduction logic:
  - CheckAndReserve: would a new completion violate the repeat policy?
  - Record: check, then insert under the policy bucket key
  - Aggregate / PerUserAggregate: rolled-up score sums over a bucket
  - DepartmentTargets / PercentOfTarget: theoretical ceilings and
    percent figures for dashboards

CONCURRENCY:
  CheckAndReserve is a query-then-decide step with two terminal outcomes
  (accepted / conflict) and no retries. It is NOT atomic with the insert:
  two concurrent recordings for the same bucket can both observe "no
  conflict". The storage layer's unique index on (user, kpi, bucket key)
  closes that gap - the loser's insert comes back as ErrDuplicateEntry and
  Record surfaces it as a ConflictError, indistinguishable from losing the
  check itself.

  Aggregation reads are pure reductions over a snapshot of entries; they
  take no locks and accept eventually-consistent results when run
  concurrently with writes.

SEE ALSO:
  - calendar.go: Bucket boundaries
  - policy.go: Policy-to-bucket mapping
  - store.go: The uniqueness contract
*/
package kpi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies repeat policies and computes aggregates over a Store.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// =============================================================================
// CHECK AND RESERVE - Repeat-policy duplicate check
// =============================================================================

// CheckAndReserve decides whether recording a completion for (userID, kpiID)
// on date would violate the repeat policy. Returns nil when accepted and a
// *ConflictError when an entry already exists in the policy bucket.
//
// This operation does not mutate storage. The caller performs the insert;
// see Record for the combined sequence.
func (e *Engine) CheckAndReserve(ctx context.Context, userID UserID, kpiID KpiID, date Date, policy RepeatPolicy) error {
	bucket, bounded := policy.Bucket(date)
	if !bounded {
		// unlimited: always accepted, no lookup needed
		return nil
	}

	entries, err := e.store.QueryEntries(ctx, EntryFilter{
		UserID: &userID,
		KpiID:  &kpiID,
		Range:  &bucket,
	})
	if err != nil {
		return fmt.Errorf("conflict check failed: %w", err)
	}

	if len(entries) > 0 {
		return &ConflictError{
			UserID:     userID,
			KpiID:      kpiID,
			Date:       date,
			Bucket:     bucket,
			Policy:     policy,
			ExistingID: entries[0].ID,
		}
	}
	return nil
}

// Record runs CheckAndReserve and, when accepted, inserts the entry under
// the policy bucket key. A concurrent recording that slips between the
// check and the insert is rejected by the storage uniqueness index and
// surfaced as a ConflictError, so the invariant holds under load.
func (e *Engine) Record(ctx context.Context, entry ProgressEntry, policy RepeatPolicy) error {
	if err := e.CheckAndReserve(ctx, entry.UserID, entry.KpiID, entry.Date, policy); err != nil {
		return err
	}

	key := policy.BucketKey(entry.Date, entry.ID)
	if err := e.store.InsertEntry(ctx, entry, key); err != nil {
		if errors.Is(err, ErrDuplicateEntry) {
			bucket, _ := policy.Bucket(entry.Date)
			return &ConflictError{
				UserID: entry.UserID,
				KpiID:  entry.KpiID,
				Date:   entry.Date,
				Bucket: bucket,
				Policy: policy,
			}
		}
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// =============================================================================
// AGGREGATION - Pure reductions over entry snapshots
// =============================================================================

// Aggregate sums Score over entries whose date falls within bucket
// (inclusive both ends). Entries with Completed=false are excluded; in
// practice completed is always true once written, but the rule is enforced
// rather than assumed.
func Aggregate(bucket DateRange, entries []ProgressEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, entry := range entries {
		if !entry.Completed {
			continue
		}
		if bucket.Contains(entry.Date) {
			sum = sum.Add(entry.Score)
		}
	}
	return sum
}

// PerUserAggregate groups Aggregate by user. Every active user from the
// supplied list appears in the result - users with no matching entries map
// to zero, never absent. The user list must come from the user store, not
// be inferred from whichever users happen to have entries.
func PerUserAggregate(bucket DateRange, users []User, entries []ProgressEntry) map[UserID]decimal.Decimal {
	totals := make(map[UserID]decimal.Decimal, len(users))
	for _, u := range users {
		if !u.Active {
			continue
		}
		totals[u.ID] = decimal.Zero
	}
	for _, entry := range entries {
		if !entry.Completed || !bucket.Contains(entry.Date) {
			continue
		}
		if cur, ok := totals[entry.UserID]; ok {
			totals[entry.UserID] = cur.Add(entry.Score)
		}
	}
	return totals
}

// =============================================================================
// TARGETS - Theoretical ceilings for percent-of-target figures
// =============================================================================

// DepartmentTargets computes the theoretical maximum achievable scores,
// assuming every active employee completes every active KPI every week.
// Used purely as the denominator for percent-of-target, never as a hard
// cap on raw sums. Employee count is floored to 1 to avoid the denominator
// collapsing to zero.
func DepartmentTargets(activeKpiWeights []decimal.Decimal, activeEmployeeCount, weeksInMonth int) (maxWeek, maxMonth decimal.Decimal) {
	if activeEmployeeCount < 1 {
		activeEmployeeCount = 1
	}
	weightSum := decimal.Zero
	for _, w := range activeKpiWeights {
		weightSum = weightSum.Add(w)
	}
	maxWeek = weightSum.Mul(decimal.NewFromInt(int64(activeEmployeeCount)))
	maxMonth = maxWeek.Mul(decimal.NewFromInt(int64(weeksInMonth)))
	return maxWeek, maxMonth
}

// PercentOfTarget returns min(100, round(sum/max*100)) when max > 0, else 0.
// The clamp is deliberate: over-achievement beyond the theoretical maximum
// is visible only in the raw sum, never in the percent figure.
func PercentOfTarget(sum, max decimal.Decimal) int {
	if !max.IsPositive() {
		return 0
	}
	pct := sum.Div(max).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return int(pct)
}

// =============================================================================
// SUMMARIES - Store-mediated rollups for dashboards
// =============================================================================

// UserTotal is one row of a summary: a user's score sum for the bucket and
// the clamped percent of their individual target.
type UserTotal struct {
	User    User
	Total   decimal.Decimal
	Percent int
}

// Summary is the rolled-up view of a bucket: per-user totals plus the
// department total and its percent of the theoretical target.
type Summary struct {
	Bucket       DateRange
	WeeksInMonth int

	PerUser []UserTotal

	DepartmentTotal   decimal.Decimal
	DepartmentTarget  decimal.Decimal
	DepartmentPercent int

	// UserTarget is the per-user theoretical maximum for the bucket
	// (sum of active KPI weights times weeks).
	UserTarget decimal.Decimal
}

// WeekSummary rolls up the ISO week containing ref.
func (e *Engine) WeekSummary(ctx context.Context, ref Date) (*Summary, error) {
	return e.summarize(ctx, WeekBounds(ref), 1)
}

// PreviousWeekSummary rolls up the full week before the one containing ref.
func (e *Engine) PreviousWeekSummary(ctx context.Context, ref Date) (*Summary, error) {
	return e.summarize(ctx, PreviousFullWeekBounds(ref), 1)
}

// MonthSummary rolls up a calendar month. The target scales by the number
// of distinct ISO week buckets the month touches.
func (e *Engine) MonthSummary(ctx context.Context, year int, month time.Month) (*Summary, error) {
	bounds, err := MonthBounds(year, month)
	if err != nil {
		return nil, err
	}
	weeks, err := DistinctWeekBucketsInMonth(year, month)
	if err != nil {
		return nil, err
	}
	return e.summarize(ctx, bounds, weeks)
}

func (e *Engine) summarize(ctx context.Context, bucket DateRange, weeks int) (*Summary, error) {
	users, err := e.store.ListActiveUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	kpis, err := e.store.ListActiveKpis(ctx)
	if err != nil {
		return nil, fmt.Errorf("list kpis: %w", err)
	}
	entries, err := e.store.QueryEntries(ctx, EntryFilter{Range: &bucket})
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}

	weights := make([]decimal.Decimal, 0, len(kpis))
	for _, k := range kpis {
		weights = append(weights, k.Weight)
	}

	_, target := DepartmentTargets(weights, len(users), weeks)
	_, userTarget := DepartmentTargets(weights, 1, weeks)

	totals := PerUserAggregate(bucket, users, entries)

	summary := &Summary{
		Bucket:           bucket,
		WeeksInMonth:     weeks,
		DepartmentTotal:  Aggregate(bucket, entries),
		DepartmentTarget: target,
		UserTarget:       userTarget,
	}
	summary.DepartmentPercent = PercentOfTarget(summary.DepartmentTotal, target)

	for _, u := range users {
		if !u.Active {
			continue
		}
		total := totals[u.ID]
		summary.PerUser = append(summary.PerUser, UserTotal{
			User:    u,
			Total:   total,
			Percent: PercentOfTarget(total, userTarget),
		})
	}
	return summary, nil
}
