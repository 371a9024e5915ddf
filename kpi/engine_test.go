package kpi_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tally/kpitrack/kpi"
	"github.com/tally/kpitrack/kpi/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*kpi.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()

	mem.SaveUser(kpi.User{ID: "user-7", Name: "Greta", Email: "greta@example.com", Role: kpi.RoleEmployee, Active: true})
	mem.SaveUser(kpi.User{ID: "user-8", Name: "Hank", Email: "hank@example.com", Role: kpi.RoleEmployee, Active: true})
	mem.SaveUser(kpi.User{ID: "user-9", Name: "Iris (left)", Email: "iris@example.com", Role: kpi.RoleEmployee, Active: false})

	mem.SaveKpi(kpi.Kpi{ID: "kpi-3", Name: "Demo delivered", Weight: decimal.NewFromInt(5), Active: true, Category: "sales"})
	mem.SaveKpi(kpi.Kpi{ID: "kpi-4", Name: "Call logged", Weight: decimal.NewFromInt(2), Active: true, Category: "sales"})

	return kpi.NewEngine(mem), mem
}

func entry(userID, kpiID string, date kpi.Date, score int64) kpi.ProgressEntry {
	return kpi.ProgressEntry{
		ID:        kpi.EntryID(uuid.NewString()),
		UserID:    kpi.UserID(userID),
		KpiID:     kpi.KpiID(kpiID),
		Date:      date,
		Score:     decimal.NewFromInt(score),
		Completed: true,
	}
}

// =============================================================================
// CHECK AND RESERVE
// =============================================================================

func TestCheckAndReserve_PerWeek(t *testing.T) {
	// GIVEN: An entry for (user-7, kpi-3) on Monday 2024-03-04
	// WHEN: Checking the same week's Wednesday and the next week's Monday
	// THEN: Same week conflicts, next week is accepted

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	monday := kpi.MustDate(2024, time.March, 4)
	require.NoError(t, engine.Record(ctx, entry("user-7", "kpi-3", monday, 5), kpi.RepeatPerWeek))

	wednesday := kpi.MustDate(2024, time.March, 6)
	err := engine.CheckAndReserve(ctx, "user-7", "kpi-3", wednesday, kpi.RepeatPerWeek)
	assert.Error(t, err, "same ISO week should conflict")
	var conflict *kpi.ConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, kpi.ErrConflict)
	assert.True(t, kpi.IsConflict(err))

	nextMonday := kpi.MustDate(2024, time.March, 11)
	assert.NoError(t, engine.CheckAndReserve(ctx, "user-7", "kpi-3", nextMonday, kpi.RepeatPerWeek),
		"next ISO week should be accepted")
}

func TestCheckAndReserve_PerDay(t *testing.T) {
	// GIVEN: An entry for (user-7, kpi-3) on 2024-03-04
	// WHEN: Checking the same day and the next day
	// THEN: Same day conflicts, next day is accepted

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	day := kpi.MustDate(2024, time.March, 4)
	require.NoError(t, engine.Record(ctx, entry("user-7", "kpi-3", day, 5), kpi.RepeatPerDay))

	assert.ErrorIs(t, engine.CheckAndReserve(ctx, "user-7", "kpi-3", day, kpi.RepeatPerDay), kpi.ErrConflict)
	assert.NoError(t, engine.CheckAndReserve(ctx, "user-7", "kpi-3", day.AddDays(1), kpi.RepeatPerDay))
}

func TestCheckAndReserve_OtherUserOrKpiUnaffected(t *testing.T) {
	// GIVEN: An entry for (user-7, kpi-3) this week
	// WHEN: Checking a different user and a different KPI in the same week
	// THEN: Both are accepted - the bucket is keyed on the (user, kpi) pair

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	day := kpi.MustDate(2024, time.March, 4)
	require.NoError(t, engine.Record(ctx, entry("user-7", "kpi-3", day, 5), kpi.RepeatPerWeek))

	assert.NoError(t, engine.CheckAndReserve(ctx, "user-8", "kpi-3", day, kpi.RepeatPerWeek))
	assert.NoError(t, engine.CheckAndReserve(ctx, "user-7", "kpi-4", day, kpi.RepeatPerWeek))
}

func TestCheckAndReserve_Unlimited(t *testing.T) {
	// GIVEN: Several existing entries for (user-7, kpi-3) on the same day
	// WHEN: Checking under the unlimited policy
	// THEN: Always accepted, regardless of existing entries

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	day := kpi.MustDate(2024, time.March, 4)
	for i := 0; i < 3; i++ {
		require.NoError(t, engine.Record(ctx, entry("user-7", "kpi-3", day, 5), kpi.RepeatUnlimited))
	}
	assert.NoError(t, engine.CheckAndReserve(ctx, "user-7", "kpi-3", day, kpi.RepeatUnlimited))
}

// raceStore simulates the check-then-insert race: the conflict check sees
// no entries, but the bucket uniqueness index already holds the key.
type raceStore struct {
	*store.Memory
}

func (r *raceStore) QueryEntries(ctx context.Context, filter kpi.EntryFilter) ([]kpi.ProgressEntry, error) {
	return nil, nil
}

func TestRecord_LostRaceSurfacesAsConflict(t *testing.T) {
	// GIVEN: A store whose conflict check races (returns no entries) while
	//        the unique index already holds the week bucket
	// WHEN: Recording into the occupied bucket
	// THEN: The insert's ErrDuplicateEntry surfaces as a ConflictError

	mem := store.NewMemory()
	day := kpi.MustDate(2024, time.March, 4)
	first := entry("user-7", "kpi-3", day, 5)
	require.NoError(t, mem.InsertEntry(context.Background(), first, kpi.RepeatPerWeek.BucketKey(day, first.ID)))

	engine := kpi.NewEngine(&raceStore{Memory: mem})
	err := engine.Record(context.Background(), entry("user-7", "kpi-3", day.AddDays(2), 5), kpi.RepeatPerWeek)

	assert.ErrorIs(t, err, kpi.ErrConflict)
	var conflict *kpi.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestAggregate_SumsInBucketOnly(t *testing.T) {
	bucket := kpi.WeekBounds(kpi.MustDate(2024, time.March, 6))

	entries := []kpi.ProgressEntry{
		entry("user-7", "kpi-3", kpi.MustDate(2024, time.March, 4), 5),  // in bucket
		entry("user-7", "kpi-4", kpi.MustDate(2024, time.March, 10), 2), // in bucket (Sunday, inclusive)
		entry("user-8", "kpi-3", kpi.MustDate(2024, time.March, 11), 5), // next week
		entry("user-8", "kpi-4", kpi.MustDate(2024, time.March, 3), 2),  // previous week
	}

	assert.True(t, kpi.Aggregate(bucket, entries).Equal(decimal.NewFromInt(7)))
}

func TestAggregate_ExcludesIncomplete(t *testing.T) {
	// GIVEN: An entry flagged completed=false inside the bucket
	// WHEN: Aggregating
	// THEN: It is excluded - the rule is enforced, not assumed

	bucket := kpi.WeekBounds(kpi.MustDate(2024, time.March, 6))
	incomplete := entry("user-7", "kpi-3", kpi.MustDate(2024, time.March, 5), 5)
	incomplete.Completed = false

	entries := []kpi.ProgressEntry{
		incomplete,
		entry("user-7", "kpi-4", kpi.MustDate(2024, time.March, 5), 2),
	}
	assert.True(t, kpi.Aggregate(bucket, entries).Equal(decimal.NewFromInt(2)))
}

func TestPerUserAggregate_ZeroFillsActiveUsers(t *testing.T) {
	// GIVEN: An empty entry list but a non-empty active-user list
	// WHEN: Aggregating per user
	// THEN: Every active user maps to zero, never absent; inactive users
	//       are excluded entirely

	users := []kpi.User{
		{ID: "user-7", Active: true},
		{ID: "user-8", Active: true},
		{ID: "user-9", Active: false},
	}
	bucket := kpi.WeekBounds(kpi.MustDate(2024, time.March, 6))

	totals := kpi.PerUserAggregate(bucket, users, nil)

	require.Len(t, totals, 2)
	assert.True(t, totals["user-7"].IsZero())
	assert.True(t, totals["user-8"].IsZero())
	_, present := totals["user-9"]
	assert.False(t, present, "inactive user must not appear")
}

func TestPerUserAggregate_GroupsByUser(t *testing.T) {
	users := []kpi.User{{ID: "user-7", Active: true}, {ID: "user-8", Active: true}}
	bucket := kpi.WeekBounds(kpi.MustDate(2024, time.March, 6))

	entries := []kpi.ProgressEntry{
		entry("user-7", "kpi-3", kpi.MustDate(2024, time.March, 4), 5),
		entry("user-7", "kpi-4", kpi.MustDate(2024, time.March, 5), 2),
		entry("user-8", "kpi-3", kpi.MustDate(2024, time.March, 6), 5),
		entry("user-8", "kpi-3", kpi.MustDate(2024, time.March, 13), 5), // outside bucket
	}

	totals := kpi.PerUserAggregate(bucket, users, entries)
	assert.True(t, totals["user-7"].Equal(decimal.NewFromInt(7)))
	assert.True(t, totals["user-8"].Equal(decimal.NewFromInt(5)))
}

// =============================================================================
// TARGETS AND PERCENTAGES
// =============================================================================

func TestDepartmentTargets(t *testing.T) {
	weights := []decimal.Decimal{
		decimal.NewFromInt(5),
		decimal.NewFromInt(2),
		decimal.NewFromInt(3),
	}

	maxWeek, maxMonth := kpi.DepartmentTargets(weights, 4, 5)
	assert.True(t, maxWeek.Equal(decimal.NewFromInt(40)), "10 * 4 employees")
	assert.True(t, maxMonth.Equal(decimal.NewFromInt(200)), "40 * 5 weeks")
}

func TestDepartmentTargets_EmployeeCountFlooredToOne(t *testing.T) {
	// GIVEN: Zero active employees
	// WHEN: Computing targets
	// THEN: The count is floored to 1 so the denominator never collapses

	weights := []decimal.Decimal{decimal.NewFromInt(10)}
	maxWeek, maxMonth := kpi.DepartmentTargets(weights, 0, 4)
	assert.True(t, maxWeek.Equal(decimal.NewFromInt(10)))
	assert.True(t, maxMonth.Equal(decimal.NewFromInt(40)))
}

func TestPercentOfTarget_Clamped(t *testing.T) {
	hundred := decimal.NewFromInt(100)

	// Over-achievement is clamped; only the raw sum shows "went over"
	assert.Equal(t, 100, kpi.PercentOfTarget(decimal.NewFromInt(150), hundred))
	assert.Equal(t, 50, kpi.PercentOfTarget(decimal.NewFromInt(50), hundred))
	assert.Equal(t, 0, kpi.PercentOfTarget(decimal.Zero, decimal.Zero), "no division by zero")
	assert.Equal(t, 0, kpi.PercentOfTarget(decimal.NewFromInt(5), decimal.Zero))

	// Rounding, not truncation
	assert.Equal(t, 33, kpi.PercentOfTarget(decimal.NewFromInt(1), decimal.NewFromInt(3)))
	assert.Equal(t, 67, kpi.PercentOfTarget(decimal.NewFromInt(2), decimal.NewFromInt(3)))
}

// =============================================================================
// SUMMARIES
// =============================================================================

func TestWeekSummary(t *testing.T) {
	// GIVEN: Two active users, KPI weights 5 and 2, and three completions
	//        in the week of 2024-03-04
	// WHEN: Summarizing that week
	// THEN: Totals, zero-fill, and percent-of-target all line up

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Record(ctx, entry("user-7", "kpi-3", kpi.MustDate(2024, time.March, 4), 5), kpi.RepeatPerWeek))
	require.NoError(t, engine.Record(ctx, entry("user-7", "kpi-4", kpi.MustDate(2024, time.March, 5), 2), kpi.RepeatPerWeek))
	require.NoError(t, engine.Record(ctx, entry("user-8", "kpi-3", kpi.MustDate(2024, time.March, 6), 5), kpi.RepeatPerWeek))

	summary, err := engine.WeekSummary(ctx, kpi.MustDate(2024, time.March, 6))
	require.NoError(t, err)

	assert.Equal(t, kpi.MustDate(2024, time.March, 4), summary.Bucket.Start)
	assert.Equal(t, kpi.MustDate(2024, time.March, 10), summary.Bucket.End)

	// Department: total 12 of target 14 (weights 7 * 2 active users) = 86%
	assert.True(t, summary.DepartmentTotal.Equal(decimal.NewFromInt(12)))
	assert.True(t, summary.DepartmentTarget.Equal(decimal.NewFromInt(14)))
	assert.Equal(t, 86, summary.DepartmentPercent)

	// Per user: user-7 has 7/7 = 100%, user-8 has 5/7 = 71%
	require.Len(t, summary.PerUser, 2, "only active users appear")
	byID := map[kpi.UserID]kpi.UserTotal{}
	for _, row := range summary.PerUser {
		byID[row.User.ID] = row
	}
	assert.True(t, byID["user-7"].Total.Equal(decimal.NewFromInt(7)))
	assert.Equal(t, 100, byID["user-7"].Percent)
	assert.True(t, byID["user-8"].Total.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 71, byID["user-8"].Percent)
}

func TestPreviousWeekSummary_DisjointFromCurrentWeek(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	// One entry this week, one the week before
	require.NoError(t, engine.Record(ctx, entry("user-7", "kpi-3", kpi.MustDate(2024, time.March, 6), 5), kpi.RepeatPerWeek))
	require.NoError(t, engine.Record(ctx, entry("user-7", "kpi-3", kpi.MustDate(2024, time.February, 28), 5), kpi.RepeatPerWeek))

	ref := kpi.MustDate(2024, time.March, 6)
	prev, err := engine.PreviousWeekSummary(ctx, ref)
	require.NoError(t, err)

	assert.Equal(t, kpi.MustDate(2024, time.February, 26), prev.Bucket.Start)
	assert.Equal(t, kpi.MustDate(2024, time.March, 3), prev.Bucket.End)
	assert.True(t, prev.DepartmentTotal.Equal(decimal.NewFromInt(5)))
}

func TestMonthSummary_TargetScalesByWeeks(t *testing.T) {
	// GIVEN: January 2024 touches 5 ISO week buckets
	// WHEN: Summarizing the month
	// THEN: Department target = weights(7) * 2 active users * 5 weeks = 70

	engine, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Record(ctx, entry("user-7", "kpi-3", kpi.MustDate(2024, time.January, 15), 5), kpi.RepeatPerWeek))

	summary, err := engine.MonthSummary(ctx, 2024, time.January)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.WeeksInMonth)
	assert.True(t, summary.DepartmentTarget.Equal(decimal.NewFromInt(70)))
	assert.True(t, summary.UserTarget.Equal(decimal.NewFromInt(35)))
	assert.True(t, summary.DepartmentTotal.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, 7, summary.DepartmentPercent)
}
