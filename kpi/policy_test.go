package kpi_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tally/kpitrack/kpi"
)

func TestParseRepeatPolicy(t *testing.T) {
	for _, valid := range []string{"unlimited", "per_day", "per_week"} {
		p, err := kpi.ParseRepeatPolicy(valid)
		require.NoError(t, err)
		assert.True(t, p.Valid())
	}

	_, err := kpi.ParseRepeatPolicy("per_month")
	assert.ErrorIs(t, err, kpi.ErrUnknownPolicy)

	_, err = kpi.ParseRepeatPolicy("")
	assert.ErrorIs(t, err, kpi.ErrUnknownPolicy)
}

func TestRepeatPolicy_Bucket(t *testing.T) {
	wednesday := kpi.MustDate(2024, time.March, 6)

	// per_day: the single day
	bucket, bounded := kpi.RepeatPerDay.Bucket(wednesday)
	require.True(t, bounded)
	assert.Equal(t, kpi.DateRange{Start: wednesday, End: wednesday}, bucket)

	// per_week: the ISO week Monday..Sunday
	bucket, bounded = kpi.RepeatPerWeek.Bucket(wednesday)
	require.True(t, bounded)
	assert.Equal(t, kpi.MustDate(2024, time.March, 4), bucket.Start)
	assert.Equal(t, kpi.MustDate(2024, time.March, 10), bucket.End)

	// unlimited: no window
	_, bounded = kpi.RepeatUnlimited.Bucket(wednesday)
	assert.False(t, bounded)
}

func TestRepeatPolicy_BucketKey(t *testing.T) {
	wednesday := kpi.MustDate(2024, time.March, 6)

	assert.Equal(t, "2024-03-06", kpi.RepeatPerDay.BucketKey(wednesday, "entry-1"))
	assert.Equal(t, "2024-W10", kpi.RepeatPerWeek.BucketKey(wednesday, "entry-1"))

	// unlimited keys on the entry ID, so the unique index never trips
	assert.Equal(t, "entry-1", kpi.RepeatUnlimited.BucketKey(wednesday, "entry-1"))
}
