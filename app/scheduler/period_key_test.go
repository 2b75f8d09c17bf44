package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWeekdayBucket(t *testing.T) {
	want := map[time.Weekday]int{
		time.Monday:    0,
		time.Tuesday:   1,
		time.Wednesday: 2,
		time.Thursday:  3,
		time.Friday:    4,
		time.Saturday:  5,
		time.Sunday:    6,
	}
	for day, bucket := range want {
		assert.Equal(t, bucket, WeekdayBucket(day), day.String())
		assert.Equal(t, bucket >= 5, IsWeekendBucket(bucket), day.String())
	}
}

func civil(y int, m time.Month, d int) CivilTime {
	at := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return CivilTime{Year: y, Month: m, Day: d, Hour: 12, Weekday: at.Weekday()}
}

func TestDailyKey(t *testing.T) {
	k := DailyKey(civil(2026, time.October, 6))
	assert.Equal(t, "2026-10-06", k.Value)
	assert.False(t, k.Bucketed())
}

func TestMonthlyBucketKey(t *testing.T) {
	k, ok := MonthlyBucketKey(civil(2026, time.October, 16))
	assert.True(t, ok)
	assert.Equal(t, "2026-10:fri", k.Value)
	assert.Equal(t, 4, k.Bucket)
	assert.True(t, k.Bucketed())

	_, ok = MonthlyBucketKey(civil(2026, time.October, 17))
	assert.False(t, ok, "saturday has no period")
}

func TestWeeklyBucketKey(t *testing.T) {
	tests := []struct {
		name string
		at   CivilTime
		want string
	}{
		{"mid year monday", civil(2026, time.October, 12), "2026-W42:mon"},
		{"new year's day belongs to previous iso year", civil(2027, time.January, 1), "2026-W53:fri"},
		{"december monday belongs to next iso year", civil(2025, time.December, 29), "2026-W01:mon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, ok := WeeklyBucketKey(tt.at)
			assert.True(t, ok)
			assert.Equal(t, tt.want, k.Value)
		})
	}

	_, ok := WeeklyBucketKey(civil(2026, time.November, 1))
	assert.False(t, ok, "sunday has no period")
}

func TestBucketsPartitionAudience(t *testing.T) {
	for n := uint(1); n <= 53; n++ {
		audience := contacts(1, idRange(1, n)...)
		seen := map[uint]int{}
		for b := 0; b < BucketCount; b++ {
			for _, c := range SelectRecipients(audience, PeriodKey{Value: "k", Bucket: b}, nil, 0) {
				seen[c.ID]++
			}
		}
		assert.Len(t, seen, int(n))
		for id, count := range seen {
			assert.Equal(t, 1, count, "contact %d in %d buckets", id, count)
		}
	}
}
