package scheduler

import (
	"fmt"
	"time"
)

// BucketCount is the number of weekday buckets an audience is split into
const BucketCount = 5

// WeekdayBucket maps Monday to 0 through Sunday to 6
func WeekdayBucket(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// IsWeekendBucket reports whether b falls on Saturday or Sunday
func IsWeekendBucket(b int) bool {
	return b >= BucketCount
}

// PeriodKey identifies the dedup period of a firing
type PeriodKey struct {
	Value string
	// Bucket is the weekday bucket for bucketed schemes, -1 otherwise
	Bucket int
}

func (k PeriodKey) String() string { return k.Value }

// Bucketed reports whether recipients are filtered by bucket
func (k PeriodKey) Bucketed() bool { return k.Bucket >= 0 }

// DailyKey keys a period by civil date
func DailyKey(c CivilTime) PeriodKey {
	return PeriodKey{Value: c.Date(), Bucket: -1}
}

// MonthlyBucketKey keys a period by month and weekday bucket, e.g. "2026-10:fri".
// ok is false on weekends.
func MonthlyBucketKey(c CivilTime) (PeriodKey, bool) {
	b := WeekdayBucket(c.Weekday)
	if IsWeekendBucket(b) {
		return PeriodKey{}, false
	}
	return PeriodKey{
		Value:  fmt.Sprintf("%04d-%02d:%s", c.Year, int(c.Month), c.WeekdayName()),
		Bucket: b,
	}, true
}

// WeeklyBucketKey keys a period by ISO week and weekday bucket, e.g. "2026-W42:fri".
// ok is false on weekends.
func WeeklyBucketKey(c CivilTime) (PeriodKey, bool) {
	b := WeekdayBucket(c.Weekday)
	if IsWeekendBucket(b) {
		return PeriodKey{}, false
	}
	year, week := time.Date(c.Year, c.Month, c.Day, 12, 0, 0, 0, time.UTC).ISOWeek()
	return PeriodKey{
		Value:  fmt.Sprintf("%04d-W%02d:%s", year, week, c.WeekdayName()),
		Bucket: b,
	}, true
}
