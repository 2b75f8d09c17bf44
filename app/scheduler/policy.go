package scheduler

import (
	"github.com/cedricperpignand1/bbbmailer/models"
)

// SchedulePolicy is the per-mode part of the eligibility decision
type SchedulePolicy interface {
	Mode() models.ScheduleMode
	// PeriodKey derives the dedup key; ok is false when the civil day has no period
	PeriodKey(c CivilTime) (key PeriodKey, ok bool)
	// OnScheduledDay reports whether c falls on a day the policy sends
	OnScheduledDay(c CivilTime) bool
}

type dailyPolicy struct {
	dayOfMonth *int
}

func (dailyPolicy) Mode() models.ScheduleMode { return models.ScheduleModeDaily }

func (dailyPolicy) PeriodKey(c CivilTime) (PeriodKey, bool) { return DailyKey(c), true }

func (p dailyPolicy) OnScheduledDay(c CivilTime) bool {
	return p.dayOfMonth == nil || *p.dayOfMonth == c.Day
}

type monthlyBucketPolicy struct{}

func (monthlyBucketPolicy) Mode() models.ScheduleMode { return models.ScheduleModeMonthlyBucket }

func (monthlyBucketPolicy) PeriodKey(c CivilTime) (PeriodKey, bool) { return MonthlyBucketKey(c) }

func (monthlyBucketPolicy) OnScheduledDay(c CivilTime) bool {
	return !IsWeekendBucket(WeekdayBucket(c.Weekday))
}

type weeklyBucketPolicy struct{}

func (weeklyBucketPolicy) Mode() models.ScheduleMode { return models.ScheduleModeWeeklyBucket }

func (weeklyBucketPolicy) PeriodKey(c CivilTime) (PeriodKey, bool) { return WeeklyBucketKey(c) }

func (weeklyBucketPolicy) OnScheduledDay(c CivilTime) bool {
	return !IsWeekendBucket(WeekdayBucket(c.Weekday))
}

// PolicyFor selects the policy variant of a campaign. An empty mode means daily.
func PolicyFor(c *models.AutoCampaign) (SchedulePolicy, error) {
	switch c.ScheduleMode {
	case models.ScheduleModeDaily, "":
		return dailyPolicy{dayOfMonth: c.DayOfMonth}, nil
	case models.ScheduleModeMonthlyBucket:
		return monthlyBucketPolicy{}, nil
	case models.ScheduleModeWeeklyBucket:
		return weeklyBucketPolicy{}, nil
	default:
		return nil, newConfigError(CodeScheduleModeInvalid, "campaign %d has unknown schedule mode %q", c.ID, c.ScheduleMode)
	}
}
