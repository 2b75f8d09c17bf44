package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

// Reason is the machine readable code of a skipped trigger
type Reason string

const (
	ReasonInactive          Reason = "inactive"
	ReasonWeekend           Reason = "weekend"
	ReasonNotScheduledDay   Reason = "not_scheduled_day"
	ReasonOutsideWindow     Reason = "outside_window"
	ReasonOutsideTimeWindow Reason = "outside_time_window"
	ReasonAlreadyRan        Reason = "already_ran"
	ReasonInProgress        Reason = "in_progress"
)

// RunLookup finds the run record of a period
type RunLookup interface {
	ByPeriod(ctx context.Context, campaignID uint, periodKey string) (*models.CampaignRun, error)
}

// Decision is the outcome of the eligibility gate: Fire, or a skip with Reason
type Decision struct {
	Fire      bool
	Reason    Reason
	PeriodKey PeriodKey
	Civil     CivilTime
	Policy    SchedulePolicy
	// Existing is set when Reason is already_ran
	Existing *models.CampaignRun
	// WindowEnded is set when the campaign's window has closed for good
	WindowEnded bool
	Detail      string
}

func skip(reason Reason, civil CivilTime, detail string, args ...any) Decision {
	return Decision{Reason: reason, Civil: civil, Detail: fmt.Sprintf(detail, args...)}
}

// Gate decides whether a campaign fires now
type Gate struct {
	civil     *CivilResolver
	runs      RunLookup
	tolerance time.Duration
}

func NewGate(civil *CivilResolver, runs RunLookup, tolerance time.Duration) *Gate {
	if tolerance < 0 {
		tolerance = 0
	}
	return &Gate{civil: civil, runs: runs, tolerance: tolerance}
}

// Evaluate runs the checks in order and stops at the first skip.
// force bypasses the activity, calendar, window and time checks but never the
// period dedup.
func (g *Gate) Evaluate(ctx context.Context, c *models.AutoCampaign, force bool) (Decision, error) {
	return g.EvaluateAt(ctx, c, force, g.civil.CivilNow())
}

// EvaluateAt is Evaluate against a civil time read by the caller, so every
// campaign of one trigger is judged at the same instant.
func (g *Gate) EvaluateAt(ctx context.Context, c *models.AutoCampaign, force bool, now CivilTime) (Decision, error) {
	policy, err := PolicyFor(c)
	if err != nil {
		return Decision{}, err
	}

	bucket := WeekdayBucket(now.Weekday)
	if !force && IsWeekendBucket(bucket) {
		return skip(ReasonWeekend, now, "%s is a weekend day", now.Date()), nil
	}

	if !force && !c.Active() {
		return skip(ReasonInactive, now, "campaign %d is inactive", c.ID), nil
	}

	if !force && !policy.OnScheduledDay(now) {
		return skip(ReasonNotScheduledDay, now, "day %d is not the scheduled day %d", now.Day, utils.Deref(c.DayOfMonth, 0)), nil
	}

	if !force {
		if d, inside := g.checkWindow(c, now); !inside {
			return d, nil
		}
	}

	if !force {
		if c.SendHour == nil || c.SendMinute == nil {
			return Decision{}, newConfigError(CodeScheduleUnset, "campaign %d has no send hour/minute", c.ID)
		}
		scheduled := *c.SendHour*60 + *c.SendMinute
		diff := now.MinuteOfDay() - scheduled
		if diff < 0 {
			diff = -diff
		}
		if time.Duration(diff)*time.Minute > g.tolerance {
			return skip(ReasonOutsideTimeWindow, now, "now %02d:%02d is %d minutes from scheduled %02d:%02d",
				now.Hour, now.Minute, diff, *c.SendHour, *c.SendMinute), nil
		}
	}

	key, ok := policy.PeriodKey(now)
	if !ok {
		// bucket policies have no period on weekends, even when forced
		return skip(ReasonWeekend, now, "%s has no %s period", now.Date(), policy.Mode()), nil
	}

	existing, err := g.runs.ByPeriod(ctx, c.ID, key.Value)
	if err != nil {
		return Decision{}, fmt.Errorf("lookup run of campaign %d period %s: %w", c.ID, key.Value, err)
	}
	if existing != nil {
		d := skip(ReasonAlreadyRan, now, "run %d already fired for %s", existing.ID, key.Value)
		d.PeriodKey = key
		d.Existing = existing
		return d, nil
	}

	return Decision{Fire: true, PeriodKey: key, Civil: now, Policy: policy}, nil
}

// checkWindow compares civil midnight of today against [start, end).
// The end is the explicit window end, or start plus StopAfterDays civil days.
func (g *Gate) checkWindow(c *models.AutoCampaign, now CivilTime) (Decision, bool) {
	start, end := g.Window(c)
	if start == nil && end == nil {
		return Decision{}, true
	}
	midnight := g.civil.MidnightOf(now)
	if start != nil && midnight.Before(*start) {
		return skip(ReasonOutsideWindow, now, "window opens %s", start.In(g.civil.Location()).Format(time.DateOnly)), false
	}
	if end != nil && !midnight.Before(*end) {
		d := skip(ReasonOutsideWindow, now, "window closed %s", end.In(g.civil.Location()).Format(time.DateOnly))
		d.WindowEnded = true
		return d, false
	}
	return Decision{}, true
}

// Window returns the effective validity interval of a campaign
func (g *Gate) Window(c *models.AutoCampaign) (start, end *time.Time) {
	start = c.WindowStart
	end = c.WindowEnd
	if end == nil && start != nil && c.StopAfterDays != nil && *c.StopAfterDays > 0 {
		e := g.civil.AddCivilDays(*start, *c.StopAfterDays)
		end = &e
	}
	return start, end
}
