package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

func newTestGate(t *testing.T, now time.Time, runs RunLookup) (*Gate, *mutableClock) {
	t.Helper()
	clock := &mutableClock{t: now}
	civil, err := NewCivilResolver(clock, testTZ)
	require.NoError(t, err)
	if runs == nil {
		runs = &fakeRuns{}
	}
	return NewGate(civil, runs, utils.DefaultTimeTolerance), clock
}

func TestGateDayOfMonthScenario(t *testing.T) {
	c := emailCampaign(1)
	c.DayOfMonth = utils.ToPtr(15)

	tests := []struct {
		name   string
		now    time.Time
		fire   bool
		reason Reason
	}{
		{"day 15 at 11:04 fires", nyTime(t, 2026, time.June, 15, 11, 4), true, ""},
		{"day 15 at 10:50 fires", nyTime(t, 2026, time.June, 15, 10, 50), true, ""},
		{"day 15 at 11:10 fires", nyTime(t, 2026, time.June, 15, 11, 10), true, ""},
		{"day 15 at 11:11 is outside time window", nyTime(t, 2026, time.June, 15, 11, 11), false, ReasonOutsideTimeWindow},
		{"day 16 at 11:00 is not scheduled", nyTime(t, 2026, time.June, 16, 11, 0), false, ReasonNotScheduledDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newTestGate(t, tt.now, nil)
			d, err := g.Evaluate(context.Background(), c, false)
			require.NoError(t, err)
			assert.Equal(t, tt.fire, d.Fire)
			assert.Equal(t, tt.reason, d.Reason)
			if tt.fire {
				assert.Equal(t, "2026-06-15", d.PeriodKey.Value)
			}
		})
	}
}

func TestGateWeekend(t *testing.T) {
	g, _ := newTestGate(t, nyTime(t, 2026, time.October, 17, 11, 0), nil)

	d, err := g.Evaluate(context.Background(), emailCampaign(1), false)
	require.NoError(t, err)
	assert.False(t, d.Fire)
	assert.Equal(t, ReasonWeekend, d.Reason)

	t.Run("force fires a daily campaign on a weekend", func(t *testing.T) {
		d, err := g.Evaluate(context.Background(), emailCampaign(1), true)
		require.NoError(t, err)
		assert.True(t, d.Fire)
		assert.Equal(t, "2026-10-17", d.PeriodKey.Value)
	})

	t.Run("force cannot fire a bucket campaign on a weekend", func(t *testing.T) {
		c := emailCampaign(1)
		c.ScheduleMode = models.ScheduleModeMonthlyBucket
		d, err := g.Evaluate(context.Background(), c, true)
		require.NoError(t, err)
		assert.False(t, d.Fire)
		assert.Equal(t, ReasonWeekend, d.Reason)
	})
}

func TestGateInactive(t *testing.T) {
	g, clock := newTestGate(t, nyTime(t, 2026, time.October, 16, 11, 0), nil)
	c := emailCampaign(1)
	c.IsActive = utils.ToPtr(false)

	d, err := g.Evaluate(context.Background(), c, false)
	require.NoError(t, err)
	assert.Equal(t, ReasonInactive, d.Reason)

	d, err = g.Evaluate(context.Background(), c, true)
	require.NoError(t, err)
	assert.True(t, d.Fire)

	t.Run("weekend wins over inactive", func(t *testing.T) {
		clock.Set(nyTime(t, 2026, time.October, 17, 11, 0))
		d, err := g.Evaluate(context.Background(), c, false)
		require.NoError(t, err)
		assert.Equal(t, ReasonWeekend, d.Reason)
	})
}

func TestGateEvaluateAtIgnoresClock(t *testing.T) {
	g, clock := newTestGate(t, nyTime(t, 2026, time.October, 16, 11, 0), nil)
	tick := g.civil.CivilNow()
	clock.Set(nyTime(t, 2026, time.October, 16, 11, 45))

	d, err := g.EvaluateAt(context.Background(), emailCampaign(1), false, tick)
	require.NoError(t, err)
	assert.True(t, d.Fire)

	d, err = g.Evaluate(context.Background(), emailCampaign(1), false)
	require.NoError(t, err)
	assert.Equal(t, ReasonOutsideTimeWindow, d.Reason)
}

func TestGateScheduleUnset(t *testing.T) {
	g, _ := newTestGate(t, nyTime(t, 2026, time.October, 16, 11, 0), nil)
	c := emailCampaign(1)
	c.SendHour = nil

	_, err := g.Evaluate(context.Background(), c, false)
	ce, ok := IsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, CodeScheduleUnset, ce.Code)

	d, err := g.Evaluate(context.Background(), c, true)
	require.NoError(t, err)
	assert.True(t, d.Fire)
}

func TestGateUnknownScheduleMode(t *testing.T) {
	g, _ := newTestGate(t, nyTime(t, 2026, time.October, 16, 11, 0), nil)
	c := emailCampaign(1)
	c.ScheduleMode = "hourly"

	_, err := g.Evaluate(context.Background(), c, false)
	ce, ok := IsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, CodeScheduleModeInvalid, ce.Code)
}

func TestGateWindowAcrossDST(t *testing.T) {
	loc := nyLoc(t)
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, loc)

	tests := []struct {
		name   string
		now    time.Time
		fire   bool
		ended  bool
		before bool
	}{
		{"before window", nyTime(t, 2026, time.February, 27, 11, 0), false, false, true},
		{"first weekday in window", nyTime(t, 2026, time.March, 2, 11, 0), true, false, false},
		{"day after the transition", nyTime(t, 2026, time.March, 9, 11, 0), true, false, false},
		{"end day is exclusive", nyTime(t, 2026, time.March, 10, 11, 0), false, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := emailCampaign(1)
			c.WindowStart = &start
			c.StopAfterDays = utils.ToPtr(9)

			g, _ := newTestGate(t, tt.now, nil)
			d, err := g.Evaluate(context.Background(), c, false)
			require.NoError(t, err)
			assert.Equal(t, tt.fire, d.Fire)
			if !tt.fire {
				assert.Equal(t, ReasonOutsideWindow, d.Reason)
				assert.Equal(t, tt.ended, d.WindowEnded)
			}
		})
	}
}

func TestGateExplicitWindowEndWins(t *testing.T) {
	loc := nyLoc(t)
	start := time.Date(2026, time.October, 1, 0, 0, 0, 0, loc)
	end := time.Date(2026, time.October, 16, 0, 0, 0, 0, loc)
	c := emailCampaign(1)
	c.WindowStart, c.WindowEnd = &start, &end
	c.StopAfterDays = utils.ToPtr(365)

	g, _ := newTestGate(t, nyTime(t, 2026, time.October, 16, 11, 0), nil)
	d, err := g.Evaluate(context.Background(), c, false)
	require.NoError(t, err)
	assert.Equal(t, ReasonOutsideWindow, d.Reason)
	assert.True(t, d.WindowEnded)

	d, err = g.Evaluate(context.Background(), c, true)
	require.NoError(t, err)
	assert.True(t, d.Fire, "force bypasses the window")
}

func TestGateAlreadyRanEvenWhenForced(t *testing.T) {
	runs := &fakeRuns{}
	_, _, err := runs.InsertIfAbsent(context.Background(), &models.CampaignRun{CampaignID: 1, PeriodKey: "2026-10-16", SentCount: 3})
	require.NoError(t, err)

	g, _ := newTestGate(t, nyTime(t, 2026, time.October, 16, 11, 0), runs)
	for _, force := range []bool{false, true} {
		d, err := g.Evaluate(context.Background(), emailCampaign(1), force)
		require.NoError(t, err)
		assert.False(t, d.Fire)
		assert.Equal(t, ReasonAlreadyRan, d.Reason)
		require.NotNil(t, d.Existing)
		assert.Equal(t, 3, d.Existing.SentCount)
	}
}

func TestGateBucketPeriodKeys(t *testing.T) {
	now := nyTime(t, 2026, time.October, 16, 11, 0)

	c := emailCampaign(1)
	c.ScheduleMode = models.ScheduleModeMonthlyBucket
	g, _ := newTestGate(t, now, nil)
	d, err := g.Evaluate(context.Background(), c, false)
	require.NoError(t, err)
	assert.Equal(t, "2026-10:fri", d.PeriodKey.Value)
	assert.Equal(t, 4, d.PeriodKey.Bucket)

	c.ScheduleMode = models.ScheduleModeWeeklyBucket
	d, err = g.Evaluate(context.Background(), c, false)
	require.NoError(t, err)
	assert.Equal(t, "2026-W42:fri", d.PeriodKey.Value)
}

func TestGateToleranceIsConfigurable(t *testing.T) {
	clock := &mutableClock{t: nyTime(t, 2026, time.October, 16, 11, 3)}
	civil, err := NewCivilResolver(clock, testTZ)
	require.NoError(t, err)
	g := NewGate(civil, &fakeRuns{}, 2*time.Minute)

	d, err := g.Evaluate(context.Background(), emailCampaign(1), false)
	require.NoError(t, err)
	assert.Equal(t, ReasonOutsideTimeWindow, d.Reason)

	clock.Set(nyTime(t, 2026, time.October, 16, 10, 58))
	d, err = g.Evaluate(context.Background(), emailCampaign(1), false)
	require.NoError(t, err)
	assert.True(t, d.Fire)
}
