package businessflow

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedricperpignand1/bbbmailer/app/scheduler"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

type fakeRunner struct {
	due    []*scheduler.RunResult
	single *scheduler.RunResult
	err    error
	forced []bool
}

func (f *fakeRunner) RunCampaign(_ context.Context, _ uint, force bool) (*scheduler.RunResult, error) {
	f.forced = append(f.forced, force)
	return f.single, f.err
}

func (f *fakeRunner) RunDue(_ context.Context, force bool) ([]*scheduler.RunResult, error) {
	f.forced = append(f.forced, force)
	return f.due, f.err
}

func TestRunDueAggregates(t *testing.T) {
	runner := &fakeRunner{due: []*scheduler.RunResult{
		{OK: true, CampaignID: 1, RunID: utils.ToPtr(uint(3)), Queued: 4, Sent: 3, Failed: 1,
			Errors: []scheduler.RecipientError{{Recipient: "a@example.com", Error: "bounced"}}},
		{OK: true, Skipped: true, CampaignID: 2, Reason: "already_ran", RunID: utils.ToPtr(uint(2)), Sent: 9},
		{OK: false, CampaignID: 3, Reason: scheduler.CodeAudienceEmpty},
	}}
	flow := NewDispatchFlow(runner, zerolog.Nop())

	resp, err := flow.RunDue(context.Background(), true, nil)
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.True(t, resp.Forced)
	assert.Equal(t, 3, resp.Campaigns)
	assert.Equal(t, 1, resp.Fired)
	assert.Equal(t, 12, resp.Sent)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "bounced", resp.Results[0].Errors[0].Error)
	assert.Equal(t, scheduler.CodeAudienceEmpty, resp.Results[2].Reason)
	assert.Equal(t, []bool{true}, runner.forced)
}

func TestRunCampaignMapsNotFound(t *testing.T) {
	flow := NewDispatchFlow(&fakeRunner{err: scheduler.ErrCampaignNotFound}, zerolog.Nop())
	_, err := flow.RunCampaign(context.Background(), 8, false, nil)
	assert.True(t, IsAutoCampaignNotFound(err))

	flow = NewDispatchFlow(&fakeRunner{err: errors.New("db down")}, zerolog.Nop())
	_, err = flow.RunCampaign(context.Background(), 8, false, nil)
	require.Error(t, err)
	assert.Equal(t, "RUN_FAILED", ErrorCode(err))
}

func TestRunCampaignConvertsResult(t *testing.T) {
	flow := NewDispatchFlow(&fakeRunner{single: &scheduler.RunResult{OK: true, CampaignID: 8, PeriodKey: "2026-03-10", Sent: 2}}, zerolog.Nop())
	out, err := flow.RunCampaign(context.Background(), 8, false, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(8), out.CampaignID)
	assert.Equal(t, "2026-03-10", out.PeriodKey)
	assert.Equal(t, 2, out.Sent)
}
