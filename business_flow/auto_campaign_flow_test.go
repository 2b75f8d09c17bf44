package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedricperpignand1/bbbmailer/app/dto"
	"github.com/cedricperpignand1/bbbmailer/app/scheduler"
	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

func emailRequest() *dto.UpsertAutoCampaignRequest {
	return &dto.UpsertAutoCampaignRequest{
		Name:       "  Spring outreach ",
		Channel:    "email",
		CategoryID: 7,
		Subject:    utils.ToPtr("Hello {{firstName}}"),
		Body:       utils.ToPtr("Project {{project}} is ready"),
		Addresses:  []string{" 12 Main St ", "", "12 Main St", "40 Elm Ave"},
	}
}

func TestUpsertCreatesWithDefaultsAndOpensWindow(t *testing.T) {
	h := newFlowHarness(t)
	req := emailRequest()
	req.IsActive = utils.ToPtr(true)
	req.MaxPerDay = utils.ToPtr(1000)
	req.SendMinute = utils.ToPtr(-3)

	out, err := h.flow.Upsert(context.Background(), req, NewClientMetadata("127.0.0.1", "test"))
	require.NoError(t, err)
	require.Len(t, h.campaigns.saved, 1)

	assert.Equal(t, uint(1), out.ID)
	assert.Equal(t, "Spring outreach", out.Name)
	assert.True(t, out.IsActive)
	assert.Equal(t, 500, out.MaxPerDay)
	assert.Equal(t, 11, *out.SendHour)
	assert.Equal(t, 0, *out.SendMinute)
	assert.Equal(t, 30, *out.StopAfterDays)
	assert.Equal(t, "daily", out.ScheduleMode)
	assert.Equal(t, "hashed", out.AddressStrategy)
	assert.Equal(t, models.ContentTypeText, out.ContentType)
	assert.Equal(t, []string{"12 Main St", "40 Elm Ave"}, out.Addresses)
	require.NotNil(t, out.WindowStart)
	require.NotNil(t, out.WindowEnd)
	assert.Equal(t, "2026-03-10", *out.WindowStart)
	assert.Equal(t, "2026-04-09", *out.WindowEnd)
}

func TestUpsertSMSDefaultsToRotatingPlainText(t *testing.T) {
	h := newFlowHarness(t)
	out, err := h.flow.Upsert(context.Background(), &dto.UpsertAutoCampaignRequest{
		Name:        "texts",
		Channel:     "sms",
		CategoryID:  3,
		Body:        utils.ToPtr("Hi {{firstName}}"),
		ContentType: models.ContentTypeHTML,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "rotating", out.AddressStrategy)
	assert.Equal(t, models.ContentTypeText, out.ContentType)
	assert.False(t, out.IsActive)
	assert.Nil(t, out.WindowStart)
}

func TestUpsertValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(h *flowHarness, req *dto.UpsertAutoCampaignRequest)
		want   error
	}{
		{
			name:   "email without subject",
			mutate: func(_ *flowHarness, req *dto.UpsertAutoCampaignRequest) { req.Subject = utils.ToPtr("  ") },
			want:   ErrSubjectRequired,
		},
		{
			name:   "no body and no template",
			mutate: func(_ *flowHarness, req *dto.UpsertAutoCampaignRequest) { req.Body = nil },
			want:   ErrContentRequired,
		},
		{
			name:   "unknown template",
			mutate: func(_ *flowHarness, req *dto.UpsertAutoCampaignRequest) { req.TemplateID = utils.ToPtr(uint(99)) },
			want:   ErrTemplateNotFound,
		},
		{
			name: "window end before start",
			mutate: func(_ *flowHarness, req *dto.UpsertAutoCampaignRequest) {
				req.WindowStart = utils.ToPtr("2026-05-01")
				req.WindowEnd = utils.ToPtr("2026-04-01")
			},
			want: ErrInvalidWindow,
		},
		{
			name:   "malformed window date",
			mutate: func(_ *flowHarness, req *dto.UpsertAutoCampaignRequest) { req.WindowEnd = utils.ToPtr("May 1") },
			want:   ErrInvalidDate,
		},
		{
			name: "channel change",
			mutate: func(h *flowHarness, req *dto.UpsertAutoCampaignRequest) {
				h.campaigns.byID[5] = &models.AutoCampaign{ID: 5, Channel: models.ChannelSMS}
				req.ID = utils.ToPtr(uint(5))
			},
			want: ErrChannelImmutable,
		},
		{
			name:   "missing campaign",
			mutate: func(_ *flowHarness, req *dto.UpsertAutoCampaignRequest) { req.ID = utils.ToPtr(uint(42)) },
			want:   ErrAutoCampaignNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFlowHarness(t)
			req := emailRequest()
			tt.mutate(h, req)

			_, err := h.flow.Upsert(context.Background(), req, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, h.campaigns.saved)
			assert.Empty(t, h.campaigns.updated)
		})
	}
}

func TestUpsertExplicitWindowWins(t *testing.T) {
	h := newFlowHarness(t)
	req := emailRequest()
	req.IsActive = utils.ToPtr(true)
	req.WindowStart = utils.ToPtr("2026-03-16")
	req.WindowEnd = utils.ToPtr("2026-03-21")

	out, err := h.flow.Upsert(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-16", *out.WindowStart)
	assert.Equal(t, "2026-03-21", *out.WindowEnd)
}

func TestUpsertUpdateKeepsWindowOfActiveCampaign(t *testing.T) {
	h := newFlowHarness(t)
	start := time.Date(2026, time.March, 1, 5, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 30)
	h.campaigns.byID[9] = &models.AutoCampaign{
		ID: 9, Channel: models.ChannelEmail, IsActive: utils.ToPtr(true),
		WindowStart: &start, WindowEnd: &end,
	}
	req := emailRequest()
	req.ID = utils.ToPtr(uint(9))

	out, err := h.flow.Upsert(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, h.campaigns.updated, 1)
	assert.True(t, out.IsActive)
	assert.Equal(t, "2026-03-01", *out.WindowStart)
	assert.Equal(t, start, *h.campaigns.updated[0].WindowStart)
}

func TestToggleReactivationReopensWindow(t *testing.T) {
	h := newFlowHarness(t)
	h.campaigns.byID[4] = &models.AutoCampaign{ID: 4, Channel: models.ChannelEmail, IsActive: utils.ToPtr(false), StopAfterDays: utils.ToPtr(7)}

	out, err := h.flow.Toggle(context.Background(), 4, &dto.ToggleAutoCampaignRequest{Active: utils.ToPtr(true)}, nil)
	require.NoError(t, err)
	assert.True(t, out.IsActive)
	require.Len(t, h.campaigns.setActive, 1)
	call := h.campaigns.setActive[0]
	require.NotNil(t, call.start)
	require.NotNil(t, call.end)
	assert.Equal(t, "2026-03-10", *out.WindowStart)
	assert.Equal(t, "2026-03-17", *out.WindowEnd)

	_, err = h.flow.Toggle(context.Background(), 4, &dto.ToggleAutoCampaignRequest{Active: utils.ToPtr(false)}, nil)
	require.NoError(t, err)
	require.Len(t, h.campaigns.setActive, 2)
	assert.False(t, h.campaigns.setActive[1].active)
	assert.Nil(t, h.campaigns.setActive[1].start)
}

func TestToggleRequiresActive(t *testing.T) {
	h := newFlowHarness(t)
	_, err := h.flow.Toggle(context.Background(), 4, &dto.ToggleAutoCampaignRequest{}, nil)
	assert.True(t, IsValidationFailed(err))
}

func TestListReturnsCampaignsWithRecentRuns(t *testing.T) {
	h := newFlowHarness(t)
	for id := uint(1); id <= 3; id++ {
		c := &models.AutoCampaign{ID: id, Name: "c", Channel: models.ChannelEmail, IsActive: utils.ToPtr(id != 2)}
		h.campaigns.byID[id] = c
	}
	h.campaigns.byID[3].Channel = models.ChannelSMS
	for i, key := range []string{"2026-03-02", "2026-03-03", "2026-03-04", "2026-03-05"} {
		h.runs.runs = append(h.runs.runs, &models.CampaignRun{ID: uint(i + 1), UUID: uuid.New(), CampaignID: 1, PeriodKey: key})
	}
	ctx := context.Background()

	out, err := h.flow.List(ctx, &dto.ListAutoCampaignsRequest{Page: 1, Limit: 2, Runs: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Pagination.Total)
	assert.Equal(t, 2, out.Pagination.TotalPages)
	require.Len(t, out.Items, 2)
	assert.Equal(t, uint(3), out.Items[0].Campaign.ID)
	assert.Empty(t, out.Items[0].RecentRuns)

	out, err = h.flow.List(ctx, &dto.ListAutoCampaignsRequest{Page: 2, Limit: 2, Runs: 3})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	first := out.Items[0]
	assert.Equal(t, uint(1), first.Campaign.ID)
	require.Len(t, first.RecentRuns, 3)
	assert.Equal(t, "2026-03-05", first.RecentRuns[0].PeriodKey)

	t.Run("filters", func(t *testing.T) {
		out, err := h.flow.List(ctx, &dto.ListAutoCampaignsRequest{Page: 1, Limit: 10, Active: utils.ToPtr(true), Channel: utils.ToPtr("email")})
		require.NoError(t, err)
		require.Len(t, out.Items, 1)
		assert.Equal(t, uint(1), out.Items[0].Campaign.ID)
	})
}

func TestStateSummarizesCampaign(t *testing.T) {
	h := newFlowHarness(t)
	start := h.civil.MidnightOf(h.civil.CivilNow())
	end := h.civil.AddCivilDays(start, 30)
	h.campaigns.byID[1] = &models.AutoCampaign{
		ID: 1, Channel: models.ChannelEmail, IsActive: utils.ToPtr(true), CategoryID: 7,
		ScheduleMode: models.ScheduleModeDaily, SendHour: utils.ToPtr(11), SendMinute: utils.ToPtr(0),
		WindowStart: &start, WindowEnd: &end,
	}
	for id := uint(1); id <= 4; id++ {
		h.contacts.contacts = append(h.contacts.contacts, &models.Contact{ID: id, CategoryID: 7, Email: utils.ToPtr("c@example.com")})
	}
	h.contacts.contacts = append(h.contacts.contacts, &models.Contact{ID: 5, CategoryID: 7})
	h.runs.runs = []*models.CampaignRun{{ID: 1, UUID: uuid.New(), CampaignID: 1, PeriodKey: "2026-03-09", Status: models.CampaignRunStatusCompleted}}
	h.logs.logs = []*models.SendLog{
		{ID: 1, RunID: 1, CampaignID: 1, ContactID: 1, Status: models.SendLogStatusSent},
		{ID: 2, RunID: 1, CampaignID: 1, ContactID: 2, Status: models.SendLogStatusFailed},
	}

	state, err := h.flow.State(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, state.Runs, 1)
	assert.Len(t, state.Logs, 2)
	assert.Equal(t, uint(2), state.Logs[0].ID)
	assert.Equal(t, int64(1), state.Totals["sent"])
	assert.Equal(t, int64(1), state.Totals["failed"])
	assert.Equal(t, int64(0), state.Totals["queued"])
	// contact 5 has no email; contacts 1 and 2 are already done
	assert.Equal(t, 2, state.RemainingAudience)
	assert.False(t, state.NextCheck.Fire)
	assert.Equal(t, string(scheduler.ReasonOutsideTimeWindow), state.NextCheck.Reason)
	assert.Equal(t, "2026-03-10", state.NextCheck.CivilNow[:10])
}

func TestStateReportsConfigErrorInNextCheck(t *testing.T) {
	h := newFlowHarness(t)
	start := h.civil.MidnightOf(h.civil.CivilNow())
	h.campaigns.byID[1] = &models.AutoCampaign{
		ID: 1, Channel: models.ChannelEmail, IsActive: utils.ToPtr(true),
		ScheduleMode: models.ScheduleMode("hourly"), WindowStart: &start,
	}
	state, err := h.flow.State(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, scheduler.CodeScheduleModeInvalid, state.NextCheck.Reason)
}

func TestTestSendMapsErrors(t *testing.T) {
	h := newFlowHarness(t)

	resp, err := h.flow.TestSend(context.Background(), 1, &dto.TestSendRequest{To: " a@example.com "}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", resp.To)
	assert.Equal(t, "provider-1", resp.ProviderMessageID)

	h.sender.err = scheduler.ErrCampaignNotFound
	_, err = h.flow.TestSend(context.Background(), 1, &dto.TestSendRequest{To: "a@example.com"}, nil)
	assert.True(t, IsAutoCampaignNotFound(err))

	h.sender.err = &scheduler.ConfigError{Code: scheduler.CodeSenderMissing, Err: errors.New("no sender")}
	_, err = h.flow.TestSend(context.Background(), 1, &dto.TestSendRequest{To: "a@example.com"}, nil)
	assert.True(t, IsCampaignMisconfigured(err))
	assert.Equal(t, scheduler.CodeSenderMissing, ErrorCode(err))

	h.sender.err = errors.New("relay returned 502")
	_, err = h.flow.TestSend(context.Background(), 1, &dto.TestSendRequest{To: "a@example.com"}, nil)
	assert.True(t, IsTransportFailed(err))
}

func TestExportRun(t *testing.T) {
	h := newFlowHarness(t)
	h.campaigns.byID[1] = &models.AutoCampaign{ID: 1, Name: "weekly", Channel: models.ChannelEmail, ScheduleMode: models.ScheduleModeWeeklyBucket}
	h.runs.runs = []*models.CampaignRun{
		{ID: 10, UUID: uuid.New(), CampaignID: 1, PeriodKey: "2026-W11:tue", Scheme: models.ScheduleModeWeeklyBucket, FiredAt: time.Now()},
		{ID: 11, UUID: uuid.New(), CampaignID: 2, PeriodKey: "2026-03-10"},
	}
	h.logs.logs = []*models.SendLog{{ID: 1, RunID: 10, CampaignID: 1, ContactID: 3, Recipient: "x@example.com", Status: models.SendLogStatusSent}}

	name, data, err := h.flow.ExportRun(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "campaign-1-run-2026-W11-tue.xlsx", name)
	assert.NotEmpty(t, data)

	_, _, err = h.flow.ExportRun(context.Background(), 1, 11)
	assert.True(t, IsRunNotFound(err))

	_, _, err = h.flow.ExportRun(context.Background(), 1, 99)
	assert.True(t, IsRunNotFound(err))
}
