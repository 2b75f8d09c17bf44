package businessflow

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cedricperpignand1/bbbmailer/app/scheduler"
	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/repository"
)

type fakeCampaignRepo struct {
	repository.AutoCampaignRepository
	byID      map[uint]*models.AutoCampaign
	nextID    uint
	saved     []*models.AutoCampaign
	updated   []*models.AutoCampaign
	setActive []setActiveCall
}

type setActiveCall struct {
	id         uint
	active     bool
	start, end *time.Time
}

func (f *fakeCampaignRepo) ByID(_ context.Context, id uint) (*models.AutoCampaign, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaignRepo) filtered(filter models.AutoCampaignFilter) []*models.AutoCampaign {
	var out []*models.AutoCampaign
	for _, c := range f.byID {
		if filter.Channel != nil && c.Channel != *filter.Channel {
			continue
		}
		if filter.IsActive != nil && c.Active() != *filter.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// ByFilter ignores orderBy and always returns id DESC
func (f *fakeCampaignRepo) ByFilter(_ context.Context, filter models.AutoCampaignFilter, _ string, limit, offset int) ([]*models.AutoCampaign, error) {
	all := f.filtered(filter)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeCampaignRepo) Count(_ context.Context, filter models.AutoCampaignFilter) (int64, error) {
	return int64(len(f.filtered(filter))), nil
}

func (f *fakeCampaignRepo) Save(_ context.Context, c *models.AutoCampaign) error {
	f.nextID++
	c.ID = f.nextID
	f.saved = append(f.saved, c)
	return nil
}

func (f *fakeCampaignRepo) Update(_ context.Context, c *models.AutoCampaign) error {
	f.updated = append(f.updated, c)
	return nil
}

func (f *fakeCampaignRepo) SetActive(_ context.Context, id uint, active bool, start, end *time.Time) error {
	f.setActive = append(f.setActive, setActiveCall{id: id, active: active, start: start, end: end})
	return nil
}

type fakeTemplateRepo struct {
	repository.TemplateRepository
	byID map[uint]*models.Template
}

func (f *fakeTemplateRepo) ByID(_ context.Context, id uint) (*models.Template, error) {
	return f.byID[id], nil
}

type fakeContactRepo struct {
	repository.ContactRepository
	contacts []*models.Contact
}

func (f *fakeContactRepo) ListActiveByCategory(_ context.Context, categoryID uint) ([]*models.Contact, error) {
	var out []*models.Contact
	for _, c := range f.contacts {
		if c.CategoryID == categoryID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeRunRepo struct {
	repository.CampaignRunRepository
	runs []*models.CampaignRun
}

func (f *fakeRunRepo) ByID(_ context.Context, id uint) (*models.CampaignRun, error) {
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRunRepo) ByPeriod(_ context.Context, campaignID uint, periodKey string) (*models.CampaignRun, error) {
	for _, r := range f.runs {
		if r.CampaignID == campaignID && r.PeriodKey == periodKey {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRunRepo) ListRecent(_ context.Context, campaignID uint, limit int) ([]*models.CampaignRun, error) {
	var out []*models.CampaignRun
	for i := len(f.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if f.runs[i].CampaignID == campaignID {
			out = append(out, f.runs[i])
		}
	}
	return out, nil
}

type fakeLogRepo struct {
	repository.SendLogRepository
	logs []*models.SendLog
}

func (f *fakeLogRepo) ByFilter(_ context.Context, filter models.SendLogFilter, _ string, limit, _ int) ([]*models.SendLog, error) {
	var out []*models.SendLog
	for i := len(f.logs) - 1; i >= 0 && len(out) < limit; i-- {
		l := f.logs[i]
		if filter.CampaignID != nil && l.CampaignID != *filter.CampaignID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeLogRepo) CountByStatus(_ context.Context, campaignID uint) (map[models.SendLogStatus]int64, error) {
	out := map[models.SendLogStatus]int64{}
	for _, l := range f.logs {
		if l.CampaignID == campaignID {
			out[l.Status]++
		}
	}
	return out, nil
}

func (f *fakeLogRepo) ContactIDsWithStatus(_ context.Context, campaignID uint, statuses []models.SendLogStatus) ([]uint, error) {
	want := map[models.SendLogStatus]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	var out []uint
	for _, l := range f.logs {
		if l.CampaignID == campaignID && want[l.Status] {
			out = append(out, l.ContactID)
		}
	}
	return out, nil
}

func (f *fakeLogRepo) ListByRun(_ context.Context, runID uint) ([]*models.SendLog, error) {
	var out []*models.SendLog
	for _, l := range f.logs {
		if l.RunID == runID {
			out = append(out, l)
		}
	}
	return out, nil
}

type fakeTestSender struct {
	err   error
	calls []string
}

func (f *fakeTestSender) SendTest(_ context.Context, _ uint, to, _ string) (string, error) {
	f.calls = append(f.calls, to)
	if f.err != nil {
		return "", f.err
	}
	return "provider-1", nil
}

type flowHarness struct {
	campaigns *fakeCampaignRepo
	templates *fakeTemplateRepo
	contacts  *fakeContactRepo
	runs      *fakeRunRepo
	logs      *fakeLogRepo
	sender    *fakeTestSender
	civil     *scheduler.CivilResolver
	flow      AutoCampaignFlow
}

// newFlowHarness pins the clock to Tuesday 2026-03-10 09:00 in New York
func newFlowHarness(t *testing.T) *flowHarness {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, loc)

	civil, err := scheduler.NewCivilResolver(scheduler.ClockFunc(func() time.Time { return now }), "America/New_York")
	require.NoError(t, err)

	h := &flowHarness{
		campaigns: &fakeCampaignRepo{byID: map[uint]*models.AutoCampaign{}},
		templates: &fakeTemplateRepo{byID: map[uint]*models.Template{}},
		contacts:  &fakeContactRepo{},
		runs:      &fakeRunRepo{},
		logs:      &fakeLogRepo{},
		sender:    &fakeTestSender{},
		civil:     civil,
	}
	gate := scheduler.NewGate(civil, h.runs, 10*time.Minute)
	h.flow = NewAutoCampaignFlow(h.campaigns, h.templates, h.contacts, h.runs, h.logs, civil, gate, h.sender, false, zerolog.Nop())
	return h
}
