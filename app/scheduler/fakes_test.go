package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cedricperpignand1/bbbmailer/config"
	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

const testTZ = "America/New_York"

func nyLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(testTZ)
	require.NoError(t, err)
	return loc
}

func nyTime(t *testing.T, y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, nyLoc(t))
}

type mutableClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *mutableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *mutableClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fakeCampaigns struct {
	mu          sync.Mutex
	byID        map[uint]*models.AutoCampaign
	deactivated []uint
	cursorMoves int
}

func (f *fakeCampaigns) put(c *models.AutoCampaign) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byID == nil {
		f.byID = map[uint]*models.AutoCampaign{}
	}
	f.byID[c.ID] = c
}

func (f *fakeCampaigns) ByID(_ context.Context, id uint) (*models.AutoCampaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) ListActive(_ context.Context) ([]*models.AutoCampaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AutoCampaign
	for _, c := range f.byID {
		if c.Active() {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCampaigns) SetActive(_ context.Context, id uint, active bool, ws, we *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return errors.New("not found")
	}
	c.IsActive = utils.ToPtr(active)
	if ws != nil {
		c.WindowStart = ws
	}
	if we != nil {
		c.WindowEnd = we
	}
	if !active {
		f.deactivated = append(f.deactivated, id)
	}
	return nil
}

func (f *fakeCampaigns) AdvanceAddressCursor(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].AddressCursor++
	f.cursorMoves++
	return nil
}

type fakeTemplates map[uint]*models.Template

func (f fakeTemplates) ByID(_ context.Context, id uint) (*models.Template, error) {
	return f[id], nil
}

type fakeAudience struct {
	mu       sync.Mutex
	contacts []*models.Contact
	calls    int
}

func (f *fakeAudience) ListActiveByCategory(_ context.Context, categoryID uint) ([]*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []*models.Contact
	for _, c := range f.contacts {
		if c.CategoryID == categoryID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeAudience) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRuns enforces the (campaign, period) uniqueness the way the unique index does
type fakeRuns struct {
	mu      sync.Mutex
	rows    map[string]*models.CampaignRun
	nextID  uint
	updates map[uint]models.CampaignRunCounts
}

func runKey(campaignID uint, periodKey string) string {
	return fmt.Sprintf("%d|%s", campaignID, periodKey)
}

func (f *fakeRuns) ByPeriod(_ context.Context, campaignID uint, periodKey string) (*models.CampaignRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[runKey(campaignID, periodKey)]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRuns) InsertIfAbsent(_ context.Context, run *models.CampaignRun) (bool, *models.CampaignRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = map[string]*models.CampaignRun{}
	}
	k := runKey(run.CampaignID, run.PeriodKey)
	if existing, ok := f.rows[k]; ok {
		cp := *existing
		return false, &cp, nil
	}
	f.nextID++
	run.ID = f.nextID
	cp := *run
	f.rows[k] = &cp
	return true, nil, nil
}

func (f *fakeRuns) UpdateCounts(_ context.Context, runID uint, counts models.CampaignRunCounts) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = map[uint]models.CampaignRunCounts{}
	}
	f.updates[runID] = counts
	for _, r := range f.rows {
		if r.ID == runID {
			r.QueuedCount, r.SentCount, r.FailedCount = counts.Queued, counts.Sent, counts.Failed
			r.Status = counts.Status
		}
	}
	return nil
}

func (f *fakeRuns) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeLogs struct {
	mu       sync.Mutex
	rows     []*models.SendLog
	nextID   uint
	failSave map[uint]error // by contact id
}

func (f *fakeLogs) Save(_ context.Context, e *models.SendLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failSave[e.ContactID]; err != nil {
		return err
	}
	f.nextID++
	e.ID = f.nextID
	cp := *e
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeLogs) find(id uint) *models.SendLog {
	for _, r := range f.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (f *fakeLogs) MarkSent(_ context.Context, id uint, providerID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil || r.Status != models.SendLogStatusQueued {
		return errors.New("not queued")
	}
	r.Status = models.SendLogStatusSent
	r.ProviderMessageID = utils.ToPtr(providerID)
	r.SentAt = &at
	return nil
}

func (f *fakeLogs) MarkFailed(_ context.Context, id uint, errText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.find(id)
	if r == nil || r.Status != models.SendLogStatusQueued {
		return errors.New("not queued")
	}
	r.Status = models.SendLogStatusFailed
	r.Error = utils.ToPtr(errText)
	return nil
}

func (f *fakeLogs) ContactIDsWithStatus(_ context.Context, campaignID uint, statuses []models.SendLogStatus) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[models.SendLogStatus]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	var out []uint
	for _, r := range f.rows {
		if r.CampaignID == campaignID && want[r.Status] {
			out = append(out, r.ContactID)
		}
	}
	return out, nil
}

func (f *fakeLogs) byStatus(s models.SendLogStatus) []*models.SendLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SendLog
	for _, r := range f.rows {
		if r.Status == s {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeLogs) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeTransport struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[string]error
	onSend  func(n int)
}

func (f *fakeTransport) Send(_ context.Context, msg Message) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	n := len(f.sent)
	err := f.failFor[msg.To]
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("msg-%d", n), nil
}

func (f *fakeTransport) Sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

type countingPacer struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *countingPacer) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type harness struct {
	clock     *mutableClock
	campaigns *fakeCampaigns
	templates fakeTemplates
	audience  *fakeAudience
	runs      *fakeRuns
	logs      *fakeLogs
	transport *fakeTransport
	pacer     *countingPacer
	sched     *CampaignScheduler
}

func newHarness(t *testing.T, now time.Time, opts ...func(*config.SchedulerConfig, *Deps)) *harness {
	t.Helper()
	h := &harness{
		clock:     &mutableClock{t: now},
		campaigns: &fakeCampaigns{},
		templates: fakeTemplates{},
		audience:  &fakeAudience{},
		runs:      &fakeRuns{},
		logs:      &fakeLogs{},
		transport: &fakeTransport{failFor: map[string]error{}},
		pacer:     &countingPacer{},
	}
	civil, err := NewCivilResolver(h.clock, testTZ)
	require.NoError(t, err)

	cfg := config.SchedulerConfig{
		Timezone:               testTZ,
		TimeTolerance:          utils.DefaultTimeTolerance,
		RunTimeout:             time.Minute,
		MaxConcurrentCampaigns: 4,
		MaxPerRunCeiling:       250,
	}
	deps := Deps{
		Campaigns: h.campaigns,
		Templates: h.templates,
		Audience:  h.audience,
		Runs:      h.runs,
		Logs:      h.logs,
		Transport: h.transport,
		Pacer:     h.pacer,
	}
	for _, o := range opts {
		o(&cfg, &deps)
	}
	h.sched = NewCampaignScheduler(deps, civil, cfg, Senders{EmailFrom: "news@example.com", SMSFrom: "+15550000000"}, zerolog.Nop())
	return h
}

func emailCampaign(id uint) *models.AutoCampaign {
	return &models.AutoCampaign{
		ID:           id,
		Name:         fmt.Sprintf("campaign %d", id),
		Channel:      models.ChannelEmail,
		IsActive:     utils.ToPtr(true),
		CategoryID:   1,
		Subject:      utils.ToPtr("Hi {{firstName}}"),
		Body:         utils.ToPtr("Hello {{firstName}}, see {{project}}"),
		ContentType:  models.ContentTypeText,
		MaxPerDay:    45,
		SendHour:     utils.ToPtr(11),
		SendMinute:   utils.ToPtr(0),
		ScheduleMode: models.ScheduleModeDaily,
		Addresses:    []string{"12 Oak St", "7 Elm Ave"},
	}
}

func contacts(categoryID uint, ids ...uint) []*models.Contact {
	out := make([]*models.Contact, 0, len(ids))
	for _, id := range ids {
		out = append(out, &models.Contact{
			ID:         id,
			CategoryID: categoryID,
			FirstName:  utils.ToPtr(fmt.Sprintf("C%d", id)),
			Email:      utils.ToPtr(fmt.Sprintf("c%d@example.com", id)),
			Phone:      utils.ToPtr(fmt.Sprintf("+1555000%04d", id)),
			Status:     models.ContactStatusActive,
		})
	}
	return out
}

func idRange(from, to uint) []uint {
	var out []uint
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
