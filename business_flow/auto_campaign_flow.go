package businessflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cedricperpignand1/bbbmailer/app/dto"
	"github.com/cedricperpignand1/bbbmailer/app/scheduler"
	"github.com/cedricperpignand1/bbbmailer/app/services"
	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/repository"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

const (
	stateRunLimit = 10
	stateLogLimit = 50
)

// DefaultListRunLimit is the number of recent runs listed per campaign
const DefaultListRunLimit = 30

// TestSender sends one rendered message outside of any run
type TestSender interface {
	SendTest(ctx context.Context, campaignID uint, to, firstName string) (string, error)
}

// AutoCampaignFlow handles operator operations on auto campaigns
type AutoCampaignFlow interface {
	List(ctx context.Context, req *dto.ListAutoCampaignsRequest) (*dto.ListAutoCampaignsResponse, error)
	Upsert(ctx context.Context, req *dto.UpsertAutoCampaignRequest, metadata *ClientMetadata) (*dto.AutoCampaignDTO, error)
	Toggle(ctx context.Context, id uint, req *dto.ToggleAutoCampaignRequest, metadata *ClientMetadata) (*dto.AutoCampaignDTO, error)
	State(ctx context.Context, id uint) (*dto.AutoCampaignStateResponse, error)
	TestSend(ctx context.Context, id uint, req *dto.TestSendRequest, metadata *ClientMetadata) (*dto.TestSendResponse, error)
	ExportRun(ctx context.Context, id, runID uint) (filename string, data []byte, err error)
}

type AutoCampaignFlowImpl struct {
	campaignRepo repository.AutoCampaignRepository
	templateRepo repository.TemplateRepository
	contactRepo  repository.ContactRepository
	runRepo      repository.CampaignRunRepository
	logRepo      repository.SendLogRepository
	civil        *scheduler.CivilResolver
	gate         *scheduler.Gate
	sender       TestSender
	report       *services.RunReport
	retryFailed  bool
	logger       zerolog.Logger
}

func NewAutoCampaignFlow(
	campaignRepo repository.AutoCampaignRepository,
	templateRepo repository.TemplateRepository,
	contactRepo repository.ContactRepository,
	runRepo repository.CampaignRunRepository,
	logRepo repository.SendLogRepository,
	civil *scheduler.CivilResolver,
	gate *scheduler.Gate,
	sender TestSender,
	retryFailed bool,
	logger zerolog.Logger,
) AutoCampaignFlow {
	return &AutoCampaignFlowImpl{
		campaignRepo: campaignRepo,
		templateRepo: templateRepo,
		contactRepo:  contactRepo,
		runRepo:      runRepo,
		logRepo:      logRepo,
		civil:        civil,
		gate:         gate,
		sender:       sender,
		report:       services.NewRunReport(civil.Location()),
		retryFailed:  retryFailed,
		logger:       logger.With().Str("component", "auto_campaign_flow").Logger(),
	}
}

func (f *AutoCampaignFlowImpl) Upsert(ctx context.Context, req *dto.UpsertAutoCampaignRequest, metadata *ClientMetadata) (*dto.AutoCampaignDTO, error) {
	if req == nil {
		return nil, NewBusinessError("VALIDATION_FAILED", "Request body is required", ErrValidationFailed)
	}

	var c *models.AutoCampaign
	wasActive := false
	if req.ID != nil {
		existing, err := f.campaignRepo.ByID(ctx, *req.ID)
		if err != nil {
			return nil, NewBusinessError("AUTO_CAMPAIGN_LOOKUP_FAILED", "Failed to load auto campaign", err)
		}
		if existing == nil {
			return nil, NewBusinessError("AUTO_CAMPAIGN_NOT_FOUND", "Auto campaign not found", ErrAutoCampaignNotFound)
		}
		if existing.Channel != models.Channel(req.Channel) {
			return nil, NewBusinessError("CHANNEL_IMMUTABLE", "Channel cannot be changed", ErrChannelImmutable)
		}
		c = existing
		wasActive = existing.Active()
	} else {
		c = &models.AutoCampaign{
			Channel:   models.Channel(req.Channel),
			CreatedAt: utils.UTCNow(),
			IsActive:  utils.ToPtr(false),
		}
	}

	if err := f.applyRequest(ctx, c, req); err != nil {
		return nil, err
	}

	active := c.Active()
	if req.IsActive != nil {
		active = *req.IsActive
	}
	c.IsActive = utils.ToPtr(active)
	explicitWindow := req.WindowStart != nil || req.WindowEnd != nil
	if explicitWindow {
		if err := f.applyExplicitWindow(c, req); err != nil {
			return nil, err
		}
	} else if active && !wasActive {
		f.openWindow(c)
	}
	c.UpdatedAt = utils.UTCNow()

	if req.ID == nil {
		if err := f.campaignRepo.Save(ctx, c); err != nil {
			return nil, NewBusinessError("AUTO_CAMPAIGN_SAVE_FAILED", "Failed to save auto campaign", err)
		}
	} else if err := f.campaignRepo.Update(ctx, c); err != nil {
		return nil, NewBusinessError("AUTO_CAMPAIGN_SAVE_FAILED", "Failed to save auto campaign", err)
	}

	f.logger.Info().
		Uint("campaign_id", c.ID).
		Bool("active", active).
		Str("request_id", requestID(metadata)).
		Msg("auto campaign saved")

	out := f.toDTO(c)
	return &out, nil
}

// applyRequest copies and clamps request fields onto c
func (f *AutoCampaignFlowImpl) applyRequest(ctx context.Context, c *models.AutoCampaign, req *dto.UpsertAutoCampaignRequest) error {
	c.Name = strings.TrimSpace(req.Name)
	c.CategoryID = req.CategoryID
	c.TemplateID = req.TemplateID
	c.Subject = trimmedOrNil(req.Subject)
	c.Body = trimmedOrNil(req.Body)
	c.FromIdentity = trimmedOrNil(req.FromIdentity)
	c.RetryFailedRecipients = req.RetryFailedRecipients

	if c.TemplateID != nil {
		t, err := f.templateRepo.ByID(ctx, *c.TemplateID)
		if err != nil {
			return NewBusinessError("TEMPLATE_LOOKUP_FAILED", "Failed to load template", err)
		}
		if t == nil {
			return NewBusinessError("TEMPLATE_NOT_FOUND", "Template not found", ErrTemplateNotFound)
		}
	} else {
		if c.Body == nil {
			return NewBusinessError("CONTENT_REQUIRED", "A template or an inline body is required", ErrContentRequired)
		}
		if c.Channel == models.ChannelEmail && c.Subject == nil {
			return NewBusinessError("SUBJECT_REQUIRED", "Email campaigns need a subject", ErrSubjectRequired)
		}
	}

	c.ContentType = req.ContentType
	if c.ContentType == "" {
		c.ContentType = models.ContentTypeText
	}
	if c.Channel == models.ChannelSMS {
		c.ContentType = models.ContentTypeText
	}

	c.MaxPerDay = utils.Clamp(utils.Deref(req.MaxPerDay, utils.DefaultMaxPerDay), utils.MinMaxPerDay, utils.MaxMaxPerDay)
	c.SendHour = utils.ToPtr(utils.Clamp(utils.Deref(req.SendHour, utils.DefaultSendHour), 0, 23))
	c.SendMinute = utils.ToPtr(utils.Clamp(utils.Deref(req.SendMinute, utils.DefaultSendMinute), 0, 59))
	c.DayOfMonth = nil
	if req.DayOfMonth != nil {
		c.DayOfMonth = utils.ToPtr(utils.Clamp(*req.DayOfMonth, 1, 31))
	}
	c.StopAfterDays = utils.ToPtr(utils.Clamp(utils.Deref(req.StopAfterDays, utils.DefaultStopAfterDays), utils.MinStopAfterDays, utils.MaxStopAfterDays))

	c.ScheduleMode = models.ScheduleMode(req.ScheduleMode)
	if c.ScheduleMode == "" {
		c.ScheduleMode = models.ScheduleModeDaily
	}
	c.Addresses = scheduler.NormalizeAddressPool(req.Addresses)
	if c.Addresses == nil {
		c.Addresses = []string{}
	}
	c.AddressStrategy = models.AddressStrategy(req.AddressStrategy)
	if c.AddressStrategy == "" {
		c.AddressStrategy = scheduler.StrategyFor(c, nil).Name()
	}
	return nil
}

func (f *AutoCampaignFlowImpl) applyExplicitWindow(c *models.AutoCampaign, req *dto.UpsertAutoCampaignRequest) error {
	var start, end *time.Time
	if req.WindowStart != nil {
		t, err := f.civil.ParseCivilDate(*req.WindowStart)
		if err != nil {
			return NewBusinessError("INVALID_WINDOW_START", "windowStart must be YYYY-MM-DD", ErrInvalidDate)
		}
		start = &t
	}
	if req.WindowEnd != nil {
		t, err := f.civil.ParseCivilDate(*req.WindowEnd)
		if err != nil {
			return NewBusinessError("INVALID_WINDOW_END", "windowEnd must be YYYY-MM-DD", ErrInvalidDate)
		}
		end = &t
	}
	if start == nil {
		s := f.civil.MidnightOf(f.civil.CivilNow())
		start = &s
	}
	if end != nil && !end.After(*start) {
		return NewBusinessError("INVALID_WINDOW", "windowEnd must be after windowStart", ErrInvalidWindow)
	}
	c.WindowStart, c.WindowEnd = start, end
	return nil
}

// openWindow starts the validity window at civil midnight today and ends it
// StopAfterDays civil days later
func (f *AutoCampaignFlowImpl) openWindow(c *models.AutoCampaign) {
	start := f.civil.MidnightOf(f.civil.CivilNow())
	end := f.civil.AddCivilDays(start, utils.Deref(c.StopAfterDays, utils.DefaultStopAfterDays))
	c.WindowStart, c.WindowEnd = &start, &end
}

func (f *AutoCampaignFlowImpl) Toggle(ctx context.Context, id uint, req *dto.ToggleAutoCampaignRequest, metadata *ClientMetadata) (*dto.AutoCampaignDTO, error) {
	if req == nil || req.Active == nil {
		return nil, NewBusinessError("VALIDATION_FAILED", "active is required", ErrValidationFailed)
	}
	c, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}

	active := *req.Active
	var start, end *time.Time
	if active && !c.Active() {
		f.openWindow(c)
		start, end = c.WindowStart, c.WindowEnd
	}
	if err := f.campaignRepo.SetActive(ctx, id, active, start, end); err != nil {
		return nil, NewBusinessError("AUTO_CAMPAIGN_TOGGLE_FAILED", "Failed to toggle auto campaign", err)
	}
	c.IsActive = utils.ToPtr(active)

	f.logger.Info().Uint("campaign_id", id).Bool("active", active).Str("request_id", requestID(metadata)).Msg("auto campaign toggled")
	out := f.toDTO(c)
	return &out, nil
}

// List returns a page of campaigns, newest first, each with its most recent runs
func (f *AutoCampaignFlowImpl) List(ctx context.Context, req *dto.ListAutoCampaignsRequest) (*dto.ListAutoCampaignsResponse, error) {
	filter := models.AutoCampaignFilter{IsActive: req.Active}
	if req.Channel != nil {
		filter.Channel = utils.ToPtr(models.Channel(*req.Channel))
	}

	total, err := f.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("AUTO_CAMPAIGN_LIST_FAILED", "Failed to count auto campaigns", err)
	}
	offset := (req.Page - 1) * req.Limit
	campaigns, err := f.campaignRepo.ByFilter(ctx, filter, "id DESC", req.Limit, offset)
	if err != nil {
		return nil, NewBusinessError("AUTO_CAMPAIGN_LIST_FAILED", "Failed to list auto campaigns", err)
	}

	resp := &dto.ListAutoCampaignsResponse{
		Items: make([]dto.AutoCampaignListItemDTO, 0, len(campaigns)),
		Pagination: dto.PaginationDTO{
			Total:      total,
			Page:       req.Page,
			Limit:      req.Limit,
			TotalPages: int((total + int64(req.Limit) - 1) / int64(req.Limit)),
		},
	}
	for _, c := range campaigns {
		item := dto.AutoCampaignListItemDTO{Campaign: f.toDTO(c), RecentRuns: []dto.CampaignRunDTO{}}
		if req.Runs > 0 {
			runs, err := f.runRepo.ListRecent(ctx, c.ID, req.Runs)
			if err != nil {
				return nil, NewBusinessError("RUN_LIST_FAILED", "Failed to list runs", err)
			}
			for _, r := range runs {
				item.RecentRuns = append(item.RecentRuns, f.toRunDTO(r))
			}
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}

func (f *AutoCampaignFlowImpl) State(ctx context.Context, id uint) (*dto.AutoCampaignStateResponse, error) {
	c, err := f.load(ctx, id)
	if err != nil {
		return nil, err
	}

	runs, err := f.runRepo.ListRecent(ctx, id, stateRunLimit)
	if err != nil {
		return nil, NewBusinessError("RUN_LIST_FAILED", "Failed to list runs", err)
	}
	logs, err := f.logRepo.ByFilter(ctx, models.SendLogFilter{CampaignID: &id}, "id DESC", stateLogLimit, 0)
	if err != nil {
		return nil, NewBusinessError("SEND_LOG_LIST_FAILED", "Failed to list send logs", err)
	}
	counts, err := f.logRepo.CountByStatus(ctx, id)
	if err != nil {
		return nil, NewBusinessError("SEND_LOG_COUNT_FAILED", "Failed to count send logs", err)
	}
	remaining, err := f.remainingAudience(ctx, c)
	if err != nil {
		return nil, NewBusinessError("AUDIENCE_COUNT_FAILED", "Failed to count remaining audience", err)
	}

	resp := &dto.AutoCampaignStateResponse{
		Campaign:          f.toDTO(c),
		Runs:              make([]dto.CampaignRunDTO, 0, len(runs)),
		Logs:              make([]dto.SendLogDTO, 0, len(logs)),
		Totals:            map[string]int64{},
		RemainingAudience: remaining,
		NextCheck:         f.nextCheck(ctx, c),
	}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, f.toRunDTO(r))
	}
	for _, l := range logs {
		resp.Logs = append(resp.Logs, f.toLogDTO(l))
	}
	for _, s := range []models.SendLogStatus{models.SendLogStatusQueued, models.SendLogStatusSent, models.SendLogStatusFailed} {
		resp.Totals[string(s)] = counts[s]
	}
	return resp, nil
}

func (f *AutoCampaignFlowImpl) remainingAudience(ctx context.Context, c *models.AutoCampaign) (int, error) {
	contacts, err := f.contactRepo.ListActiveByCategory(ctx, c.CategoryID)
	if err != nil {
		return 0, err
	}
	retry := f.retryFailed
	if c.RetryFailedRecipients != nil {
		retry = *c.RetryFailedRecipients
	}
	done, err := f.logRepo.ContactIDsWithStatus(ctx, c.ID, scheduler.ExcludedStatuses(retry))
	if err != nil {
		return 0, err
	}
	excluded := make(map[uint]struct{}, len(done))
	for _, id := range done {
		excluded[id] = struct{}{}
	}
	n := 0
	for _, ct := range contacts {
		if ct.AddressFor(c.Channel) == "" {
			continue
		}
		if _, ok := excluded[ct.ID]; !ok {
			n++
		}
	}
	return n, nil
}

func (f *AutoCampaignFlowImpl) nextCheck(ctx context.Context, c *models.AutoCampaign) dto.NextCheckDTO {
	out := dto.NextCheckDTO{CivilNow: f.civil.CivilNow().String()}
	d, err := f.gate.Evaluate(ctx, c, false)
	if err != nil {
		if ce, ok := scheduler.IsConfigError(err); ok {
			out.Reason, out.Detail = ce.Code, err.Error()
			return out
		}
		out.Reason, out.Detail = "error", err.Error()
		return out
	}
	out.Fire = d.Fire
	out.Reason = string(d.Reason)
	out.PeriodKey = d.PeriodKey.Value
	out.Detail = d.Detail
	return out
}

func (f *AutoCampaignFlowImpl) TestSend(ctx context.Context, id uint, req *dto.TestSendRequest, metadata *ClientMetadata) (*dto.TestSendResponse, error) {
	if req == nil || strings.TrimSpace(req.To) == "" {
		return nil, NewBusinessError("VALIDATION_FAILED", "to is required", ErrValidationFailed)
	}
	to := strings.TrimSpace(req.To)
	providerID, err := f.sender.SendTest(ctx, id, to, strings.TrimSpace(req.FirstName))
	if err != nil {
		if errors.Is(err, scheduler.ErrCampaignNotFound) {
			return nil, NewBusinessError("AUTO_CAMPAIGN_NOT_FOUND", "Auto campaign not found", ErrAutoCampaignNotFound)
		}
		if ce, ok := scheduler.IsConfigError(err); ok {
			return nil, NewBusinessError(ce.Code, "Campaign cannot send", fmt.Errorf("%w: %v", ErrCampaignMisconfigured, ce.Err))
		}
		return nil, NewBusinessError("TEST_SEND_FAILED", "Test message was not accepted", fmt.Errorf("%w: %v", ErrTransportFailed, err))
	}
	f.logger.Info().Uint("campaign_id", id).Str("to", to).Str("request_id", requestID(metadata)).Msg("test message sent")
	return &dto.TestSendResponse{To: to, ProviderMessageID: providerID}, nil
}

func (f *AutoCampaignFlowImpl) ExportRun(ctx context.Context, id, runID uint) (string, []byte, error) {
	c, err := f.load(ctx, id)
	if err != nil {
		return "", nil, err
	}
	run, err := f.runRepo.ByID(ctx, runID)
	if err != nil {
		return "", nil, NewBusinessError("RUN_LOOKUP_FAILED", "Failed to load run", err)
	}
	if run == nil {
		return "", nil, NewBusinessError("RUN_NOT_FOUND", "Run not found", ErrRunNotFound)
	}
	if run.CampaignID != id {
		return "", nil, NewBusinessError("RUN_NOT_FOUND", "Run not found", ErrRunCampaignDiffer)
	}
	logs, err := f.logRepo.ListByRun(ctx, runID)
	if err != nil {
		return "", nil, NewBusinessError("SEND_LOG_LIST_FAILED", "Failed to list send logs", err)
	}
	data, err := f.report.Build(c, run, logs)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_FAILED", "Failed to build export", err)
	}
	name := fmt.Sprintf("campaign-%d-run-%s.xlsx", id, strings.ReplaceAll(run.PeriodKey, ":", "-"))
	return name, data, nil
}

func (f *AutoCampaignFlowImpl) load(ctx context.Context, id uint) (*models.AutoCampaign, error) {
	c, err := f.campaignRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("AUTO_CAMPAIGN_LOOKUP_FAILED", "Failed to load auto campaign", err)
	}
	if c == nil {
		return nil, NewBusinessError("AUTO_CAMPAIGN_NOT_FOUND", "Auto campaign not found", ErrAutoCampaignNotFound)
	}
	return c, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func requestID(m *ClientMetadata) string {
	if m == nil {
		return ""
	}
	return m.RequestID
}

func (f *AutoCampaignFlowImpl) toDTO(c *models.AutoCampaign) dto.AutoCampaignDTO {
	return ToAutoCampaignDTO(*c, f.civil.Location())
}

func (f *AutoCampaignFlowImpl) toRunDTO(r *models.CampaignRun) dto.CampaignRunDTO {
	return ToCampaignRunDTO(*r)
}

func (f *AutoCampaignFlowImpl) toLogDTO(l *models.SendLog) dto.SendLogDTO {
	return ToSendLogDTO(*l)
}
