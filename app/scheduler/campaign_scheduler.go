package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cedricperpignand1/bbbmailer/config"
	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

// CampaignStore reads and updates auto campaign definitions
type CampaignStore interface {
	ByID(ctx context.Context, id uint) (*models.AutoCampaign, error)
	ListActive(ctx context.Context) ([]*models.AutoCampaign, error)
	SetActive(ctx context.Context, id uint, active bool, windowStart, windowEnd *time.Time) error
	AdvanceAddressCursor(ctx context.Context, id uint) error
}

// Deps are the collaborators of the scheduler
type Deps struct {
	Campaigns CampaignStore
	Templates TemplateStore
	Audience  AudienceStore
	Runs      RunStore
	Logs      SendLogStore
	Transport Transport
	Lock      RunLock
	Pacer     Pacer
	// IntN backs the random address strategy; nil uses math/rand/v2
	IntN func(n int) int
}

// Senders are the channel default identities
type Senders struct {
	EmailFrom string
	SMSFrom   string
}

// RunResult is the structured outcome of one trigger for one campaign
type RunResult struct {
	OK         bool             `json:"ok"`
	Skipped    bool             `json:"skipped"`
	Reason     string           `json:"reason,omitempty"`
	Message    string           `json:"message,omitempty"`
	CampaignID uint             `json:"campaignId"`
	PeriodKey  string           `json:"periodKey,omitempty"`
	Forced     bool             `json:"forced"`
	Queued     int              `json:"queued"`
	Sent       int              `json:"sent"`
	Failed     int              `json:"failed"`
	LogErrors  int              `json:"logErrors,omitempty"`
	Errors     []RecipientError `json:"errors,omitempty"`
	RunID      *uint            `json:"runId,omitempty"`
	RunUUID    string           `json:"runUuid,omitempty"`
}

// CampaignScheduler runs the gate, selection and dispatch pipeline
type CampaignScheduler struct {
	deps     Deps
	cfg      config.SchedulerConfig
	senders  Senders
	civil    *CivilResolver
	gate     *Gate
	selector *Selector
	recorder *Recorder
	dispatch *Dispatcher
	logger   zerolog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewCampaignScheduler(deps Deps, civil *CivilResolver, cfg config.SchedulerConfig, senders Senders, logger zerolog.Logger) *CampaignScheduler {
	if cfg.TimeTolerance < 0 {
		cfg.TimeTolerance = utils.DefaultTimeTolerance
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = utils.DefaultRunTimeout
	}
	if cfg.MaxConcurrentCampaigns <= 0 {
		cfg.MaxConcurrentCampaigns = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.RunTimeout + time.Minute
	}
	if deps.Lock == nil {
		deps.Lock = NoopLock{}
	}
	if deps.Pacer == nil {
		deps.Pacer = NewJitterPacer(cfg.PacingMin, cfg.PacingMax, cfg.SendRatePerSec)
	}
	logger = logger.With().Str("component", "scheduler").Logger()

	return &CampaignScheduler{
		deps:     deps,
		cfg:      cfg,
		senders:  senders,
		civil:    civil,
		gate:     NewGate(civil, deps.Runs, cfg.TimeTolerance),
		selector: NewSelector(deps.Audience, deps.Logs),
		recorder: NewRecorder(deps.Runs, civil.clock),
		dispatch: NewDispatcher(deps.Logs, deps.Transport, deps.Pacer, civil.clock, logger),
		logger:   logger,
	}
}

// Civil exposes the timezone resolver
func (s *CampaignScheduler) Civil() *CivilResolver { return s.civil }

// Gate exposes the eligibility gate
func (s *CampaignScheduler) Gate() *Gate { return s.gate }

// RunCampaign evaluates and, when eligible, fires one campaign.
// Skips and configuration errors come back as results; err is reserved for
// store or lock failures and unknown campaigns.
func (s *CampaignScheduler) RunCampaign(ctx context.Context, campaignID uint, force bool) (*RunResult, error) {
	c, err := s.deps.Campaigns.ByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign %d: %w", campaignID, err)
	}
	if c == nil {
		return nil, ErrCampaignNotFound
	}
	return s.run(ctx, c, force, s.civil.CivilNow())
}

func (s *CampaignScheduler) run(ctx context.Context, c *models.AutoCampaign, force bool, now CivilTime) (*RunResult, error) {
	log := s.logger.With().Uint("campaign_id", c.ID).Bool("forced", force).Logger()
	result := &RunResult{CampaignID: c.ID, Forced: force}

	decision, err := s.gate.EvaluateAt(ctx, c, force, now)
	if err != nil {
		return s.configResult(result, err, log)
	}
	result.PeriodKey = decision.PeriodKey.Value

	if !decision.Fire {
		decisionsTotal.WithLabelValues(string(decision.Reason)).Inc()
		if decision.WindowEnded && c.Active() {
			if err := s.deps.Campaigns.SetActive(ctx, c.ID, false, nil, nil); err != nil {
				log.Error().Err(err).Msg("failed to deactivate campaign after window end")
			} else {
				log.Info().Msg("window ended, campaign deactivated")
			}
		}
		result.OK, result.Skipped = true, true
		result.Reason, result.Message = string(decision.Reason), decision.Detail
		if ex := decision.Existing; ex != nil {
			result.RunID = utils.ToPtr(ex.ID)
			result.RunUUID = ex.UUID.String()
			result.Queued, result.Sent, result.Failed = ex.QueuedCount, ex.SentCount, ex.FailedCount
		}
		log.Debug().Str("reason", result.Reason).Str("detail", decision.Detail).Msg("skipped")
		return result, nil
	}

	plan, err := s.prepare(ctx, c, decision)
	if err != nil {
		return s.configResult(result, err, log)
	}

	release, acquired, err := s.deps.Lock.Acquire(ctx, runLockKey(c.ID, decision.PeriodKey.Value), s.cfg.LockTTL)
	if err != nil {
		// the unique run index still guards the period
		log.Warn().Err(err).Msg("run lock unavailable, continuing without it")
		release, acquired = func() {}, true
	}
	if !acquired {
		decisionsTotal.WithLabelValues(string(ReasonInProgress)).Inc()
		result.OK, result.Skipped, result.Reason = true, true, string(ReasonInProgress)
		result.Message = "another trigger is dispatching this period"
		return result, nil
	}
	defer release()

	retryFailed := s.cfg.RetryFailedRecipients
	if c.RetryFailedRecipients != nil {
		retryFailed = *c.RetryFailedRecipients
	}
	audience := plan.Recipients
	plan.Recipients, err = s.selector.Select(ctx, c, audience, decision.PeriodKey, retryFailed, s.runCap(c))
	if err != nil {
		return nil, err
	}

	var runAddress *string
	if plan.Strategy.PerRun() && len(plan.Pool) > 0 {
		runAddress = utils.ToPtr(plan.Strategy.Pick(plan.Pool, 0, decision.PeriodKey.Value, c.AddressCursor))
	}
	run, created, existing, err := s.recorder.Open(ctx, c, decision.PeriodKey, force, runAddress)
	if err != nil {
		return nil, err
	}
	if !created {
		decisionsTotal.WithLabelValues(string(ReasonAlreadyRan)).Inc()
		result.OK, result.Skipped, result.Reason = true, true, string(ReasonAlreadyRan)
		result.Message = "period claimed by a concurrent trigger"
		if existing != nil {
			result.RunID = utils.ToPtr(existing.ID)
			result.RunUUID = existing.UUID.String()
		}
		return result, nil
	}
	decisionsTotal.WithLabelValues("fire").Inc()
	plan.Run = run

	log.Info().
		Str("period_key", decision.PeriodKey.Value).
		Uint("run_id", run.ID).
		Int("recipients", len(plan.Recipients)).
		Int("audience", len(audience)).
		Msg("run fired")

	start := time.Now()
	dctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	res := s.dispatch.Dispatch(dctx, plan)
	cancel()

	closeErr := s.recorder.Close(ctx, run, res)
	if plan.Strategy.PerRun() && len(plan.Pool) > 0 {
		if err := s.deps.Campaigns.AdvanceAddressCursor(context.WithoutCancel(ctx), c.ID); err != nil {
			log.Error().Err(err).Msg("failed to advance address cursor")
		}
	}
	runDuration.WithLabelValues(c.Channel.String(), string(run.Status)).Observe(time.Since(start).Seconds())

	result.OK = !res.Interrupted
	result.RunID = utils.ToPtr(run.ID)
	result.RunUUID = run.UUID.String()
	result.Queued, result.Sent, result.Failed = res.Queued, res.Sent, res.Failed
	result.LogErrors = res.LogErrors
	result.Errors = res.Errors
	if res.Interrupted {
		result.Reason = string(models.CampaignRunStatusInterrupted)
		result.Message = fmt.Sprintf("stopped after %d of %d recipients: %v", res.Queued, res.Planned, res.Cause)
	}

	log.Info().
		Uint("run_id", run.ID).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("log_errors", res.LogErrors).
		Bool("interrupted", res.Interrupted).
		Dur("took", time.Since(start)).
		Msg("run finished")

	if closeErr != nil {
		return result, closeErr
	}
	return result, nil
}

// prepare validates content, sender and address pool and loads the audience.
// Nothing is written, so a failure here leaves the period eligible.
func (s *CampaignScheduler) prepare(ctx context.Context, c *models.AutoCampaign, d Decision) (*Plan, error) {
	content, err := ResolveContent(ctx, s.deps.Templates, c)
	if err != nil {
		return nil, err
	}
	from, err := ResolveSender(c, s.senders.EmailFrom, s.senders.SMSFrom)
	if err != nil {
		return nil, err
	}
	pool := NormalizeAddressPool(c.Addresses)
	if len(pool) == 0 && models.UsesAddressPool(content.Subject, content.Body) {
		return nil, newConfigError(CodeAddressPoolEmpty, "campaign %d references {{address}} but has no address pool", c.ID)
	}
	audience, err := s.selector.LoadAudience(ctx, c)
	if err != nil {
		return nil, err
	}
	return &Plan{
		Campaign:   c,
		Key:        d.PeriodKey,
		Content:    content,
		From:       from,
		Pool:       pool,
		Strategy:   StrategyFor(c, s.deps.IntN),
		Recipients: audience,
	}, nil
}

func (s *CampaignScheduler) runCap(c *models.AutoCampaign) int {
	limit := c.MaxPerDay
	if limit <= 0 {
		limit = utils.DefaultMaxPerDay
	}
	if s.cfg.MaxPerRunCeiling > 0 && limit > s.cfg.MaxPerRunCeiling {
		limit = s.cfg.MaxPerRunCeiling
	}
	return limit
}

func (s *CampaignScheduler) configResult(result *RunResult, err error, log zerolog.Logger) (*RunResult, error) {
	ce, ok := IsConfigError(err)
	if !ok {
		return nil, err
	}
	configErrorsTotal.WithLabelValues(ce.Code).Inc()
	log.Warn().Str("code", ce.Code).Err(ce.Err).Msg("campaign cannot fire")
	result.OK = false
	result.Reason = ce.Code
	result.Message = err.Error()
	return result, nil
}

// RunDue triggers every active campaign. Campaigns run in parallel up to the
// configured limit; a failing campaign is reported in its result and does not
// stop the others. All campaigns are gated against the time of the trigger,
// not the time a worker slot frees up.
func (s *CampaignScheduler) RunDue(ctx context.Context, force bool) ([]*RunResult, error) {
	now := s.civil.CivilNow()
	campaigns, err := s.deps.Campaigns.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}

	results := make([]*RunResult, len(campaigns))
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrentCampaigns)
	for i, c := range campaigns {
		g.Go(func() error {
			res, err := s.run(ctx, c, force, now)
			if err != nil {
				s.logger.Error().Err(err).Uint("campaign_id", c.ID).Msg("run failed")
				if res == nil {
					res = &RunResult{CampaignID: c.ID, Forced: force}
				}
				res.OK = false
				res.Reason = "error"
				res.Message = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// SendTest renders the campaign for a synthetic contact and sends one message.
// No run record and no send log are written.
func (s *CampaignScheduler) SendTest(ctx context.Context, campaignID uint, to, firstName string) (string, error) {
	c, err := s.deps.Campaigns.ByID(ctx, campaignID)
	if err != nil {
		return "", fmt.Errorf("load campaign %d: %w", campaignID, err)
	}
	if c == nil {
		return "", ErrCampaignNotFound
	}
	content, err := ResolveContent(ctx, s.deps.Templates, c)
	if err != nil {
		return "", err
	}
	from, err := ResolveSender(c, s.senders.EmailFrom, s.senders.SMSFrom)
	if err != nil {
		return "", err
	}
	pool := NormalizeAddressPool(c.Addresses)
	if len(pool) == 0 && models.UsesAddressPool(content.Subject, content.Body) {
		return "", newConfigError(CodeAddressPoolEmpty, "campaign %d references {{address}} but has no address pool", c.ID)
	}

	contact := &models.Contact{FirstName: utils.ToPtr(firstName)}
	address := StrategyFor(c, s.deps.IntN).Pick(pool, 0, DailyKey(s.civil.CivilNow()).Value, c.AddressCursor)
	vars := RecipientVars(contact, address)
	msg := Message{
		Channel:     c.Channel,
		To:          to,
		From:        from,
		Subject:     Render(content.Subject, vars, false),
		Body:        Render(content.Body, vars, content.ContentType == models.ContentTypeHTML),
		ContentType: content.ContentType,
	}
	id, err := s.deps.Transport.Send(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("test send to %s: %w", to, err)
	}
	return id, nil
}

// Start registers RunDue on the configured cron spec in the scheduler timezone
// and returns a stop function that waits for an in-flight tick.
func (s *CampaignScheduler) Start(parent context.Context) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil, errors.New("scheduler already started")
	}

	spec := s.cfg.CronSpec
	if spec == "" {
		spec = utils.DefaultCronSpec
	}
	cronLogger := s.logger.With().Str("component", "cron").Logger()
	logAdapter := cron.PrintfLogger(&cronLogger)
	c := cron.New(
		cron.WithLocation(s.civil.Location()),
		cron.WithLogger(logAdapter),
		cron.WithChain(cron.Recover(logAdapter), cron.SkipIfStillRunning(logAdapter)),
	)

	ctx, cancel := context.WithCancel(parent)
	if _, err := c.AddFunc(spec, func() {
		results, err := s.RunDue(ctx, false)
		if err != nil {
			s.logger.Error().Err(err).Msg("cron tick failed")
			return
		}
		fired := 0
		for _, r := range results {
			if r != nil && r.RunID != nil && !r.Skipped {
				fired++
			}
		}
		s.logger.Debug().Int("campaigns", len(results)).Int("fired", fired).Msg("cron tick")
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info().Str("spec", spec).Str("timezone", s.civil.Location().String()).Msg("cron started")

	return func() {
		cancel()
		<-c.Stop().Done()
		s.mu.Lock()
		s.cron = nil
		s.mu.Unlock()
		s.logger.Info().Msg("cron stopped")
	}, nil
}
