package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

// SendLogStore persists per recipient outcomes
type SendLogStore interface {
	SendHistory
	Save(ctx context.Context, entity *models.SendLog) error
	MarkSent(ctx context.Context, id uint, providerMessageID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uint, errText string) error
}

// RecipientError is one failed recipient in a run summary
type RecipientError struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// DispatchResult aggregates the outcome of the send loop
type DispatchResult struct {
	Planned     int
	Queued      int
	Sent        int
	Failed      int
	// LogErrors counts recipients skipped because their queued row could not be written
	LogErrors   int
	Errors      []RecipientError
	Interrupted bool
	Cause       error
}

func (r *DispatchResult) addError(recipient string, err error) {
	if len(r.Errors) >= utils.MaxErrorSamples {
		return
	}
	r.Errors = append(r.Errors, RecipientError{Recipient: recipient, Error: utils.TruncateBytes(err.Error(), utils.MaxSendErrorBytes)})
}

// Plan is everything the send loop needs for one run
type Plan struct {
	Campaign   *models.AutoCampaign
	Run        *models.CampaignRun
	Key        PeriodKey
	Content    Content
	From       string
	Pool       []string
	Strategy   AddressStrategy
	Recipients []*models.Contact
}

// Dispatcher sends sequentially with pacing between sends
type Dispatcher struct {
	logs      SendLogStore
	transport Transport
	pacer     Pacer
	clock     Clock
	logger    zerolog.Logger
}

func NewDispatcher(logs SendLogStore, transport Transport, pacer Pacer, clock Clock, logger zerolog.Logger) *Dispatcher {
	if pacer == nil {
		pacer = NoPacer{}
	}
	return &Dispatcher{logs: logs, transport: transport, pacer: pacer, clock: clock, logger: logger}
}

// Dispatch never aborts on a single recipient failure. It stops early only when
// ctx is done, leaving the remaining recipients untouched.
func (d *Dispatcher) Dispatch(ctx context.Context, p *Plan) *DispatchResult {
	res := &DispatchResult{Planned: len(p.Recipients)}
	escape := p.Content.ContentType == models.ContentTypeHTML
	channel := p.Campaign.Channel.String()

	for i, ct := range p.Recipients {
		if err := ctx.Err(); err != nil {
			res.Interrupted, res.Cause = true, err
			break
		}
		if i > 0 {
			if err := d.pacer.Wait(ctx); err != nil {
				res.Interrupted, res.Cause = true, err
				break
			}
		}

		to := ct.AddressFor(p.Campaign.Channel)
		address := p.Strategy.Pick(p.Pool, ct.ID, p.Key.Value, p.Campaign.AddressCursor)
		vars := RecipientVars(ct, address)
		msg := Message{
			Channel:     p.Campaign.Channel,
			To:          to,
			From:        p.From,
			Subject:     Render(p.Content.Subject, vars, false),
			Body:        Render(p.Content.Body, vars, escape),
			ContentType: p.Content.ContentType,
		}

		entry := &models.SendLog{
			RunID:      p.Run.ID,
			CampaignID: p.Campaign.ID,
			ContactID:  ct.ID,
			Channel:    p.Campaign.Channel,
			Recipient:  to,
			Status:     models.SendLogStatusQueued,
		}
		if address != "" {
			entry.AddressUsed = utils.ToPtr(address)
		}
		if msg.Subject != "" {
			entry.Subject = utils.ToPtr(msg.Subject)
		}
		if err := d.logs.Save(ctx, entry); err != nil {
			// without a queued row there is no audit trail, so the send is not attempted
			res.LogErrors++
			res.addError(to, fmt.Errorf("queue log: %w", err))
			sendsTotal.WithLabelValues(channel, "log_error").Inc()
			d.logger.Error().Err(err).Uint("contact_id", ct.ID).Msg("failed to create send log")
			continue
		}
		res.Queued++

		providerID, sendErr := d.transport.Send(ctx, msg)
		wctx := context.WithoutCancel(ctx)
		if sendErr != nil {
			res.Failed++
			res.addError(to, sendErr)
			sendsTotal.WithLabelValues(channel, string(models.SendLogStatusFailed)).Inc()
			if err := d.logs.MarkFailed(wctx, entry.ID, utils.TruncateBytes(sendErr.Error(), utils.MaxSendErrorBytes)); err != nil {
				d.logger.Error().Err(err).Uint("send_log_id", entry.ID).Msg("failed to mark send log failed")
			}
			d.logger.Warn().Err(sendErr).Uint("contact_id", ct.ID).Str("to", to).Msg("send failed")
			continue
		}

		res.Sent++
		sendsTotal.WithLabelValues(channel, string(models.SendLogStatusSent)).Inc()
		if err := d.logs.MarkSent(wctx, entry.ID, providerID, d.clock.Now().UTC()); err != nil {
			d.logger.Error().Err(err).Uint("send_log_id", entry.ID).Msg("failed to mark send log sent")
		}
	}
	return res
}
