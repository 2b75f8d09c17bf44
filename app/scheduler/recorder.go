package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cedricperpignand1/bbbmailer/models"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

// RunStore persists run records
type RunStore interface {
	RunLookup
	InsertIfAbsent(ctx context.Context, run *models.CampaignRun) (bool, *models.CampaignRun, error)
	UpdateCounts(ctx context.Context, runID uint, counts models.CampaignRunCounts) error
}

// Recorder opens a run record before dispatch and closes it afterwards
type Recorder struct {
	runs  RunStore
	clock Clock
}

func NewRecorder(runs RunStore, clock Clock) *Recorder {
	return &Recorder{runs: runs, clock: clock}
}

// Open inserts the run. created=false means another trigger owns the period
// and existing carries its record.
func (r *Recorder) Open(ctx context.Context, c *models.AutoCampaign, key PeriodKey, forced bool, addressUsed *string) (*models.CampaignRun, bool, *models.CampaignRun, error) {
	run := &models.CampaignRun{
		UUID:        uuid.New(),
		CampaignID:  c.ID,
		PeriodKey:   key.Value,
		Scheme:      scheme(c),
		Forced:      forced,
		Status:      models.CampaignRunStatusRunning,
		AddressUsed: addressUsed,
		FiredAt:     r.clock.Now().UTC(),
	}
	created, existing, err := r.runs.InsertIfAbsent(ctx, run)
	if err != nil {
		return nil, false, nil, fmt.Errorf("open run: %w", err)
	}
	if !created {
		return nil, false, existing, nil
	}
	return run, true, nil, nil
}

// Close writes the final counts. It runs on a context detached from the
// caller so a cancelled request still records what was sent.
func (r *Recorder) Close(ctx context.Context, run *models.CampaignRun, res *DispatchResult) error {
	status := models.CampaignRunStatusCompleted
	if res.Interrupted {
		status = models.CampaignRunStatusInterrupted
	}
	now := r.clock.Now().UTC()
	counts := models.CampaignRunCounts{
		Queued:       res.Queued,
		Sent:         res.Sent,
		Failed:       res.Failed,
		Status:       status,
		AddressUsed:  run.AddressUsed,
		ErrorSummary: summarize(res),
		CompletedAt:  &now,
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := r.runs.UpdateCounts(wctx, run.ID, counts); err != nil {
		return fmt.Errorf("close run %d: %w", run.ID, err)
	}
	run.QueuedCount, run.SentCount, run.FailedCount = res.Queued, res.Sent, res.Failed
	run.Status = status
	run.ErrorSummary = counts.ErrorSummary
	run.CompletedAt = &now
	return nil
}

func summarize(res *DispatchResult) *string {
	if len(res.Errors) == 0 && !res.Interrupted {
		return nil
	}
	var b strings.Builder
	if res.Interrupted {
		fmt.Fprintf(&b, "interrupted after %d of %d recipients", res.Queued, res.Planned)
		if res.Cause != nil {
			fmt.Fprintf(&b, ": %v", res.Cause)
		}
		b.WriteString("\n")
	}
	for _, e := range res.Errors {
		fmt.Fprintf(&b, "%s: %s\n", e.Recipient, e.Error)
	}
	s := utils.TruncateBytes(strings.TrimRight(b.String(), "\n"), utils.MaxSendErrorBytes)
	return &s
}

func scheme(c *models.AutoCampaign) models.ScheduleMode {
	if c.ScheduleMode == "" {
		return models.ScheduleModeDaily
	}
	return c.ScheduleMode
}
