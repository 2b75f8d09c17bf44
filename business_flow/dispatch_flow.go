package businessflow

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/cedricperpignand1/bbbmailer/app/dto"
	"github.com/cedricperpignand1/bbbmailer/app/scheduler"
)

// CampaignRunner is the part of the scheduler driven by triggers
type CampaignRunner interface {
	RunCampaign(ctx context.Context, campaignID uint, force bool) (*scheduler.RunResult, error)
	RunDue(ctx context.Context, force bool) ([]*scheduler.RunResult, error)
}

// DispatchFlow turns trigger requests into scheduler runs
type DispatchFlow interface {
	RunDue(ctx context.Context, force bool, metadata *ClientMetadata) (*dto.RunDueResponse, error)
	RunCampaign(ctx context.Context, id uint, force bool, metadata *ClientMetadata) (*dto.RunResultDTO, error)
}

type DispatchFlowImpl struct {
	runner CampaignRunner
	logger zerolog.Logger
}

func NewDispatchFlow(runner CampaignRunner, logger zerolog.Logger) DispatchFlow {
	return &DispatchFlowImpl{
		runner: runner,
		logger: logger.With().Str("component", "dispatch_flow").Logger(),
	}
}

func (f *DispatchFlowImpl) RunDue(ctx context.Context, force bool, metadata *ClientMetadata) (*dto.RunDueResponse, error) {
	results, err := f.runner.RunDue(ctx, force)
	if err != nil {
		return nil, NewBusinessError("RUN_DUE_FAILED", "Failed to evaluate active campaigns", err)
	}

	resp := &dto.RunDueResponse{
		OK:        true,
		Forced:    force,
		Campaigns: len(results),
		Results:   make([]dto.RunResultDTO, 0, len(results)),
	}
	for _, r := range results {
		if r.RunID != nil && !r.Skipped {
			resp.Fired++
		}
		resp.Sent += r.Sent
		resp.Failed += r.Failed
		resp.Results = append(resp.Results, ToRunResultDTO(r))
	}

	f.logger.Info().
		Bool("forced", force).
		Int("campaigns", resp.Campaigns).
		Int("fired", resp.Fired).
		Int("sent", resp.Sent).
		Int("failed", resp.Failed).
		Str("subject", subject(metadata)).
		Msg("trigger evaluated")
	return resp, nil
}

func (f *DispatchFlowImpl) RunCampaign(ctx context.Context, id uint, force bool, metadata *ClientMetadata) (*dto.RunResultDTO, error) {
	r, err := f.runner.RunCampaign(ctx, id, force)
	if err != nil {
		if errors.Is(err, scheduler.ErrCampaignNotFound) {
			return nil, NewBusinessError("AUTO_CAMPAIGN_NOT_FOUND", "Auto campaign not found", ErrAutoCampaignNotFound)
		}
		return nil, NewBusinessError("RUN_FAILED", "Failed to run auto campaign", err)
	}
	f.logger.Info().
		Uint("campaign_id", id).
		Bool("forced", force).
		Str("reason", r.Reason).
		Int("sent", r.Sent).
		Str("subject", subject(metadata)).
		Msg("campaign trigger evaluated")
	out := ToRunResultDTO(r)
	return &out, nil
}

func subject(m *ClientMetadata) string {
	if m == nil {
		return ""
	}
	return m.Subject
}
