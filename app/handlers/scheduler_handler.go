package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	businessflow "github.com/cedricperpignand1/bbbmailer/business_flow"
)

// SchedulerHandlerInterface defines the trigger endpoints
type SchedulerHandlerInterface interface {
	Cron(c fiber.Ctx) error
	RunToday(c fiber.Ctx) error
	RunCampaign(c fiber.Ctx) error
}

// SchedulerHandler evaluates auto campaigns on demand. Requests carry no
// deadline of their own; each dispatch is bounded by the scheduler run timeout.
type SchedulerHandler struct {
	flow   businessflow.DispatchFlow
	logger zerolog.Logger
}

func NewSchedulerHandler(flow businessflow.DispatchFlow, logger zerolog.Logger) SchedulerHandlerInterface {
	return &SchedulerHandler{flow: flow, logger: logger}
}

// Cron evaluates every active campaign
// @Summary Evaluate active auto campaigns
// @Tags Auto Campaigns
// @Produce json
// @Param force query bool false "Bypass day, window and time checks"
// @Success 200 {object} dto.APIResponse{data=dto.RunDueResponse}
// @Router /api/v1/auto-campaigns/cron [get]
func (h *SchedulerHandler) Cron(c fiber.Ctx) error {
	ctx, cancel := createRequestContext(c, "/api/v1/auto-campaigns/cron", 0)
	defer cancel()

	res, err := h.flow.RunDue(ctx, queryBool(c, "force"), clientMetadata(c))
	if err != nil {
		h.logger.Error().Err(err).Msg("cron trigger failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Trigger failed", "TRIGGER_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, "Campaigns evaluated", res)
}

// RunToday runs one campaign when campaignId is given, otherwise all active ones
// @Summary Run auto campaigns now
// @Tags Auto Campaigns
// @Produce json
// @Param campaignId query int false "Campaign id"
// @Param force query bool false "Bypass day, window and time checks"
// @Success 200 {object} dto.APIResponse
// @Router /api/v1/auto-campaigns/run-today [post]
func (h *SchedulerHandler) RunToday(c fiber.Ctx) error {
	raw := c.Query("campaignId")
	if raw == "" {
		return h.Cron(c)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}
	return h.runOne(c, uint(id), "/api/v1/auto-campaigns/run-today")
}

// RunCampaign runs one campaign
// @Summary Run one auto campaign
// @Tags Auto Campaigns
// @Produce json
// @Param id path int true "Campaign id"
// @Param force query bool false "Bypass day, window and time checks"
// @Success 200 {object} dto.APIResponse{data=dto.RunResultDTO}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/auto-campaigns/{id}/run [post]
func (h *SchedulerHandler) RunCampaign(c fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}
	return h.runOne(c, id, "/api/v1/auto-campaigns/:id/run")
}

func (h *SchedulerHandler) runOne(c fiber.Ctx, id uint, endpoint string) error {
	ctx, cancel := createRequestContext(c, endpoint, 0)
	defer cancel()

	res, err := h.flow.RunCampaign(ctx, id, queryBool(c, "force"), clientMetadata(c))
	if err != nil {
		if businessflow.IsAutoCampaignNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Auto campaign not found", "AUTO_CAMPAIGN_NOT_FOUND", nil)
		}
		h.logger.Error().Err(err).Uint("campaign_id", id).Msg("campaign trigger failed")
		return errorResponse(c, fiber.StatusInternalServerError, "Trigger failed", "TRIGGER_FAILED", nil)
	}
	message := "Campaign evaluated"
	if !res.OK {
		message = "Campaign cannot run"
	}
	return successResponse(c, fiber.StatusOK, message, res)
}
