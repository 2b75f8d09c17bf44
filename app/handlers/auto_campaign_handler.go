package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/cedricperpignand1/bbbmailer/app/dto"
	businessflow "github.com/cedricperpignand1/bbbmailer/business_flow"
)

const (
	xlsxContentType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	adminRequestTimeout  = 30 * time.Second
	testSendRequestLimit = 60 * time.Second
)

// AutoCampaignHandlerInterface defines operator endpoints for auto campaigns
type AutoCampaignHandlerInterface interface {
	List(c fiber.Ctx) error
	Upsert(c fiber.Ctx) error
	Toggle(c fiber.Ctx) error
	State(c fiber.Ctx) error
	TestSend(c fiber.Ctx) error
	ExportRun(c fiber.Ctx) error
}

type AutoCampaignHandler struct {
	flow      businessflow.AutoCampaignFlow
	validator *validator.Validate
	logger    zerolog.Logger
}

func NewAutoCampaignHandler(flow businessflow.AutoCampaignFlow, logger zerolog.Logger) AutoCampaignHandlerInterface {
	return &AutoCampaignHandler{
		flow:      flow,
		validator: validator.New(),
		logger:    logger,
	}
}

// List returns auto campaigns with their recent runs
// @Summary List auto campaigns
// @Tags Auto Campaigns
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page (max 100)" default(20)
// @Param runs query int false "Recent runs per campaign (max 100)" default(30)
// @Param channel query string false "Filter by channel (email|sms)"
// @Param active query bool false "Filter by active flag"
// @Success 200 {object} dto.APIResponse{data=dto.ListAutoCampaignsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/auto-campaigns [get]
func (h *AutoCampaignHandler) List(c fiber.Ctx) error {
	page := 1
	if v, err := strconv.Atoi(c.Query("page", "1")); err == nil && v > 0 {
		page = v
	}
	limit := 20
	if v, err := strconv.Atoi(c.Query("limit", "20")); err == nil && v > 0 {
		limit = v
	}
	if limit > 100 {
		limit = 100
	}
	runs := businessflow.DefaultListRunLimit
	if v, err := strconv.Atoi(c.Query("runs")); err == nil && v >= 0 {
		runs = min(v, 100)
	}

	req := &dto.ListAutoCampaignsRequest{Page: page, Limit: limit, Runs: runs}
	if channel := c.Query("channel"); channel != "" {
		req.Channel = &channel
	}
	if active := c.Query("active"); active != "" {
		v, err := strconv.ParseBool(active)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid active filter", "INVALID_REQUEST", active)
		}
		req.Active = &v
	}
	if ok, err := validate(c, h.validator, req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auto-campaigns", adminRequestTimeout)
	defer cancel()

	res, err := h.flow.List(ctx, req)
	if err != nil {
		return h.flowError(c, err, "List auto campaigns failed", "AUTO_CAMPAIGN_LIST_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Auto campaigns retrieved", res)
}

// Upsert creates or updates an auto campaign
// @Summary Create or update an auto campaign
// @Tags Auto Campaigns
// @Accept json
// @Produce json
// @Param request body dto.UpsertAutoCampaignRequest true "Campaign"
// @Success 200 {object} dto.APIResponse{data=dto.AutoCampaignDTO}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/auto-campaigns [post]
func (h *AutoCampaignHandler) Upsert(c fiber.Ctx) error {
	var req dto.UpsertAutoCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validate(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auto-campaigns", adminRequestTimeout)
	defer cancel()

	res, err := h.flow.Upsert(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Save auto campaign failed", "AUTO_CAMPAIGN_SAVE_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Auto campaign saved", res)
}

// Toggle switches a campaign on or off
// @Summary Toggle an auto campaign
// @Tags Auto Campaigns
// @Accept json
// @Produce json
// @Param id path int true "Campaign id"
// @Param request body dto.ToggleAutoCampaignRequest true "Toggle"
// @Success 200 {object} dto.APIResponse{data=dto.AutoCampaignDTO}
// @Router /api/v1/auto-campaigns/{id}/toggle [post]
func (h *AutoCampaignHandler) Toggle(c fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}
	var req dto.ToggleAutoCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validate(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auto-campaigns/:id/toggle", adminRequestTimeout)
	defer cancel()

	res, err := h.flow.Toggle(ctx, id, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Toggle auto campaign failed", "AUTO_CAMPAIGN_TOGGLE_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Auto campaign updated", res)
}

// State returns the campaign with its recent activity
// @Summary Auto campaign state
// @Tags Auto Campaigns
// @Produce json
// @Param id path int true "Campaign id"
// @Success 200 {object} dto.APIResponse{data=dto.AutoCampaignStateResponse}
// @Router /api/v1/auto-campaigns/{id}/state [get]
func (h *AutoCampaignHandler) State(c fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}
	ctx, cancel := createRequestContext(c, "/api/v1/auto-campaigns/:id/state", adminRequestTimeout)
	defer cancel()

	res, err := h.flow.State(ctx, id)
	if err != nil {
		return h.flowError(c, err, "Load auto campaign state failed", "AUTO_CAMPAIGN_STATE_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Auto campaign state", res)
}

// TestSend renders and sends one message without recording a run
// @Summary Send a test message
// @Tags Auto Campaigns
// @Accept json
// @Produce json
// @Param id path int true "Campaign id"
// @Param request body dto.TestSendRequest true "Recipient"
// @Success 200 {object} dto.APIResponse{data=dto.TestSendResponse}
// @Failure 422 {object} dto.APIResponse "Campaign misconfigured"
// @Failure 502 {object} dto.APIResponse "Transport rejected the message"
// @Router /api/v1/auto-campaigns/{id}/test-send [post]
func (h *AutoCampaignHandler) TestSend(c fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}
	var req dto.TestSendRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := validate(c, h.validator, &req); !ok {
		return err
	}

	ctx, cancel := createRequestContext(c, "/api/v1/auto-campaigns/:id/test-send", testSendRequestLimit)
	defer cancel()

	res, err := h.flow.TestSend(ctx, id, &req, clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "Test send failed", "TEST_SEND_FAILED")
	}
	return successResponse(c, fiber.StatusOK, "Test message sent", res)
}

// ExportRun downloads a run's send logs as a spreadsheet
// @Summary Export a run
// @Tags Auto Campaigns
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Campaign id"
// @Param runId path int true "Run id"
// @Success 200 {file} file
// @Router /api/v1/auto-campaigns/{id}/runs/{runId}/export [get]
func (h *AutoCampaignHandler) ExportRun(c fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}
	runID, ok := paramID(c, "runId")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid run id", "INVALID_RUN_ID", nil)
	}
	ctx, cancel := createRequestContext(c, "/api/v1/auto-campaigns/:id/runs/:runId/export", adminRequestTimeout)
	defer cancel()

	name, data, err := h.flow.ExportRun(ctx, id, runID)
	if err != nil {
		return h.flowError(c, err, "Export failed", "EXPORT_FAILED")
	}
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, xlsxContentType)
	return c.Status(fiber.StatusOK).Send(data)
}

// flowError maps business errors onto HTTP responses
func (h *AutoCampaignHandler) flowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	code := businessflow.ErrorCode(err)
	switch {
	case businessflow.IsAutoCampaignNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Auto campaign not found", "AUTO_CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsRunNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Run not found", "RUN_NOT_FOUND", nil)
	case businessflow.IsTemplateNotFound(err):
		return errorResponse(c, fiber.StatusBadRequest, "Template not found", "TEMPLATE_NOT_FOUND", nil)
	case businessflow.IsValidationFailed(err):
		return errorResponse(c, fiber.StatusBadRequest, businessMessage(err, "Validation failed"), code, nil)
	case businessflow.IsCampaignMisconfigured(err):
		return errorResponse(c, fiber.StatusUnprocessableEntity, businessMessage(err, "Campaign cannot send"), code, err.Error())
	case businessflow.IsTransportFailed(err):
		h.logger.Warn().Err(err).Msg("transport rejected test message")
		return errorResponse(c, fiber.StatusBadGateway, "Transport rejected the message", code, err.Error())
	}
	h.logger.Error().Err(err).Str("code", code).Msg(fallbackMessage)
	return errorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

func businessMessage(err error, def string) string {
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return def
}
