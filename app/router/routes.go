// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cedricperpignand1/bbbmailer/app/dto"
	"github.com/cedricperpignand1/bbbmailer/app/handlers"
	"github.com/cedricperpignand1/bbbmailer/app/middleware"
	"github.com/cedricperpignand1/bbbmailer/config"
	"github.com/cedricperpignand1/bbbmailer/utils"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app                 *fiber.App
	schedulerHandler    handlers.SchedulerHandlerInterface
	autoCampaignHandler handlers.AutoCampaignHandlerInterface
	authMiddleware      *middleware.AuthMiddleware
	metrics             config.MetricsConfig
	health              map[string]HealthCheck
	version             string
	logger              zerolog.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	server config.ServerConfig,
	metrics config.MetricsConfig,
	deployment config.DeploymentConfig,
	schedulerHandler handlers.SchedulerHandlerInterface,
	autoCampaignHandler handlers.AutoCampaignHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	health map[string]HealthCheck,
	logger zerolog.Logger,
) Router {
	r := &FiberRouter{
		schedulerHandler:    schedulerHandler,
		autoCampaignHandler: autoCampaignHandler,
		authMiddleware:      authMiddleware,
		metrics:             metrics,
		health:              health,
		version:             deployment.Version,
		logger:              logger,
	}
	r.app = fiber.New(fiber.Config{
		AppName:      "bbbmailer",
		ErrorHandler: r.errorHandler,
		BodyLimit:    server.BodyLimit,
		ReadTimeout:  server.ReadTimeout,
		WriteTimeout: server.WriteTimeout,
		IdleTimeout:  server.IdleTimeout,
	})
	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.setupMiddleware()

	if r.metrics.Enabled {
		path := r.metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")
	api.Get("/health", r.healthCheck)

	api.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error:   dto.ErrorDetail{Code: "RATE_LIMIT_EXCEEDED"},
			})
		},
	}))

	campaigns := api.Group("/auto-campaigns")

	// trigger surface: shared secret, trusted cron header, or operator token
	trigger := r.authMiddleware.Trigger()
	campaigns.Get("/cron", trigger, r.schedulerHandler.Cron)
	campaigns.Post("/cron", trigger, r.schedulerHandler.Cron)
	campaigns.Post("/run-today", trigger, r.schedulerHandler.RunToday)
	campaigns.Post("/:id/run", trigger, r.schedulerHandler.RunCampaign)

	operator := r.authMiddleware.Operator()
	campaigns.Get("/", operator, r.autoCampaignHandler.List)
	campaigns.Post("/", operator, r.autoCampaignHandler.Upsert)
	campaigns.Post("/:id/toggle", operator, r.autoCampaignHandler.Toggle)
	campaigns.Get("/:id/state", operator, r.autoCampaignHandler.State)
	campaigns.Post("/:id/test-send", operator, r.autoCampaignHandler.TestSend)
	campaigns.Get("/:id/runs/:runId/export", operator, r.autoCampaignHandler.ExportRun)

	r.app.Use(r.notFoundHandler)

	r.logger.Info().Msg("routes configured")
}

func (r *FiberRouter) setupMiddleware() {
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.NewString()
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error().
				Interface("panic", e).
				Str("request_id", requestid.FromContext(c)).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("panic recovered")
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XFrameOptions:  "DENY",
		ReferrerPolicy: "no-referrer",
	}))

	r.app.Use(middleware.Metrics())
	r.app.Use(r.accessLog)
}

// accessLog writes one structured line per request
func (r *FiberRouter) accessLog(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if c.Path() == "/api/v1/health" {
		return err
	}
	status := c.Response().StatusCode()
	event := r.logger.Info()
	if status >= fiber.StatusInternalServerError {
		event = r.logger.Error()
	}
	event.
		Str("request_id", requestid.FromContext(c)).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Str("ip", c.IP()).
		Dur("latency", time.Since(start)).
		Msg("request")
	return err
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	return r.app.Listen(address)
}

// GetApp returns the underlying Fiber app
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true
	for name, check := range r.health {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := fiber.StatusOK
	message := "Service is healthy"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		message = "Service is degraded"
	}
	return c.Status(status).JSON(dto.APIResponse{
		Success: healthy,
		Message: message,
		Data: fiber.Map{
			"status":    map[bool]string{true: "healthy", false: "degraded"}[healthy],
			"timestamp": utils.UTCNow().Format(time.RFC3339),
			"version":   r.version,
			"checks":    checks,
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	r.logger.Error().Err(err).Int("status", code).Str("request_id", requestid.FromContext(c)).Msg("unhandled error")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}
