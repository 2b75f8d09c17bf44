// Package main wires the scheduled campaign dispatcher: HTTP triggers, operator API and the in-process cron
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/cedricperpignand1/bbbmailer/app/handlers"
	"github.com/cedricperpignand1/bbbmailer/app/logging"
	"github.com/cedricperpignand1/bbbmailer/app/middleware"
	"github.com/cedricperpignand1/bbbmailer/app/router"
	"github.com/cedricperpignand1/bbbmailer/app/scheduler"
	"github.com/cedricperpignand1/bbbmailer/app/services"
	businessflow "github.com/cedricperpignand1/bbbmailer/business_flow"
	"github.com/cedricperpignand1/bbbmailer/config"
	"github.com/cedricperpignand1/bbbmailer/repository"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	server    *fiber.App
	logger    zerolog.Logger
	stopFuncs []func()
	closers   []io.Closer
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logCloser.Close() }()

	if len(os.Args) > 1 && os.Args[1] == "issue-token" {
		if err := issueToken(cfg, os.Args[2:]); err != nil {
			logger.Fatal().Err(err).Msg("failed to issue operator token")
		}
		return
	}

	logger.Info().
		Str("environment", cfg.Deployment.Environment).
		Str("version", cfg.Deployment.Version).
		Msg("starting bbbmailer")

	app, err := initializeApplication(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info().Str("address", address).Msg("server starting")
		if err := app.router.Start(address); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-sigChan
	logger.Info().Msg("shutting down gracefully")

	// cron first, so no new run starts while requests drain
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	for _, c := range app.closers {
		_ = c.Close()
	}

	logger.Info().Msg("server stopped")
}

// issueToken prints an operator bearer token for the given subject
func issueToken(cfg *config.ProductionConfig, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("usage: %s issue-token <subject>", os.Args[0])
	}
	tokens, err := services.NewTokenService(cfg.Auth.OperatorTokenTTL, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.OperatorSecret)
	if err != nil {
		return err
	}
	token, expiresAt, err := tokens.GenerateOperatorToken(args[0])
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logger zerolog.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(&logger, gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Msg("database connection established")
	return db, nil
}

// initializeCache returns nil when redis is disabled
func initializeCache(cfg config.CacheConfig, logger zerolog.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Int("db", cfg.RedisDB).Msg("redis connection established")
	return rc, nil
}

// startCacheHealthMonitor periodically pings Redis; the returned func stops it
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, logger zerolog.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn().Err(err).Msg("redis healthcheck failed, run locks fall back to the unique index")
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeNotificationService picks mock or relay transports per channel
func initializeNotificationService(cfg *config.ProductionConfig, logger zerolog.Logger) *services.NotificationService {
	var email services.EmailSender
	switch cfg.Email.Provider {
	case "relay":
		email = services.NewEmailService(&cfg.Email)
	default:
		email = services.NewMockEmailService(logger)
	}

	var sms services.SMSSender
	switch cfg.SMS.Provider {
	case "relay":
		sms = services.NewSMSService(&cfg.SMS)
	default:
		sms = services.NewMockSMSService(logger)
	}

	logger.Info().Str("email", cfg.Email.Provider).Str("sms", cfg.SMS.Provider).Msg("transports configured")
	return services.NewNotificationService(email, sms)
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig, logger zerolog.Logger) (*Application, error) {
	var (
		stopFuncs []func()
		closers   []io.Closer
	)

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	closers = append(closers, sqlDB)

	health := map[string]router.HealthCheck{
		"database": sqlDB.PingContext,
	}

	rc, err := initializeCache(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	var runLock scheduler.RunLock = scheduler.NoopLock{}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.CleanupInterval, logger))
		closers = append(closers, rc)
		runLock = scheduler.NewRedisRunLock(rc, cfg.Cache.RedisPrefix)
		health["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}

	campaignRepo := repository.NewAutoCampaignRepository(db)
	runRepo := repository.NewCampaignRunRepository(db)
	logRepo := repository.NewSendLogRepository(db)
	contactRepo := repository.NewContactRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	civil, err := scheduler.NewCivilResolver(scheduler.SystemClock{}, cfg.Scheduler.Timezone)
	if err != nil {
		return nil, err
	}

	notificationService := initializeNotificationService(cfg, logger)

	sched := scheduler.NewCampaignScheduler(scheduler.Deps{
		Campaigns: campaignRepo,
		Templates: templateRepo,
		Audience:  contactRepo,
		Runs:      runRepo,
		Logs:      logRepo,
		Transport: notificationService,
		Lock:      runLock,
	}, civil, cfg.Scheduler, scheduler.Senders{
		EmailFrom: cfg.Email.FromEmail,
		SMSFrom:   cfg.SMS.FromNumber,
	}, logger)

	tokenService, err := services.NewTokenService(cfg.Auth.OperatorTokenTTL, cfg.Auth.Issuer, cfg.Auth.Audience, cfg.Auth.OperatorSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	autoCampaignFlow := businessflow.NewAutoCampaignFlow(
		campaignRepo,
		templateRepo,
		contactRepo,
		runRepo,
		logRepo,
		civil,
		sched.Gate(),
		sched,
		cfg.Scheduler.RetryFailedRecipients,
		logger,
	)
	dispatchFlow := businessflow.NewDispatchFlow(sched, logger)

	authMiddleware := middleware.NewAuthMiddleware(tokenService, cfg.Auth)
	appRouter := router.NewFiberRouter(
		cfg.Server,
		cfg.Metrics,
		cfg.Deployment,
		handlers.NewSchedulerHandler(dispatchFlow, logger),
		handlers.NewAutoCampaignHandler(autoCampaignFlow, logger),
		authMiddleware,
		health,
		logger,
	)

	if cfg.Scheduler.CronEnabled {
		stopCron, err := sched.Start(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to start cron: %w", err)
		}
		// prepend: the cron must stop before anything it depends on
		stopFuncs = append([]func(){stopCron}, stopFuncs...)
	}

	return &Application{
		router:    appRouter,
		server:    appRouter.GetApp(),
		logger:    logger,
		stopFuncs: stopFuncs,
		closers:   closers,
	}, nil
}
