// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cedricperpignand1/bbbmailer/utils"
	"github.com/joho/godotenv"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Auth       AuthConfig       `json:"auth"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	SMS        SMSConfig        `json:"sms"`
	Email      EmailConfig      `json:"email"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
	RequestTimeout  time.Duration `json:"request_timeout"`
}

// AuthConfig covers the trigger shared secret and operator tokens
type AuthConfig struct {
	TriggerSecret    string        `json:"-"`
	TrustCronHeader  bool          `json:"trust_cron_header"`
	CronHeader       string        `json:"cron_header"`
	CronHeaderValue  string        `json:"cron_header_value"`
	OperatorSecret   string        `json:"-"`
	OperatorTokenTTL time.Duration `json:"operator_token_ttl"`
	Issuer           string        `json:"issuer"`
	Audience         string        `json:"audience"`
}

// SchedulerConfig drives the dispatch core
type SchedulerConfig struct {
	Timezone               string        `json:"timezone"`
	CronEnabled            bool          `json:"cron_enabled"`
	CronSpec               string        `json:"cron_spec"`
	TimeTolerance          time.Duration `json:"time_tolerance"`
	PacingMin              time.Duration `json:"pacing_min"`
	PacingMax              time.Duration `json:"pacing_max"`
	SendRatePerSec         float64       `json:"send_rate_per_sec"`
	RunTimeout             time.Duration `json:"run_timeout"`
	RetryFailedRecipients  bool          `json:"retry_failed_recipients"`
	MaxConcurrentCampaigns int           `json:"max_concurrent_campaigns"`
	LockTTL                time.Duration `json:"lock_ttl"`
	MaxPerRunCeiling       int           `json:"max_per_run_ceiling"`
}

type SMSConfig struct {
	Provider   string        `json:"provider"` // mock, relay
	RelayURL   string        `json:"relay_url"`
	APIKey     string        `json:"-"`
	FromNumber string        `json:"from_number"`
	Timeout    time.Duration `json:"timeout"`
}

type EmailConfig struct {
	Provider  string        `json:"provider"` // mock, relay
	RelayURL  string        `json:"relay_url"`
	APIKey    string        `json:"-"`
	FromEmail string        `json:"from_email"`
	FromName  string        `json:"from_name"`
	Timeout   time.Duration `json:"timeout"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	Enabled         bool          `json:"enabled"`
	Provider        string        `json:"provider"` // redis
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	RedisPrefix     string        `json:"redis_prefix"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "bbbmailer"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Minute),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 4*1024*1024), // 4MB
			RequestTimeout:  getEnvDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
		},
		Auth: AuthConfig{
			TriggerSecret:    getEnvString("SCHEDULER_TRIGGER_SECRET", ""),
			TrustCronHeader:  getEnvBool("SCHEDULER_TRUST_CRON_HEADER", false),
			CronHeader:       getEnvString("SCHEDULER_CRON_HEADER", "X-Cron-Trigger"),
			CronHeaderValue:  getEnvString("SCHEDULER_CRON_HEADER_VALUE", "1"),
			OperatorSecret:   getEnvString("OPERATOR_JWT_SECRET", ""),
			OperatorTokenTTL: getEnvDuration("OPERATOR_TOKEN_TTL", 30*24*time.Hour),
			Issuer:           getEnvString("OPERATOR_JWT_ISSUER", "bbbmailer"),
			Audience:         getEnvString("OPERATOR_JWT_AUDIENCE", "bbbmailer-admin"),
		},
		Scheduler: SchedulerConfig{
			Timezone:               getEnvString("SCHEDULER_TIMEZONE", utils.DefaultTimezone),
			CronEnabled:            getEnvBool("SCHEDULER_CRON_ENABLED", true),
			CronSpec:               getEnvString("SCHEDULER_CRON_SPEC", utils.DefaultCronSpec),
			TimeTolerance:          getEnvDuration("SCHEDULER_TIME_TOLERANCE", utils.DefaultTimeTolerance),
			PacingMin:              getEnvDuration("SCHEDULER_PACING_MIN", utils.DefaultPacingMin),
			PacingMax:              getEnvDuration("SCHEDULER_PACING_MAX", utils.DefaultPacingMax),
			SendRatePerSec:         getEnvFloat("SCHEDULER_SEND_RATE_PER_SEC", 0),
			RunTimeout:             getEnvDuration("SCHEDULER_RUN_TIMEOUT", utils.DefaultRunTimeout),
			RetryFailedRecipients:  getEnvBool("SCHEDULER_RETRY_FAILED", false),
			MaxConcurrentCampaigns: getEnvInt("SCHEDULER_MAX_CONCURRENT_CAMPAIGNS", 4),
			LockTTL:                getEnvDuration("SCHEDULER_LOCK_TTL", 15*time.Minute),
			MaxPerRunCeiling:       getEnvInt("SCHEDULER_MAX_PER_RUN", 250),
		},
		SMS: SMSConfig{
			Provider:   getEnvString("SMS_PROVIDER", "mock"),
			RelayURL:   getEnvString("SMS_RELAY_URL", ""),
			APIKey:     getEnvString("SMS_API_KEY", ""),
			FromNumber: getEnvString("SMS_FROM", ""),
			Timeout:    getEnvDuration("SMS_TIMEOUT", 30*time.Second),
		},
		Email: EmailConfig{
			Provider:  getEnvString("EMAIL_PROVIDER", "mock"),
			RelayURL:  getEnvString("EMAIL_RELAY_URL", ""),
			APIKey:    getEnvString("EMAIL_API_KEY", ""),
			FromEmail: getEnvString("EMAIL_FROM", ""),
			FromName:  getEnvString("EMAIL_FROM_NAME", ""),
			Timeout:   getEnvDuration("EMAIL_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Format:     getEnvString("LOG_FORMAT", "json"),
			Output:     getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:   getEnvString("LOG_FILE_PATH", "data/bbbmailer.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:         getEnvBool("CACHE_ENABLED", false),
			Provider:        getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "bbbmailer:"),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 1*time.Minute),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads variables from path when it exists; variables already set win
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	if cfg.Database.Host == "" {
		errs = append(errs, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errs = append(errs, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errs = append(errs, "DB_USER is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}

	if cfg.Auth.TriggerSecret == "" && !cfg.Auth.TrustCronHeader {
		errs = append(errs, "SCHEDULER_TRIGGER_SECRET is required unless SCHEDULER_TRUST_CRON_HEADER is set")
	}
	if cfg.Auth.OperatorSecret != "" && len(cfg.Auth.OperatorSecret) < 32 {
		errs = append(errs, "OPERATOR_JWT_SECRET must be at least 32 characters long")
	}

	// A missing zone database would silently shift every schedule to UTC
	if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("SCHEDULER_TIMEZONE %q cannot be loaded: %v", cfg.Scheduler.Timezone, err))
	}
	if cfg.Scheduler.TimeTolerance < 0 {
		errs = append(errs, "SCHEDULER_TIME_TOLERANCE must not be negative")
	}
	if cfg.Scheduler.PacingMin < 0 || cfg.Scheduler.PacingMax < cfg.Scheduler.PacingMin {
		errs = append(errs, "SCHEDULER_PACING_MIN/MAX must satisfy 0 <= min <= max")
	}
	if cfg.Scheduler.RunTimeout <= 0 {
		errs = append(errs, "SCHEDULER_RUN_TIMEOUT must be positive")
	}
	if cfg.Scheduler.SendRatePerSec < 0 {
		errs = append(errs, "SCHEDULER_SEND_RATE_PER_SEC must not be negative")
	}
	if cfg.Scheduler.MaxPerRunCeiling < 1 || cfg.Scheduler.MaxPerRunCeiling > 2000 {
		errs = append(errs, "SCHEDULER_MAX_PER_RUN must be between 1 and 2000")
	}

	if cfg.SMS.Provider == "relay" && cfg.SMS.RelayURL == "" {
		errs = append(errs, "SMS_RELAY_URL is required for the relay SMS provider")
	}
	if cfg.Email.Provider == "relay" && cfg.Email.RelayURL == "" {
		errs = append(errs, "EMAIL_RELAY_URL is required for the relay email provider")
	}

	switch cfg.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "LOG_LEVEL must be one of: [debug info warn error]")
	}

	if cfg.Cache.Enabled && cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
		errs = append(errs, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
