// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Threshold sources.
const (
	ThresholdSourceStatic   = "static"
	ThresholdSourceFile     = "file"
	ThresholdSourcePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	AWS        AWSConfig
	Azure      AzureConfig
	Jobs       JobsConfig
	Alerting   AlertingConfig
	Export     ExportConfig
	Sink       SinkConfig
	Resilience ResilienceConfig
	Logging    LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuthConfig holds API key settings. Keys are stored as bcrypt hashes only.
type AuthConfig struct {
	APIKeyEnabled bool
	APIKeyHashes  []string
}

// AWSConfig holds AWS provider settings.
type AWSConfig struct {
	Enabled       bool
	Region        string
	AccessKeyID   string
	SecretKey     string
	AssumeRoleARN string
	ExternalID    string
	// AccountID labels imported records; AWS has no subscription concept.
	AccountID string
	// CostTagKey is the cost allocation tag treated as the resource group.
	CostTagKey string
}

// AzureConfig holds Azure provider settings.
type AzureConfig struct {
	Enabled        bool
	TenantID       string
	ClientID       string
	ClientSecret   string
	SubscriptionID string
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	Enabled            bool
	CostImportSchedule string
	AlertSchedule      string
	ImportLookbackDays int
	AlertLookbackDays  int
	AlertConcurrency   int
	Timeout            time.Duration
}

// AlertingConfig holds threshold source and spike detector settings.
type AlertingConfig struct {
	ThresholdSource string
	ThresholdsFile  string
	SeedDefaults    bool
	SpikeMultiplier decimal.Decimal
	SpikeFloor      decimal.Decimal
	SpikeWindowDays int
	SpikeMinDays    int
}

// ExportConfig holds the S3 BI export settings.
type ExportConfig struct {
	S3Enabled bool
	S3Bucket  string
	S3Prefix  string
	S3Region  string
}

// SinkConfig holds alert delivery settings.
type SinkConfig struct {
	WebhookURLs    []string
	WebhookTimeout time.Duration
	RedisQueue     bool
	RedisQueueKey  string
}

// ResilienceConfig holds retry settings for outbound calls.
type ResilienceConfig struct {
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "smartcost"),
			Password:     getEnv("DB_PASSWORD", ""),
			Name:         getEnv("DB_NAME", "smartcost"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			APIKeyEnabled: getEnvBool("API_KEY_ENABLED", true),
			APIKeyHashes:  getEnvList("API_KEY_HASHES", nil),
		},
		AWS: AWSConfig{
			Enabled:       getEnvBool("AWS_ENABLED", false),
			Region:        getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:   getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretKey:     getEnv("AWS_SECRET_ACCESS_KEY", ""),
			AssumeRoleARN: getEnv("AWS_ASSUME_ROLE_ARN", ""),
			ExternalID:    getEnv("AWS_EXTERNAL_ID", ""),
			AccountID:     getEnv("AWS_ACCOUNT_ID", "aws"),
			CostTagKey:    getEnv("AWS_COST_TAG_KEY", "ResourceGroup"),
		},
		Azure: AzureConfig{
			Enabled:        getEnvBool("AZURE_ENABLED", false),
			TenantID:       getEnv("AZURE_TENANT_ID", ""),
			ClientID:       getEnv("AZURE_CLIENT_ID", ""),
			ClientSecret:   getEnv("AZURE_CLIENT_SECRET", ""),
			SubscriptionID: getEnv("AZURE_SUBSCRIPTION_ID", ""),
		},
		Jobs: JobsConfig{
			Enabled:            getEnvBool("JOBS_ENABLED", true),
			CostImportSchedule: getEnv("JOB_COST_IMPORT", "0 0 */6 * * *"),
			AlertSchedule:      getEnv("JOB_ALERT_EVALUATION", "0 30 * * * *"),
			ImportLookbackDays: getEnvInt("JOB_IMPORT_LOOKBACK_DAYS", 3),
			AlertLookbackDays:  getEnvInt("JOB_ALERT_LOOKBACK_DAYS", 8),
			AlertConcurrency:   getEnvInt("JOB_ALERT_CONCURRENCY", 4),
			Timeout:            getEnvDuration("JOB_TIMEOUT", 30*time.Minute),
		},
		Alerting: AlertingConfig{
			ThresholdSource: getEnv("THRESHOLD_SOURCE", ThresholdSourcePostgres),
			ThresholdsFile:  getEnv("THRESHOLDS_FILE", ""),
			SeedDefaults:    getEnvBool("THRESHOLDS_SEED_DEFAULTS", true),
			SpikeMultiplier: getEnvDecimal("ANOMALY_SPIKE_MULTIPLIER", decimal.RequireFromString("1.5")),
			SpikeFloor:      getEnvDecimal("ANOMALY_MINIMUM_COST", decimal.NewFromInt(100)),
			SpikeWindowDays: getEnvInt("ANOMALY_WINDOW_DAYS", 7),
			SpikeMinDays:    getEnvInt("ANOMALY_MINIMUM_DAYS", 3),
		},
		Export: ExportConfig{
			S3Enabled: getEnvBool("EXPORT_S3_ENABLED", false),
			S3Bucket:  getEnv("EXPORT_S3_BUCKET", ""),
			S3Prefix:  getEnv("EXPORT_S3_PREFIX", "alerts"),
			S3Region:  getEnv("EXPORT_S3_REGION", getEnv("AWS_REGION", "us-east-1")),
		},
		Sink: SinkConfig{
			WebhookURLs:    getEnvList("ALERT_WEBHOOK_URLS", nil),
			WebhookTimeout: getEnvDuration("ALERT_WEBHOOK_TIMEOUT", 10*time.Second),
			RedisQueue:     getEnvBool("ALERT_REDIS_QUEUE_ENABLED", false),
			RedisQueueKey:  getEnv("ALERT_REDIS_QUEUE_KEY", "smartcost:alerts"),
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts: getEnvInt("RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 1*time.Second),
			RetryMaxDelay:    getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Password == "" {
		errs = append(errs, errors.New("DB_PASSWORD is required"))
	}
	if c.Auth.APIKeyEnabled && len(c.Auth.APIKeyHashes) == 0 {
		errs = append(errs, errors.New("API_KEY_HASHES is required when API_KEY_ENABLED is true"))
	}

	switch c.Alerting.ThresholdSource {
	case ThresholdSourceStatic, ThresholdSourcePostgres:
	case ThresholdSourceFile:
		if c.Alerting.ThresholdsFile == "" {
			errs = append(errs, errors.New("THRESHOLDS_FILE is required when THRESHOLD_SOURCE is file"))
		}
	default:
		errs = append(errs, fmt.Errorf("THRESHOLD_SOURCE must be static, file or postgres, got %q", c.Alerting.ThresholdSource))
	}

	if !c.Alerting.SpikeMultiplier.IsPositive() {
		errs = append(errs, errors.New("ANOMALY_SPIKE_MULTIPLIER must be positive"))
	}
	if c.Alerting.SpikeFloor.IsNegative() {
		errs = append(errs, errors.New("ANOMALY_MINIMUM_COST must not be negative"))
	}
	if c.Alerting.SpikeWindowDays < 1 {
		errs = append(errs, errors.New("ANOMALY_WINDOW_DAYS must be at least 1"))
	}
	if c.Alerting.SpikeMinDays < 2 {
		errs = append(errs, errors.New("ANOMALY_MINIMUM_DAYS must be at least 2"))
	}
	if c.Export.S3Enabled && c.Export.S3Bucket == "" {
		errs = append(errs, errors.New("EXPORT_S3_BUCKET is required when EXPORT_S3_ENABLED is true"))
	}
	if c.Jobs.AlertConcurrency < 1 {
		errs = append(errs, errors.New("JOB_ALERT_CONCURRENCY must be at least 1"))
	}

	return errors.Join(errs...)
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Helper functions
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty entries.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
