// Package container provides dependency injection.
package container

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/smartcost/backend/internal/alerting"
	"github.com/smartcost/backend/internal/config"
	"github.com/smartcost/backend/internal/jobs"
	"github.com/smartcost/backend/internal/provider"
	"github.com/smartcost/backend/internal/provider/aws"
	"github.com/smartcost/backend/internal/provider/azure"
	"github.com/smartcost/backend/internal/repository"
	"github.com/smartcost/backend/internal/sink"
	"github.com/smartcost/backend/internal/threshold"
)

// Job names registered with the scheduler.
const (
	JobCostImport      = "cost-import"
	JobAlertEvaluation = "alert-evaluation"
)

// openDB opens the application database.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// Container holds all application dependencies.
type Container struct {
	cfg              *config.Config
	logger           *slog.Logger
	db               *sql.DB
	redis            *redis.Client
	providerRegistry *provider.Registry
	scheduler        *jobs.Scheduler

	// Repositories
	costRecordRepo *repository.PostgresCostRecordRepository
	thresholdRepo  *repository.PostgresThresholdRepository

	// Services
	thresholds threshold.Provider
	engine     *alerting.Engine
	sinks      *sink.Fanout
	importJob  *jobs.CostImportJob
	alertJob   *jobs.AlertJob
}

// New creates a new dependency container.
func New(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := &Container{
		cfg:    cfg,
		logger: logger,
	}

	// Initialize database
	db, err := openDB(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	c.db = db
	logger.Info("database connected", "host", cfg.Database.Host, "database", cfg.Database.Name)

	if err := c.init(ctx); err != nil {
		c.Stop(ctx)
		return nil, err
	}
	return c, nil
}

// init builds everything that depends on the open database.
func (c *Container) init(ctx context.Context) error {
	cfg, logger, db := c.cfg, c.logger, c.db

	// Initialize repositories and ensure tables exist
	c.costRecordRepo = repository.NewPostgresCostRecordRepository(db)
	if err := c.costRecordRepo.EnsureTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure cost_records table: %w", err)
	}
	c.thresholdRepo = repository.NewPostgresThresholdRepository(db)
	if err := c.thresholdRepo.EnsureTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure cost_thresholds table: %w", err)
	}

	if err := c.initThresholds(ctx); err != nil {
		return err
	}

	anomaly := alerting.AnomalyConfig{
		SpikeMultiplier: cfg.Alerting.SpikeMultiplier,
		MinimumCost:     cfg.Alerting.SpikeFloor,
		WindowDays:      cfg.Alerting.SpikeWindowDays,
		MinimumDays:     cfg.Alerting.SpikeMinDays,
	}
	if err := anomaly.Validate(); err != nil {
		return err
	}
	c.engine = alerting.NewEngine(c.thresholds, logger, alerting.WithAnomalyConfig(anomaly))
	logger.Info("alert engine initialized",
		"threshold_source", cfg.Alerting.ThresholdSource,
		"spike_multiplier", anomaly.SpikeMultiplier.String(),
		"spike_window_days", anomaly.WindowDays,
	)

	if err := c.initSinks(ctx); err != nil {
		return err
	}

	// Initialize provider registry
	c.providerRegistry = provider.NewRegistry()

	if cfg.AWS.Enabled {
		awsProvider, err := aws.NewProvider(ctx, cfg.AWS, cfg.Resilience, logger)
		if err != nil {
			logger.Warn("failed to initialize AWS provider", "error", err)
		} else {
			c.providerRegistry.Register("aws", awsProvider)
			logger.Info("AWS provider registered", "region", cfg.AWS.Region)
		}
	}

	if cfg.Azure.Enabled {
		azureProvider, err := azure.NewProvider(cfg.Azure, logger)
		if err != nil {
			logger.Warn("failed to initialize Azure provider", "error", err)
		} else {
			c.providerRegistry.Register("azure", azureProvider)
			logger.Info("Azure provider registered", "subscription", cfg.Azure.SubscriptionID)
		}
	}

	// Jobs
	var triggers jobs.TriggerRecorder
	if cfg.Alerting.ThresholdSource == config.ThresholdSourcePostgres {
		triggers = c.thresholdRepo
	}
	c.importJob = jobs.NewCostImportJob(c.providerRegistry, c.costRecordRepo, cfg.Jobs.ImportLookbackDays, logger)
	c.alertJob = jobs.NewAlertJob(c.costRecordRepo, c.engine, triggers, c.sinks, jobs.AlertJobConfig{
		LookbackDays: cfg.Jobs.AlertLookbackDays,
		Concurrency:  cfg.Jobs.AlertConcurrency,
	}, logger)

	c.scheduler = jobs.NewScheduler(logger, cfg.Jobs.Timeout)
	if err := c.scheduler.Register(JobCostImport, cfg.Jobs.CostImportSchedule, c.importJob.Run); err != nil {
		return err
	}
	if err := c.scheduler.Register(JobAlertEvaluation, cfg.Jobs.AlertSchedule, c.alertJob.Run); err != nil {
		return err
	}

	return nil
}

func (c *Container) initThresholds(ctx context.Context) error {
	switch c.cfg.Alerting.ThresholdSource {
	case config.ThresholdSourceFile:
		fp, err := threshold.NewFileProvider(c.cfg.Alerting.ThresholdsFile, c.logger)
		if err != nil {
			return err
		}
		if _, err := threshold.LoadFile(fp.Path()); err != nil {
			return fmt.Errorf("failed to load thresholds file: %w", err)
		}
		c.thresholds = fp
		c.logger.Info("thresholds loaded from file", "path", fp.Path())

	case config.ThresholdSourceStatic:
		c.thresholds = threshold.NewStaticProvider(threshold.DefaultThresholds())
		c.logger.Info("using built-in default thresholds")

	default:
		if c.cfg.Alerting.SeedDefaults {
			n, err := c.thresholdRepo.SeedIfEmpty(ctx, threshold.DefaultThresholds())
			if err != nil {
				return fmt.Errorf("failed to seed default thresholds: %w", err)
			}
			if n > 0 {
				c.logger.Info("seeded default thresholds", "count", n)
			}
		}
		c.thresholds = c.thresholdRepo
	}
	return nil
}

func (c *Container) initSinks(ctx context.Context) error {
	var sinks []sink.Sink

	if len(c.cfg.Sink.WebhookURLs) > 0 {
		sinks = append(sinks, sink.NewWebhook(c.cfg.Sink.WebhookURLs, c.cfg.Sink.WebhookTimeout))
		c.logger.Info("webhook sink enabled", "urls", len(c.cfg.Sink.WebhookURLs))
	}

	if c.cfg.Sink.RedisQueue {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     c.cfg.Redis.Addr(),
			Password: c.cfg.Redis.Password,
			DB:       c.cfg.Redis.DB,
		})
		if err := c.redis.Ping(ctx).Err(); err != nil {
			c.logger.Warn("redis not reachable, alert queue will retry on publish", "addr", c.cfg.Redis.Addr(), "error", err)
		}
		sinks = append(sinks, sink.NewRedisQueue(c.redis, c.cfg.Sink.RedisQueueKey))
		c.logger.Info("redis alert queue enabled", "key", c.cfg.Sink.RedisQueueKey)
	}

	if c.cfg.Export.S3Enabled {
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.cfg.Export.S3Region)}
		if c.cfg.AWS.AccessKeyID != "" && c.cfg.AWS.SecretKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(c.cfg.AWS.AccessKeyID, c.cfg.AWS.SecretKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to load AWS config for S3 export: %w", err)
		}
		sinks = append(sinks, sink.NewS3Exporter(s3.NewFromConfig(awsCfg), c.cfg.Export.S3Bucket, c.cfg.Export.S3Prefix))
		c.logger.Info("S3 alert export enabled", "bucket", c.cfg.Export.S3Bucket, "prefix", c.cfg.Export.S3Prefix)
	}

	c.sinks = sink.NewFanout(c.logger, sinks...)
	if c.sinks.Len() == 0 {
		c.logger.Warn("no alert sinks configured, scheduled alerts are only logged")
	}
	return nil
}

// Start starts background jobs.
func (c *Container) Start(ctx context.Context) error {
	if !c.cfg.Jobs.Enabled {
		c.logger.Info("background jobs disabled")
		return nil
	}
	return c.scheduler.Start()
}

// Stop gracefully stops all components.
func (c *Container) Stop(ctx context.Context) error {
	c.logger.Info("stopping container components")

	if c.scheduler != nil {
		c.scheduler.Stop()
	}

	if c.providerRegistry != nil {
		c.providerRegistry.Close()
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Warn("failed to close redis client", "error", err)
		}
	}

	if c.db != nil {
		c.db.Close()
	}

	return nil
}

// Accessors

func (c *Container) Config() *config.Config                                         { return c.cfg }
func (c *Container) Logger() *slog.Logger                                           { return c.logger }
func (c *Container) DB() *sql.DB                                                    { return c.db }
func (c *Container) ProviderRegistry() *provider.Registry                           { return c.providerRegistry }
func (c *Container) Scheduler() *jobs.Scheduler                                     { return c.scheduler }
func (c *Container) Engine() *alerting.Engine                                       { return c.engine }
func (c *Container) CostRecordRepository() *repository.PostgresCostRecordRepository { return c.costRecordRepo }
func (c *Container) ThresholdRepository() *repository.PostgresThresholdRepository   { return c.thresholdRepo }
func (c *Container) Thresholds() threshold.Provider                                 { return c.thresholds }
