package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"vaxslot-notifier/internal/config"
	"vaxslot-notifier/internal/domain/entity"
	"vaxslot-notifier/internal/infra/adapter/persistence/dynamo"
	pgRepo "vaxslot-notifier/internal/infra/adapter/persistence/postgres"
	sqliteRepo "vaxslot-notifier/internal/infra/adapter/persistence/sqlite"
	"vaxslot-notifier/internal/infra/cowin"
	"vaxslot-notifier/internal/infra/db"
	"vaxslot-notifier/internal/infra/notifier"
	workerPkg "vaxslot-notifier/internal/infra/worker"
	obsmetrics "vaxslot-notifier/internal/observability/metrics"
	"vaxslot-notifier/internal/repository"
	"vaxslot-notifier/internal/resilience/circuitbreaker"
	"vaxslot-notifier/internal/usecase/notify"
	"vaxslot-notifier/internal/usecase/poll"
)

// app holds the wired pipeline shared by the run and poll commands.
type app struct {
	logger   *slog.Logger
	worker   *workerPkg.WorkerConfig
	metrics  *workerPkg.WorkerMetrics
	regions  []entity.Region
	notifier notify.Service
	poller   *poll.Service
	closers  []func() error

	// poolStats publishes SQL connection pool gauges; nil for DynamoDB.
	poolStats func()
}

type appOptions struct {
	// dryRun sends nothing and persists nothing.
	dryRun bool

	// regions and storeDriver come from the root's persistent flags; zero
	// values defer to the environment.
	regions     config.RegionsConfig
	storeDriver string
}

// dryRunChatID stands in for unset chat ids so a dry run exercises both
// audiences without Telegram credentials.
const dryRunChatID = "dry-run"

// newApp loads configuration and builds every component of the pipeline.
func newApp(ctx context.Context, logger *slog.Logger, opts appOptions) (*app, error) {
	// Load worker configuration (fail-open strategy)
	metrics := workerPkg.NewWorkerMetrics()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("load worker configuration: %w", err)
	}
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("poll_timeout", workerConfig.PollTimeout),
		slog.Int("region_parallelism", workerConfig.RegionParallelism),
		slog.Int("item_parallelism", workerConfig.ItemParallelism),
		slog.Int("notify_max_concurrent", workerConfig.NotifyMaxConcurrent),
		slog.Int("port", workerConfig.Port))

	regions, err := config.LoadRegions(opts.regions)
	if err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}

	cowinConfig, err := config.LoadCowin()
	if err != nil {
		return nil, err
	}

	telegramConfig, err := config.LoadTelegram()
	if err != nil {
		return nil, fmt.Errorf("load telegram configuration: %w", err)
	}

	storeConfig, err := config.LoadStore(opts.storeDriver)
	if err != nil {
		return nil, err
	}

	a := &app{
		logger:  logger,
		worker:  workerConfig,
		metrics: metrics,
		regions: regions,
	}

	store, pool, closeStore, err := openStore(ctx, logger, storeConfig)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)
	if pool != nil {
		a.poolStats = func() {
			stats := pool.Stats()
			obsmetrics.UpdateDBConnectionStats(stats.InUse, stats.Idle)
		}
	}

	var sender notifier.Notifier = notifier.NewTelegramNotifier(telegramConfig.Notifier())
	botConfigured := telegramConfig.BotConfigured()
	if opts.dryRun {
		sender = notifier.NewNoOpNotifier()
		store = readOnlyStore{store}
		telegramConfig = dryRunTelegram(telegramConfig)
		botConfigured = true
		logger.Info("dry run: alerts and notification records are discarded")
	}

	a.notifier = newNotifyService(logger, telegramConfig, sender, botConfigured, workerConfig.NotifyMaxConcurrent)

	loc := workerConfig.Location()
	a.poller = poll.NewService(
		cowin.NewClient(cowinConfig),
		store,
		a.notifier,
		poll.Config{
			RegionParallelism: workerConfig.RegionParallelism,
			ItemParallelism:   workerConfig.ItemParallelism,
			Today:             func() string { return cowin.Today(time.Now(), loc) },
		},
	)

	logger.Info("poll pipeline initialized",
		slog.Int("regions", len(regions)),
		slog.String("store", storeConfig.Driver),
		slog.Bool("notifier_ready", a.notifier.Ready()))

	return a, nil
}

// newNotifyService wires the primary and special Telegram channels.
func newNotifyService(logger *slog.Logger, cfg config.TelegramConfig, sender notifier.Notifier, botConfigured bool, maxConcurrent int) notify.Service {
	primary := notify.NewTelegramChannel(notify.PrimaryChannel, sender, cfg.ChatID, botConfigured, nil)
	special := notify.NewTelegramChannel(notify.SpecialChannel, sender, cfg.SpecialChatID, botConfigured, cfg.SpecialPincodes)

	for _, ch := range []*notify.TelegramChannel{primary, special} {
		if ch.IsEnabled() {
			logger.Info("notification channel initialized", slog.String("channel", ch.Name()), slog.String("status", "enabled"))
		} else {
			logger.Info("notification channel disabled", slog.String("channel", ch.Name()))
		}
	}

	return notify.NewService([]notify.Channel{primary, special}, notify.Config{
		MaxConcurrent: maxConcurrent,
		SendTimeout:   cfg.SendTimeout,
	})
}

// dryRunTelegram fills in missing chat ids. The NoOp notifier never uses
// them, but the channels must be enabled for messages to be rendered.
func dryRunTelegram(cfg config.TelegramConfig) config.TelegramConfig {
	if cfg.ChatID == "" {
		cfg.ChatID = dryRunChatID
	}
	if cfg.SpecialChatID == "" {
		cfg.SpecialChatID = dryRunChatID
	}
	return cfg
}

// openStore connects to the configured record store and makes sure its
// schema exists. pool is the SQL connection pool, nil for DynamoDB.
func openStore(ctx context.Context, logger *slog.Logger, cfg config.StoreConfig) (repo repository.NotificationRecordRepository, pool *sql.DB, closeFn func() error, err error) {
	noop := func() error { return nil }

	switch cfg.Driver {
	case config.DriverPostgres, config.DriverSQLite:
		database, dialect, err := openSQL(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := db.MigrateUp(database, dialect); err != nil {
			_ = database.Close()
			return nil, nil, nil, fmt.Errorf("migrate %s: %w", dialect, err)
		}
		if dialect == db.DialectPostgres {
			return pgRepo.NewNotificationRecordRepo(circuitbreaker.NewDBCircuitBreaker(database)), database, database.Close, nil
		}
		return sqliteRepo.NewNotificationRecordRepo(database), database, database.Close, nil

	case config.DriverDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.Dynamo())
		if err != nil {
			return nil, nil, nil, err
		}
		if err := dynamo.Bootstrap(ctx, client, cfg.DynamoTable); err != nil {
			return nil, nil, nil, err
		}
		logger.Info("dynamodb store ready", slog.String("table", cfg.DynamoTable))
		return dynamo.NewNotificationRecordRepo(client, cfg.DynamoTable), nil, noop, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func openSQL(ctx context.Context, cfg config.StoreConfig) (*sql.DB, string, error) {
	if cfg.Driver == config.DriverPostgres {
		database, err := db.OpenPostgres(ctx, cfg.DatabaseURL)
		return database, db.DialectPostgres, err
	}
	database, err := db.OpenSQLite(ctx, cfg.SQLitePath)
	return database, db.DialectSQLite, err
}

// readOnlyStore reads through to the real store and drops every write.
type readOnlyStore struct {
	repository.NotificationRecordRepository
}

func (readOnlyStore) Put(context.Context, *entity.NotificationRecord) error {
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}
}

// shutdownNotifier waits for in-flight sends.
func (a *app) shutdownNotifier() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.notifier.Shutdown(ctx); err != nil {
		a.logger.Warn("notification service shutdown incomplete", slog.Any("error", err))
	}
}

// runCycle executes one poll cycle bounded by the poll timeout and records
// the worker metrics.
func (a *app) runCycle(parent context.Context) (*poll.CycleStats, error) {
	startTime := time.Now()
	a.metrics.RecordJobRun("started")
	a.logger.Info("poll started")

	ctx, cancel := context.WithTimeout(parent, a.worker.PollTimeout)
	defer cancel()

	stats, err := a.poller.RunCycle(ctx, a.regions)
	a.metrics.RecordJobDuration(time.Since(startTime).Seconds())
	if err != nil {
		a.logger.Error("poll failed", slog.Any("error", err))
		a.metrics.RecordJobRun("failure")
		return nil, err
	}

	if a.poolStats != nil {
		a.poolStats()
	}
	a.metrics.RecordJobRun("success")
	a.metrics.RecordSessionsProcessed(stats.ItemsSeen)
	a.metrics.RecordLastSuccess()
	return stats, nil
}
