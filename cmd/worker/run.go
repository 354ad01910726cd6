package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	workerPkg "vaxslot-notifier/internal/infra/worker"
	"vaxslot-notifier/internal/observability/tracing"
)

func runCmd(logger *slog.Logger, opts *appOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler and the ops HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), logger, *opts)
		},
	}
}

func runWorker(ctx context.Context, logger *slog.Logger, opts appOptions) error {
	shutdownTracing, err := tracing.Setup(ctx, "vaxslot-worker")
	if err != nil {
		logger.Warn("tracing disabled", slog.Any("error", err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	a, err := newApp(ctx, logger, opts)
	if err != nil {
		return err
	}
	defer a.close()
	defer a.shutdownNotifier()

	// Start health check server
	healthServer := workerPkg.NewHealthServer(a.worker.Addr(), logger, a.notifier)
	serverErr := make(chan error, 1)
	go func() {
		if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	logger.Info("ops server started", slog.String("addr", a.worker.Addr()))

	c := cron.New(
		cron.WithLocation(a.worker.Location()),
		cron.WithChain(cron.Recover(cronLogger{logger})),
	)

	var running sync.Mutex
	if _, err := c.AddFunc(a.worker.CronSchedule, func() {
		// A cycle that outlives its interval makes the next tick a no-op.
		if !running.TryLock() {
			logger.Warn("previous poll still running, skipping this tick")
			a.metrics.RecordJobRun("skipped")
			return
		}
		defer running.Unlock()
		_, _ = a.runCycle(ctx)
	}); err != nil {
		return err
	}

	if a.worker.KeepaliveEnabled() {
		keepalive := workerPkg.NewKeepalive(a.worker.KeepaliveURL, logger, a.metrics)
		if _, err := c.AddFunc(a.worker.KeepaliveSchedule, func() { keepalive.Ping(ctx) }); err != nil {
			return err
		}
		logger.Info("keepalive scheduled",
			slog.String("schedule", a.worker.KeepaliveSchedule),
			slog.String("url", a.worker.KeepaliveURL))
	}

	c.Start()

	// Mark as ready after cron is set up
	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", a.worker.CronSchedule),
		slog.String("timezone", a.worker.Timezone))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err = <-serverErr:
		logger.Error("ops server failed", slog.Any("error", err))
	}

	healthServer.SetReady(false)
	// Stop returns a context that is done once running jobs have finished.
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
	return err
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, slog.Any("error", err))...)
}
