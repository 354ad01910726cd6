package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"vaxslot-notifier/internal/domain/entity"
	"vaxslot-notifier/internal/observability/logging"
	"vaxslot-notifier/internal/observability/metrics"
	"vaxslot-notifier/internal/observability/tracing"
	"vaxslot-notifier/internal/repository"
	"vaxslot-notifier/internal/resilience/retry"
	"vaxslot-notifier/internal/usecase/notify"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultRegionParallelism = 4
	defaultItemParallelism   = 8

	// storeWriteTimeout bounds the record write after a dispatch, which runs
	// detached from the cycle deadline.
	storeWriteTimeout = 10 * time.Second
)

// AvailabilityFetcher returns the sessions published for a region on date
// (dd-mm-yyyy).
type AvailabilityFetcher interface {
	Fetch(ctx context.Context, regionID, date string) ([]entity.Session, error)
}

// Dispatcher delivers rendered alerts. notify.Service satisfies it.
type Dispatcher interface {
	Ready() bool
	Dispatch(ctx context.Context, msg notify.Message) []notify.DeliveryResult
}

// Config tunes a poll cycle.
type Config struct {
	RegionParallelism int           // regions fetched at once
	ItemParallelism   int           // sessions processed at once within a region
	Cooldown          time.Duration // DefaultCooldown when zero

	// Today returns the date sent to the availability API. Defaults to the
	// local date in dd-mm-yyyy.
	Today func() string
}

// CycleStats summarizes one poll cycle. Counters are updated atomically
// while the cycle runs.
type CycleStats struct {
	CycleID          string
	Regions          int
	FetchFailures    int64
	ItemsSeen        int64
	Eligible         int64
	Suppressed       int64
	Dispatched       int64
	Deferred         int64 // eligible and due, but no channel was reached
	DeliveryFailures int64
	StoreConflicts   int64
	DroppedUpdates   int64
	StoreErrors      int64
	Duration         time.Duration
}

// Service runs poll cycles.
type Service struct {
	fetcher    AvailabilityFetcher
	store      repository.NotificationRecordRepository
	dispatcher Dispatcher
	renderer   *Renderer
	gate       CooldownGate
	cfg        Config
	storeRetry retry.Config
	now        func() time.Time
}

// NewService creates a poll Service. Zero values in cfg fall back to defaults.
func NewService(
	fetcher AvailabilityFetcher,
	store repository.NotificationRecordRepository,
	dispatcher Dispatcher,
	cfg Config,
) *Service {
	if cfg.RegionParallelism <= 0 {
		cfg.RegionParallelism = defaultRegionParallelism
	}
	if cfg.ItemParallelism <= 0 {
		cfg.ItemParallelism = defaultItemParallelism
	}
	if cfg.Today == nil {
		cfg.Today = func() string { return time.Now().Format("02-01-2006") }
	}

	return &Service{
		fetcher:    fetcher,
		store:      store,
		dispatcher: dispatcher,
		renderer:   NewRenderer(),
		gate:       NewCooldownGate(cfg.Cooldown),
		cfg:        cfg,
		storeRetry: retry.DBConfig(),
		now:        time.Now,
	}
}

// RunCycle polls every region once and notifies about eligible sessions
// that are out of cooldown.
//
// Failures are contained to their unit of work: a failed fetch skips the
// region, a failed store read skips the session. The only error returned is
// ctx's own when it is already done on entry.
func (s *Service) RunCycle(ctx context.Context, regions []entity.Region) (*CycleStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("poll cycle not started: %w", err)
	}

	cycleID := uuid.NewString()
	ctx = logging.ContextWithCycleID(ctx, cycleID)
	logger := logging.WithCycleID(ctx, logging.FromContext(ctx))
	ctx = logging.WithLogger(ctx, logger)

	ctx, span := tracing.Tracer().Start(ctx, "poll.cycle",
		trace.WithAttributes(
			attribute.String("cycle.id", cycleID),
			attribute.Int("cycle.regions", len(regions)),
		))
	defer span.End()

	start := s.now()
	stats := &CycleStats{CycleID: cycleID, Regions: len(regions)}
	date := s.cfg.Today()

	ready := s.dispatcher.Ready()
	if !ready {
		logger.Warn("notification config missing, skipping dispatch this cycle",
			slog.String("error", notify.ErrConfigMissing.Error()))
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.RegionParallelism)
	for _, region := range regions {
		eg.Go(func() error {
			s.pollRegion(egCtx, region, date, ready, stats)
			return nil
		})
	}
	_ = eg.Wait()

	stats.Duration = s.now().Sub(start)
	metrics.RecordCycle(stats.Duration)

	span.SetAttributes(
		attribute.Int64("cycle.items_seen", stats.ItemsSeen),
		attribute.Int64("cycle.dispatched", stats.Dispatched),
	)

	logger.Info("poll cycle completed",
		slog.String("date", date),
		slog.Int("regions", stats.Regions),
		slog.Int64("fetch_failures", stats.FetchFailures),
		slog.Int64("items_seen", stats.ItemsSeen),
		slog.Int64("eligible", stats.Eligible),
		slog.Int64("suppressed", stats.Suppressed),
		slog.Int64("dispatched", stats.Dispatched),
		slog.Int64("deferred", stats.Deferred),
		slog.Int64("delivery_failures", stats.DeliveryFailures),
		slog.Int64("store_conflicts", stats.StoreConflicts),
		slog.Int64("dropped_updates", stats.DroppedUpdates),
		slog.Int64("store_errors", stats.StoreErrors),
		slog.Duration("duration", stats.Duration),
	)

	return stats, nil
}

// pollRegion fetches one region and processes its sessions in parallel.
func (s *Service) pollRegion(ctx context.Context, region entity.Region, date string, ready bool, stats *CycleStats) {
	ctx, span := tracing.Tracer().Start(ctx, "poll.region",
		trace.WithAttributes(
			attribute.String("region.id", region.ID),
			attribute.String("region.name", region.Label()),
		))
	defer span.End()

	logger := logging.FromContext(ctx).With(
		slog.String("region_id", region.ID),
		slog.String("region", region.Label()))
	ctx = logging.WithLogger(ctx, logger)

	fetchStart := time.Now()
	sessions, err := s.fetcher.Fetch(ctx, region.ID, date)
	metrics.RecordRegionPoll(region.ID, time.Since(fetchStart), len(sessions), err)
	if err != nil {
		atomic.AddInt64(&stats.FetchFailures, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		logger.Warn("failed to fetch availability",
			slog.String("date", date),
			slog.Any("error", err))
		return
	}

	atomic.AddInt64(&stats.ItemsSeen, int64(len(sessions)))
	span.SetAttributes(attribute.Int("region.sessions", len(sessions)))

	sem := semaphore.NewWeighted(int64(s.cfg.ItemParallelism))
	var wg sync.WaitGroup
	for _, sess := range sessions {
		if err := sem.Acquire(ctx, 1); err != nil {
			logger.Warn("cycle deadline reached, remaining sessions skipped",
				slog.Any("error", err))
			break
		}
		wg.Add(1)
		go func(sess entity.Session) {
			defer wg.Done()
			defer sem.Release(1)
			s.processSession(ctx, sess, ready, stats)
		}(sess)
	}
	wg.Wait()

	logger.Debug("region processed",
		slog.Int("sessions", len(sessions)),
		slog.Duration("duration", time.Since(fetchStart)))
}

// processSession runs one session through eligibility, cooldown, dispatch
// and the record write.
func (s *Service) processSession(ctx context.Context, sess entity.Session, ready bool, stats *CycleStats) {
	logger := logging.FromContext(ctx).With(
		slog.String("session_id", sess.ID),
		slog.String("pincode", sess.Pincode))

	if !IsEligible(ctx, sess) {
		metrics.RecordSessionOutcome(metrics.OutcomeIneligible)
		return
	}
	atomic.AddInt64(&stats.Eligible, 1)

	if !ready {
		return
	}

	rec, err := s.getRecord(ctx, sess.ID)
	if err != nil {
		atomic.AddInt64(&stats.StoreErrors, 1)
		metrics.RecordSessionOutcome(metrics.OutcomeStoreError)
		logger.Error("failed to read notification record, skipping session",
			slog.Any("error", err))
		return
	}

	if !s.gate.IsDue(rec) {
		atomic.AddInt64(&stats.Suppressed, 1)
		metrics.RecordSessionOutcome(metrics.OutcomeSuppressed)
		logger.Debug("session in cooldown",
			slog.Time("last_notified_at", *rec.LastNotifiedAt))
		return
	}

	prior := entity.PriorCount(rec)
	text := s.renderer.Render(sess, prior)

	results := s.dispatcher.Dispatch(ctx, notify.Message{
		ItemID:  sess.ID,
		Text:    text,
		Pincode: sess.Pincode,
	})

	// Nothing reached Telegram: leave the record alone so the session is
	// offered again next cycle.
	if !notify.AnyAttempted(results) {
		atomic.AddInt64(&stats.Deferred, 1)
		metrics.RecordSessionOutcome(metrics.OutcomeDeferred)
		attrs := []any{slog.Int("destinations", len(results))}
		if len(results) > 0 {
			attrs = append(attrs, slog.Any("error", results[0].Err))
		}
		logger.Warn("notification not sent, session stays due", attrs...)
		return
	}

	atomic.AddInt64(&stats.Dispatched, 1)
	for _, r := range results {
		if !r.Delivered() {
			atomic.AddInt64(&stats.DeliveryFailures, 1)
		}
	}

	// the attempt is recorded whatever the delivery outcome
	attemptAt := s.now()
	if rec == nil {
		rec = entity.NewNotificationRecord(sess.ID)
	}
	rec.MarkNotified(attemptAt, sess.Snapshot())

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()

	outcome := s.saveRecord(writeCtx, rec, attemptAt, sess.Snapshot(), stats)
	metrics.RecordSessionOutcome(outcome)

	logger.Info("session notified",
		slog.Int("notification_count", prior+1),
		slog.Int("destinations", len(results)),
		slog.String("outcome", outcome))
}

// saveRecord writes rec. On a revision conflict the current record is
// re-read and the attempt re-applied once; a second conflict drops the update.
func (s *Service) saveRecord(ctx context.Context, rec *entity.NotificationRecord, at time.Time, snapshot []byte, stats *CycleStats) string {
	logger := logging.FromContext(ctx).With(slog.String("session_id", rec.ItemID))

	err := s.putRecord(ctx, rec)
	if err == nil {
		return metrics.OutcomeNotified
	}
	if !errors.Is(err, entity.ErrConflict) {
		atomic.AddInt64(&stats.StoreErrors, 1)
		logger.Error("failed to write notification record", slog.Any("error", err))
		return metrics.OutcomeStoreError
	}

	fresh, err := s.getRecord(ctx, rec.ItemID)
	if err != nil {
		atomic.AddInt64(&stats.StoreErrors, 1)
		logger.Error("failed to re-read notification record after conflict", slog.Any("error", err))
		return metrics.OutcomeStoreError
	}
	if landed(fresh, rec) {
		logger.Info("notification record already written by an earlier try")
		return metrics.OutcomeNotified
	}

	atomic.AddInt64(&stats.StoreConflicts, 1)
	metrics.RecordStoreConflict("retried")

	if fresh == nil {
		fresh = entity.NewNotificationRecord(rec.ItemID)
	}
	fresh.MarkNotified(at, snapshot)

	err = s.putRecord(ctx, fresh)
	switch {
	case err == nil:
		return metrics.OutcomeNotified
	case errors.Is(err, entity.ErrConflict):
		atomic.AddInt64(&stats.StoreConflicts, 1)
		atomic.AddInt64(&stats.DroppedUpdates, 1)
		metrics.RecordStoreConflict("dropped")
		logger.Warn("notification record update dropped after repeated conflict")
		return metrics.OutcomeDropped
	default:
		atomic.AddInt64(&stats.StoreErrors, 1)
		logger.Error("failed to write notification record after conflict", slog.Any("error", err))
		return metrics.OutcomeStoreError
	}
}

// landed reports whether fresh already holds the write of rec. A Put whose
// commit succeeded but whose reply was lost conflicts with itself on retry.
// Stores keep timestamps to at least the millisecond.
func landed(fresh, rec *entity.NotificationRecord) bool {
	if fresh == nil || fresh.LastNotifiedAt == nil || rec.LastNotifiedAt == nil {
		return false
	}
	return fresh.NotificationCount == rec.NotificationCount &&
		fresh.LastNotifiedAt.Truncate(time.Millisecond).Equal(rec.LastNotifiedAt.Truncate(time.Millisecond))
}

// getRecord returns nil without error when no record exists.
func (s *Service) getRecord(ctx context.Context, itemID string) (*entity.NotificationRecord, error) {
	var rec *entity.NotificationRecord
	err := retry.WithBackoff(ctx, s.storeRetry, func() error {
		r, err := s.store.Get(ctx, itemID)
		if errors.Is(err, entity.ErrNotFound) {
			rec = nil
			return nil
		}
		if err != nil {
			return err
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get notification record %s: %w", itemID, err)
	}
	return rec, nil
}

func (s *Service) putRecord(ctx context.Context, rec *entity.NotificationRecord) error {
	return retry.WithBackoff(ctx, s.storeRetry, func() error {
		return s.store.Put(ctx, rec)
	})
}
