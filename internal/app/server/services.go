package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/audit"
	"appraisal/internal/domain/notifications"
	"appraisal/internal/domain/rbac"
	"appraisal/internal/domain/timer"
	"appraisal/internal/platform/config"
	"appraisal/internal/platform/email"
	"appraisal/internal/platform/jobs"
	"appraisal/internal/platform/lock"
	"appraisal/internal/platform/metrics"
)

// Services is the wired domain layer shared by the HTTP server and the
// operator CLI.
type Services struct {
	Appraisals *appraisal.Store
	Perms      *rbac.Store
	TimerStore *timer.Store
	Timers     *timer.Service
	Notify     *notifications.Service
	Audit      *audit.Service
	Engine     *appraisal.Engine
	Jobs       *jobs.Service
	Metrics    *metrics.Provider
	Recorder   *metrics.Appraisal
	HTTP       *metrics.HTTP

	redis *redis.Client
}

// NewServices builds every store and service on pool and registers the
// sweep jobs in their fixed order: rollover, archive, reminders.
func NewServices(pool *pgxpool.Pool, cfg config.Config) (*Services, error) {
	s := &Services{
		Appraisals: appraisal.NewStore(pool),
		Perms:      rbac.NewStore(pool),
		TimerStore: timer.NewStore(pool),
		Audit:      audit.New(pool),
		Metrics:    metrics.NewProvider(),
	}
	s.Timers = timer.NewService(s.TimerStore)

	s.Notify = notifications.New(notifications.NewStore(pool), email.New(cfg))
	if cfg.EmailFrom != "" {
		s.Notify.DefaultFrom = cfg.EmailFrom
	}

	recorder, err := metrics.NewAppraisal(s.Metrics.Meter("appraisal"))
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	s.Recorder = recorder
	if s.HTTP, err = metrics.NewHTTP(s.Metrics.Meter("http")); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	resolver := appraisal.NewResolver(s.Appraisals, s.Perms)
	s.Engine = appraisal.NewEngine(s.Appraisals, resolver, s.Notify, s.Timers, appraisal.Calendar{
		CycleCutoff:      cfg.Appraisal.CycleCutoff,
		ArchiveMonth:     cfg.Appraisal.ArchiveMonth,
		ArchiveHour:      cfg.Appraisal.ArchiveHour,
		RemindOffsetDays: cfg.Appraisal.RemindOffsetDays,
		Location:         cfg.Appraisal.Location,
	})
	s.Engine.SetRecorder(recorder)

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisAddr != "" {
		s.redis = lock.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		locker = lock.NewRedisLocker(s.redis, "appraisal:lock:")
		slog.Info("sweep lock backed by redis", "addr", cfg.RedisAddr)
	}

	s.Jobs = jobs.New(pool, locker, cfg.SweepInterval, cfg.SweepLockTTL)
	s.Jobs.Observer = recorder
	rollover := timer.Calendar{
		Month:            cfg.Appraisal.RolloverMonth,
		Hour:             cfg.Appraisal.RolloverHour,
		RemindOffsetDays: cfg.Appraisal.RemindOffsetDays,
		Location:         cfg.Appraisal.Location,
	}
	s.Jobs.Register(jobs.JobRollover, func(ctx context.Context, now time.Time) (any, error) {
		return timer.RollForward(ctx, s.TimerStore, rollover, now)
	})
	s.Jobs.Register(jobs.JobArchive, func(ctx context.Context, now time.Time) (any, error) {
		return s.Engine.RunArchival(ctx, now)
	})
	s.Jobs.Register(jobs.JobReminders, func(ctx context.Context, now time.Time) (any, error) {
		return s.Engine.RunReminders(ctx, now)
	})
	return s, nil
}

// Close waits for in-flight email, then releases redis and the meter
// provider.
func (s *Services) Close(ctx context.Context) {
	s.Notify.Wait()
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Warn("redis close failed", "err", err)
		}
	}
	if err := s.Metrics.Shutdown(ctx); err != nil {
		slog.Warn("meter provider shutdown failed", "err", err)
	}
}
