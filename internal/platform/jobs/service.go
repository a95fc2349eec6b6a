package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"appraisal/internal/platform/lock"
	"appraisal/internal/platform/querier"
)

const (
	JobRollover  = "timer_rollover"
	JobArchive   = "appraisal_archive"
	JobReminders = "appraisal_reminders"
)

const sweepLockName = "appraisal-sweep"

var (
	ErrUnknownJob = errors.New("unknown job type")
	ErrQueueFull  = errors.New("job queue full")
)

// Task is one step of the sweep, evaluated at an injected instant.
type Task func(ctx context.Context, now time.Time) (any, error)

type Observer interface {
	SweepRan(ctx context.Context, job string, err error)
}

type Service struct {
	DB       querier.Querier
	Locker   lock.Locker
	Interval time.Duration
	LockTTL  time.Duration
	Observer Observer
	Now      func() time.Time

	order []string
	tasks map[string]Task
	queue chan job
}

type job struct {
	Type string
	At   time.Time
}

func New(db querier.Querier, locker lock.Locker, interval, lockTTL time.Duration) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Service{
		DB:       db,
		Locker:   locker,
		Interval: interval,
		LockTTL:  lockTTL,
		Now:      time.Now,
		tasks:    map[string]Task{},
		queue:    make(chan job, 16),
	}
}

// Register appends a task to the sweep. Tasks run in registration order.
func (s *Service) Register(jobType string, task Task) {
	if _, ok := s.tasks[jobType]; !ok {
		s.order = append(s.order, jobType)
	}
	s.tasks[jobType] = task
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Interval > 0 {
		go s.schedule(ctx, s.Interval)
	}
}

func (s *Service) Enqueue(jobType string, at time.Time) error {
	if _, ok := s.tasks[jobType]; !ok {
		return ErrUnknownJob
	}
	select {
	case s.queue <- job{Type: jobType, At: at}:
		return nil
	default:
		slog.Warn("job queue full", "jobType", jobType)
		return ErrQueueFull
	}
}

// RunNow runs one task immediately under the sweep lock.
func (s *Service) RunNow(ctx context.Context, jobType string, at time.Time) (any, error) {
	task, ok := s.tasks[jobType]
	if !ok {
		return nil, ErrUnknownJob
	}
	release, err := s.Locker.Acquire(ctx, sweepLockName, s.LockTTL)
	if err != nil {
		return nil, err
	}
	defer s.release(release)
	return s.runJob(ctx, jobType, at, task)
}

// Sweep runs every registered task in order at now. A sweep that cannot
// take the lock is skipped; a failing task does not stop later ones.
func (s *Service) Sweep(ctx context.Context, now time.Time) (map[string]any, error) {
	release, err := s.Locker.Acquire(ctx, sweepLockName, s.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		slog.Info("sweep skipped: another instance is running")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	defer s.release(release)

	results := make(map[string]any, len(s.order))
	var errs []error
	for _, jobType := range s.order {
		details, err := s.runJob(ctx, jobType, now, s.tasks[jobType])
		if err != nil {
			slog.Warn("sweep job failed", "jobType", jobType, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", jobType, err))
		}
		results[jobType] = details
	}
	return results, errors.Join(errs...)
}

func (s *Service) release(release func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := release(ctx); err != nil {
		slog.Warn("sweep lock release failed", "err", err)
	}
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.RunNow(ctx, j.Type, j.At); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, s.Now()); err != nil && !errors.Is(err, lock.ErrNotAcquired) {
				slog.Warn("scheduled sweep failed", "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, jobType string, at time.Time, task Task) (any, error) {
	runID := s.startRun(ctx, jobType, at)

	details, err := task(ctx, at)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	if s.Observer != nil {
		s.Observer.SweepRan(ctx, jobType, err)
	}
	s.finishRun(ctx, runID, status, details, err)
	return details, err
}

func (s *Service) startRun(ctx context.Context, jobType string, at time.Time) string {
	if s.DB == nil {
		return ""
	}
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status, evaluated_at)
    VALUES ($1,$2,$3)
    RETURNING id
  `, jobType, "running", at).Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}
	return runID
}

func (s *Service) finishRun(ctx context.Context, runID, status string, details any, runErr error) {
	if s.DB == nil || runID == "" {
		return
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		slog.Warn("job details marshal failed", "err", err)
		detailsJSON = []byte("{}")
	}
	var errText any
	if runErr != nil {
		errText = runErr.Error()
	}
	if _, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, error = $3, completed_at = now()
    WHERE id = $4
  `, status, detailsJSON, errText, runID); err != nil {
		slog.Warn("job run update failed", "err", err)
	}
}

type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	EvaluatedAt time.Time       `json:"evaluatedAt"`
	Details     json.RawMessage `json:"details,omitempty"`
	Error       *string         `json:"error,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

func (s *Service) ListRuns(ctx context.Context, jobType string, limit, offset int) ([]Run, error) {
	if s.DB == nil {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id, job_type, status, evaluated_at, details_json, error, started_at, completed_at
    FROM job_runs
    WHERE ($1 = '' OR job_type = $1)
    ORDER BY started_at DESC
    LIMIT $2 OFFSET $3
  `, jobType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var details []byte
		if err := rows.Scan(&r.ID, &r.JobType, &r.Status, &r.EvaluatedAt, &details, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			r.Details = json.RawMessage(details)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Service) Types() []string {
	return append([]string(nil), s.order...)
}
