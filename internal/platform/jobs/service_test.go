package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraisal/internal/platform/lock"
)

type countingObserver struct {
	mu   sync.Mutex
	runs map[string]int
	errs int
}

func (o *countingObserver) SweepRan(ctx context.Context, job string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs[job]++
	if err != nil {
		o.errs++
	}
}

func TestSweepRunsTasksInOrder(t *testing.T) {
	svc := New(nil, lock.NewLocalLocker(), 0, time.Minute)
	obs := &countingObserver{runs: map[string]int{}}
	svc.Observer = obs
	now := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	var order []string
	for _, name := range []string{JobRollover, JobArchive, JobReminders} {
		jobType := name
		svc.Register(jobType, func(ctx context.Context, at time.Time) (any, error) {
			assert.Equal(t, now, at)
			order = append(order, jobType)
			if jobType == JobArchive {
				return nil, errors.New("db down")
			}
			return jobType, nil
		})
	}

	results, err := svc.Sweep(context.Background(), now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobArchive)
	assert.Equal(t, []string{JobRollover, JobArchive, JobReminders}, order)
	assert.Equal(t, JobReminders, results[JobReminders])
	assert.Equal(t, 1, obs.errs)
	assert.Equal(t, []string{JobRollover, JobArchive, JobReminders}, svc.Types())
}

func TestSweepSkipsWhileLocked(t *testing.T) {
	locker := lock.NewLocalLocker()
	svc := New(nil, locker, 0, time.Minute)
	ran := false
	svc.Register(JobArchive, func(ctx context.Context, at time.Time) (any, error) {
		ran = true
		return nil, nil
	})

	release, err := locker.Acquire(context.Background(), sweepLockName, time.Minute)
	require.NoError(t, err)

	_, err = svc.Sweep(context.Background(), time.Now())
	assert.ErrorIs(t, err, lock.ErrNotAcquired)
	_, err = svc.RunNow(context.Background(), JobArchive, time.Now())
	assert.ErrorIs(t, err, lock.ErrNotAcquired)
	assert.False(t, ran)

	require.NoError(t, release(context.Background()))
	_, err = svc.RunNow(context.Background(), JobArchive, time.Now())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRunNowUnknownJob(t *testing.T) {
	svc := New(nil, nil, 0, time.Minute)
	_, err := svc.RunNow(context.Background(), "payroll", time.Now())
	assert.ErrorIs(t, err, ErrUnknownJob)
	assert.ErrorIs(t, svc.Enqueue("payroll", time.Now()), ErrUnknownJob)
}
