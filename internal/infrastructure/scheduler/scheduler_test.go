package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "stub " + j.name }

func (j *stubJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func newTestScheduler() *Scheduler {
	cfg := DefaultSchedulerConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.MaxHistorySize = 3
	return NewScheduler(cfg)
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler()

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&stubJob{name: "a"}, nil), ErrNilSchedule)

	require.NoError(t, s.Register(&stubJob{name: "a"}, NewIntervalSchedule(time.Second)))
	assert.ErrorIs(t, s.Register(&stubJob{name: "a"}, NewIntervalSchedule(time.Second)), ErrJobAlreadyExists)

	info, err := s.GetJobInfo("a")
	require.NoError(t, err)
	assert.Equal(t, "@every 1s", info.Schedule)
	assert.True(t, info.Enabled)

	_, err = s.GetJobInfo("b")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_CheckAndRunJobs(t *testing.T) {
	s := newTestScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.ctx = ctx

	job := &stubJob{name: "verify"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	s.checkAndRunJobs(time.Now())
	s.wg.Wait()
	assert.Equal(t, int32(0), job.runs.Load(), "not due yet")

	s.checkAndRunJobs(time.Now().Add(2 * time.Minute))
	s.wg.Wait()
	assert.Equal(t, int32(1), job.runs.Load())

	info, err := s.GetJobInfo("verify")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.RunCount)
	require.NotNil(t, info.LastResult)
	assert.True(t, info.LastResult.Success)
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := newTestScheduler()
	s.ctx = context.Background()

	job := &stubJob{name: "verify"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	require.NoError(t, s.DisableJob("verify"))

	s.checkAndRunJobs(time.Now().Add(time.Hour))
	s.wg.Wait()
	assert.Equal(t, int32(0), job.runs.Load())

	_, err := s.RunNow(context.Background(), "verify")
	require.NoError(t, err)
	assert.Equal(t, int32(1), job.runs.Load())

	info, err := s.GetJobInfo("verify")
	require.NoError(t, err)
	assert.False(t, info.Enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	s := newTestScheduler()
	s.ctx = context.Background()

	job := &stubJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	s.checkAndRunJobs(time.Now().Add(2 * time.Minute))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.checkAndRunJobs(time.Now().Add(4 * time.Minute))

	_, err := s.RunNow(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrJobInFlight)

	close(job.block)
	s.wg.Wait()

	info, err := s.GetJobInfo("slow")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.RunCount)
	assert.Equal(t, int64(1), info.SkipCount)
	assert.False(t, info.Running)
}

func TestScheduler_FailureHooksAndMetrics(t *testing.T) {
	s := newTestScheduler()
	s.ctx = context.Background()

	boom := errors.New("backend down")
	job := &stubJob{name: "verify", err: boom}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	var mu sync.Mutex
	var started, failed []string
	var completed []JobResult
	s.OnJobStart(func(name string) {
		mu.Lock()
		defer mu.Unlock()
		started = append(started, name)
	})
	s.OnJobError(func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, name)
	})
	s.OnJobComplete(func(r JobResult) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, r)
	})

	s.checkAndRunJobs(time.Now().Add(2 * time.Minute))
	s.wg.Wait()

	mu.Lock()
	assert.Equal(t, []string{"verify"}, started)
	assert.Equal(t, []string{"verify"}, failed)
	require.Len(t, completed, 1)
	assert.ErrorIs(t, completed[0].Error, boom)
	mu.Unlock()

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.Zero(t, snap.SuccessRate)

	info, err := s.GetJobInfo("verify")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.FailCount)
}

func TestScheduler_RunNowAndHistory(t *testing.T) {
	s := newTestScheduler()

	job := &stubJob{name: "prune"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	for i := 0; i < 5; i++ {
		res, err := s.RunNow(context.Background(), "prune")
		require.NoError(t, err)
		assert.True(t, res.Manual)
	}

	history := s.GetHistory(0)
	assert.Len(t, history, 3, "history is capped at MaxHistorySize")
	assert.Len(t, s.GetHistory(2), 2)

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_StartStop(t *testing.T) {
	s := newTestScheduler()

	job := &stubJob{name: "tick"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(20*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}
