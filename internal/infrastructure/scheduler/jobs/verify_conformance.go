// Package jobs contains the scheduled jobs of the GPA tracker worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY CONFORMANCE JOB
// ══════════════════════════════════════════════════════════════════════════════

// Verifier runs one conformance pass and returns the finished report.
// The application layer's VerifyConformanceHandler satisfies it.
type Verifier interface {
	Verify(ctx context.Context, trigger string) (*conformance.Report, error)
}

// Locker guards a resource across worker instances.
type Locker interface {
	AcquireLock(ctx context.Context, resource, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, resource, owner string) error
}

// VerifyConformanceJob re-computes the GPA of the backend transcript and
// compares it with what the backend reports. With a Locker set, only one
// worker instance runs the check at a time.
type VerifyConformanceJob struct {
	verifier Verifier
	locker   Locker
	logger   *slog.Logger
	config   VerifyConformanceConfig
	owner    string

	lastStats atomic.Value // *VerifyStats
}

// VerifyConformanceConfig contains configuration for the verify job.
type VerifyConformanceConfig struct {
	// LockResource names the distributed lock.
	LockResource string

	// LockTTL must exceed the longest expected run.
	LockTTL time.Duration

	// Timeout is the maximum duration for one verification.
	Timeout time.Duration
}

// DefaultVerifyConformanceConfig returns sensible defaults.
func DefaultVerifyConformanceConfig() VerifyConformanceConfig {
	return VerifyConformanceConfig{
		LockResource: "verify-conformance",
		LockTTL:      5 * time.Minute,
		Timeout:      2 * time.Minute,
	}
}

// VerifyStats summarises the last run of the job.
type VerifyStats struct {
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Skipped     bool
	ReportID    string
	Status      conformance.Status
	Checks      int
	Mismatches  int
}

// ErrLockHeld is returned when another instance holds the verification lock.
// The job treats it as a skipped run, not a failure.
var ErrLockHeld = errors.New("verification lock held by another instance")

// NewVerifyConformanceJob creates the job. locker may be nil.
func NewVerifyConformanceJob(
	verifier Verifier,
	locker Locker,
	logger *slog.Logger,
	config VerifyConformanceConfig,
) *VerifyConformanceJob {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultVerifyConformanceConfig()
	if config.LockResource == "" {
		config.LockResource = defaults.LockResource
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &VerifyConformanceJob{
		verifier: verifier,
		locker:   locker,
		logger:   logger.With("job", "verify_conformance"),
		config:   config,
		owner:    uuid.NewString(),
	}
}

// Name returns the job name.
func (j *VerifyConformanceJob) Name() string {
	return "verify_conformance"
}

// Description returns a human-readable description.
func (j *VerifyConformanceJob) Description() string {
	return "Recomputes backend GPA figures and records drift"
}

// Run executes one verification pass.
func (j *VerifyConformanceJob) Run(ctx context.Context) error {
	stats := &VerifyStats{StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	if j.locker != nil {
		ok, err := j.locker.AcquireLock(ctx, j.config.LockResource, j.owner, j.config.LockTTL)
		if err != nil {
			// Redis being down must not stop verification on a single worker.
			j.logger.Warn("lock unavailable, running unguarded", "error", err)
		} else if !ok {
			stats.Skipped = true
			j.logger.Info("verification skipped", "reason", ErrLockHeld.Error())
			return nil
		} else {
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := j.locker.ReleaseLock(releaseCtx, j.config.LockResource, j.owner); err != nil {
					j.logger.Warn("failed to release lock", "error", err)
				}
			}()
		}
	}

	report, err := j.verifier.Verify(ctx, "scheduler")
	if report != nil {
		stats.ReportID = report.ID.String()
		stats.Status = report.Status
		stats.Checks = len(report.Checks)
		stats.Mismatches = report.MismatchCount()
	}
	if err != nil {
		return fmt.Errorf("verify conformance: %w", err)
	}

	j.logger.Info("verification finished",
		"report_id", stats.ReportID,
		"status", stats.Status,
		"checks", stats.Checks,
		"mismatches", stats.Mismatches,
	)
	return nil
}

// LastStats returns statistics of the last run, or nil before the first run.
func (j *VerifyConformanceJob) LastStats() *VerifyStats {
	v := j.lastStats.Load()
	if v == nil {
		return nil
	}
	return v.(*VerifyStats)
}
