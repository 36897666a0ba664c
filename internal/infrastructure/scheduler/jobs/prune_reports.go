package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRUNE REPORTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReportPruner deletes stored conformance reports.
type ReportPruner interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// PruneReportsJob deletes conformance reports older than the retention period.
type PruneReportsJob struct {
	pruner    ReportPruner
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewPruneReportsJob creates the job. A non-positive retention defaults to 30 days.
func NewPruneReportsJob(pruner ReportPruner, retention time.Duration, logger *slog.Logger) *PruneReportsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &PruneReportsJob{
		pruner:    pruner,
		retention: retention,
		logger:    logger.With("job", "prune_reports"),
		now:       time.Now,
	}
}

// Name returns the job name.
func (j *PruneReportsJob) Name() string {
	return "prune_reports"
}

// Description returns a human-readable description.
func (j *PruneReportsJob) Description() string {
	return fmt.Sprintf("Deletes conformance reports older than %s", j.retention)
}

// Run deletes expired reports.
func (j *PruneReportsJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)

	deleted, err := j.pruner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune reports before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if deleted > 0 {
		j.logger.Info("old reports pruned", "deleted", deleted, "cutoff", cutoff)
	}
	return nil
}
