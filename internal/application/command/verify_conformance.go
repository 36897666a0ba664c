// Package command contains write operations (CQRS - Commands).
// Commands change state: they write to the GPA backend or record
// conformance reports.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// VERIFY CONFORMANCE COMMAND
// Recomputes every GPA figure of the backend transcript and records how the
// backend's own values compare.
// ══════════════════════════════════════════════════════════════════════════════

// VerifyConformanceCommand starts one verification run.
type VerifyConformanceCommand struct {
	// Trigger names what started the run ("scheduler", "api", "cli").
	Trigger string

	// Tolerance overrides the handler's tolerance when set.
	Tolerance *float64

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate validates the command.
func (c VerifyConformanceCommand) Validate() error {
	if c.Tolerance != nil {
		if _, err := conformance.NewTolerance(*c.Tolerance); err != nil {
			return err
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// DetailedTranscriptSource loads the transcript with every semester read
// individually, so per-course grade points are the backend's stored values.
type DetailedTranscriptSource interface {
	FetchTranscriptDetailed(ctx context.Context) (*transcript.Transcript, error)
}

// GradeTableSource returns the grade table the backend publishes.
type GradeTableSource interface {
	GetGradeTable(ctx context.Context) ([]conformance.TableRow, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// VerifyConformanceConfig contains configuration for the handler.
type VerifyConformanceConfig struct {
	Tolerance conformance.Tolerance

	// CheckGradeTable also compares the backend's published grade table.
	CheckGradeTable bool
}

// DefaultVerifyConformanceConfig returns default configuration.
func DefaultVerifyConformanceConfig() VerifyConformanceConfig {
	return VerifyConformanceConfig{
		Tolerance:       conformance.DefaultTolerance,
		CheckGradeTable: true,
	}
}

// VerifyConformanceHandler handles the VerifyConformanceCommand.
type VerifyConformanceHandler struct {
	source    DetailedTranscriptSource
	table     GradeTableSource
	repo      conformance.Repository
	cache     conformance.Cache
	publisher shared.EventPublisher
	logger    *slog.Logger
	config    VerifyConformanceConfig

	now   func() time.Time
	newID func() string
}

// NewVerifyConformanceHandler creates a new handler. table, cache and
// publisher are optional.
func NewVerifyConformanceHandler(
	source DetailedTranscriptSource,
	table GradeTableSource,
	repo conformance.Repository,
	cache conformance.Cache,
	publisher shared.EventPublisher,
	logger *slog.Logger,
	config VerifyConformanceConfig,
) *VerifyConformanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerifyConformanceHandler{
		source:    source,
		table:     table,
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		logger:    logger.With("handler", "verify_conformance"),
		config:    config,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Verify runs the command with the handler's defaults.
func (h *VerifyConformanceHandler) Verify(ctx context.Context, trigger string) (*conformance.Report, error) {
	return h.Handle(ctx, VerifyConformanceCommand{Trigger: trigger})
}

// Handle executes the verification. A run that could not fetch the transcript
// is still stored, with status "error", and the report is returned together
// with the error.
func (h *VerifyConformanceHandler) Handle(ctx context.Context, cmd VerifyConformanceCommand) (*conformance.Report, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("verify_conformance: validation failed: %w", err)
	}

	tolerance := h.config.Tolerance
	if cmd.Tolerance != nil {
		tolerance = conformance.Tolerance(*cmd.Tolerance)
	}

	id := shared.ReportID(h.newID())
	report := conformance.NewReport(id, tolerance, h.now())
	log := h.logger.With("report_id", id.String(), "trigger", cmd.Trigger)

	runErr := h.run(ctx, report)
	if runErr != nil {
		report.Fail(runErr, h.now())
		log.Error("conformance run failed", "error", runErr)
	} else {
		report.Finish(h.now())
	}

	if err := h.repo.Save(ctx, report); err != nil {
		return report, errors.Join(runErr, fmt.Errorf("verify_conformance: save report: %w", err))
	}

	if h.cache != nil {
		if err := h.cache.SetLatest(ctx, report); err != nil {
			log.Warn("failed to cache latest report", "error", err)
		}
	}

	h.publishOutcome(report, runErr, cmd.CorrelationID)

	if runErr != nil {
		return report, fmt.Errorf("verify_conformance: %w", runErr)
	}

	log.Info("conformance run finished",
		"status", report.Status,
		"checks", len(report.Checks),
		"mismatches", report.MismatchCount(),
		"duration", report.Duration().String(),
	)
	return report, nil
}

func (h *VerifyConformanceHandler) run(ctx context.Context, report *conformance.Report) error {
	t, err := h.source.FetchTranscriptDetailed(ctx)
	if err != nil {
		return fmt.Errorf("fetch transcript: %w", err)
	}
	report.Semesters = len(t.Semesters)
	report.Courses = t.CourseCount()

	if err := conformance.Verify(report, t); err != nil {
		return err
	}

	if h.table != nil && h.config.CheckGradeTable {
		rows, err := h.table.GetGradeTable(ctx)
		if err != nil {
			return fmt.Errorf("fetch grade table: %w", err)
		}
		conformance.VerifyGradeTable(report, rows)
	}
	return nil
}

func (h *VerifyConformanceHandler) publishOutcome(report *conformance.Report, runErr error, correlationID string) {
	if h.publisher == nil {
		return
	}

	var events []shared.Event
	if runErr != nil {
		ev := shared.NewConformanceFailedEvent(report.ID.String(), runErr.Error())
		ev.BaseEvent = ev.BaseEvent.WithCorrelationID(correlationID)
		events = append(events, ev)
	} else {
		checked := report.CheckedEvent()
		checked.BaseEvent = checked.BaseEvent.WithCorrelationID(correlationID)
		events = append(events, checked)
		if drift, ok := report.DriftEvent(); ok {
			drift.BaseEvent = drift.BaseEvent.WithCorrelationID(correlationID)
			events = append(events, drift)
		}
	}

	for _, e := range events {
		if err := h.publisher.Publish(e); err != nil {
			h.logger.Warn("failed to publish event", "event_type", e.EventType(), "error", err)
		}
	}
}
