package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// BULK ADD CATALOG COMMAND
// Copies catalog courses into a semester, skipping codes the semester
// already has.
// ══════════════════════════════════════════════════════════════════════════════

// BulkAddCatalogCommand selects catalog courses for a semester.
type BulkAddCatalogCommand struct {
	SemesterID shared.SemesterID

	// Query filters the catalog by code or name.
	Query string

	// CatalogIDs picks courses among the query results. When empty, every
	// matching course is selected.
	CatalogIDs []int64

	// DefaultScore is the score the new courses start with.
	DefaultScore float64
}

// BulkAddCatalogResult describes what was added.
type BulkAddCatalogResult struct {
	Requested int
	Added     int
	Skipped   []transcript.CatalogCourse
}

// BulkAddCatalogHandler handles the BulkAddCatalogCommand.
type BulkAddCatalogHandler struct {
	source    transcript.Source
	catalog   transcript.Catalog
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewBulkAddCatalogHandler creates a new handler. publisher is optional.
func NewBulkAddCatalogHandler(
	source transcript.Source,
	catalog transcript.Catalog,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *BulkAddCatalogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkAddCatalogHandler{
		source:    source,
		catalog:   catalog,
		publisher: publisher,
		logger:    logger.With("handler", "bulk_add_catalog"),
	}
}

// Handle executes the command.
func (h *BulkAddCatalogHandler) Handle(ctx context.Context, cmd BulkAddCatalogCommand) (*BulkAddCatalogResult, error) {
	if !cmd.SemesterID.IsValid() {
		return nil, fmt.Errorf("bulk_add_catalog: %w", shared.ErrInvalidID)
	}
	if len(cmd.CatalogIDs) == 0 && cmd.Query == "" {
		return nil, fmt.Errorf("bulk_add_catalog: %w", shared.ErrNothingToAdd)
	}
	if err := grading.ValidateScore(cmd.DefaultScore); err != nil {
		return nil, fmt.Errorf("bulk_add_catalog: default score: %w", err)
	}

	t, err := h.source.FetchTranscript(ctx)
	if err != nil {
		return nil, fmt.Errorf("bulk_add_catalog: fetch transcript: %w", err)
	}
	sem, err := t.FindSemester(cmd.SemesterID)
	if err != nil {
		return nil, fmt.Errorf("bulk_add_catalog: %w", err)
	}

	matches, err := h.catalog.SearchCatalog(ctx, cmd.Query)
	if err != nil {
		return nil, fmt.Errorf("bulk_add_catalog: %w", err)
	}
	selected := selectCatalog(matches, cmd.CatalogIDs)

	plan, err := transcript.PlanBulkAdd(sem, selected)
	if err != nil {
		return nil, fmt.Errorf("bulk_add_catalog: %w", err)
	}

	added, err := h.catalog.BulkAdd(ctx, plan, cmd.DefaultScore)
	if err != nil {
		return nil, fmt.Errorf("bulk_add_catalog: %w", err)
	}

	h.logger.Info("catalog courses added",
		"semester_id", cmd.SemesterID.Int64(),
		"requested", len(selected),
		"added", added,
		"skipped", len(plan.Skipped),
	)

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewCatalogBulkAddedEvent(cmd.SemesterID, len(selected), added, len(plan.Skipped)))
	}

	return &BulkAddCatalogResult{
		Requested: len(selected),
		Added:     added,
		Skipped:   plan.Skipped,
	}, nil
}

// selectCatalog keeps the courses whose IDs were picked, or all of them when
// nothing was picked.
func selectCatalog(courses []transcript.CatalogCourse, ids []int64) []transcript.CatalogCourse {
	if len(ids) == 0 {
		return courses
	}
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []transcript.CatalogCourse
	for _, c := range courses {
		if _, ok := want[c.ID.Int64()]; ok {
			out = append(out, c)
		}
	}
	return out
}
