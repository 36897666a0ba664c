package gpaapi

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// GPA OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetSummary returns the backend's GPA summary.
func (c *Client) GetSummary(ctx context.Context) (*GPASummaryDTO, error) {
	var summary GPASummaryDTO
	if err := c.doRequest(ctx, http.MethodGet, "/api/gpa/summary", nil, &summary); err != nil {
		return nil, fmt.Errorf("get gpa summary: %w", err)
	}
	return &summary, nil
}

// GetGradeTable returns the grade table published by the backend.
func (c *Client) GetGradeTable(ctx context.Context) ([]conformance.TableRow, error) {
	var rows []GradeTableEntryDTO
	if err := c.doRequest(ctx, http.MethodGet, "/api/gpa/grade-table", nil, &rows); err != nil {
		return nil, fmt.Errorf("get grade table: %w", err)
	}

	out := make([]conformance.TableRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, conformance.TableRow{Range: r.Range, Letter: r.Letter, Point: r.Point})
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIPT SOURCE
// ══════════════════════════════════════════════════════════════════════════════

// FetchTranscript loads the whole transcript from GET /api/gpa/summary.
func (c *Client) FetchTranscript(ctx context.Context) (*transcript.Transcript, error) {
	summary, err := c.GetSummary(ctx)
	if err != nil {
		return nil, err
	}
	t, err := c.mapper.TranscriptFromSummary(summary)
	if err != nil {
		return nil, fmt.Errorf("map gpa summary: %w", err)
	}
	return t, nil
}

// FetchTranscriptDetailed loads the summary for the reported cumulative
// values and then re-reads every semester from GET /api/semesters/{id}, at
// most MaxConcurrency at a time. Semester order follows the summary.
func (c *Client) FetchTranscriptDetailed(ctx context.Context) (*transcript.Transcript, error) {
	summary, err := c.GetSummary(ctx)
	if err != nil {
		return nil, err
	}

	semesters := make([]transcript.Semester, len(summary.Semesters))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.MaxConcurrency)
	for i := range summary.Semesters {
		i := i
		id := summary.Semesters[i].ID
		g.Go(func() error {
			dto, err := c.GetSemester(gctx, shared.SemesterID(id))
			if err != nil {
				return err
			}
			s, err := c.mapper.SemesterFromDTO(dto)
			if err != nil {
				return fmt.Errorf("map semester %d: %w", id, err)
			}
			semesters[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched detailed transcript", "semesters", len(semesters))

	return &transcript.Transcript{
		Semesters:             semesters,
		ReportedCumulativeGPA: summary.CumulativeGPA,
		ReportedTotalCredits:  summary.TotalCredits,
	}, nil
}
