package gpaapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// SearchCatalog lists catalog courses whose code or name match query. An
// empty query lists the whole catalog.
func (c *Client) SearchCatalog(ctx context.Context, query string) ([]transcript.CatalogCourse, error) {
	path := "/api/catalog/"
	if q := strings.TrimSpace(query); q != "" {
		path += "?" + url.Values{"search": []string{q}}.Encode()
	}

	var dtos []CatalogCourseDTO
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &dtos); err != nil {
		return nil, fmt.Errorf("search catalog %q: %w", query, err)
	}
	return c.mapper.CatalogFromDTOs(dtos), nil
}

// CountCatalog returns the number of catalog courses.
func (c *Client) CountCatalog(ctx context.Context) (int, error) {
	var count CatalogCountDTO
	if err := c.doRequest(ctx, http.MethodGet, "/api/catalog/count", nil, &count); err != nil {
		return 0, fmt.Errorf("count catalog: %w", err)
	}
	return count.Count, nil
}

// BulkAdd copies the planned catalog courses into the semester with
// defaultScore as their score. It returns the number of courses added; when
// the backend does not report it, the planned count is assumed.
func (c *Client) BulkAdd(ctx context.Context, plan transcript.BulkAddPlan, defaultScore float64) (int, error) {
	if len(plan.Add) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0, len(plan.Add))
	for _, id := range plan.IDs() {
		ids = append(ids, id.Int64())
	}
	req := BulkAddRequestDTO{
		SemesterID:   plan.SemesterID.Int64(),
		CourseIDs:    ids,
		DefaultScore: defaultScore,
	}

	var resp BulkAddResponseDTO
	if err := c.doRequest(ctx, http.MethodPost, "/api/catalog/bulk-add", req, &resp); err != nil {
		return 0, fmt.Errorf("bulk add %d courses to semester %s: %w", len(ids), plan.SemesterID, err)
	}
	if resp.Added > 0 {
		return resp.Added, nil
	}
	return len(ids), nil
}
