package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LATEST REPORT QUERY
// Возвращает последний отчёт о проверке: сначала из кеша, затем из БД.
// ══════════════════════════════════════════════════════════════════════════════

// GetReportQuery выбирает отчёт. Пустой ReportID - последний отчёт.
type GetReportQuery struct {
	ReportID shared.ReportID
	// MismatchesOnly оставляет в ответе только непрошедшие проверки.
	MismatchesOnly bool
}

// CheckDTO - одна проверка.
type CheckDTO struct {
	Subject      string  `json:"subject"`
	Field        string  `json:"field"`
	Expected     float64 `json:"expected"`
	Actual       float64 `json:"actual"`
	ExpectedText string  `json:"expected_text,omitempty"`
	ActualText   string  `json:"actual_text,omitempty"`
	Passed       bool    `json:"passed"`
}

// ReportDTO - отчёт о проверке.
type ReportDTO struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	StartedAt  string     `json:"started_at"`
	FinishedAt string     `json:"finished_at,omitempty"`
	DurationMS int64      `json:"duration_ms"`
	Tolerance  float64    `json:"tolerance"`
	Semesters  int        `json:"semesters"`
	Courses    int        `json:"courses"`
	Total      int        `json:"checks_total"`
	Mismatches int        `json:"mismatches"`
	Error      string     `json:"error,omitempty"`
	Checks     []CheckDTO `json:"checks,omitempty"`
	FromCache  bool       `json:"from_cache"`
}

// GetLatestReportHandler обрабатывает запросы отчётов.
type GetLatestReportHandler struct {
	cache  conformance.Cache
	repo   conformance.Repository
	logger *slog.Logger
}

// NewGetLatestReportHandler создаёт обработчик. cache опционален.
func NewGetLatestReportHandler(cache conformance.Cache, repo conformance.Repository, logger *slog.Logger) *GetLatestReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GetLatestReportHandler{
		cache:  cache,
		repo:   repo,
		logger: logger.With("handler", "get_latest_report"),
	}
}

// Handle возвращает отчёт. Ошибка кеша не прерывает запрос: отчёт читается
// из БД и кладётся обратно в кеш.
func (h *GetLatestReportHandler) Handle(ctx context.Context, q GetReportQuery) (*ReportDTO, error) {
	if !q.ReportID.IsEmpty() {
		if !q.ReportID.IsValid() {
			return nil, fmt.Errorf("get_report: %w", shared.ErrInvalidID)
		}
		r, err := h.repo.GetByID(ctx, q.ReportID)
		if err != nil {
			return nil, fmt.Errorf("get_report %s: %w", q.ReportID, err)
		}
		return ReportToDTO(r, q.MismatchesOnly, false), nil
	}

	if h.cache != nil {
		r, err := h.cache.GetLatest(ctx)
		if err == nil {
			return ReportToDTO(r, q.MismatchesOnly, true), nil
		}
		if !errors.Is(err, shared.ErrReportNotFound) {
			h.logger.Warn("report cache unavailable", "error", err)
		}
	}

	r, err := h.repo.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_latest_report: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.SetLatest(ctx, r); err != nil {
			h.logger.Warn("failed to warm report cache", "report_id", r.ID, "error", err)
		}
	}
	return ReportToDTO(r, q.MismatchesOnly, false), nil
}

// ListReports возвращает последние отчёты; проверки в ответ не попадают.
func (h *GetLatestReportHandler) ListReports(ctx context.Context, limit int) ([]*ReportDTO, error) {
	reports, err := h.repo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list_reports: %w", err)
	}
	out := make([]*ReportDTO, 0, len(reports))
	for _, r := range reports {
		dto := ReportToDTO(r, false, false)
		dto.Checks = nil
		out = append(out, dto)
	}
	return out, nil
}

// ReportToDTO переводит отчёт в DTO.
func ReportToDTO(r *conformance.Report, mismatchesOnly, fromCache bool) *ReportDTO {
	dto := &ReportDTO{
		ID:         r.ID.String(),
		Status:     string(r.Status),
		StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
		DurationMS: r.Duration().Milliseconds(),
		Tolerance:  float64(r.Tolerance),
		Semesters:  r.Semesters,
		Courses:    r.Courses,
		Total:      len(r.Checks),
		Mismatches: r.MismatchCount(),
		Error:      r.Error,
		FromCache:  fromCache,
	}
	if !r.FinishedAt.IsZero() {
		dto.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}

	checks := r.Checks
	if mismatchesOnly {
		checks = r.Mismatches()
	}
	for _, c := range checks {
		dto.Checks = append(dto.Checks, CheckDTO{
			Subject:      c.Subject,
			Field:        string(c.Field),
			Expected:     c.Expected,
			Actual:       c.Actual,
			ExpectedText: c.ExpectedText,
			ActualText:   c.ActualText,
			Passed:       c.Passed,
		})
	}
	return dto
}
