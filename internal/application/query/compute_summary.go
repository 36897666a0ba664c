package query

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPUTE SUMMARY QUERY
// Загружает академическую историю из бэкенда и пересчитывает GPA локально.
// Значения бэкенда возвращаются рядом, но в расчёте не участвуют.
// ══════════════════════════════════════════════════════════════════════════════

// ComputeSummaryQuery содержит параметры запроса.
type ComputeSummaryQuery struct {
	// Owner - пользователь, для которого считается сводка (для событий и логов).
	Owner string

	// SemesterID ограничивает ответ одним семестром. Накопительный GPA
	// всё равно считается по всем семестрам.
	SemesterID shared.SemesterID
}

// CourseSummaryDTO - курс с разрешённой оценкой.
type CourseSummaryDTO struct {
	ID         int64    `json:"id"`
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Credits    int      `json:"credits"`
	Score      *float64 `json:"score,omitempty"`
	Letter     string   `json:"letter"`
	GradePoint float64  `json:"grade_point"`
}

// SemesterSummaryDTO - итог по семестру.
type SemesterSummaryDTO struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Year         int                `json:"year"`
	Number       int                `json:"number"`
	GPA          float64            `json:"gpa"`
	TotalCredits int                `json:"total_credits"`
	ReportedGPA  float64            `json:"reported_gpa"`
	Courses      []CourseSummaryDTO `json:"courses"`
}

// SummaryDTO - сводка по всей истории.
type SummaryDTO struct {
	Semesters     []SemesterSummaryDTO `json:"semesters"`
	CumulativeGPA float64              `json:"cumulative_gpa"`
	TotalCredits  int                  `json:"total_credits"`
	FormattedGPA  string               `json:"formatted_gpa"`
	Standing      StandingDTO          `json:"standing"`

	ReportedCumulativeGPA float64 `json:"reported_cumulative_gpa"`
	ReportedTotalCredits  int     `json:"reported_total_credits"`

	// Cached - сводка взята из мемо, а не пересчитана.
	Cached bool `json:"cached"`
}

// SummaryMemo мемоизирует пересчёт сводки по содержимому истории.
type SummaryMemo interface {
	GetOrCompute(t *transcript.Transcript, compute func(*transcript.Transcript) (*transcript.Summary, error)) (*transcript.Summary, bool, error)
}

// ComputeSummaryHandler обрабатывает запрос сводки.
type ComputeSummaryHandler struct {
	source    transcript.Source
	memo      SummaryMemo
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewComputeSummaryHandler создаёт обработчик. memo и publisher опциональны.
func NewComputeSummaryHandler(
	source transcript.Source,
	memo SummaryMemo,
	publisher shared.EventPublisher,
	logger *slog.Logger,
) *ComputeSummaryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ComputeSummaryHandler{
		source:    source,
		memo:      memo,
		publisher: publisher,
		logger:    logger.With("handler", "compute_summary"),
	}
}

// Handle выполняет запрос.
func (h *ComputeSummaryHandler) Handle(ctx context.Context, q ComputeSummaryQuery) (*SummaryDTO, error) {
	t, err := h.source.FetchTranscript(ctx)
	if err != nil {
		return nil, fmt.Errorf("compute_summary: fetch transcript: %w", err)
	}

	var (
		sum    *transcript.Summary
		cached bool
	)
	if h.memo != nil {
		sum, cached, err = h.memo.GetOrCompute(t, transcript.Summarize)
	} else {
		sum, err = transcript.Summarize(t)
	}
	if err != nil {
		return nil, fmt.Errorf("compute_summary: %w", err)
	}

	dto := buildSummaryDTO(t, sum)
	dto.Cached = cached

	if !q.SemesterID.IsValid() {
		h.publish(q.Owner, sum, cached)
		return dto, nil
	}

	for _, s := range dto.Semesters {
		if s.ID == q.SemesterID.Int64() {
			dto.Semesters = []SemesterSummaryDTO{s}
			return dto, nil
		}
	}
	return nil, fmt.Errorf("compute_summary: %w", shared.ErrSemesterNotFound)
}

func (h *ComputeSummaryHandler) publish(owner string, sum *transcript.Summary, cached bool) {
	if h.publisher == nil || cached {
		return
	}
	event := shared.NewSummaryComputedEvent(owner, len(sum.Semesters), sum.Cumulative.TotalCredits, sum.Cumulative.GPA, sum.Standing.String())
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn("failed to publish summary event", "error", err)
	}
}

func buildSummaryDTO(t *transcript.Transcript, sum *transcript.Summary) *SummaryDTO {
	reported := make(map[shared.SemesterID]float64, len(t.Semesters))
	for _, s := range t.Semesters {
		reported[s.ID] = s.ReportedGPA
	}

	dto := &SummaryDTO{
		Semesters:             make([]SemesterSummaryDTO, 0, len(sum.Semesters)),
		CumulativeGPA:         sum.Cumulative.GPA,
		TotalCredits:          sum.Cumulative.TotalCredits,
		FormattedGPA:          grading.FormatGPA(sum.Cumulative.GPA),
		Standing:              standingDTO(sum.Standing),
		ReportedCumulativeGPA: t.ReportedCumulativeGPA,
		ReportedTotalCredits:  t.ReportedTotalCredits,
	}

	for _, ss := range sum.Semesters {
		sd := SemesterSummaryDTO{
			ID:           ss.SemesterID.Int64(),
			Name:         ss.Name,
			Year:         ss.Year.Int(),
			Number:       ss.Number.Int(),
			GPA:          ss.Result.GPA,
			TotalCredits: ss.Result.TotalCredits,
			ReportedGPA:  reported[ss.SemesterID],
			Courses:      make([]CourseSummaryDTO, 0, len(ss.Courses)),
		}
		for _, cg := range ss.Courses {
			sd.Courses = append(sd.Courses, CourseSummaryDTO{
				ID:         cg.Course.ID.Int64(),
				Code:       cg.Course.Code.String(),
				Name:       cg.Course.Name,
				Credits:    cg.Course.Credits,
				Score:      cg.Course.Score,
				Letter:     cg.Resolved.Letter.String(),
				GradePoint: cg.Resolved.GradePoint,
			})
		}
		dto.Semesters = append(dto.Semesters, sd)
	}
	return dto
}
