package query

import (
	"context"
	"fmt"
	"math"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATE GPA QUERY
// Считает GPA по произвольному набору курсов без обращения к бэкенду.
// ══════════════════════════════════════════════════════════════════════════════

// CourseInput - курс в запросе агрегации.
type CourseInput struct {
	// Credits - вес курса. 0 допустим: такой курс не влияет на GPA.
	Credits int
	Score   *float64
	Letter  string
}

// SemesterInput - группа курсов.
type SemesterInput struct {
	Name    string
	Courses []CourseInput
}

// AggregateGPAQuery содержит семестры для агрегации.
type AggregateGPAQuery struct {
	Semesters []SemesterInput
}

// AggregatedSemesterDTO - итог по одному семестру.
type AggregatedSemesterDTO struct {
	Name   string            `json:"name"`
	Result grading.GpaResult `json:"result"`
	// Courses - разрешённые оценки в порядке ввода.
	Courses []grading.ResolvedGrade `json:"courses"`
}

// AggregatedGPADTO - итог агрегации.
type AggregatedGPADTO struct {
	Semesters    []AggregatedSemesterDTO `json:"semesters"`
	Cumulative   grading.GpaResult       `json:"cumulative"`
	Standing     StandingDTO             `json:"standing"`
	FormattedGPA string                  `json:"formatted_gpa"`
}

// AggregateGPAHandler обрабатывает запрос агрегации.
type AggregateGPAHandler struct{}

// NewAggregateGPAHandler создаёт обработчик.
func NewAggregateGPAHandler() *AggregateGPAHandler {
	return &AggregateGPAHandler{}
}

// Handle валидирует курсы, переводит оценки и агрегирует их.
func (h *AggregateGPAHandler) Handle(_ context.Context, q AggregateGPAQuery) (*AggregatedGPADTO, error) {
	out := &AggregatedGPADTO{Semesters: make([]AggregatedSemesterDTO, 0, len(q.Semesters))}
	weighted := make([][]grading.WeightedGrade, 0, len(q.Semesters))

	for si, sem := range q.Semesters {
		dto := AggregatedSemesterDTO{Name: sem.Name, Courses: make([]grading.ResolvedGrade, 0, len(sem.Courses))}
		wg := make([]grading.WeightedGrade, 0, len(sem.Courses))
		for ci, c := range sem.Courses {
			in, err := courseGradeInput(c)
			if err != nil {
				return nil, fmt.Errorf("aggregate_gpa: semester %d, course %d: %w", si, ci, err)
			}
			rg, err := grading.Resolve(in)
			if err != nil {
				return nil, fmt.Errorf("aggregate_gpa: semester %d, course %d: %w", si, ci, err)
			}
			dto.Courses = append(dto.Courses, rg)
			wg = append(wg, grading.WeightedGrade{Credits: in.Credits, GradePoint: rg.GradePoint})
		}
		out.Semesters = append(out.Semesters, dto)
		weighted = append(weighted, wg)
	}

	per, cumulative := grading.AggregateSemesters(weighted)
	for i := range per {
		out.Semesters[i].Result = per[i]
	}
	out.Cumulative = cumulative
	out.Standing = standingDTO(cumulative.Standing())
	out.FormattedGPA = grading.FormatGPA(cumulative.GPA)
	return out, nil
}

func courseGradeInput(c CourseInput) (grading.CourseGradeInput, error) {
	if err := shared.Credits(c.Credits).ValidateWeight(); err != nil {
		return grading.CourseGradeInput{}, err
	}
	if c.Score != nil {
		if err := grading.ValidateScore(*c.Score); err != nil {
			return grading.CourseGradeInput{}, err
		}
		return grading.WithScore(c.Credits, *c.Score), nil
	}
	if c.Letter == "" {
		return grading.CourseGradeInput{}, shared.ErrNoGradeProvided
	}
	return grading.WithLetter(c.Credits, grading.Letter(c.Letter)), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET STANDING QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStandingQuery - GPA по 4-балльной шкале.
type GetStandingQuery struct {
	GPA float64
}

// GetStandingHandler классифицирует GPA.
type GetStandingHandler struct{}

// NewGetStandingHandler создаёт обработчик.
func NewGetStandingHandler() *GetStandingHandler {
	return &GetStandingHandler{}
}

// Handle возвращает академический статус.
func (h *GetStandingHandler) Handle(_ context.Context, q GetStandingQuery) (*StandingDTO, error) {
	if math.IsNaN(q.GPA) || q.GPA < 0 || q.GPA > 4 {
		return nil, shared.NewDomainError("grading", "Standing", shared.ErrValueOutOfRange, "gpa must be within [0, 4]")
	}
	dto := standingDTO(grading.StandingFor(q.GPA))
	return &dto, nil
}

func standingDTO(s grading.Standing) StandingDTO {
	return StandingDTO{Code: s.String(), Label: s.Label(), MinGPA: s.MinGPA()}
}
