package query

import (
	"context"
	"fmt"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONVERT GRADE QUERY
// Переводит балл или букву в букву и grade point.
// ══════════════════════════════════════════════════════════════════════════════

// ConvertGradeQuery - балл или буква одного курса. Если задан балл, буква
// игнорируется.
type ConvertGradeQuery struct {
	Score  *float64
	Letter string
}

// Validate проверяет входные данные. Балл вне [0, 10] отклоняется здесь,
// хотя сам конвертер его бы принял.
func (q ConvertGradeQuery) Validate() error {
	if q.Score != nil {
		return grading.ValidateScore(*q.Score)
	}
	if q.Letter == "" {
		return shared.ErrNoGradeProvided
	}
	return nil
}

// ConvertedGradeDTO - результат перевода.
type ConvertedGradeDTO struct {
	Letter     string  `json:"letter"`
	GradePoint float64 `json:"grade_point"`
	// Score - исходный балл или представительный балл буквы.
	Score   float64 `json:"score"`
	Passing bool    `json:"passing"`
}

// ConvertGradeHandler обрабатывает запрос перевода.
type ConvertGradeHandler struct{}

// NewConvertGradeHandler создаёт обработчик.
func NewConvertGradeHandler() *ConvertGradeHandler {
	return &ConvertGradeHandler{}
}

// Handle выполняет перевод.
func (h *ConvertGradeHandler) Handle(_ context.Context, q ConvertGradeQuery) (*ConvertedGradeDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("convert_grade: %w", err)
	}

	if q.Score != nil {
		rg := grading.ScoreToGrade(*q.Score)
		return &ConvertedGradeDTO{
			Letter:     rg.Letter.String(),
			GradePoint: rg.GradePoint,
			Score:      *q.Score,
			Passing:    rg.Letter.Passing(),
		}, nil
	}

	point, err := grading.LetterToPoint(q.Letter)
	if err != nil {
		return nil, fmt.Errorf("convert_grade: %w", err)
	}
	score, err := grading.LetterToRepresentativeScore(q.Letter)
	if err != nil {
		return nil, fmt.Errorf("convert_grade: %w", err)
	}
	return &ConvertedGradeDTO{
		Letter:     q.Letter,
		GradePoint: point,
		Score:      score,
		Passing:    grading.Letter(q.Letter).Passing(),
	}, nil
}
