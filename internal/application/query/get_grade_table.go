// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GRADE TABLE QUERY
// Возвращает таблицу перевода баллов и пороги академических статусов.
// ══════════════════════════════════════════════════════════════════════════════

// GetGradeTableQuery не имеет параметров.
type GetGradeTableQuery struct{}

// GradeBandDTO - строка таблицы перевода.
type GradeBandDTO struct {
	Range          string  `json:"range"`
	Letter         string  `json:"letter"`
	Point          float64 `json:"point"`
	Representative float64 `json:"representative_score"`
	Passing        bool    `json:"passing"`
}

// StandingDTO - порог академического статуса.
type StandingDTO struct {
	Code   string  `json:"code"`
	Label  string  `json:"label"`
	MinGPA float64 `json:"min_gpa"`
}

// GradeTableDTO - полная таблица.
type GradeTableDTO struct {
	Bands     []GradeBandDTO `json:"bands"`
	Standings []StandingDTO  `json:"standings"`
}

// GetGradeTableHandler обрабатывает запрос таблицы. Таблица статична,
// поэтому DTO строится один раз.
type GetGradeTableHandler struct {
	table *GradeTableDTO
}

// NewGetGradeTableHandler создаёт обработчик.
func NewGetGradeTableHandler() *GetGradeTableHandler {
	return &GetGradeTableHandler{table: buildGradeTable()}
}

// Handle возвращает таблицу перевода.
func (h *GetGradeTableHandler) Handle(_ context.Context, _ GetGradeTableQuery) (*GradeTableDTO, error) {
	out := &GradeTableDTO{
		Bands:     make([]GradeBandDTO, len(h.table.Bands)),
		Standings: make([]StandingDTO, len(h.table.Standings)),
	}
	copy(out.Bands, h.table.Bands)
	copy(out.Standings, h.table.Standings)
	return out, nil
}

func buildGradeTable() *GradeTableDTO {
	bands := grading.Bands()
	t := &GradeTableDTO{Bands: make([]GradeBandDTO, 0, len(bands))}
	for _, b := range bands {
		t.Bands = append(t.Bands, GradeBandDTO{
			Range:          grading.FormatBandRange(b),
			Letter:         b.Letter.String(),
			Point:          b.Point,
			Representative: b.Representative,
			Passing:        b.Letter.Passing(),
		})
	}
	for _, s := range grading.Standings() {
		t.Standings = append(t.Standings, StandingDTO{
			Code:   s.String(),
			Label:  s.Label(),
			MinGPA: s.MinGPA(),
		})
	}
	return t
}
