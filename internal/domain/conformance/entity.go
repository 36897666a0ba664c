// Package conformance сравнивает значения, посчитанные бэкендом, с локальным
// эталонным пересчётом.
//
// Контракт: semester_gpa, cumulative_gpa и total_credits бэкенда должны
// совпадать с grading.Aggregate по тем же курсам в пределах допуска, а
// grade_point каждого курса - с баллом конвертера для его оценки.
package conformance

import (
	"fmt"
	"math"
	"time"

	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOLERANCE
// ══════════════════════════════════════════════════════════════════════════════

// DefaultTolerance - допуск по умолчанию для сравнения чисел с плавающей точкой.
const DefaultTolerance Tolerance = 1e-6

// Tolerance - абсолютный допуск при сравнении.
type Tolerance float64

// NewTolerance создаёт допуск с валидацией.
func NewTolerance(v float64) (Tolerance, error) {
	if math.IsNaN(v) || v < 0 {
		return 0, shared.ErrInvalidTolerance
	}
	return Tolerance(v), nil
}

// Equal сравнивает два значения в пределах допуска.
func (t Tolerance) Equal(expected, actual float64) bool {
	return math.Abs(expected-actual) <= float64(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status - итог прогона проверки.
type Status string

const (
	// StatusPass - все значения совпали.
	StatusPass Status = "pass"
	// StatusDrift - найдено хотя бы одно расхождение.
	StatusDrift Status = "drift"
	// StatusError - прогон не завершился (например, бэкенд недоступен).
	StatusError Status = "error"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusPass, StatusDrift, StatusError:
		return true
	default:
		return false
	}
}

// Field - проверяемое поле контракта.
type Field string

const (
	FieldSemesterGPA     Field = "semester_gpa"
	FieldSemesterCredits Field = "semester_total_credits"
	FieldCumulativeGPA   Field = "cumulative_gpa"
	FieldTotalCredits    Field = "total_credits"
	FieldGradePoint      Field = "grade_point"
	FieldLetterGrade     Field = "letter_grade"
	FieldScoreRange      Field = "score_range"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK
// ══════════════════════════════════════════════════════════════════════════════

// Check - результат сравнения одного значения.
type Check struct {
	// Subject - что проверялось: "cumulative", "semester:12", "course:34".
	Subject string `json:"subject"`
	Field   Field  `json:"field"`

	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`

	// ExpectedText и ActualText заполняются для нечисловых полей.
	ExpectedText string `json:"expected_text,omitempty"`
	ActualText   string `json:"actual_text,omitempty"`

	Passed bool `json:"passed"`
}

// Delta возвращает абсолютное расхождение.
func (c Check) Delta() float64 {
	return math.Abs(c.Expected - c.Actual)
}

// String возвращает читаемое описание проверки.
func (c Check) String() string {
	if c.ExpectedText != "" || c.ActualText != "" {
		return fmt.Sprintf("%s %s: expected %q, got %q", c.Subject, c.Field, c.ExpectedText, c.ActualText)
	}
	return fmt.Sprintf("%s %s: expected %.6f, got %.6f", c.Subject, c.Field, c.Expected, c.Actual)
}

// ToDriftItem конвертирует проверку в элемент события о расхождении.
func (c Check) ToDriftItem() shared.DriftItem {
	return shared.DriftItem{
		Subject:  c.Subject,
		Field:    string(c.Field),
		Expected: c.Expected,
		Actual:   c.Actual,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORT
// ══════════════════════════════════════════════════════════════════════════════

// Report - результат одного прогона проверки соответствия.
type Report struct {
	ID         shared.ReportID
	StartedAt  time.Time
	FinishedAt time.Time
	Tolerance  Tolerance
	Status     Status

	Semesters int
	Courses   int
	Checks    []Check

	// Error заполняется для StatusError.
	Error string
}

// NewReport создаёт пустой отчёт. ID генерирует вызывающий код.
func NewReport(id shared.ReportID, tolerance Tolerance, startedAt time.Time) *Report {
	return &Report{
		ID:        id,
		StartedAt: startedAt,
		Tolerance: tolerance,
		Status:    StatusPass,
	}
}

// Mismatches возвращает непрошедшие проверки.
func (r *Report) Mismatches() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// MismatchCount возвращает число непрошедших проверок.
func (r *Report) MismatchCount() int {
	n := 0
	for _, c := range r.Checks {
		if !c.Passed {
			n++
		}
	}
	return n
}

// Duration возвращает длительность прогона.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Fail помечает отчёт как незавершённый.
func (r *Report) Fail(err error, at time.Time) {
	r.Status = StatusError
	r.Error = err.Error()
	r.FinishedAt = at
}

// Finish фиксирует итоговый статус по результатам проверок.
func (r *Report) Finish(at time.Time) {
	r.FinishedAt = at
	if r.Status == StatusError {
		return
	}
	if r.MismatchCount() > 0 {
		r.Status = StatusDrift
	} else {
		r.Status = StatusPass
	}
}

// DriftEvent строит событие о расхождении, если оно есть.
func (r *Report) DriftEvent() (shared.ConformanceDriftEvent, bool) {
	mm := r.Mismatches()
	if len(mm) == 0 {
		return shared.ConformanceDriftEvent{}, false
	}
	items := make([]shared.DriftItem, 0, len(mm))
	for _, c := range mm {
		items = append(items, c.ToDriftItem())
	}
	return shared.NewConformanceDriftEvent(r.ID.String(), items), true
}

// CheckedEvent строит событие о завершении прогона.
func (r *Report) CheckedEvent() shared.ConformanceCheckedEvent {
	return shared.NewConformanceCheckedEvent(r.ID.String(), string(r.Status), len(r.Checks), r.MismatchCount(), r.Duration())
}
