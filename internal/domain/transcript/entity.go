package transcript

import (
	"fmt"
	"strings"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE
// ══════════════════════════════════════════════════════════════════════════════

// Course представляет оценку по одному курсу в семестре, как её хранит бэкенд.
type Course struct {
	ID         shared.CourseID
	SemesterID shared.SemesterID
	Code       shared.CourseCode
	Name       string
	Credits    int

	// Score - балл по 10-балльной шкале. nil, если курс оценён только буквой.
	Score *float64

	// Letter и GradePoint - значения, посчитанные бэкендом.
	Letter     grading.Letter
	GradePoint float64
}

// GradeInput возвращает вход для конвертера. Балл приоритетнее буквы.
func (c Course) GradeInput() grading.CourseGradeInput {
	in := grading.CourseGradeInput{Credits: c.Credits, Letter: c.Letter}
	if c.Score != nil {
		s := *c.Score
		in.Score = &s
	}
	return in
}

// HasScore возвращает true, если у курса есть числовой балл.
func (c Course) HasScore() bool {
	return c.Score != nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SEMESTER
// ══════════════════════════════════════════════════════════════════════════════

// Semester представляет семестр с курсами и значениями, посчитанными бэкендом.
type Semester struct {
	ID     shared.SemesterID
	Name   string
	Year   shared.AcademicYear
	Number shared.SemesterNumber

	Courses []Course

	// ReportedGPA и ReportedCredits пришли из /api/gpa/summary.
	ReportedGPA     float64
	ReportedCredits int
}

// HasCourse проверяет, есть ли в семестре курс с таким кодом.
func (s *Semester) HasCourse(code shared.CourseCode) bool {
	for _, c := range s.Courses {
		if c.Code.Equal(code) {
			return true
		}
	}
	return false
}

// CourseCodes возвращает множество нормализованных кодов курсов семестра.
func (s *Semester) CourseCodes() map[shared.CourseCode]struct{} {
	out := make(map[shared.CourseCode]struct{}, len(s.Courses))
	for _, c := range s.Courses {
		out[c.Code.Normalize()] = struct{}{}
	}
	return out
}

// DisplayName возвращает имя семестра или построенное из года и номера, если
// бэкенд вернул пустое.
func (s *Semester) DisplayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return SemesterName(s.Year, s.Number)
}

// SemesterName строит каноническое название семестра: "HK1 - Năm học 2024 - 2025".
func SemesterName(year shared.AcademicYear, number shared.SemesterNumber) string {
	return fmt.Sprintf("HK%d - Năm học %s", number.Int(), year.Span())
}

// NewSemesterParams содержит параметры для создания семестра.
type NewSemesterParams struct {
	Year   int
	Number int
	// Name опционально; по умолчанию используется SemesterName.
	Name string
}

// NewSemester валидирует параметры и создаёт семестр без курсов и ID.
// ID назначает бэкенд.
func NewSemester(p NewSemesterParams) (*Semester, error) {
	year, err := shared.NewAcademicYear(p.Year)
	if err != nil {
		return nil, err
	}
	number, err := shared.NewSemesterNumber(p.Number)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = SemesterName(year, number)
	}
	return &Semester{Name: name, Year: year, Number: number}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIPT
// ══════════════════════════════════════════════════════════════════════════════

// Transcript - полная академическая история, как её вернул бэкенд.
type Transcript struct {
	Semesters []Semester

	// ReportedCumulativeGPA и ReportedTotalCredits пришли из /api/gpa/summary.
	ReportedCumulativeGPA float64
	ReportedTotalCredits  int
}

// FindSemester ищет семестр по ID.
func (t *Transcript) FindSemester(id shared.SemesterID) (*Semester, error) {
	for i := range t.Semesters {
		if t.Semesters[i].ID == id {
			return &t.Semesters[i], nil
		}
	}
	return nil, shared.ErrSemesterNotFound
}

// CourseCount возвращает общее число курсов.
func (t *Transcript) CourseCount() int {
	n := 0
	for _, s := range t.Semesters {
		n += len(s.Courses)
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// CatalogCourse - запись общего каталога курсов.
type CatalogCourse struct {
	ID      shared.CatalogCourseID
	Code    shared.CourseCode
	Name    string
	Credits int
}

// BulkAddPlan описывает, какие курсы каталога будут добавлены в семестр.
type BulkAddPlan struct {
	SemesterID shared.SemesterID
	Add        []CatalogCourse
	Skipped    []CatalogCourse
}

// IDs возвращает ID курсов каталога, которые нужно добавить.
func (p BulkAddPlan) IDs() []shared.CatalogCourseID {
	ids := make([]shared.CatalogCourseID, 0, len(p.Add))
	for _, c := range p.Add {
		ids = append(ids, c.ID)
	}
	return ids
}

// PlanBulkAdd отбирает выбранные курсы каталога, которых ещё нет в семестре.
// Дубликаты внутри выборки тоже пропускаются.
func PlanBulkAdd(semester *Semester, selected []CatalogCourse) (BulkAddPlan, error) {
	if len(selected) == 0 {
		return BulkAddPlan{}, shared.ErrNothingToAdd
	}

	plan := BulkAddPlan{SemesterID: semester.ID}
	seen := semester.CourseCodes()
	for _, c := range selected {
		code := c.Code.Normalize()
		if _, ok := seen[code]; ok {
			plan.Skipped = append(plan.Skipped, c)
			continue
		}
		seen[code] = struct{}{}
		plan.Add = append(plan.Add, c)
	}
	return plan, nil
}

// FilterCatalog возвращает курсы каталога, у которых код или название
// содержат запрос (без учёта регистра).
func FilterCatalog(courses []CatalogCourse, query string) []CatalogCourse {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		out := make([]CatalogCourse, len(courses))
		copy(out, courses)
		return out
	}
	var out []CatalogCourse
	for _, c := range courses {
		if strings.Contains(strings.ToLower(string(c.Code)), q) ||
			strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out
}
