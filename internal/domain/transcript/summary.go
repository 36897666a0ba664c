package transcript

import (
	"fmt"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// CourseGrade - курс с локально пересчитанной оценкой.
type CourseGrade struct {
	Course   Course
	Resolved grading.ResolvedGrade
}

// SemesterSummary - локальный итог по семестру.
type SemesterSummary struct {
	SemesterID shared.SemesterID
	Name       string
	Year       shared.AcademicYear
	Number     shared.SemesterNumber
	Courses    []CourseGrade
	Result     grading.GpaResult
}

// Summary - локальный итог по всей академической истории.
type Summary struct {
	Semesters  []SemesterSummary
	Cumulative grading.GpaResult
	Standing   grading.Standing
}

// Summarize пересчитывает GPA каждого семестра и накопительный GPA.
// Накопительный GPA считается по объединению всех курсов.
// Ошибка возвращается только для курса с неизвестной буквой или без оценки.
func Summarize(t *Transcript) (*Summary, error) {
	sum := &Summary{Semesters: make([]SemesterSummary, 0, len(t.Semesters))}
	weighted := make([][]grading.WeightedGrade, 0, len(t.Semesters))

	for _, sem := range t.Semesters {
		ss := SemesterSummary{
			SemesterID: sem.ID,
			Name:       sem.DisplayName(),
			Year:       sem.Year,
			Number:     sem.Number,
			Courses:    make([]CourseGrade, 0, len(sem.Courses)),
		}
		wg := make([]grading.WeightedGrade, 0, len(sem.Courses))
		for _, c := range sem.Courses {
			rg, err := grading.Resolve(c.GradeInput())
			if err != nil {
				return nil, fmt.Errorf("semester %s, course %s: %w", sem.ID, c.Code, err)
			}
			ss.Courses = append(ss.Courses, CourseGrade{Course: c, Resolved: rg})
			wg = append(wg, grading.WeightedGrade{Credits: c.Credits, GradePoint: rg.GradePoint})
		}
		sum.Semesters = append(sum.Semesters, ss)
		weighted = append(weighted, wg)
	}

	per, cumulative := grading.AggregateSemesters(weighted)
	for i := range per {
		sum.Semesters[i].Result = per[i]
	}
	sum.Cumulative = cumulative
	sum.Standing = cumulative.Standing()
	return sum, nil
}

// Semester возвращает итог по семестру с указанным ID.
func (s *Summary) Semester(id shared.SemesterID) (*SemesterSummary, error) {
	for i := range s.Semesters {
		if s.Semesters[i].SemesterID == id {
			return &s.Semesters[i], nil
		}
	}
	return nil, shared.ErrSemesterNotFound
}
