package conformance

import (
	"fmt"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// Verify сравнивает значения бэкенда в tr с локальным пересчётом и
// дописывает проверки в report. Отчёт не завершается: Finish вызывает
// вызывающий код.
//
// Для каждого курса проверяются grade_point и буква, для каждого семестра -
// semester_gpa и сумма кредитов, для всей истории - cumulative_gpa и
// total_credits.
func Verify(report *Report, tr *transcript.Transcript) error {
	summary, err := transcript.Summarize(tr)
	if err != nil {
		return fmt.Errorf("summarize transcript: %w", err)
	}

	tol := report.Tolerance
	report.Semesters = len(tr.Semesters)
	report.Courses = tr.CourseCount()

	for i, sem := range tr.Semesters {
		local := summary.Semesters[i]

		for j, c := range sem.Courses {
			resolved := local.Courses[j].Resolved
			subject := fmt.Sprintf("course:%s", c.ID)

			report.Checks = append(report.Checks, numeric(tol, subject, FieldGradePoint, resolved.GradePoint, c.GradePoint))

			// Пустая буква означает, что бэкенд её не вернул.
			if c.Letter != grading.LetterAbsent && c.HasScore() {
				report.Checks = append(report.Checks, Check{
					Subject:      subject,
					Field:        FieldLetterGrade,
					ExpectedText: resolved.Letter.String(),
					ActualText:   c.Letter.String(),
					Passed:       resolved.Letter == c.Letter,
				})
			}
		}

		subject := fmt.Sprintf("semester:%s", sem.ID)
		report.Checks = append(report.Checks,
			numeric(tol, subject, FieldSemesterGPA, local.Result.GPA, sem.ReportedGPA),
			exact(subject, FieldSemesterCredits, local.Result.TotalCredits, sem.ReportedCredits),
		)
	}

	report.Checks = append(report.Checks,
		numeric(tol, "cumulative", FieldCumulativeGPA, summary.Cumulative.GPA, tr.ReportedCumulativeGPA),
		exact("cumulative", FieldTotalCredits, summary.Cumulative.TotalCredits, tr.ReportedTotalCredits),
	)
	return nil
}

func numeric(tol Tolerance, subject string, field Field, expected, actual float64) Check {
	return Check{
		Subject:  subject,
		Field:    field,
		Expected: expected,
		Actual:   actual,
		Passed:   tol.Equal(expected, actual),
	}
}

func exact(subject string, field Field, expected, actual int) Check {
	return Check{
		Subject:  subject,
		Field:    field,
		Expected: float64(expected),
		Actual:   float64(actual),
		Passed:   expected == actual,
	}
}

// TableRow - строка таблицы перевода, опубликованной бэкендом.
type TableRow struct {
	Range  string
	Letter string
	Point  float64
}

// VerifyGradeTable сравнивает таблицу бэкенда с эталонной: каждая буква должна
// существовать и давать тот же балл, а диапазон - совпадать с печатным.
// Отсутствующие и повторённые буквы тоже считаются расхождением.
func VerifyGradeTable(report *Report, rows []TableRow) {
	seen := make(map[grading.Letter]bool, len(rows))
	for _, row := range rows {
		subject := fmt.Sprintf("grade_table:%s", row.Letter)
		band, err := grading.BandFor(grading.Letter(row.Letter))
		if err != nil {
			report.Checks = append(report.Checks, Check{
				Subject:      subject,
				Field:        FieldLetterGrade,
				ExpectedText: "one of A, B+, B, C+, C, D+, D, F",
				ActualText:   row.Letter,
			})
			continue
		}
		if seen[band.Letter] {
			// Повтор буквы - таблица неоднозначна, повтор не сверяется.
			report.Checks = append(report.Checks, Check{
				Subject:      subject,
				Field:        FieldLetterGrade,
				ExpectedText: "one row per letter",
				ActualText:   "duplicate " + band.Letter.String(),
			})
			continue
		}
		seen[band.Letter] = true
		report.Checks = append(report.Checks, numeric(report.Tolerance, subject, FieldGradePoint, band.Point, row.Point))
		if row.Range != "" {
			want := grading.FormatBandRange(band)
			report.Checks = append(report.Checks, Check{
				Subject:      subject,
				Field:        FieldScoreRange,
				ExpectedText: want,
				ActualText:   row.Range,
				Passed:       want == row.Range,
			})
		}
	}
	for _, l := range grading.Letters() {
		if !seen[l] {
			report.Checks = append(report.Checks, Check{
				Subject:      fmt.Sprintf("grade_table:%s", l),
				Field:        FieldLetterGrade,
				ExpectedText: l.String(),
				ActualText:   "",
			})
		}
	}
}
