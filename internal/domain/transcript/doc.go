// Package transcript содержит доменную модель академической истории студента.
//
// Пакет определяет:
//
//   - Сущности: Semester, Course, CatalogCourse, Transcript
//   - Производные значения: Summary, SemesterSummary, CourseGrade
//   - Порт Source, через который данные приходят из внешнего бэкенда
//
// # Источник истины
//
// Семестры, курсы и пользователи хранятся во внешнем REST-бэкенде. Transcript
// отражает то, что вернул бэкенд, включая посчитанные им semester_gpa,
// cumulative_gpa и grade_point. Summary, напротив, всегда пересчитывается
// локально через пакет grading:
//
//	tr, err := source.FetchTranscript(ctx)
//	summary, err := transcript.Summarize(tr)
//	fmt.Println(grading.FormatGPA(summary.Cumulative.GPA))
//
// Сравнение этих двух представлений выполняет пакет conformance.
//
// # Названия семестров
//
// Название строится из учебного года и номера семестра:
//
//	transcript.SemesterName(2024, 1) // "HK1 - Năm học 2024 - 2025"
package transcript
