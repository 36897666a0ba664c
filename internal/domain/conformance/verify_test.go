package conformance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

func score(v float64) *float64 { return &v }

func consistentTranscript() *transcript.Transcript {
	return &transcript.Transcript{
		Semesters: []transcript.Semester{{
			ID: 1, Year: 2024, Number: 1,
			Courses: []transcript.Course{
				{ID: 10, Code: "IT001", Credits: 3, Score: score(8.0), Letter: grading.LetterBPlus, GradePoint: 3.5},
				{ID: 11, Code: "MA006", Credits: 4, Score: score(9.5), Letter: grading.LetterA, GradePoint: 4.0},
				{ID: 12, Code: "SS004", Credits: 3, Letter: grading.LetterB, GradePoint: 3.0},
			},
			ReportedGPA:     3.55,
			ReportedCredits: 10,
		}},
		ReportedCumulativeGPA: 3.55,
		ReportedTotalCredits:  10,
	}
}

func TestVerify_Pass(t *testing.T) {
	start := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	r := NewReport("8b3f1c52-5a4e-4a38-9f57-3c1d2f1e9a01", DefaultTolerance, start)

	require.NoError(t, Verify(r, consistentTranscript()))
	r.Finish(start.Add(time.Second))

	assert.Equal(t, StatusPass, r.Status)
	assert.Equal(t, 1, r.Semesters)
	assert.Equal(t, 3, r.Courses)
	// 3 grade points + 2 letters + 2 semester + 2 cumulative
	assert.Len(t, r.Checks, 9)
	assert.Zero(t, r.MismatchCount())
	assert.Equal(t, time.Second, r.Duration())

	_, drift := r.DriftEvent()
	assert.False(t, drift)
}

func TestVerify_Drift(t *testing.T) {
	tr := consistentTranscript()
	tr.Semesters[0].Courses[0].GradePoint = 3.0
	tr.Semesters[0].Courses[0].Letter = grading.LetterB
	tr.ReportedCumulativeGPA = 3.6
	tr.ReportedTotalCredits = 11

	r := NewReport("8b3f1c52-5a4e-4a38-9f57-3c1d2f1e9a01", DefaultTolerance, time.Now())
	require.NoError(t, Verify(r, tr))
	r.Finish(time.Now())

	assert.Equal(t, StatusDrift, r.Status)
	mm := r.Mismatches()
	require.Len(t, mm, 4)
	assert.Equal(t, "course:10", mm[0].Subject)
	assert.Equal(t, FieldGradePoint, mm[0].Field)
	assert.Equal(t, FieldLetterGrade, mm[1].Field)
	assert.Equal(t, "B+", mm[1].ExpectedText)
	assert.Equal(t, FieldCumulativeGPA, mm[2].Field)
	assert.InDelta(t, 0.05, mm[2].Delta(), 1e-9)
	assert.Equal(t, FieldTotalCredits, mm[3].Field)

	ev, ok := r.DriftEvent()
	require.True(t, ok)
	assert.Equal(t, shared.EventConformanceDrift, ev.EventType())
	assert.Len(t, ev.Items, 4)

	checked := r.CheckedEvent()
	assert.Equal(t, "drift", checked.Status)
	assert.Equal(t, 4, checked.Mismatches)
}

func TestVerify_ToleranceAbsorbsRounding(t *testing.T) {
	tr := consistentTranscript()
	tr.Semesters[0].ReportedGPA = 3.5500004
	tr.ReportedCumulativeGPA = 3.5499996

	r := NewReport("8b3f1c52-5a4e-4a38-9f57-3c1d2f1e9a01", DefaultTolerance, time.Now())
	require.NoError(t, Verify(r, tr))
	r.Finish(time.Now())
	assert.Equal(t, StatusPass, r.Status)

	strict := NewReport("8b3f1c52-5a4e-4a38-9f57-3c1d2f1e9a01", 0, time.Now())
	require.NoError(t, Verify(strict, tr))
	strict.Finish(time.Now())
	assert.Equal(t, StatusDrift, strict.Status)
}

func TestVerify_UnknownLetter(t *testing.T) {
	tr := consistentTranscript()
	tr.Semesters[0].Courses[2].Letter = "E"

	r := NewReport("8b3f1c52-5a4e-4a38-9f57-3c1d2f1e9a01", DefaultTolerance, time.Now())
	err := Verify(r, tr)
	assert.ErrorIs(t, err, shared.ErrUnknownGradeLetter)
}

func TestReport_Fail(t *testing.T) {
	r := NewReport("8b3f1c52-5a4e-4a38-9f57-3c1d2f1e9a01", DefaultTolerance, time.Now())
	r.Fail(errors.New("backend down"), time.Now())
	r.Finish(time.Now())
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, "backend down", r.Error)
}

func TestNewTolerance(t *testing.T) {
	tol, err := NewTolerance(0.01)
	require.NoError(t, err)
	assert.True(t, tol.Equal(3.0, 3.009))
	assert.False(t, tol.Equal(3.0, 3.02))

	_, err = NewTolerance(-1)
	assert.ErrorIs(t, err, shared.ErrInvalidTolerance)
}

func fullTable() []TableRow {
	rows := make([]TableRow, 0, len(grading.Bands()))
	for _, b := range grading.Bands() {
		rows = append(rows, TableRow{Range: grading.FormatBandRange(b), Letter: b.Letter.String(), Point: b.Point})
	}
	return rows
}

func TestVerifyGradeTable_Pass(t *testing.T) {
	r := NewReport("c2a9e0b4-1d7f-4e63-8a55-0b8f6e2d4c11", DefaultTolerance, time.Now())

	VerifyGradeTable(r, fullTable())
	r.Finish(time.Now())

	assert.Equal(t, StatusPass, r.Status)
	assert.Len(t, r.Checks, 2*len(grading.Bands()))
}

func TestVerifyGradeTable_Drift(t *testing.T) {
	rows := fullTable()
	rows[1].Point = 3.3       // B+
	rows[2].Range = ""        // B: диапазон не публикуется, проверяется только балл
	rows = rows[:len(rows)-1] // F отсутствует
	rows = append(rows, TableRow{Letter: "E", Point: 0.5})

	r := NewReport("c2a9e0b4-1d7f-4e63-8a55-0b8f6e2d4c12", DefaultTolerance, time.Now())
	VerifyGradeTable(r, rows)
	r.Finish(time.Now())

	require.Equal(t, StatusDrift, r.Status)

	var subjects []string
	for _, c := range r.Mismatches() {
		subjects = append(subjects, c.Subject+"/"+string(c.Field))
	}
	assert.ElementsMatch(t, []string{
		"grade_table:B+/" + string(FieldGradePoint),
		"grade_table:E/" + string(FieldLetterGrade),
		"grade_table:F/" + string(FieldLetterGrade),
	}, subjects)
}

func TestVerifyGradeTable_DuplicateLetter(t *testing.T) {
	rows := append(fullTable(), TableRow{Letter: "A", Point: 4.0, Range: grading.FormatBandRange(grading.Bands()[0])})

	r := NewReport("c2a9e0b4-1d7f-4e63-8a55-0b8f6e2d4c13", DefaultTolerance, time.Now())
	VerifyGradeTable(r, rows)
	r.Finish(time.Now())

	// Даже совпадающий повтор считается расхождением.
	require.Equal(t, StatusDrift, r.Status)
	mismatches := r.Mismatches()
	require.Len(t, mismatches, 1)
	assert.Equal(t, "grade_table:A", mismatches[0].Subject)
	assert.Equal(t, FieldLetterGrade, mismatches[0].Field)
	assert.Equal(t, "duplicate A", mismatches[0].ActualText)
	assert.Len(t, r.Checks, 2*len(grading.Bands())+1)
}
