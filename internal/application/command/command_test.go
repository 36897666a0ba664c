package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

func ptr(v float64) *float64 { return &v }

// ═══════════════════════════════════════════════════════════════════════════
// Fakes
// ═══════════════════════════════════════════════════════════════════════════

type fakeBackend struct {
	transcript *transcript.Transcript
	fetchErr   error
	table      []conformance.TableRow

	createdSemester *transcript.Semester
	createdDraft    transcript.CourseDraft
	updatedID       shared.CourseID
	backendPoint    float64

	catalog  []transcript.CatalogCourse
	bulkPlan transcript.BulkAddPlan
	bulkCall int
}

func (b *fakeBackend) FetchTranscript(context.Context) (*transcript.Transcript, error) {
	return b.transcript, b.fetchErr
}

func (b *fakeBackend) FetchTranscriptDetailed(ctx context.Context) (*transcript.Transcript, error) {
	return b.FetchTranscript(ctx)
}

func (b *fakeBackend) GetGradeTable(context.Context) ([]conformance.TableRow, error) {
	return b.table, nil
}

func (b *fakeBackend) CreateSemester(_ context.Context, s *transcript.Semester) (*transcript.Semester, error) {
	out := *s
	out.ID = 42
	b.createdSemester = &out
	return &out, nil
}

func (b *fakeBackend) course(id shared.CourseID, semesterID shared.SemesterID, d transcript.CourseDraft) *transcript.Course {
	rg := grading.ScoreToGrade(d.Score)
	point := rg.GradePoint
	if b.backendPoint != 0 {
		point = b.backendPoint
	}
	score := d.Score
	return &transcript.Course{
		ID: id, SemesterID: semesterID, Code: shared.CourseCode(d.Code), Name: d.Name,
		Credits: d.Credits, Score: &score, Letter: rg.Letter, GradePoint: point,
	}
}

func (b *fakeBackend) CreateCourse(_ context.Context, semesterID shared.SemesterID, d transcript.CourseDraft) (*transcript.Course, error) {
	b.createdDraft = d
	return b.course(100, semesterID, d), nil
}

func (b *fakeBackend) UpdateCourse(_ context.Context, id shared.CourseID, d transcript.CourseDraft) (*transcript.Course, error) {
	b.updatedID = id
	b.createdDraft = d
	return b.course(id, 1, d), nil
}

func (b *fakeBackend) SearchCatalog(_ context.Context, query string) ([]transcript.CatalogCourse, error) {
	return transcript.FilterCatalog(b.catalog, query), nil
}

func (b *fakeBackend) CountCatalog(context.Context) (int, error) { return len(b.catalog), nil }

func (b *fakeBackend) BulkAdd(_ context.Context, plan transcript.BulkAddPlan, _ float64) (int, error) {
	b.bulkCall++
	b.bulkPlan = plan
	return len(plan.Add), nil
}

type memRepo struct {
	saved   []*conformance.Report
	saveErr error
}

func (r *memRepo) Save(_ context.Context, rep *conformance.Report) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, rep)
	return nil
}
func (r *memRepo) GetByID(context.Context, shared.ReportID) (*conformance.Report, error) {
	return nil, shared.ErrReportNotFound
}
func (r *memRepo) Latest(context.Context) (*conformance.Report, error) {
	return nil, shared.ErrReportNotFound
}
func (r *memRepo) List(context.Context, int) ([]*conformance.Report, error) { return nil, nil }
func (r *memRepo) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type memCache struct {
	latest *conformance.Report
	err    error
}

func (c *memCache) GetLatest(context.Context) (*conformance.Report, error) {
	if c.latest == nil {
		return nil, shared.ErrReportNotFound
	}
	return c.latest, nil
}
func (c *memCache) SetLatest(_ context.Context, r *conformance.Report) error {
	if c.err != nil {
		return c.err
	}
	c.latest = r
	return nil
}
func (c *memCache) Invalidate(context.Context) error { c.latest = nil; return nil }

type recordingPublisher struct {
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func consistentTranscript() *transcript.Transcript {
	return &transcript.Transcript{
		Semesters: []transcript.Semester{{
			ID: 1, Year: 2024, Number: 1,
			Courses: []transcript.Course{
				{ID: 10, Code: "IT001", Credits: 3, Score: ptr(8.0), Letter: grading.LetterBPlus, GradePoint: 3.5},
				{ID: 11, Code: "MA006", Credits: 4, Score: ptr(9.5), Letter: grading.LetterA, GradePoint: 4.0},
				{ID: 12, Code: "SS004", Credits: 3, Letter: grading.LetterB, GradePoint: 3.0},
			},
			ReportedGPA:     3.55,
			ReportedCredits: 10,
		}},
		ReportedCumulativeGPA: 3.55,
		ReportedTotalCredits:  10,
	}
}

func fullTable() []conformance.TableRow {
	var rows []conformance.TableRow
	for _, b := range grading.Bands() {
		rows = append(rows, conformance.TableRow{Range: grading.FormatBandRange(b), Letter: b.Letter.String(), Point: b.Point})
	}
	return rows
}

func newVerifyHandler(b *fakeBackend, repo conformance.Repository, cache conformance.Cache, pub shared.EventPublisher) *VerifyConformanceHandler {
	h := NewVerifyConformanceHandler(b, b, repo, cache, pub, nil, DefaultVerifyConformanceConfig())
	h.newID = func() string { return "5d9e1f3a-7b2c-4d8e-9f10-a1b2c3d4e5f6" }
	start := time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)
	calls := 0
	h.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls) * time.Second)
	}
	return h
}

// ═══════════════════════════════════════════════════════════════════════════
// VerifyConformance
// ═══════════════════════════════════════════════════════════════════════════

func TestVerifyConformance_Pass(t *testing.T) {
	b := &fakeBackend{transcript: consistentTranscript(), table: fullTable()}
	repo, cache, pub := &memRepo{}, &memCache{}, &recordingPublisher{}
	h := newVerifyHandler(b, repo, cache, pub)

	report, err := h.Verify(context.Background(), "test")
	require.NoError(t, err)

	assert.Equal(t, conformance.StatusPass, report.Status)
	assert.Equal(t, 1, report.Semesters)
	assert.Equal(t, 3, report.Courses)
	assert.Zero(t, report.MismatchCount())
	require.Len(t, repo.saved, 1)
	assert.Same(t, report, cache.latest)
	assert.Equal(t, []shared.EventType{shared.EventConformanceChecked}, pub.types())
}

func TestVerifyConformance_Drift(t *testing.T) {
	tr := consistentTranscript()
	tr.ReportedCumulativeGPA = 3.6
	b := &fakeBackend{transcript: tr}
	pub := &recordingPublisher{}
	h := newVerifyHandler(b, &memRepo{}, nil, pub)
	h.config.CheckGradeTable = false

	report, err := h.Handle(context.Background(), VerifyConformanceCommand{Trigger: "api", CorrelationID: "req-1"})
	require.NoError(t, err)

	assert.Equal(t, conformance.StatusDrift, report.Status)
	assert.Equal(t, 1, report.MismatchCount())
	assert.Equal(t, []shared.EventType{shared.EventConformanceChecked, shared.EventConformanceDrift}, pub.types())

	drift, ok := pub.events[1].(shared.ConformanceDriftEvent)
	require.True(t, ok)
	require.Len(t, drift.Items, 1)
	assert.Equal(t, "req-1", drift.CorrelationID)
}

func TestVerifyConformance_ToleranceOverride(t *testing.T) {
	tr := consistentTranscript()
	tr.ReportedCumulativeGPA = 3.5505
	h := newVerifyHandler(&fakeBackend{transcript: tr}, &memRepo{}, nil, nil)
	h.config.CheckGradeTable = false

	report, err := h.Handle(context.Background(), VerifyConformanceCommand{})
	require.NoError(t, err)
	assert.Equal(t, conformance.StatusDrift, report.Status)

	report, err = h.Handle(context.Background(), VerifyConformanceCommand{Tolerance: ptr(1e-3)})
	require.NoError(t, err)
	assert.Equal(t, conformance.StatusPass, report.Status)

	_, err = h.Handle(context.Background(), VerifyConformanceCommand{Tolerance: ptr(-1)})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestVerifyConformance_FetchFailureIsRecorded(t *testing.T) {
	boom := errors.New("connection refused")
	repo, pub := &memRepo{}, &recordingPublisher{}
	h := newVerifyHandler(&fakeBackend{fetchErr: boom}, repo, &memCache{}, pub)

	report, err := h.Verify(context.Background(), "scheduler")
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, report)
	assert.Equal(t, conformance.StatusError, report.Status)
	assert.Contains(t, report.Error, "connection refused")
	require.Len(t, repo.saved, 1)
	assert.Equal(t, []shared.EventType{shared.EventConformanceFailed}, pub.types())
}

func TestVerifyConformance_SaveErrorAndCacheError(t *testing.T) {
	saveErr := errors.New("db down")
	h := newVerifyHandler(&fakeBackend{transcript: consistentTranscript()}, &memRepo{saveErr: saveErr}, nil, nil)
	_, err := h.Verify(context.Background(), "test")
	assert.ErrorIs(t, err, saveErr)

	repo := &memRepo{}
	h = newVerifyHandler(&fakeBackend{transcript: consistentTranscript(), table: fullTable()}, repo, &memCache{err: errors.New("redis down")}, nil)
	report, err := h.Verify(context.Background(), "test")
	require.NoError(t, err, "cache failures are not fatal")
	assert.Equal(t, conformance.StatusPass, report.Status)
}

// ═══════════════════════════════════════════════════════════════════════════
// RecordCourse
// ═══════════════════════════════════════════════════════════════════════════

func TestRecordCourse_ByLetterUsesRepresentativeScore(t *testing.T) {
	b := &fakeBackend{}
	pub := &recordingPublisher{}
	h := NewRecordCourseHandler(b, pub)

	res, err := h.Handle(context.Background(), RecordCourseCommand{SemesterID: 3, Code: " it001 ", Name: "Intro", Letter: "C+"})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, "IT001", b.createdDraft.Code)
	assert.Equal(t, 1, b.createdDraft.Credits, "credits default to 1")
	assert.Equal(t, 6.75, b.createdDraft.Score)
	assert.Equal(t, grading.LetterCPlus, res.Grade.Letter)
	assert.False(t, res.Drift)
	require.Len(t, pub.events, 1)
	assert.False(t, pub.events[0].(shared.CourseRecordedEvent).Updated)
}

func TestRecordCourse_UpdateByScoreDetectsDrift(t *testing.T) {
	b := &fakeBackend{backendPoint: 3.0}
	pub := &recordingPublisher{}
	h := NewRecordCourseHandler(b, pub)

	res, err := h.Handle(context.Background(), RecordCourseCommand{CourseID: 7, Code: "MA006", Credits: 4, Score: ptr(8.2), Letter: "A"})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, shared.CourseID(7), b.updatedID)
	assert.Equal(t, 8.2, b.createdDraft.Score, "score wins over letter")
	assert.Equal(t, 3.5, res.Grade.GradePoint)
	assert.True(t, res.Drift)
	assert.True(t, pub.events[0].(shared.CourseRecordedEvent).Updated)
}

func TestRecordCourse_Validation(t *testing.T) {
	h := NewRecordCourseHandler(&fakeBackend{}, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  RecordCourseCommand
		kind error
	}{
		{"no semester", RecordCourseCommand{Code: "IT001", Letter: "A"}, shared.ErrInvalidID},
		{"empty code", RecordCourseCommand{SemesterID: 1, Code: "  ", Letter: "A"}, shared.ErrEmptyValue},
		{"score too high", RecordCourseCommand{SemesterID: 1, Code: "IT001", Score: ptr(11)}, shared.ErrValueOutOfRange},
		{"unknown letter", RecordCourseCommand{SemesterID: 1, Code: "IT001", Letter: "A+"}, shared.ErrInvalidInput},
		{"no grade", RecordCourseCommand{SemesterID: 1, Code: "IT001"}, shared.ErrEmptyValue},
		{"too many credits", RecordCourseCommand{SemesterID: 1, Code: "IT001", Credits: 31, Letter: "A"}, shared.ErrNegativeValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(ctx, tt.cmd)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// AddSemester
// ═══════════════════════════════════════════════════════════════════════════

func TestAddSemester(t *testing.T) {
	b := &fakeBackend{}
	pub := &recordingPublisher{}
	h := NewAddSemesterHandler(b, pub)

	sem, err := h.Handle(context.Background(), AddSemesterCommand{Year: 2024, Number: 2})
	require.NoError(t, err)
	assert.Equal(t, shared.SemesterID(42), sem.ID)
	assert.Equal(t, "HK2 - Năm học 2024 - 2025", sem.Name)
	assert.Equal(t, []shared.EventType{shared.EventSemesterAdded}, pub.types())

	_, err = h.Handle(context.Background(), AddSemesterCommand{Year: 2024, Number: 4})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

// ═══════════════════════════════════════════════════════════════════════════
// BulkAddCatalog
// ═══════════════════════════════════════════════════════════════════════════

func TestBulkAddCatalog_SkipsExistingCodes(t *testing.T) {
	b := &fakeBackend{
		transcript: consistentTranscript(),
		catalog: []transcript.CatalogCourse{
			{ID: 1, Code: "IT001", Name: "Intro to Programming", Credits: 4},
			{ID: 2, Code: "IT002", Name: "Object Oriented Programming", Credits: 4},
			{ID: 3, Code: "MA003", Name: "Linear Algebra", Credits: 3},
		},
	}
	pub := &recordingPublisher{}
	h := NewBulkAddCatalogHandler(b, b, pub, nil)

	res, err := h.Handle(context.Background(), BulkAddCatalogCommand{SemesterID: 1, Query: "it00"})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Requested)
	assert.Equal(t, 1, res.Added)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, shared.CourseCode("IT001"), res.Skipped[0].Code)
	assert.Equal(t, []shared.CatalogCourseID{2}, b.bulkPlan.IDs())
	assert.Equal(t, []shared.EventType{shared.EventCatalogBulkAdded}, pub.types())
}

func TestBulkAddCatalog_PickedIDs(t *testing.T) {
	b := &fakeBackend{
		transcript: consistentTranscript(),
		catalog: []transcript.CatalogCourse{
			{ID: 2, Code: "IT002"},
			{ID: 3, Code: "MA003"},
		},
	}
	h := NewBulkAddCatalogHandler(b, b, nil, nil)

	res, err := h.Handle(context.Background(), BulkAddCatalogCommand{SemesterID: 1, CatalogIDs: []int64{3}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, []shared.CatalogCourseID{3}, b.bulkPlan.IDs())
}

func TestBulkAddCatalog_Errors(t *testing.T) {
	b := &fakeBackend{transcript: consistentTranscript()}
	h := NewBulkAddCatalogHandler(b, b, nil, nil)
	ctx := context.Background()

	_, err := h.Handle(ctx, BulkAddCatalogCommand{SemesterID: 1})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = h.Handle(ctx, BulkAddCatalogCommand{SemesterID: 9, Query: "x"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = h.Handle(ctx, BulkAddCatalogCommand{SemesterID: 1, Query: "nothing-matches"})
	assert.ErrorIs(t, err, shared.ErrNothingToAdd)

	_, err = h.Handle(ctx, BulkAddCatalogCommand{SemesterID: 1, Query: "x", DefaultScore: 12})
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	assert.Zero(t, b.bulkCall)
}
