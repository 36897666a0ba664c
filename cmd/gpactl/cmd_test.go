package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/external/gpaapi"
	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/persistence/postgres"
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKE BACKEND
// ══════════════════════════════════════════════════════════════════════════════

type fakeBackend struct {
	transcript *transcript.Transcript
	catalog    []transcript.CatalogCourse

	loggedIn  string
	password  string
	drafts    []transcript.CourseDraft
	semesters []*transcript.Semester
	bulkAdded []shared.CatalogCourseID
}

func (f *fakeBackend) FetchTranscript(context.Context) (*transcript.Transcript, error) {
	if f.transcript == nil {
		return &transcript.Transcript{}, nil
	}
	return f.transcript, nil
}

func (f *fakeBackend) FetchTranscriptDetailed(ctx context.Context) (*transcript.Transcript, error) {
	return f.FetchTranscript(ctx)
}

func (f *fakeBackend) GetGradeTable(context.Context) ([]conformance.TableRow, error) {
	var rows []conformance.TableRow
	for _, b := range grading.Bands() {
		rows = append(rows, conformance.TableRow{Letter: b.Letter.String(), Point: b.Point})
	}
	return rows, nil
}

func (f *fakeBackend) CreateSemester(_ context.Context, s *transcript.Semester) (*transcript.Semester, error) {
	created := *s
	created.ID = shared.SemesterID(len(f.semesters) + 1)
	f.semesters = append(f.semesters, &created)
	return &created, nil
}

func (f *fakeBackend) CreateCourse(_ context.Context, semesterID shared.SemesterID, draft transcript.CourseDraft) (*transcript.Course, error) {
	f.drafts = append(f.drafts, draft)
	g := grading.ScoreToGrade(draft.Score)
	return &transcript.Course{
		ID:         77,
		SemesterID: semesterID,
		Code:       shared.CourseCode(draft.Code),
		Name:       draft.Name,
		Credits:    draft.Credits,
		Score:      &draft.Score,
		Letter:     g.Letter,
		GradePoint: g.GradePoint,
	}, nil
}

func (f *fakeBackend) UpdateCourse(ctx context.Context, courseID shared.CourseID, draft transcript.CourseDraft) (*transcript.Course, error) {
	c, err := f.CreateCourse(ctx, 1, draft)
	if err != nil {
		return nil, err
	}
	c.ID = courseID
	return c, nil
}

func (f *fakeBackend) SearchCatalog(context.Context, string) ([]transcript.CatalogCourse, error) {
	return f.catalog, nil
}

func (f *fakeBackend) CountCatalog(context.Context) (int, error) {
	return len(f.catalog), nil
}

func (f *fakeBackend) BulkAdd(_ context.Context, plan transcript.BulkAddPlan, _ float64) (int, error) {
	f.bulkAdded = append(f.bulkAdded, plan.IDs()...)
	return len(plan.Add), nil
}

func (f *fakeBackend) Login(_ context.Context, username, password string) (*gpaapi.TokenDTO, error) {
	if password != "secret" {
		return nil, shared.ErrUnauthorized
	}
	f.loggedIn = username
	f.password = password
	return &gpaapi.TokenDTO{AccessToken: "tok-" + username, TokenType: "bearer"}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

type cliTest struct {
	name       string
	args       []string
	wantErr    error
	wantErrStr string
	wantOut    string
}

func newTestCLI(t *testing.T, b *fakeBackend) (*commandLine, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	cli := &commandLine{
		out:       out,
		tokenFile: filepath.Join(t.TempDir(), "gpactl", "token"),
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		connect: func(context.Context) (backend, error) {
			return b, nil
		},
		openReports: func(context.Context) (conformance.Repository, func(), error) {
			return newSessionReports(), func() {}, nil
		},
		openSchema: func(context.Context) (schemaMigrator, func(), error) {
			return nil, nil, errNoDB
		},
	}
	return cli, out
}

// fakeSchema хранит номера применённых миграций.
type fakeSchema struct {
	all     []postgres.Migration
	applied map[int]time.Time
	closed  bool
}

func newFakeSchema() *fakeSchema {
	return &fakeSchema{all: postgres.GetMigrations(), applied: map[int]time.Time{}}
}

func (f *fakeSchema) Migrate(context.Context) error {
	for _, m := range f.all {
		if _, ok := f.applied[m.Version]; !ok {
			f.applied[m.Version] = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		}
	}
	return nil
}

func (f *fakeSchema) Rollback(context.Context) (*postgres.Migration, error) {
	for i := len(f.all) - 1; i >= 0; i-- {
		if _, ok := f.applied[f.all[i].Version]; ok {
			delete(f.applied, f.all[i].Version)
			m := f.all[i]
			return &m, nil
		}
	}
	return nil, nil
}

func (f *fakeSchema) Status(context.Context) ([]postgres.Migration, error) {
	out := make([]postgres.Migration, len(f.all))
	for i, m := range f.all {
		m.AppliedAt, m.IsApplied = f.applied[m.Version]
		out[i] = m
	}
	return out, nil
}

func mockPassword(t *testing.T, pwd string, err error) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) {
		return []byte(pwd), err
	}
	t.Cleanup(func() { readPasswordFunc = orig })
}

func runCLITests(t *testing.T, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, out := newTestCLI(t, &fakeBackend{})
			err := cli.run(context.Background(), tt.args)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
			default:
				require.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestCommandLine_Usage(t *testing.T) {
	runCLITests(t, []cliTest{
		{name: "no command", args: []string{"gpactl"}, wantErr: errHelp, wantOut: "Usage:"},
		{name: "unknown command", args: []string{"gpactl", "frobnicate"}, wantErr: errHelp, wantOut: "Usage:"},
		{name: "flag help", args: []string{"gpactl", "convert", "-h"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"gpactl", "convert", "-grade", "A"}, wantErrStr: "flag provided but not defined"},
	})
}

func TestCommandLine_Convert(t *testing.T) {
	runCLITests(t, []cliTest{
		{name: "score", args: []string{"gpactl", "convert", "-score", "8.2"}, wantOut: "8.2 -> B+ (3.5)"},
		{name: "whole score", args: []string{"gpactl", "convert", "-score", "9"}, wantOut: "9.0 -> A (4.0)"},
		{name: "letter", args: []string{"gpactl", "convert", "-letter", "c+"}, wantOut: "C+ -> C+ (2.5)"},
		{name: "score wins", args: []string{"gpactl", "convert", "-score", "3", "-letter", "A"}, wantOut: "3.0 -> F (0.0)"},
		{name: "nothing to convert", args: []string{"gpactl", "convert"}, wantErr: errHelp},
		{name: "not a number", args: []string{"gpactl", "convert", "-score", "abc"}, wantErrStr: "invalid -score"},
		{name: "out of range", args: []string{"gpactl", "convert", "-score", "11"}, wantErr: shared.ErrValueOutOfRange},
	})
}

func TestCommandLine_AddCourse(t *testing.T) {
	runCLITests(t, []cliTest{
		{
			name:    "create",
			args:    []string{"gpactl", "add-course", "-semester", "3", "-code", "IT001", "-credits", "4", "-score", "8.2"},
			wantOut: "created course 77 IT001 (4 cr): B+ 3.5",
		},
		{
			name:    "update by letter",
			args:    []string{"gpactl", "add-course", "-course", "12", "-code", "IT002", "-letter", "a"},
			wantOut: "updated course 12 IT002 (1 cr): A 4.0",
		},
		{
			name:       "missing code",
			args:       []string{"gpactl", "add-course", "-semester", "3", "-score", "8"},
			wantErrStr: "-code is required",
		},
		{
			name:       "missing semester",
			args:       []string{"gpactl", "add-course", "-code", "IT001", "-score", "8"},
			wantErrStr: "-semester is required",
		},
		{
			name:       "bad letter",
			args:       []string{"gpactl", "add-course", "-semester", "3", "-code", "IT001", "-letter", "E"},
			wantErrStr: "-letter must be one of",
		},
		{
			name:       "no grade",
			args:       []string{"gpactl", "add-course", "-semester", "3", "-code", "IT001"},
			wantErrStr: "-score or -letter is required",
		},
		{
			name:       "too many credits",
			args:       []string{"gpactl", "add-course", "-semester", "3", "-code", "IT001", "-credits", "31", "-score", "8"},
			wantErrStr: "-credits fails lte=30",
		},
	})
}

func TestCommandLine_AddSemester(t *testing.T) {
	b := &fakeBackend{}
	cli, out := newTestCLI(t, b)

	err := cli.run(context.Background(), []string{"gpactl", "add-semester", "-year", "2024", "-number", "1"})
	require.NoError(t, err)
	require.Len(t, b.semesters, 1)
	assert.Equal(t, "HK1 - Năm học 2024 - 2025", b.semesters[0].Name)
	assert.Contains(t, out.String(), "created semester 1: HK1 - Năm học 2024 - 2025")

	err = cli.run(context.Background(), []string{"gpactl", "add-semester", "-year", "2024", "-number", "4"})
	assert.True(t, shared.IsValidation(err))
}

func TestCommandLine_Summary(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	b := &fakeBackend{transcript: &transcript.Transcript{
		Semesters: []transcript.Semester{{
			ID:   1,
			Name: "HK1 - Năm học 2024 - 2025",
			Courses: []transcript.Course{
				{ID: 1, Code: "IT001", Name: "Programming", Credits: 4, Score: score(9)},
				{ID: 2, Code: "MA001", Name: "Calculus", Credits: 3, Score: score(7)},
			},
		}},
	}}
	cli, out := newTestCLI(t, b)

	require.NoError(t, cli.run(context.Background(), []string{"gpactl", "summary"}))
	// (4*4.0 + 3*3.0) / 7 = 3.571...
	assert.Contains(t, out.String(), "Cumulative GPA 3.57 over 7 credits")
	assert.Contains(t, out.String(), "IT001")

	out.Reset()
	require.NoError(t, cli.run(context.Background(), []string{"gpactl", "summary", "-json"}))
	assert.Contains(t, out.String(), `"formatted_gpa": "3.57"`)

	err := cli.run(context.Background(), []string{"gpactl", "summary", "-semester", "9"})
	assert.ErrorIs(t, err, shared.ErrSemesterNotFound)
}

func TestCommandLine_Catalog(t *testing.T) {
	score := 8.0
	b := &fakeBackend{
		catalog: []transcript.CatalogCourse{
			{ID: 10, Code: "IT001", Name: "Programming", Credits: 4},
			{ID: 11, Code: "IT002", Name: "Data Structures", Credits: 4},
		},
		transcript: &transcript.Transcript{
			Semesters: []transcript.Semester{{
				ID:   1,
				Name: "HK1 - Năm học 2024 - 2025",
				Courses: []transcript.Course{
					{ID: 5, SemesterID: 1, Code: "it001", Name: "Programming", Credits: 4, Score: &score},
				},
			}},
		},
	}
	cli, out := newTestCLI(t, b)

	require.NoError(t, cli.run(context.Background(), []string{"gpactl", "catalog"}))
	assert.Contains(t, out.String(), "Data Structures")
	assert.Contains(t, out.String(), "2 of 2 catalog courses")

	out.Reset()
	require.NoError(t, cli.run(context.Background(), []string{"gpactl", "catalog", "-add-to", "1", "-ids", "11"}))
	assert.Contains(t, out.String(), "added 1 of 1 courses")
	assert.Equal(t, []shared.CatalogCourseID{11}, b.bulkAdded)

	// IT001 уже есть в семестре и пропускается.
	out.Reset()
	b.bulkAdded = nil
	require.NoError(t, cli.run(context.Background(), []string{"gpactl", "catalog", "-add-to", "1", "-query", "IT"}))
	assert.Contains(t, out.String(), "added 1 of 2 courses")
	assert.Contains(t, out.String(), "skipped IT001: already in the semester")
	assert.Equal(t, []shared.CatalogCourseID{11}, b.bulkAdded)

	err := cli.run(context.Background(), []string{"gpactl", "catalog", "-add-to", "9", "-ids", "11"})
	assert.ErrorIs(t, err, shared.ErrSemesterNotFound)

	err = cli.run(context.Background(), []string{"gpactl", "catalog", "-ids", "x"})
	assert.ErrorContains(t, err, "invalid catalog id")
}

func TestCommandLine_Verify(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	b := &fakeBackend{transcript: &transcript.Transcript{
		Semesters: []transcript.Semester{{
			ID:              1,
			Name:            "HK1",
			ReportedGPA:     4.0,
			ReportedCredits: 4,
			Courses: []transcript.Course{
				{ID: 1, Code: "IT001", Credits: 4, Score: score(9), Letter: grading.LetterA, GradePoint: 4.0},
			},
		}},
		ReportedCumulativeGPA: 4.0,
		ReportedTotalCredits:  4,
	}}
	cli, out := newTestCLI(t, b)

	require.NoError(t, cli.run(context.Background(), []string{"gpactl", "verify"}))
	assert.Contains(t, out.String(), "pass")

	// Бэкенд считает другой GPA.
	b.transcript.ReportedCumulativeGPA = 3.9
	out.Reset()
	err := cli.run(context.Background(), []string{"gpactl", "verify"})
	assert.ErrorIs(t, err, errDrift)
	assert.Contains(t, out.String(), "cumulative")

	err = cli.run(context.Background(), []string{"gpactl", "verify", "-tolerance", "many"})
	assert.ErrorContains(t, err, "invalid -tolerance")
}

func TestCommandLine_Login(t *testing.T) {
	b := &fakeBackend{}
	cli, out := newTestCLI(t, b)

	mockPassword(t, "secret", nil)
	require.NoError(t, cli.run(context.Background(), []string{"gpactl", "login", "-username", "lan"}))
	assert.Equal(t, "lan", b.loggedIn)
	assert.Contains(t, out.String(), "logged in as lan")

	saved, err := os.ReadFile(cli.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "tok-lan\n", string(saved))
	assert.Equal(t, "tok-lan", readToken(cli.tokenFile))

	info, err := os.Stat(cli.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCommandLine_LoginErrors(t *testing.T) {
	b := &fakeBackend{}
	cli, _ := newTestCLI(t, b)

	err := cli.run(context.Background(), []string{"gpactl", "login"})
	assert.ErrorIs(t, err, errHelp)

	mockPassword(t, "", nil)
	err = cli.run(context.Background(), []string{"gpactl", "login", "-username", "lan"})
	assert.ErrorIs(t, err, errHelp)

	mockPassword(t, "wrong", nil)
	err = cli.run(context.Background(), []string{"gpactl", "login", "-username", "lan"})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
	assert.NoFileExists(t, cli.tokenFile)

	readErr := errors.New("tty closed")
	mockPassword(t, "", readErr)
	err = cli.run(context.Background(), []string{"gpactl", "login", "-username", "lan"})
	assert.ErrorIs(t, err, readErr)
}

func TestCommandLine_HashKey(t *testing.T) {
	cli, out := newTestCLI(t, &fakeBackend{})

	mockPassword(t, "my-api-key", nil)
	require.NoError(t, cli.run(context.Background(), []string{"gpactl", "hash-key"}))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	hash := lines[len(lines)-1]
	assert.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte("my-api-key")))
}

func TestCommandLine_Migrate(t *testing.T) {
	schema := newFakeSchema()
	cli, out := newTestCLI(t, &fakeBackend{})
	cli.openSchema = func(context.Context) (schemaMigrator, func(), error) {
		return schema, func() { schema.closed = true }, nil
	}
	ctx := context.Background()

	require.NoError(t, cli.run(ctx, []string{"gpactl", "migrate", "-status"}))
	assert.Regexp(t, `001\s+create_conformance_reports\s+pending`, out.String())
	assert.Empty(t, schema.applied)
	assert.True(t, schema.closed)

	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"gpactl", "migrate"}))
	assert.Regexp(t, `002\s+create_conformance_checks\s+2025-03-01 10:00:00`, out.String())
	assert.NotContains(t, out.String(), "pending")
	assert.Len(t, schema.applied, 2)

	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"gpactl", "migrate", "-rollback"}))
	assert.Equal(t, "rolled back 002_create_conformance_checks\n", out.String())
	assert.Len(t, schema.applied, 1)

	schema.applied = map[int]time.Time{}
	out.Reset()
	require.NoError(t, cli.run(ctx, []string{"gpactl", "migrate", "-rollback"}))
	assert.Equal(t, "nothing to roll back\n", out.String())

	err := cli.run(ctx, []string{"gpactl", "migrate", "-status", "-rollback"})
	assert.ErrorIs(t, err, errHelp)
}

func TestCommandLine_MigrateWithoutDatabase(t *testing.T) {
	runCLITests(t, []cliTest{
		{name: "no database", args: []string{"gpactl", "migrate"}, wantErr: errNoDB},
	})
}
