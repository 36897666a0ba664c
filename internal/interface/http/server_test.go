package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gpa-hub/gpa-tracker/internal/application/query"
	"github.com/gpa-hub/gpa-tracker/internal/domain/conformance"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

type reportRepo struct {
	reports []*conformance.Report
}

func (r *reportRepo) Save(_ context.Context, report *conformance.Report) error {
	r.reports = append([]*conformance.Report{report}, r.reports...)
	return nil
}

func (r *reportRepo) GetByID(_ context.Context, id shared.ReportID) (*conformance.Report, error) {
	for _, rep := range r.reports {
		if rep.ID == id {
			return rep, nil
		}
	}
	return nil, shared.ErrReportNotFound
}

func (r *reportRepo) Latest(context.Context) (*conformance.Report, error) {
	if len(r.reports) == 0 {
		return nil, shared.ErrReportNotFound
	}
	return r.reports[0], nil
}

func (r *reportRepo) List(_ context.Context, limit int) ([]*conformance.Report, error) {
	if limit > len(r.reports) {
		limit = len(r.reports)
	}
	return r.reports[:limit], nil
}

func (r *reportRepo) DeleteOlderThan(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func newTestServer(t *testing.T, repo conformance.Repository, apiKeys ...string) *Server {
	t.Helper()

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	for _, k := range apiKeys {
		h, err := bcrypt.GenerateFromPassword([]byte(k), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.APIKeyHashes = append(cfg.APIKeyHashes, string(h))
	}

	deps := Dependencies{
		GetGradeTableHandler: query.NewGetGradeTableHandler(),
		ConvertGradeHandler:  query.NewConvertGradeHandler(),
		AggregateGPAHandler:  query.NewAggregateGPAHandler(),
		GetStandingHandler:   query.NewGetStandingHandler(),
		Logger:               logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError}),
	}
	if repo != nil {
		deps.GetLatestReportHandler = query.NewGetLatestReportHandler(nil, repo, nil)
	}
	return NewServer(cfg, deps)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func do(t *testing.T, s *Server, method, target, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADES
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_ConvertGrade(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantLetter string
		wantPoint  float64
	}{
		{"score", `{"score": 8.2}`, http.StatusOK, "B+", 3.5},
		{"score wins over letter", `{"score": 9, "letter": "F"}`, http.StatusOK, "A", 4.0},
		{"letter", `{"letter": "C+"}`, http.StatusOK, "C+", 2.5},
		{"zero score", `{"score": 0}`, http.StatusOK, "F", 0},
		{"score above range", `{"score": 10.5}`, http.StatusUnprocessableEntity, "", 0},
		{"unknown letter", `{"letter": "E"}`, http.StatusUnprocessableEntity, "", 0},
		{"nothing", `{}`, http.StatusUnprocessableEntity, "", 0},
		{"unknown field", `{"points": 3}`, http.StatusBadRequest, "", 0},
		{"malformed", `{"score":`, http.StatusBadRequest, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, s, http.MethodPost, "/api/v1/grades/convert", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.False(t, env.Success)
				return
			}
			var dto query.ConvertedGradeDTO
			require.NoError(t, json.Unmarshal(env.Data, &dto))
			assert.Equal(t, tt.wantLetter, dto.Letter)
			assert.InDelta(t, tt.wantPoint, dto.GradePoint, 1e-9)
		})
	}
}

func TestServer_ConvertGrade_EmptyBody(t *testing.T) {
	s := newTestServer(t, nil)
	rec, env := do(t, s, http.MethodPost, "/api/v1/grades/convert", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", env.Error.Code)
}

func TestServer_AggregateGPA(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"semesters": [
		{"name": "HK1", "courses": [{"credits": 3, "score": 8.0}, {"credits": 4, "letter": "A"}]},
		{"name": "HK2", "courses": [{"credits": 3, "letter": "B"}]}
	]}`
	rec, env := do(t, s, http.MethodPost, "/api/v1/gpa/aggregate", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto query.AggregatedGPADTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	require.Len(t, dto.Semesters, 2)
	// (3*3.5 + 4*4.0 + 3*3.0) / 10
	assert.InDelta(t, 3.55, dto.Cumulative.GPA, 1e-9)
	assert.Equal(t, 10, dto.Cumulative.TotalCredits)
}

func TestServer_AggregateGPA_ZeroCredits(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := do(t, s, http.MethodPost, "/api/v1/gpa/aggregate",
		`{"semesters": [{"courses": [{"credits": 0, "score": 8.5}]}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dto query.AggregatedGPADTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, 0, dto.Cumulative.TotalCredits)
	assert.Zero(t, dto.Cumulative.GPA)
	assert.Equal(t, "0.00", dto.FormattedGPA)
}

func TestServer_AggregateGPA_Validation(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := do(t, s, http.MethodPost, "/api/v1/gpa/aggregate",
		`{"semesters": [{"courses": [{"credits": 31, "score": 11}]}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "must be at most 30", env.Error.Fields["semesters[0].courses[0].credits"])
	assert.Equal(t, "must be at most 10", env.Error.Fields["semesters[0].courses[0].score"])

	rec, env = do(t, s, http.MethodPost, "/api/v1/gpa/aggregate", `{"semesters": []}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, env.Error.Fields, "semesters")
}

func TestServer_Standing(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := do(t, s, http.MethodGet, "/api/v1/gpa/standing?gpa=3.4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dto query.StandingDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.InDelta(t, 3.2, dto.MinGPA, 1e-9)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/gpa/standing", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/gpa/standing?gpa=4.5", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestServer_GradeTable(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := do(t, s, http.MethodGet, "/api/v1/grades/table", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var dto query.GradeTableDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Len(t, dto.Bands, 8)
	assert.Len(t, dto.Standings, 5)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFORMANCE
// ══════════════════════════════════════════════════════════════════════════════

func TestServer_ConformanceReports(t *testing.T) {
	repo := &reportRepo{}
	s := newTestServer(t, repo)

	rec, env := do(t, s, http.MethodGet, "/api/v1/conformance/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	start := time.Date(2024, 10, 1, 9, 0, 0, 0, time.UTC)
	report := conformance.NewReport("0b6f6f0e-3c7a-4d55-9b55-2f3b8d2c8a11", conformance.DefaultTolerance, start)
	report.FinishedAt = start.Add(time.Second)
	require.NoError(t, repo.Save(context.Background(), report))

	rec, env = do(t, s, http.MethodGet, "/api/v1/conformance/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var dto query.ReportDTO
	require.NoError(t, json.Unmarshal(env.Data, &dto))
	assert.Equal(t, report.ID.String(), dto.ID)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/conformance/reports/"+report.ID.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/conformance/reports/not-a-uuid", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, env = do(t, s, http.MethodGet, "/api/v1/conformance/reports?limit=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []query.ReportDTO
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestServer_RunConformanceRequiresAPIKey(t *testing.T) {
	s := newTestServer(t, nil, "run-key")

	rec, env := do(t, s, http.MethodPost, "/api/v1/conformance/run", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_api_key", env.Error.Code)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/conformance/run", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authorized, but no command handler is wired.
	rec, env = do(t, s, http.MethodPost, "/api/v1/conformance/run", "", "X-API-Key", "run-key")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "not_implemented", env.Error.Code)
}

func TestServer_UnconfiguredRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	for _, target := range []string{"/api/v1/gpa/summary", "/api/v1/conformance/latest", "/api/v1/conformance/reports"} {
		rec, _ := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotImplemented, rec.Code, target)
	}
}

func TestServer_HealthAndRoot(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, s, http.MethodGet, "/", "", "X-Request-ID", "req-42")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.True(t, env.Success)
}
