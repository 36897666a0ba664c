package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/gpa-hub/gpa-tracker/internal/application/command"
	"github.com/gpa-hub/gpa-tracker/internal/application/query"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"name":    "GPA Tracker API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":      "/health",
			"grade_table": "/api/v1/grades/table",
			"convert":     "/api/v1/grades/convert",
			"aggregate":   "/api/v1/gpa/aggregate",
			"standing":    "/api/v1/gpa/standing",
			"summary":     "/api/v1/gpa/summary",
			"conformance": "/api/v1/conformance/latest",
		},
	})
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": s.config.Version,
	})
}

// handleReady handles the readiness endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGradeTable handles GET /api/v1/grades/table
func (s *Server) handleGradeTable(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetGradeTableHandler == nil {
		writeNotConfigured(w, "grade table")
		return
	}
	result, err := s.deps.GetGradeTableHandler.Handle(r.Context(), query.GetGradeTableQuery{})
	if err != nil {
		s.writeError(w, r, err, "get grade table")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleConvertGrade handles POST /api/v1/grades/convert
func (s *Server) handleConvertGrade(w http.ResponseWriter, r *http.Request) {
	if s.deps.ConvertGradeHandler == nil {
		writeNotConfigured(w, "convert")
		return
	}

	var req ConvertGradeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err, "convert grade")
		return
	}

	result, err := s.deps.ConvertGradeHandler.Handle(r.Context(), req.toQuery())
	if err != nil {
		s.writeError(w, r, err, "convert grade")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleAggregateGPA handles POST /api/v1/gpa/aggregate
func (s *Server) handleAggregateGPA(w http.ResponseWriter, r *http.Request) {
	if s.deps.AggregateGPAHandler == nil {
		writeNotConfigured(w, "aggregate")
		return
	}

	var req AggregateGPARequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err, "aggregate gpa")
		return
	}

	result, err := s.deps.AggregateGPAHandler.Handle(r.Context(), req.toQuery())
	if err != nil {
		s.writeError(w, r, err, "aggregate gpa")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleStanding handles GET /api/v1/gpa/standing?gpa=3.4
func (s *Server) handleStanding(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStandingHandler == nil {
		writeNotConfigured(w, "standing")
		return
	}

	raw := r.URL.Query().Get("gpa")
	gpa, err := strconv.ParseFloat(raw, 64)
	if raw == "" || err != nil {
		writeAPIError(w, http.StatusUnprocessableEntity, &APIError{
			Code:    "invalid_input",
			Message: "Query parameter gpa must be a number",
			Fields:  map[string]string{"gpa": "must be a number within [0, 4]"},
		})
		return
	}

	result, err := s.deps.GetStandingHandler.Handle(r.Context(), query.GetStandingQuery{GPA: gpa})
	if err != nil {
		s.writeError(w, r, err, "get standing")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSCRIPT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSummary handles GET /api/v1/gpa/summary[?semester_id=12]
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.ComputeSummaryHandler == nil {
		writeNotConfigured(w, "summary")
		return
	}

	q := query.ComputeSummaryQuery{Owner: s.deps.SummaryOwner}
	if raw := r.URL.Query().Get("semester_id"); raw != "" {
		id, err := shared.ParseSemesterID(raw)
		if err != nil {
			s.writeError(w, r, err, "compute summary")
			return
		}
		q.SemesterID = id
	}

	result, err := s.deps.ComputeSummaryHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err, "compute summary")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFORMANCE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleLatestReport handles GET /api/v1/conformance/latest[?mismatches_only=true]
func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLatestReportHandler == nil {
		writeNotConfigured(w, "conformance")
		return
	}

	result, err := s.deps.GetLatestReportHandler.Handle(r.Context(), query.GetReportQuery{
		MismatchesOnly: getQueryParamBool(r, "mismatches_only"),
	})
	if err != nil {
		s.writeError(w, r, err, "get latest report")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetReport handles GET /api/v1/conformance/reports/{id}
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLatestReportHandler == nil {
		writeNotConfigured(w, "conformance")
		return
	}

	result, err := s.deps.GetLatestReportHandler.Handle(r.Context(), query.GetReportQuery{
		ReportID:       shared.ReportID(r.PathValue("id")),
		MismatchesOnly: getQueryParamBool(r, "mismatches_only"),
	})
	if err != nil {
		s.writeError(w, r, err, "get report")
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleListReports handles GET /api/v1/conformance/reports[?limit=20]
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetLatestReportHandler == nil {
		writeNotConfigured(w, "conformance")
		return
	}

	limit := getQueryParamInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	result, err := s.deps.GetLatestReportHandler.ListReports(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err, "list reports")
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result)})
}

// handleRunConformance handles POST /api/v1/conformance/run (API key required)
func (s *Server) handleRunConformance(w http.ResponseWriter, r *http.Request) {
	if s.deps.VerifyConformanceHandler == nil {
		writeNotConfigured(w, "conformance run")
		return
	}

	var req RunConformanceRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeError(w, r, err, "run conformance")
		return
	}

	report, err := s.deps.VerifyConformanceHandler.Handle(r.Context(), command.VerifyConformanceCommand{
		Trigger:       "api",
		Tolerance:     req.Tolerance,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		if report != nil {
			// The failed run is still persisted; point the caller at it.
			logger.FromContext(r.Context()).Error("conformance run failed",
				logger.ReportID(report.ID.String()),
				logger.Err(err),
			)
			writeAPIError(w, http.StatusBadGateway, &APIError{
				Code:    "conformance_run_failed",
				Message: "The conformance run could not complete",
				Details: "report " + report.ID.String() + ": " + report.Error,
			})
			return
		}
		s.writeError(w, r, err, "run conformance")
		return
	}

	writeJSON(w, r, http.StatusOK, query.ReportToDTO(report, false, false))
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeError maps an application error onto an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		writeAPIError(w, http.StatusUnprocessableEntity, &APIError{
			Code:    "invalid_input",
			Message: "Request validation failed",
			Fields:  validationFields(verrs),
		})
	case errors.Is(err, errEmptyBody), errors.Is(err, errMalformedBody):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case shared.IsValidation(err):
		writeAPIError(w, http.StatusUnprocessableEntity, &APIError{
			Code:    "invalid_input",
			Message: "Request validation failed",
			Details: err.Error(),
		})
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsExternalService(err) || shared.IsUnauthorized(err):
		logger.FromContext(r.Context()).Warn(op+" failed", logger.Err(err))
		writeJSONError(w, http.StatusBadGateway, "backend_unavailable", "The GPA backend is unavailable")
	default:
		logger.FromContext(r.Context()).Error(op+" failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to "+op)
	}
}

func writeNotConfigured(w http.ResponseWriter, what string) {
	writeJSONError(w, http.StatusNotImplemented, "not_implemented", what+" handler not configured")
}
