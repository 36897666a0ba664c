package gpaapi

import (
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// DATA TRANSFER OBJECTS (DTOs)
// These structures match the JSON emitted by the GPA backend.
// ══════════════════════════════════════════════════════════════════════════════

// ──────────────────────────────────────────────────────────────────────────────
// Error DTO
// ──────────────────────────────────────────────────────────────────────────────

// APIErrorDTO is the error body of a failed request. The backend answers
// {"detail": "..."} for most errors and {"detail": [{...}]} for validation
// failures, so Detail is kept raw and flattened by Message.
type APIErrorDTO struct {
	StatusCode int         `json:"-"`
	Detail     interface{} `json:"detail"`
}

// Error implements the error interface.
func (e *APIErrorDTO) Error() string {
	return fmt.Sprintf("gpa api error %d: %s", e.StatusCode, e.Message())
}

// Message flattens Detail into a single line.
func (e *APIErrorDTO) Message() string {
	switch d := e.Detail.(type) {
	case nil:
		return "no detail"
	case string:
		return d
	case []interface{}:
		parts := make([]string, 0, len(d))
		for _, item := range d {
			if m, ok := item.(map[string]interface{}); ok {
				if msg, ok := m["msg"].(string); ok {
					parts = append(parts, msg)
					continue
				}
			}
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(d)
	}
}

// IsServerError reports whether the backend failed on its side.
func (e *APIErrorDTO) IsServerError() bool {
	return e.StatusCode >= 500
}

// ──────────────────────────────────────────────────────────────────────────────
// Auth DTOs
// ──────────────────────────────────────────────────────────────────────────────

// RegisterRequestDTO is the body of POST /api/auth/register.
type RegisterRequestDTO struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=100"`
	Password string `json:"password" validate:"required,min=6"`
}

// TokenDTO is the response of POST /api/auth/login.
type TokenDTO struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthorizationHeader returns the value for the Authorization header.
func (t TokenDTO) AuthorizationHeader() string {
	tt := t.TokenType
	if tt == "" || strings.EqualFold(tt, "bearer") {
		tt = "Bearer"
	}
	return tt + " " + t.AccessToken
}

// UserDTO is the response of GET /api/auth/me and POST /api/auth/register.
type UserDTO struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Semester DTOs
// ──────────────────────────────────────────────────────────────────────────────

// SemesterRequestDTO is the body of POST/PUT /api/semesters/.
type SemesterRequestDTO struct {
	Name           string `json:"name" validate:"required,max=100"`
	Year           int    `json:"year" validate:"required,gte=1990,lte=2100"`
	SemesterNumber int    `json:"semester_number" validate:"required,oneof=1 2 3"`
}

// SemesterDTO is a semester as listed by GET /api/semesters/ and returned by
// GET /api/semesters/{id}. The detail endpoint also fills Courses.
type SemesterDTO struct {
	ID             int64       `json:"id"`
	Name           string      `json:"name"`
	Year           int         `json:"year"`
	SemesterNumber int         `json:"semester_number"`
	SemesterGPA    float64     `json:"semester_gpa"`
	TotalCredits   int         `json:"total_credits"`
	Courses        []CourseDTO `json:"courses,omitempty"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Course DTOs
// ──────────────────────────────────────────────────────────────────────────────

// CourseRequestDTO is the body of POST /api/courses/ and PUT /api/courses/{id}.
// SemesterID is omitted on update.
type CourseRequestDTO struct {
	SemesterID *int64  `json:"semester_id,omitempty"`
	CourseCode string  `json:"course_code" validate:"required,max=20"`
	CourseName string  `json:"course_name" validate:"required,max=200"`
	Credits    int     `json:"credits" validate:"gte=1,lte=30"`
	Score      float64 `json:"score" validate:"gte=0,lte=10"`
}

// CourseDTO is a course record. Score may be null for courses graded by
// letter only.
type CourseDTO struct {
	ID          int64    `json:"id"`
	SemesterID  int64    `json:"semester_id,omitempty"`
	CourseCode  string   `json:"course_code"`
	CourseName  string   `json:"course_name"`
	Credits     int      `json:"credits"`
	Score       *float64 `json:"score"`
	LetterGrade string   `json:"letter_grade"`
	GradePoint  float64  `json:"grade_point"`
}

// ──────────────────────────────────────────────────────────────────────────────
// GPA DTOs
// ──────────────────────────────────────────────────────────────────────────────

// GPASummaryDTO is the response of GET /api/gpa/summary.
type GPASummaryDTO struct {
	CumulativeGPA float64       `json:"cumulative_gpa"`
	TotalCredits  int           `json:"total_credits"`
	Semesters     []SemesterDTO `json:"semesters"`
}

// GradeTableEntryDTO is one row of GET /api/gpa/grade-table.
type GradeTableEntryDTO struct {
	Range  string  `json:"range"`
	Letter string  `json:"letter"`
	Point  float64 `json:"point"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Catalog DTOs
// ──────────────────────────────────────────────────────────────────────────────

// CatalogCourseDTO is an entry of GET /api/catalog/.
type CatalogCourseDTO struct {
	ID         int64  `json:"id"`
	CourseCode string `json:"course_code"`
	CourseName string `json:"course_name"`
	Credits    int    `json:"credits"`
}

// BulkAddRequestDTO is the body of POST /api/catalog/bulk-add.
type BulkAddRequestDTO struct {
	SemesterID   int64   `json:"semester_id"`
	CourseIDs    []int64 `json:"course_ids"`
	DefaultScore float64 `json:"default_score"`
}

// BulkAddResponseDTO is the response of POST /api/catalog/bulk-add. Older
// backends answer with a bare message, so every field is optional.
type BulkAddResponseDTO struct {
	Added   int    `json:"added"`
	Message string `json:"message,omitempty"`
}

// CatalogCountDTO is the response of GET /api/catalog/count.
type CatalogCountDTO struct {
	Count int `json:"count"`
}
