// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// SemesterID is the backend-assigned identifier of a semester.
type SemesterID int64

// IsValid checks if the semester ID is valid (positive number).
func (s SemesterID) IsValid() bool {
	return s > 0
}

// Int64 returns the underlying int64 value.
func (s SemesterID) Int64() int64 {
	return int64(s)
}

// String returns the string representation.
func (s SemesterID) String() string {
	return strconv.FormatInt(int64(s), 10)
}

// NewSemesterID creates a new SemesterID with validation.
func NewSemesterID(id int64) (SemesterID, error) {
	if id <= 0 {
		return 0, NewDomainError("shared", "NewSemesterID", ErrInvalidID, "semester ID must be positive")
	}
	return SemesterID(id), nil
}

// ParseSemesterID parses a decimal semester ID, e.g. from a URL path.
func ParseSemesterID(raw string) (SemesterID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, WrapError("shared", "ParseSemesterID", ErrInvalidID, "semester ID is not a number", err)
	}
	return NewSemesterID(id)
}

// CourseID is the backend-assigned identifier of a course record.
type CourseID int64

// IsValid checks if the course ID is valid (positive number).
func (c CourseID) IsValid() bool {
	return c > 0
}

// Int64 returns the underlying int64 value.
func (c CourseID) Int64() int64 {
	return int64(c)
}

// String returns the string representation.
func (c CourseID) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// NewCourseID creates a new CourseID with validation.
func NewCourseID(id int64) (CourseID, error) {
	if id <= 0 {
		return 0, NewDomainError("shared", "NewCourseID", ErrInvalidID, "course ID must be positive")
	}
	return CourseID(id), nil
}

// CatalogCourseID identifies an entry of the backend course catalog.
type CatalogCourseID int64

// Int64 returns the underlying int64 value.
func (c CatalogCourseID) Int64() int64 {
	return int64(c)
}

// ReportID identifies a conformance report (UUID format).
type ReportID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the report ID is a valid UUID.
func (r ReportID) IsValid() bool {
	return uuidRegex.MatchString(string(r))
}

// String returns the string representation.
func (r ReportID) String() string {
	return string(r)
}

// IsEmpty checks if the ID is empty.
func (r ReportID) IsEmpty() bool {
	return r == ""
}

// NewReportID creates a new ReportID with validation.
func NewReportID(id string) (ReportID, error) {
	rid := ReportID(strings.ToLower(strings.TrimSpace(id)))
	if !rid.IsValid() {
		return "", NewDomainError("shared", "NewReportID", ErrInvalidID, "invalid report ID format")
	}
	return rid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Course Code Value Object
// ═══════════════════════════════════════════════════════════════════════════

// CourseCode is a catalog code such as "IT001" or "MA006.O21".
type CourseCode string

// String returns the string representation.
func (c CourseCode) String() string {
	return string(c)
}

// Normalize returns the trimmed, upper-cased code used for comparisons.
func (c CourseCode) Normalize() CourseCode {
	return CourseCode(strings.ToUpper(strings.TrimSpace(string(c))))
}

// Equal compares two codes after normalization.
func (c CourseCode) Equal(other CourseCode) bool {
	return c.Normalize() == other.Normalize()
}

// NewCourseCode creates a new CourseCode with validation.
func NewCourseCode(raw string) (CourseCode, error) {
	code := CourseCode(raw).Normalize()
	if code == "" {
		return "", ErrEmptyCourseCode
	}
	return code, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Credits Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Credits is the weight of a course in a GPA average.
type Credits int

const (
	// DefaultCredits is used when a course is entered without explicit credits.
	DefaultCredits Credits = 1
	// MaxCredits bounds a single course.
	MaxCredits Credits = 30
)

// IsValid checks if the credit count is positive and bounded.
func (c Credits) IsValid() bool {
	return c > 0 && c <= MaxCredits
}

// Int returns the underlying int value.
func (c Credits) Int() int {
	return int(c)
}

// OrDefault returns DefaultCredits for an unset (zero) value.
func (c Credits) OrDefault() Credits {
	if c == 0 {
		return DefaultCredits
	}
	return c
}

// ValidateWeight checks credits used as an aggregation weight. Zero is
// allowed there: a course without credits contributes nothing.
func (c Credits) ValidateWeight() error {
	switch {
	case c < 0:
		return ErrInvalidCredits
	case c > MaxCredits:
		return ErrCreditsOutOfRange
	}
	return nil
}

// NewCredits creates a new Credits value with validation.
func NewCredits(value int) (Credits, error) {
	c := Credits(value)
	if !c.IsValid() {
		return 0, ErrInvalidCredits
	}
	return c, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Academic Term Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// SemesterNumber is the ordinal of a semester inside an academic year.
// Regular terms are 1 and 2; 3 is the summer term.
type SemesterNumber int

const (
	FirstSemester  SemesterNumber = 1
	SecondSemester SemesterNumber = 2
	SummerSemester SemesterNumber = 3
)

// IsValid checks if the semester number is 1, 2 or 3.
func (n SemesterNumber) IsValid() bool {
	return n >= FirstSemester && n <= SummerSemester
}

// Int returns the underlying int value.
func (n SemesterNumber) Int() int {
	return int(n)
}

// NewSemesterNumber creates a new SemesterNumber with validation.
func NewSemesterNumber(value int) (SemesterNumber, error) {
	n := SemesterNumber(value)
	if !n.IsValid() {
		return 0, ErrInvalidSemesterNumber
	}
	return n, nil
}

// AcademicYear is the calendar year an academic year starts in.
// The 2024 academic year runs 2024 - 2025.
type AcademicYear int

const (
	MinAcademicYear AcademicYear = 1990
	MaxAcademicYear AcademicYear = 2100
)

// IsValid checks if the year is within the supported range.
func (y AcademicYear) IsValid() bool {
	return y >= MinAcademicYear && y <= MaxAcademicYear
}

// Int returns the underlying int value.
func (y AcademicYear) Int() int {
	return int(y)
}

// Span returns the "2024 - 2025" form used in semester names.
func (y AcademicYear) Span() string {
	return fmt.Sprintf("%d - %d", int(y), int(y)+1)
}

// NewAcademicYear creates a new AcademicYear with validation.
func NewAcademicYear(value int) (AcademicYear, error) {
	y := AcademicYear(value)
	if !y.IsValid() {
		return 0, ErrInvalidAcademicYear
	}
	return y, nil
}
