package gpaapi

import (
	"errors"
	"strings"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// ErrNilDTO is returned when a nil DTO is passed to the mapper.
var ErrNilDTO = errors.New("nil DTO")

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to Domain Entity transformations
// ══════════════════════════════════════════════════════════════════════════════

// Mapper translates backend DTOs into transcript entities so that backend
// field names never leak into the domain.
type Mapper struct{}

// NewMapper creates a new Mapper instance.
func NewMapper() *Mapper {
	return &Mapper{}
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// CourseFromDTO converts a CourseDTO. The letter is taken as reported; an
// unknown letter is kept so that conformance can flag it.
func (m *Mapper) CourseFromDTO(dto *CourseDTO, semesterID shared.SemesterID) (transcript.Course, error) {
	if dto == nil {
		return transcript.Course{}, ErrNilDTO
	}

	c := transcript.Course{
		ID:         shared.CourseID(dto.ID),
		SemesterID: semesterID,
		Code:       shared.CourseCode(dto.CourseCode).Normalize(),
		Name:       strings.TrimSpace(dto.CourseName),
		Credits:    dto.Credits,
		Letter:     grading.Letter(strings.TrimSpace(dto.LetterGrade)),
		GradePoint: dto.GradePoint,
	}
	if dto.SemesterID > 0 {
		c.SemesterID = shared.SemesterID(dto.SemesterID)
	}
	if dto.Score != nil {
		s := *dto.Score
		c.Score = &s
	}
	return c, nil
}

// CoursesFromDTOs converts a list of courses of one semester.
func (m *Mapper) CoursesFromDTOs(dtos []CourseDTO, semesterID shared.SemesterID) ([]transcript.Course, error) {
	out := make([]transcript.Course, 0, len(dtos))
	for i := range dtos {
		c, err := m.CourseFromDTO(&dtos[i], semesterID)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SEMESTER MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// SemesterFromDTO converts a SemesterDTO including its courses.
func (m *Mapper) SemesterFromDTO(dto *SemesterDTO) (transcript.Semester, error) {
	if dto == nil {
		return transcript.Semester{}, ErrNilDTO
	}

	id := shared.SemesterID(dto.ID)
	courses, err := m.CoursesFromDTOs(dto.Courses, id)
	if err != nil {
		return transcript.Semester{}, err
	}

	return transcript.Semester{
		ID:              id,
		Name:            dto.Name,
		Year:            shared.AcademicYear(dto.Year),
		Number:          shared.SemesterNumber(dto.SemesterNumber),
		Courses:         courses,
		ReportedGPA:     dto.SemesterGPA,
		ReportedCredits: dto.TotalCredits,
	}, nil
}

// SemesterToRequest converts a new semester into its request body.
func (m *Mapper) SemesterToRequest(s *transcript.Semester) SemesterRequestDTO {
	return SemesterRequestDTO{
		Name:           s.DisplayName(),
		Year:           s.Year.Int(),
		SemesterNumber: s.Number.Int(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARY MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// TranscriptFromSummary converts GET /api/gpa/summary into a transcript.
func (m *Mapper) TranscriptFromSummary(dto *GPASummaryDTO) (*transcript.Transcript, error) {
	if dto == nil {
		return nil, ErrNilDTO
	}

	t := &transcript.Transcript{
		Semesters:             make([]transcript.Semester, 0, len(dto.Semesters)),
		ReportedCumulativeGPA: dto.CumulativeGPA,
		ReportedTotalCredits:  dto.TotalCredits,
	}
	for i := range dto.Semesters {
		s, err := m.SemesterFromDTO(&dto.Semesters[i])
		if err != nil {
			return nil, err
		}
		t.Semesters = append(t.Semesters, s)
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// CatalogFromDTOs converts catalog entries.
func (m *Mapper) CatalogFromDTOs(dtos []CatalogCourseDTO) []transcript.CatalogCourse {
	out := make([]transcript.CatalogCourse, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, transcript.CatalogCourse{
			ID:      shared.CatalogCourseID(d.ID),
			Code:    shared.CourseCode(d.CourseCode).Normalize(),
			Name:    strings.TrimSpace(d.CourseName),
			Credits: d.Credits,
		})
	}
	return out
}

// CourseDraftToRequest converts a course draft. semesterID is nil for updates.
func (m *Mapper) CourseDraftToRequest(d transcript.CourseDraft, semesterID *shared.SemesterID) CourseRequestDTO {
	req := CourseRequestDTO{
		CourseCode: strings.TrimSpace(d.Code),
		CourseName: strings.TrimSpace(d.Name),
		Credits:    d.Credits,
		Score:      d.Score,
	}
	if semesterID != nil {
		id := semesterID.Int64()
		req.SemesterID = &id
	}
	return req
}
