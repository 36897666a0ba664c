package gpaapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEMESTER OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// ListSemesters returns the user's semesters without courses.
func (c *Client) ListSemesters(ctx context.Context) ([]SemesterDTO, error) {
	var semesters []SemesterDTO
	if err := c.doRequest(ctx, http.MethodGet, "/api/semesters/", nil, &semesters); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}

// GetSemester returns a semester with its courses and reported GPA.
func (c *Client) GetSemester(ctx context.Context, id shared.SemesterID) (*SemesterDTO, error) {
	var semester SemesterDTO
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/semesters/%d", id.Int64()), nil, &semester); err != nil {
		return nil, fmt.Errorf("get semester %s: %w", id, err)
	}
	return &semester, nil
}

// CreateSemester creates the semester and returns it with the backend ID.
func (c *Client) CreateSemester(ctx context.Context, s *transcript.Semester) (*transcript.Semester, error) {
	var created SemesterDTO
	if err := c.doRequest(ctx, http.MethodPost, "/api/semesters/", c.mapper.SemesterToRequest(s), &created); err != nil {
		return nil, fmt.Errorf("create semester %q: %w", s.DisplayName(), err)
	}
	out, err := c.mapper.SemesterFromDTO(&created)
	if err != nil {
		return nil, fmt.Errorf("create semester: %w", err)
	}
	return &out, nil
}

// UpdateSemester replaces a semester's name, year and number.
func (c *Client) UpdateSemester(ctx context.Context, id shared.SemesterID, req SemesterRequestDTO) (*SemesterDTO, error) {
	var updated SemesterDTO
	if err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/api/semesters/%d", id.Int64()), req, &updated); err != nil {
		return nil, fmt.Errorf("update semester %s: %w", id, err)
	}
	return &updated, nil
}

// DeleteSemester deletes a semester and, on the backend side, its courses.
func (c *Client) DeleteSemester(ctx context.Context, id shared.SemesterID) error {
	if err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/semesters/%d", id.Int64()), nil, nil); err != nil {
		return fmt.Errorf("delete semester %s: %w", id, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// ListCourses returns the courses of a semester.
func (c *Client) ListCourses(ctx context.Context, semesterID shared.SemesterID) ([]CourseDTO, error) {
	var courses []CourseDTO
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/courses/semester/%d", semesterID.Int64()), nil, &courses); err != nil {
		return nil, fmt.Errorf("list courses of semester %s: %w", semesterID, err)
	}
	return courses, nil
}

// GetCourse returns a single course.
func (c *Client) GetCourse(ctx context.Context, id shared.CourseID) (*CourseDTO, error) {
	var course CourseDTO
	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/courses/%d", id.Int64()), nil, &course); err != nil {
		return nil, fmt.Errorf("get course %s: %w", id, err)
	}
	return &course, nil
}

// CreateCourse adds a course to a semester.
func (c *Client) CreateCourse(ctx context.Context, semesterID shared.SemesterID, draft transcript.CourseDraft) (*transcript.Course, error) {
	req := c.mapper.CourseDraftToRequest(draft, &semesterID)

	var created CourseDTO
	if err := c.doRequest(ctx, http.MethodPost, "/api/courses/", req, &created); err != nil {
		return nil, fmt.Errorf("create course %s: %w", req.CourseCode, err)
	}
	course, err := c.mapper.CourseFromDTO(&created, semesterID)
	if err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return &course, nil
}

// UpdateCourse replaces a course's code, name, credits and score.
func (c *Client) UpdateCourse(ctx context.Context, id shared.CourseID, draft transcript.CourseDraft) (*transcript.Course, error) {
	req := c.mapper.CourseDraftToRequest(draft, nil)

	var updated CourseDTO
	if err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/api/courses/%d", id.Int64()), req, &updated); err != nil {
		return nil, fmt.Errorf("update course %s: %w", id, err)
	}
	course, err := c.mapper.CourseFromDTO(&updated, shared.SemesterID(updated.SemesterID))
	if err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}
	return &course, nil
}

// DeleteCourse deletes a course.
func (c *Client) DeleteCourse(ctx context.Context, id shared.CourseID) error {
	if err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/courses/%d", id.Int64()), nil, nil); err != nil {
		return fmt.Errorf("delete course %s: %w", id, err)
	}
	return nil
}
