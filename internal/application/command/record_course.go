package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/gpa-hub/gpa-tracker/internal/domain/grading"
	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD COURSE COMMAND
// Creates or updates a course on the backend from a score or a letter.
// A letter is stored as its representative score.
// ══════════════════════════════════════════════════════════════════════════════

// RecordCourseCommand contains the data needed to record a course.
type RecordCourseCommand struct {
	SemesterID shared.SemesterID

	// CourseID selects an existing course to update. Zero creates a new one.
	CourseID shared.CourseID

	Code string
	Name string

	// Credits defaults to 1 when zero.
	Credits int

	// Score wins over Letter when both are set.
	Score  *float64
	Letter string
}

// Validate validates the command.
func (c RecordCourseCommand) Validate() error {
	if !c.CourseID.IsValid() && !c.SemesterID.IsValid() {
		return fmt.Errorf("%w: semester_id is required for a new course", shared.ErrInvalidID)
	}
	if _, err := shared.NewCourseCode(c.Code); err != nil {
		return err
	}
	if _, err := shared.NewCredits(shared.Credits(c.Credits).OrDefault().Int()); err != nil {
		return err
	}
	if c.Score != nil {
		return grading.ValidateScore(*c.Score)
	}
	if c.Letter == "" {
		return shared.ErrNoGradeProvided
	}
	if _, err := grading.LetterToPoint(c.Letter); err != nil {
		return err
	}
	return nil
}

// Draft resolves the command into what the backend stores.
func (c RecordCourseCommand) Draft() (transcript.CourseDraft, error) {
	if err := c.Validate(); err != nil {
		return transcript.CourseDraft{}, err
	}

	var score float64
	if c.Score != nil {
		score = *c.Score
	} else {
		s, err := grading.LetterToRepresentativeScore(c.Letter)
		if err != nil {
			return transcript.CourseDraft{}, err
		}
		score = s
	}

	code, _ := shared.NewCourseCode(c.Code)
	return transcript.CourseDraft{
		Code:    code.String(),
		Name:    strings.TrimSpace(c.Name),
		Credits: shared.Credits(c.Credits).OrDefault().Int(),
		Score:   score,
	}, nil
}

// RecordCourseResult contains the recorded course.
type RecordCourseResult struct {
	Course  *transcript.Course
	Grade   grading.ResolvedGrade
	Created bool
	// Drift is set when the backend stored a grade point that differs from
	// the local conversion of the same score.
	Drift bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordCourseHandler handles the RecordCourseCommand.
type RecordCourseHandler struct {
	writer    transcript.Writer
	publisher shared.EventPublisher
}

// NewRecordCourseHandler creates a new handler. publisher is optional.
func NewRecordCourseHandler(writer transcript.Writer, publisher shared.EventPublisher) *RecordCourseHandler {
	return &RecordCourseHandler{writer: writer, publisher: publisher}
}

// Handle executes the command.
func (h *RecordCourseHandler) Handle(ctx context.Context, cmd RecordCourseCommand) (*RecordCourseResult, error) {
	draft, err := cmd.Draft()
	if err != nil {
		return nil, fmt.Errorf("record_course: validation failed: %w", err)
	}
	grade := grading.ScoreToGrade(draft.Score)

	var (
		course  *transcript.Course
		created = !cmd.CourseID.IsValid()
	)
	if created {
		course, err = h.writer.CreateCourse(ctx, cmd.SemesterID, draft)
	} else {
		course, err = h.writer.UpdateCourse(ctx, cmd.CourseID, draft)
	}
	if err != nil {
		return nil, fmt.Errorf("record_course: %w", err)
	}

	result := &RecordCourseResult{
		Course:  course,
		Grade:   grade,
		Created: created,
		Drift:   course.Letter != "" && (course.Letter != grade.Letter || course.GradePoint != grade.GradePoint),
	}

	if h.publisher != nil {
		event := shared.NewCourseRecordedEvent(course.SemesterID, course.ID, draft.Code, draft.Credits, draft.Score, grade.Letter.String(), grade.GradePoint)
		if !created {
			event = event.AsUpdate()
		}
		_ = h.publisher.Publish(event)
	}

	return result, nil
}
