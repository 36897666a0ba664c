package command

import (
	"context"
	"fmt"

	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
	"github.com/gpa-hub/gpa-tracker/internal/domain/transcript"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD SEMESTER COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AddSemesterCommand creates a semester on the backend.
type AddSemesterCommand struct {
	// Year is the first calendar year of the academic year (2024 for 2024-2025).
	Year int

	// Number is 1 or 2 for regular terms, 3 for the summer term.
	Number int

	// Name is optional; "HK{n} - Năm học {year} - {year+1}" is used when empty.
	Name string
}

// AddSemesterHandler handles the AddSemesterCommand.
type AddSemesterHandler struct {
	writer    transcript.Writer
	publisher shared.EventPublisher
}

// NewAddSemesterHandler creates a new handler. publisher is optional.
func NewAddSemesterHandler(writer transcript.Writer, publisher shared.EventPublisher) *AddSemesterHandler {
	return &AddSemesterHandler{writer: writer, publisher: publisher}
}

// Handle validates the command and creates the semester.
func (h *AddSemesterHandler) Handle(ctx context.Context, cmd AddSemesterCommand) (*transcript.Semester, error) {
	sem, err := transcript.NewSemester(transcript.NewSemesterParams{
		Year:   cmd.Year,
		Number: cmd.Number,
		Name:   cmd.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("add_semester: validation failed: %w", err)
	}

	created, err := h.writer.CreateSemester(ctx, sem)
	if err != nil {
		return nil, fmt.Errorf("add_semester: %w", err)
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewSemesterAddedEvent(created.ID, created.Name, created.Year.Int(), created.Number.Int()))
	}
	return created, nil
}
