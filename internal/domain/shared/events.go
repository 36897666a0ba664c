// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents something significant that
// happened while tracking a transcript or auditing the backend.
const (
	// Transcript events
	EventSemesterAdded    EventType = "transcript.semester_added"
	EventCourseRecorded   EventType = "transcript.course_recorded"
	EventCatalogBulkAdded EventType = "transcript.catalog_bulk_added"
	EventSummaryComputed  EventType = "transcript.summary_computed"

	// Conformance events
	EventConformanceChecked EventType = "conformance.checked"
	EventConformanceDrift   EventType = "conformance.drift_detected"
	EventConformanceFailed  EventType = "conformance.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Transcript Events
// ═══════════════════════════════════════════════════════════════════════════

// SemesterAddedEvent is emitted after a semester was created on the backend.
type SemesterAddedEvent struct {
	BaseEvent
	SemesterID     int64  `json:"semester_id"`
	Name           string `json:"name"`
	Year           int    `json:"year"`
	SemesterNumber int    `json:"semester_number"`
}

// Payload implements Event interface.
func (e SemesterAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"semester_id":     e.SemesterID,
		"name":            e.Name,
		"year":            e.Year,
		"semester_number": e.SemesterNumber,
	}
}

// NewSemesterAddedEvent creates a new SemesterAddedEvent.
func NewSemesterAddedEvent(semesterID SemesterID, name string, year, number int) SemesterAddedEvent {
	return SemesterAddedEvent{
		BaseEvent:      NewBaseEvent(EventSemesterAdded, semesterID.String()),
		SemesterID:     int64(semesterID),
		Name:           name,
		Year:           year,
		SemesterNumber: number,
	}
}

// CourseRecordedEvent is emitted when a course grade was created or updated.
type CourseRecordedEvent struct {
	BaseEvent
	SemesterID int64   `json:"semester_id"`
	CourseID   int64   `json:"course_id"`
	CourseCode string  `json:"course_code"`
	Credits    int     `json:"credits"`
	Score      float64 `json:"score"`
	Letter     string  `json:"letter"`
	GradePoint float64 `json:"grade_point"`
	Updated    bool    `json:"updated"`
}

// Payload implements Event interface.
func (e CourseRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"semester_id": e.SemesterID,
		"course_id":   e.CourseID,
		"course_code": e.CourseCode,
		"credits":     e.Credits,
		"score":       e.Score,
		"letter":      e.Letter,
		"grade_point": e.GradePoint,
		"updated":     e.Updated,
	}
}

// NewCourseRecordedEvent creates a new CourseRecordedEvent.
func NewCourseRecordedEvent(semesterID SemesterID, courseID CourseID, code string, credits int, score float64, letter string, point float64) CourseRecordedEvent {
	return CourseRecordedEvent{
		BaseEvent:  NewBaseEvent(EventCourseRecorded, semesterID.String()),
		SemesterID: int64(semesterID),
		CourseID:   int64(courseID),
		CourseCode: code,
		Credits:    credits,
		Score:      score,
		Letter:     letter,
		GradePoint: point,
	}
}

// AsUpdate marks the event as an update of an existing course.
func (e CourseRecordedEvent) AsUpdate() CourseRecordedEvent {
	e.Updated = true
	return e
}

// CatalogBulkAddedEvent is emitted after catalog courses were copied into a semester.
type CatalogBulkAddedEvent struct {
	BaseEvent
	SemesterID int64 `json:"semester_id"`
	Requested  int   `json:"requested"`
	Added      int   `json:"added"`
	Skipped    int   `json:"skipped"`
}

// Payload implements Event interface.
func (e CatalogBulkAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"semester_id": e.SemesterID,
		"requested":   e.Requested,
		"added":       e.Added,
		"skipped":     e.Skipped,
	}
}

// NewCatalogBulkAddedEvent creates a new CatalogBulkAddedEvent.
func NewCatalogBulkAddedEvent(semesterID SemesterID, requested, added, skipped int) CatalogBulkAddedEvent {
	return CatalogBulkAddedEvent{
		BaseEvent:  NewBaseEvent(EventCatalogBulkAdded, semesterID.String()),
		SemesterID: int64(semesterID),
		Requested:  requested,
		Added:      added,
		Skipped:    skipped,
	}
}

// SummaryComputedEvent is emitted when a transcript summary was recomputed locally.
type SummaryComputedEvent struct {
	BaseEvent
	Semesters     int     `json:"semesters"`
	TotalCredits  int     `json:"total_credits"`
	CumulativeGPA float64 `json:"cumulative_gpa"`
	Standing      string  `json:"standing"`
}

// Payload implements Event interface.
func (e SummaryComputedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"semesters":      e.Semesters,
		"total_credits":  e.TotalCredits,
		"cumulative_gpa": e.CumulativeGPA,
		"standing":       e.Standing,
	}
}

// NewSummaryComputedEvent creates a new SummaryComputedEvent.
func NewSummaryComputedEvent(owner string, semesters, totalCredits int, gpa float64, standing string) SummaryComputedEvent {
	return SummaryComputedEvent{
		BaseEvent:     NewBaseEvent(EventSummaryComputed, owner),
		Semesters:     semesters,
		TotalCredits:  totalCredits,
		CumulativeGPA: gpa,
		Standing:      standing,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Conformance Events
// ═══════════════════════════════════════════════════════════════════════════

// ConformanceCheckedEvent is emitted after every completed conformance run.
type ConformanceCheckedEvent struct {
	BaseEvent
	ReportID   string        `json:"report_id"`
	Status     string        `json:"status"`
	Checks     int           `json:"checks"`
	Mismatches int           `json:"mismatches"`
	Duration   time.Duration `json:"duration"`
}

// Payload implements Event interface.
func (e ConformanceCheckedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"report_id":  e.ReportID,
		"status":     e.Status,
		"checks":     e.Checks,
		"mismatches": e.Mismatches,
		"duration":   e.Duration.String(),
	}
}

// NewConformanceCheckedEvent creates a new ConformanceCheckedEvent.
func NewConformanceCheckedEvent(reportID, status string, checks, mismatches int, duration time.Duration) ConformanceCheckedEvent {
	return ConformanceCheckedEvent{
		BaseEvent:  NewBaseEvent(EventConformanceChecked, reportID),
		ReportID:   reportID,
		Status:     status,
		Checks:     checks,
		Mismatches: mismatches,
		Duration:   duration,
	}
}

// DriftItem describes a single value the backend disagrees on.
type DriftItem struct {
	Subject  string  `json:"subject"` // e.g., "semester:12", "course:IT001", "cumulative"
	Field    string  `json:"field"`   // e.g., "semester_gpa", "grade_point"
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
}

// ConformanceDriftEvent is emitted when the backend reported values that do not
// match the locally recomputed ones.
type ConformanceDriftEvent struct {
	BaseEvent
	ReportID string      `json:"report_id"`
	Items    []DriftItem `json:"items"`
}

// Payload implements Event interface.
func (e ConformanceDriftEvent) Payload() map[string]interface{} {
	items := make([]map[string]interface{}, 0, len(e.Items))
	for _, it := range e.Items {
		items = append(items, map[string]interface{}{
			"subject":  it.Subject,
			"field":    it.Field,
			"expected": it.Expected,
			"actual":   it.Actual,
		})
	}
	return map[string]interface{}{
		"report_id": e.ReportID,
		"items":     items,
	}
}

// NewConformanceDriftEvent creates a new ConformanceDriftEvent.
func NewConformanceDriftEvent(reportID string, items []DriftItem) ConformanceDriftEvent {
	copied := make([]DriftItem, len(items))
	copy(copied, items)
	return ConformanceDriftEvent{
		BaseEvent: NewBaseEvent(EventConformanceDrift, reportID),
		ReportID:  reportID,
		Items:     copied,
	}
}

// ConformanceFailedEvent is emitted when a run could not complete, e.g. the
// backend was unreachable.
type ConformanceFailedEvent struct {
	BaseEvent
	Reason string `json:"reason"`
}

// Payload implements Event interface.
func (e ConformanceFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"reason": e.Reason,
	}
}

// NewConformanceFailedEvent creates a new ConformanceFailedEvent.
func NewConformanceFailedEvent(runID, reason string) ConformanceFailedEvent {
	return ConformanceFailedEvent{
		BaseEvent: NewBaseEvent(EventConformanceFailed, runID),
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event payload into an envelope.
func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	env := EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if b, ok := event.(interface{ Base() BaseEvent }); ok {
		env.CorrelationID = b.Base().CorrelationID
		env.Version = b.Base().Version
	}
	return env, nil
}

// Base returns the embedded base event.
func (e BaseEvent) Base() BaseEvent {
	return e
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
