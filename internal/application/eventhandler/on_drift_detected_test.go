package eventhandler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpa-hub/gpa-tracker/internal/domain/shared"
)

// remoteEvent имитирует событие, восстановленное из Redis.
type remoteEvent struct {
	eventType shared.EventType
	aggregate string
	payload   map[string]interface{}
}

func (e remoteEvent) EventType() shared.EventType     { return e.eventType }
func (e remoteEvent) OccurredAt() time.Time           { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
func (e remoteEvent) AggregateID() string             { return e.aggregate }
func (e remoteEvent) Payload() map[string]interface{} { return e.payload }

func newTestHandler(cfg DriftDetectedConfig) (*OnDriftDetectedHandler, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewOnDriftDetectedHandler(logger, cfg), &buf
}

func TestOnDriftDetected_LocalEvent(t *testing.T) {
	h, buf := newTestHandler(DefaultDriftDetectedConfig())

	ev := shared.NewConformanceDriftEvent("rep-1", []shared.DriftItem{
		{Subject: "cumulative", Field: "cumulative_gpa", Expected: 3.55, Actual: 3.6},
		{Subject: "course:12", Field: "grade_point", Expected: 3.5, Actual: 3.0},
	})
	require.NoError(t, h.Handle(ev))

	stats := h.Stats()
	assert.Equal(t, 1, stats.DriftEvents)
	assert.Equal(t, 2, stats.Mismatches)
	assert.Equal(t, "rep-1", stats.LastReportID)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, `"msg":"backend value drifted"`))
	assert.Contains(t, out, `"subject":"course:12"`)
	assert.Contains(t, out, `"msg":"conformance drift detected"`)
}

func TestOnDriftDetected_RemoteEventPayload(t *testing.T) {
	h, _ := newTestHandler(DefaultDriftDetectedConfig())

	// payload проходит через JSON так же, как в RedisEventBus
	src := shared.NewConformanceDriftEvent("rep-2", []shared.DriftItem{
		{Subject: "semester:4", Field: "semester_gpa", Expected: 3.2, Actual: 3.25},
	})
	raw, err := json.Marshal(src.Payload())
	require.NoError(t, err)
	payload := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &payload))

	require.NoError(t, h.Handle(remoteEvent{eventType: shared.EventConformanceDrift, aggregate: "rep-2", payload: payload}))

	reportID, items, err := driftFromEvent(remoteEvent{eventType: shared.EventConformanceDrift, payload: payload})
	require.NoError(t, err)
	assert.Equal(t, "rep-2", reportID)
	require.Len(t, items, 1)
	assert.Equal(t, shared.DriftItem{Subject: "semester:4", Field: "semester_gpa", Expected: 3.2, Actual: 3.25}, items[0])

	assert.Equal(t, 1, h.Stats().Mismatches)
}

func TestOnDriftDetected_LimitsLoggedItems(t *testing.T) {
	h, buf := newTestHandler(DriftDetectedConfig{MaxLoggedItems: 1})

	items := []shared.DriftItem{
		{Subject: "course:1", Field: "grade_point"},
		{Subject: "course:2", Field: "grade_point"},
		{Subject: "course:3", Field: "grade_point"},
	}
	require.NoError(t, h.Handle(shared.NewConformanceDriftEvent("rep-3", items)))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `"msg":"backend value drifted"`))
	assert.Contains(t, out, `"omitted":2`)
	assert.Equal(t, 3, h.Stats().Mismatches)
}

func TestOnDriftDetected_MalformedPayload(t *testing.T) {
	h, buf := newTestHandler(DefaultDriftDetectedConfig())

	ev := remoteEvent{eventType: shared.EventConformanceDrift, payload: map[string]interface{}{"items": "oops"}}
	require.NoError(t, h.Handle(ev))

	assert.Zero(t, h.Stats().DriftEvents)
	assert.Contains(t, buf.String(), "malformed drift event")
}

func TestOnDriftDetected_FailedEvent(t *testing.T) {
	h, buf := newTestHandler(DefaultDriftDetectedConfig())

	require.NoError(t, h.Handle(shared.NewConformanceFailedEvent("run-9", "backend unavailable")))
	require.NoError(t, h.Handle(remoteEvent{
		eventType: shared.EventConformanceFailed,
		aggregate: "run-10",
		payload:   map[string]interface{}{"reason": "timeout"},
	}))

	stats := h.Stats()
	assert.Equal(t, 2, stats.FailedEvents)
	assert.Equal(t, "timeout", stats.LastFailure)
	assert.Contains(t, buf.String(), `"run_id":"run-9"`)
}

func TestOnDriftDetected_IgnoresOtherEvents(t *testing.T) {
	h, _ := newTestHandler(DefaultDriftDetectedConfig())

	require.NoError(t, h.Handle(shared.NewSemesterAddedEvent(1, "HK1", 2024, 1)))
	assert.Equal(t, DriftStats{}, h.Stats())
}
