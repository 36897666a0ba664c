package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpa-hub/gpa-tracker/internal/infrastructure/scheduler"
)

type namedJob struct {
	name string
	err  error
}

func (j namedJob) Name() string              { return j.name }
func (j namedJob) Description() string       { return "test job " + j.name }
func (j namedJob) Run(context.Context) error { return j.err }

func TestLogSchedulerStatus(t *testing.T) {
	buf := &bytes.Buffer{}
	log := slog.New(slog.NewJSONHandler(buf, nil))

	cfg := scheduler.DefaultSchedulerConfig()
	cfg.Logger = slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	sched := scheduler.NewScheduler(cfg)

	require.NoError(t, sched.Register(namedJob{name: "verify_conformance"}, scheduler.NewIntervalSchedule(time.Hour)))
	require.NoError(t, sched.Register(namedJob{name: "prune_reports", err: errors.New("db down")}, scheduler.NewIntervalSchedule(time.Hour)))
	require.NoError(t, sched.DisableJob("prune_reports"))

	_, err := sched.RunNow(context.Background(), "verify_conformance")
	require.NoError(t, err)
	_, err = sched.RunNow(context.Background(), "prune_reports")
	require.Error(t, err)

	logSchedulerStatus(log, sched)

	var lines []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 5)

	// Задачи идут по имени.
	assert.Equal(t, "prune_reports", lines[0]["job"])
	assert.Equal(t, false, lines[0]["enabled"])
	assert.Equal(t, "verify_conformance", lines[1]["job"])
	assert.Equal(t, true, lines[1]["enabled"])

	assert.Equal(t, "scheduler run", lines[2]["msg"])
	assert.Equal(t, true, lines[2]["success"])
	assert.Equal(t, false, lines[3]["success"])

	status := lines[4]
	assert.Equal(t, "scheduler status", status["msg"])
	assert.Equal(t, false, status["running"])
	assert.EqualValues(t, 2, status["executions"])
	assert.InDelta(t, 0.5, status["success_rate"], 1e-9)
}
