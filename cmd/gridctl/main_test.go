package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/domain"
)

const testGrid = `
slots:
  - {ordinal: 1, start: "09:00", end: "09:45"}
  - {ordinal: 2, start: "10:00", end: "10:45"}
rooms:
  - {id: hall, name: Main Hall, capacity: 300}
  - {id: lab, name: Lab, capacity: 40}
`

const testSessions = `Session ID,Title,Speakers,Track
S1,Scaling Inference,Alice Smith,AI
S2,Web Components,Bob Jones,Web
S3,Feature Stores,Alice Smith,Data
S4,On-call Without Tears,Carol White,Ops
`

const testAttendance = `
Alice Smith: 250
Bob Jones: 30
`

// workspace holds the input files of one CLI test.
type workspace struct {
	t   *testing.T
	dir string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	for _, key := range []string{
		"SCHEDULER_SQLITE_DSN",
		"SCHEDULER_GRID_FILE",
		"SCHEDULER_LOG_LEVEL",
		"SCHEDULER_BUSY_TIMEOUT",
		"SCHEDULER_ENFORCE_TRACK_COLLISION",
		"SCHEDULER_TOPIC_WINDOW",
	} {
		t.Setenv(key, "")
	}
	w := &workspace{t: t, dir: t.TempDir()}
	w.write("grid.yaml", testGrid)
	w.write("sessions.csv", testSessions)
	w.write("attendance.yaml", testAttendance)
	return w
}

func (w *workspace) write(name, content string) string {
	w.t.Helper()
	path := filepath.Join(w.dir, name)
	require.NoError(w.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

// run executes gridctl with the workspace's common flags.
func (w *workspace) run(args ...string) (int, string, string) {
	w.t.Helper()
	full := append([]string{
		"--db", w.path("history.db"),
		"--grid", w.path("grid.yaml"),
		"--sessions", w.path("sessions.csv"),
		"--attendance", w.path("attendance.yaml"),
		"--log-level", "error",
	}, args...)
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), full, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func decode[T any](t *testing.T, data string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(data), &v), data)
	return v
}

const validSchedule = `{"slot_1": ["S1", "S2"], "slot_2": ["S3", "S4"]}`

func TestValidateCommand(t *testing.T) {
	w := newWorkspace(t)

	t.Run("valid schedule", func(t *testing.T) {
		code, stdout, stderr := w.run("validate", w.write("valid.json", validSchedule))
		require.Equal(t, 0, code, stderr)

		report := decode[map[string]any](t, stdout)
		assert.Empty(t, report["violations"])
		assert.Contains(t, report, "total")
	})

	t.Run("speaker conflict exits with hard violation status", func(t *testing.T) {
		code, stdout, _ := w.run("validate", w.write("conflict.json", `{"slot_1": ["S1", "S3"], "slot_2": ["S2", "S4"]}`))
		assert.Equal(t, exitHardViolation, code)

		report := decode[struct {
			Violations []struct {
				Rule      string `json:"rule"`
				SpeakerID string `json:"speaker_id"`
			} `json:"violations"`
		}](t, stdout)
		require.Len(t, report.Violations, 1)
		assert.Equal(t, "speaker_conflict", report.Violations[0].Rule)
		assert.Equal(t, "alice-smith", report.Violations[0].SpeakerID)
	})

	t.Run("generator output", func(t *testing.T) {
		envelope := `{"result": "Here you go:\n` + "```json\\n" + `{\"slot_1\": [\"S1\", \"S2\"], \"slot_2\": [\"S3\", \"S4\"]}` + "\\n```" + `"}`
		code, _, stderr := w.run("validate", "--generator", w.write("generated.json", envelope))
		assert.Equal(t, 0, code, stderr)
	})

	t.Run("unknown session is malformed input", func(t *testing.T) {
		code, stdout, stderr := w.run("validate", w.write("unknown.json", `{"slot_1": ["S1", "S2"], "slot_2": ["S3", "S9"]}`))
		assert.Equal(t, exitFailure, code)
		assert.Empty(t, stdout)
		assert.Contains(t, stderr, "S9")
	})

	t.Run("sessions flag is required", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"--grid", w.path("grid.yaml"), "validate", w.path("valid.json")}, strings.NewReader(""), &stdout, &stderr)
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr.String(), "--sessions")
	})
}

func TestHistoryWorkflow(t *testing.T) {
	w := newWorkspace(t)

	code, stdout, stderr := w.run("append", "--label", "Draft", w.write("valid.json", validSchedule))
	require.Equal(t, 0, code, stderr)
	first := decode[map[string]any](t, stdout)
	assert.Equal(t, float64(1), first["version"])
	assert.Equal(t, "Draft", first["label"])

	code, stdout, _ = w.run("append", w.write("conflict.json", `{"slot_1": ["S1", "S3"], "slot_2": ["S2", "S4"]}`))
	assert.Equal(t, exitHardViolation, code)
	assert.Contains(t, stdout, "speaker_conflict")

	code, stdout, stderr = w.run("swap", "--dry-run", "1:lab", "2:lab")
	require.Equal(t, 0, code, stderr)
	dry := decode[swapOutput](t, stdout)
	assert.True(t, dry.Accepted)
	assert.True(t, dry.DryRun)
	assert.Nil(t, dry.Version)
	assert.Len(t, dry.Changes, 2)

	code, stdout, _ = w.run("swap", "1:hall", "2:lab")
	assert.Equal(t, exitSwapRejected, code)
	rejected := decode[swapOutput](t, stdout)
	assert.False(t, rejected.Accepted)
	require.NotEmpty(t, rejected.Reasons)
	assert.Equal(t, "S1", rejected.Reasons[0].SessionID)

	code, stdout, stderr = w.run("swap", "--label", "Swapped", "1:lab", "2:lab")
	require.Equal(t, 0, code, stderr)
	swapped := decode[swapOutput](t, stdout)
	require.NotNil(t, swapped.Version)
	assert.Equal(t, 2, swapped.Version.Ordinal)
	require.NotNil(t, swapped.Undo)
	assert.Equal(t, 2, swapped.Undo.BaseVersion)

	code, stdout, stderr = w.run("diff", "Draft", "latest")
	require.Equal(t, 0, code, stderr)
	d := decode[diffOutput](t, stdout)
	assert.Equal(t, 2, d.Summary["moved_to"])
	assert.Len(t, d.Entries, 2)
	assert.Contains(t, d.Lines, "Slot 1 / Lab: S2 -> S4 (moved_to)")

	code, stdout, stderr = w.run("history")
	require.Equal(t, 0, code, stderr)
	metas := decode[[]map[string]any](t, stdout)
	require.Len(t, metas, 2)
	assert.Equal(t, "Swapped", metas[1]["label"])

	code, stdout, stderr = w.run("show", "1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `"slot_1"`)

	code, _, stderr = w.run("show", "Missing")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "not found")

	code, stdout, stderr = w.run("export")
	require.Equal(t, 0, code, stderr)
	assert.Len(t, decode[[]map[string]any](t, stdout), 2)

	code, stdout, stderr = w.run("verify")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, float64(2), decode[map[string]any](t, stdout)["checked"])
}

func TestCatalogCommand(t *testing.T) {
	w := newWorkspace(t)

	code, stdout, stderr := w.run("catalog")
	require.Equal(t, 0, code, stderr)

	out := decode[catalogOutput](t, stdout)
	assert.Len(t, out.Sessions, 4)
	assert.Len(t, out.Tracks, 4)
	assert.Equal(t, map[string][]string{"alice-smith": {"S1", "S3"}}, out.MultiSessionSpeakers)
}

func TestDBStatusCommand(t *testing.T) {
	w := newWorkspace(t)

	code, stdout, stderr := w.run("db", "status")
	require.Equal(t, 0, code, stderr)

	out := decode[schemaOutput](t, stdout)
	assert.Equal(t, "001", out.CurrentVersion)
	assert.Equal(t, []string{"001"}, out.Applied)
	assert.Empty(t, out.Pending)
}

func TestParseSelector(t *testing.T) {
	valid := map[string]application.Selector{
		"latest":         {},
		" LATEST ":       {},
		"3":              {Ordinal: 3},
		"Final cut":      {Label: "Final cut"},
		"label:2026":     {Label: "2026"},
		"label: latest ": {Label: "latest"},
	}
	for input, want := range valid {
		got, err := parseSelector(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	for _, input := range []string{"0", "-2", "", "label:"} {
		_, err := parseSelector(input)
		assert.ErrorIs(t, err, domain.ErrMalformedInput, input)
	}
}

func TestSelectorsOnTheCommandLine(t *testing.T) {
	w := newWorkspace(t)

	code, _, stderr := w.run("append", "--label", "2026", w.write("valid.json", validSchedule))
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := w.run("show", "label:2026")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "2026", decode[map[string]any](t, stdout)["label"])

	code, stdout, stderr = w.run("show", "0")
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "must be positive")
}

func TestSwapOnStaleBaseFails(t *testing.T) {
	w := newWorkspace(t)

	code, _, stderr := w.run("append", w.write("valid.json", validSchedule))
	require.Equal(t, 0, code, stderr)
	code, _, stderr = w.run("append", w.write("moved.json", `{"slot_1": ["S2", "S1"], "slot_2": ["S3", "S4"]}`))
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := w.run("swap", "--base", "1", "1:lab", "2:lab")
	assert.Equal(t, exitSwapRejected, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "stale")

	code, stdout, _ = w.run("history")
	require.Equal(t, 0, code)
	assert.Len(t, decode[[]map[string]any](t, stdout), 2)
}

func TestVerifyReportsCatalogDriftWithoutFailing(t *testing.T) {
	w := newWorkspace(t)

	code, _, stderr := w.run("append", w.write("valid.json", validSchedule))
	require.Equal(t, 0, code, stderr)

	// Carol withdrew; S4 is replaced by S5.
	w.write("sessions.csv", strings.Replace(testSessions, "S4,On-call Without Tears,Carol White,Ops", "S5,Release Trains,Dan Brown,Ops", 1))

	code, stdout, stderr := w.run("verify")
	require.Equal(t, 0, code, stderr)
	report := decode[application.VerifyReport](t, stdout)
	assert.Equal(t, 1, report.Checked)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, application.IssueCatalogDrift, report.Issues[0].Kind)
	assert.Contains(t, report.Issues[0].Problem, "S4")
}

func TestUnknownCommandFails(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"frobnicate"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), "unknown command")
}
