package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/plasmareport/plasmareport/pkg/config"
	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
	"github.com/plasmareport/plasmareport/pkg/workflow"
)

const export = `[
  {
    "ProgramName": "GS-22-141862", "RepeatIDProgram": 1, "UsedArea": 80.5, "ScrapFraction": 0.1,
    "MachineName": "Plasma-1", "CuttingTimeProgram": "1834.5", "PostDateTime": "2024-03-01T08:30:00Z",
    "Material": "St3", "Thickness": 4, "SheetLength": 3000, "SheetWidth": 1500,
    "ArchivePacketID": 7, "TimeLineID": 2, "Comment": "", "PostedByUserID": 3, "PierceQtyProgram": 40,
    "UserName": "tech", "UserFirstName": "Anna", "UserLastName": "Volkova", "UserEMail": "t@example.com",
    "LastLoginDate": null,
    "WONumber": "WO-1", "CustomerName": "ACME", "WODate": "2024-02-27", "OrderDate": "2024-02-26",
    "WOData1": "", "WOData2": "", "DateCreated": "2024-02-26",
    "PartName": "Flange", "QtyInProcess": 10, "PartLength": 120, "PartWidth": 40, "TrueArea": 4800,
    "RectArea": 4850, "TrueWeight": 1.5, "RectWeight": 1.6, "CuttingTimePart": "12.34",
    "CuttingLength": 560, "PierceQtyPart": 4, "NestedArea": 5100, "TotalCuttingTime": "123.4",
    "MasterPartQty": 10, "WOState": "Active", "DueDate": "2024-03-11", "RevisionNumber": "A",
    "PK_PIP": "PIP-1", "SourceFileName": "flange.dxf"
  }
]`

// newWorkspace writes a config pointing at a temp database and an export
// directory holding one program.
func newWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	exports := filepath.Join(dir, "exports")
	require.NoError(t, os.MkdirAll(exports, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(exports, "gs.json"), []byte(export), 0o644))

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(dir, "plasma.db")
	cfg.Nesting.ExportDir = exports
	cfg.Telemetry.Logging.Level = "error"
	cfg.Telemetry.Metrics.Enabled = false

	path := filepath.Join(dir, config.DefaultFile)
	require.NoError(t, cfg.Write(path))
	return path
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand("test", "none", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func runJSON(t *testing.T, cfgPath string, v any, args ...string) {
	t.Helper()
	out, err := run(t, cfgPath, append(args, "--json")...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestProductionFlow(t *testing.T) {
	cfg := newWorkspace(t)

	out, err := run(t, cfg, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Using existing config file")

	var worker model.Worker
	runJSON(t, cfg, &worker, "workers", "add", "Petrov", "--job", "OPERATOR")
	var cell model.StorageCell
	runJSON(t, cfg, &cell, "cells", "add", "A-01")

	var report workflow.SyncReport
	runJSON(t, cfg, &report, "sync", "create", "GS-22-141862")
	require.Len(t, report.Created, 1)
	programID := report.Created[0].ProgramID

	var views []model.PartView
	runJSON(t, cfg, &views, "programs", "parts", strconv.FormatInt(programID, 10))
	require.Len(t, views, 1)
	partID := strconv.FormatInt(views[0].Part.ID, 10)
	workerID := strconv.FormatInt(worker.ID, 10)

	out, err = run(t, cfg, "assign", strconv.FormatInt(programID, 10), "--worker", workerID, "--priority", "HIGH")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Assigned 1 programs")

	_, err = run(t, cfg, "claim", partID, "--worker", workerID)
	require.NoError(t, err)

	var calculating []model.Program
	runJSON(t, cfg, &calculating, "programs", "calculation")
	require.Len(t, calculating, 1)
	assert.Equal(t, model.PriorityHigh, calculating[0].Priority)

	var accepted workflow.AcceptResult
	runJSON(t, cfg, &accepted, "accept", partID, "10", "--cell", strconv.FormatInt(cell.ID, 10))
	require.Len(t, accepted.Parts, 1)
	assert.Equal(t, model.PartStatusDoneFull, accepted.Parts[0].Status)
	assert.Equal(t, []int64{programID}, accepted.ProgramsDone)

	var entries []*model.AuditEntry
	runJSON(t, cfg, &entries, "audit", "--action", "program.assigned")
	require.Len(t, entries, 1)
	assert.Equal(t, "master", entries[0].Actor)
}

func TestTableOutput(t *testing.T) {
	cfg := newWorkspace(t)

	out, err := run(t, cfg, "sync", "create", "GS-22-141862")
	require.NoError(t, err)
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "GS-22-141862")

	out, err = run(t, cfg, "programs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Plasma-1")
	assert.Contains(t, out, "created")
	assert.NotContains(t, out, "CREATED")

	out, err = run(t, cfg, "workers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No results.")
}

func TestTableLabelsFollowLanguage(t *testing.T) {
	cfg := newWorkspace(t)

	_, err := run(t, cfg, "workers", "add", "Petrov", "--job", "MASTER")
	require.NoError(t, err)
	var report workflow.SyncReport
	runJSON(t, cfg, &report, "sync", "create", "GS-22-141862")
	programID := strconv.FormatInt(report.Created[0].ProgramID, 10)

	out, err := run(t, cfg, "--lang", "ru", "programs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "создана")

	out, err = run(t, cfg, "--lang", "ru", "programs", "parts", programID)
	require.NoError(t, err)
	assert.Contains(t, out, "не распределена")

	out, err = run(t, cfg, "--lang", "ru", "workers", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "мастер")

	out, err = run(t, cfg, "--lang", "ru", "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "программа создана")
	assert.Contains(t, out, "исполнитель добавлен")

	// JSON keeps identifiers whatever the language.
	var programs []model.Program
	runJSON(t, cfg, &programs, "--lang", "ru", "programs", "list")
	require.Len(t, programs, 1)
	assert.Equal(t, model.ProgramStatusCreated, programs[0].Status)

	_, err = run(t, cfg, "--lang", "de", "programs", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}

func TestAssignFromFile(t *testing.T) {
	cfg := newWorkspace(t)

	var worker model.Worker
	runJSON(t, cfg, &worker, "workers", "add", "Petrov")
	var report workflow.SyncReport
	runJSON(t, cfg, &report, "sync", "create", "GS-22-141862")

	batch := filepath.Join(t.TempDir(), "batch.json")
	body := `{"items": [{"program_id": ` + strconv.FormatInt(report.Created[0].ProgramID, 10) +
		`, "worker_ids": [` + strconv.FormatInt(worker.ID, 10) + `], "priority": "CRITICAL"}]}`
	require.NoError(t, os.WriteFile(batch, []byte(body), 0o644))

	var result workflow.AssignResult
	runJSON(t, cfg, &result, "assign", "-f", batch)
	assert.Equal(t, int64(1), result.PartsAssigned)

	require.NoError(t, os.WriteFile(batch, []byte(`{"items": [], "extra": 1}`), 0o644))
	_, err := run(t, cfg, "assign", "-f", batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestErrorsMapToExitCodes(t *testing.T) {
	cfg := newWorkspace(t)

	_, err := run(t, cfg, "sync", "create", "GS-22-141862")
	require.NoError(t, err)

	_, err = run(t, cfg, "sync", "create", "GS-22-141862")
	require.Error(t, err)
	assert.Equal(t, 4, ExitCode(err))

	_, err = run(t, cfg, "sync", "update", "GS-00-000000")
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))

	_, err = run(t, cfg, "workers", "add", "Petrov", "--job", "WELDER")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))

	_, err = run(t, cfg, "programs", "calculation")
	require.Error(t, err)
	assert.Equal(t, 5, ExitCode(err))

	_, err = run(t, cfg, "claim", "abc", "--worker", "1")
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 6, ExitCode(&workflow.Error{Class: workflow.ClassStorage}))
}

func TestParseWindowTime(t *testing.T) {
	for _, s := range []string{"2024-03-01", "2024-03-01T08:30:00Z", "2024-03-01 08:30:00"} {
		_, err := parseWindowTime(s)
		assert.NoError(t, err, s)
	}
	_, err := parseWindowTime("yesterday")
	assert.Error(t, err)
}

func TestInitWritesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "etc", config.DefaultFile)
	db := filepath.Join(dir, "plasma.db")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out, err := run(t, path, "init", "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Created config file")
	assert.FileExists(t, path)
	assert.FileExists(t, db)
	assert.DirExists(t, filepath.Join(dir, "exports"))
}

func TestWatchEventsPrintChangesAndLogFailures(t *testing.T) {
	events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	require.NoError(t, err)

	var out, logs bytes.Buffer
	subscribeWatchEvents(events, &out, language.Russian, zerolog.New(&logs))

	stamp := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, events.Publish(telemetry.Event{
		Type:      telemetry.EventTypeProgramCreated,
		Timestamp: stamp,
		Data:      map[string]interface{}{"program_name": "GS-22-141862"},
	}))
	require.NoError(t, events.Publish(telemetry.Event{Type: telemetry.EventTypeSyncCompleted, RunID: "run-1"}))
	require.NoError(t, events.Publish(telemetry.Event{
		Type:    telemetry.EventTypeSyncFailed,
		RunID:   "run-2",
		Level:   telemetry.EventLevelError,
		Message: "nesting source unavailable",
	}))

	assert.Equal(t, "2024-03-01 08:30  программа создана  GS-22-141862\n", out.String())

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, telemetry.EventTypeSyncFailed, entry["event"])
	assert.Equal(t, "run-2", entry["run_id"])
	assert.Equal(t, "nesting source unavailable", entry["message"])
}
