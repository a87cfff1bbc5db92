package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

func TestCreateProgramWithPartsOverTwoOrders(t *testing.T) {
	h := newHarness(t, gsRecords()...)

	report, err := h.service.CreatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	assert.Equal(t, SyncModeCreate, report.Mode)
	require.Len(t, report.Created, 1)
	assert.Equal(t, 3, report.Created[0].Parts)
	assert.ElementsMatch(t, []string{"WO-1001", "WO-1002"}, report.OrdersCreated)

	program := h.program(t, gsProgram)
	assert.Equal(t, model.ProgramStatusCreated, program.Status)
	assert.Equal(t, model.PriorityLow, program.Priority)
	assert.Equal(t, "09G2S", program.Material)
	assert.True(t, program.CuttingTime.Equal(gsRecords()[0].CuttingTimeProgram))

	orders := h.orders(t, "WO-1001", "WO-1002")
	require.Len(t, orders, 2)
	orderIDs := map[string]int64{}
	for _, o := range orders {
		orderIDs[o.WONumber] = o.ID
		assert.Equal(t, model.WOStatusCreated, o.Status)
	}

	parts := h.parts(t, program.ID)
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.Equal(t, model.PartStatusUnassigned, p.Status)
		assert.Equal(t, program.ID, p.ProgramID)
	}
	assert.Equal(t, orderIDs["WO-1001"], partByName(parts, "BRACKET-01").WorkOrderID)
	assert.Equal(t, orderIDs["WO-1001"], partByName(parts, "FLANGE-02").WorkOrderID)
	assert.Equal(t, orderIDs["WO-1002"], partByName(parts, "RIB-03").WorkOrderID)
	assert.Equal(t, int64(5), partByName(parts, "RIB-03").QtyInProcess)

	assert.Contains(t, h.eventTypes(), telemetry.EventTypeProgramCreated)
	assert.Contains(t, h.eventTypes(), telemetry.EventTypeSyncCompleted)
}

func TestCreateReusesExistingOrder(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.createGS(t)

	h.source.put(record("GS-22-141900", "WO-1002", "RIB-09", 2))
	report, err := h.service.CreatePrograms(context.Background(), ProgramNamesRequest{Names: []string{"GS-22-141900"}})
	require.NoError(t, err)
	assert.Empty(t, report.OrdersCreated)

	second := h.program(t, "GS-22-141900")
	parts := h.parts(t, second.ID)
	require.Len(t, parts, 1)
	assert.Equal(t, h.orders(t, "WO-1002")[0].ID, parts[0].WorkOrderID)
}

func TestCreateExistingProgramIsConflict(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.createGS(t)
	calls := h.source.calls

	_, err := h.service.CreatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram, "OTHER"}})
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, []string{gsProgram}, werr.Names)
	assert.Equal(t, calls, h.source.calls, "source must not be queried")
}

func TestCreateUnknownProgramIsNotFound(t *testing.T) {
	h := newHarness(t, gsRecords()...)

	_, err := h.service.CreatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram, "GS-00-000000"}})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, []string{"GS-00-000000"}, werr.Names)

	// Nothing of the batch is written.
	_, err = h.service.ProgramParts(context.Background(), []int64{1})
	assert.True(t, IsNotFound(err))
}

func TestCreateRejectsEmptyRequest(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.CreatePrograms(context.Background(), ProgramNamesRequest{})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Contains(t, h.eventTypes(), telemetry.EventTypeSyncFailed)
}

func TestUpdateIsIdempotent(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	program := h.createGS(t)
	before := h.parts(t, program.ID)

	for i := 0; i < 2; i++ {
		report, err := h.service.UpdatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
		require.NoError(t, err)
		require.Len(t, report.Updated, 1)
		assert.True(t, report.Updated[0].Empty(), "run %d: %+v", i, report.Updated[0])
		assert.Empty(t, report.OrdersUpdated)
		assert.Zero(t, report.OrdersDeleted)
	}

	after := h.parts(t, program.ID)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].UpdatedAt, after[i].UpdatedAt)
	}
}

func TestUpdateIgnoresFractionalNoise(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.createGS(t)

	rows := gsRecords()
	for i := range rows {
		rows[i].PartLength += 0.3
		rows[i].DueDate = rows[i].DueDate.Add(400 * time.Millisecond)
	}
	h.source.replace(gsProgram, rows...)

	report, err := h.service.UpdatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
	require.NoError(t, err)
	require.Len(t, report.Updated, 1)
	assert.True(t, report.Updated[0].Empty())
}

func TestUpdateAppliesChangedAddedAndRemovedParts(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	program := h.createGS(t)

	rows := gsRecords()
	rows[0].QtyInProcess = 12
	rows[0].RevisionNumber = "B"
	rows = rows[:2] // RIB-03 vanishes, and with it the only part of WO-1002
	rows = append(rows, record(gsProgram, "WO-1003", "COVER-04", 3))
	h.source.replace(gsProgram, rows...)

	report, err := h.service.UpdatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
	require.NoError(t, err)
	require.Len(t, report.Updated, 1)

	changes := report.Updated[0]
	require.Len(t, changes.Changed, 1)
	assert.Equal(t, "BRACKET-01", changes.Changed[0].Key.PartName)
	fields := map[string]any{}
	for _, f := range changes.Changed[0].Fields {
		fields[f.Field] = f.After
	}
	assert.Equal(t, map[string]any{"QtyInProcess": int64(12), "RevisionNumber": "B"}, fields)

	require.Len(t, changes.Removed, 1)
	assert.Equal(t, "RIB-03", changes.Removed[0].PartName)
	require.Len(t, changes.Added, 1)
	assert.Equal(t, "COVER-04", changes.Added[0].PartName)
	assert.Equal(t, []string{"WO-1003"}, report.OrdersCreated)
	assert.Equal(t, int64(1), report.OrdersDeleted)

	parts := h.parts(t, program.ID)
	require.Len(t, parts, 3)
	assert.Nil(t, partByName(parts, "RIB-03"))
	assert.Equal(t, int64(12), partByName(parts, "BRACKET-01").QtyInProcess)
	assert.Empty(t, h.orders(t, "WO-1002"))
}

func TestUpdateSyncsProgramAndOrderFields(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.createGS(t)

	rows := gsRecords()
	for i := range rows {
		rows[i].Comment = "re-nested"
		rows[i].CustomerName = "Uralmash JSC"
	}
	h.source.replace(gsProgram, rows...)

	report, err := h.service.UpdatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
	require.NoError(t, err)
	require.Len(t, report.Updated, 1)
	require.Len(t, report.Updated[0].Fields, 1)
	assert.Equal(t, "Comment", report.Updated[0].Fields[0].Field)
	assert.Len(t, report.OrdersUpdated, 2)

	assert.Equal(t, "re-nested", h.program(t, gsProgram).Comment)
	for _, o := range h.orders(t, "WO-1001", "WO-1002") {
		assert.Equal(t, "Uralmash JSC", o.CustomerName)
	}
}

func TestUpdateSkipsProgramsInProduction(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	program := h.createGS(t)
	w := h.worker(t, "Petrov")

	_, err := h.service.AssignPrograms(context.Background(), AssignRequest{Items: []AssignmentItem{
		{ProgramID: program.ID, WorkerIDs: []int64{w.ID}},
	}})
	require.NoError(t, err)
	before := h.parts(t, program.ID)

	rows := gsRecords()
	rows[0].QtyInProcess = 99
	h.source.replace(gsProgram, rows[:1]...)
	calls := h.source.calls

	report, err := h.service.UpdatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
	require.NoError(t, err)
	assert.Empty(t, report.Updated)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, model.ProgramStatusAssigned, report.Skipped[0].Status)
	assert.Equal(t, calls, h.source.calls)

	after := h.parts(t, program.ID)
	require.Len(t, after, 3)
	for i := range before {
		assert.Equal(t, before[i].QtyInProcess, after[i].QtyInProcess)
	}
}

func TestUpdateUnknownProgramIsNotFound(t *testing.T) {
	h := newHarness(t, gsRecords()...)

	_, err := h.service.UpdatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestUpdateDeletesVanishedProgram(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	program := h.createGS(t)
	h.source.drop(gsProgram)

	report, err := h.service.UpdatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
	require.NoError(t, err)
	assert.Equal(t, []string{gsProgram}, report.Deleted)
	assert.Equal(t, int64(2), report.OrdersDeleted)

	_, err = h.service.ProgramParts(context.Background(), []int64{program.ID})
	assert.True(t, IsNotFound(err))
	assert.Empty(t, h.orders(t, "WO-1001", "WO-1002"))
	assert.Contains(t, h.eventTypes(), telemetry.EventTypeProgramDeleted)
}

func TestSyncProgramsCreatesAndUpdates(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.createGS(t)
	h.source.put(record("GS-22-141900", "WO-2001", "PLATE-01", 4))

	report, err := h.service.SyncPrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram, "GS-22-141900"}})
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	assert.Equal(t, "GS-22-141900", report.Created[0].ProgramName)
	require.Len(t, report.Updated, 1)
	assert.Equal(t, gsProgram, report.Updated[0].ProgramName)
}

func TestSyncWindowPicksProgramsByPostDate(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	late := record("GS-23-000001", "WO-3001", "PLATE-01", 1)
	late.PostDateTime = postedAt.AddDate(1, 0, 0)
	h.source.put(late)

	report, err := h.service.SyncWindow(context.Background(), WindowRequest{
		From: postedAt.Add(-time.Hour),
		To:   postedAt.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, SyncModeWindow, report.Mode)
	require.Len(t, report.Created, 1)
	assert.Equal(t, gsProgram, report.Created[0].ProgramName)
}

func TestSyncWindowRejectsInvertedWindow(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.SyncWindow(context.Background(), WindowRequest{From: postedAt, To: postedAt.Add(-time.Hour)})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestSyncWindowReportsProgramsWithoutRows(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.source.list("EMPTY-1", postedAt)

	report, err := h.service.SyncWindow(context.Background(), WindowRequest{
		From: postedAt.Add(-time.Hour),
		To:   postedAt.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, report.Created, 1)
	assert.Equal(t, gsProgram, report.Created[0].ProgramName)
	assert.Equal(t, []string{"EMPTY-1"}, report.Empty)
	assert.Len(t, h.parts(t, h.program(t, gsProgram).ID), 3)
}

func TestSyncProgramsReportsProgramsWithoutRows(t *testing.T) {
	h := newHarness(t, gsRecords()...)

	report, err := h.service.SyncPrograms(context.Background(), ProgramNamesRequest{Names: []string{"EMPTY-1"}})
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, []string{"EMPTY-1"}, report.Empty)
}

func TestCreateStillRejectsProgramsWithoutRows(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.source.list("EMPTY-1", postedAt)

	_, err := h.service.CreatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram, "EMPTY-1"}})
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, ClassNotFound, werr.Class)
	assert.Equal(t, []string{"EMPTY-1"}, werr.Names)
}

func TestBlankProgramNamesAreValidationErrors(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	ctx := context.Background()
	blank := ProgramNamesRequest{Names: []string{" ", "\t"}}

	_, err := h.service.CreatePrograms(ctx, blank)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = h.service.UpdatePrograms(ctx, blank)
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = h.service.SyncPrograms(ctx, blank)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 0, h.source.calls)
}

func TestSyncRunLogsCarryTraceID(t *testing.T) {
	h := newHarness(t, gsRecords()...)

	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{Enabled: true, Exporter: "none", SamplingRate: 1}, "test", "dev", "test")
	require.NoError(t, err)
	defer tracer.Shutdown(context.Background())

	var buf bytes.Buffer
	service := NewService(h.store, h.source, WithTelemetry(&telemetry.Telemetry{
		Logger: telemetry.NewLoggerWithWriter(&buf, telemetry.LoggingConfig{Level: "info", Format: "json"}),
		Tracer: tracer,
		Events: h.events,
	}))

	report, err := service.CreatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
	require.NoError(t, err)

	var entry map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var e map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		if e["message"] == "Sync finished" {
			entry = e
		}
	}
	require.NotNil(t, entry, buf.String())
	assert.Equal(t, report.RunID, entry["sync_run_id"])
	assert.Len(t, entry["trace_id"], 32)
}
