package workflow

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

func TestProgramsForCalculation(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	program := h.createGS(t)

	_, err := h.service.ProgramsForCalculation(context.Background())
	require.Error(t, err)
	assert.True(t, IsEmptyResult(err))

	h.calculating(t, program)
	programs, err := h.service.ProgramsForCalculation(context.Background())
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, gsProgram, programs[0].ProgramName)
}

func TestProgramsByStatusOrdersByPriority(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.source.put(record("GS-22-141900", "WO-2001", "PLATE-01", 4))
	ctx := context.Background()

	_, err := h.service.CreatePrograms(ctx, ProgramNamesRequest{Names: []string{gsProgram, "GS-22-141900"}})
	require.NoError(t, err)
	low, high := h.program(t, gsProgram), h.program(t, "GS-22-141900")
	w := h.worker(t, "Petrov")

	_, err = h.service.AssignPrograms(ctx, AssignRequest{Items: []AssignmentItem{
		{ProgramID: low.ID, WorkerIDs: []int64{w.ID}, Priority: model.PriorityLow},
		{ProgramID: high.ID, WorkerIDs: []int64{w.ID}, Priority: model.PriorityHigh},
	}})
	require.NoError(t, err)

	programs, err := h.service.ProgramsByStatus(ctx, model.ProgramStatusAssigned)
	require.NoError(t, err)
	require.Len(t, programs, 2)
	assert.Equal(t, "GS-22-141900", programs[0].ProgramName)
	assert.Equal(t, gsProgram, programs[1].ProgramName)

	none, err := h.service.ProgramsByStatus(ctx, model.ProgramStatusDone)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = h.service.ProgramsByStatus(ctx, "CUTTING")
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestProgramParts(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	program := h.createGS(t)

	views, err := h.service.ProgramParts(context.Background(), []int64{program.ID})
	require.NoError(t, err)
	require.Len(t, views, 3)
	for _, v := range views {
		assert.Equal(t, gsProgram, v.ProgramName)
		assert.Equal(t, "Uralmash", v.CustomerName)
		assert.Equal(t, "09G2S", v.Material)
		assert.Nil(t, v.DoneByWorker)
	}

	_, err = h.service.ProgramParts(context.Background(), []int64{program.ID, 404})
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, ClassNotFound, werr.Class)
	assert.Equal(t, []int64{404}, werr.IDs)
}

func TestPartsReport(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.createGS(t)
	now := time.Now().UTC()

	views, err := h.service.PartsReport(context.Background(), WindowRequest{From: now.Add(-time.Hour), To: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, views, 3)

	_, err = h.service.PartsReport(context.Background(), WindowRequest{From: now.AddDate(-1, 0, 0), To: now.AddDate(0, -6, 0)})
	require.Error(t, err)
	assert.True(t, IsEmptyResult(err))
}

func TestWorkersAndCells(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.worker(t, "Petrov")
	h.worker(t, "Abramov")

	_, err := h.service.RegisterWorker(ctx, RegisterWorkerRequest{Name: "Petrov", Job: model.JobMaster})
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	_, err = h.service.RegisterWorker(ctx, RegisterWorkerRequest{Name: "Nobody", Job: "WELDER"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	require.NoError(t, h.service.DeactivateWorker(ctx, a.ID))
	err = h.service.DeactivateWorker(ctx, 999)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	all, err := h.service.Workers(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Abramov", all[0].Name)

	active, err := h.service.Workers(ctx, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Abramov", active[0].Name)

	_, err = h.service.RegisterStorageCell(ctx, RegisterCellRequest{Name: " B-02 "})
	require.NoError(t, err)
	_, err = h.service.RegisterStorageCell(ctx, RegisterCellRequest{Name: "A-01"})
	require.NoError(t, err)
	_, err = h.service.RegisterStorageCell(ctx, RegisterCellRequest{Name: "A-01"})
	assert.True(t, IsConflict(err))

	cells, err := h.service.StorageCells(ctx)
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "A-01", cells[0].Name)
	assert.Equal(t, "B-02", cells[1].Name)
}

func TestAuditSubscriberRecordsEvents(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.events.Subscribe(AuditSubscriber(h.store, zerolog.Nop()), nil)
	ctx := context.Background()

	program := h.createGS(t)
	w := h.worker(t, "Petrov")
	_, err := h.service.AssignPrograms(ctx, AssignRequest{Items: []AssignmentItem{
		{ProgramID: program.ID, WorkerIDs: []int64{w.ID}, Priority: model.PriorityMedium},
	}})
	require.NoError(t, err)

	entries, err := h.service.AuditTrail(ctx, telemetry.EventTypeProgramAssigned, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "master", entries[0].Actor)
	require.NotNil(t, entries[0].TargetID)
	assert.Equal(t, programTarget(program.ID), *entries[0].TargetID)

	require.NotNil(t, entries[0].Details)
	var details map[string]any
	require.NoError(t, json.Unmarshal([]byte(*entries[0].Details), &details))
	assert.Equal(t, "MEDIUM", details["priority"])

	created, err := h.service.AuditTrail(ctx, telemetry.EventTypeProgramCreated, 10, 0)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.NotNil(t, created[0].Details)
	assert.Contains(t, *created[0].Details, `"run_id"`)

	all, err := h.service.AuditTrail(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(all), 4)
}

func TestRefreshProgramGauges(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.createGS(t)
	require.NoError(t, h.service.RefreshProgramGauges(context.Background()))
}
