package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

func TestStartProgram(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	program := h.createGS(t)
	assigned, other := h.worker(t, "Petrov"), h.worker(t, "Sidorov")
	ctx := context.Background()

	_, err := h.service.AssignPrograms(ctx, AssignRequest{Items: []AssignmentItem{
		{ProgramID: program.ID, WorkerIDs: []int64{assigned.ID}},
	}})
	require.NoError(t, err)

	err = h.service.StartProgram(ctx, StartRequest{ProgramID: program.ID, WorkerID: other.ID})
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	require.NoError(t, h.service.StartProgram(ctx, StartRequest{ProgramID: program.ID, WorkerID: assigned.ID}))
	started := h.program(t, gsProgram)
	assert.Equal(t, model.ProgramStatusActive, started.Status)
	assert.NotNil(t, started.StartedAt)
	assert.Contains(t, h.eventTypes(), telemetry.EventTypeProgramStarted)

	err = h.service.StartProgram(ctx, StartRequest{ProgramID: program.ID, WorkerID: assigned.ID})
	require.Error(t, err)
	assert.True(t, IsConflict(err), "an ACTIVE program cannot start again")
}

func TestStartUnknownProgramIsNotFound(t *testing.T) {
	h := newHarness(t)
	w := h.worker(t, "Petrov")

	err := h.service.StartProgram(context.Background(), StartRequest{ProgramID: 9, WorkerID: w.ID})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClaimPartsMovesProgramToCalculating(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	program := h.createGS(t)
	w := h.worker(t, "Petrov")
	ctx := context.Background()

	_, err := h.service.AssignPrograms(ctx, AssignRequest{Items: []AssignmentItem{
		{ProgramID: program.ID, WorkerIDs: []int64{w.ID}},
	}})
	require.NoError(t, err)

	bracket := partByName(h.parts(t, program.ID), "BRACKET-01")
	result, err := h.service.ClaimParts(ctx, ClaimRequest{WorkerID: w.ID, PartIDs: []int64{bracket.ID, bracket.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int64{bracket.ID}, result.PartIDs)
	assert.Equal(t, []int64{program.ID}, result.ProgramIDs)

	claimed := h.program(t, gsProgram)
	assert.Equal(t, model.ProgramStatusCalculating, claimed.Status)
	assert.NotNil(t, claimed.StartedAt, "passing through ACTIVE sets the start time")

	got := partByName(h.parts(t, program.ID), "BRACKET-01")
	require.NotNil(t, got.DoneByWorkerID)
	assert.Equal(t, w.ID, *got.DoneByWorkerID)

	// Claiming more parts of a CALCULATING program is fine.
	flange := partByName(h.parts(t, program.ID), "FLANGE-02")
	_, err = h.service.ClaimParts(ctx, ClaimRequest{WorkerID: w.ID, PartIDs: []int64{flange.ID}})
	require.NoError(t, err)

	assert.Subset(t, h.eventTypes(), []string{telemetry.EventTypePartsClaimed, telemetry.EventTypeProgramCalculated})
}

func TestClaimPartsOfUnassignedProgramIsConflict(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	program := h.createGS(t)
	w := h.worker(t, "Petrov")
	bracket := partByName(h.parts(t, program.ID), "BRACKET-01")

	_, err := h.service.ClaimParts(context.Background(), ClaimRequest{WorkerID: w.ID, PartIDs: []int64{bracket.ID}})
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Nil(t, partByName(h.parts(t, program.ID), "BRACKET-01").DoneByWorkerID)
}

func TestClaimPartsRequiresAssignedActiveWorker(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	program := h.createGS(t)
	assigned, stranger := h.worker(t, "Petrov"), h.worker(t, "Sidorov")
	ctx := context.Background()

	_, err := h.service.AssignPrograms(ctx, AssignRequest{Items: []AssignmentItem{
		{ProgramID: program.ID, WorkerIDs: []int64{assigned.ID}},
	}})
	require.NoError(t, err)
	bracket := partByName(h.parts(t, program.ID), "BRACKET-01")

	_, err = h.service.ClaimParts(ctx, ClaimRequest{WorkerID: stranger.ID, PartIDs: []int64{bracket.ID}})
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, ClassConflict, werr.Class)
	assert.Equal(t, []int64{program.ID}, werr.IDs)

	require.NoError(t, h.service.DeactivateWorker(ctx, stranger.ID))
	_, err = h.service.ClaimParts(ctx, ClaimRequest{WorkerID: stranger.ID, PartIDs: []int64{bracket.ID}})
	require.Error(t, err)
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, ClassConflict, werr.Class)
	assert.Equal(t, []int64{stranger.ID}, werr.IDs)

	assert.Equal(t, model.ProgramStatusAssigned, h.program(t, gsProgram).Status)
	assert.Nil(t, partByName(h.parts(t, program.ID), "BRACKET-01").DoneByWorkerID)
}

func TestClaimUnknownPartsAndWorker(t *testing.T) {
	h := newHarness(t)
	w := h.worker(t, "Petrov")

	_, err := h.service.ClaimParts(context.Background(), ClaimRequest{WorkerID: w.ID, PartIDs: []int64{31, 30}})
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, ClassNotFound, werr.Class)
	assert.Equal(t, []int64{30, 31}, werr.IDs)

	_, err = h.service.ClaimParts(context.Background(), ClaimRequest{WorkerID: 500, PartIDs: []int64{1}})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
