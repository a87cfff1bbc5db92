package commands

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/workflow"
)

func assertGolden(t *testing.T, name string, v any) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, v))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, buf.Bytes())
}

func TestSyncReportJSON(t *testing.T) {
	assertGolden(t, "sync_report", &workflow.SyncReport{
		RunID: "run-1",
		Mode:  workflow.SyncModePrograms,
		Created: []workflow.CreatedProgram{
			{ProgramID: 1, ProgramName: "GS-22-141862", Parts: 3},
		},
		Skipped: []workflow.SkippedProgram{
			{ProgramID: 2, ProgramName: "SP-3-142202", Status: model.ProgramStatusAssigned},
		},
		OrdersCreated: []string{"WO-1"},
	})
}

func TestAcceptResultJSON(t *testing.T) {
	assertGolden(t, "accept_result", &workflow.AcceptResult{
		Parts: []workflow.AcceptedPart{
			{PartID: 101, ProgramID: 12, Status: model.PartStatusDoneFull},
			{PartID: 102, ProgramID: 12, Status: model.PartStatusDonePartial},
		},
		ProgramsDone: []int64{12},
	})
}

func TestWriteTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, []string{"ID"}, nil))
	assert.Equal(t, "No results.\n", buf.String())
}

func TestWriteTableRendersCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, []string{"ID", "Name"}, [][]string{{"1", "A-01"}, {"2", "B-02"}}))
	out := buf.String()
	assert.Contains(t, out, "Name")
	assert.Contains(t, out, "A-01")
	assert.Contains(t, out, "B-02")
}
