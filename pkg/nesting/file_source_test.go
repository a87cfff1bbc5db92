package nesting

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonExport = `[
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

const yamlExport = `
- ProgramName: SP-3-142202
  RepeatIDProgram: 2
  UsedArea: 60
  ScrapFraction: 0.2
  MachineName: Plasma-2
  CuttingTimeProgram: "900.25"
  PostDateTime: "2024-03-05 10:00:00"
  Material: AISI 304
  Thickness: 2
  SheetLength: 2500
  SheetWidth: 1250
  ArchivePacketID: 8
  TimeLineID: 3
  Comment: rush
  PostedByUserID: 3
  PierceQtyProgram: 12
  UserName: tech
  UserFirstName: Anna
  UserLastName: Volkova
  UserEMail: t@example.com
  LastLoginDate: ""
  WONumber: WO-2
  CustomerName: Globex
  WODate: "2024-03-01"
  OrderDate: "2024-03-01"
  WOData1: ""
  WOData2: ""
  DateCreated: "2024-03-01"
  PartName: Bracket
  QtyInProcess: 25
  PartLength: 80
  PartWidth: 30
  TrueArea: 2000
  RectArea: 2400
  TrueWeight: 0.3
  RectWeight: 0.35
  CuttingTimePart: "4.5"
  CuttingLength: 220
  PierceQtyPart: 2
  NestedArea: 2500
  TotalCuttingTime: "112.5"
  MasterPartQty: 25
  WOState: Active
  DueDate: "2024-03-20"
  RevisionNumber: B
  PK_PIP: PIP-2
  SourceFileName: bracket.dxf
`

func newExportDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(jsonExport), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(yamlExport), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	return dir
}

func newTestFileSource(t *testing.T, dir string) *FileSource {
	t.Helper()
	contract, err := NewContract()
	require.NoError(t, err)
	src, err := NewFileSource(dir, contract, zerolog.Nop())
	require.NoError(t, err)
	return src
}

func TestFileSourceRecords(t *testing.T) {
	src := newTestFileSource(t, newExportDir(t))
	ctx := context.Background()

	records, err := src.Records(ctx, []string{"SP-3-142202", "unknown"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Bracket", rec.PartName)
	assert.Equal(t, int64(25), rec.QtyInProcess)
	assert.Equal(t, "rush", rec.Comment)
	assert.Nil(t, rec.LastLoginDate)
	assert.True(t, rec.PostDateTime.Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)))

	records, err = src.Records(ctx, []string{"GS-22-141862"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "12.34", records[0].CuttingTimePart.String())
}

func TestFileSourceProgramNames(t *testing.T) {
	src := newTestFileSource(t, newExportDir(t))

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	got, err := src.ProgramNames(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "GS-22-141862", got[0].ProgramName)
	assert.Equal(t, "SP-3-142202", got[1].ProgramName)

	got, err = src.ProgramNames(context.Background(), from.AddDate(0, 0, 2), to)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SP-3-142202", got[0].ProgramName)
}

func TestFileSourceRejectsBrokenExport(t *testing.T) {
	dir := newExportDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.json"), []byte(`[{"ProgramName": "X"}]`), 0o644))

	src := newTestFileSource(t, dir)
	_, err := src.Records(context.Background(), []string{"X"})
	require.Error(t, err)

	var cerr *ContractError
	assert.True(t, errors.As(err, &cerr))
}

func TestNewFileSourceRequiresDirectory(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "missing"), nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestFetch(t *testing.T) {
	got, err := Fetch(context.Background(), func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)
	cancel()

	_, err = Fetch(ctx, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
