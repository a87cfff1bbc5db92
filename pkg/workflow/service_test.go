package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/nesting"
	"github.com/plasmareport/plasmareport/pkg/stores"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

// fakeSource is an in-memory nesting database keyed by program name.
type fakeSource struct {
	mu      sync.Mutex
	records map[string][]nesting.Record
	err     error
	calls   int

	// listed holds programs the source lists without returning any rows.
	listed []nesting.ProgramSummary
}

func newFakeSource(records ...nesting.Record) *fakeSource {
	f := &fakeSource{records: make(map[string][]nesting.Record)}
	f.put(records...)
	return f
}

func (f *fakeSource) put(records ...nesting.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		f.records[r.ProgramName] = append(f.records[r.ProgramName], r)
	}
}

// replace swaps every row of the program for the given ones.
func (f *fakeSource) replace(program string, records ...nesting.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[program] = records
}

// list makes the source report a program that has no part rows.
func (f *fakeSource) list(program string, posted time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, nesting.ProgramSummary{ProgramName: program, PostDateTime: posted})
}

func (f *fakeSource) drop(program string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, program)
}

func (f *fakeSource) ProgramNames(_ context.Context, from, to time.Time) ([]nesting.ProgramSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	var out []nesting.ProgramSummary
	for _, sum := range f.listed {
		if !sum.PostDateTime.Before(from) && !sum.PostDateTime.After(to) {
			out = append(out, sum)
		}
	}
	for name, rows := range f.records {
		if len(rows) == 0 {
			continue
		}
		posted := rows[0].PostDateTime
		if posted.Before(from) || posted.After(to) {
			continue
		}
		out = append(out, nesting.ProgramSummary{ProgramName: name, PostDateTime: posted})
	}
	return out, nil
}

func (f *fakeSource) Records(_ context.Context, names []string) ([]nesting.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	var out []nesting.Record
	for _, name := range names {
		out = append(out, f.records[name]...)
	}
	return out, nil
}

var postedAt = time.Date(2022, 11, 14, 9, 15, 0, 0, time.UTC)

// record builds one nesting row of program pg for part on order wo.
func record(pg, wo, part string, qty int64) nesting.Record {
	return nesting.Record{
		ProgramName:        pg,
		RepeatIDProgram:    1,
		UsedArea:           3.42,
		ScrapFraction:      0.18,
		MachineName:        "Kjellberg HiFocus 280i",
		CuttingTimeProgram: decimal.RequireFromString("41.5"),
		PostDateTime:       postedAt,
		Material:           "09G2S",
		Thickness:          12,
		SheetLength:        6000,
		SheetWidth:         1500,
		ArchivePacketID:    7781,
		TimeLineID:         3,
		PostedByUserID:     17,
		PierceQtyProgram:   64,
		UserName:           "ivanov",
		UserEMail:          "ivanov@example.com",

		WONumber:     wo,
		CustomerName: "Uralmash",
		WODate:       time.Date(2022, 11, 1, 0, 0, 0, 0, time.UTC),
		OrderDate:    time.Date(2022, 10, 28, 0, 0, 0, 0, time.UTC),
		DateCreated:  time.Date(2022, 11, 1, 10, 0, 0, 0, time.UTC),

		PartName:         part,
		QtyInProcess:     qty,
		PartLength:       420.5,
		PartWidth:        180,
		TrueArea:         0.061,
		RectArea:         0.075,
		TrueWeight:       5.7,
		RectWeight:       7.1,
		CuttingTimePart:  decimal.RequireFromString("0.62"),
		CuttingLength:    1530,
		PierceQtyPart:    4,
		NestedArea:       0.08,
		TotalCuttingTime: decimal.RequireFromString("6.2"),
		MasterPartQty:    qty,
		WOState:          "Open",
		DueDate:          time.Date(2022, 12, 15, 0, 0, 0, 0, time.UTC),
		RevisionNumber:   "A",
		PKPIP:            "PIP-" + part,
		SourceFileName:   part + ".dxf",
	}
}

const gsProgram = "GS-22-141862"

// gsRecords is a program with three parts spread over two work orders.
func gsRecords() []nesting.Record {
	return []nesting.Record{
		record(gsProgram, "WO-1001", "BRACKET-01", 10),
		record(gsProgram, "WO-1001", "FLANGE-02", 10),
		record(gsProgram, "WO-1002", "RIB-03", 5),
	}
}

type harness struct {
	store   *stores.SQLiteStore
	source  *fakeSource
	events  *telemetry.EventPublisher
	service *Service
	got     []telemetry.Event
}

func newHarness(t *testing.T, records ...nesting.Record) *harness {
	t.Helper()

	store, err := stores.NewSQLiteStore(stores.Config{
		Path: filepath.Join(t.TempDir(), "plasma.db"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Init(ctx))
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	events, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	require.NoError(t, err)

	h := &harness{store: store, source: newFakeSource(records...), events: events}
	events.Subscribe(func(e telemetry.Event) { h.got = append(h.got, e) }, nil)

	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "test"})
	require.NoError(t, err)

	h.service = NewService(store, h.source,
		WithLogger(zerolog.Nop()),
		WithEvents(events),
		WithMetrics(metrics),
	)
	return h
}

func (h *harness) eventTypes() []string {
	types := make([]string, 0, len(h.got))
	for _, e := range h.got {
		types = append(types, e.Type)
	}
	return types
}

func (h *harness) program(t *testing.T, name string) *model.Program {
	t.Helper()
	var program *model.Program
	err := h.store.WithTx(context.Background(), func(tx stores.Tx) error {
		programs, err := tx.ProgramsByNames(context.Background(), []string{name})
		if err != nil {
			return err
		}
		if len(programs) == 0 {
			return stores.ErrNotFound
		}
		program = programs[0]
		return nil
	})
	require.NoError(t, err)
	return program
}

func (h *harness) parts(t *testing.T, programID int64) []*model.Part {
	t.Helper()
	var parts []*model.Part
	err := h.store.WithTx(context.Background(), func(tx stores.Tx) error {
		var err error
		parts, err = tx.PartsByProgramIDs(context.Background(), []int64{programID})
		return err
	})
	require.NoError(t, err)
	return parts
}

func (h *harness) orders(t *testing.T, numbers ...string) []*model.WorkOrder {
	t.Helper()
	var orders []*model.WorkOrder
	err := h.store.WithTx(context.Background(), func(tx stores.Tx) error {
		var err error
		orders, err = tx.OrdersByNumbers(context.Background(), numbers)
		return err
	})
	require.NoError(t, err)
	return orders
}

func (h *harness) assignments(t *testing.T, programID int64) []int64 {
	t.Helper()
	var workers []int64
	err := h.store.WithTx(context.Background(), func(tx stores.Tx) error {
		list, err := tx.AssignmentsByProgramIDs(context.Background(), []int64{programID})
		if err != nil {
			return err
		}
		for _, a := range list {
			workers = append(workers, a.WorkerID)
		}
		return nil
	})
	require.NoError(t, err)
	return workers
}

func (h *harness) worker(t *testing.T, name string) *model.Worker {
	t.Helper()
	w, err := h.service.RegisterWorker(context.Background(), RegisterWorkerRequest{Name: name, Job: model.JobOperator})
	require.NoError(t, err)
	return w
}

// createGS imports the three-part program and returns it.
func (h *harness) createGS(t *testing.T) *model.Program {
	t.Helper()
	_, err := h.service.CreatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
	require.NoError(t, err)
	return h.program(t, gsProgram)
}

// calculating brings the program to CALCULATING through assign and claim.
func (h *harness) calculating(t *testing.T, program *model.Program) *model.Worker {
	t.Helper()
	ctx := context.Background()

	w := h.worker(t, "operator-"+program.ProgramName)
	_, err := h.service.AssignPrograms(ctx, AssignRequest{Items: []AssignmentItem{
		{ProgramID: program.ID, WorkerIDs: []int64{w.ID}},
	}})
	require.NoError(t, err)

	var partIDs []int64
	for _, p := range h.parts(t, program.ID) {
		partIDs = append(partIDs, p.ID)
	}
	_, err = h.service.ClaimParts(ctx, ClaimRequest{WorkerID: w.ID, PartIDs: partIDs})
	require.NoError(t, err)
	return w
}

func partByName(parts []*model.Part, name string) *model.Part {
	for _, p := range parts {
		if p.PartName == name {
			return p
		}
	}
	return nil
}

func TestNilSourceIsStorageError(t *testing.T) {
	h := newHarness(t)
	h.service.source = nil

	_, err := h.service.CreatePrograms(context.Background(), ProgramNamesRequest{Names: []string{"X"}})
	require.Error(t, err)
	require.True(t, IsStorage(err))
}

func TestSourceFailureIsStorageError(t *testing.T) {
	h := newHarness(t, gsRecords()...)
	h.source.err = errors.New("connection reset")

	_, err := h.service.CreatePrograms(context.Background(), ProgramNamesRequest{Names: []string{gsProgram}})
	require.Error(t, err)
	require.True(t, IsStorage(err))
	require.ErrorContains(t, err, "connection reset")
}
