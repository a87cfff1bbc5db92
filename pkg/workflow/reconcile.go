package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/nesting"
	"github.com/plasmareport/plasmareport/pkg/stores"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

// Sync modes, also used as metric and span labels.
const (
	SyncModeCreate   = "create"
	SyncModeUpdate   = "update"
	SyncModeWindow   = "window"
	SyncModePrograms = "programs"
)

// SyncReport describes what one reconciliation run wrote.
type SyncReport struct {
	RunID string `json:"run_id"`
	Mode  string `json:"mode"`

	Created []CreatedProgram `json:"created,omitempty"`
	Updated []ProgramChanges `json:"updated,omitempty"`
	Deleted []string         `json:"deleted,omitempty"`
	Skipped []SkippedProgram `json:"skipped,omitempty"`

	// Empty lists programs the source listed without any part rows. Only
	// window and name syncs report them; CreatePrograms fails instead.
	Empty []string `json:"empty,omitempty"`

	OrdersCreated []string       `json:"orders_created,omitempty"`
	OrdersUpdated []OrderChanges `json:"orders_updated,omitempty"`
	OrdersDeleted int64          `json:"orders_deleted,omitempty"`
}

// CreatedProgram is a program inserted by the create path.
type CreatedProgram struct {
	ProgramID   int64  `json:"program_id"`
	ProgramName string `json:"program_name"`
	Parts       int    `json:"parts"`
}

// ProgramChanges is the change-set applied to one eligible program.
type ProgramChanges struct {
	ProgramID   int64               `json:"program_id"`
	ProgramName string              `json:"program_name"`
	Fields      []model.FieldChange `json:"fields,omitempty"`
	Changed     []PartChanges       `json:"changed,omitempty"`
	Added       []model.PartKey     `json:"added,omitempty"`
	Removed     []model.PartKey     `json:"removed,omitempty"`
}

// Empty reports whether nothing was written for the program.
func (c ProgramChanges) Empty() bool {
	return len(c.Fields) == 0 && len(c.Changed) == 0 && len(c.Added) == 0 && len(c.Removed) == 0
}

// PartChanges lists the differing fields of one part.
type PartChanges struct {
	PartID int64               `json:"part_id"`
	Key    model.PartKey       `json:"key"`
	Fields []model.FieldChange `json:"fields"`
}

// OrderChanges lists the differing fields of one work order.
type OrderChanges struct {
	WONumber string              `json:"wo_number"`
	Fields   []model.FieldChange `json:"fields"`
}

// SkippedProgram is a requested program reconciliation left alone because
// work on it already started.
type SkippedProgram struct {
	ProgramID   int64               `json:"program_id"`
	ProgramName string              `json:"program_name"`
	Status      model.ProgramStatus `json:"status"`
}

// CreatePrograms imports new programs with their orders and parts. The
// batch is rejected with Conflict if any name already exists locally and
// with NotFound if the source does not know a name.
func (s *Service) CreatePrograms(ctx context.Context, req ProgramNamesRequest) (*SyncReport, error) {
	return s.syncRun(ctx, SyncModeCreate, func(ctx context.Context, report *SyncReport) error {
		names, err := s.checkNames("create_programs", req)
		if err != nil {
			return err
		}
		return s.createPrograms(ctx, report, names, true)
	})
}

// UpdatePrograms re-reads existing programs from the source and applies the
// differences. Programs past UNASSIGNED are reported as skipped.
func (s *Service) UpdatePrograms(ctx context.Context, req ProgramNamesRequest) (*SyncReport, error) {
	return s.syncRun(ctx, SyncModeUpdate, func(ctx context.Context, report *SyncReport) error {
		names, err := s.checkNames("update_programs", req)
		if err != nil {
			return err
		}
		return s.updatePrograms(ctx, report, names)
	})
}

// SyncPrograms creates the named programs missing locally and updates the
// rest.
func (s *Service) SyncPrograms(ctx context.Context, req ProgramNamesRequest) (*SyncReport, error) {
	return s.syncRun(ctx, SyncModePrograms, func(ctx context.Context, report *SyncReport) error {
		names, err := s.checkNames("sync_programs", req)
		if err != nil {
			return err
		}
		return s.syncNames(ctx, report, names)
	})
}

// SyncWindow lists the programs posted in [From, To] and syncs them.
func (s *Service) SyncWindow(ctx context.Context, req WindowRequest) (*SyncReport, error) {
	return s.syncRun(ctx, SyncModeWindow, func(ctx context.Context, report *SyncReport) error {
		if err := s.checkRequest("sync_window", req); err != nil {
			return err
		}
		summaries, err := s.fetchProgramNames(ctx, req.From, req.To)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(summaries))
		for _, sum := range summaries {
			names = append(names, sum.ProgramName)
		}
		return s.syncNames(ctx, report, uniqueNames(names))
	})
}

// syncRun wraps one reconciliation run with its id, span, metrics and events.
func (s *Service) syncRun(ctx context.Context, mode string, fn func(ctx context.Context, report *SyncReport) error) (*SyncReport, error) {
	report := &SyncReport{RunID: uuid.NewString(), Mode: mode}
	ctx, span := s.tracer.StartSyncSpan(ctx, report.RunID, mode)
	defer span.End()

	logger := s.logger.With().Str("sync_run_id", report.RunID).Str("mode", mode).Logger()
	if traceID := telemetry.TraceID(ctx); traceID != "" {
		logger = logger.With().Str("trace_id", traceID).Logger()
	}
	timer := telemetry.NewTimer()

	err := s.run(ctx, "sync_"+mode, func(ctx context.Context) error {
		return fn(ctx, report)
	}, telemetry.AttrSyncRunID.String(report.RunID), telemetry.AttrSyncMode.String(mode))

	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordSyncRun(mode, "failed", timer.Duration())
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeSyncFailed,
			Actor:   "sync",
			RunID:   report.RunID,
			Message: err.Error(),
			Level:   telemetry.EventLevelError,
			Data:    map[string]interface{}{"mode": mode, "class": string(ClassOf(err))},
		})
		return nil, err
	}

	telemetry.RecordSuccess(span)
	s.metrics.RecordSyncRun(mode, "succeeded", timer.Duration())
	s.recordSyncChanges(report)
	s.publishSyncEvents(report)

	logger.Info().
		Int("created", len(report.Created)).
		Int("updated", len(report.Updated)).
		Int("deleted", len(report.Deleted)).
		Int("skipped", len(report.Skipped)).
		Int64("orders_deleted", report.OrdersDeleted).
		Dur("elapsed", timer.Duration()).
		Msg("Sync finished")

	return report, nil
}

// syncNames creates the missing programs, then updates the present ones.
// Unknown programs without part rows in the source are reported as empty.
func (s *Service) syncNames(ctx context.Context, report *SyncReport, names []string) error {
	if len(names) == 0 {
		return nil
	}

	existing, err := s.programsByNames(ctx, names)
	if err != nil {
		return err
	}

	var missing, present []string
	for _, name := range names {
		if _, ok := existing[name]; ok {
			present = append(present, name)
		} else {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		if err := s.createPrograms(ctx, report, missing, false); err != nil {
			return err
		}
	}
	if len(present) > 0 {
		if err := s.updatePrograms(ctx, report, present); err != nil {
			return err
		}
	}
	return nil
}

// createPrograms inserts the named programs. With strict set, a name the
// source returns no rows for fails the batch with NotFound; otherwise it is
// reported in report.Empty and the rest are created.
func (s *Service) createPrograms(ctx context.Context, report *SyncReport, names []string, strict bool) error {
	const op = "create_programs"

	existing, err := s.programsByNames(ctx, names)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return existsConflict(op, existing)
	}

	records, err := s.fetchRecords(ctx, names)
	if err != nil {
		return err
	}
	proj := project(records, s.logger)

	var missing []string
	for _, name := range names {
		if _, ok := proj.programs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		if strict {
			return notFoundNames(op, "programs in nesting source", missing)
		}
		s.logger.Warn().Strs("programs", missing).Msg("Source lists programs without part rows")
		report.Empty = append(report.Empty, missing...)
		names = withoutNames(names, missing)
		if len(names) == 0 {
			return nil
		}
	}

	var (
		created       []CreatedProgram
		ordersCreated []string
	)
	err = s.store.WithTx(ctx, func(tx stores.Tx) error {
		again, err := tx.ProgramsByNames(ctx, names)
		if err != nil {
			return err
		}
		if len(again) > 0 {
			return existsConflict(op, indexByName(again))
		}

		orderIDs, inserted, _, err := s.resolveOrders(ctx, tx, proj, proj.ordersOf(names), false)
		if err != nil {
			return err
		}
		ordersCreated = inserted

		for _, name := range names {
			program := &model.Program{
				ProgramData: proj.programs[name],
				Status:      model.ProgramStatusCreated,
				Priority:    model.DefaultPriority,
			}
			if err := tx.InsertProgram(ctx, program); err != nil {
				return err
			}

			keys := proj.partsByPG[name]
			for _, key := range keys {
				if err := insertPart(ctx, tx, program.ID, orderIDs, proj.parts[key]); err != nil {
					return err
				}
			}
			created = append(created, CreatedProgram{ProgramID: program.ID, ProgramName: name, Parts: len(keys)})
		}
		return nil
	})
	if err != nil {
		return err
	}

	report.Created = append(report.Created, created...)
	report.OrdersCreated = append(report.OrdersCreated, ordersCreated...)
	return nil
}

func (s *Service) updatePrograms(ctx context.Context, report *SyncReport, names []string) error {
	const op = "update_programs"

	local, err := s.programsByNames(ctx, names)
	if err != nil {
		return err
	}

	var unknown, eligible []string
	for _, name := range names {
		p, ok := local[name]
		switch {
		case !ok:
			unknown = append(unknown, name)
		case p.Status.IsSyncable():
			eligible = append(eligible, name)
		}
	}
	if len(unknown) > 0 {
		return notFoundNames(op, "programs", unknown)
	}

	var skipped []SkippedProgram
	for _, name := range names {
		if p := local[name]; !p.Status.IsSyncable() {
			skipped = append(skipped, skippedOf(p))
		}
	}
	if len(eligible) == 0 {
		report.Skipped = append(report.Skipped, skipped...)
		return nil
	}

	records, err := s.fetchRecords(ctx, eligible)
	if err != nil {
		return err
	}
	proj := project(records, s.logger)

	var (
		updated       []ProgramChanges
		deleted       []string
		ordersCreated []string
		ordersUpdated []OrderChanges
		ordersDeleted int64
	)
	err = s.store.WithTx(ctx, func(tx stores.Tx) error {
		programs, err := tx.ProgramsByNames(ctx, eligible)
		if err != nil {
			return err
		}

		var live []*model.Program
		for _, p := range programs {
			// Work may have started since the first read.
			if !p.Status.IsSyncable() {
				skipped = append(skipped, skippedOf(p))
				continue
			}
			live = append(live, p)
		}
		if len(live) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(live))
		var returned []string
		for _, p := range live {
			ids = append(ids, p.ID)
			if _, ok := proj.programs[p.ProgramName]; ok {
				returned = append(returned, p.ProgramName)
			}
		}

		localParts, err := tx.PartsByProgramIDs(ctx, ids)
		if err != nil {
			return err
		}
		partsByProgram := make(map[int64][]*model.Part, len(live))
		touchedOrders := make(map[int64]struct{})
		for _, part := range localParts {
			partsByProgram[part.ProgramID] = append(partsByProgram[part.ProgramID], part)
			touchedOrders[part.WorkOrderID] = struct{}{}
		}

		orderIDs, inserted, orderChanges, err := s.resolveOrders(ctx, tx, proj, proj.ordersOf(returned), true)
		if err != nil {
			return err
		}
		ordersCreated, ordersUpdated = inserted, orderChanges

		for _, p := range live {
			remote, ok := proj.programs[p.ProgramName]
			if !ok {
				if err := tx.DeleteProgram(ctx, p.ID); err != nil {
					return err
				}
				deleted = append(deleted, p.ProgramName)
				continue
			}

			changes, err := s.syncProgram(ctx, tx, p, remote, partsByProgram[p.ID], proj, orderIDs)
			if err != nil {
				return err
			}
			updated = append(updated, changes)
		}

		orphans := make([]int64, 0, len(touchedOrders))
		for id := range touchedOrders {
			orphans = append(orphans, id)
		}
		ordersDeleted, err = tx.DeleteOrphanOrders(ctx, orphans)
		return err
	})
	if err != nil {
		return err
	}

	report.Updated = append(report.Updated, updated...)
	report.Deleted = append(report.Deleted, deleted...)
	report.Skipped = append(report.Skipped, skipped...)
	report.OrdersCreated = append(report.OrdersCreated, ordersCreated...)
	report.OrdersUpdated = append(report.OrdersUpdated, ordersUpdated...)
	report.OrdersDeleted += ordersDeleted
	return nil
}

// syncProgram applies the program field changes and the part change-set of
// one eligible program.
func (s *Service) syncProgram(
	ctx context.Context,
	tx stores.Tx,
	local *model.Program,
	remote model.ProgramData,
	localParts []*model.Part,
	proj *projection,
	orderIDs map[string]int64,
) (ProgramChanges, error) {
	changes := ProgramChanges{ProgramID: local.ID, ProgramName: local.ProgramName}

	changes.Fields = diffProgram(local.ProgramData, remote)
	if err := tx.UpdateProgramFields(ctx, local.ID, changes.Fields); err != nil {
		return changes, err
	}

	seen := make(map[model.PartKey]struct{}, len(localParts))
	for _, part := range localParts {
		key := part.Key()
		seen[key] = struct{}{}

		fetched, ok := proj.parts[key]
		if !ok {
			if err := tx.DeletePart(ctx, part.ID); err != nil {
				return changes, err
			}
			changes.Removed = append(changes.Removed, key)
			continue
		}

		fields := diffPart(part.PartData, fetched)
		if len(fields) == 0 {
			continue
		}
		if err := tx.UpdatePartFields(ctx, part.ID, fields); err != nil {
			return changes, err
		}
		changes.Changed = append(changes.Changed, PartChanges{PartID: part.ID, Key: key, Fields: fields})
	}

	for _, key := range proj.partsByPG[local.ProgramName] {
		if _, ok := seen[key]; ok {
			continue
		}
		if err := insertPart(ctx, tx, local.ID, orderIDs, proj.parts[key]); err != nil {
			return changes, err
		}
		changes.Added = append(changes.Added, key)
	}

	if !changes.Empty() {
		s.logger.Debug().
			Str("program_name", local.ProgramName).
			Int("fields", len(changes.Fields)).
			Int("changed", len(changes.Changed)).
			Int("added", len(changes.Added)).
			Int("removed", len(changes.Removed)).
			Msg("Program changed in nesting source")
	}
	return changes, nil
}

// resolveOrders maps order numbers to local ids, inserting the missing
// orders. With update set, existing orders take the fetched field values.
func (s *Service) resolveOrders(
	ctx context.Context,
	tx stores.Tx,
	proj *projection,
	numbers []string,
	update bool,
) (map[string]int64, []string, []OrderChanges, error) {
	ids := make(map[string]int64, len(numbers))
	if len(numbers) == 0 {
		return ids, nil, nil, nil
	}

	existing, err := tx.OrdersByNumbers(ctx, numbers)
	if err != nil {
		return nil, nil, nil, err
	}

	var changed []OrderChanges
	for _, o := range existing {
		ids[o.WONumber] = o.ID
		if !update {
			continue
		}
		fields := diffOrder(o.OrderData, proj.orders[o.WONumber])
		if len(fields) == 0 {
			continue
		}
		if err := tx.UpdateOrderFields(ctx, o.ID, fields); err != nil {
			return nil, nil, nil, err
		}
		changed = append(changed, OrderChanges{WONumber: o.WONumber, Fields: fields})
	}

	var inserted []string
	for _, number := range numbers {
		if _, ok := ids[number]; ok {
			continue
		}
		order := &model.WorkOrder{OrderData: proj.orders[number], Status: model.WOStatusCreated}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return nil, nil, nil, err
		}
		ids[number] = order.ID
		inserted = append(inserted, number)
	}

	return ids, inserted, changed, nil
}

func insertPart(ctx context.Context, tx stores.Tx, programID int64, orderIDs map[string]int64, data model.PartData) error {
	orderID, ok := orderIDs[data.WONumber]
	if !ok {
		return fmt.Errorf("work order %s of part %s was not resolved", data.WONumber, data.PartName)
	}
	return tx.InsertPart(ctx, &model.Part{
		ProgramID:   programID,
		WorkOrderID: orderID,
		PartData:    data,
		Status:      model.PartStatusUnassigned,
	})
}

func (s *Service) fetchRecords(ctx context.Context, names []string) ([]nesting.Record, error) {
	if s.source == nil {
		return nil, &Error{Class: ClassStorage, Op: "fetch_records", Message: "nesting source is not configured"}
	}

	var records []nesting.Record
	err := telemetry.ObserveSourceCall(ctx, s.tracer, s.metrics, "records", func(ctx context.Context) error {
		var err error
		records, err = nesting.Fetch(ctx, func(ctx context.Context) ([]nesting.Record, error) {
			return s.source.Records(ctx, names)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nesting records: %w", err)
	}
	return records, nil
}

func (s *Service) fetchProgramNames(ctx context.Context, from, to time.Time) ([]nesting.ProgramSummary, error) {
	if s.source == nil {
		return nil, &Error{Class: ClassStorage, Op: "fetch_program_names", Message: "nesting source is not configured"}
	}

	var summaries []nesting.ProgramSummary
	err := telemetry.ObserveSourceCall(ctx, s.tracer, s.metrics, "program_names", func(ctx context.Context) error {
		var err error
		summaries, err = nesting.Fetch(ctx, func(ctx context.Context) ([]nesting.ProgramSummary, error) {
			return s.source.ProgramNames(ctx, from, to)
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list nesting programs: %w", err)
	}
	return summaries, nil
}

// programsByNames reads the named programs in a short transaction of its own.
func (s *Service) programsByNames(ctx context.Context, names []string) (map[string]*model.Program, error) {
	var programs []*model.Program
	err := s.store.WithTx(ctx, func(tx stores.Tx) error {
		var err error
		programs, err = tx.ProgramsByNames(ctx, names)
		return err
	})
	if err != nil {
		return nil, err
	}
	return indexByName(programs), nil
}

func indexByName(programs []*model.Program) map[string]*model.Program {
	out := make(map[string]*model.Program, len(programs))
	for _, p := range programs {
		out[p.ProgramName] = p
	}
	return out
}

func existsConflict(op string, existing map[string]*model.Program) *Error {
	names := make([]string, 0, len(existing))
	for name := range existing {
		names = append(names, name)
	}
	err := conflictError(op, "programs already exist")
	err.Names = sortedStrings(names)
	return err
}

func skippedOf(p *model.Program) SkippedProgram {
	return SkippedProgram{ProgramID: p.ID, ProgramName: p.ProgramName, Status: p.Status}
}

func (s *Service) recordSyncChanges(r *SyncReport) {
	var changedPrograms, changed, added, removed int
	for _, u := range r.Updated {
		if !u.Empty() {
			changedPrograms++
		}
		changed += len(u.Changed)
		added += len(u.Added)
		removed += len(u.Removed)
	}
	parts := 0
	for _, c := range r.Created {
		parts += c.Parts
	}

	s.metrics.RecordSyncChanges("program", "created", len(r.Created))
	s.metrics.RecordSyncChanges("program", "updated", changedPrograms)
	s.metrics.RecordSyncChanges("program", "deleted", len(r.Deleted))
	s.metrics.RecordSyncChanges("program", "skipped", len(r.Skipped))
	s.metrics.RecordSyncChanges("part", "created", parts)
	s.metrics.RecordSyncChanges("part", "changed", changed)
	s.metrics.RecordSyncChanges("part", "added", added)
	s.metrics.RecordSyncChanges("part", "removed", removed)
	s.metrics.RecordSyncChanges("order", "created", len(r.OrdersCreated))
	s.metrics.RecordSyncChanges("order", "updated", len(r.OrdersUpdated))
	s.metrics.RecordSyncChanges("order", "deleted", int(r.OrdersDeleted))
}

func (s *Service) publishSyncEvents(r *SyncReport) {
	for _, c := range r.Created {
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeProgramCreated,
			Actor:   "sync",
			Target:  programTarget(c.ProgramID),
			RunID:   r.RunID,
			Message: fmt.Sprintf("Program %s created with %d parts", c.ProgramName, c.Parts),
			Data:    map[string]interface{}{"program_name": c.ProgramName, "parts": c.Parts},
		})
	}
	for _, u := range r.Updated {
		if u.Empty() {
			continue
		}
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeProgramUpdated,
			Actor:   "sync",
			Target:  programTarget(u.ProgramID),
			RunID:   r.RunID,
			Message: fmt.Sprintf("Program %s updated from nesting source", u.ProgramName),
			Data: map[string]interface{}{
				"program_name": u.ProgramName,
				"fields":       len(u.Fields),
				"changed":      len(u.Changed),
				"added":        len(u.Added),
				"removed":      len(u.Removed),
			},
		})
	}
	for _, name := range r.Deleted {
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeProgramDeleted,
			Actor:   "sync",
			RunID:   r.RunID,
			Message: fmt.Sprintf("Program %s vanished from nesting source", name),
			Level:   telemetry.EventLevelWarning,
			Data:    map[string]interface{}{"program_name": name},
		})
	}
	s.publish(telemetry.Event{
		Type:    telemetry.EventTypeSyncCompleted,
		Actor:   "sync",
		RunID:   r.RunID,
		Message: fmt.Sprintf("Sync %s finished", r.Mode),
		Data: map[string]interface{}{
			"mode":           r.Mode,
			"created":        len(r.Created),
			"updated":        len(r.Updated),
			"deleted":        len(r.Deleted),
			"skipped":        len(r.Skipped),
			"orders_created": len(r.OrdersCreated),
			"orders_deleted": r.OrdersDeleted,
		},
	})
}

func programTarget(id int64) string {
	return fmt.Sprintf("program:%d", id)
}
