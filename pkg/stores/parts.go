package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/plasmareport/plasmareport/pkg/model"
)

// Part rows do not store the owner names, so every read joins them back in.
const partSelect = `
	SELECT p.id, p.program_id, p.work_order_id, p.part_name, pr.program_name, wo.wo_number,
		p.qty_in_process, p.part_length, p.part_width, p.true_area, p.rect_area,
		p.true_weight, p.rect_weight, p.cutting_time, p.cutting_length, p.pierce_qty,
		p.nested_area, p.total_cutting_time, p.master_part_qty, p.wo_state, p.due_date,
		p.revision_number, p.pk_pip, p.thickness, p.source_file_name, p.status,
		p.qty_fact, p.storage_cell_id, p.done_by_worker_id, p.created_at, p.updated_at
`

const partFrom = `
	FROM parts p
	JOIN programs pr ON pr.id = p.program_id
	JOIN work_orders wo ON wo.id = p.work_order_id
`

func partDest(p *model.Part) []any {
	return []any{
		&p.ID,
		&p.ProgramID,
		&p.WorkOrderID,
		&p.PartName,
		&p.ProgramName,
		&p.WONumber,
		&p.QtyInProcess,
		&p.PartLength,
		&p.PartWidth,
		&p.TrueArea,
		&p.RectArea,
		&p.TrueWeight,
		&p.RectWeight,
		&p.CuttingTime,
		&p.CuttingLength,
		&p.PierceQty,
		&p.NestedArea,
		&p.TotalCuttingTime,
		&p.MasterPartQty,
		&p.WOState,
		&p.DueDate,
		&p.RevisionNumber,
		&p.PKPIP,
		&p.Thickness,
		&p.SourceFileName,
		&p.Status,
		&p.QtyFact,
		&p.StorageCellID,
		&p.DoneByWorkerID,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

func (t *sqliteTx) queryParts(ctx context.Context, query string, args ...any) ([]*model.Part, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parts: %w", err)
	}
	defer rows.Close()

	parts := []*model.Part{}
	for rows.Next() {
		p := &model.Part{}
		if err := rows.Scan(partDest(p)...); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		parts = append(parts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parts: %w", err)
	}

	return parts, nil
}

// PartsByProgramIDs returns every part of the given programs.
func (t *sqliteTx) PartsByProgramIDs(ctx context.Context, programIDs []int64) ([]*model.Part, error) {
	if len(programIDs) == 0 {
		return []*model.Part{}, nil
	}
	query := partSelect + partFrom + " WHERE p.program_id IN (" + placeholders(len(programIDs)) + ") ORDER BY p.id"
	return t.queryParts(ctx, query, int64Args(programIDs)...)
}

// PartsByIDs returns the parts with the given ids.
func (t *sqliteTx) PartsByIDs(ctx context.Context, ids []int64) ([]*model.Part, error) {
	if len(ids) == 0 {
		return []*model.Part{}, nil
	}
	query := partSelect + partFrom + " WHERE p.id IN (" + placeholders(len(ids)) + ") ORDER BY p.id"
	return t.queryParts(ctx, query, int64Args(ids)...)
}

// InsertPart inserts a part. ProgramID and WorkOrderID must already be resolved.
func (t *sqliteTx) InsertPart(ctx context.Context, p *model.Part) error {
	query := `
		INSERT INTO parts (
			program_id, work_order_id, storage_cell_id, done_by_worker_id, part_name,
			qty_in_process, part_length, part_width, true_area, rect_area, true_weight,
			rect_weight, cutting_time, cutting_length, pierce_qty, nested_area,
			total_cutting_time, master_part_qty, wo_state, due_date, revision_number,
			pk_pip, thickness, source_file_name, status, qty_fact, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := t.now()
	if p.Status == "" {
		p.Status = model.PartStatusUnassigned
	}

	result, err := t.tx.ExecContext(ctx, query,
		p.ProgramID,
		p.WorkOrderID,
		p.StorageCellID,
		p.DoneByWorkerID,
		p.PartName,
		p.QtyInProcess,
		p.PartLength,
		p.PartWidth,
		p.TrueArea,
		p.RectArea,
		p.TrueWeight,
		p.RectWeight,
		p.CuttingTime,
		p.CuttingLength,
		p.PierceQty,
		p.NestedArea,
		p.TotalCuttingTime,
		p.MasterPartQty,
		p.WOState,
		p.DueDate.UTC(),
		p.RevisionNumber,
		p.PKPIP,
		p.Thickness,
		p.SourceFileName,
		p.Status,
		p.QtyFact,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert part %s: %w", p.PartName, checkUnique(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get part id: %w", err)
	}

	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdatePartFields writes the given field changes to one part.
func (t *sqliteTx) UpdatePartFields(ctx context.Context, id int64, changes []model.FieldChange) error {
	return t.updateFields(ctx, "parts", partColumns, id, changes)
}

// DeletePart deletes a part.
func (t *sqliteTx) DeletePart(ctx context.Context, id int64) error {
	return t.execOne(ctx, "part", id, `DELETE FROM parts WHERE id = ?`, id)
}

// MarkPartsAssigned moves the UNASSIGNED parts of the given programs to ASSIGNED.
func (t *sqliteTx) MarkPartsAssigned(ctx context.Context, programIDs []int64) (int64, error) {
	if len(programIDs) == 0 {
		return 0, nil
	}

	query := `
		UPDATE parts SET status = ?, updated_at = ?
		WHERE status = ? AND program_id IN (` + placeholders(len(programIDs)) + `)
	`

	args := append([]any{string(model.PartStatusAssigned), t.now(), string(model.PartStatusUnassigned)}, int64Args(programIDs)...)
	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark parts assigned: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// UpdatePartQuantity records the accepted quantity and completion status of a
// part. A nil storage cell leaves the current cell untouched.
func (t *sqliteTx) UpdatePartQuantity(ctx context.Context, id int64, qtyFact int64, status model.PartStatus, storageCellID *int64) error {
	query := `
		UPDATE parts
		SET qty_fact = ?, status = ?, storage_cell_id = COALESCE(?, storage_cell_id), updated_at = ?
		WHERE id = ?
	`
	return t.execOne(ctx, "part", id, query, qtyFact, string(status), storageCellID, t.now(), id)
}

// SetPartProducer records the worker who produced the part.
func (t *sqliteTx) SetPartProducer(ctx context.Context, id int64, workerID int64) error {
	query := `UPDATE parts SET done_by_worker_id = ?, updated_at = ? WHERE id = ?`
	return t.execOne(ctx, "part", id, query, workerID, t.now(), id)
}

const partViewSelect = partSelect + `,
		pr.status, pr.priority, pr.material, pr.machine_name, wo.customer_name,
		sc.name, w.name
` + partFrom + `
	LEFT JOIN storage_cells sc ON sc.id = p.storage_cell_id
	LEFT JOIN workers w ON w.id = p.done_by_worker_id
`

func (t *sqliteTx) queryPartViews(ctx context.Context, query string, args ...any) ([]model.PartView, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query part views: %w", err)
	}
	defer rows.Close()

	views := []model.PartView{}
	for rows.Next() {
		var v model.PartView
		dest := append(partDest(&v.Part),
			&v.ProgramStatus,
			&v.ProgramPriority,
			&v.Material,
			&v.MachineName,
			&v.CustomerName,
			&v.StorageCellName,
			&v.DoneByWorker,
		)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan part view: %w", err)
		}
		v.ProgramName = v.Part.ProgramName
		v.WONumber = v.Part.WONumber
		views = append(views, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating part views: %w", err)
	}

	return views, nil
}

// PartViewsByProgramIDs returns the flattened part projection for the programs.
func (t *sqliteTx) PartViewsByProgramIDs(ctx context.Context, programIDs []int64) ([]model.PartView, error) {
	if len(programIDs) == 0 {
		return []model.PartView{}, nil
	}
	query := partViewSelect + " WHERE p.program_id IN (" + placeholders(len(programIDs)) + ") ORDER BY pr.program_name, p.part_name, p.id"
	return t.queryPartViews(ctx, query, int64Args(programIDs)...)
}

// PartViewsCreatedBetween returns the flattened part projection for parts
// created within [from, to].
func (t *sqliteTx) PartViewsCreatedBetween(ctx context.Context, from, to time.Time) ([]model.PartView, error) {
	query := partViewSelect + " WHERE p.created_at BETWEEN ? AND ? ORDER BY p.created_at, p.id"
	return t.queryPartViews(ctx, query, from.UTC(), to.UTC())
}
