package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/plasmareport/plasmareport/pkg/model"
)

const programSelect = `
	SELECT id, program_name, repeat_id, used_area, scrap_fraction, machine_name, cutting_time,
		post_date_time, material, thickness, sheet_length, sheet_width, archive_packet_id,
		time_line_id, comment, posted_by_user_id, pierce_qty, user_name, user_first_name,
		user_last_name, user_email, last_login_date, status, priority, layout_path,
		master_worker_id, started_at, finished_at, created_at, updated_at
	FROM programs
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgram(row rowScanner) (*model.Program, error) {
	p := &model.Program{}
	err := row.Scan(
		&p.ID,
		&p.ProgramName,
		&p.RepeatID,
		&p.UsedArea,
		&p.ScrapFraction,
		&p.MachineName,
		&p.CuttingTime,
		&p.PostDateTime,
		&p.Material,
		&p.Thickness,
		&p.SheetLength,
		&p.SheetWidth,
		&p.ArchivePacketID,
		&p.TimeLineID,
		&p.Comment,
		&p.PostedByUserID,
		&p.PierceQty,
		&p.UserName,
		&p.UserFirstName,
		&p.UserLastName,
		&p.UserEMail,
		&p.LastLoginDate,
		&p.Status,
		&p.Priority,
		&p.LayoutPath,
		&p.MasterWorkerID,
		&p.StartedAt,
		&p.FinishedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (t *sqliteTx) queryPrograms(ctx context.Context, query string, args ...any) ([]*model.Program, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query programs: %w", err)
	}
	defer rows.Close()

	programs := []*model.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		programs = append(programs, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating programs: %w", err)
	}

	return programs, nil
}

// GetProgram retrieves a program by ID
func (t *sqliteTx) GetProgram(ctx context.Context, id int64) (*model.Program, error) {
	p, err := scanProgram(t.tx.QueryRowContext(ctx, programSelect+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("program %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get program: %w", err)
	}
	return p, nil
}

// ProgramsByNames returns the programs whose names are listed. Missing names are
// simply absent from the result.
func (t *sqliteTx) ProgramsByNames(ctx context.Context, names []string) ([]*model.Program, error) {
	if len(names) == 0 {
		return []*model.Program{}, nil
	}
	query := programSelect + " WHERE program_name IN (" + placeholders(len(names)) + ") ORDER BY id"
	return t.queryPrograms(ctx, query, stringArgs(names)...)
}

// ProgramsByIDs returns the programs with the given ids.
func (t *sqliteTx) ProgramsByIDs(ctx context.Context, ids []int64) ([]*model.Program, error) {
	if len(ids) == 0 {
		return []*model.Program{}, nil
	}
	query := programSelect + " WHERE id IN (" + placeholders(len(ids)) + ") ORDER BY id"
	return t.queryPrograms(ctx, query, int64Args(ids)...)
}

// ProgramsByStatuses returns programs in any of the statuses, highest priority
// first and then by name. An empty status list returns every program.
func (t *sqliteTx) ProgramsByStatuses(ctx context.Context, statuses []model.ProgramStatus) ([]*model.Program, error) {
	order := `
		ORDER BY CASE priority
			WHEN 'CRITICAL' THEN 3
			WHEN 'HIGH' THEN 2
			WHEN 'MEDIUM' THEN 1
			ELSE 0
		END DESC, program_name
	`
	if len(statuses) == 0 {
		return t.queryPrograms(ctx, programSelect+order)
	}

	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = string(s)
	}
	query := programSelect + " WHERE status IN (" + placeholders(len(statuses)) + ")" + order
	return t.queryPrograms(ctx, query, args...)
}

// InsertProgram inserts a program and sets its ID and timestamps.
func (t *sqliteTx) InsertProgram(ctx context.Context, p *model.Program) error {
	query := `
		INSERT INTO programs (
			program_name, repeat_id, used_area, scrap_fraction, machine_name, cutting_time,
			post_date_time, material, thickness, sheet_length, sheet_width, archive_packet_id,
			time_line_id, comment, posted_by_user_id, pierce_qty, user_name, user_first_name,
			user_last_name, user_email, last_login_date, status, priority, layout_path,
			master_worker_id, started_at, finished_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := t.now()
	p.Priority = p.Priority.OrDefault()
	if p.Status == "" {
		p.Status = model.ProgramStatusCreated
	}

	result, err := t.tx.ExecContext(ctx, query,
		p.ProgramName,
		p.RepeatID,
		p.UsedArea,
		p.ScrapFraction,
		p.MachineName,
		p.CuttingTime,
		p.PostDateTime.UTC(),
		p.Material,
		p.Thickness,
		p.SheetLength,
		p.SheetWidth,
		p.ArchivePacketID,
		p.TimeLineID,
		p.Comment,
		p.PostedByUserID,
		p.PierceQty,
		p.UserName,
		p.UserFirstName,
		p.UserLastName,
		p.UserEMail,
		bindValue(p.LastLoginDate),
		p.Status,
		p.Priority,
		p.LayoutPath,
		p.MasterWorkerID,
		bindValue(p.StartedAt),
		bindValue(p.FinishedAt),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert program %s: %w", p.ProgramName, checkUnique(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get program id: %w", err)
	}

	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// UpdateProgramFields writes the given field changes to one program.
func (t *sqliteTx) UpdateProgramFields(ctx context.Context, id int64, changes []model.FieldChange) error {
	return t.updateFields(ctx, "programs", programColumns, id, changes)
}

// UpdateProgramStatus sets the status of a program. Entering ACTIVE records the
// first start time and entering DONE records the finish time.
func (t *sqliteTx) UpdateProgramStatus(ctx context.Context, id int64, status model.ProgramStatus) error {
	query := `
		UPDATE programs
		SET status = ?,
			started_at = CASE WHEN ? = 'ACTIVE' THEN COALESCE(started_at, ?) ELSE started_at END,
			finished_at = CASE WHEN ? = 'DONE' THEN ? ELSE finished_at END,
			updated_at = ?
		WHERE id = ?
	`

	now := t.now()
	s := string(status)
	return t.execOne(ctx, "program", id, query, s, s, now, s, now, now, id)
}

// UpdateProgramPriority sets the priority of a program.
func (t *sqliteTx) UpdateProgramPriority(ctx context.Context, id int64, priority model.Priority) error {
	query := `UPDATE programs SET priority = ?, updated_at = ? WHERE id = ?`
	return t.execOne(ctx, "program", id, query, string(priority.OrDefault()), t.now(), id)
}

// DeleteProgram deletes a program. Its parts and assignments go with it.
func (t *sqliteTx) DeleteProgram(ctx context.Context, id int64) error {
	query := `DELETE FROM programs WHERE id = ?`
	return t.execOne(ctx, "program", id, query, id)
}
