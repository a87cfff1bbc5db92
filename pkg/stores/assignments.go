package stores

import (
	"context"
	"fmt"

	"github.com/plasmareport/plasmareport/pkg/model"
)

// DeleteAssignments removes every (program, worker) pair of the given programs.
func (t *sqliteTx) DeleteAssignments(ctx context.Context, programIDs []int64) (int64, error) {
	if len(programIDs) == 0 {
		return 0, nil
	}

	query := `DELETE FROM program_workers WHERE program_id IN (` + placeholders(len(programIDs)) + `)`
	result, err := t.tx.ExecContext(ctx, query, int64Args(programIDs)...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete assignments: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// InsertAssignment binds a worker to a program.
func (t *sqliteTx) InsertAssignment(ctx context.Context, a model.Assignment) error {
	query := `INSERT INTO program_workers (program_id, worker_id) VALUES (?, ?)`
	if _, err := t.tx.ExecContext(ctx, query, a.ProgramID, a.WorkerID); err != nil {
		return fmt.Errorf("failed to assign worker %d to program %d: %w", a.WorkerID, a.ProgramID, checkUnique(err))
	}
	return nil
}

// AssignmentsByProgramIDs returns the assignment pairs of the given programs.
func (t *sqliteTx) AssignmentsByProgramIDs(ctx context.Context, programIDs []int64) ([]model.Assignment, error) {
	if len(programIDs) == 0 {
		return []model.Assignment{}, nil
	}

	query := `
		SELECT program_id, worker_id FROM program_workers
		WHERE program_id IN (` + placeholders(len(programIDs)) + `)
		ORDER BY program_id, worker_id
	`

	rows, err := t.tx.QueryContext(ctx, query, int64Args(programIDs)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	assignments := []model.Assignment{}
	for rows.Next() {
		var a model.Assignment
		if err := rows.Scan(&a.ProgramID, &a.WorkerID); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assignments: %w", err)
	}

	return assignments, nil
}
