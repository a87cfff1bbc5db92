package stores

import (
	"context"
	"fmt"

	"github.com/plasmareport/plasmareport/pkg/model"
)

const workerSelect = `SELECT id, name, job, is_active, user_id, created_at, updated_at FROM workers`

func (t *sqliteTx) queryWorkers(ctx context.Context, query string, args ...any) ([]*model.Worker, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	workers := []*model.Worker{}
	for rows.Next() {
		w := &model.Worker{}
		if err := rows.Scan(&w.ID, &w.Name, &w.Job, &w.IsActive, &w.UserID, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workers: %w", err)
	}

	return workers, nil
}

// InsertWorker inserts a worker and sets its ID and timestamps.
func (t *sqliteTx) InsertWorker(ctx context.Context, w *model.Worker) error {
	query := `
		INSERT INTO workers (name, job, is_active, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	now := t.now()
	result, err := t.tx.ExecContext(ctx, query, w.Name, string(w.Job), w.IsActive, w.UserID, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert worker %s: %w", w.Name, checkUnique(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get worker id: %w", err)
	}

	w.ID = id
	w.CreatedAt = now
	w.UpdatedAt = now
	return nil
}

// WorkersByIDs returns the workers with the given ids.
func (t *sqliteTx) WorkersByIDs(ctx context.Context, ids []int64) ([]*model.Worker, error) {
	if len(ids) == 0 {
		return []*model.Worker{}, nil
	}
	query := workerSelect + " WHERE id IN (" + placeholders(len(ids)) + ") ORDER BY id"
	return t.queryWorkers(ctx, query, int64Args(ids)...)
}

// ListWorkers lists workers by name.
func (t *sqliteTx) ListWorkers(ctx context.Context, activeOnly bool) ([]*model.Worker, error) {
	if activeOnly {
		return t.queryWorkers(ctx, workerSelect+" WHERE is_active = 1 ORDER BY name")
	}
	return t.queryWorkers(ctx, workerSelect+" ORDER BY name")
}

// SetWorkerActive toggles the active flag of a worker.
func (t *sqliteTx) SetWorkerActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE workers SET is_active = ?, updated_at = ? WHERE id = ?`
	return t.execOne(ctx, "worker", id, query, active, t.now(), id)
}

// InsertStorageCell inserts a storage cell and sets its ID.
func (t *sqliteTx) InsertStorageCell(ctx context.Context, c *model.StorageCell) error {
	now := t.now()
	result, err := t.tx.ExecContext(ctx, `INSERT INTO storage_cells (name, created_at) VALUES (?, ?)`, c.Name, now)
	if err != nil {
		return fmt.Errorf("failed to insert storage cell %s: %w", c.Name, checkUnique(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get storage cell id: %w", err)
	}

	c.ID = id
	c.CreatedAt = now
	return nil
}

func (t *sqliteTx) queryStorageCells(ctx context.Context, query string, args ...any) ([]*model.StorageCell, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query storage cells: %w", err)
	}
	defer rows.Close()

	cells := []*model.StorageCell{}
	for rows.Next() {
		c := &model.StorageCell{}
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan storage cell: %w", err)
		}
		cells = append(cells, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating storage cells: %w", err)
	}

	return cells, nil
}

// StorageCellsByIDs returns the storage cells with the given ids.
func (t *sqliteTx) StorageCellsByIDs(ctx context.Context, ids []int64) ([]*model.StorageCell, error) {
	if len(ids) == 0 {
		return []*model.StorageCell{}, nil
	}
	query := `SELECT id, name, created_at FROM storage_cells WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`
	return t.queryStorageCells(ctx, query, int64Args(ids)...)
}

// ListStorageCells lists storage cells by name.
func (t *sqliteTx) ListStorageCells(ctx context.Context) ([]*model.StorageCell, error) {
	return t.queryStorageCells(ctx, `SELECT id, name, created_at FROM storage_cells ORDER BY name`)
}
