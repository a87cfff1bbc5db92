package stores

import (
	"context"
	"fmt"

	"github.com/plasmareport/plasmareport/pkg/model"
)

// OrdersByNumbers returns the work orders with the given numbers.
func (t *sqliteTx) OrdersByNumbers(ctx context.Context, numbers []string) ([]*model.WorkOrder, error) {
	if len(numbers) == 0 {
		return []*model.WorkOrder{}, nil
	}

	query := `
		SELECT id, wo_number, customer_name, wo_date, order_date, wo_data1, wo_data2,
			date_created, status, created_at, updated_at
		FROM work_orders
		WHERE wo_number IN (` + placeholders(len(numbers)) + `)
		ORDER BY id
	`

	rows, err := t.tx.QueryContext(ctx, query, stringArgs(numbers)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work orders: %w", err)
	}
	defer rows.Close()

	orders := []*model.WorkOrder{}
	for rows.Next() {
		o := &model.WorkOrder{}
		err := rows.Scan(
			&o.ID,
			&o.WONumber,
			&o.CustomerName,
			&o.WODate,
			&o.OrderDate,
			&o.WOData1,
			&o.WOData2,
			&o.DateCreated,
			&o.Status,
			&o.CreatedAt,
			&o.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work orders: %w", err)
	}

	return orders, nil
}

// InsertOrder inserts a work order and sets its ID and timestamps.
func (t *sqliteTx) InsertOrder(ctx context.Context, o *model.WorkOrder) error {
	query := `
		INSERT INTO work_orders (
			wo_number, customer_name, wo_date, order_date, wo_data1, wo_data2,
			date_created, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := t.now()
	if o.Status == "" {
		o.Status = model.WOStatusCreated
	}

	result, err := t.tx.ExecContext(ctx, query,
		o.WONumber,
		o.CustomerName,
		o.WODate.UTC(),
		o.OrderDate.UTC(),
		o.WOData1,
		o.WOData2,
		o.DateCreated.UTC(),
		o.Status,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert work order %s: %w", o.WONumber, checkUnique(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get work order id: %w", err)
	}

	o.ID = id
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// UpdateOrderFields writes the given field changes to one work order.
func (t *sqliteTx) UpdateOrderFields(ctx context.Context, id int64, changes []model.FieldChange) error {
	return t.updateFields(ctx, "work_orders", orderColumns, id, changes)
}

// DeleteOrphanOrders deletes those of the given orders that no part references
// any more and reports how many went.
func (t *sqliteTx) DeleteOrphanOrders(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		DELETE FROM work_orders
		WHERE id IN (` + placeholders(len(ids)) + `)
			AND NOT EXISTS (SELECT 1 FROM parts WHERE parts.work_order_id = work_orders.id)
	`

	result, err := t.tx.ExecContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan work orders: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
