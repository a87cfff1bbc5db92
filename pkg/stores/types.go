package stores

import (
	"context"
	"errors"
	"time"

	"github.com/plasmareport/plasmareport/pkg/model"
)

// ErrNotFound is returned when a lookup by primary id matches no row.
var ErrNotFound = errors.New("not found")

// Store defines the interface for the persistence layer.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// WithTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Utility
	HealthCheck(ctx context.Context) error
}

// Tx is the unit of work handed to WithTx callbacks.
type Tx interface {
	// Program operations
	GetProgram(ctx context.Context, id int64) (*model.Program, error)
	ProgramsByNames(ctx context.Context, names []string) ([]*model.Program, error)
	ProgramsByIDs(ctx context.Context, ids []int64) ([]*model.Program, error)
	ProgramsByStatuses(ctx context.Context, statuses []model.ProgramStatus) ([]*model.Program, error)
	InsertProgram(ctx context.Context, program *model.Program) error
	UpdateProgramFields(ctx context.Context, id int64, changes []model.FieldChange) error
	UpdateProgramStatus(ctx context.Context, id int64, status model.ProgramStatus) error
	UpdateProgramPriority(ctx context.Context, id int64, priority model.Priority) error
	DeleteProgram(ctx context.Context, id int64) error

	// WorkOrder operations
	OrdersByNumbers(ctx context.Context, numbers []string) ([]*model.WorkOrder, error)
	InsertOrder(ctx context.Context, order *model.WorkOrder) error
	UpdateOrderFields(ctx context.Context, id int64, changes []model.FieldChange) error
	DeleteOrphanOrders(ctx context.Context, ids []int64) (int64, error)

	// Part operations
	PartsByProgramIDs(ctx context.Context, programIDs []int64) ([]*model.Part, error)
	PartsByIDs(ctx context.Context, ids []int64) ([]*model.Part, error)
	InsertPart(ctx context.Context, part *model.Part) error
	UpdatePartFields(ctx context.Context, id int64, changes []model.FieldChange) error
	DeletePart(ctx context.Context, id int64) error
	MarkPartsAssigned(ctx context.Context, programIDs []int64) (int64, error)
	UpdatePartQuantity(ctx context.Context, id int64, qtyFact int64, status model.PartStatus, storageCellID *int64) error
	SetPartProducer(ctx context.Context, id int64, workerID int64) error

	// Eager-joined projections
	PartViewsByProgramIDs(ctx context.Context, programIDs []int64) ([]model.PartView, error)
	PartViewsCreatedBetween(ctx context.Context, from, to time.Time) ([]model.PartView, error)

	// Worker operations
	InsertWorker(ctx context.Context, worker *model.Worker) error
	WorkersByIDs(ctx context.Context, ids []int64) ([]*model.Worker, error)
	ListWorkers(ctx context.Context, activeOnly bool) ([]*model.Worker, error)
	SetWorkerActive(ctx context.Context, id int64, active bool) error

	// StorageCell operations
	InsertStorageCell(ctx context.Context, cell *model.StorageCell) error
	StorageCellsByIDs(ctx context.Context, ids []int64) ([]*model.StorageCell, error)
	ListStorageCells(ctx context.Context) ([]*model.StorageCell, error)

	// Assignment operations
	DeleteAssignments(ctx context.Context, programIDs []int64) (int64, error)
	InsertAssignment(ctx context.Context, assignment model.Assignment) error
	AssignmentsByProgramIDs(ctx context.Context, programIDs []int64) ([]model.Assignment, error)

	// Audit operations
	AppendAudit(ctx context.Context, entry *model.AuditEntry) error
	ListAudit(ctx context.Context, action *string, limit, offset int) ([]*model.AuditEntry, error)
}
