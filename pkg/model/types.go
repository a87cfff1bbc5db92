package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProgramData holds the program fields owned by the nesting system.
type ProgramData struct {
	ProgramName     string          `json:"program_name"`
	RepeatID        int64           `json:"repeat_id"`
	UsedArea        float64         `json:"used_area"`
	ScrapFraction   float64         `json:"scrap_fraction"`
	MachineName     string          `json:"machine_name"`
	CuttingTime     decimal.Decimal `json:"cutting_time"`
	PostDateTime    time.Time       `json:"post_date_time"`
	Material        string          `json:"material"`
	Thickness       float64         `json:"thickness"`
	SheetLength     float64         `json:"sheet_length"`
	SheetWidth      float64         `json:"sheet_width"`
	ArchivePacketID int64           `json:"archive_packet_id"`
	TimeLineID      int64           `json:"time_line_id"`
	Comment         string          `json:"comment"`
	PostedByUserID  int64           `json:"posted_by_user_id"`
	PierceQty       int64           `json:"pierce_qty"`
	UserName        string          `json:"user_name"`
	UserFirstName   string          `json:"user_first_name"`
	UserLastName    string          `json:"user_last_name"`
	UserEMail       string          `json:"user_email"`
	LastLoginDate   *time.Time      `json:"last_login_date,omitempty"`
}

// Program is a cut job ("shift task") as stored locally.
type Program struct {
	ID int64 `json:"id"`
	ProgramData
	Status         ProgramStatus `json:"status"`
	Priority       Priority      `json:"priority"`
	LayoutPath     *string       `json:"layout_path,omitempty"`
	MasterWorkerID *int64        `json:"master_worker_id,omitempty"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// OrderData holds the work order fields owned by the nesting system.
type OrderData struct {
	WONumber     string    `json:"wo_number"`
	CustomerName string    `json:"customer_name"`
	WODate       time.Time `json:"wo_date"`
	OrderDate    time.Time `json:"order_date"`
	WOData1      string    `json:"wo_data1"`
	WOData2      string    `json:"wo_data2"`
	DateCreated  time.Time `json:"date_created"`
}

// WorkOrder is a customer order as stored locally.
type WorkOrder struct {
	ID int64 `json:"id"`
	OrderData
	Status    WOStatus  `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PartData holds the part fields owned by the nesting system.
// ProgramName and WONumber carry the natural keys of the owners and are not stored on the part row.
type PartData struct {
	PartName         string          `json:"part_name"`
	ProgramName      string          `json:"program_name"`
	WONumber         string          `json:"wo_number"`
	QtyInProcess     int64           `json:"qty_in_process"`
	PartLength       float64         `json:"part_length"`
	PartWidth        float64         `json:"part_width"`
	TrueArea         float64         `json:"true_area"`
	RectArea         float64         `json:"rect_area"`
	TrueWeight       float64         `json:"true_weight"`
	RectWeight       float64         `json:"rect_weight"`
	CuttingTime      decimal.Decimal `json:"cutting_time"`
	CuttingLength    float64         `json:"cutting_length"`
	PierceQty        int64           `json:"pierce_qty"`
	NestedArea       float64         `json:"nested_area"`
	TotalCuttingTime decimal.Decimal `json:"total_cutting_time"`
	MasterPartQty    int64           `json:"master_part_qty"`
	WOState          string          `json:"wo_state"`
	DueDate          time.Time       `json:"due_date"`
	RevisionNumber   string          `json:"revision_number"`
	PKPIP            string          `json:"pk_pip"`
	Thickness        float64         `json:"thickness"`
	SourceFileName   string          `json:"source_file_name"`
}

// Key returns the composite natural key of the part.
func (p PartData) Key() PartKey {
	return PartKey{PartName: p.PartName, ProgramName: p.ProgramName, WONumber: p.WONumber}
}

// Part is a unit of production as stored locally.
type Part struct {
	ID          int64 `json:"id"`
	ProgramID   int64 `json:"program_id"`
	WorkOrderID int64 `json:"work_order_id"`
	PartData
	Status         PartStatus `json:"status"`
	QtyFact        *int64     `json:"qty_fact,omitempty"`
	StorageCellID  *int64     `json:"storage_cell_id,omitempty"`
	DoneByWorkerID *int64     `json:"done_by_worker_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PartKey is the composite natural key (part name, program, order).
type PartKey struct {
	PartName    string `json:"part_name"`
	ProgramName string `json:"program_name"`
	WONumber    string `json:"wo_number"`
}

// Worker is a production staff member ("doer").
type Worker struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Job       Job       `json:"job"`
	IsActive  bool      `json:"is_active"`
	UserID    *int64    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StorageCell is a named physical storage location.
type StorageCell struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Assignment binds a worker to a program.
type Assignment struct {
	ProgramID int64 `json:"program_id"`
	WorkerID  int64 `json:"worker_id"`
}

// FieldChange is one differing field found by reconciliation.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// PartView is the flattened eager-joined projection of a part with its owners.
type PartView struct {
	Part            Part          `json:"part"`
	ProgramName     string        `json:"program_name"`
	ProgramStatus   ProgramStatus `json:"program_status"`
	ProgramPriority Priority      `json:"program_priority"`
	Material        string        `json:"material"`
	MachineName     string        `json:"machine_name"`
	WONumber        string        `json:"wo_number"`
	CustomerName    string        `json:"customer_name"`
	StorageCellName *string       `json:"storage_cell_name,omitempty"`
	DoneByWorker    *string       `json:"done_by_worker,omitempty"`
}

// AuditEntry is an append-only record of a workflow event.
type AuditEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`
	TargetID  *string   `json:"target_id,omitempty"`
	Details   *string   `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
