package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/plasmareport/plasmareport/pkg/model"
)

// ProgramNamesRequest names programs to create or update from the nesting source.
type ProgramNamesRequest struct {
	Names []string `json:"names" validate:"required,min=1,dive,required,max=255"`
}

// WindowRequest selects programs posted within [From, To].
type WindowRequest struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required,gtefield=From"`
}

// AssignmentItem replaces the worker set of one program.
type AssignmentItem struct {
	ProgramID int64          `json:"program_id" validate:"required,gt=0"`
	WorkerIDs []int64        `json:"worker_ids" validate:"required,min=1,dive,gt=0"`
	Priority  model.Priority `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
}

// AssignRequest is one assignment batch.
type AssignRequest struct {
	Items []AssignmentItem `json:"items" validate:"required,min=1,dive"`
}

// AcceptanceItem reports the produced quantity of one part.
type AcceptanceItem struct {
	PartID         int64  `json:"part_id" validate:"required,gt=0"`
	ActualQuantity int64  `json:"actual_quantity" validate:"gte=0"`
	StorageCellID  *int64 `json:"storage_cell_id,omitempty" validate:"omitempty,gt=0"`
}

// AcceptRequest is one quantity acceptance batch.
type AcceptRequest struct {
	Items []AcceptanceItem `json:"items" validate:"required,min=1,dive"`
}

// ClaimRequest marks parts as produced by a worker.
type ClaimRequest struct {
	WorkerID int64   `json:"worker_id" validate:"required,gt=0"`
	PartIDs  []int64 `json:"part_ids" validate:"required,min=1,dive,gt=0"`
}

// StartRequest starts cutting a program.
type StartRequest struct {
	ProgramID int64 `json:"program_id" validate:"required,gt=0"`
	WorkerID  int64 `json:"worker_id" validate:"required,gt=0"`
}

// RegisterWorkerRequest registers a new worker.
type RegisterWorkerRequest struct {
	Name   string    `json:"name" validate:"required,max=255"`
	Job    model.Job `json:"job" validate:"required,oneof=OPERATOR MASTER TECHNOLOGIST"`
	UserID *int64    `json:"user_id,omitempty" validate:"omitempty,gt=0"`
}

// RegisterCellRequest registers a new storage cell.
type RegisterCellRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

// checkRequest validates req and converts validator failures into a
// Validation error listing every offending field.
func (s *Service) checkRequest(op string, req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return validationError(op, err.Error())
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return validationError(op, "invalid request", problems...)
}

// checkNames validates req and returns its trimmed distinct names. A list
// holding only blanks is a Validation error.
func (s *Service) checkNames(op string, req ProgramNamesRequest) ([]string, error) {
	if err := s.checkRequest(op, req); err != nil {
		return nil, err
	}
	names := uniqueNames(req.Names)
	if len(names) == 0 {
		return nil, validationError(op, "invalid request", "Names: no program name left after trimming")
	}
	return names, nil
}

func withoutNames(names, drop []string) []string {
	skip := make(map[string]struct{}, len(drop))
	for _, n := range drop {
		skip[n] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := skip[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// uniqueNames trims names and drops blanks and repeats, keeping order.
func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
