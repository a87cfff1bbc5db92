package workflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/stores"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

// StartProgram moves an ASSIGNED program to ACTIVE on behalf of one of its
// assigned workers.
func (s *Service) StartProgram(ctx context.Context, req StartRequest) error {
	const op = "start_program"

	err := s.run(ctx, op, func(ctx context.Context) error {
		if err := s.checkRequest(op, req); err != nil {
			return err
		}

		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			program, err := tx.GetProgram(ctx, req.ProgramID)
			if err != nil {
				return err
			}
			if _, err := s.requireWorker(ctx, tx, op, req.WorkerID); err != nil {
				return err
			}

			assignments, err := tx.AssignmentsByProgramIDs(ctx, []int64{program.ID})
			if err != nil {
				return err
			}
			assigned := false
			for _, a := range assignments {
				if a.WorkerID == req.WorkerID {
					assigned = true
					break
				}
			}
			if !assigned {
				err := conflictError(op, fmt.Sprintf("worker %d is not assigned to program %d", req.WorkerID, program.ID))
				err.IDs = []int64{req.WorkerID}
				return err
			}

			if program.Status != model.ProgramStatusAssigned {
				err := conflictError(op, fmt.Sprintf("program is %s, not ASSIGNED", program.Status))
				err.IDs = []int64{program.ID}
				return err
			}
			return tx.UpdateProgramStatus(ctx, program.ID, model.ProgramStatusActive)
		})
	}, telemetry.AttrWorkerID.Int64(req.WorkerID))
	if err != nil {
		return err
	}

	s.publish(telemetry.Event{
		Type:    telemetry.EventTypeProgramStarted,
		Actor:   workerActor(req.WorkerID),
		Target:  programTarget(req.ProgramID),
		Message: fmt.Sprintf("Program %d started by worker %d", req.ProgramID, req.WorkerID),
	})
	return nil
}

// ClaimResult lists the programs handed over for acceptance.
type ClaimResult struct {
	PartIDs    []int64 `json:"part_ids"`
	ProgramIDs []int64 `json:"program_ids"`
}

// ClaimParts records the worker as producer of the parts and moves every
// owning program to CALCULATING. The worker must be active and assigned to
// every owning program. A program still ASSIGNED passes through
// ACTIVE so its start time is set.
func (s *Service) ClaimParts(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	const op = "claim_parts"
	result := &ClaimResult{}

	err := s.run(ctx, op, func(ctx context.Context) error {
		if err := s.checkRequest(op, req); err != nil {
			return err
		}

		partIDs := distinctIDs(req.PartIDs)
		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			worker, err := s.requireWorker(ctx, tx, op, req.WorkerID)
			if err != nil {
				return err
			}
			if !worker.IsActive {
				err := conflictError(op, "worker is deactivated")
				err.IDs = []int64{worker.ID}
				return err
			}

			parts, err := tx.PartsByIDs(ctx, partIDs)
			if err != nil {
				return err
			}
			found := make(map[int64]struct{}, len(parts))
			for _, p := range parts {
				found[p.ID] = struct{}{}
			}
			if missing := missingIDs(partIDs, found); len(missing) > 0 {
				return notFoundIDs(op, "parts", missing)
			}

			programIDs := distinctProgramIDs(parts)
			programs, err := tx.ProgramsByIDs(ctx, programIDs)
			if err != nil {
				return err
			}
			var blocked []int64
			for _, p := range programs {
				switch p.Status {
				case model.ProgramStatusAssigned, model.ProgramStatusActive, model.ProgramStatusCalculating:
				default:
					blocked = append(blocked, p.ID)
				}
			}
			if len(blocked) > 0 {
				err := conflictError(op, "programs are not in production")
				err.IDs = blocked
				return err
			}

			assignments, err := tx.AssignmentsByProgramIDs(ctx, programIDs)
			if err != nil {
				return err
			}
			mine := make(map[int64]struct{}, len(programIDs))
			for _, a := range assignments {
				if a.WorkerID == req.WorkerID {
					mine[a.ProgramID] = struct{}{}
				}
			}
			if foreign := missingIDs(programIDs, mine); len(foreign) > 0 {
				err := conflictError(op, fmt.Sprintf("worker %d is not assigned to the programs", req.WorkerID))
				err.IDs = foreign
				return err
			}

			for _, p := range parts {
				if err := tx.SetPartProducer(ctx, p.ID, req.WorkerID); err != nil {
					return err
				}
			}
			for _, p := range programs {
				if err := advanceToCalculating(ctx, tx, p); err != nil {
					return err
				}
			}

			result.PartIDs = partIDs
			result.ProgramIDs = programIDs
			return nil
		})
	}, telemetry.AttrWorkerID.Int64(req.WorkerID), telemetry.AttrPartCount.Int(len(req.PartIDs)))
	if err != nil {
		return nil, err
	}

	s.publish(telemetry.Event{
		Type:    telemetry.EventTypePartsClaimed,
		Actor:   workerActor(req.WorkerID),
		Message: fmt.Sprintf("Worker %d claimed %d parts", req.WorkerID, len(result.PartIDs)),
		Data:    map[string]interface{}{"part_ids": result.PartIDs},
	})
	for _, id := range result.ProgramIDs {
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeProgramCalculated,
			Actor:   workerActor(req.WorkerID),
			Target:  programTarget(id),
			Message: fmt.Sprintf("Program %d awaits acceptance", id),
		})
	}
	return result, nil
}

// advanceToCalculating walks the program along the status graph to CALCULATING.
func advanceToCalculating(ctx context.Context, tx stores.Tx, p *model.Program) error {
	status := p.Status
	for status != model.ProgramStatusCalculating {
		var next model.ProgramStatus
		switch status {
		case model.ProgramStatusAssigned:
			next = model.ProgramStatusActive
		case model.ProgramStatusActive:
			next = model.ProgramStatusCalculating
		default:
			return fmt.Errorf("program %d cannot reach CALCULATING from %s", p.ID, status)
		}
		if err := tx.UpdateProgramStatus(ctx, p.ID, next); err != nil {
			return err
		}
		status = next
	}
	return nil
}

func (s *Service) requireWorker(ctx context.Context, tx stores.Tx, op string, id int64) (*model.Worker, error) {
	workers, err := tx.WorkersByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(workers) == 0 {
		return nil, notFoundIDs(op, "workers", []int64{id})
	}
	return workers[0], nil
}

func distinctIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func workerActor(id int64) string {
	return "worker:" + strconv.FormatInt(id, 10)
}
