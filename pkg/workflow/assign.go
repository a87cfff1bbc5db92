package workflow

import (
	"context"
	"fmt"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/stores"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

// AssignResult summarises an assignment batch.
type AssignResult struct {
	ProgramIDs    []int64 `json:"program_ids"`
	PartsAssigned int64   `json:"parts_assigned"`
}

// AssignPrograms replaces the worker set and priority of every program in
// the batch and moves the programs to ASSIGNED. The whole batch is checked
// before anything is written and is applied in one transaction.
func (s *Service) AssignPrograms(ctx context.Context, req AssignRequest) (*AssignResult, error) {
	const op = "assign_programs"
	var result *AssignResult

	err := s.run(ctx, op, func(ctx context.Context) error {
		if err := s.checkRequest(op, req); err != nil {
			return err
		}

		programIDs, workerIDs, err := assignmentIDs(req.Items)
		if err != nil {
			return err
		}

		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			workers, err := tx.WorkersByIDs(ctx, workerIDs)
			if err != nil {
				return err
			}
			if missing := missingIDs(workerIDs, workerIDsOf(workers)); len(missing) > 0 {
				return notFoundIDs(op, "workers", missing)
			}
			var inactive []int64
			for _, w := range workers {
				if !w.IsActive {
					inactive = append(inactive, w.ID)
				}
			}
			if len(inactive) > 0 {
				err := conflictError(op, "workers are deactivated")
				err.IDs = inactive
				return err
			}

			programs, err := tx.ProgramsByIDs(ctx, programIDs)
			if err != nil {
				return err
			}
			if missing := missingIDs(programIDs, programIDsOf(programs)); len(missing) > 0 {
				return notFoundIDs(op, "programs", missing)
			}
			var locked []int64
			for _, p := range programs {
				if !p.Status.IsAssignable() {
					locked = append(locked, p.ID)
				}
			}
			if len(locked) > 0 {
				err := conflictError(op, "programs can no longer be assigned")
				err.IDs = locked
				return err
			}

			if _, err := tx.DeleteAssignments(ctx, programIDs); err != nil {
				return err
			}
			for _, item := range req.Items {
				for _, workerID := range item.WorkerIDs {
					if err := tx.InsertAssignment(ctx, model.Assignment{ProgramID: item.ProgramID, WorkerID: workerID}); err != nil {
						return err
					}
				}
				if err := tx.UpdateProgramStatus(ctx, item.ProgramID, model.ProgramStatusAssigned); err != nil {
					return err
				}
				if err := tx.UpdateProgramPriority(ctx, item.ProgramID, item.Priority.OrDefault()); err != nil {
					return err
				}
			}

			parts, err := tx.MarkPartsAssigned(ctx, programIDs)
			if err != nil {
				return err
			}

			result = &AssignResult{ProgramIDs: programIDs, PartsAssigned: parts}
			return nil
		})
	}, telemetry.AttrProgramIDs.Int64Slice(programIDsOfItems(req.Items)))
	if err != nil {
		return nil, err
	}

	s.metrics.RecordProgramsAssigned(len(result.ProgramIDs))
	for _, item := range req.Items {
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeProgramAssigned,
			Actor:   "master",
			Target:  programTarget(item.ProgramID),
			Message: fmt.Sprintf("Program %d assigned to %d workers", item.ProgramID, len(item.WorkerIDs)),
			Data: map[string]interface{}{
				"worker_ids": item.WorkerIDs,
				"priority":   string(item.Priority.OrDefault()),
			},
		})
	}
	s.logger.Info().
		Ints64("program_ids", result.ProgramIDs).
		Int64("parts_assigned", result.PartsAssigned).
		Msg("Programs assigned")

	return result, nil
}

// assignmentIDs checks the batch for repeats and returns the distinct
// program and worker ids in request order.
func assignmentIDs(items []AssignmentItem) ([]int64, []int64, error) {
	const op = "assign_programs"

	programs := make([]int64, 0, len(items))
	seenPrograms := make(map[int64]struct{}, len(items))
	var workers []int64
	seenWorkers := make(map[int64]struct{})

	for i, item := range items {
		if _, ok := seenPrograms[item.ProgramID]; ok {
			err := conflictError(op, fmt.Sprintf("program listed more than once (item %d)", i))
			err.IDs = []int64{item.ProgramID}
			return nil, nil, err
		}
		seenPrograms[item.ProgramID] = struct{}{}
		programs = append(programs, item.ProgramID)

		inItem := make(map[int64]struct{}, len(item.WorkerIDs))
		for _, w := range item.WorkerIDs {
			if _, ok := inItem[w]; ok {
				err := conflictError(op, fmt.Sprintf("worker listed more than once for program %d", item.ProgramID))
				err.IDs = []int64{w}
				return nil, nil, err
			}
			inItem[w] = struct{}{}
			if _, ok := seenWorkers[w]; !ok {
				seenWorkers[w] = struct{}{}
				workers = append(workers, w)
			}
		}
	}
	return programs, workers, nil
}

// missingIDs returns the wanted ids absent from found.
func missingIDs(wanted []int64, found map[int64]struct{}) []int64 {
	var missing []int64
	for _, id := range wanted {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func workerIDsOf(workers []*model.Worker) map[int64]struct{} {
	out := make(map[int64]struct{}, len(workers))
	for _, w := range workers {
		out[w.ID] = struct{}{}
	}
	return out
}

func programIDsOf(programs []*model.Program) map[int64]struct{} {
	out := make(map[int64]struct{}, len(programs))
	for _, p := range programs {
		out[p.ID] = struct{}{}
	}
	return out
}

func programIDsOfItems(items []AssignmentItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProgramID)
	}
	return ids
}
