package workflow

import (
	"context"
	"fmt"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/stores"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

// AcceptResult reports the derived status of every accepted part and the
// programs that rolled up to DONE.
type AcceptResult struct {
	Parts        []AcceptedPart `json:"parts"`
	ProgramsDone []int64        `json:"programs_done,omitempty"`
}

// AcceptedPart is the outcome for one part.
type AcceptedPart struct {
	PartID    int64            `json:"part_id"`
	ProgramID int64            `json:"program_id"`
	Status    model.PartStatus `json:"status"`
}

// AcceptQuantities records produced quantities. A part becomes DONE_FULL
// when the actual quantity equals the expected one and DONE_PARTIAL when it
// is lower. After the parts commit, every touched program whose parts are
// all done becomes DONE; roll-up failures are logged, not returned.
func (s *Service) AcceptQuantities(ctx context.Context, req AcceptRequest) (*AcceptResult, error) {
	const op = "accept_quantities"
	result := &AcceptResult{}
	var programIDs []int64

	err := s.run(ctx, op, func(ctx context.Context) error {
		if err := s.checkRequest(op, req); err != nil {
			return err
		}

		partIDs := make([]int64, 0, len(req.Items))
		seen := make(map[int64]struct{}, len(req.Items))
		var cellIDs []int64
		for _, item := range req.Items {
			if _, ok := seen[item.PartID]; ok {
				return validationError(op, fmt.Sprintf("part %d listed more than once", item.PartID))
			}
			seen[item.PartID] = struct{}{}
			partIDs = append(partIDs, item.PartID)
			if item.StorageCellID != nil {
				cellIDs = append(cellIDs, *item.StorageCellID)
			}
		}

		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			parts, err := tx.PartsByIDs(ctx, partIDs)
			if err != nil {
				return err
			}
			byID := make(map[int64]*model.Part, len(parts))
			for _, p := range parts {
				byID[p.ID] = p
			}
			if missing := missingIDs(partIDs, keysOf(byID)); len(missing) > 0 {
				return notFoundIDs(op, "parts", missing)
			}

			if len(cellIDs) > 0 {
				cells, err := tx.StorageCellsByIDs(ctx, cellIDs)
				if err != nil {
					return err
				}
				found := make(map[int64]struct{}, len(cells))
				for _, c := range cells {
					found[c.ID] = struct{}{}
				}
				if missing := missingIDs(cellIDs, found); len(missing) > 0 {
					return notFoundIDs(op, "storage cells", missing)
				}
			}

			var problems []string
			for _, item := range req.Items {
				part := byID[item.PartID]
				if item.ActualQuantity > part.QtyInProcess {
					problems = append(problems, fmt.Sprintf("part %d: actual quantity %d exceeds expected %d",
						part.ID, item.ActualQuantity, part.QtyInProcess))
				}
			}
			if len(problems) > 0 {
				return validationError(op, "quantities out of range", problems...)
			}

			programIDs = distinctProgramIDs(parts)
			programs, err := tx.ProgramsByIDs(ctx, programIDs)
			if err != nil {
				return err
			}
			var notReady []int64
			for _, p := range programs {
				if p.Status != model.ProgramStatusCalculating {
					notReady = append(notReady, p.ID)
				}
			}
			if len(notReady) > 0 {
				err := conflictError(op, "programs are not awaiting acceptance")
				err.IDs = notReady
				return err
			}

			for _, item := range req.Items {
				part := byID[item.PartID]
				status := model.CompletionStatus(item.ActualQuantity, part.QtyInProcess)
				if err := tx.UpdatePartQuantity(ctx, part.ID, item.ActualQuantity, status, item.StorageCellID); err != nil {
					return err
				}
				result.Parts = append(result.Parts, AcceptedPart{PartID: part.ID, ProgramID: part.ProgramID, Status: status})
			}
			return nil
		})
	}, telemetry.AttrPartCount.Int(len(req.Items)))
	if err != nil {
		return nil, err
	}

	for _, p := range result.Parts {
		s.metrics.RecordPartAccepted(string(p.Status))
	}
	s.publish(telemetry.Event{
		Type:    telemetry.EventTypePartsAccepted,
		Actor:   "logistics",
		Message: fmt.Sprintf("Accepted quantities for %d parts", len(result.Parts)),
		Data:    map[string]interface{}{"parts": result.Parts},
	})

	result.ProgramsDone = s.rollUp(ctx, programIDs)
	return result, nil
}

// rollUp re-reads each program's parts in a fresh transaction and marks the
// program DONE when all of them are done. It returns the programs it closed.
func (s *Service) rollUp(ctx context.Context, programIDs []int64) []int64 {
	var done []int64
	for _, id := range programIDs {
		closed, err := s.rollUpProgram(ctx, id)
		if err != nil {
			s.metrics.RecordRollupFailure()
			s.logger.Warn().Err(err).Int64("program_id", id).Msg("Program roll-up failed")
			continue
		}
		if !closed {
			continue
		}
		done = append(done, id)
		s.metrics.RecordProgramDone()
		s.publish(telemetry.Event{
			Type:    telemetry.EventTypeProgramDone,
			Actor:   "logistics",
			Target:  programTarget(id),
			Message: fmt.Sprintf("Program %d done", id),
		})
	}
	return done
}

func (s *Service) rollUpProgram(ctx context.Context, programID int64) (bool, error) {
	closed := false
	err := s.store.WithTx(ctx, func(tx stores.Tx) error {
		program, err := tx.GetProgram(ctx, programID)
		if err != nil {
			return err
		}
		if !program.Status.CanTransitionTo(model.ProgramStatusDone) {
			return nil
		}

		parts, err := tx.PartsByProgramIDs(ctx, []int64{programID})
		if err != nil {
			return err
		}
		for _, p := range parts {
			if !p.Status.IsDone() {
				return nil
			}
		}

		if err := tx.UpdateProgramStatus(ctx, programID, model.ProgramStatusDone); err != nil {
			return err
		}
		closed = true
		return nil
	})
	return closed, err
}

func distinctProgramIDs(parts []*model.Part) []int64 {
	seen := make(map[int64]struct{}, len(parts))
	var ids []int64
	for _, p := range parts {
		if _, ok := seen[p.ProgramID]; ok {
			continue
		}
		seen[p.ProgramID] = struct{}{}
		ids = append(ids, p.ProgramID)
	}
	return ids
}

func keysOf[V any](m map[int64]V) map[int64]struct{} {
	out := make(map[int64]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}
