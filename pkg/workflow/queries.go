package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/stores"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
)

// ProgramsForCalculation returns the programs waiting for quantity acceptance.
func (s *Service) ProgramsForCalculation(ctx context.Context) ([]*model.Program, error) {
	const op = "programs_for_calculation"
	var programs []*model.Program

	err := s.run(ctx, op, func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			var err error
			programs, err = tx.ProgramsByStatuses(ctx, []model.ProgramStatus{model.ProgramStatusCalculating})
			if err != nil {
				return err
			}
			if len(programs) == 0 {
				return emptyResult(op, "no programs await calculation")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return programs, nil
}

// ProgramsByStatus lists programs in any of the statuses, highest priority
// first. No statuses lists every program.
func (s *Service) ProgramsByStatus(ctx context.Context, statuses ...model.ProgramStatus) ([]*model.Program, error) {
	const op = "programs_by_status"
	var programs []*model.Program

	err := s.run(ctx, op, func(ctx context.Context) error {
		var problems []string
		for _, st := range statuses {
			if err := st.Validate(); err != nil {
				problems = append(problems, err.Error())
			}
		}
		if len(problems) > 0 {
			return validationError(op, "unknown status", problems...)
		}

		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			var err error
			programs, err = tx.ProgramsByStatuses(ctx, statuses)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return programs, nil
}

// ProgramParts returns the flattened part view of the programs.
func (s *Service) ProgramParts(ctx context.Context, programIDs []int64) ([]model.PartView, error) {
	const op = "program_parts"
	var views []model.PartView

	err := s.run(ctx, op, func(ctx context.Context) error {
		ids := distinctIDs(programIDs)
		if len(ids) == 0 {
			return validationError(op, "at least one program id is required")
		}

		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			programs, err := tx.ProgramsByIDs(ctx, ids)
			if err != nil {
				return err
			}
			if missing := missingIDs(ids, programIDsOf(programs)); len(missing) > 0 {
				return notFoundIDs(op, "programs", missing)
			}
			views, err = tx.PartViewsByProgramIDs(ctx, ids)
			return err
		})
	}, telemetry.AttrProgramIDs.Int64Slice(programIDs))
	if err != nil {
		return nil, err
	}
	return views, nil
}

// PartsReport returns the parts created within the window.
func (s *Service) PartsReport(ctx context.Context, req WindowRequest) ([]model.PartView, error) {
	const op = "parts_report"
	var views []model.PartView

	err := s.run(ctx, op, func(ctx context.Context) error {
		if err := s.checkRequest(op, req); err != nil {
			return err
		}
		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			var err error
			views, err = tx.PartViewsCreatedBetween(ctx, req.From, req.To)
			if err != nil {
				return err
			}
			if len(views) == 0 {
				return emptyResult(op, fmt.Sprintf("no parts created between %s and %s",
					req.From.UTC().Format("2006-01-02 15:04:05"), req.To.UTC().Format("2006-01-02 15:04:05")))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// RefreshProgramGauges recounts programs per status into the metrics gauge.
func (s *Service) RefreshProgramGauges(ctx context.Context) error {
	return s.run(ctx, "refresh_program_gauges", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			programs, err := tx.ProgramsByStatuses(ctx, nil)
			if err != nil {
				return err
			}
			counts := make(map[model.ProgramStatus]float64, len(model.ProgramStatuses()))
			for _, p := range programs {
				counts[p.Status]++
			}
			for _, st := range model.ProgramStatuses() {
				s.metrics.SetProgramCount(string(st), counts[st])
			}
			return nil
		})
	})
}

// RegisterWorker adds an active worker.
func (s *Service) RegisterWorker(ctx context.Context, req RegisterWorkerRequest) (*model.Worker, error) {
	const op = "register_worker"
	req.Name = strings.TrimSpace(req.Name)
	worker := &model.Worker{Name: req.Name, Job: req.Job, IsActive: true, UserID: req.UserID}

	err := s.run(ctx, op, func(ctx context.Context) error {
		if err := s.checkRequest(op, req); err != nil {
			return err
		}
		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			return tx.InsertWorker(ctx, worker)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(telemetry.Event{
		Type:    telemetry.EventTypeWorkerRegistered,
		Target:  workerActor(worker.ID),
		Message: fmt.Sprintf("Worker %s registered as %s", worker.Name, worker.Job),
	})
	return worker, nil
}

// Workers lists workers by name.
func (s *Service) Workers(ctx context.Context, activeOnly bool) ([]*model.Worker, error) {
	var workers []*model.Worker
	err := s.run(ctx, "list_workers", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			var err error
			workers, err = tx.ListWorkers(ctx, activeOnly)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return workers, nil
}

// DeactivateWorker stops a worker from receiving new assignments. Existing
// assignments stay in place.
func (s *Service) DeactivateWorker(ctx context.Context, id int64) error {
	err := s.run(ctx, "deactivate_worker", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			return tx.SetWorkerActive(ctx, id, false)
		})
	}, telemetry.AttrWorkerID.Int64(id))
	if err != nil {
		return err
	}

	s.publish(telemetry.Event{
		Type:    telemetry.EventTypeWorkerDeactivated,
		Target:  workerActor(id),
		Message: fmt.Sprintf("Worker %d deactivated", id),
	})
	return nil
}

// RegisterStorageCell adds a storage cell.
func (s *Service) RegisterStorageCell(ctx context.Context, req RegisterCellRequest) (*model.StorageCell, error) {
	const op = "register_storage_cell"
	req.Name = strings.TrimSpace(req.Name)
	cell := &model.StorageCell{Name: req.Name}

	err := s.run(ctx, op, func(ctx context.Context) error {
		if err := s.checkRequest(op, req); err != nil {
			return err
		}
		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			return tx.InsertStorageCell(ctx, cell)
		})
	})
	if err != nil {
		return nil, err
	}

	s.publish(telemetry.Event{
		Type:    telemetry.EventTypeCellRegistered,
		Target:  fmt.Sprintf("cell:%d", cell.ID),
		Message: fmt.Sprintf("Storage cell %s registered", cell.Name),
	})
	return cell, nil
}

// StorageCells lists storage cells by name.
func (s *Service) StorageCells(ctx context.Context) ([]*model.StorageCell, error) {
	var cells []*model.StorageCell
	err := s.run(ctx, "list_storage_cells", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			var err error
			cells, err = tx.ListStorageCells(ctx)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return cells, nil
}

// AuditTrail lists audit entries newest first. An empty action lists all.
func (s *Service) AuditTrail(ctx context.Context, action string, limit, offset int) ([]*model.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var filter *string
	if action != "" {
		filter = &action
	}

	var entries []*model.AuditEntry
	err := s.run(ctx, "audit_trail", func(ctx context.Context) error {
		return s.store.WithTx(ctx, func(tx stores.Tx) error {
			var err error
			entries, err = tx.ListAudit(ctx, filter, limit, offset)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
