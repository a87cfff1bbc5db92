package commands

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/workflow"
)

func newWorkersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "Manage shop floor workers",
	}

	cmd.AddCommand(newWorkersAddCommand())
	cmd.AddCommand(newWorkersListCommand())
	cmd.AddCommand(newWorkersDeactivateCommand())

	return cmd
}

func newWorkersAddCommand() *cobra.Command {
	var (
		job    string
		userID int64
	)

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Register a worker",
		Args:  cobra.ExactArgs(1),
		Example: `  plasmactl workers add "Petrov I." --job OPERATOR
  plasmactl workers add "Sidorova A." --job MASTER --user 17`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := workflow.RegisterWorkerRequest{Name: args[0], Job: model.Job(job)}
			if cmd.Flags().Changed("user") {
				req.UserID = &userID
			}

			return withApp(cmd.Context(), func(a *app) error {
				worker, err := a.service.RegisterWorker(cmd.Context(), req)
				if err != nil {
					return err
				}
				return emit(cmd, worker, func(w io.Writer) error {
					done(w, "Registered worker %d: %s (%s)", worker.ID, worker.Name, worker.Job)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&job, "job", string(model.JobOperator), "OPERATOR, MASTER or TECHNOLOGIST")
	cmd.Flags().Int64Var(&userID, "user", 0, "linked user account id")

	return cmd
}

func newWorkersListCommand() *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				workers, err := a.service.Workers(cmd.Context(), activeOnly)
				if err != nil {
					return err
				}
				return emit(cmd, workers, func(w io.Writer) error {
					rows := make([][]string, 0, len(workers))
					for _, wk := range workers {
						rows = append(rows, []string{
							strconv.FormatInt(wk.ID, 10),
							wk.Name,
							wk.Job.Label(a.lang),
							strconv.FormatBool(wk.IsActive),
							formatInt(wk.UserID),
						})
					}
					return writeTable(w, []string{"ID", "Name", "Job", "Active", "User"}, rows)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active workers")

	return cmd
}

func newWorkersDeactivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate WORKER_ID",
		Short: "Deactivate a worker so new programs cannot be assigned to them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(a *app) error {
				if err := a.service.DeactivateWorker(cmd.Context(), ids[0]); err != nil {
					return err
				}
				return emit(cmd, map[string]int64{"worker_id": ids[0]}, func(w io.Writer) error {
					done(w, "Deactivated worker %d", ids[0])
					return nil
				})
			})
		},
	}
}

func newCellsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cells",
		Short: "Manage storage cells",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "add NAME",
		Short:   "Register a storage cell",
		Args:    cobra.ExactArgs(1),
		Example: `  plasmactl cells add A-01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				cell, err := a.service.RegisterStorageCell(cmd.Context(), workflow.RegisterCellRequest{Name: args[0]})
				if err != nil {
					return err
				}
				return emit(cmd, cell, func(w io.Writer) error {
					done(w, "Registered storage cell %d: %s", cell.ID, cell.Name)
					return nil
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List storage cells",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				cells, err := a.service.StorageCells(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, cells, func(w io.Writer) error {
					rows := make([][]string, 0, len(cells))
					for _, c := range cells {
						rows = append(rows, []string{strconv.FormatInt(c.ID, 10), c.Name})
					}
					return writeTable(w, []string{"ID", "Name"}, rows)
				})
			})
		},
	})

	return cmd
}
