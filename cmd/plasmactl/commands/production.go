package commands

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/workflow"
)

func newAssignCommand() *cobra.Command {
	var (
		file      string
		workerIDs []int64
		priority  string
	)

	cmd := &cobra.Command{
		Use:   "assign [PROGRAM_ID]",
		Short: "Assign programs to workers",
		Long: `Assign programs to workers and move them to ASSIGNED.

A single program is assigned with flags. A batch is read from a JSON file
(or stdin with "-f -") and is applied all or nothing:

  {"items": [{"program_id": 1, "worker_ids": [2, 3], "priority": "HIGH"}]}

Reassigning a program replaces its worker set.`,
		Example: `  # Assign program 12 to workers 2 and 3
  plasmactl assign 12 --worker 2 --worker 3 --priority HIGH

  # Assign a batch
  plasmactl assign -f shift.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req workflow.AssignRequest
			switch {
			case file != "":
				if len(args) > 0 {
					return fmt.Errorf("give either --file or a program id, not both")
				}
				if err := decodeRequestFile(cmd, file, &req); err != nil {
					return err
				}
			case len(args) == 1:
				ids, err := parseIDs(args)
				if err != nil {
					return err
				}
				req.Items = []workflow.AssignmentItem{{
					ProgramID: ids[0],
					WorkerIDs: workerIDs,
					Priority:  model.Priority(priority),
				}}
			default:
				return fmt.Errorf("a program id or --file is required")
			}

			log.Info().Int("items", len(req.Items)).Msg("Assigning programs")

			return withApp(cmd.Context(), func(a *app) error {
				result, err := a.service.AssignPrograms(cmd.Context(), req)
				if err != nil {
					return err
				}
				return emit(cmd, result, func(w io.Writer) error {
					done(w, "Assigned %d programs, %d parts", len(result.ProgramIDs), result.PartsAssigned)
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON assignment batch, - for stdin")
	cmd.Flags().Int64SliceVarP(&workerIDs, "worker", "w", nil, "worker id (repeatable)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "LOW, MEDIUM, HIGH or CRITICAL (default LOW)")

	return cmd
}

func newStartCommand() *cobra.Command {
	var workerID int64

	cmd := &cobra.Command{
		Use:     "start PROGRAM_ID",
		Short:   "Start cutting an assigned program",
		Args:    cobra.ExactArgs(1),
		Example: `  plasmactl start 12 --worker 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			req := workflow.StartRequest{ProgramID: ids[0], WorkerID: workerID}

			return withApp(cmd.Context(), func(a *app) error {
				if err := a.service.StartProgram(cmd.Context(), req); err != nil {
					return err
				}
				return emit(cmd, req, func(w io.Writer) error {
					done(w, "Program %d started by worker %d", req.ProgramID, req.WorkerID)
					return nil
				})
			})
		},
	}

	cmd.Flags().Int64VarP(&workerID, "worker", "w", 0, "worker starting the program")
	_ = cmd.MarkFlagRequired("worker")

	return cmd
}

func newClaimCommand() *cobra.Command {
	var workerID int64

	cmd := &cobra.Command{
		Use:   "claim PART_ID...",
		Short: "Record which worker produced parts",
		Long: `Record the worker who produced the given parts. Programs of the parts move
on to CALCULATING, the state in which quantities are accepted.`,
		Args:    cobra.MinimumNArgs(1),
		Example: `  plasmactl claim 101 102 103 --worker 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(a *app) error {
				result, err := a.service.ClaimParts(cmd.Context(), workflow.ClaimRequest{WorkerID: workerID, PartIDs: ids})
				if err != nil {
					return err
				}
				return emit(cmd, result, func(w io.Writer) error {
					done(w, "Claimed %d parts of %d programs for worker %d", len(result.PartIDs), len(result.ProgramIDs), workerID)
					return nil
				})
			})
		},
	}

	cmd.Flags().Int64VarP(&workerID, "worker", "w", 0, "worker who produced the parts")
	_ = cmd.MarkFlagRequired("worker")

	return cmd
}

func newAcceptCommand() *cobra.Command {
	var (
		file   string
		cellID int64
	)

	cmd := &cobra.Command{
		Use:   "accept [PART_ID QUANTITY]",
		Short: "Accept produced part quantities",
		Long: `Record the produced quantity of parts. A part is DONE_FULL when the quantity
matches the nested one and DONE_PARTIAL when it is lower. A program becomes
DONE once all its parts are done.

A batch is read from a JSON file (or stdin with "-f -"):

  {"items": [{"part_id": 101, "actual_quantity": 10, "storage_cell_id": 4}]}`,
		Example: `  # Accept 7 pieces of part 101 into cell 4
  plasmactl accept 101 7 --cell 4

  # Accept a batch
  plasmactl accept -f accepted.json`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req workflow.AcceptRequest
			switch {
			case file != "":
				if len(args) > 0 {
					return fmt.Errorf("give either --file or a part and quantity, not both")
				}
				if err := decodeRequestFile(cmd, file, &req); err != nil {
					return err
				}
			case len(args) == 2:
				partID, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid part id %q", args[0])
				}
				qty, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid quantity %q", args[1])
				}
				item := workflow.AcceptanceItem{PartID: partID, ActualQuantity: qty}
				if cmd.Flags().Changed("cell") {
					item.StorageCellID = &cellID
				}
				req.Items = []workflow.AcceptanceItem{item}
			default:
				return fmt.Errorf("a part id with a quantity or --file is required")
			}

			return withApp(cmd.Context(), func(a *app) error {
				result, err := a.service.AcceptQuantities(cmd.Context(), req)
				if err != nil {
					return err
				}
				return emit(cmd, result, func(w io.Writer) error {
					rows := make([][]string, 0, len(result.Parts))
					for _, p := range result.Parts {
						rows = append(rows, []string{
							strconv.FormatInt(p.PartID, 10),
							strconv.FormatInt(p.ProgramID, 10),
							p.Status.Label(a.lang),
						})
					}
					if err := writeTable(w, []string{"Part", "Program", "Status"}, rows); err != nil {
						return err
					}
					for _, id := range result.ProgramsDone {
						done(w, "Program %d is DONE", id)
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON acceptance batch, - for stdin")
	cmd.Flags().Int64Var(&cellID, "cell", 0, "storage cell receiving the parts")

	return cmd
}
