package commands

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/plasmareport/plasmareport/pkg/model"
)

func newProgramsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "programs",
		Short: "Inspect programs",
	}

	cmd.AddCommand(newProgramsListCommand())
	cmd.AddCommand(newProgramsCalculationCommand())
	cmd.AddCommand(newProgramsPartsCommand())

	return cmd
}

func newProgramsListCommand() *cobra.Command {
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List programs by status, highest priority first",
		Example: `  # All programs
  plasmactl programs list

  # Programs waiting on the shop floor
  plasmactl programs list --status ASSIGNED --status ACTIVE`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wanted := make([]model.ProgramStatus, 0, len(statuses))
			for _, s := range statuses {
				wanted = append(wanted, model.ProgramStatus(s))
			}

			return withApp(cmd.Context(), func(a *app) error {
				programs, err := a.service.ProgramsByStatus(cmd.Context(), wanted...)
				if err != nil {
					return err
				}
				return emit(cmd, programs, func(w io.Writer) error { return renderPrograms(w, programs, a.lang) })
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "program status filter (repeatable)")

	return cmd
}

func newProgramsCalculationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "calculation",
		Short: "List programs waiting for quantity acceptance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				programs, err := a.service.ProgramsForCalculation(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, programs, func(w io.Writer) error { return renderPrograms(w, programs, a.lang) })
			})
		},
	}
}

func newProgramsPartsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "parts PROGRAM_ID...",
		Short:   "List the parts of programs",
		Args:    cobra.MinimumNArgs(1),
		Example: `  plasmactl programs parts 12 13`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(a *app) error {
				views, err := a.service.ProgramParts(cmd.Context(), ids)
				if err != nil {
					return err
				}
				return emit(cmd, views, func(w io.Writer) error { return renderPartViews(w, views, a.lang) })
			})
		},
	}
}

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Production reports",
	}

	var from, to string
	parts := &cobra.Command{
		Use:   "parts",
		Short: "Parts imported within a time window",
		Example: `  # Parts imported in March
  plasmactl report parts --from 2024-03-01 --to 2024-04-01 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := windowRequest(from, to)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(a *app) error {
				views, err := a.service.PartsReport(cmd.Context(), req)
				if err != nil {
					return err
				}
				return emit(cmd, views, func(w io.Writer) error { return renderPartViews(w, views, a.lang) })
			})
		},
	}
	parts.Flags().StringVar(&from, "from", "", "window start (RFC 3339 or YYYY-MM-DD)")
	parts.Flags().StringVar(&to, "to", "", "window end (RFC 3339 or YYYY-MM-DD)")
	_ = parts.MarkFlagRequired("from")
	_ = parts.MarkFlagRequired("to")

	cmd.AddCommand(parts)
	return cmd
}

func renderPrograms(w io.Writer, programs []*model.Program, lang language.Tag) error {
	rows := make([][]string, 0, len(programs))
	for _, p := range programs {
		rows = append(rows, []string{
			strconv.FormatInt(p.ID, 10),
			p.ProgramName,
			p.Status.Label(lang),
			p.Priority.Label(lang),
			p.MachineName,
			p.Material,
			formatTime(&p.PostDateTime),
			formatTime(p.StartedAt),
			formatTime(p.FinishedAt),
		})
	}
	return writeTable(w, []string{"ID", "Program", "Status", "Priority", "Machine", "Material", "Posted", "Started", "Finished"}, rows)
}

func renderPartViews(w io.Writer, views []model.PartView, lang language.Tag) error {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			strconv.FormatInt(v.Part.ID, 10),
			v.Part.PartName,
			v.ProgramName,
			v.WONumber,
			v.CustomerName,
			strconv.FormatInt(v.Part.QtyInProcess, 10),
			formatInt(v.Part.QtyFact),
			v.Part.Status.Label(lang),
			formatString(v.StorageCellName),
			formatString(v.DoneByWorker),
		})
	}
	return writeTable(w, []string{"ID", "Part", "Program", "Order", "Customer", "Qty", "Fact", "Status", "Cell", "Worker"}, rows)
}
