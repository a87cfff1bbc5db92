package commands

import (
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/plasmareport/plasmareport/pkg/model"
)

func newAuditCommand() *cobra.Command {
	var (
		action string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the workflow audit trail, newest first",
		Example: `  # Last 20 assignments
  plasmactl audit --action program.assigned --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				entries, err := a.service.AuditTrail(cmd.Context(), action, limit, offset)
				if err != nil {
					return err
				}
				return emit(cmd, entries, func(w io.Writer) error {
					rows := make([][]string, 0, len(entries))
					for _, e := range entries {
						rows = append(rows, []string{
							strconv.FormatInt(e.ID, 10),
							formatTime(&e.Timestamp),
							model.ActionLabel(a.lang, e.Action),
							e.Actor,
							formatString(e.TargetID),
						})
					}
					return writeTable(w, []string{"ID", "Time", "Action", "Actor", "Target"}, rows)
				})
			})
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "only entries with this event type")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "entries to skip")

	return cmd
}

func newMetricsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics until interrupted",
		Long: `Serve the Prometheus endpoint configured under telemetry.metrics. The program
status gauges are refreshed once at startup; "sync watch" keeps them current.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				if err := a.service.RefreshProgramGauges(cmd.Context()); err != nil {
					return err
				}
				return a.tel.Metrics.Serve(cmd.Context(), a.logger)
			})
		},
	}
}
