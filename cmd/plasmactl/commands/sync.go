package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/plasmareport/plasmareport/pkg/model"
	"github.com/plasmareport/plasmareport/pkg/nesting"
	"github.com/plasmareport/plasmareport/pkg/telemetry"
	"github.com/plasmareport/plasmareport/pkg/workflow"
)

func newSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize programs with the nesting system",
		Long: `Synchronize local programs, work orders and parts with the nesting system.

  create   import new programs; fails if any already exists
  update   reconcile existing programs; programs already in production are skipped
  programs create the unknown names and update the rest
  window   synchronize every program posted within a time window
  watch    follow the export directory and synchronize changed programs`,
	}

	cmd.AddCommand(newSyncNamesCommand("create", "Import new programs", func(s *workflow.Service) syncFunc {
		return s.CreatePrograms
	}))
	cmd.AddCommand(newSyncNamesCommand("update", "Reconcile existing programs", func(s *workflow.Service) syncFunc {
		return s.UpdatePrograms
	}))
	cmd.AddCommand(newSyncNamesCommand("programs", "Create or update programs by name", func(s *workflow.Service) syncFunc {
		return s.SyncPrograms
	}))
	cmd.AddCommand(newSyncWindowCommand())
	cmd.AddCommand(newSyncWatchCommand())

	return cmd
}

type syncFunc func(ctx context.Context, req workflow.ProgramNamesRequest) (*workflow.SyncReport, error)

func newSyncNamesCommand(use, short string, pick func(s *workflow.Service) syncFunc) *cobra.Command {
	return &cobra.Command{
		Use:     use + " PROGRAM...",
		Short:   short,
		Args:    cobra.MinimumNArgs(1),
		Example: fmt.Sprintf("  plasmactl sync %s GS-22-141862 SP-3-142202", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().Str("mode", use).Strs("programs", args).Msg("Synchronizing programs")

			return withApp(cmd.Context(), func(a *app) error {
				report, err := pick(a.service)(cmd.Context(), workflow.ProgramNamesRequest{Names: args})
				if err != nil {
					return err
				}
				return emit(cmd, report, func(w io.Writer) error { return renderSyncReport(w, report) })
			})
		},
	}
}

func newSyncWindowCommand() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Synchronize programs posted within a time window",
		Example: `  # Everything posted on the first of March
  plasmactl sync window --from 2024-03-01 --to 2024-03-02`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := windowRequest(from, to)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), func(a *app) error {
				report, err := a.service.SyncWindow(cmd.Context(), req)
				if err != nil {
					return err
				}
				return emit(cmd, report, func(w io.Writer) error { return renderSyncReport(w, report) })
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "window start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "window end (RFC 3339 or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newSyncWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Synchronize programs whenever their export files change",
		Long: `Watch the configured export directory. Every program found in a written or
created export file is created when unknown and reconciled otherwise.

The metrics endpoint is served while watching when metrics are enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				dir := a.cfg.Nesting.ExportDir
				if dir == "" {
					return fmt.Errorf("sync watch needs nesting.export_dir")
				}

				subscribeWatchEvents(a.tel.Events, cmd.OutOrStdout(), a.lang, a.logger)

				watcher := nesting.NewWatcher(dir, a.cfg.Nesting.SettleDelay, a.logger)
				onChange := func(ctx context.Context, programs []string) error {
					report, err := a.service.SyncPrograms(ctx, workflow.ProgramNamesRequest{Names: programs})
					if err != nil {
						// One bad export must not stop the watcher. The
						// sync.failed event carries the error to the log.
						a.logger.Debug().Err(err).Strs("programs", programs).Msg("Sync of changed exports failed")
						return nil
					}
					a.logger.Info().
						Str("run_id", report.RunID).
						Int("created", len(report.Created)).
						Int("updated", len(report.Updated)).
						Int("skipped", len(report.Skipped)).
						Msg("Synchronized changed exports")
					if err := a.service.RefreshProgramGauges(ctx); err != nil {
						a.logger.Warn().Err(err).Msg("Failed to refresh program gauges")
					}
					return nil
				}

				g, ctx := errgroup.WithContext(cmd.Context())
				g.Go(func() error { return a.tel.Metrics.Serve(ctx, a.logger) })
				g.Go(func() error { return watcher.Run(ctx, onChange) })
				return g.Wait()
			})
		},
	}
}

// subscribeWatchEvents prints each program change to w and logs sync events
// of warning level and above.
func subscribeWatchEvents(events *telemetry.EventPublisher, w io.Writer, lang language.Tag, logger zerolog.Logger) {
	events.Subscribe(func(e telemetry.Event) {
		name, _ := e.Data["program_name"].(string)
		fmt.Fprintf(w, "%s  %s  %s\n", formatTime(&e.Timestamp), model.ActionLabel(lang, e.Type), name)
	}, telemetry.FilterByType(
		telemetry.EventTypeProgramCreated,
		telemetry.EventTypeProgramUpdated,
		telemetry.EventTypeProgramDeleted,
	))

	events.Subscribe(func(e telemetry.Event) {
		level := zerolog.WarnLevel
		if e.Level == telemetry.EventLevelError {
			level = zerolog.ErrorLevel
		}
		logger.WithLevel(level).
			Str("event", e.Type).
			Str("run_id", e.RunID).
			Interface("data", e.Data).
			Msg(e.Message)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
}

func windowRequest(from, to string) (workflow.WindowRequest, error) {
	start, err := parseWindowTime(from)
	if err != nil {
		return workflow.WindowRequest{}, err
	}
	end, err := parseWindowTime(to)
	if err != nil {
		return workflow.WindowRequest{}, err
	}
	return workflow.WindowRequest{From: start, To: end}, nil
}

func renderSyncReport(w io.Writer, r *workflow.SyncReport) error {
	fmt.Fprintf(w, "Sync %s (%s)\n", r.RunID, r.Mode)

	var rows [][]string
	for _, c := range r.Created {
		rows = append(rows, []string{"created", c.ProgramName, strconv.FormatInt(c.ProgramID, 10),
			fmt.Sprintf("%d parts", c.Parts)})
	}
	for _, u := range r.Updated {
		rows = append(rows, []string{"updated", u.ProgramName, strconv.FormatInt(u.ProgramID, 10),
			fmt.Sprintf("%d fields, %d changed, %d added, %d removed parts",
				len(u.Fields), len(u.Changed), len(u.Added), len(u.Removed))})
	}
	for _, name := range r.Deleted {
		rows = append(rows, []string{"deleted", name, "-", "gone from the nesting system"})
	}
	for _, name := range r.Empty {
		rows = append(rows, []string{"empty", name, "-", "no part rows in the nesting system"})
	}
	for _, s := range r.Skipped {
		rows = append(rows, []string{"skipped", s.ProgramName, strconv.FormatInt(s.ProgramID, 10),
			"status " + string(s.Status)})
	}
	if err := writeTable(w, []string{"Change", "Program", "ID", "Details"}, rows); err != nil {
		return err
	}

	if len(r.OrdersCreated) > 0 {
		fmt.Fprintf(w, "Orders created: %s\n", strings.Join(r.OrdersCreated, ", "))
	}
	if len(r.OrdersUpdated) > 0 {
		numbers := make([]string, 0, len(r.OrdersUpdated))
		for _, o := range r.OrdersUpdated {
			numbers = append(numbers, o.WONumber)
		}
		fmt.Fprintf(w, "Orders updated: %s\n", strings.Join(numbers, ", "))
	}
	if r.OrdersDeleted > 0 {
		fmt.Fprintf(w, "Orphan orders deleted: %d\n", r.OrdersDeleted)
	}
	return nil
}
