package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plasmareport/plasmareport/pkg/workflow"
)

var (
	// Global flags
	configPath  string
	verbose     bool
	jsonOutput  bool
	displayLang string
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps a command error to the process exit status, one per
// workflow error class and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var werr *workflow.Error
	if !errors.As(err, &werr) {
		return 1
	}
	switch werr.Class {
	case workflow.ClassValidation:
		return 2
	case workflow.ClassNotFound:
		return 3
	case workflow.ClassConflict:
		return 4
	case workflow.ClassEmptyResult:
		return 5
	case workflow.ClassStorage:
		return 6
	default:
		return 1
	}
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "plasmactl",
		Short: "PlasmaReport - plasma cutting shop floor workflow",
		Long: `PlasmaReport tracks plasma cutting programs from the nesting system to the
shop floor.

Features:
  - Imports programs, work orders and parts from the nesting database or exports
  - Reconciles local data when the nesting system changes a program
  - Assigns programs to workers with a priority
  - Records claimed parts and accepted quantities
  - Rolls finished programs up to DONE
  - Keeps an audit trail of every workflow event`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&displayLang, "lang", "", "table label language (en, ru); overrides display.language")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newAssignCommand())
	rootCmd.AddCommand(newStartCommand())
	rootCmd.AddCommand(newClaimCommand())
	rootCmd.AddCommand(newAcceptCommand())
	rootCmd.AddCommand(newProgramsCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newWorkersCommand())
	rootCmd.AddCommand(newCellsCommand())
	rootCmd.AddCommand(newAuditCommand())
	rootCmd.AddCommand(newMetricsCommand())

	return rootCmd
}
