package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/plasmareport/plasmareport/pkg/config"
)

func newInitCommand() *cobra.Command {
	var (
		force  bool
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a PlasmaReport workspace",
		Long: `Initialize a PlasmaReport workspace: write the default configuration, create
the export directory and create the local database with its schema.

An existing configuration file is kept unless --force is given.`,
		Example: `  # Initialize in the current directory
  plasmactl init

  # Initialize with a custom config and database path
  plasmactl init --config /etc/plasmareport/plasmareport.yaml --db /var/lib/plasmareport/plasma.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := configPath
			if path == "" {
				path = config.DefaultFile
			}

			log.Info().
				Str("config", path).
				Bool("force", force).
				Msg("Initializing workspace")

			cfg := config.Default()
			if _, err := os.Stat(path); err == nil && !force {
				loaded, err := loadConfig()
				if err != nil {
					return err
				}
				cfg = loaded
				done(out, "Using existing config file: %s", path)
			} else {
				if dbPath != "" {
					cfg.Database.Path = dbPath
				}
				if err := cfg.Write(path); err != nil {
					return err
				}
				done(out, "Created config file: %s", path)
			}

			if cfg.Nesting.Kind == "files" {
				if err := os.MkdirAll(cfg.Nesting.ExportDir, 0o755); err != nil {
					return fmt.Errorf("failed to create export directory: %w", err)
				}
				done(out, "Created export directory: %s", cfg.Nesting.ExportDir)
			}

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if !cfg.Database.AutoMigrate {
				if err := store.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("failed to run migrations: %w", err)
				}
			}
			done(out, "Initialized database: %s", cfg.Database.Path)

			fmt.Fprintln(out, "\nNext: register workers with \"plasmactl workers add\" and import programs with \"plasmactl sync create\".")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&dbPath, "db", "", "database path written to a new config file")

	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Database.AutoMigrate = true

			store, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.HealthCheck(cmd.Context()); err != nil {
				return fmt.Errorf("database health check failed: %w", err)
			}
			done(cmd.OutOrStdout(), "Database schema is up to date: %s", cfg.Database.Path)
			return nil
		},
	}
}
