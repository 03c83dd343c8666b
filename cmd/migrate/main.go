// Command migrate applies, inspects and rolls back the SQL migrations of the
// comment database. Automatic gorm schema sync is governed by DB_SCHEMA_MODE
// on server start, not by this tool.
package main

import (
	"fmt"
	"os"
	"strconv"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/observability"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var db *gorm.DB
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage SQL schema migrations",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			observability.ConfigureLogger(cfg.Env, cfg.LogLevel)
			db, err = database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			return nil
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := database.RunMigrations(cmd.Context(), db); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := database.GetSchemaStatus(cmd.Context(), db)
			if err != nil {
				return fmt.Errorf("schema status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "applied: %v\n", status.AppliedVersions)
			for _, m := range status.PendingMigrations {
				fmt.Fprintf(out, "pending: %s\n", m.String())
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "down <version>",
		Short: "Roll back one applied migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			if err := database.RollbackMigration(cmd.Context(), db, version); err != nil {
				return fmt.Errorf("roll back %d: %w", version, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d\n", version)
			return nil
		},
	})
	return root
}
