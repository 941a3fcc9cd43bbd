package main

import (
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxfit/backend/config"
	"github.com/foxfit/backend/internal/database"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the foxfit database schema",
		SilenceUsage: true,
	}
	root.AddCommand(newUpCommand(), newDownCommand(), newStatusCommand())
	return root
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *sql.DB) error {
				if err := database.RunMigrations(db); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
				return nil
			})
		},
	}
}

func newDownCommand() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withDB(func(db *sql.DB) error {
				for i := 0; i < steps; i++ {
					version, err := database.RollbackLast(db)
					if err != nil {
						return fmt.Errorf("rollback failed: %w", err)
					}
					if version == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Rolled back migration %d\n", version)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(db *sql.DB) error {
				applied, err := database.Applied(db)
				if err != nil {
					return err
				}
				at := make(map[int]time.Time, len(applied))
				for _, m := range applied {
					at[m.Version] = m.AppliedAt
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tSTATUS\tAPPLIED AT")
				for _, m := range database.Migrations {
					if t, ok := at[m.Version]; ok {
						fmt.Fprintf(w, "%d\tapplied\t%s\n", m.Version, t.Format(time.RFC3339))
					} else {
						fmt.Fprintf(w, "%d\tpending\t-\n", m.Version)
					}
				}
				return w.Flush()
			})
		},
	}
}

func withDB(fn func(db *sql.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := database.NewPostgresDB(cfg.GetDSN(), 2, 1)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db.DB)
}
