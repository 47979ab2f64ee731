package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-secure/pkg/config"
	"github.com/tendant/simple-secure/pkg/migrations"
)

var errNotPostgres = errors.New("migrations require SECURE_PERSISTENCE_TYPE=postgres")

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}
	cmd.AddCommand(newMigrateStepCmd("up", "Apply all pending migrations", migrations.Up))
	cmd.AddCommand(newMigrateStepCmd("down", "Roll back the most recent migration", migrations.Down))
	cmd.AddCommand(newMigrateStepCmd("status", "Show migration status", migrations.Status))
	return cmd
}

func newMigrateStepCmd(use, short string, step func(context.Context, *sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.PersistenceType != config.PersistencePostgres {
				return errNotPostgres
			}

			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			db := stdlib.OpenDBFromPool(pool)
			defer db.Close()
			if err := step(ctx, db); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}
			return nil
		},
	}
}
