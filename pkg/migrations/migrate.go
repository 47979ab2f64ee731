// Package migrations applies the Postgres schema used by the postgres persistence backend.
package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const dir = "sql"

func prepare() error {
	goose.SetBaseFS(EmbedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	return nil
}

// Up executes all pending migrations.
func Up(ctx context.Context, db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	return nil
}

// Status prints the applied state of every migration through goose's logger.
func Status(ctx context.Context, db *sql.DB) error {
	if err := prepare(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, db, dir); err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	return nil
}

// UpPool runs Up over a pgx pool.
func UpPool(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return Up(ctx, db)
}
