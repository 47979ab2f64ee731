package impersonate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tendant/simple-secure/pkg/principal"
)

// DBTX is satisfied by a pgx pool, connection or transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, id principal.ID) (Record, bool, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, `
		SELECT principal_id, switched_from_id, switched_at
		FROM impersonation_records WHERE principal_id = $1`, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to get impersonation record: %w", err)
	}
	return rec, true, nil
}

func (r *PostgresRepository) Begin(ctx context.Context, rec Record) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO impersonation_records (principal_id, switched_from_id, switched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (principal_id) DO NOTHING`,
		int64(rec.PrincipalID), int64(rec.SwitchedFromID), rec.SwitchedAt)
	if err != nil {
		return fmt.Errorf("failed to begin impersonation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordExists
	}
	return nil
}

func (r *PostgresRepository) Clear(ctx context.Context, id principal.ID) (Record, bool, error) {
	rec, err := scanRecord(r.db.QueryRow(ctx, `
		DELETE FROM impersonation_records WHERE principal_id = $1
		RETURNING principal_id, switched_from_id, switched_at`, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("failed to clear impersonation record: %w", err)
	}
	return rec, true, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var pid, from int64
	var rec Record
	if err := row.Scan(&pid, &from, &rec.SwitchedAt); err != nil {
		return Record{}, err
	}
	rec.PrincipalID = principal.ID(pid)
	rec.SwitchedFromID = principal.ID(from)
	rec.SwitchedAt = rec.SwitchedAt.UTC()
	return rec, nil
}
