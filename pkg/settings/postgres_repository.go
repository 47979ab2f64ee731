package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by a pgx pool, connection or transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type PostgresOptionStore struct {
	db DBTX
}

func NewPostgresOptionStore(db DBTX) *PostgresOptionStore {
	return &PostgresOptionStore{db: db}
}

func (s *PostgresOptionStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM options WHERE name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get option %s: %w", name, err)
	}
	return value, true, nil
}

func (s *PostgresOptionStore) Put(ctx context.Context, name string, value []byte) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO options (name, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		name, value)
	if err != nil {
		return fmt.Errorf("failed to put option %s: %w", name, err)
	}
	return nil
}
