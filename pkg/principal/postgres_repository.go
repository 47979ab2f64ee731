package principal

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
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectPrincipal = `SELECT id, username, email, display_name, roles, created_at FROM principals`

func (r *PostgresRepository) GetByID(ctx context.Context, id ID) (Principal, error) {
	row := r.db.QueryRow(ctx, selectPrincipal+` WHERE id = $1`, int64(id))
	p, err := scanPrincipal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Principal{}, ErrPrincipalNotFound
	}
	if err != nil {
		return Principal{}, fmt.Errorf("failed to get principal: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]Principal, error) {
	rows, err := r.db.Query(ctx, selectPrincipal+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list principals: %w", err)
	}
	defer rows.Close()

	var out []Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan principal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Save(ctx context.Context, p Principal) (Principal, error) {
	roles := p.Roles
	if roles == nil {
		roles = []string{}
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO principals (id, username, email, display_name, roles)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET username = EXCLUDED.username,
		    email = EXCLUDED.email,
		    display_name = EXCLUDED.display_name,
		    roles = EXCLUDED.roles
		RETURNING id, username, email, display_name, roles, created_at`,
		int64(p.ID), p.Username, p.Email, p.DisplayName, roles)
	saved, err := scanPrincipal(row)
	if err != nil {
		return Principal{}, fmt.Errorf("failed to save principal: %w", err)
	}
	return saved, nil
}

func scanPrincipal(row pgx.Row) (Principal, error) {
	var p Principal
	var id int64
	if err := row.Scan(&id, &p.Username, &p.Email, &p.DisplayName, &p.Roles, &p.CreatedAt); err != nil {
		return Principal{}, err
	}
	p.ID = ID(id)
	return p, nil
}
