package activitylog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tendant/simple-secure/pkg/principal"
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

func (r *PostgresRepository) Insert(ctx context.Context, e Entry) (Entry, error) {
	var contextJSON []byte
	if len(e.Context) > 0 {
		var err error
		if contextJSON, err = json.Marshal(e.Context); err != nil {
			return Entry{}, fmt.Errorf("failed to marshal log context: %w", err)
		}
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO activity_logs (created_at, severity, event, message, context, user_id, site_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		e.CreatedAt, string(e.Severity), e.Event, e.Message, contextJSON,
		nullableID(int64(e.UserID)), nullableID(e.SiteID),
	).Scan(&e.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert log entry: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Find(ctx context.Context, f Filter, limit, offset int) ([]Entry, error) {
	where, args := whereClause(f)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT id, created_at, severity, event, message, context, user_id, site_id
		FROM activity_logs %s
		ORDER BY id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e           Entry
			severity    string
			contextJSON []byte
			userID      *int64
			siteID      *int64
		)
		if err := rows.Scan(&e.ID, &e.CreatedAt, &severity, &e.Event, &e.Message, &contextJSON, &userID, &siteID); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		e.Severity = Severity(severity)
		e.CreatedAt = e.CreatedAt.UTC()
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &e.Context); err != nil {
				return nil, fmt.Errorf("failed to decode log context: %w", err)
			}
		}
		if userID != nil {
			e.UserID = principal.ID(*userID)
		}
		if siteID != nil {
			e.SiteID = *siteID
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *PostgresRepository) Count(ctx context.Context, f Filter) (int, error) {
	where, args := whereClause(f)
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM activity_logs `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count log entries: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DistinctEvents(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT event FROM activity_logs ORDER BY event ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []string{}
	for rows.Next() {
		var ev string
		if err := rows.Scan(&ev); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *PostgresRepository) Truncate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `TRUNCATE TABLE activity_logs`); err != nil {
		return fmt.Errorf("failed to truncate activity logs: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM activity_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func whereClause(f Filter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.Severity != "" {
		args = append(args, string(f.Severity))
		conds = append(conds, fmt.Sprintf("severity = $%d", len(args)))
	}
	if f.Event != "" {
		args = append(args, f.Event)
		conds = append(conds, fmt.Sprintf("event = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func nullableID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}
