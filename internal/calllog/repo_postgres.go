package calllog

import (
	"context"
	"database/sql"
)

// PostgresRepo persists call history entries.
//
// It assumes a call_history table with an INSERT-only policy:
//
//	CREATE TABLE call_history (
//	    id          UUID PRIMARY KEY,
//	    call_id     TEXT NOT NULL,
//	    kind        TEXT NOT NULL,
//	    counterpart TEXT NOT NULL DEFAULT '',
//	    detail      TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX call_history_created_at_idx ON call_history (created_at DESC);

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Entry) error {
	const q = `
INSERT INTO call_history (id, call_id, kind, counterpart, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.CallID, e.Kind, e.Counterpart, e.Detail, e.CreatedAt)
	return err
}

func (r *PostgresRepo) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	const q = `
SELECT id, call_id, kind, counterpart, detail, created_at
FROM call_history
ORDER BY created_at DESC, id DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CallID, &e.Kind, &e.Counterpart, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
