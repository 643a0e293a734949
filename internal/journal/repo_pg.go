package journal

import (
	"context"
	"database/sql"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a journal entry.
func (r *PGRepo) Create(ctx context.Context, entry Entry) error {
	const query = `
INSERT INTO request_journal (
    id,
    session_id,
    method,
    path,
    request_id,
    status,
    outcome,
    message,
    duration_ms,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	var message sql.NullString
	if entry.Message != "" {
		message = sql.NullString{String: entry.Message, Valid: true}
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.SessionID,
		entry.Method,
		entry.Path,
		entry.RequestID,
		entry.Status,
		entry.Outcome,
		message,
		entry.DurationMs,
		entry.CreatedAt,
	)
	return err
}

// ListBySession lists entries for a session ordered newest-first.
func (r *PGRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	const query = `
SELECT id, session_id, method, path, request_id, status, outcome, message, duration_ms, created_at
FROM request_journal
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT $2`

	rows, err := r.DB.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var entry Entry
		var message sql.NullString
		if err := rows.Scan(
			&entry.ID,
			&entry.SessionID,
			&entry.Method,
			&entry.Path,
			&entry.RequestID,
			&entry.Status,
			&entry.Outcome,
			&message,
			&entry.DurationMs,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if message.Valid {
			entry.Message = message.String
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
