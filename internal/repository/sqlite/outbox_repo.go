package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/and161185/cv-keeper/internal/model"
)

// OutboxRepo implements OutboxRepository on SQLite.
type OutboxRepo struct {
	db  *DB
	now func() time.Time
}

// NewOutboxRepo constructs an outbox repository.
func NewOutboxRepo(db *DB) *OutboxRepo { return &OutboxRepo{db: db, now: time.Now} }

// Pending returns undelivered, non-dead entries in id order.
func (r *OutboxRepo) Pending(ctx context.Context, limit int) ([]model.OutboxEntry, error) {
	rows, err := r.db.SQL.QueryContext(ctx, `
SELECT id, cv_id, kind, event, attempts, last_error, created_at
FROM cv_outbox WHERE delivered_at IS NULL AND dead_at IS NULL
ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	var out []model.OutboxEntry
	for rows.Next() {
		var (
			e        model.OutboxEntry
			kind     string
			snapshot sql.NullString
			ts       int64
		)
		if err := rows.Scan(&e.ID, &e.CVID, &kind, &snapshot, &e.Attempts, &e.LastError, &ts); err != nil {
			return nil, err
		}
		e.Kind = model.OutboxKind(kind)
		e.CreatedAt = fromNanos(ts)
		if snapshot.Valid {
			var ev model.StoredEvent
			if err := json.Unmarshal([]byte(snapshot.String), &ev); err != nil {
				e.Corrupt = err.Error()
			} else {
				e.Event = &ev
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkDelivered stamps delivered_at.
func (r *OutboxRepo) MarkDelivered(ctx context.Context, id int64) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE cv_outbox SET delivered_at = ? WHERE id = ?`, toNanos(r.now()), id)
	return err
}

// MarkFailed records a failed attempt and optionally dead-letters the entry.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id int64, reason string, dead bool) error {
	var deadAt sql.NullInt64
	if dead {
		deadAt = sql.NullInt64{Int64: toNanos(r.now()), Valid: true}
	}
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE cv_outbox SET attempts = attempts + 1, last_error = ?, dead_at = ? WHERE id = ?`,
		reason, deadAt, id)
	return err
}
