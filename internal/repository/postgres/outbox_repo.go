package postgres

import (
	"context"
	"encoding/json"

	"github.com/and161185/cv-keeper/internal/model"
)

// OutboxRepo implements OutboxRepository using PostgreSQL.
type OutboxRepo struct{ db *DB }

// NewOutboxRepo constructs an outbox repository.
func NewOutboxRepo(db *DB) *OutboxRepo { return &OutboxRepo{db: db} }

// Pending returns undelivered, non-dead entries in id order.
func (r *OutboxRepo) Pending(ctx context.Context, limit int) ([]model.OutboxEntry, error) {
	const q = `
SELECT id, cv_id, kind, event, attempts, last_error, created_at
FROM cv_outbox WHERE delivered_at IS NULL AND dead_at IS NULL
ORDER BY id ASC LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OutboxEntry
	for rows.Next() {
		var (
			e        model.OutboxEntry
			kind     string
			snapshot []byte
		)
		if err := rows.Scan(&e.ID, &e.CVID, &kind, &snapshot, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = model.OutboxKind(kind)
		if len(snapshot) > 0 {
			var ev model.StoredEvent
			if err := json.Unmarshal(snapshot, &ev); err != nil {
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
	const q = `UPDATE cv_outbox SET delivered_at=now() WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id)
	return err
}

// MarkFailed records a failed attempt and optionally dead-letters the entry.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id int64, reason string, dead bool) error {
	const q = `
UPDATE cv_outbox SET attempts=attempts+1, last_error=$2,
  dead_at=CASE WHEN $3::boolean THEN now() ELSE NULL END
WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, reason, dead)
	return err
}
