package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
)

// EventRepo implements EventRepository on SQLite.
type EventRepo struct {
	db     *DB
	outbox bool
	now    func() time.Time
}

// EventRepoOption configures an EventRepo.
type EventRepoOption func(*EventRepo)

// WithOutbox enqueues a cv_outbox row alongside every append and undo.
func WithOutbox() EventRepoOption { return func(r *EventRepo) { r.outbox = true } }

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) EventRepoOption { return func(r *EventRepo) { r.now = now } }

// NewEventRepo constructs an event repository.
func NewEventRepo(db *DB, opts ...EventRepoOption) *EventRepo {
	r := &EventRepo{db: db, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

const eventCols = `id, version, event_type, user_id, payload, signature, created_at`

// Append stores ev as version expectedVersion+1.
func (r *EventRepo) Append(ctx context.Context, ev model.Event, expectedVersion int64) (model.StoredEvent, error) {
	var out model.StoredEvent
	err := withTx(ctx, r.db.SQL, func(tx *sql.Tx) error {
		var cur, prev int64
		err := tx.QueryRowContext(ctx,
			`SELECT version, created_at FROM cv_events WHERE cv_id = ? ORDER BY version DESC LIMIT 1`, ev.CVID,
		).Scan(&cur, &prev)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("read head: %w", err)
		}
		if cur != expectedVersion {
			return fmt.Errorf("cv %s at %d, expected %d: %w", ev.CVID, cur, expectedVersion, errs.ErrVersionConflict)
		}

		createdAt := r.now().UTC()
		if prevAt := fromNanos(prev); prev != 0 && createdAt.Before(prevAt) {
			createdAt = prevAt
		}
		out = model.StoredEvent{Event: ev, Version: cur + 1, CreatedAt: createdAt}
		res, err := tx.ExecContext(ctx, `
INSERT INTO cv_events (cv_id, version, event_type, user_id, payload, signature, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.CVID, out.Version, string(ev.Type), ev.UserID, string(ev.Payload), ev.Signature, toNanos(createdAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("cv %s version %d: %w", ev.CVID, out.Version, errs.ErrVersionConflict)
			}
			return fmt.Errorf("insert event: %w", err)
		}
		if out.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		if r.outbox {
			return r.enqueue(ctx, tx, ev.CVID, model.OutboxEvent, &out)
		}
		return nil
	})
	if err != nil {
		return model.StoredEvent{}, err
	}
	return out, nil
}

// ListByCV returns all events of a CV in version order.
func (r *EventRepo) ListByCV(ctx context.Context, cvID string) ([]model.StoredEvent, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT `+eventCols+` FROM cv_events WHERE cv_id = ? ORDER BY version ASC`, cvID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := make([]model.StoredEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		ev.CVID = cvID
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Head returns the newest version of a CV, 0 when it has no events.
func (r *EventRepo) Head(ctx context.Context, cvID string) (int64, error) {
	var v int64
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM cv_events WHERE cv_id = ?`, cvID).Scan(&v)
	return v, err
}

// DeleteLatest removes the newest event of a CV and returns it.
func (r *EventRepo) DeleteLatest(ctx context.Context, cvID string) (model.StoredEvent, error) {
	var out model.StoredEvent
	err := withTx(ctx, r.db.SQL, func(tx *sql.Tx) error {
		ev, err := scanEvent(tx.QueryRowContext(ctx,
			`SELECT `+eventCols+` FROM cv_events WHERE cv_id = ? ORDER BY version DESC LIMIT 1`, cvID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		ev.CVID = cvID
		if _, err := tx.ExecContext(ctx, `DELETE FROM cv_events WHERE id = ?`, ev.ID); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		out = ev
		if r.outbox {
			return r.enqueue(ctx, tx, cvID, model.OutboxRebuild, nil)
		}
		return nil
	})
	if err != nil {
		return model.StoredEvent{}, err
	}
	return out, nil
}

func (r *EventRepo) enqueue(ctx context.Context, tx *sql.Tx, cvID string, kind model.OutboxKind, ev *model.StoredEvent) error {
	var snapshot sql.NullString
	if ev != nil {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		snapshot = sql.NullString{String: string(b), Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO cv_outbox (cv_id, kind, event, created_at) VALUES (?, ?, ?, ?)`,
		cvID, string(kind), snapshot, toNanos(r.now()),
	)
	if err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.StoredEvent, error) {
	var (
		ev        model.StoredEvent
		typ       string
		payload   string
		createdAt int64
	)
	if err := row.Scan(&ev.ID, &ev.Version, &typ, &ev.UserID, &payload, &ev.Signature, &createdAt); err != nil {
		return model.StoredEvent{}, err
	}
	ev.Type = model.EventType(typ)
	ev.Payload = json.RawMessage(payload)
	ev.CreatedAt = fromNanos(createdAt)
	return ev, nil
}
