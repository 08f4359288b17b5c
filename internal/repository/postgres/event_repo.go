package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
)

// EventRepo implements EventRepository using PostgreSQL.
type EventRepo struct {
	db     *DB
	outbox bool
	now    func() time.Time
}

// EventRepoOption configures an EventRepo.
type EventRepoOption func(*EventRepo)

// WithOutbox makes Append and DeleteLatest enqueue a cv_outbox row in the same transaction.
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
func (r *EventRepo) Append(
	ctx context.Context, ev model.Event, expectedVersion int64,
) (out model.StoredEvent, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.StoredEvent{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const head = `SELECT version, created_at FROM cv_events WHERE cv_id=$1 ORDER BY version DESC LIMIT 1 FOR UPDATE`
	const ins = `INSERT INTO cv_events (cv_id, version, event_type, user_id, payload, signature, created_at) VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`

	var (
		cur  int64
		prev time.Time
	)
	if err = tx.QueryRow(ctx, head, ev.CVID).Scan(&cur, &prev); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return model.StoredEvent{}, err
		}
		err = nil
	}
	if cur != expectedVersion {
		return model.StoredEvent{}, fmt.Errorf("cv %s at %d, expected %d: %w", ev.CVID, cur, expectedVersion, errs.ErrVersionConflict)
	}

	createdAt := r.now().UTC().Truncate(time.Microsecond)
	if createdAt.Before(prev) {
		createdAt = prev
	}
	out = model.StoredEvent{Event: ev, Version: cur + 1, CreatedAt: createdAt}
	err = tx.QueryRow(ctx, ins,
		ev.CVID, out.Version, string(ev.Type), ev.UserID, []byte(ev.Payload), ev.Signature, createdAt,
	).Scan(&out.ID)
	if err != nil {
		if isUniqueViolation(err) {
			err = fmt.Errorf("cv %s version %d: %w", ev.CVID, out.Version, errs.ErrVersionConflict)
		}
		return model.StoredEvent{}, err
	}

	if r.outbox {
		if err = enqueue(ctx, tx, ev.CVID, model.OutboxEvent, &out); err != nil {
			return model.StoredEvent{}, err
		}
	}
	return out, nil
}

// ListByCV returns all events of a CV in version order.
func (r *EventRepo) ListByCV(ctx context.Context, cvID string) ([]model.StoredEvent, error) {
	const q = `SELECT ` + eventCols + ` FROM cv_events WHERE cv_id=$1 ORDER BY version ASC`
	rows, err := r.db.Pool.Query(ctx, q, cvID)
	if err != nil {
		return nil, err
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
	const q = `SELECT COALESCE(MAX(version),0) FROM cv_events WHERE cv_id=$1`
	var v int64
	if err := r.db.Pool.QueryRow(ctx, q, cvID).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

// DeleteLatest removes the newest event of a CV and returns it.
func (r *EventRepo) DeleteLatest(ctx context.Context, cvID string) (out model.StoredEvent, err error) {
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.StoredEvent{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const sel = `SELECT ` + eventCols + ` FROM cv_events WHERE cv_id=$1 ORDER BY version DESC LIMIT 1 FOR UPDATE`
	// The NOT EXISTS guard catches an append that committed while we waited for the row lock.
	const del = `DELETE FROM cv_events WHERE id=$1 AND NOT EXISTS (SELECT 1 FROM cv_events WHERE cv_id=$2 AND version>$3)`

	out, err = scanEvent(tx.QueryRow(ctx, sel, cvID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StoredEvent{}, errs.ErrNotFound
		}
		return model.StoredEvent{}, err
	}
	out.CVID = cvID

	tag, err := tx.Exec(ctx, del, out.ID, cvID, out.Version)
	if err != nil {
		return model.StoredEvent{}, err
	}
	if tag.RowsAffected() == 0 {
		return model.StoredEvent{}, fmt.Errorf("cv %s moved past %d: %w", cvID, out.Version, errs.ErrVersionConflict)
	}

	if r.outbox {
		if err = enqueue(ctx, tx, cvID, model.OutboxRebuild, nil); err != nil {
			return model.StoredEvent{}, err
		}
	}
	return out, nil
}

func scanEvent(row pgx.Row) (model.StoredEvent, error) {
	var (
		ev      model.StoredEvent
		typ     string
		payload []byte
	)
	if err := row.Scan(&ev.ID, &ev.Version, &typ, &ev.UserID, &payload, &ev.Signature, &ev.CreatedAt); err != nil {
		return model.StoredEvent{}, err
	}
	ev.Type = model.EventType(typ)
	ev.Payload = json.RawMessage(payload)
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}

func enqueue(ctx context.Context, tx pgx.Tx, cvID string, kind model.OutboxKind, ev *model.StoredEvent) error {
	const q = `INSERT INTO cv_outbox (cv_id, kind, event) VALUES ($1,$2,$3)`
	var snapshot []byte
	if ev != nil {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		snapshot = b
	}
	_, err := tx.Exec(ctx, q, cvID, string(kind), snapshot)
	return err
}
