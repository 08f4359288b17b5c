// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/cv-keeper/internal/model"
)

// EventRepository is the append-only CV event log.
type EventRepository interface {
	// Append stores ev as version expectedVersion+1. It fails with
	// errs.ErrVersionConflict when the CV head is not expectedVersion.
	Append(ctx context.Context, ev model.Event, expectedVersion int64) (model.StoredEvent, error)

	// ListByCV returns all events of a CV ordered by version.
	ListByCV(ctx context.Context, cvID string) ([]model.StoredEvent, error)

	// Head returns the latest version of a CV, 0 when it has no events.
	Head(ctx context.Context, cvID string) (int64, error)

	// DeleteLatest removes and returns the newest event (errs.ErrNotFound if none).
	DeleteLatest(ctx context.Context, cvID string) (model.StoredEvent, error)
}

// OutboxRepository exposes pending synchronizer notifications to the relay.
type OutboxRepository interface {
	// Pending returns undelivered, non-dead entries in id order.
	Pending(ctx context.Context, limit int) ([]model.OutboxEntry, error)
	// MarkDelivered records successful delivery.
	MarkDelivered(ctx context.Context, id int64) error
	// MarkFailed increments attempts; dead entries are never returned again.
	MarkFailed(ctx context.Context, id int64, reason string, dead bool) error
}
