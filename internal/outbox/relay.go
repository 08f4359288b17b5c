// Package outbox delivers committed cv_outbox entries to the projection synchronizer.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
	"github.com/and161185/cv-keeper/internal/repository"
)

// Sink receives outbox entries in commit order.
type Sink interface {
	OnEvent(ctx context.Context, ev model.StoredEvent) error
	OnUndo(ctx context.Context, cvID string) error
}

// Config tunes the relay loop. Zero values take defaults.
type Config struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// Relay polls the outbox on an interval and whenever it is kicked.
// Run it from a single goroutine per process.
type Relay struct {
	repo        repository.OutboxRepository
	sink        Sink
	log         *zap.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
	kick        chan struct{}
}

// New constructs a Relay.
func New(repo repository.OutboxRepository, sink Sink, log *zap.Logger, cfg Config) *Relay {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{
		repo:        repo,
		sink:        sink,
		log:         log,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		kick:        make(chan struct{}, 1),
	}
}

// Kick wakes the loop without waiting for the next tick. It never blocks.
func (r *Relay) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// EventAppended makes the relay the command side's notifier: the entry is
// already committed, so only a wake-up is needed.
func (r *Relay) EventAppended(context.Context, model.StoredEvent) error {
	r.Kick()
	return nil
}

// EventUndone wakes the relay for the rebuild entry written by the undo.
func (r *Relay) EventUndone(context.Context, string) error {
	r.Kick()
	return nil
}

// Run drains the outbox until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.log.Error("outbox iteration failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.kick:
		}
	}
}

// ProcessOnce delivers one batch and returns how many entries were delivered.
// A retryable failure blocks only the rest of that CV's entries for this pass;
// other CVs keep flowing.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	entries, err := r.repo.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("load outbox: %w", err)
	}

	delivered := 0
	blocked := make(map[string]struct{})
	for _, e := range entries {
		if _, ok := blocked[e.CVID]; ok {
			continue
		}
		derr := r.deliver(ctx, e)
		if derr == nil {
			if err := r.repo.MarkDelivered(ctx, e.ID); err != nil {
				return delivered, fmt.Errorf("mark outbox %d delivered: %w", e.ID, err)
			}
			delivered++
			continue
		}
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}

		attempts := e.Attempts + 1
		dead := attempts >= r.maxAttempts || permanent(derr)
		if err := r.repo.MarkFailed(ctx, e.ID, derr.Error(), dead); err != nil {
			return delivered, fmt.Errorf("mark outbox %d failed: %w", e.ID, err)
		}
		fields := []zap.Field{
			zap.Int64("outbox_id", e.ID),
			zap.String("cv_id", e.CVID),
			zap.String("kind", string(e.Kind)),
			zap.Int("attempts", attempts),
			zap.Error(derr),
		}
		if dead {
			r.log.Error("outbox entry dead-lettered", fields...)
			continue
		}
		r.log.Warn("outbox delivery failed, will retry", fields...)
		blocked[e.CVID] = struct{}{}
	}
	if len(entries) > 0 {
		r.log.Debug("outbox batch processed", zap.Int("entries", len(entries)), zap.Int("delivered", delivered))
	}
	return delivered, nil
}

var errMalformed = errors.New("malformed outbox entry")

// permanent reports failures that no retry can fix.
func permanent(err error) bool {
	return errors.Is(err, errMalformed) ||
		errors.Is(err, errs.ErrBadSignature) ||
		errors.Is(err, errs.ErrInvalidSequence) ||
		errors.Is(err, errs.ErrMalformedEvent)
}

func (r *Relay) deliver(ctx context.Context, e model.OutboxEntry) error {
	if e.Corrupt != "" {
		return fmt.Errorf("%w: snapshot: %s", errMalformed, e.Corrupt)
	}
	switch e.Kind {
	case model.OutboxEvent:
		if e.Event == nil {
			return fmt.Errorf("%w: event entry without snapshot", errMalformed)
		}
		return r.sink.OnEvent(ctx, *e.Event)
	case model.OutboxRebuild:
		return r.sink.OnUndo(ctx, e.CVID)
	default:
		return fmt.Errorf("%w: kind %q", errMalformed, e.Kind)
	}
}
