package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/cv-keeper/internal/cache"
	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
	"github.com/and161185/cv-keeper/internal/projector"
	"github.com/and161185/cv-keeper/internal/repository"
)

// EventVerifier recomputes event signatures.
type EventVerifier interface {
	Verify(ev model.Event) bool
}

// Synchronizer keeps cv_projections in line with the event log. It is the
// Notifier in direct sync mode and the outbox relay's sink otherwise.
type Synchronizer struct {
	events      repository.EventRepository
	projections repository.ProjectionRepository
	cache       cache.ProjectionCache
	verifier    EventVerifier
	verify      bool
	log         *zap.Logger
}

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithCache sets the cache invalidated after every projection write.
func WithCache(c cache.ProjectionCache) SyncOption {
	return func(s *Synchronizer) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithVerifier enables VerifyCV. With onRead set, rebuilds and incremental
// applies also reject events whose signature does not verify.
func WithVerifier(v EventVerifier, onRead bool) SyncOption {
	return func(s *Synchronizer) {
		s.verifier = v
		s.verify = v != nil && onRead
	}
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(
	events repository.EventRepository,
	projections repository.ProjectionRepository,
	log *zap.Logger,
	opts ...SyncOption,
) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Synchronizer{events: events, projections: projections, cache: cache.Nop{}, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EventAppended applies the event directly; used when sync mode is direct.
func (s *Synchronizer) EventAppended(ctx context.Context, ev model.StoredEvent) error {
	return s.OnEvent(ctx, ev)
}

// EventUndone rebuilds directly; used when sync mode is direct.
func (s *Synchronizer) EventUndone(ctx context.Context, cvID string) error {
	return s.OnUndo(ctx, cvID)
}

// OnEvent applies one event incrementally. Redelivered events are ignored and
// a version gap falls back to a full rebuild.
func (s *Synchronizer) OnEvent(ctx context.Context, ev model.StoredEvent) error {
	cur, err := s.projections.Get(ctx, ev.CVID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		if ev.Type != model.EventCVCreated {
			s.log.Debug("no projection for event, dropped",
				zap.String("cv_id", ev.CVID), zap.String("event_type", string(ev.Type)), zap.Int64("version", ev.Version))
			return nil
		}
		cur = &model.Projection{}
	case err != nil:
		return err
	}

	if cur.Version > 0 && ev.Version <= cur.Version {
		s.log.Debug("stale event ignored",
			zap.String("cv_id", ev.CVID), zap.Int64("version", ev.Version), zap.Int64("projection_version", cur.Version))
		return nil
	}
	if ev.Version != cur.Version+1 {
		s.log.Info("version gap, rebuilding",
			zap.String("cv_id", ev.CVID), zap.Int64("version", ev.Version), zap.Int64("projection_version", cur.Version))
		return s.Resync(ctx, ev.CVID)
	}
	if s.verify && !s.verifier.Verify(ev.Event) {
		return fmt.Errorf("cv %s version %d: %w", ev.CVID, ev.Version, errs.ErrBadSignature)
	}

	next, err := projector.Apply(*cur, ev)
	if err != nil {
		return fmt.Errorf("apply cv %s version %d: %w", ev.CVID, ev.Version, err)
	}
	if err := s.projections.Save(ctx, next); err != nil {
		return err
	}
	s.invalidate(ctx, ev.CVID)
	return nil
}

// OnUndo replaces the projection with a full fold of the remaining log.
func (s *Synchronizer) OnUndo(ctx context.Context, cvID string) error {
	return s.Resync(ctx, cvID)
}

// Resync folds the whole history and replaces the row, or deletes it when no events remain.
func (s *Synchronizer) Resync(ctx context.Context, cvID string) error {
	events, err := s.history(ctx, cvID)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		if err := s.projections.Delete(ctx, cvID); err != nil {
			return err
		}
		s.invalidate(ctx, cvID)
		return nil
	}
	p, err := projector.Fold(events)
	if err != nil {
		return fmt.Errorf("rebuild cv %s: %w", cvID, err)
	}
	if err := s.projections.Save(ctx, p); err != nil {
		return err
	}
	s.invalidate(ctx, cvID)
	return nil
}

// RebuildToVersion folds the first version events without persisting.
// Version 0 folds the whole log, a read that does not depend on the stored row.
func (s *Synchronizer) RebuildToVersion(ctx context.Context, cvID string, version int64) (model.Projection, error) {
	events, err := s.history(ctx, cvID)
	if err != nil {
		return model.Projection{}, err
	}
	if len(events) == 0 {
		return model.Projection{}, fmt.Errorf("cv %s: %w", cvID, errs.ErrNotFound)
	}
	if version == 0 {
		return projector.Fold(events)
	}
	return projector.FoldPrefix(events, version)
}

// VerifyCV returns the versions whose signature does not verify.
func (s *Synchronizer) VerifyCV(ctx context.Context, cvID string) ([]int64, error) {
	if s.verifier == nil {
		return nil, errors.New("signature verification is not configured")
	}
	events, err := s.events.ListByCV(ctx, cvID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("cv %s: %w", cvID, errs.ErrNotFound)
	}
	bad := make([]int64, 0)
	for _, ev := range events {
		if !s.verifier.Verify(ev.Event) {
			bad = append(bad, ev.Version)
		}
	}
	return bad, nil
}

func (s *Synchronizer) history(ctx context.Context, cvID string) ([]model.StoredEvent, error) {
	events, err := s.events.ListByCV(ctx, cvID)
	if err != nil {
		return nil, err
	}
	if s.verify {
		for _, ev := range events {
			if !s.verifier.Verify(ev.Event) {
				return nil, fmt.Errorf("cv %s version %d: %w", cvID, ev.Version, errs.ErrBadSignature)
			}
		}
	}
	return events, nil
}

func (s *Synchronizer) invalidate(ctx context.Context, cvID string) {
	if err := s.cache.Invalidate(ctx, cvID); err != nil {
		s.log.Warn("cache invalidation failed", zap.String("cv_id", cvID), zap.Error(err))
	}
}
