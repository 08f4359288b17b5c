package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/cv-keeper/internal/cache"
	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
	"github.com/and161185/cv-keeper/internal/repository"
)

// QueryService is the read side of the CV aggregate.
type QueryService interface {
	// GetProjection returns the materialized CV, served from the cache when possible.
	GetProjection(ctx context.Context, cvID string) (*model.Projection, error)
	// ListByOwner returns the owner's CVs, most recently updated first.
	ListByOwner(ctx context.Context, userID string) ([]model.Summary, error)
	// GetEventHistory returns the CV's log in version order.
	GetEventHistory(ctx context.Context, cvID string) ([]model.StoredEvent, error)
	// GetProjectionAtVersion folds the first version events on demand.
	GetProjectionAtVersion(ctx context.Context, cvID string, version int64) (model.Projection, error)
}

type QueryServiceImpl struct {
	projections repository.ProjectionRepository
	events      repository.EventRepository
	sync        *Synchronizer
	cache       cache.ProjectionCache
	verifier    EventVerifier
	log         *zap.Logger
}

// NewQueryService constructs QueryService. c may be nil for no caching; a
// non-nil verifier rejects tampered history with ErrBadSignature.
func NewQueryService(
	projections repository.ProjectionRepository,
	events repository.EventRepository,
	sync *Synchronizer,
	c cache.ProjectionCache,
	verifier EventVerifier,
	log *zap.Logger,
) *QueryServiceImpl {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &QueryServiceImpl{projections: projections, events: events, sync: sync, cache: c, verifier: verifier, log: log}
}

func (s *QueryServiceImpl) GetProjection(ctx context.Context, cvID string) (*model.Projection, error) {
	if strings.TrimSpace(cvID) == "" {
		return nil, fmt.Errorf("%w: empty cvId", errs.ErrValidation)
	}
	if p, ok, err := s.cache.Get(ctx, cvID); err != nil {
		s.log.Warn("cache read failed", zap.String("cv_id", cvID), zap.Error(err))
	} else if ok {
		return p, nil
	}

	p, err := s.projections.Get(ctx, cvID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, *p); err != nil {
		s.log.Warn("cache write failed", zap.String("cv_id", cvID), zap.Error(err))
	}
	return p, nil
}

func (s *QueryServiceImpl) ListByOwner(ctx context.Context, userID string) ([]model.Summary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: empty userId", errs.ErrUnauthorized)
	}
	return s.projections.ListByOwner(ctx, userID)
}

func (s *QueryServiceImpl) GetEventHistory(ctx context.Context, cvID string) ([]model.StoredEvent, error) {
	if strings.TrimSpace(cvID) == "" {
		return nil, fmt.Errorf("%w: empty cvId", errs.ErrValidation)
	}
	events, err := s.events.ListByCV(ctx, cvID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("cv %s: %w", cvID, errs.ErrNotFound)
	}
	if s.verifier != nil {
		for _, ev := range events {
			if !s.verifier.Verify(ev.Event) {
				return nil, fmt.Errorf("cv %s version %d: %w", cvID, ev.Version, errs.ErrBadSignature)
			}
		}
	}
	return events, nil
}

func (s *QueryServiceImpl) GetProjectionAtVersion(ctx context.Context, cvID string, version int64) (model.Projection, error) {
	if strings.TrimSpace(cvID) == "" {
		return model.Projection{}, fmt.Errorf("%w: empty cvId", errs.ErrValidation)
	}
	return s.sync.RebuildToVersion(ctx, cvID, version)
}
