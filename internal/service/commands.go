// Package service contains the CV command, query and projection sync services.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
	"github.com/and161185/cv-keeper/internal/repository"
)

// Notifier is told about committed log changes so the read side can follow.
type Notifier interface {
	EventAppended(ctx context.Context, ev model.StoredEvent) error
	EventUndone(ctx context.Context, cvID string) error
}

// PayloadValidator checks an event payload before it is signed.
type PayloadValidator interface {
	Validate(t model.EventType, payload json.RawMessage) error
}

// EventSigner signs the canonical event envelope.
type EventSigner interface {
	Sign(t model.EventType, cvID, userID string, payload json.RawMessage) (string, error)
}

// Target addresses an existing CV. ExpectedVersion 0 means "whatever the head is";
// a positive value pins the append and turns a moved head into ErrVersionConflict.
type Target struct {
	UserID          string
	CVID            string
	ExpectedVersion int64
}

// CommandService is the write side of the CV aggregate.
type CommandService interface {
	// CreateCV appends CV_CREATED. An empty cvID gets a fresh UUIDv4.
	CreateCV(ctx context.Context, userID, cvID, title, templateID string) (model.StoredEvent, error)
	AddSection(ctx context.Context, t Target, b model.Block) (model.StoredEvent, error)
	UpdateSection(ctx context.Context, t Target, patch model.SectionPatch) (model.StoredEvent, error)
	RemoveSection(ctx context.Context, t Target, sectionID string) (model.StoredEvent, error)
	RenameCV(ctx context.Context, t Target, title string) (model.StoredEvent, error)
	ChangeTemplate(ctx context.Context, t Target, templateID string) (model.StoredEvent, error)
	// Undo deletes the newest event and asks the read side to rebuild.
	Undo(ctx context.Context, userID, cvID string) (model.StoredEvent, error)
}

const defaultMaxRetries = 5

type CommandServiceImpl struct {
	events     repository.EventRepository
	validator  PayloadValidator
	signer     EventSigner
	notifier   Notifier
	log        *zap.Logger
	maxRetries int
}

// CommandOption configures CommandServiceImpl.
type CommandOption func(*CommandServiceImpl)

// WithMaxRetries bounds re-reads of the head after a lost append race.
func WithMaxRetries(n int) CommandOption {
	return func(s *CommandServiceImpl) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// NewCommandService constructs CommandService. notifier may be nil.
func NewCommandService(
	events repository.EventRepository,
	validator PayloadValidator,
	signer EventSigner,
	notifier Notifier,
	log *zap.Logger,
	opts ...CommandOption,
) *CommandServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	s := &CommandServiceImpl{
		events:     events,
		validator:  validator,
		signer:     signer,
		notifier:   notifier,
		log:        log,
		maxRetries: defaultMaxRetries,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *CommandServiceImpl) CreateCV(ctx context.Context, userID, cvID, title, templateID string) (model.StoredEvent, error) {
	cvID = strings.TrimSpace(cvID)
	if cvID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return model.StoredEvent{}, err
		}
		cvID = id.String()
	}
	return s.emit(ctx, Target{UserID: userID, CVID: cvID}, model.EventCVCreated,
		model.CreatedPayload{Title: title, TemplateID: templateID})
}

func (s *CommandServiceImpl) AddSection(ctx context.Context, t Target, b model.Block) (model.StoredEvent, error) {
	return s.emit(ctx, t, model.EventSectionAdded, b)
}

func (s *CommandServiceImpl) UpdateSection(ctx context.Context, t Target, patch model.SectionPatch) (model.StoredEvent, error) {
	return s.emit(ctx, t, model.EventSectionUpdated, patch)
}

func (s *CommandServiceImpl) RemoveSection(ctx context.Context, t Target, sectionID string) (model.StoredEvent, error) {
	return s.emit(ctx, t, model.EventSectionRemoved, model.SectionRef{ID: sectionID})
}

func (s *CommandServiceImpl) RenameCV(ctx context.Context, t Target, title string) (model.StoredEvent, error) {
	return s.emit(ctx, t, model.EventCVRenamed, model.RenamedPayload{Title: title})
}

func (s *CommandServiceImpl) ChangeTemplate(ctx context.Context, t Target, templateID string) (model.StoredEvent, error) {
	return s.emit(ctx, t, model.EventTemplateChanged, model.TemplatePayload{TemplateID: templateID})
}

func (s *CommandServiceImpl) Undo(ctx context.Context, userID, cvID string) (model.StoredEvent, error) {
	if err := checkTarget(userID, cvID); err != nil {
		return model.StoredEvent{}, err
	}
	var (
		deleted model.StoredEvent
		err     error
	)
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		deleted, err = s.events.DeleteLatest(ctx, cvID)
		if !errors.Is(err, errs.ErrVersionConflict) {
			break
		}
	}
	if err != nil {
		return model.StoredEvent{}, err
	}
	s.log.Info("event undone",
		zap.String("cv_id", cvID), zap.String("event_type", string(deleted.Type)), zap.Int64("version", deleted.Version))

	if s.notifier != nil {
		if nerr := s.notifier.EventUndone(context.WithoutCancel(ctx), cvID); nerr != nil {
			s.log.Warn("projection rebuild notification failed",
				zap.String("cv_id", cvID), zap.Error(fmt.Errorf("%w: %v", errs.ErrSyncFailure, nerr)))
		}
	}
	return deleted, nil
}

func (s *CommandServiceImpl) emit(ctx context.Context, t Target, typ model.EventType, payload any) (model.StoredEvent, error) {
	if err := checkTarget(t.UserID, t.CVID); err != nil {
		return model.StoredEvent{}, err
	}
	if t.ExpectedVersion < 0 {
		return model.StoredEvent{}, fmt.Errorf("%w: negative expectedVersion", errs.ErrValidation)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return model.StoredEvent{}, err
	}
	if err := s.validator.Validate(typ, raw); err != nil {
		return model.StoredEvent{}, err
	}
	sig, err := s.signer.Sign(typ, t.CVID, t.UserID, raw)
	if err != nil {
		return model.StoredEvent{}, err
	}
	ev := model.Event{Type: typ, CVID: t.CVID, UserID: t.UserID, Payload: raw, Signature: sig}

	stored, err := s.append(ctx, ev, t.ExpectedVersion)
	if err != nil {
		return model.StoredEvent{}, err
	}
	s.log.Debug("event appended",
		zap.String("cv_id", stored.CVID), zap.String("event_type", string(stored.Type)), zap.Int64("version", stored.Version))

	if s.notifier != nil {
		if nerr := s.notifier.EventAppended(context.WithoutCancel(ctx), stored); nerr != nil {
			s.log.Warn("projection sync notification failed",
				zap.String("cv_id", stored.CVID),
				zap.String("event_type", string(stored.Type)),
				zap.Int64("version", stored.Version),
				zap.Error(fmt.Errorf("%w: %v", errs.ErrSyncFailure, nerr)))
		}
	}
	return stored, nil
}

// append enforces the NONEXISTENT -> CREATED state machine and retries lost races
// unless the caller pinned the version.
func (s *CommandServiceImpl) append(ctx context.Context, ev model.Event, pinned int64) (model.StoredEvent, error) {
	for attempt := 0; ; attempt++ {
		head, err := s.events.Head(ctx, ev.CVID)
		if err != nil {
			return model.StoredEvent{}, err
		}
		switch {
		case ev.Type == model.EventCVCreated && head > 0:
			return model.StoredEvent{}, fmt.Errorf("cv %s: %w", ev.CVID, errs.ErrAlreadyExists)
		case ev.Type != model.EventCVCreated && head == 0:
			return model.StoredEvent{}, fmt.Errorf("cv %s: %w", ev.CVID, errs.ErrNotFound)
		case pinned > 0 && head != pinned:
			return model.StoredEvent{}, fmt.Errorf("cv %s at %d, expected %d: %w", ev.CVID, head, pinned, errs.ErrVersionConflict)
		}

		stored, err := s.events.Append(ctx, ev, head)
		if err == nil {
			return stored, nil
		}
		if !errors.Is(err, errs.ErrVersionConflict) || pinned > 0 || attempt >= s.maxRetries {
			return model.StoredEvent{}, err
		}
		s.log.Debug("append lost race, retrying", zap.String("cv_id", ev.CVID), zap.Int("attempt", attempt+1))
	}
}

func checkTarget(userID, cvID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty userId", errs.ErrUnauthorized)
	}
	if strings.TrimSpace(cvID) == "" {
		return fmt.Errorf("%w: empty cvId", errs.ErrValidation)
	}
	return nil
}
