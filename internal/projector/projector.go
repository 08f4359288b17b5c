// Package projector folds ordered CV event streams into projections.
//
// Every function here is pure: the result depends only on the events passed
// in, so folding the same stream twice yields byte-identical projections.
package projector

import (
	"encoding/json"
	"fmt"

	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
)

// Fold replays the whole stream. An empty stream is ErrNotFound.
func Fold(events []model.StoredEvent) (model.Projection, error) {
	if len(events) == 0 {
		return model.Projection{}, errs.ErrNotFound
	}
	return fold(events)
}

// FoldPrefix replays the first version events (1-indexed).
func FoldPrefix(events []model.StoredEvent, version int64) (model.Projection, error) {
	if version < 1 || version > int64(len(events)) {
		return model.Projection{}, fmt.Errorf("%w: %d not in 1..%d", errs.ErrInvalidVersion, version, len(events))
	}
	return fold(events[:version])
}

func fold(events []model.StoredEvent) (model.Projection, error) {
	var p model.Projection
	for i := range events {
		next, err := Apply(p, events[i])
		if err != nil {
			return model.Projection{}, err
		}
		p = next
	}
	return p, nil
}

// Apply folds a single event onto p and returns the new state; p is not modified.
// The zero Projection is the state before CV_CREATED.
func Apply(p model.Projection, ev model.StoredEvent) (model.Projection, error) {
	created := p.Version > 0
	switch {
	case ev.Type == model.EventCVCreated && created:
		return p, fmt.Errorf("%w: CV_CREATED at position %d", errs.ErrInvalidSequence, p.Version+1)
	case ev.Type != model.EventCVCreated && !created:
		return p, fmt.Errorf("%w: stream starts with %s", errs.ErrInvalidSequence, ev.Type)
	case created && ev.CVID != p.CVID:
		return p, fmt.Errorf("%w: event for %q in stream of %q", errs.ErrInvalidSequence, ev.CVID, p.CVID)
	}

	next := p.Clone()
	switch ev.Type {
	case model.EventCVCreated:
		var pl model.CreatedPayload
		if err := decode(ev, &pl); err != nil {
			return p, err
		}
		next = model.Projection{
			CVID:       ev.CVID,
			Title:      pl.Title,
			TemplateID: pl.TemplateID,
			UserID:     ev.UserID,
			Blocks:     []model.Block{},
		}

	case model.EventSectionAdded:
		var patch model.SectionPatch
		if err := decode(ev, &patch); err != nil {
			return p, err
		}
		if i := indexOf(next.Blocks, patch.ID); i >= 0 {
			next.Blocks[i] = merge(next.Blocks[i], patch)
		} else {
			next.Blocks = append(next.Blocks, merge(model.Block{ID: patch.ID}, patch))
		}

	case model.EventSectionUpdated:
		var patch model.SectionPatch
		if err := decode(ev, &patch); err != nil {
			return p, err
		}
		if i := indexOf(next.Blocks, patch.ID); i >= 0 {
			next.Blocks[i] = merge(next.Blocks[i], patch)
		}

	case model.EventSectionRemoved:
		var ref model.SectionRef
		if err := decode(ev, &ref); err != nil {
			return p, err
		}
		kept := next.Blocks[:0]
		for _, b := range next.Blocks {
			if b.ID != ref.ID {
				kept = append(kept, b)
			}
		}
		next.Blocks = kept

	case model.EventCVRenamed:
		var pl model.RenamedPayload
		if err := decode(ev, &pl); err != nil {
			return p, err
		}
		next.Title = pl.Title

	case model.EventTemplateChanged:
		var pl model.TemplatePayload
		if err := decode(ev, &pl); err != nil {
			return p, err
		}
		next.TemplateID = pl.TemplateID

	default:
		return p, fmt.Errorf("%w: unknown event type %q", errs.ErrMalformedEvent, ev.Type)
	}

	next.Version = p.Version + 1
	next.UpdatedAt = ev.CreatedAt
	return next, nil
}

func decode(ev model.StoredEvent, dst any) error {
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", errs.ErrMalformedEvent, ev.Type, err)
	}
	return nil
}

func indexOf(blocks []model.Block, id string) int {
	for i := range blocks {
		if blocks[i].ID == id {
			return i
		}
	}
	return -1
}

// merge is a shallow merge: absent patch fields keep the block's values.
func merge(b model.Block, patch model.SectionPatch) model.Block {
	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Content != nil {
		b.Content = *patch.Content
	}
	if patch.Type != nil {
		b.Type = *patch.Type
	}
	return b
}
