package projector

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func ev(v int64, t model.EventType, payload string) model.StoredEvent {
	return model.StoredEvent{
		Event: model.Event{
			Type:    t,
			CVID:    "cv-1",
			UserID:  "user-1",
			Payload: json.RawMessage(payload),
		},
		Version:   v,
		CreatedAt: t0.Add(time.Duration(v) * time.Second),
	}
}

func scenario() []model.StoredEvent {
	return []model.StoredEvent{
		ev(1, model.EventCVCreated, `{"title":"R1","templateId":"classic"}`),
		ev(2, model.EventSectionAdded, `{"id":"a","title":"Edu","content":"MIT"}`),
		ev(3, model.EventCVRenamed, `{"title":"R2"}`),
		ev(4, model.EventSectionRemoved, `{"id":"a"}`),
	}
}

func TestFold_Scenario(t *testing.T) {
	p, err := Fold(scenario())
	require.NoError(t, err)
	require.Equal(t, "R2", p.Title)
	require.Equal(t, "classic", p.TemplateID)
	require.Equal(t, "user-1", p.UserID)
	require.Equal(t, "cv-1", p.CVID)
	require.Empty(t, p.Blocks)
	require.NotNil(t, p.Blocks)
	require.Equal(t, int64(4), p.Version)
	require.Equal(t, t0.Add(4*time.Second), p.UpdatedAt)
}

func TestFoldPrefix_Scenario(t *testing.T) {
	p, err := FoldPrefix(scenario(), 2)
	require.NoError(t, err)
	require.Equal(t, "R1", p.Title)
	require.Equal(t, "classic", p.TemplateID)
	require.Equal(t, []model.Block{{ID: "a", Title: "Edu", Content: "MIT"}}, p.Blocks)
	require.Equal(t, int64(2), p.Version)
}

func TestFoldPrefix_Bounds(t *testing.T) {
	events := scenario()
	_, err := FoldPrefix(events, 0)
	require.ErrorIs(t, err, errs.ErrInvalidVersion)
	_, err = FoldPrefix(events, 5)
	require.ErrorIs(t, err, errs.ErrInvalidVersion)

	full, err := Fold(events)
	require.NoError(t, err)
	last, err := FoldPrefix(events, int64(len(events)))
	require.NoError(t, err)
	require.Equal(t, full, last)
}

func TestFold_Empty(t *testing.T) {
	_, err := Fold(nil)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestFold_InvalidSequence(t *testing.T) {
	_, err := Fold([]model.StoredEvent{ev(1, model.EventCVRenamed, `{"title":"x"}`)})
	require.ErrorIs(t, err, errs.ErrInvalidSequence)

	_, err = Fold([]model.StoredEvent{
		ev(1, model.EventCVCreated, `{"title":"a","templateId":"t"}`),
		ev(2, model.EventCVCreated, `{"title":"b","templateId":"t"}`),
	})
	require.ErrorIs(t, err, errs.ErrInvalidSequence)

	foreign := ev(2, model.EventCVRenamed, `{"title":"x"}`)
	foreign.CVID = "cv-2"
	_, err = Fold([]model.StoredEvent{ev(1, model.EventCVCreated, `{"title":"a","templateId":"t"}`), foreign})
	require.ErrorIs(t, err, errs.ErrInvalidSequence)
}

func TestFold_BadPayloadAndUnknownType(t *testing.T) {
	_, err := Fold([]model.StoredEvent{ev(1, model.EventCVCreated, `not-json`)})
	require.ErrorIs(t, err, errs.ErrMalformedEvent)

	_, err = Fold([]model.StoredEvent{
		ev(1, model.EventCVCreated, `{"title":"a","templateId":"t"}`),
		ev(2, model.EventType("CV_DELETED"), `{}`),
	})
	require.ErrorIs(t, err, errs.ErrMalformedEvent)
}

func TestApply_SectionIdentityAndShallowMerge(t *testing.T) {
	p, err := Fold([]model.StoredEvent{
		ev(1, model.EventCVCreated, `{"title":"CV","templateId":"modern"}`),
		ev(2, model.EventSectionAdded, `{"id":"s1","title":"T1","content":"C1","type":"education"}`),
		ev(3, model.EventSectionUpdated, `{"id":"s1","title":"T2"}`),
	})
	require.NoError(t, err)
	require.Equal(t, []model.Block{{ID: "s1", Title: "T2", Content: "C1", Type: "education"}}, p.Blocks)
}

func TestApply_AddExistingIDOverwritesInPlace(t *testing.T) {
	p, err := Fold([]model.StoredEvent{
		ev(1, model.EventCVCreated, `{"title":"CV","templateId":"modern"}`),
		ev(2, model.EventSectionAdded, `{"id":"a","title":"A","content":"1"}`),
		ev(3, model.EventSectionAdded, `{"id":"b","title":"B","content":"2"}`),
		ev(4, model.EventSectionAdded, `{"id":"a","title":"A2","content":"3"}`),
	})
	require.NoError(t, err)
	require.Equal(t, []model.Block{
		{ID: "a", Title: "A2", Content: "3"},
		{ID: "b", Title: "B", Content: "2"},
	}, p.Blocks)
}

func TestApply_NoOps(t *testing.T) {
	base := []model.StoredEvent{
		ev(1, model.EventCVCreated, `{"title":"CV","templateId":"modern"}`),
		ev(2, model.EventSectionAdded, `{"id":"a","title":"A","content":"1"}`),
	}
	before, err := Fold(base)
	require.NoError(t, err)

	after, err := Fold(append(base,
		ev(3, model.EventSectionUpdated, `{"id":"zzz","title":"nope"}`),
		ev(4, model.EventSectionRemoved, `{"id":"zzz"}`),
	))
	require.NoError(t, err)
	require.Equal(t, before.Blocks, after.Blocks)
	require.Equal(t, int64(4), after.Version)
}

func TestApply_RenameAndTemplateTouchOnlyTheirField(t *testing.T) {
	p, err := Fold([]model.StoredEvent{
		ev(1, model.EventCVCreated, `{"title":"CV","templateId":"modern"}`),
		ev(2, model.EventTemplateChanged, `{"templateId":"minimal"}`),
		ev(3, model.EventCVRenamed, `{"title":"Final"}`),
	})
	require.NoError(t, err)
	require.Equal(t, "Final", p.Title)
	require.Equal(t, "minimal", p.TemplateID)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	p, err := Fold([]model.StoredEvent{
		ev(1, model.EventCVCreated, `{"title":"CV","templateId":"modern"}`),
		ev(2, model.EventSectionAdded, `{"id":"a","title":"A","content":"1"}`),
		ev(3, model.EventSectionAdded, `{"id":"b","title":"B","content":"2"}`),
	})
	require.NoError(t, err)
	snapshot := p.Clone()

	_, err = Apply(p, ev(4, model.EventSectionRemoved, `{"id":"a"}`))
	require.NoError(t, err)
	_, err = Apply(p, ev(4, model.EventSectionUpdated, `{"id":"b","title":"X"}`))
	require.NoError(t, err)
	require.Equal(t, snapshot, p)
}
