package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/model"
	"github.com/and161185/cv-keeper/internal/repository"
)

// memEvents is an in-memory EventRepository with the same version rules as the SQL stores.
type memEvents struct {
	mu     sync.Mutex
	byCV   map[string][]model.StoredEvent
	nextID int64
	clock  time.Time

	headErr   error
	appendErr error
	// conflicts makes the next N appends fail with ErrVersionConflict.
	conflicts int
	listCalls int
	// committed runs after every successful write.
	committed func()
}

var _ repository.EventRepository = (*memEvents)(nil)

func newMemEvents() *memEvents {
	return &memEvents{byCV: map[string][]model.StoredEvent{}, clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memEvents) Append(_ context.Context, ev model.Event, expected int64) (model.StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return model.StoredEvent{}, m.appendErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		return model.StoredEvent{}, errs.ErrVersionConflict
	}
	cur := int64(len(m.byCV[ev.CVID]))
	if cur != expected {
		return model.StoredEvent{}, errs.ErrVersionConflict
	}
	m.nextID++
	m.clock = m.clock.Add(time.Second)
	st := model.StoredEvent{Event: ev, ID: m.nextID, Version: cur + 1, CreatedAt: m.clock}
	m.byCV[ev.CVID] = append(m.byCV[ev.CVID], st)
	if m.committed != nil {
		m.committed()
	}
	return st, nil
}

func (m *memEvents) ListByCV(_ context.Context, cvID string) ([]model.StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return append([]model.StoredEvent{}, m.byCV[cvID]...), nil
}

func (m *memEvents) Head(_ context.Context, cvID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.headErr != nil {
		return 0, m.headErr
	}
	return int64(len(m.byCV[cvID])), nil
}

func (m *memEvents) DeleteLatest(_ context.Context, cvID string) (model.StoredEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.byCV[cvID]
	if len(evs) == 0 {
		return model.StoredEvent{}, errs.ErrNotFound
	}
	last := evs[len(evs)-1]
	m.byCV[cvID] = evs[:len(evs)-1]
	if m.committed != nil {
		m.committed()
	}
	return last, nil
}

// tamper rewrites the payload of a stored event without re-signing it.
func (m *memEvents) tamper(cvID string, version int64, payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCV[cvID][version-1].Payload = json.RawMessage(payload)
}

type memProjections struct {
	mu      sync.Mutex
	rows    map[string]model.Projection
	getErr  error
	saveErr error
	saves   int
}

var _ repository.ProjectionRepository = (*memProjections)(nil)

func newMemProjections() *memProjections {
	return &memProjections{rows: map[string]model.Projection{}}
}

func (m *memProjections) Get(_ context.Context, cvID string) (*model.Projection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.rows[cvID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := p.Clone()
	return &cp, nil
}

func (m *memProjections) Save(_ context.Context, p model.Projection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.rows[p.CVID] = p.Clone()
	return nil
}

func (m *memProjections) Delete(_ context.Context, cvID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, cvID)
	return nil
}

func (m *memProjections) ListByOwner(_ context.Context, userID string) ([]model.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Summary, 0)
	for _, p := range m.rows {
		if p.UserID == userID {
			out = append(out, model.Summary{CVID: p.CVID, Title: p.Title, TemplateID: p.TemplateID, UpdatedAt: p.UpdatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

type recordingNotifier struct {
	appended []model.StoredEvent
	undone   []string
	ctxErrs  []error
	err      error
}

func (n *recordingNotifier) EventAppended(ctx context.Context, ev model.StoredEvent) error {
	n.appended = append(n.appended, ev)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	return n.err
}

func (n *recordingNotifier) EventUndone(ctx context.Context, cvID string) error {
	n.undone = append(n.undone, cvID)
	n.ctxErrs = append(n.ctxErrs, ctx.Err())
	return n.err
}

type memCache struct {
	rows        map[string]model.Projection
	invalidated []string
	hits        int
}

func newMemCache() *memCache { return &memCache{rows: map[string]model.Projection{}} }

func (c *memCache) Get(_ context.Context, cvID string) (*model.Projection, bool, error) {
	p, ok := c.rows[cvID]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	cp := p.Clone()
	return &cp, true, nil
}

func (c *memCache) Set(_ context.Context, p model.Projection) error {
	c.rows[p.CVID] = p.Clone()
	return nil
}

func (c *memCache) Invalidate(_ context.Context, cvID string) error {
	delete(c.rows, cvID)
	c.invalidated = append(c.invalidated, cvID)
	return nil
}
