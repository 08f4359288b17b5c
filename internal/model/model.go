// Package model defines domain entities used by services and repositories.
package model

import (
	"encoding/json"
	"time"
)

// EventType names one of the fixed CV mutation kinds.
type EventType string

// Event kinds of the CV aggregate.
const (
	EventCVCreated       EventType = "CV_CREATED"
	EventSectionAdded    EventType = "SECTION_ADDED"
	EventSectionUpdated  EventType = "SECTION_UPDATED"
	EventSectionRemoved  EventType = "SECTION_REMOVED"
	EventCVRenamed       EventType = "CV_RENAMED"
	EventTemplateChanged EventType = "TEMPLATE_CHANGED"
)

// EventTypes lists every known kind in declaration order.
var EventTypes = []EventType{
	EventCVCreated,
	EventSectionAdded,
	EventSectionUpdated,
	EventSectionRemoved,
	EventCVRenamed,
	EventTemplateChanged,
}

// Valid reports whether t is a known event kind.
func (t EventType) Valid() bool {
	for _, k := range EventTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Event is one mutation intent against a CV, signed before it is stored.
type Event struct {
	Type      EventType       `json:"eventType"`
	CVID      string          `json:"cvId"`
	UserID    string          `json:"userId"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// StoredEvent is an Event as persisted in the log.
type StoredEvent struct {
	Event
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`   // 1-indexed position within the CV stream
	CreatedAt time.Time `json:"createdAt"` // server assigned, non-decreasing per CV
}

// Block is a named content unit of a CV.
type Block struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// Projection is the materialized state of one CV at a point in its stream.
type Projection struct {
	CVID       string    `json:"cvId"`
	Title      string    `json:"title"`
	TemplateID string    `json:"templateId"`
	UserID     string    `json:"userId"`
	Blocks     []Block   `json:"blocks"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can fold without aliasing blocks.
func (p Projection) Clone() Projection {
	cp := p
	cp.Blocks = make([]Block, len(p.Blocks))
	copy(cp.Blocks, p.Blocks)
	return cp
}

// Summary is the owner listing row.
type Summary struct {
	CVID       string    `json:"cvId"`
	Title      string    `json:"title"`
	TemplateID string    `json:"templateId"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Payloads per event kind.

// CreatedPayload is the CV_CREATED payload.
type CreatedPayload struct {
	Title      string `json:"title"`
	TemplateID string `json:"templateId"`
}

// SectionPatch is the SECTION_UPDATED payload. Nil fields keep prior values.
type SectionPatch struct {
	ID      string  `json:"id"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Type    *string `json:"type,omitempty"`
}

// SectionRef is the SECTION_REMOVED payload.
type SectionRef struct {
	ID string `json:"id"`
}

// RenamedPayload is the CV_RENAMED payload.
type RenamedPayload struct {
	Title string `json:"title"`
}

// TemplatePayload is the TEMPLATE_CHANGED payload.
type TemplatePayload struct {
	TemplateID string `json:"templateId"`
}

// OutboxKind selects how the relay delivers an entry.
type OutboxKind string

// Outbox entry kinds.
const (
	OutboxEvent   OutboxKind = "event"
	OutboxRebuild OutboxKind = "rebuild"
)

// OutboxEntry is a pending synchronizer notification.
type OutboxEntry struct {
	ID        int64
	CVID      string
	Kind      OutboxKind
	Event     *StoredEvent // nil for rebuild entries
	Corrupt   string       // decode error of an unreadable snapshot
	Attempts  int
	LastError string
	CreatedAt time.Time
}
