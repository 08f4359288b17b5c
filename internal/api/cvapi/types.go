// Package cvapi defines the cvkeeper.v1.CvService gRPC contract.
//
// Messages travel as google.protobuf.Struct; the types below are their JSON
// shapes and are mapped with the convert package.
package cvapi

import "github.com/and161185/cv-keeper/internal/model"

// CreateCvRequest creates a CV. CVID is optional.
type CreateCvRequest struct {
	CVID       string `json:"cvId,omitempty"`
	Title      string `json:"title"`
	TemplateID string `json:"templateId"`
}

// CreateCvReply returns the assigned id and the stored CV_CREATED event.
type CreateCvReply struct {
	CVID  string            `json:"cvId"`
	Event model.StoredEvent `json:"event"`
}

// AddSectionRequest appends a section.
type AddSectionRequest struct {
	CVID            string      `json:"cvId"`
	Section         model.Block `json:"section"`
	ExpectedVersion int64       `json:"expectedVersion,omitempty"`
}

// UpdateSectionRequest patches a section; absent fields keep their values.
type UpdateSectionRequest struct {
	CVID            string             `json:"cvId"`
	Section         model.SectionPatch `json:"section"`
	ExpectedVersion int64              `json:"expectedVersion,omitempty"`
}

// RemoveSectionRequest removes a section by id.
type RemoveSectionRequest struct {
	CVID            string `json:"cvId"`
	SectionID       string `json:"sectionId"`
	ExpectedVersion int64  `json:"expectedVersion,omitempty"`
}

// RenameCvRequest sets a new title.
type RenameCvRequest struct {
	CVID            string `json:"cvId"`
	Title           string `json:"title"`
	ExpectedVersion int64  `json:"expectedVersion,omitempty"`
}

// ChangeTemplateRequest sets a new template.
type ChangeTemplateRequest struct {
	CVID            string `json:"cvId"`
	TemplateID      string `json:"templateId"`
	ExpectedVersion int64  `json:"expectedVersion,omitempty"`
}

// CvRef addresses a CV (Undo, GetProjection, GetEventHistory).
type CvRef struct {
	CVID string `json:"cvId"`
}

// AtVersionRequest asks for the projection after the first Version events.
type AtVersionRequest struct {
	CVID    string `json:"cvId"`
	Version int64  `json:"version"`
}

// EventReply carries one stored (or, for Undo, deleted) event.
type EventReply struct {
	Event model.StoredEvent `json:"event"`
}

// ProjectionReply carries a projection.
type ProjectionReply struct {
	Projection model.Projection `json:"projection"`
}

// ListCvsReply lists the caller's CVs, newest first.
type ListCvsReply struct {
	Cvs []model.Summary `json:"cvs"`
}

// HistoryReply carries a CV's log in version order.
type HistoryReply struct {
	Events []model.StoredEvent `json:"events"`
}
