// Package grpcserver exposes the CV aggregate over gRPC.
package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/cv-keeper/internal/api/cvapi"
	"github.com/and161185/cv-keeper/internal/convert"
	"github.com/and161185/cv-keeper/internal/errs"
	"github.com/and161185/cv-keeper/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	cvapi.UnimplementedCvServiceServer
	cmd service.CommandService
	q   service.QueryService
	log *zap.Logger
}

// New constructs a gRPC server with injected services. Authentication is done
// by AuthUnary; handlers read the caller from the context.
func New(cmd service.CommandService, q service.QueryService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{cmd: cmd, q: q, log: log}
}

// --- Commands ---

// CreateCv starts a new CV owned by the caller.
func (s *Server) CreateCv(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req cvapi.CreateCvRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ev, err := s.cmd.CreateCV(ctx, userID, req.CVID, req.Title, req.TemplateID)
	if err != nil {
		return nil, s.toStatus("create cv", err)
	}
	return encode(cvapi.CreateCvReply{CVID: ev.CVID, Event: ev})
}

// AddSection appends a section.
func (s *Server) AddSection(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req cvapi.AddSectionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ev, err := s.cmd.AddSection(ctx, target(userID, req.CVID, req.ExpectedVersion), req.Section)
	if err != nil {
		return nil, s.toStatus("add section", err)
	}
	return encode(cvapi.EventReply{Event: ev})
}

// UpdateSection patches a section.
func (s *Server) UpdateSection(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req cvapi.UpdateSectionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ev, err := s.cmd.UpdateSection(ctx, target(userID, req.CVID, req.ExpectedVersion), req.Section)
	if err != nil {
		return nil, s.toStatus("update section", err)
	}
	return encode(cvapi.EventReply{Event: ev})
}

// RemoveSection removes a section.
func (s *Server) RemoveSection(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req cvapi.RemoveSectionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ev, err := s.cmd.RemoveSection(ctx, target(userID, req.CVID, req.ExpectedVersion), req.SectionID)
	if err != nil {
		return nil, s.toStatus("remove section", err)
	}
	return encode(cvapi.EventReply{Event: ev})
}

// RenameCv sets the title.
func (s *Server) RenameCv(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req cvapi.RenameCvRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ev, err := s.cmd.RenameCV(ctx, target(userID, req.CVID, req.ExpectedVersion), req.Title)
	if err != nil {
		return nil, s.toStatus("rename cv", err)
	}
	return encode(cvapi.EventReply{Event: ev})
}

// ChangeTemplate sets the template.
func (s *Server) ChangeTemplate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req cvapi.ChangeTemplateRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ev, err := s.cmd.ChangeTemplate(ctx, target(userID, req.CVID, req.ExpectedVersion), req.TemplateID)
	if err != nil {
		return nil, s.toStatus("change template", err)
	}
	return encode(cvapi.EventReply{Event: ev})
}

// Undo removes the newest event and returns it.
func (s *Server) Undo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req cvapi.CvRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	ev, err := s.cmd.Undo(ctx, userID, req.CVID)
	if err != nil {
		return nil, s.toStatus("undo", err)
	}
	return encode(cvapi.EventReply{Event: ev})
}

// --- Queries ---

// GetProjection returns the materialized CV.
func (s *Server) GetProjection(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	var req cvapi.CvRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	p, err := s.q.GetProjection(ctx, req.CVID)
	if err != nil {
		return nil, s.toStatus("get projection", err)
	}
	return encode(cvapi.ProjectionReply{Projection: *p})
}

// ListCvs lists the caller's CVs.
func (s *Server) ListCvs(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	var req struct{}
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	list, err := s.q.ListByOwner(ctx, userID)
	if err != nil {
		return nil, s.toStatus("list cvs", err)
	}
	return encode(cvapi.ListCvsReply{Cvs: list})
}

// GetEventHistory returns the CV's event log.
func (s *Server) GetEventHistory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	var req cvapi.CvRef
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	evs, err := s.q.GetEventHistory(ctx, req.CVID)
	if err != nil {
		return nil, s.toStatus("get history", err)
	}
	return encode(cvapi.HistoryReply{Events: evs})
}

// GetProjectionAtVersion folds a prefix of the log.
func (s *Server) GetProjectionAtVersion(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if _, err := caller(ctx); err != nil {
		return nil, err
	}
	var req cvapi.AtVersionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	p, err := s.q.GetProjectionAtVersion(ctx, req.CVID, req.Version)
	if err != nil {
		return nil, s.toStatus("get projection at version", err)
	}
	return encode(cvapi.ProjectionReply{Projection: p})
}

// --- helpers ---

func caller(ctx context.Context) (string, error) {
	id, ok := UserIDFromCtx(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "no auth")
	}
	return id, nil
}

func target(userID, cvID string, expected int64) service.Target {
	return service.Target{UserID: userID, CVID: cvID, ExpectedVersion: expected}
}

func decode(in *structpb.Struct, v any) error {
	if err := convert.FromStruct(in, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := convert.ToStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}

// toStatus maps domain sentinels onto gRPC codes. Unexpected errors are
// logged and hidden behind Internal.
func (s *Server) toStatus(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, errs.ErrVersionConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, errs.ErrInvalidSequence), errors.Is(err, errs.ErrBadSignature),
		errors.Is(err, errs.ErrMalformedEvent):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrInvalidVersion):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		s.log.Error("grpc handler failed", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s: internal error", op)
	}
}
