package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/cv-keeper/internal/api/cvapi"
	"github.com/and161185/cv-keeper/internal/convert"
)

// command runs one RPC and returns the decoded reply for printing.
type command func(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error)

var commands = map[string]command{
	"create":   cmdCreate,
	"add":      cmdAdd,
	"update":   cmdUpdate,
	"rm":       cmdRemove,
	"rename":   cmdRename,
	"template": cmdTemplate,
	"undo":     cmdUndo,
	"show":     cmdShow,
	"list":     cmdList,
	"history":  cmdHistory,
	"at":       cmdAt,
}

type rpc func(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)

// invoke encodes req, calls method and decodes the reply into T.
func invoke[T any](ctx context.Context, method rpc, req any) (T, error) {
	var out T
	in, err := convert.ToStruct(req)
	if err != nil {
		return out, err
	}
	reply, err := method(ctx, in)
	if err != nil {
		return out, err
	}
	if err := convert.FromStruct(reply, &out); err != nil {
		return out, err
	}
	return out, nil
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func needCV(cv string) error {
	if strings.TrimSpace(cv) == "" {
		return errors.New("need -cv")
	}
	return nil
}

func cmdCreate(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error) {
	fs := newFlags("create")
	id := fs.String("id", "", "cv id (optional)")
	title := fs.String("title", "", "title")
	tpl := fs.String("template", "", "template id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *title == "" || *tpl == "" {
		return nil, errors.New("need -title and -template")
	}
	return invoke[cvapi.CreateCvReply](ctx, cli.CreateCv, cvapi.CreateCvRequest{CVID: *id, Title: *title, TemplateID: *tpl})
}

func cmdAdd(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error) {
	fs := newFlags("add")
	cv := fs.String("cv", "", "cv id")
	expect := fs.Int64("expect", 0, "expected head version (0 = any)")
	sf := bindSectionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := needCV(*cv); err != nil {
		return nil, err
	}
	b, err := buildBlock(sf)
	if err != nil {
		return nil, err
	}
	return invoke[cvapi.EventReply](ctx, cli.AddSection, cvapi.AddSectionRequest{CVID: *cv, Section: b, ExpectedVersion: *expect})
}

func cmdUpdate(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error) {
	fs := newFlags("update")
	cv := fs.String("cv", "", "cv id")
	expect := fs.Int64("expect", 0, "expected head version (0 = any)")
	sf := bindSectionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := needCV(*cv); err != nil {
		return nil, err
	}
	p, err := buildPatch(fs, sf)
	if err != nil {
		return nil, err
	}
	return invoke[cvapi.EventReply](ctx, cli.UpdateSection, cvapi.UpdateSectionRequest{CVID: *cv, Section: p, ExpectedVersion: *expect})
}

func cmdRemove(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error) {
	fs := newFlags("rm")
	cv := fs.String("cv", "", "cv id")
	id := fs.String("id", "", "section id")
	expect := fs.Int64("expect", 0, "expected head version (0 = any)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := needCV(*cv); err != nil {
		return nil, err
	}
	if *id == "" {
		return nil, errors.New("need -id")
	}
	return invoke[cvapi.EventReply](ctx, cli.RemoveSection, cvapi.RemoveSectionRequest{CVID: *cv, SectionID: *id, ExpectedVersion: *expect})
}

func cmdRename(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error) {
	fs := newFlags("rename")
	cv := fs.String("cv", "", "cv id")
	title := fs.String("title", "", "new title")
	expect := fs.Int64("expect", 0, "expected head version (0 = any)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := needCV(*cv); err != nil {
		return nil, err
	}
	return invoke[cvapi.EventReply](ctx, cli.RenameCv, cvapi.RenameCvRequest{CVID: *cv, Title: *title, ExpectedVersion: *expect})
}

func cmdTemplate(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error) {
	fs := newFlags("template")
	cv := fs.String("cv", "", "cv id")
	tpl := fs.String("template", "", "template id")
	expect := fs.Int64("expect", 0, "expected head version (0 = any)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := needCV(*cv); err != nil {
		return nil, err
	}
	if *tpl == "" {
		return nil, errors.New("need -template")
	}
	return invoke[cvapi.EventReply](ctx, cli.ChangeTemplate, cvapi.ChangeTemplateRequest{CVID: *cv, TemplateID: *tpl, ExpectedVersion: *expect})
}

func cvRef(name string, args []string) (cvapi.CvRef, error) {
	fs := newFlags(name)
	cv := fs.String("cv", "", "cv id")
	if err := fs.Parse(args); err != nil {
		return cvapi.CvRef{}, err
	}
	if err := needCV(*cv); err != nil {
		return cvapi.CvRef{}, err
	}
	return cvapi.CvRef{CVID: *cv}, nil
}

func cmdUndo(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error) {
	ref, err := cvRef("undo", args)
	if err != nil {
		return nil, err
	}
	return invoke[cvapi.EventReply](ctx, cli.Undo, ref)
}

func cmdShow(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error) {
	ref, err := cvRef("show", args)
	if err != nil {
		return nil, err
	}
	return invoke[cvapi.ProjectionReply](ctx, cli.GetProjection, ref)
}

func cmdList(ctx context.Context, cli cvapi.CvServiceClient, _ []string) (any, error) {
	return invoke[cvapi.ListCvsReply](ctx, cli.ListCvs, struct{}{})
}

func cmdHistory(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error) {
	ref, err := cvRef("history", args)
	if err != nil {
		return nil, err
	}
	return invoke[cvapi.HistoryReply](ctx, cli.GetEventHistory, ref)
}

func cmdAt(ctx context.Context, cli cvapi.CvServiceClient, args []string) (any, error) {
	fs := newFlags("at")
	cv := fs.String("cv", "", "cv id")
	ver := fs.Int64("version", 0, "version (1..head, 0 = head from the log)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := needCV(*cv); err != nil {
		return nil, err
	}
	return invoke[cvapi.ProjectionReply](ctx, cli.GetProjectionAtVersion, cvapi.AtVersionRequest{CVID: *cv, Version: *ver})
}
