package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/cv-keeper/internal/api/cvapi"
	"github.com/and161185/cv-keeper/internal/convert"
	"github.com/and161185/cv-keeper/internal/model"
)

// fakeClient records the last call and answers with reply.
type fakeClient struct {
	method string
	in     *structpb.Struct
	reply  any
	err    error
}

func (f *fakeClient) do(method string, in *structpb.Struct) (*structpb.Struct, error) {
	f.method, f.in = method, in
	if f.err != nil {
		return nil, f.err
	}
	if f.reply == nil {
		return &structpb.Struct{}, nil
	}
	return convert.ToStruct(f.reply)
}

func (f *fakeClient) CreateCv(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("CreateCv", in)
}
func (f *fakeClient) AddSection(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("AddSection", in)
}
func (f *fakeClient) UpdateSection(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("UpdateSection", in)
}
func (f *fakeClient) RemoveSection(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("RemoveSection", in)
}
func (f *fakeClient) RenameCv(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("RenameCv", in)
}
func (f *fakeClient) ChangeTemplate(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("ChangeTemplate", in)
}
func (f *fakeClient) Undo(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("Undo", in)
}
func (f *fakeClient) GetProjection(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("GetProjection", in)
}
func (f *fakeClient) ListCvs(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("ListCvs", in)
}
func (f *fakeClient) GetEventHistory(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("GetEventHistory", in)
}
func (f *fakeClient) GetProjectionAtVersion(_ context.Context, in *structpb.Struct, _ ...grpc.CallOption) (*structpb.Struct, error) {
	return f.do("GetProjectionAtVersion", in)
}

func TestCommands_BuildRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		f := &fakeClient{reply: cvapi.CreateCvReply{CVID: "cv-1"}}
		out, err := commands["create"](ctx, f, []string{"-title", "R1", "-template", "classic"})
		require.NoError(t, err)
		require.Equal(t, "CreateCv", f.method)
		require.Equal(t, "R1", f.in.GetFields()["title"].GetStringValue())
		require.Equal(t, "cv-1", out.(cvapi.CreateCvReply).CVID)
	})

	t.Run("add", func(t *testing.T) {
		f := &fakeClient{}
		_, err := commands["add"](ctx, f, []string{"-cv", "cv-1", "-id", "a", "-title", "Edu", "-content", "MIT", "-expect", "3"})
		require.NoError(t, err)
		var req cvapi.AddSectionRequest
		require.NoError(t, convert.FromStruct(f.in, &req))
		require.Equal(t, cvapi.AddSectionRequest{
			CVID: "cv-1", Section: model.Block{ID: "a", Title: "Edu", Content: "MIT"}, ExpectedVersion: 3,
		}, req)
	})

	t.Run("update", func(t *testing.T) {
		f := &fakeClient{}
		_, err := commands["update"](ctx, f, []string{"-cv", "cv-1", "-id", "a", "-content", "Harvard"})
		require.NoError(t, err)
		sec := f.in.GetFields()["section"].GetStructValue().GetFields()
		require.Equal(t, "Harvard", sec["content"].GetStringValue())
		_, hasTitle := sec["title"]
		require.False(t, hasTitle)
	})

	t.Run("at", func(t *testing.T) {
		f := &fakeClient{reply: cvapi.ProjectionReply{Projection: model.Projection{CVID: "cv-1", Version: 2}}}
		out, err := commands["at"](ctx, f, []string{"-cv", "cv-1", "-version", "2"})
		require.NoError(t, err)
		require.Equal(t, "GetProjectionAtVersion", f.method)
		require.Equal(t, float64(2), f.in.GetFields()["version"].GetNumberValue())
		require.Equal(t, int64(2), out.(cvapi.ProjectionReply).Projection.Version)
	})

	t.Run("list", func(t *testing.T) {
		f := &fakeClient{reply: cvapi.ListCvsReply{Cvs: []model.Summary{{CVID: "cv-1"}}}}
		out, err := commands["list"](ctx, f, nil)
		require.NoError(t, err)
		require.Len(t, out.(cvapi.ListCvsReply).Cvs, 1)
	})
}

func TestCommands_MissingFlags(t *testing.T) {
	ctx := context.Background()
	for name, args := range map[string][]string{
		"create":   {"-title", "R1"},
		"add":      {"-title", "x"},
		"update":   {"-cv", "cv-1"},
		"rm":       {"-cv", "cv-1"},
		"rename":   {},
		"template": {"-cv", "cv-1"},
		"undo":     {},
		"show":     {},
		"history":  {},
		"at":       {},
	} {
		f := &fakeClient{}
		_, err := commands[name](ctx, f, args)
		require.Error(t, err, name)
		require.Empty(t, f.method, name)
	}
}

func TestCommands_PropagatesRPCError(t *testing.T) {
	f := &fakeClient{err: status.Error(codes.FailedPrecondition, "version conflict")}
	_, err := commands["undo"](context.Background(), f, []string{"-cv", "cv-1"})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}
