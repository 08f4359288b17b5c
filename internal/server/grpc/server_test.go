package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/cv-keeper/internal/api/cvapi"
	"github.com/and161185/cv-keeper/internal/convert"
	"github.com/and161185/cv-keeper/internal/model"
	"github.com/and161185/cv-keeper/internal/repository/sqlite"
	"github.com/and161185/cv-keeper/internal/schema"
	"github.com/and161185/cv-keeper/internal/service"
	"github.com/and161185/cv-keeper/internal/signer"
)

const bufSize = 1 << 20

// newServer wires the real services over an in-memory SQLite store.
func newServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)

	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	events := sqlite.NewEventRepo(db)
	projections := sqlite.NewProjectionRepo(db)
	sg, err := signer.New([]byte("event-secret"))
	require.NoError(t, err)
	v, err := schema.New()
	require.NoError(t, err)

	sync := service.NewSynchronizer(events, projections, log)
	cmd := service.NewCommandService(events, v, sg, sync, log)
	q := service.NewQueryService(projections, events, sync, nil, sg, log)
	return New(cmd, q, log)
}

func startBufGRPC(t *testing.T, srv *Server) (*grpc.ClientConn, func()) {
	t.Helper()
	lis := bufconn.Listen(bufSize)
	log := zaptest.NewLogger(t)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		LoggingUnary(log),
		RecoverUnary(log),
		AuthUnary(testKey, log),
	))
	cvapi.RegisterCvServiceServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()
	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	stop := func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() }
	return cc, stop
}

func ctxAuth(t *testing.T, sub string) context.Context {
	t.Helper()
	tok, err := IssueToken(testKey, sub, time.Minute)
	require.NoError(t, err)
	return metadata.NewOutgoingContext(context.Background(),
		metadata.Pairs("authorization", "Bearer "+tok))
}

func call[T any](t *testing.T) func(reply *structpb.Struct, err error) T {
	return func(reply *structpb.Struct, err error) T {
		t.Helper()
		require.NoError(t, err)
		var out T
		require.NoError(t, convert.FromStruct(reply, &out))
		return out
	}
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, want, status.Code(err), "err: %v", err)
}

func TestServer_E2E_BasicFlow(t *testing.T) {
	t.Parallel()

	cc, stop := startBufGRPC(t, newServer(t))
	defer stop()
	cl := cvapi.NewCvServiceClient(cc)
	ctx := ctxAuth(t, "user-1")

	created := call[cvapi.CreateCvReply](t)(cl.CreateCv(ctx, convert.MustStruct(cvapi.CreateCvRequest{
		Title: "R1", TemplateID: "classic",
	})))
	require.NotEmpty(t, created.CVID)
	require.Equal(t, int64(1), created.Event.Version)
	require.NotEmpty(t, created.Event.Signature)
	cvID := created.CVID

	added := call[cvapi.EventReply](t)(cl.AddSection(ctx, convert.MustStruct(cvapi.AddSectionRequest{
		CVID: cvID, Section: model.Block{ID: "a", Title: "Edu", Content: "MIT"},
	})))
	require.Equal(t, int64(2), added.Event.Version)

	p := call[cvapi.ProjectionReply](t)(cl.GetProjection(ctx, convert.MustStruct(cvapi.CvRef{CVID: cvID})))
	require.Equal(t, "R1", p.Projection.Title)
	require.Equal(t, "user-1", p.Projection.UserID)
	require.Len(t, p.Projection.Blocks, 1)
	require.Equal(t, int64(2), p.Projection.Version)

	at1 := call[cvapi.ProjectionReply](t)(cl.GetProjectionAtVersion(ctx, convert.MustStruct(cvapi.AtVersionRequest{CVID: cvID, Version: 1})))
	require.Empty(t, at1.Projection.Blocks)
	head := call[cvapi.ProjectionReply](t)(cl.GetProjectionAtVersion(ctx, convert.MustStruct(cvapi.AtVersionRequest{CVID: cvID})))
	require.Equal(t, p.Projection, head.Projection)

	hist := call[cvapi.HistoryReply](t)(cl.GetEventHistory(ctx, convert.MustStruct(cvapi.CvRef{CVID: cvID})))
	require.Len(t, hist.Events, 2)

	undone := call[cvapi.EventReply](t)(cl.Undo(ctx, convert.MustStruct(cvapi.CvRef{CVID: cvID})))
	require.Equal(t, int64(2), undone.Event.Version)

	p = call[cvapi.ProjectionReply](t)(cl.GetProjection(ctx, convert.MustStruct(cvapi.CvRef{CVID: cvID})))
	require.Empty(t, p.Projection.Blocks)
	require.Equal(t, int64(1), p.Projection.Version)

	renamed := call[cvapi.EventReply](t)(cl.RenameCv(ctx, convert.MustStruct(cvapi.RenameCvRequest{CVID: cvID, Title: "R2"})))
	require.Equal(t, int64(2), renamed.Event.Version)

	list := call[cvapi.ListCvsReply](t)(cl.ListCvs(ctx, &structpb.Struct{}))
	require.Len(t, list.Cvs, 1)
	require.Equal(t, "R2", list.Cvs[0].Title)
}

func TestServer_ErrorCodes(t *testing.T) {
	t.Parallel()

	cc, stop := startBufGRPC(t, newServer(t))
	defer stop()
	cl := cvapi.NewCvServiceClient(cc)
	ctx := ctxAuth(t, "user-1")

	_, err := cl.ListCvs(context.Background(), &structpb.Struct{})
	requireCode(t, err, codes.Unauthenticated)

	_, err = cl.CreateCv(ctx, convert.MustStruct(cvapi.CreateCvRequest{CVID: "cv-1", Title: "R1", TemplateID: "classic"}))
	require.NoError(t, err)

	_, err = cl.CreateCv(ctx, convert.MustStruct(cvapi.CreateCvRequest{CVID: "cv-1", Title: "R1", TemplateID: "classic"}))
	requireCode(t, err, codes.AlreadyExists)

	_, err = cl.RenameCv(ctx, convert.MustStruct(cvapi.RenameCvRequest{CVID: "cv-1", Title: "R2", ExpectedVersion: 5}))
	requireCode(t, err, codes.FailedPrecondition)

	_, err = cl.RenameCv(ctx, convert.MustStruct(cvapi.RenameCvRequest{CVID: "missing", Title: "R2"}))
	requireCode(t, err, codes.NotFound)

	_, err = cl.GetProjection(ctx, convert.MustStruct(cvapi.CvRef{CVID: "missing"}))
	requireCode(t, err, codes.NotFound)

	_, err = cl.GetProjectionAtVersion(ctx, convert.MustStruct(cvapi.AtVersionRequest{CVID: "cv-1", Version: 9}))
	requireCode(t, err, codes.InvalidArgument)

	bad, err := structpb.NewStruct(map[string]any{"cvId": "cv-1", "unexpected": 1})
	require.NoError(t, err)
	_, err = cl.Undo(ctx, bad)
	requireCode(t, err, codes.InvalidArgument)

	_, err = cl.AddSection(ctx, convert.MustStruct(cvapi.AddSectionRequest{CVID: "cv-1"}))
	requireCode(t, err, codes.InvalidArgument)
}
