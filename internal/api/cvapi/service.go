package cvapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "cvkeeper.v1.CvService"

// Full method names.
const (
	CvService_CreateCv_FullMethodName               = "/" + ServiceName + "/CreateCv"
	CvService_AddSection_FullMethodName             = "/" + ServiceName + "/AddSection"
	CvService_UpdateSection_FullMethodName          = "/" + ServiceName + "/UpdateSection"
	CvService_RemoveSection_FullMethodName          = "/" + ServiceName + "/RemoveSection"
	CvService_RenameCv_FullMethodName               = "/" + ServiceName + "/RenameCv"
	CvService_ChangeTemplate_FullMethodName         = "/" + ServiceName + "/ChangeTemplate"
	CvService_Undo_FullMethodName                   = "/" + ServiceName + "/Undo"
	CvService_GetProjection_FullMethodName          = "/" + ServiceName + "/GetProjection"
	CvService_ListCvs_FullMethodName                = "/" + ServiceName + "/ListCvs"
	CvService_GetEventHistory_FullMethodName        = "/" + ServiceName + "/GetEventHistory"
	CvService_GetProjectionAtVersion_FullMethodName = "/" + ServiceName + "/GetProjectionAtVersion"
)

// CvServiceServer is the server API for CvService.
type CvServiceServer interface {
	CreateCv(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddSection(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateSection(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveSection(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RenameCv(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangeTemplate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Undo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProjection(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCvs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEventHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProjectionAtVersion(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedCvServiceServer returns Unimplemented for every method.
type UnimplementedCvServiceServer struct{}

func unimplemented(name string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", name)
}

func (UnimplementedCvServiceServer) CreateCv(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("CreateCv")
}
func (UnimplementedCvServiceServer) AddSection(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("AddSection")
}
func (UnimplementedCvServiceServer) UpdateSection(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("UpdateSection")
}
func (UnimplementedCvServiceServer) RemoveSection(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("RemoveSection")
}
func (UnimplementedCvServiceServer) RenameCv(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("RenameCv")
}
func (UnimplementedCvServiceServer) ChangeTemplate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("ChangeTemplate")
}
func (UnimplementedCvServiceServer) Undo(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("Undo")
}
func (UnimplementedCvServiceServer) GetProjection(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetProjection")
}
func (UnimplementedCvServiceServer) ListCvs(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("ListCvs")
}
func (UnimplementedCvServiceServer) GetEventHistory(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetEventHistory")
}
func (UnimplementedCvServiceServer) GetProjectionAtVersion(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("GetProjectionAtVersion")
}

// RegisterCvServiceServer registers srv on s.
func RegisterCvServiceServer(s grpc.ServiceRegistrar, srv CvServiceServer) {
	s.RegisterService(&CvService_ServiceDesc, srv)
}

type unaryMethod func(CvServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CvServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		h := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CvServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, h)
	}
}

// CvService_ServiceDesc is the grpc.ServiceDesc for CvService.
var CvService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CvServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateCv", Handler: handler(CvService_CreateCv_FullMethodName, CvServiceServer.CreateCv)},
		{MethodName: "AddSection", Handler: handler(CvService_AddSection_FullMethodName, CvServiceServer.AddSection)},
		{MethodName: "UpdateSection", Handler: handler(CvService_UpdateSection_FullMethodName, CvServiceServer.UpdateSection)},
		{MethodName: "RemoveSection", Handler: handler(CvService_RemoveSection_FullMethodName, CvServiceServer.RemoveSection)},
		{MethodName: "RenameCv", Handler: handler(CvService_RenameCv_FullMethodName, CvServiceServer.RenameCv)},
		{MethodName: "ChangeTemplate", Handler: handler(CvService_ChangeTemplate_FullMethodName, CvServiceServer.ChangeTemplate)},
		{MethodName: "Undo", Handler: handler(CvService_Undo_FullMethodName, CvServiceServer.Undo)},
		{MethodName: "GetProjection", Handler: handler(CvService_GetProjection_FullMethodName, CvServiceServer.GetProjection)},
		{MethodName: "ListCvs", Handler: handler(CvService_ListCvs_FullMethodName, CvServiceServer.ListCvs)},
		{MethodName: "GetEventHistory", Handler: handler(CvService_GetEventHistory_FullMethodName, CvServiceServer.GetEventHistory)},
		{MethodName: "GetProjectionAtVersion", Handler: handler(CvService_GetProjectionAtVersion_FullMethodName, CvServiceServer.GetProjectionAtVersion)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cvkeeper/v1/cv.proto",
}

// CvServiceClient is the client API for CvService.
type CvServiceClient interface {
	CreateCv(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	AddSection(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateSection(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RemoveSection(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RenameCv(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ChangeTemplate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Undo(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetProjection(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListCvs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetEventHistory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetProjectionAtVersion(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type cvServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCvServiceClient wraps cc.
func NewCvServiceClient(cc grpc.ClientConnInterface) CvServiceClient {
	return &cvServiceClient{cc: cc}
}

func (c *cvServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *cvServiceClient) CreateCv(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_CreateCv_FullMethodName, in, opts)
}
func (c *cvServiceClient) AddSection(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_AddSection_FullMethodName, in, opts)
}
func (c *cvServiceClient) UpdateSection(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_UpdateSection_FullMethodName, in, opts)
}
func (c *cvServiceClient) RemoveSection(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_RemoveSection_FullMethodName, in, opts)
}
func (c *cvServiceClient) RenameCv(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_RenameCv_FullMethodName, in, opts)
}
func (c *cvServiceClient) ChangeTemplate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_ChangeTemplate_FullMethodName, in, opts)
}
func (c *cvServiceClient) Undo(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_Undo_FullMethodName, in, opts)
}
func (c *cvServiceClient) GetProjection(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_GetProjection_FullMethodName, in, opts)
}
func (c *cvServiceClient) ListCvs(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_ListCvs_FullMethodName, in, opts)
}
func (c *cvServiceClient) GetEventHistory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_GetEventHistory_FullMethodName, in, opts)
}
func (c *cvServiceClient) GetProjectionAtVersion(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CvService_GetProjectionAtVersion_FullMethodName, in, opts)
}
