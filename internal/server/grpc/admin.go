package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The admin service uses only well-known message types, so its descriptor
// is declared here instead of being generated.

const (
	StoreAdmin_ServiceName                 = "fhirkeeper.admin.StoreAdmin"
	StoreAdmin_Clean_FullMethodName        = "/fhirkeeper.admin.StoreAdmin/Clean"
	StoreAdmin_PurgeBatch_FullMethodName   = "/fhirkeeper.admin.StoreAdmin/PurgeBatch"
	StoreAdmin_NextSequence_FullMethodName = "/fhirkeeper.admin.StoreAdmin/NextSequence"
	StoreAdmin_ReadCurrent_FullMethodName  = "/fhirkeeper.admin.StoreAdmin/ReadCurrent"
)

// StoreAdminServer is the server API for the StoreAdmin service.
type StoreAdminServer interface {
	// Clean erases every document, counter, snapshot and blob.
	Clean(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	// PurgeBatch deletes the documents of a batch and returns how many went.
	PurgeBatch(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	// NextSequence allocates the next value of a named counter.
	NextSequence(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error)
	// ReadCurrent returns the current version of a logical id.
	ReadCurrent(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// UnimplementedStoreAdminServer can be embedded to keep forward compatibility.
type UnimplementedStoreAdminServer struct{}

func (UnimplementedStoreAdminServer) Clean(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Clean not implemented")
}
func (UnimplementedStoreAdminServer) PurgeBatch(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	return nil, status.Error(codes.Unimplemented, "method PurgeBatch not implemented")
}
func (UnimplementedStoreAdminServer) NextSequence(context.Context, *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	return nil, status.Error(codes.Unimplemented, "method NextSequence not implemented")
}
func (UnimplementedStoreAdminServer) ReadCurrent(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ReadCurrent not implemented")
}

func RegisterStoreAdminServer(s grpc.ServiceRegistrar, srv StoreAdminServer) {
	s.RegisterService(&StoreAdmin_ServiceDesc, srv)
}

func _StoreAdmin_Clean_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StoreAdminServer).Clean(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StoreAdmin_Clean_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StoreAdminServer).Clean(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _StoreAdmin_PurgeBatch_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StoreAdminServer).PurgeBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StoreAdmin_PurgeBatch_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StoreAdminServer).PurgeBatch(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _StoreAdmin_NextSequence_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StoreAdminServer).NextSequence(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StoreAdmin_NextSequence_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StoreAdminServer).NextSequence(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _StoreAdmin_ReadCurrent_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StoreAdminServer).ReadCurrent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StoreAdmin_ReadCurrent_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StoreAdminServer).ReadCurrent(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// StoreAdmin_ServiceDesc is the grpc.ServiceDesc for the StoreAdmin service.
var StoreAdmin_ServiceDesc = grpc.ServiceDesc{
	ServiceName: StoreAdmin_ServiceName,
	HandlerType: (*StoreAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Clean", Handler: _StoreAdmin_Clean_Handler},
		{MethodName: "PurgeBatch", Handler: _StoreAdmin_PurgeBatch_Handler},
		{MethodName: "NextSequence", Handler: _StoreAdmin_NextSequence_Handler},
		{MethodName: "ReadCurrent", Handler: _StoreAdmin_ReadCurrent_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fhirkeeper/admin.proto",
}

// StoreAdminClient is the client API for the StoreAdmin service.
type StoreAdminClient interface {
	Clean(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	PurgeBatch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error)
	NextSequence(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error)
	ReadCurrent(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type storeAdminClient struct {
	cc grpc.ClientConnInterface
}

func NewStoreAdminClient(cc grpc.ClientConnInterface) StoreAdminClient {
	return &storeAdminClient{cc}
}

func (c *storeAdminClient) Clean(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, StoreAdmin_Clean_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeAdminClient) PurgeBatch(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, StoreAdmin_PurgeBatch_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeAdminClient) NextSequence(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.Int64Value, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(ctx, StoreAdmin_NextSequence_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeAdminClient) ReadCurrent(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, StoreAdmin_ReadCurrent_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
