package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/server/guard"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
)

const (
	IntrospectionServiceName = "vidauth.v1.Introspection"
	WhoAmIMethod             = "/" + IntrospectionServiceName + "/WhoAmI"
)

// IntrospectionServer lets other platform services resolve the caller's
// access token to an identity.
type IntrospectionServer interface {
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

var introspectionServiceDesc = grpc.ServiceDesc{
	ServiceName: IntrospectionServiceName,
	HandlerType: (*IntrospectionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vidauth/v1/introspection.proto",
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IntrospectionServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IntrospectionServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// WhoAmI calls the introspection method on cc.
func WhoAmI(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, WhoAmIMethod, new(emptypb.Empty), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	u, ok := guard.UserFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, common.InvalidAccessTokenMessage)
	}

	out, err := identityStruct(u)
	if err != nil {
		s.logger.Error(ctx, "encode identity", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func identityStruct(u *models.PublicUser) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"_id":        u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"fullName":   u.FullName,
		"avatar":     u.Avatar,
		"coverImage": u.CoverImage,
		"createdAt":  u.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":  u.UpdatedAt.UTC().Format(time.RFC3339),
	})
}
