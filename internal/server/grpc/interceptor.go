package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/server/guard"
)

var protectedMethods = map[string]bool{
	WhoAmIMethod: true,
}

// accessTokenInterceptor authenticates protected methods and puts the
// identity on the handler's context.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	u, err := s.guard.Authenticate(ctx, tokenFromMetadata(ctx))
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			s.logger.Error(ctx, "authenticate", "method", info.FullMethod, "error", err)
			return nil, status.Error(codes.Unavailable, "service temporarily unavailable")
		}
		return nil, status.Error(codes.Unauthenticated, common.InvalidAccessTokenMessage)
	}

	return handler(guard.WithUser(ctx, u), req)
}

// tokenFromMetadata reads access_token, falling back to a Bearer
// authorization value.
func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 && values[0] != "" {
		return values[0]
	}
	if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
		return guard.BearerToken(values[0])
	}
	return ""
}
