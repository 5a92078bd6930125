package api

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/vidauth/internal/common"
	servergrpc "github.com/dmitrijs2005/vidauth/internal/server/grpc"
)

// dialOptions is a seam for tests that serve gRPC over bufconn.
var dialOptions = []grpc.DialOption{
	grpc.WithTransportCredentials(insecure.NewCredentials()),
	grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

// Introspect asks the gRPC endpoint who the current access token belongs
// to, as other platform services do.
func (c *Client) Introspect(ctx context.Context) (map[string]any, error) {
	access, _ := c.tokens()
	if access == "" {
		return nil, fmt.Errorf("%w: not logged in", common.ErrUnauthorized)
	}

	conn, err := grpc.NewClient(c.grpcAddr, dialOptions...)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	out, err := servergrpc.WhoAmI(withAccessToken(ctx, access), conn)
	if err != nil {
		return nil, fromStatus(err)
	}
	return out.AsMap(), nil
}

func fromStatus(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, status.Convert(err).Message())
	}
	return err
}
