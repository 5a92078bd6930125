package grpc

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/logging"
	"github.com/dmitrijs2005/vidauth/internal/server/auth"
	"github.com/dmitrijs2005/vidauth/internal/server/guard"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/users"
)

type fixture struct {
	server *GRPCServer
	issuer *auth.Issuer
	user   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	issuer, err := auth.NewIssuer("access", "refresh", time.Minute, time.Hour)
	require.NoError(t, err)

	repo := users.NewMemoryRepository()
	u, err := repo.Create(context.Background(), &models.User{
		Username:     "alice",
		Email:        "alice@example.com",
		FullName:     "Alice Liddell",
		PasswordHash: "h",
	})
	require.NoError(t, err)

	g := guard.New(issuer, repo, logging.Discard(), nil)
	return &fixture{server: NewGRPCServer("127.0.0.1:0", logging.Discard(), g), issuer: issuer, user: u}
}

// dial starts the server on an in-memory listener.
func (f *fixture) dial(t *testing.T) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, _ := f.server.newServer()
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := newFixture(t).server

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

func TestServe_FailureStopsServer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	f := newFixture(t)
	srv := NewGRPCServer("bufnet", logging.NewJSONLogger(&buf, "info"), f.server.guard)

	lis := bufconn.Listen(1 << 10)
	require.NoError(t, lis.Close())

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(context.Background(), lis)
	}()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return on a closed listener")
	}
	assert.Contains(t, buf.String(), "Stopping gRPC server...")
}

func TestWhoAmI_AccessTokenMetadata(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	tok, err := f.issuer.IssueAccess(f.user)
	require.NoError(t, err)

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, tok)
	out, err := WhoAmI(ctx, conn)
	require.NoError(t, err)

	fields := out.AsMap()
	assert.Equal(t, f.user.ID, fields["_id"])
	assert.Equal(t, "alice", fields["username"])
	assert.Equal(t, "alice@example.com", fields["email"])
	assert.NotContains(t, fields, "password")
}

func TestWhoAmI_BearerMetadata(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	tok, err := f.issuer.IssueAccess(f.user)
	require.NoError(t, err)

	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AuthorizationHeaderName, "Bearer "+tok)
	out, err := WhoAmI(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, "alice", out.AsMap()["username"])
}

func TestWhoAmI_Rejected(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	refresh, err := f.issuer.IssueRefresh(f.user)
	require.NoError(t, err)

	for name, ctx := range map[string]context.Context{
		"missing":   context.Background(),
		"malformed": metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, "x.y.z"),
		"refresh":   metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, refresh),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := WhoAmI(ctx, conn)
			require.Error(t, err)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
			assert.Equal(t, "invalid access token", status.Convert(err).Message())
		})
	}
}

func TestHealth_Serving(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: IntrospectionServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
