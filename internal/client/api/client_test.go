package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/logging"
	"github.com/dmitrijs2005/vidauth/internal/server/assets"
	"github.com/dmitrijs2005/vidauth/internal/server/auth"
	"github.com/dmitrijs2005/vidauth/internal/server/guard"
	servergrpc "github.com/dmitrijs2005/vidauth/internal/server/grpc"
	"github.com/dmitrijs2005/vidauth/internal/server/httpapi"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vidauth/internal/server/services"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

// startServer runs the real HTTP API on httptest and the gRPC service on
// an in-memory listener.
func startServer(t *testing.T, accessTTL time.Duration) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repomanager.NewMemoryRepositoryManager(nil)
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	issuer, err := auth.NewIssuer("access-secret", "refresh-secret", accessTTL, time.Hour)
	require.NoError(t, err)

	g := guard.New(issuer, store.Users(), logging.Discard(), nil)
	sessions := services.NewSessionManager(store, hasher, issuer,
		assets.NewLocalUploader(t.TempDir(), "http://cdn.local"), logging.Discard(), nil)

	router := httpapi.NewRouter(httpapi.Deps{
		Sessions: sessions,
		Guard:    g,
		Store:    store,
		Logger:   logging.Discard(),
	}, httpapi.Options{UploadDir: t.TempDir(), MaxUploadSize: 1 << 20})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = servergrpc.NewGRPCServer("", logging.Discard(), g).Serve(ctx, lis) }()

	orig := dialOptions
	dialOptions = []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
	t.Cleanup(func() { dialOptions = orig })

	return New(srv.URL, "passthrough:///bufnet", 5*time.Second)
}

func writeImage(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "avatar.png")
	require.NoError(t, os.WriteFile(p, pngBytes, 0o600))
	return p
}

func registerAlice(t *testing.T, c *Client) *User {
	t.Helper()
	u, err := c.Register(context.Background(), RegisterRequest{
		Username:   "alice",
		Email:      "alice@example.com",
		FullName:   "Alice Liddell",
		Password:   "secret1",
		AvatarPath: writeImage(t),
	})
	require.NoError(t, err)
	return u
}

func TestClient_SessionLifecycle(t *testing.T) {
	c := startServer(t, time.Minute)
	ctx := context.Background()

	u := registerAlice(t, c)
	assert.Equal(t, "alice", u.Username)
	assert.False(t, c.LoggedIn())

	_, err := c.CurrentUser(ctx)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	logged, err := c.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)
	assert.True(t, c.LoggedIn())

	me, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)

	_, refresh := c.tokens()
	require.NoError(t, c.Refresh(ctx))
	access2, refresh2 := c.tokens()
	assert.NotEqual(t, refresh, refresh2)
	assert.NotEmpty(t, access2)

	updated, err := c.UpdateDetails(ctx, "Alice L.", "")
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", updated.FullName)

	withAvatar, err := c.UpdateAvatar(ctx, writeImage(t))
	require.NoError(t, err)
	assert.NotEqual(t, u.Avatar, withAvatar.Avatar)

	require.NoError(t, c.Logout(ctx))
	assert.False(t, c.LoggedIn())
}

func TestClient_LoginFailures(t *testing.T) {
	c := startServer(t, time.Minute)
	registerAlice(t, c)

	_, err := c.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, common.ErrUnauthorized)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	_, err = c.Register(context.Background(), RegisterRequest{
		Username: "alice", Email: "x@example.com", FullName: "A", Password: "p", AvatarPath: writeImage(t),
	})
	require.ErrorIs(t, err, common.ErrConflict)
}

func TestClient_ChangePasswordDropsSession(t *testing.T) {
	c := startServer(t, time.Minute)
	registerAlice(t, c)
	ctx := context.Background()

	_, err := c.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	require.NoError(t, c.ChangePassword(ctx, "secret1", "secret2"))
	assert.False(t, c.LoggedIn())

	_, err = c.Login(ctx, "alice", "secret2")
	require.NoError(t, err)
}

func TestClient_RefreshesExpiredAccessToken(t *testing.T) {
	c := startServer(t, time.Second)
	registerAlice(t, c)
	ctx := context.Background()

	_, err := c.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	_, refresh := c.tokens()

	time.Sleep(2100 * time.Millisecond)

	me, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	_, refresh2 := c.tokens()
	assert.NotEqual(t, refresh, refresh2)
}

func TestClient_Introspect(t *testing.T) {
	c := startServer(t, time.Minute)
	registerAlice(t, c)
	ctx := context.Background()

	_, err := c.Introspect(ctx)
	require.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = c.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	identity, err := c.Introspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity["username"])
}

func TestClient_ServerDown(t *testing.T) {
	c := New("http://127.0.0.1:1", "127.0.0.1:1", time.Second)

	_, err := c.Login(context.Background(), "alice", "secret1")
	require.ErrorIs(t, err, common.ErrUnavailable)
}

func TestError_Is(t *testing.T) {
	assert.ErrorIs(t, &Error{StatusCode: 400}, common.ErrValidation)
	assert.ErrorIs(t, &Error{StatusCode: 404}, common.ErrNotFound)
	assert.ErrorIs(t, &Error{StatusCode: 503}, common.ErrUnavailable)
	assert.NotErrorIs(t, &Error{StatusCode: 500}, common.ErrUnavailable)
	assert.Equal(t, "409: taken", (&Error{StatusCode: 409, Message: "taken"}).Error())
}

type memTokens struct {
	access, refresh string
	saves           int
	err             error
}

func (m *memTokens) LoadTokens(context.Context) (string, string, error) {
	return m.access, m.refresh, m.err
}

func (m *memTokens) SaveTokens(_ context.Context, access, refresh string) error {
	m.access, m.refresh = access, refresh
	m.saves++
	return nil
}

func TestClient_RestoreResumesSavedSession(t *testing.T) {
	c := startServer(t, time.Minute)
	registerAlice(t, c)
	ctx := context.Background()

	saved := &memTokens{}
	require.NoError(t, c.Restore(ctx, saved))
	assert.False(t, c.LoggedIn())

	_, err := c.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, 1, saved.saves)
	assert.NotEmpty(t, saved.refresh)

	next := New(c.baseURL, c.grpcAddr, 5*time.Second)
	require.NoError(t, next.Restore(ctx, saved))
	assert.True(t, next.LoggedIn())

	me, err := next.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	require.NoError(t, next.Logout(ctx))
	assert.Empty(t, saved.access)
	assert.Empty(t, saved.refresh)
}

func TestClient_RestoreLoadError(t *testing.T) {
	c := New("http://127.0.0.1:1", "", time.Second)
	err := c.Restore(context.Background(), &memTokens{err: errors.New("disk gone")})
	require.ErrorContains(t, err, "load session")
	assert.False(t, c.LoggedIn())
}

func TestClient_WrongOldPasswordKeepsSession(t *testing.T) {
	c := startServer(t, time.Minute)
	registerAlice(t, c)
	ctx := context.Background()

	_, err := c.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
	access, refresh := c.tokens()

	err = c.ChangePassword(ctx, "not-my-password", "secret2")
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid old password")

	access2, refresh2 := c.tokens()
	assert.Equal(t, access, access2)
	assert.Equal(t, refresh, refresh2, "a rejected password must not rotate the session")

	_, err = c.Login(ctx, "alice", "secret1")
	require.NoError(t, err)
}

func TestAccessTokenRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"guard rejection", &Error{StatusCode: http.StatusUnauthorized, Message: common.InvalidAccessTokenMessage}, true},
		{"wrong password", &Error{StatusCode: http.StatusUnauthorized, Message: "invalid old password"}, false},
		{"other status", &Error{StatusCode: http.StatusBadRequest, Message: common.InvalidAccessTokenMessage}, false},
		{"transport", common.ErrUnavailable, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, accessTokenRejected(tt.err))
		})
	}
}
