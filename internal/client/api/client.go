// Package api is the client side of the vidauth HTTP API and the gRPC
// introspection endpoint. A Client keeps the current token pair in memory,
// optionally mirrored to a TokenStore, and refreshes it once when a guarded
// call is rejected.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/vidauth/internal/common"
)

// User is the identity returned by the server.
type User struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Success    bool            `json:"success"`
}

// Error is a non-2xx reply. It matches the common error kinds with
// errors.Is.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func (e *Error) Is(target error) bool {
	switch target {
	case common.ErrValidation:
		return e.StatusCode == http.StatusBadRequest
	case common.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case common.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case common.ErrConflict:
		return e.StatusCode == http.StatusConflict
	case common.ErrUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable
	}
	return false
}

// TokenStore keeps the token pair between client runs.
type TokenStore interface {
	LoadTokens(ctx context.Context) (access, refresh string, err error)
	SaveTokens(ctx context.Context, access, refresh string) error
}

type Client struct {
	baseURL  string
	grpcAddr string
	http     *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	store        TokenStore
}

func New(baseURL, grpcAddr string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		grpcAddr: grpcAddr,
		http:     &http.Client{Timeout: timeout},
	}
}

// LoggedIn reports whether the client holds a session.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

func (c *Client) tokens() (access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

// setTokens replaces the pair and writes it through to the store.
func (c *Client) setTokens(ctx context.Context, p tokenPair) error {
	c.mu.Lock()
	c.accessToken, c.refreshToken = p.AccessToken, p.RefreshToken
	store := c.store
	c.mu.Unlock()

	if store == nil {
		return nil
	}
	if err := store.SaveTokens(ctx, p.AccessToken, p.RefreshToken); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Restore resumes the session saved in s and keeps s up to date from then
// on.
func (c *Client) Restore(ctx context.Context, s TokenStore) error {
	access, refresh, err := s.LoadTokens(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = s
	c.accessToken, c.refreshToken = access, refresh
	return nil
}

type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	guarded     bool
}

func jsonBody(v any) ([]byte, error) {
	return json.Marshal(v)
}

// send performs r once. Transport failures are reported as
// common.ErrUnavailable.
func (c *Client) send(ctx context.Context, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return err
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.guarded {
		if access, _ := c.tokens(); access != "" {
			req.Header.Set("Authorization", common.BearerPrefix+access)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// call sends a guarded request, refreshing the token pair and retrying
// once when the guard rejected the access token. Other 401s, such as a wrong
// current password, are returned as is.
func (c *Client) call(ctx context.Context, r request, out any) error {
	r.guarded = true
	err := c.send(ctx, r, out)
	if !accessTokenRejected(err) {
		return err
	}
	if _, refresh := c.tokens(); refresh == "" {
		return err
	}
	if rerr := c.Refresh(ctx); rerr != nil {
		return err
	}
	return c.send(ctx, r, out)
}

func accessTokenRejected(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) &&
		apiErr.StatusCode == http.StatusUnauthorized &&
		apiErr.Message == common.InvalidAccessTokenMessage
}
