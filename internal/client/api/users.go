package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/vidauth/internal/common"
)

// RegisterRequest carries the sign-up form. AvatarPath is required by the
// server; CoverPath may be empty.
type RegisterRequest struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	AvatarPath string
	CoverPath  string
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	body, contentType, err := multipartBody(
		map[string]string{
			"username": in.Username,
			"email":    in.Email,
			"fullName": in.FullName,
			"password": in.Password,
		},
		map[string]string{"avatar": in.AvatarPath, "coverImage": in.CoverPath},
	)
	if err != nil {
		return nil, err
	}

	var u User
	err = c.send(ctx, request{method: http.MethodPost, path: "/users/register", body: body, contentType: contentType}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Login authenticates by email when identifier contains "@", by username
// otherwise, and keeps the returned token pair.
func (c *Client) Login(ctx context.Context, identifier, password string) (*User, error) {
	payload := map[string]string{"password": password}
	if strings.Contains(identifier, "@") {
		payload["email"] = identifier
	} else {
		payload["username"] = identifier
	}
	body, err := jsonBody(payload)
	if err != nil {
		return nil, err
	}

	var out struct {
		User *User `json:"user"`
		tokenPair
	}
	err = c.send(ctx, request{method: http.MethodPost, path: "/users/login", body: body, contentType: "application/json"}, &out)
	if err != nil {
		return nil, err
	}
	if err := c.setTokens(ctx, out.tokenPair); err != nil {
		return nil, err
	}
	return out.User, nil
}

// Refresh rotates the stored token pair.
func (c *Client) Refresh(ctx context.Context) error {
	_, refresh := c.tokens()
	if refresh == "" {
		return fmt.Errorf("%w: not logged in", common.ErrUnauthorized)
	}
	body, err := jsonBody(map[string]string{"refreshToken": refresh})
	if err != nil {
		return err
	}

	var pair tokenPair
	err = c.send(ctx, request{method: http.MethodPost, path: "/users/refresh-token", body: body, contentType: "application/json"}, &pair)
	if err != nil {
		return err
	}
	return c.setTokens(ctx, pair)
}

// Logout ends the session on the server and forgets the local tokens.
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, request{method: http.MethodPost, path: "/users/logout"}, nil)
	return errors.Join(err, c.setTokens(ctx, tokenPair{}))
}

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, request{method: http.MethodGet, path: "/users/current-user"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword also drops the local tokens: the server revokes the
// session.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body, err := jsonBody(map[string]string{"oldPassword": oldPassword, "newPassword": newPassword})
	if err != nil {
		return err
	}
	if err := c.call(ctx, request{method: http.MethodPost, path: "/users/change-password", body: body, contentType: "application/json"}, nil); err != nil {
		return err
	}
	return c.setTokens(ctx, tokenPair{})
}

func (c *Client) UpdateDetails(ctx context.Context, fullName, email string) (*User, error) {
	body, err := jsonBody(map[string]string{"fullName": fullName, "email": email})
	if err != nil {
		return nil, err
	}
	var u User
	if err := c.call(ctx, request{method: http.MethodPatch, path: "/users/update-details", body: body, contentType: "application/json"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateAvatar(ctx context.Context, path string) (*User, error) {
	return c.uploadImage(ctx, "/users/update-avatar", "avatar", path)
}

func (c *Client) UpdateCover(ctx context.Context, path string) (*User, error) {
	return c.uploadImage(ctx, "/users/update-cover", "coverImage", path)
}

func (c *Client) uploadImage(ctx context.Context, route, field, path string) (*User, error) {
	body, contentType, err := multipartBody(nil, map[string]string{field: path})
	if err != nil {
		return nil, err
	}
	var u User
	if err := c.call(ctx, request{method: http.MethodPatch, path: route, body: body, contentType: contentType}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// multipartBody encodes fields and files; files with an empty path are
// skipped.
func multipartBody(fields, files map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	for field, path := range files {
		if path == "" {
			continue
		}
		if err := attachFile(mw, field, path); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func attachFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	w, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
