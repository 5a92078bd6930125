// Package services contains the server-side business logic. SessionManager
// drives registration, login, refresh-token rotation, logout and password
// changes; profile.go holds the account-maintenance operations.
package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/logging"
	"github.com/dmitrijs2005/vidauth/internal/server/assets"
	"github.com/dmitrijs2005/vidauth/internal/server/auth"
	"github.com/dmitrijs2005/vidauth/internal/server/metrics"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vidauth/internal/server/repositories/users"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

// TokenIssuer mints and validates signed tokens.
type TokenIssuer interface {
	IssueAccess(u *models.User) (string, error)
	IssueRefresh(u *models.User) (string, error)
	Validate(token string, scope auth.Scope) (*auth.Claims, error)
}

// RegisterInput is a validated-at-the-boundary registration request.
// AvatarPath and CoverPath point at files in the temporary upload directory.
type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	FullName   string
	AvatarPath string
	CoverPath  string
}

// LoginInput identifies the user by Username or Email.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// SessionManager holds no per-request state; every call reads and writes
// through the credential store.
type SessionManager struct {
	store   repomanager.RepositoryManager
	hasher  PasswordHasher
	issuer  TokenIssuer
	assets  assets.Uploader
	logger  logging.Logger
	metrics *metrics.Metrics
}

func NewSessionManager(
	store repomanager.RepositoryManager,
	hasher PasswordHasher,
	issuer TokenIssuer,
	uploader assets.Uploader,
	logger logging.Logger,
	m *metrics.Metrics,
) *SessionManager {
	return &SessionManager{
		store:   store,
		hasher:  hasher,
		issuer:  issuer,
		assets:  uploader,
		logger:  logger.With("module", "sessions"),
		metrics: m,
	}
}

// Register creates an identity. The avatar is mandatory; a failed cover
// upload is logged and leaves the cover empty.
func (s *SessionManager) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	defer discardUploads(in.AvatarPath, in.CoverPath)

	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fullName := strings.TrimSpace(in.FullName)

	if username == "" || email == "" || fullName == "" || strings.TrimSpace(in.Password) == "" {
		return nil, fmt.Errorf("%w: all fields are required", common.ErrValidation)
	}
	if in.AvatarPath == "" {
		return nil, fmt.Errorf("%w: avatar file is required", common.ErrValidation)
	}

	_, err := s.store.Users().FindByUsernameOrEmail(ctx, username, email)
	switch {
	case err == nil:
		s.metrics.AuthEvent("register", metrics.OutcomeFailure)
		return nil, fmt.Errorf("%w: user with email or username already exists", common.ErrConflict)
	case !errors.Is(err, common.ErrNotFound):
		return nil, unavailable("lookup user", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	avatarURL, err := s.assets.Upload(ctx, in.AvatarPath)
	if err != nil {
		s.logger.Error(ctx, "avatar upload failed", "error", err)
		return nil, unavailable("upload avatar", err)
	}

	var coverURL string
	if in.CoverPath != "" {
		coverURL, err = s.assets.Upload(ctx, in.CoverPath)
		if err != nil {
			s.logger.Warn(ctx, "cover image upload failed, continuing without it", "error", err)
			coverURL = ""
		}
	}

	u, err := s.store.Users().Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		FullName:     fullName,
		Avatar:       avatarURL,
		CoverImage:   coverURL,
		PasswordHash: hash,
	})
	if err != nil {
		// lost a uniqueness race or the store failed after the uploads
		s.unpublish(ctx, avatarURL, coverURL)
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		return nil, unavailable("create user", err)
	}

	s.metrics.AuthEvent("register", metrics.OutcomeSuccess)
	s.logger.Info(ctx, "user registered", "user_id", u.ID)
	return u.Public(), nil
}

// Login verifies credentials and starts a session. Any refresh token issued
// earlier to the same user stops working.
func (s *SessionManager) Login(ctx context.Context, in LoginInput) (*models.TokenPair, *models.PublicUser, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if username == "" && email == "" {
		return nil, nil, fmt.Errorf("%w: username or email is required", common.ErrValidation)
	}
	if in.Password == "" {
		return nil, nil, fmt.Errorf("%w: password is required", common.ErrValidation)
	}

	u, err := s.store.Users().FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.metrics.AuthEvent("login", metrics.OutcomeFailure)
			return nil, nil, fmt.Errorf("%w: user does not exist", common.ErrNotFound)
		}
		return nil, nil, unavailable("lookup user", err)
	}

	ok, err := s.hasher.Verify(in.Password, u.PasswordHash)
	if err != nil {
		s.logger.Error(ctx, "stored password hash is unreadable", "user_id", u.ID, "error", err)
		return nil, nil, err
	}
	if !ok {
		s.metrics.AuthEvent("login", metrics.OutcomeFailure)
		s.logger.Warn(ctx, "login rejected", "user_id", u.ID)
		return nil, nil, fmt.Errorf("%w: invalid user credentials", common.ErrUnauthorized)
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.RefreshTokens().Set(ctx, u.ID, auth.Fingerprint(pair.RefreshToken)); err != nil {
		return nil, nil, unavailable("store refresh token", err)
	}

	s.metrics.AuthEvent("login", metrics.OutcomeSuccess)
	s.logger.Info(ctx, "user logged in", "user_id", u.ID)
	return pair, u.Public(), nil
}

// Refresh exchanges a valid, current refresh token for a new pair. The
// presented token is consumed: of two concurrent calls with the same token
// at most one succeeds.
func (s *SessionManager) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", common.ErrUnauthorized)
	}

	claims, err := s.issuer.Validate(refreshToken, auth.ScopeRefresh)
	if err != nil {
		s.metrics.AuthEvent("refresh", metrics.OutcomeFailure)
		if errors.Is(err, common.ErrTokenMalformed) || errors.Is(err, common.ErrTokenWrongScope) {
			s.logger.Warn(ctx, "rejected refresh token", "error", err)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrUnauthorized, err)
	}

	u, err := s.store.Users().FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.metrics.AuthEvent("refresh", metrics.OutcomeFailure)
			return nil, fmt.Errorf("%w: invalid refresh token", common.ErrNotFound)
		}
		return nil, unavailable("lookup user", err)
	}

	pair, err := s.issuePair(u)
	if err != nil {
		return nil, err
	}

	swapped, err := s.store.RefreshTokens().CompareAndSwap(ctx, u.ID,
		auth.Fingerprint(refreshToken), auth.Fingerprint(pair.RefreshToken))
	if err != nil {
		return nil, unavailable("rotate refresh token", err)
	}
	if !swapped {
		s.metrics.AuthEvent("refresh", metrics.OutcomeReuse)
		s.logger.Warn(ctx, "refresh token reuse detected", "user_id", u.ID, "jti", claims.ID)
		return nil, fmt.Errorf("%w: refresh token is expired or used", common.ErrUnauthorized)
	}

	s.metrics.AuthEvent("refresh", metrics.OutcomeSuccess)
	return pair, nil
}

// Logout ends the user's session. Calling it without a session is fine.
func (s *SessionManager) Logout(ctx context.Context, userID string) error {
	if err := s.store.RefreshTokens().Clear(ctx, userID); err != nil {
		return unavailable("clear refresh token", err)
	}
	s.metrics.AuthEvent("logout", metrics.OutcomeSuccess)
	s.logger.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// ChangePassword re-verifies the old password, stores the new hash and
// revokes the refresh token in the same step.
func (s *SessionManager) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: old and new password are required", common.ErrValidation)
	}

	u, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return unavailable("lookup user", err)
	}

	ok, err := s.hasher.Verify(oldPassword, u.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn(ctx, "password change rejected", "user_id", userID)
		return fmt.Errorf("%w: invalid old password", common.ErrUnauthorized)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, ur users.Repository, rt refreshtokens.Repository) error {
		if err := ur.UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		return rt.Clear(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return unavailable("update password", err)
	}

	s.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

func (s *SessionManager) issuePair(u *models.User) (*models.TokenPair, error) {
	access, err := s.issuer.IssueAccess(u)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issuer.IssueRefresh(u)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrUnavailable, op, err)
}

// unpublish removes assets whose owning write failed. Failures are only
// logged; the caller's error is what the client sees.
func (s *SessionManager) unpublish(ctx context.Context, urls ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := s.assets.Remove(ctx, u); err != nil {
			s.logger.Warn(ctx, "orphaned asset left behind", "url", u, "error", err)
		}
	}
}

// discardUploads removes temp files an Uploader did not consume.
func discardUploads(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}
