package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
)

// CurrentUser returns the sanitized identity for userID.
func (s *SessionManager) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	u, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return nil, storeError("lookup user", err)
	}
	return u.Public(), nil
}

// UpdateAccountDetails changes the full name and/or email. At least one must
// be given.
func (s *SessionManager) UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" && email == "" {
		return nil, fmt.Errorf("%w: fullName or email is required", common.ErrValidation)
	}

	u, err := s.store.Users().UpdateAccountDetails(ctx, userID, fullName, email)
	if err != nil {
		return nil, storeError("update account", err)
	}
	return u.Public(), nil
}

func (s *SessionManager) UpdateAvatar(ctx context.Context, userID, localPath string) (*models.PublicUser, error) {
	if localPath == "" {
		return nil, fmt.Errorf("%w: avatar file is missing", common.ErrValidation)
	}
	url, err := s.assets.Upload(ctx, localPath)
	if err != nil {
		s.logger.Error(ctx, "avatar upload failed", "user_id", userID, "error", err)
		return nil, unavailable("upload avatar", err)
	}

	u, err := s.store.Users().UpdateAvatar(ctx, userID, url)
	if err != nil {
		s.unpublish(ctx, url)
		return nil, storeError("update avatar", err)
	}
	return u.Public(), nil
}

func (s *SessionManager) UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.PublicUser, error) {
	if localPath == "" {
		return nil, fmt.Errorf("%w: cover image file is missing", common.ErrValidation)
	}
	url, err := s.assets.Upload(ctx, localPath)
	if err != nil {
		s.logger.Error(ctx, "cover image upload failed", "user_id", userID, "error", err)
		return nil, unavailable("upload cover image", err)
	}

	u, err := s.store.Users().UpdateCoverImage(ctx, userID, url)
	if err != nil {
		s.unpublish(ctx, url)
		return nil, storeError("update cover image", err)
	}
	return u.Public(), nil
}

// storeError passes taxonomy errors through and marks the rest unavailable.
func storeError(op string, err error) error {
	if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrConflict) {
		return err
	}
	return unavailable(op, err)
}
