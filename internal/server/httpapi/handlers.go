package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
	"github.com/dmitrijs2005/vidauth/internal/server/services"
)

// Sessions is the part of services.SessionManager the handlers drive.
type Sessions interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.PublicUser, error)
	Login(ctx context.Context, in services.LoginInput) (*models.TokenPair, *models.PublicUser, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error)
	UpdateAccountDetails(ctx context.Context, userID, fullName, email string) (*models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID, localPath string) (*models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID, localPath string) (*models.PublicUser, error)
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateDetailsRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type loginResponse struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

type handler struct {
	sessions Sessions
	opts     Options
}

func (h *handler) register(c *gin.Context) {
	avatar, err := h.saveUpload(c, "avatar")
	if err != nil {
		fail(c, err)
		return
	}
	cover, err := h.saveUpload(c, "coverImage")
	if err != nil {
		removeFiles(avatar)
		fail(c, err)
		return
	}

	u, err := h.sessions.Register(c.Request.Context(), services.RegisterInput{
		Username:   c.PostForm("username"),
		Email:      c.PostForm("email"),
		Password:   c.PostForm("password"),
		FullName:   c.PostForm("fullName"),
		AvatarPath: avatar,
		CoverPath:  cover,
	})
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "User registered successfully", u)
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: malformed request body", common.ErrValidation))
		return
	}

	pair, u, err := h.sessions.Login(c.Request.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		fail(c, asUnauthorized(err))
		return
	}

	h.setSessionCookies(c, pair)
	respond(c, http.StatusOK, "User logged in successfully", loginResponse{
		User:         u,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *handler) logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), currentUser(c).ID); err != nil {
		fail(c, err)
		return
	}
	h.clearSessionCookies(c)
	respond(c, http.StatusOK, "User logged out", gin.H{})
}

func (h *handler) refresh(c *gin.Context) {
	token, _ := c.Cookie(common.RefreshTokenCookieName)
	if token == "" {
		var req refreshRequest
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), token)
	if err != nil {
		fail(c, asUnauthorized(err))
		return
	}

	h.setSessionCookies(c, pair)
	respond(c, http.StatusOK, "Access token refreshed", pair)
}

func (h *handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: malformed request body", common.ErrValidation))
		return
	}

	if err := h.sessions.ChangePassword(c.Request.Context(), currentUser(c).ID, req.OldPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	h.clearSessionCookies(c)
	respond(c, http.StatusOK, "Password changed successfully", gin.H{})
}

func (h *handler) current(c *gin.Context) {
	u, err := h.sessions.CurrentUser(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Current user fetched successfully", u)
}

func (h *handler) updateDetails(c *gin.Context) {
	var req updateDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, fmt.Errorf("%w: malformed request body", common.ErrValidation))
		return
	}

	u, err := h.sessions.UpdateAccountDetails(c.Request.Context(), currentUser(c).ID, req.FullName, req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Account details updated successfully", u)
}

func (h *handler) updateAvatar(c *gin.Context) {
	h.replaceImage(c, "avatar", h.sessions.UpdateAvatar, "Avatar image updated successfully")
}

func (h *handler) updateCover(c *gin.Context) {
	h.replaceImage(c, "coverImage", h.sessions.UpdateCoverImage, "Cover image updated successfully")
}

func (h *handler) replaceImage(
	c *gin.Context,
	field string,
	update func(ctx context.Context, userID, localPath string) (*models.PublicUser, error),
	message string,
) {
	path, err := h.saveUpload(c, field)
	if err != nil {
		fail(c, err)
		return
	}
	defer removeFiles(path)

	u, err := update(c.Request.Context(), currentUser(c).ID, path)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, message, u)
}

func (h *handler) setSessionCookies(c *gin.Context, pair *models.TokenPair) {
	h.setCookie(c, common.AccessTokenCookieName, pair.AccessToken, h.opts.AccessTTL)
	h.setCookie(c, common.RefreshTokenCookieName, pair.RefreshToken, h.opts.RefreshTTL)
}

func (h *handler) clearSessionCookies(c *gin.Context) {
	h.setCookie(c, common.AccessTokenCookieName, "", -1)
	h.setCookie(c, common.RefreshTokenCookieName, "", -1)
}

// setCookie writes an httpOnly cookie; a negative ttl deletes it.
func (h *handler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
