// Package guard verifies access tokens on incoming requests and resolves
// them to the current identity. Transport adapters (gin middleware, gRPC
// interceptor) call Authenticate and put the result on the context.
package guard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/logging"
	"github.com/dmitrijs2005/vidauth/internal/server/auth"
	"github.com/dmitrijs2005/vidauth/internal/server/metrics"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
)

// ErrInvalidAccessToken is the single failure callers see for absent,
// malformed, expired, wrong-scope or orphaned tokens.
var ErrInvalidAccessToken = fmt.Errorf("%w: %s", common.ErrUnauthorized, common.InvalidAccessTokenMessage)

type TokenValidator interface {
	Validate(token string, scope auth.Scope) (*auth.Claims, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Guard is read-only: it never writes to the store.
type Guard struct {
	tokens  TokenValidator
	users   UserFinder
	logger  logging.Logger
	metrics *metrics.Metrics
}

func New(tokens TokenValidator, users UserFinder, logger logging.Logger, m *metrics.Metrics) *Guard {
	return &Guard{tokens: tokens, users: users, logger: logger.With("module", "guard"), metrics: m}
}

// Authenticate resolves raw to the sanitized identity it was issued for.
// A store failure is reported as common.ErrUnavailable rather than as an
// authentication failure.
func (g *Guard) Authenticate(ctx context.Context, raw string) (*models.PublicUser, error) {
	if raw == "" {
		g.metrics.AuthEvent("guard", metrics.OutcomeFailure)
		return nil, ErrInvalidAccessToken
	}

	claims, err := g.tokens.Validate(raw, auth.ScopeAccess)
	if err != nil {
		g.metrics.AuthEvent("guard", metrics.OutcomeFailure)
		if !errors.Is(err, common.ErrTokenExpired) {
			g.logger.Warn(ctx, "access token rejected", "error", err)
		}
		return nil, ErrInvalidAccessToken
	}

	u, err := g.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			g.metrics.AuthEvent("guard", metrics.OutcomeFailure)
			g.logger.Warn(ctx, "access token for unknown user", "user_id", claims.UserID())
			return nil, ErrInvalidAccessToken
		}
		return nil, fmt.Errorf("%w: lookup user: %w", common.ErrUnavailable, err)
	}

	return u.Public(), nil
}

// TokenFromRequest extracts the access token: the accessToken cookie wins
// over an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(common.AccessTokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return BearerToken(r.Header.Get("Authorization"))
}

// BearerToken strips the Bearer scheme from an Authorization value.
func BearerToken(header string) string {
	if len(header) < len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(common.BearerPrefix):])
}

type ctxKey struct{}

// WithUser stores the authenticated identity on ctx.
func WithUser(ctx context.Context, u *models.PublicUser) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the identity placed by WithUser.
func UserFromContext(ctx context.Context) (*models.PublicUser, bool) {
	u, ok := ctx.Value(ctxKey{}).(*models.PublicUser)
	return u, ok && u != nil
}
