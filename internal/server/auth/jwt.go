package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Scope separates access tokens from refresh tokens. Each scope is signed
// with its own secret.
type Scope string

const (
	ScopeAccess  Scope = "access"
	ScopeRefresh Scope = "refresh"
)

// Claims is the payload of both token kinds. Subject holds the user id.
// Identity fields are only filled in for access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Scope    Scope  `json:"scope"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	FullName string `json:"fullName,omitempty"`
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string {
	return c.Subject
}

// Issuer signs and validates HS256 tokens. It is immutable after
// construction and safe for concurrent use.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewIssuer validates the key material and returns an Issuer.
func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, fmt.Errorf("%w: token secrets must be set", common.ErrValidation)
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, fmt.Errorf("%w: token lifetimes must be positive", common.ErrValidation)
	}
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// AccessTTL is the lifetime of issued access tokens.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL is the lifetime of issued refresh tokens.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess returns a signed access token carrying the user's identity.
func (i *Issuer) IssueAccess(u *models.User) (string, error) {
	claims := i.baseClaims(u.ID, ScopeAccess, i.accessTTL)
	claims.Email = u.Email
	claims.Username = u.Username
	claims.FullName = u.FullName
	return sign(claims, i.accessSecret)
}

// IssueRefresh returns a signed refresh token that carries only the subject.
func (i *Issuer) IssueRefresh(u *models.User) (string, error) {
	return sign(i.baseClaims(u.ID, ScopeRefresh, i.refreshTTL), i.refreshSecret)
}

func (i *Issuer) baseClaims(userID string, scope Scope, ttl time.Duration) *Claims {
	now := i.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Scope: scope,
	}
}

func sign(claims *Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// Validate checks the signature, expiry and scope of tokenString.
// Failures wrap common.ErrInvalidToken together with one of
// common.ErrTokenMalformed, common.ErrTokenExpired or common.ErrTokenWrongScope.
func (i *Issuer) Validate(tokenString string, scope Scope) (*Claims, error) {
	own, other := i.secretFor(scope)
	if own == nil {
		return nil, fmt.Errorf("%w: %w: unknown scope %q", common.ErrInvalidToken, common.ErrTokenWrongScope, scope)
	}

	claims := &Claims{}
	_, err := i.parse(tokenString, claims, own)
	switch {
	case err == nil:
		if claims.Scope != scope {
			return nil, invalid(common.ErrTokenWrongScope)
		}
		if claims.Subject == "" {
			return nil, invalid(common.ErrTokenMalformed)
		}
		return claims, nil

	case errors.Is(err, jwt.ErrTokenExpired):
		// signature already verified at this point
		if claims.Scope != scope {
			return nil, invalid(common.ErrTokenWrongScope)
		}
		return nil, invalid(common.ErrTokenExpired)

	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		// A token signed with the sibling secret is well formed but presented
		// in the wrong place.
		sibling := &Claims{}
		p := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
		if _, perr := p.ParseWithClaims(tokenString, sibling, keyFunc(other)); perr == nil {
			return nil, invalid(common.ErrTokenWrongScope)
		}
		return nil, invalid(common.ErrTokenMalformed)

	default:
		return nil, invalid(common.ErrTokenMalformed)
	}
}

func (i *Issuer) parse(tokenString string, claims *Claims, secret []byte) (*jwt.Token, error) {
	p := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	return p.ParseWithClaims(tokenString, claims, keyFunc(secret))
}

func (i *Issuer) secretFor(scope Scope) (own, other []byte) {
	switch scope {
	case ScopeAccess:
		return i.accessSecret, i.refreshSecret
	case ScopeRefresh:
		return i.refreshSecret, i.accessSecret
	}
	return nil, nil
}

func keyFunc(secret []byte) jwt.Keyfunc {
	return func(*jwt.Token) (any, error) {
		return secret, nil
	}
}

func invalid(kind error) error {
	return fmt.Errorf("%w: %w", common.ErrInvalidToken, kind)
}
