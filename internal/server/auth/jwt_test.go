package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	i, err := NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)
	return i
}

func testUser() *models.User {
	return &models.User{ID: "u-1", Username: "alice", Email: "alice@example.com", FullName: "Alice A"}
}

func TestNewIssuer_RejectsMissingMaterial(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name           string
		access, rfresh string
		attl, rttl     time.Duration
	}{
		{"no access secret", "", "r", time.Minute, time.Hour},
		{"no refresh secret", "a", "", time.Minute, time.Hour},
		{"zero access ttl", "a", "r", 0, time.Hour},
		{"negative refresh ttl", "a", "r", time.Minute, -time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewIssuer(tc.access, tc.rfresh, tc.attl, tc.rttl)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestIssueAccess_RoundTrip(t *testing.T) {
	t.Parallel()
	i := newTestIssuer(t)

	tok, err := i.IssueAccess(testUser())
	require.NoError(t, err)

	claims, err := i.Validate(tok, ScopeAccess)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID())
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice A", claims.FullName)
	assert.Equal(t, ScopeAccess, claims.Scope)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestIssueRefresh_CarriesOnlySubject(t *testing.T) {
	t.Parallel()
	i := newTestIssuer(t)

	tok, err := i.IssueRefresh(testUser())
	require.NoError(t, err)

	claims, err := i.Validate(tok, ScopeRefresh)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID())
	assert.Empty(t, claims.Email)
	assert.Empty(t, claims.Username)
}

func TestIssue_SameSecondTokensDiffer(t *testing.T) {
	t.Parallel()
	i := newTestIssuer(t)
	fixed := time.Now()
	i.now = func() time.Time { return fixed }

	a, err := i.IssueRefresh(testUser())
	require.NoError(t, err)
	b, err := i.IssueRefresh(testUser())
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestValidate_Expired(t *testing.T) {
	t.Parallel()
	i := newTestIssuer(t)

	issuedAt := time.Now().Add(-time.Hour)
	i.now = func() time.Time { return issuedAt }
	tok, err := i.IssueAccess(testUser())
	require.NoError(t, err)
	i.now = time.Now

	_, err = i.Validate(tok, ScopeAccess)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestValidate_WrongScope(t *testing.T) {
	t.Parallel()
	i := newTestIssuer(t)

	access, err := i.IssueAccess(testUser())
	require.NoError(t, err)
	refresh, err := i.IssueRefresh(testUser())
	require.NoError(t, err)

	_, err = i.Validate(access, ScopeRefresh)
	assert.ErrorIs(t, err, common.ErrTokenWrongScope)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = i.Validate(refresh, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrTokenWrongScope)
}

func TestValidate_ScopeClaimChecked_WhenSecretsCoincide(t *testing.T) {
	t.Parallel()
	i, err := NewIssuer("same", "same", time.Minute, time.Hour)
	require.NoError(t, err)

	refresh, err := i.IssueRefresh(testUser())
	require.NoError(t, err)

	_, err = i.Validate(refresh, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrTokenWrongScope)
}

func TestValidate_Malformed(t *testing.T) {
	t.Parallel()
	i := newTestIssuer(t)

	foreign, err := NewIssuer("x", "y", time.Minute, time.Hour)
	require.NoError(t, err)
	alien, err := foreign.IssueAccess(testUser())
	require.NoError(t, err)

	noneTok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1", "scope": "access"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"garbage":        "not.a.jwt",
		"empty":          "",
		"foreign secret": alien,
		"alg none":       noneTok,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := i.Validate(tok, ScopeAccess)
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrTokenMalformed), "got %v", err)
		})
	}
}

func TestValidate_MissingExpiryRejected(t *testing.T) {
	t.Parallel()
	i := newTestIssuer(t)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u-1", "scope": "access"}).
		SignedString([]byte("access-secret"))
	require.NoError(t, err)

	_, err = i.Validate(tok, ScopeAccess)
	assert.ErrorIs(t, err, common.ErrTokenMalformed)
}

func TestFingerprint_StableAndDistinct(t *testing.T) {
	t.Parallel()

	a := Fingerprint("token-a")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint("token-a"))
	assert.NotEqual(t, a, Fingerprint("token-b"))
}
