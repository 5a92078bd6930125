package users

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/vidauth/internal/common"
	"github.com/dmitrijs2005/vidauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, r *MemoryRepository) *models.User {
	t.Helper()
	u, err := r.Create(context.Background(), &models.User{
		Username: "alice", Email: "alice@example.com", FullName: "Alice", PasswordHash: "h",
	})
	require.NoError(t, err)
	return u
}

func TestMemoryRepository_CreateAndFind(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	u := seed(t, r)
	require.NotEmpty(t, u.ID)

	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	got, err = r.FindByUsernameOrEmail(ctx, "ALICE", "")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = r.FindByUsernameOrEmail(ctx, "", "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = r.FindByUsernameOrEmail(ctx, "", "")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = r.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryRepository_Uniqueness(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	seed(t, r)

	_, err := r.Create(ctx, &models.User{Username: "ALICE", Email: "other@example.com"})
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = r.Create(ctx, &models.User{Username: "bob", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, common.ErrConflict)

	bob, err := r.Create(ctx, &models.User{Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	_, err = r.UpdateAccountDetails(ctx, bob.ID, "", "alice@example.com")
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	u := seed(t, r)

	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	got.FullName = "mutated"

	again, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.FullName)
}

func TestMemoryRepository_Updates(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	u := seed(t, r)

	require.NoError(t, r.UpdatePasswordHash(ctx, u.ID, "h2"))
	got, err := r.UpdateAccountDetails(ctx, u.ID, "Alice B", "")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", got.FullName)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, "h2", got.PasswordHash)

	got, err = r.UpdateAvatar(ctx, u.ID, "a.png")
	require.NoError(t, err)
	assert.Equal(t, "a.png", got.Avatar)

	got, err = r.UpdateCoverImage(ctx, u.ID, "c.png")
	require.NoError(t, err)
	assert.Equal(t, "c.png", got.CoverImage)

	assert.ErrorIs(t, r.UpdatePasswordHash(ctx, "missing", "x"), common.ErrNotFound)
}
