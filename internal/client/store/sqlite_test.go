package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("old")))
	require.NoError(t, s.Set(ctx, "k", []byte("new")))

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)

	v, err = s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDeleteAndClear(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte{1}))
	require.NoError(t, s.Set(ctx, "b", []byte{2}))

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, s.Clear(ctx))
	v, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestTokens_SaveLoadForget(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	access, refresh, err := s.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, access)
	assert.Empty(t, refresh)

	require.NoError(t, s.SaveTokens(ctx, "acc", "ref"))
	access, refresh, err = s.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acc", access)
	assert.Equal(t, "ref", refresh)

	require.NoError(t, s.SaveTokens(ctx, "", ""))
	access, refresh, err = s.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}

func TestTokens_SurviveReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	s, err := Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, s.SaveTokens(ctx, "acc", "ref"))
	require.NoError(t, s.Close())

	s, err = Open(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	access, refresh, err := s.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acc", access)
	assert.Equal(t, "ref", refresh)
}

func TestErrorsAreWrapped(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	ctx := context.Background()

	_, err = s.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get metadata[k]")
	require.ErrorContains(t, s.Set(ctx, "k", nil), "failed to set metadata[k]")
	require.ErrorContains(t, s.Delete(ctx, "k"), "failed to delete metadata[k]")
	require.ErrorContains(t, s.Clear(ctx), "failed to clear metadata")
	require.Error(t, s.SaveTokens(ctx, "a", "r"))
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "session.db"))
	require.Error(t, err)
}
