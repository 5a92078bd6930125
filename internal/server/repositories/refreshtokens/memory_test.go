package refreshtokens

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_Lifecycle(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, "u1", "a"))

	ok, err := r.CompareAndSwap(ctx, "u1", "a", "b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.CompareAndSwap(ctx, "u1", "a", "c")
	require.NoError(t, err)
	assert.False(t, ok, "stale value must not swap")

	require.NoError(t, r.Clear(ctx, "u1"))
	require.NoError(t, r.Clear(ctx, "u1"))

	ok, err = r.CompareAndSwap(ctx, "u1", "b", "c")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryRepository_ConcurrentSwapHasOneWinner(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "u1", "old"))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := r.CompareAndSwap(ctx, "u1", "old", string(rune('a'+i)))
			if err == nil && ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}
