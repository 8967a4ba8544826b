package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_WindowBasics(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	earliest, count, err := store.Window(ctx, "k")
	require.NoError(t, err)
	assert.True(t, earliest.IsZero())
	assert.Zero(t, count)

	base := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, store.Append(ctx, "k", base.Add(20*time.Millisecond)))
	require.NoError(t, store.Append(ctx, "k", base))
	require.NoError(t, store.Append(ctx, "k", base.Add(10*time.Millisecond)))

	earliest, count, err = store.Window(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, base.UnixMilli(), earliest.UnixMilli())
	assert.Equal(t, int64(3), count)
}

func TestMemoryStore_SameMillisecondCollapses(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, store.Append(ctx, "k", at))
	require.NoError(t, store.Append(ctx, "k", at))

	_, count, err := store.Window(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "member==score collapses duplicates, as in a sorted set")
}

func TestMemoryStore_RestartReplacesAndExpires(t *testing.T) {
	clk := newFakeClock()
	store := NewMemoryStore()
	store.Now = clk.Now
	ctx := context.Background()

	base := clk.Now()
	require.NoError(t, store.Append(ctx, "k", base))
	require.NoError(t, store.Append(ctx, "k", base.Add(time.Millisecond)))

	require.NoError(t, store.Restart(ctx, "k", base.Add(time.Second), time.Second))

	earliest, count, err := store.Window(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, base.Add(time.Second).UnixMilli(), earliest.UnixMilli())

	// TTL elapses: the record is gone.
	clk.Advance(time.Second)
	earliest, count, err = store.Window(ctx, "k")
	require.NoError(t, err)
	assert.True(t, earliest.IsZero())
	assert.Zero(t, count)
}

func TestMemoryStore_Remove(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "k", time.UnixMilli(1)))
	require.NoError(t, store.Remove(ctx, "k"))

	earliest, count, err := store.Window(ctx, "k")
	require.NoError(t, err)
	assert.True(t, earliest.IsZero())
	assert.Zero(t, count)
}

// Race test
func TestMemoryStore_ThreadSafety(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		go func(i int) {
			defer wg.Done()
			_ = store.Append(ctx, "k", base.Add(time.Duration(i)*time.Millisecond))
		}(i)
	}
	wg.Wait()

	_, count, err := store.Window(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(100), count)
}
