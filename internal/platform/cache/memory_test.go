package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestEntryExpiryBoundary(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := NewEntry("v", t0, time.Minute)

	assert.False(t, e.Expired(t0))
	assert.False(t, e.Expired(t0.Add(time.Minute-time.Nanosecond)))
	assert.True(t, e.Expired(t0.Add(time.Minute)))
}

func TestMemoryHonoursLogicalTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemory[string](MemoryOptions{Now: clock.Now})

	require.NoError(t, store.Set(ctx, "user:1", NewEntry("alice", clock.Now(), 5*time.Minute)))

	clock.Advance(5*time.Minute - time.Second)
	entry, ok, err := store.Get(ctx, "user:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", entry.Value)

	clock.Advance(time.Second)
	_, ok, err = store.Get(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len(), "expired entry evicted on read")
}

func TestMemoryDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemory[int](MemoryOptions{Now: clock.Now})

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), NewEntry(i, clock.Now(), time.Hour)))
	}
	require.NoError(t, store.Delete(ctx, "k1"))
	_, ok, _ := store.Get(ctx, "k1")
	assert.False(t, ok)
	assert.Equal(t, 2, store.Len())

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestMemorySweepRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemory[string](MemoryOptions{Now: clock.Now})

	require.NoError(t, store.Set(ctx, "short", NewEntry("a", clock.Now(), time.Minute)))
	require.NoError(t, store.Set(ctx, "long", NewEntry("b", clock.Now(), time.Hour)))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	_, ok, _ := store.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemorySweeperRunsInBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := newFakeClock()
	store := NewMemory[string](MemoryOptions{Now: clock.Now})
	defer store.Close()

	require.NoError(t, store.Set(ctx, "k", NewEntry("v", clock.Now(), time.Second)))
	clock.Advance(time.Minute)

	store.StartSweeper(ctx, 5*time.Millisecond)
	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemorySizeBound(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemory[int](MemoryOptions{Size: 2, Now: clock.Now})

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), NewEntry(i, clock.Now(), time.Hour)))
	}
	assert.Equal(t, 2, store.Len())
	_, ok, _ := store.Get(ctx, "k4")
	assert.True(t, ok)
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemory[int](MemoryOptions{Size: 64})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%16)
				_ = store.Set(ctx, key, NewEntry(i, time.Now(), time.Minute))
				_, _, _ = store.Get(ctx, key)
				if i%50 == 0 {
					_ = store.Delete(ctx, key)
				}
				if w == 0 && i%100 == 0 {
					store.Sweep()
				}
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, store.Len(), 64)
}
