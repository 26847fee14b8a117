package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRoundTripAndLogicalExpiry(t *testing.T) {
	ctx := context.Background()
	_, client := newRedisClient(t)
	clock := newFakeClock()
	store := NewRedis[cachedUser](client, "test:principal", clock.Now)

	want := cachedUser{ID: "u1", Roles: []string{"manager"}}
	require.NoError(t, store.Set(ctx, "u1", NewEntry(want, clock.Now(), time.Minute)))

	entry, ok, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, entry.Value)
	assert.Equal(t, time.Minute, entry.TTL)

	clock.Advance(time.Minute)
	_, ok, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisPhysicalExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedisClient(t)
	store := NewRedis[cachedUser](client, "test:principal", nil)

	require.NoError(t, store.Set(ctx, "u1", NewEntry(cachedUser{ID: "u1"}, time.Now(), time.Minute)))
	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSkipsAlreadyExpiredEntries(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedisClient(t)
	clock := newFakeClock()
	store := NewRedis[cachedUser](client, "test:principal", clock.Now)

	stale := NewEntry(cachedUser{ID: "u1"}, clock.Now().Add(-time.Hour), time.Minute)
	require.NoError(t, store.Set(ctx, "u1", stale))
	assert.Empty(t, mr.Keys())
}

func TestRedisClearBumpsNamespace(t *testing.T) {
	ctx := context.Background()
	_, client := newRedisClient(t)
	store := NewRedis[cachedUser](client, "test:principal", nil)

	require.NoError(t, store.Set(ctx, "u1", NewEntry(cachedUser{ID: "u1"}, time.Now(), time.Minute)))
	require.NoError(t, store.Set(ctx, "u2", NewEntry(cachedUser{ID: "u2"}, time.Now(), time.Minute)))
	require.NoError(t, store.Clear(ctx))

	for _, key := range []string{"u1", "u2"} {
		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}

	require.NoError(t, store.Set(ctx, "u1", NewEntry(cachedUser{ID: "u1"}, time.Now(), time.Minute)))
	_, ok, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisDelete(t *testing.T) {
	ctx := context.Background()
	_, client := newRedisClient(t)
	store := NewRedis[cachedUser](client, "test:principal", nil)

	require.NoError(t, store.Set(ctx, "u1", NewEntry(cachedUser{ID: "u1"}, time.Now(), time.Minute)))
	require.NoError(t, store.Delete(ctx, "u1"))

	_, ok, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCorruptEntryIsDropped(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedisClient(t)
	store := NewRedis[cachedUser](client, "test:principal", nil)

	require.NoError(t, mr.Set("test:principal:0:u1", "{not json"))

	_, ok, err := store.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrCorruptEntry)
	assert.False(t, ok)
	assert.False(t, mr.Exists("test:principal:0:u1"))
}

func TestRedisUnavailable(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedisClient(t)
	store := NewRedis[cachedUser](client, "test:principal", nil)
	mr.Close()

	_, _, err := store.Get(ctx, "u1")
	assert.Error(t, err)
}
