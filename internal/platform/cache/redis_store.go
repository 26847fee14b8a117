package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store shared by every process pointing at the same Redis. Keys
// live under a versioned namespace so Clear is a single INCR.
type Redis[V any] struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedis constructs a shared store rooted at prefix.
func NewRedis[V any](client *redis.Client, prefix string, now func() time.Time) *Redis[V] {
	if now == nil {
		now = time.Now
	}
	return &Redis[V]{client: client, prefix: prefix, now: now}
}

func (r *Redis[V]) versionKey() string {
	return r.prefix + ":version"
}

func (r *Redis[V]) version(ctx context.Context) (int64, error) {
	ver, err := r.client.Get(ctx, r.versionKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("platform/cache: version: %w", err)
	}
	return ver, nil
}

func (r *Redis[V]) buildKey(ctx context.Context, key string) (string, error) {
	ver, err := r.version(ctx)
	if err != nil {
		return "", err
	}
	return r.prefix + ":" + strconv.FormatInt(ver, 10) + ":" + key, nil
}

// Get loads and decodes key. Undecodable payloads are deleted and reported as
// ErrCorruptEntry.
func (r *Redis[V]) Get(ctx context.Context, key string) (Entry[V], bool, error) {
	fullKey, err := r.buildKey(ctx, key)
	if err != nil {
		return Entry[V]{}, false, err
	}
	payload, err := r.client.Get(ctx, fullKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry[V]{}, false, nil
	}
	if err != nil {
		return Entry[V]{}, false, fmt.Errorf("platform/cache: get: %w", err)
	}
	var entry Entry[V]
	if err := json.Unmarshal(payload, &entry); err != nil {
		_ = r.client.Del(ctx, fullKey).Err()
		return Entry[V]{}, false, fmt.Errorf("%w: %s: %v", ErrCorruptEntry, key, err)
	}
	if entry.Expired(r.now()) {
		_ = r.client.Del(ctx, fullKey).Err()
		return Entry[V]{}, false, nil
	}
	return entry, true, nil
}

// Set stores entry with a Redis expiry matching its remaining lifetime.
func (r *Redis[V]) Set(ctx context.Context, key string, entry Entry[V]) error {
	remaining := entry.ExpiresAt().Sub(r.now())
	if remaining <= 0 {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("platform/cache: encode: %w", err)
	}
	fullKey, err := r.buildKey(ctx, key)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, fullKey, payload, remaining).Err(); err != nil {
		return fmt.Errorf("platform/cache: set: %w", err)
	}
	return nil
}

// Delete removes key from the current namespace.
func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	fullKey, err := r.buildKey(ctx, key)
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("platform/cache: delete: %w", err)
	}
	return nil
}

// Clear makes every existing key unreachable by bumping the namespace
// version. Orphaned keys expire on their own TTL.
func (r *Redis[V]) Clear(ctx context.Context) error {
	if err := r.client.Incr(ctx, r.versionKey()).Err(); err != nil {
		return fmt.Errorf("platform/cache: clear: %w", err)
	}
	return nil
}

var _ Store[struct{}] = (*Redis[struct{}])(nil)
