package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/cache"
)

// RevocationList records token ids that must no longer be accepted.
type RevocationList interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string, until time.Time) error
}

// RedisRevocationList keeps revoked ids in Redis until the token would have
// expired anyway.
type RedisRevocationList struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisRevocationList constructs a list under the auth:revoked prefix.
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client, prefix: "auth:revoked:", now: time.Now}
}

// IsRevoked implements RevocationList.
func (l *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := l.client.Exists(ctx, l.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("auth: revocation exists: %w", err)
	}
	return n > 0, nil
}

// Revoke implements RevocationList. Ids whose token already expired are skipped.
func (l *RedisRevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, l.prefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("auth: revoke: %w", err)
	}
	return nil
}

// MemoryRevocationList keeps revoked ids in process. Revocations are lost on
// restart and are not seen by other instances.
type MemoryRevocationList struct {
	store *cache.Memory[struct{}]
	now   func() time.Time
}

// NewMemoryRevocationList constructs an in-process list. maxTTL physically
// evicts ids after the longest token lifetime; zero keeps them until they are
// looked up after expiry.
func NewMemoryRevocationList(maxTTL time.Duration, now func() time.Time) *MemoryRevocationList {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocationList{
		store: cache.NewMemory[struct{}](cache.MemoryOptions{MaxTTL: maxTTL, Now: now}),
		now:   now,
	}
}

// IsRevoked implements RevocationList.
func (l *MemoryRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, ok, err := l.store.Get(ctx, tokenID)
	return ok, err
}

// Revoke implements RevocationList. Ids whose token already expired are skipped.
func (l *MemoryRevocationList) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	at := l.now()
	ttl := until.Sub(at)
	if ttl <= 0 {
		return nil
	}
	return l.store.Set(ctx, tokenID, cache.NewEntry(struct{}{}, at, ttl))
}

var (
	_ RevocationList = (*RedisRevocationList)(nil)
	_ RevocationList = (*MemoryRevocationList)(nil)
)
