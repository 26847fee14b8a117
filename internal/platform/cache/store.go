// Package cache provides the time-boxed key/value stores backing the
// principal session cache.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCorruptEntry reports a stored value that could not be decoded.
var ErrCorruptEntry = errors.New("platform/cache: corrupt entry")

// Entry is a cached value with the moment it was stored and its lifetime.
type Entry[V any] struct {
	Value    V             `json:"value"`
	CachedAt time.Time     `json:"cached_at"`
	TTL      time.Duration `json:"ttl"`
}

// NewEntry stamps value with at and ttl.
func NewEntry[V any](value V, at time.Time, ttl time.Duration) Entry[V] {
	return Entry[V]{Value: value, CachedAt: at, TTL: ttl}
}

// ExpiresAt is the first instant at which the entry counts as absent.
func (e Entry[V]) ExpiresAt() time.Time {
	return e.CachedAt.Add(e.TTL)
}

// Expired reports logical expiry, independent of physical eviction.
func (e Entry[V]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}

// Store is the session cache contract. Implementations synchronise internally
// and Get never returns a logically expired entry.
type Store[V any] interface {
	Get(ctx context.Context, key string) (Entry[V], bool, error)
	Set(ctx context.Context, key string, entry Entry[V]) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
