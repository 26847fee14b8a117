package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	clearMessage  = "clear"
	deletePrefix  = "del:"
	defaultBusKey = "auth.principal.invalidate"
)

// Invalidator is the subset of Store an invalidation bus drives.
type Invalidator interface {
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// InvalidationBus fans Delete/Clear out to every process over Redis pub/sub so
// each instance can keep its own in-process cache.
type InvalidationBus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewInvalidationBus constructs a bus on channel.
func NewInvalidationBus(client *redis.Client, channel string, logger *slog.Logger) *InvalidationBus {
	if channel == "" {
		channel = defaultBusKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InvalidationBus{client: client, channel: channel, logger: logger}
}

// PublishDelete announces removal of key.
func (b *InvalidationBus) PublishDelete(ctx context.Context, key string) error {
	if err := b.client.Publish(ctx, b.channel, deletePrefix+key).Err(); err != nil {
		return fmt.Errorf("platform/cache: publish delete: %w", err)
	}
	return nil
}

// PublishClear announces removal of every key.
func (b *InvalidationBus) PublishClear(ctx context.Context) error {
	if err := b.client.Publish(ctx, b.channel, clearMessage).Err(); err != nil {
		return fmt.Errorf("platform/cache: publish clear: %w", err)
	}
	return nil
}

// Listen subscribes and applies every announcement to target until ctx is
// done. It returns once the subscription is confirmed.
func (b *InvalidationBus) Listen(ctx context.Context, target Invalidator) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("platform/cache: subscribe: %w", err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.apply(ctx, target, msg.Payload)
			}
		}
	}()
	return nil
}

func (b *InvalidationBus) apply(ctx context.Context, target Invalidator, payload string) {
	var err error
	switch {
	case payload == clearMessage:
		err = target.Clear(ctx)
	case strings.HasPrefix(payload, deletePrefix):
		err = target.Delete(ctx, strings.TrimPrefix(payload, deletePrefix))
	default:
		b.logger.Warn("cache invalidation: unknown message", slog.String("payload", payload))
		return
	}
	if err != nil {
		b.logger.Error("cache invalidation", slog.Any("error", err))
	}
}

// Broadcast wraps a local Store so Delete and Clear also reach other
// processes through the bus.
type Broadcast[V any] struct {
	Store[V]
	bus *InvalidationBus
}

// NewBroadcast wraps local with bus.
func NewBroadcast[V any](local Store[V], bus *InvalidationBus) *Broadcast[V] {
	return &Broadcast[V]{Store: local, bus: bus}
}

// Delete removes key locally, then announces it.
func (b *Broadcast[V]) Delete(ctx context.Context, key string) error {
	if err := b.Store.Delete(ctx, key); err != nil {
		return err
	}
	return b.bus.PublishDelete(ctx, key)
}

// Clear empties the local store, then announces it.
func (b *Broadcast[V]) Clear(ctx context.Context) error {
	if err := b.Store.Clear(ctx); err != nil {
		return err
	}
	return b.bus.PublishClear(ctx)
}
