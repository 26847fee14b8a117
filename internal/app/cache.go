package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/cache"
)

// PrincipalCache is the session cache selected by configuration.
type PrincipalCache struct {
	Store  cache.Store[auth.Principal]
	memory *cache.Memory[auth.Principal]
	bus    *cache.InvalidationBus
	cfg    *Config
	logger *slog.Logger
}

// NewPrincipalCache builds the principal cache. With the memory backend and a
// reachable Redis client, deletes and clears are broadcast to peer processes.
// The redis backend requires client.
func NewPrincipalCache(cfg *Config, client *redis.Client, logger *slog.Logger) (*PrincipalCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc := &PrincipalCache{cfg: cfg, logger: logger}
	switch cfg.CacheBackend {
	case CacheBackendRedis:
		if client == nil {
			return nil, errors.New("app: redis cache backend requires redis")
		}
		pc.Store = cache.NewRedis[auth.Principal](client, "auth:principal", nil)
	default:
		pc.memory = cache.NewMemory[auth.Principal](cache.MemoryOptions{
			Size:   cfg.PrincipalCacheSize,
			MaxTTL: 2 * cfg.PrincipalCacheTTL,
		})
		pc.Store = pc.memory
		if client != nil {
			pc.bus = cache.NewInvalidationBus(client, cfg.InvalidationChannel, logger)
			pc.Store = cache.NewBroadcast[auth.Principal](pc.memory, pc.bus)
		}
	}
	return pc, nil
}

// Start runs the sweeper and subscribes to peer invalidations until ctx is
// done. Peer invalidations pass through resolver when it is set.
func (c *PrincipalCache) Start(ctx context.Context, resolver *auth.PrincipalResolver) error {
	if c.memory == nil {
		return nil
	}
	c.memory.StartSweeper(ctx, c.cfg.CacheSweepInterval)
	if c.bus == nil {
		return nil
	}
	var target cache.Invalidator = c.memory
	if resolver != nil {
		target = resolver.PeerInvalidations(c.memory)
	}
	if err := c.bus.Listen(ctx, target); err != nil {
		return fmt.Errorf("app: listen for cache invalidations: %w", err)
	}
	c.logger.Info("principal cache invalidation bus subscribed", slog.String("channel", c.cfg.InvalidationChannel))
	return nil
}

// Close stops background work.
func (c *PrincipalCache) Close() error {
	if c.memory == nil {
		return nil
	}
	return c.memory.Close()
}
