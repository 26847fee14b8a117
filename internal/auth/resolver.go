package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// DefaultPrincipalTTL bounds the cache staleness window when none is configured.
const DefaultPrincipalTTL = 5 * time.Minute

// StatusPolicy decides which accounts may authenticate.
type StatusPolicy struct {
	RequireConfirmed bool
	AllowPending     bool
}

// Check returns the identity failure for rec, or nil when it may proceed.
func (p StatusPolicy) Check(rec UserRecord) error {
	if p.RequireConfirmed && !rec.Confirmed {
		return shared.NewAuthError(shared.KindUserNotConfirmed, "account not confirmed")
	}
	switch rec.Status {
	case StatusActive:
		return nil
	case StatusPending:
		if p.AllowPending {
			return nil
		}
		return shared.NewAuthError(shared.KindUserNotConfirmed, "account pending activation")
	default:
		return shared.NewAuthError(shared.KindUserInactive, "account is not active")
	}
}

// ResolverConfig configures a PrincipalResolver.
type ResolverConfig struct {
	TTL    time.Duration
	Policy StatusPolicy
	Now    func() time.Time
}

// PrincipalResolver turns a verified user id into a Principal, serving from
// the session cache when possible.
type PrincipalResolver struct {
	users   UserStore
	cache   cache.Store[Principal]
	ttl     time.Duration
	policy  StatusPolicy
	now     func() time.Time
	logger  *slog.Logger
	metrics Metrics

	group singleflight.Group
	// generation advances on every invalidation; loads that started under an
	// older generation are returned but not cached. mu orders cache writes
	// against invalidations.
	generation atomic.Uint64
	mu         sync.RWMutex
}

// NewPrincipalResolver constructs a resolver over users and store.
func NewPrincipalResolver(users UserStore, store cache.Store[Principal], cfg ResolverConfig, logger *slog.Logger, metrics Metrics) *PrincipalResolver {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultPrincipalTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &PrincipalResolver{
		users:   users,
		cache:   store,
		ttl:     cfg.TTL,
		policy:  cfg.Policy,
		now:     cfg.Now,
		logger:  logger,
		metrics: metrics,
	}
}

// CacheKey is the session cache key for userID.
func CacheKey(userID uuid.UUID) string {
	return "principal:" + userID.String()
}

// Resolve returns the principal for userID.
func (r *PrincipalResolver) Resolve(ctx context.Context, userID uuid.UUID) (*Principal, error) {
	key := CacheKey(userID)
	entry, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("principal cache read", slog.String("user_id", userID.String()), slog.Any("error", err))
	}
	if ok {
		r.metrics.ObservePrincipalCache("hit")
		p := entry.Value
		return &p, nil
	}
	r.metrics.ObservePrincipalCache("miss")

	p, err := r.loadShared(ctx, key, userID)
	if err != nil && isContextError(err) && ctx.Err() == nil {
		// Another caller's cancellation aborted the shared load.
		p, err = r.load(ctx, userID, r.generation.Load())
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PrincipalResolver) loadShared(ctx context.Context, key string, userID uuid.UUID) (*Principal, error) {
	// Loads are only shared within one invalidation generation.
	gen := r.generation.Load()
	flight := key + "#" + strconv.FormatUint(gen, 10)
	ch := r.group.DoChan(flight, func() (any, error) {
		return r.load(ctx, userID, gen)
	})
	select {
	case <-ctx.Done():
		return nil, shared.InternalError("auth: resolve principal", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Principal), nil
	}
}

func (r *PrincipalResolver) load(ctx context.Context, userID uuid.UUID, gen uint64) (*Principal, error) {
	rec, err := r.users.LoadUserByID(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewAuthError(shared.KindUserNotFound, "user not found")
	}
	if err != nil {
		return nil, shared.InternalError("auth: load user", err)
	}
	if err := r.policy.Check(rec); err != nil {
		return nil, err
	}
	p := NewPrincipal(rec)

	if ctx.Err() != nil {
		return nil, shared.InternalError("auth: load user", ctx.Err())
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.generation.Load() != gen {
		return p, nil
	}
	if err := r.cache.Set(ctx, CacheKey(userID), cache.NewEntry(*p, r.now(), r.ttl)); err != nil {
		r.logger.Warn("principal cache write", slog.String("user_id", userID.String()), slog.Any("error", err))
	}
	return p, nil
}

// Invalidate drops the cached principal for userID so the next Resolve reloads.
func (r *PrincipalResolver) Invalidate(ctx context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation.Add(1)
	if err := r.cache.Delete(ctx, CacheKey(userID)); err != nil {
		return shared.InternalError("auth: invalidate principal", err)
	}
	return nil
}

// InvalidateAll drops every cached principal.
func (r *PrincipalResolver) InvalidateAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation.Add(1)
	if err := r.cache.Clear(ctx); err != nil {
		return shared.InternalError("auth: invalidate all principals", err)
	}
	return nil
}

// PeerInvalidations returns the target for invalidations announced by other
// processes. Each one is applied to local and, like Invalidate, keeps loads
// already in flight from caching what they read. local must not broadcast.
func (r *PrincipalResolver) PeerInvalidations(local cache.Invalidator) cache.Invalidator {
	return peerInvalidator{resolver: r, local: local}
}

type peerInvalidator struct {
	resolver *PrincipalResolver
	local    cache.Invalidator
}

func (p peerInvalidator) Delete(ctx context.Context, key string) error {
	p.resolver.mu.Lock()
	defer p.resolver.mu.Unlock()
	p.resolver.generation.Add(1)
	return p.local.Delete(ctx, key)
}

func (p peerInvalidator) Clear(ctx context.Context) error {
	p.resolver.mu.Lock()
	defer p.resolver.mu.Unlock()
	p.resolver.generation.Add(1)
	return p.local.Clear(ctx)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

var _ Invalidator = (*PrincipalResolver)(nil)
