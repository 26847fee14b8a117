package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

type resolverFixture struct {
	users    *stubUsers
	store    *countingStore
	clock    *clock
	resolver *auth.PrincipalResolver
}

func newResolverFixture(t *testing.T, policy auth.StatusPolicy, records ...auth.UserRecord) *resolverFixture {
	t.Helper()
	clk := newClock()
	users := newStubUsers(records...)
	store := &countingStore{Store: cache.NewMemory[auth.Principal](cache.MemoryOptions{Now: clk.Now})}
	resolver := auth.NewPrincipalResolver(users, store, auth.ResolverConfig{
		TTL:    5 * time.Minute,
		Policy: policy,
		Now:    clk.Now,
	}, nil, nil)
	return &resolverFixture{users: users, store: store, clock: clk, resolver: resolver}
}

var strictPolicy = auth.StatusPolicy{RequireConfirmed: true}

func TestResolveAssemblesActivePrincipal(t *testing.T) {
	companyID := uuid.New()
	revoked := companyGrant(rbac.RoleManager, uuid.New())
	revoked.IsActive = false
	rec := activeUser(companyGrant(rbac.RoleEmployee, companyID), revoked)
	rec.PrimaryCompanyID = uuid.NullUUID{UUID: companyID, Valid: true}
	f := newResolverFixture(t, strictPolicy, rec)

	p, err := f.resolver.Resolve(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, p.ID)
	assert.Len(t, p.Assignments, 1, "inactive assignments are dropped")
	assert.False(t, p.HasGlobalRole)
	assert.False(t, p.AllCompanies)
	assert.Equal(t, []uuid.UUID{companyID}, p.AccessibleCompanyIDs)
	assert.True(t, p.AnchoredTo(companyID))
}

func TestResolveGlobalPrincipalReachesAllCompanies(t *testing.T) {
	rec := activeUser(globalGrant(rbac.RoleSuperAdmin))
	f := newResolverFixture(t, strictPolicy, rec)

	p, err := f.resolver.Resolve(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, p.HasGlobalRole)
	assert.True(t, p.AllCompanies)
	assert.Empty(t, p.AccessibleCompanyIDs)
}

func TestResolveServesFromCacheWithinTTL(t *testing.T) {
	rec := activeUser(companyGrant(rbac.RoleViewer, uuid.New()))
	f := newResolverFixture(t, strictPolicy, rec)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)
	f.clock.Advance(5*time.Minute - time.Second)
	_, err = f.resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.users.loads.Load())
	assert.EqualValues(t, 1, f.store.sets.Load())

	f.clock.Advance(time.Second)
	_, err = f.resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.users.loads.Load(), "expired entry forces a reload")
}

func TestResolveIdentityFailuresAreNotCached(t *testing.T) {
	suspended := activeUser(companyGrant(rbac.RoleEmployee, uuid.New()))
	suspended.Status = auth.StatusSuspended
	inactive := activeUser()
	inactive.Status = auth.StatusInactive
	unconfirmed := activeUser()
	unconfirmed.Confirmed = false
	pending := activeUser()
	pending.Status = auth.StatusPending

	cases := []struct {
		name string
		rec  auth.UserRecord
		want *shared.AuthError
	}{
		{"suspended", suspended, shared.ErrUserInactive},
		{"inactive", inactive, shared.ErrUserInactive},
		{"unconfirmed", unconfirmed, shared.ErrUserNotConfirmed},
		{"pending", pending, shared.ErrUserNotConfirmed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newResolverFixture(t, strictPolicy, tc.rec)
			_, err := f.resolver.Resolve(context.Background(), tc.rec.ID)
			assert.ErrorIs(t, err, tc.want)
			assert.Zero(t, f.store.sets.Load())

			_, err = f.resolver.Resolve(context.Background(), tc.rec.ID)
			assert.ErrorIs(t, err, tc.want)
			assert.EqualValues(t, 2, f.users.loads.Load())
		})
	}
}

func TestResolveStatusPolicyOptions(t *testing.T) {
	unconfirmed := activeUser()
	unconfirmed.Confirmed = false
	f := newResolverFixture(t, auth.StatusPolicy{}, unconfirmed)
	_, err := f.resolver.Resolve(context.Background(), unconfirmed.ID)
	assert.NoError(t, err, "confirmation not required")

	pending := activeUser()
	pending.Status = auth.StatusPending
	f = newResolverFixture(t, auth.StatusPolicy{RequireConfirmed: true, AllowPending: true}, pending)
	_, err = f.resolver.Resolve(context.Background(), pending.ID)
	assert.NoError(t, err, "pending explicitly allowed")
}

func TestResolveUnknownUser(t *testing.T) {
	f := newResolverFixture(t, strictPolicy)
	_, err := f.resolver.Resolve(context.Background(), uuid.New())
	assert.ErrorIs(t, err, shared.ErrUserNotFound)
	assert.Zero(t, f.store.sets.Load())
}

func TestResolveStoreFailureIsInternal(t *testing.T) {
	rec := activeUser()
	f := newResolverFixture(t, strictPolicy, rec)
	f.users.loadErr = errStoreDown

	_, err := f.resolver.Resolve(context.Background(), rec.ID)
	assert.Equal(t, shared.KindInternal, errorKind(err))
	assert.ErrorIs(t, err, errStoreDown)
	assert.Zero(t, f.store.sets.Load())
}

func TestResolveCacheReadFailureFallsBackToStore(t *testing.T) {
	rec := activeUser()
	f := newResolverFixture(t, strictPolicy, rec)
	f.store.getErr = cache.ErrCorruptEntry

	p, err := f.resolver.Resolve(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, p.ID)
	assert.EqualValues(t, 1, f.users.loads.Load())
}

func TestInvalidateForcesFreshLoad(t *testing.T) {
	companyID := uuid.New()
	rec := activeUser(companyGrant(rbac.RoleManager, companyID))
	f := newResolverFixture(t, strictPolicy, rec)
	ctx := context.Background()

	p, err := f.resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, rbac.HasCompanyPermission(p, rbac.PermInventoryUpdate, companyID))

	rec.Assignments[0].IsActive = false
	f.users.put(rec)
	require.NoError(t, f.resolver.Invalidate(ctx, rec.ID))

	p, err = f.resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.users.loads.Load())
	assert.False(t, rbac.HasCompanyPermission(p, rbac.PermInventoryUpdate, companyID))
}

func TestInvalidateAllForcesFreshLoads(t *testing.T) {
	a, b := activeUser(), activeUser()
	f := newResolverFixture(t, strictPolicy, a, b)
	ctx := context.Background()

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		_, err := f.resolver.Resolve(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, f.resolver.InvalidateAll(ctx))
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		_, err := f.resolver.Resolve(ctx, id)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 4, f.users.loads.Load())
}

// A revocation that skips Invalidate stays invisible until the entry expires.
func TestRevocationWithoutInvalidateIsStaleWithinTTL(t *testing.T) {
	companyID := uuid.New()
	rec := activeUser(companyGrant(rbac.RoleAdminCompany, companyID))
	f := newResolverFixture(t, strictPolicy, rec)
	ctx := context.Background()

	_, err := f.resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)

	rec.Assignments[0].IsActive = false
	f.users.put(rec)

	f.clock.Advance(4 * time.Minute)
	stale, err := f.resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, rbac.HasCompanyPermission(stale, rbac.PermInventoryDelete, companyID))

	f.clock.Advance(time.Minute)
	fresh, err := f.resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, rbac.HasCompanyPermission(fresh, rbac.PermInventoryDelete, companyID))
}

func TestResolveCancelledLoadWritesNothing(t *testing.T) {
	rec := activeUser()
	f := newResolverFixture(t, strictPolicy, rec)
	f.users.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.resolver.Resolve(ctx, rec.ID)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.users.loads.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	close(f.users.block)
	assert.Never(t, func() bool { return f.store.sets.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestPeerInvalidationDiscardsLoadInFlight(t *testing.T) {
	rec := activeUser(companyGrant(rbac.RoleManager, uuid.New()))
	f := newResolverFixture(t, strictPolicy, rec)
	f.users.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.resolver.Resolve(context.Background(), rec.ID)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.users.loads.Load() == 1 }, time.Second, time.Millisecond)

	peer := f.resolver.PeerInvalidations(f.store.Store)
	require.NoError(t, peer.Delete(context.Background(), auth.CacheKey(rec.ID)))
	close(f.users.block)
	require.NoError(t, <-done)
	assert.Zero(t, f.store.sets.Load(), "load that raced the invalidation is not cached")

	f.users.block = nil
	_, err := f.resolver.Resolve(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.users.loads.Load())
	assert.EqualValues(t, 1, f.store.sets.Load())

	require.NoError(t, peer.Clear(context.Background()))
	_, err = f.resolver.Resolve(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.users.loads.Load())
}

func TestResolveCoalescesConcurrentMisses(t *testing.T) {
	rec := activeUser(companyGrant(rbac.RoleEmployee, uuid.New()))
	f := newResolverFixture(t, strictPolicy, rec)
	f.users.block = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]*auth.Principal, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := f.resolver.Resolve(context.Background(), rec.ID)
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	require.Eventually(t, func() bool { return f.users.loads.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.users.block)
	wg.Wait()

	assert.Less(t, f.users.loads.Load(), int32(len(results)))
	for _, p := range results {
		require.NotNil(t, p)
		assert.Equal(t, rec.ID, p.ID)
	}
}

func TestResolverWithRedisBackend(t *testing.T) {
	_, client := newMiniredis(t)
	clk := newClock()
	rec := activeUser(companyGrant(rbac.RoleViewer, uuid.New()))
	users := newStubUsers(rec)
	store := cache.NewRedis[auth.Principal](client, "auth:principal", clk.Now)
	resolver := auth.NewPrincipalResolver(users, store, auth.ResolverConfig{TTL: time.Minute, Now: clk.Now}, nil, nil)
	ctx := context.Background()

	first, err := resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, users.loads.Load())
	assert.Equal(t, first.Assignments[0].CompanyID, second.Assignments[0].CompanyID)
	assert.Equal(t, first.AccessibleCompanyIDs, second.AccessibleCompanyIDs)

	require.NoError(t, resolver.InvalidateAll(ctx))
	_, err = resolver.Resolve(ctx, rec.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, users.loads.Load())
}
