package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
	_ "github.com/odyssey-erp/odyssey-tenancy/testing"
)

var testSecret = auth.StaticSecret("test-signing-secret-0123456789")

type stubUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]auth.UserRecord
	loadErr error
	block   chan struct{}
	loads   atomic.Int32
}

func newStubUsers(records ...auth.UserRecord) *stubUsers {
	s := &stubUsers{byID: make(map[uuid.UUID]auth.UserRecord)}
	for _, rec := range records {
		s.byID[rec.ID] = rec
	}
	return s
}

func (s *stubUsers) put(rec auth.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[rec.ID] = rec
}

func (s *stubUsers) LoadUserByID(ctx context.Context, id uuid.UUID) (auth.UserRecord, error) {
	s.loads.Add(1)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return auth.UserRecord{}, ctx.Err()
		}
	}
	if s.loadErr != nil {
		return auth.UserRecord{}, s.loadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return auth.UserRecord{}, shared.ErrNotFound
	}
	return rec, nil
}

func (s *stubUsers) LoadUserByEmail(ctx context.Context, email string) (auth.UserRecord, error) {
	if s.loadErr != nil {
		return auth.UserRecord{}, s.loadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.byID {
		if strings.EqualFold(rec.Email, email) {
			return rec, nil
		}
	}
	return auth.UserRecord{}, shared.ErrNotFound
}

type stubSessions struct {
	mu      sync.Mutex
	created map[string]auth.LoginSession
	err     error
}

func newStubSessions() *stubSessions {
	return &stubSessions{created: make(map[string]auth.LoginSession)}
}

func (s *stubSessions) CreateSession(ctx context.Context, session auth.LoginSession) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created[session.ID] = session
	return nil
}

func (s *stubSessions) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.created, id)
	return nil
}

func (s *stubSessions) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, sess := range s.created {
		if sess.ExpiresAt.Before(before) {
			delete(s.created, id)
			n++
		}
	}
	return n, nil
}

// countingStore records every cache call made by the resolver.
type countingStore struct {
	cache.Store[auth.Principal]
	gets, sets atomic.Int32
	getErr     error
}

func (c *countingStore) Get(ctx context.Context, key string) (cache.Entry[auth.Principal], bool, error) {
	c.gets.Add(1)
	if c.getErr != nil {
		return cache.Entry[auth.Principal]{}, false, c.getErr
	}
	return c.Store.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, key string, e cache.Entry[auth.Principal]) error {
	c.sets.Add(1)
	return c.Store.Set(ctx, key, e)
}

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{revoked: make(map[string]time.Time)}
}

func (f *fakeRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[id]
	return ok, nil
}

func (f *fakeRevocations) Revoke(ctx context.Context, id string, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[id] = until
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func activeUser(assignments ...rbac.Assignment) auth.UserRecord {
	id := uuid.New()
	return auth.UserRecord{
		ID:          id,
		Email:       id.String()[:8] + "@odyssey.test",
		Name:        "Test User",
		Status:      auth.StatusActive,
		Confirmed:   true,
		Assignments: assignments,
	}
}

func companyGrant(role rbac.CompanyRole, companyID uuid.UUID) rbac.Assignment {
	a, err := rbac.NewCompanyAssignment(role, companyID, nil, uuid.Nil, time.Now())
	if err != nil {
		panic(err)
	}
	return a
}

func globalGrant(role rbac.GlobalRole) rbac.Assignment {
	a, err := rbac.NewGlobalAssignment(role, nil, uuid.Nil, time.Now())
	if err != nil {
		panic(err)
	}
	return a
}

func errorKind(err error) shared.ErrorKind {
	kind, _ := shared.KindOf(err)
	return kind
}

var errStoreDown = errors.New("store unavailable")

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}
