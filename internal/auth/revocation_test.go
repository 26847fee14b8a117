package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

func TestRedisRevocationList(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	list := auth.NewRedisRevocationList(client)

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.True(t, mr.TTL("auth:revoked:jti-1") > 0)

	mr.FastForward(2 * time.Hour)
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entry lives only as long as the token")

	require.NoError(t, list.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists("auth:revoked:jti-2"))
}

func TestRedisRevocationListUnavailable(t *testing.T) {
	mr, client := newMiniredis(t)
	mr.Close()

	_, err := auth.NewRedisRevocationList(client).IsRevoked(context.Background(), "jti")
	assert.Error(t, err)
}

func TestMemoryRevocationList(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	list := auth.NewMemoryRevocationList(time.Hour, clk.Now)

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.Revoke(ctx, "jti-1", clk.Now().Add(10*time.Minute)))
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	clk.Advance(10 * time.Minute)
	revoked, err = list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entry lives only as long as the token")

	require.NoError(t, list.Revoke(ctx, "jti-2", clk.Now().Add(-time.Minute)))
	revoked, err = list.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestLogoutWithoutRevocationListFails(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	sessions := newStubSessions()
	service := auth.NewService(auth.ServiceDeps{Sessions: sessions, Now: clk.Now})
	require.NoError(t, sessions.CreateSession(ctx, auth.LoginSession{ID: "jti-1", ExpiresAt: clk.Now().Add(time.Hour)}))

	err := service.Logout(ctx, auth.VerifiedToken{TokenID: "jti-1", ExpiresAt: clk.Now().Add(time.Hour)})
	assert.Equal(t, shared.KindInternal, errorKind(err))
	assert.ErrorIs(t, err, auth.ErrNoRevocationList)
	assert.Len(t, sessions.created, 1, "session stays registered when the token cannot be revoked")
}
