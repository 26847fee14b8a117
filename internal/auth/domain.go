package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusInactive  UserStatus = "inactive"
	StatusSuspended UserStatus = "suspended"
	StatusPending   UserStatus = "pending"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusPending:
		return true
	}
	return false
}

// UserRecord is a user as loaded from the user store, including every role
// assignment regardless of IsActive.
type UserRecord struct {
	ID               uuid.UUID
	Email            string
	Name             string
	PasswordHash     string
	Status           UserStatus
	Confirmed        bool
	PrimaryCompanyID uuid.NullUUID
	Assignments      []rbac.Assignment
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserStore loads user records. Absence is reported as shared.ErrNotFound.
type UserStore interface {
	LoadUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error)
	LoadUserByEmail(ctx context.Context, email string) (UserRecord, error)
}

// LoginSession is the audit row written for every issued token.
type LoginSession struct {
	ID        string
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
	IP        string
	UserAgent string
}

// SessionStore persists login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session LoginSession) error
	DeleteSession(ctx context.Context, id string) error
	PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// Invalidator drops cached principals. Every operation that changes a user's
// roles or status calls it before returning.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
	InvalidateAll(ctx context.Context) error
}

// Metrics receives authentication counters. Nil-safe implementations are
// provided by observability.
type Metrics interface {
	ObservePrincipalCache(result string)
	ObserveAuthFailure(kind string)
}

type noopMetrics struct{}

func (noopMetrics) ObservePrincipalCache(string) {}
func (noopMetrics) ObserveAuthFailure(string)    {}
