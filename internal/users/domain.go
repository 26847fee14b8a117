package users

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// ErrDuplicateAssignment is returned when a user already holds an active role
// in the target company.
var ErrDuplicateAssignment = fmt.Errorf("users: active role already held in company: %w", shared.ErrConflict)

// User is a user account summary for management screens.
type User struct {
	ID        uuid.UUID       `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Status    auth.UserStatus `json:"status"`
	Confirmed bool            `json:"confirmed"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Member is a user's active role in one company.
type Member struct {
	UserID       uuid.UUID        `json:"user_id"`
	Email        string           `json:"email"`
	Name         string           `json:"name"`
	AssignmentID uuid.UUID        `json:"assignment_id"`
	Role         rbac.CompanyRole `json:"role"`
	AssignedAt   time.Time        `json:"assigned_at"`
}

// GrantInput describes a role grant. Role is free text and goes through the
// central role-name mapping.
type GrantInput struct {
	UserID           uuid.UUID
	Kind             rbac.RoleKind
	Role             string
	CompanyID        uuid.UUID
	ExtraPermissions []string
	AssignedBy       uuid.UUID
}
