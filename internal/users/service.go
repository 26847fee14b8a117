package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	LoadUser(ctx context.Context, id uuid.UUID) (auth.UserRecord, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListMembers(ctx context.Context, companyID uuid.UUID) ([]Member, error)
	InsertAssignment(ctx context.Context, userID uuid.UUID, a rbac.Assignment) error
	UpdateAssignment(ctx context.Context, userID, assignmentID uuid.UUID, fn func(*rbac.Assignment) error) (rbac.Assignment, error)
	SetUserStatus(ctx context.Context, userID uuid.UUID, status auth.UserStatus) error
}

// Service handles user administration. Every mutation drops the user's cached
// principal before returning.
type Service struct {
	repo        RepositoryPort
	invalidator auth.Invalidator
	now         func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, invalidator auth.Invalidator) *Service {
	return &Service{repo: repo, invalidator: invalidator, now: time.Now}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// ListMembers returns the active members of companyID.
func (s *Service) ListMembers(ctx context.Context, companyID uuid.UUID) ([]Member, error) {
	return s.repo.ListMembers(ctx, companyID)
}

// GrantRole creates an assignment. A second active role in the same company
// is rejected with ErrDuplicateAssignment.
func (s *Service) GrantRole(ctx context.Context, in GrantInput) (rbac.Assignment, error) {
	a, err := buildAssignment(in, s.now())
	if err != nil {
		return rbac.Assignment{}, err
	}
	rec, err := s.repo.LoadUser(ctx, in.UserID)
	if err != nil {
		return rbac.Assignment{}, err
	}
	if a.Kind == rbac.KindCompany {
		for _, existing := range rec.Assignments {
			if existing.IsActive && existing.Kind == rbac.KindCompany && existing.CompanyID == a.CompanyID {
				return rbac.Assignment{}, ErrDuplicateAssignment
			}
		}
	}
	if err := s.repo.InsertAssignment(ctx, in.UserID, a); err != nil {
		return rbac.Assignment{}, err
	}
	return a, s.invalidate(ctx, in.UserID)
}

func buildAssignment(in GrantInput, at time.Time) (rbac.Assignment, error) {
	var (
		a   rbac.Assignment
		err error
	)
	switch in.Kind {
	case rbac.KindGlobal:
		if in.CompanyID != uuid.Nil {
			return rbac.Assignment{}, fmt.Errorf("%w: global roles are not scoped to a company", shared.ErrInvalidInput)
		}
		role, perr := rbac.ParseGlobalRole(in.Role)
		if perr != nil {
			return rbac.Assignment{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, perr)
		}
		a, err = rbac.NewGlobalAssignment(role, in.ExtraPermissions, in.AssignedBy, at)
	case rbac.KindCompany:
		role, perr := rbac.ParseCompanyRole(in.Role)
		if perr != nil {
			return rbac.Assignment{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, perr)
		}
		a, err = rbac.NewCompanyAssignment(role, in.CompanyID, in.ExtraPermissions, in.AssignedBy, at)
	default:
		return rbac.Assignment{}, fmt.Errorf("%w: unknown role kind %q", shared.ErrInvalidInput, in.Kind)
	}
	if err != nil {
		return rbac.Assignment{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return a, nil
}

// RevokeRole deactivates an assignment. Revoking an inactive assignment is a
// no-op.
func (s *Service) RevokeRole(ctx context.Context, userID, assignmentID uuid.UUID) (rbac.Assignment, error) {
	return s.RevokeCompanyRole(ctx, uuid.Nil, userID, assignmentID)
}

// RevokeCompanyRole deactivates an assignment that must belong to companyID.
// A nil companyID skips that check.
func (s *Service) RevokeCompanyRole(ctx context.Context, companyID, userID, assignmentID uuid.UUID) (rbac.Assignment, error) {
	a, err := s.repo.UpdateAssignment(ctx, userID, assignmentID, func(a *rbac.Assignment) error {
		if companyID != uuid.Nil && (a.Kind != rbac.KindCompany || a.CompanyID != companyID) {
			return shared.ErrNotFound
		}
		a.IsActive = false
		return nil
	})
	if err != nil {
		return rbac.Assignment{}, err
	}
	return a, s.invalidate(ctx, userID)
}

// AppendExtraPermissions adds ad hoc permissions to an assignment. Keys must
// belong to the assignment kind's catalog.
func (s *Service) AppendExtraPermissions(ctx context.Context, userID, assignmentID uuid.UUID, perms []string) (rbac.Assignment, error) {
	if len(perms) == 0 {
		return rbac.Assignment{}, fmt.Errorf("%w: no permissions given", shared.ErrInvalidInput)
	}
	a, err := s.repo.UpdateAssignment(ctx, userID, assignmentID, func(a *rbac.Assignment) error {
		a.ExtraPermissions = rbac.MergeExtraPermissions(a.ExtraPermissions, perms)
		if err := a.Validate(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		return nil
	})
	if err != nil {
		return rbac.Assignment{}, err
	}
	return a, s.invalidate(ctx, userID)
}

// SuspendUser blocks a user from authenticating.
func (s *Service) SuspendUser(ctx context.Context, userID uuid.UUID) error {
	return s.setStatus(ctx, userID, auth.StatusSuspended)
}

// ReactivateUser lifts a suspension.
func (s *Service) ReactivateUser(ctx context.Context, userID uuid.UUID) error {
	return s.setStatus(ctx, userID, auth.StatusActive)
}

func (s *Service) setStatus(ctx context.Context, userID uuid.UUID, status auth.UserStatus) error {
	if err := s.repo.SetUserStatus(ctx, userID, status); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := s.invalidator.Invalidate(ctx, userID); err != nil {
		return fmt.Errorf("users: invalidate principal: %w", err)
	}
	return nil
}
