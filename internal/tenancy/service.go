package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// AdminRepository is the persistence required by company administration.
type AdminRepository interface {
	CompanyStore
	SetStatus(ctx context.Context, id uuid.UUID, status CompanyStatus, reason string, at time.Time) error
}

// Service handles company administration.
type Service struct {
	repo        AdminRepository
	invalidator auth.Invalidator
	now         func() time.Time
}

// NewService builds Service instance.
func NewService(repo AdminRepository, invalidator auth.Invalidator) *Service {
	return &Service{repo: repo, invalidator: invalidator, now: time.Now}
}

// SuspendCompany suspends id. Every cached principal is dropped because any of
// them may hold a role there.
func (s *Service) SuspendCompany(ctx context.Context, id uuid.UUID, reason string) (CompanyRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return CompanyRecord{}, fmt.Errorf("%w: suspension reason required", shared.ErrInvalidInput)
	}
	return s.setStatus(ctx, id, CompanySuspended, reason, s.now())
}

// ReactivateCompany lifts a suspension.
func (s *Service) ReactivateCompany(ctx context.Context, id uuid.UUID) (CompanyRecord, error) {
	return s.setStatus(ctx, id, CompanyActive, "", time.Time{})
}

func (s *Service) setStatus(ctx context.Context, id uuid.UUID, status CompanyStatus, reason string, at time.Time) (CompanyRecord, error) {
	if err := s.repo.SetStatus(ctx, id, status, reason, at); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return CompanyRecord{}, shared.NewAuthError(shared.KindCompanyNotFound, "company not found")
		}
		return CompanyRecord{}, err
	}
	if err := s.invalidator.InvalidateAll(ctx); err != nil {
		return CompanyRecord{}, err
	}
	return s.repo.LoadCompanyByID(ctx, id)
}
