package tenancy_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
	_ "github.com/odyssey-erp/odyssey-tenancy/testing"
)

type stubCompanies struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]tenancy.CompanyRecord
	loadErr error
	loads   int
}

func newStubCompanies(records ...tenancy.CompanyRecord) *stubCompanies {
	s := &stubCompanies{byID: make(map[uuid.UUID]tenancy.CompanyRecord)}
	for _, rec := range records {
		s.byID[rec.ID] = rec
	}
	return s
}

func (s *stubCompanies) LoadCompanyByID(ctx context.Context, id uuid.UUID) (tenancy.CompanyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return tenancy.CompanyRecord{}, s.loadErr
	}
	rec, ok := s.byID[id]
	if !ok {
		return tenancy.CompanyRecord{}, shared.ErrNotFound
	}
	return rec, nil
}

func (s *stubCompanies) SetStatus(ctx context.Context, id uuid.UUID, status tenancy.CompanyStatus, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	rec.Status = status
	rec.SuspendedReason = reason
	rec.SuspendedAt = nil
	if !at.IsZero() {
		rec.SuspendedAt = &at
	}
	s.byID[id] = rec
	return nil
}

type countingInvalidator struct {
	all   int
	users []uuid.UUID
	err   error
}

func (c *countingInvalidator) Invalidate(ctx context.Context, id uuid.UUID) error {
	c.users = append(c.users, id)
	return c.err
}

func (c *countingInvalidator) InvalidateAll(ctx context.Context) error {
	c.all++
	return c.err
}

func company(status tenancy.CompanyStatus) tenancy.CompanyRecord {
	return tenancy.CompanyRecord{ID: uuid.New(), Name: "Acme", Status: status, PlanID: "plan-standard"}
}

func principal(primary uuid.UUID, assignments ...rbac.Assignment) *auth.Principal {
	rec := auth.UserRecord{
		ID:          uuid.New(),
		Email:       "member@odyssey.test",
		Status:      auth.StatusActive,
		Confirmed:   true,
		Assignments: assignments,
	}
	if primary != uuid.Nil {
		rec.PrimaryCompanyID = uuid.NullUUID{UUID: primary, Valid: true}
	}
	return auth.NewPrincipal(rec)
}

func companyGrant(role rbac.CompanyRole, companyID uuid.UUID) rbac.Assignment {
	a, err := rbac.NewCompanyAssignment(role, companyID, nil, uuid.Nil, time.Now())
	if err != nil {
		panic(err)
	}
	return a
}

func globalGrant(role rbac.GlobalRole, extra ...string) rbac.Assignment {
	a, err := rbac.NewGlobalAssignment(role, extra, uuid.Nil, time.Now())
	if err != nil {
		panic(err)
	}
	return a
}
