// Package tenancy resolves which company a request is scoped to and whether
// the caller may act on it.
package tenancy

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CompanyStatus is the lifecycle state of a tenant.
type CompanyStatus string

const (
	CompanyActive    CompanyStatus = "active"
	CompanySuspended CompanyStatus = "suspended"
)

// CompanyRecord is a tenant as loaded from the company store.
type CompanyRecord struct {
	ID              uuid.UUID     `json:"id"`
	Name            string        `json:"name"`
	Status          CompanyStatus `json:"status"`
	PlanID          string        `json:"plan_id"`
	SuspendedReason string        `json:"suspended_reason,omitempty"`
	SuspendedAt     *time.Time    `json:"suspended_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Suspended reports whether the tenant is suspended.
func (c CompanyRecord) Suspended() bool {
	return c.Status == CompanySuspended
}

// CompanyContext is the tenant a request is bound to.
type CompanyContext struct {
	ID     uuid.UUID     `json:"id"`
	Name   string        `json:"name"`
	Status CompanyStatus `json:"status"`
	PlanID string        `json:"plan_id"`
}

// CompanyStore loads tenants. Absence is reported as shared.ErrNotFound.
type CompanyStore interface {
	LoadCompanyByID(ctx context.Context, id uuid.UUID) (CompanyRecord, error)
}
