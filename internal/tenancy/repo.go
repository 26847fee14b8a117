package tenancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// Repository provides PostgreSQL backed persistence for companies.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type RowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LoadCompanyByID fetches a company.
func (r *Repository) LoadCompanyByID(ctx context.Context, id uuid.UUID) (CompanyRecord, error) {
	return LoadCompany(ctx, r.pool, id)
}

// LoadCompany reads one company through q. Nullable columns come back as
// their zero values.
func LoadCompany(ctx context.Context, q RowQuerier, id uuid.UUID) (CompanyRecord, error) {
	var (
		rec         CompanyRecord
		status      string
		plan        pgtype.Text
		reason      pgtype.Text
		suspendedAt pgtype.Timestamptz
	)
	err := q.QueryRow(ctx, `SELECT id, name, status, plan_id, suspended_reason, suspended_at, created_at, updated_at
FROM companies WHERE id = $1`, id).Scan(
		&rec.ID, &rec.Name, &status, &plan, &reason, &suspendedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CompanyRecord{}, shared.ErrNotFound
		}
		return CompanyRecord{}, fmt.Errorf("tenancy: load company: %w", err)
	}
	rec.Status = CompanyStatus(status)
	rec.PlanID = plan.String
	rec.SuspendedReason = reason.String
	if suspendedAt.Valid {
		at := suspendedAt.Time
		rec.SuspendedAt = &at
	}
	return rec, nil
}

// SetStatus updates a company's status. A zero at clears the suspension
// fields.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status CompanyStatus, reason string, at time.Time) error {
	suspendedAt := pgtype.Timestamptz{Time: at.UTC(), Valid: !at.IsZero()}
	tag, err := r.pool.Exec(ctx, `UPDATE companies
SET status = $2, suspended_reason = NULLIF($3, ''), suspended_at = $4, updated_at = now()
WHERE id = $1`, id, string(status), reason, suspendedAt)
	if err != nil {
		return fmt.Errorf("tenancy: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ CompanyStore = (*Repository)(nil)
