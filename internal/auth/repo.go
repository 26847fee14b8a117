package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// Querier is the subset of pgx used by the repositories, satisfied by both
// *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements UserStore and SessionStore using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, name, password_hash, status, confirmed, primary_company_id, created_at, updated_at`

// LoadUserByID fetches a user and every role assignment they have ever held.
func (r *PGRepository) LoadUserByID(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	return LoadUser(ctx, r.pool, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// LoadUserByEmail fetches a user by case-insensitive email.
func (r *PGRepository) LoadUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return LoadUser(ctx, r.pool, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, email)
}

// LoadUser runs a single-user query selecting userColumns and attaches the
// user's assignments.
func LoadUser(ctx context.Context, q Querier, query string, args ...any) (UserRecord, error) {
	var (
		rec    UserRecord
		status string
	)
	err := q.QueryRow(ctx, query, args...).Scan(
		&rec.ID, &rec.Email, &rec.Name, &rec.PasswordHash, &status, &rec.Confirmed,
		&rec.PrimaryCompanyID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, shared.ErrNotFound
		}
		return UserRecord{}, fmt.Errorf("auth: load user: %w", err)
	}
	rec.Status = UserStatus(status)
	assignments, err := LoadAssignments(ctx, q, rec.ID)
	if err != nil {
		return UserRecord{}, err
	}
	rec.Assignments = assignments
	return rec, nil
}

// LoadAssignments returns every assignment of userID ordered by grant time.
func LoadAssignments(ctx context.Context, q Querier, userID uuid.UUID) ([]rbac.Assignment, error) {
	rows, err := q.Query(ctx, `SELECT id, kind, role, company_id, extra_permissions, is_active, assigned_at, assigned_by
FROM user_role_assignments WHERE user_id = $1 ORDER BY assigned_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("auth: load assignments: %w", err)
	}
	defer rows.Close()
	var out []rbac.Assignment
	for rows.Next() {
		var (
			id         uuid.UUID
			kind, role string
			companyID  uuid.NullUUID
			extra      []string
			active     bool
			assignedAt time.Time
			assignedBy uuid.NullUUID
		)
		if err := rows.Scan(&id, &kind, &role, &companyID, &extra, &active, &assignedAt, &assignedBy); err != nil {
			return nil, fmt.Errorf("auth: scan assignment: %w", err)
		}
		a, err := rbac.ParseAssignment(kind, role, companyID.UUID)
		if err != nil {
			return nil, fmt.Errorf("auth: assignment %s: %w", id, err)
		}
		a.ID = id
		a.ExtraPermissions = extra
		a.IsActive = active
		a.AssignedAt = assignedAt
		a.AssignedBy = assignedBy.UUID
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auth: load assignments: %w", err)
	}
	return out, nil
}

// CreateSession persists a login session for auditing and purge.
func (r *PGRepository) CreateSession(ctx context.Context, s LoginSession) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO auth_sessions (id, user_id, created_at, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		s.ID, s.UserID, s.CreatedAt.UTC(), s.ExpiresAt.UTC(), s.IP, s.UserAgent)
	if err != nil {
		return fmt.Errorf("auth: create session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("auth: delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions deletes sessions that expired before the cutoff.
func (r *PGRepository) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("auth: purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

var (
	_ UserStore    = (*PGRepository)(nil)
	_ SessionStore = (*PGRepository)(nil)
)
