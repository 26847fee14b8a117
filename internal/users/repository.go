package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/db"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool  *pgxpool.Pool
	users *auth.PGRepository
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, users: auth.NewRepository(pool)}
}

// LoadUser returns the user with every assignment.
func (r *Repository) LoadUser(ctx context.Context, id uuid.UUID) (auth.UserRecord, error) {
	return r.users.LoadUserByID(ctx, id)
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, name, status, confirmed, created_at, updated_at FROM users ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var (
			user   User
			status string
		)
		if err := rows.Scan(&user.ID, &user.Email, &user.Name, &status, &user.Confirmed, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("users: scan: %w", err)
		}
		user.Status = auth.UserStatus(status)
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return users, nil
}

// ListMembers returns users holding an active role in companyID.
func (r *Repository) ListMembers(ctx context.Context, companyID uuid.UUID) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.id, u.email, u.name, a.id, a.role, a.assigned_at
FROM user_role_assignments a JOIN users u ON u.id = a.user_id
WHERE a.kind = 'company' AND a.company_id = $1 AND a.is_active
ORDER BY u.email`, companyID)
	if err != nil {
		return nil, fmt.Errorf("users: list members: %w", err)
	}
	defer rows.Close()
	var members []Member
	for rows.Next() {
		var (
			m    Member
			role string
		)
		if err := rows.Scan(&m.UserID, &m.Email, &m.Name, &m.AssignmentID, &role, &m.AssignedAt); err != nil {
			return nil, fmt.Errorf("users: scan member: %w", err)
		}
		parsed, err := rbac.ParseCompanyRole(role)
		if err != nil {
			return nil, fmt.Errorf("users: member %s: %w", m.UserID, err)
		}
		m.Role = parsed
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("users: list members: %w", err)
	}
	return members, nil
}

// InsertAssignment stores a for userID. The user row is locked so concurrent
// grants for one user serialise; the partial unique index on active company
// roles backs the duplicate check.
func (r *Repository) InsertAssignment(ctx context.Context, userID uuid.UUID, a rbac.Assignment) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("users: lock user: %w", err)
		}
		if a.Kind == rbac.KindCompany {
			var exists bool
			err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_role_assignments
WHERE user_id = $1 AND kind = 'company' AND company_id = $2 AND is_active)`, userID, a.CompanyID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("users: check assignment: %w", err)
			}
			if exists {
				return ErrDuplicateAssignment
			}
		}
		_, err := tx.Exec(ctx, `INSERT INTO user_role_assignments
(id, user_id, kind, role, company_id, extra_permissions, is_active, assigned_at, assigned_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			a.ID, userID, string(a.Kind), a.RoleName(), nullUUID(a.CompanyID), extraOrEmpty(a.ExtraPermissions),
			a.IsActive, a.AssignedAt, nullUUID(a.AssignedBy))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrDuplicateAssignment
			}
			return fmt.Errorf("users: insert assignment: %w", err)
		}
		return nil
	})
}

// UpdateAssignment loads the assignment under a row lock, applies fn and
// writes back its activity flag and extra permissions.
func (r *Repository) UpdateAssignment(ctx context.Context, userID, assignmentID uuid.UUID, fn func(*rbac.Assignment) error) (rbac.Assignment, error) {
	var out rbac.Assignment
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		a, err := lockAssignment(ctx, tx, userID, assignmentID)
		if err != nil {
			return err
		}
		if err := fn(&a); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE user_role_assignments SET is_active = $3, extra_permissions = $4
WHERE id = $1 AND user_id = $2`, assignmentID, userID, a.IsActive, extraOrEmpty(a.ExtraPermissions))
		if err != nil {
			return fmt.Errorf("users: update assignment: %w", err)
		}
		out = a
		return nil
	})
	return out, err
}

func lockAssignment(ctx context.Context, tx pgx.Tx, userID, assignmentID uuid.UUID) (rbac.Assignment, error) {
	var (
		kind, role            string
		companyID, assignedBy uuid.NullUUID
		extra                 []string
		active                bool
		assignedAt            time.Time
	)
	err := tx.QueryRow(ctx, `SELECT kind, role, company_id, extra_permissions, is_active, assigned_at, assigned_by
FROM user_role_assignments WHERE id = $1 AND user_id = $2 FOR UPDATE`, assignmentID, userID).Scan(
		&kind, &role, &companyID, &extra, &active, &assignedAt, &assignedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Assignment{}, shared.ErrNotFound
		}
		return rbac.Assignment{}, fmt.Errorf("users: load assignment: %w", err)
	}
	a, err := rbac.ParseAssignment(kind, role, companyID.UUID)
	if err != nil {
		return rbac.Assignment{}, fmt.Errorf("users: assignment %s: %w", assignmentID, err)
	}
	a.ID = assignmentID
	a.ExtraPermissions = extra
	a.IsActive = active
	a.AssignedAt = assignedAt
	a.AssignedBy = assignedBy.UUID
	return a, nil
}

// SetUserStatus updates a user's status.
func (r *Repository) SetUserStatus(ctx context.Context, userID uuid.UUID, status auth.UserStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET status = $2, updated_at = now() WHERE id = $1`, userID, string(status))
	if err != nil {
		return fmt.Errorf("users: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func extraOrEmpty(perms []string) []string {
	if perms == nil {
		return []string{}
	}
	return perms
}

var _ RepositoryPort = (*Repository)(nil)
