package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/auth"
	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
	"github.com/odyssey-erp/odyssey-tenancy/internal/tenancy"
)

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guards rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: guards, validator: validator.New()}
}

// MountAdminRoutes registers platform-wide user administration.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireGlobalPermission(rbac.PermManageGlobalUsers))
		r.Get("/", h.listUsers)
		r.Post("/{userId}/roles", h.grantRole)
		r.Delete("/{userId}/roles/{assignmentId}", h.revokeRole)
		r.Post("/{userId}/roles/{assignmentId}/permissions", h.appendPermissions)
		r.Post("/{userId}/suspend", h.suspendUser)
		r.Post("/{userId}/reactivate", h.reactivateUser)
	})
}

// MountMemberRoutes registers company member administration. It must be
// mounted behind tenant resolution.
func (h *Handler) MountMemberRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCompanyPermission(rbac.PermCompanyUsersView))
		r.Get("/", h.listMembers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireCompanyPermission(rbac.PermCompanyUsersManage))
		r.Post("/", h.addMember)
		r.Delete("/{userId}/roles/{assignmentId}", h.removeMember)
	})
}

type grantRequest struct {
	Kind             string    `json:"kind" validate:"required,oneof=global company"`
	Role             string    `json:"role" validate:"required"`
	CompanyID        uuid.UUID `json:"company_id"`
	ExtraPermissions []string  `json:"extra_permissions" validate:"dive,required"`
}

type memberRequest struct {
	UserID           uuid.UUID `json:"user_id" validate:"required"`
	Role             string    `json:"role" validate:"required"`
	ExtraPermissions []string  `json:"extra_permissions" validate:"dive,required"`
}

type permissionsRequest struct {
	Permissions []string `json:"permissions" validate:"required,min=1,dive,required"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.respondError(w, "list users", err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) grantRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.uuidParam(w, r, "userId")
	if !ok {
		return
	}
	var req grantRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.service.GrantRole(r.Context(), GrantInput{
		UserID:           userID,
		Kind:             rbac.RoleKind(req.Kind),
		Role:             req.Role,
		CompanyID:        req.CompanyID,
		ExtraPermissions: req.ExtraPermissions,
		AssignedBy:       actorID(r),
	})
	if err != nil {
		h.respondError(w, "grant role", err)
		return
	}
	h.logger.Info("role granted", slog.String("user_id", userID.String()), slog.String("role", a.RoleName()))
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) revokeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.uuidParam(w, r, "userId")
	if !ok {
		return
	}
	assignmentID, ok := h.uuidParam(w, r, "assignmentId")
	if !ok {
		return
	}
	a, err := h.service.RevokeRole(r.Context(), userID, assignmentID)
	if err != nil {
		h.respondError(w, "revoke role", err)
		return
	}
	h.logger.Info("role revoked", slog.String("user_id", userID.String()), slog.String("assignment_id", assignmentID.String()))
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) appendPermissions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.uuidParam(w, r, "userId")
	if !ok {
		return
	}
	assignmentID, ok := h.uuidParam(w, r, "assignmentId")
	if !ok {
		return
	}
	var req permissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.service.AppendExtraPermissions(r.Context(), userID, assignmentID, req.Permissions)
	if err != nil {
		h.respondError(w, "append permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) suspendUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.uuidParam(w, r, "userId")
	if !ok {
		return
	}
	if userID == actorID(r) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "cannot suspend yourself")
		return
	}
	if err := h.service.SuspendUser(r.Context(), userID); err != nil {
		h.respondError(w, "suspend user", err)
		return
	}
	h.logger.Info("user suspended", slog.String("user_id", userID.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reactivateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.uuidParam(w, r, "userId")
	if !ok {
		return
	}
	if err := h.service.ReactivateUser(r.Context(), userID); err != nil {
		h.respondError(w, "reactivate user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.boundCompany(w, r)
	if !ok {
		return
	}
	members, err := h.service.ListMembers(r.Context(), companyID)
	if err != nil {
		h.respondError(w, "list members", err)
		return
	}
	if members == nil {
		members = []Member{}
	}
	httpx.JSON(w, http.StatusOK, members)
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.boundCompany(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.service.GrantRole(r.Context(), GrantInput{
		UserID:           req.UserID,
		Kind:             rbac.KindCompany,
		Role:             req.Role,
		CompanyID:        companyID,
		ExtraPermissions: req.ExtraPermissions,
		AssignedBy:       actorID(r),
	})
	if err != nil {
		h.respondError(w, "add member", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	companyID, ok := h.boundCompany(w, r)
	if !ok {
		return
	}
	userID, ok := h.uuidParam(w, r, "userId")
	if !ok {
		return
	}
	assignmentID, ok := h.uuidParam(w, r, "assignmentId")
	if !ok {
		return
	}
	a, err := h.service.RevokeCompanyRole(r.Context(), companyID, userID, assignmentID)
	if err != nil {
		h.respondError(w, "remove member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

// boundCompany returns the resolved tenant, refusing requests whose path names
// a different company than the one resolution picked.
func (h *Handler) boundCompany(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	company, ok := tenancy.CompanyFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.NewAuthError(shared.KindCompanyRequired, "company context required"))
		return uuid.Nil, false
	}
	if raw := chi.URLParam(r, tenancy.PathParam); raw != "" {
		if id, err := uuid.Parse(raw); err != nil || id != company.ID {
			httpx.RespondError(w, shared.NewAuthError(shared.KindCompanyAccessDenied, "access to company denied"))
			return uuid.Nil, false
		}
	}
	return company.ID, true
}

func (h *Handler) uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", name+" is not a valid identifier")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.RespondValidation(w, err)
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if kind, ok := shared.KindOf(err); kind == shared.KindInternal || !ok && isUnexpected(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isUnexpected(err error) bool {
	return !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrConflict) && !errors.Is(err, shared.ErrInvalidInput)
}

func actorID(r *http.Request) uuid.UUID {
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		return p.ID
	}
	return uuid.Nil
}
