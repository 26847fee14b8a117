package tenancy

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
	"github.com/odyssey-erp/odyssey-tenancy/internal/shared"
)

// Handler exposes company endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, guards rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: guards, validator: validator.New()}
}

// MountAdminRoutes registers platform administration routes. Callers must be
// authenticated.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireGlobalPermission(rbac.PermManageCompanies))
		r.Post("/{companyId}/suspend", h.handleSuspend)
		r.Post("/{companyId}/reactivate", h.handleReactivate)
	})
}

// MountTenantRoutes registers routes that run inside a resolved tenant.
func (h *Handler) MountTenantRoutes(r chi.Router) {
	r.With(h.rbac.RequireCompanyContext()).Get("/current", h.handleCurrent)
}

type suspendRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) handleSuspend(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, PathParam))
	if err != nil {
		httpx.RespondError(w, shared.NewAuthError(shared.KindInvalidCompanyID, "company id is not a valid identifier"))
		return
	}
	var req suspendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	company, err := h.service.SuspendCompany(r.Context(), id, req.Reason)
	if err != nil {
		h.respondError(w, "suspend company", err)
		return
	}
	h.logger.Info("company suspended", slog.String("company_id", id.String()))
	httpx.JSON(w, http.StatusOK, company)
}

func (h *Handler) handleReactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, PathParam))
	if err != nil {
		httpx.RespondError(w, shared.NewAuthError(shared.KindInvalidCompanyID, "company id is not a valid identifier"))
		return
	}
	company, err := h.service.ReactivateCompany(r.Context(), id)
	if err != nil {
		h.respondError(w, "reactivate company", err)
		return
	}
	h.logger.Info("company reactivated", slog.String("company_id", id.String()))
	httpx.JSON(w, http.StatusOK, company)
}

type currentResponse struct {
	Company     *CompanyContext `json:"company"`
	Role        string          `json:"role,omitempty"`
	Permissions []string        `json:"permissions"`
}

func (h *Handler) handleCurrent(w http.ResponseWriter, r *http.Request) {
	company, ok := CompanyFromContext(r.Context())
	grants, _ := rbac.GrantsFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrCompanyRequired)
		return
	}
	out := currentResponse{Company: company, Permissions: grants.Company.Keys()}
	if role, ok := rbac.HighestCompanyRole(grants.Subject, company.ID); ok {
		out.Role = string(role)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if kind, ok := shared.KindOf(err); !ok || kind == shared.KindInternal {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
