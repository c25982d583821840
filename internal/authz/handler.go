package authz

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/razezix/authgate/internal/authn"
	"github.com/razezix/authgate/internal/platform/httpx"
	"github.com/razezix/authgate/internal/shared"
)

// Handler wires the administrative role/resource/rule endpoints. Every route
// requires an authenticated principal holding the admin role.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers admin routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.requireAdmin)

	r.Get("/roles", h.listRoles)
	r.Post("/roles", h.createRole)
	r.Patch("/roles/{id}", h.updateRole)
	r.Delete("/roles/{id}", h.deleteRole)

	r.Get("/resources", h.listResources)
	r.Post("/resources", h.createResource)
	r.Patch("/resources/{id}", h.updateResource)
	r.Delete("/resources/{id}", h.deleteResource)

	r.Get("/access-rules", h.listRules)
	r.Post("/access-rules", h.createRule)
	r.Patch("/access-rules/{id}", h.updateRule)
	r.Delete("/access-rules/{id}", h.deleteRule)

	r.Put("/users/{id}/roles/{roleID}", h.assignRole)
	r.Delete("/users/{id}/roles/{roleID}", h.removeRole)
}

// requireAdmin rejects unauthenticated requests with 401 and authenticated
// non-admin requests with 403.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := authn.PrincipalFromContext(r.Context())
		if principal == nil {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		isAdmin, err := h.service.IsAdmin(r.Context(), principal.User.ID)
		if err != nil {
			h.logger.Error("admin check", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		if !isAdmin {
			httpx.RespondError(w, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description"`
}

type resourceRequest struct {
	Code        string `json:"code" validate:"required,max=80"`
	Description string `json:"description"`
}

type ruleRequest struct {
	RoleID     int64 `json:"role_id" validate:"required"`
	ResourceID int64 `json:"resource_id" validate:"required"`
	ReadOwn    bool  `json:"read_own"`
	ReadAll    bool  `json:"read_all"`
	Create     bool  `json:"create"`
	UpdateOwn  bool  `json:"update_own"`
	UpdateAll  bool  `json:"update_all"`
	DeleteOwn  bool  `json:"delete_own"`
	DeleteAll  bool  `json:"delete_all"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondErr(w, "list roles", err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Description)
	if err != nil {
		h.respondErr(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req roleRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.Name, req.Description)
	if err != nil {
		h.respondErr(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.respondErr(w, "delete role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.service.ListResources(r.Context())
	if err != nil {
		h.respondErr(w, "list resources", err)
		return
	}
	if resources == nil {
		resources = []Resource{}
	}
	httpx.JSON(w, http.StatusOK, resources)
}

func (h *Handler) createResource(w http.ResponseWriter, r *http.Request) {
	var req resourceRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	res, err := h.service.CreateResource(r.Context(), req.Code, req.Description)
	if err != nil {
		h.respondErr(w, "create resource", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) updateResource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req resourceRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	res, err := h.service.UpdateResource(r.Context(), id, req.Code, req.Description)
	if err != nil {
		h.respondErr(w, "update resource", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) deleteResource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteResource(r.Context(), id); err != nil {
		h.respondErr(w, "delete resource", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.service.ListRules(r.Context())
	if err != nil {
		h.respondErr(w, "list rules", err)
		return
	}
	if rules == nil {
		rules = []AccessRule{}
	}
	httpx.JSON(w, http.StatusOK, rules)
}

func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	rule, err := h.service.CreateRule(r.Context(), req.toRule(0))
	if err != nil {
		h.respondErr(w, "create rule", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rule)
}

func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ruleRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	rule, err := h.service.UpdateRule(r.Context(), req.toRule(id))
	if err != nil {
		h.respondErr(w, "update rule", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rule)
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteRule(r.Context(), id); err != nil {
		h.respondErr(w, "delete rule", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.AssignRole(r.Context(), userID, roleID); err != nil {
		h.respondErr(w, "assign role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID); err != nil {
		h.respondErr(w, "remove role", err)
		return
	}
	httpx.NoContent(w)
}

func (req ruleRequest) toRule(id int64) AccessRule {
	return AccessRule{
		ID:         id,
		RoleID:     req.RoleID,
		ResourceID: req.ResourceID,
		ReadOwn:    req.ReadOwn,
		ReadAll:    req.ReadAll,
		Create:     req.Create,
		UpdateOwn:  req.UpdateOwn,
		UpdateAll:  req.UpdateAll,
		DeleteOwn:  req.DeleteOwn,
		DeleteAll:  req.DeleteAll,
	}
}

func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}
