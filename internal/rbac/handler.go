package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-hq/meridian/internal/platform/httpx"
)

// Handler wires HTTP endpoints for role and permission management.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoleReadRoutes registers the read-only role routes.
func (h *Handler) MountRoleReadRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Get("/{roleID}", h.getRole)
	r.Get("/{roleID}/permissions", h.listRolePermissions)
}

// MountRoleWriteRoutes registers the mutating role routes.
func (h *Handler) MountRoleWriteRoutes(r chi.Router) {
	r.Post("/", h.createRole)
	r.Put("/{roleID}", h.updateRole)
	r.Delete("/{roleID}", h.deleteRole)
	r.Put("/{roleID}/permissions", h.setRolePermissions)
}

// MountPermissionReadRoutes registers the read-only permission routes.
func (h *Handler) MountPermissionReadRoutes(r chi.Router) {
	r.Get("/", h.listPermissions)
}

// MountPermissionWriteRoutes registers the mutating permission routes.
func (h *Handler) MountPermissionWriteRoutes(r chi.Router) {
	r.Post("/", h.ensurePermission)
}

// MountUserAssignments registers role/permission assignment routes,
// intended to be mounted under the users resource.
func (h *Handler) MountUserAssignments(r chi.Router) {
	r.Put("/{userID}/roles/{roleID}", h.assignRole)
	r.Delete("/{userID}/roles/{roleID}", h.removeRole)
	r.Put("/{userID}/permissions/{permissionID}", h.grantPermission)
	r.Delete("/{userID}/permissions/{permissionID}", h.revokePermission)
}

type roleView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type permissionView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type roleForm struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
}

type permissionForm struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
}

type rolePermissionsForm struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	out := make([]roleView, 0, len(roles))
	for _, role := range roles {
		out = append(out, roleView{ID: role.ID, Name: role.Name, Description: role.Description})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var form roleForm
	if !h.decode(w, r, &form) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), form.Name, form.Description)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, roleView{ID: role.ID, Name: role.Name, Description: role.Description})
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, "get role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roleView{ID: role.ID, Name: role.Name, Description: role.Description})
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	var form roleForm
	if !h.decode(w, r, &form) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, form.Name, form.Description)
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roleView{ID: role.ID, Name: role.Name, Description: role.Description})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	perms, err := h.service.RolePermissions(r.Context(), id)
	if err != nil {
		h.fail(w, "list role permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionViews(perms))
}

func (h *Handler) setRolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	var form rolePermissionsForm
	if !h.decode(w, r, &form) {
		return
	}
	if err := h.service.SetRolePermissions(r.Context(), id, form.PermissionIDs); err != nil {
		h.fail(w, "set role permissions", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionViews(perms))
}

func (h *Handler) ensurePermission(w http.ResponseWriter, r *http.Request) {
	var form permissionForm
	if !h.decode(w, r, &form) {
		return
	}
	perm, err := h.service.EnsurePermission(r.Context(), form.Name, form.Description)
	if err != nil {
		h.fail(w, "ensure permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, permissionView{ID: perm.ID, Name: perm.Name, Description: perm.Description})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.AssignRole(r.Context(), userID, roleID); err != nil {
		h.fail(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	roleID, ok := pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID); err != nil {
		h.fail(w, "remove role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	permID, ok := pathID(w, r, "permissionID")
	if !ok {
		return
	}
	if err := h.service.GrantPermission(r.Context(), userID, permID); err != nil {
		h.fail(w, "grant permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	permID, ok := pathID(w, r, "permissionID")
	if !ok {
		return
	}
	if err := h.service.RevokePermission(r.Context(), userID, permID); err != nil {
		h.fail(w, "revoke permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, form any) bool {
	if err := httpx.DecodeJSON(r, form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body is not valid JSON")
		return false
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error("rbac "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func permissionViews(perms []Permission) []permissionView {
	out := make([]permissionView, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionView{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	return out
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Identifier", "path parameter "+param+" must be a positive integer")
		return 0, false
	}
	return id, true
}
