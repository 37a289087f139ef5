package rbac

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aloha-social/aloha/internal/platform/httpx"
	"github.com/aloha-social/aloha/internal/shared"
)

// Handler exposes the permission graph over HTTP: permissions, groups and the
// two assignment relations.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	gate     Gate
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate Gate) *Handler {
	return &Handler{logger: logger, service: service, gate: gate, validate: validator.New()}
}

// MountPermissionRoutes registers permission CRUD routes.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermPermissionsView))
		r.Get("/", h.listPermissions)
		r.Get("/{id}", h.getPermission)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermPermissionsEdit))
		r.Post("/", h.createPermission)
		r.Patch("/{id}", h.updatePermission)
		r.Delete("/{id}", h.deletePermission)
		r.Delete("/", h.bulkDeletePermissions)
	})
}

// MountGroupRoutes registers group CRUD routes.
func (h *Handler) MountGroupRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermGroupsView))
		r.Get("/", h.listGroups)
		r.Get("/{id}", h.getGroup)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermGroupsEdit))
		r.Post("/", h.createGroup)
		r.Delete("/{id}", h.deleteGroup)
		r.Delete("/", h.bulkDeleteGroups)
	})
}

// MountUserGrantRoutes registers user-permission assignment routes.
func (h *Handler) MountUserGrantRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermPermissionsView))
		r.Get("/", h.listUserGrants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermPermissionsEdit))
		r.Post("/", h.grantToUser)
		r.Delete("/", h.revokeFromUser)
	})
}

// MountGroupGrantRoutes registers group-permission assignment routes.
func (h *Handler) MountGroupGrantRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermPermissionsView))
		r.Get("/", h.listGroupGrants)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermPermissionsEdit))
		r.Post("/", h.grantToGroup)
		r.Delete("/", h.revokeFromGroup)
	})
}

type permissionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type groupResponse struct {
	ID        string `json:"id"`
	GroupName string `json:"group_name"`
	CreatedAt string `json:"created_at"`
}

type userGrantResponse struct {
	UserID       string `json:"user_id"`
	PermissionID string `json:"permission_id"`
	CreatedAt    string `json:"created_at"`
}

type groupGrantResponse struct {
	GroupID      string `json:"group_id"`
	PermissionID string `json:"permission_id"`
	CreatedAt    string `json:"created_at"`
}

type createPermissionRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=512"`
}

type updatePermissionRequest struct {
	Description string `json:"description" validate:"max=512"`
}

type createGroupRequest struct {
	GroupName string `json:"group_name" validate:"required,max=128"`
}

type userGrantRequest struct {
	UserID       uuid.UUID `json:"user_id" validate:"required"`
	PermissionID uuid.UUID `json:"permission_id" validate:"required"`
}

type groupGrantRequest struct {
	GroupID      uuid.UUID `json:"group_id" validate:"required"`
	PermissionID uuid.UUID `json:"permission_id" validate:"required"`
}

type bulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	q := shared.ParsePageQuery(r)
	perms, total, err := h.service.ListPermissions(r.Context(), q.Size, q.Offset())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	data := make([]permissionResponse, len(perms))
	for i, perm := range perms {
		data[i] = toPermissionResponse(perm)
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[permissionResponse]{
		Data:       data,
		Pagination: shared.NewPagination(q.Page, q.Size, total),
	})
}

func (h *Handler) getPermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	perm, err := h.service.GetPermission(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionResponse(perm))
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), req.Name, req.Description)
	if err != nil {
		h.logger.Error("create permission", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPermissionResponse(perm))
}

func (h *Handler) updatePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updatePermissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	perm, err := h.service.UpdatePermissionDescription(r.Context(), id, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPermissionResponse(perm))
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeletePermissions(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bulkDeletePermissions(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.DeletePermissions(r.Context(), req.IDs...); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	q := shared.ParsePageQuery(r)
	groups, total, err := h.service.ListGroups(r.Context(), q.Size, q.Offset())
	if err != nil {
		h.logger.Error("list groups", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	data := make([]groupResponse, len(groups))
	for i, group := range groups {
		data[i] = toGroupResponse(group)
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[groupResponse]{
		Data:       data,
		Pagination: shared.NewPagination(q.Page, q.Size, total),
	})
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	group, err := h.service.GetGroup(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toGroupResponse(group))
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !h.decode(w, r, &req) {
		return
	}
	group, err := h.service.CreateGroup(r.Context(), req.GroupName)
	if err != nil {
		h.logger.Error("create group", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toGroupResponse(group))
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteGroups(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bulkDeleteGroups(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.DeleteGroups(r.Context(), req.IDs...); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUserGrants(w http.ResponseWriter, r *http.Request) {
	q := shared.ParsePageQuery(r)
	grants, total, err := h.service.ListUserGrants(r.Context(), q.Size, q.Offset())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data := make([]userGrantResponse, len(grants))
	for i, grant := range grants {
		data[i] = userGrantResponse{
			UserID:       grant.UserID.String(),
			PermissionID: grant.PermissionID.String(),
			CreatedAt:    grant.CreatedAt.Format(time.RFC3339),
		}
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[userGrantResponse]{
		Data:       data,
		Pagination: shared.NewPagination(q.Page, q.Size, total),
	})
}

func (h *Handler) grantToUser(w http.ResponseWriter, r *http.Request) {
	var req userGrantRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.GrantToUser(r.Context(), req.UserID, req.PermissionID); err != nil {
		h.logger.Error("grant to user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, userGrantResponse{
		UserID:       req.UserID.String(),
		PermissionID: req.PermissionID.String(),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) revokeFromUser(w http.ResponseWriter, r *http.Request) {
	var req userGrantRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.RevokeFromUser(r.Context(), req.UserID, req.PermissionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listGroupGrants(w http.ResponseWriter, r *http.Request) {
	q := shared.ParsePageQuery(r)
	grants, total, err := h.service.ListGroupGrants(r.Context(), q.Size, q.Offset())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	data := make([]groupGrantResponse, len(grants))
	for i, grant := range grants {
		data[i] = groupGrantResponse{
			GroupID:      grant.GroupID.String(),
			PermissionID: grant.PermissionID.String(),
			CreatedAt:    grant.CreatedAt.Format(time.RFC3339),
		}
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[groupGrantResponse]{
		Data:       data,
		Pagination: shared.NewPagination(q.Page, q.Size, total),
	})
}

func (h *Handler) grantToGroup(w http.ResponseWriter, r *http.Request) {
	var req groupGrantRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.GrantToGroup(r.Context(), req.GroupID, req.PermissionID); err != nil {
		h.logger.Error("grant to group", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, groupGrantResponse{
		GroupID:      req.GroupID.String(),
		PermissionID: req.PermissionID.String(),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) revokeFromGroup(w http.ResponseWriter, r *http.Request) {
	var req groupGrantRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.RevokeFromGroup(r.Context(), req.GroupID, req.PermissionID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request validation failed")
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func toPermissionResponse(perm Permission) permissionResponse {
	return permissionResponse{
		ID:          perm.ID.String(),
		Name:        perm.Name,
		Description: perm.Description,
		CreatedAt:   perm.CreatedAt.Format(time.RFC3339),
	}
}

func toGroupResponse(group Group) groupResponse {
	return groupResponse{
		ID:        group.ID.String(),
		GroupName: group.Name,
		CreatedAt: group.CreatedAt.Format(time.RFC3339),
	}
}
