package users

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aloha-social/aloha/internal/platform/httpx"
	"github.com/aloha-social/aloha/internal/rbac"
	"github.com/aloha-social/aloha/internal/shared"
)

// Handler manages user account endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	gate     rbac.Gate
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate rbac.Gate) *Handler {
	return &Handler{logger: logger, service: service, gate: gate, validate: validator.New()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermUsersView))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermUsersEdit))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Delete("/", h.bulkDelete)
	})
}

// userResponse never carries the password hash.
type userResponse struct {
	ID        string  `json:"id"`
	Username  string  `json:"username"`
	GroupID   *string `json:"user_group_id,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type createUserRequest struct {
	Username string     `json:"username" validate:"required,min=3,max=64"`
	Password string     `json:"password" validate:"required,min=8,max=128"`
	GroupID  *uuid.UUID `json:"user_group_id"`
}

type updateUserRequest struct {
	Username *string    `json:"username" validate:"omitempty,min=3,max=64"`
	Password *string    `json:"password" validate:"omitempty,min=8,max=128"`
	GroupID  *uuid.UUID `json:"user_group_id"`
	SetGroup bool       `json:"set_group"`
}

type bulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := shared.ParsePageQuery(r)
	accounts, total, err := h.service.List(r.Context(), q.Size, q.Offset())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	data := make([]userResponse, len(accounts))
	for i, account := range accounts {
		data[i] = toUserResponse(account)
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[userResponse]{
		Data:       data,
		Pagination: shared.NewPagination(q.Page, q.Size, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	account, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(account))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.Create(r.Context(), req.Username, req.Password, req.GroupID)
	if err != nil {
		h.logger.Error("create user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toUserResponse(account))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.Update(r.Context(), id, UpdateParams{
		Username: req.Username,
		Password: req.Password,
		GroupID:  req.GroupID,
		SetGroup: req.SetGroup || req.GroupID != nil,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toUserResponse(account))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) bulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.Delete(r.Context(), req.IDs...); err != nil {
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

func toUserResponse(account User) userResponse {
	resp := userResponse{
		ID:        account.ID.String(),
		Username:  account.Username,
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}
	if account.GroupID != nil {
		gid := account.GroupID.String()
		resp.GroupID = &gid
	}
	return resp
}
