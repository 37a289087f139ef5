package tweets

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aloha-social/aloha/internal/platform/httpx"
	"github.com/aloha-social/aloha/internal/rbac"
	"github.com/aloha-social/aloha/internal/session"
	"github.com/aloha-social/aloha/internal/shared"
)

// Handler manages tweet endpoints. Reads are public; every mutation passes
// through the authorization gate and is owner-scoped by the service.
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

// MountRoutes registers tweet routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(shared.PermTweetsWrite))
		r.Post("/", h.create)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

type tweetResponse struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type tweetRequest struct {
	Content string `json:"content" validate:"required,max=280"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := shared.ParsePageQuery(r)
	posts, total, err := h.service.List(r.Context(), q.Size, q.Offset())
	if err != nil {
		h.logger.Error("list tweets", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	data := make([]tweetResponse, len(posts))
	for i, post := range posts {
		data[i] = toTweetResponse(post)
	}
	httpx.JSON(w, http.StatusOK, shared.ListResponse[tweetResponse]{
		Data:       data,
		Pagination: shared.NewPagination(q.Page, q.Size, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	post, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTweetResponse(post))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, shared.ErrSessionNotFound)
		return
	}
	var req tweetRequest
	if !h.decode(w, r, &req) {
		return
	}
	post, err := h.service.Create(r.Context(), sess.UserID, req.Content)
	if err != nil {
		h.logger.Error("create tweet", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTweetResponse(post))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, shared.ErrSessionNotFound)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req tweetRequest
	if !h.decode(w, r, &req) {
		return
	}
	post, err := h.service.Update(r.Context(), sess.UserID, id, req.Content)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTweetResponse(post))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, shared.ErrSessionNotFound)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), sess.UserID, id); err != nil {
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

func toTweetResponse(post Tweet) tweetResponse {
	return tweetResponse{
		ID:        post.ID.String(),
		Content:   post.Content,
		UserID:    post.UserID.String(),
		CreatedAt: post.CreatedAt.Format(time.RFC3339),
		UpdatedAt: post.UpdatedAt.Format(time.RFC3339),
	}
}
