package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/aloha-social/aloha/internal/platform/httpx"
	"github.com/aloha-social/aloha/internal/session"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *session.Manager
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *session.Manager) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		sessions: sessions,
		validate: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	ExpiresAt string `json:"expires_at"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "username and password are required")
		return
	}

	userID, err := h.service.VerifyLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	sess, err := h.sessions.Create(r.Context(), userID)
	if err != nil {
		h.logger.Error("create session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := h.sessions.AddFlash(r.Context(), sess.Token, session.Flash{Kind: "success", Message: "welcome back"}); err != nil {
		h.logger.Warn("queue login flash", slog.Any("error", err))
	}

	h.sessions.WriteCookie(w, sess)
	httpx.JSON(w, http.StatusOK, loginResponse{
		Token:     sess.Token,
		UserID:    sess.UserID.String(),
		ExpiresAt: sess.ExpiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := h.sessions.TokenFromRequest(r)
	if err := h.sessions.Destroy(r.Context(), token); err != nil {
		h.logger.Warn("destroy session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.sessions.ClearCookie(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
