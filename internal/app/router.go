package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/aloha-social/aloha/internal/auth"
	"github.com/aloha-social/aloha/internal/observability"
	"github.com/aloha-social/aloha/internal/rbac"
	"github.com/aloha-social/aloha/internal/session"
	"github.com/aloha-social/aloha/internal/tweets"
	"github.com/aloha-social/aloha/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Sessions     *session.Manager
	Metrics      *observability.Metrics
	AuthHandler  *auth.Handler
	UsersHandler *users.Handler
	RBACHandler  *rbac.Handler
	TweetHandler *tweets.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/health_check", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	loginLimit := 10
	if params.Config != nil && params.Config.LoginRateLimit > 0 {
		loginLimit = params.Config.LoginRateLimit
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			// Brute-force protection on the credential endpoints only.
			r.Use(httprate.Limit(loginLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			params.AuthHandler.MountRoutes(r)
		})
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/user_groups", params.RBACHandler.MountGroupRoutes)
		r.Route("/permissions", params.RBACHandler.MountPermissionRoutes)
		r.Route("/user_permissions", params.RBACHandler.MountUserGrantRoutes)
		r.Route("/group_permissions", params.RBACHandler.MountGroupGrantRoutes)
		r.Route("/tweets", params.TweetHandler.MountRoutes)
	})

	return r
}
