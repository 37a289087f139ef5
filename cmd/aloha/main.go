package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aloha-social/aloha/internal/app"
	"github.com/aloha-social/aloha/internal/auth"
	"github.com/aloha-social/aloha/internal/observability"
	"github.com/aloha-social/aloha/internal/platform/cache"
	"github.com/aloha-social/aloha/internal/platform/db"
	"github.com/aloha-social/aloha/internal/rbac"
	"github.com/aloha-social/aloha/internal/session"
	"github.com/aloha-social/aloha/internal/tweets"
	"github.com/aloha-social/aloha/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessions := session.NewManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	hasher := auth.NewHasher()
	authService := auth.NewService(auth.NewRepository(pool), hasher)
	rbacService := rbac.NewService(rbac.NewRepository(pool))
	gate := rbac.Gate{Sessions: sessions, Resolver: rbacService, Logger: logger}

	usersService := users.NewService(users.NewRepository(pool), hasher, sessions)
	tweetService := tweets.NewService(tweets.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Sessions:     sessions,
		Metrics:      observability.NewMetrics(),
		AuthHandler:  auth.NewHandler(logger, authService, sessions),
		UsersHandler: users.NewHandler(logger, usersService, gate),
		RBACHandler:  rbac.NewHandler(logger, rbacService, gate),
		TweetHandler: tweets.NewHandler(logger, tweetService, gate),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
