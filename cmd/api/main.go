// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/async-resource/internal/api"
	"github.com/yourusername/async-resource/internal/auth"
	"github.com/yourusername/async-resource/internal/config"
	"github.com/yourusername/async-resource/internal/jobs"
	"github.com/yourusername/async-resource/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("api server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, err := setupJobs(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Warn("failed to close job manager", "error", err)
		}
	}()

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)
	router, err := newRouter(cfg, log, manager)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting API server", "addr", srv.Addr, "mode", cfg.GinMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.RunWorkers {
		g.Go(func() error {
			return manager.RunWorkers(gctx)
		})
	}
	return g.Wait()
}

func newRouter(cfg *config.Config, log *slog.Logger, manager *jobs.Manager) (*gin.Engine, error) {
	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()
	router.Use(api.RequestID())

	authenticator := auth.New(cfg, log)

	// セッションストアの設定
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   authenticator.SessionMaxAge(),
		HttpOnly: true,
		Secure:   cfg.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteStrictMode,
	})
	router.Use(sessions.Sessions(auth.SessionCookieName, store))

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		"X-CSRF-Token", // CSRF保護用ヘッダー
		"X-Request-ID",
	}
	// Location で状態 URL を、X-CSRF-Token でトークンを読めるように公開
	corsConfig.ExposeHeaders = []string{"Location", "X-CSRF-Token", "X-Request-ID", "Retry-After"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", handleHealth(manager))

	authRoutes := router.Group("/api/auth")
	{
		// ログイン時はセッション未生成なので CSRF 検証は不要
		authRoutes.POST("/login", authenticator.Login)
		authRoutes.POST("/logout",
			authenticator.RequireLogin(),
			authenticator.VerifyCSRF(),
			authenticator.Logout,
		)
	}

	var middleware []gin.HandlerFunc
	if cfg.AuthRequired {
		middleware = append(middleware, authenticator.RequireLogin(), authenticator.VerifyCSRF())
	}
	if err := mountAPI(router, cfg, log, manager, middleware...); err != nil {
		return nil, err
	}
	return router, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		queue := "ok"
		if err := manager.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			queue = "unavailable"
		}
		c.JSON(status, gin.H{
			"status":  http.StatusText(status),
			"service": "async-resource-api",
			"version": "0.1.0",
			"queue":   queue,
		})
	}
}
