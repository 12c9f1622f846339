// Package main runs the voting platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/votify/backend/config"
	"github.com/votify/backend/internal/auth"
	"github.com/votify/backend/internal/groups"
	"github.com/votify/backend/internal/middleware"
	"github.com/votify/backend/internal/polls"
	"github.com/votify/backend/internal/realtime"
	"github.com/votify/backend/internal/sweeper"
	"github.com/votify/backend/pkg/database"
	"github.com/votify/backend/pkg/queue"
	"github.com/votify/backend/pkg/redis"
	"github.com/votify/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)

	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)

	// Auth
	userRepo := auth.NewRepository(pool)
	codeStore := auth.NewCodeStore(rdb.Client, time.Duration(cfg.Auth.CodeTTLMinutes)*time.Minute, cfg.Auth.CodeAttempts, logger)
	sessionStore := auth.NewSessionStore(rdb.Client, time.Duration(cfg.Auth.SessionTTLHours)*time.Hour, logger)
	authHandler := auth.NewHandler(userRepo, codeStore, sessionStore, jobQueue,
		time.Duration(cfg.Auth.SessionTTLHours)*time.Hour, cfg.Auth.SecureCookies, logger)

	// Groups
	groupRepo := groups.NewRepository(pool)
	groupHandler := groups.NewHandler(groupRepo, logger)

	// Polls
	pollRepo := polls.NewRepository(pool)
	pollHandler := polls.NewHandler(pollRepo, hub, logger)

	// Expiry sweep
	sweep := sweeper.New(pollRepo, jobQueue, hub,
		time.Duration(cfg.Sweep.IntervalSeconds)*time.Second, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	{
		// Auth (public)
		api.GET("/register", authHandler.Register)
		api.GET("/login", authHandler.Login)
		api.GET("/login/code", authHandler.VerifyCode)

		// Public group/user views
		api.GET("/group/:id/public", groupHandler.Public)
		api.GET("/info/groups", groupHandler.ListForUser)
		api.GET("/info/polls", pollHandler.ListForUser)

		// Session required
		authed := api.Group("")
		authed.Use(middleware.Session(sessionStore))
		{
			authed.GET("/auth/check", authHandler.Check)

			authed.POST("/group", groupHandler.Create)
			authed.POST("/group/:id/join", groupHandler.Join)
			authed.GET("/group/:id/info", groupHandler.Info)
			authed.GET("/group/:id/polls", pollHandler.ListForGroup)

			authed.POST("/poll", pollHandler.Create)
			authed.GET("/poll/:id", pollHandler.Get)
			authed.POST("/poll/:id/option", pollHandler.AddOption)
			authed.POST("/poll/:id/vote", pollHandler.Vote)
		}
	}

	// WebSocket (session cookie; membership checked per group)
	router.GET("/ws", realtime.ServeWs(hub, sessionStore, groupRepo, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	sweep.Start(sweepCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweep.Stop()
	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
