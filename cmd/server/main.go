// Package main runs the gatherspot API server with graceful shutdown.
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

	"github.com/gatherspot/backend/config"
	"github.com/gatherspot/backend/internal/auth"
	"github.com/gatherspot/backend/internal/authz"
	"github.com/gatherspot/backend/internal/events"
	"github.com/gatherspot/backend/internal/middleware"
	"github.com/gatherspot/backend/internal/registrations"
	"github.com/gatherspot/backend/pkg/database"
	"github.com/gatherspot/backend/pkg/queue"
	"github.com/gatherspot/backend/pkg/redis"
	"github.com/gatherspot/backend/pkg/response"
	"github.com/gatherspot/backend/pkg/storage"
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

	// The queue is optional: without Redis the server still runs, it just
	// skips confirmation emails.
	var emailQueue *queue.Queue
	if rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger); err != nil {
		logger.Warn("redis unavailable, confirmation emails disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		emailQueue = queue.NewQueue(rdb.Client, logger)
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			MediaBucket:     cfg.AWS.MediaBucket,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	gate := authz.NewGate()

	// Identity provider adapter
	authRepo := auth.NewRepository(pool)
	var authBlobs auth.BlobStore
	if s3Client != nil {
		authBlobs = s3Client
	}
	authHandler := auth.NewHandler(authRepo, jwtService, authBlobs, logger)

	// Event catalog
	eventRepo := events.NewRepository(pool)
	eventSvc := events.NewService(eventRepo, gate, logger)
	var eventBlobs events.BlobStore
	if s3Client != nil {
		eventBlobs = s3Client
	}
	eventHandler := events.NewHandler(eventSvc, eventBlobs, logger)

	// Registration ledger
	regRepo := registrations.NewRepository(pool)
	ledger := registrations.NewLedger(regRepo, gate, logger)
	var emails registrations.EmailQueue
	if emailQueue != nil {
		emails = emailQueue
	}
	regHandler := registrations.NewHandler(ledger, eventSvc, emails, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
	}

	// Public catalog reads
	router.GET("/events", eventHandler.List)
	router.GET("/events/:id", eventHandler.GetByID)
	router.GET("/events/:id/registrations/count", regHandler.Count)

	// Protected API (JWT required). Admin-only writes are enforced by the
	// authorization gate inside the services; role middleware guards only
	// pure reads that bypass a service gate.
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Profile
		api.GET("/me", authHandler.Me)
		api.PATCH("/me", authHandler.UpdateMe)
		api.POST("/me/avatar", authHandler.UploadAvatar)
		api.GET("/me/registrations", regHandler.ListMine)

		// Users (admin)
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)
		api.PATCH("/users/:id/role", middleware.RequireRole("admin"), authHandler.UpdateRole)

		// Event catalog
		api.POST("/events", eventHandler.Create)
		api.PATCH("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.POST("/events/:id/image", eventHandler.UploadImage)

		// Registrations
		api.POST("/events/:id/register", regHandler.Register)
		api.DELETE("/events/:id/register", regHandler.Cancel)
		api.GET("/events/:id/registrations", regHandler.ListByEvent)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

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
