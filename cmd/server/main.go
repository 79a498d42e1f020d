// Package main runs the live video platform HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tiktik-live/backend/config"
	"github.com/tiktik-live/backend/internal/analytics"
	"github.com/tiktik-live/backend/internal/auth"
	"github.com/tiktik-live/backend/internal/chat"
	"github.com/tiktik-live/backend/internal/middleware"
	"github.com/tiktik-live/backend/internal/models"
	"github.com/tiktik-live/backend/internal/moderation"
	"github.com/tiktik-live/backend/internal/presence"
	"github.com/tiktik-live/backend/internal/realtime"
	"github.com/tiktik-live/backend/internal/streams"
	"github.com/tiktik-live/backend/internal/uploads"
	"github.com/tiktik-live/backend/internal/wallet"
	"github.com/tiktik-live/backend/internal/watchlog"
	"github.com/tiktik-live/backend/internal/worker"
	"github.com/tiktik-live/backend/pkg/database"
	"github.com/tiktik-live/backend/pkg/metrics"
	"github.com/tiktik-live/backend/pkg/queue"
	"github.com/tiktik-live/backend/pkg/redis"
	"github.com/tiktik-live/backend/pkg/response"
	"github.com/tiktik-live/backend/pkg/storage"
)

// chatPublisher routes chat broadcasts through Redis only, so the subscriber
// callback delivers each message exactly once per instance.
type chatPublisher struct {
	hub *realtime.Hub
}

func (p chatPublisher) BroadcastToStreamAndPublish(streamID uuid.UUID, event string, payload interface{}) {
	p.hub.PublishToStreamOnly(streamID, event, payload)
}

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

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			MediaBucket:          cfg.AWS.MediaBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	promMetrics := metrics.New()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	googleOAuth := auth.NewGoogleOAuth(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, promMetrics, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, googleOAuth, logger)

	// Streams
	streamRepo := streams.NewRepository(pool)
	streamHandler := streams.NewHandler(streamRepo, jobQueue, hub)

	// Presence: viewer counts live in Redis under heartbeat leases.
	presenceStore := presence.NewRedisStore(rdb)
	tracker := presence.NewTracker(presenceStore, cfg.Presence.LeaseTTL, logger, promMetrics)
	tracker.SetCountHandler(func(streamID uuid.UUID, count int64) {
		hub.BroadcastToStreamAndPublish(streamID, realtime.EventViewerCount, gin.H{"count": count})
		_ = streamRepo.UpdatePeakViewers(context.Background(), streamID, int(count))
	})
	presenceHandler := presence.NewHandler(tracker)

	// Watch sessions
	watchRepo := watchlog.NewRepository(pool)
	watchHandler := watchlog.NewHandler(watchRepo)

	// Wallet
	walletRepo := wallet.NewRepository(pool)
	walletHandler := wallet.NewHandler(walletRepo)

	// Moderation
	settingsRepo := chat.NewSettingsRepository(pool, cfg.Chat.DefaultSlowMode.Milliseconds())
	modController := moderation.NewController(settingsRepo, hub, logger)
	modHandler := moderation.NewHandler(modController, 60*time.Second)

	// Chat
	chatRepo := chat.NewRepository(pool)
	chatService := chat.NewService(chatRepo, settingsRepo, modController, chatPublisher{hub: hub}, walletRepo, chat.Config{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		HistoryLimit:     cfg.Chat.HistoryLimit,
		DefaultCooldown:  cfg.Chat.DefaultCooldown,
	}, logger, promMetrics)
	chatHandler := chat.NewHandler(chatService)
	streamHandler.SetEndHook(func(streamID uuid.UUID) {
		chatService.ForgetStream(streamID)
		modController.ForgetStream(streamID)
	})

	// Uploads
	var uploadHandler *uploads.Handler
	if s3Client != nil {
		uploadHandler = uploads.NewHandler(s3Client, logger, promMetrics)
	}

	// Analytics
	analyticsHandler := analytics.NewHandler(pool, watchRepo, chatRepo, walletRepo)
	analyticsProcessor := worker.NewAnalyticsProcessor(streamRepo, watchRepo, jobQueue, logger)

	validateViewer := func(token string) (models.Viewer, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return models.Viewer{}, err
		}
		return models.Viewer{UserID: claims.UserID, UserName: claims.Name, AvatarURL: claims.AvatarURL}, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	if cfg.Server.RateLimitRPS > 0 {
		router.Use(middleware.RateLimit(middleware.NewIPRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)))
	}

	// Health and metrics
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promMetrics.Handler()))

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/google/url", authHandler.GoogleURL)
		authGroup.POST("/google/callback", authHandler.GoogleCallback)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Streams
		api.GET("/streams", streamHandler.List)
		api.POST("/streams", streamHandler.Create)
		api.GET("/s/:slug", streamHandler.GetBySlug)

		loaded := api.Group("/streams/:id", streams.LoadStream(streamRepo))
		{
			loaded.GET("", streamHandler.GetByID)
			loaded.POST("/end", streams.RequireStreamOwner(), streamHandler.End)
			loaded.DELETE("", streams.RequireStreamOwner(), streamHandler.Delete)

			// Chat
			loaded.GET("/chat", chatHandler.History)
			loaded.POST("/chat", chatHandler.Send)

			// Presence
			loaded.GET("/viewers", presenceHandler.Viewers)
			loaded.GET("/viewers/history", streams.RequireStreamOwner(), watchHandler.History)

			// Moderation (owner only)
			loaded.POST("/ban", streams.RequireStreamOwner(), modHandler.Ban)
			loaded.POST("/timeout", streams.RequireStreamOwner(), modHandler.Timeout)
			loaded.POST("/slow-mode", streams.RequireStreamOwner(), modHandler.SlowMode)

			// Analytics (owner only)
			loaded.GET("/analytics", streams.RequireStreamOwner(), analyticsHandler.GetByStream)
		}

		// Wallet and tips
		api.GET("/wallet", walletHandler.Get)
		api.POST("/wallet/deposit", walletHandler.Deposit)
		api.GET("/wallet/transactions", walletHandler.Transactions)
		api.POST("/tips", walletHandler.Tip)

		// Uploads (S3-backed)
		if uploadHandler != nil {
			api.GET("/uploads/config", uploadHandler.Config)
			api.POST("/uploads/video", uploadHandler.UploadVideo)
			api.POST("/uploads/short", uploadHandler.UploadShort)
			api.POST("/uploads/live", uploadHandler.SaveLiveStream)
			api.POST("/uploads/presign", uploadHandler.Presign)
		}
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, tracker, watchRepo, logger, validateViewer))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background loops: presence sweeper reclaims crashed viewers, analytics
	// worker rolls up ended streams.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go tracker.RunSweeper(workerCtx, cfg.Presence.SweepInterval)
	go analyticsProcessor.Run(workerCtx)

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
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
