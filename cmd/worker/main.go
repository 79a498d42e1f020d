// Package main runs the background worker: analytics rollups and the
// presence sweeper.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tiktik-live/backend/config"
	"github.com/tiktik-live/backend/internal/presence"
	"github.com/tiktik-live/backend/internal/realtime"
	"github.com/tiktik-live/backend/internal/streams"
	"github.com/tiktik-live/backend/internal/watchlog"
	"github.com/tiktik-live/backend/internal/worker"
	"github.com/tiktik-live/backend/pkg/database"
	"github.com/tiktik-live/backend/pkg/metrics"
	"github.com/tiktik-live/backend/pkg/queue"
	"github.com/tiktik-live/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	promMetrics := metrics.New()
	streamRepo := streams.NewRepository(pool)
	watchRepo := watchlog.NewRepository(pool)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewAnalyticsProcessor(streamRepo, watchRepo, jobQueue, logger)

	// Sweeper reclaims here too, so stale viewers drop even when no server
	// instance is running. Count changes go out through Redis pub/sub.
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	presenceStore := presence.NewRedisStore(rdb)
	tracker := presence.NewTracker(presenceStore, cfg.Presence.LeaseTTL, logger, promMetrics)
	tracker.SetCountHandler(func(streamID uuid.UUID, count int64) {
		payload, _ := json.Marshal(map[string]int64{"count": count})
		_ = pubsub.PublishStreamEvent(streamID, realtime.EventViewerCount, payload)
	})

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
	go tracker.RunSweeper(workerCtx, cfg.Presence.SweepInterval)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
