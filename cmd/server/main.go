package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/natn4y/comment-system-backend/config"
	"github.com/natn4y/comment-system-backend/internal/api"
	"github.com/natn4y/comment-system-backend/internal/api/handler"
	"github.com/natn4y/comment-system-backend/internal/database"
	"github.com/natn4y/comment-system-backend/internal/logger"
	"github.com/natn4y/comment-system-backend/internal/pkg/cron"
	"github.com/natn4y/comment-system-backend/internal/pkg/pubsub"
	"github.com/natn4y/comment-system-backend/internal/pkg/ws"
	"github.com/natn4y/comment-system-backend/internal/repository"
	"github.com/natn4y/comment-system-backend/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	relayRetryDelay = 2 * time.Second
)

func main() {
	// .env 可选，已有的环境变量优先
	_ = godotenv.Load()

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", "path", configPath, "error", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect database", "driver", cfg.Database.Driver, "error", err)
	}
	logger.Info("database connected", "driver", cfg.Database.Driver)

	// 初始化 WebSocket Hub 和事件出口
	wsHub := ws.NewHub()
	var broadcaster service.Broadcaster = wsHub
	var rdb *redis.Client
	if cfg.Broadcast.Mode == "redis" {
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			logger.Fatal("failed to connect redis", "error", err)
		}
		logger.Info("redis connected", "channel", cfg.Broadcast.Channel)

		broadcaster = pubsub.NewPublisher(rdb, cfg.Broadcast.Channel)
		go runRelay(ctx, pubsub.NewSubscriber(rdb, cfg.Broadcast.Channel), wsHub)
	}

	// 初始化 Repository / Service
	commentRepo := repository.NewCommentRepository(db)
	commentService := service.NewCommentService(commentRepo, broadcaster, cfg)

	// 孤儿回复清理（可选）
	var sweeper *cron.Service
	if cfg.Cleanup.Enabled {
		sweeper = cron.NewService(commentService, cfg.Cleanup.Interval, cfg.Cleanup.BatchSize)
		sweeper.Start()
	}

	// 初始化 Handler / Router
	router := api.NewRouter(
		handler.NewCommentHandler(commentService),
		handler.NewWebSocketHandler(wsHub, commentService, broadcaster, cfg),
		handler.NewHealthHandler(db, wsHub),
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", "addr", addr, "broadcast_mode", cfg.Broadcast.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// websocket 连接已被劫持，Shutdown 不会等待它们
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	wsHub.Close()
	if sweeper != nil {
		sweeper.Stop()
	}
	if rdb != nil {
		rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Info("server stopped")
}

// runRelay 订阅断开后自动重连，直到 ctx 取消
func runRelay(ctx context.Context, sub *pubsub.Subscriber, hub *ws.Hub) {
	for {
		ready := make(chan struct{})
		done := make(chan struct{})
		go func() {
			select {
			case <-ready:
				logger.Info("event relay subscribed")
			case <-done:
			}
		}()

		err := pubsub.Relay(ctx, sub, hub, ready)
		close(done)
		if ctx.Err() != nil {
			return
		}
		logger.Error("event relay stopped, retrying", "error", err, "retry_in", relayRetryDelay.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(relayRetryDelay):
		}
	}
}
