package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/natn4y/comment-system-backend/config"
	"github.com/natn4y/comment-system-backend/internal/database"
	"github.com/natn4y/comment-system-backend/internal/logger"
	"github.com/natn4y/comment-system-backend/internal/pkg/pubsub"
	"github.com/natn4y/comment-system-backend/internal/repository"
	"github.com/natn4y/comment-system-backend/internal/service"
)

var (
	dryRun  = flag.Bool("dry-run", true, "Dry run mode, only list orphaned replies")
	limit   = flag.Int("limit", 500, "Maximum number of orphaned subtrees to handle")
	timeout = flag.Duration("timeout", 5*time.Minute, "Overall timeout")
)

func main() {
	flag.Parse()
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
	logger.Info("starting orphan cleanup", "dry_run", *dryRun, "limit", *limit)

	// 连接数据库
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect database", "error", err)
	}

	// redis 模式下删除事件照常推送给在线客户端
	var broadcaster service.Broadcaster
	if cfg.Broadcast.Mode == "redis" && !*dryRun {
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			logger.Fatal("failed to connect redis", "error", err)
		}
		defer rdb.Close()
		broadcaster = pubsub.NewPublisher(rdb, cfg.Broadcast.Channel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	comments := service.NewCommentService(repository.NewCommentRepository(db), broadcaster, cfg)

	if *dryRun {
		ids, err := comments.Orphans(ctx, *limit)
		if err != nil {
			logger.Fatal("failed to list orphans", "error", err)
		}
		for _, id := range ids {
			logger.Info("orphaned reply", "comment_id", id)
		}
		logger.Info("dry run completed, nothing deleted", "orphans", len(ids))
		return
	}

	swept, err := comments.SweepOrphans(ctx, *limit)
	if err != nil {
		logger.Error("cleanup finished with errors", "swept", swept, "error", err)
		os.Exit(1)
	}
	logger.Info("cleanup completed", "swept", swept)
}
