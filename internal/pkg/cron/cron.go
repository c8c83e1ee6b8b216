package cron

import (
	"context"
	"sync"
	"time"

	"github.com/natn4y/comment-system-backend/internal/logger"
)

const defaultInterval = time.Hour

// Sweeper 由 service.CommentService 实现
type Sweeper interface {
	SweepOrphans(ctx context.Context, limit int) (int, error)
}

type Service struct {
	sweeper   Sweeper
	interval  time.Duration
	batchSize int
	timeout   time.Duration
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewService(sweeper Sweeper, interval time.Duration, batchSize int) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		sweeper:   sweeper,
		interval:  interval,
		batchSize: batchSize,
		timeout:   interval,
		stopChan:  make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	s.wg.Add(1)
	go s.runSweep()
	logger.Info("cron service started", "task", "orphan sweep", "interval", s.interval.String())
}

// Stop 停止定时任务并等待当前一轮结束，可重复调用
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	logger.Info("cron service stopped")
}

// runSweep 每个周期清理一批孤儿回复
func (s *Service) runSweep() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			if _, err := s.RunNow(ctx); err != nil {
				logger.Error("orphan sweep failed", "error", err)
			}
			cancel()
		}
	}
}

// RunNow 立即执行一轮清理（用于测试或手动触发）
func (s *Service) RunNow(ctx context.Context) (int, error) {
	swept, err := s.sweeper.SweepOrphans(ctx, s.batchSize)
	if swept > 0 {
		logger.Info("orphan sweep completed", "swept", swept)
	}
	return swept, err
}
