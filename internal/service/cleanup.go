package service

import (
	"context"
	"errors"
	"time"

	"github.com/natn4y/comment-system-backend/internal/logger"
)

// OpSweep 孤儿清理，用于指标
const OpSweep = "sweep_orphans"

const defaultSweepBatch = 500

// Orphans 父评论已不存在的评论。级联删除期间并发插入的回复会留在这里。
func (s *CommentService) Orphans(ctx context.Context, limit int) ([]int64, error) {
	if limit < 1 {
		limit = defaultSweepBatch
	}
	ids, err := s.store.ListOrphans(ctx, limit)
	if err != nil {
		return nil, storageError("list orphans", err)
	}
	return ids, nil
}

// SweepOrphans 级联删除一批孤儿子树，返回删除的子树数。
// 每棵子树各自广播 comment_deleted，单棵失败不影响其余。
func (s *CommentService) SweepOrphans(ctx context.Context, limit int) (swept int, err error) {
	defer s.observe(OpSweep, time.Now(), &err)

	ids, err := s.Orphans(ctx, limit)
	if err != nil {
		return 0, err
	}

	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if _, err := s.Delete(ctx, id); err != nil {
			logger.WarnContext(ctx, "failed to sweep orphan", "comment_id", id, "error", err)
			errs = append(errs, err)
			continue
		}
		swept++
	}

	return swept, errors.Join(errs...)
}
