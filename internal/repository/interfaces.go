package repository

import (
	"context"

	"github.com/natn4y/comment-system-backend/internal/model"
)

// CommentStore 评论存储的访问契约。
// 任何调用都可能失败；跨多条记录的操作只有 DeleteMany 保证原子性。
type CommentStore interface {
	// Get 不存在时返回 gorm.ErrRecordNotFound
	Get(ctx context.Context, id int64) (*model.Comment, error)
	ListByParent(ctx context.Context, parentID int64) ([]*model.Comment, error)
	// ListPage 按 created_at 倒序分页，同时返回总数
	ListPage(ctx context.Context, offset, limit int) ([]*model.Comment, int64, error)
	Insert(ctx context.Context, comment *model.Comment) (int64, error)
	Update(ctx context.Context, id int64, fields map[string]interface{}) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
	Count(ctx context.Context) (int64, error)
	// ToggleLike 原子地切换点赞：likes > 0 时减一，否则加一，返回新值
	ToggleLike(ctx context.Context, id int64) (int, error)
	// DeleteMany 在一个事务内按给定顺序删除
	DeleteMany(ctx context.Context, ids []int64) (int64, error)
	// ListOrphans 父评论已不存在的评论 ID，按 ID 正序
	ListOrphans(ctx context.Context, limit int) ([]int64, error)
}

var _ CommentStore = (*CommentRepository)(nil)
