package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/natn4y/comment-system-backend/internal/model"
)

// deleteBatchSize 单条 DELETE ... IN 语句的最大 ID 数
const deleteBatchSize = 500

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Get 根据 ID 获取评论
func (r *CommentRepository) Get(ctx context.Context, id int64) (*model.Comment, error) {
	var comment model.Comment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListByParent 获取直接子评论，按时间正序
func (r *CommentRepository) ListByParent(ctx context.Context, parentID int64) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}

// ListPage 分页获取全部评论，最新的在前。
// 总数和当前页在同一个只读事务内读取。
func (r *CommentRepository) ListPage(ctx context.Context, offset, limit int) ([]*model.Comment, int64, error) {
	var comments []*model.Comment
	var total int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Comment{}).Count(&total).Error; err != nil {
			return err
		}
		return tx.Order("created_at DESC, id DESC").
			Offset(offset).
			Limit(limit).
			Find(&comments).Error
	}, r.snapshotTx())
	if err != nil {
		return nil, 0, err
	}

	return comments, total, nil
}

// snapshotTx mysql/postgres 使用可重复读快照，sqlite 事务本身串行
func (r *CommentRepository) snapshotTx() *sql.TxOptions {
	switch r.db.Dialector.Name() {
	case "mysql", "postgres":
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	default:
		return nil
	}
}

// Insert 创建评论，ID 和 CreatedAt 由数据库填充
func (r *CommentRepository) Insert(ctx context.Context, comment *model.Comment) (int64, error) {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return 0, err
	}
	return comment.ID, nil
}

// Update 更新指定字段，返回受影响行数
func (r *CommentRepository) Update(ctx context.Context, id int64, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ?", id).Updates(fields)
	return result.RowsAffected, result.Error
}

// Delete 删除单条评论
func (r *CommentRepository) Delete(ctx context.Context, id int64) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&model.Comment{}, id)
	return result.RowsAffected, result.Error
}

// Count 评论总数
func (r *CommentRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).Count(&count).Error
	return count, err
}

// ToggleLike 用单条 UPDATE 完成读改写，并发切换不会丢失更新
func (r *CommentRepository) ToggleLike(ctx context.Context, id int64) (int, error) {
	var likes int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Comment{}).
			Where("id = ?", id).
			Update("likes", gorm.Expr("CASE WHEN likes > 0 THEN likes - 1 ELSE likes + 1 END"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var comment model.Comment
		if err := tx.Select("likes").Where("id = ?", id).First(&comment).Error; err != nil {
			return err
		}
		likes = comment.Likes
		return nil
	})
	if err != nil {
		return 0, err
	}
	return likes, nil
}

// DeleteMany 在同一事务内分批删除，任何一批失败整体回滚
func (r *CommentRepository) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(ids); start += deleteBatchSize {
			end := start + deleteBatchSize
			if end > len(ids) {
				end = len(ids)
			}
			result := tx.Where("id IN ?", ids[start:end]).Delete(&model.Comment{})
			if result.Error != nil {
				return result.Error
			}
			deleted += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListOrphans 查找 parent_id 指向不存在记录的评论
func (r *CommentRepository) ListOrphans(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.Comment{}).
		Where("parent_id IS NOT NULL").
		Where("NOT EXISTS (SELECT 1 FROM comments AS parent WHERE parent.id = comments.parent_id)").
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
