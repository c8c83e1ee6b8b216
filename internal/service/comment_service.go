package service

import (
	"context"
	"errors"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"

	"github.com/natn4y/comment-system-backend/config"
	"github.com/natn4y/comment-system-backend/internal/logger"
	"github.com/natn4y/comment-system-backend/internal/metrics"
	"github.com/natn4y/comment-system-backend/internal/model"
	"github.com/natn4y/comment-system-backend/internal/model/dto"
	"github.com/natn4y/comment-system-backend/internal/pkg/cache"
	"github.com/natn4y/comment-system-backend/internal/pkg/ws"
	"github.com/natn4y/comment-system-backend/internal/repository"
)

// 操作名，用于指标和日志
const (
	OpCreate     = "create_comment"
	OpEdit       = "edit_comment"
	OpToggleLike = "toggle_like"
	OpDelete     = "delete_comment"
	OpList       = "list_comments"
)

// Broadcaster 事件出口：单实例为 ws.Hub，多实例为 pubsub.Publisher
type Broadcaster interface {
	Publish(ctx context.Context, msg *ws.Message) error
}

type pageKey struct {
	page  int
	limit int
}

type CommentService struct {
	store       repository.CommentStore
	broadcaster Broadcaster
	pages       *cache.TTLCache[pageKey, *dto.CommentPage]
	sanitizer   *bluemonday.Policy
	cfg         *config.Config
}

func NewCommentService(store repository.CommentStore, broadcaster Broadcaster, cfg *config.Config) *CommentService {
	s := &CommentService{
		store:       store,
		broadcaster: broadcaster,
		cfg:         cfg,
	}

	if cfg.Comment.Sanitize {
		s.sanitizer = bluemonday.StrictPolicy()
	}

	if cfg.Cache.Enabled {
		pages, err := cache.New[pageKey, *dto.CommentPage](cfg.Cache.Size, cfg.Cache.TTL)
		if err != nil {
			logger.Warn("page cache disabled", "error", err)
		} else {
			s.pages = pages
		}
	}

	return s
}

// Create 创建评论并广播 comment_created。
// ParentID 是弱引用，不检查父评论是否存在。
func (s *CommentService) Create(ctx context.Context, req *dto.CreateCommentRequest) (comment *model.Comment, err error) {
	defer s.observe(OpCreate, time.Now(), &err)

	nickname, text, err := s.normalize(req.Nickname, req.Text)
	if err != nil {
		return nil, err
	}
	if req.ParentID != nil {
		if err := validateID(*req.ParentID); err != nil {
			return nil, err
		}
	}

	comment = &model.Comment{
		Nickname: nickname,
		Text:     text,
		ParentID: req.ParentID,
	}
	if _, err := s.store.Insert(ctx, comment); err != nil {
		return nil, storageError("insert", err)
	}

	s.invalidate()
	s.publish(ctx, ws.TypeCommentCreated, comment)
	return comment, nil
}

// Edit 覆盖昵称和正文并标记 edited，广播 comment_updated
func (s *CommentService) Edit(ctx context.Context, id int64, req *dto.EditCommentRequest) (comment *model.Comment, err error) {
	defer s.observe(OpEdit, time.Now(), &err)

	if err := validateID(id); err != nil {
		return nil, err
	}
	nickname, text, err := s.normalize(req.Nickname, req.Text)
	if err != nil {
		return nil, err
	}

	// 不存在的 ID 不会有任何写入；受影响行数为 0 也可能只是内容没变，以回读为准
	if _, err := s.store.Update(ctx, id, map[string]interface{}{
		"nickname": nickname,
		"text":     text,
		"edited":   true,
	}); err != nil {
		return nil, storageError("update", err)
	}

	comment, err = s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, storageError("get", err)
	}

	s.invalidate()
	s.publish(ctx, ws.TypeCommentUpdated, comment)
	return comment, nil
}

// ToggleLike likes > 0 时取消点赞，否则点赞，广播 like_changed
func (s *CommentService) ToggleLike(ctx context.Context, id int64) (result *dto.LikeChanged, err error) {
	defer s.observe(OpToggleLike, time.Now(), &err)

	if err := validateID(id); err != nil {
		return nil, err
	}

	likes, err := s.store.ToggleLike(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, storageError("toggle like", err)
	}

	result = &dto.LikeChanged{ID: id, Likes: likes}
	s.invalidate()
	s.publish(ctx, ws.TypeLikeChanged, result)
	return result, nil
}

// Delete 删除评论及其全部后代，只广播一次根 ID。
// 评论不存在时视为成功，不广播。
// 先遍历出整棵子树再在一个事务里删除，任何一步失败都不会留下删了一半的树。
func (s *CommentService) Delete(ctx context.Context, id int64) (result *dto.CommentDeleted, err error) {
	defer s.observe(OpDelete, time.Now(), &err)

	if err := validateID(id); err != nil {
		return nil, err
	}

	result = &dto.CommentDeleted{ID: id}

	if _, err := s.store.Get(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return result, nil
		}
		return nil, storageError("get", err)
	}

	ids, err := s.collectSubtree(ctx, id)
	if err != nil {
		return nil, err
	}

	deleted, err := s.store.DeleteMany(ctx, ids)
	if err != nil {
		return nil, storageError("delete", err)
	}
	metrics.CascadeDeletedTotal.Add(float64(deleted))
	logger.DebugContext(ctx, "comment tree deleted", "root_id", id, "deleted", deleted)

	s.invalidate()
	s.publish(ctx, ws.TypeCommentDeleted, result)
	return result, nil
}

// collectSubtree 用显式栈遍历子树，返回子节点在前、父节点在后的 ID 序列。
// 先序序列反转后每个节点都排在它所有后代之后；seen 保证每个节点只访问一次。
func (s *CommentService) collectSubtree(ctx context.Context, root int64) ([]int64, error) {
	stack := []int64{root}
	order := make([]int64, 0, 1)
	seen := make(map[int64]struct{})

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)

		children, err := s.store.ListByParent(ctx, id)
		if err != nil {
			return nil, storageError("list children", err)
		}
		for _, child := range children {
			stack = append(stack, child.ID)
		}
	}

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// List 分页获取评论，最新的在前
func (s *CommentService) List(ctx context.Context, page, limit int) (result *dto.CommentPage, err error) {
	defer s.observe(OpList, time.Now(), &err)

	page, limit = s.normalizePage(page, limit)
	key := pageKey{page: page, limit: limit}
	var generation uint64
	if s.pages != nil {
		if cached, ok := s.pages.Get(key); ok {
			return cached, nil
		}
		generation = s.pages.Generation()
	}

	comments, total, err := s.store.ListPage(ctx, (page-1)*limit, limit)
	if err != nil {
		return nil, storageError("list page", err)
	}
	if comments == nil {
		comments = []*model.Comment{}
	}

	result = &dto.CommentPage{
		Comments:      comments,
		TotalComments: total,
		TotalPages:    int((total + int64(limit) - 1) / int64(limit)),
		CurrentPage:   page,
	}
	// 读库期间发生过失效则不回填
	if s.pages != nil {
		s.pages.SetIfGeneration(generation, key, result)
	}
	return result, nil
}

// Get 获取单条评论
func (s *CommentService) Get(ctx context.Context, id int64) (*model.Comment, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	comment, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, storageError("get", err)
	}
	return comment, nil
}

// Replies 获取直接回复，按时间正序
func (s *CommentService) Replies(ctx context.Context, id int64) ([]*model.Comment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	replies, err := s.store.ListByParent(ctx, id)
	if err != nil {
		return nil, storageError("list children", err)
	}
	if replies == nil {
		replies = []*model.Comment{}
	}
	return replies, nil
}

func (s *CommentService) normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.cfg.Pagination.DefaultLimit
	}
	if limit < 1 {
		limit = 10
	}
	if maxLimit := s.cfg.Pagination.MaxLimit; maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

func (s *CommentService) invalidate() {
	if s.pages != nil {
		s.pages.Purge()
	}
}

// publish 广播失败只记录日志，变更本身已经生效
func (s *CommentService) publish(ctx context.Context, eventType string, data interface{}) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, &ws.Message{Type: eventType, Data: data}); err != nil {
		logger.ErrorContext(ctx, "failed to broadcast event", "type", eventType, "error", err)
	}
}

func (s *CommentService) observe(operation string, start time.Time, err *error) {
	metrics.RecordOperation(operation, resultLabel(*err), time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrInvalidComment):
		return metrics.ResultInvalid
	case errors.Is(err, ErrCommentNotFound):
		return metrics.ResultNotFound
	default:
		return metrics.ResultError
	}
}
