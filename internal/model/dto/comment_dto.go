package dto

import "github.com/natn4y/comment-system-backend/internal/model"

// CreateCommentRequest 创建评论请求
type CreateCommentRequest struct {
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
	ParentID *int64 `json:"parentId,omitempty"`
}

// EditCommentRequest 编辑评论请求，实时通道中 ID 随消息携带
type EditCommentRequest struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
	Text     string `json:"text"`
}

// CommentIDRequest 只携带评论 ID 的请求（点赞、删除）
type CommentIDRequest struct {
	ID int64 `json:"id"`
}

// LikeChanged 点赞数变化事件
type LikeChanged struct {
	ID    int64 `json:"id"`
	Likes int   `json:"likes"`
}

// CommentDeleted 删除事件，只包含被请求删除的根评论 ID
type CommentDeleted struct {
	ID int64 `json:"id"`
}

// CommentPage 分页列表
type CommentPage struct {
	Comments      []*model.Comment `json:"comments"`
	TotalComments int64            `json:"totalComments"`
	TotalPages    int              `json:"totalPages"`
	CurrentPage   int              `json:"currentPage"`
}

// OperationError 实时通道中返回给请求方的错误
type OperationError struct {
	Operation string `json:"operation"`
	Error     string `json:"error"`
}
