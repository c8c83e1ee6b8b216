package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/natn4y/comment-system-backend/internal/api/middleware"
	"github.com/natn4y/comment-system-backend/internal/logger"
	"github.com/natn4y/comment-system-backend/internal/model/dto"
	"github.com/natn4y/comment-system-backend/internal/pkg/response"
	"github.com/natn4y/comment-system-backend/internal/service"
)

type CommentHandler struct {
	commentService *service.CommentService
}

func NewCommentHandler(commentService *service.CommentService) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
	}
}

// List 获取评论列表
// GET /api/v1/comments?page=1&limit=10
func (h *CommentHandler) List(c *gin.Context) {
	// 非法或缺省的分页参数交给服务层修正
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.commentService.List(c.Request.Context(), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, result)
}

// Get 获取单条评论
// GET /api/v1/comments/:id
func (h *CommentHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	comment, err := h.commentService.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, comment)
}

// Replies 获取直接回复
// GET /api/v1/comments/:id/replies
func (h *CommentHandler) Replies(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	replies, err := h.commentService.Replies(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, replies)
}

// Create 发表评论
// POST /api/v1/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request body")
		return
	}

	comment, err := h.commentService.Create(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, comment)
}

// Edit 编辑评论
// PUT /api/v1/comments/:id
func (h *CommentHandler) Edit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req dto.EditCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request body")
		return
	}

	comment, err := h.commentService.Edit(c.Request.Context(), id, &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, comment)
}

// ToggleLike 点赞或取消点赞
// POST /api/v1/comments/:id/like
func (h *CommentHandler) ToggleLike(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.commentService.ToggleLike(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, result)
}

// Delete 删除评论及其所有回复
// DELETE /api/v1/comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.commentService.Delete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, result)
}

func (h *CommentHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidComment):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrCommentNotFound):
		response.NotFoundError(c, service.ErrCommentNotFound.Error())
	default:
		logger.WithRequestID(middleware.GetRequestID(c)).ErrorContext(c.Request.Context(),
			"comment request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		response.ServerError(c, "")
	}
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid comment id")
		return 0, false
	}
	return id, true
}
