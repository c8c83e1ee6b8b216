package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/natn4y/comment-system-backend/internal/logger"
	"github.com/natn4y/comment-system-backend/internal/pkg/response"
	"github.com/natn4y/comment-system-backend/internal/pkg/ws"
)

const healthTimeout = 2 * time.Second

type HealthHandler struct {
	db  *gorm.DB
	hub *ws.Hub
}

func NewHealthHandler(db *gorm.DB, hub *ws.Hub) *HealthHandler {
	return &HealthHandler{db: db, hub: hub}
}

// Check 存活检查，同时探测数据库
// GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		logger.Warn("health check failed", "error", err)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, response.ErrorResponse{
			Code:  response.CodeServerError,
			Error: "database unavailable",
		})
		return
	}

	response.Success(c, gin.H{
		"status":      "ok",
		"connections": h.hub.ConnectionCount(),
	})
}

func (h *HealthHandler) ping(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
