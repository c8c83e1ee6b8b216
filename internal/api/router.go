package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/natn4y/comment-system-backend/config"
	"github.com/natn4y/comment-system-backend/internal/api/handler"
	"github.com/natn4y/comment-system-backend/internal/api/middleware"
)

type Router struct {
	commentHandler   *handler.CommentHandler
	websocketHandler *handler.WebSocketHandler
	healthHandler    *handler.HealthHandler
	cfg              *config.Config
}

func NewRouter(
	commentHandler *handler.CommentHandler,
	websocketHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		commentHandler:   commentHandler,
		websocketHandler: websocketHandler,
		healthHandler:    healthHandler,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger())
	engine.Use(middleware.Metrics())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", r.healthHandler.Check)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 评论
		comments := api.Group("/comments")
		{
			comments.GET("", r.commentHandler.List)
			comments.POST("", r.commentHandler.Create)
			comments.GET("/:id", r.commentHandler.Get)
			comments.PUT("/:id", r.commentHandler.Edit)
			comments.DELETE("/:id", r.commentHandler.Delete)
			comments.GET("/:id/replies", r.commentHandler.Replies)
			comments.POST("/:id/like", r.commentHandler.ToggleLike)
		}
	}

	return engine
}
