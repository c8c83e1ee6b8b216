package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/natn4y/comment-system-backend/config"
	"github.com/natn4y/comment-system-backend/internal/logger"
	"github.com/natn4y/comment-system-backend/internal/model/dto"
	"github.com/natn4y/comment-system-backend/internal/pkg/ws"
	"github.com/natn4y/comment-system-backend/internal/service"
)

const deleteFailedMessage = "failed to delete comment"

// inboundMessage 客户端发来的消息，data 按 type 延迟解析
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type WebSocketHandler struct {
	hub            *ws.Hub
	commentService *service.CommentService
	broadcaster    service.Broadcaster
	cfg            config.WebSocketConfig
	upgrader       websocket.Upgrader
}

// NewWebSocketHandler broadcaster 为 nil 时错误事件只在本实例广播
func NewWebSocketHandler(hub *ws.Hub, commentService *service.CommentService, broadcaster service.Broadcaster, cfg *config.Config) *WebSocketHandler {
	if broadcaster == nil {
		broadcaster = hub
	}
	return &WebSocketHandler{
		hub:            hub,
		commentService: commentService,
		broadcaster:    broadcaster,
		cfg:            cfg.WebSocket,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin(cfg.CORS.AllowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handle WebSocket 连接处理
// GET /api/v1/ws
func (h *WebSocketHandler) Handle(c *gin.Context) {
	// 升级失败时 upgrader 已经写回了 HTTP 错误
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("failed to upgrade connection", "error", err)
		return
	}

	client := ws.NewClient(conn, h.cfg.SendBuffer)
	h.hub.Register(client)

	go client.WritePump(h.cfg.WriteTimeout, h.cfg.PingPeriod)
	go h.readLoop(client)
}

// readLoop 读取并处理客户端消息，连接断开后注销会话
func (h *WebSocketHandler) readLoop(client *ws.Client) {
	defer h.hub.Unregister(client)

	log := logger.WithSession(client.ID)
	conn := client.Conn

	if h.cfg.ReadLimit > 0 {
		conn.SetReadLimit(h.cfg.ReadLimit)
	}
	if h.cfg.PongTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", "error", err)
			}
			return
		}
		// 客户端有消息也算存活
		if h.cfg.PongTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		}
		h.dispatch(log, client, data)
	}
}

// dispatch 处理单条消息。失败只回复发起方；删除的存储失败额外广播错误事件。
func (h *WebSocketHandler) dispatch(log *slog.Logger, client *ws.Client, data []byte) {
	var msg inboundMessage
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling websocket message", "type", msg.Type, "panic", r)
			h.reply(log, client, msg.Type, "internal error")
		}
	}()

	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn("malformed websocket message", "error", err)
		h.reply(log, client, "", "malformed message")
		return
	}

	ctx := context.Background()
	if h.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.OperationTimeout)
		defer cancel()
	}

	var err error
	switch msg.Type {
	case service.OpCreate:
		var req dto.CreateCommentRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = h.commentService.Create(ctx, &req)
		}
	case service.OpEdit:
		var req dto.EditCommentRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = h.commentService.Edit(ctx, req.ID, &req)
		}
	case service.OpToggleLike:
		var req dto.CommentIDRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = h.commentService.ToggleLike(ctx, req.ID)
		}
	case service.OpDelete:
		var req dto.CommentIDRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = h.commentService.Delete(ctx, req.ID)
			if errors.Is(err, service.ErrStorage) {
				h.broadcastError(ctx, log, service.OpDelete, deleteFailedMessage)
			}
		}
	default:
		log.Warn("unknown websocket message type", "type", msg.Type)
		h.reply(log, client, msg.Type, "unknown message type")
		return
	}

	if err != nil {
		log.Warn("websocket operation failed", "type", msg.Type, "error", err)
		h.reply(log, client, msg.Type, clientError(err))
	}
}

func (h *WebSocketHandler) reply(log *slog.Logger, client *ws.Client, operation, message string) {
	err := h.hub.SendTo(client, &ws.Message{
		Type: ws.TypeError,
		Data: dto.OperationError{Operation: operation, Error: message},
	})
	if err != nil {
		log.Error("failed to send error reply", "error", err)
	}
}

func (h *WebSocketHandler) broadcastError(ctx context.Context, log *slog.Logger, operation, message string) {
	err := h.broadcaster.Publish(ctx, &ws.Message{
		Type: ws.TypeError,
		Data: dto.OperationError{Operation: operation, Error: message},
	})
	if err != nil {
		log.Error("failed to broadcast error event", "operation", operation, "error", err)
	}
}

// decode 缺省的 data 按空对象处理，交给校验报错
func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errInvalidPayload
	}
	return nil
}

var errInvalidPayload = errors.New("invalid payload")

// clientError 存储错误不向客户端暴露细节
func clientError(err error) string {
	switch {
	case errors.Is(err, errInvalidPayload), errors.Is(err, service.ErrInvalidComment):
		return err.Error()
	case errors.Is(err, service.ErrCommentNotFound):
		return service.ErrCommentNotFound.Error()
	default:
		return "internal error"
	}
}

// checkOrigin 未配置或包含 "*" 时放行所有来源
func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || len(allowed) == 0 || allowed[origin]
	}
}
