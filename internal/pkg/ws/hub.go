package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/natn4y/comment-system-backend/internal/logger"
	"github.com/natn4y/comment-system-backend/internal/metrics"
)

// 广播事件类型
const (
	TypeCommentCreated = "comment_created"
	TypeCommentUpdated = "comment_updated"
	TypeLikeChanged    = "like_changed"
	TypeCommentDeleted = "comment_deleted"
	TypeError          = "error"
)

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub 保存当前在线的会话。
// 广播只做非阻塞入队，慢连接的队列满了就丢弃该连接的这条消息，不影响其他连接。
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketSessions.Inc()
	logger.Info("websocket session connected", "session_id", client.ID, "total", total)
}

// Unregister 可重复调用，发送队列只会被关闭一次
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		client.closeSend()
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.WebSocketSessions.Dec()
		logger.Info("websocket session disconnected", "session_id", client.ID, "total", total)
	}
}

// Broadcast 序列化一次后投递给所有会话，包括发起方
func (h *Hub) Broadcast(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	metrics.BroadcastMessagesTotal.WithLabelValues(msg.Type).Inc()
	h.BroadcastRaw(data)
	return nil
}

// BroadcastRaw 投递已序列化的消息，返回成功入队的会话数
func (h *Hub) BroadcastRaw(data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients {
		if client.enqueue(data) {
			delivered++
			continue
		}
		metrics.BroadcastDroppedTotal.Inc()
		logger.Warn("websocket send queue full, dropping message", "session_id", client.ID)
	}
	return delivered
}

// Publish 实现 service.Broadcaster，单实例部署时直接使用 Hub
func (h *Hub) Publish(_ context.Context, msg *Message) error {
	return h.Broadcast(msg)
}

// SendTo 只发给一个会话，用于回复请求方。会话已断开时静默忽略。
func (h *Hub) SendTo(client *Client, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client]; !ok {
		return nil
	}
	if !client.enqueue(data) {
		metrics.BroadcastDroppedTotal.Inc()
		logger.Warn("websocket send queue full, dropping reply", "session_id", client.ID)
	}
	return nil
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close 注销所有会话，写协程随后关闭各自的连接
func (h *Hub) Close() {
	h.mu.Lock()
	closed := len(h.clients)
	for client := range h.clients {
		client.closeSend()
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WebSocketSessions.Sub(float64(closed))
}
