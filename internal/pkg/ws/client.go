package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/natn4y/comment-system-backend/internal/logger"
)

const defaultPingPeriod = 54 * time.Second

// Client 一个 websocket 会话。只有 WritePump 写连接，读由网关负责。
type Client struct {
	ID   string
	Conn *websocket.Conn

	send      chan []byte
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, sendBuffer int) *Client {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	return &Client{
		ID:   uuid.New().String(),
		Conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// Messages 待写出的消息队列，注销后关闭
func (c *Client) Messages() <-chan []byte {
	return c.send
}

// enqueue 非阻塞入队，队列满时返回 false。调用方需持有 Hub 的读锁。
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// WritePump 把队列中的消息写到连接上，并定期发送 ping。
// 队列关闭或写失败时关闭连接，使读循环退出。
func (c *Client) WritePump(writeTimeout, pingPeriod time.Duration) {
	if pingPeriod <= 0 {
		pingPeriod = defaultPingPeriod
	}
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Warn("websocket write failed", "session_id", c.ID, "error", err)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
