package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/natn4y/comment-system-backend/internal/logger"
	"github.com/natn4y/comment-system-backend/internal/metrics"
	"github.com/natn4y/comment-system-backend/internal/pkg/ws"
)

const DefaultChannel = "comment_events"

// Publisher 把评论事件发布到 Redis，所有实例的 Subscriber 都会收到
type Publisher struct {
	client  *redis.Client
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

// Publish 实现 service.Broadcaster
func (p *Publisher) Publish(ctx context.Context, msg *ws.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	metrics.BroadcastMessagesTotal.WithLabelValues(msg.Type).Inc()
	return nil
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client  *redis.Client
	channel string
}

func NewSubscriber(client *redis.Client, channel string) *Subscriber {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Subscriber{client: client, channel: channel}
}

// Subscribe 阻塞直到 ctx 取消。ready 在订阅确认后关闭，可以为 nil。
// handler 收到原始 JSON，格式不对的消息直接丢弃。
func (s *Subscriber) Subscribe(ctx context.Context, ready chan<- struct{}, handler func([]byte)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe %s: %w", s.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var envelope struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil || envelope.Type == "" {
				logger.Warn("ignoring malformed event", "channel", s.channel)
				continue
			}

			handler([]byte(msg.Payload))
		}
	}
}

// Relay 把订阅到的事件转交给本实例的 Hub
func Relay(ctx context.Context, sub *Subscriber, hub *ws.Hub, ready chan<- struct{}) error {
	return sub.Subscribe(ctx, ready, func(data []byte) {
		hub.BroadcastRaw(data)
	})
}
