package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSender publishes notifications on a per-player pub/sub channel. The push
// gateway in front of the clients subscribes to these channels.
type RedisSender struct {
	client *redis.Client
	prefix string
}

func NewRedisSender(client *redis.Client, channelPrefix string) *RedisSender {
	return &RedisSender{client: client, prefix: channelPrefix}
}

func (s *RedisSender) Channel(n Notification) string {
	return s.prefix + n.PlayerID.String()
}

func (s *RedisSender) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	channel := s.Channel(n)
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}
