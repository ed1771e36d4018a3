package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel used when none is configured.
const DefaultChannel = "students:snapshots"

// RedisPublisher publishes snapshots as JSON on a Redis channel, so that
// every server instance running a RedisRelay sees them.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, b).Err()
}

// RedisRelay forwards snapshots received on a Redis channel into a Hub.
type RedisRelay struct {
	sub *redis.PubSub
	hub *Hub
}

// NewRedisRelay subscribes to channel and waits for Redis to confirm the
// subscription, so no snapshot published afterwards is missed.
func NewRedisRelay(ctx context.Context, client *redis.Client, channel string, hub *Hub) (*RedisRelay, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return &RedisRelay{sub: sub, hub: hub}, nil
}

// Run relays messages until ctx is done, then closes the subscription.
func (r *RedisRelay) Run(ctx context.Context) {
	defer r.sub.Close()
	msgs := r.sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var snap Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
				slog.Warn("dropping malformed snapshot",
					slog.String("channel", msg.Channel),
					slog.String("error", err.Error()))
				continue
			}
			_ = r.hub.Publish(ctx, snap)
		}
	}
}
