package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes events as JSON envelopes on a single channel.
// Real-time fan-out to connected clients happens downstream.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

type envelope struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

func NewRedisNotifier(redisURL, channel string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisNotifier{client: client, channel: channel}, nil
}

// Notify publishes the event. Failures are logged, never surfaced: a dropped
// event must not fail the operation that produced it.
func (n *RedisNotifier) Notify(ctx context.Context, event string, payload any) {
	blob, err := json.Marshal(envelope{Event: event, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		log.Printf("notify: marshal %s: %v", event, err)
		return
	}
	if err := n.client.Publish(ctx, n.channel, blob).Err(); err != nil {
		log.Printf("notify: publish %s: %v", event, err)
	}
}

func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
