package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis pub/sub channel shared by all instances
const DefaultChannel = "teamtasks:tasks"

// RedisBroker publishes events through Redis so every instance's local hub
// sees writes made on any instance. Run must be started to relay events.
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   *Hub
	logger  *zap.Logger
}

// NewRedisClient parses url and verifies the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisBroker creates a broker relaying channel into local
func NewRedisBroker(client *redis.Client, local *Hub, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{
		client:  client,
		channel: DefaultChannel,
		local:   local,
		logger:  logger,
	}
}

// Publish sends e to Redis. If Redis is unreachable the event is delivered
// to local subscribers only.
func (b *RedisBroker) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.local.Publish(ctx, e)
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

// Subscribe registers a local subscriber
func (b *RedisBroker) Subscribe() (<-chan Event, func()) {
	return b.local.Subscribe()
}

// Run relays Redis messages into the local hub until ctx is done
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe failed: %w", err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.logger.Warn("dropping malformed task event", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			b.local.Publish(ctx, e)
		}
	}
}
