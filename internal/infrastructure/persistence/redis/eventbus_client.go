package redis

import (
	"context"

	"github.com/leadpath/leadpath-engine/internal/infrastructure/messaging"
)

// EventBusClient adapts the generic Cache to the messaging.RedisClient
// interface so the distributed event bus can ride on the same
// connection pool as the preferences cache.
type EventBusClient struct {
	cache *Cache
}

// NewEventBusClient creates a new EventBusClient.
func NewEventBusClient(cache *Cache) *EventBusClient {
	return &EventBusClient{cache: cache}
}

// Publish publishes a message to a channel.
func (c *EventBusClient) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.cache.Publish(ctx, channel, message)
}

// Subscribe subscribes to channels and forwards messages until the
// context is cancelled.
func (c *EventBusClient) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	pubsub := c.cache.Subscribe(ctx, channels...)

	// Confirm the subscription before returning.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan messaging.RedisMessage)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				out <- messaging.RedisMessage{
					Channel: msg.Channel,
					Payload: msg.Payload,
				}
			}
		}
	}()

	return out, nil
}

// Close closes the underlying connection.
func (c *EventBusClient) Close() error {
	return c.cache.Close()
}
