package messaging

import (
	"context"
	"fmt"

	rediscache "github.com/gpa-hub/gpa-tracker/internal/infrastructure/persistence/redis"
)

// CachePubSub adapts the Redis cache client to RedisClient.
type CachePubSub struct {
	cache *rediscache.Cache
}

// NewCachePubSub creates a RedisClient backed by cache.
func NewCachePubSub(cache *rediscache.Cache) *CachePubSub {
	return &CachePubSub{cache: cache}
}

// Publish publishes message as JSON.
func (p *CachePubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	return p.cache.Publish(ctx, channel, message)
}

// Subscribe subscribes to channels and forwards messages until ctx ends.
func (p *CachePubSub) Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error) {
	ps := p.cache.Subscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %v: %w", channels, err)
	}

	out := make(chan RedisMessage)
	go func() {
		defer close(out)
		defer ps.Close()

		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
