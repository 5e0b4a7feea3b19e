// Package events publishes pipeline domain events on Redis pub/sub. The
// channel is the event type, so gateways subscribe per event kind.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
)

// RedisPublisher implements pipeline.Publisher.
type RedisPublisher struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisPublisher publishes on "<prefix><type>". An empty prefix uses the
// bare event type as channel.
func NewRedisPublisher(rdb *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, prefix: prefix}
}

// Channel returns the channel an event type is published on.
func (p *RedisPublisher) Channel(eventType string) string {
	return p.prefix + eventType
}

func (p *RedisPublisher) Publish(ctx context.Context, e pipeline.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	if err := p.rdb.Publish(ctx, p.Channel(e.Type), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}
