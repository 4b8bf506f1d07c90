// Package notify fans market events out to external observers.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"gamekey-market-api/internal/events"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes market events as JSON to a Redis channel so
// out-of-process observers (frontends, indexers) can follow sales.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher for the given channel.
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Attach subscribes the publisher to every market event type.
func (p *RedisPublisher) Attach(emitter *events.Emitter) {
	forward := func(ev events.Event) {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("[notify] failed to encode event %s: %v", ev.Type, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
			log.Printf("[notify] failed to publish event %s: %v", ev.Type, err)
		}
	}

	for _, typ := range []events.EventType{
		events.EventKeyListed,
		events.EventListingUpdated,
		events.EventListingCancelled,
		events.EventKeySold,
		events.EventPayoutSent,
		events.EventPayoutFailed,
	} {
		emitter.Subscribe(typ, forward)
	}
}
