package changebus

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBridge mirrors hub events across API instances over redis pub/sub.
// Outgoing events are queued and published by Run; incoming events from
// other origins are delivered into the local hub.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	out     chan Event
}

func NewRedisBridge(rdb *redis.Client, channel string, hub *Hub) *RedisBridge {
	b := &RedisBridge{rdb: rdb, channel: channel, hub: hub, out: make(chan Event, 256)}
	hub.SetRelay(b.enqueue)
	return b
}

func (b *RedisBridge) enqueue(e Event) {
	select {
	case b.out <- e:
	default:
		log.Warn().Str("topic", string(e.Topic)).Msg("changebus: bridge queue full, event not relayed")
	}
}

// Run publishes and consumes until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for subscription confirmation before relaying.
	if _, err := sub.Receive(ctx); err != nil {
		log.Error().Err(err).Str("channel", b.channel).Msg("changebus: subscribe failed")
		return
	}
	log.Info().Str("channel", b.channel).Str("origin", b.hub.Origin()).Msg("changebus: redis bridge started")

	in := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("changebus: redis bridge stopped")
			return
		case e := <-b.out:
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
				log.Warn().Err(err).Msg("changebus: publish failed")
			}
		case msg, ok := <-in:
			if !ok {
				return
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				log.Warn().Err(err).Msg("changebus: bad payload")
				continue
			}
			b.hub.Deliver(e)
		}
	}
}
