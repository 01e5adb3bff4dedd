// Package redisfeed fans document store change notifications out to every
// instance sharing the same database, over a Redis pub/sub channel.
//
// Only collection paths travel on the channel; each instance re-runs its own
// live queries against the database after a notification.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/akinalp/runeshop/pkg/logger"
)

type changeMessage struct {
	Origin      string   `json:"origin"`
	Collections []string `json:"collections"`
}

// Feed publishes and receives change notifications.
type Feed struct {
	client  *redis.Client
	channel string
	origin  string
	log     zerolog.Logger
}

// New creates a feed on channel. Every Feed gets its own origin id so it can
// skip the echo of its own publishes.
func New(client *redis.Client, channel string) *Feed {
	return &Feed{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		log:     logger.Module("redisfeed"),
	}
}

// Publish announces that collections changed.
func (f *Feed) Publish(ctx context.Context, collections []string) error {
	payload, err := json.Marshal(changeMessage{Origin: f.origin, Collections: collections})
	if err != nil {
		return fmt.Errorf("failed to encode change message: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Listen delivers changes published by other instances to apply until ctx
// is cancelled.
func (f *Feed) Listen(ctx context.Context, apply func(collections ...string)) error {
	pubsub := f.client.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	f.log.Info().Str("channel", f.channel).Msg("listening for remote changes")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if collections, ok := f.decode(msg.Payload); ok {
				apply(collections...)
			}
		}
	}
}

// decode parses a payload and drops messages this feed published itself.
func (f *Feed) decode(payload string) ([]string, bool) {
	var m changeMessage
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		f.log.Warn().Err(err).Msg("malformed change message")
		return nil, false
	}
	if m.Origin == f.origin || len(m.Collections) == 0 {
		return nil, false
	}
	return m.Collections, true
}
