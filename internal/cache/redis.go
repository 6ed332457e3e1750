// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/primepickle/courtside/internal/lobby"
	"github.com/primepickle/courtside/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultChannel is the Redis pub/sub channel lobby events are relayed on.
const DefaultChannel = "courtside:lobby_events"

// ConnectRedis opens a client against addr and verifies it with a PING.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publisher relays lobby events to every instance subscribed to the channel.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

var _ lobby.Notifier = (*Publisher)(nil)

// NewPublisher returns a Publisher on channel, or DefaultChannel if empty.
func NewPublisher(rdb *redis.Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{rdb: rdb, channel: channel}
}

// Publish serializes ev to JSON and publishes it on the channel.
func (p *Publisher) Publish(ctx context.Context, ev models.LobbyEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal LobbyEvent: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel '%s': %w", p.channel, err)
	}
	return nil
}

// Forward subscribes to the channel and hands every event to dst until ctx is done.
// Malformed payloads are logged and skipped.
func (p *Publisher) Forward(ctx context.Context, dst lobby.Notifier, logger *logrus.Logger) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed so no event published after
	// Forward starts is missed
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to Redis channel '%s': %w", p.channel, err)
	}
	logger.WithField("channel", p.channel).Info("relaying lobby events from Redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription to '%s' closed", p.channel)
			}
			var ev models.LobbyEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.WithField("channel", p.channel).Warnf("dropping malformed lobby event: %v", err)
				continue
			}
			if err := dst.Publish(ctx, ev); err != nil {
				logger.WithField("lobby_id", ev.LobbyID).Warnf("failed to forward lobby event: %v", err)
			}
		}
	}
}
