package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"evade-competitive/internal/logger"
	"evade-competitive/internal/realtime"

	"github.com/redis/go-redis/v9"
)

const feedChannelPrefix = "realtime:"

// FeedChannel is the pub/sub channel carrying table's change events
func FeedChannel(table realtime.Table) string {
	return feedChannelPrefix + string(table)
}

// RedisFeed is the change feed over Redis pub/sub. Delivery is at-most-once per
// subscriber connection; consumers treat events as unordered.
type RedisFeed struct {
	client *redis.Client
}

// NewRedisFeed creates a feed on client
func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

// Publish sends event to its table channel
func (f *RedisFeed) Publish(ctx context.Context, event realtime.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	return f.client.Publish(ctx, FeedChannel(event.Table), payload).Err()
}

// Subscribe starts a goroutine delivering table events to handler until Unsubscribe
func (f *RedisFeed) Subscribe(ctx context.Context, table realtime.Table, handler realtime.Handler) (realtime.Subscription, error) {
	pubsub := f.client.Subscribe(ctx, FeedChannel(table))

	// Wait for the subscription confirmation so no event published after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", table, err)
	}

	sub := &redisSubscription{pubsub: pubsub}
	go sub.run(table, handler)

	logger.Debug("Subscribed to %s change feed", table)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	once   sync.Once
}

func (s *redisSubscription) run(table realtime.Table, handler realtime.Handler) {
	for msg := range s.pubsub.Channel() {
		var event realtime.ChangeEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logger.Warning("Dropping malformed %s change event: %v", table, err)
			continue
		}
		s.deliver(table, handler, event)
	}
}

func (s *redisSubscription) deliver(table realtime.Table, handler realtime.Handler, event realtime.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Change handler for %s panicked: %v", table, r)
		}
	}()
	handler(event)
}

// Unsubscribe closes the pub/sub connection. The delivery goroutine drains and exits on its own,
// so calling this from inside a handler is safe.
func (s *redisSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.pubsub.Close()
	})
	return err
}
