package realtime

import (
	"context"
	"sync"

	"evade-competitive/internal/logger"
)

// Registry keeps at most one live subscription per table for a session.
// Subscribing again to a table tears the previous subscription down first.
type Registry struct {
	feed Feed
	mu   sync.Mutex
	subs map[Table]Subscription
}

// NewRegistry creates a registry over feed
func NewRegistry(feed Feed) *Registry {
	return &Registry{
		feed: feed,
		subs: make(map[Table]Subscription),
	}
}

// Subscribe replaces any existing subscription for table
func (r *Registry) Subscribe(ctx context.Context, table Table, handler Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.subs[table]; ok {
		if err := existing.Unsubscribe(); err != nil {
			logger.Warning("Failed to tear down %s subscription: %v", table, err)
		}
		delete(r.subs, table)
	}

	sub, err := r.feed.Subscribe(ctx, table, handler)
	if err != nil {
		return err
	}
	r.subs[table] = sub
	return nil
}

// Unsubscribe drops the subscription for table if any
func (r *Registry) Unsubscribe(table Table) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subs[table]; ok {
		if err := sub.Unsubscribe(); err != nil {
			logger.Warning("Failed to unsubscribe from %s: %v", table, err)
		}
		delete(r.subs, table)
	}
}

// Active reports whether table has a live subscription
func (r *Registry) Active(table Table) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[table]
	return ok
}

// Close drops every subscription
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for table, sub := range r.subs {
		if err := sub.Unsubscribe(); err != nil {
			logger.Warning("Failed to unsubscribe from %s: %v", table, err)
		}
	}
	r.subs = make(map[Table]Subscription)
}
