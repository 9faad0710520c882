package realtime

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryFeed delivers events synchronously inside Publish. It serves tests and
// single-process deployments without Redis.
type MemoryFeed struct {
	mu       sync.RWMutex
	nextID   atomic.Int64
	handlers map[Table]map[int64]Handler
}

// NewMemoryFeed creates an empty feed
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		handlers: make(map[Table]map[int64]Handler),
	}
}

// Publish calls every handler subscribed to the event's table
func (f *MemoryFeed) Publish(ctx context.Context, event ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.RLock()
	targets := make([]Handler, 0, len(f.handlers[event.Table]))
	for _, h := range f.handlers[event.Table] {
		targets = append(targets, h)
	}
	f.mu.RUnlock()

	for _, h := range targets {
		h(event)
	}
	return nil
}

// Subscribe registers handler for table
func (f *MemoryFeed) Subscribe(ctx context.Context, table Table, handler Handler) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := f.nextID.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handlers[table] == nil {
		f.handlers[table] = make(map[int64]Handler)
	}
	f.handlers[table][id] = handler

	return &memorySubscription{feed: f, table: table, id: id}, nil
}

// SubscriberCount reports live subscriptions for table
func (f *MemoryFeed) SubscriberCount(table Table) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.handlers[table])
}

type memorySubscription struct {
	feed  *MemoryFeed
	table Table
	id    int64
	once  sync.Once
}

func (s *memorySubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		delete(s.feed.handlers[s.table], s.id)
	})
	return nil
}
