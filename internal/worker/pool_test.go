package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"evade-competitive/internal/realtime"

	"github.com/bmizerany/assert"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.ChangeEvent
	fail   bool
	block  chan struct{}
}

func (p *recordingPublisher) Publish(ctx context.Context, event realtime.ChangeEvent) error {
	if p.block != nil {
		<-p.block
	}
	if p.fail {
		return errors.New("feed down")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestPoolPublishesAndFlushesOnShutdown(t *testing.T) {
	pub := &recordingPublisher{}
	pool := NewWorkerPool(3, 50, pub)
	pool.Start()

	for i := 0; i < 20; i++ {
		assert.Equal(t, nil, pool.Enqueue(realtime.ChangeEvent{Table: realtime.TableMessages, Type: realtime.EventInsert}))
	}

	assert.Equal(t, nil, pool.Shutdown(5*time.Second))
	assert.Equal(t, 20, pub.count())
	assert.Equal(t, int64(20), pool.GetMetrics()["processed"])

	assert.NotEqual(t, nil, pool.Enqueue(realtime.ChangeEvent{Table: realtime.TableMessages}))
}

func TestPoolBackpressureDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	// not started: nothing drains the queue
	pool := NewWorkerPool(1, 2, pub)

	assert.Equal(t, nil, pool.Enqueue(realtime.ChangeEvent{Table: realtime.TablePlayers}))
	assert.Equal(t, nil, pool.Enqueue(realtime.ChangeEvent{Table: realtime.TablePlayers}))
	assert.NotEqual(t, nil, pool.Enqueue(realtime.ChangeEvent{Table: realtime.TablePlayers}))
	assert.Equal(t, int64(1), pool.GetMetrics()["backpressure_events"])
}

func TestPoolCountsFailures(t *testing.T) {
	pub := &recordingPublisher{fail: true}
	pool := NewWorkerPool(1, 5, pub)
	pool.Start()

	assert.Equal(t, nil, pool.Enqueue(realtime.ChangeEvent{Table: realtime.TableSettings}))
	assert.Equal(t, nil, pool.Shutdown(5*time.Second))
	assert.Equal(t, int64(1), pool.GetMetrics()["failed"])
}
