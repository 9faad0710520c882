package datastore

import (
	"context"
	"sync"
	"testing"
	"time"

	"evade-competitive/internal/models"
	"evade-competitive/internal/realtime"
	"evade-competitive/internal/worker"

	"github.com/bmizerany/assert"
)

func TestEmitReachesSubscribersThroughPool(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	pool := worker.NewWorkerPool(2, 16, feed)
	pool.Start()

	d := New(nil, nil, feed, pool)

	var mu sync.Mutex
	var got []models.Player
	_, err := d.Subscribe(context.Background(), realtime.TablePlayers, func(e realtime.ChangeEvent) {
		p, err := realtime.DecodeNew[models.Player](e)
		assert.Equal(t, nil, err)
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})
	assert.Equal(t, nil, err)

	d.emit(realtime.TablePlayers, realtime.EventInsert, models.Player{ID: "p1", Username: "runner"}, nil)

	// Shutdown flushes queued events
	assert.Equal(t, nil, pool.Shutdown(time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, len(got))
	assert.Equal(t, "runner", got[0].Username)
}

func TestEmitAfterShutdownIsDropped(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	pool := worker.NewWorkerPool(1, 4, feed)
	pool.Start()
	assert.Equal(t, nil, pool.Shutdown(time.Second))

	d := New(nil, nil, feed, pool)
	// logs a warning, never panics
	d.emit(realtime.TableSettings, realtime.EventUpdate, models.Setting{Key: "k"}, nil)
	assert.Equal(t, int64(0), pool.GetMetrics()["processed"])
}
