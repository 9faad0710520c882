package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"evade-competitive/internal/logger"
	"evade-competitive/internal/realtime"
)

// PublishTask is a change event waiting to be pushed onto the feed
type PublishTask struct {
	Event realtime.ChangeEvent
}

// Publisher is the part of the feed the pool needs
type Publisher interface {
	Publish(ctx context.Context, event realtime.ChangeEvent) error
}

// WorkerPool publishes change events asynchronously so row writes never wait on the feed
type WorkerPool struct {
	jobs        chan PublishTask
	workerCount int
	publisher   Publisher
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	metrics     *PoolMetrics
	closeOnce   sync.Once
	closed      chan struct{}
}

// PoolMetrics tracks worker pool performance
type PoolMetrics struct {
	mu              sync.RWMutex
	processed       int64
	failed          int64
	backpressure    int64
	totalProcessing time.Duration
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int, publisher Publisher) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		jobs:        make(chan PublishTask, queueSize),
		workerCount: workerCount,
		publisher:   publisher,
		ctx:         ctx,
		cancel:      cancel,
		metrics:     &PoolMetrics{},
		closed:      make(chan struct{}),
	}
}

// Start initializes and starts all worker goroutines
func (wp *WorkerPool) Start() {
	logger.Info("🚀 Starting event worker pool with %d workers and queue size %d", wp.workerCount, cap(wp.jobs))

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case task, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processTask(id, task)
		}
	}
}

// processTask publishes one event; failures are logged, never surfaced
func (wp *WorkerPool) processTask(workerID int, task PublishTask) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Worker #%d PANIC recovered: %v (%s %s)", workerID, r, task.Event.Table, task.Event.Type)
			wp.metrics.incrementFailed()
		}
	}()

	startTime := time.Now()

	ctx, cancel := context.WithTimeout(wp.ctx, 5*time.Second)
	defer cancel()

	err := wp.publisher.Publish(ctx, task.Event)
	processingTime := time.Since(startTime)

	if err != nil {
		logger.Error("Worker #%d failed to publish %s %s: %v (took %v)",
			workerID, task.Event.Table, task.Event.Type, err, processingTime)
		wp.metrics.incrementFailed()
		return
	}

	logger.Debug("Worker #%d published %s %s in %v", workerID, task.Event.Table, task.Event.Type, processingTime)
	wp.metrics.recordSuccess(processingTime)
}

// Submit queues a task, dropping it when the queue is full
func (wp *WorkerPool) Submit(task PublishTask) (err error) {
	select {
	case <-wp.closed:
		return fmt.Errorf("worker pool is shut down")
	default:
	}

	defer func() {
		// Shutdown may close the channel between the check above and the send
		if r := recover(); r != nil {
			err = fmt.Errorf("worker pool is shut down")
		}
	}()

	select {
	case wp.jobs <- task:
		return nil

	default:
		logger.Warning("BACKPRESSURE WARNING: event queue full, dropping %s %s", task.Event.Table, task.Event.Type)
		wp.metrics.incrementBackpressure()
		return fmt.Errorf("worker pool queue full (backpressure)")
	}
}

// Enqueue satisfies the data access layer's event sink
func (wp *WorkerPool) Enqueue(event realtime.ChangeEvent) error {
	return wp.Submit(PublishTask{Event: event})
}

// Shutdown gracefully stops the worker pool
func (wp *WorkerPool) Shutdown(timeout time.Duration) error {
	logger.Info("🛑 Shutting down event worker pool...")

	wp.closeOnce.Do(func() {
		close(wp.closed)
		close(wp.jobs)
	})

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Success("All workers finished publishing remaining events")
		wp.printMetrics()
		return nil

	case <-time.After(timeout):
		wp.cancel()
		logger.Warning("Worker pool shutdown timed out after %v", timeout)
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// GetMetrics returns a snapshot of the pool metrics
func (wp *WorkerPool) GetMetrics() map[string]interface{} {
	wp.metrics.mu.RLock()
	defer wp.metrics.mu.RUnlock()

	avgProcessing := time.Duration(0)
	if wp.metrics.processed > 0 {
		avgProcessing = wp.metrics.totalProcessing / time.Duration(wp.metrics.processed)
	}

	return map[string]interface{}{
		"processed":           wp.metrics.processed,
		"failed":              wp.metrics.failed,
		"backpressure_events": wp.metrics.backpressure,
		"avg_processing_time": avgProcessing.String(),
		"queue_utilization":   fmt.Sprintf("%d/%d", len(wp.jobs), cap(wp.jobs)),
	}
}

func (wp *WorkerPool) printMetrics() {
	metrics := wp.GetMetrics()
	logger.Info("📊 Event Worker Pool Metrics:")
	logger.Info("   - Processed: %v", metrics["processed"])
	logger.Info("   - Failed: %v", metrics["failed"])
	logger.Info("   - Backpressure Events: %v", metrics["backpressure_events"])
	logger.Info("   - Avg Processing Time: %v", metrics["avg_processing_time"])
}

func (pm *PoolMetrics) recordSuccess(duration time.Duration) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.processed++
	pm.totalProcessing += duration
}

func (pm *PoolMetrics) incrementFailed() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failed++
}

func (pm *PoolMetrics) incrementBackpressure() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.backpressure++
}
