package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"evade-competitive/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

// Refresher recomputes the cached ranking from the store
type Refresher interface {
	Refresh(ctx context.Context) error
}

// AnnouncementPublisher publishes scheduled announcements that are due
type AnnouncementPublisher interface {
	PublishDue(ctx context.Context) (int, error)
}

// ChatResyncer reloads the open chat mirrors from the store
type ChatResyncer interface {
	Resync(ctx context.Context) (int, error)
}

// SchedulerConfig holds job intervals
type SchedulerConfig struct {
	ReconcileInterval    time.Duration // Default: 5m
	AnnouncementInterval time.Duration // Default: 1m
	ChatResyncInterval   time.Duration // Default: 1m
}

// JobManager runs the periodic background jobs
type JobManager struct {
	scheduler     gocron.Scheduler
	leaderboard   Refresher
	announcements AnnouncementPublisher
	chats         ChatResyncer
	config        SchedulerConfig
	running       atomic.Bool
	startTime     time.Time

	// Metrics
	reconcileRuns   atomic.Int64
	reconcileErrors atomic.Int64
	publishRuns     atomic.Int64
	published       atomic.Int64
	publishErrors   atomic.Int64
	resyncRuns      atomic.Int64
	resyncErrors    atomic.Int64
}

// NewJobManager creates a job manager
func NewJobManager(leaderboard Refresher, announcements AnnouncementPublisher, chats ChatResyncer, config SchedulerConfig) (*JobManager, error) {
	// Apply defaults
	if config.ReconcileInterval <= 0 {
		config.ReconcileInterval = 5 * time.Minute
	}
	if config.AnnouncementInterval <= 0 {
		config.AnnouncementInterval = time.Minute
	}
	if config.ChatResyncInterval <= 0 {
		config.ChatResyncInterval = time.Minute
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &JobManager{
		scheduler:     scheduler,
		leaderboard:   leaderboard,
		announcements: announcements,
		chats:         chats,
		config:        config,
	}, nil
}

// Start registers the jobs and starts the scheduler. Each job runs once immediately.
func (jm *JobManager) Start() error {
	if jm.running.Load() {
		return fmt.Errorf("job manager already running")
	}

	if _, err := jm.scheduler.NewJob(
		gocron.DurationJob(jm.config.ReconcileInterval),
		gocron.NewTask(jm.reconcileRanking),
		gocron.WithName("ranking-reconcile"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return fmt.Errorf("failed to schedule ranking reconcile: %w", err)
	}

	if _, err := jm.scheduler.NewJob(
		gocron.DurationJob(jm.config.AnnouncementInterval),
		gocron.NewTask(jm.publishAnnouncements),
		gocron.WithName("announcement-publish"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		return fmt.Errorf("failed to schedule announcement publishing: %w", err)
	}

	// no immediate run: each mirror loads when it opens
	if _, err := jm.scheduler.NewJob(
		gocron.DurationJob(jm.config.ChatResyncInterval),
		gocron.NewTask(jm.resyncChats),
		gocron.WithName("chat-resync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return fmt.Errorf("failed to schedule chat resync: %w", err)
	}

	jm.startTime = time.Now()
	jm.running.Store(true)
	jm.scheduler.Start()

	logger.Info("⏰ Job Manager Started")
	logger.Info("   - Ranking reconcile every %v", jm.config.ReconcileInterval)
	logger.Info("   - Announcement publishing every %v", jm.config.AnnouncementInterval)
	logger.Info("   - Chat resync every %v", jm.config.ChatResyncInterval)
	return nil
}

// Stop waits for running jobs and shuts the scheduler down
func (jm *JobManager) Stop() error {
	if !jm.running.Load() {
		return nil
	}

	logger.Info("⏹️ Stopping Job Manager...")
	jm.running.Store(false)
	if err := jm.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	logger.Success("Job Manager Stopped")
	logger.Info("   - Reconcile runs: %d (errors: %d)", jm.reconcileRuns.Load(), jm.reconcileErrors.Load())
	logger.Info("   - Announcements published: %d", jm.published.Load())
	return nil
}

// IsRunning returns whether the scheduler is running
func (jm *JobManager) IsRunning() bool {
	return jm.running.Load()
}

// GetMetrics returns job counters
func (jm *JobManager) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"running":                 jm.running.Load(),
		"reconcile_runs":          jm.reconcileRuns.Load(),
		"reconcile_errors":        jm.reconcileErrors.Load(),
		"announcement_runs":       jm.publishRuns.Load(),
		"announcements_published": jm.published.Load(),
		"announcement_errors":     jm.publishErrors.Load(),
		"chat_resync_runs":        jm.resyncRuns.Load(),
		"chat_resync_errors":      jm.resyncErrors.Load(),
		"uptime":                  time.Since(jm.startTime).Round(time.Second).String(),
	}
}

// reconcileRanking recomputes the ranking in case a change event was dropped
func (jm *JobManager) reconcileRanking() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	jm.reconcileRuns.Add(1)
	if err := jm.leaderboard.Refresh(ctx); err != nil {
		jm.reconcileErrors.Add(1)
		logger.Error("[Scheduler] Ranking reconcile failed: %v", err)
	}
}

func (jm *JobManager) publishAnnouncements() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	jm.publishRuns.Add(1)
	n, err := jm.announcements.PublishDue(ctx)
	if err != nil {
		jm.publishErrors.Add(1)
		logger.Error("[Scheduler] Announcement publishing failed: %v", err)
		return
	}
	jm.published.Add(int64(n))
}

// resyncChats reloads every open chat mirror in case a change event was dropped
func (jm *JobManager) resyncChats() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	jm.resyncRuns.Add(1)
	n, err := jm.chats.Resync(ctx)
	if err != nil {
		jm.resyncErrors.Add(1)
		logger.Error("[Scheduler] Chat resync failed: %v", err)
		return
	}
	if n > 0 {
		logger.Debug("[Scheduler] Resynced chat for %d users", n)
	}
}
