package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evade-competitive/internal/api/handlers"
	"evade-competitive/internal/config"
	"evade-competitive/internal/datastore"
	"evade-competitive/internal/jobs"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/repository"
	"evade-competitive/internal/service"
	"evade-competitive/internal/storage"
	"evade-competitive/internal/websocket"
	"evade-competitive/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}

	// Initialize PostgreSQL with connection pooling
	db, err := initPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL: %v", err)
	}
	logger.Success("Connected to PostgreSQL")

	// Initialize Redis
	redisClient, err := initRedis(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Redis: %v", err)
	}
	logger.Success("Connected to Redis")

	// Initialize repositories
	postgresRepo := repository.NewPostgresRepository(db)
	redisRepo := repository.NewRedisRepository(redisClient)
	feed := repository.NewRedisFeed(redisClient)

	// Run migrations
	if err := postgresRepo.AutoMigrate(); err != nil {
		logger.Fatal("Failed to run migrations: %v", err)
	}
	logger.Success("Database migrations completed")

	// Worker pool publishes change events after writes
	workerPool := worker.NewWorkerPool(cfg.Worker.Count, cfg.Worker.QueueSize, feed)
	workerPool.Start()

	store := datastore.New(postgresRepo, redisRepo, feed, workerPool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Services
	players := service.NewPlayerService(store)
	auth := service.NewAuthService(store, cfg.Auth.SessionTTL)
	auth.OnSessionChange(func(change service.SessionChange) {
		logger.Debug("Session %s: %s -> %s", change.PlayerID, change.From, change.To)
	})
	leaderboard := service.NewLeaderboardService(store, redisRepo, feed)
	announcements := service.NewAnnouncementService(store)
	chatService := service.NewChatService(store, feed, players)
	health := service.NewHealthService(redisRepo, postgresRepo)

	if err := leaderboard.Start(ctx); err != nil {
		logger.Fatal("Failed to start leaderboard: %v", err)
	}

	// Scheduled reconcile, announcement publishing and chat resync
	jobManager, err := jobs.NewJobManager(leaderboard, announcements, chatService, jobs.SchedulerConfig{
		ReconcileInterval:    cfg.Jobs.ReconcileInterval,
		AnnouncementInterval: cfg.Jobs.AnnouncementInterval,
		ChatResyncInterval:   cfg.Jobs.ChatResyncInterval,
	})
	if err != nil {
		logger.Fatal("Failed to create job manager: %v", err)
	}
	if err := jobManager.Start(); err != nil {
		logger.Warning("Failed to start jobs: %v", err)
	}

	uploads, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to configure storage: %v", err)
	}

	// Initialize WebSocket Hub
	hub := websocket.NewHub(redisRepo)
	hub.OnUserGone(chatService.Release)
	go hub.Run(ctx)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Evade Competitive",
		ErrorHandler: customErrorHandler,
		BodyLimit:    16 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowedOrigins,
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	handlers.RegisterRoutes(app, handlers.Handlers{
		Auth:        handlers.NewAuthMiddleware(auth, players),
		Session:     handlers.NewAuthHandler(auth),
		Leaderboard: handlers.NewLeaderboardHandler(leaderboard, health, hub),
		Community: handlers.NewCommunityHandler(
			players,
			service.NewClanService(store),
			announcements,
			service.NewSubmissionService(store),
		),
		Admin:   handlers.NewAdminHandler(service.NewAdminService(store), players),
		Chat:    handlers.NewChatHandler(chatService, hub),
		Uploads: handlers.NewUploadHandler(uploads),
	})

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":           "Evade Competitive API",
			"version":           "1.0.0",
			"websocket_clients": hub.GetClientCount(),
			"workers":           workerPool.GetMetrics(),
			"jobs":              jobManager.GetMetrics(),
		})
	})

	// Graceful shutdown with worker pool flushing
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("🛑 Shutting down server...")

		// First, stop scheduled jobs and the recompute loop
		if err := jobManager.Stop(); err != nil {
			logger.Warning("Job manager shutdown error: %v", err)
		}
		leaderboard.Stop()
		chatService.Close()

		// Second, stop accepting new HTTP requests
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown: %v", err)
		}
		cancel()

		// Third, flush pending change events
		logger.Info("🔄 Flushing worker pool (pending change events)...")
		if err := workerPool.Shutdown(30 * time.Second); err != nil {
			logger.Error("Worker pool shutdown error: %v", err)
		}

		// Finally, close database connections
		if err := postgresRepo.Close(); err != nil {
			logger.Error("Error closing PostgreSQL: %v", err)
		}
		if err := redisRepo.Close(); err != nil {
			logger.Error("Error closing Redis: %v", err)
		}

		logger.Success("Server shutdown complete")
	}()

	// Start server
	port := cfg.Server.Port
	logger.Info("🚀 Server starting on port %d...", port)
	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}

// initPostgres initializes PostgreSQL connection with connection pooling
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Get underlying sql.DB for connection pooling
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Max connections should be >= number of workers to prevent blocking
	maxOpen := cfg.Worker.Count + 10
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	logger.Info("PostgreSQL connection pool configured: MaxOpen=%d, MaxIdle=%d", maxOpen, 10)
	return db, nil
}

// initRedis initializes Redis connection with connection pooling
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   "Request failed",
		"message": err.Error(),
	})
}
