package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"evade-competitive/internal/config"
	"evade-competitive/internal/datastore"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"
	"evade-competitive/internal/ranking"
	"evade-competitive/internal/repository"
	"evade-competitive/internal/service"
	"evade-competitive/internal/worker"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	TotalPlayers   = 500
	BatchSize      = 500
	UsernamePrefix = "runner_"
	AdminUsername  = "admin"
	AdminEmail     = "admin@evade.local"

	// Chance that a player holds a record of a given type, and that it is verified
	recordChance   = 0.35
	verifiedChance = 0.9
)

// seedTypes pairs each record type with a plausible value range
var seedTypes = []struct {
	name     string
	min, max float64
}{
	{"Speed-Normal-Facility", 30, 240},
	{"Speed-Hard-Facility", 60, 420},
	{"Speed-Normal-Maze", 45, 300},
	{"Economy-Points", 1000, 250000},
	{"Economy-Tokens", 50, 20000},
	{"Cosmetics-Collected", 1, 180},
	{ranking.LongestSurvivalType, 60, 3600},
}

func main() {
	logger.Info("🌱 Starting seeder for Evade Competitive...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}

	// Initialize PostgreSQL
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

	// Writes below publish change events so a running server picks them up
	pool := worker.NewWorkerPool(4, 256, feed)
	pool.Start()
	store := datastore.New(postgresRepo, redisRepo, feed, pool)

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	staffBadge, err := seedCatalog(ctx, store)
	if err != nil {
		logger.Fatal("Failed to seed badges and color tags: %v", err)
	}

	logger.Info("🌱 Generating %d players...", TotalPlayers)
	players := generatePlayers(rng, TotalPlayers)
	players[0].Username = AdminUsername
	players[0].DisplayName = "Admin"
	players[0].BadgeIDs = datatypes.JSONSlice[string]{staffBadge.ID}

	if err := seedPlayers(ctx, postgresRepo, players); err != nil {
		logger.Fatal("Failed to seed players: %v", err)
	}
	if err := seedAdminAccount(ctx, store, players[0].ID); err != nil {
		logger.Fatal("Failed to seed admin account: %v", err)
	}

	records := generateRecords(rng, players)
	if err := seedRecords(ctx, postgresRepo, records); err != nil {
		logger.Fatal("Failed to seed records: %v", err)
	}

	admin := service.NewAdminService(store)
	if _, err := admin.SetWeights(ctx, models.WeightsRequest{Speed: 50, Economy: 30, Cosmetics: 20}); err != nil {
		logger.Fatal("Failed to seed weights: %v", err)
	}

	// Populate the cached ranking
	leaderboard := service.NewLeaderboardService(store, redisRepo, feed)
	if err := leaderboard.Refresh(ctx); err != nil {
		logger.Fatal("Failed to build leaderboard: %v", err)
	}

	total, err := redisRepo.GetTotalPlayers(ctx)
	if err != nil {
		logger.Fatal("Failed to verify Redis: %v", err)
	}

	logger.Success("Seeding completed successfully!")
	logger.Info("   - PostgreSQL: %d players, %d records", len(players), len(records))
	logger.Info("   - Redis: %d ranked players", total)

	// Show sample of top 10
	logger.Info("📊 Top 10 Players:")
	top, err := leaderboard.GetLeaderboard(ctx, 0, 10)
	if err != nil {
		logger.Fatal("Failed to get top players: %v", err)
	}
	for _, entry := range top.Data {
		logger.Info("   %d. %s - Score: %.2f", entry.Rank, entry.DisplayName, entry.Score)
	}

	if err := pool.Shutdown(10 * time.Second); err != nil {
		logger.Warning("Worker pool shutdown error: %v", err)
	}
	postgresRepo.Close()
	redisRepo.Close()

	logger.Success("Seeder finished!")
}

// seedCatalog creates the badges and color tags and returns the staff badge
func seedCatalog(ctx context.Context, store *datastore.DataAccess) (*models.Badge, error) {
	staff := &models.Badge{Name: "Staff", Description: "Community staff", IsStaff: true}
	badges := []*models.Badge{
		staff,
		{Name: "World Record Holder", Description: "Held a verified world record"},
		{Name: "Veteran", Description: "Played since the first season"},
	}
	for _, b := range badges {
		if err := store.CreateBadge(ctx, b); err != nil {
			return nil, fmt.Errorf("badge %s: %w", b.Name, err)
		}
	}

	tags := []models.UsernameColorTag{
		{Name: "Crimson", Color: "#dc2626"},
		{Name: "Ocean", Color: "#0284c7"},
		{Name: "Gold", Color: "#ca8a04"},
	}
	for i := range tags {
		if err := store.CreateColorTag(ctx, &tags[i]); err != nil {
			return nil, fmt.Errorf("color tag %s: %w", tags[i].Name, err)
		}
	}

	logger.Success("Inserted %d badges and %d color tags", len(badges), len(tags))
	return staff, nil
}

// generatePlayers creates players with random stats
func generatePlayers(rng *rand.Rand, count int) []models.Player {
	players := make([]models.Player, count)
	for i := 0; i < count; i++ {
		username := fmt.Sprintf("%s%d", UsernamePrefix, i+1)
		players[i] = models.Player{
			ID:          uuid.NewString(),
			Username:    username,
			DisplayName: username,
			Tier:        models.Tiers[rng.Intn(len(models.Tiers))],
			IsVerified:  rng.Float64() < 0.5,
			Stats: datatypes.NewJSONType(models.PlayerStats{
				"Economy": {"Points": float64(rng.Intn(100000))},
				"Speed":   {"Runs": float64(rng.Intn(500))},
			}),
		}
	}
	return players
}

// generateRecords gives each player a random subset of record types
func generateRecords(rng *rand.Rand, players []models.Player) []models.WorldRecord {
	var records []models.WorldRecord
	now := time.Now().UTC()
	for _, p := range players {
		for _, t := range seedTypes {
			if rng.Float64() >= recordChance {
				continue
			}
			value := t.min + rng.Float64()*(t.max-t.min)
			records = append(records, models.WorldRecord{
				ID:         uuid.NewString(),
				PlayerID:   p.ID,
				Type:       t.name,
				Value:      float64(int(value*100)) / 100,
				Timestamp:  now.Add(-time.Duration(rng.Intn(90*24)) * time.Hour),
				IsVerified: rng.Float64() < verifiedChance,
			})
		}
	}
	return records
}

// seedPlayers inserts players into PostgreSQL in batches
func seedPlayers(ctx context.Context, repo *repository.PostgresRepository, players []models.Player) error {
	startTime := time.Now()

	if err := repo.BulkInsertPlayers(ctx, players, BatchSize); err != nil {
		return fmt.Errorf("bulk insert failed: %w", err)
	}

	duration := time.Since(startTime)
	logger.Success("Inserted %d players in %v (%.0f players/sec)",
		len(players), duration, float64(len(players))/duration.Seconds())
	return nil
}

// seedRecords inserts world records into PostgreSQL in batches
func seedRecords(ctx context.Context, repo *repository.PostgresRepository, records []models.WorldRecord) error {
	startTime := time.Now()

	if err := repo.BulkInsertRecords(ctx, records, BatchSize); err != nil {
		return fmt.Errorf("bulk insert failed: %w", err)
	}

	logger.Success("Inserted %d world records in %v", len(records), time.Since(startTime))
	return nil
}

// seedAdminAccount lets the admin sign in with SEED_ADMIN_PASSWORD
func seedAdminAccount(ctx context.Context, store *datastore.DataAccess, playerID string) error {
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "changeme123"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	account := &models.Account{ID: playerID, Email: AdminEmail, PasswordHash: string(hash)}
	if err := store.CreateAccount(ctx, account); err != nil {
		return err
	}
	logger.Success("Admin account %s ready", AdminEmail)
	return nil
}

// initPostgres initializes PostgreSQL connection
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Configure connection pool for bulk operations
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// initRedis initializes Redis connection
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     50,
		MinIdleConns: 10,
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
