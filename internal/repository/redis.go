package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/ranking"

	"github.com/redis/go-redis/v9"
)

const (
	// LeaderboardKey is the sorted set holding the current overall ranking
	LeaderboardKey = "leaderboard:ranking"

	// MetadataKey is the hash of player id -> cached entry (display name, score)
	MetadataKey = "leaderboard:metadata"

	// VersionKey tracks the global leaderboard version for efficient change detection
	VersionKey = "leaderboard:version"

	sessionKeyPrefix = "session:"

	// GetTopPlayers gives up after this many reads interrupted by a rewrite
	maxPageReadAttempts = 3
)

// CachedEntry is one player's row in the cached ranking
type CachedEntry struct {
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// RedisRepository handles all Redis operations
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a new Redis repository
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{
		client: client,
	}
}

// Client exposes the underlying connection for the change feed
func (r *RedisRepository) Client() *redis.Client {
	return r.client
}

// PositionScore maps a 0-based position in an ordering of n entries to a sorted set score.
// The aggregator already resolved ties, so the set stores order, not points:
// position 0 gets n, the last entry gets 1, and ZREVRANGE returns the ranking as computed.
func PositionScore(position, n int) float64 {
	return float64(n - position)
}

// StoreRanking replaces the cached ranking with scores, in order, and bumps the version.
// Runs as a MULTI/EXEC transaction so readers never observe a half-written ranking.
func (r *RedisRepository) StoreRanking(ctx context.Context, scores []ranking.Score) error {
	pipe := r.client.TxPipeline()

	pipe.Del(ctx, LeaderboardKey, MetadataKey)

	if len(scores) > 0 {
		members := make([]redis.Z, 0, len(scores))
		fields := make([]interface{}, 0, len(scores)*2)

		for i, s := range scores {
			members = append(members, redis.Z{
				Score:  PositionScore(i, len(scores)),
				Member: s.PlayerID,
			})

			raw, err := json.Marshal(CachedEntry{PlayerID: s.PlayerID, DisplayName: s.DisplayName, Score: s.Score})
			if err != nil {
				return fmt.Errorf("failed to encode cached entry: %w", err)
			}
			fields = append(fields, s.PlayerID, raw)
		}

		pipe.ZAdd(ctx, LeaderboardKey, members...)
		pipe.HSet(ctx, MetadataKey, fields...)
	}

	// Increment version once for the entire ranking
	pipe.Incr(ctx, VersionKey)

	_, err := pipe.Exec(ctx)
	return err
}

// GetTopPlayers retrieves a page of the cached ranking. The ids and their metadata are
// read under WATCH and the read retries if StoreRanking rewrites the ranking in between.
func (r *RedisRepository) GetTopPlayers(ctx context.Context, offset, limit int) ([]CachedEntry, error) {
	start := int64(offset)
	stop := int64(offset + limit - 1)

	var entries []CachedEntry
	read := func(tx *redis.Tx) error {
		ids, err := tx.ZRevRange(ctx, LeaderboardKey, start, stop).Result()
		if err != nil {
			return err
		}

		var results []interface{}
		if len(ids) > 0 {
			if results, err = tx.HMGet(ctx, MetadataKey, ids...).Result(); err != nil {
				return err
			}
		}

		// EXEC aborts if either key changed since WATCH
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Exists(ctx, LeaderboardKey)
			return nil
		}); err != nil {
			return err
		}

		entries = pageEntries(ids, results)
		return nil
	}

	for attempt := 0; attempt < maxPageReadAttempts; attempt++ {
		err := r.client.Watch(ctx, read, LeaderboardKey, MetadataKey)
		if err == nil {
			return entries, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("ranking changed during %d consecutive page reads", maxPageReadAttempts)
}

// pageEntries pairs ZREVRANGE ids with their HMGET results. An id without readable
// metadata keeps its slot with the id alone so positions stay aligned with ranks.
func pageEntries(ids []string, results []interface{}) []CachedEntry {
	entries := make([]CachedEntry, len(ids))
	for i, id := range ids {
		entries[i].PlayerID = id
		if i >= len(results) {
			continue
		}
		if entry, ok := decodeEntry(results[i]); ok {
			entries[i] = entry
		}
	}
	return entries
}

func decodeEntry(result interface{}) (CachedEntry, bool) {
	var entry CachedEntry
	raw, ok := result.(string)
	if !ok {
		return entry, false
	}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return entry, false
	}
	return entry, true
}

// GetEntries retrieves cached entries for multiple players using HMGET.
// Players missing from the cache are skipped.
func (r *RedisRepository) GetEntries(ctx context.Context, playerIDs []string) ([]CachedEntry, error) {
	results, err := r.client.HMGet(ctx, MetadataKey, playerIDs...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]CachedEntry, 0, len(playerIDs))
	for _, result := range results {
		if entry, ok := decodeEntry(result); ok {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// GetPlayerRank returns a player's 1-based position in the cached ranking
func (r *RedisRepository) GetPlayerRank(ctx context.Context, playerID string) (int, error) {
	rank, err := r.client.ZRevRank(ctx, LeaderboardKey, playerID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, apperr.NotFound("ranked player")
		}
		return 0, err
	}
	return int(rank) + 1, nil
}

// GetLeaderboardVersion returns the current global version number
func (r *RedisRepository) GetLeaderboardVersion(ctx context.Context) (int64, error) {
	version, err := r.client.Get(ctx, VersionKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil // Version not set yet, return 0
		}
		return 0, err
	}
	return version, nil
}

// GetTotalPlayers returns the number of players in the cached ranking
func (r *RedisRepository) GetTotalPlayers(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, LeaderboardKey).Result()
}

// ---- sessions ----

// SaveSession maps token to playerID for ttl
func (r *RedisRepository) SaveSession(ctx context.Context, token, playerID string, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKeyPrefix+token, playerID, ttl).Err()
}

// GetSession resolves a token to its player id
func (r *RedisRepository) GetSession(ctx context.Context, token string) (string, error) {
	playerID, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%w: session expired or unknown", apperr.ErrAuth)
		}
		return "", err
	}
	return playerID, nil
}

// DeleteSession revokes a token
func (r *RedisRepository) DeleteSession(ctx context.Context, token string) error {
	return r.client.Del(ctx, sessionKeyPrefix+token).Err()
}

// Ping checks if Redis is reachable
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
