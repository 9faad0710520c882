package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"
	"evade-competitive/internal/ranking"
	"evade-competitive/internal/realtime"
	"evade-competitive/internal/repository"
)

// LeaderboardStore is what the leaderboard reads from the data access layer
type LeaderboardStore interface {
	ListPlayers(ctx context.Context) ([]models.Player, error)
	ListRecords(ctx context.Context, verifiedOnly bool) ([]models.WorldRecord, error)
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	Subscribe(ctx context.Context, table realtime.Table, handler realtime.Handler) (realtime.Subscription, error)
}

// RankingCache holds the last computed ranking for paginated reads
type RankingCache interface {
	StoreRanking(ctx context.Context, scores []ranking.Score) error
	GetTopPlayers(ctx context.Context, offset, limit int) ([]repository.CachedEntry, error)
	GetEntries(ctx context.Context, playerIDs []string) ([]repository.CachedEntry, error)
	GetPlayerRank(ctx context.Context, playerID string) (int, error)
	GetTotalPlayers(ctx context.Context) (int64, error)
	GetLeaderboardVersion(ctx context.Context) (int64, error)
}

// TypeSummary describes one record type present in the snapshot
type TypeSummary struct {
	Type     string           `json:"type"`
	Category ranking.Category `json:"category"`
	Records  int              `json:"records"`
}

// LeaderboardService keeps the players/records/weights snapshot and recomputes the overall
// ranking whenever one of those tables changes
type LeaderboardService struct {
	store      LeaderboardStore
	cache      RankingCache
	aggregator *ranking.Aggregator
	registry   *realtime.Registry

	// held for a whole Refresh so an older snapshot never lands after a newer one
	refreshMu sync.Mutex

	mu      sync.RWMutex
	players []models.Player
	records []models.WorldRecord
	weights ranking.Weights
	scores  []ranking.Score
	names   map[string]string

	dirty  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(store LeaderboardStore, cache RankingCache, feed realtime.Feed) *LeaderboardService {
	return &LeaderboardService{
		store:      store,
		cache:      cache,
		aggregator: ranking.NewAggregator(nil),
		registry:   realtime.NewRegistry(feed),
		weights:    ranking.DefaultWeights,
		names:      make(map[string]string),
		dirty:      make(chan struct{}, 1),
	}
}

// Start computes the first ranking and recomputes on every players, world_records or
// settings change. Bursts of events collapse into one recomputation.
func (s *LeaderboardService) Start(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}

	for _, table := range []realtime.Table{realtime.TablePlayers, realtime.TableWorldRecords, realtime.TableSettings} {
		if err := s.registry.Subscribe(ctx, table, s.markDirty); err != nil {
			s.registry.Close()
			return fmt.Errorf("failed to subscribe to %s: %w", table, err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.recomputeLoop(loopCtx)

	logger.Success("Leaderboard watching players, world records and settings")
	return nil
}

// Stop drops the subscriptions and waits for the recompute loop
func (s *LeaderboardService) Stop() {
	s.registry.Close()
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *LeaderboardService) markDirty(event realtime.ChangeEvent) {
	select {
	case s.dirty <- struct{}{}:
	default:
		// a recompute is already pending
	}
}

func (s *LeaderboardService) recomputeLoop(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.dirty:
			refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := s.Refresh(refreshCtx); err != nil {
				logger.Error("Leaderboard recompute failed: %v", err)
			}
			cancel()
		}
	}
}

// Refresh reloads the snapshot, recomputes the ranking and writes it to the cache.
// Concurrent calls run one at a time.
func (s *LeaderboardService) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	startTime := time.Now()

	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load players: %w", err)
	}
	records, err := s.store.ListRecords(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to load world records: %w", err)
	}
	weights, err := s.loadWeights(ctx)
	if err != nil {
		return err
	}

	eligible, eligibleRecords := excludeBlacklisted(players, records)
	scores := s.aggregator.Compute(eligible, eligibleRecords, weights)

	if err := s.cache.StoreRanking(ctx, ranking.Ranked(scores)); err != nil {
		return fmt.Errorf("failed to cache ranking: %w", err)
	}

	names := make(map[string]string, len(players))
	for i := range players {
		names[players[i].ID] = players[i].Name()
	}

	s.mu.Lock()
	s.players = eligible
	s.records = eligibleRecords
	s.weights = weights
	s.scores = scores
	s.names = names
	s.mu.Unlock()

	logger.Debug("Leaderboard recomputed: %d players, %d records in %v", len(eligible), len(eligibleRecords), time.Since(startTime))
	return nil
}

func (s *LeaderboardService) loadWeights(ctx context.Context) (ranking.Weights, error) {
	setting, err := s.store.GetSetting(ctx, models.SettingLeaderboardWeights)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return ranking.DefaultWeights, nil
		}
		return nil, fmt.Errorf("failed to load weights: %w", err)
	}

	weights, err := ranking.ParseWeights(setting.Value)
	if err != nil {
		logger.Warning("Stored leaderboard weights are unreadable, using defaults: %v", err)
		return ranking.DefaultWeights, nil
	}
	return weights, nil
}

// excludeBlacklisted drops blacklisted players and every record not owned by a remaining player
func excludeBlacklisted(players []models.Player, records []models.WorldRecord) ([]models.Player, []models.WorldRecord) {
	eligible := make([]models.Player, 0, len(players))
	known := make(map[string]struct{}, len(players))
	for _, p := range players {
		if p.IsBlacklisted {
			continue
		}
		eligible = append(eligible, p)
		known[p.ID] = struct{}{}
	}

	kept := make([]models.WorldRecord, 0, len(records))
	for _, r := range records {
		if _, ok := known[r.PlayerID]; ok {
			kept = append(kept, r)
		}
	}
	return eligible, kept
}

// GetLeaderboard retrieves a page of the ranked leaderboard
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, offset, limit int) (*models.LeaderboardResponse, error) {
	// Validate pagination parameters
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	entries, err := s.cache.GetTopPlayers(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}

	total, err := s.cache.GetTotalPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get total players: %w", err)
	}

	version, err := s.cache.GetLeaderboardVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard version: %w", err)
	}

	data := make([]models.LeaderboardEntry, 0, len(entries))
	for i, e := range entries {
		data = append(data, models.LeaderboardEntry{
			Rank:        offset + i + 1,
			PlayerID:    e.PlayerID,
			DisplayName: e.DisplayName,
			Score:       e.Score,
		})
	}

	return &models.LeaderboardResponse{
		Data:    data,
		Offset:  offset,
		Limit:   limit,
		Total:   total,
		Version: version,
	}, nil
}

// GetPlayerRank returns a ranked player's position and score
func (s *LeaderboardService) GetPlayerRank(ctx context.Context, playerID string) (*models.PlayerRankResponse, error) {
	rank, err := s.cache.GetPlayerRank(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player rank: %w", err)
	}

	entries, err := s.cache.GetEntries(ctx, []string{playerID})
	if err != nil {
		return nil, fmt.Errorf("failed to get player score: %w", err)
	}
	if len(entries) == 0 {
		return nil, apperr.NotFound("ranked player")
	}

	return &models.PlayerRankResponse{
		GlobalRank:  rank,
		PlayerID:    playerID,
		DisplayName: entries[0].DisplayName,
		Score:       entries[0].Score,
	}, nil
}

// TypeStandings ranks players within one record type from the current snapshot
func (s *LeaderboardService) TypeStandings(recordType string) []models.TypeStandingEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	standings := s.aggregator.Standings(s.recordsOfType(recordType))[recordType]
	entries := make([]models.TypeStandingEntry, 0, len(standings))
	for _, st := range standings {
		entries = append(entries, models.TypeStandingEntry{
			Rank:        st.Rank,
			PlayerID:    st.Record.PlayerID,
			DisplayName: s.names[st.Record.PlayerID],
			RecordID:    st.Record.ID,
			Value:       st.Record.Value,
			BasePoints:  st.BasePoints,
		})
	}
	return entries
}

func (s *LeaderboardService) recordsOfType(recordType string) []models.WorldRecord {
	var out []models.WorldRecord
	for _, r := range s.records {
		if r.Type == recordType {
			out = append(out, r)
		}
	}
	return out
}

// Types lists the record types in the snapshot, sorted by name
func (s *LeaderboardService) Types() []TypeSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, r := range s.records {
		counts[r.Type]++
	}

	out := make([]TypeSummary, 0, len(counts))
	for t, n := range counts {
		out = append(out, TypeSummary{Type: t, Category: ranking.Categorize(t), Records: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Scores returns the full overall ranking, including zero scores
func (s *LeaderboardService) Scores() []ranking.Score {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ranking.Score, len(s.scores))
	copy(out, s.scores)
	return out
}

// Weights returns the weights used by the last computation
func (s *LeaderboardService) Weights() ranking.Weights {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(ranking.Weights, len(s.weights))
	for k, v := range s.weights {
		out[k] = v
	}
	return out
}

// GetVersion returns the cached ranking version
func (s *LeaderboardService) GetVersion(ctx context.Context) (int64, error) {
	return s.cache.GetLeaderboardVersion(ctx)
}
