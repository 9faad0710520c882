package service

import (
	"context"
	"fmt"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"
	"evade-competitive/internal/ranking"
)

// ResetSeasonPhrase must be typed exactly to wipe all world records
const ResetSeasonPhrase = "RESET SEASON"

// DeletePlayerPhrase is the phrase that must be typed exactly to delete username
func DeletePlayerPhrase(username string) string {
	return "DELETE " + username
}

// CheckConfirmation compares typed against the expected phrase, case and spacing included
func CheckConfirmation(typed, expected string) error {
	if typed != expected {
		return fmt.Errorf("%w: type %q to confirm", apperr.ErrConfirmation, expected)
	}
	return nil
}

// AdminStore is what admin tooling needs from the data access layer
type AdminStore interface {
	UpsertSetting(ctx context.Context, key string, value []byte) (*models.Setting, error)
	SetRecordVerified(ctx context.Context, id string, verified bool) (*models.WorldRecord, error)
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	SavePlayer(ctx context.Context, player *models.Player) error
	DeletePlayer(ctx context.Context, id string) error
	DeleteAllRecords(ctx context.Context) (int64, error)
}

// AdminService holds staff-only operations
type AdminService struct {
	store AdminStore
}

// NewAdminService creates a new admin service
func NewAdminService(store AdminStore) *AdminService {
	return &AdminService{store: store}
}

// SetWeights validates and stores the leaderboard weights
func (s *AdminService) SetWeights(ctx context.Context, req models.WeightsRequest) (ranking.Weights, error) {
	weights := ranking.Weights{
		ranking.CategorySpeed:     req.Speed,
		ranking.CategoryEconomy:   req.Economy,
		ranking.CategoryCosmetics: req.Cosmetics,
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	raw, err := weights.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode weights: %w", err)
	}
	if _, err := s.store.UpsertSetting(ctx, models.SettingLeaderboardWeights, raw); err != nil {
		return nil, fmt.Errorf("failed to store weights: %w", err)
	}

	logger.Info("⚖️  Leaderboard weights set to Speed=%.1f Economy=%.1f Cosmetics=%.1f", req.Speed, req.Economy, req.Cosmetics)
	return weights, nil
}

// VerifyRecord sets a record's verification flag
func (s *AdminService) VerifyRecord(ctx context.Context, id string, verified bool) (*models.WorldRecord, error) {
	return s.store.SetRecordVerified(ctx, id, verified)
}

// SetBlacklisted soft-disables or restores a player
func (s *AdminService) SetBlacklisted(ctx context.Context, id string, blacklisted bool) (*models.Player, error) {
	player, err := s.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}
	if player.IsBlacklisted == blacklisted {
		return player, nil
	}

	player.IsBlacklisted = blacklisted
	if err := s.store.SavePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to update blacklist: %w", err)
	}
	logger.Warning("Player %s blacklisted=%v", player.Username, blacklisted)
	return player, nil
}

// SetTier assigns one of the five tiers
func (s *AdminService) SetTier(ctx context.Context, id string, tier models.Tier) (*models.Player, error) {
	if !tier.Valid() {
		return nil, apperr.Validation("unknown tier %q", tier)
	}
	player, err := s.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}

	player.Tier = tier
	if err := s.store.SavePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to set tier: %w", err)
	}
	return player, nil
}

// ResetSeason deletes every world record once the typed phrase matches
func (s *AdminService) ResetSeason(ctx context.Context, confirmation string) (int64, error) {
	if err := CheckConfirmation(confirmation, ResetSeasonPhrase); err != nil {
		return 0, err
	}

	n, err := s.store.DeleteAllRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset season: %w", err)
	}
	logger.Warning("Season reset: %d world records deleted", n)
	return n, nil
}

// DeletePlayer removes a player and their data once "DELETE <username>" is typed
func (s *AdminService) DeletePlayer(ctx context.Context, id, confirmation string) error {
	player, err := s.store.GetPlayer(ctx, id)
	if err != nil {
		return err
	}
	if err := CheckConfirmation(confirmation, DeletePlayerPhrase(player.Username)); err != nil {
		return err
	}

	if err := s.store.DeletePlayer(ctx, id); err != nil {
		return fmt.Errorf("failed to delete player: %w", err)
	}
	logger.Warning("Player %s deleted", player.Username)
	return nil
}
