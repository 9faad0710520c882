package service

import (
	"context"
	"fmt"
	"strings"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"
)

// PlayerStore is what the player service needs from the data access layer
type PlayerStore interface {
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	ListPlayers(ctx context.Context) ([]models.Player, error)
	ListPlayersByIDs(ctx context.Context, ids []string) ([]models.Player, error)
	SavePlayer(ctx context.Context, player *models.Player) error
	GetBadge(ctx context.Context, id string) (*models.Badge, error)
	ListBadges(ctx context.Context) ([]models.Badge, error)
	HasStaffBadge(ctx context.Context, badgeIDs []string) (bool, error)
	ListColorTags(ctx context.Context) ([]models.UsernameColorTag, error)
	ListRecords(ctx context.Context, verifiedOnly bool) ([]models.WorldRecord, error)
}

// PlayerProfile is a player with the badges and records shown on their page
type PlayerProfile struct {
	Player  models.Player        `json:"player"`
	Badges  []models.Badge       `json:"badges"`
	Records []models.WorldRecord `json:"records"`
	IsStaff bool                 `json:"is_staff"`
}

// PlayerService handles profiles and badges
type PlayerService struct {
	store PlayerStore
}

// NewPlayerService creates a new player service
func NewPlayerService(store PlayerStore) *PlayerService {
	return &PlayerService{store: store}
}

// ListPlayers returns every player that is not blacklisted
func (s *PlayerService) ListPlayers(ctx context.Context) ([]models.Player, error) {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	visible := make([]models.Player, 0, len(players))
	for _, p := range players {
		if !p.IsBlacklisted {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

// Names maps player ids to display names
func (s *PlayerService) Names(ctx context.Context, ids []string) (map[string]string, error) {
	players, err := s.store.ListPlayersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(players))
	for i := range players {
		names[players[i].ID] = players[i].Name()
	}
	return names, nil
}

// GetProfile fetches a player with their badges and verified records
func (s *PlayerService) GetProfile(ctx context.Context, id string) (*PlayerProfile, error) {
	player, err := s.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}

	badges, err := s.store.ListBadges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	profile := &PlayerProfile{Player: *player, Badges: []models.Badge{}, Records: []models.WorldRecord{}}
	for _, b := range badges {
		if player.HasBadge(b.ID) {
			profile.Badges = append(profile.Badges, b)
			if b.IsStaff {
				profile.IsStaff = true
			}
		}
	}

	records, err := s.store.ListRecords(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	for _, r := range records {
		if r.PlayerID == id {
			profile.Records = append(profile.Records, r)
		}
	}

	return profile, nil
}

// IsStaff reports whether player holds a staff badge
func (s *PlayerService) IsStaff(ctx context.Context, player *models.Player) (bool, error) {
	return s.store.HasStaffBadge(ctx, player.BadgeIDs)
}

// UpdateProfile applies the non-nil fields of req
func (s *PlayerService) UpdateProfile(ctx context.Context, id string, req models.ProfileUpdateRequest) (*models.Player, error) {
	player, err := s.store.GetPlayer(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" {
			return nil, apperr.Validation("display name cannot be blank")
		}
		player.DisplayName = name
	}
	if req.Bio != nil {
		player.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.Country != nil {
		player.Country = strings.TrimSpace(*req.Country)
	}
	if req.AvatarURL != nil {
		player.AvatarURL = *req.AvatarURL
	}
	if req.ColorTagID != nil {
		if err := s.checkColorTag(ctx, *req.ColorTagID); err != nil {
			return nil, err
		}
		tag := *req.ColorTagID
		player.ColorTagID = &tag
	}

	if err := s.store.SavePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return player, nil
}

func (s *PlayerService) checkColorTag(ctx context.Context, id string) error {
	tags, err := s.store.ListColorTags(ctx)
	if err != nil {
		return fmt.Errorf("failed to list color tags: %w", err)
	}
	for _, t := range tags {
		if t.ID == id {
			return nil
		}
	}
	return apperr.NotFound("color tag")
}

// AwardBadge adds badgeID to the player's set. Awarding a held badge is a no-op.
func (s *PlayerService) AwardBadge(ctx context.Context, playerID, badgeID string) (*models.Player, error) {
	if _, err := s.store.GetBadge(ctx, badgeID); err != nil {
		return nil, err
	}
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if !player.AddBadge(badgeID) {
		return player, nil
	}
	if err := s.store.SavePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to award badge: %w", err)
	}
	logger.Info("🏅 Badge %s awarded to %s", badgeID, player.Username)
	return player, nil
}

// RevokeBadge removes badgeID from the player's set
func (s *PlayerService) RevokeBadge(ctx context.Context, playerID, badgeID string) (*models.Player, error) {
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}

	if !player.RemoveBadge(badgeID) {
		return player, nil
	}
	if err := s.store.SavePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("failed to revoke badge: %w", err)
	}
	return player, nil
}

// ListBadges returns every badge
func (s *PlayerService) ListBadges(ctx context.Context) ([]models.Badge, error) {
	return s.store.ListBadges(ctx)
}

// ListColorTags returns every username color tag
func (s *PlayerService) ListColorTags(ctx context.Context) ([]models.UsernameColorTag, error) {
	return s.store.ListColorTags(ctx)
}

// ListRecords returns verified records, or every record when includeUnverified is set
func (s *PlayerService) ListRecords(ctx context.Context, includeUnverified bool) ([]models.WorldRecord, error) {
	return s.store.ListRecords(ctx, !includeUnverified)
}
