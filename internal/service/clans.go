package service

import (
	"context"
	"fmt"
	"strings"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"

	"github.com/gosimple/slug"
)

// ClanStore is what the clan service needs from the data access layer
type ClanStore interface {
	CreateClan(ctx context.Context, clan *models.Clan) error
	ListClans(ctx context.Context) ([]models.Clan, error)
	GetClan(ctx context.Context, id string) (*models.Clan, error)
	ListClanMembers(ctx context.Context, clanID string) ([]models.Player, error)
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	SavePlayer(ctx context.Context, player *models.Player) error
}

// ClanService handles clans
type ClanService struct {
	store ClanStore
}

// NewClanService creates a new clan service
func NewClanService(store ClanStore) *ClanService {
	return &ClanService{store: store}
}

// ClanTag derives the clan tag: the requested tag, or the name when none was given, slugged
func ClanTag(name, tag string) string {
	source := strings.TrimSpace(tag)
	if source == "" {
		source = name
	}
	return slug.Make(source)
}

// Create makes ownerID the owner and first member of a new clan
func (s *ClanService) Create(ctx context.Context, ownerID string, req models.CreateClanRequest) (*models.Clan, error) {
	tag := ClanTag(req.Name, req.Tag)
	if tag == "" {
		return nil, apperr.Validation("clan tag must contain letters or digits")
	}

	owner, err := s.store.GetPlayer(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.ClanID != nil {
		return nil, apperr.Validation("leave your current clan first")
	}

	clan := models.Clan{
		Name:        strings.TrimSpace(req.Name),
		Tag:         tag,
		Description: strings.TrimSpace(req.Description),
		OwnerID:     ownerID,
		LogoURL:     req.LogoURL,
	}
	if err := s.store.CreateClan(ctx, &clan); err != nil {
		return nil, fmt.Errorf("failed to create clan: %w", err)
	}

	owner.ClanID = &clan.ID
	if err := s.store.SavePlayer(ctx, owner); err != nil {
		return &clan, fmt.Errorf("%w: clan created but owner not added: %v", apperr.ErrPartialFailure, err)
	}

	logger.Success("Clan [%s] %s created by %s", clan.Tag, clan.Name, owner.Username)
	return &clan, nil
}

// List returns every clan
func (s *ClanService) List(ctx context.Context) ([]models.Clan, error) {
	return s.store.ListClans(ctx)
}

// Get returns a clan with its non-blacklisted members
func (s *ClanService) Get(ctx context.Context, id string) (*models.ClanDetail, error) {
	clan, err := s.store.GetClan(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.store.ListClanMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list clan members: %w", err)
	}

	detail := &models.ClanDetail{Clan: *clan, Members: make([]models.Player, 0, len(members))}
	for _, m := range members {
		if !m.IsBlacklisted {
			detail.Members = append(detail.Members, m)
		}
	}
	return detail, nil
}
