package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tier is the coarse skill bucket shown next to a player's name
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Tiers lists the five levels from best to worst
var Tiers = []Tier{TierS, TierA, TierB, TierC, TierD}

// Valid reports whether t is one of the five known tiers
func (t Tier) Valid() bool {
	for _, known := range Tiers {
		if t == known {
			return true
		}
	}
	return false
}

// PlayerStats maps category -> sub-category -> value, e.g. {"Economy": {"Points": 1200}}
type PlayerStats map[string]map[string]float64

// Merge overwrites the values present in other
func (s PlayerStats) Merge(other PlayerStats) PlayerStats {
	merged := make(PlayerStats, len(s))
	for category, values := range s {
		merged[category] = make(map[string]float64, len(values))
		for k, v := range values {
			merged[category][k] = v
		}
	}
	for category, values := range other {
		if merged[category] == nil {
			merged[category] = make(map[string]float64, len(values))
		}
		for k, v := range values {
			merged[category][k] = v
		}
	}
	return merged
}

// Player is a registered community member
type Player struct {
	ID            string                          `gorm:"primaryKey;type:uuid" json:"id"`
	Username      string                          `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName   string                          `gorm:"not null" json:"display_name"`
	Stats         datatypes.JSONType[PlayerStats] `gorm:"type:jsonb" json:"stats"`
	BadgeIDs      datatypes.JSONSlice[string]     `gorm:"type:jsonb" json:"badge_ids"`
	Tier          Tier                            `gorm:"type:varchar(1);default:'D'" json:"tier"`
	ClanID        *string                         `gorm:"type:uuid;index" json:"clan_id,omitempty"`
	ColorTagID    *string                         `gorm:"type:uuid" json:"color_tag_id,omitempty"`
	IsVerified    bool                            `gorm:"not null;default:false" json:"is_verified"`
	IsBlacklisted bool                            `gorm:"not null;default:false;index" json:"is_blacklisted"`
	Bio           string                          `gorm:"type:text" json:"bio,omitempty"`
	AvatarURL     string                          `gorm:"type:text" json:"avatar_url,omitempty"`
	Country       string                          `gorm:"type:varchar(64)" json:"country,omitempty"`
	CreatedAt     time.Time                       `json:"created_at"`
	UpdatedAt     time.Time                       `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Player) TableName() string {
	return "players"
}

// BeforeCreate assigns an id when the caller did not
func (p *Player) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// HasBadge reports whether badgeID is in the player's set
func (p *Player) HasBadge(badgeID string) bool {
	for _, id := range p.BadgeIDs {
		if id == badgeID {
			return true
		}
	}
	return false
}

// AddBadge adds badgeID keeping the set unique. It returns false if already held.
func (p *Player) AddBadge(badgeID string) bool {
	if p.HasBadge(badgeID) {
		return false
	}
	p.BadgeIDs = append(p.BadgeIDs, badgeID)
	return true
}

// RemoveBadge drops badgeID. It returns false if it was not held.
func (p *Player) RemoveBadge(badgeID string) bool {
	kept := p.BadgeIDs[:0]
	removed := false
	for _, id := range p.BadgeIDs {
		if id == badgeID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	p.BadgeIDs = kept
	return removed
}

// Name returns the display name, falling back to the username
func (p *Player) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Username
}
