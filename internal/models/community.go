package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Clan groups players under a shared tag
type Clan struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Tag         string    `gorm:"uniqueIndex;not null" json:"tag"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	OwnerID     string    `gorm:"type:uuid;not null" json:"owner_id"`
	LogoURL     string    `gorm:"type:text" json:"logo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Clan) TableName() string { return "clans" }

func (c *Clan) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Badge is awardable to players. Staff badges grant admin tooling and chat.
type Badge struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	IconURL     string    `gorm:"type:text" json:"icon_url,omitempty"`
	IsStaff     bool      `gorm:"not null;default:false" json:"is_staff"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Badge) TableName() string { return "badges" }

func (b *Badge) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// SubmissionKind names what a submission asks moderators to approve
type SubmissionKind string

const (
	SubmissionClanApplication SubmissionKind = "clan_application"
	SubmissionRecordClaim     SubmissionKind = "record_claim"
	SubmissionStatUpdate      SubmissionKind = "stat_update"
)

// SubmissionStatus tracks moderation
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Submission is a user request awaiting moderator review
type Submission struct {
	ID         string           `gorm:"primaryKey;type:uuid" json:"id"`
	PlayerID   string           `gorm:"type:uuid;index;not null" json:"player_id"`
	Kind       SubmissionKind   `gorm:"type:varchar(32);not null" json:"kind"`
	Payload    datatypes.JSON   `gorm:"type:jsonb" json:"payload"`
	ProofURL   string           `gorm:"type:text" json:"proof_url,omitempty"`
	Status     SubmissionStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ReviewerID *string          `gorm:"type:uuid" json:"reviewer_id,omitempty"`
	ReviewNote string           `gorm:"type:text" json:"review_note,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (Submission) TableName() string { return "submissions" }

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// RecordClaimPayload is the payload of a record_claim submission
type RecordClaimPayload struct {
	Type   string  `json:"type" validate:"required"`
	Value  float64 `json:"value" validate:"gte=0"`
	Region string  `json:"region,omitempty"`
}

// StatUpdatePayload is the payload of a stat_update submission
type StatUpdatePayload struct {
	Stats PlayerStats `json:"stats" validate:"required"`
}

// ClanApplicationPayload is the payload of a clan_application submission
type ClanApplicationPayload struct {
	ClanID string `json:"clan_id" validate:"required"`
}

// DecodePayload parses the jsonb payload into v
func (s *Submission) DecodePayload(v interface{}) error {
	return json.Unmarshal(s.Payload, v)
}

// UsernameColorTag is a cosmetic colour applied to a username
type UsernameColorTag struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Name  string `gorm:"uniqueIndex;not null" json:"name"`
	Color string `gorm:"type:varchar(16);not null" json:"color"`
}

func (UsernameColorTag) TableName() string { return "username_color_tags" }

func (u *UsernameColorTag) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// AnnouncementStatus drives scheduled publishing
type AnnouncementStatus string

const (
	AnnouncementDraft     AnnouncementStatus = "draft"
	AnnouncementScheduled AnnouncementStatus = "scheduled"
	AnnouncementPublished AnnouncementStatus = "published"
)

// Announcement is a community news post
type Announcement struct {
	ID        string             `gorm:"primaryKey;type:uuid" json:"id"`
	Title     string             `gorm:"not null" json:"title"`
	Body      string             `gorm:"type:text" json:"body"`
	AuthorID  string             `gorm:"type:uuid" json:"author_id"`
	Status    AnnouncementStatus `gorm:"type:varchar(16);default:'draft';index" json:"status"`
	PublishAt *time.Time         `json:"publish_at,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (Announcement) TableName() string { return "announcements" }

func (a *Announcement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// SettingLeaderboardWeights is the settings key holding category weights
const SettingLeaderboardWeights = "leaderboard_weights"

// Setting is a jsonb key/value row
type Setting struct {
	Key       string         `gorm:"primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"type:jsonb" json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }
