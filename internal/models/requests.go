package models

import (
	"encoding/json"
	"time"
)

// ProfileUpdateRequest is the payload for PATCH /players/me. Nil fields are left alone.
type ProfileUpdateRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,min=1,max=32"`
	Bio         *string `json:"bio" validate:"omitempty,max=500"`
	Country     *string `json:"country" validate:"omitempty,max=64"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url"`
	ColorTagID  *string `json:"color_tag_id" validate:"omitempty,uuid"`
}

// CreateClanRequest is the payload for POST /clans
type CreateClanRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=48"`
	Tag         string `json:"tag" validate:"omitempty,min=2,max=12"`
	Description string `json:"description" validate:"max=1000"`
	LogoURL     string `json:"logo_url" validate:"omitempty,url"`
}

// ClanDetail is a clan with its members
type ClanDetail struct {
	Clan    Clan     `json:"clan"`
	Members []Player `json:"members"`
}

// CreateSubmissionRequest is the payload for POST /submissions
type CreateSubmissionRequest struct {
	Kind     SubmissionKind  `json:"kind" validate:"required,oneof=clan_application record_claim stat_update"`
	Payload  json.RawMessage `json:"payload" validate:"required"`
	ProofURL string          `json:"proof_url" validate:"omitempty,url"`
}

// ReviewRequest carries the reviewer's note on approve/reject
type ReviewRequest struct {
	Note string `json:"note" validate:"max=1000"`
}

// CreateAnnouncementRequest is the payload for POST /announcements.
// Without PublishAt the announcement is published at once unless Draft is set.
type CreateAnnouncementRequest struct {
	Title     string     `json:"title" validate:"required,max=120"`
	Body      string     `json:"body" validate:"required"`
	PublishAt *time.Time `json:"publish_at"`
	Draft     bool       `json:"draft"`
}

// TierRequest is the payload for PUT /admin/players/:id/tier
type TierRequest struct {
	Tier Tier `json:"tier" validate:"required,oneof=S A B C D"`
}

// BlacklistRequest is the payload for POST /admin/players/:id/blacklist
type BlacklistRequest struct {
	Blacklisted bool `json:"blacklisted"`
}

// VerifyRequest is the payload for POST /admin/records/:id/verify
type VerifyRequest struct {
	Verified bool `json:"verified"`
}

// BadgeAwardRequest is the payload for POST /admin/players/:id/badges
type BadgeAwardRequest struct {
	BadgeID string `json:"badge_id" validate:"required"`
}

// CreateConversationRequest is the payload for POST /chat/conversations
type CreateConversationRequest struct {
	ParticipantIDs []string `json:"participant_ids" validate:"required,min=1,dive,required"`
	Name           string   `json:"name" validate:"max=64"`
}

// SendMessageRequest is the payload for POST /chat/conversations/:id/messages
type SendMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

// ConversationView is a conversation as seen by one participant
type ConversationView struct {
	Conversation
	DisplayName string `json:"display_name"`
	Unread      int    `json:"unread"`
}
