package models

import (
	"time"
)

// Account holds login credentials. Its ID equals the player's ID.
type Account struct {
	ID           string    `gorm:"primaryKey;type:uuid" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// SignUpRequest represents the request payload for registration
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Username string `json:"username" validate:"required,min=3,max=32,alphanumunicode"`
}

// SignInRequest represents the request payload for login
type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse is returned after a successful sign in
type SessionResponse struct {
	Token     string    `json:"token"`
	PlayerID  string    `json:"player_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Player    *Player   `json:"player,omitempty"`
}

// LeaderboardEntry represents a single entry in the overall leaderboard
type LeaderboardEntry struct {
	Rank        int     `json:"rank"`
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// LeaderboardResponse represents the paginated leaderboard response
type LeaderboardResponse struct {
	Data    []LeaderboardEntry `json:"data"`
	Offset  int                `json:"offset"`
	Limit   int                `json:"limit"`
	Total   int64              `json:"total"`
	Version int64              `json:"version"`
}

// PlayerRankResponse represents the response for a single player's overall rank
type PlayerRankResponse struct {
	GlobalRank  int     `json:"global_rank"`
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// TypeStandingEntry is one row of a per-type leaderboard
type TypeStandingEntry struct {
	Rank        int     `json:"rank"`
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name"`
	RecordID    string  `json:"record_id"`
	Value       float64 `json:"value"`
	BasePoints  float64 `json:"base_points"`
}

// WeightsRequest is the admin payload for leaderboard weights
type WeightsRequest struct {
	Speed     float64 `json:"speed" validate:"gte=0,lte=100"`
	Economy   float64 `json:"economy" validate:"gte=0,lte=100"`
	Cosmetics float64 `json:"cosmetics" validate:"gte=0,lte=100"`
}

// ConfirmRequest carries the typed confirmation phrase for destructive actions
type ConfirmRequest struct {
	Confirmation string `json:"confirmation" validate:"required"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
