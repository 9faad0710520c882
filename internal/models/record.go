package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorldRecord is a performance entry for one record type, e.g. "Speed-Normal-Facility".
// Only the verification flag changes after creation.
type WorldRecord struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	PlayerID   string    `gorm:"type:uuid;index;not null" json:"player_id"`
	Type       string    `gorm:"index;not null" json:"type"`
	Value      float64   `gorm:"not null" json:"value"`
	ProofURL   string    `gorm:"type:text" json:"proof_url"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
	Region     string    `gorm:"type:varchar(32)" json:"region,omitempty"`
	IsVerified bool      `gorm:"not null;default:false;index" json:"is_verified"`
}

// TableName specifies the table name for GORM
func (WorldRecord) TableName() string {
	return "world_records"
}

// BeforeCreate assigns an id and timestamp when missing
func (r *WorldRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return nil
}
