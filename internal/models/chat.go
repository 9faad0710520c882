package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConversationStartedText is the synthetic last message of a new conversation
const ConversationStartedText = "Conversation started"

// Conversation is a staff chat thread. One row exists per unique participant set.
type Conversation struct {
	ID                  string                             `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipantIDs      datatypes.JSONSlice[string]        `gorm:"type:jsonb;not null" json:"participant_ids"`
	Name                string                             `json:"name,omitempty"`
	LastMessageText     string                             `gorm:"type:text" json:"last_message_text"`
	LastMessageAt       time.Time                          `gorm:"index" json:"last_message_at"`
	LastMessageSenderID string                             `gorm:"type:uuid" json:"last_message_sender_id"`
	UnreadCounts        datatypes.JSONType[map[string]int] `gorm:"type:jsonb" json:"unread_counts"`
	CreatedAt           time.Time                          `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Conversation) TableName() string {
	return "conversations"
}

// BeforeCreate assigns an id when missing
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// HasParticipant reports whether playerID takes part in the conversation
func (c *Conversation) HasParticipant(playerID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// IsGroup is true for more than two participants
func (c *Conversation) IsGroup() bool {
	return len(c.ParticipantIDs) > 2
}

// Unread returns the counter for playerID
func (c *Conversation) Unread(playerID string) int {
	return c.UnreadCounts.Data()[playerID]
}

// SetUnread replaces the counter for playerID
func (c *Conversation) SetUnread(playerID string, n int) {
	counts := make(map[string]int, len(c.ParticipantIDs))
	for k, v := range c.UnreadCounts.Data() {
		counts[k] = v
	}
	counts[playerID] = n
	c.UnreadCounts = datatypes.NewJSONType(counts)
}

// SameParticipants reports an exact set match with canonical ids
func (c *Conversation) SameParticipants(canonical []string) bool {
	mine := CanonicalParticipants(c.ParticipantIDs)
	if len(mine) != len(canonical) {
		return false
	}
	for i := range mine {
		if mine[i] != canonical[i] {
			return false
		}
	}
	return true
}

// DisplayName returns the stored name or a label built from participant names,
// skipping viewerID. names maps player id to display name.
func (c *Conversation) DisplayName(viewerID string, names map[string]string) string {
	if c.Name != "" {
		return c.Name
	}
	var parts []string
	for _, id := range CanonicalParticipants(c.ParticipantIDs) {
		if id == viewerID {
			continue
		}
		if name, ok := names[id]; ok && name != "" {
			parts = append(parts, name)
		} else {
			parts = append(parts, "Unknown")
		}
	}
	if len(parts) == 0 {
		return "Notes"
	}
	return strings.Join(parts, ", ")
}

// CanonicalParticipants dedupes, drops empty ids and sorts
func CanonicalParticipants(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Message is an immutable chat line
type Message struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	ConversationID string    `gorm:"type:uuid;index;not null" json:"conversation_id"`
	SenderID       string    `gorm:"type:uuid;not null" json:"sender_id"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	Timestamp      time.Time `gorm:"index;not null" json:"timestamp"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns an id and timestamp when missing
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	return nil
}
