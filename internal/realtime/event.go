// Package realtime carries row-level change events between writers and subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Table names a change stream
type Table string

const (
	TablePlayers       Table = "players"
	TableClans         Table = "clans"
	TableWorldRecords  Table = "world_records"
	TableBadges        Table = "badges"
	TableSubmissions   Table = "submissions"
	TableColorTags     Table = "username_color_tags"
	TableAnnouncements Table = "announcements"
	TableSettings      Table = "settings"
	TableConversations Table = "conversations"
	TableMessages      Table = "messages"
)

// EventType is the row operation
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent describes one row change. Rows travel as JSON and are decoded by the consumer.
type ChangeEvent struct {
	Table           Table           `json:"table"`
	Type            EventType       `json:"type"`
	New             json.RawMessage `json:"new,omitempty"`
	Old             json.RawMessage `json:"old,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewEvent marshals the rows. Either row may be nil.
func NewEvent(table Table, eventType EventType, newRow, oldRow interface{}) (ChangeEvent, error) {
	event := ChangeEvent{
		Table:           table,
		Type:            eventType,
		CommitTimestamp: time.Now().UTC(),
	}

	if newRow != nil {
		raw, err := json.Marshal(newRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("failed to encode new row: %w", err)
		}
		event.New = raw
	}
	if oldRow != nil {
		raw, err := json.Marshal(oldRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("failed to encode old row: %w", err)
		}
		event.Old = raw
	}

	return event, nil
}

// DecodeNew parses the new row
func DecodeNew[T any](e ChangeEvent) (T, error) {
	var row T
	if len(e.New) == 0 {
		return row, fmt.Errorf("%s %s event has no new row", e.Table, e.Type)
	}
	err := json.Unmarshal(e.New, &row)
	return row, err
}

// DecodeOld parses the old row
func DecodeOld[T any](e ChangeEvent) (T, error) {
	var row T
	if len(e.Old) == 0 {
		return row, fmt.Errorf("%s %s event has no old row", e.Table, e.Type)
	}
	err := json.Unmarshal(e.Old, &row)
	return row, err
}

// Handler receives events on the feed's goroutine
type Handler func(ChangeEvent)

// Subscription is a live table subscription
type Subscription interface {
	Unsubscribe() error
}

// Feed publishes and subscribes to table change streams
type Feed interface {
	Publish(ctx context.Context, event ChangeEvent) error
	Subscribe(ctx context.Context, table Table, handler Handler) (Subscription, error)
}
