package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/bmizerany/assert"
)

type row struct {
	ID   string    `json:"id"`
	When time.Time `json:"when"`
}

func TestEventRoundTripParsesDates(t *testing.T) {
	when := time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC)
	event, err := NewEvent(TableMessages, EventInsert, row{ID: "m1", When: when}, nil)
	assert.Equal(t, nil, err)

	decoded, err := DecodeNew[row](event)
	assert.Equal(t, nil, err)
	assert.Equal(t, "m1", decoded.ID)
	assert.T(t, decoded.When.Equal(when))

	_, err = DecodeOld[row](event)
	assert.NotEqual(t, nil, err)
}

func TestMemoryFeedDeliversPerTable(t *testing.T) {
	ctx := context.Background()
	feed := NewMemoryFeed()

	var got []EventType
	sub, err := feed.Subscribe(ctx, TableMessages, func(e ChangeEvent) { got = append(got, e.Type) })
	assert.Equal(t, nil, err)

	feed.Publish(ctx, ChangeEvent{Table: TableMessages, Type: EventInsert})
	feed.Publish(ctx, ChangeEvent{Table: TablePlayers, Type: EventUpdate})
	assert.Equal(t, []EventType{EventInsert}, got)

	assert.Equal(t, nil, sub.Unsubscribe())
	assert.Equal(t, nil, sub.Unsubscribe())
	feed.Publish(ctx, ChangeEvent{Table: TableMessages, Type: EventDelete})
	assert.Equal(t, []EventType{EventInsert}, got)
	assert.Equal(t, 0, feed.SubscriberCount(TableMessages))
}

func TestRegistryResubscribeTearsDownPrevious(t *testing.T) {
	ctx := context.Background()
	feed := NewMemoryFeed()
	registry := NewRegistry(feed)

	first, second := 0, 0
	assert.Equal(t, nil, registry.Subscribe(ctx, TableConversations, func(ChangeEvent) { first++ }))
	assert.Equal(t, nil, registry.Subscribe(ctx, TableConversations, func(ChangeEvent) { second++ }))
	assert.Equal(t, 1, feed.SubscriberCount(TableConversations))

	feed.Publish(ctx, ChangeEvent{Table: TableConversations, Type: EventUpdate})
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)

	registry.Close()
	assert.Equal(t, 0, feed.SubscriberCount(TableConversations))
	assert.T(t, !registry.Active(TableConversations))
}
