package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/models"
	"evade-competitive/internal/realtime"

	"github.com/bmizerany/assert"
	"gorm.io/datatypes"
)

// fakeBackend stores rows in memory and echoes writes onto the feed like the data access layer
type fakeBackend struct {
	mu            sync.Mutex
	feed          *realtime.MemoryFeed
	conversations map[string]models.Conversation
	messages      []models.Message
	created       int
	failLast      bool
}

func newFakeBackend(feed *realtime.MemoryFeed) *fakeBackend {
	return &fakeBackend{feed: feed, conversations: make(map[string]models.Conversation)}
}

func (b *fakeBackend) publish(table realtime.Table, eventType realtime.EventType, row interface{}) {
	event, err := realtime.NewEvent(table, eventType, row, nil)
	if err != nil {
		panic(err)
	}
	_ = b.feed.Publish(context.Background(), event)
}

func (b *fakeBackend) ListConversationsFor(ctx context.Context, playerID string) ([]models.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Conversation
	for _, c := range b.conversations {
		if c.HasParticipant(playerID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (b *fakeBackend) ListMessages(ctx context.Context, ids []string) ([]models.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Message
	for _, m := range b.messages {
		if want[m.ConversationID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (b *fakeBackend) CreateConversation(ctx context.Context, c *models.Conversation) error {
	time.Sleep(5 * time.Millisecond)
	b.mu.Lock()
	b.created++
	b.conversations[c.ID] = *c
	b.mu.Unlock()
	b.publish(realtime.TableConversations, realtime.EventInsert, c)
	return nil
}

func (b *fakeBackend) CreateMessage(ctx context.Context, m *models.Message) error {
	b.mu.Lock()
	b.messages = append(b.messages, *m)
	b.mu.Unlock()
	b.publish(realtime.TableMessages, realtime.EventInsert, m)
	return nil
}

func (b *fakeBackend) ApplyLastMessage(ctx context.Context, m models.Message) (*models.Conversation, error) {
	if b.failLast {
		return nil, errors.New("row locked")
	}
	b.mu.Lock()
	c := b.conversations[m.ConversationID]
	if !m.Timestamp.Before(c.LastMessageAt) {
		c.LastMessageText = m.Text
		c.LastMessageAt = m.Timestamp
		c.LastMessageSenderID = m.SenderID
	}
	for _, id := range c.ParticipantIDs {
		if id != m.SenderID {
			c.SetUnread(id, c.Unread(id)+1)
		}
	}
	b.conversations[c.ID] = c
	b.mu.Unlock()
	b.publish(realtime.TableConversations, realtime.EventUpdate, c)
	return &c, nil
}

func (b *fakeBackend) ResetUnread(ctx context.Context, conversationID, playerID string) (*models.Conversation, error) {
	b.mu.Lock()
	c := b.conversations[conversationID]
	c.SetUnread(playerID, 0)
	b.conversations[c.ID] = c
	b.mu.Unlock()
	return &c, nil
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func conversation(id string, at time.Time, unread map[string]int, participants ...string) models.Conversation {
	return models.Conversation{
		ID:             id,
		ParticipantIDs: datatypes.JSONSlice[string](participants),
		LastMessageAt:  at,
		UnreadCounts:   datatypes.NewJSONType(unread),
	}
}

func message(id, conversationID string, at time.Time, text string) models.Message {
	return models.Message{ID: id, ConversationID: conversationID, SenderID: "bob", Text: text, Timestamp: at}
}

func started(t *testing.T, backend *fakeBackend, feed *realtime.MemoryFeed, user string) *Synchronizer {
	s := NewSynchronizer(user, backend, feed)
	assert.Equal(t, nil, s.Start(context.Background()))
	return s
}

func TestMessageInsertIsIdempotent(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	backend.conversations["c1"] = conversation("c1", base, nil, "alice", "bob")
	s := started(t, backend, feed, "alice")

	m := message("m1", "c1", base.Add(time.Minute), "hi")
	assert.T(t, s.ApplyMessageInsert(m))
	assert.T(t, !s.ApplyMessageInsert(m))

	assert.Equal(t, 1, len(s.Messages("c1")))
}

func TestMessageInsertForUnknownConversationIsIgnored(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	s := started(t, backend, feed, "alice")

	assert.T(t, !s.ApplyMessageInsert(message("m1", "elsewhere", base, "hi")))
	assert.Equal(t, 0, len(s.Messages("elsewhere")))
}

func TestMessagesAreOrderedRegardlessOfArrival(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	backend.conversations["c1"] = conversation("c1", base, nil, "alice", "bob")
	s := started(t, backend, feed, "alice")

	s.ApplyMessageInsert(message("m3", "c1", base.Add(3*time.Second), "third"))
	s.ApplyMessageInsert(message("m1", "c1", base.Add(1*time.Second), "first"))
	s.ApplyMessageInsert(message("m2", "c1", base.Add(2*time.Second), "second"))

	var texts []string
	for _, m := range s.Messages("c1") {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"first", "second", "third"}, texts)

	// a late, older message does not move the last-message fields back
	c, _ := s.Conversation("c1")
	assert.Equal(t, "third", c.LastMessageText)
	assert.T(t, c.LastMessageAt.Equal(base.Add(3*time.Second)))
}

func TestConversationsOrderedByLastActivity(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	backend.conversations["old"] = conversation("old", base, nil, "alice", "bob")
	backend.conversations["new"] = conversation("new", base.Add(time.Hour), nil, "alice", "carol")
	s := started(t, backend, feed, "alice")

	list := s.Conversations()
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)

	s.ApplyMessageInsert(message("m1", "old", base.Add(2*time.Hour), "bump"))
	list = s.Conversations()
	assert.Equal(t, "old", list[0].ID)
}

func TestConversationUpsertRemovesWhenUserLeaves(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	backend.conversations["c1"] = conversation("c1", base, nil, "alice", "bob", "carol")
	backend.messages = []models.Message{message("m1", "c1", base, "hello")}
	s := started(t, backend, feed, "alice")
	assert.Equal(t, 1, len(s.Messages("c1")))

	s.ApplyConversationUpsert(conversation("c1", base, nil, "bob", "carol"))
	_, ok := s.Conversation("c1")
	assert.T(t, !ok)
	assert.Equal(t, 0, len(s.Messages("c1")))

	s.ApplyConversationUpsert(conversation("c2", base, nil, "alice", "dave"))
	_, ok = s.Conversation("c2")
	assert.T(t, ok)
}

func TestConversationDeleteEventRemoves(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	backend.conversations["c1"] = conversation("c1", base, nil, "alice", "bob")
	s := started(t, backend, feed, "alice")

	event, err := realtime.NewEvent(realtime.TableConversations, realtime.EventDelete, nil, map[string]string{"id": "c1"})
	assert.Equal(t, nil, err)
	_ = feed.Publish(context.Background(), event)

	_, ok := s.Conversation("c1")
	assert.T(t, !ok)
}

func TestGetOrCreateDeduplicatesParticipantSets(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	s := started(t, backend, feed, "alice")
	ctx := context.Background()

	first, err := s.GetOrCreate(ctx, []string{"carol", "bob"}, "")
	assert.Equal(t, nil, err)
	second, err := s.GetOrCreate(ctx, []string{"bob", "alice", "carol", "bob"}, "")
	assert.Equal(t, nil, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, backend.created)
	assert.Equal(t, models.ConversationStartedText, first.LastMessageText)
	assert.Equal(t, 0, first.Unread("bob"))

	// a subset is a different conversation
	direct, err := s.GetOrCreate(ctx, []string{"bob"}, "")
	assert.Equal(t, nil, err)
	assert.NotEqual(t, first.ID, direct.ID)
	assert.Equal(t, 2, backend.created)
}

func TestGetOrCreateConcurrentCallsCreateOnce(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	s := started(t, backend, feed, "alice")

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := s.GetOrCreate(context.Background(), []string{"bob"}, "")
			if err == nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, backend.created)
}

func TestUnreadTotal(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	backend.conversations["c1"] = conversation("c1", base, map[string]int{"alice": 3, "bob": 9}, "alice", "bob")
	backend.conversations["c2"] = conversation("c2", base, map[string]int{"alice": 0}, "alice", "carol")
	backend.conversations["c3"] = conversation("c3", base, map[string]int{"alice": 5}, "alice", "dave")
	backend.conversations["c4"] = conversation("c4", base, map[string]int{"bob": 4}, "bob", "dave")
	s := started(t, backend, feed, "alice")

	assert.Equal(t, 8, s.UnreadTotal())

	assert.Equal(t, nil, s.MarkAsRead(context.Background(), "c1"))
	assert.Equal(t, 5, s.UnreadTotal())
	stored := backend.conversations["c1"]
	assert.Equal(t, 0, stored.Unread("alice"))
}

func TestSendFlowsThroughChangeStream(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	backend.conversations["c1"] = conversation("c1", base, map[string]int{}, "alice", "bob")
	s := started(t, backend, feed, "alice")

	changes := 0
	s.OnChange(func() { changes++ })

	msg, err := s.Send(context.Background(), "c1", "  gg  ")
	assert.Equal(t, nil, err)
	assert.Equal(t, "gg", msg.Text)

	msgs := s.Messages("c1")
	assert.Equal(t, 1, len(msgs))
	assert.Equal(t, "alice", msgs[0].SenderID)

	c, _ := s.Conversation("c1")
	assert.Equal(t, "gg", c.LastMessageText)
	assert.Equal(t, 1, c.Unread("bob"))
	assert.Equal(t, 0, c.Unread("alice"))
	assert.T(t, changes >= 2)
}

func TestSendValidation(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	backend.conversations["c1"] = conversation("c1", base, nil, "alice", "bob")
	s := started(t, backend, feed, "alice")
	ctx := context.Background()

	_, err := s.Send(ctx, "c1", "   ")
	assert.T(t, errors.Is(err, apperr.ErrValidation))

	_, err = s.Send(ctx, "missing", "hi")
	assert.T(t, errors.Is(err, apperr.ErrNotFound))

	backend.failLast = true
	msg, err := s.Send(ctx, "c1", "hi")
	assert.T(t, errors.Is(err, apperr.ErrPartialFailure))
	assert.NotEqual(t, (*models.Message)(nil), msg)
}

func TestRestartReplacesSubscriptions(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	s := started(t, backend, feed, "alice")
	assert.Equal(t, nil, s.Start(context.Background()))

	assert.Equal(t, 1, feed.SubscriberCount(realtime.TableMessages))
	assert.Equal(t, 1, feed.SubscriberCount(realtime.TableConversations))

	s.Close()
	assert.Equal(t, 0, feed.SubscriberCount(realtime.TableMessages))
}

// lateWriteBackend commits a message right after taking its message snapshot
type lateWriteBackend struct {
	*fakeBackend
	once sync.Once
	late models.Message
}

func (b *lateWriteBackend) ListMessages(ctx context.Context, ids []string) ([]models.Message, error) {
	out, err := b.fakeBackend.ListMessages(ctx, ids)
	b.once.Do(func() {
		late := b.late
		_ = b.fakeBackend.CreateMessage(ctx, &late)
	})
	return out, err
}

func TestStartKeepsWritesCommittedDuringLoad(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	inner := newFakeBackend(feed)
	inner.conversations["c1"] = conversation("c1", base, nil, "alice", "bob")
	inner.messages = []models.Message{message("m1", "c1", base.Add(time.Second), "early")}
	backend := &lateWriteBackend{fakeBackend: inner, late: message("m2", "c1", base.Add(2*time.Second), "late")}

	s := NewSynchronizer("alice", backend, feed)
	assert.Equal(t, nil, s.Start(context.Background()))

	assert.T(t, !s.Loading())
	assert.Equal(t, len(inner.messages), len(s.Messages("c1")))
	c, _ := s.Conversation("c1")
	assert.Equal(t, "late", c.LastMessageText)
}

func TestLoadRecoversDroppedEvents(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	backend.conversations["c1"] = conversation("c1", base, nil, "alice", "bob")
	backend.conversations["c2"] = conversation("c2", base, nil, "alice", "carol")
	backend.messages = []models.Message{message("m1", "c1", base.Add(time.Second), "first")}
	s := started(t, backend, feed, "alice")

	// rows written while the feed was down
	backend.mu.Lock()
	backend.messages = append(backend.messages, message("m2", "c1", base.Add(2*time.Second), "second"))
	backend.conversations["c3"] = conversation("c3", base, nil, "alice", "dave")
	delete(backend.conversations, "c2")
	backend.mu.Unlock()
	assert.Equal(t, 1, len(s.Messages("c1")))

	assert.Equal(t, nil, s.Load(context.Background()))

	var texts []string
	for _, m := range s.Messages("c1") {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"first", "second"}, texts)

	_, ok := s.Conversation("c2")
	assert.T(t, !ok)
	_, ok = s.Conversation("c3")
	assert.T(t, ok)

	// the stream keeps working after a reload and still dedupes
	assert.T(t, !s.ApplyMessageInsert(message("m2", "c1", base.Add(2*time.Second), "second")))
	assert.T(t, s.ApplyMessageInsert(message("m3", "c1", base.Add(3*time.Second), "third")))
}

func TestLoadKeepsNewerLocalLastMessage(t *testing.T) {
	feed := realtime.NewMemoryFeed()
	backend := newFakeBackend(feed)
	backend.conversations["c1"] = conversation("c1", base, nil, "alice", "bob")
	s := started(t, backend, feed, "alice")

	assert.T(t, s.ApplyMessageInsert(message("m1", "c1", base.Add(time.Minute), "fresh")))
	assert.Equal(t, nil, s.Load(context.Background()))

	c, _ := s.Conversation("c1")
	assert.Equal(t, "fresh", c.LastMessageText)
	assert.Equal(t, 1, len(s.Messages("c1")))
}
