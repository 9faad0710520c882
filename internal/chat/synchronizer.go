// Package chat keeps one user's view of staff conversations consistent with the
// store, given an initial fetch and an unordered, possibly repeating change stream.
package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"
	"evade-competitive/internal/realtime"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// MaxMessageLength bounds message text in characters
const MaxMessageLength = 2000

// Backend is the slice of the data access layer the synchronizer writes through
type Backend interface {
	ListConversationsFor(ctx context.Context, playerID string) ([]models.Conversation, error)
	ListMessages(ctx context.Context, conversationIDs []string) ([]models.Message, error)
	CreateConversation(ctx context.Context, conversation *models.Conversation) error
	CreateMessage(ctx context.Context, msg *models.Message) error
	ApplyLastMessage(ctx context.Context, msg models.Message) (*models.Conversation, error)
	ResetUnread(ctx context.Context, conversationID, playerID string) (*models.Conversation, error)
}

// Synchronizer mirrors the conversations and messages visible to one user
type Synchronizer struct {
	userID   string
	backend  Backend
	registry *realtime.Registry
	creating singleflight.Group
	now      func() time.Time

	loadMu sync.Mutex

	mu            sync.Mutex
	loading       bool
	pending       []realtime.ChangeEvent
	conversations map[string]models.Conversation
	messages      map[string][]models.Message
	seen          map[string]struct{}
	onChange      func()
}

// NewSynchronizer creates an empty synchronizer for userID
func NewSynchronizer(userID string, backend Backend, feed realtime.Feed) *Synchronizer {
	return &Synchronizer{
		userID:        userID,
		backend:       backend,
		registry:      realtime.NewRegistry(feed),
		now:           func() time.Time { return time.Now().UTC() },
		conversations: make(map[string]models.Conversation),
		messages:      make(map[string][]models.Message),
		seen:          make(map[string]struct{}),
	}
}

// UserID is the user whose view this is
func (s *Synchronizer) UserID() string {
	return s.userID
}

// OnChange registers fn to run after every applied mutation. fn runs without the lock held.
func (s *Synchronizer) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Synchronizer) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Loading reports whether a fetch is in flight
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Start subscribes to both tables and then loads the user's conversations.
// Events arriving during the load are held and applied on top of the snapshot.
// Calling Start again replaces the existing subscriptions.
func (s *Synchronizer) Start(ctx context.Context) error {
	if err := s.registry.Subscribe(ctx, realtime.TableMessages, s.handleMessageEvent); err != nil {
		return fmt.Errorf("failed to subscribe to messages: %w", err)
	}
	if err := s.registry.Subscribe(ctx, realtime.TableConversations, s.handleConversationEvent); err != nil {
		s.registry.Unsubscribe(realtime.TableMessages)
		return fmt.Errorf("failed to subscribe to conversations: %w", err)
	}
	return s.Load(ctx)
}

// Close drops the subscriptions
func (s *Synchronizer) Close() {
	s.registry.Close()
}

// Load fetches the conversations containing the user and their messages and merges
// them into local state. Conversations missing from the fetch are dropped, messages
// already held are kept. Safe to call while subscribed.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	conversations, messages, err := s.fetch(ctx)
	if err != nil {
		s.replayPending()
		return err
	}

	s.mu.Lock()
	next := make(map[string]models.Conversation, len(conversations))
	for _, c := range conversations {
		if !c.HasParticipant(s.userID) {
			continue
		}
		if current, ok := s.conversations[c.ID]; ok && current.LastMessageAt.After(c.LastMessageAt) {
			c.LastMessageText = current.LastMessageText
			c.LastMessageAt = current.LastMessageAt
			c.LastMessageSenderID = current.LastMessageSenderID
		}
		next[c.ID] = c
	}

	merged := make(map[string][]models.Message, len(next))
	seen := make(map[string]struct{}, len(messages))
	for id, list := range s.messages {
		if _, ok := next[id]; !ok {
			continue
		}
		for _, m := range list {
			seen[m.ID] = struct{}{}
		}
		merged[id] = list
	}
	for _, m := range messages {
		if _, ok := next[m.ConversationID]; !ok {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged[m.ConversationID] = append(merged[m.ConversationID], m)
	}
	for id := range merged {
		sortMessages(merged[id])
	}

	s.conversations = next
	s.messages = merged
	s.seen = seen
	s.mu.Unlock()

	logger.Debug("Loaded %d conversations and %d messages for %s", len(conversations), len(messages), s.userID)
	s.replayPending()
	s.notify()
	return nil
}

func (s *Synchronizer) fetch(ctx context.Context) ([]models.Conversation, []models.Message, error) {
	conversations, err := s.backend.ListConversationsFor(ctx, s.userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conversations: %w", err)
	}

	ids := make([]string, 0, len(conversations))
	for _, c := range conversations {
		ids = append(ids, c.ID)
	}

	messages, err := s.backend.ListMessages(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return conversations, messages, nil
}

// hold queues event while a load is in flight and reports whether it did
func (s *Synchronizer) hold(event realtime.ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loading {
		return false
	}
	s.pending = append(s.pending, event)
	return true
}

// replayPending ends the load and applies the events held during it
func (s *Synchronizer) replayPending() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.loading = false
	s.mu.Unlock()

	for _, event := range pending {
		switch event.Table {
		case realtime.TableMessages:
			s.handleMessageEvent(event)
		case realtime.TableConversations:
			s.handleConversationEvent(event)
		}
	}
}

func (s *Synchronizer) handleMessageEvent(event realtime.ChangeEvent) {
	if s.hold(event) {
		return
	}
	if event.Type != realtime.EventInsert {
		return
	}
	msg, err := realtime.DecodeNew[models.Message](event)
	if err != nil {
		logger.Warning("Ignoring undecodable message event: %v", err)
		return
	}
	s.ApplyMessageInsert(msg)
}

func (s *Synchronizer) handleConversationEvent(event realtime.ChangeEvent) {
	if s.hold(event) {
		return
	}
	switch event.Type {
	case realtime.EventInsert, realtime.EventUpdate:
		conversation, err := realtime.DecodeNew[models.Conversation](event)
		if err != nil {
			logger.Warning("Ignoring undecodable conversation event: %v", err)
			return
		}
		s.ApplyConversationUpsert(conversation)

	case realtime.EventDelete:
		old, err := realtime.DecodeOld[models.Conversation](event)
		if err != nil {
			logger.Warning("Ignoring conversation delete without old row: %v", err)
			return
		}
		s.ApplyConversationDelete(old.ID)
	}
}

// ApplyMessageInsert adds msg unless it is a repeat or belongs to a conversation the user
// is not part of. Reports whether state changed.
func (s *Synchronizer) ApplyMessageInsert(msg models.Message) bool {
	s.mu.Lock()

	if _, dup := s.seen[msg.ID]; dup {
		s.mu.Unlock()
		return false
	}
	conversation, ok := s.conversations[msg.ConversationID]
	if !ok {
		s.mu.Unlock()
		return false
	}

	s.seen[msg.ID] = struct{}{}
	list := append(s.messages[msg.ConversationID], msg)
	sortMessages(list)
	s.messages[msg.ConversationID] = list

	// last-write-wins: an older message arriving late never overwrites a newer one
	if !msg.Timestamp.Before(conversation.LastMessageAt) {
		conversation.LastMessageText = msg.Text
		conversation.LastMessageAt = msg.Timestamp
		conversation.LastMessageSenderID = msg.SenderID
		s.conversations[msg.ConversationID] = conversation
	}
	s.mu.Unlock()

	s.notify()
	return true
}

// ApplyConversationUpsert stores the server row, or drops it if the user is no longer a participant
func (s *Synchronizer) ApplyConversationUpsert(conversation models.Conversation) {
	if !conversation.HasParticipant(s.userID) {
		s.ApplyConversationDelete(conversation.ID)
		return
	}

	s.mu.Lock()
	if current, ok := s.conversations[conversation.ID]; ok && current.LastMessageAt.After(conversation.LastMessageAt) {
		// keep the newer last message seen through the message stream
		conversation.LastMessageText = current.LastMessageText
		conversation.LastMessageAt = current.LastMessageAt
		conversation.LastMessageSenderID = current.LastMessageSenderID
	}
	s.conversations[conversation.ID] = conversation
	s.mu.Unlock()

	s.notify()
}

// ApplyConversationDelete removes a conversation and its messages
func (s *Synchronizer) ApplyConversationDelete(id string) {
	s.mu.Lock()
	if _, ok := s.conversations[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.conversations, id)
	for _, m := range s.messages[id] {
		delete(s.seen, m.ID)
	}
	delete(s.messages, id)
	s.mu.Unlock()

	s.notify()
}

// Conversations returns the user's conversations, most recent activity first
func (s *Synchronizer) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Conversation returns one conversation by id
func (s *Synchronizer) Conversation(id string) (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	return c, ok
}

// Messages returns a conversation's messages in ascending time order
func (s *Synchronizer) Messages(conversationID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages[conversationID]))
	copy(out, s.messages[conversationID])
	return out
}

// UnreadTotal sums the user's unread counters across their conversations
func (s *Synchronizer) UnreadTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, c := range s.conversations {
		total += c.Unread(s.userID)
	}
	return total
}

// Send writes a message and then moves the conversation's last-message fields.
// Local state is updated only when the insert comes back through the change stream.
func (s *Synchronizer) Send(ctx context.Context, conversationID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("message text is empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperr.Validation("message exceeds %d characters", MaxMessageLength)
	}
	if _, ok := s.Conversation(conversationID); !ok {
		return nil, apperr.NotFound("conversation")
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       s.userID,
		Text:           text,
		Timestamp:      s.now(),
	}

	if err := s.backend.CreateMessage(ctx, &msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	if _, err := s.backend.ApplyLastMessage(ctx, msg); err != nil {
		return &msg, fmt.Errorf("%w: message sent but conversation not updated: %v", apperr.ErrPartialFailure, err)
	}
	return &msg, nil
}

// GetOrCreate returns the conversation whose participants are exactly participantIDs plus
// the user, creating it when none exists. Concurrent calls for the same set share one creation.
func (s *Synchronizer) GetOrCreate(ctx context.Context, participantIDs []string, name string) (*models.Conversation, error) {
	canonical := models.CanonicalParticipants(append(append([]string{}, participantIDs...), s.userID))
	key := strings.Join(canonical, ",")

	v, err, _ := s.creating.Do(key, func() (interface{}, error) {
		if existing, ok := s.findByParticipants(canonical); ok {
			return existing, nil
		}

		unread := make(map[string]int, len(canonical))
		for _, id := range canonical {
			unread[id] = 0
		}

		conversation := models.Conversation{
			ID:                  uuid.NewString(),
			ParticipantIDs:      datatypes.JSONSlice[string](canonical),
			LastMessageText:     models.ConversationStartedText,
			LastMessageAt:       s.now(),
			LastMessageSenderID: s.userID,
			UnreadCounts:        datatypes.NewJSONType(unread),
		}
		if len(canonical) > 2 {
			conversation.Name = strings.TrimSpace(name)
		}

		if err := s.backend.CreateConversation(ctx, &conversation); err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}

		// memoize at once so the next lookup finds it even before the insert event arrives
		s.mu.Lock()
		if _, ok := s.conversations[conversation.ID]; !ok {
			s.conversations[conversation.ID] = conversation
		}
		stored := s.conversations[conversation.ID]
		s.mu.Unlock()

		s.notify()
		return stored, nil
	})
	if err != nil {
		return nil, err
	}

	conversation := v.(models.Conversation)
	return &conversation, nil
}

func (s *Synchronizer) findByParticipants(canonical []string) (models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.SameParticipants(canonical) {
			return c, true
		}
	}
	return models.Conversation{}, false
}

// MarkAsRead zeroes the user's unread counter on the store and locally
func (s *Synchronizer) MarkAsRead(ctx context.Context, conversationID string) error {
	if _, ok := s.Conversation(conversationID); !ok {
		return apperr.NotFound("conversation")
	}
	if _, err := s.backend.ResetUnread(ctx, conversationID, s.userID); err != nil {
		return fmt.Errorf("failed to mark conversation read: %w", err)
	}

	s.mu.Lock()
	if c, ok := s.conversations[conversationID]; ok {
		c.SetUnread(s.userID, 0)
		s.conversations[conversationID] = c
	}
	s.mu.Unlock()

	s.notify()
	return nil
}

func sortMessages(list []models.Message) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.Before(list[j].Timestamp)
		}
		return list[i].ID < list[j].ID
	})
}
