package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"evade-competitive/internal/chat"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"
	"evade-competitive/internal/realtime"
)

// NameResolver maps player ids to display names
type NameResolver interface {
	Names(ctx context.Context, ids []string) (map[string]string, error)
}

// ChatService owns one synchronizer per staff member with an open session
type ChatService struct {
	backend chat.Backend
	feed    realtime.Feed
	names   NameResolver

	mu    sync.Mutex
	users map[string]*chat.Synchronizer
}

// NewChatService creates a new chat service
func NewChatService(backend chat.Backend, feed realtime.Feed, names NameResolver) *ChatService {
	return &ChatService{
		backend: backend,
		feed:    feed,
		names:   names,
		users:   make(map[string]*chat.Synchronizer),
	}
}

// ForUser returns the user's synchronizer, loading and subscribing it on first use
func (s *ChatService) ForUser(ctx context.Context, userID string) (*chat.Synchronizer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if syncer, ok := s.users[userID]; ok {
		return syncer, nil
	}

	syncer := chat.NewSynchronizer(userID, s.backend, s.feed)
	if err := syncer.Start(ctx); err != nil {
		syncer.Close()
		return nil, fmt.Errorf("failed to start chat for %s: %w", userID, err)
	}
	s.users[userID] = syncer
	logger.Debug("Chat synchronizer started for %s", userID)
	return syncer, nil
}

// Release stops and forgets the user's synchronizer
func (s *ChatService) Release(userID string) {
	s.mu.Lock()
	syncer, ok := s.users[userID]
	delete(s.users, userID)
	s.mu.Unlock()

	if ok {
		syncer.Close()
	}
}

// Close stops every synchronizer
func (s *ChatService) Close() {
	s.mu.Lock()
	users := s.users
	s.users = make(map[string]*chat.Synchronizer)
	s.mu.Unlock()

	for _, syncer := range users {
		syncer.Close()
	}
}

// Resync reloads every held synchronizer so events lost by the feed are recovered.
// Returns how many users were reloaded.
func (s *ChatService) Resync(ctx context.Context) (int, error) {
	s.mu.Lock()
	syncers := make([]*chat.Synchronizer, 0, len(s.users))
	for _, syncer := range s.users {
		syncers = append(syncers, syncer)
	}
	s.mu.Unlock()

	var errs []error
	for _, syncer := range syncers {
		if err := syncer.Load(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", syncer.UserID(), err))
		}
	}
	return len(syncers) - len(errs), errors.Join(errs...)
}

// Views decorates conversations with the viewer's display name and unread count
func (s *ChatService) Views(ctx context.Context, userID string, conversations []models.Conversation) ([]models.ConversationView, error) {
	seen := make(map[string]struct{})
	var ids []string
	for i := range conversations {
		for _, id := range conversations[i].ParticipantIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	names, err := s.names.Names(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve participant names: %w", err)
	}

	views := make([]models.ConversationView, 0, len(conversations))
	for i := range conversations {
		c := conversations[i]
		views = append(views, models.ConversationView{
			Conversation: c,
			DisplayName:  c.DisplayName(userID, names),
			Unread:       c.Unread(userID),
		})
	}
	return views, nil
}
