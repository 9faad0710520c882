package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"
)

// AnnouncementStore is what the announcement service needs from the data access layer
type AnnouncementStore interface {
	CreateAnnouncement(ctx context.Context, announcement *models.Announcement) error
	ListAnnouncements(ctx context.Context, status models.AnnouncementStatus) ([]models.Announcement, error)
	DueAnnouncements(ctx context.Context, now time.Time) ([]models.Announcement, error)
	SaveAnnouncement(ctx context.Context, announcement *models.Announcement) error
}

// AnnouncementService handles staff announcements
type AnnouncementService struct {
	store AnnouncementStore
	now   func() time.Time
}

// NewAnnouncementService creates a new announcement service
func NewAnnouncementService(store AnnouncementStore) *AnnouncementService {
	return &AnnouncementService{store: store, now: time.Now}
}

// Create stores a draft, a scheduled announcement, or publishes one at once
func (s *AnnouncementService) Create(ctx context.Context, authorID string, req models.CreateAnnouncementRequest) (*models.Announcement, error) {
	now := s.now().UTC()

	announcement := models.Announcement{
		Title:    strings.TrimSpace(req.Title),
		Body:     req.Body,
		AuthorID: authorID,
	}

	switch {
	case req.Draft:
		announcement.Status = models.AnnouncementDraft
		announcement.PublishAt = req.PublishAt
	case req.PublishAt != nil && req.PublishAt.After(now):
		announcement.Status = models.AnnouncementScheduled
		announcement.PublishAt = req.PublishAt
	default:
		announcement.Status = models.AnnouncementPublished
		announcement.PublishAt = &now
	}

	if err := s.store.CreateAnnouncement(ctx, &announcement); err != nil {
		return nil, fmt.Errorf("failed to create announcement: %w", err)
	}
	return &announcement, nil
}

// ListPublished returns published announcements, newest first
func (s *AnnouncementService) ListPublished(ctx context.Context) ([]models.Announcement, error) {
	return s.store.ListAnnouncements(ctx, models.AnnouncementPublished)
}

// PublishDue publishes every scheduled announcement whose time has come
func (s *AnnouncementService) PublishDue(ctx context.Context) (int, error) {
	due, err := s.store.DueAnnouncements(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to load due announcements: %w", err)
	}

	published := 0
	for i := range due {
		due[i].Status = models.AnnouncementPublished
		if err := s.store.SaveAnnouncement(ctx, &due[i]); err != nil {
			logger.Error("Failed to publish announcement %s: %v", due[i].ID, err)
			continue
		}
		published++
		logger.Info("📣 Published announcement: %s", due[i].Title)
	}
	return published, nil
}
