package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// SubmissionStore is what the submission service needs from the data access layer
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, submission *models.Submission) error
	ListSubmissions(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error)
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	SaveSubmission(ctx context.Context, submission *models.Submission) error
	CreateRecord(ctx context.Context, record *models.WorldRecord) error
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	SavePlayer(ctx context.Context, player *models.Player) error
	GetClan(ctx context.Context, id string) (*models.Clan, error)
}

// SubmissionService handles player submissions and their review
type SubmissionService struct {
	store    SubmissionStore
	validate *validator.Validate
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(store SubmissionStore) *SubmissionService {
	return &SubmissionService{
		store:    store,
		validate: validator.New(),
	}
}

func (s *SubmissionService) decode(kind models.SubmissionKind, raw []byte) (interface{}, error) {
	var payload interface{}
	switch kind {
	case models.SubmissionRecordClaim:
		payload = &models.RecordClaimPayload{}
	case models.SubmissionStatUpdate:
		payload = &models.StatUpdatePayload{}
	case models.SubmissionClanApplication:
		payload = &models.ClanApplicationPayload{}
	default:
		return nil, apperr.Validation("unknown submission kind %q", kind)
	}

	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, apperr.Validation("malformed %s payload: %v", kind, err)
	}
	if err := s.validate.Struct(payload); err != nil {
		return nil, apperr.Validation("invalid %s payload: %v", kind, err)
	}

	if claim, ok := payload.(*models.RecordClaimPayload); ok {
		if math.IsNaN(claim.Value) || math.IsInf(claim.Value, 0) {
			return nil, apperr.Validation("record value must be a finite number")
		}
		claim.Type = strings.TrimSpace(claim.Type)
	}
	return payload, nil
}

// Create validates the payload for its kind and stores a pending submission
func (s *SubmissionService) Create(ctx context.Context, playerID string, req models.CreateSubmissionRequest) (*models.Submission, error) {
	if _, err := s.decode(req.Kind, req.Payload); err != nil {
		return nil, err
	}

	submission := models.Submission{
		PlayerID: playerID,
		Kind:     req.Kind,
		Payload:  datatypes.JSON(req.Payload),
		ProofURL: req.ProofURL,
		Status:   models.SubmissionPending,
	}
	if err := s.store.CreateSubmission(ctx, &submission); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	return &submission, nil
}

// List returns submissions, filtered by status when given
func (s *SubmissionService) List(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error) {
	switch status {
	case "", models.SubmissionPending, models.SubmissionApproved, models.SubmissionRejected:
	default:
		return nil, apperr.Validation("unknown submission status %q", status)
	}
	return s.store.ListSubmissions(ctx, status)
}

func (s *SubmissionService) pending(ctx context.Context, id string) (*models.Submission, error) {
	submission, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if submission.Status != models.SubmissionPending {
		return nil, apperr.Validation("submission already %s", submission.Status)
	}
	return submission, nil
}

// Approve applies the submission's effect and marks it approved
func (s *SubmissionService) Approve(ctx context.Context, reviewerID, id, note string) (*models.Submission, error) {
	submission, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}

	payload, err := s.decode(submission.Kind, submission.Payload)
	if err != nil {
		return nil, err
	}

	switch p := payload.(type) {
	case *models.RecordClaimPayload:
		err = s.applyRecordClaim(ctx, submission, p)
	case *models.StatUpdatePayload:
		err = s.applyStatUpdate(ctx, submission.PlayerID, p)
	case *models.ClanApplicationPayload:
		err = s.applyClanApplication(ctx, submission.PlayerID, p)
	}
	if err != nil {
		return nil, err
	}

	return s.review(ctx, submission, reviewerID, note, models.SubmissionApproved)
}

// Reject marks the submission rejected with note
func (s *SubmissionService) Reject(ctx context.Context, reviewerID, id, note string) (*models.Submission, error) {
	submission, err := s.pending(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.review(ctx, submission, reviewerID, note, models.SubmissionRejected)
}

func (s *SubmissionService) review(ctx context.Context, submission *models.Submission, reviewerID, note string, status models.SubmissionStatus) (*models.Submission, error) {
	submission.Status = status
	submission.ReviewerID = &reviewerID
	submission.ReviewNote = strings.TrimSpace(note)

	if err := s.store.SaveSubmission(ctx, submission); err != nil {
		if status == models.SubmissionApproved {
			return nil, fmt.Errorf("%w: submission applied but not marked approved: %v", apperr.ErrPartialFailure, err)
		}
		return nil, fmt.Errorf("failed to save review: %w", err)
	}

	logger.Info("📝 Submission %s (%s) %s by %s", submission.ID, submission.Kind, status, reviewerID)
	return submission, nil
}

func (s *SubmissionService) applyRecordClaim(ctx context.Context, submission *models.Submission, claim *models.RecordClaimPayload) error {
	record := models.WorldRecord{
		PlayerID:   submission.PlayerID,
		Type:       claim.Type,
		Value:      claim.Value,
		ProofURL:   submission.ProofURL,
		Region:     claim.Region,
		IsVerified: true,
	}
	if err := s.store.CreateRecord(ctx, &record); err != nil {
		return fmt.Errorf("failed to create world record: %w", err)
	}
	return nil
}

func (s *SubmissionService) applyStatUpdate(ctx context.Context, playerID string, update *models.StatUpdatePayload) error {
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	player.Stats = datatypes.NewJSONType(player.Stats.Data().Merge(update.Stats))
	if err := s.store.SavePlayer(ctx, player); err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}
	return nil
}

func (s *SubmissionService) applyClanApplication(ctx context.Context, playerID string, application *models.ClanApplicationPayload) error {
	if _, err := s.store.GetClan(ctx, application.ClanID); err != nil {
		return err
	}
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	clanID := application.ClanID
	player.ClanID = &clanID
	if err := s.store.SavePlayer(ctx, player); err != nil {
		return fmt.Errorf("failed to join clan: %w", err)
	}
	return nil
}
