package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresRepository handles all PostgreSQL operations
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository creates a new Postgres repository
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return err
}

// ---- players ----

// CreatePlayer inserts a player profile
func (r *PostgresRepository) CreatePlayer(ctx context.Context, player *models.Player) error {
	return r.db.WithContext(ctx).Create(player).Error
}

// GetPlayer retrieves a player by id
func (r *PostgresRepository) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	var player models.Player
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&player).Error; err != nil {
		return nil, notFound(err, "player")
	}
	return &player, nil
}

// GetPlayerByUsername retrieves a player by username
func (r *PostgresRepository) GetPlayerByUsername(ctx context.Context, username string) (*models.Player, error) {
	var player models.Player
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&player).Error; err != nil {
		return nil, notFound(err, "player")
	}
	return &player, nil
}

// ListPlayers retrieves every player ordered by creation
func (r *PostgresRepository) ListPlayers(ctx context.Context) ([]models.Player, error) {
	var players []models.Player
	err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&players).Error
	return players, err
}

// ListPlayersByIDs retrieves the given players
func (r *PostgresRepository) ListPlayersByIDs(ctx context.Context, ids []string) ([]models.Player, error) {
	var players []models.Player
	if len(ids) == 0 {
		return players, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&players).Error
	return players, err
}

// ListClanMembers retrieves the players of a clan
func (r *PostgresRepository) ListClanMembers(ctx context.Context, clanID string) ([]models.Player, error) {
	var players []models.Player
	err := r.db.WithContext(ctx).Where("clan_id = ?", clanID).Order("username ASC").Find(&players).Error
	return players, err
}

// SavePlayer writes every column of player
func (r *PostgresRepository) SavePlayer(ctx context.Context, player *models.Player) error {
	return r.db.WithContext(ctx).Save(player).Error
}

// BulkInsertPlayers efficiently inserts multiple players
func (r *PostgresRepository) BulkInsertPlayers(ctx context.Context, players []models.Player, batchSize int) error {
	return r.db.WithContext(ctx).CreateInBatches(players, batchSize).Error
}

// GetTotalPlayers returns the total count of players
func (r *PostgresRepository) GetTotalPlayers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Player{}).Count(&count).Error
	return count, err
}

// DeletePlayer removes a player with their records, submissions and account
func (r *PostgresRepository) DeletePlayer(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("player_id = ?", id).Delete(&models.WorldRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("player_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.Account{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Player{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("player")
		}
		return nil
	})
}

// ---- accounts ----

// CreateAccount inserts an account, mapping a duplicate email to ErrAuth
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: email already registered", apperr.ErrAuth)
	}
	return err
}

// GetAccountByEmail retrieves an account by email
func (r *PostgresRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, notFound(err, "account")
	}
	return &account, nil
}

// ---- world records ----

// ListRecords retrieves world records, optionally verified only
func (r *PostgresRepository) ListRecords(ctx context.Context, verifiedOnly bool) ([]models.WorldRecord, error) {
	var records []models.WorldRecord
	q := r.db.WithContext(ctx).Order("timestamp ASC, id ASC")
	if verifiedOnly {
		q = q.Where("is_verified = ?", true)
	}
	err := q.Find(&records).Error
	return records, err
}

// GetRecord retrieves one world record
func (r *PostgresRepository) GetRecord(ctx context.Context, id string) (*models.WorldRecord, error) {
	var record models.WorldRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, notFound(err, "world record")
	}
	return &record, nil
}

// CreateRecord inserts a world record
func (r *PostgresRepository) CreateRecord(ctx context.Context, record *models.WorldRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// BulkInsertRecords efficiently inserts multiple records
func (r *PostgresRepository) BulkInsertRecords(ctx context.Context, records []models.WorldRecord, batchSize int) error {
	return r.db.WithContext(ctx).CreateInBatches(records, batchSize).Error
}

// SetRecordVerified flips the verification flag and returns the updated row
func (r *PostgresRepository) SetRecordVerified(ctx context.Context, id string, verified bool) (*models.WorldRecord, error) {
	res := r.db.WithContext(ctx).Model(&models.WorldRecord{}).Where("id = ?", id).Update("is_verified", verified)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("world record")
	}
	return r.GetRecord(ctx, id)
}

// DeleteAllRecords wipes every world record and returns the count
func (r *PostgresRepository) DeleteAllRecords(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.WorldRecord{})
	return res.RowsAffected, res.Error
}

// ---- badges, color tags ----

// ListBadges retrieves all badges
func (r *PostgresRepository) ListBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.db.WithContext(ctx).Order("name ASC").Find(&badges).Error
	return badges, err
}

// GetBadge retrieves one badge
func (r *PostgresRepository) GetBadge(ctx context.Context, id string) (*models.Badge, error) {
	var badge models.Badge
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&badge).Error; err != nil {
		return nil, notFound(err, "badge")
	}
	return &badge, nil
}

// CreateBadge inserts a badge
func (r *PostgresRepository) CreateBadge(ctx context.Context, badge *models.Badge) error {
	return r.db.WithContext(ctx).Create(badge).Error
}

// HasStaffBadge reports whether any of badgeIDs is a staff badge
func (r *PostgresRepository) HasStaffBadge(ctx context.Context, badgeIDs []string) (bool, error) {
	if len(badgeIDs) == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Badge{}).
		Where("id IN ? AND is_staff = ?", badgeIDs, true).
		Count(&count).Error
	return count > 0, err
}

// ListColorTags retrieves username color tags
func (r *PostgresRepository) ListColorTags(ctx context.Context) ([]models.UsernameColorTag, error) {
	var tags []models.UsernameColorTag
	err := r.db.WithContext(ctx).Order("name ASC").Find(&tags).Error
	return tags, err
}

// CreateColorTag inserts a color tag
func (r *PostgresRepository) CreateColorTag(ctx context.Context, tag *models.UsernameColorTag) error {
	return r.db.WithContext(ctx).Create(tag).Error
}

// ---- clans ----

// CreateClan inserts a clan, mapping a duplicate name or tag to a validation error
func (r *PostgresRepository) CreateClan(ctx context.Context, clan *models.Clan) error {
	err := r.db.WithContext(ctx).Create(clan).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Validation("clan %q already exists", clan.Tag)
	}
	return err
}

// ListClans retrieves all clans
func (r *PostgresRepository) ListClans(ctx context.Context) ([]models.Clan, error) {
	var clans []models.Clan
	err := r.db.WithContext(ctx).Order("name ASC").Find(&clans).Error
	return clans, err
}

// GetClan retrieves one clan
func (r *PostgresRepository) GetClan(ctx context.Context, id string) (*models.Clan, error) {
	var clan models.Clan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&clan).Error; err != nil {
		return nil, notFound(err, "clan")
	}
	return &clan, nil
}

// ---- submissions ----

// CreateSubmission inserts a submission
func (r *PostgresRepository) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// ListSubmissions retrieves submissions, newest first, optionally filtered by status
func (r *PostgresRepository) ListSubmissions(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error) {
	var submissions []models.Submission
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&submissions).Error
	return submissions, err
}

// GetSubmission retrieves one submission
func (r *PostgresRepository) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&submission).Error; err != nil {
		return nil, notFound(err, "submission")
	}
	return &submission, nil
}

// SaveSubmission writes every column of submission
func (r *PostgresRepository) SaveSubmission(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

// ---- announcements ----

// CreateAnnouncement inserts an announcement
func (r *PostgresRepository) CreateAnnouncement(ctx context.Context, announcement *models.Announcement) error {
	return r.db.WithContext(ctx).Create(announcement).Error
}

// ListAnnouncements retrieves announcements with the given status, newest first
func (r *PostgresRepository) ListAnnouncements(ctx context.Context, status models.AnnouncementStatus) ([]models.Announcement, error) {
	var announcements []models.Announcement
	err := r.db.WithContext(ctx).Where("status = ?", status).Order("updated_at DESC").Find(&announcements).Error
	return announcements, err
}

// DueAnnouncements retrieves scheduled announcements whose publish time has passed
func (r *PostgresRepository) DueAnnouncements(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	var announcements []models.Announcement
	err := r.db.WithContext(ctx).
		Where("status = ? AND publish_at <= ?", models.AnnouncementScheduled, now).
		Order("publish_at ASC").
		Find(&announcements).Error
	return announcements, err
}

// SaveAnnouncement writes every column of announcement
func (r *PostgresRepository) SaveAnnouncement(ctx context.Context, announcement *models.Announcement) error {
	return r.db.WithContext(ctx).Save(announcement).Error
}

// ---- settings ----

// GetSetting retrieves a setting by key
func (r *PostgresRepository) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		return nil, notFound(err, "setting")
	}
	return &setting, nil
}

// UpsertSetting creates or updates a setting
// Uses ON CONFLICT to handle upserts efficiently
func (r *PostgresRepository) UpsertSetting(ctx context.Context, key string, value []byte) (*models.Setting, error) {
	setting := models.Setting{
		Key:   key,
		Value: datatypes.JSON(value),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// ---- conversations ----

// ListConversationsFor retrieves conversations containing playerID, most recent first
func (r *PostgresRepository) ListConversationsFor(ctx context.Context, playerID string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	needle, err := json.Marshal([]string{playerID})
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).
		Where("participant_ids @> ?::jsonb", string(needle)).
		Order("last_message_at DESC").
		Find(&conversations).Error
	return conversations, err
}

// GetConversation retrieves one conversation
func (r *PostgresRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conversation).Error; err != nil {
		return nil, notFound(err, "conversation")
	}
	return &conversation, nil
}

// CreateConversation inserts a conversation
func (r *PostgresRepository) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conversation).Error
}

// ApplyLastMessage moves the conversation's last-message fields to msg unless they already
// hold a newer message, and bumps the unread counter of every participant but the sender.
// The row is locked for the duration so concurrent senders serialize.
func (r *PostgresRepository) ApplyLastMessage(ctx context.Context, msg models.Message) (*models.Conversation, error) {
	var conversation models.Conversation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", msg.ConversationID).
			First(&conversation).Error; err != nil {
			return notFound(err, "conversation")
		}

		if !msg.Timestamp.Before(conversation.LastMessageAt) {
			conversation.LastMessageText = msg.Text
			conversation.LastMessageAt = msg.Timestamp
			conversation.LastMessageSenderID = msg.SenderID
		}
		for _, id := range conversation.ParticipantIDs {
			if id != msg.SenderID {
				conversation.SetUnread(id, conversation.Unread(id)+1)
			}
		}

		return tx.Model(&conversation).Select(
			"last_message_text", "last_message_at", "last_message_sender_id", "unread_counts",
		).Updates(&conversation).Error
	})
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ResetUnread zeroes playerID's unread counter
func (r *PostgresRepository) ResetUnread(ctx context.Context, conversationID, playerID string) (*models.Conversation, error) {
	var conversation models.Conversation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", conversationID).
			First(&conversation).Error; err != nil {
			return notFound(err, "conversation")
		}
		conversation.SetUnread(playerID, 0)
		return tx.Model(&conversation).Select("unread_counts").Updates(&conversation).Error
	})
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ---- messages ----

// ListMessages retrieves the messages of the given conversations in ascending time order
func (r *PostgresRepository) ListMessages(ctx context.Context, conversationIDs []string) ([]models.Message, error) {
	var messages []models.Message
	if len(conversationIDs) == 0 {
		return messages, nil
	}
	err := r.db.WithContext(ctx).
		Where("conversation_id IN ?", conversationIDs).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// CreateMessage inserts a message
func (r *PostgresRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// ---- lifecycle ----

// Ping checks if database is reachable
func (r *PostgresRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations
func (r *PostgresRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&models.Account{},
		&models.Player{},
		&models.Clan{},
		&models.WorldRecord{},
		&models.Badge{},
		&models.Submission{},
		&models.UsernameColorTag{},
		&models.Announcement{},
		&models.Setting{},
		&models.Conversation{},
		&models.Message{},
	)
}
