// Package datastore is the data access layer: typed reads and writes per entity,
// change-feed subscriptions and session primitives behind one value.
package datastore

import (
	"context"
	"time"

	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"
	"evade-competitive/internal/realtime"
	"evade-competitive/internal/repository"
)

// EventSink accepts change events for asynchronous publication
type EventSink interface {
	Enqueue(event realtime.ChangeEvent) error
}

// SessionStore keeps opaque session tokens
type SessionStore interface {
	SaveSession(ctx context.Context, token, playerID string, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
}

// DataAccess wraps the Postgres repository. Reads pass straight through; every write
// is followed by a change event on the feed.
type DataAccess struct {
	*repository.PostgresRepository
	SessionStore

	feed realtime.Feed
	sink EventSink
}

// New creates the data access layer
func New(repo *repository.PostgresRepository, sessions SessionStore, feed realtime.Feed, sink EventSink) *DataAccess {
	return &DataAccess{
		PostgresRepository: repo,
		SessionStore:       sessions,
		feed:               feed,
		sink:               sink,
	}
}

// Subscribe opens a change stream for table
func (d *DataAccess) Subscribe(ctx context.Context, table realtime.Table, handler realtime.Handler) (realtime.Subscription, error) {
	return d.feed.Subscribe(ctx, table, handler)
}

func (d *DataAccess) emit(table realtime.Table, eventType realtime.EventType, newRow, oldRow interface{}) {
	event, err := realtime.NewEvent(table, eventType, newRow, oldRow)
	if err != nil {
		logger.Warning("Failed to build %s %s event: %v", table, eventType, err)
		return
	}
	if err := d.sink.Enqueue(event); err != nil {
		logger.Warning("Change event %s %s not published: %v", table, eventType, err)
	}
}

type idRow struct {
	ID string `json:"id"`
}

// ---- players ----

func (d *DataAccess) CreatePlayer(ctx context.Context, player *models.Player) error {
	if err := d.PostgresRepository.CreatePlayer(ctx, player); err != nil {
		return err
	}
	d.emit(realtime.TablePlayers, realtime.EventInsert, player, nil)
	return nil
}

func (d *DataAccess) SavePlayer(ctx context.Context, player *models.Player) error {
	if err := d.PostgresRepository.SavePlayer(ctx, player); err != nil {
		return err
	}
	d.emit(realtime.TablePlayers, realtime.EventUpdate, player, nil)
	return nil
}

func (d *DataAccess) DeletePlayer(ctx context.Context, id string) error {
	if err := d.PostgresRepository.DeletePlayer(ctx, id); err != nil {
		return err
	}
	d.emit(realtime.TablePlayers, realtime.EventDelete, nil, idRow{ID: id})
	return nil
}

// ---- world records ----

func (d *DataAccess) CreateRecord(ctx context.Context, record *models.WorldRecord) error {
	if err := d.PostgresRepository.CreateRecord(ctx, record); err != nil {
		return err
	}
	d.emit(realtime.TableWorldRecords, realtime.EventInsert, record, nil)
	return nil
}

func (d *DataAccess) SetRecordVerified(ctx context.Context, id string, verified bool) (*models.WorldRecord, error) {
	record, err := d.PostgresRepository.SetRecordVerified(ctx, id, verified)
	if err != nil {
		return nil, err
	}
	d.emit(realtime.TableWorldRecords, realtime.EventUpdate, record, nil)
	return record, nil
}

func (d *DataAccess) DeleteAllRecords(ctx context.Context) (int64, error) {
	n, err := d.PostgresRepository.DeleteAllRecords(ctx)
	if err != nil {
		return 0, err
	}
	d.emit(realtime.TableWorldRecords, realtime.EventDelete, nil, nil)
	return n, nil
}

// ---- badges, color tags, clans ----

func (d *DataAccess) CreateBadge(ctx context.Context, badge *models.Badge) error {
	if err := d.PostgresRepository.CreateBadge(ctx, badge); err != nil {
		return err
	}
	d.emit(realtime.TableBadges, realtime.EventInsert, badge, nil)
	return nil
}

func (d *DataAccess) CreateColorTag(ctx context.Context, tag *models.UsernameColorTag) error {
	if err := d.PostgresRepository.CreateColorTag(ctx, tag); err != nil {
		return err
	}
	d.emit(realtime.TableColorTags, realtime.EventInsert, tag, nil)
	return nil
}

func (d *DataAccess) CreateClan(ctx context.Context, clan *models.Clan) error {
	if err := d.PostgresRepository.CreateClan(ctx, clan); err != nil {
		return err
	}
	d.emit(realtime.TableClans, realtime.EventInsert, clan, nil)
	return nil
}

// ---- submissions, announcements, settings ----

func (d *DataAccess) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	if err := d.PostgresRepository.CreateSubmission(ctx, submission); err != nil {
		return err
	}
	d.emit(realtime.TableSubmissions, realtime.EventInsert, submission, nil)
	return nil
}

func (d *DataAccess) SaveSubmission(ctx context.Context, submission *models.Submission) error {
	if err := d.PostgresRepository.SaveSubmission(ctx, submission); err != nil {
		return err
	}
	d.emit(realtime.TableSubmissions, realtime.EventUpdate, submission, nil)
	return nil
}

func (d *DataAccess) CreateAnnouncement(ctx context.Context, announcement *models.Announcement) error {
	if err := d.PostgresRepository.CreateAnnouncement(ctx, announcement); err != nil {
		return err
	}
	d.emit(realtime.TableAnnouncements, realtime.EventInsert, announcement, nil)
	return nil
}

func (d *DataAccess) SaveAnnouncement(ctx context.Context, announcement *models.Announcement) error {
	if err := d.PostgresRepository.SaveAnnouncement(ctx, announcement); err != nil {
		return err
	}
	d.emit(realtime.TableAnnouncements, realtime.EventUpdate, announcement, nil)
	return nil
}

func (d *DataAccess) UpsertSetting(ctx context.Context, key string, value []byte) (*models.Setting, error) {
	setting, err := d.PostgresRepository.UpsertSetting(ctx, key, value)
	if err != nil {
		return nil, err
	}
	d.emit(realtime.TableSettings, realtime.EventUpdate, setting, nil)
	return setting, nil
}

// ---- conversations, messages ----

func (d *DataAccess) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	if err := d.PostgresRepository.CreateConversation(ctx, conversation); err != nil {
		return err
	}
	d.emit(realtime.TableConversations, realtime.EventInsert, conversation, nil)
	return nil
}

func (d *DataAccess) ApplyLastMessage(ctx context.Context, msg models.Message) (*models.Conversation, error) {
	conversation, err := d.PostgresRepository.ApplyLastMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	d.emit(realtime.TableConversations, realtime.EventUpdate, conversation, nil)
	return conversation, nil
}

func (d *DataAccess) ResetUnread(ctx context.Context, conversationID, playerID string) (*models.Conversation, error) {
	conversation, err := d.PostgresRepository.ResetUnread(ctx, conversationID, playerID)
	if err != nil {
		return nil, err
	}
	d.emit(realtime.TableConversations, realtime.EventUpdate, conversation, nil)
	return conversation, nil
}

func (d *DataAccess) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := d.PostgresRepository.CreateMessage(ctx, msg); err != nil {
		return err
	}
	d.emit(realtime.TableMessages, realtime.EventInsert, msg, nil)
	return nil
}
