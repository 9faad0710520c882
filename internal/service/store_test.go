package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/models"
	"evade-competitive/internal/ranking"
	"evade-competitive/internal/realtime"
	"evade-competitive/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// memStore is an in-memory data access layer that publishes change events on a memory feed
type memStore struct {
	mu            sync.Mutex
	feed          *realtime.MemoryFeed
	accounts      map[string]models.Account
	players       map[string]models.Player
	order         []string
	records       map[string]models.WorldRecord
	badges        map[string]models.Badge
	clans         map[string]models.Clan
	submissions   map[string]models.Submission
	announcements map[string]models.Announcement
	tags          []models.UsernameColorTag
	settings      map[string]models.Setting
	sessions      map[string]string

	failCreatePlayer bool
}

func newMemStore() *memStore {
	return &memStore{
		feed:          realtime.NewMemoryFeed(),
		accounts:      make(map[string]models.Account),
		players:       make(map[string]models.Player),
		records:       make(map[string]models.WorldRecord),
		badges:        make(map[string]models.Badge),
		clans:         make(map[string]models.Clan),
		submissions:   make(map[string]models.Submission),
		announcements: make(map[string]models.Announcement),
		settings:      make(map[string]models.Setting),
		sessions:      make(map[string]string),
	}
}

func (m *memStore) emit(table realtime.Table, eventType realtime.EventType, row interface{}) {
	event, err := realtime.NewEvent(table, eventType, row, nil)
	if err == nil {
		_ = m.feed.Publish(context.Background(), event)
	}
}

func (m *memStore) Subscribe(ctx context.Context, table realtime.Table, handler realtime.Handler) (realtime.Subscription, error) {
	return m.feed.Subscribe(ctx, table, handler)
}

// accounts and sessions

func (m *memStore) CreateAccount(ctx context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return apperr.ErrAuth
		}
	}
	m.accounts[a.ID] = *a
	return nil
}

func (m *memStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, apperr.NotFound("account")
}

func (m *memStore) SaveSession(ctx context.Context, token, playerID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = playerID
	return nil
}

func (m *memStore) GetSession(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.sessions[token]
	if !ok {
		return "", apperr.ErrAuth
	}
	return id, nil
}

func (m *memStore) DeleteSession(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

// players

func (m *memStore) CreatePlayer(ctx context.Context, p *models.Player) error {
	if m.failCreatePlayer {
		return errors.New("insert failed")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.players[p.ID] = *p
	m.order = append(m.order, p.ID)
	m.mu.Unlock()
	m.emit(realtime.TablePlayers, realtime.EventInsert, p)
	return nil
}

func (m *memStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return nil, apperr.NotFound("player")
	}
	p.BadgeIDs = append(datatypes.JSONSlice[string]{}, p.BadgeIDs...)
	return &p, nil
}

func (m *memStore) GetPlayerByUsername(ctx context.Context, username string) (*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players {
		if p.Username == username {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("player")
}

func (m *memStore) ListPlayers(ctx context.Context) ([]models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Player, 0, len(m.order))
	for _, id := range m.order {
		if p, ok := m.players[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListPlayersByIDs(ctx context.Context, ids []string) ([]models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Player
	for _, id := range ids {
		if p, ok := m.players[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListClanMembers(ctx context.Context, clanID string) ([]models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Player
	for _, p := range m.players {
		if p.ClanID != nil && *p.ClanID == clanID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) SavePlayer(ctx context.Context, p *models.Player) error {
	m.mu.Lock()
	m.players[p.ID] = *p
	m.mu.Unlock()
	m.emit(realtime.TablePlayers, realtime.EventUpdate, p)
	return nil
}

func (m *memStore) DeletePlayer(ctx context.Context, id string) error {
	m.mu.Lock()
	if _, ok := m.players[id]; !ok {
		m.mu.Unlock()
		return apperr.NotFound("player")
	}
	delete(m.players, id)
	delete(m.accounts, id)
	for rid, r := range m.records {
		if r.PlayerID == id {
			delete(m.records, rid)
		}
	}
	m.mu.Unlock()
	m.emit(realtime.TablePlayers, realtime.EventDelete, nil)
	return nil
}

// records

func (m *memStore) ListRecords(ctx context.Context, verifiedOnly bool) ([]models.WorldRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.WorldRecord
	for _, r := range m.records {
		if verifiedOnly && !r.IsVerified {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateRecord(ctx context.Context, r *models.WorldRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	m.mu.Lock()
	m.records[r.ID] = *r
	m.mu.Unlock()
	m.emit(realtime.TableWorldRecords, realtime.EventInsert, r)
	return nil
}

func (m *memStore) SetRecordVerified(ctx context.Context, id string, verified bool) (*models.WorldRecord, error) {
	m.mu.Lock()
	r, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return nil, apperr.NotFound("world record")
	}
	r.IsVerified = verified
	m.records[id] = r
	m.mu.Unlock()
	m.emit(realtime.TableWorldRecords, realtime.EventUpdate, r)
	return &r, nil
}

func (m *memStore) DeleteAllRecords(ctx context.Context) (int64, error) {
	m.mu.Lock()
	n := int64(len(m.records))
	m.records = make(map[string]models.WorldRecord)
	m.mu.Unlock()
	m.emit(realtime.TableWorldRecords, realtime.EventDelete, nil)
	return n, nil
}

// badges, tags, clans

func (m *memStore) GetBadge(ctx context.Context, id string) (*models.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.badges[id]
	if !ok {
		return nil, apperr.NotFound("badge")
	}
	return &b, nil
}

func (m *memStore) ListBadges(ctx context.Context) ([]models.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Badge
	for _, b := range m.badges {
		out = append(out, b)
	}
	return out, nil
}

func (m *memStore) HasStaffBadge(ctx context.Context, ids []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if b, ok := m.badges[id]; ok && b.IsStaff {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListColorTags(ctx context.Context) ([]models.UsernameColorTag, error) {
	return m.tags, nil
}

func (m *memStore) CreateClan(ctx context.Context, c *models.Clan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.clans {
		if existing.Tag == c.Tag {
			return apperr.Validation("clan %q already exists", c.Tag)
		}
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.clans[c.ID] = *c
	return nil
}

func (m *memStore) ListClans(ctx context.Context) ([]models.Clan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Clan
	for _, c := range m.clans {
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) GetClan(ctx context.Context, id string) (*models.Clan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clans[id]
	if !ok {
		return nil, apperr.NotFound("clan")
	}
	return &c, nil
}

// submissions

func (m *memStore) CreateSubmission(ctx context.Context, s *models.Submission) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[s.ID] = *s
	return nil
}

func (m *memStore) ListSubmissions(ctx context.Context, status models.SubmissionStatus) ([]models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Submission
	for _, s := range m.submissions {
		if status == "" || s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, apperr.NotFound("submission")
	}
	return &s, nil
}

func (m *memStore) SaveSubmission(ctx context.Context, s *models.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[s.ID] = *s
	return nil
}

// announcements

func (m *memStore) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announcements[a.ID] = *a
	return nil
}

func (m *memStore) ListAnnouncements(ctx context.Context, status models.AnnouncementStatus) ([]models.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Announcement
	for _, a := range m.announcements {
		if a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) DueAnnouncements(ctx context.Context, now time.Time) ([]models.Announcement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Announcement
	for _, a := range m.announcements {
		if a.Status == models.AnnouncementScheduled && a.PublishAt != nil && !a.PublishAt.After(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) SaveAnnouncement(ctx context.Context, a *models.Announcement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announcements[a.ID] = *a
	return nil
}

// settings

func (m *memStore) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[key]
	if !ok {
		return nil, apperr.NotFound("setting")
	}
	return &s, nil
}

func (m *memStore) UpsertSetting(ctx context.Context, key string, value []byte) (*models.Setting, error) {
	s := models.Setting{Key: key, Value: datatypes.JSON(value), UpdatedAt: time.Now()}
	m.mu.Lock()
	m.settings[key] = s
	m.mu.Unlock()
	m.emit(realtime.TableSettings, realtime.EventUpdate, s)
	return &s, nil
}

// memCache is an in-memory ranking cache
type memCache struct {
	mu      sync.Mutex
	entries []repository.CachedEntry
	version int64
}

func (c *memCache) StoreRanking(ctx context.Context, scores []ranking.Score) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = c.entries[:0]
	for _, s := range scores {
		c.entries = append(c.entries, repository.CachedEntry{PlayerID: s.PlayerID, DisplayName: s.DisplayName, Score: s.Score})
	}
	c.version++
	return nil
}

func (c *memCache) GetTopPlayers(ctx context.Context, offset, limit int) ([]repository.CachedEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if offset >= len(c.entries) {
		return []repository.CachedEntry{}, nil
	}
	end := offset + limit
	if end > len(c.entries) {
		end = len(c.entries)
	}
	return append([]repository.CachedEntry{}, c.entries[offset:end]...), nil
}

func (c *memCache) GetEntries(ctx context.Context, ids []string) ([]repository.CachedEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []repository.CachedEntry
	for _, id := range ids {
		for _, e := range c.entries {
			if e.PlayerID == id {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (c *memCache) GetPlayerRank(ctx context.Context, playerID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.entries {
		if e.PlayerID == playerID {
			return i + 1, nil
		}
	}
	return 0, apperr.NotFound("ranked player")
}

func (c *memCache) GetTotalPlayers(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.entries)), nil
}

func (c *memCache) GetLeaderboardVersion(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, nil
}
