package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/models"
	"evade-competitive/internal/service"

	"github.com/bmizerany/assert"
	"github.com/gofiber/fiber/v2"
)

// fakeStore backs the auth, player and admin services
type fakeStore struct {
	players  map[string]*models.Player
	sessions map[string]string
	settings map[string][]byte
	records  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players: map[string]*models.Player{
			"staff-1":  {ID: "staff-1", Username: "mod", BadgeIDs: []string{"staff"}},
			"player-1": {ID: "player-1", Username: "runner"},
		},
		sessions: map[string]string{
			"staff-token":  "staff-1",
			"player-token": "player-1",
		},
		settings: make(map[string][]byte),
		records:  4,
	}
}

func (f *fakeStore) CreateAccount(ctx context.Context, a *models.Account) error { return nil }
func (f *fakeStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return nil, apperr.NotFound("account")
}
func (f *fakeStore) CreatePlayer(ctx context.Context, p *models.Player) error { return nil }

func (f *fakeStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	p, ok := f.players[id]
	if !ok {
		return nil, apperr.NotFound("player")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetPlayerByUsername(ctx context.Context, username string) (*models.Player, error) {
	for _, p := range f.players {
		if p.Username == username {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("player")
}

func (f *fakeStore) SaveSession(ctx context.Context, token, playerID string, ttl time.Duration) error {
	f.sessions[token] = playerID
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, token string) (string, error) {
	id, ok := f.sessions[token]
	if !ok {
		return "", apperr.ErrAuth
	}
	return id, nil
}

func (f *fakeStore) DeleteSession(ctx context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeStore) ListPlayers(ctx context.Context) ([]models.Player, error) { return nil, nil }
func (f *fakeStore) ListPlayersByIDs(ctx context.Context, ids []string) ([]models.Player, error) {
	var out []models.Player
	for _, id := range ids {
		if p, ok := f.players[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) SavePlayer(ctx context.Context, p *models.Player) error {
	cp := *p
	f.players[p.ID] = &cp
	return nil
}

func (f *fakeStore) GetBadge(ctx context.Context, id string) (*models.Badge, error) {
	return nil, apperr.NotFound("badge")
}
func (f *fakeStore) ListBadges(ctx context.Context) ([]models.Badge, error) { return nil, nil }

func (f *fakeStore) HasStaffBadge(ctx context.Context, ids []string) (bool, error) {
	for _, id := range ids {
		if id == "staff" {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) ListColorTags(ctx context.Context) ([]models.UsernameColorTag, error) {
	return nil, nil
}
func (f *fakeStore) ListRecords(ctx context.Context, verifiedOnly bool) ([]models.WorldRecord, error) {
	return nil, nil
}

func (f *fakeStore) UpsertSetting(ctx context.Context, key string, value []byte) (*models.Setting, error) {
	f.settings[key] = value
	return &models.Setting{Key: key, Value: value}, nil
}

func (f *fakeStore) SetRecordVerified(ctx context.Context, id string, verified bool) (*models.WorldRecord, error) {
	return nil, apperr.NotFound("world record")
}

func (f *fakeStore) DeletePlayer(ctx context.Context, id string) error {
	delete(f.players, id)
	return nil
}

func (f *fakeStore) DeleteAllRecords(ctx context.Context) (int64, error) {
	n := f.records
	f.records = 0
	return n, nil
}

func newTestApp(store *fakeStore) *fiber.App {
	auth := service.NewAuthService(store, time.Hour)
	players := service.NewPlayerService(store)
	admin := service.NewAdminService(store)

	app := fiber.New()
	RegisterRoutes(app, Handlers{
		Auth:    NewAuthMiddleware(auth, players),
		Session: NewAuthHandler(auth),
		Admin:   NewAdminHandler(admin, players),
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token, body string) (int, models.ErrorResponse) {
	var errResp models.ErrorResponse
	status := doJSON(t, app, method, path, token, body, &errResp)
	return status, errResp
}

// doJSON sends the request and decodes the response body into out
func doJSON(t *testing.T, app *fiber.App, method, path, token, body string, out interface{}) int {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	assert.Equal(t, nil, err)
	defer resp.Body.Close()

	json.NewDecoder(resp.Body).Decode(out)
	return resp.StatusCode
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	app := newTestApp(newFakeStore())
	body := `{"speed":50,"economy":30,"cosmetics":20}`

	status, _ := do(t, app, "PUT", "/api/v1/admin/weights", "", body)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _ = do(t, app, "PUT", "/api/v1/admin/weights", "bogus", body)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, errResp := do(t, app, "PUT", "/api/v1/admin/weights", "player-token", body)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Forbidden", errResp.Error)
}

func TestSetWeightsValidation(t *testing.T) {
	store := newFakeStore()
	app := newTestApp(store)

	// out of range fails the struct tags
	status, errResp := do(t, app, "PUT", "/api/v1/admin/weights", "staff-token", `{"speed":150,"economy":0,"cosmetics":0}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", errResp.Error)

	// in range but not summing to 100
	status, _ = do(t, app, "PUT", "/api/v1/admin/weights", "staff-token", `{"speed":50,"economy":30,"cosmetics":30}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, 0, len(store.settings))

	status, _ = do(t, app, "PUT", "/api/v1/admin/weights", "staff-token", `{"speed":50,"economy":30,"cosmetics":20}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.T(t, len(store.settings[models.SettingLeaderboardWeights]) > 0)
}

func TestDestructiveActionsNeedExactPhrase(t *testing.T) {
	store := newFakeStore()
	app := newTestApp(store)

	status, errResp := do(t, app, "POST", "/api/v1/admin/season/reset", "staff-token", `{"confirmation":"reset season"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Confirmation required", errResp.Error)
	assert.Equal(t, int64(4), store.records)

	status, _ = do(t, app, "POST", "/api/v1/admin/season/reset", "staff-token", `{"confirmation":"RESET SEASON"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, int64(0), store.records)

	status, _ = do(t, app, "DELETE", "/api/v1/admin/players/player-1", "staff-token", `{"confirmation":"DELETE someone"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = do(t, app, "DELETE", "/api/v1/admin/players/player-1", "staff-token", `{"confirmation":"DELETE runner"}`)
	assert.Equal(t, fiber.StatusOK, status)
	_, ok := store.players["player-1"]
	assert.Equal(t, false, ok)
}

func TestSignInRejectsBadInput(t *testing.T) {
	app := newTestApp(newFakeStore())

	status, errResp := do(t, app, "POST", "/api/v1/auth/signin", "", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", errResp.Error)

	status, errResp = do(t, app, "POST", "/api/v1/auth/signin", "", `{"email":"nobody@example.com","password":"hunter22"}`)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", errResp.Error)
}

func TestStatusMapping(t *testing.T) {
	status, _ := statusFor(apperr.Validation("bad"))
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, title := statusFor(apperr.NotFound("clan"))
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Not found", title)

	status, title = statusFor(apperr.ErrPartialFailure)
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "Partial failure", title)
}
