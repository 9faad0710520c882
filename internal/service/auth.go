package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionState is a step of the sign-in lifecycle
type SessionState string

const (
	SessionSignedOut SessionState = "signed_out"
	SessionSigningIn SessionState = "signing_in"
	SessionSignedIn  SessionState = "signed_in"
)

var sessionTransitions = map[SessionState][]SessionState{
	SessionSignedOut: {SessionSigningIn},
	SessionSigningIn: {SessionSignedIn, SessionSignedOut},
	SessionSignedIn:  {SessionSignedOut},
}

// Session is an explicit value for one sign-in lifecycle
type Session struct {
	State     SessionState `json:"state"`
	PlayerID  string       `json:"player_id,omitempty"`
	Token     string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at,omitempty"`
}

// NewSession starts signed out
func NewSession() Session {
	return Session{State: SessionSignedOut}
}

// Transition moves to next, rejecting moves the lifecycle does not allow
func (s Session) Transition(next SessionState) (Session, error) {
	for _, allowed := range sessionTransitions[s.State] {
		if allowed == next {
			out := s
			out.State = next
			if next == SessionSignedOut {
				out.PlayerID = ""
				out.Token = ""
				out.ExpiresAt = time.Time{}
			}
			return out, nil
		}
	}
	return s, fmt.Errorf("illegal session transition %s -> %s", s.State, next)
}

// SessionChange is delivered to listeners on every transition
type SessionChange struct {
	From     SessionState
	To       SessionState
	PlayerID string
}

// AuthStore is what auth needs from the data access layer
type AuthStore interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	CreatePlayer(ctx context.Context, player *models.Player) error
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	GetPlayerByUsername(ctx context.Context, username string) (*models.Player, error)
	SaveSession(ctx context.Context, token, playerID string, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
}

// AuthService handles accounts and opaque session tokens
type AuthService struct {
	store      AuthStore
	sessionTTL time.Duration
	now        func() time.Time

	mu        sync.RWMutex
	listeners []func(SessionChange)
}

// NewAuthService creates a new auth service
func NewAuthService(store AuthStore, sessionTTL time.Duration) *AuthService {
	return &AuthService{
		store:      store,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// OnSessionChange registers fn for every session transition
func (s *AuthService) OnSessionChange(fn func(SessionChange)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *AuthService) move(session Session, next SessionState) (Session, error) {
	moved, err := session.Transition(next)
	if err != nil {
		return session, err
	}

	change := SessionChange{From: session.State, To: moved.State, PlayerID: session.PlayerID}
	if moved.PlayerID != "" {
		change.PlayerID = moved.PlayerID
	}

	s.mu.RLock()
	listeners := append([]func(SessionChange){}, s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(change)
	}
	return moved, nil
}

// SignUp creates the account and then the player profile, and signs the player in.
// A failed profile insert leaves the account behind and returns ErrPartialFailure.
func (s *AuthService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.SessionResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.store.GetPlayerByUsername(ctx, req.Username); err == nil {
		return nil, apperr.Validation("username %q is taken", req.Username)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateAccount(ctx, &account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	player := models.Player{
		ID:          account.ID,
		Username:    req.Username,
		DisplayName: req.Username,
		Tier:        models.TierD,
	}
	if err := s.store.CreatePlayer(ctx, &player); err != nil {
		logger.Error("Account %s created but profile setup failed: %v", account.ID, err)
		return nil, fmt.Errorf("%w: account created but profile setup failed", apperr.ErrPartialFailure)
	}

	logger.Success("New player signed up: %s", player.Username)
	return s.SignIn(ctx, models.SignInRequest{Email: email, Password: req.Password})
}

// SignIn verifies credentials and issues a session token
func (s *AuthService) SignIn(ctx context.Context, req models.SignInRequest) (*models.SessionResponse, error) {
	session, err := s.move(NewSession(), SessionSigningIn)
	if err != nil {
		return nil, err
	}

	resp, err := s.signIn(ctx, req)
	if err != nil {
		_, _ = s.move(session, SessionSignedOut)
		return nil, err
	}

	session.PlayerID = resp.PlayerID
	session.Token = resp.Token
	session.ExpiresAt = resp.ExpiresAt
	if _, err := s.move(session, SessionSignedIn); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *AuthService) signIn(ctx context.Context, req models.SignInRequest) (*models.SessionResponse, error) {
	account, err := s.store.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", apperr.ErrAuth)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", apperr.ErrAuth)
	}

	player, err := s.store.GetPlayer(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if player.IsBlacklisted {
		return nil, fmt.Errorf("%w: account disabled", apperr.ErrForbidden)
	}

	token := uuid.NewString()
	if err := s.store.SaveSession(ctx, token, player.ID, s.sessionTTL); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return &models.SessionResponse{
		Token:     token,
		PlayerID:  player.ID,
		ExpiresAt: s.now().Add(s.sessionTTL).UTC(),
		Player:    player,
	}, nil
}

// SignOut revokes token
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	playerID, err := s.store.GetSession(ctx, token)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	_, err = s.move(Session{State: SessionSignedIn, PlayerID: playerID, Token: token}, SessionSignedOut)
	return err
}

// CurrentSession resolves token to its player
func (s *AuthService) CurrentSession(ctx context.Context, token string) (*models.Player, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", apperr.ErrAuth)
	}
	playerID, err := s.store.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: profile no longer exists", apperr.ErrAuth)
		}
		return nil, err
	}
	if player.IsBlacklisted {
		return nil, fmt.Errorf("%w: account disabled", apperr.ErrForbidden)
	}
	return player, nil
}
