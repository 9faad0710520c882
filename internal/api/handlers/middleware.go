package handlers

import (
	"fmt"
	"strings"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/models"
	"evade-competitive/internal/service"

	"github.com/gofiber/fiber/v2"
)

const (
	localPlayer = "player"
	localToken  = "token"
)

// AuthMiddleware resolves bearer tokens to players
type AuthMiddleware struct {
	auth    *service.AuthService
	players *service.PlayerService
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(auth *service.AuthService, players *service.PlayerService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, players: players}
}

// bearerToken reads "Authorization: Bearer <token>", falling back to ?token= for websocket upgrades
func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("token")
}

// RequireAuth rejects requests without a live session
func (m *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	token := bearerToken(c)
	player, err := m.auth.CurrentSession(c.Context(), token)
	if err != nil {
		return fail(c, err)
	}

	c.Locals(localPlayer, player)
	c.Locals(localToken, token)
	return c.Next()
}

// RequireStaff must run after RequireAuth
func (m *AuthMiddleware) RequireStaff(c *fiber.Ctx) error {
	player := currentPlayer(c)
	if player == nil {
		return fail(c, fmt.Errorf("%w: missing session", apperr.ErrAuth))
	}

	staff, err := m.players.IsStaff(c.Context(), player)
	if err != nil {
		return fail(c, err)
	}
	if !staff {
		return fail(c, fmt.Errorf("%w: staff only", apperr.ErrForbidden))
	}
	return c.Next()
}

func currentPlayer(c *fiber.Ctx) *models.Player {
	player, _ := c.Locals(localPlayer).(*models.Player)
	return player
}
