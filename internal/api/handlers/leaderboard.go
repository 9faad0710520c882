package handlers

import (
	"evade-competitive/internal/models"
	"evade-competitive/internal/service"
	"evade-competitive/internal/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// LeaderboardHandler handles HTTP requests for the leaderboard
type LeaderboardHandler struct {
	service *service.LeaderboardService
	health  *service.HealthService
	hub     *websocket.Hub
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(service *service.LeaderboardService, health *service.HealthService, hub *websocket.Hub) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		health:  health,
		hub:     hub,
	}
}

// GetLeaderboard handles GET /api/v1/leaderboard
// @Summary Get leaderboard
// @Description Retrieves the overall ranking with pagination
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination" default(50)
// @Success 200 {object} models.LeaderboardResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/leaderboard [get]
func (h *LeaderboardHandler) GetLeaderboard(c *fiber.Ctx) error {
	offset, limit := pagination(c)

	leaderboard, err := h.service.GetLeaderboard(c.Context(), offset, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error:   "Failed to retrieve leaderboard",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(leaderboard)
}

// GetTypes handles GET /api/v1/leaderboard/types
func (h *LeaderboardHandler) GetTypes(c *fiber.Ctx) error {
	return c.JSON(h.service.Types())
}

// GetTypeStandings handles GET /api/v1/leaderboard/types/:type
// @Summary Per-type standings
// @Description Ranks every verified record of one type with its placement points
// @Produce json
// @Param type path string true "Record type"
// @Success 200 {array} models.TypeStandingEntry
// @Router /api/v1/leaderboard/types/{type} [get]
func (h *LeaderboardHandler) GetTypeStandings(c *fiber.Ctx) error {
	recordType := c.Params("type")
	return c.JSON(fiber.Map{
		"type": recordType,
		"data": h.service.TypeStandings(recordType),
	})
}

// GetWeights handles GET /api/v1/leaderboard/weights
func (h *LeaderboardHandler) GetWeights(c *fiber.Ctx) error {
	return c.JSON(h.service.Weights())
}

// GetPlayerRank handles GET /api/v1/leaderboard/players/:id
// @Summary Get a player's overall rank
// @Produce json
// @Param id path string true "Player id"
// @Success 200 {object} models.PlayerRankResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/leaderboard/players/{id} [get]
func (h *LeaderboardHandler) GetPlayerRank(c *fiber.Ctx) error {
	result, err := h.service.GetPlayerRank(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// HealthCheck handles GET /api/v1/health
// @Summary Health check
// @Description Checks the health of the service and its dependencies
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} models.ErrorResponse
// @Router /api/v1/health [get]
func (h *LeaderboardHandler) HealthCheck(c *fiber.Ctx) error {
	if err := h.health.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			Error:   "Health check failed",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":            "healthy",
		"message":           "All systems operational",
		"websocket_clients": h.hub.GetClientCount(),
	})
}

// HandleWebSocket serves the leaderboard version heartbeat
func (h *LeaderboardHandler) HandleWebSocket(c *fiberws.Conn) {
	websocket.ServeWS(h.hub, c)
}
