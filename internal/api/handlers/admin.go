package handlers

import (
	"evade-competitive/internal/models"
	"evade-competitive/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// AdminHandler handles staff-only moderation endpoints
type AdminHandler struct {
	admin     *service.AdminService
	players   *service.PlayerService
	validator *validator.Validate
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(admin *service.AdminService, players *service.PlayerService) *AdminHandler {
	return &AdminHandler{
		admin:     admin,
		players:   players,
		validator: validator.New(),
	}
}

// SetWeights handles PUT /api/v1/admin/weights
// @Summary Set leaderboard weights
// @Description Each weight is in [0,100] and the three must sum to 100
// @Accept json
// @Produce json
// @Param request body models.WeightsRequest true "Weights"
// @Success 200 {object} map[string]float64
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/admin/weights [put]
func (h *AdminHandler) SetWeights(c *fiber.Ctx) error {
	var req models.WeightsRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	weights, err := h.admin.SetWeights(c.Context(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(weights)
}

// VerifyRecord handles POST /api/v1/admin/records/:id/verify
func (h *AdminHandler) VerifyRecord(c *fiber.Ctx) error {
	req := models.VerifyRequest{Verified: true}
	if len(c.Body()) > 0 {
		if ok, err := bind(c, h.validator, &req); !ok {
			return err
		}
	}

	record, err := h.admin.VerifyRecord(c.Context(), c.Params("id"), req.Verified)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(record)
}

// SetBlacklisted handles POST /api/v1/admin/players/:id/blacklist
func (h *AdminHandler) SetBlacklisted(c *fiber.Ctx) error {
	var req models.BlacklistRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	player, err := h.admin.SetBlacklisted(c.Context(), c.Params("id"), req.Blacklisted)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(player)
}

// SetTier handles PUT /api/v1/admin/players/:id/tier
func (h *AdminHandler) SetTier(c *fiber.Ctx) error {
	var req models.TierRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	player, err := h.admin.SetTier(c.Context(), c.Params("id"), req.Tier)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(player)
}

// AwardBadge handles POST /api/v1/admin/players/:id/badges
func (h *AdminHandler) AwardBadge(c *fiber.Ctx) error {
	var req models.BadgeAwardRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	player, err := h.players.AwardBadge(c.Context(), c.Params("id"), req.BadgeID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(player)
}

// RevokeBadge handles DELETE /api/v1/admin/players/:id/badges/:badgeId
func (h *AdminHandler) RevokeBadge(c *fiber.Ctx) error {
	player, err := h.players.RevokeBadge(c.Context(), c.Params("id"), c.Params("badgeId"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(player)
}

// ResetSeason handles POST /api/v1/admin/season/reset
// @Summary Reset the season
// @Description Deletes every world record. Requires {"confirmation": "RESET SEASON"}.
// @Accept json
// @Produce json
// @Param request body models.ConfirmRequest true "Typed confirmation"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/admin/season/reset [post]
func (h *AdminHandler) ResetSeason(c *fiber.Ctx) error {
	var req models.ConfirmRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	deleted, err := h.admin.ResetSeason(c.Context(), req.Confirmation)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"message":         "Season reset",
		"records_deleted": deleted,
	})
}

// DeletePlayer handles DELETE /api/v1/admin/players/:id. Requires {"confirmation": "DELETE <username>"}.
func (h *AdminHandler) DeletePlayer(c *fiber.Ctx) error {
	var req models.ConfirmRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	if err := h.admin.DeletePlayer(c.Context(), c.Params("id"), req.Confirmation); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Player deleted"})
}
