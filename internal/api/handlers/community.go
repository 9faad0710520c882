package handlers

import (
	"context"

	"evade-competitive/internal/models"
	"evade-competitive/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// CommunityHandler serves players, clans, records, badges, announcements and submissions
type CommunityHandler struct {
	players       *service.PlayerService
	clans         *service.ClanService
	announcements *service.AnnouncementService
	submissions   *service.SubmissionService
	validator     *validator.Validate
}

// NewCommunityHandler creates a new community handler
func NewCommunityHandler(
	players *service.PlayerService,
	clans *service.ClanService,
	announcements *service.AnnouncementService,
	submissions *service.SubmissionService,
) *CommunityHandler {
	return &CommunityHandler{
		players:       players,
		clans:         clans,
		announcements: announcements,
		submissions:   submissions,
		validator:     validator.New(),
	}
}

// ListPlayers handles GET /api/v1/players
func (h *CommunityHandler) ListPlayers(c *fiber.Ctx) error {
	players, err := h.players.ListPlayers(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(players)
}

// GetPlayer handles GET /api/v1/players/:id
// @Summary Player profile
// @Description Fetches a player with badges and verified records
// @Produce json
// @Param id path string true "Player id"
// @Success 200 {object} service.PlayerProfile
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/players/{id} [get]
func (h *CommunityHandler) GetPlayer(c *fiber.Ctx) error {
	profile, err := h.players.GetProfile(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(profile)
}

// UpdateMe handles PATCH /api/v1/players/me
func (h *CommunityHandler) UpdateMe(c *fiber.Ctx) error {
	var req models.ProfileUpdateRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	player, err := h.players.UpdateProfile(c.Context(), currentPlayer(c).ID, req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(player)
}

// ListRecords handles GET /api/v1/records (verified only)
func (h *CommunityHandler) ListRecords(c *fiber.Ctx) error {
	records, err := h.players.ListRecords(c.Context(), false)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(records)
}

// ListAllRecords handles GET /api/v1/admin/records, unverified included
func (h *CommunityHandler) ListAllRecords(c *fiber.Ctx) error {
	records, err := h.players.ListRecords(c.Context(), true)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(records)
}

// ListBadges handles GET /api/v1/badges
func (h *CommunityHandler) ListBadges(c *fiber.Ctx) error {
	badges, err := h.players.ListBadges(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(badges)
}

// ListColorTags handles GET /api/v1/color-tags
func (h *CommunityHandler) ListColorTags(c *fiber.Ctx) error {
	tags, err := h.players.ListColorTags(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tags)
}

// ListClans handles GET /api/v1/clans
func (h *CommunityHandler) ListClans(c *fiber.Ctx) error {
	clans, err := h.clans.List(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(clans)
}

// GetClan handles GET /api/v1/clans/:id
func (h *CommunityHandler) GetClan(c *fiber.Ctx) error {
	detail, err := h.clans.Get(c.Context(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(detail)
}

// CreateClan handles POST /api/v1/clans
// @Summary Create a clan
// @Description Creates a clan owned by the caller, who joins it
// @Accept json
// @Produce json
// @Param request body models.CreateClanRequest true "Clan"
// @Success 201 {object} models.Clan
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /api/v1/clans [post]
func (h *CommunityHandler) CreateClan(c *fiber.Ctx) error {
	var req models.CreateClanRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	clan, err := h.clans.Create(c.Context(), currentPlayer(c).ID, req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(clan)
}

// ListAnnouncements handles GET /api/v1/announcements
func (h *CommunityHandler) ListAnnouncements(c *fiber.Ctx) error {
	announcements, err := h.announcements.ListPublished(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(announcements)
}

// CreateAnnouncement handles POST /api/v1/announcements (staff)
func (h *CommunityHandler) CreateAnnouncement(c *fiber.Ctx) error {
	var req models.CreateAnnouncementRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	announcement, err := h.announcements.Create(c.Context(), currentPlayer(c).ID, req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(announcement)
}

// CreateSubmission handles POST /api/v1/submissions
func (h *CommunityHandler) CreateSubmission(c *fiber.Ctx) error {
	var req models.CreateSubmissionRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	submission, err := h.submissions.Create(c.Context(), currentPlayer(c).ID, req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(submission)
}

// ListSubmissions handles GET /api/v1/submissions?status= (staff)
func (h *CommunityHandler) ListSubmissions(c *fiber.Ctx) error {
	submissions, err := h.submissions.List(c.Context(), models.SubmissionStatus(c.Query("status")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(submissions)
}

// ApproveSubmission handles POST /api/v1/submissions/:id/approve (staff)
func (h *CommunityHandler) ApproveSubmission(c *fiber.Ctx) error {
	return h.review(c, h.submissions.Approve)
}

// RejectSubmission handles POST /api/v1/submissions/:id/reject (staff)
func (h *CommunityHandler) RejectSubmission(c *fiber.Ctx) error {
	return h.review(c, h.submissions.Reject)
}

type reviewFunc func(ctx context.Context, reviewerID, id, note string) (*models.Submission, error)

func (h *CommunityHandler) review(c *fiber.Ctx, apply reviewFunc) error {
	var req models.ReviewRequest
	if len(c.Body()) > 0 {
		if ok, err := bind(c, h.validator, &req); !ok {
			return err
		}
	}

	submission, err := apply(c.Context(), currentPlayer(c).ID, c.Params("id"), req.Note)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(submission)
}
