package handlers

import (
	"context"

	"evade-competitive/internal/apperr"
	"evade-competitive/internal/chat"
	"evade-competitive/internal/logger"
	"evade-competitive/internal/models"
	"evade-competitive/internal/service"
	"evade-competitive/internal/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// ChatHandler serves staff chat over HTTP and the chat socket
type ChatHandler struct {
	chat      *service.ChatService
	hub       *websocket.Hub
	validator *validator.Validate
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat *service.ChatService, hub *websocket.Hub) *ChatHandler {
	return &ChatHandler{
		chat:      chat,
		hub:       hub,
		validator: validator.New(),
	}
}

func (h *ChatHandler) syncer(c *fiber.Ctx) (*chat.Synchronizer, error) {
	return h.chat.ForUser(context.Background(), currentPlayer(c).ID)
}

// ListConversations handles GET /api/v1/chat/conversations
func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	s, err := h.syncer(c)
	if err != nil {
		return fail(c, err)
	}

	views, err := h.chat.Views(c.Context(), s.UserID(), s.Conversations())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(views)
}

// CreateConversation handles POST /api/v1/chat/conversations
// @Summary Get or create a conversation
// @Description Returns the conversation with exactly these participants plus the caller, creating it if needed
// @Accept json
// @Produce json
// @Param request body models.CreateConversationRequest true "Participants"
// @Success 200 {object} models.Conversation
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/chat/conversations [post]
func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	var req models.CreateConversationRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	s, err := h.syncer(c)
	if err != nil {
		return fail(c, err)
	}

	conversation, err := s.GetOrCreate(c.Context(), req.ParticipantIDs, req.Name)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(conversation)
}

// ListMessages handles GET /api/v1/chat/conversations/:id/messages
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	s, err := h.syncer(c)
	if err != nil {
		return fail(c, err)
	}

	id := c.Params("id")
	if _, ok := s.Conversation(id); !ok {
		return fail(c, apperr.NotFound("conversation"))
	}
	return c.JSON(s.Messages(id))
}

// SendMessage handles POST /api/v1/chat/conversations/:id/messages
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	var req models.SendMessageRequest
	if ok, err := bind(c, h.validator, &req); !ok {
		return err
	}

	s, err := h.syncer(c)
	if err != nil {
		return fail(c, err)
	}

	msg, err := s.Send(c.Context(), c.Params("id"), req.Text)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// MarkAsRead handles POST /api/v1/chat/conversations/:id/read
func (h *ChatHandler) MarkAsRead(c *fiber.Ctx) error {
	s, err := h.syncer(c)
	if err != nil {
		return fail(c, err)
	}

	if err := s.MarkAsRead(c.Context(), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"unread": s.UnreadTotal()})
}

// Unread handles GET /api/v1/chat/unread
func (h *ChatHandler) Unread(c *fiber.Ctx) error {
	s, err := h.syncer(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"unread": s.UnreadTotal()})
}

// HandleWebSocket streams CHAT_UPDATE snapshots to a signed-in staff member
func (h *ChatHandler) HandleWebSocket(c *fiberws.Conn) {
	player, _ := c.Locals(localPlayer).(*models.Player)
	if player == nil {
		c.Close()
		return
	}

	s, err := h.chat.ForUser(context.Background(), player.ID)
	if err != nil {
		logger.Error("Failed to open chat for %s: %v", player.ID, err)
		c.Close()
		return
	}

	push := func() { h.push(s) }
	s.OnChange(push)
	websocket.ServeUserWS(h.hub, c, player.ID, push)
}

func (h *ChatHandler) push(s *chat.Synchronizer) {
	views, err := h.chat.Views(context.Background(), s.UserID(), s.Conversations())
	if err != nil {
		logger.Warning("Failed to build chat update for %s: %v", s.UserID(), err)
		return
	}
	h.hub.NotifyUser(s.UserID(), websocket.ChatUpdate{
		Unread:        s.UnreadTotal(),
		Conversations: views,
	})
}
