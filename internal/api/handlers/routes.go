package handlers

import (
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
)

// Handlers bundles every handler the router mounts
type Handlers struct {
	Auth        *AuthMiddleware
	Session     *AuthHandler
	Leaderboard *LeaderboardHandler
	Community   *CommunityHandler
	Admin       *AdminHandler
	Chat        *ChatHandler
	Uploads     *UploadHandler
}

// RegisterRoutes mounts the API under /api/v1 and the sockets under /ws
func RegisterRoutes(app *fiber.App, h Handlers) {
	api := app.Group("/api/v1")
	authed := h.Auth.RequireAuth
	staff := h.Auth.RequireStaff

	// Auth routes
	api.Post("/auth/signup", h.Session.SignUp)
	api.Post("/auth/signin", h.Session.SignIn)
	api.Post("/auth/signout", authed, h.Session.SignOut)
	api.Get("/auth/session", authed, h.Session.Session)

	// Leaderboard routes
	api.Get("/leaderboard", h.Leaderboard.GetLeaderboard)
	api.Get("/leaderboard/weights", h.Leaderboard.GetWeights)
	api.Get("/leaderboard/types", h.Leaderboard.GetTypes)
	api.Get("/leaderboard/types/:type", h.Leaderboard.GetTypeStandings)
	api.Get("/leaderboard/players/:id", h.Leaderboard.GetPlayerRank)
	api.Get("/health", h.Leaderboard.HealthCheck)

	// Community routes
	api.Get("/players", h.Community.ListPlayers)
	api.Patch("/players/me", authed, h.Community.UpdateMe)
	api.Get("/players/:id", h.Community.GetPlayer)
	api.Get("/clans", h.Community.ListClans)
	api.Get("/clans/:id", h.Community.GetClan)
	api.Post("/clans", authed, h.Community.CreateClan)
	api.Get("/records", h.Community.ListRecords)
	api.Get("/badges", h.Community.ListBadges)
	api.Get("/color-tags", h.Community.ListColorTags)
	api.Get("/announcements", h.Community.ListAnnouncements)
	api.Post("/announcements", authed, staff, h.Community.CreateAnnouncement)
	api.Post("/submissions", authed, h.Community.CreateSubmission)
	api.Get("/submissions", authed, staff, h.Community.ListSubmissions)
	api.Post("/submissions/:id/approve", authed, staff, h.Community.ApproveSubmission)
	api.Post("/submissions/:id/reject", authed, staff, h.Community.RejectSubmission)
	api.Post("/uploads", authed, h.Uploads.Upload)

	// Staff chat
	chat := api.Group("/chat", authed, staff)
	chat.Get("/conversations", h.Chat.ListConversations)
	chat.Post("/conversations", h.Chat.CreateConversation)
	chat.Get("/conversations/:id/messages", h.Chat.ListMessages)
	chat.Post("/conversations/:id/messages", h.Chat.SendMessage)
	chat.Post("/conversations/:id/read", h.Chat.MarkAsRead)
	chat.Get("/unread", h.Chat.Unread)

	// Admin routes
	admin := api.Group("/admin", authed, staff)
	admin.Put("/weights", h.Admin.SetWeights)
	admin.Get("/records", h.Community.ListAllRecords)
	admin.Post("/records/:id/verify", h.Admin.VerifyRecord)
	admin.Post("/players/:id/blacklist", h.Admin.SetBlacklisted)
	admin.Put("/players/:id/tier", h.Admin.SetTier)
	admin.Post("/players/:id/badges", h.Admin.AwardBadge)
	admin.Delete("/players/:id/badges/:badgeId", h.Admin.RevokeBadge)
	admin.Post("/season/reset", h.Admin.ResetSeason)
	admin.Delete("/players/:id", h.Admin.DeletePlayer)

	// WebSocket routes with upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", authed, staff, fiberws.New(h.Chat.HandleWebSocket))
	app.Get("/ws", fiberws.New(h.Leaderboard.HandleWebSocket))
}
