package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"evade-competitive/internal/logger"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Heartbeat interval for version updates (prevents request storm)
	// Frontend only fetches when version changes, max once per heartbeat
	versionHeartbeatInterval = 2 * time.Second

	// MessageVersionUpdate tells leaderboard clients to refetch
	MessageVersionUpdate = "VERSION_UPDATE"

	// MessageChatUpdate carries a staff member's refreshed chat state
	MessageChatUpdate = "CHAT_UPDATE"
)

// VersionSource reports the cached ranking version
type VersionSource interface {
	GetLeaderboardVersion(ctx context.Context) (int64, error)
}

// Client represents a WebSocket client connection. userID is empty for public leaderboard clients.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string

	// closed by the hub once the client is in the registry
	registered chan struct{}
}

// Hub maintains the set of active clients and pushes version and chat updates to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	versions VersionSource

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Last known version for change detection
	lastVersion int64

	// Called with a user id when their last chat socket closes
	onUserGone func(userID string)
}

// VersionUpdate represents the version heartbeat message
type VersionUpdate struct {
	Type    string `json:"type"`
	Version int64  `json:"version"`
}

// ChatUpdate is pushed to a staff member's chat sockets after their state changes
type ChatUpdate struct {
	Type          string      `json:"type"`
	Unread        int         `json:"unread"`
	Conversations interface{} `json:"conversations"`
}

// NewHub creates a new WebSocket hub
func NewHub(versions VersionSource) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		versions:   versions,
	}
}

// OnUserGone registers fn to run when a user's last chat socket disconnects
func (h *Hub) OnUserGone(fn func(userID string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onUserGone = fn
}

// Run starts the WebSocket hub
func (h *Hub) Run(ctx context.Context) {
	logger.Info("🚀 WebSocket Hub started")

	// Ticker to check version every 2 seconds
	versionTicker := time.NewTicker(versionHeartbeatInterval)
	defer versionTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			close(client.registered)
			logger.Debug("Client connected (Total: %d)", total)

			if client.userID == "" {
				// Send initial version to new leaderboard client
				h.sendInitialVersion(ctx, client)
			}

		case client := <-h.unregister:
			h.removeClient(client)

		case <-versionTicker.C:
			// Check if version changed and broadcast if necessary
			h.checkAndBroadcastVersion(ctx)

		case <-ctx.Done():
			logger.Info("🛑 WebSocket Hub shutting down")
			return
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)

	lastForUser := client.userID != ""
	for other := range h.clients {
		if other.userID == client.userID && client.userID != "" {
			lastForUser = false
			break
		}
	}
	total := len(h.clients)
	gone := h.onUserGone
	h.mu.Unlock()

	logger.Debug("Client disconnected (Total: %d)", total)
	if lastForUser && gone != nil {
		gone(client.userID)
	}
}

// checkAndBroadcastVersion checks if the version has changed and broadcasts to leaderboard clients
func (h *Hub) checkAndBroadcastVersion(ctx context.Context) {
	currentVersion, err := h.versions.GetLeaderboardVersion(ctx)
	if err != nil {
		logger.Error("Failed to get leaderboard version: %v", err)
		return
	}

	// Only broadcast if version has changed
	if currentVersion == h.lastVersion {
		return
	}
	h.lastVersion = currentVersion
	logger.Debug("📡 Version changed to %d, broadcasting to clients", currentVersion)

	message, err := json.Marshal(VersionUpdate{Type: MessageVersionUpdate, Version: currentVersion})
	if err != nil {
		logger.Error("Failed to marshal version update: %v", err)
		return
	}

	h.mu.RLock()
	for client := range h.clients {
		if client.userID == "" {
			h.deliver(client, message)
		}
	}
	h.mu.RUnlock()
}

// deliver never blocks; a full buffer drops the message for that client
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		logger.Warning("Client send buffer full, skipping")
	}
}

// sendInitialVersion sends the current version to a newly connected client
func (h *Hub) sendInitialVersion(ctx context.Context, client *Client) {
	currentVersion, err := h.versions.GetLeaderboardVersion(ctx)
	if err != nil {
		logger.Error("Failed to get initial version: %v", err)
		return
	}

	// Update lastVersion if this is the first client
	if h.lastVersion == 0 {
		h.lastVersion = currentVersion
	}

	message, err := json.Marshal(VersionUpdate{Type: MessageVersionUpdate, Version: currentVersion})
	if err != nil {
		logger.Error("Failed to marshal initial version: %v", err)
		return
	}

	h.mu.RLock()
	if h.clients[client] {
		h.deliver(client, message)
	}
	h.mu.RUnlock()
}

// NotifyUser pushes update to every chat socket of userID
func (h *Hub) NotifyUser(userID string, update ChatUpdate) {
	update.Type = MessageChatUpdate
	message, err := json.Marshal(update)
	if err != nil {
		logger.Error("Failed to marshal chat update: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.userID == userID {
			h.deliver(client, message)
		}
	}
}

// GetClientCount returns the current number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	// Browser WebSockets handle ping/pong at the protocol level, so no read deadline is set
	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warning("WebSocket unexpected close: %v", err)
			}
			break
		}
		// Clients only listen; anything they send is ignored
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))

		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		// Add queued messages to the current websocket message
		n := len(c.send)
		for i := 0; i < n; i++ {
			w.Write([]byte{'\n'})
			w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}

	// The hub closed the channel
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ServeWS handles leaderboard WebSocket requests
func ServeWS(hub *Hub, conn *websocket.Conn) {
	serve(hub, conn, "", nil)
}

// ServeUserWS handles a staff member's chat socket. ready runs once the client is registered.
func ServeUserWS(hub *Hub, conn *websocket.Conn, userID string, ready func()) {
	serve(hub, conn, userID, ready)
}

func serve(hub *Hub, conn *websocket.Conn, userID string, ready func()) {
	client := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		userID:     userID,
		registered: make(chan struct{}),
	}

	client.hub.register <- client
	if ready != nil {
		<-client.registered
		ready()
	}

	// Start write pump in goroutine
	go client.writePump()

	// Run read pump in current goroutine (blocks until disconnect)
	client.readPump()
}
