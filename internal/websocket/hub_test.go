package websocket

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/bmizerany/assert"
)

type stubVersions struct {
	version int64
}

func (s *stubVersions) GetLeaderboardVersion(ctx context.Context) (int64, error) {
	return s.version, nil
}

func addClient(h *Hub, userID string) *Client {
	c := &Client{hub: h, send: make(chan []byte, 8), userID: userID}
	h.clients[c] = true
	return c
}

func TestVersionBroadcastOnlyOnChange(t *testing.T) {
	versions := &stubVersions{version: 1}
	h := NewHub(versions)
	public := addClient(h, "")
	staff := addClient(h, "p1")

	h.checkAndBroadcastVersion(context.Background())
	assert.Equal(t, 1, len(public.send))
	assert.Equal(t, 0, len(staff.send))

	// unchanged version sends nothing
	h.checkAndBroadcastVersion(context.Background())
	assert.Equal(t, 1, len(public.send))

	versions.version = 2
	h.checkAndBroadcastVersion(context.Background())
	assert.Equal(t, 2, len(public.send))

	<-public.send
	var update VersionUpdate
	assert.Equal(t, nil, json.Unmarshal(<-public.send, &update))
	assert.Equal(t, MessageVersionUpdate, update.Type)
	assert.Equal(t, int64(2), update.Version)
}

func TestNotifyUserTargetsOwnSockets(t *testing.T) {
	h := NewHub(&stubVersions{})
	a1 := addClient(h, "a")
	a2 := addClient(h, "a")
	b := addClient(h, "b")
	public := addClient(h, "")

	h.NotifyUser("a", ChatUpdate{Unread: 3})
	assert.Equal(t, 1, len(a1.send))
	assert.Equal(t, 1, len(a2.send))
	assert.Equal(t, 0, len(b.send))
	assert.Equal(t, 0, len(public.send))

	var update ChatUpdate
	assert.Equal(t, nil, json.Unmarshal(<-a1.send, &update))
	assert.Equal(t, MessageChatUpdate, update.Type)
	assert.Equal(t, 3, update.Unread)
}

func TestUserGoneAfterLastSocket(t *testing.T) {
	h := NewHub(&stubVersions{})
	var gone []string
	h.OnUserGone(func(userID string) { gone = append(gone, userID) })

	a1 := addClient(h, "a")
	a2 := addClient(h, "a")
	public := addClient(h, "")

	h.removeClient(a1)
	assert.Equal(t, 0, len(gone))

	h.removeClient(public)
	assert.Equal(t, 0, len(gone))

	h.removeClient(a2)
	assert.Equal(t, []string{"a"}, gone)
	assert.Equal(t, 0, h.GetClientCount())

	// double removal is ignored
	h.removeClient(a2)
	assert.Equal(t, 1, len(gone))
}
