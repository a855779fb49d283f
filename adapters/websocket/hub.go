package websocket

import (
	"sync"

	"github.com/centralrestaurante/amigo-central/utils/log"
)

// Hub tracks live connections so domain events can be routed to the
// connections following a session.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	log.WithCtx(client.ctx).Debug("New client registered")
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()

	if ok {
		client.Close()
		log.WithCtx(client.ctx).Debug("Client unregistered")
	}
}

// SendToSession delivers frame to every connection of userID following
// sessionID and returns how many received it.
func (h *Hub) SendToSession(sessionID string, userID int64, frame Frame) int {
	h.mu.RLock()
	targets := make([]*Client, 0, 1)
	for client := range h.clients {
		if client.UserID() == userID && client.Follows(sessionID) && !client.IsClosed() {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, client := range targets {
		if client.SendFrame(frame) == nil {
			sent++
		}
	}
	return sent
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for client := range clients {
		client.Close()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
