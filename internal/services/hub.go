package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/sprintdeck/estimation/internal/config"
	"github.com/sprintdeck/estimation/internal/models"
)

// Hub fans estimation session events out to connected clients. Sockets are
// notify-only: every state transition happens through the HTTP API and is
// broadcast here afterwards, so no client ever holds authority over state.
type Hub struct {
	// Session connections: sessionId -> set of clients
	sessions map[string]map[*Client]bool

	broadcast  chan *BroadcastMessage
	register   chan *Registration
	unregister chan *Registration

	metrics *Metrics

	mu sync.RWMutex
}

type Registration struct {
	SessionID string
	Client    *Client
}

type BroadcastMessage struct {
	SessionID string
	Message   *models.WSMessage
}

func NewHub(metrics *Metrics) *Hub {
	return &Hub{
		sessions:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *BroadcastMessage, 256),
		register:   make(chan *Registration, 100),
		unregister: make(chan *Registration, 100),
		metrics:    metrics,
	}
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case reg := <-h.register:
			h.registerClient(reg)

		case reg := <-h.unregister:
			h.unregisterClient(reg)

		case msg := <-h.broadcast:
			h.broadcastToSession(msg)

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) registerClient(reg *Registration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.sessions[reg.SessionID]) >= config.MaxConnectionsPerSession {
		log.Printf("ws connection limit reached: session=%s", reg.SessionID)
		h.metrics.IncrementConnectionErrors()
		reg.Client.Close()
		return
	}

	if h.sessions[reg.SessionID] == nil {
		h.sessions[reg.SessionID] = make(map[*Client]bool)
		h.metrics.IncrementSessions()
	}
	h.sessions[reg.SessionID][reg.Client] = true
	h.metrics.IncrementConnections()

	log.Printf("ws registered: session=%s client=%s user=%s (connections in session: %d)",
		reg.SessionID, reg.Client.ID, reg.Client.UserID(), len(h.sessions[reg.SessionID]))
}

func (h *Hub) unregisterClient(reg *Registration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.sessions[reg.SessionID]
	if !ok {
		return
	}
	if _, exists := clients[reg.Client]; !exists {
		return
	}

	delete(clients, reg.Client)
	reg.Client.Close()
	h.metrics.DecrementConnections()

	// Clean up empty sessions
	if len(clients) == 0 {
		delete(h.sessions, reg.SessionID)
		h.metrics.DecrementSessions()
	}
}

func (h *Hub) broadcastToSession(msg *BroadcastMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[msg.SessionID]))
	for client := range h.sessions[msg.SessionID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg.Message)
	if err != nil {
		log.Printf("error marshaling ws message: %v", err)
		return
	}

	for _, client := range clients {
		client.Send(data)
	}
}

// BroadcastToSession queues a message for every client watching the session.
func (h *Hub) BroadcastToSession(sessionID string, message *models.WSMessage) {
	h.broadcast <- &BroadcastMessage{SessionID: sessionID, Message: message}
}

// SendToClient delivers a message to a single client.
func (h *Hub) SendToClient(client *Client, message *models.WSMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("error marshaling ws message: %v", err)
		return
	}
	client.Send(data)
}

func (h *Hub) Register(sessionID string, client *Client) {
	h.register <- &Registration{SessionID: sessionID, Client: client}
}

func (h *Hub) Unregister(sessionID string, client *Client) {
	h.unregister <- &Registration{SessionID: sessionID, Client: client}
}

// GetMetrics returns a point-in-time metrics snapshot.
func (h *Hub) GetMetrics() MetricsSnapshot {
	return h.metrics.Snapshot()
}
