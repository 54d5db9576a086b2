package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/sprintdeck/estimation/internal/config"
	"github.com/sprintdeck/estimation/internal/models"
)

// Client represents a single WebSocket connection with its own send goroutine.
type Client struct {
	ID        string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	sessionID string
	userID    string

	// Rate limiting
	messageCount int
	rateLimitMu  sync.Mutex
	lastReset    time.Time

	// Lifecycle
	ctx     context.Context
	cancel  context.CancelFunc
	closed  bool
	closeMu sync.Mutex
}

// NewClient creates a new client instance.
func NewClient(conn *websocket.Conn, hub *Hub, sessionID, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		ID:        uuid.New().String(),
		conn:      conn,
		send:      make(chan []byte, config.ClientSendBufferSize),
		hub:       hub,
		sessionID: sessionID,
		userID:    userID,
		lastReset: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// UserID returns the authenticated user behind this connection.
func (c *Client) UserID() string { return c.userID }

// Start begins the client's read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// writePump handles outgoing messages to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Channel closed, connection is closing
				_ = c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			writeCtx, cancel := context.WithTimeout(c.ctx, config.WriteTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()

			if err != nil {
				log.Printf("ws write error (session=%s, client=%s): %v", c.sessionID, c.ID, err)
				c.hub.metrics.IncrementBroadcastErrors()
				return
			}
			c.hub.metrics.IncrementMessagesSent()

		case <-ticker.C:
			// Ping blocks until the pong arrives; a peer that cannot answer
			// within the pong window is considered gone.
			pingCtx, cancel := context.WithTimeout(c.ctx, config.PongTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()

			if err != nil {
				log.Printf("ws ping error (session=%s): %v", c.sessionID, err)
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// readPump drains incoming frames. Clients do not issue commands over the
// socket; the pump exists to notice disconnects, answer pings and keep the
// rate limiter honest against chatty clients.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.sessionID, c)
		c.Close()
	}()

	for {
		// No per-read deadline: watchers are silent by design, so a read only
		// returns when the peer sends, disconnects, or the client shuts down.
		// Liveness is the ping/pong loop's job.
		_, _, err := c.conn.Read(c.ctx)

		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && c.ctx.Err() == nil {
				c.hub.metrics.IncrementConnectionErrors()
			}
			return
		}

		if !c.checkRateLimit() {
			log.Printf("ws rate limit exceeded (session=%s, client=%s)", c.sessionID, c.ID)
			c.hub.metrics.IncrementRateLimitViolations()

			errMsg := &models.WSMessage{
				Type: models.MsgTypeError,
				Payload: map[string]string{
					"message": "Rate limit exceeded. Please slow down.",
				},
			}
			c.hub.SendToClient(c, errMsg)
			continue
		}

		c.hub.metrics.IncrementMessagesReceived()
	}
}

// checkRateLimit verifies the client hasn't exceeded message rate limits.
func (c *Client) checkRateLimit() bool {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	now := time.Now()
	if now.Sub(c.lastReset) > config.RateLimitWindow {
		c.messageCount = 0
		c.lastReset = now
	}

	c.messageCount++
	return c.messageCount <= config.MaxMessagesPerSecond
}

// Send queues a message for sending to the client.
func (c *Client) Send(message []byte) bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- message:
		return true
	default:
		// Channel full, client is too slow
		log.Printf("ws send buffer full, closing slow client (session=%s, client=%s)", c.sessionID, c.ID)
		c.hub.metrics.IncrementBroadcastErrors()
		go c.Close()
		return false
	}
}

// Close cleanly shuts down the client connection.
func (c *Client) Close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	c.cancel()
	close(c.send)
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}
