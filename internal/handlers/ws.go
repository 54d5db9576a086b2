package handlers

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/pocketbase/pocketbase/core"

	"github.com/sprintdeck/estimation/internal/models"
	"github.com/sprintdeck/estimation/internal/security"
	"github.com/sprintdeck/estimation/internal/services"
)

// WSHandler upgrades watchers of a session to a live event socket.
type WSHandler struct {
	hub        *services.Hub
	estimation *EstimationHandlers
	origins    *security.OriginValidator
}

func NewWSHandler(hub *services.Hub, estimation *EstimationHandlers, origins *security.OriginValidator) *WSHandler {
	return &WSHandler{
		hub:        hub,
		estimation: estimation,
		origins:    origins,
	}
}

// RegisterWS wires the session socket route.
func (h *WSHandler) RegisterWS(se *core.ServeEvent) error {
	ws := se.Router.Group("/api/sessions")
	ws.Bind(RequireAuth())
	ws.GET("/{id}/ws", h.HandleSessionSocket)
	return nil
}

func (h *WSHandler) HandleSessionSocket(e *core.RequestEvent) error {
	sessionID := e.Request.PathValue("id")

	// Build the caller's snapshot before upgrading; a missing session is a
	// plain 404 instead of a failed handshake.
	detail, err := h.estimation.sessionDetail(sessionID, e.Auth.Id)
	if err != nil {
		return writeError(e, err)
	}

	conn, err := websocket.Accept(e.Response, e.Request, h.origins.GetAcceptOptions())
	if err != nil {
		return err
	}

	client := services.NewClient(conn, h.hub, sessionID, e.Auth.Id)
	h.hub.Register(sessionID, client)
	client.Start()

	// Initial state sync so the watcher does not wait for the next event.
	h.hub.SendToClient(client, &models.WSMessage{
		Type:      models.MsgTypeSessionState,
		SessionID: sessionID,
		Payload:   detail,
	})

	return nil
}

// HandleMetrics returns live fan-out metrics.
func HandleMetrics(hub *services.Hub) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		return e.JSON(http.StatusOK, hub.GetMetrics())
	}
}

// HandleHealth returns server health status.
func HandleHealth(hub *services.Hub) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		snapshot := hub.GetMetrics()

		status := http.StatusOK
		if snapshot.HealthStatus == "critical" {
			status = http.StatusServiceUnavailable
		}

		return e.JSON(status, map[string]interface{}{
			"status":             snapshot.HealthStatus,
			"active_connections": snapshot.ActiveConnections,
			"active_sessions":    snapshot.ActiveSessions,
			"uptime_seconds":     snapshot.UptimeSeconds,
		})
	}
}
