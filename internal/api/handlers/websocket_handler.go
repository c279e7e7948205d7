package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/rake220/customer-segmentation/internal/events"
	"github.com/rake220/customer-segmentation/internal/metrics"
	"github.com/rake220/customer-segmentation/pkg/logger"
)

type WebSocketHandler struct {
	hub *events.Hub
}

func NewWebSocketHandler(hub *events.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// Upgrade rejects plain HTTP requests to the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleConnection streams store events to the client until either side closes.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	ch, unsubscribe := h.hub.Subscribe()
	metrics.EventSubscribers.Inc()
	logger.Info("WebSocket connection established", zap.Int("subscribers", h.hub.Subscribers()))

	defer func() {
		unsubscribe()
		metrics.EventSubscribers.Dec()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.sendJSON(c, fiber.Map{"type": "connected"}); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := h.sendJSON(c, ev); err != nil {
				logger.Warn("Failed to send event", zap.String("type", ev.Type), zap.Error(err))
				return
			}
		}
	}
}

func (h *WebSocketHandler) sendJSON(c *websocket.Conn, msg interface{}) error {
	return c.WriteJSON(msg)
}
