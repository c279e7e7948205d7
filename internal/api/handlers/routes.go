package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type Handlers struct {
	System    *SystemHandler
	Dataset   *DatasetHandler
	Segment   *SegmentHandler
	Query     *QueryHandler
	WebSocket *WebSocketHandler
	History   *HistoryHandler
}

func RegisterRoutes(router fiber.Router, h Handlers) {
	router.Get("/", h.System.Root)
	router.Get("/health", h.System.Health)
	router.Get("/ready", h.System.Ready)

	router.Post("/upload", h.Dataset.Upload)
	router.Get("/download", h.Dataset.Download)

	router.Post("/segment", h.Segment.Segment)
	router.Get("/segment/:id", h.Query.GetSegment)
	router.Get("/segments", h.Query.ListSegments)
	router.Get("/segments/chart", h.Dataset.Chart)
	router.Get("/customer/:id", h.Query.GetCustomer)

	if h.History != nil {
		router.Get("/history", h.History.GetHistory)
	}

	if h.WebSocket != nil {
		router.Use("/ws", h.WebSocket.Upgrade)
		router.Get("/ws/events", websocket.New(h.WebSocket.HandleConnection))
	}
}
