// Package events fans out store changes to live subscribers.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rake220/customer-segmentation/pkg/logger"
)

const (
	TypeDatasetReplaced       = "dataset_replaced"
	TypeSegmentationCommitted = "segmentation_committed"
)

type Event struct {
	Type           string    `json:"type"`
	DatasetVersion string    `json:"dataset_version"`
	SegmentationID string    `json:"segmentation_id,omitempty"`
	Rows           int       `json:"rows"`
	Segments       []int     `json:"segments,omitempty"`
	Time           time.Time `json:"time"`
}

// Hub delivers each published event to every subscriber. A subscriber whose buffer is
// full misses the event; publishers never block.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[int]chan Event),
		buffer: buffer,
	}
}

// Subscribe returns the event channel and a function that unsubscribes and closes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
}

func (h *Hub) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn("Dropping event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("type", ev.Type),
			)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
