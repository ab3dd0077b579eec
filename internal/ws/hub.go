package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sellerchat/internal/content"
	"sellerchat/internal/models"
)

const subscriberBuffer = 100

// MessageStore persists messages dispatched through the hub.
type MessageStore interface {
	AppendMessage(message models.ChatMessage) (uint64, error)
}

// Hub fans messages out to every connection subscribed to a room.
type Hub struct {
	store  MessageStore
	logger *slog.Logger
	now    func() time.Time

	// Map of roomID -> subscriberID -> delivery channel
	rooms map[string]map[string]chan models.WireMessage

	mu sync.RWMutex
}

func NewHub(store MessageStore, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:  store,
		logger: logger,
		now:    time.Now,
		rooms:  make(map[string]map[string]chan models.WireMessage),
	}
}

// Join subscribes to roomID. The returned channel is closed by Leave.
func (h *Hub) Join(roomID string) (string, chan models.WireMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.rooms[roomID]
	if !ok {
		subscribers = make(map[string]chan models.WireMessage)
		h.rooms[roomID] = subscribers
	}

	id := uuid.NewString()
	ch := make(chan models.WireMessage, subscriberBuffer)
	subscribers[id] = ch
	return id, ch
}

func (h *Hub) Leave(roomID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if ch, ok := subscribers[subscriberID]; ok {
		close(ch)
		delete(subscribers, subscriberID)
	}
	if len(subscribers) == 0 {
		delete(h.rooms, roomID)
	}
}

// Subscribers returns the number of live subscriptions for roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Dispatch sanitizes, stores and broadcasts msg to every subscriber of its
// room, the sender included.
func (h *Hub) Dispatch(msg models.ChatMessage) error {
	msg.Body = content.Sanitize(msg.Body)
	if msg.SentAt.IsZero() {
		msg.SentAt = h.now()
	}

	if _, err := h.store.AppendMessage(msg); err != nil {
		return fmt.Errorf("store message for room %s: %w", msg.RoomID, err)
	}

	wire := msg.Wire()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.rooms[msg.RoomID] {
		select {
		case ch <- wire:
		default:
			h.logger.Warn("dropping message for slow subscriber", "room_id", msg.RoomID, "subscriber", id)
		}
	}
	return nil
}
