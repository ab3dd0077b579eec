package ws

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"sellerchat/internal/models"
	"sellerchat/internal/roomcodec"
	"sellerchat/internal/storage"
)

// RoomLookup reports whether a room exists.
type RoomLookup interface {
	GetRoom(id string) (models.ChatRoom, error)
}

// Server upgrades /ws/chat/{token} requests into room connections.
type Server struct {
	hub      *Hub
	rooms    RoomLookup
	logger   *slog.Logger
	upgrader *websocket.Upgrader
}

func NewServer(hub *Hub, rooms RoomLookup, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:    hub,
		rooms:  rooms,
		logger: logger,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Development backend accepts any origin
			},
		},
	}
}

func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	roomID, err := roomcodec.Decode(chi.URLParam(r, "token"))
	if err != nil {
		http.Error(w, "Invalid room token", http.StatusBadRequest)
		return
	}

	if _, err := s.rooms.GetRoom(roomID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return
		}
		s.logger.Error("room lookup failed", "room_id", roomID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("error upgrading to websocket", "error", err)
		return
	}

	s.logger.Info("channel opened", "room_id", roomID)
	if err := NewConnection(s.hub, conn, roomID, s.logger).Handle(r.Context()); err != nil {
		s.logger.Warn("channel closed with error", "room_id", roomID, "error", err)
		return
	}
	s.logger.Info("channel closed", "room_id", roomID)
}
