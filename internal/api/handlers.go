package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"sellerchat/internal/content"
	"sellerchat/internal/identity"
	"sellerchat/internal/models"
	"sellerchat/internal/roomcodec"
	"sellerchat/internal/storage"
)

const DefaultHistoryLimit = 200

// Store is the persistence the development backend serves from.
type Store interface {
	ListRooms() ([]models.ChatRoom, error)
	GetRoom(id string) (models.ChatRoom, error)
	UpsertRoom(room models.ChatRoom) error
	ListMessages(roomID string, limit int) ([]models.ChatMessage, error)
}

// Dispatcher delivers a message to a room's live channels.
type Dispatcher interface {
	Dispatch(msg models.ChatMessage) error
}

// API serves the chat REST endpoints of the development backend.
type API struct {
	store        Store
	hub          Dispatcher
	token        string
	historyLimit int
	logger       *slog.Logger
}

func New(store Store, hub Dispatcher, token string, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		store:        store,
		hub:          hub,
		token:        token,
		historyLimit: DefaultHistoryLimit,
		logger:       logger,
	}
}

// RequireToken rejects requests without the configured bearer token.
// It is a no-op when no token is configured.
func (a *API) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get(authorizationName), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RoomsHandler lists rooms for a member. Like the production endpoint it is
// shared across conversation types and returns more than the member's own
// one-to-one rooms; clients filter.
func (a *API) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	memberID, err := strconv.ParseInt(chi.URLParam(r, "memberId"), 10, 64)
	if err != nil || memberID <= 0 {
		http.Error(w, "Invalid member id", http.StatusBadRequest)
		return
	}

	rooms, err := a.store.ListRooms()
	if err != nil {
		a.logger.Error("failed to list rooms", "member_id", memberID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	a.writeJSON(w, http.StatusOK, Envelope[[]models.ChatRoom]{Data: rooms})
}

// HistoryHandler returns the stored backlog of a room, oldest first.
func (a *API) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := a.lookupRoom(w, chi.URLParam(r, "token"))
	if !ok {
		return
	}

	messages, err := a.store.ListMessages(roomID, a.historyLimit)
	if err != nil {
		a.logger.Error("failed to list messages", "room_id", roomID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	wire := make([]models.WireMessage, len(messages))
	for i, msg := range messages {
		wire[i] = msg.Wire()
	}
	a.writeJSON(w, http.StatusOK, Envelope[[]models.WireMessage]{Data: wire})
}

type CreateRoomRequest struct {
	Partner string `json:"partner,omitempty"`
	Self    string `json:"self"`
	// Admin creates the operator room of Self instead of a one-to-one room.
	Admin bool `json:"admin,omitempty"`
}

// CreateRoomHandler creates (or re-creates) a room. Existing messages are kept.
func (a *API) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	room, err := newRoom(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.store.UpsertRoom(room); err != nil {
		a.logger.Error("failed to create room", "room_id", room.ID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	a.logger.Info("room created", "room_id", room.ID)
	a.writeJSON(w, http.StatusCreated, Envelope[models.ChatRoom]{Data: room})
}

func newRoom(req CreateRoomRequest) (models.ChatRoom, error) {
	if err := content.ValidateMemberName(req.Self); err != nil {
		return models.ChatRoom{}, err
	}
	if req.Admin {
		return models.ChatRoom{
			ID:          identity.AdminPrefix + req.Self,
			MemberNames: []string{identity.AdminLabel, req.Self},
			DisplayName: identity.AdminLabel,
		}, nil
	}
	if err := content.ValidateMemberName(req.Partner); err != nil {
		return models.ChatRoom{}, err
	}
	if req.Partner == req.Self {
		return models.ChatRoom{}, errors.New("partner and self must differ")
	}
	return models.ChatRoom{
		ID:          identity.PersonalRoomID(req.Partner, req.Self),
		MemberNames: []string{req.Partner, req.Self},
	}, nil
}

type AnnounceRequest struct {
	Message string `json:"message"`
}

// AnnounceHandler posts an operator notice into a room.
func (a *API) AnnounceHandler(w http.ResponseWriter, r *http.Request) {
	roomID, ok := a.lookupRoom(w, chi.URLParam(r, "token"))
	if !ok {
		return
	}

	var req AnnounceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	err := a.hub.Dispatch(models.ChatMessage{
		SenderName: identity.AdminLabel,
		Body:       req.Message,
		Kind:       models.KindAdmin,
		RoomID:     roomID,
	})
	if err != nil {
		a.logger.Error("failed to dispatch announcement", "room_id", roomID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// lookupRoom decodes a path token and checks the room exists, writing the
// error response itself when it does not.
func (a *API) lookupRoom(w http.ResponseWriter, token string) (string, bool) {
	roomID, err := roomcodec.Decode(token)
	if err != nil {
		http.Error(w, "Invalid room token", http.StatusBadRequest)
		return "", false
	}
	if _, err := a.store.GetRoom(roomID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Room not found", http.StatusNotFound)
			return "", false
		}
		a.logger.Error("room lookup failed", "room_id", roomID, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return "", false
	}
	return roomID, true
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("failed to encode response", "error", err)
	}
}
