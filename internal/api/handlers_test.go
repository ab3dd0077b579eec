package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"sellerchat/internal/identity"
	"sellerchat/internal/models"
	"sellerchat/internal/roomcodec"
	"sellerchat/internal/storage"
)

type mockDispatcher struct {
	mu   sync.Mutex
	msgs []models.ChatMessage
	err  error
}

func (m *mockDispatcher) Dispatch(msg models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mockDispatcher) sent() []models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ChatMessage(nil), m.msgs...)
}

func (m *mockDispatcher) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type testBackend struct {
	store *storage.BboltStorage
	hub   *mockDispatcher
	api   *httptest.Server
	admin *httptest.Server
}

func newTestBackend(t *testing.T, token string) *testBackend {
	t.Helper()
	store, err := storage.NewBboltStorage(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hub := &mockDispatcher{}
	handlers := New(store, hub, token, nil)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(handlers.RequireToken)
		r.Get("/chat/rooms/{memberId}", handlers.RoomsHandler)
		r.Get("/chat/history/{token}", handlers.HistoryHandler)
	})
	admin := chi.NewRouter()
	admin.Post("/admin/rooms", handlers.CreateRoomHandler)
	admin.Post("/admin/rooms/{token}/announce", handlers.AnnounceHandler)

	b := &testBackend{
		store: store,
		hub:   hub,
		api:   httptest.NewServer(r),
		admin: httptest.NewServer(admin),
	}
	t.Cleanup(b.api.Close)
	t.Cleanup(b.admin.Close)
	return b
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestCreateRoomHandler(t *testing.T) {
	b := newTestBackend(t, "")

	resp := postJSON(t, b.admin.URL+"/admin/rooms", CreateRoomRequest{Partner: "홍길동", Self: "김철수"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var env Envelope[models.ChatRoom]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(t, "personal_홍길동_김철수", env.Data.ID)

	stored, err := b.store.GetRoom("personal_홍길동_김철수")
	require.NoError(t, err)
	require.Equal(t, []string{"홍길동", "김철수"}, stored.MemberNames)

	resp = postJSON(t, b.admin.URL+"/admin/rooms", CreateRoomRequest{Self: "김철수", Admin: true})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_, err = b.store.GetRoom(identity.AdminPrefix + "김철수")
	require.NoError(t, err)
}

func TestCreateRoomHandler_Invalid(t *testing.T) {
	b := newTestBackend(t, "")

	for name, req := range map[string]CreateRoomRequest{
		"missing self":       {Partner: "홍길동"},
		"separator in name":  {Partner: "홍_길동", Self: "김철수"},
		"whitespace in name": {Partner: "홍 길동", Self: "김철수"},
		"same member":        {Partner: "김철수", Self: "김철수"},
	} {
		t.Run(name, func(t *testing.T) {
			resp := postJSON(t, b.admin.URL+"/admin/rooms", req)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}

	rooms, err := b.store.ListRooms()
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestRoomsHandler(t *testing.T) {
	b := newTestBackend(t, "")
	require.NoError(t, b.store.UpsertRoom(models.ChatRoom{ID: "personal_홍길동_김철수"}))
	require.NoError(t, b.store.UpsertRoom(models.ChatRoom{ID: "personal_김철수_이영희"}))

	c, err := NewClient(ClientConfig{BaseURL: b.api.URL})
	require.NoError(t, err)

	rooms, err := c.FetchRooms(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	resp, err := http.Get(b.api.URL + "/chat/rooms/abc")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryHandler(t *testing.T) {
	b := newTestBackend(t, "")
	roomID := "personal_홍길동_김철수"
	require.NoError(t, b.store.UpsertRoom(models.ChatRoom{ID: roomID}))

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, body := range []string{"첫 번째", "두 번째"} {
		_, err := b.store.AppendMessage(models.ChatMessage{
			SenderID:   7,
			SenderName: "홍길동",
			Body:       body,
			SentAt:     base.Add(time.Duration(i) * time.Minute),
			Kind:       models.KindPersonal,
			RoomID:     roomID,
		})
		require.NoError(t, err)
	}

	c, err := NewClient(ClientConfig{BaseURL: b.api.URL})
	require.NoError(t, err)

	messages, err := c.FetchHistory(context.Background(), roomcodec.Encode(roomID))
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "첫 번째", messages[0].Body)
	require.Equal(t, "두 번째", messages[1].Body)
	require.True(t, messages[1].SentAt.Equal(base.Add(time.Minute)))

	_, err = c.FetchHistory(context.Background(), roomcodec.Encode("personal_nobody_here"))
	require.True(t, IsStatus(err, http.StatusNotFound), "got %v", err)

	_, err = c.FetchHistory(context.Background(), "%%")
	require.Error(t, err)
}

func TestAnnounceHandler(t *testing.T) {
	b := newTestBackend(t, "")
	roomID := identity.AdminPrefix + "김철수"
	require.NoError(t, b.store.UpsertRoom(models.ChatRoom{ID: roomID}))
	url := b.admin.URL + "/admin/rooms/" + roomcodec.Encode(roomID) + "/announce"

	resp := postJSON(t, url, AnnounceRequest{Message: "점검 안내"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, []models.ChatMessage{{
		SenderName: identity.AdminLabel,
		Body:       "점검 안내",
		Kind:       models.KindAdmin,
		RoomID:     roomID,
	}}, b.hub.sent())

	resp = postJSON(t, url, AnnounceRequest{Message: "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b.hub.fail(errors.New("disk full"))
	resp = postJSON(t, url, AnnounceRequest{Message: "again"})
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = postJSON(t, b.admin.URL+"/admin/rooms/"+roomcodec.Encode("admin_ghost")+"/announce", AnnounceRequest{Message: "x"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequireToken(t *testing.T) {
	b := newTestBackend(t, "secret")

	resp, err := http.Get(b.api.URL + "/chat/rooms/42")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	wrong, err := NewClient(ClientConfig{BaseURL: b.api.URL, Token: "guess"})
	require.NoError(t, err)
	_, err = wrong.FetchRooms(context.Background(), 42)
	require.True(t, IsStatus(err, http.StatusUnauthorized), "got %v", err)

	right, err := NewClient(ClientConfig{BaseURL: b.api.URL, Token: "secret"})
	require.NoError(t, err)
	_, err = right.FetchRooms(context.Background(), 42)
	require.NoError(t, err)
}
