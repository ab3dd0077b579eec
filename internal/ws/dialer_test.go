package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"sellerchat/internal/models"
	"sellerchat/internal/roomcodec"
	"sellerchat/internal/storage"
)

func TestChannelURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws/chat/abc", false},
		{"https://shop.example.com/", "wss://shop.example.com/ws/chat/abc", false},
		{"https://shop.example.com/api", "wss://shop.example.com/api/ws/chat/abc", false},
		{"ws://127.0.0.1:1", "ws://127.0.0.1:1/ws/chat/abc", false},
		{"ftp://host", "", true},
		{"http://", "", true},
		{"::", "", true},
	}

	for _, tt := range tests {
		got, err := ChannelURL(tt.base, "abc")
		if tt.wantErr {
			require.Error(t, err, tt.base)
			continue
		}
		require.NoError(t, err, tt.base)
		require.Equal(t, tt.want, got)
	}
}

func newTestBackend(t *testing.T) (*httptest.Server, *storage.BboltStorage) {
	t.Helper()
	store, err := storage.NewBboltStorage(filepath.Join(t.TempDir(), "ws.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	server := NewServer(NewHub(store, nil), store, nil)
	r := chi.NewRouter()
	r.Get("/ws/chat/{token}", server.HandleConnections)
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts, store
}

func TestGorillaDialer_RoundTrip(t *testing.T) {
	ts, store := newTestBackend(t)
	roomID := "personal_홍길동_김철수"
	require.NoError(t, store.UpsertRoom(models.ChatRoom{ID: roomID}))

	address, err := ChannelURL(ts.URL, roomcodec.Encode(roomID))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := NewDialer(nil).Dial(ctx, address)
	require.NoError(t, err)

	sent := models.ChatMessage{
		SenderID:   7,
		SenderName: "김철수",
		Body:       "안녕하세요",
		SentAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Kind:       models.KindPersonal,
		RoomID:     roomID,
	}
	require.NoError(t, conn.WriteJSON(sent.Wire()))

	frames := make(chan []byte, 1)
	closed := make(chan error, 1)
	go ReadLoop(conn, func(raw []byte) { frames <- raw }, func(err error) { closed <- err })

	select {
	case raw := <-frames:
		got, err := models.ParseWireMessage(raw)
		require.NoError(t, err)
		require.Equal(t, "안녕하세요", got.Body)
		require.Equal(t, roomID, got.RoomID)
	case <-time.After(3 * time.Second):
		t.Fatal("echo not received")
	}

	require.NoError(t, conn.Close())
	select {
	case err := <-closed:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("ReadLoop did not report close")
	}

	stored, err := store.ListMessages(roomID, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestGorillaDialer_Rejected(t *testing.T) {
	ts, _ := newTestBackend(t)
	ctx := context.Background()

	address, err := ChannelURL(ts.URL, roomcodec.Encode("personal_nobody_here"))
	require.NoError(t, err)
	_, err = NewDialer(nil).Dial(ctx, address)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "404"), err.Error())

	address, err = ChannelURL(ts.URL, "%%%")
	require.NoError(t, err)
	_, err = NewDialer(http.Header{}).Dial(ctx, address)
	require.Error(t, err)
}
