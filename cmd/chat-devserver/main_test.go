package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sellerchat/internal/api"
	"sellerchat/internal/chat"
	"sellerchat/internal/history"
	"sellerchat/internal/identity"
	"sellerchat/internal/models"
	"sellerchat/internal/roomcodec"
	"sellerchat/internal/ws"
)

func TestIntegration(t *testing.T) {
	const (
		apiAddr   = "127.0.0.1:18887"
		adminAddr = "127.0.0.1:18888"
		token     = "integration-token"
	)
	dbFile := filepath.Join(t.TempDir(), "integration_test.db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- run(ctx, []string{
			"--server-addr", apiAddr,
			"--admin-addr", adminAddr,
			"--db-file", dbFile,
			"--token", token,
			"--log-level", "error",
		})
	}()

	baseURL := "http://" + apiAddr
	waitForServer(t, baseURL+"/health", 50)

	// Step 1: create a fresh room through the admin API
	roomID := identity.PersonalRoomID("최지우", "정하늘")
	{
		body, err := json.Marshal(api.CreateRoomRequest{Partner: "최지우", Self: "정하늘"})
		require.NoError(t, err)
		resp, err := http.Post("http://"+adminAddr+"/admin/rooms", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// Step 2: the room is listed, seeded rooms included
	client, err := api.NewClient(api.ClientConfig{BaseURL: baseURL, Token: token})
	require.NoError(t, err)
	rooms, err := client.FetchRooms(ctx, 99)
	require.NoError(t, err)
	ids := make([]string, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	require.Contains(t, ids, roomID)
	require.Greater(t, len(rooms), 1)

	// Step 3: a client joins and receives an operator notice live
	me := models.Identity{MemberID: 99, Name: "정하늘"}
	manager, err := chat.NewManager(chat.Config{
		Identity: me,
		BaseURL:  baseURL,
		Dialer:   ws.NewDialer(client.AuthHeader()),
		History:  history.NewLoader(client, nil),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	go func() { _ = manager.Run(ctx) }()

	require.NoError(t, manager.Connect(ctx, roomID))
	waitForNotice(t, manager, func(n models.Notice) bool { return n.Type == models.NoticeHistory && n.Count == 0 })

	{
		body, err := json.Marshal(api.AnnounceRequest{Message: "배송 지연 안내"})
		require.NoError(t, err)
		url := "http://" + adminAddr + "/admin/rooms/" + roomcodec.Encode(roomID) + "/announce"
		resp, err := http.Post(url, "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	notice := waitForNotice(t, manager, func(n models.Notice) bool { return n.Type == models.NoticeMessage })
	dm := chat.Classify(*notice.Message, me, "")
	require.Equal(t, models.StyleAdmin, dm.StyleClass)
	require.Equal(t, "배송 지연 안내", dm.Body)

	// Step 4: own messages come back through the channel and are persisted
	require.NoError(t, manager.Send(ctx, "확인했습니다"))
	notice = waitForNotice(t, manager, func(n models.Notice) bool { return n.Type == models.NoticeMessage })
	dm = chat.Classify(*notice.Message, me, "")
	require.True(t, dm.IsOwn)
	require.Equal(t, models.StyleSent, dm.StyleClass)

	backlog, err := client.FetchHistory(ctx, roomcodec.Encode(roomID))
	require.NoError(t, err)
	require.Len(t, backlog, 2)
	require.Equal(t, models.KindAdmin, backlog[0].Kind)
	require.Equal(t, "확인했습니다", backlog[1].Body)

	// Step 5: shut down
	cancel()
	select {
	case err := <-serverDone:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func waitForNotice(t *testing.T, manager *chat.Manager, match func(models.Notice) bool) models.Notice {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case n := <-manager.Notices():
			if match(n) {
				return n
			}
		case <-timeout:
			t.Fatal("expected notice was not delivered")
			return models.Notice{}
		}
	}
}

func waitForServer(t *testing.T, urlStr string, retries int) {
	client := &http.Client{Timeout: 500 * time.Millisecond}

	for i := 0; i < retries; i++ {
		resp, err := client.Get(urlStr)
		if err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("Server failed to start at %s after %d retries", urlStr, retries)
}
