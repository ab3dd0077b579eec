package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sellerchat/internal/api"
	apphttp "sellerchat/internal/http"
	"sellerchat/internal/storage"
	"sellerchat/internal/stubs"
	"sellerchat/internal/ws"
)

func startBackend(t *testing.T) string {
	t.Helper()
	store, err := storage.NewBboltStorage(filepath.Join(t.TempDir(), "main.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = stubs.Seed(store, time.Now())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := ws.NewHub(store, logger)
	ts := httptest.NewServer(apphttp.NewAPIRouter(api.New(store, hub, "", logger), ws.NewServer(hub, store, logger)))
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestRun_NoIdentity(t *testing.T) {
	var out bytes.Buffer
	// the base URL points nowhere: nothing may be fetched without an identity
	err := run(context.Background(), []string{"--base-url", "http://127.0.0.1:1", "--list-rooms"}, strings.NewReader(""), &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Log in to use chat")
}

func TestRun_ListRooms(t *testing.T) {
	baseURL := startBackend(t)

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"--base-url", baseURL,
		"--member-id", "42",
		"--member-name", stubs.DemoSeller.Name,
		"--list-rooms",
	}, strings.NewReader(""), &out)
	require.NoError(t, err)

	for _, partner := range []string{"홍길동", "이영희", "박민수"} {
		require.Contains(t, out.String(), partner)
	}
	require.NotContains(t, out.String(), "Seller lounge")
	require.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 3)

	out.Reset()
	err = run(context.Background(), []string{
		"--base-url", baseURL,
		"--member-id", "42",
		"--member-name", stubs.DemoSeller.Name,
		"--list-rooms", "--search", "길동",
	}, strings.NewReader(""), &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "홍길동")
	require.NotContains(t, out.String(), "이영희")
}

func TestRun_InteractiveQuit(t *testing.T) {
	baseURL := startBackend(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	err := run(ctx, []string{
		"--base-url", baseURL,
		"--member-id", "42",
		"--member-name", stubs.DemoSeller.Name,
	}, strings.NewReader("/help\n/quit\n"), &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "/join <n|roomId>")
}

func TestRun_BadFlag(t *testing.T) {
	err := run(context.Background(), []string{"--no-such-flag"}, strings.NewReader(""), io.Discard)
	require.Error(t, err)
}
