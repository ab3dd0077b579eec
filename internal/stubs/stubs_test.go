package stubs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sellerchat/internal/directory"
	"sellerchat/internal/storage"
)

func TestSeed(t *testing.T) {
	store, err := storage.NewBboltStorage(filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	seeded, err := Seed(store, now)
	require.NoError(t, err)
	require.True(t, seeded)

	rooms, err := store.ListRooms()
	require.NoError(t, err)
	require.Len(t, rooms, len(Rooms))

	// only the seller's own one-to-one rooms survive filtering
	visible := directory.Filter(rooms, DemoSeller.Name)
	require.Len(t, visible, 3)

	history, err := store.ListMessages(Rooms[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "감사합니다!", history[2].Body)

	seeded, err = Seed(store, now)
	require.NoError(t, err)
	require.False(t, seeded)

	history, err = store.ListMessages(Rooms[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
}
