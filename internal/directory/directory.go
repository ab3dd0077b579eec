// Package directory lists the one-to-one rooms of the signed-in member.
//
// The backend's room endpoint is shared across conversation types and
// over-returns, so every fetched room goes through Filter before anything
// else sees it. Search runs locally over the filtered set.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c-pro/geche"

	"sellerchat/internal/content"
	"sellerchat/internal/identity"
	"sellerchat/internal/models"
)

const DefaultCacheTTL = 30 * time.Second

// RoomFetcher is the room-listing endpoint.
type RoomFetcher interface {
	FetchRooms(ctx context.Context, memberID int64) ([]models.ChatRoom, error)
}

type Config struct {
	Fetcher RoomFetcher
	// CacheTTL bounds how long a fetched list is reused. Zero keeps entries until Refresh.
	CacheTTL time.Duration
	Logger   *slog.Logger
}

type Directory struct {
	fetcher RoomFetcher
	// keyed by the whole identity since Filter depends on the name
	cache   geche.Geche[models.Identity, []models.ChatRoom]
	logger  *slog.Logger

	mu    sync.RWMutex
	me    models.Identity
	rooms []models.ChatRoom
}

// New creates a Directory. ctx bounds the cache cleanup goroutine.
func New(ctx context.Context, config Config) *Directory {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cache geche.Geche[models.Identity, []models.ChatRoom]
	if config.CacheTTL > 0 {
		cache = geche.NewMapTTLCache[models.Identity, []models.ChatRoom](ctx, config.CacheTTL, config.CacheTTL)
	} else {
		cache = geche.NewMapCache[models.Identity, []models.ChatRoom]()
	}

	return &Directory{
		fetcher: config.Fetcher,
		cache:   cache,
		logger:  logger,
	}
}

// Filter keeps the well-formed one-to-one rooms whose self name is
// currentUserName and fills in missing display names.
func Filter(rooms []models.ChatRoom, currentUserName string) []models.ChatRoom {
	kept := make([]models.ChatRoom, 0, len(rooms))
	for _, room := range rooms {
		partner, self, ok := identity.Parse(room.ID)
		if !ok || self != currentUserName {
			continue
		}
		if room.DisplayName == "" {
			room.DisplayName = partner
		}
		kept = append(kept, room)
	}
	return kept
}

// Load returns the filtered rooms of me, from cache when fresh.
// On failure the current list is emptied and the error wraps models.ErrRoomsUnavailable.
func (d *Directory) Load(ctx context.Context, me models.Identity) ([]models.ChatRoom, error) {
	if cached, err := d.cache.Get(me); err == nil && !me.IsZero() {
		return d.publish(me, cached), nil
	}
	return d.Refresh(ctx, me)
}

// Refresh always goes to the network.
func (d *Directory) Refresh(ctx context.Context, me models.Identity) ([]models.ChatRoom, error) {
	if me.IsZero() {
		d.publish(models.Identity{}, nil)
		return nil, fmt.Errorf("%w: %w", models.ErrRoomsUnavailable, models.ErrNoIdentity)
	}

	fetched, err := d.fetcher.FetchRooms(ctx, me.MemberID)
	if err != nil {
		d.publish(me, nil)
		d.logger.Warn("room list fetch failed", "member_id", me.MemberID, "error", err)
		return nil, fmt.Errorf("%w: %w", models.ErrRoomsUnavailable, err)
	}

	rooms := Filter(fetched, me.Name)
	d.logger.Debug("room list loaded",
		"member_id", me.MemberID,
		"fetched", len(fetched),
		"kept", len(rooms),
	)
	d.cache.Set(me, rooms)
	return d.publish(me, rooms), nil
}

func (d *Directory) publish(me models.Identity, rooms []models.ChatRoom) []models.ChatRoom {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.me = me
	d.rooms = clone(rooms)
	return clone(rooms)
}

// Rooms returns the current filtered list.
func (d *Directory) Rooms() []models.ChatRoom {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return clone(d.rooms)
}

// Search matches query case-insensitively against partner names. An empty
// query returns every room.
func (d *Directory) Search(query string) []models.ChatRoom {
	d.mu.RLock()
	defer d.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	result := []models.ChatRoom{}
	for _, room := range d.rooms {
		partner, ok := identity.ResolvePartnerName(room.ID, d.me.Name)
		if !ok {
			continue
		}
		if needle == "" || strings.Contains(strings.ToLower(partner), needle) {
			result = append(result, room)
		}
	}
	return result
}

// Find returns the listed room with id roomID.
func (d *Directory) Find(roomID string) (models.ChatRoom, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, room := range d.rooms {
		if room.ID == roomID {
			return room, true
		}
	}
	return models.ChatRoom{}, false
}

// UpdatePreview records body as the latest message of roomID. It is a local
// hint only and is overwritten by the next Refresh.
func (d *Directory) UpdatePreview(roomID, body string) {
	preview := content.Preview(body, content.DefaultPreviewRunes)

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.rooms {
		if d.rooms[i].ID == roomID {
			d.rooms[i].LastMessagePreview = preview
			if !d.me.IsZero() {
				d.cache.Set(d.me, clone(d.rooms))
			}
			return
		}
	}
}

func clone(rooms []models.ChatRoom) []models.ChatRoom {
	if rooms == nil {
		return nil
	}
	out := make([]models.ChatRoom, len(rooms))
	copy(out, rooms)
	return out
}
