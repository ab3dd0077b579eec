package history

import (
	"context"
	"fmt"
	"log/slog"

	"sellerchat/internal/models"
	"sellerchat/internal/roomcodec"
)

// Fetcher is the history endpoint, addressed by encoded room token.
type Fetcher interface {
	FetchHistory(ctx context.Context, encodedRoomID string) ([]models.ChatMessage, error)
}

// Loader fetches the persisted backlog of a room.
type Loader struct {
	fetcher Fetcher
	logger  *slog.Logger
}

func NewLoader(fetcher Fetcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{fetcher: fetcher, logger: logger}
}

// Load returns the backlog of roomID in server order. Errors wrap
// models.ErrHistoryUnavailable.
func (l *Loader) Load(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	messages, err := l.fetcher.FetchHistory(ctx, roomcodec.Encode(roomID))
	if err != nil {
		l.logger.Warn("history fetch failed", "room_id", roomID, "error", err)
		return nil, fmt.Errorf("%w: %w", models.ErrHistoryUnavailable, err)
	}
	l.logger.Debug("history loaded", "room_id", roomID, "count", len(messages))
	return messages, nil
}
