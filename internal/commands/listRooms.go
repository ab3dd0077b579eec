package commands

import (
	"context"
	"fmt"
	"io"

	"sellerchat/internal/directory"
	"sellerchat/internal/models"
	"sellerchat/internal/view"
)

// ListRooms prints the signed-in member's conversations, optionally
// narrowed by query, and returns.
func ListRooms(ctx context.Context, out io.Writer, me models.Identity, rooms *directory.Directory, renderer *view.Renderer, query string) error {
	if me.IsZero() {
		return models.ErrNoIdentity
	}
	list, err := rooms.Load(ctx, me)
	if err != nil {
		return err
	}
	if query != "" {
		list = rooms.Search(query)
	}

	if _, err := fmt.Fprintln(out, renderer.Rooms(list)); err != nil {
		return fmt.Errorf("failed to write room list: %w", err)
	}
	return nil
}
