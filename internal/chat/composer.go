package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"sellerchat/internal/identity"
	"sellerchat/internal/models"
)

// Sender transmits text into the selected room.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Composer holds the input draft. A failed submit keeps the draft so the
// user can retry; nothing is queued or retried automatically.
type Composer struct {
	sender Sender

	mu    sync.Mutex
	draft string
}

func NewComposer(sender Sender) *Composer {
	return &Composer{sender: sender}
}

func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Submit sends the draft and clears it on success. A blank draft is a no-op.
func (c *Composer) Submit(ctx context.Context) error {
	text := c.Draft()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := c.sender.Send(ctx, text); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == text {
		c.draft = ""
	}
	return nil
}

// compose builds the outgoing message for roomID.
func compose(me models.Identity, roomID, text string, now time.Time) models.ChatMessage {
	return models.ChatMessage{
		SenderID:   me.MemberID,
		SenderName: me.Name,
		Body:       text,
		SentAt:     now,
		Kind:       identity.KindOf(roomID),
		RoomID:     roomID,
	}
}
