package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sellerchat/internal/models"
)

type fakeSender struct {
	sent []string
	err  error
}

func (s *fakeSender) Send(_ context.Context, text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	return nil
}

func TestComposer_SubmitClearsDraft(t *testing.T) {
	sender := &fakeSender{}
	c := NewComposer(sender)

	c.SetDraft("안녕하세요")
	require.NoError(t, c.Submit(context.Background()))
	require.Equal(t, []string{"안녕하세요"}, sender.sent)
	require.Empty(t, c.Draft())
}

func TestComposer_BlankDraftIsNoop(t *testing.T) {
	sender := &fakeSender{}
	c := NewComposer(sender)

	c.SetDraft(" \t\n")
	require.NoError(t, c.Submit(context.Background()))
	require.Empty(t, sender.sent)
}

func TestComposer_FailureKeepsDraft(t *testing.T) {
	sender := &fakeSender{err: models.ErrChannelNotOpen}
	c := NewComposer(sender)

	c.SetDraft("retry me")
	err := c.Submit(context.Background())
	require.True(t, errors.Is(err, models.ErrChannelNotOpen))
	require.Equal(t, "retry me", c.Draft())
}

func TestCompose(t *testing.T) {
	me := models.Identity{MemberID: 42, Name: "김철수"}
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	personal := compose(me, "personal_홍길동_김철수", "hi", now)
	require.Equal(t, models.ChatMessage{
		SenderID:   42,
		SenderName: "김철수",
		Body:       "hi",
		SentAt:     now,
		Kind:       models.KindPersonal,
		RoomID:     "personal_홍길동_김철수",
	}, personal)

	admin := compose(me, "admin_42", "help", now)
	require.Equal(t, models.KindAdmin, admin.Kind)
}
