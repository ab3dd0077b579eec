package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// WireMessage is the JSON shape exchanged over the channel and returned by the history endpoint.
type WireMessage struct {
	SenderID   int64       `json:"senderId"`
	SenderName string      `json:"senderName"`
	Message    string      `json:"message"`
	SendAt     string      `json:"sendAt"`
	Type       MessageKind `json:"type"`
	ChatroomID string      `json:"chatroomId"`
}

// Zone-less layouts are what Java LocalDateTime serializes to; they are read in local time.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseSendAt(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized sendAt %q", s)
}

// ToChatMessage validates the wire form.
func (w WireMessage) ToChatMessage() (ChatMessage, error) {
	if !w.Type.Valid() {
		return ChatMessage{}, fmt.Errorf("%w: unknown type %q", ErrMalformedInboundMessage, w.Type)
	}
	sentAt, err := parseSendAt(w.SendAt)
	if err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %w", ErrMalformedInboundMessage, err)
	}
	return ChatMessage{
		SenderID:   w.SenderID,
		SenderName: w.SenderName,
		Body:       w.Message,
		SentAt:     sentAt,
		Kind:       w.Type,
		RoomID:     w.ChatroomID,
	}, nil
}

func (m ChatMessage) Wire() WireMessage {
	return WireMessage{
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Message:    m.Body,
		SendAt:     m.SentAt.Format(time.RFC3339Nano),
		Type:       m.Kind,
		ChatroomID: m.RoomID,
	}
}

// ParseWireMessage decodes one inbound channel frame.
func ParseWireMessage(raw []byte) (ChatMessage, error) {
	var w WireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return ChatMessage{}, fmt.Errorf("%w: %w", ErrMalformedInboundMessage, err)
	}
	return w.ToChatMessage()
}
