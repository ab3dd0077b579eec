package models

import (
	"errors"
	"time"
)

var (
	ErrNoIdentity              = errors.New("no identity: log in to use chat")
	ErrRoomsUnavailable        = errors.New("rooms unavailable")
	ErrHistoryUnavailable      = errors.New("history unavailable")
	ErrChannelOpenFailed       = errors.New("channel open failed")
	ErrChannelError            = errors.New("channel error")
	ErrMalformedInboundMessage = errors.New("malformed inbound message")
	ErrChannelNotOpen          = errors.New("channel is not open")
	ErrNoActiveRoom            = errors.New("no active room")
	ErrManagerStopped          = errors.New("connection manager stopped")
)

// Identity is the signed-in member as supplied by the identity service.
type Identity struct {
	MemberID int64  `json:"memberId" yaml:"member_id"`
	Name     string `json:"name" yaml:"member_name"`
}

func (i Identity) IsZero() bool {
	return i.MemberID == 0 || i.Name == ""
}

// ChatRoom is a conversation as listed by the backend.
type ChatRoom struct {
	ID                 string   `json:"id"`
	MemberNames        []string `json:"memberNames,omitempty"`
	DisplayName        string   `json:"displayName,omitempty"`
	LastMessagePreview string   `json:"lastMessagePreview,omitempty"`
}

type MessageKind string

const (
	KindPersonal MessageKind = "PERSONAL"
	KindAdmin    MessageKind = "ADMIN"
)

func (k MessageKind) Valid() bool {
	return k == KindPersonal || k == KindAdmin
}

// ChatMessage is a received or composed message. It is never mutated after creation.
type ChatMessage struct {
	SenderID   int64
	SenderName string
	Body       string
	SentAt     time.Time
	Kind       MessageKind
	RoomID     string
}

type StyleClass string

const (
	StyleSent     StyleClass = "sent"
	StyleReceived StyleClass = "received"
	StyleAdmin    StyleClass = "admin"
)

// DisplayMessage is a ChatMessage decorated for rendering.
type DisplayMessage struct {
	ChatMessage
	StyleClass         StyleClass
	FormattedTimestamp string
	IsOwn              bool
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseOpen
	PhaseClosed
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseConnecting:
		return "CONNECTING"
	case PhaseOpen:
		return "OPEN"
	case PhaseClosed:
		return "CLOSED"
	case PhaseError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Live reports whether the phase holds (or is acquiring) a channel.
func (p Phase) Live() bool {
	return p == PhaseConnecting || p == PhaseOpen
}

// ConnectionState describes the session for the selected room.
type ConnectionState struct {
	RoomID string
	Phase  Phase
}

type NoticeType string

const (
	NoticePhase   NoticeType = "phase"
	NoticeMessage NoticeType = "message"
	NoticeHistory NoticeType = "history"
	NoticeAlert   NoticeType = "alert"
)

// Notice is a user-visible event produced by the connection manager.
type Notice struct {
	Type    NoticeType
	RoomID  string
	Phase   Phase
	Message *ChatMessage
	Count   int // NoticeHistory: number of messages seeded
	Err     error
}
