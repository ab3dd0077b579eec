package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	maxFrameSize     = 64 << 10
)

// Conn is the part of a websocket connection the chat client uses.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a channel to the given address.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}

// GorillaDialer dials with gorilla/websocket.
type GorillaDialer struct {
	Header http.Header
	dialer *websocket.Dialer
}

func NewDialer(header http.Header) *GorillaDialer {
	return &GorillaDialer{
		Header: header,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (d *GorillaDialer) Dial(ctx context.Context, address string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, address, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", address, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	conn.SetReadLimit(maxFrameSize)
	return conn, nil
}

// ChannelURL derives the channel address for an encoded room token from the
// REST base URL: http becomes ws and https becomes wss.
func ChannelURL(baseURL, encodedRoomID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q in base url", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}
	return u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/") + "/ws/chat/" + encodedRoomID, nil
}

// IsNormalClose reports whether err is an orderly close from the peer.
func IsNormalClose(err error) bool {
	if err == nil {
		return false
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, websocket.ErrCloseSent)
}

// ReadLoop reads frames until the connection fails, handing each payload to
// onFrame and the terminal error to onClose. It runs on the caller's goroutine.
func ReadLoop(conn Conn, onFrame func([]byte), onClose func(error)) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			onClose(err)
			return
		}
		onFrame(raw)
	}
}
