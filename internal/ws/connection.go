package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"sellerchat/internal/identity"
	"sellerchat/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
}

type messageHub interface {
	Join(roomID string) (string, chan models.WireMessage)
	Leave(roomID, subscriberID string)
	Dispatch(msg models.ChatMessage) error
}

// Connection serves one client channel on the development backend.
type Connection struct {
	ws           wsConnection
	hub          messageHub
	roomID       string
	subscriberID string
	logger       *slog.Logger
	fromClient   chan []byte
	fromServer   chan models.WireMessage
	errorCh      chan error
}

func NewConnection(
	hub messageHub,
	ws wsConnection,
	roomID string,
	logger *slog.Logger,
) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	subscriberID, fromServer := hub.Join(roomID)
	return &Connection{
		ws:           ws,
		hub:          hub,
		roomID:       roomID,
		subscriberID: subscriberID,
		logger:       logger,
		fromClient:   make(chan []byte),
		fromServer:   fromServer,
		errorCh:      make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.errorCh)
		c.hub.Leave(c.roomID, c.subscriberID)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	_ = c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) && !IsNormalClose(err) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		select {
		case c.fromClient <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case raw := <-c.fromClient:
			c.processClientMessage(raw)
		case msg, ok := <-c.fromServer:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// processClientMessage never fails the connection: bad frames are logged and skipped.
func (c *Connection) processClientMessage(raw []byte) {
	msg, err := models.ParseWireMessage(raw)
	if err != nil {
		c.logger.Warn("dropping client frame", "room_id", c.roomID, "error", err)
		return
	}
	// Announcements only enter through the admin listener.
	if msg.SenderName == identity.AdminLabel {
		c.logger.Warn("dropping client frame with reserved sender", "room_id", c.roomID, "sender_id", msg.SenderID)
		return
	}
	// The channel address is authoritative for the room and its kind.
	msg.RoomID = c.roomID
	msg.Kind = identity.KindOf(c.roomID)
	if err := c.hub.Dispatch(msg); err != nil {
		c.logger.Error("dispatch failed", "room_id", c.roomID, "error", err)
	}
}
