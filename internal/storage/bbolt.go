package storage

import (
	"errors"
	"fmt"
	"time"

	"sellerchat/internal/content"
	"sellerchat/internal/models"

	"go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("not found")

var (
	bucketRooms    = []byte("rooms")
	bucketMessages = []byte("messages")
)

var _ Storeable = (*DBRoom)(nil)
var _ Storeable = (*DBMessage)(nil)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRooms); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// UpsertRoom saves the room, keeping the stored preview and sequence when the
// incoming room does not carry a preview.
func (s *BboltStorage) UpsertRoom(room models.ChatRoom) error {
	if room.ID == "" {
		return errors.New("room missing id")
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRooms)
		dbRoom := DBRoom{
			ID:                 room.ID,
			MemberNames:        room.MemberNames,
			DisplayName:        room.DisplayName,
			LastMessagePreview: room.LastMessagePreview,
		}
		if existing := b.Get(dbRoom.Key()); existing != nil {
			var old DBRoom
			if err := old.UnmarshalBinary(existing); err != nil {
				return fmt.Errorf("failed to unmarshal room: %w", err)
			}
			dbRoom.LastSeq = old.LastSeq
			if dbRoom.LastMessagePreview == "" {
				dbRoom.LastMessagePreview = old.LastMessagePreview
			}
		}
		data, err := dbRoom.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbRoom.Key(), data)
	})
}

func (s *BboltStorage) GetRoom(id string) (models.ChatRoom, error) {
	var room models.ChatRoom
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketRooms).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("room %s: %w", id, ErrNotFound)
		}
		var dbRoom DBRoom
		if err := dbRoom.UnmarshalBinary(data); err != nil {
			return err
		}
		room = dbRoom.toModel()
		return nil
	})
	return room, err
}

// ListRooms returns all rooms ordered by id.
func (s *BboltStorage) ListRooms() ([]models.ChatRoom, error) {
	rooms := []models.ChatRoom{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRooms).ForEach(func(k, v []byte) error {
			var dbRoom DBRoom
			if err := dbRoom.UnmarshalBinary(v); err != nil {
				return err
			}
			rooms = append(rooms, dbRoom.toModel())
			return nil
		})
	})
	return rooms, err
}

// AppendMessage stores the message under the next room sequence number and
// refreshes the room preview. The room must exist.
func (s *BboltStorage) AppendMessage(message models.ChatMessage) (uint64, error) {
	var seq uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if message.RoomID == "" {
			return errors.New("message missing room id")
		}

		rooms := tx.Bucket(bucketRooms)
		roomKey := []byte(message.RoomID)
		roomData := rooms.Get(roomKey)
		if roomData == nil {
			return fmt.Errorf("room %s: %w", message.RoomID, ErrNotFound)
		}
		var dbRoom DBRoom
		if err := dbRoom.UnmarshalBinary(roomData); err != nil {
			return fmt.Errorf("failed to unmarshal room: %w", err)
		}

		roomMessages, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists(roomKey)
		if err != nil {
			return fmt.Errorf("failed to create room bucket: %w", err)
		}
		seq, err = roomMessages.NextSequence()
		if err != nil {
			return err
		}

		dbMessage := DBMessage{
			Seq:        seq,
			SentAt:     message.SentAt.UnixNano(),
			RoomID:     message.RoomID,
			SenderID:   message.SenderID,
			SenderName: message.SenderName,
			Body:       message.Body,
			Kind:       string(message.Kind),
		}
		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if err := roomMessages.Put(dbMessage.Key(), data); err != nil {
			return fmt.Errorf("failed to put message: %w", err)
		}

		dbRoom.LastSeq = seq
		dbRoom.LastMessagePreview = content.Preview(message.Body, content.DefaultPreviewRunes)
		newData, err := dbRoom.MarshalBinary()
		if err != nil {
			return err
		}
		return rooms.Put(roomKey, newData)
	})
	return seq, err
}

// ListMessages returns up to limit most recent messages of the room, oldest
// first. limit <= 0 returns everything.
func (s *BboltStorage) ListMessages(roomID string, limit int) ([]models.ChatMessage, error) {
	var reversed []models.ChatMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		roomMessages := tx.Bucket(bucketMessages).Bucket([]byte(roomID))
		if roomMessages == nil {
			return nil // No messages for this room
		}
		c := roomMessages.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(reversed) == limit {
				break
			}
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			reversed = append(reversed, dbMsg.toModel())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]models.ChatMessage, len(reversed))
	for i, m := range reversed {
		messages[len(reversed)-1-i] = m
	}
	return messages, nil
}

func (r *DBRoom) toModel() models.ChatRoom {
	return models.ChatRoom{
		ID:                 r.ID,
		MemberNames:        r.MemberNames,
		DisplayName:        r.DisplayName,
		LastMessagePreview: r.LastMessagePreview,
	}
}

func (m *DBMessage) toModel() models.ChatMessage {
	return models.ChatMessage{
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Body:       m.Body,
		SentAt:     time.Unix(0, m.SentAt),
		Kind:       models.MessageKind(m.Kind),
		RoomID:     m.RoomID,
	}
}
