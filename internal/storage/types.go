package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBRoom struct {
	ID                 string   `msgpack:"id"`
	MemberNames        []string `msgpack:"memberNames"`
	DisplayName        string   `msgpack:"displayName"`
	LastMessagePreview string   `msgpack:"lastMessagePreview"`
	LastSeq            uint64   `msgpack:"lastSeq"`
}

func (r *DBRoom) Key() []byte {
	return []byte(r.ID)
}

func (r *DBRoom) MarshalBinary() (data []byte, err error) {
	type alias DBRoom
	return msgpack.Marshal((*alias)(r))
}

func (r *DBRoom) UnmarshalBinary(data []byte) error {
	type alias DBRoom
	return msgpack.Unmarshal(data, (*alias)(r))
}

type DBMessage struct {
	Seq        uint64 `msgpack:"seq"`
	SentAt     int64  `msgpack:"sentAt"` // Unix nanoseconds
	RoomID     string `msgpack:"roomId"`
	SenderID   int64  `msgpack:"senderId"`
	SenderName string `msgpack:"senderName"`
	Body       string `msgpack:"body"`
	Kind       string `msgpack:"kind"`
}

func (m *DBMessage) Key() []byte {
	return seqKey(m.Seq)
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
