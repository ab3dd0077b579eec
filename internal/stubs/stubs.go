package stubs

import (
	"fmt"
	"time"

	"sellerchat/internal/identity"
	"sellerchat/internal/models"
)

// DemoSeller is the member the seeded rooms are built around.
var DemoSeller = models.Identity{MemberID: 42, Name: "김철수"}

// Rooms mimics what the production room endpoint returns: besides the
// seller's own one-to-one rooms it also lists rooms of other members,
// group rooms and a malformed identifier.
var Rooms = []models.ChatRoom{
	{ID: identity.PersonalRoomID("홍길동", DemoSeller.Name), MemberNames: []string{"홍길동", DemoSeller.Name}},
	{ID: identity.PersonalRoomID("이영희", DemoSeller.Name), MemberNames: []string{"이영희", DemoSeller.Name}},
	{ID: identity.PersonalRoomID("박민수", DemoSeller.Name), MemberNames: []string{"박민수", DemoSeller.Name}},
	{ID: identity.AdminPrefix + DemoSeller.Name, MemberNames: []string{identity.AdminLabel, DemoSeller.Name}, DisplayName: identity.AdminLabel},
	{ID: identity.PersonalRoomID("홍길동", "이영희"), MemberNames: []string{"홍길동", "이영희"}},
	{ID: "group_seller-lounge", DisplayName: "Seller lounge"},
	{ID: "personal_a_b_c"},
}

type seedMessage struct {
	roomID string
	sender models.Identity
	body   string
	ago    time.Duration
}

var (
	hong  = models.Identity{MemberID: 7, Name: "홍길동"}
	lee   = models.Identity{MemberID: 8, Name: "이영희"}
	admin = models.Identity{MemberID: 1, Name: identity.AdminLabel}
)

var messages = []seedMessage{
	{roomID: Rooms[0].ID, sender: hong, body: "안녕하세요, 주문한 상품 언제 발송되나요?", ago: 3 * time.Hour},
	{roomID: Rooms[0].ID, sender: DemoSeller, body: "내일 오전에 발송 예정입니다.", ago: 2*time.Hour + 50*time.Minute},
	{roomID: Rooms[0].ID, sender: hong, body: "감사합니다!", ago: 2*time.Hour + 45*time.Minute},
	{roomID: Rooms[1].ID, sender: lee, body: "사이즈 교환 가능할까요?", ago: 40 * time.Minute},
	{roomID: Rooms[3].ID, sender: admin, body: "정산 일정이 변경되었습니다.", ago: 24 * time.Hour},
	{roomID: Rooms[4].ID, sender: hong, body: "other seller's conversation", ago: time.Hour},
}

// Store is what Seed writes into.
type Store interface {
	ListRooms() ([]models.ChatRoom, error)
	UpsertRoom(room models.ChatRoom) error
	AppendMessage(message models.ChatMessage) (uint64, error)
}

// Seed fills an empty store with the demo rooms and messages. A store that
// already has rooms is left untouched. It returns whether anything was written.
func Seed(store Store, now time.Time) (bool, error) {
	existing, err := store.ListRooms()
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	for _, room := range Rooms {
		if err := store.UpsertRoom(room); err != nil {
			return false, fmt.Errorf("seed room %s: %w", room.ID, err)
		}
	}
	for _, m := range messages {
		msg := models.ChatMessage{
			SenderID:   m.sender.MemberID,
			SenderName: m.sender.Name,
			Body:       m.body,
			SentAt:     now.Add(-m.ago),
			Kind:       identity.KindOf(m.roomID),
			RoomID:     m.roomID,
		}
		if _, err := store.AppendMessage(msg); err != nil {
			return false, fmt.Errorf("seed message for %s: %w", m.roomID, err)
		}
	}
	return true, nil
}
