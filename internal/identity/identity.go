// Package identity resolves who is on the other side of a room from the
// room identifier alone.
//
// One-to-one rooms are named personal_<partner>_<self>; rooms with the
// operator start with admin_. Identifiers that do not split into exactly two
// non-empty names after the personal_ prefix are malformed and never resolve.
package identity

import (
	"strings"

	"sellerchat/internal/models"
)

const (
	AdminLabel     = "관리자"
	PersonalPrefix = "personal_"
	AdminPrefix    = "admin_"
)

func IsAdminRoom(roomID string) bool {
	return strings.HasPrefix(roomID, AdminPrefix)
}

// Parse splits a one-to-one room identifier into its partner and self names.
func Parse(roomID string) (partner, self string, ok bool) {
	rest, found := strings.CutPrefix(roomID, PersonalPrefix)
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ResolvePartnerName returns the name to show for roomID when viewed by
// currentUserName. ok is false when the room does not belong to that user.
func ResolvePartnerName(roomID, currentUserName string) (string, bool) {
	if IsAdminRoom(roomID) {
		return AdminLabel, true
	}
	partner, self, ok := Parse(roomID)
	if !ok || self != currentUserName {
		return "", false
	}
	return partner, true
}

// KindOf is the message kind used when composing into roomID.
func KindOf(roomID string) models.MessageKind {
	if IsAdminRoom(roomID) {
		return models.KindAdmin
	}
	return models.KindPersonal
}

func PersonalRoomID(partner, self string) string {
	return PersonalPrefix + partner + "_" + self
}
