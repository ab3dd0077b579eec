package chat

import (
	"sellerchat/internal/identity"
	"sellerchat/internal/models"
)

const DefaultTimeLayout = "2006-01-02 15:04"

// Classify decides how msg is rendered for me. Operator notices win over
// sender id matching, so an ADMIN message is never shown as one's own.
func Classify(msg models.ChatMessage, me models.Identity, layout string) models.DisplayMessage {
	if layout == "" {
		layout = DefaultTimeLayout
	}
	dm := models.DisplayMessage{
		ChatMessage:        msg,
		FormattedTimestamp: msg.SentAt.Local().Format(layout),
	}
	switch {
	case msg.Kind == models.KindAdmin && msg.SenderName == identity.AdminLabel:
		dm.StyleClass = models.StyleAdmin
	case msg.SenderID == me.MemberID:
		dm.StyleClass = models.StyleSent
		dm.IsOwn = true
	default:
		dm.StyleClass = models.StyleReceived
	}
	return dm
}
