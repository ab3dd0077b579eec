// Package view renders chat state for a terminal. Styling is keyed by
// models.StyleClass so that own, partner and operator messages are told
// apart at a glance.
package view

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sellerchat/internal/models"
)

// Theme is the color palette. Colors are ANSI 256-color codes.
type Theme struct {
	SentText     lipgloss.Color
	ReceivedText lipgloss.Color
	AdminText    lipgloss.Color
	FaintText    lipgloss.Color
	AlertText    lipgloss.Color
	HeaderText   lipgloss.Color
	BorderColor  lipgloss.Color
}

var DefaultTheme = Theme{
	SentText:     lipgloss.Color("117"),
	ReceivedText: lipgloss.Color("252"),
	AdminText:    lipgloss.Color("214"),
	FaintText:    lipgloss.Color("243"),
	AlertText:    lipgloss.Color("203"),
	HeaderText:   lipgloss.Color("255"),
	BorderColor:  lipgloss.Color("240"),
}

const DefaultWidth = 72

type Renderer struct {
	width  int
	styles map[models.StyleClass]lipgloss.Style
	meta   lipgloss.Style
	alert  lipgloss.Style
	header lipgloss.Style
	faint  lipgloss.Style
}

func NewRenderer(theme Theme, width int) *Renderer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Renderer{
		width: width,
		styles: map[models.StyleClass]lipgloss.Style{
			models.StyleSent:     lipgloss.NewStyle().Foreground(theme.SentText).Width(width).Align(lipgloss.Right),
			models.StyleReceived: lipgloss.NewStyle().Foreground(theme.ReceivedText).Width(width),
			models.StyleAdmin: lipgloss.NewStyle().
				Foreground(theme.AdminText).
				Bold(true).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(theme.AdminText).
				PaddingLeft(1),
		},
		meta:   lipgloss.NewStyle().Foreground(theme.FaintText),
		alert:  lipgloss.NewStyle().Foreground(theme.AlertText).Bold(true),
		header: lipgloss.NewStyle().Foreground(theme.HeaderText).Bold(true).Border(lipgloss.NormalBorder(), false, false, true, false).BorderForeground(theme.BorderColor),
		faint:  lipgloss.NewStyle().Foreground(theme.FaintText),
	}
}

// Message renders one classified message.
func (r *Renderer) Message(dm models.DisplayMessage) string {
	style, ok := r.styles[dm.StyleClass]
	if !ok {
		style = r.styles[models.StyleReceived]
	}

	var b strings.Builder
	switch dm.StyleClass {
	case models.StyleSent:
		b.WriteString(r.meta.Render(dm.FormattedTimestamp))
	default:
		b.WriteString(r.meta.Render(dm.SenderName + " · " + dm.FormattedTimestamp))
	}
	b.WriteString("\n")
	b.WriteString(dm.Body)
	return style.Render(b.String())
}

func (r *Renderer) Messages(dms []models.DisplayMessage) string {
	parts := make([]string, len(dms))
	for i, dm := range dms {
		parts[i] = r.Message(dm)
	}
	return strings.Join(parts, "\n")
}

// Rooms renders a numbered room list for /join.
func (r *Renderer) Rooms(rooms []models.ChatRoom) string {
	if len(rooms) == 0 {
		return r.faint.Render("no conversations")
	}
	lines := make([]string, len(rooms))
	for i, room := range rooms {
		line := fmt.Sprintf("%2d. %s", i+1, room.DisplayName)
		if room.LastMessagePreview != "" {
			line += "  " + r.faint.Render(room.LastMessagePreview)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// Header renders the title bar of a room.
func (r *Renderer) Header(title string, state models.ConnectionState) string {
	return r.header.Width(r.width).Render(title + "  " + r.faint.Render("["+state.Phase.String()+"]"))
}

// Notice renders a manager notice. Message notices render nothing; the
// caller renders the message itself.
func (r *Renderer) Notice(n models.Notice) string {
	switch n.Type {
	case models.NoticePhase:
		return r.faint.Render(fmt.Sprintf("-- %s", strings.ToLower(n.Phase.String())))
	case models.NoticeHistory:
		return r.faint.Render(fmt.Sprintf("-- %d earlier messages", n.Count))
	case models.NoticeAlert:
		return r.Alert(n.Err)
	}
	return ""
}

// Alert renders err as a one-line user-facing message.
func (r *Renderer) Alert(err error) string {
	if err == nil {
		return ""
	}
	return r.alert.Render("! " + Describe(err))
}

// Describe maps an error to the text shown to the user.
func Describe(err error) string {
	switch {
	case errors.Is(err, models.ErrNoIdentity):
		return "로그인이 필요합니다. Log in to use chat."
	case errors.Is(err, models.ErrRoomsUnavailable):
		return "could not load conversations"
	case errors.Is(err, models.ErrHistoryUnavailable):
		return "could not load earlier messages"
	case errors.Is(err, models.ErrChannelOpenFailed):
		return "could not connect to the conversation"
	case errors.Is(err, models.ErrChannelError):
		return "connection lost; rejoin the room to reconnect"
	case errors.Is(err, models.ErrChannelNotOpen):
		return "not connected; message was not sent"
	case errors.Is(err, models.ErrNoActiveRoom):
		return "join a room first"
	}
	return err.Error()
}
