package tui

import (
	"fmt"

	"github.com/Tyrowin/relaychat/internal/chat"
)

// Format renders an inbound envelope as one line of the message pane.
func Format(env chat.Envelope) string {
	nick := env.Sender.Nickname
	switch env.Mode {
	case chat.ModeDirect:
		return fmt.Sprintf("%s (Private): %s", nick, env.Text)
	case chat.ModeRoom:
		return fmt.Sprintf("%s (Room %s): %s", nick, env.Room, env.Text)
	default:
		return fmt.Sprintf("%s : %s", nick, env.Text)
	}
}
