package domain

import "time"

// Event kinds delivered by a chat channel.
const (
	KindCommand  = "command"
	KindCallback = "callback"
	KindText     = "text"
)

// InboundEvent is one chat interaction normalized away from the transport:
// a slash command, a free-text message, or a callback button press.
type InboundEvent struct {
	Channel      string
	ChatID       string
	SenderID     string
	Kind         string
	Text         string // command name (without slash) or message text
	CallbackID   string // transport callback id, answered to stop the client spinner
	CallbackData string // raw callback token
	MessageID    int    // message the event originated from
	Timestamp    time.Time
}

// OutboundMessage is a plain notification routed through the bus to a channel
// (used by the webhook fan-out, which has no message to reply to).
type OutboundMessage struct {
	Channel  string
	ChatID   string
	Content  string
	Keyboard Keyboard
}

// Button is one inline keyboard button carrying a callback token.
type Button struct {
	Label string
	Data  string
}

// Keyboard is rows of buttons; nil means no keyboard.
type Keyboard [][]Button
