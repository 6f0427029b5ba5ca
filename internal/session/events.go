package session

import "context"

// MessageRef is an opaque reference to a previously sent message, usable
// for later edits or deletion.
type MessageRef string

// Action is one labeled entry of a reply menu. Token comes back verbatim
// in a menu-selection event.
type Action struct {
	Label string
	Token string
}

// Command enumerates the inbound commands the engine reacts to.
type Command string

const (
	CommandStart Command = "start"
	CommandMenu  Command = "menu"
	CommandStop  Command = "stop"
)

// Transport delivers outbound instructions to the messaging surface. The
// engine never knows which surface is behind it.
type Transport interface {
	SendText(ctx context.Context, userID int64, text string, menu []Action) (MessageRef, error)
	EditText(ctx context.Context, userID int64, ref MessageRef, text string, menu []Action) error
	DeleteMessage(ctx context.Context, userID int64, ref MessageRef) error
	SendImage(ctx context.Context, userID int64, url, caption string) error
}
