// Package chat provides the WebSocket chat transport: message delivery to
// users, inbound message routing, and transcript logging.
package chat

import (
	"context"
)

// SendOptions carries optional delivery hints for an outbound message.
type SendOptions struct {
	// Suggestions are quick-reply texts offered to the user.
	Suggestions []string
}

// Messenger delivers messages to users. Delivery is fire-and-forget from the
// caller's perspective; transport failures surface as ordinary errors.
type Messenger interface {
	// Send delivers a new message to the user.
	Send(ctx context.Context, userID, text string, opts *SendOptions) error

	// EditLast replaces the text of the most recent message sent to the user.
	EditLast(ctx context.Context, userID, text string) error
}
