// Package push defines the outbound push-notification gateway contract and
// its Expo implementation.
package push

import "context"

// Message is a single push message addressed to one device token.
type Message struct {
	To        string         `json:"to"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Sound     string         `json:"sound,omitempty"`
	Priority  string         `json:"priority,omitempty"`
	ChannelID string         `json:"channelId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Ticket is the gateway's per-message acceptance receipt. A ticket with a
// non-ok status means that one message was rejected; the rest of the chunk
// may still have been accepted.
type Ticket struct {
	ID      string `json:"id,omitempty"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// TicketStatusOK marks an accepted message.
const TicketStatusOK = "ok"

// Gateway abstracts the push provider. Implementations own the provider's
// token format and batch limits so the dispatcher stays provider-agnostic.
type Gateway interface {
	// IsValidToken reports whether token matches the provider's push token
	// format. Malformed tokens must be dropped, not sent.
	IsValidToken(token string) bool

	// Chunk splits messages into batches within the provider's size limit.
	Chunk(messages []Message) [][]Message

	// Send submits one chunk. May partially fail per-message; per-message
	// outcomes are reported through the returned tickets.
	Send(ctx context.Context, chunk []Message) ([]Ticket, error)
}
