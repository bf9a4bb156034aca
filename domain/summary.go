package domain

import "time"

// LastMessage is the fragment of a message shown in a conversation list.
type LastMessage struct {
	Body      string
	CreatedAt time.Time
	Sender    Identity
}

// ConversationSummary is a derived projection keyed by (owner, counterpart).
// UnreadCount must equal the number of stored messages with
// receiver = owner, sender = counterpart, read = false.
type ConversationSummary struct {
	Owner       Identity
	Counterpart Identity
	LastMessage LastMessage
	UnreadCount int
}

// Summarize builds the last-message fragment of a stored message.
func Summarize(m Message) LastMessage {
	return LastMessage{Body: m.Body, CreatedAt: m.CreatedAt, Sender: m.Sender}
}
