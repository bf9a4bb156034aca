// Package domain contains core concepts of the messaging system.
// This file defines Message records and their ordering rules.
// Messages are immutable once persisted, except for the read flag.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable point-to-point message record.
// Only Read may change after creation; every other field is write-once.
type Message struct {
	ID        uuid.UUID
	Sender    Identity
	Receiver  Identity
	Body      string
	CreatedAt time.Time
	Read      bool
}

// Before reports whether m precedes other in conversation order:
// CreatedAt ascending, message ID as tie-break for equal timestamps.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID.String() < other.ID.String()
}

// Counterpart returns the other participant of the conversation
// from the point of view of owner.
func (m Message) Counterpart(owner Identity) Identity {
	if m.Sender == owner {
		return m.Receiver
	}
	return m.Sender
}
