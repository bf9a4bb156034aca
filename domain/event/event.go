// Package event defines the domain events exchanged between the core
// and live connections. Events are routed, never persisted.
package event

import (
	"time"

	"chatlink/domain"
)

// DomainEvent is anything the core can push to a live connection.
type DomainEvent interface {
	Kind() string
}

// MessageDelivered carries a persisted message to a live connection,
// both as the receiver's delivery and as the sender's echo.
type MessageDelivered struct {
	Message domain.Message
}

func (MessageDelivered) Kind() string { return "message-delivered" }

// PresenceChanged announces an identity's offline/online transition.
// Emitted exactly once per transition, broadcast to everyone else.
type PresenceChanged struct {
	Identity domain.Identity
	Online   bool
	At       time.Time
}

func (PresenceChanged) Kind() string { return "presence-changed" }

// PresenceSnapshot carries the full online set to a connection that
// just opened.
type PresenceSnapshot struct {
	Online []domain.Identity
}

func (PresenceSnapshot) Kind() string { return "presence-snapshot" }

// TypingStarted signals that From is composing a message to To.
type TypingStarted struct {
	From domain.Identity
	To   domain.Identity
}

func (TypingStarted) Kind() string { return "typing-start" }

// TypingStopped signals the end of composition, whether explicit or
// expired server-side.
type TypingStopped struct {
	From domain.Identity
	To   domain.Identity
}

func (TypingStopped) Kind() string { return "typing-stop" }

// ReadCompleted confirms a mark-read request back to its originator.
type ReadCompleted struct {
	Owner       domain.Identity
	Counterpart domain.Identity
	Updated     int
}

func (ReadCompleted) Kind() string { return "read-complete" }

// SendFailed reports a rejected or unpersisted send to the originating
// connection only.
type SendFailed struct {
	To     domain.Identity
	Reason string
}

func (SendFailed) Kind() string { return "error" }
