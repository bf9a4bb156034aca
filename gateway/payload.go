package gateway

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatlink/domain"
	"chatlink/domain/event"
	"chatlink/errors"
)

// Inbound is the envelope of every peer→core frame.
type Inbound struct {
	Type    string          `json:"type" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound is the envelope of every core→peer frame.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type SendMessagePayload struct {
	Receiver  string    `json:"receiver" validate:"required"`
	Body      string    `json:"body" validate:"required"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type CounterpartPayload struct {
	Counterpart string `json:"counterpart" validate:"required"`
}

// MessagePayload is the wire form of a persisted message.
type MessagePayload struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"`
}

type PresencePayload struct {
	Identity string `json:"identity"`
	Online   bool   `json:"online"`
}

type PresenceSnapshotPayload struct {
	Online []string `json:"online"`
}

type TypingPayload struct {
	Counterpart string `json:"counterpart"`
}

type ReadCompletePayload struct {
	Counterpart string `json:"counterpart"`
	Updated     int    `json:"updated"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}

// SummaryPayload is the wire form of one conversation list entry.
type SummaryPayload struct {
	Counterpart string         `json:"counterpart"`
	LastMessage MessageSummary `json:"lastMessage"`
	UnreadCount int            `json:"unreadCount"`
}

type MessageSummary struct {
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Sender    string    `json:"sender"`
}

func toMessagePayload(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:        m.ID.String(),
		Sender:    string(m.Sender),
		Receiver:  string(m.Receiver),
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		Read:      m.Read,
	}
}

func toSummaryPayload(s domain.ConversationSummary) SummaryPayload {
	return SummaryPayload{
		Counterpart: string(s.Counterpart),
		LastMessage: MessageSummary{
			Body:      s.LastMessage.Body,
			CreatedAt: s.LastMessage.CreatedAt,
			Sender:    string(s.LastMessage.Sender),
		},
		UnreadCount: s.UnreadCount,
	}
}

// encodeEvent maps a domain event to its connection-scoped wire frame.
func encodeEvent(evt event.DomainEvent) Outbound {
	switch e := evt.(type) {
	case event.MessageDelivered:
		return Outbound{Type: e.Kind(), Payload: toMessagePayload(e.Message)}
	case event.PresenceChanged:
		return Outbound{Type: e.Kind(), Payload: PresencePayload{
			Identity: string(e.Identity), Online: e.Online}}
	case event.PresenceSnapshot:
		return Outbound{Type: e.Kind(), Payload: PresenceSnapshotPayload{
			Online: lo.Map(e.Online, func(id domain.Identity, _ int) string { return string(id) })}}
	case event.TypingStarted:
		return Outbound{Type: e.Kind(), Payload: TypingPayload{Counterpart: string(e.From)}}
	case event.TypingStopped:
		return Outbound{Type: e.Kind(), Payload: TypingPayload{Counterpart: string(e.From)}}
	case event.ReadCompleted:
		return Outbound{Type: e.Kind(), Payload: ReadCompletePayload{
			Counterpart: string(e.Counterpart), Updated: e.Updated}}
	case event.SendFailed:
		return Outbound{Type: e.Kind(), Payload: ErrorPayload{Reason: e.Reason}}
	default:
		return Outbound{Type: evt.Kind()}
	}
}

// DecodeEvent is the peer-side inverse of encodeEvent, used by clients
// to turn a received frame back into a domain event.
func DecodeEvent(frameType string, payload json.RawMessage) (event.DomainEvent, error) {
	switch frameType {
	case "message-delivered":
		var p MessagePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		message, err := fromMessagePayload(p)
		if err != nil {
			return nil, err
		}
		return event.MessageDelivered{Message: message}, nil
	case "presence-changed":
		var p PresencePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return event.PresenceChanged{Identity: domain.Identity(p.Identity), Online: p.Online}, nil
	case "presence-snapshot":
		var p PresenceSnapshotPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return event.PresenceSnapshot{Online: lo.Map(p.Online, func(id string, _ int) domain.Identity {
			return domain.Identity(id)
		})}, nil
	case "typing-start":
		var p TypingPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return event.TypingStarted{From: domain.Identity(p.Counterpart)}, nil
	case "typing-stop":
		var p TypingPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return event.TypingStopped{From: domain.Identity(p.Counterpart)}, nil
	case "read-complete":
		var p ReadCompletePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return event.ReadCompleted{Counterpart: domain.Identity(p.Counterpart), Updated: p.Updated}, nil
	case "error":
		var p ErrorPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, err
		}
		return event.SendFailed{Reason: p.Reason}, nil
	default:
		return nil, errors.ErrMalformedEvent
	}
}

func fromMessagePayload(p MessagePayload) (domain.Message, error) {
	parsedID, err := uuid.Parse(p.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		Sender:    domain.Identity(p.Sender),
		Receiver:  domain.Identity(p.Receiver),
		Body:      p.Body,
		CreatedAt: p.CreatedAt,
		Read:      p.Read,
	}, nil
}
