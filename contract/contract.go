//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chatlink/domain"
	"chatlink/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives domain events pushed by the core.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Connection is one live, addressable channel owned by exactly one
// identity. The ID distinguishes several connections of one identity
// (multiple devices or tabs).
type Connection interface {
	EventSink
	ID() string
}

type IPresenceRegistry interface {
	Register(identity domain.Identity, conn Connection)
	Unregister(identity domain.Identity, conn Connection)
	IsOnline(identity domain.Identity) bool
	ConnectionsOf(identity domain.Identity) []Connection
	Online() []domain.Identity
}

// IMessageLog is the append-only durable log collaborator.
// Sender, receiver, body and timestamp are write-once; only the read
// flag may be rewritten, and only through MarkRead.
type IMessageLog interface {
	Append(message domain.Message) error
	History(a, b domain.Identity, limit int) ([]domain.Message, error)
	LastMessage(a, b domain.Identity) (domain.Message, bool, error)
	MarkRead(owner, counterpart domain.Identity) (int, error)
	CountUnread(owner, counterpart domain.Identity) (int, error)
	Counterparts(owner domain.Identity) ([]domain.Identity, error)
}

type IConversationIndex interface {
	SummariesFor(owner domain.Identity) ([]domain.ConversationSummary, error)
	OnMessagePersisted(message domain.Message)
	OnRead(owner, counterpart domain.Identity)
}

type ITypingBroker interface {
	Start(from, to domain.Identity)
	Stop(from, to domain.Identity)
}
