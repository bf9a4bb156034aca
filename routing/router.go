// Package routing decides, for each inbound send or mark-read, what is
// written durably, what is pushed live, and to whom.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatlink/contract"
	"chatlink/domain"
	"chatlink/domain/event"
	"chatlink/errors"
)

// Router accepts a send request, persists it, then pushes it to the
// receiver's live connections and echoes it back to the sender's
// originating connection.
type Router struct {
	store    contract.IMessageLog
	registry contract.IPresenceRegistry
	index    contract.IConversationIndex
	log      *slog.Logger
}

func NewRouter(log *slog.Logger, store contract.IMessageLog,
	registry contract.IPresenceRegistry, index contract.IConversationIndex) *Router {
	return &Router{store: store, registry: registry, index: index, log: log}
}

// Send validates, persists, and routes one message.
//
// Persistence is the durability point: if the append fails, nothing is
// pushed and the error is returned to the caller only. An offline
// receiver is not an error; the message stays stored and is discovered
// through the next history or summary fetch. The client timestamp is
// advisory only; ordering and persistence use the server clock.
func (r *Router) Send(ctx context.Context, origin contract.Connection,
	sender, receiver domain.Identity, body string, clientStamp time.Time) (domain.Message, error) {
	if receiver == "" {
		return domain.Message{}, errors.ErrMissingCounterpart
	}
	if sender == receiver {
		return domain.Message{}, errors.ErrSelfMessage
	}
	if strings.TrimSpace(body) == "" {
		return domain.Message{}, errors.ErrEmptyBody
	}

	message := domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Receiver:  receiver,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if !clientStamp.IsZero() {
		r.log.Debug("Client timestamp ignored for ordering",
			"sender", string(sender), "skew", message.CreatedAt.Sub(clientStamp).String())
	}

	if err := r.store.Append(message); err != nil {
		return domain.Message{}, fmt.Errorf("persisting message: %w", err)
	}

	r.index.OnMessagePersisted(message)

	delivered := event.MessageDelivered{Message: message}
	if r.registry.IsOnline(receiver) {
		for _, conn := range r.registry.ConnectionsOf(receiver) {
			if err := conn.Consume(ctx, delivered); err != nil {
				r.log.Debug("Live push skipped", "receiver", string(receiver), "error", err)
			}
		}
	}

	// Echo so the sender's view reflects the server-assigned identity
	// and timestamp rather than its local draft.
	if origin != nil {
		if err := origin.Consume(ctx, delivered); err != nil {
			r.log.Debug("Sender echo skipped", "sender", string(sender), "error", err)
		}
	}

	return message, nil
}
