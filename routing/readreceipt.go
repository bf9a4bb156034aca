package routing

import (
	"context"
	"fmt"
	"log/slog"

	"chatlink/contract"
	"chatlink/domain"
	"chatlink/domain/event"
	"chatlink/errors"
)

// ReadReceipts marks a conversation's inbound messages as read and
// confirms completion back to the owner's live connections.
//
// The counterpart is deliberately not notified: read-receipt delivery
// to the sender is an open extension point, not part of the contract.
type ReadReceipts struct {
	store    contract.IMessageLog
	registry contract.IPresenceRegistry
	index    contract.IConversationIndex
	log      *slog.Logger
}

func NewReadReceipts(log *slog.Logger, store contract.IMessageLog,
	registry contract.IPresenceRegistry, index contract.IConversationIndex) *ReadReceipts {
	return &ReadReceipts{store: store, registry: registry, index: index, log: log}
}

// MarkRead flips every unread message from counterpart to owner to
// read. Idempotent: with nothing left unread it mutates nothing and
// still succeeds. Returns the number of updated messages.
func (r *ReadReceipts) MarkRead(ctx context.Context, owner, counterpart domain.Identity) (int, error) {
	if counterpart == "" {
		return 0, errors.ErrMissingCounterpart
	}

	updated, err := r.store.MarkRead(owner, counterpart)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}

	r.index.OnRead(owner, counterpart)

	complete := event.ReadCompleted{Owner: owner, Counterpart: counterpart, Updated: updated}
	for _, conn := range r.registry.ConnectionsOf(owner) {
		if err := conn.Consume(ctx, complete); err != nil {
			r.log.Debug("Read confirmation skipped", "owner", string(owner), "error", err)
		}
	}
	return updated, nil
}
