// Package typing propagates ephemeral typing signals between two
// identities. Nothing here is persisted; state is lost on restart with
// no correctness impact.
package typing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"chatlink/contract"
	"chatlink/domain"
	"chatlink/domain/event"
)

type pair struct {
	from domain.Identity
	to   domain.Identity
}

// Broker routes typing start/stop notifications and arms a server-side
// expiry timer per (from, to) pair, so a dropped stop event cannot
// leave a stuck "typing…" indicator on the receiver.
type Broker struct {
	mu       sync.Mutex
	pending  map[pair]*time.Timer
	registry contract.IPresenceRegistry
	ttl      time.Duration
	log      *slog.Logger
}

func NewBroker(log *slog.Logger, registry contract.IPresenceRegistry, ttl time.Duration) *Broker {
	return &Broker{
		pending:  make(map[pair]*time.Timer),
		registry: registry,
		ttl:      ttl,
		log:      log,
	}
}

// Start notifies every live connection of to and arms the expiry
// window. A second Start for the same pair before expiry refreshes the
// window instead of stacking a duplicate expiration.
func (b *Broker) Start(from, to domain.Identity) {
	p := pair{from: from, to: to}

	b.mu.Lock()
	if timer, ok := b.pending[p]; ok {
		timer.Reset(b.ttl)
	} else {
		var timer *time.Timer
		timer = time.AfterFunc(b.ttl, func() { b.expire(p, timer) })
		b.pending[p] = timer
	}
	b.mu.Unlock()

	b.notify(to, event.TypingStarted{From: from, To: to})
}

// Stop cancels the pending expiry and routes the stopped notification.
func (b *Broker) Stop(from, to domain.Identity) {
	p := pair{from: from, to: to}

	b.mu.Lock()
	if timer, ok := b.pending[p]; ok {
		timer.Stop()
		delete(b.pending, p)
	}
	b.mu.Unlock()

	b.notify(to, event.TypingStopped{From: from, To: to})
}

// expire fires when no stop arrived within the window. The timer
// identity check suppresses a late expiry racing an explicit Stop.
func (b *Broker) expire(p pair, timer *time.Timer) {
	b.mu.Lock()
	current, ok := b.pending[p]
	if !ok || current != timer {
		b.mu.Unlock()
		return
	}
	delete(b.pending, p)
	b.mu.Unlock()

	b.log.Debug("Typing signal expired", "from", string(p.from), "to", string(p.to))
	b.notify(p.to, event.TypingStopped{From: p.from, To: p.to})
}

func (b *Broker) notify(to domain.Identity, evt event.DomainEvent) {
	for _, conn := range b.registry.ConnectionsOf(to) {
		if err := conn.Consume(context.Background(), evt); err != nil {
			b.log.Debug("Typing notification dropped", "to", string(to), "error", err)
		}
	}
}
