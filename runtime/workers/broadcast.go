package workers

import (
	"context"
	"log/slog"
	"time"

	"chatlink/contract"
	"chatlink/domain/event"
)

// BroadcastWorker drains presence transition events and fans them out
// to every connected identity except the one that transitioned.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// ordering, durability, or retries. It is not a message broker.
type BroadcastWorker struct {
	log      *slog.Logger
	registry contract.IPresenceRegistry
	events   <-chan event.DomainEvent
	timeout  time.Duration
}

func NewBroadcastWorker(log *slog.Logger, registry contract.IPresenceRegistry,
	events <-chan event.DomainEvent, timeout time.Duration) *BroadcastWorker {
	return &BroadcastWorker{log: log, registry: registry, events: events, timeout: timeout}
}

func (w *BroadcastWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence broadcast")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		}
	}
}

// Fanout pushes one event to every live connection of every online
// identity, skipping the transitioning identity's own connections.
func (w *BroadcastWorker) Fanout(ctx context.Context, evt event.DomainEvent) {
	changed, ok := evt.(event.PresenceChanged)
	if !ok {
		w.log.Debug("Ignoring non-presence event on broadcast channel", "kind", evt.Kind())
		return
	}

	for _, identity := range w.registry.Online() {
		if identity == changed.Identity {
			continue
		}
		for _, conn := range w.registry.ConnectionsOf(identity) {
			sinkCtx, cancel := context.WithTimeout(ctx, w.timeout)
			if err := conn.Consume(sinkCtx, evt); err != nil {
				w.log.Debug("Presence broadcast dropped",
					"identity", string(identity), "error", err)
			}
			cancel()
		}
	}
}
