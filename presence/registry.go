// Package presence is the authoritative registry of live connections.
// It answers "is this identity reachable now" and emits exactly one
// event per offline/online transition.
package presence

import (
	"log/slog"
	"sync"
	"time"

	"chatlink/contract"
	"chatlink/domain"
	"chatlink/domain/event"
)

// Registry maps an identity to its set of live connections.
//
// Mutations for one identity are serialized by a per-identity mutex, so
// two near-simultaneous connects for the same identity cannot lose an
// entry; mutations for different identities never contend on the same
// lock. The outer RWMutex only guards the entry map itself.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.Identity]*entry
	events  chan<- event.DomainEvent
	log     *slog.Logger
}

type entry struct {
	mu    sync.Mutex
	conns map[string]contract.Connection
}

// NewRegistry builds a registry emitting transition events on events.
// The channel is never closed by the registry; sends are non-blocking
// so a stalled consumer cannot wedge a connect or disconnect.
func NewRegistry(log *slog.Logger, events chan<- event.DomainEvent) *Registry {
	return &Registry{
		entries: make(map[domain.Identity]*entry),
		events:  events,
		log:     log,
	}
}

// entryFor returns the identity's entry, creating it on first use.
// Entries are kept once created; an identity that disconnects leaves an
// empty entry behind, which the next connect reuses.
func (r *Registry) entryFor(identity domain.Identity) *entry {
	r.mu.RLock()
	e, ok := r.entries[identity]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.entries[identity]; ok {
		return e
	}
	e = &entry{conns: make(map[string]contract.Connection)}
	r.entries[identity] = e
	return e
}

// Register adds a live connection. The offline→online transition is
// detected under the identity's lock, so exactly one online event is
// emitted no matter how many connections open concurrently.
func (r *Registry) Register(identity domain.Identity, conn contract.Connection) {
	e := r.entryFor(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	wasOffline := len(e.conns) == 0
	e.conns[conn.ID()] = conn
	if wasOffline {
		r.emit(event.PresenceChanged{Identity: identity, Online: true, At: time.Now().UTC()})
	}
}

// Unregister removes a connection. Exactly one offline event is emitted
// when the last connection goes away, regardless of how many close
// concurrently.
func (r *Registry) Unregister(identity domain.Identity, conn contract.Connection) {
	e := r.entryFor(identity)
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.conns[conn.ID()]; !ok {
		return
	}
	delete(e.conns, conn.ID())
	if len(e.conns) == 0 {
		r.emit(event.PresenceChanged{Identity: identity, Online: false, At: time.Now().UTC()})
	}
}

func (r *Registry) IsOnline(identity domain.Identity) bool {
	return len(r.ConnectionsOf(identity)) > 0
}

// ConnectionsOf returns a snapshot of the identity's live connections.
func (r *Registry) ConnectionsOf(identity domain.Identity) []contract.Connection {
	r.mu.RLock()
	e, ok := r.entries[identity]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	conns := make([]contract.Connection, 0, len(e.conns))
	for _, conn := range e.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Online returns the identities currently holding at least one live
// connection, for the connect-time presence snapshot.
func (r *Registry) Online() []domain.Identity {
	r.mu.RLock()
	identities := make([]domain.Identity, 0, len(r.entries))
	for identity := range r.entries {
		identities = append(identities, identity)
	}
	r.mu.RUnlock()

	var online []domain.Identity
	for _, identity := range identities {
		if r.IsOnline(identity) {
			online = append(online, identity)
		}
	}
	return online
}

func (r *Registry) emit(evt event.DomainEvent) {
	select {
	case r.events <- evt:
	default:
		r.log.Warn("Presence event channel full, dropping event", "kind", evt.Kind())
	}
}
