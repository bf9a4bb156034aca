// Package projection maintains derived conversation summaries from
// observed messages and read events. It handles ordering, promotion,
// and on-demand recomputation from the durable log. It does not emit
// events or touch connections.
package projection

import (
	"log/slog"
	"sort"
	"sync"

	"chatlink/contract"
	"chatlink/domain"
)

// Index keeps, per owning identity, an ordered list of conversation
// summaries (front = most recently active pair).
//
// An owner's list is materialized lazily: the first SummariesFor call
// rebuilds it from the log, and every later message or read event
// patches it in place. Owners never queried stay unmaterialized and
// cost nothing per message.
type Index struct {
	mu      sync.Mutex
	byOwner map[domain.Identity][]*domain.ConversationSummary
	store   contract.IMessageLog
	log     *slog.Logger
}

func NewIndex(log *slog.Logger, store contract.IMessageLog) *Index {
	return &Index{
		byOwner: make(map[domain.Identity][]*domain.ConversationSummary),
		store:   store,
		log:     log,
	}
}

// SummariesFor returns the owner's conversation list ordered by last
// message time, most recent first.
func (i *Index) SummariesFor(owner domain.Identity) ([]domain.ConversationSummary, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	summaries, ok := i.byOwner[owner]
	if !ok {
		rebuilt, err := i.rebuild(owner)
		if err != nil {
			return nil, err
		}
		i.byOwner[owner] = rebuilt
		summaries = rebuilt
	}

	out := make([]domain.ConversationSummary, len(summaries))
	for n, s := range summaries {
		out[n] = *s
	}
	return out, nil
}

// OnMessagePersisted patches both participants' views of the pair:
// the receiver gets unread+1 and the new last message, the sender the
// new last message only. The touched pair moves to the front of each
// materialized list; unmaterialized owners are left for the next
// rebuild, which already sees the persisted message.
func (i *Index) OnMessagePersisted(message domain.Message) {
	i.mu.Lock()
	defer i.mu.Unlock()

	last := domain.Summarize(message)
	i.patch(message.Receiver, message.Sender, func(s *domain.ConversationSummary) {
		s.LastMessage = last
		if !message.Read {
			s.UnreadCount++
		}
	})
	i.patch(message.Sender, message.Receiver, func(s *domain.ConversationSummary) {
		s.LastMessage = last
	})
}

// OnRead zeroes the unread count for the pair without touching the
// last message or the list order.
func (i *Index) OnRead(owner, counterpart domain.Identity) {
	i.mu.Lock()
	defer i.mu.Unlock()

	summaries, ok := i.byOwner[owner]
	if !ok {
		return
	}
	for _, s := range summaries {
		if s.Counterpart == counterpart {
			s.UnreadCount = 0
			return
		}
	}
}

// patch updates (or creates) the owner's summary for counterpart and
// promotes it to the front, leaving the relative order of the other
// pairs untouched. Owners not materialized yet are skipped.
func (i *Index) patch(owner, counterpart domain.Identity, apply func(*domain.ConversationSummary)) {
	summaries, ok := i.byOwner[owner]
	if !ok {
		return
	}

	at := -1
	for n, s := range summaries {
		if s.Counterpart == counterpart {
			at = n
			break
		}
	}

	var summary *domain.ConversationSummary
	if at == -1 {
		summary = &domain.ConversationSummary{Owner: owner, Counterpart: counterpart}
	} else {
		summary = summaries[at]
		summaries = append(summaries[:at], summaries[at+1:]...)
	}
	apply(summary)
	i.byOwner[owner] = append([]*domain.ConversationSummary{summary}, summaries...)
}

// rebuild recomputes the owner's whole list from the log. The result
// must match what incremental patching of the same log produces; the
// projection tests hold the two paths against each other.
func (i *Index) rebuild(owner domain.Identity) ([]*domain.ConversationSummary, error) {
	counterparts, err := i.store.Counterparts(owner)
	if err != nil {
		return nil, err
	}

	var summaries []*domain.ConversationSummary
	for _, counterpart := range counterparts {
		last, found, err := i.store.LastMessage(owner, counterpart)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		unread, err := i.store.CountUnread(owner, counterpart)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, &domain.ConversationSummary{
			Owner:       owner,
			Counterpart: counterpart,
			LastMessage: domain.Summarize(last),
			UnreadCount: unread,
		})
	}

	sort.SliceStable(summaries, func(a, b int) bool {
		return summaries[a].LastMessage.CreatedAt.After(summaries[b].LastMessage.CreatedAt)
	})
	i.log.Debug("Rebuilt conversation index", "owner", string(owner), "pairs", len(summaries))
	return summaries, nil
}
