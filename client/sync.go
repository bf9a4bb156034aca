// Package client mirrors server-side state on the peer: an ordered
// message cache for the open conversation, the conversation list, and
// transient presence/typing indicators.
package client

import (
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"chatlink/domain"
	"chatlink/domain/event"
)

// SyncState consumes pushed events and REST snapshots. The message
// cache never holds two entries with the same message ID, and the
// conversation list is promoted exactly like the server-side index.
// Typing and presence are transient; nothing survives a reload.
type SyncState struct {
	mu            sync.Mutex
	self          domain.Identity
	open          domain.Identity
	messages      []domain.Message
	seen          map[uuid.UUID]struct{}
	conversations []domain.ConversationSummary
	online        map[domain.Identity]struct{}
	typing        map[domain.Identity]struct{}
}

func NewSyncState(self domain.Identity) *SyncState {
	return &SyncState{
		self:   self,
		seen:   make(map[uuid.UUID]struct{}),
		online: make(map[domain.Identity]struct{}),
		typing: make(map[domain.Identity]struct{}),
	}
}

// ApplyPresenceSnapshot replaces the known online set, as received on
// connect.
func (s *SyncState) ApplyPresenceSnapshot(online []domain.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = make(map[domain.Identity]struct{}, len(online))
	for _, identity := range online {
		s.online[identity] = struct{}{}
	}
}

func (s *SyncState) ApplyPresence(evt event.PresenceChanged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if evt.Online {
		s.online[evt.Identity] = struct{}{}
	} else {
		delete(s.online, evt.Identity)
		delete(s.typing, evt.Identity)
	}
}

func (s *SyncState) ApplyTypingStarted(evt event.TypingStarted) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typing[evt.From] = struct{}{}
}

func (s *SyncState) ApplyTypingStopped(evt event.TypingStopped) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.typing, evt.From)
}

// ApplyDelivered folds a pushed message into the mirror. If it belongs
// to the open conversation it is appended to the cache (deduplicated by
// message ID, in server order); the conversation list entry is patched
// and promoted to the front either way.
func (s *SyncState) ApplyDelivered(evt event.MessageDelivered) {
	s.mu.Lock()
	defer s.mu.Unlock()

	message := evt.Message
	counterpart := message.Counterpart(s.self)

	if s.open != "" && counterpart == s.open {
		if _, duplicate := s.seen[message.ID]; !duplicate {
			s.seen[message.ID] = struct{}{}
			s.messages = insertOrdered(s.messages, message)
		}
	}

	s.patchConversation(counterpart, message)
}

// ApplyReadCompleted clears the unread counter the server confirmed.
func (s *SyncState) ApplyReadCompleted(evt event.ReadCompleted) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for n := range s.conversations {
		if s.conversations[n].Counterpart == evt.Counterpart {
			s.conversations[n].UnreadCount = 0
			return
		}
	}
}

// OpenConversation switches the active counterpart and replaces the
// cache with a history snapshot, deduplicated by message ID.
func (s *SyncState) OpenConversation(counterpart domain.Identity, history []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = counterpart
	s.messages = nil
	s.seen = make(map[uuid.UUID]struct{}, len(history))
	for _, message := range history {
		if _, duplicate := s.seen[message.ID]; duplicate {
			continue
		}
		s.seen[message.ID] = struct{}{}
		s.messages = insertOrdered(s.messages, message)
	}
}

// SetConversations replaces the list from a REST snapshot.
func (s *SyncState) SetConversations(summaries []domain.ConversationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = append([]domain.ConversationSummary(nil), summaries...)
}

func (s *SyncState) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

func (s *SyncState) Conversations() []domain.ConversationSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ConversationSummary(nil), s.conversations...)
}

func (s *SyncState) Open() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *SyncState) IsOnline(identity domain.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.online[identity]
	return ok
}

func (s *SyncState) IsTyping(identity domain.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.typing[identity]
	return ok
}

// patchConversation mirrors the server-side promotion rule: replace the
// last message, bump unread when the message is inbound and the
// conversation is not the open one, and move the pair to the front.
func (s *SyncState) patchConversation(counterpart domain.Identity, message domain.Message) {
	at := lo.IndexOf(lo.Map(s.conversations, func(c domain.ConversationSummary, _ int) domain.Identity {
		return c.Counterpart
	}), counterpart)

	var summary domain.ConversationSummary
	if at == -1 {
		summary = domain.ConversationSummary{Owner: s.self, Counterpart: counterpart}
	} else {
		summary = s.conversations[at]
		s.conversations = append(s.conversations[:at], s.conversations[at+1:]...)
	}

	summary.LastMessage = domain.Summarize(message)
	if message.Receiver == s.self && counterpart != s.open {
		summary.UnreadCount++
	}
	s.conversations = append([]domain.ConversationSummary{summary}, s.conversations...)
}

// insertOrdered keeps the cache in (CreatedAt, ID) order even if a
// push arrives late relative to a history snapshot.
func insertOrdered(messages []domain.Message, message domain.Message) []domain.Message {
	at := len(messages)
	for at > 0 && message.Before(messages[at-1]) {
		at--
	}
	messages = append(messages, domain.Message{})
	copy(messages[at+1:], messages[at:])
	messages[at] = message
	return messages
}
