package typing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"chatlink/contract"
	"chatlink/domain"
	"chatlink/domain/event"
)

type recordingConn struct {
	id     string
	events chan event.DomainEvent
}

func newRecordingConn(id string) *recordingConn {
	return &recordingConn{id: id, events: make(chan event.DomainEvent, 16)}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Consume(_ context.Context, e event.DomainEvent) error {
	c.events <- e
	return nil
}

type fixedRegistry struct {
	conns map[domain.Identity][]contract.Connection
}

func (r fixedRegistry) Register(domain.Identity, contract.Connection)   {}
func (r fixedRegistry) Unregister(domain.Identity, contract.Connection) {}
func (r fixedRegistry) IsOnline(id domain.Identity) bool                { return len(r.conns[id]) > 0 }
func (r fixedRegistry) Online() []domain.Identity                       { return nil }

func (r fixedRegistry) ConnectionsOf(id domain.Identity) []contract.Connection {
	return r.conns[id]
}

func expectEvent(t *testing.T, conn *recordingConn, timeout time.Duration) event.DomainEvent {
	t.Helper()
	select {
	case evt := <-conn.events:
		return evt
	case <-time.After(timeout):
		t.Fatal("no event received in time")
		return nil
	}
}

func Test_Start_Then_Silence_Auto_Expires(t *testing.T) {
	req := require.New(t)
	bob := newRecordingConn("b1")
	registry := fixedRegistry{conns: map[domain.Identity][]contract.Connection{"bob": {bob}}}
	broker := NewBroker(logs.GetLoggerFromLevel(slog.LevelDebug), registry, 50*time.Millisecond)

	broker.Start("alice", "bob")

	evt := expectEvent(t, bob, time.Second)
	req.Equal(event.TypingStarted{From: "alice", To: "bob"}, evt)

	evt = expectEvent(t, bob, time.Second)
	req.Equal(event.TypingStopped{From: "alice", To: "bob"}, evt)
}

func Test_Stop_Before_Expiry_Suppresses_Timer(t *testing.T) {
	req := require.New(t)
	bob := newRecordingConn("b1")
	registry := fixedRegistry{conns: map[domain.Identity][]contract.Connection{"bob": {bob}}}
	broker := NewBroker(logs.GetLoggerFromLevel(slog.LevelDebug), registry, 80*time.Millisecond)

	broker.Start("alice", "bob")
	req.Equal(event.TypingStarted{From: "alice", To: "bob"}, expectEvent(t, bob, time.Second))

	broker.Stop("alice", "bob")
	req.Equal(event.TypingStopped{From: "alice", To: "bob"}, expectEvent(t, bob, time.Second))

	// The cancelled timer must not produce a second stop.
	select {
	case evt := <-bob.events:
		t.Fatalf("unexpected event after stop: %#v", evt)
	case <-time.After(200 * time.Millisecond):
	}
}

func Test_Restart_Refreshes_Window(t *testing.T) {
	req := require.New(t)
	bob := newRecordingConn("b1")
	registry := fixedRegistry{conns: map[domain.Identity][]contract.Connection{"bob": {bob}}}
	broker := NewBroker(logs.GetLoggerFromLevel(slog.LevelDebug), registry, 150*time.Millisecond)

	broker.Start("alice", "bob")
	req.Equal(event.TypingStarted{From: "alice", To: "bob"}, expectEvent(t, bob, time.Second))

	// Refresh just before the window would lapse.
	time.Sleep(100 * time.Millisecond)
	broker.Start("alice", "bob")
	req.Equal(event.TypingStarted{From: "alice", To: "bob"}, expectEvent(t, bob, time.Second))

	// Original deadline passes with no stop, because the window moved.
	select {
	case evt := <-bob.events:
		t.Fatalf("expiry fired despite refresh: %#v", evt)
	case <-time.After(80 * time.Millisecond):
	}

	// The refreshed window eventually expires exactly once.
	req.Equal(event.TypingStopped{From: "alice", To: "bob"}, expectEvent(t, bob, time.Second))
}

func Test_Pairs_Expire_Independently(t *testing.T) {
	req := require.New(t)
	bob := newRecordingConn("b1")
	clara := newRecordingConn("c1")
	registry := fixedRegistry{conns: map[domain.Identity][]contract.Connection{
		"bob":   {bob},
		"clara": {clara},
	}}
	broker := NewBroker(logs.GetLoggerFromLevel(slog.LevelDebug), registry, 50*time.Millisecond)

	broker.Start("alice", "bob")
	broker.Start("alice", "clara")

	req.Equal(event.TypingStarted{From: "alice", To: "bob"}, expectEvent(t, bob, time.Second))
	req.Equal(event.TypingStarted{From: "alice", To: "clara"}, expectEvent(t, clara, time.Second))

	req.Equal(event.TypingStopped{From: "alice", To: "bob"}, expectEvent(t, bob, time.Second))
	req.Equal(event.TypingStopped{From: "alice", To: "clara"}, expectEvent(t, clara, time.Second))
}
