package workers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"chatlink/domain/event"
	"chatlink/presence"
)

type captureConn struct {
	id     string
	events chan event.DomainEvent
}

func newCaptureConn(id string) *captureConn {
	return &captureConn{id: id, events: make(chan event.DomainEvent, 16)}
}

func (c *captureConn) ID() string { return c.id }

func (c *captureConn) Consume(_ context.Context, e event.DomainEvent) error {
	c.events <- e
	return nil
}

func Test_Broadcast_Reaches_Everyone_But_The_Subject(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	transitions := make(chan event.DomainEvent, 64)
	registry := presence.NewRegistry(log, transitions)
	worker := NewBroadcastWorker(log, registry, transitions, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	bobConn := newCaptureConn("b1")
	claraConn := newCaptureConn("c1")
	registry.Register("bob", bobConn)
	registry.Register("clara", claraConn)

	// Drain the two connect transitions so the next assertion only
	// sees alice's.
	drainUntilQuiet(bobConn)
	drainUntilQuiet(claraConn)

	aliceConn := newCaptureConn("a1")
	registry.Register("alice", aliceConn)

	for _, conn := range []*captureConn{bobConn, claraConn} {
		select {
		case evt := <-conn.events:
			req.Equal(event.PresenceChanged{
				Identity: "alice",
				Online:   true,
				At:       evt.(event.PresenceChanged).At,
			}, evt)
		case <-time.After(time.Second):
			req.Fail("presence broadcast not delivered")
		}
	}

	// The transitioning identity never hears about itself.
	select {
	case evt := <-aliceConn.events:
		req.Failf("unexpected self broadcast", "%#v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

func drainUntilQuiet(conn *captureConn) {
	for {
		select {
		case <-conn.events:
		case <-time.After(150 * time.Millisecond):
			return
		}
	}
}
