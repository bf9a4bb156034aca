package routing

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"chatlink/contract"
	"chatlink/domain"
	"chatlink/domain/event"
	"chatlink/errors"
	"chatlink/presence"
	"chatlink/projection"
	"chatlink/repositories"
)

type recordingConn struct {
	id     string
	events []event.DomainEvent
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Consume(_ context.Context, e event.DomainEvent) error {
	c.events = append(c.events, e)
	return nil
}

type fixture struct {
	store    repositories.MessageRepository
	registry *presence.Registry
	index    *projection.Index
	router   *Router
	receipts *ReadReceipts
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	store := repositories.NewMessageRepository(db, slog.Default())
	registry := presence.NewRegistry(log, make(chan event.DomainEvent, 64))
	index := projection.NewIndex(log, store)
	return fixture{
		store:    store,
		registry: registry,
		index:    index,
		router:   NewRouter(log, store, registry, index),
		receipts: NewReadReceipts(log, store, registry, index),
	}
}

func Test_Send_Rejects_Invalid_Requests_Without_Side_Effect(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.router.Send(ctx, nil, "alice", "alice", "hello", time.Time{})
	req.ErrorIs(err, errors.ErrSelfMessage)

	_, err = f.router.Send(ctx, nil, "alice", "bob", "   \t ", time.Time{})
	req.ErrorIs(err, errors.ErrEmptyBody)

	_, err = f.router.Send(ctx, nil, "alice", "", "hello", time.Time{})
	req.ErrorIs(err, errors.ErrMissingCounterpart)

	history, err := f.store.History("alice", "bob", 0)
	req.NoError(err)
	req.Empty(history)
}

func Test_Send_Persists_Pushes_And_Echoes(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	origin := &recordingConn{id: "a1"}
	bobPhone := &recordingConn{id: "b1"}
	bobLaptop := &recordingConn{id: "b2"}
	f.registry.Register("alice", origin)
	f.registry.Register("bob", bobPhone)
	f.registry.Register("bob", bobLaptop)

	clientStamp := time.Now().Add(-time.Hour) // advisory, must be ignored
	message, err := f.router.Send(ctx, origin, "alice", "bob", "hello", clientStamp)
	req.NoError(err)
	req.Equal(domain.Identity("alice"), message.Sender)
	req.False(message.Read)
	req.True(message.CreatedAt.After(clientStamp))

	// Every live connection of the receiver got the persisted message.
	for _, conn := range []*recordingConn{bobPhone, bobLaptop} {
		req.Len(conn.events, 1)
		req.Equal(event.MessageDelivered{Message: message}, conn.events[0])
	}

	// The originating connection got the server-assigned echo.
	req.Len(origin.events, 1)
	req.Equal(event.MessageDelivered{Message: message}, origin.events[0])

	history, err := f.store.History("alice", "bob", 0)
	req.NoError(err)
	req.Equal([]domain.Message{message}, history)
}

func Test_Send_To_Offline_Receiver_Is_Stored_Not_Pushed(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	origin := &recordingConn{id: "a1"}
	f.registry.Register("alice", origin)

	// B is offline at t1 when A sends "hi".
	message, err := f.router.Send(ctx, origin, "alice", "bob", "hi", time.Time{})
	req.NoError(err)

	// B connects later and catches up via the summary fetch.
	view, err := f.index.SummariesFor("bob")
	req.NoError(err)
	req.Len(view, 1)
	req.Equal(domain.Identity("alice"), view[0].Counterpart)
	req.Equal("hi", view[0].LastMessage.Body)
	req.Equal(1, view[0].UnreadCount)

	// markRead settles the scenario: unread drops to zero and the
	// stored message carries read=true.
	updated, err := f.receipts.MarkRead(ctx, "bob", "alice")
	req.NoError(err)
	req.Equal(1, updated)

	view, err = f.index.SummariesFor("bob")
	req.NoError(err)
	req.Equal(0, view[0].UnreadCount)

	history, err := f.store.History("bob", "alice", 0)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(message.ID, history[0].ID)
	req.True(history[0].Read)
}

type brokenStore struct {
	contract.IMessageLog
	err error
}

func (s brokenStore) Append(domain.Message) error { return s.err }

func Test_Send_Fails_Atomically_When_Persistence_Fails(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	failing := NewRouter(log, brokenStore{err: badger.ErrDBClosed}, f.registry, f.index)

	origin := &recordingConn{id: "a1"}
	bob := &recordingConn{id: "b1"}
	f.registry.Register("alice", origin)
	f.registry.Register("bob", bob)

	_, err := failing.Send(ctx, origin, "alice", "bob", "hello", time.Time{})
	req.ErrorIs(err, badger.ErrDBClosed)

	// Nothing pushed, nothing echoed, summaries untouched.
	req.Empty(origin.events)
	req.Empty(bob.events)
	view, viewErr := f.index.SummariesFor("bob")
	req.NoError(viewErr)
	req.Empty(view)
}

func Test_Concurrent_Cross_Sends_Share_One_Order(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceConn := &recordingConn{id: "a1"}
	bobConn := &recordingConn{id: "b1"}
	f.registry.Register("alice", aliceConn)
	f.registry.Register("bob", bobConn)

	// Two sends within the same instant; the server-assigned order is
	// whatever the log persisted, identical for both participants.
	_, err := f.router.Send(ctx, aliceConn, "alice", "bob", "hello", time.Time{})
	req.NoError(err)
	_, err = f.router.Send(ctx, bobConn, "bob", "alice", "hi", time.Time{})
	req.NoError(err)

	aliceHistory, err := f.store.History("alice", "bob", 0)
	req.NoError(err)
	bobHistory, err := f.store.History("bob", "alice", 0)
	req.NoError(err)

	req.Len(aliceHistory, 2)
	req.Equal(aliceHistory, bobHistory)
	req.True(aliceHistory[0].Before(aliceHistory[1]))
}

func Test_MarkRead_Is_Idempotent_And_Confirms_To_Owner(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.router.Send(ctx, nil, "alice", "bob", "one", time.Time{})
	req.NoError(err)
	_, err = f.router.Send(ctx, nil, "alice", "bob", "two", time.Time{})
	req.NoError(err)

	bobConn := &recordingConn{id: "b1"}
	aliceConn := &recordingConn{id: "a1"}
	f.registry.Register("bob", bobConn)
	f.registry.Register("alice", aliceConn)

	updated, err := f.receipts.MarkRead(ctx, "bob", "alice")
	req.NoError(err)
	req.Equal(2, updated)

	updated, err = f.receipts.MarkRead(ctx, "bob", "alice")
	req.NoError(err)
	req.Equal(0, updated)

	// The owner's connections got one confirmation per call; the
	// counterpart got nothing.
	req.Len(bobConn.events, 2)
	req.Equal(event.ReadCompleted{Owner: "bob", Counterpart: "alice", Updated: 2}, bobConn.events[0])
	req.Equal(event.ReadCompleted{Owner: "bob", Counterpart: "alice", Updated: 0}, bobConn.events[1])
	req.Empty(aliceConn.events)

	_, err = f.receipts.MarkRead(ctx, "bob", "")
	req.ErrorIs(err, errors.ErrMissingCounterpart)
}
