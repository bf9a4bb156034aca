package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chatlink/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessage(sender, receiver domain.Identity, body string, at time.Time) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Sender:    sender,
		Receiver:  receiver,
		Body:      body,
		CreatedAt: at,
	}
}

func Test_Append_And_History_Order(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	first := newMessage("alice", "bob", "hello", at)
	second := newMessage("bob", "alice", "hi", at.Add(time.Minute))
	third := newMessage("alice", "bob", "how are you", at.Add(2*time.Minute))

	// Append out of order on purpose; the key scheme restores order.
	for _, m := range []domain.Message{third, first, second} {
		req.NoError(repository.Append(m))
	}

	fetched, err := repository.History("alice", "bob", 0)
	req.NoError(err)
	req.Len(fetched, 3)
	req.Equal([]domain.Message{first, second, third}, fetched)

	// Both directions of the pair see the same conversation.
	reversed, err := repository.History("bob", "alice", 0)
	req.NoError(err)
	req.Equal(fetched, reversed)
}

func Test_History_Limit_Keeps_Most_Recent(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	var all []domain.Message
	for i := 0; i < 5; i++ {
		m := newMessage("alice", "bob", "msg", at.Add(time.Duration(i)*time.Second))
		all = append(all, m)
		req.NoError(repository.Append(m))
	}

	fetched, err := repository.History("alice", "bob", 2)
	req.NoError(err)
	req.Len(fetched, 2)
	// The two newest, oldest-first.
	req.Equal(all[3:], fetched)
}

func Test_History_Same_Timestamp_Ordered_By_ID(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	first := newMessage("alice", "bob", "hello", at)
	second := newMessage("bob", "alice", "hi", at)

	req.NoError(repository.Append(first))
	req.NoError(repository.Append(second))

	fetched, err := repository.History("alice", "bob", 0)
	req.NoError(err)
	req.Len(fetched, 2)
	req.True(fetched[0].Before(fetched[1]))
}

func Test_MarkRead_Is_Conditional_And_Idempotent(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	req.NoError(repository.Append(newMessage("alice", "bob", "one", at)))
	req.NoError(repository.Append(newMessage("alice", "bob", "two", at.Add(time.Second))))
	// A message in the other direction must stay untouched.
	req.NoError(repository.Append(newMessage("bob", "alice", "reply", at.Add(2*time.Second))))

	unread, err := repository.CountUnread("bob", "alice")
	req.NoError(err)
	req.Equal(2, unread)

	updated, err := repository.MarkRead("bob", "alice")
	req.NoError(err)
	req.Equal(2, updated)

	unread, err = repository.CountUnread("bob", "alice")
	req.NoError(err)
	req.Equal(0, unread)

	// Second call is a successful no-op.
	updated, err = repository.MarkRead("bob", "alice")
	req.NoError(err)
	req.Equal(0, updated)

	// Alice's own unread message from bob is still unread.
	unread, err = repository.CountUnread("alice", "bob")
	req.NoError(err)
	req.Equal(1, unread)

	fetched, err := repository.History("alice", "bob", 0)
	req.NoError(err)
	req.True(fetched[0].Read)
	req.True(fetched[1].Read)
	req.False(fetched[2].Read)
}

func Test_Counterparts_Lists_Both_Directions(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	at := time.Now().UTC()
	req.NoError(repository.Append(newMessage("alice", "bob", "hello", at)))
	req.NoError(repository.Append(newMessage("clara", "alice", "hey", at.Add(time.Second))))

	counterparts, err := repository.Counterparts("alice")
	req.NoError(err)
	req.ElementsMatch([]domain.Identity{"bob", "clara"}, counterparts)

	counterparts, err = repository.Counterparts("bob")
	req.NoError(err)
	req.Equal([]domain.Identity{"alice"}, counterparts)
}

func Test_LastMessage(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	_, found, err := repository.LastMessage("alice", "bob")
	req.NoError(err)
	req.False(found)

	at := time.Now().UTC()
	latest := newMessage("bob", "alice", "latest", at.Add(time.Minute))
	req.NoError(repository.Append(newMessage("alice", "bob", "old", at)))
	req.NoError(repository.Append(latest))

	last, found, err := repository.LastMessage("alice", "bob")
	req.NoError(err)
	req.True(found)
	req.Equal(latest, last)
}
