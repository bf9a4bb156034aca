//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"chatlink/domain"
)

// MessageRepository persists the append-only message log in BadgerDB.
//
// The message key is formatted as "msg:{pair}:{timestamp_padded}:{uuid}" to:
//  1. Group one conversation under a single prefix (pair is the sorted
//     identity pair, so both directions share it).
//  2. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  3. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
//
// A marker key "conv:{owner}:{counterpart}" is written per direction on
// every append, so the set of an owner's counterparts is enumerable
// without scanning the whole log.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s",
		domain.PairKey(m.Sender, m.Receiver),
		m.CreatedAt.UnixNano(),
		m.ID,
	))
}

func pairPrefix(a, b domain.Identity) []byte {
	return []byte(fmt.Sprintf("msg:%s:", domain.PairKey(a, b)))
}

func counterpartKey(owner, counterpart domain.Identity) []byte {
	return []byte(fmt.Sprintf("conv:%s:%s", owner, counterpart))
}

// Append stores a message and the two conversation markers in one
// transaction. The log is append-only: an existing message is never
// rewritten here.
func (r MessageRepository) Append(message domain.Message) error {
	value, err := encodeMessage(message)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message), value); err != nil {
			return err
		}
		if err := txn.Set(counterpartKey(message.Sender, message.Receiver), nil); err != nil {
			return err
		}
		return txn.Set(counterpartKey(message.Receiver, message.Sender), nil)
	})
}

// History returns the most recent messages of a conversation, at most
// limit of them, in ascending (CreatedAt, ID) order. Thanks to the
// padded timestamp in the key, a reverse prefix scan yields them
// newest-first; the slice is flipped before returning.
func (r MessageRepository) History(a, b domain.Identity, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	prefix := pairPrefix(a, b)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key of the prefix.
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				r.log.Debug(fmt.Sprintf("History limit of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := DecodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Newest-first from the reverse scan, oldest-first for callers.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// LastMessage returns the newest message of a conversation, if any.
func (r MessageRepository) LastMessage(a, b domain.Identity) (domain.Message, bool, error) {
	messages, err := r.History(a, b, 1)
	if err != nil {
		return domain.Message{}, false, err
	}
	if len(messages) == 0 {
		return domain.Message{}, false, nil
	}
	return messages[len(messages)-1], true, nil
}

// MarkRead flips read=true on every unread message addressed to owner
// by counterpart, inside a single transaction so concurrent calls and
// appends observe either the old or the new state of each record.
// It returns the number of rewritten messages; zero on a repeat call,
// which is a successful no-op.
func (r MessageRepository) MarkRead(owner, counterpart domain.Identity) (int, error) {
	updated := 0
	prefix := pairPrefix(owner, counterpart)
	err := r.db.Update(func(txn *badger.Txn) error {
		updated = 0
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var message domain.Message
			err := item.Value(func(value []byte) error {
				var err error
				message, err = DecodeMessage(value)
				return err
			})
			if err != nil {
				return err
			}
			if message.Receiver != owner || message.Sender != counterpart || message.Read {
				continue
			}
			message.Read = true
			value, err := encodeMessage(message)
			if err != nil {
				return err
			}
			if err := txn.Set(item.KeyCopy(nil), value); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// CountUnread counts messages with receiver=owner, sender=counterpart,
// read=false.
func (r MessageRepository) CountUnread(owner, counterpart domain.Identity) (int, error) {
	count := 0
	prefix := pairPrefix(owner, counterpart)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				message, err := DecodeMessage(value)
				if err != nil {
					return err
				}
				if message.Receiver == owner && message.Sender == counterpart && !message.Read {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Counterparts lists every identity the owner has exchanged at least
// one message with, via the conversation marker keys.
func (r MessageRepository) Counterparts(owner domain.Identity) ([]domain.Identity, error) {
	var counterparts []domain.Identity
	prefixStr := fmt.Sprintf("conv:%s:", owner)
	prefix := []byte(prefixStr)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			counterparts = append(counterparts, domain.Identity(strings.TrimPrefix(key, prefixStr)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counterparts, nil
}
