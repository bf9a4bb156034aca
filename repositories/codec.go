package repositories

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"chatlink/domain"
)

// storedMessage is the on-disk shape of a message. Timestamps are kept
// as unix nanoseconds so the value round-trips without timezone noise.
type storedMessage struct {
	ID       string `cbor:"1,keyasint"`
	Sender   string `cbor:"2,keyasint"`
	Receiver string `cbor:"3,keyasint"`
	Body     string `cbor:"4,keyasint"`
	At       int64  `cbor:"5,keyasint"`
	Read     bool   `cbor:"6,keyasint"`
}

func encodeMessage(m domain.Message) ([]byte, error) {
	return cbor.Marshal(storedMessage{
		ID:       m.ID.String(),
		Sender:   string(m.Sender),
		Receiver: string(m.Receiver),
		Body:     m.Body,
		At:       m.CreatedAt.UnixNano(),
		Read:     m.Read,
	})
}

// DecodeMessage decodes a stored value back into a domain message. It
// is exported for offline tooling that reads the store directly.
func DecodeMessage(value []byte) (domain.Message, error) {
	var stored storedMessage
	if err := cbor.Unmarshal(value, &stored); err != nil {
		return domain.Message{}, err
	}
	parsedID, err := uuid.Parse(stored.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		Sender:    domain.Identity(stored.Sender),
		Receiver:  domain.Identity(stored.Receiver),
		Body:      stored.Body,
		CreatedAt: time.Unix(0, stored.At).UTC(),
		Read:      stored.Read,
	}, nil
}
