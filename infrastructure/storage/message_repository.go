package storage

import (
	goerrors "errors"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/domain"
	"chat-relay/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Badger transactions under SSI may conflict when two writers touch the
// same message; retrying a few times keeps the caller-visible contract
// simple (success or a single typed error).
const maxTxnRetries = 3

// MessageRepository is the durable message store, backed by BadgerDB.
//
// Two keys per message:
//   - "msg:{uuid}" → the CBOR-encoded record, for id lookups and mutation.
//   - "grp:{group_id}:{timestamp_padded}:{uuid}" → empty, a time-sorted
//     index per group. The 19-digit zero padding makes lexicographical
//     order chronological; the UUID disambiguates two messages arriving at
//     the same nanosecond.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// record is the stored shape. Timestamps are UnixNano so the codec stays
// deterministic across time zones.
type record struct {
	ID        string `cbor:"1,keyasint"`
	Group     string `cbor:"2,keyasint"`
	Sender    string `cbor:"3,keyasint"`
	Tenant    string `cbor:"4,keyasint"`
	Content   string `cbor:"5,keyasint"`
	Lang      string `cbor:"6,keyasint"`
	CreatedAt int64  `cbor:"7,keyasint"`
	UpdatedAt int64  `cbor:"8,keyasint"`
	Deleted   bool   `cbor:"9,keyasint"`
}

func primaryKey(id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s", id))
}

func indexKey(message domain.Message) []byte {
	return []byte(fmt.Sprintf("grp:%s:%019d:%s",
		message.Group,
		message.CreatedAt.UnixNano(),
		message.ID,
	))
}

// StoreMessage persists a new message: the primary record plus its entry
// in the group's time-sorted index, in one transaction.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	bytes, err := cbor.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(primaryKey(message.ID), bytes); err != nil {
			return err
		}
		return txn.Set(indexKey(message), nil)
	})
}

// FindMessage loads a message by id. A soft-deleted message reports
// NotFound exactly like an absent one.
func (m MessageRepository) FindMessage(id uuid.UUID) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		found, err := m.read(txn, id)
		if err != nil {
			return err
		}
		message = found
		return nil
	})
	return message, err
}

// UpdateMessage rewrites the content of a live message and returns the
// updated record. The deleted flag is re-checked inside the transaction so
// an update racing a delete cannot resurrect the message.
func (m MessageRepository) UpdateMessage(id uuid.UUID, content string, at time.Time) (domain.Message, error) {
	var updated domain.Message
	err := m.mutate(id, func(message *domain.Message) {
		message.Content = content
		message.UpdatedAt = at.UTC()
		updated = *message
	})
	return updated, err
}

// SoftDeleteMessage flips the deleted flag. A second delete of the same
// message reports NotFound: the in-transaction check makes the operation
// race-safe against a concurrent delete.
func (m MessageRepository) SoftDeleteMessage(id uuid.UUID, at time.Time) (domain.Message, error) {
	var deleted domain.Message
	err := m.mutate(id, func(message *domain.Message) {
		message.Deleted = true
		message.UpdatedAt = at.UTC()
		deleted = *message
	})
	return deleted, err
}

// mutate runs a read-check-write cycle on the primary record, retrying on
// transaction conflicts.
func (m MessageRepository) mutate(id uuid.UUID, apply func(*domain.Message)) error {
	for attempt := 0; ; attempt++ {
		err := m.db.Update(func(txn *badger.Txn) error {
			message, err := m.read(txn, id)
			if err != nil {
				return err
			}
			apply(&message)
			bytes, err := cbor.Marshal(fromMessage(message))
			if err != nil {
				return err
			}
			return txn.Set(primaryKey(id), bytes)
		})
		if goerrors.Is(err, badger.ErrConflict) && attempt < maxTxnRetries {
			m.log.Debug("transaction conflict, retrying", "message_id", id, "attempt", attempt+1)
			continue
		}
		return err
	}
}

func (m MessageRepository) read(txn *badger.Txn, id uuid.UUID) (domain.Message, error) {
	item, err := txn.Get(primaryKey(id))
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, errors.ErrNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}

	var rec record
	if err := item.Value(func(value []byte) error {
		return cbor.Unmarshal(value, &rec)
	}); err != nil {
		return domain.Message{}, err
	}

	message, err := toMessage(rec)
	if err != nil {
		return domain.Message{}, err
	}
	if message.Deleted {
		return domain.Message{}, errors.ErrNotFound
	}
	return message, nil
}

// GetMessages retrieves a page of the group's history using a reverse
// prefix scan over the time-sorted index, newest first. Soft-deleted
// messages are skipped but still advance the cursor, so pagination never
// stalls on a moderated page.
func (m MessageRepository) GetMessages(group domain.GroupID, cursor *string) ([]domain.Message, *string, error) {
	var ids []uuid.UUID
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("grp:%s:", group)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible entry, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(ids) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			key := it.Item().Key()
			lastKey = string(key[prefixLen:])

			// Index key layout: {timestamp_padded}:{uuid}
			suffix := lastKey
			id, err := uuid.Parse(suffix[len(suffix)-36:])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// No keys consumed means the history is exhausted; a cursor here would
	// only buy the client one more empty round trip.
	if lastKey == "" {
		return nil, nil, nil
	}

	var messages []domain.Message
	for _, id := range ids {
		message, err := m.FindMessage(id)
		if goerrors.Is(err, errors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	return messages, &lastKey, nil
}

func fromMessage(message domain.Message) record {
	return record{
		ID:        message.ID.String(),
		Group:     string(message.Group),
		Sender:    message.SenderID,
		Tenant:    message.TenantID,
		Content:   message.Content,
		Lang:      message.Lang,
		CreatedAt: message.CreatedAt.UnixNano(),
		UpdatedAt: message.UpdatedAt.UnixNano(),
		Deleted:   message.Deleted,
	}
}

func toMessage(rec record) (domain.Message, error) {
	parsedID, err := uuid.Parse(rec.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		Group:     domain.GroupID(rec.Group),
		SenderID:  rec.Sender,
		TenantID:  rec.Tenant,
		Content:   rec.Content,
		Lang:      rec.Lang,
		CreatedAt: time.Unix(0, rec.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, rec.UpdatedAt).UTC(),
		Deleted:   rec.Deleted,
	}, nil
}
