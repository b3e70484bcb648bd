//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"dwilive/domain"
	"dwilive/errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	Create(ctx context.Context, message domain.Message) (domain.Message, error)
	GetByID(ctx context.Context, id domain.MessageID) (domain.Message, error)
	List(ctx context.Context, conversationID domain.ConversationID, before *time.Time, limit int) ([]domain.Message, error)
}

type MessageRepository struct {
	db    *badger.DB
	users IUserRepository
	log   *slog.Logger
	mu    sync.Mutex
	last  time.Time
}

func NewMessageRepository(db *badger.DB, users IUserRepository, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, users: users, log: log}
}

// The key is formatted as "msg:{conv_id}:{timestamp_padded}:{msg_id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Keep two messages stored in the same nanosecond apart, the id breaks the tie.
//
// "msgid:{msg_id}" points back to that key for lookups by id.
func messagePrefix(conversationID domain.ConversationID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", conversationID))
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ConversationID, m.CreatedAt.UnixNano(), m.ID))
}

func messageIDKey(id domain.MessageID) []byte {
	return []byte("msgid:" + string(id))
}

// Create assigns the id and the store timestamp, persists the message and
// hands it back with its sender resolved. A sender that cannot be loaded is
// left as a bare reference for the caller to reject.
func (m *MessageRepository) Create(ctx context.Context, message domain.Message) (domain.Message, error) {
	message.ID = domain.NewMessageID()
	message.CreatedAt = m.now()
	data, err := encode(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}
	key := messageKey(message)
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(messageIDKey(message.ID), key)
	})
	if err != nil {
		return domain.Message{}, err
	}
	resolved, err := m.resolveSenders(ctx, []domain.Message{message})
	if err != nil {
		return domain.Message{}, err
	}
	return resolved[0], nil
}

// now never hands out the same instant twice, so a createdAt cursor
// separates every message from its neighbours.
func (m *MessageRepository) now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := time.Now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Nanosecond)
	}
	m.last = t
	return t
}

func (m *MessageRepository) GetByID(ctx context.Context, id domain.MessageID) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIDKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", errors.ErrMessageNotFound, id)
		}
		if err != nil {
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", errors.ErrMessageNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			message, err = decodeMessage(val)
			return err
		})
	})
	if err != nil {
		return domain.Message{}, err
	}
	resolved, err := m.resolveSenders(ctx, []domain.Message{message})
	if err != nil {
		return domain.Message{}, err
	}
	return resolved[0], nil
}

// List returns the newest limit messages of a conversation strictly older
// than before (or the newest overall when before is nil), oldest first.
// The scan runs backwards from the cursor so only limit records are read.
func (m *MessageRepository) List(ctx context.Context, conversationID domain.ConversationID, before *time.Time, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch before {
		case nil:
			// Past the newest possible key, msg:{conv}:9999999999999999999
			seekKey = append(slices.Clone(prefix), []byte("9999999999999999999")...)
		default:
			// Keys of the same nanosecond sort after this one and are skipped
			seekKey = append(slices.Clone(prefix), []byte(fmt.Sprintf("%019d", before.UnixNano()))...)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
				break
			}
			err := it.Item().Value(func(val []byte) error {
				message, err := decodeMessage(val)
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
	slices.Reverse(messages)
	return m.resolveSenders(ctx, messages)
}

// resolveSenders swaps every sender reference for the loaded user.
func (m *MessageRepository) resolveSenders(ctx context.Context, messages []domain.Message) ([]domain.Message, error) {
	ids := lo.Uniq(lo.FilterMap(messages, func(msg domain.Message, _ int) (domain.UserID, bool) {
		return domain.UserID(msg.Sender.ID()), !msg.Sender.IsZero()
	}))
	if len(ids) == 0 {
		return messages, nil
	}
	users, err := m.users.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	return lo.Map(messages, func(msg domain.Message, _ int) domain.Message {
		if user, ok := users[domain.UserID(msg.Sender.ID())]; ok {
			msg.Sender = domain.Resolved(msg.Sender.ID(), user)
		}
		return msg
	}), nil
}

// deleteMessages drops the whole history of a conversation.
func deleteMessages(db *badger.DB, conversationID domain.ConversationID) error {
	var keys [][]byte
	err := db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(conversationID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			keys = append(keys, item.KeyCopy(nil))
			err := item.Value(func(val []byte) error {
				r, err := decode(val)
				if err != nil {
					return err
				}
				keys = append(keys, messageIDKey(domain.MessageID(r.str("id"))))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	batch := db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	return batch.Flush()
}

func fromMessage(m domain.Message) fields {
	f := fields{
		"id":              string(m.ID),
		"conversation_id": string(m.ConversationID),
		"type":            string(m.Type()),
		"content":         m.Body.Content(),
		"sender_id":       m.Sender.ID(),
		"created_at":      formatTime(m.CreatedAt),
	}
	if body, ok := m.Body.(domain.SystemBody); ok {
		f["metadata"] = fromMetadata(body.Metadata)
	}
	return f
}

func decodeMessage(val []byte) (domain.Message, error) {
	r, err := decode(val)
	if err != nil {
		return domain.Message{}, err
	}
	body, err := domain.BodyOf(domain.MessageType(r.str("type")), r.str("content"), toMetadata(r.sub("metadata")))
	if err != nil {
		return domain.Message{}, err
	}
	var sender domain.Ref[domain.User]
	if id := r.str("sender_id"); id != "" {
		sender = domain.RefByID[domain.User](id)
	}
	return domain.Message{
		ID:             domain.MessageID(r.str("id")),
		ConversationID: domain.ConversationID(r.str("conversation_id")),
		Sender:         sender,
		Body:           body,
		CreatedAt:      r.time("created_at"),
	}, nil
}

func fromMetadata(metadata domain.SystemMetadata) map[string]any {
	switch m := metadata.(type) {
	case domain.UserJoinedMetadata:
		return map[string]any{"kind": string(m.Kind()), "user_id": string(m.UserID), "username": m.Username}
	case domain.MemberAddedMetadata:
		return map[string]any{"kind": string(m.Kind()), "admin_name": m.AdminName, "added_user_name": m.AddedUserName}
	case domain.GroupRenamedMetadata:
		return map[string]any{"kind": string(m.Kind()), "admin_name": m.AdminName, "old_name": m.OldName, "new_name": m.NewName}
	default:
		return nil
	}
}

func toMetadata(r record) domain.SystemMetadata {
	switch domain.SystemKind(r.str("kind")) {
	case domain.UserJoined:
		return domain.UserJoinedMetadata{UserID: domain.UserID(r.str("user_id")), Username: r.str("username")}
	case domain.MemberAdded:
		return domain.MemberAddedMetadata{AdminName: r.str("admin_name"), AddedUserName: r.str("added_user_name")}
	case domain.GroupRenamed:
		return domain.GroupRenamedMetadata{AdminName: r.str("admin_name"), OldName: r.str("old_name"), NewName: r.str("new_name")}
	default:
		return nil
	}
}
