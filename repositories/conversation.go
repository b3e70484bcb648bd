//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"context"
	"dwilive/domain"
	"dwilive/errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type IConversationRepository interface {
	Create(ctx context.Context, c domain.Conversation) error
	GetByID(ctx context.Context, id domain.ConversationID) (domain.Conversation, error)
	FindDirect(ctx context.Context, a, b domain.UserID) (domain.Conversation, error)
	ListForUser(ctx context.Context, userID domain.UserID) ([]domain.Conversation, error)
	AddParticipant(ctx context.Context, id domain.ConversationID, userID domain.UserID) (domain.Conversation, error)
	RemoveParticipant(ctx context.Context, id domain.ConversationID, userID domain.UserID) (domain.Conversation, error)
	Rename(ctx context.Context, id domain.ConversationID, name string) (domain.Conversation, error)
	SetLastMessage(ctx context.Context, id domain.ConversationID, messageID domain.MessageID, at time.Time) error
	Delete(ctx context.Context, id domain.ConversationID) error
}

type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Keys:
//
//	conv:id:{conv_id}                 -> conversation record
//	conv:member:{user_id}:{conv_id}   -> empty, membership index
//	conv:direct:{user_id}:{user_id}   -> conv_id, ids sorted so a pair maps to one key
func conversationKey(id domain.ConversationID) []byte {
	return []byte("conv:id:" + string(id))
}

func memberPrefix(userID domain.UserID) []byte {
	return []byte("conv:member:" + string(userID) + ":")
}

func memberKey(userID domain.UserID, id domain.ConversationID) []byte {
	return append(memberPrefix(userID), string(id)...)
}

func directKey(a, b domain.UserID) []byte {
	pair := []string{string(a), string(b)}
	sort.Strings(pair)
	return []byte("conv:direct:" + strings.Join(pair, ":"))
}

// Create stores c with its indexes. A direct pair that already has a
// conversation is refused.
func (r *ConversationRepository) Create(_ context.Context, c domain.Conversation) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if c.Kind == domain.Direct {
			key := directKey(c.Participants[0], c.Participants[1])
			if _, err := txn.Get(key); err == nil {
				return fmt.Errorf("%w: direct chat already exists", errors.ErrInvalidConversation)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := txn.Set(key, []byte(c.ID)); err != nil {
				return err
			}
		}
		for _, p := range c.Participants {
			if err := txn.Set(memberKey(p, c.ID), nil); err != nil {
				return err
			}
		}
		return putConversation(txn, c)
	})
}

func (r *ConversationRepository) GetByID(_ context.Context, id domain.ConversationID) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		c, err = getConversation(txn, id)
		return err
	})
	return c, err
}

// FindDirect returns the direct chat between a and b, in either order.
func (r *ConversationRepository) FindDirect(_ context.Context, a, b domain.UserID) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(directKey(a, b))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrConversationNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		c, err = getConversation(txn, domain.ConversationID(id))
		return err
	})
	return c, err
}

// ListForUser returns the conversations of userID, most recently updated first.
func (r *ConversationRepository) ListForUser(_ context.Context, userID domain.UserID) ([]domain.Conversation, error) {
	var conversations []domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := memberPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id := domain.ConversationID(it.Item().Key()[len(prefix):])
			c, err := getConversation(txn, id)
			if errors.Is(err, errors.ErrConversationNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			conversations = append(conversations, c)
		}
		return nil
	})
	slices.SortStableFunc(conversations, func(a, b domain.Conversation) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return conversations, err
}

func (r *ConversationRepository) AddParticipant(_ context.Context, id domain.ConversationID, userID domain.UserID) (domain.Conversation, error) {
	return r.mutate(id, func(txn *badger.Txn, c *domain.Conversation) error {
		if c.IsParticipant(userID) {
			return errors.ErrAlreadyParticipant
		}
		c.Participants = append(c.Participants, userID)
		return txn.Set(memberKey(userID, id), nil)
	})
}

func (r *ConversationRepository) RemoveParticipant(_ context.Context, id domain.ConversationID, userID domain.UserID) (domain.Conversation, error) {
	return r.mutate(id, func(txn *badger.Txn, c *domain.Conversation) error {
		if !c.IsParticipant(userID) {
			return errors.ErrNotParticipant
		}
		c.Participants = lo.Without(c.Participants, userID)
		return txn.Delete(memberKey(userID, id))
	})
}

func (r *ConversationRepository) Rename(_ context.Context, id domain.ConversationID, name string) (domain.Conversation, error) {
	return r.mutate(id, func(_ *badger.Txn, c *domain.Conversation) error {
		c.Name = strings.TrimSpace(name)
		return nil
	})
}

func (r *ConversationRepository) SetLastMessage(_ context.Context, id domain.ConversationID, messageID domain.MessageID, at time.Time) error {
	_, err := r.mutate(id, func(_ *badger.Txn, c *domain.Conversation) error {
		c.LastMessageID = messageID
		c.UpdatedAt = at
		return nil
	})
	return err
}

// Delete removes the conversation, its indexes and every message it holds.
// Messages are dropped in a write batch since a long history would not fit
// in a single transaction.
func (r *ConversationRepository) Delete(_ context.Context, id domain.ConversationID) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		c, err := getConversation(txn, id)
		if err != nil {
			return err
		}
		for _, p := range c.Participants {
			if err := txn.Delete(memberKey(p, id)); err != nil {
				return err
			}
		}
		if c.Kind == domain.Direct {
			if err := txn.Delete(directKey(c.Participants[0], c.Participants[1])); err != nil {
				return err
			}
		}
		return txn.Delete(conversationKey(id))
	})
	if err != nil {
		return err
	}
	return deleteMessages(r.db, id)
}

// mutate applies fn to the stored conversation and saves it in one
// transaction, bumping UpdatedAt unless fn sets it. The result must still
// satisfy the conversation invariants.
func (r *ConversationRepository) mutate(id domain.ConversationID, fn func(txn *badger.Txn, c *domain.Conversation) error) (domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.Update(func(txn *badger.Txn) error {
		var err error
		c, err = getConversation(txn, id)
		if err != nil {
			return err
		}
		c.UpdatedAt = time.Now().UTC()
		if err := fn(txn, &c); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		return putConversation(txn, c)
	})
	return c, err
}

func putConversation(txn *badger.Txn, c domain.Conversation) error {
	data, err := encode(fromConversation(c))
	if err != nil {
		return err
	}
	return txn.Set(conversationKey(c.ID), data)
}

func getConversation(txn *badger.Txn, id domain.ConversationID) (domain.Conversation, error) {
	item, err := txn.Get(conversationKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Conversation{}, fmt.Errorf("%w: %s", errors.ErrConversationNotFound, id)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	var c domain.Conversation
	err = item.Value(func(val []byte) error {
		r, err := decode(val)
		if err != nil {
			return err
		}
		c = toConversation(r)
		return nil
	})
	return c, err
}

func fromConversation(c domain.Conversation) fields {
	return fields{
		"id":              string(c.ID),
		"kind":            string(c.Kind),
		"name":            c.Name,
		"is_private":      c.IsPrivate,
		"participants":    anySlice(c.Participants),
		"admin":           string(c.Admin),
		"last_message_id": string(c.LastMessageID),
		"created_at":      formatTime(c.CreatedAt),
		"updated_at":      formatTime(c.UpdatedAt),
	}
}

func toConversation(r record) domain.Conversation {
	return domain.Conversation{
		ID:        domain.ConversationID(r.str("id")),
		Kind:      domain.ConversationKind(r.str("kind")),
		Name:      r.str("name"),
		IsPrivate: r.boolean("is_private"),
		Participants: lo.Map(r.strs("participants"), func(s string, _ int) domain.UserID {
			return domain.UserID(s)
		}),
		Admin:         domain.UserID(r.str("admin")),
		LastMessageID: domain.MessageID(r.str("last_message_id")),
		CreatedAt:     r.time("created_at"),
		UpdatedAt:     r.time("updated_at"),
	}
}
