package repositories

import (
	"context"
	"dwilive/domain"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestDescribe_Stored_Records(t *testing.T) {
	req := require.New(t)
	db := openDB(t)
	ctx := context.Background()
	users := NewUserRepository(db)
	conversations := NewConversationRepository(db)
	alice, err := users.Create(ctx, "alice", "secret-hash", "Alice")
	req.NoError(err)
	conv, err := domain.NewGroupConversation("team", alice.ID, nil, false, time.Now().UTC())
	req.NoError(err)
	req.NoError(conversations.Create(ctx, conv))

	entries := map[string]Entry{}
	req.NoError(db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			e := Describe(string(it.Item().Key()), val)
			entries[e.Kind] = e
			req.False(strings.Contains(e.Detail, "secret-hash"))
		}
		return nil
	}))

	req.Equal("alice (Alice)", entries["USER"].Detail)
	req.Equal(alice.ID.String(), entries["USER"].ID)
	req.Equal(`group "team", 1 participants`, entries["CONVERSATION"].Detail)
	req.Contains(entries, "INDEX")
}

func TestDescribe_Message_And_Garbage(t *testing.T) {
	req := require.New(t)
	m, err := domain.NewUserMessage(domain.NewConversationID(), domain.NewUserID(), domain.TextBody{Text: strings.Repeat("a", 100)})
	req.NoError(err)
	m.ID, m.CreatedAt = domain.NewMessageID(), time.Now()
	val, err := encode(fromMessage(m))
	req.NoError(err)

	e := Describe(string(messageKey(m)), val)
	req.Equal("MESSAGE", e.Kind)
	req.True(strings.HasPrefix(e.Detail, "[text] aaaa"))
	req.True(strings.HasSuffix(e.Detail, "…"))

	e = Describe("msg:broken", []byte{0xff, 0xff})
	req.Contains(e.Detail, "Error")
}
