package services

import (
	"context"
	"dwilive/domain"
	"dwilive/repositories"
	"dwilive/runtime"
	"dwilive/sink"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const maxContentLength = 50

type fixture struct {
	ctx           context.Context
	users         *repositories.UserRepository
	conversations *repositories.ConversationRepository
	messages      *repositories.MessageRepository
	registry      *runtime.Registry
	chat          *ChatService
	conversation  *ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	users := repositories.NewUserRepository(db)
	conversations := repositories.NewConversationRepository(db)
	messages := repositories.NewMessageRepository(db, users, log)
	registry := runtime.NewRegistry(log)
	return &fixture{
		ctx:           context.Background(),
		users:         users,
		conversations: conversations,
		messages:      messages,
		registry:      registry,
		chat:          NewChatService(NewMembershipOracle(conversations), registry, messages, conversations, nil, log, maxContentLength),
		conversation:  NewConversationService(conversations, messages, users, registry, log, 3, 5),
	}
}

func (f *fixture) user(t *testing.T, username string) domain.User {
	t.Helper()
	u, err := f.users.Create(f.ctx, username, "hash", "")
	require.NoError(t, err)
	return u
}

func (f *fixture) group(t *testing.T, admin domain.User, isPrivate bool, members ...domain.User) domain.Conversation {
	t.Helper()
	ids := make([]domain.UserID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	c, err := domain.NewGroupConversation("team", admin.ID, ids, isPrivate, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.conversations.Create(f.ctx, c))
	return c
}

func (f *fixture) direct(t *testing.T, a, b domain.User) domain.Conversation {
	t.Helper()
	c, err := domain.NewDirectConversation(a.ID, b.ID, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.conversations.Create(f.ctx, c))
	return c
}

// connect registers a fake connection for user and returns its session.
func (f *fixture) connect(user domain.User, connID string) (Session, *sink.Timeline) {
	timeline := sink.NewTimeline(connID, user.ID)
	f.registry.Register(timeline)
	return Session{ConnID: connID, User: user}, timeline
}

func (f *fixture) history(t *testing.T, conversationID domain.ConversationID) []domain.Message {
	t.Helper()
	messages, err := f.messages.List(f.ctx, conversationID, nil, 0)
	require.NoError(t, err)
	return messages
}
